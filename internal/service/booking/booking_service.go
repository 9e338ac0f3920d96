package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/kafka"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"github.com/Domenick1991/travelbooking/internal/service/capacity"
	"github.com/Domenick1991/travelbooking/internal/service/payment"
	"github.com/Domenick1991/travelbooking/internal/service/pricing"
	"go.uber.org/zap"
)

type BookingUseCase interface {
	Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
	CreateDirect(ctx context.Context, draft domain.BookingDraft) (*domain.Booking, error)
	CreateFromPayment(ctx context.Context, pending *domain.PendingPayment, receipt string) (*domain.Booking, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	CancelBooking(ctx context.Context, id string) (*domain.Booking, error)
}

// PaymentInitiator starts a push payment for a priced draft.
type PaymentInitiator interface {
	Initiate(ctx context.Context, req payment.PaymentRequest) (*payment.Initiation, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookingService struct {
	bookings           repository.BookingRepository
	items              repository.ItemRepository
	payments           PaymentInitiator
	producer           Producer
	calculator         *pricing.Calculator
	ledger             *capacity.Ledger
	clock              domain.Clock
	logger             *zap.Logger
	bookingTopic       string
	notificationsTopic string
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithBookingEventsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.bookingTopic = topic
	}
}

func WithClock(clock domain.Clock) BookingServiceOption {
	return func(s *BookingService) {
		s.clock = clock
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	items repository.ItemRepository,
	payments PaymentInitiator,
	producer Producer,
	calculator *pricing.Calculator,
	ledger *capacity.Ledger,
	logger *zap.Logger,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:   bookings,
		items:      items,
		payments:   payments,
		producer:   producer,
		calculator: calculator,
		ledger:     ledger,
		clock:      domain.SystemClock,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

type FacilityInput struct {
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type ActivityInput struct {
	Name           string `json:"name"`
	NumberOfPeople int    `json:"numberOfPeople"`
}

// CheckoutInput is the booking form as submitted.
type CheckoutInput struct {
	ItemID             string          `json:"item_id"`
	UserID             *string         `json:"user_id,omitempty"`
	GuestName          string          `json:"guest_name"`
	GuestEmail         string          `json:"guest_email"`
	GuestPhone         string          `json:"guest_phone"`
	PaymentPhone       string          `json:"payment_phone"`
	VisitDate          string          `json:"visit_date,omitempty"`
	Adults             int             `json:"adults"`
	Children           int             `json:"children"`
	Facilities         []FacilityInput `json:"facilities,omitempty"`
	Activities         []ActivityInput `json:"activities,omitempty"`
	TripNote           string          `json:"trip_note,omitempty"`
	ReferralTrackingID string          `json:"referral_tracking_id,omitempty"`
}

// CheckoutResult carries the booking for free items, the payment otherwise.
type CheckoutResult struct {
	Quote   pricing.Quote       `json:"quote"`
	Booking *domain.Booking     `json:"booking,omitempty"`
	Payment *payment.Initiation `json:"payment,omitempty"`
}

func (s *BookingService) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if strings.TrimSpace(input.ItemID) == "" {
		return nil, domain.NewValidationError("item_id", "is required")
	}
	if input.UserID == nil && strings.TrimSpace(input.GuestName) == "" {
		return nil, domain.NewValidationError("guest_name", "is required for guest bookings")
	}

	record, err := s.items.GetByID(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}
	item, err := record.Item()
	if err != nil {
		return nil, err
	}

	sel, err := selection(item, input)
	if err != nil {
		return nil, err
	}
	quote, err := s.calculator.Calculate(item.Tariff(), sel)
	if err != nil {
		return nil, err
	}

	visitDate, err := resolveVisitDate(item, input.VisitDate)
	if err != nil {
		return nil, err
	}

	usage, err := s.items.SlotUsage(ctx, item.ItemID())
	if err != nil {
		return nil, fmt.Errorf("load slot usage: %w", err)
	}
	if err := s.ledger.Admit(item, usage, visitDate, sel.Guests(), s.clock.Now()); err != nil {
		return nil, err
	}

	draft := domain.BookingDraft{
		ItemID:             item.ItemID(),
		BookingType:        item.Kind(),
		UserID:             input.UserID,
		IsGuestBooking:     input.UserID == nil,
		GuestName:          strings.TrimSpace(input.GuestName),
		GuestEmail:         strings.TrimSpace(input.GuestEmail),
		GuestPhone:         strings.TrimSpace(input.GuestPhone),
		VisitDate:          visitDate,
		SlotsBooked:        sel.Guests(),
		TotalAmount:        quote.Total,
		BookingDetails:     quote.Details(input.TripNote),
		ReferralTrackingID: input.ReferralTrackingID,
	}

	if quote.Total == 0 {
		booking, err := s.CreateDirect(ctx, draft)
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{Quote: quote, Booking: booking}, nil
	}

	phone := input.PaymentPhone
	if phone == "" {
		phone = input.GuestPhone
	}
	initiation, err := s.payments.Initiate(ctx, payment.PaymentRequest{
		PhoneNumber: phone,
		Amount:      quote.Total,
		ItemName:    item.Name(),
		Draft:       draft,
	})
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{Quote: quote, Payment: initiation}, nil
}

// CreateDirect books a zero-amount draft without any payment.
func (s *BookingService) CreateDirect(ctx context.Context, draft domain.BookingDraft) (*domain.Booking, error) {
	if draft.TotalAmount != 0 {
		return nil, domain.NewValidationError("total_amount", "direct bookings must be free")
	}

	booking := draft.Booking()
	booking.Status = domain.BookingStatusConfirmed
	booking.PaymentStatus = domain.PaymentStatusPaid
	booking.PaymentMethod = domain.PaymentMethodFree

	var item *domain.ItemRecord
	if _, err := s.bookings.Create(ctx, booking, s.admit(booking, &item)); err != nil {
		return nil, err
	}

	s.logger.Info("free booking created", zap.String("booking_id", booking.ID), zap.String("item_id", booking.ItemID))
	s.publishEvent(ctx, "booking_created", booking)
	s.notify(ctx, guestNotification(kafka.NotificationBookingConfirmed, booking, item, "Your booking is confirmed."))
	return booking, nil
}

// CreateFromPayment materializes the draft carried by a completed payment.
// The stored snapshot is authoritative and is never repriced. Calling it
// again for the same payment returns the existing booking and notifies nobody.
func (s *BookingService) CreateFromPayment(ctx context.Context, pending *domain.PendingPayment, receipt string) (*domain.Booking, error) {
	if pending.PaymentStatus != domain.PendingStatusCompleted {
		return nil, fmt.Errorf("payment %s is %s, not completed", pending.CheckoutRequestID, pending.PaymentStatus)
	}

	booking := pending.BookingData.Booking()
	checkoutID := pending.CheckoutRequestID
	booking.CheckoutRequestID = &checkoutID
	booking.Status = domain.BookingStatusConfirmed
	booking.PaymentStatus = domain.PaymentStatusPaid
	booking.PaymentMethod = domain.PaymentMethodMpesa
	booking.PaymentPhone = pending.PhoneNumber

	var item *domain.ItemRecord
	created, err := s.bookings.Create(ctx, booking, s.admit(booking, &item))

	var capErr *domain.CapacityExceededError
	if errors.As(err, &capErr) {
		// Money arrived but the last slots went to someone else.
		s.logger.Warn("capacity lost after payment, recording rejected booking",
			zap.String("checkout_request_id", checkoutID),
			zap.String("item_id", booking.ItemID),
			zap.Int("requested", capErr.Requested),
			zap.Int("remaining", capErr.Remaining),
		)
		booking.Status = domain.BookingStatusRejected
		created, err = s.bookings.Create(ctx, booking, nil)
	}
	if err != nil {
		return nil, err
	}
	if !created {
		s.logger.Info("booking already materialized for payment",
			zap.String("checkout_request_id", checkoutID),
			zap.String("booking_id", booking.ID),
		)
		return booking, nil
	}

	if item == nil {
		item = s.lookupItem(ctx, booking.ItemID)
	}

	s.logger.Info("booking created from payment",
		zap.String("booking_id", booking.ID),
		zap.String("checkout_request_id", checkoutID),
		zap.String("receipt", receipt),
		zap.String("status", string(booking.Status)),
	)
	s.publishEvent(ctx, "booking_created", booking)

	if booking.Status == domain.BookingStatusRejected {
		msg := fmt.Sprintf("Payment %s was received but the item is fully booked. A refund will be arranged.", receipt)
		s.notify(ctx,
			guestNotification(kafka.NotificationBookingRejected, booking, item, msg),
			hostNotification(kafka.NotificationBookingRejected, kafka.RecipientHost, booking, item, msg),
			hostNotification(kafka.NotificationBookingRejected, kafka.RecipientAdmin, booking, item, msg),
		)
		return booking, nil
	}

	s.notify(ctx,
		guestNotification(kafka.NotificationBookingConfirmed, booking, item, fmt.Sprintf("Payment received (receipt %s). Your booking is confirmed.", receipt)),
		hostNotification(kafka.NotificationNewBooking, kafka.RecipientHost, booking, item, fmt.Sprintf("New paid booking for %d guest(s).", booking.SlotsBooked)),
	)
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

// CancelBooking releases the booking's slots. Cancelling twice is a no-op.
func (s *BookingService) CancelBooking(ctx context.Context, id string) (*domain.Booking, error) {
	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case domain.BookingStatusCancelled, domain.BookingStatusRejected:
		return current, nil
	case domain.BookingStatusCompleted:
		return nil, domain.NewValidationError("status", "completed bookings cannot be cancelled")
	}

	updated, err := s.bookings.UpdateStatus(ctx, id, domain.BookingStatusCancelled)
	if err != nil {
		return nil, err
	}

	item := s.lookupItem(ctx, updated.ItemID)
	s.publishEvent(ctx, "booking_cancelled", updated)
	s.notify(ctx,
		guestNotification(kafka.NotificationBookingCancelled, updated, item, "Your booking has been cancelled."),
		hostNotification(kafka.NotificationBookingCancelled, kafka.RecipientHost, updated, item, "A booking was cancelled."),
	)
	return updated, nil
}

// admit builds the in-transaction capacity rule and captures the locked item.
func (s *BookingService) admit(booking *domain.Booking, captured **domain.ItemRecord) repository.AdmitFunc {
	return func(record *domain.ItemRecord, usage []domain.SlotUsage) error {
		*captured = record
		item, err := record.Item()
		if err != nil {
			return err
		}
		return s.ledger.Admit(item, usage, booking.VisitDate, booking.SlotsBooked, s.clock.Now())
	}
}

func (s *BookingService) lookupItem(ctx context.Context, id string) *domain.ItemRecord {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("item lookup for notifications failed", zap.String("item_id", id), zap.Error(err))
		return nil
	}
	return item
}

func (s *BookingService) publishEvent(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:          eventType,
		BookingID:     booking.ID,
		ItemID:        booking.ItemID,
		BookingType:   string(booking.BookingType),
		Status:        string(booking.Status),
		PaymentStatus: string(booking.PaymentStatus),
		SlotsBooked:   booking.SlotsBooked,
		TotalAmount:   booking.TotalAmount,
		VisitDate:     formatDate(booking.VisitDate),
		OccurredAt:    s.clock.Now(),
	}
	if booking.CheckoutRequestID != nil {
		event.CheckoutRequestID = *booking.CheckoutRequestID
	}
	if err := s.producer.Publish(ctx, s.bookingTopic, booking.ID, event); err != nil {
		s.logger.Warn("failed to publish booking event", zap.String("type", eventType), zap.String("booking_id", booking.ID), zap.Error(err))
	}
}

// notify never fails the caller; the booking is already committed.
func (s *BookingService) notify(ctx context.Context, events ...kafka.NotificationEvent) {
	if s.producer == nil || s.notificationsTopic == "" {
		return
	}
	for _, event := range events {
		event.CreatedAt = s.clock.Now()
		if err := s.producer.Publish(ctx, s.notificationsTopic, event.BookingID, event); err != nil {
			s.logger.Warn("failed to publish notification",
				zap.String("type", string(event.Type)),
				zap.String("recipient", string(event.Recipient)),
				zap.String("booking_id", event.BookingID),
				zap.Error(err),
			)
		}
	}
}

func guestNotification(t kafka.NotificationType, b *domain.Booking, item *domain.ItemRecord, message string) kafka.NotificationEvent {
	event := baseNotification(t, kafka.RecipientGuest, b, item, message)
	event.Email = b.GuestEmail
	event.Name = b.GuestName
	if b.UserID != nil {
		event.UserID = *b.UserID
	}
	return event
}

func hostNotification(t kafka.NotificationType, recipient kafka.Recipient, b *domain.Booking, item *domain.ItemRecord, message string) kafka.NotificationEvent {
	event := baseNotification(t, recipient, b, item, message)
	if recipient == kafka.RecipientHost && item != nil {
		event.UserID = item.CreatedBy
		event.Email = item.ContactEmail
	}
	return event
}

func baseNotification(t kafka.NotificationType, recipient kafka.Recipient, b *domain.Booking, item *domain.ItemRecord, message string) kafka.NotificationEvent {
	event := kafka.NotificationEvent{
		Type:      t,
		Recipient: recipient,
		BookingID: b.ID,
		ItemID:    b.ItemID,
		Amount:    b.TotalAmount,
		VisitDate: formatDate(b.VisitDate),
		Message:   message,
	}
	if item != nil {
		event.ItemName = item.Name
	}
	if b.CheckoutRequestID != nil {
		event.CheckoutID = *b.CheckoutRequestID
	}
	return event
}

func selection(item domain.BookableItem, input CheckoutInput) (pricing.Selection, error) {
	sel := pricing.Selection{Adults: input.Adults, Children: input.Children}

	offered := make(map[string]domain.Facility, len(item.Facilities()))
	for _, f := range item.Facilities() {
		offered[f.Name] = f
	}
	for i, in := range input.Facilities {
		field := fmt.Sprintf("facilities[%d]", i)
		f, ok := offered[in.Name]
		if !ok {
			return sel, domain.NewValidationError(field, fmt.Sprintf("%q is not offered", in.Name))
		}
		start, err := parseOptionalDate(in.StartDate)
		if err != nil {
			return sel, domain.NewValidationError(field, "invalid startDate")
		}
		end, err := parseOptionalDate(in.EndDate)
		if err != nil {
			return sel, domain.NewValidationError(field, "invalid endDate")
		}
		sel.Facilities = append(sel.Facilities, pricing.SelectedFacility{Name: f.Name, PricePerDay: f.PricePerDay, StartDate: start, EndDate: end})
	}

	activities := make(map[string]domain.Activity, len(item.Activities()))
	for _, a := range item.Activities() {
		activities[a.Name] = a
	}
	for i, in := range input.Activities {
		a, ok := activities[in.Name]
		if !ok {
			return sel, domain.NewValidationError(fmt.Sprintf("activities[%d]", i), fmt.Sprintf("%q is not offered", in.Name))
		}
		sel.Activities = append(sel.Activities, pricing.SelectedActivity{Name: a.Name, PricePerPerson: a.PricePerPerson, NumberOfPeople: in.NumberOfPeople})
	}
	return sel, nil
}

// resolveVisitDate uses the trip's own date for fixed-date trips and events.
func resolveVisitDate(item domain.BookableItem, raw string) (*time.Time, error) {
	if trip, ok := item.(*domain.Trip); ok && !trip.FlexibleDate() && trip.Date != nil {
		d := domain.StartOfDay(*trip.Date)
		return &d, nil
	}
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return nil, domain.NewValidationError("visit_date", "must be YYYY-MM-DD")
	}
	return &d, nil
}

func parseOptionalDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(domain.DateLayout)
}

var (
	_ BookingUseCase              = (*BookingService)(nil)
	_ payment.BookingMaterializer = (*BookingService)(nil)
)
