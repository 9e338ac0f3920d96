// Package reschedule decides whether a booking may move to another date and
// moves it.
package reschedule

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/kafka"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"github.com/Domenick1991/travelbooking/internal/service/capacity"
	"go.uber.org/zap"
)

const (
	DefaultMinNotice    = 48 * time.Hour
	DefaultCalendarDays = 60
)

type RescheduleUseCase interface {
	Eligibility(ctx context.Context, bookingID string) (*domain.Booking, error)
	AvailableDates(ctx context.Context, bookingID string, from, to time.Time) ([]capacity.DateCheck, error)
	Reschedule(ctx context.Context, bookingID string, newDate time.Time, actor string) (*domain.Booking, *domain.RescheduleLogEntry, error)
	History(ctx context.Context, bookingID string) ([]domain.RescheduleLogEntry, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type Validator struct {
	bookings           repository.BookingRepository
	items              repository.ItemRepository
	ledger             *capacity.Ledger
	producer           Producer
	clock              domain.Clock
	logger             *zap.Logger
	minNotice          time.Duration
	calendarDays       int
	notificationsTopic string
}

type ValidatorOption func(*Validator)

func WithMinNotice(d time.Duration) ValidatorOption {
	return func(v *Validator) {
		if d > 0 {
			v.minNotice = d
		}
	}
}

func WithCalendarDays(days int) ValidatorOption {
	return func(v *Validator) {
		if days > 0 {
			v.calendarDays = days
		}
	}
}

func WithNotificationsTopic(topic string) ValidatorOption {
	return func(v *Validator) {
		v.notificationsTopic = topic
	}
}

func WithClock(clock domain.Clock) ValidatorOption {
	return func(v *Validator) {
		v.clock = clock
	}
}

func NewValidator(
	bookings repository.BookingRepository,
	items repository.ItemRepository,
	ledger *capacity.Ledger,
	producer Producer,
	logger *zap.Logger,
	opts ...ValidatorOption,
) *Validator {
	v := &Validator{
		bookings:     bookings,
		items:        items,
		ledger:       ledger,
		producer:     producer,
		clock:        domain.SystemClock,
		logger:       logger,
		minNotice:    DefaultMinNotice,
		calendarDays: DefaultCalendarDays,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Eligibility loads the booking and its item and applies the rules against
// the current clock. An ineligible booking is returned together with an
// *domain.IneligibleRescheduleError.
func (v *Validator) Eligibility(ctx context.Context, bookingID string) (*domain.Booking, error) {
	booking, item, err := v.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return booking, v.eligible(booking, item, v.clock.Now())
}

// AvailableDates returns the item's calendar for the booking's party size,
// not counting the booking's own slots. Zero bounds default to today and
// today plus the calendar window.
func (v *Validator) AvailableDates(ctx context.Context, bookingID string, from, to time.Time) ([]capacity.DateCheck, error) {
	booking, item, err := v.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	now := v.clock.Now()
	if err := v.eligible(booking, item, now); err != nil {
		return nil, err
	}

	usage, err := v.items.SlotUsage(ctx, booking.ItemID)
	if err != nil {
		return nil, fmt.Errorf("load slot usage: %w", err)
	}

	if from.IsZero() {
		from = now
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, v.calendarDays)
	}
	if to.Before(from) {
		return nil, domain.NewValidationError("to", "must not be before from")
	}
	return v.ledger.Calendar(item, usage, from, to, booking.SlotsBooked, booking.ID, now), nil
}

// Reschedule moves the booking to newDate. Eligibility and the date check
// run again inside the write transaction against fresh rows.
func (v *Validator) Reschedule(ctx context.Context, bookingID string, newDate time.Time, actor string) (*domain.Booking, *domain.RescheduleLogEntry, error) {
	newDate = domain.StartOfDay(newDate)

	var record *domain.ItemRecord
	booking, entry, err := v.bookings.Reschedule(ctx, bookingID, newDate, actor,
		func(b *domain.Booking, locked *domain.ItemRecord, usage []domain.SlotUsage) error {
			record = locked
			item, err := locked.Item()
			if err != nil {
				return err
			}
			now := v.clock.Now()
			if err := v.eligible(b, item, now); err != nil {
				return err
			}
			if b.VisitDate != nil && b.VisitDate.Format(domain.DateLayout) == newDate.Format(domain.DateLayout) {
				return domain.NewValidationError("new_date", "booking is already on this date")
			}
			check := v.ledger.CheckDate(item, usage, newDate, b.SlotsBooked, b.ID, now)
			if !check.Available {
				return &domain.IneligibleRescheduleError{
					Rule:   domain.RuleDateUnavailable,
					Reason: fmt.Sprintf("%s is not available (%s)", check.Date, check.Reason),
				}
			}
			return nil
		})
	if err != nil {
		return nil, nil, err
	}

	v.logger.Info("booking rescheduled",
		zap.String("booking_id", booking.ID),
		zap.String("actor", actor),
		zap.String("old_date", formatDate(entry.OldDate)),
		zap.String("new_date", newDate.Format(domain.DateLayout)),
	)
	v.notify(ctx, booking, record, entry)
	return booking, entry, nil
}

// History returns the booking's reschedule audit trail, oldest first.
func (v *Validator) History(ctx context.Context, bookingID string) ([]domain.RescheduleLogEntry, error) {
	if _, err := v.bookings.GetByID(ctx, bookingID); err != nil {
		return nil, err
	}
	return v.bookings.RescheduleLog(ctx, bookingID)
}

func (v *Validator) load(ctx context.Context, bookingID string) (*domain.Booking, domain.BookableItem, error) {
	booking, err := v.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	record, err := v.items.GetByID(ctx, booking.ItemID)
	if err != nil {
		return nil, nil, fmt.Errorf("load item %s: %w", booking.ItemID, err)
	}
	item, err := record.Item()
	if err != nil {
		return nil, nil, err
	}
	return booking, item, nil
}

// eligible applies the rules in order; the first failing rule wins.
func (v *Validator) eligible(b *domain.Booking, item domain.BookableItem, now time.Time) error {
	if trip, ok := item.(*domain.Trip); ok && !trip.FlexibleDate() {
		if trip.IsEvent {
			return &domain.IneligibleRescheduleError{Rule: domain.RuleFixedDateEvent, Reason: "fixed-date events cannot be rescheduled"}
		}
		return &domain.IneligibleRescheduleError{Rule: domain.RuleTripNotFlexible, Reason: "this trip runs on a fixed date"}
	}

	if b.VisitDate != nil && b.VisitDate.Sub(now) < v.minNotice {
		return &domain.IneligibleRescheduleError{
			Rule:   domain.RuleWithinWindow,
			Reason: fmt.Sprintf("visits less than %d hours away cannot be rescheduled", int(v.minNotice.Hours())),
		}
	}

	if !b.Status.HoldsCapacity() || b.Status == domain.BookingStatusCompleted {
		return &domain.IneligibleRescheduleError{
			Rule:   domain.RuleBookingInactive,
			Reason: fmt.Sprintf("booking is %s", b.Status),
		}
	}
	return nil
}

func (v *Validator) notify(ctx context.Context, b *domain.Booking, item *domain.ItemRecord, entry *domain.RescheduleLogEntry) {
	if v.producer == nil || v.notificationsTopic == "" {
		return
	}

	base := kafka.NotificationEvent{
		Type:      kafka.NotificationRescheduled,
		BookingID: b.ID,
		ItemID:    b.ItemID,
		Amount:    b.TotalAmount,
		VisitDate: entry.NewDate.Format(domain.DateLayout),
		OldDate:   formatDate(entry.OldDate),
		CreatedAt: v.clock.Now(),
	}
	if item != nil {
		base.ItemName = item.Name
	}
	base.Message = fmt.Sprintf("Booking moved from %s to %s.", orNone(base.OldDate), base.VisitDate)

	owner := base
	owner.Recipient = kafka.RecipientGuest
	owner.Email = b.GuestEmail
	owner.Name = b.GuestName
	if b.UserID != nil {
		owner.UserID = *b.UserID
	}

	creator := base
	creator.Recipient = kafka.RecipientHost
	if item != nil {
		creator.UserID = item.CreatedBy
		creator.Email = item.ContactEmail
	}

	for _, event := range []kafka.NotificationEvent{owner, creator} {
		if err := v.producer.Publish(ctx, v.notificationsTopic, b.ID, event); err != nil {
			v.logger.Warn("failed to publish reschedule notification",
				zap.String("booking_id", b.ID),
				zap.String("recipient", string(event.Recipient)),
				zap.Error(err),
			)
		}
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(domain.DateLayout)
}

func orNone(s string) string {
	if s == "" {
		return "no date"
	}
	return s
}

var _ RescheduleUseCase = (*Validator)(nil)
