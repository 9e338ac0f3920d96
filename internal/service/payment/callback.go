package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/kafka"
	"github.com/Domenick1991/travelbooking/internal/mpesa"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"go.uber.org/zap"
)

// BookingMaterializer turns a completed payment into a booking. It must be
// idempotent on the checkout request id.
type BookingMaterializer interface {
	CreateFromPayment(ctx context.Context, pending *domain.PendingPayment, receipt string) (*domain.Booking, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type CallbackHandler interface {
	Handle(ctx context.Context, body []byte) mpesa.CallbackAck
}

// CallbackProcessor applies provider results to pending payments.
type CallbackProcessor struct {
	payments           repository.PendingPaymentRepository
	bookings           BookingMaterializer
	cache              Cache
	producer           Producer
	notificationsTopic string
	logger             *zap.Logger
}

func NewCallbackProcessor(
	payments repository.PendingPaymentRepository,
	bookings BookingMaterializer,
	cache Cache,
	producer Producer,
	notificationsTopic string,
	logger *zap.Logger,
) *CallbackProcessor {
	return &CallbackProcessor{
		payments:           payments,
		bookings:           bookings,
		cache:              cache,
		producer:           producer,
		notificationsTopic: notificationsTopic,
		logger:             logger,
	}
}

// Handle always acknowledges. Anything that goes wrong is logged; the
// provider only retries on a non-success answer, which we never give.
func (p *CallbackProcessor) Handle(ctx context.Context, body []byte) mpesa.CallbackAck {
	cb, err := mpesa.ParseCallback(body)
	if err != nil {
		p.logger.Error("discarding malformed payment callback", zap.Error(err), zap.ByteString("body", body))
		return mpesa.Accepted
	}

	if err := p.Apply(ctx, cb.Result()); err != nil {
		p.logger.Error("payment callback processing failed",
			zap.String("checkout_request_id", cb.CheckoutRequestID),
			zap.Int("result_code", cb.ResultCode),
			zap.Error(err),
		)
	}
	return mpesa.Accepted
}

// Apply resolves the pending payment once and, on success, materializes the
// booking. Replays of a completed payment re-run the idempotent
// materialization so a crash between the two steps heals on retry.
func (p *CallbackProcessor) Apply(ctx context.Context, result domain.PaymentResult) error {
	pending, err := p.payments.Resolve(ctx, result)
	replay := errors.Is(err, domain.ErrAlreadyResolved)
	if err != nil && !replay {
		return fmt.Errorf("resolve pending payment %s: %w", result.CheckoutRequestID, err)
	}

	log := p.logger.With(
		zap.String("checkout_request_id", pending.CheckoutRequestID),
		zap.String("item_id", pending.BookingData.ItemID),
		zap.String("payment_status", string(pending.PaymentStatus)),
	)
	if replay {
		log.Info("payment callback replayed")
	} else {
		log.Info("pending payment resolved", zap.String("result_desc", result.ResultDesc))
	}

	p.cacheStatus(ctx, pending)

	if pending.PaymentStatus != domain.PendingStatusCompleted {
		if !replay {
			p.notifyFailure(ctx, pending)
		}
		return nil
	}

	booking, err := p.Materialize(ctx, pending)
	if err != nil {
		return err
	}
	log.Info("booking materialized from payment", zap.String("booking_id", booking.ID), zap.String("status", string(booking.Status)))
	return nil
}

// Materialize creates the booking for a completed payment. The booking
// service is idempotent on the checkout request id, so repeated calls are
// harmless.
func (p *CallbackProcessor) Materialize(ctx context.Context, pending *domain.PendingPayment) (*domain.Booking, error) {
	receipt := ""
	if pending.MpesaReceiptNumber != nil {
		receipt = *pending.MpesaReceiptNumber
	}
	booking, err := p.bookings.CreateFromPayment(ctx, pending, receipt)
	if err != nil {
		return nil, fmt.Errorf("materialize booking: %w", err)
	}
	return booking, nil
}

func (p *CallbackProcessor) cacheStatus(ctx context.Context, pending *domain.PendingPayment) {
	if p.cache == nil {
		return
	}
	snap := domain.PaymentStatusSnapshot{
		CheckoutRequestID: pending.CheckoutRequestID,
		Status:            pending.PaymentStatus,
	}
	if pending.ResultCode != nil {
		snap.ResultCode = *pending.ResultCode
	}
	if pending.ResultDesc != nil {
		snap.ResultDesc = *pending.ResultDesc
	}
	if pending.MpesaReceiptNumber != nil {
		snap.ReceiptNumber = *pending.MpesaReceiptNumber
	}
	if err := p.cache.SetPaymentStatus(ctx, snap); err != nil {
		p.logger.Warn("failed to cache payment status", zap.String("checkout_request_id", pending.CheckoutRequestID), zap.Error(err))
	}
	if err := p.cache.ReleaseInitiationLock(ctx, pending.PhoneNumber, pending.BookingData.ItemID); err != nil {
		p.logger.Warn("failed to release initiation lock", zap.String("checkout_request_id", pending.CheckoutRequestID), zap.Error(err))
	}
}

func (p *CallbackProcessor) notifyFailure(ctx context.Context, pending *domain.PendingPayment) {
	if p.producer == nil || p.notificationsTopic == "" {
		return
	}
	desc := "payment was not completed"
	if pending.ResultDesc != nil && *pending.ResultDesc != "" {
		desc = *pending.ResultDesc
	}
	draft := pending.BookingData
	event := kafka.NotificationEvent{
		Type:       kafka.NotificationPaymentFailed,
		Recipient:  kafka.RecipientGuest,
		Email:      draft.GuestEmail,
		Name:       draft.GuestName,
		ItemID:     draft.ItemID,
		Amount:     pending.Amount,
		CheckoutID: pending.CheckoutRequestID,
		Message:    desc,
		CreatedAt:  time.Now(),
	}
	if draft.UserID != nil {
		event.UserID = *draft.UserID
	}
	if err := p.producer.Publish(ctx, p.notificationsTopic, pending.CheckoutRequestID, event); err != nil {
		p.logger.Warn("failed to publish payment_failed notification", zap.String("checkout_request_id", pending.CheckoutRequestID), zap.Error(err))
	}
}

var _ CallbackHandler = (*CallbackProcessor)(nil)
