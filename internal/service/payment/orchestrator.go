// Package payment drives STK-push payments from initiation to a terminal
// status. It never creates bookings; the provider callback does.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/mpesa"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 40 * time.Second
)

// State is the client-visible state of one payment attempt.
type State string

const (
	StateInitiated State = "INITIATED"
	StatePending   State = "PENDING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
	StateTimedOut  State = "TIMED_OUT"
)

type PaymentUseCase interface {
	Initiate(ctx context.Context, req PaymentRequest) (*Initiation, error)
	Await(ctx context.Context, checkoutRequestID string) (*Attempt, error)
	Status(ctx context.Context, checkoutRequestID string) (*domain.PendingPayment, error)
}

type Provider interface {
	STKPush(ctx context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.QueryResponse, error)
}

type Cache interface {
	GetPaymentStatus(ctx context.Context, checkoutRequestID string) (*domain.PaymentStatusSnapshot, error)
	SetPaymentStatus(ctx context.Context, snap domain.PaymentStatusSnapshot) error
	AcquireInitiationLock(ctx context.Context, phone, itemID string, ttl time.Duration) (bool, error)
	ReleaseInitiationLock(ctx context.Context, phone, itemID string) error
}

type Orchestrator struct {
	payments     repository.PendingPaymentRepository
	provider     Provider
	cache        Cache
	logger       *zap.Logger
	pollInterval time.Duration
	pollTimeout  time.Duration
	lockTTL      time.Duration
}

type OrchestratorOption func(*Orchestrator)

func WithPolling(interval, timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if interval > 0 {
			o.pollInterval = interval
		}
		if timeout > 0 {
			o.pollTimeout = timeout
		}
	}
}

func WithInitiationLock(ttl time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.lockTTL = ttl
	}
}

func NewOrchestrator(payments repository.PendingPaymentRepository, provider Provider, cache Cache, logger *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		payments:     payments,
		provider:     provider,
		cache:        cache,
		logger:       logger,
		pollInterval: DefaultPollInterval,
		pollTimeout:  DefaultPollTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.lockTTL == 0 {
		o.lockTTL = o.pollTimeout + 20*time.Second
	}
	return o
}

type PaymentRequest struct {
	PhoneNumber string
	Amount      int64
	ItemName    string
	Draft       domain.BookingDraft
}

type Initiation struct {
	CheckoutRequestID string `json:"checkout_request_id"`
	MerchantRequestID string `json:"merchant_request_id"`
	CustomerMessage   string `json:"customer_message,omitempty"`
	State             State  `json:"state"`
}

// Attempt is the outcome of Await. TimedOut is set when the outcome came
// from the fallback status query.
type Attempt struct {
	CheckoutRequestID string                      `json:"checkout_request_id"`
	State             State                       `json:"state"`
	PaymentStatus     domain.PendingPaymentStatus `json:"payment_status"`
	ResultDesc        string                      `json:"result_desc,omitempty"`
	TimedOut          bool                        `json:"timed_out"`
}

// Initiate sends the STK push and records the pending payment with the full
// booking draft so the callback can materialize it later.
func (o *Orchestrator) Initiate(ctx context.Context, req PaymentRequest) (*Initiation, error) {
	phone, err := mpesa.NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, domain.NewValidationError("phone_number", err.Error())
	}
	if req.Amount < 1 {
		return nil, domain.NewValidationError("amount", "must be at least 1")
	}
	itemID := req.Draft.ItemID

	locked := false
	if o.cache != nil {
		ok, err := o.cache.AcquireInitiationLock(ctx, phone, itemID, o.lockTTL)
		switch {
		case err != nil:
			o.logger.Warn("initiation lock unavailable, continuing without it", zap.String("item_id", itemID), zap.Error(err))
		case !ok:
			return nil, domain.ErrPaymentInProgress
		default:
			locked = true
		}
	}
	release := func() {
		if locked {
			if err := o.cache.ReleaseInitiationLock(ctx, phone, itemID); err != nil {
				o.logger.Warn("failed to release initiation lock", zap.String("item_id", itemID), zap.Error(err))
			}
		}
	}

	resp, err := o.provider.STKPush(ctx, mpesa.STKPushRequest{
		PhoneNumber:      phone,
		Amount:           req.Amount,
		AccountReference: AccountReference(itemID),
		Description:      req.ItemName,
	})
	if err != nil {
		release()
		return nil, initiationError(err)
	}

	pending := &domain.PendingPayment{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		PhoneNumber:       phone,
		Amount:            req.Amount,
		BookingData:       req.Draft,
		PaymentStatus:     domain.PendingStatusPending,
	}
	if err := o.payments.Create(ctx, pending); err != nil {
		// The push is already on the payer's phone; the callback for it will find no row.
		release()
		o.logger.Error("failed to persist pending payment",
			zap.String("checkout_request_id", resp.CheckoutRequestID),
			zap.String("item_id", itemID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("persist pending payment: %w", err)
	}

	o.logger.Info("payment initiated",
		zap.String("checkout_request_id", resp.CheckoutRequestID),
		zap.String("item_id", itemID),
		zap.Int64("amount", req.Amount),
	)
	return &Initiation{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		CustomerMessage:   resp.CustomerMessage,
		State:             StatePending,
	}, nil
}

// Await polls until the payment reaches a terminal status or the poll budget
// runs out, then asks the provider once. Read errors count as still pending.
func (o *Orchestrator) Await(ctx context.Context, checkoutRequestID string) (*Attempt, error) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(o.pollTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return o.fallback(ctx, checkoutRequestID)
		case <-ticker.C:
			if attempt, done := o.poll(ctx, checkoutRequestID); done {
				return attempt, nil
			}
		}
	}
}

// Status is a single read of the pending payment.
func (o *Orchestrator) Status(ctx context.Context, checkoutRequestID string) (*domain.PendingPayment, error) {
	return o.payments.GetByCheckoutID(ctx, checkoutRequestID)
}

func (o *Orchestrator) poll(ctx context.Context, checkoutRequestID string) (*Attempt, bool) {
	if o.cache != nil {
		snap, err := o.cache.GetPaymentStatus(ctx, checkoutRequestID)
		if err != nil {
			o.logger.Debug("payment status cache read failed", zap.String("checkout_request_id", checkoutRequestID), zap.Error(err))
		} else if snap != nil && snap.Status.Terminal() {
			return attemptFor(checkoutRequestID, snap.Status, snap.ResultDesc), true
		}
	}

	p, err := o.payments.GetByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		o.logger.Debug("pending payment read failed", zap.String("checkout_request_id", checkoutRequestID), zap.Error(err))
		return nil, false
	}
	if !p.PaymentStatus.Terminal() {
		return nil, false
	}
	desc := ""
	if p.ResultDesc != nil {
		desc = *p.ResultDesc
	}
	return attemptFor(checkoutRequestID, p.PaymentStatus, desc), true
}

func (o *Orchestrator) fallback(ctx context.Context, checkoutRequestID string) (*Attempt, error) {
	o.logger.Info("payment poll budget exhausted, querying provider", zap.String("checkout_request_id", checkoutRequestID))

	resp, err := o.provider.QueryStatus(ctx, checkoutRequestID)
	if err == nil && resp.Succeeded() {
		return &Attempt{
			CheckoutRequestID: checkoutRequestID,
			State:             StateCompleted,
			PaymentStatus:     domain.PendingStatusCompleted,
			ResultDesc:        resp.ResultDesc,
			TimedOut:          true,
		}, nil
	}

	reason := "no confirmation received within the payment window"
	switch {
	case err != nil:
		reason = fmt.Sprintf("status query failed: %v", err)
	case resp.ResultDesc != "":
		reason = resp.ResultDesc
	}
	attempt := &Attempt{
		CheckoutRequestID: checkoutRequestID,
		State:             StateFailed,
		PaymentStatus:     domain.PendingStatusFailed,
		ResultDesc:        reason,
		TimedOut:          true,
	}
	return attempt, &domain.PaymentTimeoutError{CheckoutRequestID: checkoutRequestID, Reason: reason}
}

func attemptFor(checkoutRequestID string, status domain.PendingPaymentStatus, desc string) *Attempt {
	state := StateFailed
	if status == domain.PendingStatusCompleted {
		state = StateCompleted
	}
	return &Attempt{CheckoutRequestID: checkoutRequestID, State: state, PaymentStatus: status, ResultDesc: desc}
}

func initiationError(err error) error {
	var apiErr *mpesa.APIError
	if errors.As(err, &apiErr) {
		return &domain.PaymentInitiationError{Code: apiErr.ErrorCode, Message: apiErr.ErrorMessage}
	}
	return &domain.PaymentInitiationError{Message: err.Error()}
}

// AccountReference is the short reference shown on the payer's statement.
func AccountReference(itemID string) string {
	ref := strings.ToUpper(strings.ReplaceAll(itemID, "-", ""))
	if len(ref) > 10 {
		ref = ref[:10]
	}
	return "BK" + ref
}

var _ PaymentUseCase = (*Orchestrator)(nil)
