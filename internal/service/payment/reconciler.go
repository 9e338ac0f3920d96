package payment

import (
	"context"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSweepBatch = 50
	// A just-resolved payment is still being materialized by its callback.
	defaultRetryAfter = time.Minute
)

// Reconciler resolves pending payments whose callback never arrived by
// asking the provider and feeding the answer through the callback path. It
// also retries bookings for completed payments whose insert failed.
type Reconciler struct {
	payments   repository.PendingPaymentRepository
	provider   Provider
	callbacks  *CallbackProcessor
	clock      domain.Clock
	staleAfter time.Duration
	retryAfter time.Duration
	batch      int
	logger     *zap.Logger
}

func NewReconciler(
	payments repository.PendingPaymentRepository,
	provider Provider,
	callbacks *CallbackProcessor,
	clock domain.Clock,
	staleAfter time.Duration,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		payments:   payments,
		provider:   provider,
		callbacks:  callbacks,
		clock:      clock,
		staleAfter: staleAfter,
		retryAfter: defaultRetryAfter,
		batch:      defaultSweepBatch,
		logger:     logger,
	}
}

// SweepStale returns how many payments it resolved.
func (r *Reconciler) SweepStale(ctx context.Context) (int, error) {
	stale, err := r.payments.ListStale(ctx, r.clock.Now().Add(-r.staleAfter), r.batch)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, p := range stale {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}

		resp, err := r.provider.QueryStatus(ctx, p.CheckoutRequestID)
		if err != nil {
			// Daraja answers with an error while the push is still being processed.
			r.logger.Debug("stale payment still unresolved at provider", zap.String("checkout_request_id", p.CheckoutRequestID), zap.Error(err))
			continue
		}
		if resp.ResponseCode != "0" {
			continue
		}

		result := resp.Result()
		if result.CheckoutRequestID == "" {
			result.CheckoutRequestID = p.CheckoutRequestID
		}
		if err := r.callbacks.Apply(ctx, result); err != nil {
			r.logger.Error("failed to reconcile stale payment", zap.String("checkout_request_id", p.CheckoutRequestID), zap.Error(err))
			continue
		}
		resolved++
	}
	return resolved, nil
}

// RetryUnmaterialized re-runs booking creation for completed payments that
// have no booking, e.g. when the insert failed after the callback was
// acknowledged. It returns how many bookings it created.
func (r *Reconciler) RetryUnmaterialized(ctx context.Context) (int, error) {
	orphaned, err := r.payments.ListUnmaterialized(ctx, r.clock.Now().Add(-r.retryAfter), r.batch)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range orphaned {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}

		p := &orphaned[i]
		booking, err := r.callbacks.Materialize(ctx, p)
		if err != nil {
			r.logger.Error("failed to materialize completed payment", zap.String("checkout_request_id", p.CheckoutRequestID), zap.Error(err))
			continue
		}
		r.logger.Info("booking materialized by reconciler",
			zap.String("checkout_request_id", p.CheckoutRequestID),
			zap.String("booking_id", booking.ID),
			zap.String("status", string(booking.Status)),
		)
		created++
	}
	return created, nil
}
