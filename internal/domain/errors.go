package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyResolved   = errors.New("payment already resolved")
	ErrPaymentInProgress = errors.New("a payment for this item is already in progress on this phone")
)

// ValidationError is reported inline and blocks submission.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// PaymentInitiationError means the provider rejected the push. Terminal.
type PaymentInitiationError struct {
	Code    string
	Message string
}

func (e *PaymentInitiationError) Error() string {
	return fmt.Sprintf("payment initiation rejected (%s): %s", e.Code, e.Message)
}

// PaymentTimeoutError means the poll budget ran out and the fallback
// status query was inconclusive.
type PaymentTimeoutError struct {
	CheckoutRequestID string
	Reason            string
}

func (e *PaymentTimeoutError) Error() string {
	return fmt.Sprintf("payment %s timed out: %s", e.CheckoutRequestID, e.Reason)
}

type CapacityExceededError struct {
	ItemID    string
	Date      *time.Time
	Requested int
	Remaining int
	Reason    string
}

func (e *CapacityExceededError) Error() string {
	if e.Date != nil {
		return fmt.Sprintf("capacity exceeded for item %s on %s: requested %d, remaining %d (%s)",
			e.ItemID, e.Date.Format(DateLayout), e.Requested, e.Remaining, e.Reason)
	}
	return fmt.Sprintf("capacity exceeded for item %s: requested %d, remaining %d (%s)",
		e.ItemID, e.Requested, e.Remaining, e.Reason)
}

type RescheduleRule string

const (
	RuleFixedDateEvent  RescheduleRule = "fixed_date_event"
	RuleTripNotFlexible RescheduleRule = "trip_not_flexible"
	RuleWithinWindow    RescheduleRule = "within_notice_window"
	RuleBookingInactive RescheduleRule = "booking_inactive"
	RuleDateUnavailable RescheduleRule = "date_unavailable"
)

type IneligibleRescheduleError struct {
	Rule   RescheduleRule
	Reason string
}

func (e *IneligibleRescheduleError) Error() string {
	return fmt.Sprintf("booking cannot be rescheduled: %s", e.Reason)
}
