package domain

import "time"

type PendingPaymentStatus string

const (
	PendingStatusPending   PendingPaymentStatus = "pending"
	PendingStatusCompleted PendingPaymentStatus = "completed"
	PendingStatusFailed    PendingPaymentStatus = "failed"
)

func (s PendingPaymentStatus) Terminal() bool {
	return s == PendingStatusCompleted || s == PendingStatusFailed
}

// PendingPayment is keyed by the provider's checkout request id and is
// resolved exactly once by the payment callback.
type PendingPayment struct {
	CheckoutRequestID  string
	MerchantRequestID  string
	PhoneNumber        string
	Amount             int64
	BookingData        BookingDraft
	PaymentStatus      PendingPaymentStatus
	ResultCode         *int
	ResultDesc         *string
	MpesaReceiptNumber *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PaymentResult is what the provider told us about a payment attempt.
type PaymentResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     string
}

func (r PaymentResult) Succeeded() bool { return r.ResultCode == 0 }

func (r PaymentResult) Status() PendingPaymentStatus {
	if r.Succeeded() {
		return PendingStatusCompleted
	}
	return PendingStatusFailed
}

// PaymentStatusSnapshot is the short-lived copy of a resolved payment kept
// in the cache so pollers do not hit the database every tick.
type PaymentStatusSnapshot struct {
	CheckoutRequestID string               `json:"checkout_request_id"`
	Status            PendingPaymentStatus `json:"status"`
	ResultCode        int                  `json:"result_code"`
	ResultDesc        string               `json:"result_desc,omitempty"`
	ReceiptNumber     string               `json:"receipt_number,omitempty"`
}

func (r PaymentResult) Snapshot() PaymentStatusSnapshot {
	return PaymentStatusSnapshot{
		CheckoutRequestID: r.CheckoutRequestID,
		Status:            r.Status(),
		ResultCode:        r.ResultCode,
		ResultDesc:        r.ResultDesc,
		ReceiptNumber:     r.ReceiptNumber,
	}
}
