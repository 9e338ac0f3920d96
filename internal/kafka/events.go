package kafka

import "time"

type NotificationType string

const (
	NotificationBookingConfirmed NotificationType = "booking_confirmed"
	NotificationNewBooking       NotificationType = "new_booking"
	NotificationBookingRejected  NotificationType = "booking_rejected"
	NotificationBookingCancelled NotificationType = "booking_cancelled"
	NotificationPaymentFailed    NotificationType = "payment_failed"
	NotificationRescheduled      NotificationType = "booking_rescheduled"
)

type Recipient string

const (
	RecipientGuest Recipient = "guest"
	RecipientHost  Recipient = "host"
	RecipientAdmin Recipient = "admin"
)

// NotificationEvent is one message for one recipient.
type NotificationEvent struct {
	Type       NotificationType `json:"type"`
	Recipient  Recipient        `json:"recipient"`
	UserID     string           `json:"user_id,omitempty"`
	Email      string           `json:"email,omitempty"`
	Name       string           `json:"name,omitempty"`
	BookingID  string           `json:"booking_id,omitempty"`
	ItemID     string           `json:"item_id"`
	ItemName   string           `json:"item_name,omitempty"`
	Amount     int64            `json:"amount,omitempty"`
	VisitDate  string           `json:"visit_date,omitempty"`
	OldDate    string           `json:"old_date,omitempty"`
	CheckoutID string           `json:"checkout_request_id,omitempty"`
	Message    string           `json:"message"`
	CreatedAt  time.Time        `json:"created_at"`
}

// BookingEvent is the lifecycle record published for downstream consumers.
type BookingEvent struct {
	Type              string    `json:"type"`
	BookingID         string    `json:"booking_id"`
	ItemID            string    `json:"item_id"`
	BookingType       string    `json:"booking_type"`
	Status            string    `json:"status"`
	PaymentStatus     string    `json:"payment_status"`
	SlotsBooked       int       `json:"slots_booked"`
	TotalAmount       int64     `json:"total_amount"`
	VisitDate         string    `json:"visit_date,omitempty"`
	CheckoutRequestID string    `json:"checkout_request_id,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}
