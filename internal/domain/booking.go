package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusCompleted BookingStatus = "completed"
)

// HoldsCapacity reports whether a booking in this status counts against inventory.
func (s BookingStatus) HoldsCapacity() bool {
	return s != BookingStatusCancelled && s != BookingStatusRejected
}

type BookingPaymentStatus string

const (
	PaymentStatusPending   BookingPaymentStatus = "pending"
	PaymentStatusPaid      BookingPaymentStatus = "paid"
	PaymentStatusCompleted BookingPaymentStatus = "completed"
	PaymentStatusFailed    BookingPaymentStatus = "failed"
)

const (
	PaymentMethodFree  = "free"
	PaymentMethodMpesa = "mpesa"
)

// DateLayout is the calendar-day format used in booking_details and date keys.
const DateLayout = "2006-01-02"

type FacilityDetail struct {
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type ActivityDetail struct {
	Name           string `json:"name"`
	Price          int64  `json:"price"`
	NumberOfPeople int    `json:"numberOfPeople"`
}

// BookingDetails is the priced snapshot read back by host and admin views.
// Its JSON shape is a fixed contract.
type BookingDetails struct {
	Adults     int              `json:"adults"`
	Children   int              `json:"children"`
	Facilities []FacilityDetail `json:"facilities"`
	Activities []ActivityDetail `json:"activities"`
	TripNote   string           `json:"trip_note,omitempty"`
}

type Booking struct {
	ID                 string               `json:"id"`
	UserID             *string              `json:"user_id,omitempty"`
	BookingType        ItemKind             `json:"booking_type"`
	ItemID             string               `json:"item_id"`
	VisitDate          *time.Time           `json:"visit_date,omitempty"`
	TotalAmount        int64                `json:"total_amount"`
	SlotsBooked        int                  `json:"slots_booked"`
	Status             BookingStatus        `json:"status"`
	PaymentStatus      BookingPaymentStatus `json:"payment_status"`
	PaymentMethod      string               `json:"payment_method"`
	PaymentPhone       string               `json:"payment_phone,omitempty"`
	IsGuestBooking     bool                 `json:"is_guest_booking"`
	GuestName          string               `json:"guest_name,omitempty"`
	GuestEmail         string               `json:"guest_email,omitempty"`
	GuestPhone         string               `json:"guest_phone,omitempty"`
	Details            BookingDetails       `json:"booking_details"`
	CheckoutRequestID  *string              `json:"checkout_request_id,omitempty"`
	ReferralTrackingID string               `json:"referral_tracking_id,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// SlotUsage is the slice of a booking the capacity ledger needs.
type SlotUsage struct {
	BookingID   string
	VisitDate   *time.Time
	SlotsBooked int
	Status      BookingStatus
}

func (b *Booking) Usage() SlotUsage {
	return SlotUsage{BookingID: b.ID, VisitDate: b.VisitDate, SlotsBooked: b.SlotsBooked, Status: b.Status}
}

// BookingDraft is a priced, not yet persisted booking. It travels inside
// PendingPayment.BookingData until the payment callback materializes it.
type BookingDraft struct {
	ItemID             string         `json:"item_id"`
	BookingType        ItemKind       `json:"booking_type"`
	UserID             *string        `json:"user_id,omitempty"`
	IsGuestBooking     bool           `json:"is_guest_booking"`
	GuestName          string         `json:"guest_name,omitempty"`
	GuestEmail         string         `json:"guest_email,omitempty"`
	GuestPhone         string         `json:"guest_phone,omitempty"`
	VisitDate          *time.Time     `json:"visit_date,omitempty"`
	SlotsBooked        int            `json:"slots_booked"`
	TotalAmount        int64          `json:"total_amount"`
	BookingDetails     BookingDetails `json:"booking_details"`
	ReferralTrackingID string         `json:"referral_tracking_id,omitempty"`
}

// Booking builds the booking row from the draft exactly as priced.
func (d BookingDraft) Booking() *Booking {
	return &Booking{
		UserID:         d.UserID,
		BookingType:    d.BookingType,
		ItemID:         d.ItemID,
		VisitDate:      d.VisitDate,
		TotalAmount:    d.TotalAmount,
		SlotsBooked:    d.SlotsBooked,
		IsGuestBooking: d.IsGuestBooking,
		GuestName:      d.GuestName,
		GuestEmail:     d.GuestEmail,
		GuestPhone:     d.GuestPhone,
		Details:        d.BookingDetails,

		ReferralTrackingID: d.ReferralTrackingID,
	}
}

// Owner identifies who should hear about this booking.
func (b *Booking) Owner() string {
	if b.UserID != nil && *b.UserID != "" {
		return *b.UserID
	}
	if b.GuestEmail != "" {
		return b.GuestEmail
	}
	return b.GuestPhone
}

type RescheduleLogEntry struct {
	ID        string     `json:"id"`
	BookingID string     `json:"booking_id"`
	Actor     string     `json:"actor"`
	OldDate   *time.Time `json:"old_date,omitempty"`
	NewDate   time.Time  `json:"new_date"`
	CreatedAt time.Time  `json:"created_at"`
}
