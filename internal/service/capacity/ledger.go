// Package capacity derives remaining inventory from booking snapshots.
// Nothing here mutates state; the write side calls Admit inside its transaction.
package capacity

import (
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
)

const DefaultLowThreshold = 10

type AvailabilityState string

const (
	StateAvailable AvailabilityState = "available"
	StateLow       AvailabilityState = "low"
	StateSoldOut   AvailabilityState = "sold_out"
)

type DateReason string

const (
	DateOpen        DateReason = ""
	DatePast        DateReason = "past_date"
	DateClosed      DateReason = "closed_day"
	DateFullyBooked DateReason = "fully_booked"
	DateOverLimit   DateReason = "per_booking_limit"
)

type Snapshot struct {
	Tracked   bool              `json:"tracked"`
	Capacity  int               `json:"capacity"`
	Booked    int               `json:"booked"`
	Remaining int               `json:"remaining"`
	State     AvailabilityState `json:"state"`
	SoldOut   bool              `json:"sold_out"`
}

type DateCheck struct {
	Date      string     `json:"date"`
	Available bool       `json:"available"`
	Reason    DateReason `json:"reason,omitempty"`
	Booked    int        `json:"booked"`
	Remaining int        `json:"remaining"`
}

type Ledger struct {
	lowThreshold int
}

func NewLedger(lowThreshold int) *Ledger {
	if lowThreshold <= 0 {
		lowThreshold = DefaultLowThreshold
	}
	return &Ledger{lowThreshold: lowThreshold}
}

// Booked sums slots over bookings that still hold capacity.
func Booked(usage []domain.SlotUsage, excludeID string) int {
	total := 0
	for _, u := range usage {
		if !u.Status.HoldsCapacity() || (excludeID != "" && u.BookingID == excludeID) {
			continue
		}
		total += u.SlotsBooked
	}
	return total
}

// Snapshot classifies item-level remaining capacity. Remaining is clamped at zero.
// A per-booking limit caps each booking, so such items never sell out and
// Remaining is the largest booking still accepted.
func (l *Ledger) Snapshot(item domain.CapacityTracked, usage []domain.SlotUsage) Snapshot {
	capacity, tracked := item.Capacity()
	booked := Booked(usage, "")
	if !tracked {
		return Snapshot{Booked: booked, State: StateAvailable}
	}
	if item.Scope() == domain.ScopePerBooking {
		return Snapshot{Tracked: true, Capacity: capacity, Booked: booked, Remaining: capacity, State: StateAvailable}
	}

	remaining := capacity - booked
	s := Snapshot{Tracked: true, Capacity: capacity, Booked: booked, Remaining: max(remaining, 0)}
	switch {
	case capacity > 0 && remaining <= 0:
		s.State = StateSoldOut
		s.SoldOut = true
	case remaining > 0 && remaining <= l.lowThreshold:
		s.State = StateLow
	default:
		s.State = StateAvailable
	}
	return s
}

// BookedByDate groups slots by visit date, skipping undated bookings and excludeID.
func (l *Ledger) BookedByDate(usage []domain.SlotUsage, excludeID string) map[string]int {
	byDate := make(map[string]int)
	for _, u := range usage {
		if u.VisitDate == nil || !u.Status.HoldsCapacity() {
			continue
		}
		if excludeID != "" && u.BookingID == excludeID {
			continue
		}
		byDate[u.VisitDate.Format(domain.DateLayout)] += u.SlotsBooked
	}
	return byDate
}

// CheckDate decides whether requested slots fit on date.
func (l *Ledger) CheckDate(item domain.CapacityTracked, usage []domain.SlotUsage, date time.Time, requested int, excludeID string, now time.Time) DateCheck {
	return l.checkDate(item, l.BookedByDate(usage, excludeID), date, requested, now)
}

// Calendar runs CheckDate for every day in [from, to].
func (l *Ledger) Calendar(item domain.CapacityTracked, usage []domain.SlotUsage, from, to time.Time, requested int, excludeID string, now time.Time) []DateCheck {
	byDate := l.BookedByDate(usage, excludeID)
	from = domain.StartOfDay(from)
	to = domain.StartOfDay(to)

	var days []DateCheck
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, l.checkDate(item, byDate, d, requested, now))
	}
	return days
}

func (l *Ledger) checkDate(item domain.CapacityTracked, byDate map[string]int, date time.Time, requested int, now time.Time) DateCheck {
	key := date.Format(domain.DateLayout)
	booked := byDate[key]
	capacity, tracked := item.Capacity()

	perBooking := item.Scope() == domain.ScopePerBooking

	check := DateCheck{Date: key, Booked: booked, Available: true}
	switch {
	case perBooking:
		check.Remaining = capacity
	case tracked:
		check.Remaining = max(capacity-booked, 0)
	}

	switch {
	case key < now.Format(domain.DateLayout):
		check.Available = false
		check.Reason = DatePast
	case !openOn(item.WorkingDays(), date.Weekday()):
		check.Available = false
		check.Reason = DateClosed
	case perBooking && requested > capacity:
		check.Available = false
		check.Reason = DateOverLimit
	case tracked && !perBooking && booked+requested > capacity:
		check.Available = false
		check.Reason = DateFullyBooked
	}
	return check
}

// Admit is the write-side rule: it fails with CapacityExceededError when the
// requested slots do not fit in the scope the item competes in.
func (l *Ledger) Admit(item domain.BookableItem, usage []domain.SlotUsage, visitDate *time.Time, requested int, now time.Time) error {
	capacity, _ := item.Capacity()
	fail := func(remaining int, reason string) error {
		return &domain.CapacityExceededError{
			ItemID:    item.ItemID(),
			Date:      visitDate,
			Requested: requested,
			Remaining: max(remaining, 0),
			Reason:    reason,
		}
	}

	if visitDate != nil {
		check := l.checkDate(item, nil, *visitDate, 0, now)
		if check.Reason == DatePast || check.Reason == DateClosed {
			return fail(check.Remaining, string(check.Reason))
		}
	}

	switch item.Scope() {
	case domain.ScopeNone:
		return nil
	case domain.ScopePerBooking:
		if requested > capacity {
			return fail(capacity, string(DateOverLimit))
		}
	case domain.ScopeItem:
		remaining := capacity - Booked(usage, "")
		if requested > remaining {
			return fail(remaining, string(StateSoldOut))
		}
	case domain.ScopeDate:
		if visitDate == nil {
			return domain.NewValidationError("visit_date", "a visit date is required for this item")
		}
		check := l.CheckDate(item, usage, *visitDate, requested, "", now)
		if !check.Available {
			return fail(check.Remaining, string(check.Reason))
		}
	}
	return nil
}

func openOn(workingDays []time.Weekday, day time.Weekday) bool {
	if len(workingDays) == 0 {
		return true
	}
	for _, d := range workingDays {
		if d == day {
			return true
		}
	}
	return false
}
