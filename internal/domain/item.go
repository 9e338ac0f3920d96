package domain

import (
	"fmt"
	"time"
)

type ItemKind string

const (
	ItemKindTrip           ItemKind = "trip"
	ItemKindEvent          ItemKind = "event"
	ItemKindHotel          ItemKind = "hotel"
	ItemKindAdventurePlace ItemKind = "adventure_place"
	ItemKindAttraction     ItemKind = "attraction"
)

func (k ItemKind) Valid() bool {
	switch k {
	case ItemKindTrip, ItemKindEvent, ItemKindHotel, ItemKindAdventurePlace, ItemKindAttraction:
		return true
	}
	return false
}

type EntryFeeType string

const (
	EntryFeeFree EntryFeeType = "free"
	EntryFeePaid EntryFeeType = "paid"
)

type DateType string

const (
	DateTypeFixed    DateType = "fixed"
	DateTypeFlexible DateType = "flexible"
	DateTypeCustom   DateType = "custom"
)

type SlotLimitType string

const (
	SlotLimitInventory  SlotLimitType = "inventory"
	SlotLimitPerBooking SlotLimitType = "per_booking"
)

// CapacityScope says which bookings a new booking competes with for capacity.
type CapacityScope int

const (
	ScopeNone CapacityScope = iota
	ScopeItem
	ScopeDate
	ScopePerBooking
)

// Tariff is the resolved entry pricing of any bookable item.
type Tariff struct {
	EntryFeeType EntryFeeType
	AdultPrice   int64
	ChildPrice   int64
}

type Facility struct {
	Name        string `json:"name"`
	PricePerDay int64  `json:"price"`
	Capacity    *int   `json:"capacity,omitempty"`
}

type Activity struct {
	Name           string `json:"name"`
	PricePerPerson int64  `json:"price"`
}

// Priceable items resolve their own tariff.
type Priceable interface {
	Tariff() Tariff
}

// CapacityTracked items expose their capacity field and the scope it applies to.
// tracked is false for items with no capacity concept.
type CapacityTracked interface {
	Capacity() (capacity int, tracked bool)
	Scope() CapacityScope
	WorkingDays() []time.Weekday
}

type BookableItem interface {
	Priceable
	CapacityTracked
	ItemID() string
	Kind() ItemKind
	Name() string
	CreatorID() string
	CreatorEmail() string
	Facilities() []Facility
	Activities() []Activity
}

// Listing carries what every variant shares.
type Listing struct {
	ID              string
	Title           string
	CreatedBy       string
	ContactEmail    string
	Workdays        []time.Weekday
	FacilityOptions []Facility
	ActivityOptions []Activity
}

func (l Listing) ItemID() string { return l.ID }

func (l Listing) Name() string { return l.Title }

func (l Listing) CreatorID() string { return l.CreatedBy }

func (l Listing) CreatorEmail() string { return l.ContactEmail }

// WorkingDays is empty when the item is open every day.
func (l Listing) WorkingDays() []time.Weekday { return l.Workdays }

func (l Listing) Facilities() []Facility { return l.FacilityOptions }

func (l Listing) Activities() []Activity { return l.ActivityOptions }

// Trip covers trips and events. Events use IsEvent.
type Trip struct {
	Listing
	IsEvent          bool
	Price            int64
	ChildPrice       int64
	AvailableTickets int
	DateType         DateType
	Date             *time.Time
	SlotLimitType    SlotLimitType
}

func (t *Trip) Kind() ItemKind {
	if t.IsEvent {
		return ItemKindEvent
	}
	return ItemKindTrip
}

func (t *Trip) Tariff() Tariff {
	fee := EntryFeePaid
	if t.Price == 0 && t.ChildPrice == 0 {
		fee = EntryFeeFree
	}
	return Tariff{EntryFeeType: fee, AdultPrice: t.Price, ChildPrice: t.ChildPrice}
}

func (t *Trip) Capacity() (int, bool) { return t.AvailableTickets, t.AvailableTickets > 0 }

func (t *Trip) Scope() CapacityScope {
	if t.AvailableTickets <= 0 {
		return ScopeNone
	}
	if t.SlotLimitType == SlotLimitPerBooking {
		return ScopePerBooking
	}
	if t.FlexibleDate() {
		return ScopeDate
	}
	return ScopeItem
}

// FlexibleDate reports whether the guest picks the visit date.
func (t *Trip) FlexibleDate() bool {
	return t.DateType == DateTypeFlexible || t.DateType == DateTypeCustom
}

type Hotel struct {
	Listing
	EntryFee       Tariff
	AvailableRooms int
}

func (h *Hotel) Kind() ItemKind { return ItemKindHotel }
func (h *Hotel) Tariff() Tariff { return h.EntryFee }
func (h *Hotel) Capacity() (int, bool) { return h.AvailableRooms, h.AvailableRooms > 0 }

func (h *Hotel) Scope() CapacityScope {
	if h.AvailableRooms <= 0 {
		return ScopeNone
	}
	return ScopeDate
}

type AdventurePlace struct {
	Listing
	EntryFee       Tariff
	AvailableSlots int
}

func (a *AdventurePlace) Kind() ItemKind { return ItemKindAdventurePlace }
func (a *AdventurePlace) Tariff() Tariff { return a.EntryFee }
func (a *AdventurePlace) Capacity() (int, bool) { return a.AvailableSlots, a.AvailableSlots > 0 }

func (a *AdventurePlace) Scope() CapacityScope {
	if a.AvailableSlots <= 0 {
		return ScopeNone
	}
	return ScopeDate
}

// Attraction has no inventory.
type Attraction struct {
	Listing
	EntryFee Tariff
}

func (a *Attraction) Kind() ItemKind { return ItemKindAttraction }
func (a *Attraction) Tariff() Tariff { return a.EntryFee }
func (a *Attraction) Capacity() (int, bool) { return 0, false }
func (a *Attraction) Scope() CapacityScope { return ScopeNone }

// ItemRecord is the flat storage shape of every variant.
type ItemRecord struct {
	ID            string         `json:"id"`
	Kind          ItemKind       `json:"kind"`
	Name          string         `json:"name"`
	CreatedBy     string         `json:"created_by"`
	ContactEmail  string         `json:"contact_email,omitempty"`
	Capacity      int            `json:"capacity"`
	SlotLimitType SlotLimitType  `json:"slot_limit_type,omitempty"`
	DateType      DateType       `json:"date_type,omitempty"`
	FixedDate     *time.Time     `json:"fixed_date,omitempty"`
	EntryFeeType  EntryFeeType   `json:"entry_fee_type"`
	AdultPrice    int64          `json:"adult_price"`
	ChildPrice    int64          `json:"child_price"`
	WorkingDays   []time.Weekday `json:"working_days,omitempty"`
	Facilities    []Facility     `json:"facilities,omitempty"`
	Activities    []Activity     `json:"activities,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Item resolves the record into its variant.
func (r ItemRecord) Item() (BookableItem, error) {
	listing := Listing{
		ID:              r.ID,
		Title:           r.Name,
		CreatedBy:       r.CreatedBy,
		ContactEmail:    r.ContactEmail,
		Workdays:        r.WorkingDays,
		FacilityOptions: r.Facilities,
		ActivityOptions: r.Activities,
	}
	fee := Tariff{EntryFeeType: r.EntryFeeType, AdultPrice: r.AdultPrice, ChildPrice: r.ChildPrice}
	if fee.EntryFeeType == "" {
		fee.EntryFeeType = EntryFeePaid
	}

	switch r.Kind {
	case ItemKindTrip, ItemKindEvent:
		slotLimit := r.SlotLimitType
		if slotLimit == "" {
			slotLimit = SlotLimitInventory
		}
		dateType := r.DateType
		if dateType == "" {
			dateType = DateTypeFixed
		}
		return &Trip{
			Listing:          listing,
			IsEvent:          r.Kind == ItemKindEvent,
			Price:            r.AdultPrice,
			ChildPrice:       r.ChildPrice,
			AvailableTickets: r.Capacity,
			DateType:         dateType,
			Date:             r.FixedDate,
			SlotLimitType:    slotLimit,
		}, nil
	case ItemKindHotel:
		return &Hotel{Listing: listing, EntryFee: fee, AvailableRooms: r.Capacity}, nil
	case ItemKindAdventurePlace:
		return &AdventurePlace{Listing: listing, EntryFee: fee, AvailableSlots: r.Capacity}, nil
	case ItemKindAttraction:
		return &Attraction{Listing: listing, EntryFee: fee}, nil
	default:
		return nil, fmt.Errorf("unknown item kind %q", r.Kind)
	}
}

var (
	_ BookableItem = (*Trip)(nil)
	_ BookableItem = (*Hotel)(nil)
	_ BookableItem = (*AdventurePlace)(nil)
	_ BookableItem = (*Attraction)(nil)
)
