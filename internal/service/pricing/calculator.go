// Package pricing turns a guest's selections into a total amount.
package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
)

const day = 24 * time.Hour

type SelectedFacility struct {
	Name        string     `json:"name"`
	PricePerDay int64      `json:"price"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
}

type SelectedActivity struct {
	Name           string `json:"name"`
	PricePerPerson int64  `json:"price"`
	NumberOfPeople int    `json:"numberOfPeople"`
}

// Selection is the priced part of a booking form.
type Selection struct {
	Adults     int
	Children   int
	Facilities []SelectedFacility
	Activities []SelectedActivity
}

func (s Selection) Guests() int { return s.Adults + s.Children }

type PricedFacility struct {
	SelectedFacility
	Days int   `json:"days"`
	Cost int64 `json:"cost"`
}

type PricedActivity struct {
	SelectedActivity
	Cost int64 `json:"cost"`
}

type Quote struct {
	EntryFee     int64            `json:"entry_fee"`
	FacilityCost int64            `json:"facility_cost"`
	ActivityCost int64            `json:"activity_cost"`
	Total        int64            `json:"total"`
	Adults       int              `json:"adults"`
	Children     int              `json:"children"`
	Facilities   []PricedFacility `json:"facilities"`
	Activities   []PricedActivity `json:"activities"`
}

// Details snapshots the quote in the booking_details shape.
func (q Quote) Details(tripNote string) domain.BookingDetails {
	details := domain.BookingDetails{
		Adults:     q.Adults,
		Children:   q.Children,
		Facilities: make([]domain.FacilityDetail, 0, len(q.Facilities)),
		Activities: make([]domain.ActivityDetail, 0, len(q.Activities)),
		TripNote:   tripNote,
	}
	for _, f := range q.Facilities {
		details.Facilities = append(details.Facilities, domain.FacilityDetail{
			Name:      f.Name,
			Price:     f.PricePerDay,
			StartDate: f.StartDate.Format(domain.DateLayout),
			EndDate:   f.EndDate.Format(domain.DateLayout),
		})
	}
	for _, a := range q.Activities {
		details.Activities = append(details.Activities, domain.ActivityDetail{
			Name:           a.Name,
			Price:          a.PricePerPerson,
			NumberOfPeople: a.NumberOfPeople,
		})
	}
	return details
}

// Calculator is stateless; the zero value is ready to use.
type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Validate reports the first selection problem that must block payment.
func (c *Calculator) Validate(sel Selection) error {
	if sel.Adults < 0 {
		return domain.NewValidationError("adults", "must not be negative")
	}
	if sel.Children < 0 {
		return domain.NewValidationError("children", "must not be negative")
	}
	if sel.Guests() == 0 {
		return domain.NewValidationError("guests", "at least one guest is required")
	}
	for i, f := range sel.Facilities {
		field := fmt.Sprintf("facilities[%d]", i)
		if f.StartDate == nil || f.EndDate == nil {
			return domain.NewValidationError(field, fmt.Sprintf("%q needs both a start and an end date", f.Name))
		}
		if f.EndDate.Before(*f.StartDate) {
			return domain.NewValidationError(field, fmt.Sprintf("%q ends before it starts", f.Name))
		}
		if f.PricePerDay < 0 {
			return domain.NewValidationError(field, "price must not be negative")
		}
	}
	for i, a := range sel.Activities {
		field := fmt.Sprintf("activities[%d]", i)
		if a.NumberOfPeople < 0 {
			return domain.NewValidationError(field, "number of people must not be negative")
		}
		if a.PricePerPerson < 0 {
			return domain.NewValidationError(field, "price must not be negative")
		}
	}
	return nil
}

// Calculate validates the selection and prices it against the tariff.
func (c *Calculator) Calculate(tariff domain.Tariff, sel Selection) (Quote, error) {
	if err := c.Validate(sel); err != nil {
		return Quote{}, err
	}

	q := Quote{
		Adults:     sel.Adults,
		Children:   sel.Children,
		EntryFee:   EntryFee(tariff, sel.Adults, sel.Children),
		Facilities: make([]PricedFacility, 0, len(sel.Facilities)),
		Activities: make([]PricedActivity, 0, len(sel.Activities)),
	}

	for _, f := range sel.Facilities {
		days := FacilityDays(*f.StartDate, *f.EndDate)
		cost := f.PricePerDay * int64(days)
		q.FacilityCost += cost
		q.Facilities = append(q.Facilities, PricedFacility{SelectedFacility: f, Days: days, Cost: cost})
	}

	for _, a := range sel.Activities {
		if a.NumberOfPeople == 0 {
			a.NumberOfPeople = 1
		}
		cost := a.PricePerPerson * int64(a.NumberOfPeople)
		q.ActivityCost += cost
		q.Activities = append(q.Activities, PricedActivity{SelectedActivity: a, Cost: cost})
	}

	q.Total = q.EntryFee + q.FacilityCost + q.ActivityCost
	return q, nil
}

func EntryFee(tariff domain.Tariff, adults, children int) int64 {
	if tariff.EntryFeeType == domain.EntryFeeFree {
		return 0
	}
	return int64(adults)*tariff.AdultPrice + int64(children)*tariff.ChildPrice
}

// FacilityDays is ceil(end-start) in days with a floor of one day.
func FacilityDays(start, end time.Time) int {
	days := int(math.Ceil(float64(end.Sub(start)) / float64(day)))
	if days < 1 {
		return 1
	}
	return days
}
