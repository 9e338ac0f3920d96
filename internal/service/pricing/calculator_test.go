package pricing

import (
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestCalculator_Calculate_PaidEntryWithExtras(t *testing.T) {
	calc := NewCalculator()
	tariff := domain.Tariff{EntryFeeType: domain.EntryFeePaid, AdultPrice: 1000, ChildPrice: 500}

	quote, err := calc.Calculate(tariff, Selection{
		Adults:   2,
		Children: 1,
		Facilities: []SelectedFacility{
			{Name: "Tent", PricePerDay: 200, StartDate: date(2026, 11, 1), EndDate: date(2026, 11, 4)},
		},
		Activities: []SelectedActivity{
			{Name: "Boat ride", PricePerPerson: 300, NumberOfPeople: 2},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(2500), quote.EntryFee)
	assert.Equal(t, int64(600), quote.FacilityCost)
	assert.Equal(t, int64(600), quote.ActivityCost)
	assert.Equal(t, int64(3700), quote.Total)
	assert.Equal(t, 3, quote.Facilities[0].Days)
}

func TestCalculator_Calculate_FreeEntry(t *testing.T) {
	calc := NewCalculator()
	tariff := domain.Tariff{EntryFeeType: domain.EntryFeeFree, AdultPrice: 1000, ChildPrice: 500}

	quote, err := calc.Calculate(tariff, Selection{Adults: 3, Children: 2})

	require.NoError(t, err)
	assert.Equal(t, int64(0), quote.Total)
}

func TestCalculator_Calculate_Deterministic(t *testing.T) {
	calc := NewCalculator()
	tariff := domain.Tariff{EntryFeeType: domain.EntryFeePaid, AdultPrice: 750, ChildPrice: 250}
	sel := Selection{
		Adults:     1,
		Children:   3,
		Facilities: []SelectedFacility{{Name: "Cabin", PricePerDay: 1200, StartDate: date(2026, 12, 24), EndDate: date(2026, 12, 26)}},
	}

	first, err := calc.Calculate(tariff, sel)
	require.NoError(t, err)
	second, err := calc.Calculate(tariff, sel)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCalculator_Calculate_ActivityDefaultsToOnePerson(t *testing.T) {
	calc := NewCalculator()

	quote, err := calc.Calculate(domain.Tariff{EntryFeeType: domain.EntryFeeFree}, Selection{
		Adults:     1,
		Activities: []SelectedActivity{{Name: "Zip line", PricePerPerson: 450}},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(450), quote.Total)
	assert.Equal(t, 1, quote.Activities[0].NumberOfPeople)
}

func TestFacilityDays(t *testing.T) {
	start := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)

	testCases := []struct {
		name string
		end  time.Time
		want int
	}{
		{name: "same instant", end: start, want: 1},
		{name: "half a day", end: start.Add(12 * time.Hour), want: 1},
		{name: "exactly one day", end: start.Add(24 * time.Hour), want: 1},
		{name: "a day and an hour", end: start.Add(25 * time.Hour), want: 2},
		{name: "three days", end: start.AddDate(0, 0, 3), want: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FacilityDays(start, tc.end))
		})
	}
}

func TestCalculator_Validate(t *testing.T) {
	calc := NewCalculator()

	testCases := []struct {
		name          string
		sel           Selection
		expectedField string
	}{
		{
			name:          "No guests",
			sel:           Selection{},
			expectedField: "guests",
		},
		{
			name:          "Negative adults",
			sel:           Selection{Adults: -1, Children: 2},
			expectedField: "adults",
		},
		{
			name: "Facility without end date",
			sel: Selection{
				Adults:     1,
				Facilities: []SelectedFacility{{Name: "Tent", PricePerDay: 200, StartDate: date(2026, 11, 1)}},
			},
			expectedField: "facilities[0]",
		},
		{
			name: "Facility ends before start",
			sel: Selection{
				Adults:     1,
				Facilities: []SelectedFacility{{Name: "Tent", PricePerDay: 200, StartDate: date(2026, 11, 3), EndDate: date(2026, 11, 1)}},
			},
			expectedField: "facilities[0]",
		},
		{
			name: "Negative head count",
			sel: Selection{
				Adults:     1,
				Activities: []SelectedActivity{{Name: "Hike", PricePerPerson: 100, NumberOfPeople: -2}},
			},
			expectedField: "activities[0]",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := calc.Validate(tc.sel)
			require.Error(t, err)

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.expectedField, verr.Field)

			_, err = calc.Calculate(domain.Tariff{EntryFeeType: domain.EntryFeePaid, AdultPrice: 10}, tc.sel)
			assert.Error(t, err)
		})
	}
}

func TestQuote_Details(t *testing.T) {
	calc := NewCalculator()
	quote, err := calc.Calculate(domain.Tariff{EntryFeeType: domain.EntryFeePaid, AdultPrice: 100}, Selection{
		Adults:     2,
		Facilities: []SelectedFacility{{Name: "Pool", PricePerDay: 50, StartDate: date(2026, 11, 1), EndDate: date(2026, 11, 1)}},
		Activities: []SelectedActivity{{Name: "Tour", PricePerPerson: 70, NumberOfPeople: 2}},
	})
	require.NoError(t, err)

	details := quote.Details("window seat")

	assert.Equal(t, 2, details.Adults)
	assert.Equal(t, 0, details.Children)
	assert.Equal(t, "window seat", details.TripNote)
	require.Len(t, details.Facilities, 1)
	assert.Equal(t, domain.FacilityDetail{Name: "Pool", Price: 50, StartDate: "2026-11-01", EndDate: "2026-11-01"}, details.Facilities[0])
	require.Len(t, details.Activities, 1)
	assert.Equal(t, 2, details.Activities[0].NumberOfPeople)
}
