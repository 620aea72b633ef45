package vehicle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		year         int
		mileage      int
		price        int
		professional bool
		want         float64
	}{
		{name: "nothing known", want: 50},
		{name: "recent year", year: 2025, want: 70},
		{name: "modern year", year: 2022, want: 65},
		{name: "old year", year: 2010, want: 50},
		{name: "low mileage", mileage: 12000, want: 70},
		{name: "mid mileage", mileage: 40000, want: 65},
		{name: "high mileage", mileage: 180000, want: 50},
		{name: "pro seller penalty", professional: true, want: 45},
		{name: "normal price band", price: 15000, want: 55},
		{name: "implausibly cheap keeps base", price: 150, want: 50},
		{name: "everything good caps at 95", year: 2026, mileage: 5000, price: 25000, want: 95},
		{name: "pro with everything", year: 2026, mileage: 5000, price: 25000, professional: true, want: 90},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Score(tc.year, tc.mileage, tc.price, tc.professional, now)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestScoreBounds(t *testing.T) {
	t.Parallel()

	now := time.Now()
	for year := 0; year <= 2030; year += 5 {
		for mileage := 0; mileage <= 300000; mileage += 30000 {
			s := Score(year, mileage, 20000, false, now)
			require.GreaterOrEqual(t, s, 0.0)
			require.LessOrEqual(t, s, 100.0)
		}
	}
}

func TestWithDistanceDoesNotMutateOriginal(t *testing.T) {
	t.Parallel()

	original := Listing{ID: "lbc_1", Title: "Renault Clio"}
	cp := original.WithDistance(4.2)

	require.Nil(t, original.DistanceKm)
	require.NotNil(t, cp.DistanceKm)
	require.InDelta(t, 4.2, *cp.DistanceKm, 1e-9)
}
