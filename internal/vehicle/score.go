package vehicle

import (
	"math"
	"time"
)

// Quality score deltas. The score starts at a neutral base and each known
// attribute adds or subtracts a fixed amount, clamped to [0,100].
const (
	scoreBase = 50.0

	recentYearBonus  = 20.0
	modernYearBonus  = 15.0
	recentYearWindow = 3
	modernYearWindow = 5

	lowMileageBonus    = 20.0
	midMileageBonus    = 15.0
	lowMileageCutoffKm = 20000
	midMileageCutoffKm = 50000

	proSellerPenalty = 5.0

	normalPriceBonus = 5.0
	normalPriceLow   = 1000
	normalPriceHigh  = 100000
)

// Score computes the deterministic quality score for the given attributes.
// Unknown attributes (zero values) contribute nothing. The result is rounded
// to one decimal and clamped to [0,100].
func Score(year, mileageKm, price int, professional bool, now time.Time) float64 {
	score := scoreBase
	currentYear := now.Year()
	if year > 0 {
		switch {
		case year >= currentYear-recentYearWindow:
			score += recentYearBonus
		case year >= currentYear-modernYearWindow:
			score += modernYearBonus
		}
	}
	if mileageKm > 0 {
		switch {
		case mileageKm < lowMileageCutoffKm:
			score += lowMileageBonus
		case mileageKm < midMileageCutoffKm:
			score += midMileageBonus
		}
	}
	if professional {
		score -= proSellerPenalty
	}
	if price >= normalPriceLow && price <= normalPriceHigh {
		score += normalPriceBonus
	}
	score = math.Min(math.Max(score, 0), 100)
	return math.Round(score*10) / 10
}
