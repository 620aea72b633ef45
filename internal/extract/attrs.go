package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/autotrack/autotrack/internal/vehicle"
)

// knownBrands is ordered so that longer or more specific names win when a
// title mentions several.
var knownBrands = []string{
	"Renault", "Peugeot", "Citroën", "Toyota", "Volkswagen", "Honda", "Ford",
	"BMW", "Mercedes", "Audi", "Fiat", "Kia", "Hyundai", "Nissan", "Opel",
	"Mazda", "Volvo", "Tesla", "Jeep", "Dacia", "Skoda", "SEAT", "Suzuki",
}

var (
	yearPattern    = regexp.MustCompile(`\b(19[89]\d|20[0-3]\d)\b`)
	mileagePattern = regexp.MustCompile(`(?i)(\d+[\s.\x{00a0}\x{202f}]?\d*)\s*(?:km\b|kilom[èe]tres?\b)`)
	proPattern     = regexp.MustCompile(`(?i)\bpro(fessionnel(le)?s?)?\b`)
	autoGearboxRe  = regexp.MustCompile(`(?i)\b(automatique|auto)\b`)
)

const maxPlausibleMileage = 999999

// detectBrand returns the first known brand mentioned in the text.
func detectBrand(text string) string {
	lower := strings.ToLower(text)
	for _, brand := range knownBrands {
		if strings.Contains(lower, strings.ToLower(brand)) {
			return brand
		}
	}
	return ""
}

// detectModel takes up to two tokens after the brand name, stopping at a
// dash, a year, or an opening parenthesis.
func detectModel(text, brand string) string {
	if brand == "" {
		return ""
	}
	pat, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(brand) + `\s+(.+?)(?:\s*[-–—]|\s+\d{4}|\s+\(|$)`)
	if err != nil {
		return ""
	}
	m := pat.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	tokens := strings.Fields(strings.TrimSpace(m[1]))
	if len(tokens) > 2 {
		tokens = tokens[:2]
	}
	return strings.Join(tokens, " ")
}

// detectYear picks the last plausible 4-digit year in the text. Later
// mentions tend to be the registration year rather than an unrelated number.
func detectYear(text string, nowYear int) int {
	matches := yearPattern.FindAllString(text, -1)
	maxYear := nowYear + 1
	for i := len(matches) - 1; i >= 0; i-- {
		y, err := strconv.Atoi(matches[i])
		if err != nil {
			continue
		}
		if y >= 1980 && y <= maxYear {
			return y
		}
	}
	return 0
}

// detectMileage requires an explicit km unit suffix so that raw numbers such
// as prices or postal codes never pass as mileage.
func detectMileage(text string) int {
	m := mileagePattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, m[1])
	km, err := strconv.Atoi(digits)
	if err != nil || km < 0 || km > maxPlausibleMileage {
		return 0
	}
	return km
}

func detectFuel(text string) vehicle.Fuel {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "électrique") || strings.Contains(lower, "electrique"):
		return vehicle.FuelElectric
	case strings.Contains(lower, "hybride"):
		return vehicle.FuelHybrid
	case strings.Contains(lower, "diesel"):
		return vehicle.FuelDiesel
	case strings.Contains(lower, "essence"):
		return vehicle.FuelPetrol
	}
	return ""
}

func detectGearbox(text string) vehicle.Gearbox {
	if autoGearboxRe.MatchString(text) {
		return vehicle.GearboxAutomatic
	}
	if strings.Contains(strings.ToLower(text), "manuelle") {
		return vehicle.GearboxManual
	}
	return ""
}

// detectProfessional matches "pro" or "professionnel" as whole words only so
// words like "propre" do not flag a private seller.
func detectProfessional(text string) bool {
	return proPattern.MatchString(text)
}
