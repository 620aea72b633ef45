package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/autotrack/autotrack/internal/geo"
	"github.com/autotrack/autotrack/internal/vehicle"
)

// fallbackLocation is the terminal strategy of the location chain.
const fallbackLocation = "Non spécifié"

var locationSelectors = []string{
	`[data-qa-id="aditem_location"]`,
	`p[data-qa-id="aditem_location"]`,
	`[data-test-id="location"]`,
	`div[class*="location"]`,
	`span[class*="location"]`,
	`p[class*="location"]`,
}

var (
	cityPostalPattern = regexp.MustCompile(`^[A-ZÀ-Ü][\p{L}\s'\-]{1,40}\s+\d{5}$`)
	cityParenPattern  = regexp.MustCompile(`^[A-ZÀ-Ü][\p{L}\s'\-]{2,40}(\s+\(\d+\))?$`)
	postalOnlyPattern = regexp.MustCompile(`\b\d{5}\b`)

	// UI chrome and spec sub-labels that structural location selectors
	// sometimes match instead of a place.
	locationChromeTokens = []string{
		"favori", "ajouté", "supprim", "voir l'annonce", "kilométrage",
		"boîte", "essence", "diesel",
	}

	locationNoisePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\d+[\s.]?\d*\s*km\b`),
		regexp.MustCompile(`(?i)kilom[èe]trage\s*:?\s*`),
		regexp.MustCompile(`(?i)aujourd'hui.*`),
		regexp.MustCompile(`(?i)hier.*`),
		regexp.MustCompile(`\d{2}:\d{2}`),
	}
)

var gazetteer = geo.NewGazetteer()

// extractLocation resolves a human-readable place through the ordered chain
// and, when a known city matches, its coordinates.
func extractLocation(el *goquery.Selection, lines []string) (string, *vehicle.Coordinates) {
	for _, sel := range locationSelectors {
		raw := strings.TrimSpace(el.Find(sel).First().Text())
		if loc := acceptLocation(raw); loc != "" {
			return loc, lookupCoordinates(loc)
		}
	}
	for _, line := range lines {
		if cityPostalPattern.MatchString(line) || cityParenPattern.MatchString(line) {
			if loc := acceptLocation(line); loc != "" {
				return loc, lookupCoordinates(loc)
			}
		}
	}
	for _, line := range lines {
		if postalOnlyPattern.MatchString(line) && len(line) <= 20 {
			if loc := acceptLocation(line); loc != "" {
				return loc, lookupCoordinates(loc)
			}
		}
	}
	for _, line := range lines {
		if _, ok := gazetteer.Resolve(line); ok && len(line) <= 40 {
			if loc := acceptLocation(line); loc != "" {
				return loc, lookupCoordinates(loc)
			}
		}
	}
	return fallbackLocation, nil
}

// acceptLocation cleans a candidate and rejects UI chrome and residue that
// is only digits.
func acceptLocation(raw string) string {
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	for _, tok := range locationChromeTokens {
		if strings.Contains(lower, tok) {
			return ""
		}
	}
	cleaned := raw
	for _, p := range locationNoisePatterns {
		cleaned = p.ReplaceAllString(cleaned, "")
	}
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if len(cleaned) <= 2 {
		return ""
	}
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, cleaned)
	if allDigits(stripped) {
		return ""
	}
	return cleaned
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func lookupCoordinates(place string) *vehicle.Coordinates {
	pt, ok := gazetteer.Resolve(place)
	if !ok {
		return nil
	}
	return &vehicle.Coordinates{Lat: pt.Lat, Lon: pt.Lon}
}
