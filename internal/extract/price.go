package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/autotrack/autotrack/internal/vehicle"
)

var priceSelectors = []string{
	`[data-qa-id="aditem_price"]`,
	`[data-test-id="price"]`,
	`span[class*="price"]`,
	`p[class*="price"]`,
	`div[class*="price"]`,
}

var (
	// Amounts may embed regular, no-break, or narrow no-break spaces and
	// dot thousand separators: "12 500 €", "12.500€", "12 500 €".
	currencyAmount = regexp.MustCompile(`(\d[\d\s.\x{00a0}\x{202f}]*)\s*€`)
	digitRun       = regexp.MustCompile(`\d[\d\s.\x{00a0}\x{202f}]*\d|\d`)

	// Per-period prices ("450 €/mois") are financing offers, not sale prices.
	periodTokens = []string{"/mois", "mois", "semaine", "jour"}
)

// extractPrice resolves the sale price: structural price nodes, then
// currency-marked lines, then a bare digit run in a structural price node.
// Candidates outside the plausible window are discarded, leaving the zero
// sentinel.
func extractPrice(el *goquery.Selection, lines []string) int {
	for _, sel := range priceSelectors {
		text := strings.TrimSpace(el.Find(sel).First().Text())
		if text == "" {
			continue
		}
		if m := currencyAmount.FindStringSubmatch(text); m != nil {
			if p := parseAmount(m[1]); p > 0 {
				return p
			}
		}
		// Some variants render the amount without the currency sign.
		if m := digitRun.FindString(text); m != "" {
			if p := parseAmount(m); p > 0 {
				return p
			}
		}
	}
	for _, line := range lines {
		if !strings.Contains(line, "€") || isPeriodPrice(line) {
			continue
		}
		if m := currencyAmount.FindStringSubmatch(line); m != nil {
			if p := parseAmount(m[1]); p > 0 {
				return p
			}
		}
	}
	return 0
}

func isPeriodPrice(line string) bool {
	lower := strings.ToLower(line)
	for _, tok := range periodTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// parseAmount strips separators and validates the plausible window. Values
// outside it are implausible and rejected, never clamped.
func parseAmount(raw string) int {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	if n < vehicle.MinPlausiblePrice || n > vehicle.MaxPlausiblePrice {
		return 0
	}
	return n
}
