package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// fallbackTitle is the terminal strategy; extraction never yields an empty
// title.
const fallbackTitle = "Sans titre"

var titleSelectors = []string{
	`[data-qa-id="aditem_title"]`,
	`[data-test-id="adcard-title"]`,
	`h1, h2, h3`,
	`[class*="title"]`,
	`[class*="Title"]`,
}

var (
	titleNoiseTokens = []string{"€", "/mois", "aujourd'hui", "hier"}
	slugTrailingID   = regexp.MustCompile(`[-_]?\d+$`)
	letterPattern    = regexp.MustCompile(`\p{L}`)
	timePattern      = regexp.MustCompile(`\d{2}:\d{2}`)
)

// extractTitle resolves the title through the ordered chain: structural
// selectors, title attribute, longest plausible free-text line, brand
// reconstruction, URL slug, fixed fallback.
func (e *Extractor) extractTitle(el *goquery.Selection, lines []string, url string) string {
	for _, sel := range titleSelectors {
		if t := cleanTitle(el.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	if t := cleanTitle(el.AttrOr("title", "")); t != "" {
		return t
	}
	if t := longestPlausibleLine(lines); t != "" {
		return t
	}
	if t := brandReconstruction(lines); t != "" {
		return t
	}
	if t := slugTitle(url); t != "" {
		return t
	}
	return fallbackTitle
}

func cleanTitle(raw string) string {
	t := strings.Join(strings.Fields(raw), " ")
	if len(t) < 3 || len(t) > 200 {
		return ""
	}
	if !letterPattern.MatchString(t) {
		return ""
	}
	return t
}

// longestPlausibleLine picks the longest line of 10..150 runes that contains
// letters and none of the currency/date/time noise markers.
func longestPlausibleLine(lines []string) string {
	best := ""
	for _, line := range lines {
		n := len([]rune(line))
		if n < 10 || n > 150 {
			continue
		}
		if !letterPattern.MatchString(line) {
			continue
		}
		lower := strings.ToLower(line)
		noisy := timePattern.MatchString(line)
		for _, tok := range titleNoiseTokens {
			if strings.Contains(lower, tok) {
				noisy = true
				break
			}
		}
		if noisy || mileagePattern.MatchString(lower) {
			continue
		}
		if len(line) > len(best) {
			best = line
		}
	}
	return best
}

// brandReconstruction rebuilds a title from a detected brand followed by the
// capitalized tokens after it.
func brandReconstruction(lines []string) string {
	for _, line := range lines {
		brand := detectBrand(line)
		if brand == "" {
			continue
		}
		idx := strings.Index(strings.ToLower(line), strings.ToLower(brand))
		rest := strings.Fields(line[idx+len(brand):])
		parts := []string{brand}
		for _, tok := range rest {
			if len(parts) >= 4 {
				break
			}
			first := []rune(tok)[0]
			if first >= 'A' && first <= 'Z' || first >= '0' && first <= '9' {
				parts = append(parts, tok)
				continue
			}
			break
		}
		if len(parts) > 1 {
			return strings.Join(parts, " ")
		}
		return brand
	}
	return ""
}

// slugTitle recovers words from the URL slug, e.g.
// "/ad/voitures/renault-clio-v-2021-123456.htm" becomes "Renault Clio V 2021".
func slugTitle(url string) string {
	if url == "" {
		return ""
	}
	slug := url
	if i := strings.LastIndex(slug, "/"); i >= 0 {
		slug = slug[i+1:]
	}
	slug = strings.TrimSuffix(slug, ".htm")
	slug = strings.TrimSuffix(slug, ".html")
	slug = slugTrailingID.ReplaceAllString(slug, "")
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	if len(words) == 0 {
		return ""
	}
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	title := strings.Join(words, " ")
	if !letterPattern.MatchString(title) {
		return ""
	}
	return title
}
