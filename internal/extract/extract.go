// Package extract recovers structured listings from marketplace markup.
//
// The source's markup is unstable and inconsistent between listings, so every
// field is resolved through an ordered chain of strategies tried
// top-to-bottom until one yields an accepted value. Missing optional fields
// are zero values, never errors; only a card with no usable title, price, or
// URL signal at all fails extraction.
package extract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/autotrack/autotrack/internal/vehicle"
)

// ErrUnparsable marks a card that carries no extractable signal at all.
var ErrUnparsable = errors.New("element is unparsable")

// Candidate selectors for ad cards, most specific first. The first selector
// matching anything wins.
var cardSelectors = []string{
	`a[data-qa-id="aditem_container"]`,
	`div[data-qa-id="aditem_container"]`,
	`[data-test-id="ad"]`,
	`article`,
}

// Extractor turns raw listing-page bodies into vehicle.Listing values.
type Extractor struct {
	baseURL string
	now     func() time.Time
}

// New builds an Extractor. baseURL resolves relative listing links.
func New(baseURL string) *Extractor {
	return &Extractor{baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

// Elements locates ad cards in a page body, in document order.
func (e *Extractor) Elements(body []byte) ([]*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	for _, sel := range cardSelectors {
		found := doc.Find(sel)
		if found.Length() == 0 {
			continue
		}
		out := make([]*goquery.Selection, 0, found.Length())
		found.Each(func(_ int, s *goquery.Selection) {
			out = append(out, s)
		})
		return out, nil
	}
	return nil, nil
}

// Extract parses one ad card. index disambiguates hash-derived IDs for cards
// without a URL.
func (e *Extractor) Extract(el *goquery.Selection, index int) (vehicle.Listing, error) {
	lines := textLines(el)
	fullText := strings.Join(lines, "\n")
	url := e.listingURL(el)

	if len(strings.TrimSpace(fullText)) < 10 && url == "" {
		return vehicle.Listing{}, ErrUnparsable
	}

	price := extractPrice(el, lines)
	title := e.extractTitle(el, lines, url)
	location, coords := extractLocation(el, lines)

	brand := detectBrand(title + " " + fullText)
	now := e.now().UTC()
	listing := vehicle.Listing{
		ID:                   listingID(url, title, price, index),
		Title:                title,
		Brand:                brand,
		Model:                detectModel(title, brand),
		Price:                price,
		Year:                 detectYear(fullText, now.Year()),
		MileageKm:            detectMileage(fullText),
		Fuel:                 detectFuel(fullText),
		Gearbox:              detectGearbox(fullText),
		Location:             location,
		Coordinates:          coords,
		IsProfessionalSeller: detectProfessional(fullText),
		Images:               extractImages(el),
		URL:                  url,
		PublishedAt:          now,
		ObservedAt:           now,
	}
	listing.QualityScore = vehicle.Score(
		listing.Year, listing.MileageKm, listing.Price, listing.IsProfessionalSeller, now,
	)
	return listing, nil
}

// textLines flattens the card into the visible text lines a human would see,
// one per leaf text node.
func textLines(el *goquery.Selection) []string {
	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				lines = append(lines, strings.Join(strings.Fields(text), " "))
			}
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, node := range el.Nodes {
		walk(node)
	}
	return lines
}

func (e *Extractor) listingURL(el *goquery.Selection) string {
	href, ok := el.Attr("href")
	if !ok || href == "" {
		href, _ = el.Find("a[href]").First().Attr("href")
	}
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "/") && e.baseURL != "" {
		return e.baseURL + href
	}
	return href
}
