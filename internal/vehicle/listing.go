// Package vehicle defines the structured listing type produced by the
// extraction pipeline and served by the query engine.
package vehicle

import "time"

// Fuel is the detected engine type of a listing.
type Fuel string

// Fuel values detected from listing text.
const (
	FuelElectric Fuel = "electrique"
	FuelHybrid   Fuel = "hybride"
	FuelDiesel   Fuel = "diesel"
	FuelPetrol   Fuel = "essence"
)

// Gearbox is the detected transmission type of a listing.
type Gearbox string

// Gearbox values detected from listing text.
const (
	GearboxAutomatic Gearbox = "automatique"
	GearboxManual    Gearbox = "manuelle"
)

// Price bounds accepted during extraction. Candidates outside the window are
// discarded as implausible and the listing keeps the zero sentinel.
const (
	MinPlausiblePrice = 100
	MaxPlausiblePrice = 500000
)

// Coordinates is a WGS84 point resolved from the gazetteer or the source.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Listing is one marketplace ad. Instances are immutable once created by the
// extractor; the query engine attaches DistanceKm to copies only, never to the
// stored original.
type Listing struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Brand     string  `json:"brand,omitempty"`
	Model     string  `json:"model,omitempty"`
	Price     int     `json:"price"`
	Year      int     `json:"year,omitempty"`
	MileageKm int     `json:"mileage_km,omitempty"`
	Fuel      Fuel    `json:"fuel,omitempty"`
	Gearbox   Gearbox `json:"gearbox,omitempty"`

	Location    string       `json:"location"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`

	IsProfessionalSeller bool     `json:"is_pro"`
	Images               []string `json:"images,omitempty"`
	URL                  string   `json:"url"`
	QualityScore         float64  `json:"score"`

	PublishedAt time.Time `json:"published_at"`
	ObservedAt  time.Time `json:"observed_at"`

	// DistanceKm is only populated on copies returned by geo-radius queries.
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// HasPrice reports whether the listing carries a validated price. Zero is the
// sentinel for unknown/implausible, never a real price.
func (l Listing) HasPrice() bool {
	return l.Price > 0
}

// WithDistance returns a copy of the listing with the computed distance set.
func (l Listing) WithDistance(km float64) Listing {
	cp := l
	cp.DistanceKm = &km
	return cp
}
