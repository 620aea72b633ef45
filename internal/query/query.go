// Package query filters, sorts, and paginates store snapshots, including
// geo-radius lookups around a named place.
package query

import (
	"errors"
	"sort"
	"strings"

	"github.com/autotrack/autotrack/internal/geo"
	"github.com/autotrack/autotrack/internal/vehicle"
)

// Sort keys accepted by Run.
const (
	SortRecent    = "recent"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortScore     = "score"
	SortDistance  = "distance"
)

// Errors surfaced for invalid queries. The caller maps them to 400 responses.
var (
	ErrUnknownSort      = errors.New("unknown sort key")
	ErrUnknownPlace     = errors.New("unknown place name")
	ErrDistanceNoRadius = errors.New("distance sort requires a geo-radius filter")
)

// Filters are independently applicable; zero values mean "not set".
type Filters struct {
	Brand      string
	Model      string
	Location   string
	MinPrice   int
	MaxPrice   int
	MinYear    int
	MaxYear    int
	MaxMileage int
	Fuel       string
	Gearbox    string
	MinScore   float64

	// Geo-radius filter: keep listings with known coordinates within
	// RadiusKm of the place named Near. Mutually exclusive with Location
	// in practice; when both are set, both must hold.
	Near     string
	RadiusKm float64
}

func (f Filters) hasGeo() bool {
	return f.Near != "" && f.RadiusKm > 0
}

// Page is one page of query results.
type Page struct {
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
	Vehicles   []vehicle.Listing `json:"vehicles"`
}

// Engine evaluates queries against point-in-time snapshots.
type Engine struct {
	gazetteer *geo.Gazetteer
}

// New builds an Engine resolving place names through the given gazetteer.
func New(g *geo.Gazetteer) *Engine {
	return &Engine{gazetteer: g}
}

// Run evaluates the query against the snapshot. The snapshot is newest-first,
// which is the default sort order. Geo-matched listings carry the computed
// distance on the returned copies only.
func (e *Engine) Run(snapshot []vehicle.Listing, f Filters, sortKey string, page, pageSize int) (Page, error) {
	if sortKey == "" {
		sortKey = SortRecent
	}
	switch sortKey {
	case SortRecent, SortPriceAsc, SortPriceDesc, SortScore:
	case SortDistance:
		if !f.hasGeo() {
			return Page{}, ErrDistanceNoRadius
		}
	default:
		return Page{}, ErrUnknownSort
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	var center geo.Point
	if f.hasGeo() {
		pt, ok := e.gazetteer.Resolve(f.Near)
		if !ok {
			return Page{}, ErrUnknownPlace
		}
		center = pt
	}

	matched := make([]vehicle.Listing, 0, len(snapshot))
	for _, l := range snapshot {
		if !matches(l, f) {
			continue
		}
		if f.hasGeo() {
			if l.Coordinates == nil {
				continue
			}
			d := geo.DistanceKm(center, geo.Point{Lat: l.Coordinates.Lat, Lon: l.Coordinates.Lon})
			if d > f.RadiusKm {
				continue
			}
			l = l.WithDistance(d)
		}
		matched = append(matched, l)
	}

	applySort(matched, sortKey)

	total := len(matched)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return Page{
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
		Vehicles:   matched[start:end],
	}, nil
}

func matches(l vehicle.Listing, f Filters) bool {
	if f.Brand != "" && !strings.EqualFold(l.Brand, f.Brand) {
		return false
	}
	if f.Model != "" && !strings.Contains(strings.ToLower(l.Model), strings.ToLower(f.Model)) {
		return false
	}
	if f.Location != "" && !strings.Contains(strings.ToLower(l.Location), strings.ToLower(f.Location)) {
		return false
	}
	if f.MinPrice > 0 && l.Price < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && l.Price > f.MaxPrice {
		return false
	}
	if f.MinYear > 0 && (l.Year == 0 || l.Year < f.MinYear) {
		return false
	}
	if f.MaxYear > 0 && (l.Year == 0 || l.Year > f.MaxYear) {
		return false
	}
	if f.MaxMileage > 0 && (l.MileageKm == 0 || l.MileageKm > f.MaxMileage) {
		return false
	}
	if f.Fuel != "" && !strings.EqualFold(string(l.Fuel), f.Fuel) {
		return false
	}
	if f.Gearbox != "" && !strings.EqualFold(string(l.Gearbox), f.Gearbox) {
		return false
	}
	if f.MinScore > 0 && l.QualityScore < f.MinScore {
		return false
	}
	return true
}

func applySort(items []vehicle.Listing, key string) {
	switch key {
	case SortPriceAsc:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Price < items[j].Price })
	case SortPriceDesc:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Price > items[j].Price })
	case SortScore:
		sort.SliceStable(items, func(i, j int) bool { return items[i].QualityScore > items[j].QualityScore })
	case SortDistance:
		sort.SliceStable(items, func(i, j int) bool {
			return *items[i].DistanceKm < *items[j].DistanceKm
		})
	}
}
