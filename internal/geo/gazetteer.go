package geo

import "strings"

// Gazetteer resolves human place names to coordinates. Lookups are case and
// accent insensitive and tolerate the place name appearing as a substring of
// the query ("Paris 11e" resolves to Paris).
type Gazetteer struct {
	cities map[string]Point
}

// NewGazetteer returns a Gazetteer seeded with the built-in French city table.
func NewGazetteer() *Gazetteer {
	g := &Gazetteer{cities: make(map[string]Point, len(frenchCities))}
	for name, pt := range frenchCities {
		g.cities[normalizePlace(name)] = pt
	}
	return g
}

// Resolve returns the coordinates for the given place name. The second return
// value is false when no known city matches.
func (g *Gazetteer) Resolve(place string) (Point, bool) {
	q := normalizePlace(place)
	if q == "" {
		return Point{}, false
	}
	if pt, ok := g.cities[q]; ok {
		return pt, true
	}
	for name, pt := range g.cities {
		if strings.Contains(q, name) || strings.Contains(name, q) {
			return pt, true
		}
	}
	return Point{}, false
}

// accentFolder covers the accented runes appearing in French place names;
// enough for this fixed table without pulling in a full Unicode folding pass.
var accentFolder = strings.NewReplacer(
	"à", "a", "â", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"î", "i", "ï", "i",
	"ô", "o", "ö", "o",
	"ù", "u", "û", "u", "ü", "u",
	"ç", "c",
	"œ", "oe",
	"-", " ",
)

func normalizePlace(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = accentFolder.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

var frenchCities = map[string]Point{
	"Paris":            {Lat: 48.8566, Lon: 2.3522},
	"Marseille":        {Lat: 43.2965, Lon: 5.3698},
	"Lyon":             {Lat: 45.7640, Lon: 4.8357},
	"Toulouse":         {Lat: 43.6047, Lon: 1.4442},
	"Nice":             {Lat: 43.7102, Lon: 7.2620},
	"Nantes":           {Lat: 47.2184, Lon: -1.5536},
	"Montpellier":      {Lat: 43.6108, Lon: 3.8767},
	"Strasbourg":       {Lat: 48.5734, Lon: 7.7521},
	"Bordeaux":         {Lat: 44.8378, Lon: -0.5792},
	"Lille":            {Lat: 50.6292, Lon: 3.0573},
	"Rennes":           {Lat: 48.1173, Lon: -1.6778},
	"Reims":            {Lat: 49.2583, Lon: 4.0317},
	"Saint-Étienne":    {Lat: 45.4397, Lon: 4.3872},
	"Le Havre":         {Lat: 49.4944, Lon: 0.1079},
	"Toulon":           {Lat: 43.1242, Lon: 5.9280},
	"Grenoble":         {Lat: 45.1885, Lon: 5.7245},
	"Dijon":            {Lat: 47.3220, Lon: 5.0415},
	"Angers":           {Lat: 47.4784, Lon: -0.5632},
	"Nîmes":            {Lat: 43.8367, Lon: 4.3601},
	"Villeurbanne":     {Lat: 45.7719, Lon: 4.8902},
	"Clermont-Ferrand": {Lat: 45.7772, Lon: 3.0870},
	"Le Mans":          {Lat: 48.0061, Lon: 0.1996},
	"Aix-en-Provence":  {Lat: 43.5297, Lon: 5.4474},
	"Brest":            {Lat: 48.3904, Lon: -4.4861},
	"Tours":            {Lat: 47.3941, Lon: 0.6848},
	"Amiens":           {Lat: 49.8941, Lon: 2.2958},
	"Limoges":          {Lat: 45.8336, Lon: 1.2611},
	"Annecy":           {Lat: 45.8992, Lon: 6.1294},
	"Perpignan":        {Lat: 42.6887, Lon: 2.8948},
	"Boulogne-Billancourt": {Lat: 48.8397, Lon: 2.2399},
	"Metz":             {Lat: 49.1193, Lon: 6.1757},
	"Besançon":         {Lat: 47.2378, Lon: 6.0241},
	"Orléans":          {Lat: 47.9029, Lon: 1.9093},
	"Rouen":            {Lat: 49.4431, Lon: 1.0993},
	"Mulhouse":         {Lat: 47.7508, Lon: 7.3359},
	"Caen":             {Lat: 49.1829, Lon: -0.3707},
	"Nancy":            {Lat: 48.6921, Lon: 6.1844},
	"Avignon":          {Lat: 43.9493, Lon: 4.8055},
	"Versailles":       {Lat: 48.8014, Lon: 2.1301},
	"Poitiers":         {Lat: 46.5802, Lon: 0.3404},
}
