package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/autotrack/autotrack/internal/vehicle"
)

const sampleCard = `<html><body>
<a data-qa-id="aditem_container" href="/ad/voitures/2345678901.htm">
  <img src="https://img.example.com/thumbs/abc123.jpg">
  <img src="https://img.example.com/logo-small.png">
  <p data-qa-id="aditem_title">Renault Clio V 1.0 TCe</p>
  <p data-qa-id="aditem_price">12&#8239;500 &euro;</p>
  <p data-qa-id="aditem_location">Paris 75011</p>
  <p>2021 &middot; 35 000 km &middot; Essence &middot; Automatique</p>
</a>
</body></html>`

func testExtractor(t *testing.T) *Extractor {
	t.Helper()
	e := New("https://www.example.fr")
	e.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }
	return e
}

func cardsFrom(t *testing.T, body string) []*goquery.Selection {
	t.Helper()
	e := New("https://www.example.fr")
	els, err := e.Elements([]byte(body))
	require.NoError(t, err)
	return els
}

func TestExtractFullCard(t *testing.T) {
	t.Parallel()

	e := testExtractor(t)
	els := cardsFrom(t, sampleCard)
	require.Len(t, els, 1)

	l, err := e.Extract(els[0], 0)
	require.NoError(t, err)

	require.Equal(t, "lbc_2345678901", l.ID)
	require.Equal(t, "Renault Clio V 1.0 TCe", l.Title)
	require.Equal(t, "Renault", l.Brand)
	require.Equal(t, "Clio V", l.Model)
	require.Equal(t, 12500, l.Price)
	require.Equal(t, 2021, l.Year)
	require.Equal(t, 35000, l.MileageKm)
	require.Equal(t, vehicle.FuelPetrol, l.Fuel)
	require.Equal(t, vehicle.GearboxAutomatic, l.Gearbox)
	require.Equal(t, "Paris 75011", l.Location)
	require.NotNil(t, l.Coordinates)
	require.InDelta(t, 48.8566, l.Coordinates.Lat, 0.001)
	require.Equal(t, "https://www.example.fr/ad/voitures/2345678901.htm", l.URL)
	require.Equal(t, []string{"https://img.example.com/images/abc123.jpg"}, l.Images)
	require.False(t, l.IsProfessionalSeller)
	require.Greater(t, l.QualityScore, 50.0)
}

func TestExtractUnparsableCard(t *testing.T) {
	t.Parallel()

	e := testExtractor(t)
	els := cardsFrom(t, `<html><body><article><span>...</span></article></body></html>`)
	require.Len(t, els, 1)

	_, err := e.Extract(els[0], 0)
	require.ErrorIs(t, err, ErrUnparsable)
}

func TestExtractTitleNeverEmpty(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "title attribute",
			body: `<article title="Peugeot 208 GT Line"><span>quelque chose de long ici pour passer</span></article>`,
			want: "Peugeot 208 GT Line",
		},
		{
			name: "longest plausible line",
			body: `<article><p>14:32</p><p>Tres belle voiture familiale entretenue</p></article>`,
			want: "Tres belle voiture familiale entretenue",
		},
		{
			name: "brand reconstruction",
			body: `<article><p>Dacia Sandero 2019 - 8 500 &euro;</p><p>9 000 km affiches</p></article>`,
			want: "Dacia Sandero 2019",
		},
		{
			name: "url slug",
			body: `<article><a href="/ad/voitures/toyota-yaris-hybride-987654.htm">&gt;&gt;</a></article>`,
			want: "Toyota Yaris Hybride",
		},
		{
			name: "fixed fallback",
			body: `<article><p>prix demande : 1 &euro; symbolique aujourd'hui</p></article>`,
			want: "Sans titre",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := testExtractor(t)
			els := cardsFrom(t, tc.body)
			require.Len(t, els, 1)
			l, err := e.Extract(els[0], 0)
			require.NoError(t, err)
			require.Equal(t, tc.want, l.Title)
			require.NotEmpty(t, l.Title)
		})
	}
}

func TestExtractPriceWindow(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		want int
	}{
		{"narrow no-break space", "12 500 €", 12500},
		{"regular spaces", "8 999 €", 8999},
		{"dot separator", "15.000€", 15000},
		{"too low discarded", "50 €", 0},
		{"too high discarded", "1 200 000 €", 0},
		{"monthly financing ignored", "199 €/mois", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(
				`<article><p>` + tc.text + `</p></article>`))
			require.NoError(t, err)
			el := doc.Find("article").First()
			require.Equal(t, tc.want, extractPrice(el, textLines(el)))
		})
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	t.Parallel()

	e := testExtractor(t)
	els := cardsFrom(t, sampleCard)
	require.Len(t, els, 1)

	first, err := e.Extract(els[0], 0)
	require.NoError(t, err)
	second, err := e.Extract(els[0], 0)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestDetectAttributes(t *testing.T) {
	t.Parallel()

	now := 2026

	require.Equal(t, "Citroën", detectBrand("superbe citroën c3 aircross"))
	require.Equal(t, "", detectBrand("voiture sans marque connue"))

	require.Equal(t, "C3 Aircross", detectModel("Citroën C3 Aircross 2020", "Citroën"))
	require.Equal(t, "208", detectModel("Peugeot 208 - faible kilometrage", "Peugeot"))
	require.Equal(t, "", detectModel("pas de marque ici", ""))

	require.Equal(t, 2021, detectYear("achetee en 2019, modele 2021", now))
	require.Equal(t, 0, detectYear("reference 12345 sans annee", now))
	require.Equal(t, 0, detectYear("annee 2035 impossible", now))

	require.Equal(t, 45000, detectMileage("45 000 km au compteur"))
	require.Equal(t, 45000, detectMileage("45.000 kilomètres"))
	require.Equal(t, 0, detectMileage("45 000 sans unite"))
	require.Equal(t, 0, detectMileage("9999999 km"))

	require.Equal(t, vehicle.FuelElectric, detectFuel("Zoe electrique comme neuve"))
	require.Equal(t, vehicle.FuelHybrid, detectFuel("Yaris hybride essence"))
	require.Equal(t, vehicle.Fuel(""), detectFuel("aucune motorisation citee"))

	require.Equal(t, vehicle.GearboxAutomatic, detectGearbox("boite automatique"))
	require.Equal(t, vehicle.GearboxManual, detectGearbox("boite manuelle 5 vitesses"))
	require.Equal(t, vehicle.Gearbox(""), detectGearbox("automobile ancienne"))

	require.True(t, detectProfessional("vendeur professionnel"))
	require.True(t, detectProfessional("garage pro"))
	require.False(t, detectProfessional("voiture propre et entretenue"))
}

func TestListingIDDerivation(t *testing.T) {
	t.Parallel()

	require.Equal(t, "lbc_123456", listingID("https://ex.fr/ad/voitures/clio-123456.htm", "t", 100, 0))
	require.Equal(t, "https://ex.fr/autre", listingID("https://ex.fr/autre", "t", 100, 0))

	hashed := listingID("", "Clio", 12500, 3)
	require.Len(t, hashed, 16)
	require.Equal(t, hashed, listingID("", "Clio", 12500, 3))
	require.NotEqual(t, hashed, listingID("", "Clio", 12500, 4))
}

func TestExtractImagesRewritesAndCaps(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString(`<article>`)
	sb.WriteString(`<img src="https://cdn.ex.fr/thumbs/a.jpg">`)
	sb.WriteString(`<img src="https://cdn.ex.fr/thumbs/a.jpg">`)
	sb.WriteString(`<img src="https://cdn.ex.fr/images/logo.png">`)
	sb.WriteString(`<img src="/images/relative.jpg">`)
	for i := 0; i < 12; i++ {
		sb.WriteString(`<img src="https://cdn.ex.fr/images/p` + strings.Repeat("x", i+1) + `.jpg">`)
	}
	sb.WriteString(`</article>`)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sb.String()))
	require.NoError(t, err)

	images := extractImages(doc.Find("article").First())
	require.Len(t, images, 10)
	require.Equal(t, "https://cdn.ex.fr/images/a.jpg", images[0])
	for _, img := range images {
		require.NotContains(t, img, "logo")
		require.True(t, strings.HasPrefix(img, "http"))
	}
}

func TestExtractLocationChain(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		body       string
		want       string
		wantCoords bool
	}{
		{
			name:       "structural selector",
			body:       `<article><p data-qa-id="aditem_location">Lyon 69003</p></article>`,
			want:       "Lyon 69003",
			wantCoords: true,
		},
		{
			name:       "city line with department",
			body:       `<article><p>Besancon (25)</p></article>`,
			want:       "Besancon (25)",
			wantCoords: true,
		},
		{
			name:       "noise stripped",
			body:       `<article><p data-qa-id="aditem_location">Marseille 13008 Aujourd'hui 14:30</p></article>`,
			want:       "Marseille 13008",
			wantCoords: true,
		},
		{
			name: "missing falls back",
			body: `<article><p>45 000 km</p></article>`,
			want: "Non spécifié",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tc.body))
			require.NoError(t, err)
			el := doc.Find("article").First()
			loc, coords := extractLocation(el, textLines(el))
			require.Equal(t, tc.want, loc)
			if tc.wantCoords {
				require.NotNil(t, coords)
			} else {
				require.Nil(t, coords)
			}
		})
	}
}
