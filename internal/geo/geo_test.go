package geo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistanceKm(t *testing.T) {
	t.Parallel()

	paris := Point{Lat: 48.8566, Lon: 2.3522}
	lyon := Point{Lat: 45.7640, Lon: 4.8357}

	require.InDelta(t, 0, DistanceKm(paris, paris), 1e-9)
	// Paris–Lyon great-circle distance is roughly 392 km.
	require.InDelta(t, 392, DistanceKm(paris, lyon), 3)
	require.InDelta(t, DistanceKm(paris, lyon), DistanceKm(lyon, paris), 1e-9)
}

func TestGazetteerResolve(t *testing.T) {
	t.Parallel()

	g := NewGazetteer()

	tests := []struct {
		query string
		found bool
	}{
		{"Paris", true},
		{"paris", true},
		{"PARIS", true},
		{"Paris 11e", true},
		{"saint etienne", true},
		{"Saint-Étienne", true},
		{"orleans", true},
		{"Besancon", true},
		{"Atlantis", false},
		{"", false},
	}
	for _, tc := range tests {
		_, ok := g.Resolve(tc.query)
		require.Equal(t, tc.found, ok, "query %q", tc.query)
	}

	paris, ok := g.Resolve("Paris")
	require.True(t, ok)
	require.InDelta(t, 48.8566, paris.Lat, 1e-4)
	require.InDelta(t, 2.3522, paris.Lon, 1e-4)
}
