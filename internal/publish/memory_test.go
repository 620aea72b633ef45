package publish

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/autotrack/autotrack/internal/vehicle"
)

func TestMemoryRecordsListings(t *testing.T) {
	t.Parallel()

	pub := NewMemory()

	id1, err := pub.Publish(context.Background(), vehicle.Listing{ID: "lbc_1"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)

	id2, err := pub.Publish(context.Background(), vehicle.Listing{ID: "lbc_2"})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	got := pub.Published()
	require.Len(t, got, 2)
	require.Equal(t, "lbc_1", got[0].ID)

	got[0].ID = "mutated"
	require.Equal(t, "lbc_1", pub.Published()[0].ID)
	require.NoError(t, pub.Close())
}
