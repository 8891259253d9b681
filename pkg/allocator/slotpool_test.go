package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klipps/zuteilung-api-go/pkg/models"
)

func TestSlotPool_BuildAndTake(t *testing.T) {
	clinics := []*models.Clinic{
		clinic("K1", true, map[string]int{"A": 2, "B": 0}, 0),
		clinic("K2", false, map[string]int{"A": 1}, 1),
	}
	pool := BuildSlotPool(clinics, []string{"A", "B"})

	assert.Equal(t, 3, pool.TotalRemaining())

	// Zero-capacity pairs are never present.
	assert.False(t, pool.Take("B", "K1"))
	assert.False(t, pool.Take("A", "K9"))
	assert.False(t, pool.Take("C", "K1"))

	require.True(t, pool.Take("A", "K1"))
	require.True(t, pool.Take("A", "K1"))
	assert.False(t, pool.Take("A", "K1"), "pair must be exhausted after two takes")
	assert.Equal(t, 1, pool.TotalRemaining())

	require.True(t, pool.Take("A", "K2"))
	assert.Equal(t, 0, pool.TotalRemaining())
}

func TestSlotPool_IgnoresUndeclaredGroups(t *testing.T) {
	// Capacity entries for groups outside the discovered set contribute no
	// seats.
	clinics := []*models.Clinic{
		clinic("K1", true, map[string]int{"A": 1, "X": 4}, 0),
	}
	pool := BuildSlotPool(clinics, []string{"A"})
	assert.Equal(t, 1, pool.TotalRemaining())
	assert.False(t, pool.Take("X", "K1"))
}
