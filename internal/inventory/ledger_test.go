package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanSea/AlignmentVault/internal/types"
)

func TestLedgerAddIsIdempotent(t *testing.T) {
	l := NewLedger()

	require.True(t, l.Add(42))
	require.False(t, l.Add(42))
	require.False(t, l.Add(42))

	assert.Equal(t, 1, l.Len())
	assert.True(t, l.Contains(42))
}

func TestLedgerRemove(t *testing.T) {
	l := NewLedger()
	l.Add(7)

	require.True(t, l.Remove(7))
	assert.False(t, l.Contains(7))
	assert.Equal(t, 0, l.Len())

	// Removing an untracked id reports false, mutates nothing
	require.False(t, l.Remove(7))
	require.False(t, l.Remove(999))
}

func TestLedgerItemsSortedAscending(t *testing.T) {
	l := NewLedger()
	for _, id := range []types.ItemID{31, 4, 159, 26, 5} {
		l.Add(id)
	}

	assert.Equal(t, []types.ItemID{4, 5, 26, 31, 159}, l.Items())
}

func TestLedgerItemsEmpty(t *testing.T) {
	l := NewLedger()
	assert.Empty(t, l.Items())
	assert.Equal(t, 0, l.Len())
}
