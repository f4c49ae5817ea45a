/*

The inventory ledger tracks which discrete item identifiers the vault currently
holds. Membership is an unordered set with idempotent insert: duplicates are
structurally impossible and insertion order carries no meaning.

*/

package inventory

import (
	"sort"

	"github.com/RyanSea/AlignmentVault/internal/types"
)

// Ledger is the deduplicated set of item ids the vault believes it holds.
// It is not safe for concurrent use; the vault's entry-point guard serializes
// all access.
type Ledger struct {
	items map[types.ItemID]struct{}
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{items: make(map[types.ItemID]struct{})}
}

// Add inserts an item id. It reports whether the id was newly inserted;
// re-adding a tracked id is a no-op.
func (l *Ledger) Add(id types.ItemID) bool {
	if _, ok := l.items[id]; ok {
		return false
	}
	l.items[id] = struct{}{}
	return true
}

// Contains reports whether the id is tracked.
func (l *Ledger) Contains(id types.ItemID) bool {
	_, ok := l.items[id]
	return ok
}

// Remove deletes an item id. It reports whether the id was tracked.
func (l *Ledger) Remove(id types.ItemID) bool {
	if _, ok := l.items[id]; !ok {
		return false
	}
	delete(l.items, id)
	return true
}

// Len returns the number of tracked ids.
func (l *Ledger) Len() int {
	return len(l.items)
}

// Items returns the tracked ids in ascending order. Sorting exists only to make
// consumption deterministic; the set itself is unordered.
func (l *Ledger) Items() []types.ItemID {
	out := make([]types.ItemID, 0, len(l.items))
	for id := range l.items {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
