/*

Core types shared across the vault: item identifiers, pool reserve snapshots,
and the receipts the journal persists for every alignment and yield operation.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// ItemID identifies a single discrete item of the aligned collection.
type ItemID uint64

// PoolVaultID identifies a collection-level pool on the external venue.
type PoolVaultID uint64

// SentinelPoolVaultID means "use the first available pool for the collection".
const SentinelPoolVaultID PoolVaultID = 0

// ReserveSnapshot is an ephemeral read of the external pool's reserves.
// It is computed on demand and never stored.
type ReserveSnapshot struct {
	CurrencyReserve  sdkmath.Int `json:"currency_reserve"`   // wrapped currency side
	ItemShareReserve sdkmath.Int `json:"item_share_reserve"` // fungible item-share side
}

// AlignmentKind names which provisioning path produced a receipt.
type AlignmentKind string

const (
	AlignmentNfts   AlignmentKind = "ALIGN_NFTS"   // explicit item list paired at floor
	AlignmentTokens AlignmentKind = "ALIGN_TOKENS" // amount-bounded, share-only
	AlignmentMax    AlignmentKind = "ALIGN_MAX"    // greedy maximal deployment
)

// AlignmentReceipt records one completed liquidity alignment.
type AlignmentReceipt struct {
	OperationID   string        `json:"operation_id"`
	Kind          AlignmentKind `json:"kind"`
	ItemIDs       []ItemID      `json:"item_ids,omitempty"`
	CurrencySpent sdkmath.Int   `json:"currency_spent"`
	SharesSpent   sdkmath.Int   `json:"shares_spent"`
	FloorPrice    sdkmath.Int   `json:"floor_price"`
	LPMinted      sdkmath.Int   `json:"lp_minted"`
	Timestamp     time.Time     `json:"timestamp"`
}

// YieldReceipt records one completed claim-and-split.
type YieldReceipt struct {
	OperationID string      `json:"operation_id"`
	Claimed     sdkmath.Int `json:"claimed"`
	Compounded  sdkmath.Int `json:"compounded"`
	PaidOut     sdkmath.Int `json:"paid_out"`
	Recipient   string      `json:"recipient"` // empty when fully compounded
	Timestamp   time.Time   `json:"timestamp"`
}

// InventoryEventKind names how an item entered or left the ledger.
type InventoryEventKind string

const (
	InventoryReceived   InventoryEventKind = "RECEIVED"   // safe-transfer hook
	InventoryDiscovered InventoryEventKind = "DISCOVERED" // reconciliation scan
	InventoryConsumed   InventoryEventKind = "CONSUMED"   // spent by the aligner
)

// InventoryEvent records a single ledger membership change.
type InventoryEvent struct {
	Kind      InventoryEventKind `json:"kind"`
	ItemID    ItemID             `json:"item_id"`
	Timestamp time.Time          `json:"timestamp"`
}

// VaultSummary is the operator-facing view of the vault's bound identity
// and current holdings.
type VaultSummary struct {
	Collection      string      `json:"collection"`
	PoolVaultID     PoolVaultID `json:"pool_vault_id"`
	Owner           string      `json:"owner"`
	InventorySize   int         `json:"inventory_size"`
	Inventory       []ItemID    `json:"inventory"`
	CurrencyBalance string      `json:"currency_balance"`
	ShareBalance    string      `json:"share_balance"`
	PendingYield    string      `json:"pending_yield"`
}
