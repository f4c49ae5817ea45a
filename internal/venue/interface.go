/*

Interfaces for the external liquidity venue the vault integrates with. The vault
trusts the venue for price discovery and reward accrual; everything behind these
interfaces is a fallible, side-effecting external call.

*/

package venue

import (
	"context"
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/RyanSea/AlignmentVault/internal/types"
)

// ErrNoVaultForCollection indicates the registry has no pool for a collection,
// or the requested pool id does not belong to it.
var ErrNoVaultForCollection = errors.New("no pool vault exists for the collection")

// PoolRegistry resolves the pools the external venue maintains per collection.
type PoolRegistry interface {
	// VaultsForCollection returns every pool vault id registered for the
	// collection, in registration order. An empty result is not an error.
	VaultsForCollection(ctx context.Context, collection common.Address) ([]types.PoolVaultID, error)
}

// ReserveSource reads the current reserves of a collection-level pool.
type ReserveSource interface {
	Reserves(ctx context.Context, id types.PoolVaultID) (types.ReserveSnapshot, error)
}

// LiquidityVenue adds liquidity to a pool. Liquidity added through this entry
// point is never removed by the vault afterward.
type LiquidityVenue interface {
	// AddLiquidity submits a (currency, items, shares) bundle and returns the
	// amount of pool-liquidity tokens minted to the caller.
	AddLiquidity(ctx context.Context, id types.PoolVaultID, currencyAmount sdkmath.Int, itemIDs []types.ItemID, shareAmount sdkmath.Int) (sdkmath.Int, error)
}

// StakingPosition is the vault's claim on the external staking system, opaque
// except for the reward it accrues.
type StakingPosition interface {
	Stake(ctx context.Context, lpTokens sdkmath.Int) error
	ClaimRewards(ctx context.Context) (sdkmath.Int, error)
	PendingRewards(ctx context.Context) (sdkmath.Int, error)
}

// ItemRegistry answers ownership queries for discrete items of a collection.
type ItemRegistry interface {
	OwnerOf(ctx context.Context, id types.ItemID) (common.Address, error)
}

// FungibleToken is the minimal ERC-20 style surface the vault needs for the
// wrapped currency and the fungible item-share token.
type FungibleToken interface {
	BalanceOf(ctx context.Context, owner common.Address) (sdkmath.Int, error)
	Transfer(ctx context.Context, to common.Address, amount sdkmath.Int) error
}

// CurrencyWrapper wraps native currency into its fungible equivalent. The vault
// never unwraps: aligned currency has no exit path.
type CurrencyWrapper interface {
	FungibleToken
	Wrap(ctx context.Context, amount sdkmath.Int) error
}

// ResolvePoolVault applies the sentinel rule against a registry: a requested id
// of 0 resolves to the collection's first pool, any other id must be registered
// for the collection.
func ResolvePoolVault(ctx context.Context, registry PoolRegistry, collection common.Address, requested types.PoolVaultID) (types.PoolVaultID, error) {
	ids, err := registry.VaultsForCollection(ctx, collection)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, ErrNoVaultForCollection
	}
	if requested == types.SentinelPoolVaultID {
		return ids[0], nil
	}
	for _, id := range ids {
		if id == requested {
			return id, nil
		}
	}
	return 0, ErrNoVaultForCollection
}
