/*

The reserve oracle derives a floor price, in currency units per whole item, from
the external pool's spot reserves. The estimate is advisory: it is manipulable
within a single externally-sequenced transaction and the caller accepts it as
the trusted price for that same transaction's alignment actions.

*/

package oracle

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/RyanSea/AlignmentVault/internal/logger"
	"github.com/RyanSea/AlignmentVault/internal/types"
	"github.com/RyanSea/AlignmentVault/internal/venue"
)

// ErrNoNFTXVault indicates the external pool is unavailable or its reserves are
// degenerate, leaving the floor price undefined.
var ErrNoNFTXVault = errors.New("nftx vault unavailable or reserves degenerate")

// FloorOracle reads pool reserves and computes floor estimates for one bound
// pool vault.
type FloorOracle struct {
	source      venue.ReserveSource
	poolVaultID types.PoolVaultID
	scale       sdkmath.Int // item-share token units per whole item
	logger      zerolog.Logger
}

// New creates a floor oracle bound to a pool vault. scale is the fixed-point
// denomination the item-share token uses per whole item.
func New(source venue.ReserveSource, poolVaultID types.PoolVaultID, scale sdkmath.Int) (*FloorOracle, error) {
	if source == nil {
		return nil, fmt.Errorf("reserve source cannot be nil")
	}
	if scale.IsNil() || !scale.IsPositive() {
		return nil, fmt.Errorf("share scale must be positive")
	}
	return &FloorOracle{
		source:      source,
		poolVaultID: poolVaultID,
		scale:       scale,
		logger:      logger.GetForComponent("floor_oracle"),
	}, nil
}

// Snapshot returns the pool's current reserves.
func (o *FloorOracle) Snapshot(ctx context.Context) (types.ReserveSnapshot, error) {
	snap, err := o.source.Reserves(ctx, o.poolVaultID)
	if err != nil {
		return types.ReserveSnapshot{}, fmt.Errorf("%w: %w", ErrNoNFTXVault, err)
	}
	return snap, nil
}

// EstimateFloor computes currencyReserve * scale / itemShareReserve. A zero
// item-share reserve must never surface as a division fault; it is reported as
// ErrNoNFTXVault instead.
func (o *FloorOracle) EstimateFloor(ctx context.Context) (sdkmath.Int, error) {
	snap, err := o.Snapshot(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if snap.ItemShareReserve.IsNil() || snap.ItemShareReserve.IsZero() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: item-share reserve is zero", ErrNoNFTXVault)
	}
	if snap.CurrencyReserve.IsNil() || snap.CurrencyReserve.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: currency reserve is invalid", ErrNoNFTXVault)
	}

	floor := snap.CurrencyReserve.Mul(o.scale).Quo(snap.ItemShareReserve)
	o.logger.Debug().
		Uint64("poolVaultID", uint64(o.poolVaultID)).
		Str("currencyReserve", snap.CurrencyReserve.String()).
		Str("itemShareReserve", snap.ItemShareReserve.String()).
		Str("floorPrice", floor.String()).
		Msg("Estimated floor price from pool reserves")
	return floor, nil
}
