package oracle

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanSea/AlignmentVault/internal/types"
)

// stubReserves is a deterministic stand-in for the external reserve source.
type stubReserves struct {
	snapshot types.ReserveSnapshot
	err      error
}

func (s *stubReserves) Reserves(_ context.Context, _ types.PoolVaultID) (types.ReserveSnapshot, error) {
	return s.snapshot, s.err
}

func newTestOracle(t *testing.T, currency, shares int64) *FloorOracle {
	t.Helper()
	o, err := New(&stubReserves{snapshot: types.ReserveSnapshot{
		CurrencyReserve:  sdkmath.NewInt(currency),
		ItemShareReserve: sdkmath.NewInt(shares),
	}}, 1, sdkmath.NewInt(1))
	require.NoError(t, err)
	return o
}

func TestEstimateFloorFromReserves(t *testing.T) {
	// reserves = (100 currency, 10 item-shares at scale 1) => 10 currency/item
	o := newTestOracle(t, 100, 10)

	floor, err := o.EstimateFloor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(10), floor)
}

func TestEstimateFloorMonotonicity(t *testing.T) {
	base, err := newTestOracle(t, 100, 10).EstimateFloor(context.Background())
	require.NoError(t, err)

	// Increasing in currency reserve
	richer, err := newTestOracle(t, 200, 10).EstimateFloor(context.Background())
	require.NoError(t, err)
	assert.True(t, richer.GT(base))

	// Decreasing in item-share reserve
	diluted, err := newTestOracle(t, 100, 20).EstimateFloor(context.Background())
	require.NoError(t, err)
	assert.True(t, diluted.LT(base))
}

func TestEstimateFloorZeroShareReserve(t *testing.T) {
	o := newTestOracle(t, 100, 0)

	_, err := o.EstimateFloor(context.Background())
	require.ErrorIs(t, err, ErrNoNFTXVault)
}

func TestEstimateFloorSourceFailure(t *testing.T) {
	o, err := New(&stubReserves{err: errors.New("rpc timeout")}, 1, sdkmath.NewInt(1))
	require.NoError(t, err)

	_, err = o.EstimateFloor(context.Background())
	require.ErrorIs(t, err, ErrNoNFTXVault)
}

func TestEstimateFloorRespectsShareScale(t *testing.T) {
	// 3 whole items fractionalized at 1e6 per item against 30 currency units
	o, err := New(&stubReserves{snapshot: types.ReserveSnapshot{
		CurrencyReserve:  sdkmath.NewInt(30),
		ItemShareReserve: sdkmath.NewInt(3_000_000),
	}}, 1, sdkmath.NewInt(1_000_000))
	require.NoError(t, err)

	floor, err := o.EstimateFloor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(10), floor)
}

func TestNewOracleValidation(t *testing.T) {
	_, err := New(nil, 1, sdkmath.NewInt(1))
	require.Error(t, err)

	_, err = New(&stubReserves{}, 1, sdkmath.ZeroInt())
	require.Error(t, err)
}
