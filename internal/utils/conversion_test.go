package utils

import (
	"math/big"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBigIntToSDKInt(t *testing.T) {
	got, err := BigIntToSDKInt(big.NewInt(1234))
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(1234), got)

	_, err = BigIntToSDKInt(nil)
	require.ErrorIs(t, err, ErrAmountNil)

	_, err = BigIntToSDKInt(big.NewInt(-1))
	require.ErrorIs(t, err, ErrAmountNegative)
}

func TestSDKIntToBigInt(t *testing.T) {
	got, err := SDKIntToBigInt(sdkmath.NewInt(5678))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5678), got)

	_, err = SDKIntToBigInt(sdkmath.Int{})
	require.ErrorIs(t, err, ErrAmountNil)

	_, err = SDKIntToBigInt(sdkmath.NewInt(-1))
	require.ErrorIs(t, err, ErrAmountNegative)
}

func TestSDKIntToDisplay(t *testing.T) {
	// 1.5 ether in wei at 18 decimals
	amount, ok := sdkmath.NewIntFromString("1500000000000000000")
	require.True(t, ok)

	got, err := SDKIntToDisplay(amount, 18)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, got, 1e-9)

	got, err = SDKIntToDisplay(sdkmath.NewInt(42), 0)
	require.NoError(t, err)
	assert.InDelta(t, 42.0, got, 1e-9)

	_, err = SDKIntToDisplay(amount, -1)
	require.ErrorIs(t, err, ErrInvalidPrecision)
	_, err = SDKIntToDisplay(amount, 19)
	require.ErrorIs(t, err, ErrInvalidPrecision)
	_, err = SDKIntToDisplay(sdkmath.Int{}, 6)
	require.ErrorIs(t, err, ErrAmountNil)
}

func TestPowerOfTen(t *testing.T) {
	got, err := PowerOfTen(0)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(1), got)

	got, err = PowerOfTen(18)
	require.NoError(t, err)
	expected, ok := sdkmath.NewIntFromString("1000000000000000000")
	require.True(t, ok)
	assert.Equal(t, expected, got)

	_, err = PowerOfTen(-1)
	require.ErrorIs(t, err, ErrInvalidPrecision)
	_, err = PowerOfTen(31)
	require.ErrorIs(t, err, ErrInvalidPrecision)
}
