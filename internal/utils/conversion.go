/*
This file contains common utility functions for converting between chain-native
big integers, SDK math types, and display values, with precision handling.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// BigIntToSDKInt converts a chain-native *big.Int to an SDK Int.
func BigIntToSDKInt(amount *big.Int) (sdkmath.Int, error) {
	if amount == nil {
		return sdkmath.ZeroInt(), ErrAmountNil
	}
	if amount.Sign() < 0 {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	return sdkmath.NewIntFromBigInt(amount), nil
}

// SDKIntToBigInt converts an SDK Int to a chain-native *big.Int.
func SDKIntToBigInt(amount sdkmath.Int) (*big.Int, error) {
	if amount.IsNil() {
		return nil, ErrAmountNil
	}
	if amount.IsNegative() {
		return nil, ErrAmountNegative
	}
	return amount.BigInt(), nil
}

// SDKIntToDisplay converts an SDK Int to a float64 display value with proper
// precision handling. Display values are for logs and dashboards only, never
// for value that moves.
func SDKIntToDisplay(amount sdkmath.Int, precision int) (float64, error) {
	if precision < 0 || precision > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	decAmount := sdkmath.LegacyNewDecFromInt(amount)
	factor := sdkmath.LegacyNewDec(1)
	for i := 0; i < precision; i++ {
		factor = factor.Mul(sdkmath.LegacyNewDec(10))
	}

	result := decAmount.Quo(factor)
	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}

// PowerOfTen returns 10^exp as an SDK Int. Used for share-scale construction.
func PowerOfTen(exp int) (sdkmath.Int, error) {
	if exp < 0 || exp > 30 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d", ErrInvalidPrecision, exp)
	}
	result := sdkmath.NewInt(1)
	ten := sdkmath.NewInt(10)
	for i := 0; i < exp; i++ {
		result = result.Mul(ten)
	}
	return result, nil
}
