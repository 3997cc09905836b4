// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package swap implements the oracle-priced swap pool: token and
// price-feed registries, fee and slippage policy, and settlement
// across two vaults.
package swap

import (
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
)

// Amount and price conventions. Token amounts carry 18 implied
// fractional decimal digits; oracle prices carry 8. Swap math rescales
// between the two rather than interpreting each quote's exponent.
const (
	AmountDecimals = 18
	OracleDecimals = 8

	// MaxFeeBps caps the swap fee at 10%.
	MaxFeeBps uint64 = 1000
	// BpsDenominator is the basis-point scale.
	BpsDenominator uint64 = 10000

	// MaxPriceAge is the staleness window for quotes, in seconds.
	MaxPriceAge uint64 = 60
)

// priceRescale is 10^(AmountDecimals-OracleDecimals).
var priceRescale = big.NewInt(10_000_000_000)

// Quote is the latest oracle reading for one price feed. Price is
// scaled by 10^Expo; a non-positive price makes the quote unusable.
// Quotes are overwritten wholesale per feed, never merged.
type Quote struct {
	Price       int64
	Conf        uint64
	Expo        int32
	PublishTime uint64 // Unix seconds
}

// Valid reports whether the quote's price is usable for swap math.
func (q Quote) Valid() bool { return q.Price > 0 }

// Params describes one swap request.
type Params struct {
	TokenIn      common.Address
	TokenOut     common.Address
	AmountIn     *big.Int
	MinAmountOut *big.Int
}

// Receipt records an executed swap.
type Receipt struct {
	ID        [32]byte
	Caller    common.Address
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
	Fee       *big.Int
	Time      uint64
}

// Errors - registry and admin
var (
	ErrLengthMismatch = errors.New("length mismatch")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrFeeTooHigh     = errors.New("fee exceeds cap")
	ErrVaultNotSet    = errors.New("vault not set")
)

// Errors - swap validation
var (
	ErrZeroAmount       = errors.New("amount must be positive")
	ErrSameToken        = errors.New("input and output token are identical")
	ErrSlippageExceeded = errors.New("output below minimum")
)

// Errors - price resolution
var (
	ErrMissingFeed      = errors.New("no price feed for token")
	ErrInvalidPrice     = errors.New("non-positive price")
	ErrStalePrice       = errors.New("price too old")
	ErrQuoteUnsupported = errors.New("direct quoting not supported, use Swap")
)
