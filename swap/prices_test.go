// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package swap

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func TestPool_UpdatePrices(t *testing.T) {
	tv := newTestVenue(t)

	q := Quote{Price: 123, Conf: 1, Expo: -8, PublishTime: testClock}
	require.NoError(t, tv.pool.UpdatePrices(testOwner, []common.Hash{feedA}, []Quote{q}))

	got, ok := tv.pool.LatestQuote(feedA)
	require.True(t, ok)
	require.Equal(t, q, got)

	// Overwrites are unconditional, even with an older publish time.
	older := Quote{Price: 456, Conf: 1, Expo: -8, PublishTime: testClock - 100}
	require.NoError(t, tv.pool.UpdatePrices(testOwner, []common.Hash{feedA}, []Quote{older}))
	got, _ = tv.pool.LatestQuote(feedA)
	require.Equal(t, older, got)
}

func TestPool_UpdatePricesRejections(t *testing.T) {
	tv := newTestVenue(t)

	err := tv.pool.UpdatePrices(testUser, []common.Hash{feedA}, []Quote{{Price: 1, PublishTime: testClock}})
	require.ErrorIs(t, err, ErrUnauthorized)

	err = tv.pool.UpdatePrices(testOwner, []common.Hash{feedA, feedB}, []Quote{{Price: 1}})
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestPool_ValidQuote(t *testing.T) {
	tv := newTestVenue(t)
	p := tv.pool

	q, err := p.validQuote(tokenA)
	require.NoError(t, err)
	require.Equal(t, priceA, q.Price)

	// No feed registered for the token.
	other := common.HexToAddress("0xaaaa000000000000000000000000000000000003")
	_, err = p.validQuote(other)
	require.ErrorIs(t, err, ErrMissingFeed)

	// Feed registered but no quote stored yet.
	fresh, err := NewPool(testOwner, testPoolAddr, []common.Address{tokenA}, []common.Hash{feedA})
	require.NoError(t, err)
	_, err = fresh.validQuote(tokenA)
	require.ErrorIs(t, err, ErrInvalidPrice)

	// Non-positive prices are invalid.
	require.NoError(t, p.UpdatePrices(testOwner, []common.Hash{feedA}, []Quote{{Price: 0, PublishTime: testClock}}))
	_, err = p.validQuote(tokenA)
	require.ErrorIs(t, err, ErrInvalidPrice)

	require.NoError(t, p.UpdatePrices(testOwner, []common.Hash{feedA}, []Quote{{Price: -5, PublishTime: testClock}}))
	_, err = p.validQuote(tokenA)
	require.ErrorIs(t, err, ErrInvalidPrice)
}

func TestPool_ValidQuoteStalenessBoundary(t *testing.T) {
	tv := newTestVenue(t)
	p := tv.pool

	set := func(publishTime uint64) {
		require.NoError(t, p.UpdatePrices(testOwner,
			[]common.Hash{feedA},
			[]Quote{{Price: priceA, Conf: 1, Expo: -8, PublishTime: publishTime}}))
	}

	// Exactly MaxPriceAge old is still usable.
	set(testClock - MaxPriceAge)
	_, err := p.validQuote(tokenA)
	require.NoError(t, err)

	// One second past the window is stale.
	set(testClock - MaxPriceAge - 1)
	_, err = p.validQuote(tokenA)
	require.ErrorIs(t, err, ErrStalePrice)

	// A publish time ahead of the clock passes; the check bounds
	// staleness only.
	set(testClock + 1000)
	_, err = p.validQuote(tokenA)
	require.NoError(t, err)
}

func TestPool_SwapRejectsStaleQuote(t *testing.T) {
	tv := newTestVenue(t)
	p := tv.pool

	require.NoError(t, p.UpdatePrices(testOwner,
		[]common.Hash{feedB},
		[]Quote{{Price: priceB, Conf: 1, Expo: -8, PublishTime: testClock - MaxPriceAge - 1}}))

	_, err := p.Swap(testUser, Params{
		TokenIn: tokenA, TokenOut: tokenB,
		AmountIn: bigInt("1000000000000000000"),
	})
	require.ErrorIs(t, err, ErrStalePrice)

	// No side effects.
	require.Zero(t, tv.ledgerA.BalanceOf(testUser).Cmp(bigInt("1000000000000000000000")))
}
