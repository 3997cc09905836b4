// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package swap

import (
	"fmt"

	"github.com/luxfi/geth/common"
)

// UpdatePrices overwrites the stored quote for each feed ID. Only the
// pool owner may call it. Stale or invalid quotes are stored as-is;
// validation happens at read time, inside Swap.
func (p *Pool) UpdatePrices(caller common.Address, feedIDs []common.Hash, quotes []Quote) error {
	if len(feedIDs) != len(quotes) {
		return fmt.Errorf("%w: %d feed ids, %d quotes", ErrLengthMismatch, len(feedIDs), len(quotes))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.owner {
		return fmt.Errorf("%w: caller %s is not the owner", ErrUnauthorized, caller.Hex())
	}

	for i, id := range feedIDs {
		p.prices[id] = quotes[i]
	}
	return nil
}

// LatestQuote returns the stored quote for a feed, unvalidated.
func (p *Pool) LatestQuote(feedID common.Hash) (Quote, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	q, ok := p.prices[feedID]
	return q, ok
}

// validQuote resolves the usable quote for token. Caller holds mu (read
// or write). The staleness check adds the window to the publish time
// instead of subtracting from the clock, so an unsigned underflow can
// never make an ancient quote look fresh. A publish time in the future
// passes: the check bounds staleness, not futurity.
func (p *Pool) validQuote(token common.Address) (Quote, error) {
	feedID, ok := p.feedIDs[token]
	if !ok {
		return Quote{}, fmt.Errorf("%w: token %s", ErrMissingFeed, token.Hex())
	}

	q, ok := p.prices[feedID]
	if !ok || !q.Valid() {
		return Quote{}, fmt.Errorf("%w: feed %s", ErrInvalidPrice, feedID.Hex())
	}

	if q.PublishTime+MaxPriceAge < p.now() {
		return Quote{}, fmt.Errorf("%w: feed %s published at %d", ErrStalePrice, feedID.Hex(), q.PublishTime)
	}

	return q, nil
}
