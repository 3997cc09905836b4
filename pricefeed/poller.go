// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pricefeed

import (
	"context"
	"time"

	"github.com/luxfi/geth/common"
	"go.uber.org/zap"

	"github.com/luxfi/oracleswap/swap"
)

// QuoteSink receives fetched quotes. *swap.Pool satisfies it through a
// bound adapter; see SinkFunc.
type QuoteSink interface {
	UpdatePrices(feedIDs []common.Hash, quotes []swap.Quote) error
}

// SinkFunc adapts a function to QuoteSink.
type SinkFunc func(feedIDs []common.Hash, quotes []swap.Quote) error

// UpdatePrices implements QuoteSink.
func (f SinkFunc) UpdatePrices(feedIDs []common.Hash, quotes []swap.Quote) error {
	return f(feedIDs, quotes)
}

// Config controls the poll cadence and retry behavior.
type Config struct {
	Interval     time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Poller periodically fetches quotes and pushes them into the sink.
// A fetch that keeps failing past its retries is logged and skipped:
// the venue simply goes stale until the next round succeeds, matching
// the staleness window's retry-by-resubmission model.
type Poller struct {
	client *Client
	sink   QuoteSink
	ids    []common.Hash
	cfg    Config
	log    *zap.Logger
}

// NewPoller creates a poller for the given feed IDs.
func NewPoller(client *Client, sink QuoteSink, ids []common.Hash, cfg Config, log *zap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	return &Poller{client: client, sink: sink, ids: ids, cfg: cfg, log: log}
}

// Run polls until ctx is canceled. The first fetch happens immediately.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	var (
		ids    []common.Hash
		quotes []swap.Quote
	)
	err := withRetry(ctx, p.cfg.MaxRetries, p.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ids, quotes, err = p.client.Latest(ctx, p.ids)
		return err
	})
	if err != nil {
		p.log.Warn("price fetch failed, quotes will go stale", zap.Error(err))
		return
	}

	if err := p.sink.UpdatePrices(ids, quotes); err != nil {
		p.log.Error("price push rejected", zap.Error(err))
		return
	}
	p.log.Debug("prices updated", zap.Int("feeds", len(ids)))
}

func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
