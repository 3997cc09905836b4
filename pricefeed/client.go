// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pricefeed fetches oracle quotes over HTTP and pushes them
// into the pool on a fixed cadence. It is the venue-side realization
// of the external price-update collaborator: a single source, no
// aggregation, no circuit breakers.
package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/oracleswap/swap"
)

// ErrNoFeeds is returned when the oracle answers with an empty set.
var ErrNoFeeds = errors.New("oracle returned no price feeds")

// Client queries a Hermes-style price service.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
	}
}

type feedEnvelope struct {
	ID    string    `json:"id"`
	Price priceData `json:"price"`
}

type priceData struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Expo        int32  `json:"expo"`
	PublishTime uint64 `json:"publish_time"`
}

// Latest fetches the newest quote for each feed ID. The returned
// slices pair up by index and follow the server's response order.
func (c *Client) Latest(ctx context.Context, ids []common.Hash) ([]common.Hash, []swap.Quote, error) {
	q := url.Values{}
	for _, id := range ids {
		q.Add("ids[]", id.Hex())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/latest_price_feeds?"+q.Encode(), nil)
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, nil, fmt.Errorf("oracle responded %d: %s", resp.StatusCode, body)
	}

	var feeds []feedEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&feeds); err != nil {
		return nil, nil, fmt.Errorf("decode oracle response: %w", err)
	}
	if len(feeds) == 0 {
		return nil, nil, ErrNoFeeds
	}

	outIDs := make([]common.Hash, 0, len(feeds))
	quotes := make([]swap.Quote, 0, len(feeds))
	for _, f := range feeds {
		price, err := strconv.ParseInt(f.Price.Price, 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("feed %s: parse price %q: %w", f.ID, f.Price.Price, err)
		}
		conf, err := strconv.ParseUint(f.Price.Conf, 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("feed %s: parse conf %q: %w", f.ID, f.Price.Conf, err)
		}

		outIDs = append(outIDs, common.HexToHash(f.ID))
		quotes = append(quotes, swap.Quote{
			Price:       price,
			Conf:        conf,
			Expo:        f.Price.Expo,
			PublishTime: f.Price.PublishTime,
		})
	}
	return outIDs, quotes, nil
}
