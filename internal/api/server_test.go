// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luxfi/oracleswap/swap"
	"github.com/luxfi/oracleswap/vault"
)

var (
	apiOwner    = common.HexToAddress("0x2000000000000000000000000000000000000001")
	apiPoolAddr = common.HexToAddress("0x2000000000000000000000000000000000000002")
	apiUser     = common.HexToAddress("0x2000000000000000000000000000000000000003")

	apiTokenA   = common.HexToAddress("0xcccc000000000000000000000000000000000001")
	apiTokenB   = common.HexToAddress("0xcccc000000000000000000000000000000000002")
	apiCustodyA = common.HexToAddress("0xdddd000000000000000000000000000000000001")
	apiCustodyB = common.HexToAddress("0xdddd000000000000000000000000000000000002")

	apiFeedA = common.HexToHash("0x11")
	apiFeedB = common.HexToHash("0x12")
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	n, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok)
	return n
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ledgerA := vault.NewMemToken("TKA")
	ledgerB := vault.NewMemToken("TKB")
	vaultA := vault.New(ledgerA, apiTokenA, apiCustodyA, 7)
	vaultB := vault.New(ledgerB, apiTokenB, apiCustodyB, 7)

	pool, err := swap.NewPool(apiOwner, apiPoolAddr,
		[]common.Address{apiTokenA, apiTokenB},
		[]common.Hash{apiFeedA, apiFeedB})
	require.NoError(t, err)
	require.NoError(t, pool.SetVault(apiOwner, apiTokenA, vaultA))
	require.NoError(t, pool.SetVault(apiOwner, apiTokenB, vaultB))
	require.NoError(t, pool.SetFeeBps(apiOwner, 30))

	seed := mustBig(t, "100000000000000000000000")
	unlimited := mustBig(t, "1000000000000000000000000000000")
	require.NoError(t, ledgerA.Mint(apiPoolAddr, seed))
	require.NoError(t, ledgerB.Mint(apiPoolAddr, seed))
	require.NoError(t, ledgerA.Approve(apiPoolAddr, apiCustodyA, unlimited))
	require.NoError(t, ledgerB.Approve(apiPoolAddr, apiCustodyB, unlimited))
	require.NoError(t, pool.Bootstrap(apiOwner, []*big.Int{seed, seed}))

	require.NoError(t, ledgerA.Mint(apiUser, mustBig(t, "1000000000000000000000")))
	require.NoError(t, ledgerA.Approve(apiUser, apiPoolAddr, unlimited))

	now := uint64(time.Now().Unix())
	require.NoError(t, pool.UpdatePrices(apiOwner,
		[]common.Hash{apiFeedA, apiFeedB},
		[]swap.Quote{
			{Price: 99_868_428, Conf: 1, Expo: -8, PublishTime: now},
			{Price: 79_000_000, Conf: 1, Expo: -8, PublishTime: now},
		}))

	srv := httptest.NewServer(NewServer(pool, zap.NewNop()).Router())
	t.Cleanup(srv.Close)
	return srv
}

func TestServer_Status(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		FeeBps uint64 `json:"feeBps"`
		Tokens []struct {
			Token    string `json:"token"`
			FeedID   string `json:"feedId"`
			Price    int64  `json:"price"`
			HasQuote bool   `json:"hasQuote"`
		} `json:"tokens"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, uint64(30), body.FeeBps)
	require.Len(t, body.Tokens, 2)
	require.Equal(t, apiTokenA.Hex(), body.Tokens[0].Token)
	require.True(t, body.Tokens[0].HasQuote)
	require.Equal(t, int64(99_868_428), body.Tokens[0].Price)
}

func TestServer_Vault(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/vaults/" + apiTokenA.Hex())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Token          string `json:"token"`
		TotalLiquidity string `json:"totalLiquidity"`
		CustodyBalance string `json:"custodyBalance"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, apiTokenA.Hex(), body.Token)
	require.Equal(t, "100000000000000000000000", body.TotalLiquidity)
	require.Equal(t, "100000000000000000000000", body.CustodyBalance)
}

func TestServer_VaultNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/vaults/0xcccc000000000000000000000000000000000099")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/vaults/not-an-address")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Deposit(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/vaults/" + apiTokenA.Hex() + "/deposits/" + apiPoolAddr.Hex())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Deposit string `json:"deposit"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "100000000000000000000000", body.Deposit)
}

func TestServer_Swap(t *testing.T) {
	srv := newTestServer(t)

	req := `{
		"caller": "` + apiUser.Hex() + `",
		"tokenIn": "` + apiTokenA.Hex() + `",
		"tokenOut": "` + apiTokenB.Hex() + `",
		"amountIn": "100000000000000000000"
	}`
	resp, err := http.Post(srv.URL+"/v1/swap", "application/json", strings.NewReader(req))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ID        string `json:"id"`
		AmountOut string `json:"amountOut"`
		Fee       string `json:"fee"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "126036484445080000000", body.AmountOut)
	require.Equal(t, "379247194920000000", body.Fee)
	require.NotEqual(t, common.Hash{}.Hex(), body.ID)
}

func TestServer_SwapRejections(t *testing.T) {
	srv := newTestServer(t)

	post := func(body string) *http.Response {
		resp, err := http.Post(srv.URL+"/v1/swap", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	// Malformed addresses and amounts.
	resp := post(`{"caller": "nope", "tokenIn": "` + apiTokenA.Hex() + `", "tokenOut": "` + apiTokenB.Hex() + `", "amountIn": "1"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(`{"caller": "` + apiUser.Hex() + `", "tokenIn": "` + apiTokenA.Hex() + `", "tokenOut": "` + apiTokenB.Hex() + `", "amountIn": "one"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown output token maps to 404.
	resp = post(`{"caller": "` + apiUser.Hex() + `", "tokenIn": "` + apiTokenA.Hex() + `", "tokenOut": "0xcccc000000000000000000000000000000000099", "amountIn": "1"}`)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Impossible slippage floor maps to 409.
	resp = post(`{"caller": "` + apiUser.Hex() + `", "tokenIn": "` + apiTokenA.Hex() + `", "tokenOut": "` + apiTokenB.Hex() + `", "amountIn": "1000000000000000000", "minAmountOut": "99999999999999999999999999"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}
