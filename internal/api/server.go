// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api exposes the venue over a small JSON HTTP surface:
// status, vault views, and swap submission. Callers are identified by
// address only; authentication is left to the operator boundary in
// front of the daemon.
package api

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/luxfi/geth/common"
	"go.uber.org/zap"

	"github.com/luxfi/oracleswap/swap"
	"github.com/luxfi/oracleswap/vault"
)

// Server serves the venue API for one pool.
type Server struct {
	pool *swap.Pool
	log  *zap.Logger
}

// NewServer creates a server around pool.
func NewServer(pool *swap.Pool, log *zap.Logger) *Server {
	return &Server{pool: pool, log: log}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/vaults/{token}", s.handleVault)
		r.Get("/vaults/{token}/deposits/{addr}", s.handleDeposit)
		r.Post("/swap", s.handleSwap)
	})
	return r
}

type statusResponse struct {
	FeeBps uint64        `json:"feeBps"`
	Tokens []tokenStatus `json:"tokens"`
}

type tokenStatus struct {
	Token       string `json:"token"`
	FeedID      string `json:"feedId"`
	Price       int64  `json:"price,omitempty"`
	Expo        int32  `json:"expo,omitempty"`
	PublishTime uint64 `json:"publishTime,omitempty"`
	HasQuote    bool   `json:"hasQuote"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{FeeBps: s.pool.FeeBps()}
	for _, tok := range s.pool.Tokens() {
		ts := tokenStatus{Token: tok.Hex()}
		if feedID, ok := s.pool.FeedID(tok); ok {
			ts.FeedID = feedID.Hex()
			if q, ok := s.pool.LatestQuote(feedID); ok {
				ts.Price = q.Price
				ts.Expo = q.Expo
				ts.PublishTime = q.PublishTime
				ts.HasQuote = true
			}
		}
		resp.Tokens = append(resp.Tokens, ts)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type chainBalanceView struct {
	ChainID    uint32 `json:"chainId"`
	Balance    string `json:"balance"`
	LastUpdate uint64 `json:"lastUpdate"`
}

type vaultResponse struct {
	Token          string             `json:"token"`
	ChainID        uint32             `json:"chainId"`
	CustodyBalance string             `json:"custodyBalance"`
	TotalLiquidity string             `json:"totalLiquidity"`
	ChainBalances  []chainBalanceView `json:"chainBalances"`
}

func (s *Server) handleVault(w http.ResponseWriter, r *http.Request) {
	v, ok := s.vaultParam(w, r)
	if !ok {
		return
	}

	resp := vaultResponse{
		Token:          v.TokenAddress().Hex(),
		ChainID:        v.ChainID(),
		CustodyBalance: v.CustodyBalance().String(),
		TotalLiquidity: v.TotalLiquidity().String(),
	}
	for _, cb := range v.ChainBalances() {
		resp.ChainBalances = append(resp.ChainBalances, chainBalanceView{
			ChainID:    cb.ChainID,
			Balance:    cb.Balance.String(),
			LastUpdate: cb.LastUpdate,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type depositResponse struct {
	Token   string `json:"token"`
	Address string `json:"address"`
	Deposit string `json:"deposit"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	v, ok := s.vaultParam(w, r)
	if !ok {
		return
	}

	addr := chi.URLParam(r, "addr")
	if !common.IsHexAddress(addr) {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid address"))
		return
	}
	a := common.HexToAddress(addr)

	s.writeJSON(w, http.StatusOK, depositResponse{
		Token:   v.TokenAddress().Hex(),
		Address: a.Hex(),
		Deposit: v.DepositOf(a).String(),
	})
}

type swapRequest struct {
	Caller       string `json:"caller"`
	TokenIn      string `json:"tokenIn"`
	TokenOut     string `json:"tokenOut"`
	AmountIn     string `json:"amountIn"`
	MinAmountOut string `json:"minAmountOut"`
}

type swapResponse struct {
	ID        string `json:"id"`
	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut"`
	Fee       string `json:"fee"`
	Time      uint64 `json:"time"`
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if !common.IsHexAddress(req.Caller) || !common.IsHexAddress(req.TokenIn) || !common.IsHexAddress(req.TokenOut) {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid address"))
		return
	}
	amountIn, ok := new(big.Int).SetString(req.AmountIn, 10)
	if !ok {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid amountIn"))
		return
	}
	minOut := new(big.Int)
	if req.MinAmountOut != "" {
		if minOut, ok = new(big.Int).SetString(req.MinAmountOut, 10); !ok {
			s.writeError(w, http.StatusBadRequest, errors.New("invalid minAmountOut"))
			return
		}
	}

	caller := common.HexToAddress(req.Caller)
	receipt, err := s.pool.Swap(caller, swap.Params{
		TokenIn:      common.HexToAddress(req.TokenIn),
		TokenOut:     common.HexToAddress(req.TokenOut),
		AmountIn:     amountIn,
		MinAmountOut: minOut,
	})
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	s.log.Info("swap executed",
		zap.String("caller", caller.Hex()),
		zap.String("amountIn", receipt.AmountIn.String()),
		zap.String("amountOut", receipt.AmountOut.String()),
	)
	s.writeJSON(w, http.StatusOK, swapResponse{
		ID:        common.Hash(receipt.ID).Hex(),
		AmountIn:  receipt.AmountIn.String(),
		AmountOut: receipt.AmountOut.String(),
		Fee:       receipt.Fee.String(),
		Time:      receipt.Time,
	})
}

func (s *Server) vaultParam(w http.ResponseWriter, r *http.Request) (*vault.Vault, bool) {
	tok := chi.URLParam(r, "token")
	if !common.IsHexAddress(tok) {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid token address"))
		return nil, false
	}
	v, ok := s.pool.VaultFor(common.HexToAddress(tok))
	if !ok {
		s.writeError(w, http.StatusNotFound, swap.ErrVaultNotSet)
		return nil, false
	}
	return v, true
}

// statusFor maps venue errors onto HTTP statuses. Precondition
// failures are the caller's to correct, so they all land in 4xx.
func statusFor(err error) int {
	switch {
	case errors.Is(err, swap.ErrUnauthorized), errors.Is(err, vault.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, swap.ErrVaultNotSet), errors.Is(err, swap.ErrMissingFeed):
		return http.StatusNotFound
	case errors.Is(err, swap.ErrStalePrice), errors.Is(err, swap.ErrInvalidPrice),
		errors.Is(err, swap.ErrSlippageExceeded), errors.Is(err, vault.ErrInsufficientDeposit),
		errors.Is(err, vault.ErrInsufficientBalance), errors.Is(err, vault.ErrInsufficientAllowance):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
