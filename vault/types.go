// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vault implements the per-token custody ledger backing the
// swap venue: depositor balances, aggregate liquidity, remote-chain
// balance bookkeeping, and the lock/mint hooks a cross-chain
// messenger settles through.
package vault

import (
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
)

// ChainBalance is the vault owner's best-known view of liquidity on
// one chain. Remote entries are maintained by off-chain aggregation
// and are not atomically consistent with on-chain transfers.
type ChainBalance struct {
	ChainID    uint32
	Balance    *big.Int
	LastUpdate uint64 // Unix seconds
}

// EventKind identifies a vault notification.
type EventKind uint8

const (
	EventDeposit EventKind = iota + 1
	EventWithdraw
	EventCrossChainLock
	EventCrossChainMint
	EventDirectTransfer
	EventBalanceUpdate
)

// Event is a vault notification delivered to subscribers.
// Amount is an owned copy, safe to retain; TransferID is only set for
// cross-chain lock events.
type Event struct {
	Kind        EventKind
	Token       common.Address
	Account     common.Address // depositor or mint recipient
	Recipient   common.Address // direct transfer target
	Amount      *big.Int
	ChainID     uint32 // vault's own chain
	TargetChain uint32 // lock destination
	TransferID  [32]byte
	Time        uint64
}

// Errors - Vault
var (
	ErrInsufficientDeposit = errors.New("insufficient deposit")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNegativeAmount      = errors.New("amount must not be negative")
)

// Errors - Token ledger
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrAmountOverflow        = errors.New("amount overflows uint256")
)
