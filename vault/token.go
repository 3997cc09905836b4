// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Token is the custody capability a vault requires from the
// underlying fungible asset. Standard semantics: the amount moves
// exactly on success, and the operation fails atomically on
// insufficient balance or allowance.
type Token interface {
	// TransferFrom moves amount from `from` to `to`, consuming the
	// allowance `from` has granted to `to`.
	TransferFrom(from, to common.Address, amount *big.Int) error

	// Transfer moves amount from `from` to `to` without an allowance
	// check. `from` is expected to be the caller's own custody account.
	Transfer(from, to common.Address, amount *big.Int) error

	// BalanceOf returns the current balance of addr.
	BalanceOf(addr common.Address) *big.Int
}

// MemToken is an in-memory ERC20-style ledger. It stands in for the
// external token contract in the daemon and in tests; balances are
// held as uint256 words like an EVM account store.
type MemToken struct {
	mu         sync.RWMutex
	symbol     string
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
}

// NewMemToken creates an empty ledger for the given symbol.
func NewMemToken(symbol string) *MemToken {
	return &MemToken{
		symbol:     symbol,
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// Symbol returns the token symbol.
func (t *MemToken) Symbol() string { return t.symbol }

// Mint credits amount to addr out of thin air.
func (t *MemToken) Mint(addr common.Address, amount *big.Int) error {
	v, overflow := uint256.FromBig(amount)
	if overflow {
		return ErrAmountOverflow
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	bal := t.balances[addr]
	if bal == nil {
		bal = new(uint256.Int)
		t.balances[addr] = bal
	}
	bal.Add(bal, v)
	return nil
}

// Approve grants spender the right to pull up to amount from owner.
// Overwrites any prior allowance.
func (t *MemToken) Approve(owner, spender common.Address, amount *big.Int) error {
	v, overflow := uint256.FromBig(amount)
	if overflow {
		return ErrAmountOverflow
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*uint256.Int)
	}
	t.allowances[owner][spender] = v
	return nil
}

// Allowance returns the remaining amount spender may pull from owner.
func (t *MemToken) Allowance(owner, spender common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	a := t.allowance(owner, spender)
	if a == nil {
		return new(big.Int)
	}
	return a.ToBig()
}

// TransferFrom implements Token.
func (t *MemToken) TransferFrom(from, to common.Address, amount *big.Int) error {
	v, overflow := uint256.FromBig(amount)
	if overflow {
		return ErrAmountOverflow
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	a := t.allowance(from, to)
	if a == nil || a.Lt(v) {
		return fmt.Errorf("%w: %s from %s", ErrInsufficientAllowance, t.symbol, from.Hex())
	}
	if err := t.move(from, to, v); err != nil {
		return err
	}
	a.Sub(a, v)
	return nil
}

// Transfer implements Token.
func (t *MemToken) Transfer(from, to common.Address, amount *big.Int) error {
	v, overflow := uint256.FromBig(amount)
	if overflow {
		return ErrAmountOverflow
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.move(from, to, v)
}

// BalanceOf implements Token.
func (t *MemToken) BalanceOf(addr common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	bal := t.balances[addr]
	if bal == nil {
		return new(big.Int)
	}
	return bal.ToBig()
}

func (t *MemToken) allowance(owner, spender common.Address) *uint256.Int {
	m := t.allowances[owner]
	if m == nil {
		return nil
	}
	return m[spender]
}

func (t *MemToken) move(from, to common.Address, v *uint256.Int) error {
	src := t.balances[from]
	if src == nil || src.Lt(v) {
		return fmt.Errorf("%w: %s from %s", ErrInsufficientBalance, t.symbol, from.Hex())
	}

	dst := t.balances[to]
	if dst == nil {
		dst = new(uint256.Int)
		t.balances[to] = dst
	}

	src.Sub(src, v)
	dst.Add(dst, v)
	return nil
}
