// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/event"
	"github.com/zeebo/blake3"
)

// Vault is the ledger for one token: aggregate liquidity, per-depositor
// balances, and per-chain reported balances. Every balance-changing
// operation keeps sum(deposits) == totalLiquidity. The vault does not
// verify that totalLiquidity stays within its actual custody balance;
// that holds only as long as callers move the underlying asset in
// lockstep with ledger updates.
type Vault struct {
	mu sync.RWMutex

	token     Token
	tokenAddr common.Address // identity of the wrapped asset
	addr      common.Address // custody account in the token ledger

	chainID       uint32
	chainBalances map[uint32]*ChainBalance
	deposits      map[common.Address]*big.Int
	total         *big.Int

	// messenger is the only address allowed to call MintFromRemote.
	// The setter carries no owner check; known risk, tracked as a
	// deployment concern rather than patched here.
	messenger common.Address

	lockNonce uint64
	now       func() uint64
	feed      event.Feed
}

// New creates a vault for the asset identified by tokenAddr, holding
// custody under addr on chainID.
func New(token Token, tokenAddr, addr common.Address, chainID uint32) *Vault {
	return &Vault{
		token:     token,
		tokenAddr: tokenAddr,
		addr:      addr,
		chainID:   chainID,
		chainBalances: map[uint32]*ChainBalance{
			chainID: {ChainID: chainID, Balance: big.NewInt(0)},
		},
		deposits: make(map[common.Address]*big.Int),
		total:    big.NewInt(0),
		now:      func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// Address returns the vault's custody account.
func (v *Vault) Address() common.Address { return v.addr }

// TokenAddress returns the identity of the wrapped asset.
func (v *Vault) TokenAddress() common.Address { return v.tokenAddr }

// ChainID returns the chain this vault instance represents.
func (v *Vault) ChainID() uint32 { return v.chainID }

// Token returns the underlying asset's custody capability.
func (v *Vault) Token() Token { return v.token }

// SubscribeEvents delivers vault notifications to ch until the
// subscription is unsubscribed.
func (v *Vault) SubscribeEvents(ch chan<- Event) event.Subscription {
	return v.feed.Subscribe(ch)
}

// SetMessenger overwrites the authorized cross-chain messenger.
func (v *Vault) SetMessenger(addr common.Address) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messenger = addr
}

// Deposit pulls amount from depositor into vault custody and credits
// the ledger. The pull happens before the ledger update so a failed
// transfer leaves no trace.
func (v *Vault) Deposit(depositor common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	v.mu.Lock()
	if err := v.token.TransferFrom(depositor, v.addr, amount); err != nil {
		v.mu.Unlock()
		return err
	}
	v.credit(depositor, amount)
	ts, bal := v.touchLocal()
	v.mu.Unlock()

	v.emit(Event{Kind: EventDeposit, Token: v.tokenAddr, Account: depositor, Amount: new(big.Int).Set(amount), ChainID: v.chainID, Time: ts})
	v.emitBalance(ts, bal)
	return nil
}

// Withdraw debits the ledger and pushes amount back to depositor.
// Ledger first, transfer second; a failed transfer restores the ledger.
func (v *Vault) Withdraw(depositor common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	v.mu.Lock()
	if err := v.debit(depositor, amount); err != nil {
		v.mu.Unlock()
		return err
	}
	if err := v.token.Transfer(v.addr, depositor, amount); err != nil {
		v.credit(depositor, amount)
		v.mu.Unlock()
		return err
	}
	ts, bal := v.touchLocal()
	v.mu.Unlock()

	v.emit(Event{Kind: EventWithdraw, Token: v.tokenAddr, Account: depositor, Amount: new(big.Int).Set(amount), ChainID: v.chainID, Time: ts})
	v.emitBalance(ts, bal)
	return nil
}

// LockForRemote debits depositor's ledger entry without moving the
// underlying asset: the burn leg of a bridge transfer. The returned
// transfer ID correlates the eventual mint on the target chain; the
// vault itself keeps no record of it and performs no replay
// protection.
func (v *Vault) LockForRemote(depositor common.Address, targetChain uint32, amount *big.Int) ([32]byte, error) {
	if err := checkAmount(amount); err != nil {
		return [32]byte{}, err
	}

	v.mu.Lock()
	if err := v.debit(depositor, amount); err != nil {
		v.mu.Unlock()
		return [32]byte{}, err
	}
	id := v.transferID(depositor, targetChain, amount, v.lockNonce)
	v.lockNonce++
	ts, bal := v.touchLocal()
	v.mu.Unlock()

	v.emit(Event{
		Kind:        EventCrossChainLock,
		Token:       v.tokenAddr,
		Account:     depositor,
		Amount:      new(big.Int).Set(amount),
		ChainID:     v.chainID,
		TargetChain: targetChain,
		TransferID:  id,
		Time:        ts,
	})
	v.emitBalance(ts, bal)
	return id, nil
}

// MintFromRemote credits recipient on the destination side of a bridge
// transfer. Only the configured messenger may call it; the vault
// trusts the messenger entirely and assumes equivalent value is (or
// will be) under custody.
func (v *Vault) MintFromRemote(caller, recipient common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	v.mu.Lock()
	if caller != v.messenger || v.messenger == (common.Address{}) {
		v.mu.Unlock()
		return fmt.Errorf("%w: caller %s is not the messenger", ErrUnauthorized, caller.Hex())
	}
	v.credit(recipient, amount)
	ts, bal := v.touchLocal()
	v.mu.Unlock()

	v.emit(Event{Kind: EventCrossChainMint, Token: v.tokenAddr, Account: recipient, Amount: new(big.Int).Set(amount), ChainID: v.chainID, Time: ts})
	v.emitBalance(ts, bal)
	return nil
}

// DirectTransfer debits from's ledger entry and pushes the underlying
// asset straight to recipient, skipping a withdraw-then-transfer round
// trip. This is how the pool pays out the output side of a swap.
func (v *Vault) DirectTransfer(from, recipient common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	v.mu.Lock()
	if err := v.debit(from, amount); err != nil {
		v.mu.Unlock()
		return err
	}
	if err := v.token.Transfer(v.addr, recipient, amount); err != nil {
		v.credit(from, amount)
		v.mu.Unlock()
		return err
	}
	ts, bal := v.touchLocal()
	v.mu.Unlock()

	v.emit(Event{Kind: EventDirectTransfer, Token: v.tokenAddr, Account: from, Recipient: recipient, Amount: new(big.Int).Set(amount), ChainID: v.chainID, Time: ts})
	v.emitBalance(ts, bal)
	return nil
}

// UpdateChainBalance overwrites the reported balance for a remote
// chain. Informational only; deposits and totalLiquidity are
// untouched.
func (v *Vault) UpdateChainBalance(chainID uint32, balance *big.Int) {
	v.mu.Lock()
	ts := v.now()
	v.chainBalances[chainID] = &ChainBalance{
		ChainID:    chainID,
		Balance:    new(big.Int).Set(balance),
		LastUpdate: ts,
	}
	v.mu.Unlock()

	v.emit(Event{Kind: EventBalanceUpdate, Token: v.tokenAddr, Amount: new(big.Int).Set(balance), ChainID: chainID, Time: ts})
}

// CustodyBalance returns the underlying asset balance actually held by
// the vault's custody account.
func (v *Vault) CustodyBalance() *big.Int {
	return v.token.BalanceOf(v.addr)
}

// TotalLiquidity returns the aggregate tracked liquidity.
func (v *Vault) TotalLiquidity() *big.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return new(big.Int).Set(v.total)
}

// DepositOf returns the recorded deposit for addr.
func (v *Vault) DepositOf(addr common.Address) *big.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	d := v.deposits[addr]
	if d == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(d)
}

// ChainBalanceOf returns the reported balance for chainID, or nil if
// no entry exists.
func (v *Vault) ChainBalanceOf(chainID uint32) *ChainBalance {
	v.mu.RLock()
	defer v.mu.RUnlock()

	cb := v.chainBalances[chainID]
	if cb == nil {
		return nil
	}
	return &ChainBalance{ChainID: cb.ChainID, Balance: new(big.Int).Set(cb.Balance), LastUpdate: cb.LastUpdate}
}

// ChainBalances returns a snapshot of all reported chain balances.
func (v *Vault) ChainBalances() []*ChainBalance {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]*ChainBalance, 0, len(v.chainBalances))
	for _, cb := range v.chainBalances {
		out = append(out, &ChainBalance{ChainID: cb.ChainID, Balance: new(big.Int).Set(cb.Balance), LastUpdate: cb.LastUpdate})
	}
	return out
}

// credit adds amount to addr's deposit and the total. Caller holds mu.
func (v *Vault) credit(addr common.Address, amount *big.Int) {
	d := v.deposits[addr]
	if d == nil {
		d = big.NewInt(0)
		v.deposits[addr] = d
	}
	d.Add(d, amount)
	v.total.Add(v.total, amount)

	local := v.chainBalances[v.chainID]
	local.Balance.Add(local.Balance, amount)
}

// debit removes amount from addr's deposit and the total, failing if
// the recorded deposit is insufficient. Caller holds mu.
func (v *Vault) debit(addr common.Address, amount *big.Int) error {
	d := v.deposits[addr]
	if d == nil || d.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientDeposit, addr.Hex(), depositString(d), amount.String())
	}
	d.Sub(d, amount)
	v.total.Sub(v.total, amount)

	local := v.chainBalances[v.chainID]
	local.Balance.Sub(local.Balance, amount)
	return nil
}

// checkAmount rejects amounts outside the unsigned domain the ledger
// is defined over. A negative amount would turn a debit into a credit
// inside debit/credit, inflating deposits with no custody behind them.
func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeAmount, depositString(amount))
	}
	return nil
}

// touchLocal stamps the local chain balance entry and snapshots its
// balance, so the balance event reflects this operation's effect even
// if another operation runs before the event is sent. Caller holds mu.
func (v *Vault) touchLocal() (uint64, *big.Int) {
	ts := v.now()
	local := v.chainBalances[v.chainID]
	local.LastUpdate = ts
	return ts, new(big.Int).Set(local.Balance)
}

func (v *Vault) transferID(sender common.Address, targetChain uint32, amount *big.Int, nonce uint64) [32]byte {
	h := blake3.New()
	h.Write(sender[:])
	h.Write([]byte{byte(v.chainID >> 24), byte(v.chainID >> 16), byte(v.chainID >> 8), byte(v.chainID)})
	h.Write([]byte{byte(targetChain >> 24), byte(targetChain >> 16), byte(targetChain >> 8), byte(targetChain)})
	h.Write(amount.Bytes())
	h.Write([]byte{
		byte(nonce >> 56), byte(nonce >> 48), byte(nonce >> 40), byte(nonce >> 32),
		byte(nonce >> 24), byte(nonce >> 16), byte(nonce >> 8), byte(nonce),
	})

	var id [32]byte
	h.Digest().Read(id[:])
	return id
}

// emit sends events outside the vault lock so a slow subscriber never
// blocks ledger operations against the lock itself.
func (v *Vault) emit(e Event) {
	v.feed.Send(e)
}

func (v *Vault) emitBalance(ts uint64, balance *big.Int) {
	v.emit(Event{Kind: EventBalanceUpdate, Token: v.tokenAddr, Amount: balance, ChainID: v.chainID, Time: ts})
}

func depositString(d *big.Int) string {
	if d == nil {
		return "0"
	}
	return d.String()
}
