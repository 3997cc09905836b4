// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package swap

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/event"
	"github.com/zeebo/blake3"

	"github.com/luxfi/oracleswap/vault"
)

// Pool routes swaps between per-token vaults, priced off the stored
// oracle quotes. It owns the token/feed/vault registries and the fee
// policy, and it is itself a depositor in every vault: Bootstrap seeds
// its deposits, swaps draw the output side down from them. Sustained
// one-directional volume exhausts that side and further swaps fail the
// output vault's deposit check; that is the expected terminal state,
// cured only by another bootstrap or deposit.
type Pool struct {
	mu sync.RWMutex

	owner common.Address
	addr  common.Address // the pool's depositor/custody account

	tokens  []common.Address
	feedIDs map[common.Address]common.Hash
	vaults  map[common.Address]*vault.Vault
	prices  map[common.Hash]Quote

	feeBps uint64

	now  func() uint64
	feed event.Feed
}

// NewPool creates a pool owned by owner, acting as depositor addr.
// Tokens and feed IDs pair up by index.
func NewPool(owner, addr common.Address, tokens []common.Address, feedIDs []common.Hash) (*Pool, error) {
	if len(tokens) != len(feedIDs) {
		return nil, fmt.Errorf("%w: %d tokens, %d feed ids", ErrLengthMismatch, len(tokens), len(feedIDs))
	}

	p := &Pool{
		owner:   owner,
		addr:    addr,
		tokens:  append([]common.Address(nil), tokens...),
		feedIDs: make(map[common.Address]common.Hash, len(tokens)),
		vaults:  make(map[common.Address]*vault.Vault),
		prices:  make(map[common.Hash]Quote),
		now:     func() uint64 { return uint64(time.Now().Unix()) },
	}
	for i, tok := range tokens {
		p.feedIDs[tok] = feedIDs[i]
	}
	return p, nil
}

// Owner returns the pool administrator.
func (p *Pool) Owner() common.Address { return p.owner }

// Address returns the pool's depositor account.
func (p *Pool) Address() common.Address { return p.addr }

// Tokens returns the supported tokens in registration order.
func (p *Pool) Tokens() []common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]common.Address(nil), p.tokens...)
}

// FeeBps returns the current swap fee in basis points.
func (p *Pool) FeeBps() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.feeBps
}

// FeedID returns the price feed registered for token.
func (p *Pool) FeedID(token common.Address) (common.Hash, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.feedIDs[token]
	return id, ok
}

// VaultFor returns the vault registered for token.
func (p *Pool) VaultFor(token common.Address) (*vault.Vault, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.vaults[token]
	return v, ok
}

// SubscribeSwaps delivers a Receipt for every executed swap.
func (p *Pool) SubscribeSwaps(ch chan<- Receipt) event.Subscription {
	return p.feed.Subscribe(ch)
}

// SetVault registers or overwrites the vault for token. Owner only.
func (p *Pool) SetVault(caller, token common.Address, v *vault.Vault) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.owner {
		return fmt.Errorf("%w: caller %s is not the owner", ErrUnauthorized, caller.Hex())
	}
	p.vaults[token] = v
	return nil
}

// SetFeeBps sets the swap fee. Owner only, capped at MaxFeeBps.
func (p *Pool) SetFeeBps(caller common.Address, feeBps uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.owner {
		return fmt.Errorf("%w: caller %s is not the owner", ErrUnauthorized, caller.Hex())
	}
	if feeBps > MaxFeeBps {
		return fmt.Errorf("%w: %d > %d bps", ErrFeeTooHigh, feeBps, MaxFeeBps)
	}
	p.feeBps = feeBps
	return nil
}

// Bootstrap deposits amounts[i] of tokens[i] into each registered
// vault, crediting the pool itself as the depositor. All-or-nothing:
// every token is validated before the first deposit, and a transfer
// failure mid-batch unwinds the deposits already made.
func (p *Pool) Bootstrap(caller common.Address, amounts []*big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.owner {
		return fmt.Errorf("%w: caller %s is not the owner", ErrUnauthorized, caller.Hex())
	}
	if len(amounts) != len(p.tokens) {
		return fmt.Errorf("%w: %d amounts, %d tokens", ErrLengthMismatch, len(amounts), len(p.tokens))
	}

	for i, tok := range p.tokens {
		if _, ok := p.vaults[tok]; !ok {
			return fmt.Errorf("%w: token %s", ErrVaultNotSet, tok.Hex())
		}
		if amounts[i] == nil || amounts[i].Sign() <= 0 {
			return fmt.Errorf("%w: token %s", ErrZeroAmount, tok.Hex())
		}
	}

	for i, tok := range p.tokens {
		if err := p.vaults[tok].Deposit(p.addr, amounts[i]); err != nil {
			for j := 0; j < i; j++ {
				// Unwind; the deposits just made cannot fail the balance check.
				_ = p.vaults[p.tokens[j]].Withdraw(p.addr, amounts[j])
			}
			return err
		}
	}
	return nil
}

// Swap exchanges params.AmountIn of TokenIn for TokenOut at the oracle
// rate, minus the pool fee. The whole operation is all-or-nothing: any
// precondition failure, stale or invalid price, slippage miss, or
// settlement failure leaves both vaults untouched.
func (p *Pool) Swap(caller common.Address, params Params) (*Receipt, error) {
	receipt, err := p.swapLocked(caller, params)
	if err != nil {
		return nil, err
	}
	// The receipt is sent outside the pool lock so a slow subscriber
	// cannot stall swaps. Vault events raised during settlement are
	// still delivered synchronously while the lock is held; vault
	// subscribers must keep their channels drained (the daemon uses
	// buffered channels with dedicated readers).
	p.feed.Send(*receipt)
	return receipt, nil
}

func (p *Pool) swapLocked(caller common.Address, params Params) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if params.AmountIn == nil || params.AmountIn.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if params.TokenIn == params.TokenOut {
		return nil, fmt.Errorf("%w: %s", ErrSameToken, params.TokenIn.Hex())
	}

	vIn, ok := p.vaults[params.TokenIn]
	if !ok {
		return nil, fmt.Errorf("%w: input token %s", ErrVaultNotSet, params.TokenIn.Hex())
	}
	vOut, ok := p.vaults[params.TokenOut]
	if !ok {
		return nil, fmt.Errorf("%w: output token %s", ErrVaultNotSet, params.TokenOut.Hex())
	}

	quoteIn, err := p.validQuote(params.TokenIn)
	if err != nil {
		return nil, err
	}
	quoteOut, err := p.validQuote(params.TokenOut)
	if err != nil {
		return nil, err
	}

	expected := expectedOut(params.AmountIn, quoteIn.Price, quoteOut.Price)
	fee := new(big.Int).Mul(expected, new(big.Int).SetUint64(p.feeBps))
	fee.Div(fee, new(big.Int).SetUint64(BpsDenominator))
	amountOut := new(big.Int).Sub(expected, fee)

	if params.MinAmountOut != nil && amountOut.Cmp(params.MinAmountOut) < 0 {
		return nil, fmt.Errorf("%w: out %s < min %s", ErrSlippageExceeded, amountOut, params.MinAmountOut)
	}

	// Settlement. Pull the input into pool custody, deposit it into the
	// input vault as the pool, then pay the caller from the pool's
	// deposit in the output vault. Each failure unwinds the prior steps.
	if err := vIn.Token().TransferFrom(caller, p.addr, params.AmountIn); err != nil {
		return nil, err
	}
	if err := vIn.Deposit(p.addr, params.AmountIn); err != nil {
		_ = vIn.Token().Transfer(p.addr, caller, params.AmountIn)
		return nil, err
	}
	if err := vOut.DirectTransfer(p.addr, caller, amountOut); err != nil {
		_ = vIn.Withdraw(p.addr, params.AmountIn)
		_ = vIn.Token().Transfer(p.addr, caller, params.AmountIn)
		return nil, err
	}

	ts := p.now()
	receipt := &Receipt{
		ID:        p.swapID(caller, params.TokenIn, params.TokenOut, params.AmountIn, amountOut, ts),
		Caller:    caller,
		TokenIn:   params.TokenIn,
		TokenOut:  params.TokenOut,
		AmountIn:  new(big.Int).Set(params.AmountIn),
		AmountOut: amountOut,
		Fee:       fee,
		Time:      ts,
	}
	return receipt, nil
}

// ExpectedOut is intentionally unimplemented: pricing is only observable
// through Swap itself, so callers cannot quote against one price and
// execute against another.
func (p *Pool) ExpectedOut(tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	return nil, ErrQuoteUnsupported
}

// expectedOut converts amountIn (18 decimals) across the two oracle
// prices (8 decimals): rescale down, cross-multiply, rescale back.
// Both quotes are assumed to share the oracle's exponent convention;
// per-quote exponents are not interpreted.
func expectedOut(amountIn *big.Int, priceIn, priceOut int64) *big.Int {
	scaled := new(big.Int).Div(amountIn, priceRescale)
	out := new(big.Int).Mul(scaled, big.NewInt(priceIn))
	out.Div(out, big.NewInt(priceOut))
	return out.Mul(out, priceRescale)
}

func (p *Pool) swapID(caller, tokenIn, tokenOut common.Address, amountIn, amountOut *big.Int, ts uint64) [32]byte {
	h := blake3.New()
	h.Write(caller[:])
	h.Write(tokenIn[:])
	h.Write(tokenOut[:])
	h.Write(amountIn.Bytes())
	h.Write(amountOut.Bytes())
	h.Write([]byte{
		byte(ts >> 56), byte(ts >> 48), byte(ts >> 40), byte(ts >> 32),
		byte(ts >> 24), byte(ts >> 16), byte(ts >> 8), byte(ts),
	})

	var id [32]byte
	h.Digest().Read(id[:])
	return id
}
