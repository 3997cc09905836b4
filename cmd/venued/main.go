// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/spf13/cobra"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/luxfi/oracleswap/internal/api"
	"github.com/luxfi/oracleswap/internal/config"
	"github.com/luxfi/oracleswap/pricefeed"
	"github.com/luxfi/oracleswap/swap"
	"github.com/luxfi/oracleswap/vault"
)

func main() {
	root := &cobra.Command{
		Use:          "venued",
		Short:        "Oracle-priced swap venue daemon",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the venue",
		RunE:  runVenue,
	}

	runCmd.Flags().String("listen", ":8080", "HTTP listen address")
	runCmd.Flags().String("oracle-url", "", "price oracle base URL")
	runCmd.Flags().Duration("poll-interval", 10*time.Second, "price poll interval")
	runCmd.Flags().Int("max-retries", 3, "maximum fetch retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial fetch retry backoff")
	runCmd.Flags().Duration("fetch-timeout", 5*time.Second, "oracle request timeout")
	runCmd.Flags().String("owner", "", "pool owner address")
	runCmd.Flags().Uint64("fee-bps", 30, "swap fee in basis points")
	runCmd.Flags().Uint32("chain-id", 1, "chain id this venue represents")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runVenue(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.OracleURL == "" {
		return fmt.Errorf("oracle url is required")
	}
	if !common.IsHexAddress(cfg.Owner) {
		return fmt.Errorf("owner address is required")
	}
	if len(cfg.Tokens) == 0 {
		return fmt.Errorf("at least one token is required")
	}

	owner := common.HexToAddress(cfg.Owner)
	poolAddr := deriveAccount("pool", owner, cfg.ChainID)

	tokens := make([]common.Address, 0, len(cfg.Tokens))
	feedIDs := make([]common.Hash, 0, len(cfg.Tokens))
	ledgers := make(map[common.Address]*vault.MemToken, len(cfg.Tokens))
	bootstrap := make([]*big.Int, 0, len(cfg.Tokens))

	for _, tc := range cfg.Tokens {
		if !common.IsHexAddress(tc.Address) {
			return fmt.Errorf("token %s: invalid address %q", tc.Symbol, tc.Address)
		}
		addr := common.HexToAddress(tc.Address)
		amount, ok := new(big.Int).SetString(tc.Bootstrap, 10)
		if !ok || amount.Sign() <= 0 {
			return fmt.Errorf("token %s: invalid bootstrap amount %q", tc.Symbol, tc.Bootstrap)
		}

		tokens = append(tokens, addr)
		feedIDs = append(feedIDs, common.HexToHash(tc.FeedID))
		ledgers[addr] = vault.NewMemToken(tc.Symbol)
		bootstrap = append(bootstrap, amount)
	}

	pool, err := swap.NewPool(owner, poolAddr, tokens, feedIDs)
	if err != nil {
		return err
	}
	if err := pool.SetFeeBps(owner, cfg.FeeBps); err != nil {
		return err
	}

	unlimited := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	for i, tok := range tokens {
		ledger := ledgers[tok]
		custody := deriveAccount("vault", tok, cfg.ChainID)
		v := vault.New(ledger, tok, custody, cfg.ChainID)
		if err := pool.SetVault(owner, tok, v); err != nil {
			return err
		}

		// Fund the pool's side and let the vault pull from it.
		if err := ledger.Mint(poolAddr, bootstrap[i]); err != nil {
			return err
		}
		if err := ledger.Approve(poolAddr, custody, unlimited); err != nil {
			return err
		}

		for _, ac := range cfg.Accounts {
			if !common.IsHexAddress(ac.Address) {
				return fmt.Errorf("account: invalid address %q", ac.Address)
			}
			acct := common.HexToAddress(ac.Address)
			balance, ok := new(big.Int).SetString(ac.Balance, 10)
			if !ok {
				return fmt.Errorf("account %s: invalid balance %q", ac.Address, ac.Balance)
			}
			if err := ledger.Mint(acct, balance); err != nil {
				return err
			}
			if err := ledger.Approve(acct, poolAddr, unlimited); err != nil {
				return err
			}
		}

		go logVaultEvents(v, logger.With(zap.String("token", tok.Hex())))
	}

	if err := pool.Bootstrap(owner, bootstrap); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	logger.Info("pool bootstrapped",
		zap.Int("tokens", len(tokens)),
		zap.Uint64("feeBps", cfg.FeeBps),
	)

	go logSwaps(pool, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := pricefeed.NewClient(cfg.OracleURL, cfg.FetchTimeout)
	sink := pricefeed.SinkFunc(func(ids []common.Hash, quotes []swap.Quote) error {
		return pool.UpdatePrices(owner, ids, quotes)
	})
	poller := pricefeed.NewPoller(client, sink, feedIDs, pricefeed.Config{
		Interval:     cfg.PollInterval,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)

	go func() {
		if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("price poller stopped", zap.Error(err))
		}
	}()

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewServer(pool, logger).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("venue listening", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func logVaultEvents(v *vault.Vault, logger *zap.Logger) {
	ch := make(chan vault.Event, 64)
	sub := v.SubscribeEvents(ch)
	defer sub.Unsubscribe()

	for e := range ch {
		logger.Debug("vault event",
			zap.Uint8("kind", uint8(e.Kind)),
			zap.String("account", e.Account.Hex()),
			zap.String("amount", amountString(e.Amount)),
			zap.Uint32("chainId", e.ChainID),
		)
	}
}

func logSwaps(pool *swap.Pool, logger *zap.Logger) {
	ch := make(chan swap.Receipt, 64)
	sub := pool.SubscribeSwaps(ch)
	defer sub.Unsubscribe()

	for r := range ch {
		logger.Info("swap",
			zap.String("caller", r.Caller.Hex()),
			zap.String("tokenIn", r.TokenIn.Hex()),
			zap.String("tokenOut", r.TokenOut.Hex()),
			zap.String("amountIn", r.AmountIn.String()),
			zap.String("amountOut", r.AmountOut.String()),
		)
	}
}

func amountString(a *big.Int) string {
	if a == nil {
		return "0"
	}
	return a.String()
}

// deriveAccount derives a deterministic in-memory account address from
// a role prefix, a seed address, and the chain id.
func deriveAccount(prefix string, seed common.Address, chainID uint32) common.Address {
	h := blake3.New()
	h.Write([]byte(prefix))
	h.Write(seed[:])
	h.Write([]byte{byte(chainID >> 24), byte(chainID >> 16), byte(chainID >> 8), byte(chainID)})

	var sum [32]byte
	h.Digest().Read(sum[:])

	var addr common.Address
	copy(addr[:], sum[:20])
	return addr
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
