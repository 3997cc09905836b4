// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads venue daemon configuration from flags,
// environment variables, and an optional config file, in that
// precedence order.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// TokenConfig declares one supported token.
type TokenConfig struct {
	Symbol    string `mapstructure:"symbol"`
	Address   string `mapstructure:"address"`
	FeedID    string `mapstructure:"feed-id"`
	Bootstrap string `mapstructure:"bootstrap"` // initial pool liquidity, base units
}

// AccountConfig declares one pre-funded account for the in-memory
// token ledger.
type AccountConfig struct {
	Address string `mapstructure:"address"`
	Balance string `mapstructure:"balance"` // per token, base units
}

// Config holds daemon configuration.
type Config struct {
	ListenAddr   string
	OracleURL    string
	PollInterval time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	FetchTimeout time.Duration
	LogLevel     string

	ChainID  uint32
	Owner    string
	FeeBps   uint64
	Tokens   []TokenConfig
	Accounts []AccountConfig
}

// Load merges config file, environment variables, and flags.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VENUED")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", ":8080")
	v.SetDefault("poll-interval", 10*time.Second)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("fetch-timeout", 5*time.Second)
	v.SetDefault("log-level", "info")
	v.SetDefault("fee-bps", uint64(30))
	v.SetDefault("chain-id", uint32(1))

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("venued")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		ListenAddr:   v.GetString("listen"),
		OracleURL:    v.GetString("oracle-url"),
		PollInterval: v.GetDuration("poll-interval"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		FetchTimeout: v.GetDuration("fetch-timeout"),
		LogLevel:     v.GetString("log-level"),
		ChainID:      v.GetUint32("chain-id"),
		Owner:        v.GetString("owner"),
		FeeBps:       v.GetUint64("fee-bps"),
	}

	if err := v.UnmarshalKey("tokens", &cfg.Tokens); err != nil {
		return Config{}, fmt.Errorf("parse tokens: %w", err)
	}
	if err := v.UnmarshalKey("accounts", &cfg.Accounts); err != nil {
		return Config{}, fmt.Errorf("parse accounts: %w", err)
	}

	return cfg, nil
}
