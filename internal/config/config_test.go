// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, 10*time.Second, cfg.PollInterval)
	require.Equal(t, 3, cfg.MaxRetries)
	require.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
	require.Equal(t, 5*time.Second, cfg.FetchTimeout)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, uint64(30), cfg.FeeBps)
	require.Equal(t, uint32(1), cfg.ChainID)
	require.Empty(t, cfg.Tokens)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "venued.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9090"
oracle-url: "https://hermes.example.com"
owner: "0x1000000000000000000000000000000000000001"
fee-bps: 25
chain-id: 7
tokens:
  - symbol: "TKA"
    address: "0xaaaa000000000000000000000000000000000001"
    feed-id: "0x01"
    bootstrap: "100000000000000000000000"
  - symbol: "TKB"
    address: "0xaaaa000000000000000000000000000000000002"
    feed-id: "0x02"
    bootstrap: "100000000000000000000000"
accounts:
  - address: "0x1000000000000000000000000000000000000003"
    balance: "1000000000000000000000"
`), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.ListenAddr)
	require.Equal(t, "https://hermes.example.com", cfg.OracleURL)
	require.Equal(t, uint64(25), cfg.FeeBps)
	require.Equal(t, uint32(7), cfg.ChainID)

	require.Len(t, cfg.Tokens, 2)
	require.Equal(t, "TKA", cfg.Tokens[0].Symbol)
	require.Equal(t, "0x01", cfg.Tokens[0].FeedID)
	require.Equal(t, "100000000000000000000000", cfg.Tokens[0].Bootstrap)

	require.Len(t, cfg.Accounts, 1)
	require.Equal(t, "1000000000000000000000", cfg.Accounts[0].Balance)

	// Unset keys fall back to defaults.
	require.Equal(t, 10*time.Second, cfg.PollInterval)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("VENUED_LISTEN", ":7070")
	t.Setenv("VENUED_LOG_LEVEL", "debug")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.ListenAddr)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}
