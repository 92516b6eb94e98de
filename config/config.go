package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"blockmarket/core/types"
)

// GenesisAccount is a one-time balance credit applied on first start.
type GenesisAccount struct {
	Address string `toml:"Address"`
	Balance string `toml:"Balance"`
}

type Config struct {
	RPCAddress           string           `toml:"RPCAddress"`
	DataDir              string           `toml:"DataDir"`
	StorageBackend       string           `toml:"StorageBackend"`
	OwnerAddress         string           `toml:"OwnerAddress"`
	NetworkName          string           `toml:"NetworkName"`
	LogFile              string           `toml:"LogFile"`
	RPCTrustProxyHeaders bool             `toml:"RPCTrustProxyHeaders"`
	RPCAllowedOrigins    []string         `toml:"RPCAllowedOrigins"`
	GenesisAccounts      []GenesisAccount `toml:"GenesisAccounts"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "blockmarket-local"
	}
	if strings.TrimSpace(cfg.StorageBackend) == "" {
		cfg.StorageBackend = "leveldb"
	}
	if cfg.RPCAllowedOrigins == nil {
		cfg.RPCAllowedOrigins = []string{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields a running node depends on.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.StorageBackend)) {
	case "leveldb", "bolt", "memory":
	default:
		return fmt.Errorf("config: unsupported storage backend %q", c.StorageBackend)
	}
	if strings.TrimSpace(c.OwnerAddress) == "" {
		return fmt.Errorf("config: OwnerAddress required")
	}
	if _, err := types.ParseAddress(c.OwnerAddress); err != nil {
		return fmt.Errorf("config: invalid OwnerAddress: %v", err)
	}
	for i, acc := range c.GenesisAccounts {
		if _, err := types.ParseAddress(acc.Address); err != nil {
			return fmt.Errorf("config: genesis account %d: invalid address: %v", i, err)
		}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(acc.Balance), 10)
		if !ok || balance.Sign() <= 0 {
			return fmt.Errorf("config: genesis account %d: balance must be a positive integer", i)
		}
	}
	return nil
}

// Owner returns the parsed owner address. Call Validate first.
func (c *Config) Owner() (types.Address, error) {
	return types.ParseAddress(c.OwnerAddress)
}

// Genesis returns the parsed genesis credits. Call Validate first.
func (c *Config) Genesis() ([]types.Address, []*big.Int, error) {
	addrs := make([]types.Address, 0, len(c.GenesisAccounts))
	balances := make([]*big.Int, 0, len(c.GenesisAccounts))
	for _, acc := range c.GenesisAccounts {
		addr, err := types.ParseAddress(acc.Address)
		if err != nil {
			return nil, nil, err
		}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(acc.Balance), 10)
		if !ok {
			return nil, nil, fmt.Errorf("config: invalid balance %q", acc.Balance)
		}
		addrs = append(addrs, addr)
		balances = append(balances, balance)
	}
	return addrs, balances, nil
}

// createDefault creates and saves a default configuration file. The owner
// address is intentionally left blank so a fresh install fails validation
// until one is supplied.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:        ":8545",
		DataDir:           "./blockmarket-data",
		StorageBackend:    "leveldb",
		NetworkName:       "blockmarket-local",
		RPCAllowedOrigins: []string{},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
