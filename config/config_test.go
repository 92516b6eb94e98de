package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8545", cfg.RPCAddress)
	require.Equal(t, "leveldb", cfg.StorageBackend)

	// The default file exists on disk afterwards.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
RPCAddress = ":9000"
DataDir = "/tmp/bm"
StorageBackend = "memory"
OwnerAddress = "0x0000000000000000000000000000000000000001"
NetworkName = "testnet"

[[GenesisAccounts]]
Address = "0x0000000000000000000000000000000000000004"
Balance = "5000"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.RPCAddress)
	require.Equal(t, "memory", cfg.StorageBackend)
	require.Equal(t, "testnet", cfg.NetworkName)

	owner, err := cfg.Owner()
	require.NoError(t, err)
	require.Equal(t, byte(0x01), owner[19])

	addrs, balances, err := cfg.Genesis()
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	require.Equal(t, int64(5000), balances[0].Int64())
}

func TestValidateRejectsBadBackend(t *testing.T) {
	cfg := &Config{
		StorageBackend: "postgres",
		OwnerAddress:   "0x0000000000000000000000000000000000000001",
	}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsMissingOwner(t *testing.T) {
	cfg := &Config{StorageBackend: "memory"}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadGenesisBalance(t *testing.T) {
	cfg := &Config{
		StorageBackend: "memory",
		OwnerAddress:   "0x0000000000000000000000000000000000000001",
		GenesisAccounts: []GenesisAccount{
			{Address: "0x0000000000000000000000000000000000000004", Balance: "-1"},
		},
	}
	require.Error(t, cfg.Validate())
}
