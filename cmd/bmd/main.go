package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"blockmarket/config"
	"blockmarket/core"
	"blockmarket/observability/logging"
	"blockmarket/rpc"
	"blockmarket/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("BMD_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("bmd", env, cfg.LogFile)

	owner, err := cfg.Owner()
	if err != nil {
		logger.Error("Failed to resolve owner address", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	market, err := core.NewMarket(db, owner)
	if err != nil {
		logger.Error("Failed to initialise market", slog.Any("error", err))
		os.Exit(1)
	}

	addrs, balances, err := cfg.Genesis()
	if err != nil {
		logger.Error("Failed to parse genesis credits", slog.Any("error", err))
		os.Exit(1)
	}
	if len(addrs) > 0 {
		credits := make([]core.GenesisAccount, 0, len(addrs))
		for i := range addrs {
			credits = append(credits, core.GenesisAccount{Address: addrs[i], Balance: balances[i]})
		}
		if err := market.ApplyGenesis(credits); err != nil {
			logger.Error("Failed to apply genesis credits", slog.Any("error", err))
			os.Exit(1)
		}
	}

	logger.Info("market initialised",
		slog.String("network", cfg.NetworkName),
		slog.String("owner", owner.Hex()),
		slog.String("backend", cfg.StorageBackend),
	)

	server := rpc.NewServer(market, logger)
	server.SetTrustProxyHeaders(cfg.RPCTrustProxyHeaders)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageBackend)) {
	case "memory":
		return storage.NewMemDB(), nil
	case "bolt":
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "market.db"))
	default:
		return storage.NewLevelDB(cfg.DataDir)
	}
}
