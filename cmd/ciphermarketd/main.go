package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"

	"ciphermarket/config"
	"ciphermarket/core/events"
	"ciphermarket/core/state"
	"ciphermarket/crypto"
	escrowengine "ciphermarket/native/escrow"
	marketengine "ciphermarket/native/market"
	platformengine "ciphermarket/native/platform"
	"ciphermarket/observability/logging"
	"ciphermarket/rpc"
	"ciphermarket/storage"
)

const (
	envName     = "CIPHERMARKET_ENV"
	envRPCToken = "CIPHERMARKET_RPC_TOKEN"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envName))
	logger := logging.Setup("ciphermarketd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := openDatabase(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	if err := seedState(manager, cfg); err != nil {
		logger.Error("Failed to seed ledger state", slog.Any("error", err))
		os.Exit(1)
	}

	recorder := events.NewRecorder(cfg.EventBuffer)

	market := marketengine.NewEngine()
	market.SetState(manager)
	market.SetOwnershipVerifier(manager)
	market.SetEmitter(recorder)

	escrow := escrowengine.NewEngine()
	escrow.SetState(manager)
	escrow.SetAuthority(manager)
	escrow.SetPauses(manager)
	escrow.SetEmitter(recorder)

	platform := platformengine.NewEngine()
	platform.SetState(manager)
	platform.SetAuthority(manager)
	platform.SetEmitter(recorder)

	authToken := strings.TrimSpace(os.Getenv(envRPCToken))
	if authToken == "" {
		authToken = cfg.RPCAuthToken
	}
	server := rpc.NewServer(market, escrow, platform, recorder, authToken, logger)

	logger.Info("ciphermarketd ready",
		slog.String("network", cfg.NetworkName),
		slog.String("rpc", cfg.RPCAddress),
		slog.String("data_dir", cfg.DataDir),
	)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func openDatabase(dataDir string) (storage.Database, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return storage.NewLevelDB(dataDir)
}

// seedState applies the config-declared roles, genesis records and initial
// parameters. Role grants are idempotent; asset owners and account balances
// only apply while the ledger carries no record for them, and fee/treasury
// only while the persisted params still carry their defaults, so later admin
// changes and settlements stick across restarts.
func seedState(manager *state.Manager, cfg *config.Config) error {
	for _, raw := range cfg.AdminAddresses {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			return err
		}
		if err := manager.SetRole(platformengine.RoleAdmin, addr.Array()); err != nil {
			return err
		}
	}
	for _, raw := range cfg.OracleAddresses {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			return err
		}
		if err := manager.SetRole(platformengine.RoleOracle, addr.Array()); err != nil {
			return err
		}
	}

	for _, asset := range cfg.GenesisAssets {
		owner, err := crypto.DecodeAddress(asset.Owner)
		if err != nil {
			return err
		}
		_, recorded, err := manager.OwnerOf(asset.AssetID)
		if err != nil {
			return err
		}
		if recorded {
			continue
		}
		if err := manager.SetAssetOwner(asset.AssetID, owner.Array()); err != nil {
			return err
		}
	}
	for _, seed := range cfg.GenesisAccounts {
		addr, err := crypto.DecodeAddress(seed.Address)
		if err != nil {
			return err
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(seed.Balance), 10)
		if !ok || amount.Sign() < 0 {
			return fmt.Errorf("invalid genesis balance %q for %s", seed.Balance, seed.Address)
		}
		acc, err := manager.GetAccount(addr.Array())
		if err != nil {
			return err
		}
		if acc.Nonce != 0 || acc.Balance.Sign() != 0 {
			continue
		}
		acc.Balance = amount
		if err := manager.PutAccount(addr.Array(), acc); err != nil {
			return err
		}
	}

	params, err := manager.ParamsGet()
	if err != nil {
		return err
	}
	changed := false
	if params.FeeBps == platformengine.DefaultFeeBps && cfg.FeeBps != params.FeeBps {
		params.FeeBps = cfg.FeeBps
		changed = true
	}
	if params.Treasury == ([20]byte{}) && strings.TrimSpace(cfg.TreasuryAddress) != "" {
		addr, err := crypto.DecodeAddress(cfg.TreasuryAddress)
		if err != nil {
			return err
		}
		params.Treasury = addr.Array()
		changed = true
	}
	if changed {
		return manager.ParamsPut(params)
	}
	return nil
}
