package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"ciphermarket/crypto"
	"ciphermarket/native/platform"
)

// Config carries the daemon configuration. Role grants and the initial
// fee/treasury are applied once, on first start against an empty data
// directory; afterwards the persisted ledger parameters win.
type Config struct {
	RPCAddress      string           `toml:"RPCAddress"`
	DataDir         string           `toml:"DataDir"`
	NetworkName     string           `toml:"NetworkName"`
	RPCAuthToken    string           `toml:"RPCAuthToken"`
	FeeBps          uint32           `toml:"FeeBps"`
	TreasuryAddress string           `toml:"TreasuryAddress"`
	AdminAddresses  []string         `toml:"AdminAddresses"`
	OracleAddresses []string         `toml:"OracleAddresses"`
	EventBuffer     int              `toml:"EventBuffer"`
	GenesisAssets   []GenesisAsset   `toml:"GenesisAssets"`
	GenesisAccounts []GenesisAccount `toml:"GenesisAccounts"`
}

// GenesisAsset records an asset in the ownership registry. Sellers can only
// list assets the registry attributes to them, so a fresh network needs these
// entries before any listing can exist.
type GenesisAsset struct {
	AssetID uint64 `toml:"AssetID"`
	Owner   string `toml:"Owner"`
}

// GenesisAccount credits a starting balance on first start. Intended for dev
// and test networks where no external settlement feeds the ledger.
type GenesisAccount struct {
	Address string `toml:"Address"`
	Balance string `toml:"Balance"`
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
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "ciphermarket-local"
	}
	if cfg.FeeBps == 0 {
		cfg.FeeBps = platform.DefaultFeeBps
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 1024
	}
	if cfg.AdminAddresses == nil {
		cfg.AdminAddresses = []string{}
	}
	if cfg.OracleAddresses == nil {
		cfg.OracleAddresses = []string{}
	}
	if cfg.GenesisAssets == nil {
		cfg.GenesisAssets = []GenesisAsset{}
	}
	if cfg.GenesisAccounts == nil {
		cfg.GenesisAccounts = []GenesisAccount{}
	}
}

// Validate rejects configurations the engines would refuse at runtime.
func Validate(cfg *Config) error {
	if cfg.FeeBps > platform.MaxFeeBps {
		return fmt.Errorf("config: FeeBps %d exceeds cap %d", cfg.FeeBps, platform.MaxFeeBps)
	}
	if strings.TrimSpace(cfg.TreasuryAddress) != "" {
		if _, err := crypto.DecodeAddress(cfg.TreasuryAddress); err != nil {
			return fmt.Errorf("config: TreasuryAddress: %w", err)
		}
	}
	for _, addr := range cfg.AdminAddresses {
		if _, err := crypto.DecodeAddress(addr); err != nil {
			return fmt.Errorf("config: AdminAddresses: %w", err)
		}
	}
	for _, addr := range cfg.OracleAddresses {
		if _, err := crypto.DecodeAddress(addr); err != nil {
			return fmt.Errorf("config: OracleAddresses: %w", err)
		}
	}
	for _, asset := range cfg.GenesisAssets {
		if asset.AssetID == 0 {
			return fmt.Errorf("config: GenesisAssets: asset id must not be zero")
		}
		if _, err := crypto.DecodeAddress(asset.Owner); err != nil {
			return fmt.Errorf("config: GenesisAssets: %w", err)
		}
	}
	for _, acct := range cfg.GenesisAccounts {
		if _, err := crypto.DecodeAddress(acct.Address); err != nil {
			return fmt.Errorf("config: GenesisAccounts: %w", err)
		}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(acct.Balance), 10)
		if !ok || balance.Sign() < 0 {
			return fmt.Errorf("config: GenesisAccounts: invalid balance %q", acct.Balance)
		}
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
