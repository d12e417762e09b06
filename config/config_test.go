package config

import (
	"os"
	"path/filepath"
	"testing"

	"ciphermarket/crypto"
	"ciphermarket/native/platform"
)

func testBech32Address(t *testing.T, fill byte) string {
	t.Helper()
	var raw [20]byte
	for i := range raw {
		raw[i] = fill
	}
	return crypto.MustNewAddress(crypto.CMPrefix, raw).String()
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if cfg.RPCAddress != "127.0.0.1:8545" {
		t.Fatalf("unexpected rpc address %q", cfg.RPCAddress)
	}
	if cfg.NetworkName != "ciphermarket-local" {
		t.Fatalf("unexpected network name %q", cfg.NetworkName)
	}
	if cfg.FeeBps != platform.DefaultFeeBps {
		t.Fatalf("unexpected fee bps %d", cfg.FeeBps)
	}
	if cfg.EventBuffer != 1024 {
		t.Fatalf("unexpected event buffer %d", cfg.EventBuffer)
	}

	// The written default file must load back cleanly.
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.RPCAddress != cfg.RPCAddress || reloaded.FeeBps != cfg.FeeBps {
		t.Fatalf("reload mismatch: %+v vs %+v", reloaded, cfg)
	}
}

func TestLoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	admin := testBech32Address(t, 0x01)
	treasury := testBech32Address(t, 0x0A)
	content := `
RPCAddress = "0.0.0.0:9000"
DataDir = "/var/lib/ciphermarket"
FeeBps = 500
TreasuryAddress = "` + treasury + `"
AdminAddresses = ["` + admin + `"]

[[GenesisAssets]]
AssetID = 7
Owner = "` + admin + `"

[[GenesisAccounts]]
Address = "` + treasury + `"
Balance = "1000"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "0.0.0.0:9000" {
		t.Fatalf("rpc address not honoured: %q", cfg.RPCAddress)
	}
	if cfg.FeeBps != 500 {
		t.Fatalf("fee bps not honoured: %d", cfg.FeeBps)
	}
	if cfg.TreasuryAddress != treasury {
		t.Fatalf("treasury not honoured: %q", cfg.TreasuryAddress)
	}
	if len(cfg.AdminAddresses) != 1 || cfg.AdminAddresses[0] != admin {
		t.Fatalf("admins not honoured: %v", cfg.AdminAddresses)
	}
	if len(cfg.GenesisAssets) != 1 || cfg.GenesisAssets[0].AssetID != 7 || cfg.GenesisAssets[0].Owner != admin {
		t.Fatalf("genesis assets not honoured: %v", cfg.GenesisAssets)
	}
	if len(cfg.GenesisAccounts) != 1 || cfg.GenesisAccounts[0].Balance != "1000" {
		t.Fatalf("genesis accounts not honoured: %v", cfg.GenesisAccounts)
	}
	// Omitted fields still pick up defaults.
	if cfg.NetworkName != "ciphermarket-local" {
		t.Fatalf("network default not applied: %q", cfg.NetworkName)
	}
}

func TestValidate(t *testing.T) {
	valid := &Config{FeeBps: platform.MaxFeeBps, TreasuryAddress: testBech32Address(t, 0x0A)}
	if err := Validate(valid); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name string
		cfg  *Config
	}{
		{"fee above cap", &Config{FeeBps: platform.MaxFeeBps + 1}},
		{"bad treasury", &Config{TreasuryAddress: "garbage"}},
		{"bad admin", &Config{AdminAddresses: []string{"garbage"}}},
		{"bad oracle", &Config{OracleAddresses: []string{"garbage"}}},
		{"zero genesis asset id", &Config{GenesisAssets: []GenesisAsset{{AssetID: 0, Owner: testBech32Address(t, 0x02)}}}},
		{"bad genesis owner", &Config{GenesisAssets: []GenesisAsset{{AssetID: 7, Owner: "garbage"}}}},
		{"bad genesis address", &Config{GenesisAccounts: []GenesisAccount{{Address: "garbage", Balance: "10"}}}},
		{"bad genesis balance", &Config{GenesisAccounts: []GenesisAccount{{Address: testBech32Address(t, 0x03), Balance: "lots"}}}},
		{"negative genesis balance", &Config{GenesisAccounts: []GenesisAccount{{Address: testBech32Address(t, 0x03), Balance: "-5"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Validate(tc.cfg); err == nil {
				t.Fatalf("expected rejection")
			}
		})
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("FeeBps = 5000\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected fee cap rejection")
	}
}
