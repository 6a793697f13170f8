package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0xabc123"
	cfg.Bookkeeping.BaseURL = "http://localhost:9000"
	return cfg
}

func TestValidateDefaultsWithRequiredFields(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "banana"
	cfg.Chain.ChainID = 0
	cfg.Redis.Addr = ""
	cfg.Bookkeeping.BaseURL = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{"unknown mode", "chain_id", "redis", "bookkeeping"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestValidateReconcileModeNeedsNoWallet(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "reconcile"
	cfg.Claim.Markets = []string{"0xc0ffee"}
	cfg.Wallet = WalletConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("reconcile mode should not require a wallet: %v", err)
	}

	cfg.Mode = "claim"
	if err := cfg.Validate(); err == nil {
		t.Fatal("claim mode without a wallet should fail validation")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BETCLAIM_CHAIN_RPC_URL", "https://rpc.example")
	t.Setenv("BETCLAIM_CHAIN_ID", "80002")
	t.Setenv("BETCLAIM_CLAIM_LOCK_TTL", "90s")
	t.Setenv("BETCLAIM_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Chain.RPCURL != "https://rpc.example" {
		t.Fatalf("RPCURL = %q", cfg.Chain.RPCURL)
	}
	if cfg.Chain.ChainID != 80002 {
		t.Fatalf("ChainID = %d", cfg.Chain.ChainID)
	}
	if cfg.Claim.LockTTL.Seconds() != 90 {
		t.Fatalf("LockTTL = %s", cfg.Claim.LockTTL)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "hunter2"
	cfg.Notify.TelegramToken = "tok"

	red := RedactedConfig(&cfg)
	if red.Wallet.PrivateKey != "***" || red.Postgres.Password != "***" || red.Notify.TelegramToken != "***" {
		t.Fatalf("secrets not redacted: %+v", red)
	}
	// The original must be untouched.
	if cfg.Postgres.Password != "hunter2" {
		t.Fatal("redaction mutated the source config")
	}
}
