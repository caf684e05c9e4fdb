package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type testConfig struct {
	Address string `env:"CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	Mode    string `env:"CMD_TEST_MODE"    envDefault:"server"`
}

func bindTestConfig(fs *flag.FlagSet, cfg *testConfig) {
	fs.StringVar(&cfg.Address, "address", cfg.Address, "address")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "mode")
}

func TestLoadFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("DECKLEDGER_CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("DECKLEDGER_CMD_TEST_MODE", "env-mode")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := Load(fs, []string{"-address", "flag:9001", "extra"}, bindTestConfig)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address != "flag:9001" {
		t.Fatalf("address = %q, want flag value", cfg.Address)
	}
	if cfg.Mode != "env-mode" {
		t.Fatalf("mode = %q, want env value", cfg.Mode)
	}
	if got := fs.Args(); len(got) != 1 || got[0] != "extra" {
		t.Fatalf("remaining args = %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil, bindTestConfig)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address != "127.0.0.1:8080" || cfg.Mode != "server" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadRejectsNilFlagSet(t *testing.T) {
	if _, err := Load[testConfig](nil, nil, nil); err == nil {
		t.Fatal("expected error for nil flag set")
	}
}

func TestRunReturnsRunError(t *testing.T) {
	boom := errors.New("boom")
	var sawCtx bool
	err := Run(context.Background(), ServiceDeck, func(ctx context.Context) error {
		sawCtx = ctx != nil
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if !sawCtx {
		t.Fatal("expected run function to receive a context")
	}
}

func TestRunRejectsMissingInputs(t *testing.T) {
	if err := Run(context.Background(), " ", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := Run(context.Background(), ServiceDeck, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}
