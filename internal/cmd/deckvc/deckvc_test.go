package deckvc

import (
	"bytes"
	"context"
	"flag"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	platformgrpc "github.com/louisbranch/deckledger/internal/platform/grpc"
)

func TestParseConfigLeavesSubcommand(t *testing.T) {
	fs := flag.NewFlagSet("deckvc", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-db", "decks.db", "-locale", "ja-JP", "commit", "d1", "-m", "tune"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "decks.db" || cfg.Locale != "ja-JP" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if got := strings.Join(fs.Args(), " "); got != "commit d1 -m tune" {
		t.Fatalf("args = %q", got)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("deckvc", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "deckledger.db" || cfg.Locale != "en-US" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

type cli struct {
	t   *testing.T
	cfg Config
}

func newCLI(t *testing.T, locale string) *cli {
	t.Helper()
	return &cli{t: t, cfg: Config{DBPath: filepath.Join(t.TempDir(), "decks.db"), Locale: locale}}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out bytes.Buffer
	err := Run(context.Background(), c.cfg, args, &out)
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("deckvc %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestDeckLifecycle(t *testing.T) {
	c := newCLI(t, "en-US")
	deckID := strings.TrimSpace(c.mustRun("create", "-name", "Lightning Box"))
	if deckID == "" {
		t.Fatal("expected deck id")
	}

	c.mustRun("add", deckID, "-name", "Pikachu ex", "-category", "Pokemon", "-count", "2")
	c.mustRun("add", deckID, "-name", "Nest Ball", "-category", "trainer", "-count", "4")
	if out := c.mustRun("status", deckID); !strings.Contains(out, "Uncommitted changes:") {
		t.Fatalf("status = %q", out)
	}
	if out := c.mustRun("commit", deckID, "-m", "initial list"); !strings.HasPrefix(out, "v1 initial list") {
		t.Fatalf("commit = %q", out)
	}

	c.mustRun("set", deckID, "Pikachu ex", "4")
	c.mustRun("rm", deckID, "Nest Ball")
	c.mustRun("commit", deckID, "-m", "all in on pikachu")

	if out := c.mustRun("status", deckID); !strings.Contains(out, "Nothing to commit") {
		t.Fatalf("status = %q", out)
	}

	logOut := c.mustRun("log", deckID)
	lines := strings.Split(strings.TrimSpace(logOut), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "v2") {
		t.Fatalf("log = %q, want v2 first", logOut)
	}
	if out := c.mustRun("log", deckID, "-filter", `card = "Nest Ball"`, "-order", "seq"); strings.Count(out, "\n") != 2 {
		t.Fatalf("filtered log = %q, want both versions touching Nest Ball", out)
	}

	if out := c.mustRun("checkout", deckID, "v1"); !strings.Contains(out, "Total: 6 / 60") {
		t.Fatalf("checkout = %q", out)
	}
	if out := c.mustRun("diff", deckID, "1", "2"); !strings.Contains(out, "0 added, 1 removed, 1 changed") {
		t.Fatalf("diff = %q", out)
	}
	if out := c.mustRun("verify", deckID); strings.TrimSpace(out) != "ok" {
		t.Fatalf("verify = %q", out)
	}

	c.mustRun("revert", deckID, "1")
	if out := c.mustRun("status", deckID); !strings.Contains(out, "Nest Ball") {
		t.Fatalf("status after revert = %q", out)
	}
	c.mustRun("discard", deckID)

	exported := c.mustRun("export", deckID)
	if !strings.Contains(exported, "name: Lightning Box") || !strings.Contains(exported, "count: 4") {
		t.Fatalf("export = %q", exported)
	}

	path := filepath.Join(t.TempDir(), "copy.yaml")
	if err := os.WriteFile(path, []byte(exported), 0o600); err != nil {
		t.Fatalf("write export: %v", err)
	}
	copyID := strings.TrimSpace(c.mustRun("import", path))
	if copyID == "" || copyID == deckID {
		t.Fatalf("import id = %q", copyID)
	}
	if out := c.mustRun("list"); strings.Count(out, "Lightning Box") != 2 {
		t.Fatalf("list = %q", out)
	}
}

func TestRunLocalizesErrors(t *testing.T) {
	c := newCLI(t, "ja-JP")
	deckID := strings.TrimSpace(c.mustRun("create", "-name", "雷デッキ"))

	_, err := c.run("commit", deckID, "-m", "空")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "コミットする変更がありません") || !strings.Contains(err.Error(), "NO_CHANGES") {
		t.Fatalf("error = %v, want localized NO_CHANGES", err)
	}

	_, err = c.run("show", "missing")
	if err == nil || !strings.Contains(err.Error(), "DECK_NOT_FOUND") {
		t.Fatalf("error = %v, want DECK_NOT_FOUND", err)
	}
}

func TestRunReportsEveryViolation(t *testing.T) {
	c := newCLI(t, "en-US")
	list := strings.Join([]string{
		"name: Overstuffed",
		"cards:",
		"  - name: Pikachu ex",
		"    category: pokemon",
		"    count: 5",
		"  - name: Basic Lightning Energy",
		"    category: energy",
		"    count: 60",
	}, "\n")
	path := filepath.Join(t.TempDir(), "overstuffed.yaml")
	if err := os.WriteFile(path, []byte(list), 0o600); err != nil {
		t.Fatalf("write deck list: %v", err)
	}
	deckID := strings.TrimSpace(c.mustRun("import", path))

	_, err := c.run("commit", deckID, "-m", "too big")
	if err == nil {
		t.Fatal("expected error")
	}
	lines := strings.Split(err.Error(), "\n")
	want := []string{
		"Deck has 65 cards; the limit is 60 (DECK_OVER_60)",
		"Pikachu ex has 5 copies; the limit is 4 (CARD_OVER_4)",
	}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("error lines = %q, want %q", lines, want)
	}
	if got := ExitCode(err); got != 3 {
		t.Fatalf("ExitCode = %d, want 3", got)
	}
}

func TestExitCode(t *testing.T) {
	c := newCLI(t, "en-US")
	deckID := strings.TrimSpace(c.mustRun("create", "-name", "Lightning Box"))

	_, missing := c.run("show", "missing")
	_, empty := c.run("commit", deckID, "-m", "nothing")
	_, noMessage := c.run("commit", deckID, "-m", "")
	_, usage := c.run("push")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: 0},
		{name: "not found", err: missing, want: 4},
		{name: "no changes", err: empty, want: 3},
		{name: "invalid argument", err: noMessage, want: 2},
		{name: "usage", err: usage, want: 1},
	}
	for _, tc := range tests {
		if got := ExitCode(tc.err); got != tc.want {
			t.Fatalf("%s: ExitCode(%v) = %d, want %d", tc.name, tc.err, got, tc.want)
		}
	}
}

func TestRunRejectsBadInvocations(t *testing.T) {
	c := newCLI(t, "en-US")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no subcommand", args: nil, want: "subcommand is required"},
		{name: "unknown", args: []string{"push"}, want: "unknown subcommand"},
		{name: "missing args", args: []string{"diff", "d1"}, want: "expected 3 argument(s)"},
		{name: "bad seq", args: []string{"checkout", "d1", "latest"}, want: "version must be a number"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.run(tc.args...)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestRunHealthProbesServer(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	health := platformgrpc.NewHealthServer("deckledger.mcp")
	health.SetServing(true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = health.Serve(ctx, lis) }()

	var out bytes.Buffer
	cfg := Config{HealthAddr: lis.Addr().String()}
	if err := Run(context.Background(), cfg, []string{"health", "deckledger.mcp"}, &out); err != nil {
		t.Fatalf("health: %v", err)
	}
	if !strings.Contains(out.String(), "SERVING") {
		t.Fatalf("health output = %q", out.String())
	}
	if err := Run(context.Background(), cfg, []string{"health", "a", "b"}, &out); err == nil {
		t.Fatal("expected too many arguments error")
	}
}
