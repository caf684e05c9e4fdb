// Package deckvc parses deckvc flags and runs one version control subcommand
// against the local deck store.
package deckvc

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/louisbranch/deckledger/internal/deck/card"
	"github.com/louisbranch/deckledger/internal/deck/render"
	"github.com/louisbranch/deckledger/internal/deck/service"
	entrypoint "github.com/louisbranch/deckledger/internal/platform/cmd"
	apperrors "github.com/louisbranch/deckledger/internal/platform/errors"
	"github.com/louisbranch/deckledger/internal/platform/errors/i18n"
	platformgrpc "github.com/louisbranch/deckledger/internal/platform/grpc"
	"github.com/louisbranch/deckledger/internal/platform/timeouts"
	"github.com/louisbranch/deckledger/internal/storage"
	"github.com/louisbranch/deckledger/internal/storage/backend"
)

// Config holds deckvc configuration.
type Config struct {
	DBPath     string `env:"DB_PATH"     envDefault:"deckledger.db"`
	Locale     string `env:"LOCALE"      envDefault:"en-US"`
	HealthAddr string `env:"HEALTH_ADDR" envDefault:"localhost:8082"`
	Verbose    bool   `env:"VERBOSE"`
}

// ParseConfig parses environment and global flags into a Config. The
// subcommand and its arguments are left in fs.Args().
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	return entrypoint.Load(fs, args, func(fs *flag.FlagSet, cfg *Config) {
		fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (:memory: for a throwaway store)")
		fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "output locale")
		fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "gRPC health address checked by the health subcommand")
		fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "log service events to stderr")
	})
}

type command struct {
	usage string
	run   func(ctx context.Context, app *app, args []string) error
}

var commands = map[string]command{
	"create":   {usage: "create -name NAME [-regulation R] [-memo M]", run: runCreate},
	"list":     {usage: "list", run: runList},
	"show":     {usage: "show DECK", run: runShow},
	"add":      {usage: "add DECK -name NAME -category C [-count N] [-id ID] [-image URL]", run: runAdd},
	"set":      {usage: "set DECK NAME COUNT", run: runSet},
	"rm":       {usage: "rm DECK NAME", run: runRemove},
	"status":   {usage: "status DECK", run: runStatus},
	"commit":   {usage: "commit DECK -m MESSAGE", run: runCommit},
	"log":      {usage: "log DECK [-filter F] [-order seq|seq desc] [-limit N] [-page TOKEN]", run: runLog},
	"checkout": {usage: "checkout DECK SEQ", run: runCheckout},
	"diff":     {usage: "diff DECK FROM TO", run: runDiff},
	"revert":   {usage: "revert DECK SEQ", run: runRevert},
	"discard":  {usage: "discard DECK", run: runDiscard},
	"import":   {usage: "import FILE", run: runImport},
	"export":   {usage: "export DECK", run: runExport},
	"verify":   {usage: "verify DECK", run: runVerify},
}

// app is the state shared by subcommands.
type app struct {
	svc      *service.Service
	renderer *render.Renderer
	out      io.Writer
}

// Run executes the subcommand named by args[0].
func Run(ctx context.Context, cfg Config, args []string, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if len(args) == 0 {
		return fmt.Errorf("subcommand is required\n%s", usage())
	}
	name, rest := args[0], args[1:]

	if name == "health" {
		return runHealth(ctx, cfg, rest, out)
	}
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown subcommand %q\n%s", name, usage())
	}

	return entrypoint.Run(ctx, entrypoint.ServiceDeck, func(ctx context.Context) error {
		store, err := backend.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open deck store: %w", err)
		}
		defer store.Close()

		logOut := io.Discard
		if cfg.Verbose {
			logOut = os.Stderr
		}
		a := &app{
			svc:      service.NewService(store, log.New(logOut, "[DECKVC] ", log.LstdFlags)),
			renderer: render.New(cfg.Locale),
			out:      out,
		}
		if err := cmd.run(ctx, a, rest); err != nil {
			return localize(a.renderer.Locale(), err)
		}
		return nil
	})
}

func usage() string {
	names := make([]string, 0, len(commands)+1)
	for name := range commands {
		names = append(names, name)
	}
	names = append(names, "health")
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		u := "health [service]"
		if cmd, ok := commands[name]; ok {
			u = cmd.usage
		}
		lines = append(lines, "  deckvc "+u)
	}
	return "usage:\n" + strings.Join(lines, "\n")
}

// localizedError shows the catalog message while keeping the domain error in
// the chain for ExitCode.
type localizedError struct {
	message string
	err     error
}

func (e *localizedError) Error() string { return e.message }
func (e *localizedError) Unwrap() error { return e.err }

// localize replaces a domain error's text with its catalog messages, one line
// per violation.
func localize(locale string, err error) error {
	if message, ok := i18n.Localize(locale, err); ok {
		return &localizedError{message: message, err: err}
	}
	return err
}

// ExitCode maps a Run error to a process exit status: 0 on success, the
// class status of the first domain error, or 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if domainErr, ok := apperrors.As(err); ok {
		return domainErr.Code.Class().ExitCode()
	}
	return 1
}

func runHealth(ctx context.Context, cfg Config, args []string, out io.Writer) error {
	if len(args) > 1 {
		return fmt.Errorf("expected at most 1 argument(s), got %d", len(args))
	}
	probe := platformgrpc.Probe{Timeout: timeouts.HealthProbe}
	if len(args) == 1 {
		probe.Service = args[0]
	}
	if cfg.Verbose {
		probe.Logf = log.New(os.Stderr, "[DECKVC] ", log.LstdFlags).Printf
	}
	if err := probe.Check(ctx, cfg.HealthAddr); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: SERVING\n", cfg.HealthAddr)
	return nil
}

func runCreate(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	name := fs.String("name", "", "deck name")
	regulation := fs.String("regulation", "", "standard, expanded or unlimited")
	memo := fs.String("memo", "", "free-form memo")
	if err := fs.Parse(args); err != nil {
		return err
	}
	deck, err := a.svc.Create(ctx, service.CreateInput{Name: *name, Regulation: *regulation, Memo: *memo})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, deck.ID)
	return nil
}

func runList(ctx context.Context, a *app, _ []string) error {
	decks, err := a.svc.List(ctx)
	if err != nil {
		return err
	}
	for _, deck := range decks {
		fmt.Fprintf(a.out, "%s\t%s\t%s\tv%d\t%d\n", deck.ID, deck.Name, deck.Regulation, deck.VersionCount, deck.Current.Total())
	}
	return nil
}

func runShow(ctx context.Context, a *app, args []string) error {
	deckID, _, err := positional(args, 1)
	if err != nil {
		return err
	}
	deck, err := a.svc.Get(ctx, deckID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (%s)\n%s\n", deck.Name, deck.Regulation, a.renderer.Snapshot(deck.Current))
	return nil
}

func runAdd(ctx context.Context, a *app, args []string) error {
	deckID, rest, err := positional(args, 1)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	name := fs.String("name", "", "card name")
	category := fs.String("category", "", "pokemon, trainer or energy")
	count := fs.Int("count", 1, "copies to add")
	cardID := fs.String("id", "", "external card identifier")
	image := fs.String("image", "", "card image URL")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	parsed, err := card.ParseCategory(*category)
	if err != nil {
		parsed = card.Category(*category)
	}
	deck, err := a.svc.AddCard(ctx, deckID, service.AddCardInput{
		Name:     *name,
		Category: parsed,
		Count:    *count,
		CardID:   *cardID,
		ImageURL: *image,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, a.renderer.Snapshot(deck.Current))
	return nil
}

func runSet(ctx context.Context, a *app, args []string) error {
	deckID, rest, err := positional(args, 3)
	if err != nil {
		return err
	}
	count, err := strconv.Atoi(rest[1])
	if err != nil {
		return fmt.Errorf("count must be a number: %w", err)
	}
	deck, err := a.svc.SetCount(ctx, deckID, rest[0], count)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, a.renderer.Snapshot(deck.Current))
	return nil
}

func runRemove(ctx context.Context, a *app, args []string) error {
	deckID, rest, err := positional(args, 2)
	if err != nil {
		return err
	}
	deck, err := a.svc.RemoveCard(ctx, deckID, rest[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, a.renderer.Snapshot(deck.Current))
	return nil
}

func runStatus(ctx context.Context, a *app, args []string) error {
	deckID, _, err := positional(args, 1)
	if err != nil {
		return err
	}
	status, err := a.svc.Status(ctx, deckID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, a.renderer.Status(status.Pending))
	catalog := i18n.GetCatalog(a.renderer.Locale())
	for _, v := range status.Violations {
		fmt.Fprintln(a.out, "! "+catalog.Format(v.Code, v.Metadata))
	}
	return nil
}

func runCommit(ctx context.Context, a *app, args []string) error {
	deckID, rest, err := positional(args, 1)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("commit", flag.ContinueOnError)
	message := fs.String("m", "", "commit message")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	version, err := a.svc.Commit(ctx, deckID, *message)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "v%d %s\n%s\n", version.Seq, version.Message, a.renderer.Summary(version.Diff))
	return nil
}

func runLog(ctx context.Context, a *app, args []string) error {
	deckID, rest, err := positional(args, 1)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	filter := fs.String("filter", "", "AIP-160 filter over seq, message, card, hash and created_at")
	order := fs.String("order", "", "seq or seq desc")
	limit := fs.Int("limit", 0, "page size")
	page := fs.String("page", "", "page token")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if _, err := a.svc.Get(ctx, deckID); err != nil {
		return err
	}
	result, err := a.svc.History(ctx, deckID, storage.VersionQuery{
		Filter:    *filter,
		OrderBy:   *order,
		PageSize:  *limit,
		PageToken: *page,
	})
	if err != nil {
		return err
	}
	for _, v := range result.Versions {
		fmt.Fprintf(a.out, "v%d\t%s\t%s\t%s\n", v.Seq, v.CreatedAt.UTC().Format("2006-01-02 15:04"), v.Message, a.renderer.Summary(v.Diff))
	}
	if result.NextPageToken != "" {
		fmt.Fprintf(a.out, "next page: %s\n", result.NextPageToken)
	}
	return nil
}

func runCheckout(ctx context.Context, a *app, args []string) error {
	deckID, rest, err := positional(args, 2)
	if err != nil {
		return err
	}
	seq, err := parseSeq(rest[0])
	if err != nil {
		return err
	}
	snapshot, err := a.svc.Checkout(ctx, deckID, seq)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, a.renderer.Snapshot(snapshot))
	return nil
}

func runDiff(ctx context.Context, a *app, args []string) error {
	deckID, rest, err := positional(args, 3)
	if err != nil {
		return err
	}
	from, err := parseSeq(rest[0])
	if err != nil {
		return err
	}
	to, err := parseSeq(rest[1])
	if err != nil {
		return err
	}
	d, err := a.svc.Compare(ctx, deckID, from, to)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\n%s\n", a.renderer.Diff(d), a.renderer.Summary(d))
	return nil
}

func runRevert(ctx context.Context, a *app, args []string) error {
	deckID, rest, err := positional(args, 2)
	if err != nil {
		return err
	}
	seq, err := parseSeq(rest[0])
	if err != nil {
		return err
	}
	deck, err := a.svc.Revert(ctx, deckID, seq)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, a.renderer.Snapshot(deck.Current))
	return nil
}

func runDiscard(ctx context.Context, a *app, args []string) error {
	deckID, _, err := positional(args, 1)
	if err != nil {
		return err
	}
	deck, err := a.svc.Discard(ctx, deckID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, a.renderer.Snapshot(deck.Current))
	return nil
}

func runImport(ctx context.Context, a *app, args []string) error {
	path, _, err := positional(args, 1)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read deck list: %w", err)
	}
	deck, err := a.svc.Import(ctx, data)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, deck.ID)
	return nil
}

func runExport(ctx context.Context, a *app, args []string) error {
	deckID, _, err := positional(args, 1)
	if err != nil {
		return err
	}
	data, err := a.svc.Export(ctx, deckID)
	if err != nil {
		return err
	}
	_, err = a.out.Write(data)
	return err
}

func runVerify(ctx context.Context, a *app, args []string) error {
	deckID, _, err := positional(args, 1)
	if err != nil {
		return err
	}
	if err := a.svc.Verify(ctx, deckID); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}

// positional returns the first argument and the rest, requiring at least n
// arguments.
func positional(args []string, n int) (string, []string, error) {
	if len(args) < n {
		return "", nil, fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	return args[0], args[1:], nil
}

func parseSeq(value string) (int, error) {
	seq, err := strconv.Atoi(strings.TrimPrefix(value, "v"))
	if err != nil {
		return 0, fmt.Errorf("version must be a number: %q", value)
	}
	return seq, nil
}
