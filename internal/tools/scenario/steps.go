package scenario

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/louisbranch/deckledger/internal/deck/card"
	"github.com/louisbranch/deckledger/internal/deck/diff"
	"github.com/louisbranch/deckledger/internal/deck/service"
	apperrors "github.com/louisbranch/deckledger/internal/platform/errors"
)

type runState struct {
	deckID string
}

func (r *Runner) runStep(ctx context.Context, st *runState, step Step) error {
	if step.Kind != StepDeck && st.deckID == "" {
		return fmt.Errorf("no deck; call deck{} first")
	}
	err := r.execStep(ctx, st, step)
	if step.ExpectError == "" {
		return err
	}
	if err == nil {
		return r.assertions.Failf("expected error %s, got success", step.ExpectError)
	}
	if got := apperrors.CodeOf(err); string(got) != step.ExpectError {
		return r.assertions.Failf("expected error %s, got %s (%v)", step.ExpectError, got, err)
	}
	r.logf("step failed as expected: %v", err)
	return nil
}

func (r *Runner) execStep(ctx context.Context, st *runState, step Step) error {
	switch step.Kind {
	case StepDeck:
		deck, err := r.svc.Create(ctx, service.CreateInput{
			Name:       stringArg(step.Args, "name"),
			Regulation: stringArg(step.Args, "regulation"),
			Memo:       stringArg(step.Args, "memo"),
		})
		if err != nil {
			return err
		}
		st.deckID = deck.ID
		return nil
	case StepAdd:
		category := card.Category(stringArg(step.Args, "category"))
		if parsed, err := card.ParseCategory(string(category)); err == nil {
			category = parsed
		}
		_, err := r.svc.AddCard(ctx, st.deckID, service.AddCardInput{
			Name:     stringArg(step.Args, "name"),
			Category: category,
			Count:    intArg(step.Args, "count"),
		})
		return err
	case StepSet:
		_, err := r.svc.SetCount(ctx, st.deckID, stringArg(step.Args, "name"), intArg(step.Args, "count"))
		return err
	case StepRemove:
		_, err := r.svc.RemoveCard(ctx, st.deckID, stringArg(step.Args, "name"))
		return err
	case StepCommit:
		version, err := r.svc.Commit(ctx, st.deckID, stringArg(step.Args, "message"))
		if err != nil {
			return err
		}
		r.logf("committed v%d: %s", version.Seq, version.Message)
		return nil
	case StepRevert:
		_, err := r.svc.Revert(ctx, st.deckID, intArg(step.Args, "seq"))
		return err
	case StepExpectVersion:
		return r.expectVersion(ctx, st, step)
	case StepExpectCompare:
		return r.expectCompare(ctx, st, step)
	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

func (r *Runner) expectVersion(ctx context.Context, st *runState, step Step) error {
	seq := intArg(step.Args, "seq")
	snapshot, err := r.svc.Checkout(ctx, st.deckID, seq)
	if err != nil {
		return err
	}
	want := map[string]int{}
	for name, value := range mapArg(step.Args, "cards") {
		want[name] = toInt(value)
	}
	got := snapshot.Counts()
	if !equalCounts(got, want) {
		return r.assertions.Failf("version %d: cards = %s, want %s", seq, formatCounts(got), formatCounts(want))
	}
	return nil
}

func (r *Runner) expectCompare(ctx context.Context, st *runState, step Step) error {
	from := intArg(step.Args, "from")
	to := intArg(step.Args, "to")
	d, err := r.svc.Compare(ctx, st.deckID, from, to)
	if err != nil {
		return err
	}
	want := map[string][2]int{}
	for name, value := range mapArg(step.Args, "changes") {
		pair, ok := value.([]any)
		if !ok || len(pair) != 2 {
			return fmt.Errorf("compare %d..%d: %q expects {before, after}", from, to, name)
		}
		want[name] = [2]int{toInt(pair[0]), toInt(pair[1])}
	}
	got := changePairs(d)
	if len(got) != len(want) {
		return r.assertions.Failf("compare %d..%d: %d changes, want %d", from, to, len(got), len(want))
	}
	for name, pair := range want {
		if got[name] != pair {
			return r.assertions.Failf("compare %d..%d: %q = %v, want %v", from, to, name, got[name], pair)
		}
	}
	return nil
}

// changePairs flattens d into name -> {before, after} with 0 for an absent card.
func changePairs(d diff.Diff) map[string][2]int {
	out := make(map[string][2]int, len(d))
	for _, e := range d {
		switch entry := e.(type) {
		case diff.Added:
			out[entry.Name] = [2]int{0, entry.After}
		case diff.Removed:
			out[entry.Name] = [2]int{entry.Before, 0}
		case diff.Changed:
			out[entry.Name] = [2]int{entry.Before, entry.After}
		}
	}
	return out
}

func equalCounts(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for name, count := range a {
		if other, ok := b[name]; !ok || other != count {
			return false
		}
	}
	return true
}

func formatCounts(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, counts[name]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func stringArg(args map[string]any, key string) string {
	value, _ := args[key].(string)
	return value
}

func intArg(args map[string]any, key string) int {
	return toInt(args[key])
}

func mapArg(args map[string]any, key string) map[string]any {
	value, _ := args[key].(map[string]any)
	return value
}

func toInt(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
