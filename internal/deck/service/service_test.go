package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/deckledger/internal/deck/card"
	"github.com/louisbranch/deckledger/internal/deck/diff"
	"github.com/louisbranch/deckledger/internal/deck/history"
	apperrors "github.com/louisbranch/deckledger/internal/platform/errors"
	"github.com/louisbranch/deckledger/internal/storage"
	"github.com/louisbranch/deckledger/internal/storage/memory"
)

var testNow = time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, store storage.Store) *Service {
	t.Helper()
	if store == nil {
		store = memory.New()
	}
	svc := NewService(store, log.New(io.Discard, "", 0))
	tick := 0
	var mu sync.Mutex
	svc.clock = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return testNow.Add(time.Duration(tick) * time.Second)
	}
	next := 0
	svc.idGenerator = func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("id-%d", next), nil
	}
	return svc
}

func assertCode(t *testing.T, err error, want apperrors.Code) {
	t.Helper()
	if got := apperrors.CodeOf(err); got != want {
		t.Fatalf("error code = %s, want %s (err = %v)", got, want, err)
	}
}

func mustCreate(t *testing.T, svc *Service, cards ...card.Card) Deck {
	t.Helper()
	deck, err := svc.Create(context.Background(), CreateInput{Name: "Lightning", InitialCards: card.NewSnapshot(cards...)})
	if err != nil {
		t.Fatalf("create deck: %v", err)
	}
	return deck
}

func mustAdd(t *testing.T, svc *Service, deckID, name string, category card.Category, count int) Deck {
	t.Helper()
	deck, err := svc.AddCard(context.Background(), deckID, AddCardInput{Name: name, Category: category, Count: count})
	if err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
	return deck
}

func mustCommit(t *testing.T, svc *Service, deckID, message string) history.Version {
	t.Helper()
	v, err := svc.Commit(context.Background(), deckID, message)
	if err != nil {
		t.Fatalf("commit %q: %v", message, err)
	}
	return v
}

func TestCreate(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	deck, err := svc.Create(ctx, CreateInput{Name: "  Lightning Box ", Memo: " locals "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if deck.ID != "id-1" || deck.Name != "Lightning Box" || deck.Memo != "locals" {
		t.Fatalf("deck = %+v", deck)
	}
	if deck.Regulation != RegulationStandard {
		t.Fatalf("regulation = %q, want standard", deck.Regulation)
	}
	if deck.VersionCount != 0 || !deck.Current.IsEmpty() {
		t.Fatalf("new deck should be empty: %+v", deck)
	}

	tests := []struct {
		name string
		in   CreateInput
		code apperrors.Code
	}{
		{name: "blank name", in: CreateInput{Name: "  "}, code: apperrors.CodeDeckNameEmpty},
		{name: "bad regulation", in: CreateInput{Name: "x", Regulation: "legacy"}, code: apperrors.CodeDeckInvalidRegulation},
		{
			name: "bad initial count",
			in:   CreateInput{Name: "x", InitialCards: card.NewSnapshot(card.Card{Name: "A", Category: card.CategoryPokemon})},
			code: apperrors.CodeCardInvalidCount,
		},
		{
			name: "bad initial category",
			in:   CreateInput{Name: "x", InitialCards: card.NewSnapshot(card.Card{Name: "A", Category: "item", Count: 1})},
			code: apperrors.CodeCardInvalidCategory,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.in)
			assertCode(t, err, tc.code)
		})
	}
}

func TestParseRegulation(t *testing.T) {
	for in, want := range map[string]Regulation{
		"":           RegulationStandard,
		"Expanded":   RegulationExpanded,
		" unlimited": RegulationUnlimited,
	} {
		got, err := ParseRegulation(in)
		if err != nil {
			t.Fatalf("ParseRegulation(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseRegulation(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCommitFlow(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	deck := mustCreate(t, svc)

	mustAdd(t, svc, deck.ID, "Pikachu", card.CategoryPokemon, 2)
	mustAdd(t, svc, deck.ID, "Basic Lightning Energy", card.CategoryEnergy, 10)

	status, err := svc.Status(ctx, deck.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.HasChanges || len(status.Pending) != 2 || !status.CanCommit() {
		t.Fatalf("status = %+v", status)
	}

	v1 := mustCommit(t, svc, deck.ID, "  Initial list  ")
	if v1.Seq != 1 || v1.Message != "Initial list" {
		t.Fatalf("v1 = %+v", v1)
	}
	if v1.Hash == "" || v1.ChainHash == "" {
		t.Fatal("commit did not seal the version")
	}

	status, err = svc.Status(ctx, deck.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.HasChanges || len(status.Pending) != 0 {
		t.Fatalf("expected clean status after commit: %+v", status)
	}
	if status.Deck.VersionCount != 1 || !status.Deck.Committed.Equal(status.Deck.Current) {
		t.Fatalf("deck after commit = %+v", status.Deck)
	}

	if _, err := svc.SetCount(ctx, deck.ID, "Pikachu", 4); err != nil {
		t.Fatalf("set count: %v", err)
	}
	if _, err := svc.RemoveCard(ctx, deck.ID, "Basic Lightning Energy"); err != nil {
		t.Fatalf("remove card: %v", err)
	}
	mustAdd(t, svc, deck.ID, "Nest Ball", card.CategoryTrainer, 1)
	v2 := mustCommit(t, svc, deck.ID, "Swap energy for Nest Ball")
	if v2.Seq != 2 || v2.PrevHash != v1.ChainHash {
		t.Fatalf("v2 = %+v", v2)
	}

	snap, err := svc.Checkout(ctx, deck.ID, 1)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	want := map[string]int{"Pikachu": 2, "Basic Lightning Energy": 10}
	if fmt.Sprint(snap.Counts()) != fmt.Sprint(want) {
		t.Fatalf("checkout v1 = %v, want %v", snap.Counts(), want)
	}
	empty, err := svc.Checkout(ctx, deck.ID, 0)
	if err != nil {
		t.Fatalf("checkout 0: %v", err)
	}
	if !empty.IsEmpty() {
		t.Fatalf("checkout 0 = %v, want empty", empty.Counts())
	}

	d, err := svc.Compare(ctx, deck.ID, 1, 2)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	added, removed, changed := d.Counts()
	if added != 1 || removed != 1 || changed != 1 {
		t.Fatalf("compare 1..2 counts = %d/%d/%d", added, removed, changed)
	}
	back, err := svc.Compare(ctx, deck.ID, 2, 1)
	if err != nil {
		t.Fatalf("compare reverse: %v", err)
	}
	if !diff.Apply(diff.Apply(snap, d), back).Equal(snap) {
		t.Fatal("reverse compare does not undo forward compare")
	}

	if err := svc.Verify(ctx, deck.ID); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestCommitRejections(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	deck := mustCreate(t, svc)
	_, err := svc.Commit(ctx, deck.ID, "nothing")
	assertCode(t, err, apperrors.CodeNoChanges)

	mustAdd(t, svc, deck.ID, "Pikachu", card.CategoryPokemon, 1)
	_, err = svc.Commit(ctx, deck.ID, "   ")
	assertCode(t, err, apperrors.CodeMessageRequired)

	over := mustCreate(t, svc, card.Card{Name: "Pikachu", Category: card.CategoryPokemon, Count: 5})
	status, err := svc.Status(ctx, over.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.CanCommit() || len(status.Violations) != 1 {
		t.Fatalf("status = %+v, want one violation", status)
	}
	_, err = svc.Commit(ctx, over.ID, "too many")
	assertCode(t, err, apperrors.CodeCardOver4)

	_, err = svc.Commit(ctx, "missing", "x")
	assertCode(t, err, apperrors.CodeDeckNotFound)
}

func TestAddCardLimits(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	deck := mustCreate(t, svc)

	mustAdd(t, svc, deck.ID, "Pikachu", card.CategoryPokemon, 4)
	_, err := svc.AddCard(ctx, deck.ID, AddCardInput{Name: "Pikachu", Category: card.CategoryPokemon})
	assertCode(t, err, apperrors.CodeCardOver4)

	got := mustAdd(t, svc, deck.ID, "基本雷エネルギー", card.CategoryEnergy, 40)
	if got.Current.Total() != 44 {
		t.Fatalf("total = %d, want 44", got.Current.Total())
	}
	_, err = svc.AddCard(ctx, deck.ID, AddCardInput{Name: "基本雷エネルギー", Category: card.CategoryEnergy, Count: 17})
	assertCode(t, err, apperrors.CodeDeckOver60)

	_, err = svc.AddCard(ctx, deck.ID, AddCardInput{Name: " ", Category: card.CategoryPokemon})
	assertCode(t, err, apperrors.CodeCardNameRequired)
	_, err = svc.AddCard(ctx, deck.ID, AddCardInput{Name: "Raichu", Category: "item"})
	assertCode(t, err, apperrors.CodeCardInvalidCategory)
	_, err = svc.AddCard(ctx, deck.ID, AddCardInput{Name: "Raichu", Category: card.CategoryPokemon, Count: -1})
	assertCode(t, err, apperrors.CodeCardInvalidCount)
}

func TestAddCardKeepsMetadataOfNewCards(t *testing.T) {
	svc := newTestService(t, nil)
	deck := mustCreate(t, svc)
	got, err := svc.AddCard(context.Background(), deck.ID, AddCardInput{
		Name:     "Pikachu ex",
		Category: card.CategoryPokemon,
		CardID:   "sv8-57",
		ImageURL: "https://img/pikachu.png",
	})
	if err != nil {
		t.Fatalf("add card: %v", err)
	}
	c, _ := got.Current.Get("Pikachu ex")
	if c.ID != "sv8-57" || c.ImageURL != "https://img/pikachu.png" || c.Count != 1 {
		t.Fatalf("card = %+v", c)
	}
}

func TestSetCountAndRemove(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	deck := mustCreate(t, svc)
	mustAdd(t, svc, deck.ID, "Pikachu", card.CategoryPokemon, 2)

	_, err := svc.SetCount(ctx, deck.ID, "Pikachu", 5)
	assertCode(t, err, apperrors.CodeCardOver4)

	got, err := svc.SetCount(ctx, deck.ID, "Pikachu", 0)
	if err != nil {
		t.Fatalf("set count 0: %v", err)
	}
	if got.Current.Has("Pikachu") {
		t.Fatal("count 0 should remove the card")
	}

	_, err = svc.SetCount(ctx, deck.ID, "Pikachu", 1)
	assertCode(t, err, apperrors.CodeNotFound)
	_, err = svc.RemoveCard(ctx, deck.ID, "Pikachu")
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestRevertAndDiscard(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	deck := mustCreate(t, svc)

	mustAdd(t, svc, deck.ID, "Pikachu", card.CategoryPokemon, 2)
	mustCommit(t, svc, deck.ID, "v1")
	mustAdd(t, svc, deck.ID, "Raichu", card.CategoryPokemon, 1)
	mustCommit(t, svc, deck.ID, "v2")

	reverted, err := svc.Revert(ctx, deck.ID, 1)
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if reverted.Current.Has("Raichu") || reverted.Current.CountOf("Pikachu") != 2 {
		t.Fatalf("reverted current = %v", reverted.Current.Counts())
	}
	if reverted.VersionCount != 2 {
		t.Fatalf("revert must not commit, version count = %d", reverted.VersionCount)
	}
	v3 := mustCommit(t, svc, deck.ID, "Back to v1")
	if v3.Seq != 3 {
		t.Fatalf("revert commit seq = %d, want 3", v3.Seq)
	}
	if _, ok := v3.Diff.Find("Raichu"); !ok {
		t.Fatal("revert commit should remove Raichu")
	}

	_, err = svc.Revert(ctx, deck.ID, 9)
	assertCode(t, err, apperrors.CodeVersionNotFound)

	mustAdd(t, svc, deck.ID, "Zapdos", card.CategoryPokemon, 1)
	discarded, err := svc.Discard(ctx, deck.ID)
	if err != nil {
		t.Fatalf("discard: %v", err)
	}
	if discarded.Current.Has("Zapdos") || !discarded.Current.Equal(discarded.Committed) {
		t.Fatalf("discard left %v", discarded.Current.Counts())
	}
}

func TestCheckoutAndCompareRejectUnknownVersions(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	deck := mustCreate(t, svc)

	_, err := svc.Checkout(ctx, deck.ID, 1)
	assertCode(t, err, apperrors.CodeVersionNotFound)
	_, err = svc.Checkout(ctx, deck.ID, -1)
	assertCode(t, err, apperrors.CodeVersionNotFound)
	_, err = svc.Compare(ctx, deck.ID, 0, 3)
	assertCode(t, err, apperrors.CodeVersionNotFound)

	d, err := svc.Compare(ctx, deck.ID, 0, 0)
	if err != nil {
		t.Fatalf("compare 0..0: %v", err)
	}
	if len(d) != 0 {
		t.Fatalf("compare 0..0 = %v", d)
	}
}

func TestHistory(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	deck := mustCreate(t, svc)
	mustAdd(t, svc, deck.ID, "Pikachu", card.CategoryPokemon, 1)
	mustCommit(t, svc, deck.ID, "Add Pikachu")
	mustAdd(t, svc, deck.ID, "Raichu", card.CategoryPokemon, 1)
	mustCommit(t, svc, deck.ID, "Add Raichu")

	page, err := svc.History(ctx, deck.ID, storage.VersionQuery{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(page.Versions) != 2 || page.Versions[0].Seq != 2 {
		t.Fatalf("history = %+v", page.Versions)
	}

	page, err = svc.History(ctx, deck.ID, storage.VersionQuery{Filter: `card = "Pikachu"`})
	if err != nil {
		t.Fatalf("filtered history: %v", err)
	}
	if page.TotalCount != 1 || page.Versions[0].Message != "Add Pikachu" {
		t.Fatalf("filtered history = %+v", page)
	}

	_, err = svc.History(ctx, deck.ID, storage.VersionQuery{Filter: "seq >"})
	assertCode(t, err, apperrors.CodeInvalidFilter)
	_, err = svc.History(ctx, "missing", storage.VersionQuery{})
	assertCode(t, err, apperrors.CodeDeckNotFound)
}

func TestUpdateDeck(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	deck := mustCreate(t, svc)

	name := "Raging Bolt"
	regulation := "EXPANDED"
	updated, err := svc.UpdateDeck(ctx, deck.ID, UpdateInput{Name: &name, Regulation: &regulation})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != name || updated.Regulation != RegulationExpanded {
		t.Fatalf("updated = %+v", updated)
	}
	if !updated.UpdatedAt.After(deck.UpdatedAt) {
		t.Fatal("update should bump updated_at")
	}

	blank := " "
	_, err = svc.UpdateDeck(ctx, deck.ID, UpdateInput{Name: &blank})
	assertCode(t, err, apperrors.CodeDeckNameEmpty)
}

func TestImportExport(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	deck, err := svc.Import(ctx, []byte(`
name: Lightning Box
regulation: expanded
cards:
  - name: Pikachu
    category: pokemon
    count: 2
`))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if deck.Regulation != RegulationExpanded || deck.Current.CountOf("Pikachu") != 2 {
		t.Fatalf("imported deck = %+v", deck)
	}

	out, err := svc.Export(ctx, deck.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(string(out), "name: Lightning Box") || !strings.Contains(string(out), "count: 2") {
		t.Fatalf("export = %s", out)
	}

	_, err = svc.Import(ctx, []byte("cards:\n  - name: A\n    category: item\n    count: 1\n"))
	assertCode(t, err, apperrors.CodeInvalidImport)
}

func TestListDecks(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	for _, name := range []string{"Zeta", "Alpha"} {
		if _, err := svc.Create(ctx, CreateInput{Name: name}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	decks, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(decks) != 2 || decks[0].Name != "Alpha" {
		t.Fatalf("decks = %+v", decks)
	}
}

func TestConcurrentCommitsKeepSequenceContiguous(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	deck := mustCreate(t, svc)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("Card %d", i)
			if _, err := svc.AddCard(ctx, deck.ID, AddCardInput{Name: name, Category: card.CategoryTrainer}); err != nil {
				errs <- err
				return
			}
			if _, err := svc.Commit(ctx, deck.ID, "add "+name); err != nil && apperrors.CodeOf(err) != apperrors.CodeNoChanges {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("worker: %v", err)
	}

	if err := svc.Verify(ctx, deck.ID); err != nil {
		t.Fatalf("verify: %v", err)
	}
	got, err := svc.Get(ctx, deck.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Committed.Len() != workers {
		t.Fatalf("committed cards = %d, want %d", got.Committed.Len(), workers)
	}
}

type tamperStore struct {
	storage.Store
}

func (s tamperStore) ListVersions(ctx context.Context, deckID string) (history.Log, error) {
	log, err := s.Store.ListVersions(ctx, deckID)
	if err != nil || len(log) == 0 {
		return log, err
	}
	log[0].Message = "rewritten"
	return log, nil
}

func TestVerifyDetectsTampering(t *testing.T) {
	store := memory.New()
	svc := newTestService(t, store)
	deck := mustCreate(t, svc)
	mustAdd(t, svc, deck.ID, "Pikachu", card.CategoryPokemon, 1)
	mustCommit(t, svc, deck.ID, "v1")

	tampered := newTestService(t, tamperStore{Store: store})
	err := tampered.Verify(context.Background(), deck.ID)
	assertCode(t, err, apperrors.CodeHistoryCorrupted)
	if !errors.Is(err, apperrors.New(apperrors.CodeHistoryCorrupted, "")) {
		t.Fatalf("verify error = %v", err)
	}
}

func TestNilServiceIsNotConfigured(t *testing.T) {
	var svc *Service
	_, err := svc.Get(context.Background(), "x")
	assertCode(t, err, apperrors.CodeUnknown)
}
