package mcp

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/louisbranch/deckledger/internal/deck/render"
	"github.com/louisbranch/deckledger/internal/deck/service"
	"github.com/louisbranch/deckledger/internal/storage/memory"
)

func newTestService(t *testing.T) *service.Service {
	t.Helper()
	return service.NewService(memory.New(), log.New(io.Discard, "", 0))
}

func createDeck(t *testing.T, svc *service.Service, r *render.Renderer, cards ...CardInput) DeckResult {
	t.Helper()
	_, deck, err := DeckCreateHandler(svc, r)(context.Background(), nil, DeckCreateInput{Name: "Lightning", Cards: cards})
	if err != nil {
		t.Fatalf("create deck: %v", err)
	}
	return deck
}

func commitDeck(t *testing.T, svc *service.Service, r *render.Renderer, deckID, message string) VersionResult {
	t.Helper()
	_, version, err := DeckCommitHandler(svc, r)(context.Background(), nil, DeckCommitInput{DeckID: deckID, Message: message})
	if err != nil {
		t.Fatalf("commit %q: %v", message, err)
	}
	return version
}

func TestDeckCreateHandler(t *testing.T) {
	svc := newTestService(t)
	r := render.New("en-US")

	t.Run("success", func(t *testing.T) {
		deck := createDeck(t, svc, r,
			CardInput{Name: "Pikachu ex", Category: "Pokemon", Count: 2},
			CardInput{Name: "Nest Ball", Category: "trainer"},
		)
		if deck.ID == "" {
			t.Fatal("expected deck id")
		}
		if deck.Regulation != "standard" {
			t.Fatalf("regulation = %q, want standard", deck.Regulation)
		}
		if deck.Total != 3 {
			t.Fatalf("total = %d, want 3", deck.Total)
		}
		if !deck.HasChanges {
			t.Fatal("expected initial cards to be pending")
		}
		if deck.Cards[0].Category != "pokemon" {
			t.Fatalf("category = %q, want pokemon", deck.Cards[0].Category)
		}
		if !strings.Contains(deck.Text, "Total: 3 / 60") {
			t.Fatalf("text = %q, want total line", deck.Text)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		_, _, err := DeckCreateHandler(svc, r)(context.Background(), nil, DeckCreateInput{Name: "  "})
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "DECK_NAME_EMPTY") {
			t.Fatalf("error = %v, want DECK_NAME_EMPTY", err)
		}
	})

	t.Run("bad category", func(t *testing.T) {
		_, _, err := DeckCreateHandler(svc, r)(context.Background(), nil, DeckCreateInput{
			Name:  "X",
			Cards: []CardInput{{Name: "Mew", Category: "stadium"}},
		})
		if err == nil || !strings.Contains(err.Error(), "INVALID_CATEGORY") {
			t.Fatalf("error = %v, want INVALID_CATEGORY", err)
		}
	})
}

func TestDeckEditHandlers(t *testing.T) {
	svc := newTestService(t)
	r := render.New("en-US")
	ctx := context.Background()
	deck := createDeck(t, svc, r)

	_, deck, err := DeckAddCardHandler(svc, r)(ctx, nil, DeckAddCardInput{DeckID: deck.ID, Name: "Pikachu ex", Category: "pokemon", Count: 3})
	if err != nil {
		t.Fatalf("add card: %v", err)
	}
	if deck.Total != 3 {
		t.Fatalf("total after add = %d, want 3", deck.Total)
	}

	_, _, err = DeckAddCardHandler(svc, r)(ctx, nil, DeckAddCardInput{DeckID: deck.ID, Name: "Pikachu ex", Category: "pokemon", Count: 2})
	if err == nil || !strings.Contains(err.Error(), "CARD_OVER_4") {
		t.Fatalf("error = %v, want CARD_OVER_4", err)
	}

	_, deck, err = DeckSetCountHandler(svc, r)(ctx, nil, DeckSetCountInput{DeckID: deck.ID, Name: "Pikachu ex", Count: 1})
	if err != nil {
		t.Fatalf("set count: %v", err)
	}
	if deck.Cards[0].Count != 1 {
		t.Fatalf("count = %d, want 1", deck.Cards[0].Count)
	}

	_, deck, err = DeckRemoveCardHandler(svc, r)(ctx, nil, DeckRemoveCardInput{DeckID: deck.ID, Name: "Pikachu ex"})
	if err != nil {
		t.Fatalf("remove card: %v", err)
	}
	if len(deck.Cards) != 0 {
		t.Fatalf("cards = %v, want empty", deck.Cards)
	}

	t.Run("missing deck id", func(t *testing.T) {
		if _, _, err := DeckSetCountHandler(svc, r)(ctx, nil, DeckSetCountInput{Name: "X", Count: 1}); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unknown deck", func(t *testing.T) {
		_, _, err := DeckRemoveCardHandler(svc, r)(ctx, nil, DeckRemoveCardInput{DeckID: "missing", Name: "X"})
		if err == nil || !strings.Contains(err.Error(), "Deck missing was not found") {
			t.Fatalf("error = %v, want localized not found", err)
		}
	})
}

func TestDeckVersionHandlers(t *testing.T) {
	svc := newTestService(t)
	r := render.New("en-US")
	ctx := context.Background()
	deck := createDeck(t, svc, r, CardInput{Name: "Pikachu ex", Category: "pokemon", Count: 2})

	_, status, err := DeckStatusHandler(svc, r)(ctx, nil, DeckStatusInput{DeckID: deck.ID})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.HasChanges || !status.CanCommit {
		t.Fatalf("status = %+v, want committable changes", status)
	}
	if len(status.Changes) != 1 || status.Changes[0].Type != "added" || status.Changes[0].After != 2 {
		t.Fatalf("changes = %+v, want one added entry", status.Changes)
	}

	v1 := commitDeck(t, svc, r, deck.ID, "initial list")
	if v1.Seq != 1 {
		t.Fatalf("seq = %d, want 1", v1.Seq)
	}
	if v1.Summary != "1 added, 0 removed, 0 changed" {
		t.Fatalf("summary = %q", v1.Summary)
	}

	if _, _, err := DeckCommitHandler(svc, r)(ctx, nil, DeckCommitInput{DeckID: deck.ID, Message: "again"}); err == nil || !strings.Contains(err.Error(), "NO_CHANGES") {
		t.Fatalf("error = %v, want NO_CHANGES", err)
	}

	if _, _, err := DeckSetCountHandler(svc, r)(ctx, nil, DeckSetCountInput{DeckID: deck.ID, Name: "Pikachu ex", Count: 4}); err != nil {
		t.Fatalf("set count: %v", err)
	}
	commitDeck(t, svc, r, deck.ID, "max pikachu")

	_, checkout, err := DeckCheckoutHandler(svc, r)(ctx, nil, DeckCheckoutInput{DeckID: deck.ID, Seq: 1})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if checkout.Total != 2 {
		t.Fatalf("checkout total = %d, want 2", checkout.Total)
	}

	_, compare, err := DeckCompareHandler(svc, r)(ctx, nil, DeckCompareInput{DeckID: deck.ID, From: 2, To: 0})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(compare.Changes) != 1 || compare.Changes[0].Type != "removed" || compare.Changes[0].Before != 4 {
		t.Fatalf("compare changes = %+v, want removed 4", compare.Changes)
	}

	_, page, err := DeckHistoryHandler(svc, r)(ctx, nil, DeckHistoryInput{DeckID: deck.ID})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if page.TotalCount != 2 || page.Versions[0].Seq != 2 {
		t.Fatalf("history = %+v, want newest first", page)
	}
	if !strings.HasPrefix(page.Text, "v2") {
		t.Fatalf("history text = %q, want newest first", page.Text)
	}

	_, ascending, err := DeckHistoryHandler(svc, r)(ctx, nil, DeckHistoryInput{DeckID: deck.ID, OrderBy: "seq"})
	if err != nil {
		t.Fatalf("ascending history: %v", err)
	}
	if ascending.Versions[0].Seq != 1 || ascending.Text != page.Text {
		t.Fatalf("ascending history = %+v, want seq 1 first and text %q", ascending, page.Text)
	}

	_, filtered, err := DeckHistoryHandler(svc, r)(ctx, nil, DeckHistoryInput{DeckID: deck.ID, Filter: `message:"initial"`, OrderBy: "seq"})
	if err != nil {
		t.Fatalf("filtered history: %v", err)
	}
	if filtered.TotalCount != 1 || filtered.Versions[0].Seq != 1 {
		t.Fatalf("filtered = %+v, want only v1", filtered)
	}

	if _, _, err := DeckHistoryHandler(svc, r)(ctx, nil, DeckHistoryInput{DeckID: deck.ID, Filter: "bogus = 1"}); err == nil || !strings.Contains(err.Error(), "INVALID_FILTER") {
		t.Fatalf("error = %v, want INVALID_FILTER", err)
	}

	_, reverted, err := DeckRevertHandler(svc, r)(ctx, nil, DeckRevertInput{DeckID: deck.ID, Seq: 1})
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if reverted.Total != 2 || !reverted.HasChanges {
		t.Fatalf("reverted = %+v, want 2 pending cards", reverted)
	}

	if _, _, err := DeckCheckoutHandler(svc, r)(ctx, nil, DeckCheckoutInput{DeckID: deck.ID, Seq: 9}); err == nil || !strings.Contains(err.Error(), "VERSION_NOT_FOUND") {
		t.Fatalf("error = %v, want VERSION_NOT_FOUND", err)
	}
}

func TestDeckStatusHandlerReportsViolations(t *testing.T) {
	svc := newTestService(t)
	r := render.New("ja-JP")
	deck := createDeck(t, svc, r, CardInput{Name: "Basic Lightning Energy", Category: "energy", Count: 61})

	_, status, err := DeckStatusHandler(svc, r)(context.Background(), nil, DeckStatusInput{DeckID: deck.ID})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.CanCommit {
		t.Fatal("expected oversized deck to be uncommittable")
	}
	if len(status.Violations) != 1 {
		t.Fatalf("violations = %v, want one", status.Violations)
	}
	if !strings.Contains(status.Text, "未コミットの変更") {
		t.Fatalf("text = %q, want Japanese status", status.Text)
	}
}

func TestDeckImportHandler(t *testing.T) {
	svc := newTestService(t)
	r := render.New("en-US")
	content := `name: Lightning Box
regulation: Expanded
cards:
  - name: Pikachu ex
    category: pokemon
    count: 2
  - name: Basic Lightning Energy
    category: energy
    count: 12
`
	_, deck, err := DeckImportHandler(svc, r)(context.Background(), nil, DeckImportInput{Content: content})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if deck.Name != "Lightning Box" || deck.Regulation != "expanded" || deck.Total != 14 {
		t.Fatalf("deck = %+v", deck)
	}

	if _, _, err := DeckImportHandler(svc, r)(context.Background(), nil, DeckImportInput{Content: "cards: [{name: X, category: pokemon, count: 0}]"}); err == nil || !strings.Contains(err.Error(), "INVALID_IMPORT") {
		t.Fatalf("error = %v, want INVALID_IMPORT", err)
	}
	if _, _, err := DeckImportHandler(svc, r)(context.Background(), nil, DeckImportInput{}); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestParseVersionsURI(t *testing.T) {
	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{uri: "deck://abc/versions", want: "abc"},
		{uri: "deck://a%20b/versions", want: "a b"},
		{uri: "deck://abc", wantErr: true},
		{uri: "deck:///versions", wantErr: true},
		{uri: "deck://abc/cards", wantErr: true},
		{uri: "campaign://abc/versions", wantErr: true},
	}
	for _, tc := range tests {
		got, err := parseVersionsURI(tc.uri)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseVersionsURI(%q) expected error", tc.uri)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseVersionsURI(%q): %v", tc.uri, err)
		}
		if got != tc.want {
			t.Fatalf("parseVersionsURI(%q) = %q, want %q", tc.uri, got, tc.want)
		}
	}
}
