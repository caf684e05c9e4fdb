// Package storagetest provides a conformance suite that every storage.Store
// implementation runs from its own tests.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/louisbranch/deckledger/internal/deck/card"
	"github.com/louisbranch/deckledger/internal/deck/diff"
	"github.com/louisbranch/deckledger/internal/deck/history"
	"github.com/louisbranch/deckledger/internal/storage"
	"github.com/louisbranch/deckledger/internal/storage/integrity"
)

// OpenFunc returns a fresh, empty store. The suite closes it.
type OpenFunc func(t *testing.T) storage.Store

var baseTime = time.Date(2026, time.April, 5, 9, 30, 0, 0, time.UTC)

// RunStoreConformance exercises deck CRUD, version appends and version
// queries against stores produced by open.
func RunStoreConformance(t *testing.T, open OpenFunc) {
	t.Helper()

	cases := []struct {
		name string
		run  func(t *testing.T, store storage.Store)
	}{
		{"deck round trip", testDeckRoundTrip},
		{"duplicate deck", testDuplicateDeck},
		{"missing deck", testMissingDeck},
		{"list decks", testListDecks},
		{"append and list versions", testAppendAndListVersions},
		{"append conflicts", testAppendConflicts},
		{"append to missing deck", testAppendMissingDeck},
		{"query versions", testQueryVersions},
		{"query pagination", testQueryPagination},
		{"query rejects invalid input", testQueryInvalid},
		{"cancelled context", testCancelledContext},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := open(t)
			t.Cleanup(func() { _ = store.Close() })
			tc.run(t, store)
		})
	}
}

func pokemon(name string, count int) card.Card {
	return card.Card{Name: name, Category: card.CategoryPokemon, Count: count}
}

func ref(name string) diff.Ref {
	return diff.Ref{Name: name, Category: card.CategoryPokemon}
}

func seedDeck(t *testing.T, store storage.Store, deckID string) storage.Deck {
	t.Helper()
	deck := storage.Deck{
		ID:         deckID,
		Name:       "Deck " + deckID,
		Regulation: "standard",
		Current:    card.NewSnapshot(pokemon("Pikachu", 2)),
		CreatedAt:  baseTime,
		UpdatedAt:  baseTime,
	}
	if err := store.CreateDeck(context.Background(), deck); err != nil {
		t.Fatalf("create deck: %v", err)
	}
	return deck
}

// seedVersions appends n versions that each add one copy of Pikachu and
// tag odd sequence numbers with Eevee.
func seedVersions(t *testing.T, store storage.Store, deckID string, n int) history.Log {
	t.Helper()
	var log history.Log
	for seq := 1; seq <= n; seq++ {
		d := diff.Diff{diff.Added{Ref: ref("Pikachu"), After: 1}}
		if seq > 1 {
			d = diff.Diff{diff.Changed{Ref: ref("Pikachu"), Before: seq - 1, After: seq}}
		}
		if seq%2 == 1 {
			d = append(d, diff.Added{Ref: ref(fmt.Sprintf("Eevee %d", seq)), After: 1})
		}
		v, err := store.AppendVersion(context.Background(), history.Version{
			DeckID:    deckID,
			Seq:       seq,
			Message:   fmt.Sprintf("commit %d", seq),
			Diff:      d,
			CreatedAt: baseTime.Add(time.Duration(seq) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append version %d: %v", seq, err)
		}
		log = append(log, v)
	}
	return log
}

func testDeckRoundTrip(t *testing.T, store storage.Store) {
	ctx := context.Background()
	want := seedDeck(t, store, "deck-1")

	got, err := store.GetDeck(ctx, "deck-1")
	if err != nil {
		t.Fatalf("get deck: %v", err)
	}
	if got.Name != want.Name || got.Regulation != want.Regulation {
		t.Fatalf("deck = %+v, want %+v", got, want)
	}
	if !got.Current.Equal(want.Current) {
		t.Fatalf("current = %v, want %v", got.Current.Counts(), want.Current.Counts())
	}
	if !got.CreatedAt.Equal(baseTime) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, baseTime)
	}

	updated := got
	updated.Memo = "tuned for locals"
	updated.Current = card.AddCard(got.Current, pokemon("Raichu", 1))
	updated.UpdatedAt = baseTime.Add(time.Hour)
	if err := store.PutDeck(ctx, updated); err != nil {
		t.Fatalf("put deck: %v", err)
	}
	got, err = store.GetDeck(ctx, "deck-1")
	if err != nil {
		t.Fatalf("get updated deck: %v", err)
	}
	if got.Memo != "tuned for locals" || got.Current.CountOf("Raichu") != 1 {
		t.Fatalf("updated deck = %+v", got)
	}
	if !got.UpdatedAt.Equal(baseTime.Add(time.Hour)) {
		t.Fatalf("updated_at = %v", got.UpdatedAt)
	}
	if !got.CreatedAt.Equal(baseTime) {
		t.Fatalf("created_at changed to %v", got.CreatedAt)
	}
}

func testDuplicateDeck(t *testing.T, store storage.Store) {
	deck := seedDeck(t, store, "dup")
	err := store.CreateDeck(context.Background(), deck)
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate create error = %v, want %v", err, storage.ErrAlreadyExists)
	}
}

func testMissingDeck(t *testing.T, store storage.Store) {
	ctx := context.Background()
	if _, err := store.GetDeck(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get missing deck error = %v", err)
	}
	if err := store.PutDeck(ctx, storage.Deck{ID: "nope", Name: "x"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("put missing deck error = %v", err)
	}
	if _, err := store.ListVersions(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("list versions of missing deck error = %v", err)
	}
	if _, err := store.LatestSeq(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("latest seq of missing deck error = %v", err)
	}
	if err := store.CreateDeck(ctx, storage.Deck{ID: "  "}); err == nil {
		t.Fatal("expected blank deck id error")
	}
}

func testListDecks(t *testing.T, store storage.Store) {
	ctx := context.Background()
	for _, deck := range []storage.Deck{
		{ID: "b", Name: "Lightning"},
		{ID: "a", Name: "Lightning"},
		{ID: "c", Name: "Fire"},
	} {
		if err := store.CreateDeck(ctx, deck); err != nil {
			t.Fatalf("create deck %s: %v", deck.ID, err)
		}
	}
	decks, err := store.ListDecks(ctx)
	if err != nil {
		t.Fatalf("list decks: %v", err)
	}
	var ids []string
	for _, deck := range decks {
		ids = append(ids, deck.ID)
	}
	if fmt.Sprint(ids) != "[c a b]" {
		t.Fatalf("deck order = %v, want [c a b]", ids)
	}
}

func testAppendAndListVersions(t *testing.T, store storage.Store) {
	ctx := context.Background()
	seedDeck(t, store, "deck-v")

	latest, err := store.LatestSeq(ctx, "deck-v")
	if err != nil {
		t.Fatalf("latest seq: %v", err)
	}
	if latest != 0 {
		t.Fatalf("latest seq of empty log = %d", latest)
	}

	appended := seedVersions(t, store, "deck-v", 3)
	for _, v := range appended {
		if v.ID == "" || v.Hash == "" || v.ChainHash == "" {
			t.Fatalf("version %d was not sealed: %+v", v.Seq, v)
		}
	}
	if appended[1].PrevHash != appended[0].ChainHash {
		t.Fatal("version 2 does not link to version 1")
	}

	log, err := store.ListVersions(ctx, "deck-v")
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(log) != 3 {
		t.Fatalf("versions = %d, want 3", len(log))
	}
	for i, v := range log {
		if v.Seq != i+1 {
			t.Fatalf("version %d has seq %d", i, v.Seq)
		}
		if !v.CreatedAt.Equal(appended[i].CreatedAt) {
			t.Fatalf("created_at = %v, want %v", v.CreatedAt, appended[i].CreatedAt)
		}
	}
	if err := integrity.VerifyChain(log); err != nil {
		t.Fatalf("verify stored chain: %v", err)
	}
	if got := history.Reconstruct(log, 3).CountOf("Pikachu"); got != 3 {
		t.Fatalf("reconstructed Pikachu = %d, want 3", got)
	}

	latest, err = store.LatestSeq(ctx, "deck-v")
	if err != nil {
		t.Fatalf("latest seq: %v", err)
	}
	if latest != 3 {
		t.Fatalf("latest seq = %d, want 3", latest)
	}
}

func testAppendConflicts(t *testing.T, store storage.Store) {
	ctx := context.Background()
	seedDeck(t, store, "deck-c")
	seedVersions(t, store, "deck-c", 1)

	for _, seq := range []int{0, 1, 3} {
		_, err := store.AppendVersion(ctx, history.Version{
			DeckID:  "deck-c",
			Seq:     seq,
			Message: "conflict",
			Diff:    diff.Diff{diff.Removed{Ref: ref("Pikachu"), Before: 1}},
		})
		if !errors.Is(err, storage.ErrVersionConflict) {
			t.Fatalf("append seq %d error = %v, want %v", seq, err, storage.ErrVersionConflict)
		}
	}

	_, err := store.AppendVersion(ctx, history.Version{
		DeckID:  "deck-c",
		Seq:     2,
		Message: "bad diff",
		Diff:    diff.Diff{diff.Changed{Ref: ref("Pikachu"), Before: 1, After: 1}},
	})
	if err == nil || errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("expected invalid diff error, got %v", err)
	}
}

func testAppendMissingDeck(t *testing.T, store storage.Store) {
	_, err := store.AppendVersion(context.Background(), history.Version{
		DeckID:  "ghost",
		Seq:     1,
		Message: "first",
		Diff:    diff.Diff{diff.Added{Ref: ref("Pikachu"), After: 1}},
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("append to missing deck error = %v, want %v", err, storage.ErrNotFound)
	}
}

func testQueryVersions(t *testing.T, store storage.Store) {
	ctx := context.Background()
	seedDeck(t, store, "deck-q")
	seedDeck(t, store, "other")
	seedVersions(t, store, "deck-q", 5)
	seedVersions(t, store, "other", 2)

	tests := []struct {
		name  string
		query storage.VersionQuery
		seqs  []int
	}{
		{name: "default newest first", query: storage.VersionQuery{}, seqs: []int{5, 4, 3, 2, 1}},
		{name: "ascending", query: storage.VersionQuery{OrderBy: "seq"}, seqs: []int{1, 2, 3, 4, 5}},
		{name: "seq range", query: storage.VersionQuery{Filter: "seq >= 2 AND seq < 4", OrderBy: "seq"}, seqs: []int{2, 3}},
		{name: "card name", query: storage.VersionQuery{Filter: `card = "Eevee 3"`}, seqs: []int{3}},
		{name: "card contains", query: storage.VersionQuery{Filter: `card:"eevee"`, OrderBy: "seq"}, seqs: []int{1, 3, 5}},
		{name: "message", query: storage.VersionQuery{Filter: `message = "commit 4"`}, seqs: []int{4}},
		{
			name:  "created after",
			query: storage.VersionQuery{Filter: `created_at > "2026-04-05T09:33:00Z"`, OrderBy: "seq"},
			seqs:  []int{4, 5},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			page, err := store.QueryVersions(ctx, "deck-q", tc.query)
			if err != nil {
				t.Fatalf("query versions: %v", err)
			}
			if page.TotalCount != len(tc.seqs) {
				t.Fatalf("total count = %d, want %d", page.TotalCount, len(tc.seqs))
			}
			var got []int
			for _, v := range page.Versions {
				got = append(got, v.Seq)
				if v.DeckID != "deck-q" {
					t.Fatalf("version from deck %q leaked into query", v.DeckID)
				}
			}
			if fmt.Sprint(got) != fmt.Sprint(tc.seqs) {
				t.Fatalf("seqs = %v, want %v", got, tc.seqs)
			}
		})
	}
}

func testQueryPagination(t *testing.T, store storage.Store) {
	ctx := context.Background()
	seedDeck(t, store, "deck-p")
	seedVersions(t, store, "deck-p", 5)

	var got []int
	token := ""
	for range 5 {
		page, err := store.QueryVersions(ctx, "deck-p", storage.VersionQuery{
			OrderBy:   "seq",
			PageSize:  2,
			PageToken: token,
		})
		if err != nil {
			t.Fatalf("query page: %v", err)
		}
		if page.TotalCount != 5 {
			t.Fatalf("total count = %d, want 5", page.TotalCount)
		}
		for _, v := range page.Versions {
			got = append(got, v.Seq)
		}
		token = page.NextPageToken
		if token == "" {
			break
		}
	}
	if fmt.Sprint(got) != "[1 2 3 4 5]" {
		t.Fatalf("paged seqs = %v", got)
	}
}

func testQueryInvalid(t *testing.T, store storage.Store) {
	seedDeck(t, store, "deck-i")
	_, err := store.QueryVersions(context.Background(), "deck-i", storage.VersionQuery{Filter: "seq = "})
	if !errors.Is(err, storage.ErrInvalidQuery) {
		t.Fatalf("query error = %v, want %v", err, storage.ErrInvalidQuery)
	}
}

func testCancelledContext(t *testing.T, store storage.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.CreateDeck(ctx, storage.Deck{ID: "late"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("create with cancelled context error = %v", err)
	}
	if _, err := store.ListVersions(ctx, "late"); !errors.Is(err, context.Canceled) {
		t.Fatalf("list with cancelled context error = %v", err)
	}
}
