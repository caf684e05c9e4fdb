// Package memory provides an in-process storage implementation for tests and
// Lua scenarios.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/deckledger/internal/deck/diff"
	"github.com/louisbranch/deckledger/internal/deck/history"
	"github.com/louisbranch/deckledger/internal/platform/id"
	"github.com/louisbranch/deckledger/internal/storage"
	"github.com/louisbranch/deckledger/internal/storage/integrity"
)

// Store keeps decks and version logs in maps guarded by one lock.
type Store struct {
	mu       sync.RWMutex
	decks    map[string]storage.Deck
	versions map[string]history.Log
}

// New returns an empty store.
func New() *Store {
	return &Store{
		decks:    make(map[string]storage.Deck),
		versions: make(map[string]history.Log),
	}
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// CreateDeck inserts a deck record.
func (s *Store) CreateDeck(ctx context.Context, deck storage.Deck) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deck, err := normalizeDeck(deck)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.decks[deck.ID]; ok {
		return storage.ErrAlreadyExists
	}
	s.decks[deck.ID] = deck
	return nil
}

// GetDeck returns one deck by ID.
func (s *Store) GetDeck(ctx context.Context, deckID string) (storage.Deck, error) {
	if err := ctx.Err(); err != nil {
		return storage.Deck{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	deck, ok := s.decks[strings.TrimSpace(deckID)]
	if !ok {
		return storage.Deck{}, storage.ErrNotFound
	}
	return deck, nil
}

// PutDeck replaces an existing deck record.
func (s *Store) PutDeck(ctx context.Context, deck storage.Deck) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deck, err := normalizeDeck(deck)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.decks[deck.ID]
	if !ok {
		return storage.ErrNotFound
	}
	deck.CreatedAt = existing.CreatedAt
	s.decks[deck.ID] = deck
	return nil
}

// ListDecks returns every deck ordered by name, then ID.
func (s *Store) ListDecks(ctx context.Context) ([]storage.Deck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	decks := make([]storage.Deck, 0, len(s.decks))
	for _, deck := range s.decks {
		decks = append(decks, deck)
	}
	s.mu.RUnlock()

	sort.Slice(decks, func(i, j int) bool {
		if decks[i].Name != decks[j].Name {
			return decks[i].Name < decks[j].Name
		}
		return decks[i].ID < decks[j].ID
	})
	return decks, nil
}

// AppendVersion seals v into the deck's hash chain and appends it.
func (s *Store) AppendVersion(ctx context.Context, v history.Version) (history.Version, error) {
	if err := ctx.Err(); err != nil {
		return history.Version{}, err
	}
	v.DeckID = strings.TrimSpace(v.DeckID)
	if v.DeckID == "" {
		return history.Version{}, fmt.Errorf("deck id is required")
	}
	if err := diff.Validate(v.Diff); err != nil {
		return history.Version{}, fmt.Errorf("invalid version diff: %w", err)
	}
	if v.ID == "" {
		generated, err := id.NewID()
		if err != nil {
			return history.Version{}, fmt.Errorf("generate version id: %w", err)
		}
		v.ID = generated
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	v.CreatedAt = v.CreatedAt.UTC().Truncate(time.Millisecond)
	v.Diff = slices.Clone(v.Diff)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.decks[v.DeckID]; !ok {
		return history.Version{}, storage.ErrNotFound
	}
	log := s.versions[v.DeckID]
	if v.Seq != len(log)+1 {
		return history.Version{}, storage.ErrVersionConflict
	}
	prevChain := ""
	if len(log) > 0 {
		prevChain = log[len(log)-1].ChainHash
	}
	sealed, err := integrity.Seal(v, prevChain)
	if err != nil {
		return history.Version{}, fmt.Errorf("seal version: %w", err)
	}
	s.versions[v.DeckID] = append(log, sealed)
	return sealed, nil
}

// ListVersions returns a copy of the deck's log in ascending order.
func (s *Store) ListVersions(ctx context.Context, deckID string) (history.Log, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	deckID = strings.TrimSpace(deckID)
	if _, ok := s.decks[deckID]; !ok {
		return nil, storage.ErrNotFound
	}
	return slices.Clone(s.versions[deckID]), nil
}

// QueryVersions filters and pages the deck's log.
func (s *Store) QueryVersions(ctx context.Context, deckID string, query storage.VersionQuery) (storage.VersionPage, error) {
	plan, err := storage.PlanVersionQuery(query)
	if err != nil {
		return storage.VersionPage{}, err
	}
	log, err := s.ListVersions(ctx, deckID)
	if err != nil {
		return storage.VersionPage{}, err
	}

	matched := make(history.Log, 0, len(log))
	for _, v := range log {
		if plan.Condition.Match(v) {
			matched = append(matched, v)
		}
	}
	if plan.Descending {
		slices.Reverse(matched)
	}

	page := storage.VersionPage{TotalCount: len(matched)}
	if plan.Offset < len(matched) {
		end := min(plan.Offset+plan.PageSize, len(matched))
		page.Versions = matched[plan.Offset:end]
	}
	page.NextPageToken = plan.NextPageToken(len(page.Versions), page.TotalCount)
	return page, nil
}

// LatestSeq returns the deck's highest sequence number, or 0.
func (s *Store) LatestSeq(ctx context.Context, deckID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	deckID = strings.TrimSpace(deckID)
	if _, ok := s.decks[deckID]; !ok {
		return 0, storage.ErrNotFound
	}
	return len(s.versions[deckID]), nil
}

func normalizeDeck(deck storage.Deck) (storage.Deck, error) {
	deck.ID = strings.TrimSpace(deck.ID)
	if deck.ID == "" {
		return storage.Deck{}, fmt.Errorf("deck id is required")
	}
	deck.CreatedAt = deck.CreatedAt.UTC().Truncate(time.Millisecond)
	deck.UpdatedAt = deck.UpdatedAt.UTC().Truncate(time.Millisecond)
	if deck.CreatedAt.IsZero() {
		deck.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if deck.UpdatedAt.IsZero() {
		deck.UpdatedAt = deck.CreatedAt
	}
	return deck, nil
}

var _ storage.Store = (*Store)(nil)
