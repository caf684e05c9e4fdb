package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/deckledger/internal/deck/card"
	"github.com/louisbranch/deckledger/internal/deck/history"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a deck with the same ID already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrVersionConflict indicates an appended version's sequence number is
	// not the next one in the deck's log.
	ErrVersionConflict = errors.New("version sequence conflict")
	// ErrInvalidQuery indicates a malformed filter, order or page token.
	ErrInvalidQuery = errors.New("invalid version query")
)

// Deck stores one deck and its uncommitted working snapshot.
type Deck struct {
	ID         string
	Name       string
	Regulation string
	Memo       string
	Current    card.Snapshot
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// VersionQuery selects a page of a deck's versions.
type VersionQuery struct {
	// Filter is an AIP-160 expression over seq, message, card and created_at.
	Filter string
	// OrderBy is "seq" or "seq desc" (the default).
	OrderBy string
	// PageSize is clamped to [1, 200] with a default of 50.
	PageSize int
	// PageToken continues a previous query.
	PageToken string
}

// VersionPage is one page of versions.
type VersionPage struct {
	Versions      history.Log
	NextPageToken string
	TotalCount    int
}

// DeckStore persists deck records.
type DeckStore interface {
	CreateDeck(ctx context.Context, deck Deck) error
	GetDeck(ctx context.Context, id string) (Deck, error)
	PutDeck(ctx context.Context, deck Deck) error
	ListDecks(ctx context.Context) ([]Deck, error)
}

// VersionStore persists the append-only version log of each deck.
type VersionStore interface {
	// AppendVersion stores v when v.Seq is exactly one past the deck's latest
	// sequence number and returns it with its integrity hashes set.
	AppendVersion(ctx context.Context, v history.Version) (history.Version, error)
	// ListVersions returns the whole log in ascending sequence order.
	ListVersions(ctx context.Context, deckID string) (history.Log, error)
	// QueryVersions returns one filtered, ordered page of the log.
	QueryVersions(ctx context.Context, deckID string, query VersionQuery) (VersionPage, error)
	// LatestSeq returns the highest stored sequence number, or 0.
	LatestSeq(ctx context.Context, deckID string) (int, error)
}

// Store combines deck and version persistence.
type Store interface {
	DeckStore
	VersionStore
	Close() error
}
