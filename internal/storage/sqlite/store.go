// Package sqlite provides a SQLite-backed deck and version store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/louisbranch/deckledger/internal/deck/card"
	"github.com/louisbranch/deckledger/internal/deck/diff"
	"github.com/louisbranch/deckledger/internal/deck/history"
	"github.com/louisbranch/deckledger/internal/platform/id"
	sqlitemigrate "github.com/louisbranch/deckledger/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/deckledger/internal/storage"
	"github.com/louisbranch/deckledger/internal/storage/integrity"
	"github.com/louisbranch/deckledger/internal/storage/sqlite/migrations"
)

const versionColumns = `id, deck_id, seq, message, diff_json, created_at, version_hash, prev_hash, chain_hash`

// Store persists decks and their version logs in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite deck store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateDeck inserts one deck record.
func (s *Store) CreateDeck(ctx context.Context, deck storage.Deck) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	deck, cardsJSON, err := prepareDeck(deck)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO decks (id, name, regulation, memo, cards_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		deck.ID,
		deck.Name,
		deck.Regulation,
		deck.Memo,
		cardsJSON,
		toMillis(deck.CreatedAt),
		toMillis(deck.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create deck: %w", err)
	}
	return nil
}

// GetDeck returns one deck by ID.
func (s *Store) GetDeck(ctx context.Context, deckID string) (storage.Deck, error) {
	if err := ctx.Err(); err != nil {
		return storage.Deck{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Deck{}, fmt.Errorf("storage is not configured")
	}
	deckID = strings.TrimSpace(deckID)
	if deckID == "" {
		return storage.Deck{}, fmt.Errorf("deck id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, regulation, memo, cards_json, created_at, updated_at
		   FROM decks
		  WHERE id = ?`,
		deckID,
	)
	deck, err := scanDeck(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Deck{}, storage.ErrNotFound
		}
		return storage.Deck{}, fmt.Errorf("get deck: %w", err)
	}
	return deck, nil
}

// PutDeck replaces the mutable fields of an existing deck.
func (s *Store) PutDeck(ctx context.Context, deck storage.Deck) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	deck, cardsJSON, err := prepareDeck(deck)
	if err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE decks
		    SET name = ?, regulation = ?, memo = ?, cards_json = ?, updated_at = ?
		  WHERE id = ?`,
		deck.Name,
		deck.Regulation,
		deck.Memo,
		cardsJSON,
		toMillis(deck.UpdatedAt),
		deck.ID,
	)
	if err != nil {
		return fmt.Errorf("put deck: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("put deck: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListDecks returns every deck ordered by name, then ID.
func (s *Store) ListDecks(ctx context.Context) ([]storage.Deck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, name, regulation, memo, cards_json, created_at, updated_at
		   FROM decks
		  ORDER BY name ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	defer rows.Close()

	var decks []storage.Deck
	for rows.Next() {
		deck, err := scanDeck(rows)
		if err != nil {
			return nil, fmt.Errorf("list decks: %w", err)
		}
		decks = append(decks, deck)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	return decks, nil
}

// AppendVersion seals v into the deck's hash chain and inserts it. The
// sequence check and insert share one transaction.
func (s *Store) AppendVersion(ctx context.Context, v history.Version) (history.Version, error) {
	if err := ctx.Err(); err != nil {
		return history.Version{}, err
	}
	if s == nil || s.sqlDB == nil {
		return history.Version{}, fmt.Errorf("storage is not configured")
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

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return history.Version{}, fmt.Errorf("begin append version: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM decks WHERE id = ?`, v.DeckID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return history.Version{}, storage.ErrNotFound
		}
		return history.Version{}, fmt.Errorf("check deck: %w", err)
	}

	latest := 0
	prevChain := ""
	err = tx.QueryRowContext(
		ctx,
		`SELECT seq, chain_hash FROM versions WHERE deck_id = ? ORDER BY seq DESC LIMIT 1`,
		v.DeckID,
	).Scan(&latest, &prevChain)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return history.Version{}, fmt.Errorf("load latest version: %w", err)
	}
	if v.Seq != latest+1 {
		return history.Version{}, storage.ErrVersionConflict
	}

	sealed, err := integrity.Seal(v, prevChain)
	if err != nil {
		return history.Version{}, fmt.Errorf("seal version: %w", err)
	}
	diffJSON, err := json.Marshal(sealed.Diff)
	if err != nil {
		return history.Version{}, fmt.Errorf("marshal version diff: %w", err)
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO versions (`+versionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sealed.ID,
		sealed.DeckID,
		sealed.Seq,
		sealed.Message,
		string(diffJSON),
		toMillis(sealed.CreatedAt),
		sealed.Hash,
		sealed.PrevHash,
		sealed.ChainHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return history.Version{}, storage.ErrVersionConflict
		}
		return history.Version{}, fmt.Errorf("insert version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return history.Version{}, fmt.Errorf("commit append version: %w", err)
	}
	return sealed, nil
}

// ListVersions returns the deck's whole log in ascending order.
func (s *Store) ListVersions(ctx context.Context, deckID string) (history.Log, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	deckID = strings.TrimSpace(deckID)
	if err := s.requireDeck(ctx, deckID); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+versionColumns+` FROM versions WHERE deck_id = ? ORDER BY seq ASC`,
		deckID,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return scanVersions(rows)
}

// QueryVersions returns one filtered, ordered page of the deck's log.
func (s *Store) QueryVersions(ctx context.Context, deckID string, query storage.VersionQuery) (storage.VersionPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.VersionPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.VersionPage{}, fmt.Errorf("storage is not configured")
	}
	plan, err := storage.PlanVersionQuery(query)
	if err != nil {
		return storage.VersionPage{}, err
	}
	deckID = strings.TrimSpace(deckID)
	if err := s.requireDeck(ctx, deckID); err != nil {
		return storage.VersionPage{}, err
	}

	where := "deck_id = ?"
	params := []any{deckID}
	if !plan.Condition.Empty() {
		where += " AND " + plan.Condition.Clause
		params = append(params, plan.Condition.Params...)
	}

	var page storage.VersionPage
	if err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM versions WHERE `+where,
		params...,
	).Scan(&page.TotalCount); err != nil {
		return storage.VersionPage{}, fmt.Errorf("count versions: %w", err)
	}

	order := "ASC"
	if plan.Descending {
		order = "DESC"
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+versionColumns+` FROM versions WHERE `+where+` ORDER BY seq `+order+` LIMIT ? OFFSET ?`,
		append(params, plan.PageSize, plan.Offset)...,
	)
	if err != nil {
		return storage.VersionPage{}, fmt.Errorf("query versions: %w", err)
	}
	page.Versions, err = scanVersions(rows)
	if err != nil {
		return storage.VersionPage{}, err
	}
	page.NextPageToken = plan.NextPageToken(len(page.Versions), page.TotalCount)
	return page, nil
}

// LatestSeq returns the deck's highest sequence number, or 0.
func (s *Store) LatestSeq(ctx context.Context, deckID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	deckID = strings.TrimSpace(deckID)
	if err := s.requireDeck(ctx, deckID); err != nil {
		return 0, err
	}
	var latest int
	if err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM versions WHERE deck_id = ?`,
		deckID,
	).Scan(&latest); err != nil {
		return 0, fmt.Errorf("latest version: %w", err)
	}
	return latest, nil
}

func (s *Store) requireDeck(ctx context.Context, deckID string) error {
	if deckID == "" {
		return fmt.Errorf("deck id is required")
	}
	var exists int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM decks WHERE id = ?`, deckID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check deck: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeck(row rowScanner) (storage.Deck, error) {
	var deck storage.Deck
	var cardsJSON string
	var createdAt int64
	var updatedAt int64
	if err := row.Scan(
		&deck.ID,
		&deck.Name,
		&deck.Regulation,
		&deck.Memo,
		&cardsJSON,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.Deck{}, err
	}
	var current card.Snapshot
	if err := json.Unmarshal([]byte(cardsJSON), &current); err != nil {
		return storage.Deck{}, fmt.Errorf("decode cards deck_id=%s: %w", deck.ID, err)
	}
	deck.Current = current
	deck.CreatedAt = fromMillis(createdAt)
	deck.UpdatedAt = fromMillis(updatedAt)
	return deck, nil
}

func scanVersions(rows *sql.Rows) (history.Log, error) {
	defer rows.Close()

	var log history.Log
	for rows.Next() {
		var v history.Version
		var diffJSON string
		var createdAt int64
		if err := rows.Scan(
			&v.ID,
			&v.DeckID,
			&v.Seq,
			&v.Message,
			&diffJSON,
			&createdAt,
			&v.Hash,
			&v.PrevHash,
			&v.ChainHash,
		); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		if err := json.Unmarshal([]byte(diffJSON), &v.Diff); err != nil {
			return nil, fmt.Errorf("decode diff deck_id=%s seq=%d: %w", v.DeckID, v.Seq, err)
		}
		if err := diff.Validate(v.Diff); err != nil {
			return nil, fmt.Errorf("invalid stored diff deck_id=%s seq=%d: %w", v.DeckID, v.Seq, err)
		}
		v.CreatedAt = fromMillis(createdAt)
		log = append(log, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan versions: %w", err)
	}
	return log, nil
}

func prepareDeck(deck storage.Deck) (storage.Deck, string, error) {
	deck.ID = strings.TrimSpace(deck.ID)
	if deck.ID == "" {
		return storage.Deck{}, "", fmt.Errorf("deck id is required")
	}
	createdAt := deck.CreatedAt.UTC()
	updatedAt := deck.UpdatedAt.UTC()
	if createdAt.IsZero() && updatedAt.IsZero() {
		createdAt = time.Now().UTC()
		updatedAt = createdAt
	} else {
		if createdAt.IsZero() {
			createdAt = updatedAt
		}
		if updatedAt.IsZero() {
			updatedAt = createdAt
		}
	}
	deck.CreatedAt = createdAt
	deck.UpdatedAt = updatedAt

	cardsJSON, err := json.Marshal(deck.Current)
	if err != nil {
		return storage.Deck{}, "", fmt.Errorf("marshal deck cards: %w", err)
	}
	return deck, string(cardsJSON), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)
