// Package service is the deck aggregate: it edits a deck's working snapshot,
// commits differences to the version log and answers history queries.
//
// Every mutation of one deck runs under that deck's lock, so sequence numbers
// are assigned without gaps or duplicates even with concurrent callers.
// Errors are *errors.Error values from the platform errors package, or a
// join of them for rule violations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/deckledger/internal/deck/card"
	"github.com/louisbranch/deckledger/internal/deck/history"
	apperrors "github.com/louisbranch/deckledger/internal/platform/errors"
	"github.com/louisbranch/deckledger/internal/platform/id"
	platformotel "github.com/louisbranch/deckledger/internal/platform/otel"
	"github.com/louisbranch/deckledger/internal/storage"
)

// Service exposes deck operations over a storage.Store.
type Service struct {
	store       storage.Store
	clock       func() time.Time
	idGenerator func() (string, error)
	tracer      trace.Tracer
	logger      *log.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewService creates a deck service backed by store.
func NewService(store storage.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		store:       store,
		clock:       time.Now,
		idGenerator: id.NewID,
		tracer:      platformotel.Tracer(),
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
	}
}

func (s *Service) now() time.Time {
	if s.clock != nil {
		return s.clock().UTC()
	}
	return time.Now().UTC()
}

// lockDeck serializes mutations of one deck. Call the returned func to
// release.
func (s *Service) lockDeck(deckID string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[deckID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[deckID] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (s *Service) startSpan(ctx context.Context, name, deckID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "deck."+name, trace.WithAttributes(attribute.String("deck.id", deckID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) ready() error {
	if s == nil || s.store == nil {
		return apperrors.New(apperrors.CodeUnknown, "deck store is not configured")
	}
	return nil
}

// state is a deck record with its log and the snapshot at the latest version.
type state struct {
	record    storage.Deck
	log       history.Log
	committed card.Snapshot
}

func (st state) deck() Deck {
	return Deck{
		ID:           st.record.ID,
		Name:         st.record.Name,
		Regulation:   Regulation(st.record.Regulation),
		Memo:         st.record.Memo,
		Current:      st.record.Current,
		Committed:    st.committed,
		VersionCount: history.LatestSeq(st.log),
		CreatedAt:    st.record.CreatedAt,
		UpdatedAt:    st.record.UpdatedAt,
	}
}

func (s *Service) load(ctx context.Context, deckID string) (state, error) {
	deckID = strings.TrimSpace(deckID)
	if deckID == "" {
		return state{}, deckNotFound(deckID)
	}
	record, err := s.store.GetDeck(ctx, deckID)
	if err != nil {
		return state{}, storeError("get deck", deckID, err)
	}
	versions, err := s.store.ListVersions(ctx, deckID)
	if err != nil {
		return state{}, storeError("list versions", deckID, err)
	}
	return state{
		record:    record,
		log:       versions,
		committed: history.Reconstruct(versions, history.LatestSeq(versions)),
	}, nil
}

func (s *Service) save(ctx context.Context, record storage.Deck) (storage.Deck, error) {
	record.UpdatedAt = s.now()
	if err := s.store.PutDeck(ctx, record); err != nil {
		return storage.Deck{}, storeError("put deck", record.ID, err)
	}
	return record, nil
}

func deckNotFound(deckID string) error {
	return apperrors.WithMetadata(apperrors.CodeDeckNotFound, fmt.Sprintf("deck %q not found", deckID),
		map[string]string{"DeckID": deckID})
}

func versionNotFound(seq int) error {
	return apperrors.WithMetadata(apperrors.CodeVersionNotFound, fmt.Sprintf("version %d not found", seq),
		map[string]string{"Seq": strconv.Itoa(seq)})
}

func storeError(op, deckID string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return deckNotFound(deckID)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apperrors.Wrap(apperrors.CodeUnknown, fmt.Sprintf("%s deck_id=%s: %v", op, deckID, err), err)
	}
}
