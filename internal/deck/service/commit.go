package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/louisbranch/deckledger/internal/deck/card"
	"github.com/louisbranch/deckledger/internal/deck/diff"
	"github.com/louisbranch/deckledger/internal/deck/history"
	"github.com/louisbranch/deckledger/internal/deck/rules"
	apperrors "github.com/louisbranch/deckledger/internal/platform/errors"
	"github.com/louisbranch/deckledger/internal/storage"
	"github.com/louisbranch/deckledger/internal/storage/integrity"
)

// Status is the pending state of a deck's working snapshot.
type Status struct {
	Deck Deck
	// Pending turns Committed into Current.
	Pending    diff.Diff
	HasChanges bool
	// Violations lists the deck rules Current breaks.
	Violations []*apperrors.Error
}

// CanCommit reports whether Commit would accept the working snapshot, given a
// message.
func (st Status) CanCommit() bool {
	return st.HasChanges && len(st.Violations) == 0
}

// Status compares the working snapshot against the latest version.
func (s *Service) Status(ctx context.Context, deckID string) (Status, error) {
	if err := s.ready(); err != nil {
		return Status{}, err
	}
	st, err := s.load(ctx, deckID)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Deck:       st.deck(),
		Pending:    diff.Compute(st.committed, st.record.Current),
		HasChanges: diff.Has(st.committed, st.record.Current),
		Violations: rules.Violations(rules.ValidateDeck(st.record.Current)),
	}, nil
}

// Commit records the pending difference as the next version. It requires a
// message, at least one change and a deck that passes the rules.
func (s *Service) Commit(ctx context.Context, deckID, message string) (_ history.Version, err error) {
	if err := s.ready(); err != nil {
		return history.Version{}, err
	}
	ctx, span := s.startSpan(ctx, "Commit", deckID)
	defer func() { endSpan(span, err) }()

	if err := rules.ValidateMessage(message); err != nil {
		return history.Version{}, err
	}
	message = strings.TrimSpace(message)

	unlock := s.lockDeck(deckID)
	defer unlock()

	st, err := s.load(ctx, deckID)
	if err != nil {
		return history.Version{}, err
	}
	if !diff.Has(st.committed, st.record.Current) {
		return history.Version{}, apperrors.New(apperrors.CodeNoChanges, "no changes to commit")
	}
	if err := rules.ValidateDeck(st.record.Current); err != nil {
		return history.Version{}, err
	}

	versionID, err := s.idGenerator()
	if err != nil {
		return history.Version{}, apperrors.Wrap(apperrors.CodeUnknown, "generate version id", err)
	}
	seq := history.NextSeq(st.log)
	span.SetAttributes(attribute.Int("deck.version.seq", seq))
	appended, err := s.store.AppendVersion(ctx, history.Version{
		ID:        versionID,
		DeckID:    st.record.ID,
		Seq:       seq,
		Message:   message,
		Diff:      diff.Compute(st.committed, st.record.Current),
		CreatedAt: s.now(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			return history.Version{}, apperrors.WithMetadata(apperrors.CodeVersionConflict,
				fmt.Sprintf("version %d already exists", seq),
				map[string]string{"Seq": strconv.Itoa(seq)})
		}
		return history.Version{}, storeError("append version", st.record.ID, err)
	}
	if _, err := s.save(ctx, st.record); err != nil {
		return history.Version{}, err
	}

	added, removed, changed := appended.Diff.Counts()
	s.logger.Printf("deck committed deck_id=%s seq=%d added=%d removed=%d changed=%d",
		appended.DeckID, appended.Seq, added, removed, changed)
	return appended, nil
}

// History returns one page of versions, optionally filtered with an AIP-160
// expression over seq, message, card, hash and created_at.
func (s *Service) History(ctx context.Context, deckID string, query storage.VersionQuery) (storage.VersionPage, error) {
	if err := s.ready(); err != nil {
		return storage.VersionPage{}, err
	}
	deckID = strings.TrimSpace(deckID)
	page, err := s.store.QueryVersions(ctx, deckID, query)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidQuery) {
			return storage.VersionPage{}, apperrors.Wrap(apperrors.CodeInvalidFilter, err.Error(), err)
		}
		return storage.VersionPage{}, storeError("query versions", deckID, err)
	}
	return page, nil
}

// Checkout rebuilds the snapshot at seq. Seq 0 is the empty deck.
func (s *Service) Checkout(ctx context.Context, deckID string, seq int) (_ card.Snapshot, err error) {
	if err := s.ready(); err != nil {
		return card.Snapshot{}, err
	}
	ctx, span := s.startSpan(ctx, "Checkout", deckID)
	span.SetAttributes(attribute.Int("deck.version.seq", seq))
	defer func() { endSpan(span, err) }()

	st, err := s.load(ctx, deckID)
	if err != nil {
		return card.Snapshot{}, err
	}
	if err := requireSeq(st.log, seq); err != nil {
		return card.Snapshot{}, err
	}
	return history.Reconstruct(st.log, seq), nil
}

// Compare returns the difference that turns the snapshot at from into the
// snapshot at to. Either may be 0, and from may exceed to.
func (s *Service) Compare(ctx context.Context, deckID string, from, to int) (_ diff.Diff, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx, span := s.startSpan(ctx, "Compare", deckID)
	span.SetAttributes(
		attribute.Int("deck.version.from", from),
		attribute.Int("deck.version.to", to),
	)
	defer func() { endSpan(span, err) }()

	st, err := s.load(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if err := requireSeq(st.log, from); err != nil {
		return nil, err
	}
	if err := requireSeq(st.log, to); err != nil {
		return nil, err
	}
	return history.Accumulate(st.log, from, to), nil
}

// Verify re-derives the integrity hashes of the deck's log and checks that
// the sequence is contiguous.
func (s *Service) Verify(ctx context.Context, deckID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	st, err := s.load(ctx, deckID)
	if err != nil {
		return err
	}
	if err := history.Validate(st.log); err != nil {
		return apperrors.Wrap(apperrors.CodeHistoryCorrupted, err.Error(), err)
	}
	if err := integrity.VerifyChain(st.log); err != nil {
		s.logger.Printf("deck history failed verification deck_id=%s: %v", st.record.ID, err)
		return apperrors.Wrap(apperrors.CodeHistoryCorrupted, err.Error(), err)
	}
	return nil
}
