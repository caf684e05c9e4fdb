package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/deckledger/internal/deck/card"
	"github.com/louisbranch/deckledger/internal/deck/history"
	"github.com/louisbranch/deckledger/internal/deck/rules"
	apperrors "github.com/louisbranch/deckledger/internal/platform/errors"
)

// AddCardInput adds copies of a card to the working snapshot.
type AddCardInput struct {
	Name     string
	Category card.Category
	// Count defaults to 1.
	Count int
	// CardID and ImageURL are kept only when the card is new to the deck.
	CardID   string
	ImageURL string
}

// AddCard adds copies of a card, enforcing the size and copy limits.
func (s *Service) AddCard(ctx context.Context, deckID string, in AddCardInput) (Deck, error) {
	if err := s.ready(); err != nil {
		return Deck{}, err
	}
	name := strings.TrimSpace(in.Name)
	count := in.Count
	if count == 0 {
		count = 1
	}
	if !in.Category.IsValid() {
		return Deck{}, invalidCategory(string(in.Category))
	}

	return s.edit(ctx, deckID, func(current card.Snapshot) (card.Snapshot, error) {
		if err := rules.ValidateAddition(current, name, count); err != nil {
			return card.Snapshot{}, err
		}
		if existing, ok := current.Get(name); ok {
			existing.Count += count
			return current.Put(existing), nil
		}
		return current.Put(card.Card{
			Name:     name,
			ID:       strings.TrimSpace(in.CardID),
			Category: in.Category,
			Count:    count,
			ImageURL: strings.TrimSpace(in.ImageURL),
		}), nil
	})
}

// SetCount sets the copies of a card already in the deck. A count of zero or
// less removes it. Increases are checked against the limits.
func (s *Service) SetCount(ctx context.Context, deckID, name string, count int) (Deck, error) {
	if err := s.ready(); err != nil {
		return Deck{}, err
	}
	name = strings.TrimSpace(name)
	return s.edit(ctx, deckID, func(current card.Snapshot) (card.Snapshot, error) {
		existing, ok := current.Get(name)
		if !ok {
			return card.Snapshot{}, cardNotInDeck(name)
		}
		if count > existing.Count {
			if err := rules.ValidateAddition(current, name, count-existing.Count); err != nil {
				return card.Snapshot{}, err
			}
		}
		return card.UpdateCount(current, name, count), nil
	})
}

// RemoveCard drops a card from the working snapshot.
func (s *Service) RemoveCard(ctx context.Context, deckID, name string) (Deck, error) {
	if err := s.ready(); err != nil {
		return Deck{}, err
	}
	name = strings.TrimSpace(name)
	return s.edit(ctx, deckID, func(current card.Snapshot) (card.Snapshot, error) {
		if !current.Has(name) {
			return card.Snapshot{}, cardNotInDeck(name)
		}
		return card.RemoveCard(current, name), nil
	})
}

// Revert replaces the working snapshot with the snapshot at seq. The change
// is left uncommitted.
func (s *Service) Revert(ctx context.Context, deckID string, seq int) (Deck, error) {
	if err := s.ready(); err != nil {
		return Deck{}, err
	}
	var target int
	deck, err := s.editState(ctx, deckID, func(st state) (card.Snapshot, error) {
		if err := requireSeq(st.log, seq); err != nil {
			return card.Snapshot{}, err
		}
		target = seq
		return history.Reconstruct(st.log, seq), nil
	})
	if err == nil {
		s.logger.Printf("deck reverted deck_id=%s seq=%d", deck.ID, target)
	}
	return deck, err
}

// Discard drops uncommitted changes.
func (s *Service) Discard(ctx context.Context, deckID string) (Deck, error) {
	if err := s.ready(); err != nil {
		return Deck{}, err
	}
	return s.editState(ctx, deckID, func(st state) (card.Snapshot, error) {
		return st.committed, nil
	})
}

func (s *Service) edit(ctx context.Context, deckID string, change func(card.Snapshot) (card.Snapshot, error)) (Deck, error) {
	return s.editState(ctx, deckID, func(st state) (card.Snapshot, error) {
		return change(st.record.Current)
	})
}

// editState replaces the working snapshot under the deck lock.
func (s *Service) editState(ctx context.Context, deckID string, change func(state) (card.Snapshot, error)) (Deck, error) {
	unlock := s.lockDeck(deckID)
	defer unlock()

	st, err := s.load(ctx, deckID)
	if err != nil {
		return Deck{}, err
	}
	next, err := change(st)
	if err != nil {
		return Deck{}, err
	}
	st.record.Current = next
	if st.record, err = s.save(ctx, st.record); err != nil {
		return Deck{}, err
	}
	return st.deck(), nil
}

// requireSeq accepts 0 (the empty deck before any commit) through the latest
// sequence number.
func requireSeq(log history.Log, seq int) error {
	if seq == 0 || history.HasVersion(log, seq) {
		return nil
	}
	return versionNotFound(seq)
}

func cardNotInDeck(name string) error {
	return apperrors.WithMetadata(apperrors.CodeNotFound, fmt.Sprintf("card %q is not in the deck", name),
		map[string]string{"Card": name})
}
