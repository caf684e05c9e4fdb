package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/deckledger/internal/deck/card"
	"github.com/louisbranch/deckledger/internal/deck/decklist"
	"github.com/louisbranch/deckledger/internal/deck/rules"
	apperrors "github.com/louisbranch/deckledger/internal/platform/errors"
	"github.com/louisbranch/deckledger/internal/storage"
)

// Regulation is the format a deck is built for.
type Regulation string

const (
	RegulationStandard  Regulation = "standard"
	RegulationExpanded  Regulation = "expanded"
	RegulationUnlimited Regulation = "unlimited"
)

// ParseRegulation normalizes a regulation label. Blank means standard.
func ParseRegulation(value string) (Regulation, error) {
	normalized := Regulation(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case "":
		return RegulationStandard, nil
	case RegulationStandard, RegulationExpanded, RegulationUnlimited:
		return normalized, nil
	default:
		return "", apperrors.WithMetadata(apperrors.CodeDeckInvalidRegulation,
			fmt.Sprintf("unknown regulation %q", value),
			map[string]string{"Regulation": value})
	}
}

// Deck is a deck with its working and committed snapshots.
type Deck struct {
	ID         string
	Name       string
	Regulation Regulation
	Memo       string
	// Current is the working snapshot, possibly uncommitted.
	Current card.Snapshot
	// Committed is the snapshot at the latest version.
	Committed card.Snapshot
	// VersionCount is the latest sequence number.
	VersionCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateInput describes a new deck.
type CreateInput struct {
	Name         string
	Regulation   string
	Memo         string
	InitialCards card.Snapshot
}

// UpdateInput changes deck metadata. Nil fields are left alone.
type UpdateInput struct {
	Name       *string
	Regulation *string
	Memo       *string
}

// Create stores a new deck with no versions. Initial cards become the
// working snapshot and show up as pending changes.
func (s *Service) Create(ctx context.Context, in CreateInput) (Deck, error) {
	if err := s.ready(); err != nil {
		return Deck{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Deck{}, apperrors.New(apperrors.CodeDeckNameEmpty, "deck name is required")
	}
	regulation, err := ParseRegulation(in.Regulation)
	if err != nil {
		return Deck{}, err
	}
	for _, c := range in.InitialCards.Cards() {
		if err := validateCard(c); err != nil {
			return Deck{}, err
		}
	}

	deckID, err := s.idGenerator()
	if err != nil {
		return Deck{}, apperrors.Wrap(apperrors.CodeUnknown, "generate deck id", err)
	}
	now := s.now()
	record := storage.Deck{
		ID:         deckID,
		Name:       name,
		Regulation: string(regulation),
		Memo:       strings.TrimSpace(in.Memo),
		Current:    in.InitialCards,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateDeck(ctx, record); err != nil {
		return Deck{}, storeError("create deck", deckID, err)
	}
	s.logger.Printf("deck created deck_id=%s cards=%d", deckID, record.Current.Total())
	return state{record: record}.deck(), nil
}

// Get returns one deck.
func (s *Service) Get(ctx context.Context, deckID string) (Deck, error) {
	if err := s.ready(); err != nil {
		return Deck{}, err
	}
	st, err := s.load(ctx, deckID)
	if err != nil {
		return Deck{}, err
	}
	return st.deck(), nil
}

// List returns every deck ordered by name.
func (s *Service) List(ctx context.Context) ([]Deck, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	records, err := s.store.ListDecks(ctx)
	if err != nil {
		return nil, storeError("list decks", "", err)
	}
	decks := make([]Deck, 0, len(records))
	for _, record := range records {
		st, err := s.load(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		decks = append(decks, st.deck())
	}
	return decks, nil
}

// UpdateDeck changes name, regulation or memo.
func (s *Service) UpdateDeck(ctx context.Context, deckID string, in UpdateInput) (Deck, error) {
	if err := s.ready(); err != nil {
		return Deck{}, err
	}
	unlock := s.lockDeck(deckID)
	defer unlock()

	st, err := s.load(ctx, deckID)
	if err != nil {
		return Deck{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Deck{}, apperrors.New(apperrors.CodeDeckNameEmpty, "deck name is required")
		}
		st.record.Name = name
	}
	if in.Regulation != nil {
		regulation, err := ParseRegulation(*in.Regulation)
		if err != nil {
			return Deck{}, err
		}
		st.record.Regulation = string(regulation)
	}
	if in.Memo != nil {
		st.record.Memo = strings.TrimSpace(*in.Memo)
	}
	if st.record, err = s.save(ctx, st.record); err != nil {
		return Deck{}, err
	}
	return st.deck(), nil
}

// Import creates a deck from a YAML deck list.
func (s *Service) Import(ctx context.Context, data []byte) (Deck, error) {
	list, err := decklist.Parse(data)
	if err != nil {
		return Deck{}, apperrors.Wrap(apperrors.CodeInvalidImport, fmt.Sprintf("import deck list: %v", err), err)
	}
	return s.Create(ctx, CreateInput{
		Name:         list.Name,
		Regulation:   list.Regulation,
		Memo:         list.Memo,
		InitialCards: list.Cards,
	})
}

// Export writes the deck's working snapshot as a YAML deck list.
func (s *Service) Export(ctx context.Context, deckID string) ([]byte, error) {
	deck, err := s.Get(ctx, deckID)
	if err != nil {
		return nil, err
	}
	out, err := decklist.Encode(decklist.List{
		Name:       deck.Name,
		Regulation: string(deck.Regulation),
		Memo:       deck.Memo,
		Cards:      deck.Current,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnknown, "export deck list", err)
	}
	return out, nil
}

func validateCard(c card.Card) error {
	if err := rules.ValidateCardName(c.Name); err != nil {
		return err
	}
	if err := rules.ValidateCount(c.Count); err != nil {
		return err
	}
	if !c.Category.IsValid() {
		return invalidCategory(string(c.Category))
	}
	return nil
}

func invalidCategory(value string) error {
	return apperrors.WithMetadata(apperrors.CodeCardInvalidCategory,
		fmt.Sprintf("unknown card category %q", value),
		map[string]string{"Category": value})
}
