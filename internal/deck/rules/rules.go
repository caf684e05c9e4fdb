// Package rules enforces deck construction rules: the 60-card limit, the
// four-copy limit for every card except basic energy, and the required
// inputs of edits and commits.
//
// Validators return nil or an error joining one *errors.Error per violation,
// so callers can report every problem at once.
package rules

import (
	stderrors "errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/louisbranch/deckledger/internal/deck/card"
	apperrors "github.com/louisbranch/deckledger/internal/platform/errors"
)

const (
	// MaxDeckSize is the most cards a deck may hold.
	MaxDeckSize = 60
	// MaxCopies is the most copies of one name, basic energy excepted.
	MaxCopies = 4
)

var basicEnergyNames = nameSet(
	"基本草エネルギー",
	"基本炎エネルギー",
	"基本水エネルギー",
	"基本雷エネルギー",
	"基本超エネルギー",
	"基本闘エネルギー",
	"基本悪エネルギー",
	"基本鋼エネルギー",
	"基本フェアリーエネルギー",
	"基本ドラゴンエネルギー",
	"基本無色エネルギー",
	"Basic Grass Energy",
	"Basic Fire Energy",
	"Basic Water Energy",
	"Basic Lightning Energy",
	"Basic Psychic Energy",
	"Basic Fighting Energy",
	"Basic Darkness Energy",
	"Basic Metal Energy",
	"Basic Fairy Energy",
)

var (
	basicEnergyJA = regexp.MustCompile(`^基本.+エネルギー$`)
	basicEnergyEN = regexp.MustCompile(`^Basic .+ Energy$`)
)

// IsBasicEnergy reports whether name is a basic energy card, which is exempt
// from the copy limit.
func IsBasicEnergy(name string) bool {
	if _, ok := basicEnergyNames[name]; ok {
		return true
	}
	return basicEnergyJA.MatchString(name) || basicEnergyEN.MatchString(name)
}

// ValidateDeck checks a whole snapshot against the size and copy limits.
func ValidateDeck(s card.Snapshot) error {
	var errs []error
	if total := s.Total(); total > MaxDeckSize {
		errs = append(errs, deckOverLimit(total))
	}
	for _, c := range s.Cards() {
		if !IsBasicEnergy(c.Name) && c.Count > MaxCopies {
			errs = append(errs, cardOverLimit(c.Name, c.Count))
		}
	}
	return stderrors.Join(errs...)
}

// ValidateAddition checks whether adding count copies of name to s would
// break a limit. It does not modify s.
func ValidateAddition(s card.Snapshot, name string, count int) error {
	if err := ValidateCardName(name); err != nil {
		return err
	}
	if err := ValidateCount(count); err != nil {
		return err
	}
	var errs []error
	if total := s.Total() + count; total > MaxDeckSize {
		errs = append(errs, deckOverLimit(total))
	}
	if !IsBasicEnergy(name) {
		if next := s.CountOf(name) + count; next > MaxCopies {
			errs = append(errs, cardOverLimit(name, next))
		}
	}
	return stderrors.Join(errs...)
}

// ValidateMessage requires a non-blank commit message.
func ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return apperrors.New(apperrors.CodeMessageRequired, "commit message is required")
	}
	return nil
}

// ValidateCardName requires a non-blank card name.
func ValidateCardName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.New(apperrors.CodeCardNameRequired, "card name is required")
	}
	return nil
}

// ValidateCount requires an explicit count of at least one.
func ValidateCount(count int) error {
	if count < 1 {
		return apperrors.WithMetadata(apperrors.CodeCardInvalidCount, "card count must be at least 1",
			map[string]string{"Count": strconv.Itoa(count)})
	}
	return nil
}

// Violations flattens an error from this package into its domain errors.
func Violations(err error) []*apperrors.Error {
	return apperrors.All(err)
}

func nameSet(names ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, name := range names {
		out[name] = struct{}{}
	}
	return out
}

func deckOverLimit(total int) error {
	return apperrors.WithMetadata(apperrors.CodeDeckOver60,
		"deck has "+strconv.Itoa(total)+" cards, limit is "+strconv.Itoa(MaxDeckSize),
		map[string]string{"Total": strconv.Itoa(total), "Limit": strconv.Itoa(MaxDeckSize)})
}

func cardOverLimit(name string, count int) error {
	return apperrors.WithMetadata(apperrors.CodeCardOver4,
		name+" has "+strconv.Itoa(count)+" copies, limit is "+strconv.Itoa(MaxCopies),
		map[string]string{"Card": name, "Count": strconv.Itoa(count), "Limit": strconv.Itoa(MaxCopies)})
}
