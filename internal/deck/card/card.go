// Package card defines the snapshot model: a deck's cards keyed by name.
//
// A Snapshot behaves as a name-keyed set. Iteration follows insertion order so
// serialization and test fixtures stay reproducible, but position never
// carries meaning: two snapshots are equal when they hold the same
// (name, count) pairs.
package card

import (
	"fmt"
	"strings"
)

// Category classifies a card.
type Category string

const (
	// CategoryPokemon is a Pokémon card.
	CategoryPokemon Category = "pokemon"
	// CategoryTrainer is a Trainer card.
	CategoryTrainer Category = "trainer"
	// CategoryEnergy is an Energy card.
	CategoryEnergy Category = "energy"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryPokemon, CategoryTrainer, CategoryEnergy}

// IsValid reports whether the category is known.
func (c Category) IsValid() bool {
	switch c {
	case CategoryPokemon, CategoryTrainer, CategoryEnergy:
		return true
	default:
		return false
	}
}

// ParseCategory normalizes a category label.
func ParseCategory(value string) (Category, error) {
	category := Category(strings.ToLower(strings.TrimSpace(value)))
	if !category.IsValid() {
		return "", fmt.Errorf("unknown card category %q", value)
	}
	return category, nil
}

// Card is one line item of a deck.
type Card struct {
	// Name is the unique key within a snapshot.
	Name string
	// ID is an optional external card identifier.
	ID string
	// Category classifies the card.
	Category Category
	// Count is the number of copies, at least 1 in a well-formed snapshot.
	Count int
	// ImageURL is optional display metadata.
	ImageURL string
}
