// Package decklist reads and writes deck lists as YAML documents.
//
// A deck list carries a deck's name, regulation, memo and cards:
//
//	name: Lightning Box
//	regulation: standard
//	cards:
//	  - name: Pikachu ex
//	    category: pokemon
//	    count: 2
//	  - name: Basic Lightning Energy
//	    category: energy
//	    count: 12
//
// Parsing checks the document shape (names, categories, counts and
// duplicates). Deck construction rules are left to the rules package.
package decklist

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/louisbranch/deckledger/internal/deck/card"
)

// List is a decoded deck list.
type List struct {
	Name       string
	Regulation string
	Memo       string
	Cards      card.Snapshot
}

type document struct {
	Name       string      `yaml:"name"`
	Regulation string      `yaml:"regulation,omitempty"`
	Memo       string      `yaml:"memo,omitempty"`
	Cards      []cardEntry `yaml:"cards"`
}

type cardEntry struct {
	Name     string `yaml:"name"`
	ID       string `yaml:"id,omitempty"`
	Category string `yaml:"category"`
	Count    int    `yaml:"count"`
	ImageURL string `yaml:"image_url,omitempty"`
}

// Parse decodes a YAML deck list. Every malformed card is reported.
func Parse(data []byte) (List, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return List{}, fmt.Errorf("decode deck list: %w", err)
	}

	var errs []error
	seen := make(map[string]int, len(doc.Cards))
	cards := make([]card.Card, 0, len(doc.Cards))
	for i, entry := range doc.Cards {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("card %d: name is required", i+1))
			continue
		}
		if first, ok := seen[name]; ok {
			errs = append(errs, fmt.Errorf("card %d: duplicate %q (first at card %d)", i+1, name, first))
			continue
		}
		seen[name] = i + 1
		category, err := card.ParseCategory(entry.Category)
		if err != nil {
			errs = append(errs, fmt.Errorf("card %d: %w", i+1, err))
			continue
		}
		if entry.Count < 1 {
			errs = append(errs, fmt.Errorf("card %d: %q count must be at least 1, got %d", i+1, name, entry.Count))
			continue
		}
		cards = append(cards, card.Card{
			Name:     name,
			ID:       strings.TrimSpace(entry.ID),
			Category: category,
			Count:    entry.Count,
			ImageURL: strings.TrimSpace(entry.ImageURL),
		})
	}
	if err := errors.Join(errs...); err != nil {
		return List{}, err
	}

	return List{
		Name:       strings.TrimSpace(doc.Name),
		Regulation: strings.ToLower(strings.TrimSpace(doc.Regulation)),
		Memo:       strings.TrimSpace(doc.Memo),
		Cards:      card.NewSnapshot(cards...),
	}, nil
}

// Encode writes list as YAML, cards in snapshot order.
func Encode(list List) ([]byte, error) {
	doc := document{
		Name:       list.Name,
		Regulation: list.Regulation,
		Memo:       list.Memo,
		Cards:      make([]cardEntry, 0, list.Cards.Len()),
	}
	for _, c := range list.Cards.Cards() {
		doc.Cards = append(doc.Cards, cardEntry{
			Name:     c.Name,
			ID:       c.ID,
			Category: string(c.Category),
			Count:    c.Count,
			ImageURL: c.ImageURL,
		})
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode deck list: %w", err)
	}
	return out, nil
}
