// Package render formats diffs, snapshots and version history as localized
// plain text.
package render

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/louisbranch/deckledger/internal/deck/card"
	"github.com/louisbranch/deckledger/internal/deck/diff"
	"github.com/louisbranch/deckledger/internal/deck/history"
	"github.com/louisbranch/deckledger/internal/deck/rules"
	"github.com/louisbranch/deckledger/internal/platform/i18n/catalog"
)

const (
	timeLayout       = "2006-01-02 15:04"
	otherCategoryKey = "deck.category.other"
)

// ResolveLocale returns the catalog locale closest to locale, or the base
// locale when nothing matches.
func ResolveLocale(locale string) string {
	locale = strings.TrimSpace(locale)
	if catalog.Default().HasLocale(locale) {
		return locale
	}
	supported := []language.Tag{language.MustParse(catalog.BaseLocale)}
	for _, l := range catalog.Default().Locales() {
		if l == catalog.BaseLocale {
			continue
		}
		tag, err := language.Parse(l)
		if err != nil {
			continue
		}
		supported = append(supported, tag)
	}

	requested, err := language.Parse(locale)
	if err != nil {
		return catalog.BaseLocale
	}
	_, index, confidence := language.NewMatcher(supported).Match(requested)
	if confidence == language.No {
		return catalog.BaseLocale
	}
	return supported[index].String()
}

// Renderer formats deck data for one locale.
type Renderer struct {
	locale  string
	printer *message.Printer
}

// New returns a renderer for the closest supported locale.
func New(locale string) *Renderer {
	resolved := ResolveLocale(locale)
	return &Renderer{
		locale:  resolved,
		printer: message.NewPrinter(language.MustParse(resolved)),
	}
}

// Locale returns the resolved locale.
func (r *Renderer) Locale() string {
	return r.locale
}

// Category returns the localized category label. Unknown categories share
// the "other" label.
func (r *Renderer) Category(c card.Category) string {
	key := otherCategoryKey
	if c.IsValid() {
		key = "deck.category." + string(c)
	}
	label, _ := catalog.Default().Message(r.locale, key)
	return label
}

// Entry formats one diff entry.
func (r *Renderer) Entry(e diff.Entry) string {
	switch entry := e.(type) {
	case diff.Added:
		return r.printer.Sprintf("deck.diff.added", entry.Name, entry.After)
	case diff.Removed:
		return r.printer.Sprintf("deck.diff.removed", entry.Name, entry.Before)
	case diff.Changed:
		return r.printer.Sprintf("deck.diff.changed", entry.Name, entry.Before, entry.After)
	default:
		return ""
	}
}

// Diff formats d one entry per line.
func (r *Renderer) Diff(d diff.Diff) string {
	if len(d) == 0 {
		return r.printer.Sprintf("deck.diff.none")
	}
	lines := make([]string, 0, len(d))
	for _, e := range d {
		lines = append(lines, r.Entry(e))
	}
	return strings.Join(lines, "\n")
}

// Summary counts the entries of d by kind.
func (r *Renderer) Summary(d diff.Diff) string {
	added, removed, changed := d.Counts()
	return r.printer.Sprintf("deck.diff.summary", added, removed, changed)
}

// Snapshot lists cards grouped by category followed by the deck total.
// Empty categories are omitted. Cards outside the known categories are listed
// last under one "other" heading so the groups always add up to the total.
func (r *Renderer) Snapshot(s card.Snapshot) string {
	var b strings.Builder
	grouped := card.GroupByCategory(s)
	for _, category := range card.Categories {
		r.writeGroup(&b, r.Category(category), grouped[category])
	}
	var other []card.Card
	for _, c := range s.Cards() {
		if !c.Category.IsValid() {
			other = append(other, c)
		}
	}
	r.writeGroup(&b, r.Category(""), other)
	b.WriteString(r.printer.Sprintf("deck.total", s.Total(), rules.MaxDeckSize))
	return b.String()
}

func (r *Renderer) writeGroup(b *strings.Builder, label string, cards []card.Card) {
	if len(cards) == 0 {
		return
	}
	subtotal := 0
	for _, c := range cards {
		subtotal += c.Count
	}
	b.WriteString(r.printer.Sprintf("deck.category.heading", label, subtotal))
	b.WriteByte('\n')
	for _, c := range cards {
		b.WriteString("  ")
		b.WriteString(r.printer.Sprintf("deck.card.line", c.Count, c.Name))
		b.WriteByte('\n')
	}
}

// History lists versions newest first.
func (r *Renderer) History(log history.Log) string {
	if len(log) == 0 {
		return r.printer.Sprintf("deck.version.empty")
	}
	lines := make([]string, 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		v := log[i]
		lines = append(lines, r.printer.Sprintf("deck.version.line", v.Seq, v.CreatedAt.UTC().Format(timeLayout), v.Message))
	}
	return strings.Join(lines, "\n")
}

// Status describes pending changes.
func (r *Renderer) Status(pending diff.Diff) string {
	if len(pending) == 0 {
		return r.printer.Sprintf("deck.status.clean")
	}
	return r.printer.Sprintf("deck.status.dirty") + "\n" + r.Diff(pending)
}
