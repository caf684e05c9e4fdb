package diff

import "github.com/louisbranch/deckledger/internal/deck/card"

// Kind names the variant of a difference entry.
type Kind string

const (
	// KindAdded marks a card present only in the resulting snapshot.
	KindAdded Kind = "added"
	// KindRemoved marks a card present only in the prior snapshot.
	KindRemoved Kind = "removed"
	// KindChanged marks a card whose count differs between snapshots.
	KindChanged Kind = "changed"
)

// Entry is one tagged difference for a single card name.
//
// The set of implementations is closed: Added, Removed and Changed.
type Entry interface {
	// Kind reports the variant.
	Kind() Kind
	// Key returns the card identity the entry refers to.
	Key() Ref
	entry()
}

// Ref identifies the card an entry refers to.
type Ref struct {
	Name     string
	ID       string
	Category card.Category
}

// Key returns the reference itself so variants can embed it.
func (r Ref) Key() Ref { return r }

// Added records a card that appears with the resulting count.
type Added struct {
	Ref
	After int
}

// Removed records a card that disappears from the prior count.
type Removed struct {
	Ref
	Before int
}

// Changed records a count change. Before and After always differ.
type Changed struct {
	Ref
	Before int
	After  int
}

func (Added) Kind() Kind   { return KindAdded }
func (Removed) Kind() Kind { return KindRemoved }
func (Changed) Kind() Kind { return KindChanged }

func (Added) entry()   {}
func (Removed) entry() {}
func (Changed) entry() {}

// Diff is an unordered set of entries with at most one entry per card name.
// Entry order is deterministic but carries no meaning.
type Diff []Entry

// Find returns the entry for name.
func (d Diff) Find(name string) (Entry, bool) {
	for _, e := range d {
		if e.Key().Name == name {
			return e, true
		}
	}
	return nil, false
}

// Counts reports how many entries of each kind the diff holds.
func (d Diff) Counts() (added, removed, changed int) {
	for _, e := range d {
		switch e.(type) {
		case Added:
			added++
		case Removed:
			removed++
		case Changed:
			changed++
		}
	}
	return added, removed, changed
}
