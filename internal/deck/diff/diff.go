// Package diff computes, applies and inverts differences between snapshots.
//
// Every function is pure. Inputs are never mutated and every returned
// snapshot is an independent value.
package diff

import "github.com/louisbranch/deckledger/internal/deck/card"

// Compute returns the difference that turns before into after.
//
// Entries for cards in after come first, in after's order (Added when the
// name is new, Changed when the count differs). Entries for cards missing from
// after follow, in before's order (Removed). Equal counts emit nothing.
func Compute(before, after card.Snapshot) Diff {
	var out Diff
	for _, next := range after.Cards() {
		prev, ok := before.Get(next.Name)
		switch {
		case !ok:
			out = append(out, Added{Ref: refOf(next), After: next.Count})
		case prev.Count != next.Count:
			out = append(out, Changed{Ref: refOf(next), Before: prev.Count, After: next.Count})
		}
	}
	for _, prev := range before.Cards() {
		if !after.Has(prev.Name) {
			out = append(out, Removed{Ref: refOf(prev), Before: prev.Count})
		}
	}
	return out
}

// Has reports whether before and after hold different (name, count) pairs.
// It agrees with len(Compute(before, after)) > 0 for every input.
func Has(before, after card.Snapshot) bool {
	if before.Len() != after.Len() {
		return true
	}
	for _, next := range after.Cards() {
		prev, ok := before.Get(next.Name)
		if !ok || prev.Count != next.Count {
			return true
		}
	}
	return false
}

// Apply returns base with d applied.
//
// Added inserts or overwrites the card with its declared category and ID.
// Removed deletes the card; an absent card is left alone. Changed overwrites
// the count of an existing card; against an absent card the entry is inert.
// Apply is defined structurally, so d need not have been computed from base.
func Apply(base card.Snapshot, d Diff) card.Snapshot {
	b := card.NewBuilder(base)
	for _, e := range d {
		switch entry := e.(type) {
		case Added:
			b.Put(card.Card{
				Name:     entry.Name,
				ID:       entry.ID,
				Category: entry.Category,
				Count:    entry.After,
			})
		case Removed:
			b.Delete(entry.Name)
		case Changed:
			existing, ok := b.Get(entry.Name)
			if !ok {
				continue
			}
			existing.Count = entry.After
			b.Put(existing)
		}
	}
	return b.Snapshot()
}

// ApplyAll folds Apply over diffs left to right.
// With no diffs it returns a snapshot equal to base.
func ApplyAll(base card.Snapshot, diffs ...Diff) card.Snapshot {
	out := base
	for _, d := range diffs {
		out = Apply(out, d)
	}
	return out
}

// Invert returns the structural inverse of d: Added and Removed swap, and
// Changed swaps its counts. For d = Compute(a, b),
// Apply(Apply(a, d), Invert(d)) equals a.
func Invert(d Diff) Diff {
	if d == nil {
		return nil
	}
	out := make(Diff, 0, len(d))
	for _, e := range d {
		switch entry := e.(type) {
		case Added:
			out = append(out, Removed{Ref: entry.Ref, Before: entry.After})
		case Removed:
			out = append(out, Added{Ref: entry.Ref, After: entry.Before})
		case Changed:
			out = append(out, Changed{Ref: entry.Ref, Before: entry.After, After: entry.Before})
		}
	}
	return out
}

func refOf(c card.Card) Ref {
	return Ref{Name: c.Name, ID: c.ID, Category: c.Category}
}
