// Package history holds the append-only version log of a deck and rebuilds
// historical snapshots from it.
//
// The package never mutates a caller's log. Appending versions and assigning
// sequence numbers is the caller's job and must be serialized per deck.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/deckledger/internal/deck/diff"
)

// Version is one committed change to a deck.
type Version struct {
	// ID is an opaque identifier unique across decks.
	ID string
	// DeckID is the deck the version belongs to.
	DeckID string
	// Seq is the 1-based position in the deck's log.
	Seq int
	// Message describes the change.
	Message string
	// Diff turns the snapshot at Seq-1 into the snapshot at Seq.
	Diff diff.Diff
	// CreatedAt is when the version was committed.
	CreatedAt time.Time

	// Hash covers the version content; ChainHash links it to PrevHash.
	Hash      string
	PrevHash  string
	ChainHash string
}

// Log is the ordered set of versions for one deck.
type Log []Version

// HasVersion reports whether any version in log carries seq.
func HasVersion(log Log, seq int) bool {
	for _, v := range log {
		if v.Seq == seq {
			return true
		}
	}
	return false
}

// LatestSeq returns the highest sequence number in log, or 0 when empty.
func LatestSeq(log Log) int {
	latest := 0
	for _, v := range log {
		if v.Seq > latest {
			latest = v.Seq
		}
	}
	return latest
}

// NextSeq returns the sequence number the next commit should use.
func NextSeq(log Log) int {
	return LatestSeq(log) + 1
}

// Validate reports duplicate, non-positive or non-contiguous sequence numbers.
// Reconstruction does not call it; a malformed log still replays
// deterministically in sorted order.
func Validate(log Log) error {
	var errs []error
	seen := make(map[int]bool, len(log))
	for _, v := range sorted(log) {
		if v.Seq < 1 {
			errs = append(errs, fmt.Errorf("version %q: sequence %d must be positive", v.ID, v.Seq))
			continue
		}
		if seen[v.Seq] {
			errs = append(errs, fmt.Errorf("version %q: duplicate sequence %d", v.ID, v.Seq))
			continue
		}
		seen[v.Seq] = true
		if want := len(seen); v.Seq != want {
			errs = append(errs, fmt.Errorf("version %q: sequence %d, want %d", v.ID, v.Seq, want))
		}
		if err := diff.Validate(v.Diff); err != nil {
			errs = append(errs, fmt.Errorf("version %d: %w", v.Seq, err))
		}
	}
	return errors.Join(errs...)
}
