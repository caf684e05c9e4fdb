package history

import (
	"cmp"
	"slices"
	"sort"

	"github.com/louisbranch/deckledger/internal/deck/card"
	"github.com/louisbranch/deckledger/internal/deck/diff"
)

// ReplayOptions bounds a replay.
type ReplayOptions struct {
	// AfterSeq skips versions at or below this sequence number.
	AfterSeq int
	// UntilSeq stops the replay before any version above this sequence number.
	UntilSeq int
}

// Replay folds the log's diffs onto base in ascending sequence order, within
// the bounds in opts. The log is sorted on a copy first, so callers may pass
// versions in any order. Replay returns the folded snapshot and the sequence
// number of the last version applied (or opts.AfterSeq when none were).
func Replay(base card.Snapshot, log Log, opts ReplayOptions) (card.Snapshot, int) {
	versions := sorted(log)
	start := sort.Search(len(versions), func(i int) bool {
		return versions[i].Seq > opts.AfterSeq
	})
	out, last, applied := fold(base, versions[start:], opts.UntilSeq)
	if !applied {
		return out, opts.AfterSeq
	}
	return out, last
}

// Reconstruct rebuilds the snapshot as of target by folding every version
// with Seq <= target onto the empty snapshot. A target below the first
// version, or an empty log, yields the empty snapshot.
func Reconstruct(log Log, target int) card.Snapshot {
	out, _, _ := fold(card.Empty(), sorted(log), target)
	return out
}

// fold applies versions, already in ascending order, until one exceeds
// until. It reports the seq of the last version applied.
func fold(base card.Snapshot, versions Log, until int) (card.Snapshot, int, bool) {
	out := base
	last, applied := 0, false
	for _, v := range versions {
		if v.Seq > until {
			break
		}
		out = diff.Apply(out, v.Diff)
		last, applied = v.Seq, true
	}
	return out, last, applied
}

// Accumulate returns the single diff that turns the snapshot at from into the
// snapshot at to. Both endpoints are reconstructed independently, so from may
// be greater than to.
func Accumulate(log Log, from, to int) diff.Diff {
	return diff.Compute(Reconstruct(log, from), Reconstruct(log, to))
}

// sorted returns a copy of log in ascending sequence order. Versions sharing
// a sequence number keep their relative input order.
func sorted(log Log) Log {
	out := slices.Clone(log)
	slices.SortStableFunc(out, func(a, b Version) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out
}
