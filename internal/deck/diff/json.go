package diff

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/deckledger/internal/deck/card"
)

// wireEntry is the persisted shape of an entry. Counts are pointers so a
// missing field can be told apart from zero.
type wireEntry struct {
	Type        Kind          `json:"type"`
	CardName    string        `json:"card_name"`
	CardID      string        `json:"card_id,omitempty"`
	Category    card.Category `json:"category"`
	BeforeCount *int          `json:"before_count,omitempty"`
	AfterCount  *int          `json:"after_count,omitempty"`
}

// MarshalJSON encodes the diff as an array of tagged entries.
func (d Diff) MarshalJSON() ([]byte, error) {
	out := make([]wireEntry, 0, len(d))
	for i, e := range d {
		var w wireEntry
		switch entry := e.(type) {
		case Added:
			w = wireFromRef(KindAdded, entry.Ref)
			w.AfterCount = intPtr(entry.After)
		case Removed:
			w = wireFromRef(KindRemoved, entry.Ref)
			w.BeforeCount = intPtr(entry.Before)
		case Changed:
			w = wireFromRef(KindChanged, entry.Ref)
			w.BeforeCount = intPtr(entry.Before)
			w.AfterCount = intPtr(entry.After)
		default:
			return nil, fmt.Errorf("marshal diff entry %d: unsupported entry %T", i, e)
		}
		out = append(out, w)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an array of tagged entries.
func (d *Diff) UnmarshalJSON(data []byte) error {
	var wire []wireEntry
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode diff: %w", err)
	}
	out := make(Diff, 0, len(wire))
	for i, w := range wire {
		ref := Ref{Name: w.CardName, ID: w.CardID, Category: w.Category}
		switch w.Type {
		case KindAdded:
			if w.AfterCount == nil {
				return fmt.Errorf("decode diff entry %d: added entry requires after_count", i)
			}
			out = append(out, Added{Ref: ref, After: *w.AfterCount})
		case KindRemoved:
			if w.BeforeCount == nil {
				return fmt.Errorf("decode diff entry %d: removed entry requires before_count", i)
			}
			out = append(out, Removed{Ref: ref, Before: *w.BeforeCount})
		case KindChanged:
			if w.BeforeCount == nil || w.AfterCount == nil {
				return fmt.Errorf("decode diff entry %d: changed entry requires before_count and after_count", i)
			}
			out = append(out, Changed{Ref: ref, Before: *w.BeforeCount, After: *w.AfterCount})
		default:
			return fmt.Errorf("decode diff entry %d: unknown type %q", i, w.Type)
		}
	}
	*d = out
	return nil
}

func wireFromRef(kind Kind, ref Ref) wireEntry {
	return wireEntry{
		Type:     kind,
		CardName: ref.Name,
		CardID:   ref.ID,
		Category: ref.Category,
	}
}

func intPtr(v int) *int {
	return &v
}
