package card

import (
	"encoding/json"
	"fmt"
)

type wireCard struct {
	Name     string   `json:"name"`
	ID       string   `json:"card_id,omitempty"`
	Category Category `json:"category"`
	Count    int      `json:"count"`
	ImageURL string   `json:"image_url,omitempty"`
}

// MarshalJSON encodes the snapshot as an array of cards in insertion order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := make([]wireCard, 0, s.Len())
	for _, c := range s.Cards() {
		out = append(out, wireCard(c))
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an array of cards. A repeated name overwrites the
// earlier entry, as NewSnapshot does.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var wire []wireCard
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	cards := make([]Card, 0, len(wire))
	for _, w := range wire {
		cards = append(cards, Card(w))
	}
	*s = NewSnapshot(cards...)
	return nil
}
