package diff

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/louisbranch/deckledger/internal/deck/card"
)

func TestMarshalJSONShape(t *testing.T) {
	d := Diff{
		Added{Ref: Ref{Name: "Pikachu", ID: "sv1-25", Category: card.CategoryPokemon}, After: 2},
		Removed{Ref: Ref{Name: "Potion", Category: card.CategoryTrainer}, Before: 1},
	}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[{"type":"added","card_name":"Pikachu","card_id":"sv1-25","category":"pokemon","after_count":2},` +
		`{"type":"removed","card_name":"Potion","category":"trainer","before_count":1}]`
	if string(data) != want {
		t.Fatalf("marshal = %s, want %s", data, want)
	}
}

func TestMarshalJSONEmptyDiff(t *testing.T) {
	data, err := json.Marshal(Diff(nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("marshal = %s, want []", data)
	}
}

func TestUnmarshalJSONDecodesEntries(t *testing.T) {
	raw := `[{"type":"changed","card_name":"Pikachu","category":"pokemon","before_count":2,"after_count":4}]`
	var d Diff
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := Diff{Changed{Ref: Ref{Name: "Pikachu", Category: card.CategoryPokemon}, Before: 2, After: 4}}
	if !reflect.DeepEqual(d, want) {
		t.Fatalf("unmarshal = %#v, want %#v", d, want)
	}
}

func TestUnmarshalJSONRejectsMalformedEntries(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "unknown type", raw: `[{"type":"moved","card_name":"Mew"}]`, want: "unknown type"},
		{name: "added without count", raw: `[{"type":"added","card_name":"Mew"}]`, want: "after_count"},
		{name: "removed without count", raw: `[{"type":"removed","card_name":"Mew"}]`, want: "before_count"},
		{name: "changed missing after", raw: `[{"type":"changed","card_name":"Mew","before_count":1}]`, want: "after_count"},
		{name: "not an array", raw: `{"type":"added"}`, want: "decode diff"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var d Diff
			err := json.Unmarshal([]byte(tc.raw), &d)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want substring %q", err, tc.want)
			}
		})
	}
}

func TestJSONPreservesComputedDiff(t *testing.T) {
	before := card.NewSnapshot(pokemon("Pikachu", 2), pokemon("Mew", 1))
	after := card.NewSnapshot(pokemon("Pikachu", 4), pokemon("Eevee", 3))
	d := Compute(before, after)

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Diff
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := Apply(before, decoded); !got.Equal(after) {
		t.Fatalf("decoded diff applied = %v, want %v", got.Counts(), after.Counts())
	}
}
