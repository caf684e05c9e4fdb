package card

// Snapshot is an immutable, insertion-ordered set of cards keyed by name.
//
// The zero value is the empty snapshot. Methods that change contents return a
// new Snapshot and leave the receiver untouched.
type Snapshot struct {
	names []string
	index map[string]Card
}

// Empty returns the empty snapshot.
func Empty() Snapshot {
	return Snapshot{}
}

// NewSnapshot builds a snapshot from cards.
// A repeated name overwrites the earlier card but keeps its position.
func NewSnapshot(cards ...Card) Snapshot {
	s := Snapshot{
		names: make([]string, 0, len(cards)),
		index: make(map[string]Card, len(cards)),
	}
	for _, c := range cards {
		if _, ok := s.index[c.Name]; !ok {
			s.names = append(s.names, c.Name)
		}
		s.index[c.Name] = c
	}
	return s
}

// Len returns the number of distinct cards.
func (s Snapshot) Len() int {
	return len(s.names)
}

// IsEmpty reports whether the snapshot holds no cards.
func (s Snapshot) IsEmpty() bool {
	return len(s.names) == 0
}

// Get returns the card stored under name.
func (s Snapshot) Get(name string) (Card, bool) {
	c, ok := s.index[name]
	return c, ok
}

// Has reports whether name is present.
func (s Snapshot) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// CountOf returns the count stored under name, or 0 when absent.
func (s Snapshot) CountOf(name string) int {
	return s.index[name].Count
}

// Names returns card names in iteration order.
func (s Snapshot) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Cards returns a copy of the cards in iteration order.
func (s Snapshot) Cards() []Card {
	out := make([]Card, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.index[name])
	}
	return out
}

// Total returns the sum of all card counts.
func (s Snapshot) Total() int {
	total := 0
	for _, c := range s.index {
		total += c.Count
	}
	return total
}

// Put returns a snapshot with c stored under c.Name.
// An existing card keeps its position; a new card is appended.
func (s Snapshot) Put(c Card) Snapshot {
	out := s.clone(1)
	if _, ok := out.index[c.Name]; !ok {
		out.names = append(out.names, c.Name)
	}
	out.index[c.Name] = c
	return out
}

// Delete returns a snapshot without name. Deleting an absent name returns an
// equal snapshot.
func (s Snapshot) Delete(name string) Snapshot {
	out := s.clone(0)
	if _, ok := out.index[name]; !ok {
		return out
	}
	delete(out.index, name)
	for i, n := range out.names {
		if n == name {
			out.names = append(out.names[:i], out.names[i+1:]...)
			break
		}
	}
	return out
}

// Counts returns the name to count mapping.
func (s Snapshot) Counts() map[string]int {
	out := make(map[string]int, len(s.index))
	for name, c := range s.index {
		out[name] = c.Count
	}
	return out
}

// Equal reports whether both snapshots hold the same (name, count) pairs,
// regardless of iteration order.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s.names) != len(other.names) {
		return false
	}
	for name, c := range s.index {
		o, ok := other.index[name]
		if !ok || o.Count != c.Count {
			return false
		}
	}
	return true
}

func (s Snapshot) clone(extra int) Snapshot {
	out := Snapshot{
		names: make([]string, len(s.names), len(s.names)+extra),
		index: make(map[string]Card, len(s.index)+extra),
	}
	copy(out.names, s.names)
	for name, c := range s.index {
		out.index[name] = c
	}
	return out
}

// Builder accumulates edits against a private copy of a snapshot so a batch
// of changes costs a single copy.
type Builder struct {
	s Snapshot
}

// NewBuilder starts a builder from a copy of base.
func NewBuilder(base Snapshot) *Builder {
	return &Builder{s: base.clone(0)}
}

// Get returns the card currently stored under name.
func (b *Builder) Get(name string) (Card, bool) {
	return b.s.Get(name)
}

// Put stores c under c.Name.
func (b *Builder) Put(c Card) {
	if _, ok := b.s.index[c.Name]; !ok {
		b.s.names = append(b.s.names, c.Name)
	}
	b.s.index[c.Name] = c
}

// Delete removes name if present.
func (b *Builder) Delete(name string) {
	if _, ok := b.s.index[name]; !ok {
		return
	}
	delete(b.s.index, name)
	for i, n := range b.s.names {
		if n == name {
			b.s.names = append(b.s.names[:i], b.s.names[i+1:]...)
			return
		}
	}
}

// Snapshot returns the built snapshot. The builder must not be used afterwards.
func (b *Builder) Snapshot() Snapshot {
	out := b.s
	b.s = Snapshot{}
	return out
}
