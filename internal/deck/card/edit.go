package card

// AddCard adds one copy of c to the snapshot.
// When the name already exists its count is incremented and the stored
// category and ID are kept; otherwise c is inserted with a count of 1.
func AddCard(s Snapshot, c Card) Snapshot {
	if existing, ok := s.Get(c.Name); ok {
		existing.Count++
		return s.Put(existing)
	}
	c.Count = 1
	return s.Put(c)
}

// RemoveCard removes name from the snapshot.
func RemoveCard(s Snapshot, name string) Snapshot {
	return s.Delete(name)
}

// UpdateCount sets the count for name. A count of zero or less removes the
// card. Updating an absent name leaves the snapshot unchanged.
func UpdateCount(s Snapshot, name string, count int) Snapshot {
	if count <= 0 {
		return s.Delete(name)
	}
	existing, ok := s.Get(name)
	if !ok {
		return s
	}
	existing.Count = count
	return s.Put(existing)
}

// GroupByCategory splits cards by category, keeping iteration order within
// each group. Every known category is present in the result.
func GroupByCategory(s Snapshot) map[Category][]Card {
	out := make(map[Category][]Card, len(Categories))
	for _, category := range Categories {
		out[category] = []Card{}
	}
	for _, c := range s.Cards() {
		out[c.Category] = append(out[c.Category], c)
	}
	return out
}
