// Package backend selects the deck store a command runs against.
package backend

import (
	"strings"

	"github.com/louisbranch/deckledger/internal/storage"
	"github.com/louisbranch/deckledger/internal/storage/memory"
	"github.com/louisbranch/deckledger/internal/storage/sqlite"
)

// MemoryPath selects the in-memory store.
const MemoryPath = ":memory:"

// Open returns an in-memory store for MemoryPath and a SQLite store at path
// otherwise.
func Open(path string) (storage.Store, error) {
	if strings.TrimSpace(path) == MemoryPath {
		return memory.New(), nil
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	return store, nil
}
