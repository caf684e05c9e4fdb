package backend

import (
	"path/filepath"
	"testing"

	"github.com/louisbranch/deckledger/internal/storage/memory"
	"github.com/louisbranch/deckledger/internal/storage/sqlite"
)

func TestOpenMemory(t *testing.T) {
	store, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("store = %T, want *memory.Store", store)
	}
}

func TestOpenSQLite(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "decks.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*sqlite.Store); !ok {
		t.Fatalf("store = %T, want *sqlite.Store", store)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(" "); err == nil {
		t.Fatal("expected error for blank path")
	}
}
