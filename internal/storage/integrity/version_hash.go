// Package integrity content-addresses deck versions and links them into a
// hash chain so tampering with a stored log is detectable.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/louisbranch/deckledger/internal/deck/diff"
	"github.com/louisbranch/deckledger/internal/deck/history"
)

type versionEnvelope struct {
	DeckID    string    `json:"deck_id"`
	Seq       int       `json:"seq"`
	Message   string    `json:"message"`
	Diff      diff.Diff `json:"diff"`
	CreatedAt string    `json:"created_at"`
}

type chainEnvelope struct {
	Hash     string `json:"hash"`
	PrevHash string `json:"prev_hash"`
	Seq      int    `json:"seq"`
}

// VersionHash computes the SHA-256 content hash of a version. The ID and
// existing hash fields are not covered.
func VersionHash(v history.Version) (string, error) {
	return hashOf(versionEnvelope{
		DeckID:    v.DeckID,
		Seq:       v.Seq,
		Message:   v.Message,
		Diff:      v.Diff,
		CreatedAt: v.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

// ChainHash links a version hash to the chain hash of its predecessor. The
// first version uses an empty prevHash.
func ChainHash(v history.Version, prevHash string) (string, error) {
	if v.Hash == "" {
		return "", fmt.Errorf("version hash is required")
	}
	return hashOf(chainEnvelope{Hash: v.Hash, PrevHash: prevHash, Seq: v.Seq})
}

// Seal sets Hash, PrevHash and ChainHash on v.
func Seal(v history.Version, prevHash string) (history.Version, error) {
	hash, err := VersionHash(v)
	if err != nil {
		return history.Version{}, fmt.Errorf("compute version hash: %w", err)
	}
	v.Hash = hash
	chain, err := ChainHash(v, prevHash)
	if err != nil {
		return history.Version{}, fmt.Errorf("compute chain hash: %w", err)
	}
	v.PrevHash = prevHash
	v.ChainHash = chain
	return v, nil
}

// VerifyChain re-derives every hash in log, which must be in ascending
// sequence order starting at 1.
func VerifyChain(log history.Log) error {
	prevChain := ""
	for i, v := range log {
		if v.Seq != i+1 {
			return fmt.Errorf("version sequence gap deck_id=%s expected=%d got=%d", v.DeckID, i+1, v.Seq)
		}
		if v.PrevHash != prevChain {
			return fmt.Errorf("prev hash mismatch deck_id=%s seq=%d", v.DeckID, v.Seq)
		}
		hash, err := VersionHash(v)
		if err != nil {
			return fmt.Errorf("compute version hash deck_id=%s seq=%d: %w", v.DeckID, v.Seq, err)
		}
		if hash != v.Hash {
			return fmt.Errorf("version hash mismatch deck_id=%s seq=%d", v.DeckID, v.Seq)
		}
		chain, err := ChainHash(v, prevChain)
		if err != nil {
			return fmt.Errorf("compute chain hash deck_id=%s seq=%d: %w", v.DeckID, v.Seq, err)
		}
		if chain != v.ChainHash {
			return fmt.Errorf("chain hash mismatch deck_id=%s seq=%d", v.DeckID, v.Seq)
		}
		prevChain = v.ChainHash
	}
	return nil
}

func hashOf(v any) (string, error) {
	canonical, err := canonicalJSON(v)
	if err != nil {
		return "", fmt.Errorf("canonical json: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
