// Package id generates opaque identifiers for decks and versions.
//
// IDs are UUIDv7 values in lowercase base32hex, so they sort by creation time
// both as strings and as bytes.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var encoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// NewID returns a new 26 character identifier.
func NewID() (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(u[:])), nil
}

// Time returns the creation time encoded in an identifier from NewID.
func Time(s string) (time.Time, error) {
	raw, err := encoding.DecodeString(strings.ToUpper(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("decode id %q: %w", s, err)
	}
	u, err := uuid.FromBytes(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode id %q: %w", s, err)
	}
	if u.Version() != 7 {
		return time.Time{}, fmt.Errorf("id %q is not time ordered", s)
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec), nil
}
