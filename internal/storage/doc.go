// Package storage defines the persistence contracts for decks and their
// version logs.
//
// Implementations live in subpackages: memory for tests and scenarios, and
// sqlite for durable storage. Both compute the integrity hashes of appended
// versions through the integrity subpackage and accept AIP-160 filters
// through the filter subpackage.
//
// # Error Types
//
//   - ErrNotFound: a requested deck or version is missing.
//   - ErrAlreadyExists: a deck with the same ID already exists.
//   - ErrVersionConflict: an appended version does not extend the log.
package storage
