// Package deck groups the deck versioning domain.
//
// Subpackages:
//   - card: the snapshot model (cards keyed by name)
//   - diff: computing, applying and inverting differences between snapshots
//   - history: the append-only version log and snapshot reconstruction
//   - rules: deck construction rules checked before edits and commits
//   - service: the deck aggregate that ties edits, commits and history together
//   - decklist and render: import/export and textual presentation
//
// The card, diff and history packages are pure: they perform no I/O, hold no
// shared state and never mutate their inputs.
package deck
