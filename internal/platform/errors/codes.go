// Package errors provides structured error handling with i18n support.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Deck errors
	CodeDeckNotFound          Code = "DECK_NOT_FOUND"
	CodeDeckNameEmpty         Code = "DECK_NAME_EMPTY"
	CodeDeckInvalidRegulation Code = "INVALID_REGULATION"
	CodeDeckOver60            Code = "DECK_OVER_60"
	CodeCardOver4             Code = "CARD_OVER_4"
	CodeCardNameRequired      Code = "CARD_NAME_REQUIRED"
	CodeCardInvalidCount      Code = "INVALID_COUNT"
	CodeCardInvalidCategory   Code = "INVALID_CATEGORY"

	// Version errors
	CodeMessageRequired  Code = "MESSAGE_REQUIRED"
	CodeNoChanges        Code = "NO_CHANGES"
	CodeVersionNotFound  Code = "VERSION_NOT_FOUND"
	CodeVersionConflict  Code = "VERSION_CONFLICT"
	CodeHistoryCorrupted Code = "HISTORY_CORRUPTED"

	// Query errors
	CodeInvalidFilter Code = "INVALID_FILTER"
	CodeInvalidImport Code = "INVALID_IMPORT"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// Class groups codes by how a caller should react.
type Class string

const (
	ClassInvalidArgument    Class = "invalid_argument"
	ClassFailedPrecondition Class = "failed_precondition"
	ClassNotFound           Class = "not_found"
	ClassConflict           Class = "conflict"
	ClassInternal           Class = "internal"
)

// Class maps domain codes to a caller-facing class.
func (c Code) Class() Class {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeDeckNameEmpty,
		CodeDeckInvalidRegulation,
		CodeCardNameRequired,
		CodeCardInvalidCount,
		CodeCardInvalidCategory,
		CodeMessageRequired,
		CodeInvalidFilter,
		CodeInvalidImport:
		return ClassInvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeDeckOver60,
		CodeCardOver4,
		CodeNoChanges:
		return ClassFailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeDeckNotFound,
		CodeVersionNotFound:
		return ClassNotFound

	case CodeVersionConflict:
		return ClassConflict

	default:
		return ClassInternal
	}
}

// ExitCode returns the process exit status for a command failing with c.
func (c Class) ExitCode() int {
	switch c {
	case ClassInvalidArgument:
		return 2
	case ClassFailedPrecondition:
		return 3
	case ClassNotFound:
		return 4
	case ClassConflict:
		return 5
	default:
		return 1
	}
}
