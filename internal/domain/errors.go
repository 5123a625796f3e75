package domain

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNotEligible is returned when a source record's status or flags do
	// not satisfy the transition guard.
	ErrNotEligible = errors.New("not in expected status or already migrated")

	// ErrAlreadyMigrated is returned when the source record was already
	// copied forward to the next stage.
	ErrAlreadyMigrated = errors.New("already migrated")

	// ErrWriteFailure wraps a failed destination insert or source flag update.
	ErrWriteFailure = errors.New("write failure")

	// ErrBatchEmpty is returned when a migration batch carries no ids.
	ErrBatchEmpty = errors.New("no ids supplied")

	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidField      = errors.New("invalid field")
	ErrUnknownStage      = errors.New("unknown stage")
	ErrUnknownTransition = errors.New("stage has no predecessor to migrate from")
)
