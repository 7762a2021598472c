package db

import "errors"

// Sentinel errors for the store's error taxonomy. Components never
// return these directly; they wrap them (via pkg/errors or a structured
// type in pkg/db/postgres/pgerr) so callers can still match with errors.Is.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrVersionMismatch    = errors.New("schema version mismatch")
	ErrDowngradeCompleted = errors.New("downgrade completed")
	ErrDataLoss           = errors.New("data loss")
	ErrCanceled           = errors.New("canceled")
	ErrInternal           = errors.New("internal error")
)
