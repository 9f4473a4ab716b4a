package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an update, delete or adjustment addresses
	// an item that does not exist.
	ErrNotFound = errors.New("item not found")

	// ErrDuplicateSKU is returned by Add when SKU uniqueness is enforced and
	// the SKU is already taken.
	ErrDuplicateSKU = errors.New("sku already exists")
)

// ValidationError reports a missing or out-of-range field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// StorageError wraps a failure reported by the database engine.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// BatchError identifies the zero-based row that aborted a batch insert.
type BatchError struct {
	Row int
	Err error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
