package db

import "errors"

var (
	// ErrMissing is returned when a record is not found.
	ErrMissing = errors.New("db: missing")

	// ErrConflict is returned when a record with the same id already exists.
	ErrConflict = errors.New("db: conflict")

	// ErrInvalid is returned when a record to be stored violates constraints.
	ErrInvalid = errors.New("db: invalid")
)

type ClosetDatabase interface {
	Dolls() DollInterface
	Close() error
}
