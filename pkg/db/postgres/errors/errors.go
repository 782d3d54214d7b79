package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	kdb "github.com/virtual-closet/closet/pkg/db"
)

// requested data is missing.
type Missing struct {
	Table    string
	Identity string
}

var _ error = Missing{}

func (m Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s", m.Identity, m.Table)
}
func (m Missing) Unwrap() error {
	return kdb.ErrMissing
}

// requested data conflicts with a stored one.
type Conflict struct {
	Table      string
	Identity   string
	Constraint string
}

var _ error = Conflict{}

func (c Conflict) Error() string {
	return fmt.Sprintf(
		"%s conflicts in %s (constraint: %s)", c.Identity, c.Table, c.Constraint,
	)
}
func (c Conflict) Unwrap() error {
	return kdb.ErrConflict
}

// Classify translates errors from postgres into kdb's ones.
//
// Errors which are not known are returned as they are.
func Classify(err error, table string, identity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return Missing{Table: table, Identity: identity}
	}
	if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) {
		if pgerr.Code == pgerrcode.UniqueViolation {
			return Conflict{Table: table, Identity: identity, Constraint: pgerr.ConstraintName}
		}
	}
	return err
}
