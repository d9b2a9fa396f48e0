package postgres

import (
	"civic/pkg/storage"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// wrapErr wraps a query error, translating unique constraint violations into
// storage.ErrDuplicate.
func wrapErr(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %s: %w", msg, pgErr.ConstraintName, storage.ErrDuplicate)
	}

	return fmt.Errorf("%s: %w", msg, err)
}
