package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound = errors.New("db: user not found")
	ErrDuplicate    = errors.New("db: unique constraint violated")
	ErrMissingField = errors.New("db: required column is null")
	ErrForeignKey   = errors.New("db: referenced row does not exist")
	ErrConstraint   = errors.New("db: constraint violated")
)

// classify maps postgres constraint violations onto the package sentinels so
// callers can branch with errors.Is without knowing SQLSTATE codes.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("postgres: %s: %w", op, err)
	}

	var sentinel error
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		sentinel = ErrDuplicate
	case pgerrcode.NotNullViolation:
		sentinel = ErrMissingField
	case pgerrcode.ForeignKeyViolation:
		sentinel = ErrForeignKey
	case pgerrcode.CheckViolation, pgerrcode.StringDataRightTruncationDataException, pgerrcode.NumericValueOutOfRange:
		sentinel = ErrConstraint
	default:
		return fmt.Errorf("postgres: %s: %w", op, err)
	}

	return fmt.Errorf("postgres: %s: %w (%s)", op, sentinel, pgErr.ConstraintName)
}
