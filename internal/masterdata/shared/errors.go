package shared

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the record does not exist.
	ErrNotFound = errors.New("masterdata: not found")
	// ErrDuplicate indicates a uniqueness violation.
	ErrDuplicate = errors.New("masterdata: duplicate code")
	// ErrReferenced indicates the record is still referenced and cannot change.
	ErrReferenced = errors.New("masterdata: record is referenced")
)

// IsUniqueViolation reports whether err is a PostgreSQL unique violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
