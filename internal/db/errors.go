package db

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicate is returned by repositories when an insert hits a unique constraint.
var ErrDuplicate = errors.New("db: duplicate key")

const pqUniqueViolation = "23505"

// IsUniqueViolation reports whether err carries a Postgres unique_violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
