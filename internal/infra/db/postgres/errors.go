package postgres

import (
	"errors"

	"github.com/jackc/pgconn"
)

// uniqueViolation is the Postgres error code for duplicate key inserts.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
