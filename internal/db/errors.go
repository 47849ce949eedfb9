package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConflict marks a unique-constraint violation (duplicate email, rp_id,
// device key, or TOTP registration). Handlers map it to 409; the core never
// silently overwrites on conflict.
var ErrConflict = errors.New("already exists")

// uniqueViolation is the Postgres error code for unique-constraint violations.
const uniqueViolation = "23505"

// invalidTextRepresentation is the Postgres error code raised when a value
// cannot be cast to its column type, e.g. a malformed id hitting a uuid column.
const invalidTextRepresentation = "22P02"

// IsInvalidID reports whether err is the driver rejecting a malformed id.
// Id-keyed reads treat it as not-found so garbage ids never surface as
// internal errors; handlers on write paths map it to a client error.
func IsInvalidID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}

// MapError translates driver-level unique violations to ErrConflict and
// passes every other error through unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}
