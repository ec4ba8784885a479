// Package store implements the Postgres persistence layer. Every store takes
// a shared *pgxpool.Pool and speaks raw parameterized SQL; callers see the
// sentinel errors below instead of driver errors where the distinction is
// actionable.
package store

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("already exists")
	ErrConstraint = errors.New("constraint violated")
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)
