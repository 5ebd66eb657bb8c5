// Package sentinel holds the facts stores report about records. Services
// translate them into pkg/domain-errors codes; stores never pick HTTP-facing
// codes themselves.
package sentinel

import "errors"

var (
	// ErrNotFound: no record with the requested id or email.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyUsed: a unique key (the normalized email) is taken.
	ErrAlreadyUsed = errors.New("already used")
	// ErrConflict: a record with the same id already exists.
	ErrConflict = errors.New("conflict")
)
