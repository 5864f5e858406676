package session

import "errors"

// ErrIllegalState is returned when a public operation is called from a
// state its contract forbids (spec.md §4.E "Failure semantics").
var ErrIllegalState = errors.New("session: illegal state")
