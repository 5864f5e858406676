package s4

import "errors"

// Sentinel errors, per spec.md §7.
var (
	// ErrNoDeviceFound is returned by Connect when port discovery finds no
	// serial port matching the S4's vendor descriptor.
	ErrNoDeviceFound = errors.New("s4: no device found")
	// ErrIllegalState names a public operation called from a state that
	// does not permit it. No Driver method returns it.
	ErrIllegalState = errors.New("s4: illegal state")
	// ErrClosed names an operation attempted after Close. No Driver method
	// returns it: writes after Close are silent no-ops.
	ErrClosed = errors.New("s4: driver closed")
)
