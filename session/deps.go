package session

import "github.com/olympum/oarsman/s4"
import "github.com/olympum/oarsman/hrm"

// S4Source is the subset of *s4.Driver the Session depends on. Declaring it
// as an interface, rather than depending on *s4.Driver directly, follows the
// same testability seam spec.md §9 asks for at the BLE boundary: tests in
// this package run against a fake, never a real serial port.
type S4Source interface {
	IsConnected() bool
	Reset() error
	Close() error
	Datapoints(capacity int) chan s4.Sample
	UnsubscribeDatapoints(ch chan s4.Sample)
	Errors(capacity int) chan error
	UnsubscribeErrors(ch chan error)
}

// HRMSource is the subset of *hrm.Client the Session depends on.
type HRMSource interface {
	IsConnected() bool
	HeartRate(capacity int) chan hrm.Sample
	UnsubscribeHeartRate(ch chan hrm.Sample)
	Disconnect() error
}

var (
	_ S4Source  = (*s4.Driver)(nil)
	_ HRMSource = (*hrm.Client)(nil)
)
