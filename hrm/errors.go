package hrm

import "errors"

// ErrServiceNotFound is returned by Connect when the Heart Rate Measurement
// characteristic (0x2A37 under 0x180D) is absent (spec.md §4.C).
var ErrServiceNotFound = errors.New("hrm: heart rate measurement characteristic not found")
