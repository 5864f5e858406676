// Package register holds the static table of named S4 memory locations
// (spec.md §3, §6.2) and the shared current-value scratchpad the S4 Driver
// writes to and readers observe.
package register

import (
	"fmt"
	"sync"

	"github.com/olympum/oarsman/frame"
)

// Radix is the base used to parse a register's ASCII payload digits.
type Radix int

const (
	Radix10 Radix = 10
	Radix16 Radix = 16
)

// Def is one immutable row of the register table.
type Def struct {
	Name    string
	Address string
	Width   frame.Width
	Radix   Radix
}

// Default is the minimum required register set from spec.md §6.2,
// restricted to the registers the rest of this module actually reads
// (spec.md §6.2's closing note: "implementers may omit registers not
// referenced by §4.E").
var Default = []Def{
	{Name: "stroke_rate", Address: "1A9", Width: frame.WidthSingle, Radix: Radix16},
	{Name: "distance", Address: "057", Width: frame.WidthDouble, Radix: Radix16},
	{Name: "kcal_watts", Address: "088", Width: frame.WidthDouble, Radix: Radix16},
	{Name: "total_kcal", Address: "08A", Width: frame.WidthDouble, Radix: Radix16},
	{Name: "strokes_cnt", Address: "140", Width: frame.WidthDouble, Radix: Radix16},
	{Name: "m_s_total", Address: "148", Width: frame.WidthDouble, Radix: Radix16},
	{Name: "m_s_average", Address: "14A", Width: frame.WidthDouble, Radix: Radix16},
}

// RefreshSubset is the reference active polling subset (spec.md §4.B).
var RefreshSubset = []string{
	"stroke_rate", "kcal_watts", "strokes_cnt", "m_s_total", "total_kcal", "m_s_average",
}

// Table owns the register definitions and their last-decoded values. The
// S4 Driver is the table's sole writer (spec.md §3 Ownership); any number
// of readers may call CurrentValue concurrently.
type Table struct {
	mu        sync.RWMutex
	defs      []Def
	byAddress map[string]Def
	values    map[string]int64
}

// New builds a Table from a set of definitions. Passing a nil/empty slice
// uses Default.
func New(defs []Def) *Table {
	if len(defs) == 0 {
		defs = Default
	}
	t := &Table{
		defs:      append([]Def(nil), defs...),
		byAddress: make(map[string]Def, len(defs)),
		values:    make(map[string]int64, len(defs)),
	}
	for _, d := range defs {
		t.byAddress[d.Address] = d
	}
	return t
}

// Defs returns the immutable register definitions.
func (t *Table) Defs() []Def {
	return append([]Def(nil), t.defs...)
}

// ByName looks up a definition by its stable name.
func (t *Table) ByName(name string) (Def, bool) {
	for _, d := range t.defs {
		if d.Name == name {
			return d, true
		}
	}
	return Def{}, false
}

// ByAddress looks up a definition by its 3-hex-digit address.
func (t *Table) ByAddress(address string) (Def, bool) {
	d, ok := t.byAddress[address]
	return d, ok
}

// Update records a newly decoded value for the register at address. It is
// a no-op (plus a caller-visible false) for unknown addresses; callers are
// expected to log and drop per spec.md §4.B.
func (t *Table) Update(address string, value int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byAddress[address]; !ok {
		return false
	}
	t.values[address] = value
	return true
}

// CurrentValue reads back the last decoded value for a register by name.
func (t *Table) CurrentValue(name string) (int64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.ByName(name)
	if !ok {
		return 0, fmt.Errorf("register: unknown name %q", name)
	}
	return t.values[d.Address], nil
}

// CurrentValues reads back every requested register's current value; an
// absent subset reads the whole table.
func (t *Table) CurrentValues(subset []string) map[string]int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(subset) == 0 {
		for _, d := range t.defs {
			subset = append(subset, d.Name)
		}
	}
	out := make(map[string]int64, len(subset))
	for _, name := range subset {
		if d, ok := t.ByName(name); ok {
			out[name] = t.values[d.Address]
		}
	}
	return out
}

// ParseValue interprets a frame's wire digit string per the register's
// declared radix (spec.md §3 "radix" field): most registers are radix 16
// (the digits are hex), a handful of display registers are radix 10 (the
// same ASCII digits are read as decimal).
func ParseValue(d Def, digits string) (int64, error) {
	v, err := parseIntBase(digits, int(d.Radix))
	if err != nil {
		return 0, fmt.Errorf("register %s: malformed value %q: %w", d.Name, digits, err)
	}
	return v, nil
}

func parseIntBase(s string, base int) (int64, error) {
	var v int64
	for _, c := range s {
		var digit int64
		switch {
		case c >= '0' && c <= '9':
			digit = int64(c - '0')
		case c >= 'A' && c <= 'F':
			digit = int64(c-'A') + 10
		case c >= 'a' && c <= 'f':
			digit = int64(c-'a') + 10
		default:
			return 0, fmt.Errorf("invalid digit %q", c)
		}
		if digit >= int64(base) {
			return 0, fmt.Errorf("digit %q out of range for base %d", c, base)
		}
		v = v*int64(base) + digit
	}
	return v, nil
}
