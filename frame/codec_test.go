package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Hardwaretype(t *testing.T) {
	f := Classify("_WR_4205\r\n")
	assert.Equal(t, Hardwaretype, f.Kind)
}

func TestClassify_Datapoint(t *testing.T) {
	tests := []struct {
		line    string
		width   Width
		address string
		digits  string
	}{
		{"IDS1A912", WidthSingle, "1A9", "12"},
		{"IDD08800C8", WidthDouble, "088", "00C8"},
		{"IDT08A001234", WidthTriple, "08A", "001234"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			f := Classify(tt.line)
			require.Equal(t, Datapoint, f.Kind)
			assert.Equal(t, tt.width, f.Width)
			assert.Equal(t, tt.address, f.Address)
			assert.Equal(t, tt.digits, f.Digits)
		})
	}
}

func TestClassify_Pulse(t *testing.T) {
	f := Classify("P12")
	assert.Equal(t, Pulse, f.Kind)
}

func TestClassify_Other(t *testing.T) {
	for _, line := range []string{"", "OK", "ERROR", "IDZ1A912", "IDS1A9", "garbage\x00bytes"} {
		f := Classify(line)
		assert.Equal(t, Other, f.Kind, "line %q", line)
	}
}

// Frame round-trip: spec.md §8 property 1.
func TestRoundTrip(t *testing.T) {
	cases := []struct {
		width   Width
		address string
		value   uint64
	}{
		{WidthSingle, "1A9", 0x12},
		{WidthDouble, "088", 0x00C8},
		{WidthTriple, "08A", 0x001234},
		{WidthSingle, "000", 0},
		{WidthDouble, "FFF", 0xFFFF},
	}
	for _, c := range cases {
		line := Encode(c.width, c.address, c.value)
		f := Classify(line)
		require.Equal(t, Datapoint, f.Kind)
		assert.Equal(t, c.width, f.Width)
		assert.Equal(t, c.address, f.Address)
	}
}
