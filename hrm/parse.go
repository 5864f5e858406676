package hrm

import (
	"encoding/binary"
	"fmt"
)

// parseHeartRate decodes a Heart-Rate-Measurement PDU (spec.md §4.C). Bit 0
// of the flags byte selects 8-bit vs 16-bit little-endian bpm encoding;
// every other flag bit (sensor contact, energy expended, RR-interval) is
// ignored by this core, matching sebm123/sketches' handleHeartRateMeasurement
// minus its contact-status gate.
func parseHeartRate(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("hrm: measurement too short (%d bytes)", len(buf))
	}
	flags := buf[0]
	is16Bit := flags&0x01 != 0
	if !is16Bit {
		return int(buf[1]), nil
	}
	if len(buf) < 3 {
		return 0, fmt.Errorf("hrm: 16-bit measurement too short (%d bytes)", len(buf))
	}
	return int(binary.LittleEndian.Uint16(buf[1:3])), nil
}
