package s4

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// PlayRecording reads a recording file and republishes its reads onto
// reads$, preserving inter-arrival gaps by delaying each line by the delta
// between successive recorded timestamps (spec.md §4.B, §6.5). The first
// record is replayed immediately. It blocks until the last record has been
// replayed or ctx is cancelled.
func (d *Driver) PlayRecording(ctx context.Context, name string) error {
	path := d.recordingPath(name)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("s4: open recording: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var prevTime int64
	first := true
	for scanner.Scan() {
		var line recordLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return fmt.Errorf("s4: parse recording line: %w", err)
		}

		if !first {
			delta := time.Duration(line.Time-prevTime) * time.Millisecond
			if delta > 0 {
				select {
				case <-time.After(delta):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		first = false
		prevTime = line.Time

		d.ingest(time.UnixMilli(line.Time), line.Data, nil)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("s4: read recording: %w", err)
	}
	return nil
}
