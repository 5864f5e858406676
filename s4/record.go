package s4

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jww "github.com/spf13/jwalterweatherman"
)

// recordLine is the newline-delimited JSON shape for one recorded frame
// (spec.md §6.5).
type recordLine struct {
	Time int64  `json:"time"`
	Type string `json:"type"`
	Data string `json:"data"`
}

func (d *Driver) recordingPath(name string) string {
	if name == "" {
		name = time.Now().Format(time.RFC3339)
	}
	dir := d.cfg.DataDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, name+".ndjson")
}

// StartRecording subscribes to reads$, drops pulse frames, and appends each
// remaining frame to a truncated file as one JSON object per line
// (spec.md §4.B).
func (d *Driver) StartRecording(name string) error {
	d.mu.Lock()
	if d.recording {
		d.mu.Unlock()
		return fmt.Errorf("s4: already recording")
	}
	d.recording = true
	d.recordStop = make(chan struct{})
	stop := d.recordStop
	d.mu.Unlock()

	path := d.recordingPath(name)
	f, err := os.Create(path)
	if err != nil {
		d.mu.Lock()
		d.recording = false
		d.mu.Unlock()
		return fmt.Errorf("s4: create recording file: %w", err)
	}

	ch := d.recordPS.Sub(recordTopic)
	enc := json.NewEncoder(f)

	d.recordWG.Add(1)
	go func() {
		defer d.recordWG.Done()
		defer f.Close()
		defer d.recordPS.Unsub(ch, recordTopic)
		for {
			select {
			case <-stop:
				return
			case v, ok := <-ch:
				if !ok {
					return
				}
				read := v.(Read)
				if err := enc.Encode(recordLine{
					Time: read.TimeMs,
					Type: read.Kind.String(),
					Data: read.Payload,
				}); err != nil {
					jww.ERROR.Printf("s4: record: write line: %v", err)
				}
			}
		}
	}()

	jww.INFO.Printf("s4: recording to %s", path)
	return nil
}

// StopRecording detaches the recording subscription.
func (d *Driver) StopRecording() {
	d.mu.Lock()
	if !d.recording {
		d.mu.Unlock()
		return
	}
	stop := d.recordStop
	d.recording = false
	d.mu.Unlock()

	close(stop)
	d.recordWG.Wait()
}
