// Package telemetry appends structured run events to a JSONL file.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventsFile is the JSONL file name inside the artifacts directory.
const EventsFile = "events.jsonl"

// Sink writes one JSON object per line to <dir>/events.jsonl.
// A nil or disabled Sink drops events.
type Sink struct {
	mu      sync.Mutex
	dir     string
	enabled bool
}

// NewSink returns a sink rooted at dir (".agent" when empty).
func NewSink(dir string, enabled bool) *Sink {
	if dir == "" {
		dir = ".agent"
	}
	return &Sink{dir: dir, enabled: enabled}
}

// Enabled reports whether events are written.
func (s *Sink) Enabled() bool { return s != nil && s.enabled }

// Path returns the events file path.
func (s *Sink) Path() string { return filepath.Join(s.dir, EventsFile) }

// Emit writes a single event. It augments fields with RFC3339Nano time, the
// event name, and the run/turn IDs carried by ctx. Failures are reported on
// stderr and never returned; telemetry must not affect the run.
func (s *Sink) Emit(ctx context.Context, name string, fields map[string]any) {
	if !s.Enabled() {
		return
	}

	// Shallow copy so callers' maps aren't mutated.
	m := make(map[string]any, len(fields)+4)
	for k, v := range fields {
		m[k] = v
	}
	m["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	m["event"] = name
	if id, ok := RunIDFromContext(ctx); ok {
		m["run_id"] = id
	}
	if id, ok := TurnIDFromContext(ctx); ok {
		m["turn_id"] = id
	}

	b, err := json.Marshal(m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: marshal: %v\n", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: mkdir %s: %v\n", s.dir, err)
		return
	}
	path := s.Path()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: open %s: %v\n", path, err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(b, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: write %s: %v\n", path, err)
	}
}
