package events

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
)

// JSONSink writes events as single-line JSON to an io.Writer.
type JSONSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONSink creates a JSON sink writing to the provided writer.
func NewJSONSink(w io.Writer) *JSONSink { return &JSONSink{w: w} }

// NewStdoutJSON returns a JSON sink that writes to os.Stdout.
func NewStdoutJSON() *JSONSink { return &JSONSink{w: os.Stdout} }

// Emit marshals the event as JSON and writes it with a trailing newline.
// Concurrent streams share one sink, so the write is serialized.
func (s *JSONSink) Emit(_ context.Context, ev Event) {
	type line struct {
		Event
		Err string `json:"err,omitempty"`
	}
	l := line{Event: ev}
	if ev.Err != nil {
		l.Err = ev.Err.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.w)
	// Keep compact output; callers can wrap the writer if they want pretty printing.
	_ = enc.Encode(l)
}
