package stats

import (
	"context"
	"encoding/json"
	"io"
	"os"
)

// ShapeStats accumulates one shape's activity inside a window.
type ShapeStats struct {
	Streams  uint64 `json:"streams"`
	Rows     uint64 `json:"rows"`
	Canceled uint64 `json:"canceled"`
	Failed   uint64 `json:"failed"`
}

// Snapshot describes the data emitted at the end of a window.
type Snapshot struct {
	WindowStart int64                 `json:"window_start"`
	WindowEnd   int64                 `json:"window_end"`
	Shapes      map[string]ShapeStats `json:"shapes"`
	TotalRows   uint64                `json:"total_rows"`
}

// Publisher publishes per-window snapshots.
type Publisher interface {
	Publish(ctx context.Context, s Snapshot) error
}

// JSONPublisher writes snapshots as single-line JSON to an io.Writer.
type JSONPublisher struct {
	w io.Writer
}

// NewJSONPublisher creates a JSON publisher writing to the provided writer.
func NewJSONPublisher(w io.Writer) *JSONPublisher { return &JSONPublisher{w: w} }

// NewStdoutJSON returns a JSON publisher that writes to os.Stdout.
func NewStdoutJSON() *JSONPublisher { return &JSONPublisher{w: os.Stdout} }

// Publish marshals the snapshot as JSON and writes it with a trailing newline.
func (p *JSONPublisher) Publish(_ context.Context, snap Snapshot) error {
	enc := json.NewEncoder(p.w)
	// Keep compact output; callers can wrap the writer if they want pretty printing.
	return enc.Encode(snap)
}
