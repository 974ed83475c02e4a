// Package stream drives a compiled plan over a row cursor, writing the outer
// JSON array, honoring cooperative cancellation, and guaranteeing cursor
// release on every exit path. Backpressure is inherited from the downstream
// writer: a stalled flush stalls the read loop.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"

	"docrow.io/row-export-backend/internal/cursor"
	"docrow.io/row-export-backend/internal/events"
	"docrow.io/row-export-backend/internal/plan"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CursorError wraps a failure reading from the underlying cursor.
type CursorError struct{ Err error }

func (e *CursorError) Error() string { return fmt.Sprintf("cursor: %v", e.Err) }
func (e *CursorError) Unwrap() error { return e.Err }

// WriterError wraps a failure writing to the downstream sink.
type WriterError struct{ Err error }

func (e *WriterError) Error() string { return fmt.Sprintf("writer: %v", e.Err) }
func (e *WriterError) Unwrap() error { return e.Err }

// Result reports what a stream managed to put on the wire. BytesOut counts
// bytes actually flushed downstream; the HTTP layer uses it to decide between
// a clean 5xx and dropping the connection.
type Result struct {
	Rows     int64
	BytesOut int64
}

const (
	// DefaultBatchInterval is the row-batch event cadence.
	DefaultBatchInterval = 5000
	// flushThreshold bounds the stream buffer between batch flushes.
	flushThreshold = 32 * 1024
	// streamBufSize is the initial jsoniter stream buffer size.
	streamBufSize = 4096
)

// Driver executes plans against cursors. One driver serves all requests; all
// per-request state lives on the stack of Stream.
type Driver struct {
	batchInterval int64
	sink          events.Sink
	logger        *slog.Logger
}

// NewDriver creates a driver emitting lifecycle events to sink. A
// non-positive batchInterval falls back to DefaultBatchInterval.
func NewDriver(batchInterval int, sink events.Sink, logger *slog.Logger) *Driver {
	if batchInterval <= 0 {
		batchInterval = DefaultBatchInterval
	}
	if sink == nil {
		sink = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{batchInterval: int64(batchInterval), sink: sink, logger: logger}
}

// countingWriter tracks how many bytes reached the downstream writer.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// Stream writes the full JSON array for the cursor to w. The driver owns the
// cursor from this point and releases it on every return path, after a final
// flush so complete rows are never left buffered.
//
// Cancellation is observed before each cursor advance and terminates the
// stream without the closing bracket once any row bytes are out, so clients
// can detect truncation.
func (d *Driver) Stream(ctx context.Context, p *plan.Plan, cur cursor.Cursor, w io.Writer, correlationID string) (res Result, err error) {
	start := time.Now()
	cw := &countingWriter{w: w}
	out := jsoniter.NewStream(json, cw, streamBufSize)

	defer func() {
		if cerr := cur.Close(); cerr != nil {
			d.logger.WarnContext(ctx, "cursor release failed",
				slog.String("correlation_id", correlationID),
				slog.String("err", cerr.Error()))
			if err == nil {
				err = &CursorError{Err: cerr}
			}
		}
		res.BytesOut = cw.n
	}()

	d.emit(ctx, events.StreamStart, correlationID, p.ShapeID, 0, start, nil)

	scratch := p.Scratch()
	defer p.Release(scratch)

	out.WriteArrayStart()

	var rows int64
	for {
		if ctx.Err() != nil {
			// Complete rows only: the buffer is flushed, the bracket is not.
			if rows > 0 {
				out.Flush()
			}
			res.Rows = rows
			cause := context.Cause(ctx)
			if errors.Is(cause, context.DeadlineExceeded) {
				// A timeout is an error like any other, not a cooperative cancel.
				return d.fail(ctx, res, correlationID, p.ShapeID, rows, start, &CursorError{Err: cause})
			}
			d.emit(ctx, events.StreamCanceled, correlationID, p.ShapeID, rows, start, nil)
			return res, cause
		}
		if !cur.Advance() {
			break
		}
		if rows > 0 {
			out.WriteMore()
		}
		plan.EmitRow(p, cur, out, *scratch)
		rows++

		if rows%d.batchInterval == 0 {
			if ferr := d.flush(out); ferr != nil {
				res.Rows = rows
				return d.fail(ctx, res, correlationID, p.ShapeID, rows, start, &WriterError{Err: ferr})
			}
			d.emit(ctx, events.RowBatch, correlationID, p.ShapeID, rows, start, nil)
		} else if out.Buffered() > flushThreshold {
			if ferr := d.flush(out); ferr != nil {
				res.Rows = rows
				return d.fail(ctx, res, correlationID, p.ShapeID, rows, start, &WriterError{Err: ferr})
			}
		}
	}
	res.Rows = rows

	if cerr := cur.Err(); cerr != nil {
		if errors.Is(cerr, context.Canceled) {
			if rows > 0 {
				out.Flush()
			}
			d.emit(ctx, events.StreamCanceled, correlationID, p.ShapeID, rows, start, nil)
			return res, cerr
		}
		out.Flush()
		return d.fail(ctx, res, correlationID, p.ShapeID, rows, start, &CursorError{Err: cerr})
	}

	out.WriteArrayEnd()
	if ferr := d.flush(out); ferr != nil {
		return d.fail(ctx, res, correlationID, p.ShapeID, rows, start, &WriterError{Err: ferr})
	}

	d.emit(ctx, events.StreamComplete, correlationID, p.ShapeID, rows, start, nil)
	return res, nil
}

// flush pushes the stream buffer downstream and surfaces the first error the
// stream has seen, including errors latched by earlier buffered writes.
func (d *Driver) flush(out *jsoniter.Stream) error {
	if err := out.Flush(); err != nil {
		return err
	}
	return out.Error
}

func (d *Driver) fail(ctx context.Context, res Result, correlationID, shapeID string, rows int64, start time.Time, ferr error) (Result, error) {
	d.emit(ctx, events.StreamError, correlationID, shapeID, rows, start, ferr)
	return res, ferr
}

func (d *Driver) emit(ctx context.Context, cat events.Category, correlationID, shapeID string, rows int64, start time.Time, err error) {
	d.sink.Emit(ctx, events.Event{
		Category:      cat,
		CorrelationID: correlationID,
		Shape:         shapeID,
		RowCount:      rows,
		Elapsed:       time.Since(start),
		Err:           err,
	})
}
