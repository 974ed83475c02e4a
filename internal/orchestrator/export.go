package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"docrow.io/row-export-backend/internal/cursor"
	"docrow.io/row-export-backend/internal/plan"
	"docrow.io/row-export-backend/internal/stats"
	"docrow.io/row-export-backend/internal/stream"
)

// ErrUnknownShape is returned when a stream is requested for an unregistered shape.
var ErrUnknownShape = errors.New("unknown shape")

// Stream runs the registered export's query and streams the projected JSON
// array to w. The command timeout bounds the whole stream; plan compilation
// and the query happen before the first byte is written, so every error up to
// that point is still safe to surface as a status code.
func (s *Service) Stream(ctx context.Context, name string, w io.Writer, correlationID string) (stream.Result, error) {
	ctx, span := s.Tracer.Start(ctx, "orchestrator.Stream")
	defer span.End()
	span.SetAttributes(
		attribute.String("shape", name),
		attribute.String("correlation_id", correlationID),
	)

	exp, ok := s.Export(name)
	if !ok {
		return stream.Result{}, fmt.Errorf("%w: %q", ErrUnknownShape, name)
	}

	if s.Cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Cfg.CommandTimeout)
		defer cancel()
	}

	rows, err := s.DB.QueryContext(ctx, exp.Query)
	if err != nil {
		return stream.Result{}, &stream.CursorError{Err: err}
	}

	cur, err := cursor.FromSQL(rows)
	if err != nil {
		rows.Close()
		return stream.Result{}, &stream.CursorError{Err: err}
	}

	opts := plan.Options{
		Strict:                s.Cfg.StrictSchema,
		ArrayFallbackToString: s.Cfg.ArrayElementFallbackToString,
		CorrelationID:         correlationID,
	}
	pl, err := s.Cache.GetOrCompile(ctx, exp.Shape, cur.Schema(), opts, s.eventSink)
	if err != nil {
		cur.Close()
		return stream.Result{}, err
	}

	res, err := s.Driver.Stream(ctx, pl, cur, w, correlationID)

	st := stats.StreamStat{Shape: name, Rows: res.Rows}
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		st.Canceled = true
	default:
		st.Failed = true
	}
	if s.Stats != nil && !s.Stats.Record(st) {
		s.Logger.DebugContext(ctx, "stats queue full, stat dropped", slog.String("shape", name))
	}

	return res, err
}
