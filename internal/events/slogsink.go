package events

import (
	"context"
	"log/slog"
)

// SlogSink records events through a *slog.Logger. stream-start and
// stream-complete log at info; stream-canceled and the schema events
// (unsupported-type, column-not-found, type-coerced, shared-column) at warn;
// stream-error at error; row-batch, plan-cache hit/miss and
// empty-array-pattern stay at debug so steady-state streams are quiet by
// default.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink logging to the provided logger.
func NewSlogSink(logger *slog.Logger) *SlogSink { return &SlogSink{logger: logger} }

func (s *SlogSink) Emit(ctx context.Context, ev Event) {
	attrs := []any{
		slog.String("correlation_id", ev.CorrelationID),
		slog.String("shape", ev.Shape),
		slog.Int64("row_count", ev.RowCount),
		slog.Duration("elapsed", ev.Elapsed),
	}
	if ev.Column != "" {
		attrs = append(attrs, slog.String("column", ev.Column))
	}
	if ev.TypeName != "" {
		attrs = append(attrs, slog.String("type", ev.TypeName))
	}
	if ev.Err != nil {
		attrs = append(attrs, slog.String("err", ev.Err.Error()))
	}

	msg := string(ev.Category)
	switch ev.Category {
	case StreamError:
		s.logger.ErrorContext(ctx, msg, attrs...)
	case UnsupportedType, ColumnNotFound, TypeCoerced, SharedColumn, StreamCanceled:
		s.logger.WarnContext(ctx, msg, attrs...)
	case RowBatch, PlanCacheHit, PlanCacheMiss, EmptyArrayPattern:
		s.logger.DebugContext(ctx, msg, attrs...)
	default:
		s.logger.InfoContext(ctx, msg, attrs...)
	}
}
