package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"

	cfgpkg "docrow.io/row-export-backend/internal/config"
	"docrow.io/row-export-backend/internal/events"
	"docrow.io/row-export-backend/internal/plan"
	"docrow.io/row-export-backend/internal/shape"
	"docrow.io/row-export-backend/internal/stats"
	"docrow.io/row-export-backend/internal/stream"
)

const instrumentationName = "docrow.io/row-export-backend"

// Export names one streamable shape: the descriptor plus the query whose
// result set feeds it.
type Export struct {
	Shape *shape.Shape
	Query string
}

// Service holds all instance-scoped dependencies and metrics: the plan
// cache, the streaming driver, the event sink, the database handle, and the
// registered exports.
type Service struct {
	Cfg    cfgpkg.Config
	Logger *slog.Logger
	Tracer oteltrace.Tracer
	Meter  otelmetric.Meter

	// Metrics
	RowsStreamed     otelmetric.Int64Counter
	StreamsStarted   otelmetric.Int64Counter
	StreamsCompleted otelmetric.Int64Counter
	StreamsCanceled  otelmetric.Int64Counter
	StreamsFailed    otelmetric.Int64Counter
	PlanCacheHits    otelmetric.Int64Counter
	PlanCacheMisses  otelmetric.Int64Counter

	DB     *sql.DB
	Cache  *plan.Cache
	Driver *stream.Driver
	Stats  *stats.Aggregator

	eventSink events.Sink
	publisher stats.Publisher

	mu      sync.RWMutex
	exports map[string]Export

	statsCancel context.CancelFunc
}

// Option customizes Service construction.
type Option func(*Service) error

// WithEventSink adds an extra event sink alongside the defaults (useful for tests).
func WithEventSink(s events.Sink) Option {
	return func(svc *Service) error { svc.eventSink = s; return nil }
}

// WithStatsPublisher overrides the default stdout JSON stats publisher.
func WithStatsPublisher(p stats.Publisher) Option {
	return func(svc *Service) error { svc.publisher = p; return nil }
}

// New constructs a Service with instance-level instruments.
func New(cfg cfgpkg.Config, db *sql.DB, logger *slog.Logger, opts ...Option) (*Service, error) {
	s := &Service{
		Cfg:     cfg,
		DB:      db,
		Logger:  logger,
		Tracer:  otel.Tracer(instrumentationName),
		Meter:   otel.Meter(instrumentationName),
		Cache:   plan.NewCache(),
		exports: make(map[string]Export),
	}

	var err error
	if s.RowsStreamed, err = s.Meter.Int64Counter(
		"io.docrow.rows.streamed",
		otelmetric.WithDescription("The number of rows streamed by row-export-backend"),
		otelmetric.WithUnit("{row}"),
	); err != nil {
		return nil, err
	}

	if s.StreamsStarted, err = s.Meter.Int64Counter(
		"io.docrow.streams.started",
		otelmetric.WithDescription("The number of export streams started"),
		otelmetric.WithUnit("{stream}"),
	); err != nil {
		return nil, err
	}

	if s.StreamsCompleted, err = s.Meter.Int64Counter(
		"io.docrow.streams.completed",
		otelmetric.WithDescription("The number of export streams completed"),
		otelmetric.WithUnit("{stream}"),
	); err != nil {
		return nil, err
	}

	if s.StreamsCanceled, err = s.Meter.Int64Counter(
		"io.docrow.streams.canceled",
		otelmetric.WithDescription("The number of export streams canceled by the client"),
		otelmetric.WithUnit("{stream}"),
	); err != nil {
		return nil, err
	}

	if s.StreamsFailed, err = s.Meter.Int64Counter(
		"io.docrow.streams.failed",
		otelmetric.WithDescription("The number of export streams terminated by an error"),
		otelmetric.WithUnit("{stream}"),
	); err != nil {
		return nil, err
	}

	if s.PlanCacheHits, err = s.Meter.Int64Counter(
		"io.docrow.plancache.hits",
		otelmetric.WithDescription("Plan cache hits"),
		otelmetric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}

	if s.PlanCacheMisses, err = s.Meter.Int64Counter(
		"io.docrow.plancache.misses",
		otelmetric.WithDescription("Plan cache misses"),
		otelmetric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	// Default stats publisher to stdout JSON if not set
	if s.publisher == nil {
		s.publisher = stats.NewStdoutJSON()
	}

	// Event sink: slog + metric counters, plus whatever the options added.
	sinks := events.Multi{events.NewSlogSink(logger), &counterSink{svc: s}}
	if s.eventSink != nil {
		sinks = append(sinks, s.eventSink)
	}
	s.eventSink = sinks

	s.Driver = stream.NewDriver(cfg.RowBatchEventInterval, s.eventSink, logger)
	s.Stats = stats.New(cfg.StatsWindow, s.publisher, logger, cfg.MaxStatsQueue)

	return s, nil
}

// Start starts the service's internal components (the stats aggregator).
// It is safe to call more than once; subsequent calls are no-ops until Close.
func (s *Service) Start(ctx context.Context) {
	if s.Stats == nil || s.statsCancel != nil {
		return
	}

	ctx, span := s.Tracer.Start(ctx, "orchestrator.Start")
	defer span.End()

	s.Logger.DebugContext(ctx, "orchestrator.Start: begin")
	statsCtx, cancel := context.WithCancel(ctx)
	s.statsCancel = cancel
	s.Stats.Start(statsCtx)
	s.Logger.DebugContext(ctx, "orchestrator.Start: started stats aggregator", slog.Int("queue_len", s.Stats.QueueLen()))
}

// Close stops internal components and waits for the stats loop to drain.
func (s *Service) Close(ctx context.Context) error {
	ctx, span := s.Tracer.Start(ctx, "orchestrator.Close")
	defer span.End()

	s.Logger.DebugContext(ctx, "orchestrator.Close: begin")

	if s.statsCancel != nil {
		s.statsCancel()

		if s.Stats != nil {
			s.Stats.Stop(ctx)
		}

		s.statsCancel = nil
	}

	s.Logger.DebugContext(ctx, "orchestrator.Close: end")

	return nil
}

// RegisterExport validates and registers a shape with its backing query.
func (s *Service) RegisterExport(sh *shape.Shape, query string) error {
	if err := sh.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exports[sh.ID]; ok {
		return fmt.Errorf("export %q already registered", sh.ID)
	}
	s.exports[sh.ID] = Export{Shape: sh, Query: query}
	return nil
}

// Export looks up a registered export by shape id.
func (s *Service) Export(name string) (Export, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp, ok := s.exports[name]
	return exp, ok
}

// ExportNames lists registered shape ids.
func (s *Service) ExportNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.exports))
	for n := range s.exports {
		names = append(names, n)
	}
	return names
}

// counterSink maps event categories onto the service's OTel counters.
type counterSink struct {
	svc *Service
}

func (cs *counterSink) Emit(ctx context.Context, ev events.Event) {
	s := cs.svc
	attrs := otelmetric.WithAttributes(attribute.String("shape", ev.Shape))
	switch ev.Category {
	case events.StreamStart:
		s.StreamsStarted.Add(ctx, 1, attrs)
	case events.StreamComplete:
		s.StreamsCompleted.Add(ctx, 1, attrs)
		s.RowsStreamed.Add(ctx, ev.RowCount, attrs)
	case events.StreamCanceled:
		s.StreamsCanceled.Add(ctx, 1, attrs)
		s.RowsStreamed.Add(ctx, ev.RowCount, attrs)
	case events.StreamError:
		s.StreamsFailed.Add(ctx, 1, attrs)
		s.RowsStreamed.Add(ctx, ev.RowCount, attrs)
	case events.PlanCacheHit:
		s.PlanCacheHits.Add(ctx, 1, attrs)
	case events.PlanCacheMiss:
		s.PlanCacheMisses.Add(ctx, 1, attrs)
	}
}
