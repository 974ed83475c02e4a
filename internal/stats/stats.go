// Package stats performs windowed accounting of completed streams per shape
// and publishes snapshots to a Publisher at each window boundary.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// StreamStat is a lightweight ingestion item describing one finished stream.
type StreamStat struct {
	Shape    string
	Rows     int64
	Canceled bool
	Failed   bool
}

// Aggregator counts stream outcomes per shape inside a tumbling window.
type Aggregator struct {
	in        chan StreamStat
	window    time.Duration
	publisher Publisher
	logger    *slog.Logger

	nowFn func() time.Time

	// Single-goroutine owned fields
	shapes    map[string]ShapeStats
	totalRows uint64

	done chan struct{}
}

func New(window time.Duration, p Publisher, logger *slog.Logger, maxQueue int) *Aggregator {
	if maxQueue < 0 {
		maxQueue = 0
	}

	a := &Aggregator{
		in:        make(chan StreamStat, maxQueue),
		window:    window,
		publisher: p,
		logger:    logger,
		shapes:    make(map[string]ShapeStats, 8),
		done:      make(chan struct{}),
	}
	a.nowFn = time.Now

	return a
}

// Record attempts to add a finished-stream stat without blocking. Returns
// false if the queue is full; stats are advisory and may be dropped.
func (a *Aggregator) Record(st StreamStat) bool {
	select {
	case a.in <- st:
		return true
	default:
		return false
	}
}

// Start begins the aggregation loop.
func (a *Aggregator) Start(ctx context.Context) {
	go func() {
		defer close(a.done)

		ticker := time.NewTicker(a.window)
		defer ticker.Stop()

		windowStart := a.nowFn().UnixMilli()

		for {
			select {
			case <-ctx.Done():
				a.flush(context.Background(), windowStart, a.nowFn().UnixMilli())
				return
			case st := <-a.in:
				s := a.shapes[st.Shape]
				s.Streams++
				s.Rows += uint64(st.Rows)
				if st.Canceled {
					s.Canceled++
				}
				if st.Failed {
					s.Failed++
				}
				a.shapes[st.Shape] = s
				a.totalRows += uint64(st.Rows)
			case <-ticker.C:
				windowEnd := a.nowFn().UnixMilli()
				a.flush(context.Background(), windowStart, windowEnd)
				windowStart = windowEnd
			}
		}
	}()
}

// Stop waits for the loop to finish; the caller cancels the Start context.
func (a *Aggregator) Stop(ctx context.Context) {
	select {
	case <-a.done:
		return
	case <-ctx.Done():
		return
	}
}

func (a *Aggregator) flush(ctx context.Context, windowStart, windowEnd int64) {
	if len(a.shapes) == 0 && a.totalRows == 0 {
		return
	}
	snapshotShapes := make(map[string]ShapeStats, len(a.shapes))
	for k, v := range a.shapes {
		snapshotShapes[k] = v
	}

	snap := Snapshot{
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Shapes:      snapshotShapes,
		TotalRows:   a.totalRows,
	}

	if err := a.publisher.Publish(ctx, snap); err != nil {
		a.logger.Error(
			"failed to publish stats snapshot",
			slog.String("err", err.Error()),
			slog.Int64("window_start", windowStart),
			slog.Int64("window_end", windowEnd),
			slog.Any("total_rows", a.totalRows),
			slog.String("publisher", fmt.Sprintf("%T", a.publisher)),
		)
		// Do not reset counts on failed publish to avoid losing data.
		// We'll attempt to publish combined data on the next flush.
		return
	}

	// Reset on successful publish
	a.shapes = make(map[string]ShapeStats, 8)
	a.totalRows = 0
}

// QueueLen returns the current queue length; can be observed for metrics.
func (a *Aggregator) QueueLen() int { return len(a.in) }
