// Package httpserver exposes one streaming GET endpoint per registered
// shape. Errors before the first body byte surface as a JSON 5xx/4xx; once
// row bytes are flowing the status is already written, so failures drop the
// connection and the client detects truncation by the missing closing bracket.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docrow.io/row-export-backend/internal/orchestrator"
	"docrow.io/row-export-backend/internal/plan"
	"docrow.io/row-export-backend/internal/shape"
)

const correlationHeader = "X-Correlation-Id"

type server struct {
	svc    *orchestrator.Service
	logger *slog.Logger
}

// New returns the service handler, instrumented with otelhttp.
func New(svc *orchestrator.Service, logger *slog.Logger) http.Handler {
	s := &server{svc: svc, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /export/{shape}", s.export)
	mux.HandleFunc("GET /healthz", s.health)

	return otelhttp.NewHandler(mux, "row-export-backend")
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write([]byte(`{"status":"ok"}`))
}

// flushWriter pushes every driver flush through to the client so rows reach
// the wire at the row-batch cadence instead of net/http's own buffering.
type flushWriter struct {
	w http.ResponseWriter
	c *http.ResponseController
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err != nil {
		return n, err
	}
	if ferr := fw.c.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
		return n, ferr
	}
	return n, nil
}

func (s *server) export(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("shape")

	correlationID := r.Header.Get(correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	w.Header().Set(correlationHeader, correlationID)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	slog.DebugContext(r.Context(), "export stream requested",
		slog.String("shape", name),
		slog.String("correlation_id", correlationID))

	fw := flushWriter{w: w, c: http.NewResponseController(w)}
	res, err := s.svc.Stream(r.Context(), name, fw, correlationID)
	if err == nil {
		return
	}

	if errors.Is(err, context.Canceled) {
		if res.BytesOut > 0 {
			// The driver stopped without the closing bracket; drop the
			// connection so the body does not end like a complete response.
			panic(http.ErrAbortHandler)
		}
		// Canceled before the first byte; nothing useful to write.
		return
	}

	if res.BytesOut > 0 {
		// The status is on the wire; drop the connection instead of
		// pretending the body is complete.
		s.logger.ErrorContext(r.Context(), "stream failed mid-flight",
			slog.String("shape", name),
			slog.String("correlation_id", correlationID),
			slog.Int64("rows", res.Rows),
			slog.String("err", err.Error()))
		panic(http.ErrAbortHandler)
	}

	s.writeError(w, r, name, correlationID, err)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, name, correlationID string, err error) {
	status := http.StatusInternalServerError

	var descErr *shape.DescriptorError
	var mismatchErr *plan.SchemaMismatchError
	switch {
	case errors.Is(err, orchestrator.ErrUnknownShape):
		status = http.StatusNotFound
	case errors.As(err, &descErr), errors.As(err, &mismatchErr):
		status = http.StatusUnprocessableEntity
	}

	s.logger.ErrorContext(r.Context(), "export stream failed before first byte",
		slog.String("shape", name),
		slog.String("correlation_id", correlationID),
		slog.Int("status", status),
		slog.String("err", err.Error()))

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":          err.Error(),
		"correlation_id": correlationID,
	})
}
