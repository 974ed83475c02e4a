package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"docrow.io/row-export-backend/internal/bootstrap"
	cfgpkg "docrow.io/row-export-backend/internal/config"
	"docrow.io/row-export-backend/internal/orchestrator"
	"docrow.io/row-export-backend/internal/stats"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() cfgpkg.Config {
	return cfgpkg.Config{
		RowBatchEventInterval:        100,
		CommandTimeout:               5 * time.Second,
		ArrayElementFallbackToString: true,
		StatsWindow:                  time.Hour,
		MaxStatsQueue:                16,
	}
}

func startService(t *testing.T, seedRows int) *orchestrator.Service {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, bootstrap.Provision(ctx, db, testLogger()))
	require.NoError(t, bootstrap.Seed(ctx, db, seedRows, testLogger()))

	svc, err := orchestrator.New(testConfig(), db, testLogger(),
		orchestrator.WithStatsPublisher(stats.NewJSONPublisher(io.Discard)))
	require.NoError(t, err)
	require.NoError(t, svc.RegisterExport(bootstrap.DocumentsShape(), bootstrap.DocumentsQuery))
	return svc
}

func TestExport_StreamsDocuments(t *testing.T) {
	svc := startService(t, 5)
	srv := httptest.NewServer(New(svc, testLogger()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/export/documents")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	require.NotEmpty(t, resp.Header.Get("X-Correlation-Id"))

	var docs []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&docs))
	require.Len(t, docs, 5)

	first := docs[0]
	require.EqualValues(t, 1, first["id"])
	require.Contains(t, first, "documentId")
	require.Contains(t, first, "fileName")

	// Nested loan object.
	loan, ok := first["loan"].(map[string]any)
	require.True(t, ok, "loan must be a nested object")
	require.Contains(t, loan, "number")
	require.Contains(t, loan, "amount")

	// Flattened audit group lands on the top level.
	require.Contains(t, first, "createdAt")
	require.Contains(t, first, "updatedBy")

	// Array patterns collapse the Tag_/Comment_ groups.
	tags, ok := first["tags"].([]any)
	require.True(t, ok, "tags must be an array")
	require.Len(t, tags, 8)
	comments, ok := first["comments"].([]any)
	require.True(t, ok, "comments must be an array")
	require.Len(t, comments, 4)
}

func TestExport_EchoesCorrelationID(t *testing.T) {
	svc := startService(t, 1)
	srv := httptest.NewServer(New(svc, testLogger()))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/export/documents", nil)
	require.NoError(t, err)
	req.Header.Set("X-Correlation-Id", "my-corr-id")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "my-corr-id", resp.Header.Get("X-Correlation-Id"))
}

func TestExport_UnknownShapeIs404(t *testing.T) {
	svc := startService(t, 1)
	srv := httptest.NewServer(New(svc, testLogger()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/export/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Contains(t, body["error"], "unknown shape")
	require.NotEmpty(t, body["correlation_id"])
}

func TestExport_EmptyTableYieldsEmptyArray(t *testing.T) {
	svc := startService(t, 0)
	srv := httptest.NewServer(New(svc, testLogger()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/export/documents")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "[]", string(body))
}

func TestHealthz(t *testing.T) {
	svc := startService(t, 0)
	srv := httptest.NewServer(New(svc, testLogger()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
