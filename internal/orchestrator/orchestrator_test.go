package orchestrator

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"docrow.io/row-export-backend/internal/bootstrap"
	cfgpkg "docrow.io/row-export-backend/internal/config"
	"docrow.io/row-export-backend/internal/cursor"
	"docrow.io/row-export-backend/internal/plan"
	"docrow.io/row-export-backend/internal/shape"
	"docrow.io/row-export-backend/internal/stats"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeSvc(t *testing.T, cfg cfgpkg.Config, seedRows int) *Service {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, bootstrap.Provision(ctx, db, testLogger()))
	require.NoError(t, bootstrap.Seed(ctx, db, seedRows, testLogger()))

	svc, err := New(cfg, db, testLogger(),
		WithStatsPublisher(stats.NewJSONPublisher(io.Discard)))
	require.NoError(t, err)
	return svc
}

func defaultCfg() cfgpkg.Config {
	return cfgpkg.Config{
		RowBatchEventInterval:        1000,
		CommandTimeout:               5 * time.Second,
		ArrayElementFallbackToString: true,
		StatsWindow:                  time.Hour,
		MaxStatsQueue:                16,
	}
}

func TestStream_WritesDocumentsArray(t *testing.T) {
	svc := makeSvc(t, defaultCfg(), 3)
	require.NoError(t, svc.RegisterExport(bootstrap.DocumentsShape(), bootstrap.DocumentsQuery))

	buf := new(bytes.Buffer)
	res, err := svc.Stream(context.Background(), "documents", buf, "corr-1")
	require.NoError(t, err)
	require.EqualValues(t, 3, res.Rows)
	require.EqualValues(t, buf.Len(), res.BytesOut)

	var docs []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &docs))
	require.Len(t, docs, 3)
}

func TestStream_UnknownShape(t *testing.T) {
	svc := makeSvc(t, defaultCfg(), 0)

	_, err := svc.Stream(context.Background(), "nope", io.Discard, "corr-1")
	require.ErrorIs(t, err, ErrUnknownShape)
}

func TestStream_PlanCachedAcrossRequests(t *testing.T) {
	svc := makeSvc(t, defaultCfg(), 2)
	require.NoError(t, svc.RegisterExport(bootstrap.DocumentsShape(), bootstrap.DocumentsQuery))

	_, err := svc.Stream(context.Background(), "documents", io.Discard, "corr-1")
	require.NoError(t, err)
	require.Equal(t, 1, svc.Cache.Len())

	_, err = svc.Stream(context.Background(), "documents", io.Discard, "corr-2")
	require.NoError(t, err)
	require.Equal(t, 1, svc.Cache.Len())
}

func TestStream_StrictModeFailsOnMissingColumn(t *testing.T) {
	cfg := defaultCfg()
	cfg.StrictSchema = true
	svc := makeSvc(t, cfg, 1)

	sh := shape.New("broken",
		shape.Col("id", "Id", cursor.Int64),
		shape.Col("missing", "NoSuchColumn", cursor.String),
	)
	require.NoError(t, svc.RegisterExport(sh, `SELECT * FROM Documents`))

	buf := new(bytes.Buffer)
	res, err := svc.Stream(context.Background(), "broken", buf, "corr-1")

	var mismatch *plan.SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Zero(t, res.BytesOut, "strict failures happen before the first byte")
	require.Zero(t, buf.Len())
}

func TestRegisterExport_RejectsDuplicatesAndInvalid(t *testing.T) {
	svc := makeSvc(t, defaultCfg(), 0)

	require.NoError(t, svc.RegisterExport(bootstrap.DocumentsShape(), bootstrap.DocumentsQuery))
	require.Error(t, svc.RegisterExport(bootstrap.DocumentsShape(), bootstrap.DocumentsQuery))

	var derr *shape.DescriptorError
	err := svc.RegisterExport(shape.New("", shape.Col("id", "Id", cursor.Int64)), "SELECT 1")
	require.ErrorAs(t, err, &derr)
}

func TestStartClose_StatsLifecycle(t *testing.T) {
	svc := makeSvc(t, defaultCfg(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	// Second Start is a no-op until Close.
	svc.Start(ctx)

	closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second)
	defer closeCancel()
	require.NoError(t, svc.Close(closeCtx))
}
