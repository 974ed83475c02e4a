// Package bootstrap provisions the development database: the example
// Documents table and a deterministic synthetic data set. It is a startup
// concern only; nothing here runs on the request path.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const createDocuments = `
CREATE TABLE IF NOT EXISTS Documents (
	Id           INTEGER PRIMARY KEY,
	DocumentId   UUID,
	FileName     TEXT,
	MimeType     TEXT,
	SizeBytes    BIGINT,
	PageCount    SMALLINT,
	IsArchived   BOOLEAN,
	LoanNumber   TEXT,
	LoanAmount   DECIMAL(18,2),
	BorrowerName TEXT,
	PropertyCity TEXT,
	CreatedAt    TIMESTAMP,
	CreatedBy    TEXT,
	UpdatedAt    TIMESTAMP,
	UpdatedBy    TEXT,
	Tag_01 TEXT, Tag_02 TEXT, Tag_03 TEXT, Tag_04 TEXT,
	Tag_05 TEXT, Tag_06 TEXT, Tag_07 TEXT, Tag_08 TEXT,
	Comment_01 TEXT, Comment_02 TEXT, Comment_03 TEXT, Comment_04 TEXT
)`

const insertBatchSize = 100

var (
	mimeTypes = []string{"application/pdf", "image/tiff", "application/msword"}
	cities    = []string{"Austin", "Denver", "Portland", "Raleigh", "Tucson"}
	borrowers = []string{"Ada Byrne", "Felix Okafor", "Mina Park", "Jonas Weiss"}
	users     = []string{"importer", "reviewer", "ops"}
	tagWords  = []string{"appraisal", "closing", "income", "insurance", "title", "escrow"}
)

// Provision creates the Documents table if it does not exist.
func Provision(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	logger.DebugContext(ctx, "provisioning Documents table")
	_, err := db.ExecContext(ctx, createDocuments)
	return err
}

// Seed inserts n deterministic synthetic documents in parallel batches. Rows
// are keyed by Id, so reseeding an already-populated database is a no-op.
func Seed(ctx context.Context, db *sql.DB, n int, logger *slog.Logger) error {
	if n <= 0 {
		return nil
	}

	var existing int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM Documents`).Scan(&existing); err != nil {
		return err
	}
	if existing >= n {
		logger.DebugContext(ctx, "seed skipped, table already populated", slog.Int("rows", existing))
		return nil
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for lo := existing; lo < n; lo += insertBatchSize {
		hi := lo + insertBatchSize
		if hi > n {
			hi = n
		}
		g.Go(func() error { return insertBatch(ctx, db, lo, hi) })
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.InfoContext(ctx, "seeded synthetic documents",
		slog.Int("rows", n-existing),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

func insertBatch(ctx context.Context, db *sql.DB, lo, hi int) error {
	const cols = 27
	var sb strings.Builder
	sb.WriteString(`INSERT OR IGNORE INTO Documents (
		Id, DocumentId, FileName, MimeType, SizeBytes, PageCount, IsArchived,
		LoanNumber, LoanAmount, BorrowerName, PropertyCity,
		CreatedAt, CreatedBy, UpdatedAt, UpdatedBy,
		Tag_01, Tag_02, Tag_03, Tag_04, Tag_05, Tag_06, Tag_07, Tag_08,
		Comment_01, Comment_02, Comment_03, Comment_04) VALUES `)

	args := make([]any, 0, (hi-lo)*cols)
	row := "(" + strings.TrimSuffix(strings.Repeat("?,", cols), ",") + ")"
	for id := lo; id < hi; id++ {
		if id > lo {
			sb.WriteString(",")
		}
		sb.WriteString(row)
		args = append(args, documentRow(id)...)
	}

	_, err := db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return fmt.Errorf("seed batch [%d,%d): %w", lo, hi, err)
	}
	return nil
}

// documentRow builds one synthetic document. Seeded per id, so the data set
// is stable across runs and processes.
func documentRow(id int) []any {
	rng := rand.New(rand.NewSource(int64(id)))
	docID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("document-%d", id)))
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Hour)
	updated := created.Add(time.Duration(rng.Intn(72)) * time.Hour)

	args := []any{
		id + 1,
		docID.String(),
		fmt.Sprintf("doc-%06d.pdf", id+1),
		mimeTypes[rng.Intn(len(mimeTypes))],
		int64(1024 + rng.Intn(8*1024*1024)),
		1 + rng.Intn(200),
		rng.Intn(10) == 0,
		fmt.Sprintf("LN-%07d", 1000000+id),
		fmt.Sprintf("%d.%02d", 50000+rng.Intn(900000), rng.Intn(100)),
		borrowers[rng.Intn(len(borrowers))],
		cities[rng.Intn(len(cities))],
		created.Format(time.RFC3339),
		users[rng.Intn(len(users))],
		updated.Format(time.RFC3339),
		users[rng.Intn(len(users))],
	}

	for i := 0; i < 8; i++ {
		if i < 1+rng.Intn(4) {
			args = append(args, tagWords[rng.Intn(len(tagWords))])
		} else {
			args = append(args, nil)
		}
	}
	for i := 0; i < 4; i++ {
		if i < rng.Intn(3) {
			args = append(args, fmt.Sprintf("note %d for document %d", i+1, id+1))
		} else {
			args = append(args, nil)
		}
	}
	return args
}
