package publish

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	"github.com/goccy/go-json"
)

// Schema creates the table PostgresSink writes and lookup.PostgresStore reads.
const Schema = `CREATE TABLE IF NOT EXISTS related_posts (
    post_id    TEXT PRIMARY KEY,
    record     JSONB NOT NULL,
    run_id     TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// TxRunner is satisfied by *postgres.Client.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// PostgresSink upserts every result keyed by post id and, once the run is
// complete, removes rows left over from earlier runs.
type PostgresSink struct {
	db     TxRunner
	logger *slog.Logger
}

func NewPostgresSink(db TxRunner) *PostgresSink {
	return &PostgresSink{
		db:     db,
		logger: slog.Default().With("component", "postgres-sink"),
	}
}

func (s *PostgresSink) Name() string { return "postgres" }

// EnsureSchema creates the related_posts table if it does not exist.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, Schema)
		return err
	})
}

func (s *PostgresSink) Write(ctx context.Context, runID string, batch []post.RankedResult) error {
	if len(batch) == 0 {
		return nil
	}
	query, args, err := upsertQuery(runID, batch)
	if err != nil {
		return err
	}
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upserting %d related lists: %w", len(batch), err)
		}
		return nil
	})
}

func (s *PostgresSink) Finish(ctx context.Context, runID string, _ int) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM related_posts WHERE run_id <> $1`, runID)
		if err != nil {
			return fmt.Errorf("pruning stale rows: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			s.logger.Info("pruned stale related lists", "run_id", runID, "rows", n)
		}
		return nil
	})
}

// upsertQuery builds one multi-row INSERT ... ON CONFLICT statement. Ids
// repeated within a batch keep the last record, since PostgreSQL rejects a
// statement that updates the same row twice.
func upsertQuery(runID string, batch []post.RankedResult) (string, []any, error) {
	last := make(map[string]int, len(batch))
	for i := range batch {
		last[batch[i].ID] = i
	}

	var b strings.Builder
	b.WriteString(`INSERT INTO related_posts (post_id, record, run_id, updated_at) VALUES `)
	args := make([]any, 0, 3*len(last))
	n := 0
	for i := range batch {
		if last[batch[i].ID] != i {
			continue
		}
		record, err := json.Marshal(&batch[i])
		if err != nil {
			return "", nil, fmt.Errorf("marshaling %s: %w", batch[i].ID, err)
		}
		if n > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "($%d, $%d, $%d, NOW())", 3*n+1, 3*n+2, 3*n+3)
		args = append(args, batch[i].ID, record, runID)
		n++
	}
	b.WriteString(` ON CONFLICT (post_id) DO UPDATE SET record = EXCLUDED.record, run_id = EXCLUDED.run_id, updated_at = EXCLUDED.updated_at`)
	return b.String(), args, nil
}
