package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/johnwards/stagetrack/internal/domain"
)

// RunStore persists the migration run log: one row per batch, with every
// per-item outcome.
type RunStore interface {
	Record(ctx context.Context, run *domain.MigrationRun) (*domain.MigrationRun, error)
	Get(ctx context.Context, id int64) (*domain.MigrationRun, error)
	List(ctx context.Context, target domain.Stage, limit int) ([]domain.MigrationRun, error)
}

// SQLiteRunStore implements RunStore backed by SQLite.
type SQLiteRunStore struct {
	db *sql.DB
}

// NewSQLiteRunStore creates a new SQLiteRunStore.
func NewSQLiteRunStore(db *sql.DB) *SQLiteRunStore {
	return &SQLiteRunStore{db: db}
}

// Record inserts a run and returns it with its ID and timestamp set.
func (s *SQLiteRunStore) Record(ctx context.Context, run *domain.MigrationRun) (*domain.MigrationRun, error) {
	items := run.Items
	if items == nil {
		items = []domain.ItemResult{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal run items: %w", err)
	}

	ts := now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO migration_runs (source_stage, target_stage, actor_id, success_count, error_count, items, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(run.From), string(run.To), run.ActorID, run.SuccessCount, run.ErrorCount, string(itemsJSON), ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert migration run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	out := *run
	out.ID = id
	out.Items = items
	out.CreatedAt = ts
	return &out, nil
}

const runColumns = `id, source_stage, target_stage, actor_id, success_count, error_count, items, created_at`

func scanRun(sc scanner) (*domain.MigrationRun, error) {
	var run domain.MigrationRun
	var from, to, itemsJSON string
	if err := sc.Scan(&run.ID, &from, &to, &run.ActorID, &run.SuccessCount, &run.ErrorCount, &itemsJSON, &run.CreatedAt); err != nil {
		return nil, err
	}
	run.From = domain.Stage(from)
	run.To = domain.Stage(to)
	if err := json.Unmarshal([]byte(itemsJSON), &run.Items); err != nil {
		return nil, fmt.Errorf("unmarshal run items: %w", err)
	}
	return &run, nil
}

// Get retrieves a run by ID.
func (s *SQLiteRunStore) Get(ctx context.Context, id int64) (*domain.MigrationRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM migration_runs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("migration run %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get migration run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs, newest first. An empty target lists
// runs for every stage.
func (s *SQLiteRunStore) List(ctx context.Context, target domain.Stage, limit int) ([]domain.MigrationRun, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `SELECT ` + runColumns + ` FROM migration_runs`
	var args []any
	if target != "" {
		query += ` WHERE target_stage = ?`
		args = append(args, string(target))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list migration runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []domain.MigrationRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan migration run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return runs, nil
}
