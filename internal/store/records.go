package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/johnwards/stagetrack/internal/domain"
	"github.com/johnwards/stagetrack/internal/pipeline"
)

// ErrReferenced is returned when deleting a record that a downstream stage
// still points at through its lineage column.
var ErrReferenced = errors.New("record is referenced by a downstream stage")

// RecordStore defines persistence for stage records. Get, Insert and Update
// are the generic CRUD surface; Candidates, Claim and FindByLineage are the
// primitives the migration engine builds on, and InTx groups them into one
// atomic unit.
type RecordStore interface {
	Get(ctx context.Context, stage domain.Stage, id int64) (*domain.Record, error)
	Insert(ctx context.Context, rec *domain.Record) (*domain.Record, error)
	Update(ctx context.Context, stage domain.Stage, id int64, p domain.Patch) (*domain.Record, error)
	List(ctx context.Context, stage domain.Stage, opts domain.ListOpts) (*domain.RecordPage, error)
	Delete(ctx context.Context, stage domain.Stage, id int64) error
	Candidates(ctx context.Context, stage domain.Stage) ([]*domain.Record, error)
	Claim(ctx context.Context, stage domain.Stage, id int64) (bool, error)
	FindByLineage(ctx context.Context, stage domain.Stage, sourceID int64) (*domain.Record, error)
	InTx(ctx context.Context, fn func(RecordStore) error) error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteRecordStore implements RecordStore backed by SQLite. One table per
// stage; the column layout comes from the stage schema.
type SQLiteRecordStore struct {
	db *sql.DB
	q  querier
}

// NewSQLiteRecordStore creates a new SQLiteRecordStore.
func NewSQLiteRecordStore(db *sql.DB) *SQLiteRecordStore {
	return &SQLiteRecordStore{db: db, q: db}
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func columns(s *pipeline.Schema) []string {
	cols := []string{"id"}
	if s.LineageColumn != "" {
		cols = append(cols, s.LineageColumn)
	}
	cols = append(cols, "status")
	if s.FlagColumn != "" {
		cols = append(cols, s.FlagColumn, s.FlagAtColumn())
	}
	for _, f := range s.Fields {
		cols = append(cols, f.Name)
	}
	return append(cols, "created_by", "updated_by", "created_at", "updated_at")
}

func selectFrom(s *pipeline.Schema) string {
	return "SELECT " + strings.Join(columns(s), ", ") + " FROM " + s.Table
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner, s *pipeline.Schema) (*domain.Record, error) {
	rec := &domain.Record{Stage: s.Stage, Fields: make(map[string]any, len(s.Fields))}

	var lineage sql.NullInt64
	var migratedAt sql.NullString
	dest := []any{&rec.ID}
	if s.LineageColumn != "" {
		dest = append(dest, &lineage)
	}
	dest = append(dest, &rec.Status)
	if s.FlagColumn != "" {
		dest = append(dest, &rec.Migrated, &migratedAt)
	}

	holders := make([]any, len(s.Fields))
	for i, f := range s.Fields {
		switch f.Kind {
		case domain.KindInt:
			holders[i] = new(int64)
		case domain.KindBool:
			holders[i] = new(bool)
		default:
			holders[i] = new(string)
		}
	}
	dest = append(dest, holders...)
	dest = append(dest, &rec.CreatedBy, &rec.UpdatedBy, &rec.CreatedAt, &rec.UpdatedAt)

	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}

	if lineage.Valid {
		id := lineage.Int64
		rec.SourceID = &id
	}
	if migratedAt.Valid {
		rec.MigratedAt = migratedAt.String
	}
	for i, f := range s.Fields {
		switch h := holders[i].(type) {
		case *int64:
			rec.Fields[f.Name] = *h
		case *bool:
			rec.Fields[f.Name] = *h
		case *string:
			if f.Kind != domain.KindDecimal {
				rec.Fields[f.Name] = *h
				continue
			}
			d, err := decimal.NewFromString(*h)
			if err != nil {
				return nil, fmt.Errorf("parse %s.%s: %w", s.Table, f.Name, err)
			}
			rec.Fields[f.Name] = d
		}
	}
	return rec, nil
}

// dbValue converts a normalized field value into a SQLite argument.
func dbValue(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return d.String()
	}
	return v
}

func (s *SQLiteRecordStore) queryRecords(ctx context.Context, schema *pipeline.Schema, query string, args ...any) ([]*domain.Record, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", schema.Table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows, schema)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", schema.Table, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// Get retrieves a single record by ID.
func (s *SQLiteRecordStore) Get(ctx context.Context, stage domain.Stage, id int64) (*domain.Record, error) {
	schema, err := pipeline.SchemaFor(stage)
	if err != nil {
		return nil, err
	}

	rec, err := scanRecord(s.q.QueryRowContext(ctx, selectFrom(schema)+" WHERE id = ?", id), schema)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s %d: %w", stage, id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s %d: %w", stage, id, err)
	}
	return rec, nil
}

// Insert creates a new record. Missing payload fields take their kind's
// zero; an empty status becomes the stage's initial status. The migration
// flag always starts false.
func (s *SQLiteRecordStore) Insert(ctx context.Context, rec *domain.Record) (*domain.Record, error) {
	schema, err := pipeline.SchemaFor(rec.Stage)
	if err != nil {
		return nil, err
	}

	fields, err := schema.Normalize(rec.Fields)
	if err != nil {
		return nil, err
	}
	payload := schema.Defaults()
	for k, v := range fields {
		payload[k] = v
	}

	status := rec.Status
	if status == "" {
		status = schema.InitialStatusFor(payload)
	}
	if !schema.ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q is not a %s status", domain.ErrInvalidStatus, status, rec.Stage)
	}

	ts := now()
	cols := []string{"status"}
	args := []any{status}
	if rec.SourceID != nil {
		if schema.LineageColumn == "" {
			return nil, fmt.Errorf("%w: %s records have no upstream stage", domain.ErrInvalidField, rec.Stage)
		}
		cols = append(cols, schema.LineageColumn)
		args = append(args, *rec.SourceID)
	}
	for _, f := range schema.Fields {
		cols = append(cols, f.Name)
		args = append(args, dbValue(payload[f.Name]))
	}
	cols = append(cols, "created_by", "updated_by", "created_at", "updated_at")
	args = append(args, rec.CreatedBy, rec.CreatedBy, ts, ts)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?%s)",
		schema.Table, strings.Join(cols, ", "), strings.Repeat(", ?", len(cols)-1))
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		if rec.SourceID != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%s already has a %s: %w", schema.LineageColumn, rec.Stage, domain.ErrAlreadyMigrated)
		}
		return nil, fmt.Errorf("insert %s: %w", rec.Stage, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, rec.Stage, id)
}

// Update applies a partial payload and/or status change. Lineage and the
// migration flag are never touched here.
func (s *SQLiteRecordStore) Update(ctx context.Context, stage domain.Stage, id int64, p domain.Patch) (*domain.Record, error) {
	schema, err := pipeline.SchemaFor(stage)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, stage, id); err != nil {
		return nil, err
	}

	fields, err := schema.Normalize(p.Fields)
	if err != nil {
		return nil, err
	}
	if p.Status != "" && !schema.ValidStatus(p.Status) {
		return nil, fmt.Errorf("%w: %q is not a %s status", domain.ErrInvalidStatus, p.Status, stage)
	}

	var sets []string
	var args []any
	for _, f := range schema.Fields {
		v, ok := fields[f.Name]
		if !ok {
			continue
		}
		sets = append(sets, f.Name+" = ?")
		args = append(args, dbValue(v))
	}
	if p.Status != "" {
		sets = append(sets, "status = ?")
		args = append(args, p.Status)
	}
	sets = append(sets, "updated_by = ?", "updated_at = ?")
	args = append(args, p.Actor, now(), id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", schema.Table, strings.Join(sets, ", "))
	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update %s %d: %w", stage, id, err)
	}
	return s.Get(ctx, stage, id)
}

// List returns a page of records ordered by id. Without a status filter,
// cancelled records are left out of Results; the first page carries the
// most recently updated CancelledLimit of them in Cancelled instead.
func (s *SQLiteRecordStore) List(ctx context.Context, stage domain.Stage, opts domain.ListOpts) (*domain.RecordPage, error) {
	schema, err := pipeline.SchemaFor(stage)
	if err != nil {
		return nil, err
	}
	if opts.Status != "" && !schema.ValidStatus(opts.Status) {
		return nil, fmt.Errorf("%w: %q is not a %s status", domain.ErrInvalidStatus, opts.Status, stage)
	}

	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}
	if opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}

	query := selectFrom(schema) + " WHERE id > ?"
	args := []any{opts.After}
	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, opts.Status)
	} else {
		query += " AND status != ?"
		args = append(args, domain.StatusCancelled)
	}
	// Fetch one extra to determine if there is a next page.
	query += " ORDER BY id ASC LIMIT ?"
	args = append(args, opts.Limit+1)

	results, err := s.queryRecords(ctx, schema, query, args...)
	if err != nil {
		return nil, err
	}

	page := &domain.RecordPage{Results: results}
	if len(page.Results) > opts.Limit {
		page.HasMore = true
		page.Results = page.Results[:opts.Limit]
		page.After = page.Results[opts.Limit-1].ID
	}

	if opts.Status == "" && opts.After == 0 && opts.CancelledLimit > 0 {
		page.Cancelled, err = s.queryRecords(ctx, schema,
			selectFrom(schema)+" WHERE status = ? ORDER BY updated_at DESC, id DESC LIMIT ?",
			domain.StatusCancelled, opts.CancelledLimit,
		)
		if err != nil {
			return nil, err
		}
	}
	return page, nil
}

// Delete removes a record. Records that a downstream stage was migrated
// from cannot be deleted.
func (s *SQLiteRecordStore) Delete(ctx context.Context, stage domain.Stage, id int64) error {
	schema, err := pipeline.SchemaFor(stage)
	if err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx, "DELETE FROM "+schema.Table+" WHERE id = ?", id)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("%s %d: %w", stage, id, ErrReferenced)
		}
		return fmt.Errorf("delete %s %d: %w", stage, id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s %d: %w", stage, id, domain.ErrNotFound)
	}
	return nil
}

// Candidates returns every record of stage whose migration flag is unset,
// ordered by id. Callers still apply the transition guard.
func (s *SQLiteRecordStore) Candidates(ctx context.Context, stage domain.Stage) ([]*domain.Record, error) {
	schema, err := pipeline.SchemaFor(stage)
	if err != nil {
		return nil, err
	}
	if schema.FlagColumn == "" {
		return nil, fmt.Errorf("%w: %s is the last stage", domain.ErrUnknownTransition, stage)
	}
	return s.queryRecords(ctx, schema,
		selectFrom(schema)+" WHERE "+schema.FlagColumn+" = FALSE ORDER BY id ASC")
}

// Claim sets the migration flag on a record only if it is still unset, and
// reports whether this call was the one that set it.
func (s *SQLiteRecordStore) Claim(ctx context.Context, stage domain.Stage, id int64) (bool, error) {
	schema, err := pipeline.SchemaFor(stage)
	if err != nil {
		return false, err
	}
	if schema.FlagColumn == "" {
		return false, fmt.Errorf("%w: %s is the last stage", domain.ErrUnknownTransition, stage)
	}

	res, err := s.q.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s = TRUE, %s = ? WHERE id = ? AND %s = FALSE",
			schema.Table, schema.FlagColumn, schema.FlagAtColumn(), schema.FlagColumn),
		now(), id,
	)
	if err != nil {
		return false, fmt.Errorf("claim %s %d: %w", stage, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim %s %d: %w", stage, id, err)
	}
	return n == 1, nil
}

// FindByLineage returns the record of stage that was migrated from sourceID.
func (s *SQLiteRecordStore) FindByLineage(ctx context.Context, stage domain.Stage, sourceID int64) (*domain.Record, error) {
	schema, err := pipeline.SchemaFor(stage)
	if err != nil {
		return nil, err
	}
	if schema.LineageColumn == "" {
		return nil, fmt.Errorf("%w: %s is the first stage", domain.ErrUnknownTransition, stage)
	}

	rec, err := scanRecord(s.q.QueryRowContext(ctx,
		selectFrom(schema)+" WHERE "+schema.LineageColumn+" = ?", sourceID), schema)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s from %d: %w", stage, sourceID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find %s by lineage: %w", stage, err)
	}
	return rec, nil
}

// InTx runs fn against a store bound to a single transaction. fn's error
// rolls everything back. Nested calls join the outer transaction.
func (s *SQLiteRecordStore) InTx(ctx context.Context, fn func(RecordStore) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&SQLiteRecordStore{db: s.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
