// Package migration moves records forward through the pipeline. It pairs the
// transition guards and mappings from package pipeline with the store's
// claim and lineage primitives.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/johnwards/stagetrack/internal/domain"
	"github.com/johnwards/stagetrack/internal/metrics"
	"github.com/johnwards/stagetrack/internal/pipeline"
	"github.com/johnwards/stagetrack/internal/store"
)

// DefaultErrorSample is the number of failure reasons kept in a BatchResult.
const DefaultErrorSample = 10

// Engine runs batch migrations and eligibility queries.
type Engine struct {
	records     store.RecordStore
	runs        store.RunStore
	metrics     *metrics.MigrationMetrics
	errorSample int
}

// Option configures an Engine.
type Option func(*Engine)

// WithErrorSample caps BatchResult.Errors at n reasons.
func WithErrorSample(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.errorSample = n
		}
	}
}

// WithMetrics records item and batch metrics.
func WithMetrics(m *metrics.MigrationMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an Engine. runs may be nil, in which case batches are not
// written to the run log.
func New(records store.RecordStore, runs store.RunStore, opts ...Option) *Engine {
	e := &Engine{records: records, runs: runs, errorSample: DefaultErrorSample}
	for _, o := range opts {
		o(e)
	}
	return e
}

// MigrateBatch copies each eligible source record into target and flags the
// source as migrated. ids are processed in order, one transaction each; a
// failing id never affects the others. Only an empty batch or a target
// without a predecessor stage is returned as an error.
func (e *Engine) MigrateBatch(ctx context.Context, target domain.Stage, ids []int64, actor int64) (*domain.BatchResult, error) {
	if len(ids) == 0 {
		return nil, domain.ErrBatchEmpty
	}
	tr, err := pipeline.Lookup(target)
	if err != nil {
		return nil, err
	}
	dst := pipeline.MustSchema(tr.To)

	start := time.Now()
	res := &domain.BatchResult{
		From:   tr.From,
		To:     tr.To,
		Errors: []string{},
		Items:  make([]domain.ItemResult, 0, len(ids)),
	}

	for _, id := range ids {
		item := e.migrateOne(ctx, tr, dst, id, actor)
		res.Items = append(res.Items, item)
		if item.OK {
			res.SuccessCount++
			e.metrics.RecordItem(tr.Name(), "migrated")
			continue
		}
		res.ErrorCount++
		if len(res.Errors) < e.errorSample {
			res.Errors = append(res.Errors, item.Reason)
		}
		slog.Warn("migration item failed",
			"transition", tr.Name(),
			"source_id", id,
			"reason", item.Reason,
		)
	}

	if e.runs != nil {
		run, err := e.runs.Record(ctx, &domain.MigrationRun{
			From:         tr.From,
			To:           tr.To,
			ActorID:      actor,
			SuccessCount: res.SuccessCount,
			ErrorCount:   res.ErrorCount,
			Items:        res.Items,
		})
		if err != nil {
			slog.Error("failed to record migration run", "transition", tr.Name(), "error", err)
		} else {
			res.RunID = run.ID
		}
	}

	elapsed := time.Since(start)
	e.metrics.RecordBatch(tr.Name(), string(res.Outcome()), elapsed)
	slog.Info("migration batch",
		"transition", tr.Name(),
		"run_id", res.RunID,
		"actor", actor,
		"requested", len(ids),
		"succeeded", res.SuccessCount,
		"failed", res.ErrorCount,
		"duration", elapsed,
	)
	return res, nil
}

func (e *Engine) migrateOne(ctx context.Context, tr *pipeline.Transition, dst *pipeline.Schema, id int64, actor int64) domain.ItemResult {
	item := domain.ItemResult{SourceID: id}
	var reconciled bool

	err := e.records.InTx(ctx, func(rs store.RecordStore) error {
		src, err := rs.Get(ctx, tr.From, id)
		if err != nil {
			return err
		}
		if err := tr.Check(src).Err(); err != nil {
			return err
		}

		// A destination that already points at this source means an earlier
		// run inserted it without flagging. Flag it now and report the item
		// as already done.
		existing, err := rs.FindByLineage(ctx, tr.To, id)
		switch {
		case err == nil:
			if _, err := rs.Claim(ctx, tr.From, id); err != nil {
				return fmt.Errorf("%w: %w", domain.ErrWriteFailure, err)
			}
			reconciled = true
			item.DestinationID = existing.ID
			return nil
		case !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("%w: %w", domain.ErrWriteFailure, err)
		}

		claimed, err := rs.Claim(ctx, tr.From, id)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrWriteFailure, err)
		}
		if !claimed {
			return domain.ErrAlreadyMigrated
		}

		sourceID := id
		rec, err := rs.Insert(ctx, &domain.Record{
			Stage:     tr.To,
			SourceID:  &sourceID,
			Fields:    tr.Map(src, dst),
			CreatedBy: actor,
		})
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyMigrated) {
				return err
			}
			return fmt.Errorf("%w: %w", domain.ErrWriteFailure, err)
		}
		item.DestinationID = rec.ID
		return nil
	})

	switch {
	case err != nil:
		item.DestinationID = 0
		item.Reason = e.reason(tr, id, err)
	case reconciled:
		item.Reason = fmt.Sprintf("%s %d: %s (reconciled with %s %d)",
			tr.From, id, domain.ErrAlreadyMigrated, tr.To, item.DestinationID)
		e.metrics.RecordItem(tr.Name(), "already_migrated")
	default:
		item.OK = true
	}
	return item
}

// reason renders a per-item failure and counts it.
func (e *Engine) reason(tr *pipeline.Transition, id int64, err error) string {
	result := "write_failure"
	msg := fmt.Sprintf("%s %d: %v", tr.From, id, err)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// Store errors already name the record.
		result, msg = "not_found", err.Error()
	case errors.Is(err, domain.ErrAlreadyMigrated):
		result = "already_migrated"
	case errors.Is(err, domain.ErrNotEligible):
		result = "not_eligible"
	}
	e.metrics.RecordItem(tr.Name(), result)
	return msg
}

// CountEligible returns the source records that would currently migrate into
// target, with a per-category breakdown. It evaluates the same guard as
// MigrateBatch.
func (e *Engine) CountEligible(ctx context.Context, target domain.Stage) (*domain.EligibleSet, error) {
	tr, err := pipeline.Lookup(target)
	if err != nil {
		return nil, err
	}

	candidates, err := e.records.Candidates(ctx, tr.From)
	if err != nil {
		return nil, fmt.Errorf("eligible %s: %w", tr.Name(), err)
	}

	set := &domain.EligibleSet{
		From:      tr.From,
		To:        tr.To,
		IDs:       []int64{},
		Breakdown: make(map[string]int, len(tr.Categories)),
	}
	for _, c := range tr.Categories {
		set.Breakdown[c] = 0
	}
	for _, rec := range candidates {
		g := tr.Check(rec)
		if !g.Allowed {
			continue
		}
		// MigrateBatch reconciles instead of migrating these.
		if _, err := e.records.FindByLineage(ctx, tr.To, rec.ID); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("eligible %s: %w", tr.Name(), err)
		}
		set.IDs = append(set.IDs, rec.ID)
		set.Breakdown[g.Category]++
	}
	set.Count = len(set.IDs)

	e.metrics.SetEligible(tr.Name(), set.Count)
	return set, nil
}

// Advance migrates one record along the automatic transition leaving stage,
// if there is one and the record is eligible. It returns nil when nothing
// was attempted.
func (e *Engine) Advance(ctx context.Context, stage domain.Stage, id int64, actor int64) (*domain.BatchResult, error) {
	tr, ok := pipeline.Next(stage)
	if !ok || !tr.Auto {
		return nil, nil
	}

	rec, err := e.records.Get(ctx, stage, id)
	if err != nil {
		return nil, err
	}
	if !tr.Check(rec).Allowed {
		return nil, nil
	}
	return e.MigrateBatch(ctx, tr.To, []int64{id}, actor)
}
