// Package export renders stage records as spreadsheets.
package export

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/johnwards/stagetrack/internal/domain"
	"github.com/johnwards/stagetrack/internal/pipeline"
	"github.com/johnwards/stagetrack/internal/store"
)

// ContentType is the MIME type of the files Write produces.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Headers returns the column headings for a stage export.
func Headers(s *pipeline.Schema) []string {
	h := []string{"id"}
	if s.LineageColumn != "" {
		h = append(h, s.LineageColumn)
	}
	h = append(h, "status")
	if s.FlagColumn != "" {
		h = append(h, s.FlagColumn, s.FlagAtColumn())
	}
	for _, f := range s.Fields {
		h = append(h, f.Name)
	}
	return append(h, "created_by", "updated_by", "created_at", "updated_at")
}

func row(s *pipeline.Schema, rec *domain.Record) []any {
	r := []any{rec.ID}
	if s.LineageColumn != "" {
		if rec.SourceID != nil {
			r = append(r, *rec.SourceID)
		} else {
			r = append(r, "")
		}
	}
	r = append(r, rec.Status)
	if s.FlagColumn != "" {
		r = append(r, rec.Migrated, rec.MigratedAt)
	}
	for _, f := range s.Fields {
		v := rec.Fields[f.Name]
		if d, ok := v.(decimal.Decimal); ok {
			v = d.InexactFloat64()
		}
		r = append(r, v)
	}
	return append(r, rec.CreatedBy, rec.UpdatedBy, rec.CreatedAt, rec.UpdatedAt)
}

// Write renders records as a single-sheet workbook named after the stage
// table.
func Write(w io.Writer, s *pipeline.Schema, records []*domain.Record) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := s.Table
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	headers := Headers(s)
	hdr := make([]any, len(headers))
	for i, h := range headers {
		hdr[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		r := row(s, rec)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("write %s %d: %w", s.Stage, rec.ID, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Collect loads every record of stage, cancelled ones included, in id order.
func Collect(ctx context.Context, rs store.RecordStore, stage domain.Stage) ([]*domain.Record, error) {
	var out []*domain.Record
	for _, status := range []string{"", domain.StatusCancelled} {
		opts := domain.ListOpts{Status: status, Limit: 500}
		for {
			page, err := rs.List(ctx, stage, opts)
			if err != nil {
				return nil, err
			}
			out = append(out, page.Results...)
			if !page.HasMore {
				break
			}
			opts.After = page.After
		}
	}
	slices.SortFunc(out, func(a, b *domain.Record) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Stage writes the full export of stage to w.
func Stage(ctx context.Context, w io.Writer, rs store.RecordStore, stage domain.Stage) error {
	s, err := pipeline.SchemaFor(stage)
	if err != nil {
		return err
	}
	records, err := Collect(ctx, rs, stage)
	if err != nil {
		return fmt.Errorf("export %s: %w", stage, err)
	}
	return Write(w, s, records)
}
