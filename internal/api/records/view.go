package records

import (
	"github.com/johnwards/stagetrack/internal/domain"
	"github.com/johnwards/stagetrack/internal/pipeline"
)

// View flattens a record into its wire form: bookkeeping columns under
// their table names next to the payload fields.
func View(s *pipeline.Schema, rec *domain.Record) map[string]any {
	out := make(map[string]any, len(rec.Fields)+10)
	for k, v := range rec.Fields {
		out[k] = v
	}
	out["id"] = rec.ID
	out["stage"] = rec.Stage
	out["status"] = rec.Status
	if s.LineageColumn != "" {
		if rec.SourceID != nil {
			out[s.LineageColumn] = *rec.SourceID
		} else {
			out[s.LineageColumn] = nil
		}
	}
	if s.FlagColumn != "" {
		out[s.FlagColumn] = rec.Migrated
		if rec.MigratedAt != "" {
			out[s.FlagAtColumn()] = rec.MigratedAt
		} else {
			out[s.FlagAtColumn()] = nil
		}
	}
	out["created_by"] = rec.CreatedBy
	out["updated_by"] = rec.UpdatedBy
	out["created_at"] = rec.CreatedAt
	out["updated_at"] = rec.UpdatedAt
	return out
}

func views(s *pipeline.Schema, recs []*domain.Record) []any {
	out := make([]any, len(recs))
	for i, rec := range recs {
		out[i] = View(s, rec)
	}
	return out
}
