package migrations

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/johnwards/stagetrack/internal/api"
	"github.com/johnwards/stagetrack/internal/domain"
	"github.com/johnwards/stagetrack/internal/migration"
	"github.com/johnwards/stagetrack/internal/pipeline"
	"github.com/johnwards/stagetrack/internal/store"
)

// Handler handles batch migration HTTP requests.
type Handler struct {
	engine *migration.Engine
	runs   store.RunStore
}

type migrateResponse struct {
	Success      bool     `json:"success"`
	Error        string   `json:"error,omitempty"`
	RunID        int64    `json:"runId,omitempty"`
	SuccessCount int      `json:"successCount"`
	ErrorCount   int      `json:"errorCount"`
	Errors       []string `json:"errors"`
}

// transition resolves the {target} path segment. Targets without a
// predecessor stage are validation errors, unknown names are 404s.
func transition(w http.ResponseWriter, r *http.Request) (*pipeline.Transition, bool) {
	corrID := api.CorrelationID(r.Context())
	stage, err := pipeline.ParseStage(r.PathValue("target"))
	if err != nil {
		api.WriteError(w, http.StatusNotFound, api.NewNotFoundError("Unknown stage: "+r.PathValue("target"), corrID))
		return nil, false
	}
	tr, err := pipeline.Lookup(stage)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError(err.Error(), corrID, nil))
		return nil, false
	}
	return tr, true
}

// Migrate handles POST /api/v1/{target}/migrate. The body carries the source
// ids under "<source>_ids", e.g. {"consultation_ids":[7]} for contracts.
func (h *Handler) Migrate(w http.ResponseWriter, r *http.Request) {
	tr, ok := transition(w, r)
	if !ok {
		return
	}
	corrID := api.CorrelationID(r.Context())

	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", corrID, nil))
		return
	}
	var ids []int64
	if raw, ok := body[tr.IDsKey()]; ok {
		if err := json.Unmarshal(raw, &ids); err != nil {
			api.WriteError(w, http.StatusBadRequest, api.NewValidationError(
				tr.IDsKey()+" must be an array of integer ids", corrID,
				[]api.ErrorDetail{{Message: err.Error(), Code: "INVALID_TYPE", In: tr.IDsKey()}}))
			return
		}
	}

	res, err := h.engine.MigrateBatch(r.Context(), tr.To, ids, api.ActorID(r.Context()))
	if err != nil {
		if errors.Is(err, domain.ErrBatchEmpty) {
			api.WriteError(w, http.StatusBadRequest, api.NewValidationError(
				"No "+tr.IDsKey()+" supplied", corrID,
				[]api.ErrorDetail{{Message: err.Error(), Code: "REQUIRED", In: tr.IDsKey()}}))
			return
		}
		api.WriteDomainError(w, r, err)
		return
	}

	resp := migrateResponse{
		Success:      true,
		RunID:        res.RunID,
		SuccessCount: res.SuccessCount,
		ErrorCount:   res.ErrorCount,
		Errors:       res.Errors,
	}
	status := http.StatusOK
	if res.Outcome() == domain.OutcomeTotalFailure {
		status = http.StatusBadRequest
		resp.Success = false
		resp.Error = "No " + string(tr.From) + " records were migrated"
	}
	api.WriteJSON(w, status, resp)
}

// Stats handles GET /api/v1/{target}/migrate/stats. Each breakdown category
// is reported as "<category>Count" next to the total.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	tr, ok := transition(w, r)
	if !ok {
		return
	}

	set, err := h.engine.CountEligible(r.Context(), tr.To)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	resp := map[string]any{
		"count": set.Count,
		"ids":   set.IDs,
	}
	for category, n := range set.Breakdown {
		resp[category+"Count"] = n
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// Runs handles GET /api/v1/migration-runs. ?target= narrows to one
// destination stage.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var target domain.Stage
	if v := q.Get("target"); v != "" {
		stage, err := pipeline.ParseStage(v)
		if err != nil {
			api.WriteError(w, http.StatusBadRequest, api.NewValidationError(err.Error(), api.CorrelationID(r.Context()), nil))
			return
		}
		target = stage
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	runs, err := h.runs.List(r.Context(), target, limit)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	results := make([]any, len(runs))
	for i := range runs {
		results[i] = runs[i]
	}
	api.WriteJSON(w, http.StatusOK, api.CollectionResponse{Results: results})
}
