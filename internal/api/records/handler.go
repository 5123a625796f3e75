package records

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/johnwards/stagetrack/internal/api"
	"github.com/johnwards/stagetrack/internal/domain"
	"github.com/johnwards/stagetrack/internal/export"
	"github.com/johnwards/stagetrack/internal/migration"
	"github.com/johnwards/stagetrack/internal/pipeline"
	"github.com/johnwards/stagetrack/internal/store"
)

// Handler handles stage record HTTP requests.
type Handler struct {
	records   store.RecordStore
	engine    *migration.Engine
	retention int
	validate  *validator.Validate
}

// listResponse extends the collection envelope with the cancelled window.
type listResponse struct {
	Results   []any       `json:"results"`
	Cancelled []any       `json:"cancelled,omitempty"`
	Paging    *api.Paging `json:"paging,omitempty"`
}

// schema resolves the {stage} path segment, writing a 404 if it is unknown.
func schema(w http.ResponseWriter, r *http.Request) (*pipeline.Schema, bool) {
	stage, err := pipeline.ParseStage(r.PathValue("stage"))
	if err != nil {
		api.WriteError(w, http.StatusNotFound, api.NewNotFoundError("Unknown stage: "+r.PathValue("stage"), api.CorrelationID(r.Context())))
		return nil, false
	}
	return pipeline.MustSchema(stage), true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid id: "+r.PathValue("id"), api.CorrelationID(r.Context()), nil))
		return 0, false
	}
	return id, true
}

// decode reads a JSON body keeping numbers as json.Number so integer and
// money fields survive without float rounding.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(r.Context()), nil))
		return false
	}
	return true
}

func (h *Handler) invalid(w http.ResponseWriter, r *http.Request, d []api.ErrorDetail) {
	api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input", api.CorrelationID(r.Context()), d))
}

// List handles GET /api/v1/{stage}.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	s, ok := schema(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	opts := domain.ListOpts{
		Status:         q.Get("status"),
		CancelledLimit: h.retention,
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if v := q.Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.invalid(w, r, []api.ErrorDetail{{Message: "after must be an id", In: "after"}})
			return
		}
		opts.After = n
	}
	if v := q.Get("cancelledLimit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.CancelledLimit = n
		}
	}
	if d := h.checkStatus(s, opts.Status); d != nil {
		h.invalid(w, r, d)
		return
	}

	page, err := h.records.List(r.Context(), s.Stage, opts)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, listResponse{
		Results:   views(s, page.Results),
		Cancelled: views(s, page.Cancelled),
		Paging:    api.NewPaging(page.HasMore, page.After),
	})
}

// Create handles POST /api/v1/{stage}. Records created here have no lineage.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	s, ok := schema(w, r)
	if !ok {
		return
	}
	var body createRequest
	if !decode(w, r, &body) {
		return
	}
	if err := h.validate.Struct(body); err != nil {
		h.invalid(w, r, details(err))
		return
	}
	d := h.checkStatus(s, body.Status)
	d = append(d, h.checkRequired(s, body.Fields)...)
	if len(d) > 0 {
		h.invalid(w, r, d)
		return
	}

	rec, err := h.records.Insert(r.Context(), &domain.Record{
		Stage:     s.Stage,
		Status:    body.Status,
		Fields:    body.Fields,
		CreatedBy: api.ActorID(r.Context()),
	})
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, View(s, rec))
}

// Get handles GET /api/v1/{stage}/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := schema(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	rec, err := h.records.Get(r.Context(), s.Stage, id)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, View(s, rec))
}

// Update handles PATCH /api/v1/{stage}/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	s, ok := schema(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body updateRequest
	if !decode(w, r, &body) {
		return
	}
	if err := h.validate.Struct(body); err != nil {
		h.invalid(w, r, details(err))
		return
	}
	// Required fields may be left out of a patch but not blanked.
	var blanked []api.ErrorDetail
	for _, d := range h.checkRequired(s, body.Fields) {
		if _, set := body.Fields[d.In]; set {
			blanked = append(blanked, d)
		}
	}
	if len(blanked) > 0 {
		h.invalid(w, r, blanked)
		return
	}

	h.patch(w, r, s, id, body.Fields, "")
}

// SetStatus handles PUT /api/v1/{stage}/{id}/status.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	s, ok := schema(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body statusRequest
	if !decode(w, r, &body) {
		return
	}
	if err := h.validate.Struct(body); err != nil {
		h.invalid(w, r, details(err))
		return
	}
	if d := h.checkStatus(s, body.Status); d != nil {
		h.invalid(w, r, d)
		return
	}

	h.patch(w, r, s, id, nil, body.Status)
}

// Checklist handles PATCH /api/v1/operations/{id}/checklist.
func (h *Handler) Checklist(w http.ResponseWriter, r *http.Request) {
	s := pipeline.MustSchema(domain.StageOperation)
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body checklistRequest
	if !decode(w, r, &body) {
		return
	}
	if err := h.validate.Struct(body); err != nil {
		h.invalid(w, r, []api.ErrorDetail{{Message: "at least one checklist item is required", Code: "REQUIRED"}})
		return
	}

	h.patch(w, r, s, id, body.fields(), "")
}

// patch applies a field and/or status change. On checklist stages the
// status follows the checklist unless one is given or the record is
// cancelled. A record that becomes eligible for an automatic transition is
// advanced before the response is written.
func (h *Handler) patch(w http.ResponseWriter, r *http.Request, s *pipeline.Schema, id int64, fields map[string]any, status string) {
	ctx := r.Context()
	actor := api.ActorID(ctx)

	var rec *domain.Record
	err := h.records.InTx(ctx, func(rs store.RecordStore) error {
		cur, err := rs.Get(ctx, s.Stage, id)
		if err != nil {
			return err
		}
		if status == "" && len(s.Checklist) > 0 && cur.Status != domain.StatusCancelled && touchesChecklist(s, fields) {
			normalized, err := s.Normalize(fields)
			if err != nil {
				return err
			}
			merged := make(map[string]any, len(cur.Fields))
			for k, v := range cur.Fields {
				merged[k] = v
			}
			for k, v := range normalized {
				merged[k] = v
			}
			status = s.DeriveStatus(merged)
		}
		rec, err = rs.Update(ctx, s.Stage, id, domain.Patch{Fields: fields, Status: status, Actor: actor})
		return err
	})
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	if h.engine != nil {
		res, err := h.engine.Advance(ctx, s.Stage, id, actor)
		switch {
		case err != nil:
			slog.Warn("automatic advance failed", "stage", s.Stage, "id", id, "error", err)
		case res != nil:
			if rec, err = h.records.Get(ctx, s.Stage, id); err != nil {
				api.WriteDomainError(w, r, err)
				return
			}
		}
	}
	api.WriteJSON(w, http.StatusOK, View(s, rec))
}

func touchesChecklist(s *pipeline.Schema, fields map[string]any) bool {
	for _, item := range s.Checklist {
		if _, ok := fields[item.Field]; ok {
			return true
		}
	}
	return false
}

// Delete handles DELETE /api/v1/{stage}/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	s, ok := schema(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.records.Delete(r.Context(), s.Stage, id); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/v1/{stage}/export.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	s, ok := schema(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.Stage(r.Context(), &buf, h.records, s.Stage); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+s.Table+".xlsx")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("failed to write export", "stage", s.Stage, "error", err)
	}
}
