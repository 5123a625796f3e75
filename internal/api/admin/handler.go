package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/johnwards/stagetrack/internal/api"
	"github.com/johnwards/stagetrack/internal/database"
	"github.com/johnwards/stagetrack/internal/seed"
	"github.com/johnwards/stagetrack/internal/store"
)

// Handler serves the admin API at /_admin/.
type Handler struct {
	store *store.Store
}

// Reset drops all records and the run log, then re-seeds the demo pipeline.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := ResetData(r.Context(), h.store); err != nil {
		slog.Error("admin reset failed", "error", err)
		api.WriteError(w, http.StatusInternalServerError, &api.Error{
			Status:        "error",
			Message:       err.Error(),
			CorrelationID: api.CorrelationID(r.Context()),
			Category:      api.CategoryInternalError,
		})
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SeedData runs seed data without dropping existing data first.
func (h *Handler) SeedData(w http.ResponseWriter, r *http.Request) {
	if err := seed.Seed(r.Context(), h.store.Records); err != nil {
		api.WriteError(w, http.StatusInternalServerError, &api.Error{
			Status:        "error",
			Message:       fmt.Sprintf("failed to seed: %s", err),
			CorrelationID: api.CorrelationID(r.Context()),
			Category:      api.CategoryInternalError,
		})
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ResetData clears all data tables within a transaction and re-seeds.
// Exported for reuse by tests or other callers.
func ResetData(ctx context.Context, s *store.Store) error {
	if err := database.Truncate(ctx, s.DB); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	if err := seed.Seed(ctx, s.Records); err != nil {
		return fmt.Errorf("re-seed: %w", err)
	}
	return nil
}
