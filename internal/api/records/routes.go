package records

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/johnwards/stagetrack/internal/migration"
	"github.com/johnwards/stagetrack/internal/store"
)

// RegisterRoutes adds the stage record endpoints to the given mux.
// cancelledRetention is the number of recent cancelled records shown
// alongside an unfiltered listing.
func RegisterRoutes(mux *http.ServeMux, s *store.Store, engine *migration.Engine, cancelledRetention int) {
	h := &Handler{
		records:   s.Records,
		engine:    engine,
		retention: cancelledRetention,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}

	mux.HandleFunc("GET /api/v1/{stage}", h.List)
	mux.HandleFunc("POST /api/v1/{stage}", h.Create)
	mux.HandleFunc("GET /api/v1/{stage}/export", h.Export)
	mux.HandleFunc("GET /api/v1/{stage}/{id}", h.Get)
	mux.HandleFunc("PATCH /api/v1/{stage}/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/{stage}/{id}", h.Delete)
	mux.HandleFunc("PUT /api/v1/{stage}/{id}/status", h.SetStatus)
	mux.HandleFunc("PATCH /api/v1/operations/{id}/checklist", h.Checklist)
}
