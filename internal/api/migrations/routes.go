package migrations

import (
	"net/http"

	"github.com/johnwards/stagetrack/internal/migration"
	"github.com/johnwards/stagetrack/internal/store"
)

// RegisterRoutes adds the batch migration endpoints to the given mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store, engine *migration.Engine) {
	h := &Handler{engine: engine, runs: s.Runs}

	mux.HandleFunc("POST /api/v1/{target}/migrate", h.Migrate)
	mux.HandleFunc("GET /api/v1/{target}/migrate/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/migration-runs", h.Runs)
}
