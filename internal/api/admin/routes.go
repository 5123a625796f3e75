package admin

import (
	"net/http"

	"github.com/johnwards/stagetrack/internal/store"
)

// RegisterRoutes registers all admin API endpoints on the mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store) {
	h := &Handler{store: s}

	mux.HandleFunc("POST /_admin/reset", h.Reset)
	mux.HandleFunc("POST /_admin/seed", h.SeedData)
}
