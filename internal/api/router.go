// Package api is a reference implementation of the items API used for local
// development and integration tests.
package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/claimwildcats/internal/model"
)

// NewRouter creates the API router with all endpoints registered. Bearer
// tokens are ID tokens signed with idTokenSecret.
func NewRouter(db *sql.DB, idTokenSecret string) http.Handler {
	mux := http.NewServeMux()

	itemsHandler := &ItemsHandler{DB: db}

	authMW := AuthMiddleware(idTokenSecret)
	requireStaff := RequireRole(model.RoleStaff)

	// Public: browse and detail.
	mux.HandleFunc("GET /api/items", itemsHandler.List)
	mux.HandleFunc("GET /api/items/{id}", itemsHandler.Get)
	mux.HandleFunc("GET /api/items/{id}/similar", itemsHandler.Similar)

	// Authenticated: file reports.
	mux.Handle("POST /api/items/lost", authMW(http.HandlerFunc(itemsHandler.CreateLost)))
	mux.Handle("POST /api/items/found", authMW(http.HandlerFunc(itemsHandler.CreateFound)))

	// Staff: status changes.
	mux.Handle("PATCH /api/items/{id}/status", authMW(requireStaff(http.HandlerFunc(itemsHandler.UpdateStatus))))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, http.StatusNotFound, "not found")
	})

	return mux
}
