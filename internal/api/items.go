package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/claimwildcats/internal/model"
	"github.com/erazemk/claimwildcats/internal/store"
)

// Page size limits of GET /api/items.
const (
	defaultPageSize = 20
	maxPageSize     = 100
	similarLimit    = 6
)

// ItemsHandler handles the item endpoints.
type ItemsHandler struct {
	DB *sql.DB
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := q.Get("status")
	if status != "" && status != model.ItemStatusLost && status != model.ItemStatusFound && status != model.ItemStatusClaimed {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	zone, err := model.ParseCampusZone(q.Get("campusZone"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid campus zone")
		return
	}

	page, err := intParam(q.Get("page"), 0)
	if err != nil || page < 0 {
		jsonError(w, http.StatusBadRequest, "invalid page")
		return
	}
	pageSize, err := intParam(q.Get("pageSize"), defaultPageSize)
	if err != nil || pageSize < 1 {
		jsonError(w, http.StatusBadRequest, "invalid page size")
		return
	}
	pageSize = min(pageSize, maxPageSize)

	items, total, err := store.ListItems(r.Context(), h.DB, store.ItemFilter{
		Status:     status,
		CampusZone: string(zone),
		Query:      q.Get("q"),
		ReporterID: q.Get("reporterId"),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		slog.Error("failed to list items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, model.ItemPage{Items: items, TotalItems: total, PageSize: pageSize})
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, ok := h.lookup(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Similar handles GET /api/items/{id}/similar.
func (h *ItemsHandler) Similar(w http.ResponseWriter, r *http.Request) {
	item, ok := h.lookup(w, r)
	if !ok {
		return
	}

	similar, err := store.SimilarItems(r.Context(), h.DB, item, similarLimit)
	if err != nil {
		slog.Error("failed to find similar items", "item", item.ID, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to find similar items")
		return
	}
	if similar == nil {
		similar = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, similar)
}

// CreateLost handles POST /api/items/lost.
func (h *ItemsHandler) CreateLost(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, model.ItemStatusLost)
}

// CreateFound handles POST /api/items/found.
func (h *ItemsHandler) CreateFound(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, model.ItemStatusFound)
}

func (h *ItemsHandler) create(w http.ResponseWriter, r *http.Request, status string) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req model.CreateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.LocationText = strings.TrimSpace(req.LocationText)
	if req.Title == "" || req.Description == "" || req.LocationText == "" {
		jsonError(w, http.StatusBadRequest, "title, description and locationText required")
		return
	}

	item := &model.Item{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Description:  req.Description,
		LocationText: req.LocationText,
		Status:       status,
		Tags:         req.Tags,
		DocURLs:      req.DocURLs,
		ReporterID:   claims.Subject,
		CreatedAt:    time.Now().UTC(),
	}
	if req.CampusZone != nil {
		zone, err := model.ParseCampusZone(string(*req.CampusZone))
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid campus zone")
			return
		}
		item.CampusZone = zone
	}
	if req.LastSeenAt != nil {
		t := req.LastSeenAt.UTC()
		item.LastSeenAt = &t
	}

	created, err := store.CreateItem(r.Context(), h.DB, item)
	if err != nil {
		slog.Error("failed to create item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	slog.Info("item reported", "item", created.ID, "status", status, "reporter", claims.Email)
	jsonResponse(w, http.StatusCreated, created)
}

// UpdateStatus handles PATCH /api/items/{id}/status.
func (h *ItemsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Status {
	case model.ItemStatusLost, model.ItemStatusFound, model.ItemStatusClaimed:
	default:
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	id := r.PathValue("id")
	ok, err := store.UpdateItemStatus(r.Context(), h.DB, id, req.Status)
	if err != nil {
		slog.Error("failed to update item status", "item", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update item")
		return
	}
	if !ok {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	item, ok := h.lookup(w, r)
	if !ok {
		return
	}
	slog.Info("item status changed", "item", id, "status", req.Status, "by", GetClaims(r.Context()).Email)
	jsonResponse(w, http.StatusOK, item)
}

// lookup loads the item named by the {id} path value, writing an error
// response if it cannot.
func (h *ItemsHandler) lookup(w http.ResponseWriter, r *http.Request) (*model.Item, bool) {
	id := r.PathValue("id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return nil, false
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get item", "item", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return nil, false
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return nil, false
	}
	return item, true
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
