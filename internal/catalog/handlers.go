package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-pos/internal/common"
)

// Handler exposes the item search panel.
type Handler struct {
	finder Finder
}

// NewHandler constructs a Handler.
func NewHandler(finder Finder) *Handler {
	return &Handler{finder: finder}
}

// Routes mounts the catalog endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/items", h.Search)
	r.Get("/items/{id}", h.Get)
}

// Search handles GET /items?q=&available=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	onlyAvailable := true
	if raw := strings.TrimSpace(query.Get("available")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "INVALID_QUERY", "available must be a boolean", nil)
			return
		}
		onlyAvailable = v
	}
	limit, _ := strconv.Atoi(query.Get("limit"))

	items, err := h.finder.Search(r.Context(), query.Get("q"), onlyAvailable, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// Get handles GET /items/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.finder.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "ITEM_NOT_FOUND", "item not found", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, item)
}
