package directory

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-pos/internal/common"
)

// Handler serves the customer and seller pickers.
type Handler struct {
	dir      Directory
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(dir Directory, validate *validator.Validate) *Handler {
	if validate == nil {
		validate = validator.New()
	}
	return &Handler{dir: dir, validate: validate}
}

// Routes mounts /{kind} endpoints, kind being "customers" or "sellers".
func (h *Handler) Routes(r chi.Router) {
	r.Get("/{kind}", h.Search)
	r.Post("/{kind}", h.Create)
	r.Get("/{kind}/{id}", h.Get)
}

func kindParam(r *http.Request) (Kind, bool) {
	switch chi.URLParam(r, "kind") {
	case "customers":
		return Customer, true
	case "sellers":
		return Seller, true
	}
	return "", false
}

// Search handles GET /{kind}?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "unknown directory", nil)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	parties, err := h.dir.Search(r.Context(), kind, r.URL.Query().Get("q"), limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, parties)
}

// Get handles GET /{kind}/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "unknown directory", nil)
		return
	}
	p, err := h.dir.Get(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "PARTY_NOT_FOUND", string(kind)+" not found", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, p)
}

// Create handles POST /{kind}, the "create new" round-trip of the pickers.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "unknown directory", nil)
		return
	}
	var p Party
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", nil)
		return
	}
	p.Kind = kind
	if err := h.validate.Struct(p); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid party", validationDetails(err))
		return
	}
	created, err := h.dir.Create(r.Context(), p)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, created)
}

func validationDetails(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
