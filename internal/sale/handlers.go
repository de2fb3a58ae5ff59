package sale

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/ticket"
)

// Handler exposes sale session endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
	finalize func(http.Handler) http.Handler
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service   *Service
	Validator *validator.Validate
	// FinalizeGuard wraps the finalize endpoint, typically with idempotency.
	FinalizeGuard func(http.Handler) http.Handler
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validator
	if v == nil {
		v = validator.New()
	}
	guard := cfg.FinalizeGuard
	if guard == nil {
		guard = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{service: cfg.Service, validate: v, finalize: guard}
}

// Routes mounts the sale endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Open)
	r.Route("/{saleID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Abort)
		r.Post("/items", h.AddItem)
		r.Delete("/items/{itemID}", h.RemoveLine)
		r.Put("/discount", h.SetDiscount)
		r.Delete("/discount", h.ClearDiscount)
		r.Post("/payments", h.AddPayment)
		r.Put("/payments/{index}/amount", h.SetPaymentAmount)
		r.Put("/payments/{index}/installments", h.SetPaymentInstallments)
		r.Put("/payments/{index}/interest", h.SetPaymentInterest)
		r.Delete("/payments/{index}", h.RemovePayment)
		r.Put("/seller", h.SetSeller)
		r.Put("/customer", h.SetCustomer)
		r.Get("/settle", h.SettleAmount)
		r.With(h.finalize).Post("/finalize", h.Finalize)
	})
}

type addItemRequest struct {
	ItemID   string `json:"itemId" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0,lte=9999"`
}

type discountRequest struct {
	Kind  string          `json:"kind" validate:"required,oneof=fixed percent"`
	Value decimal.Decimal `json:"value"`
}

type addPaymentRequest struct {
	Method string `json:"method" validate:"required"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type installmentsRequest struct {
	Installments int `json:"installments" validate:"gte=1"`
}

type interestRequest struct {
	Interest bool `json:"interest"`
}

type sellerRequest struct {
	SellerID string `json:"sellerId" validate:"required"`
}

type customerRequest struct {
	CustomerID string `json:"customerId"`
}

type paymentResponse struct {
	Index int  `json:"index"`
	Sale  View `json:"sale"`
}

type settleResponse struct {
	Method ticket.Method   `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

func operator(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing operator", nil)
	}
	return id, ok
}

// decode reads and validates a JSON body into dst.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", nil)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		details := map[string]string{}
		if errors.As(err, &ve) {
			for _, fe := range ve {
				details[fe.Field()] = fe.Tag()
			}
		}
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid request", details)
		return false
	}
	return true
}

func paymentIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || i < 0 {
		common.JSONError(w, http.StatusBadRequest, "INVALID_INDEX", "payment index must be a non-negative integer", nil)
		return 0, false
	}
	return i, true
}

func writeView(w http.ResponseWriter, status int, view View, err error) {
	if err != nil {
		common.WriteError(w, AppError(err))
		return
	}
	common.Data(w, status, view)
}

// Open handles POST /sales.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}
	view, err := h.service.Open(r.Context(), op)
	writeView(w, http.StatusCreated, view, err)
}

// Get handles GET /sales/{saleID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}
	view, err := h.service.Get(r.Context(), op, chi.URLParam(r, "saleID"))
	writeView(w, http.StatusOK, view, err)
}

// Abort handles DELETE /sales/{saleID}.
func (h *Handler) Abort(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}
	if err := h.service.Abort(r.Context(), op, chi.URLParam(r, "saleID")); err != nil {
		common.WriteError(w, AppError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddItem handles POST /sales/{saleID}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	view, err := h.service.AddItem(r.Context(), op, chi.URLParam(r, "saleID"), req.ItemID, req.Quantity)
	writeView(w, http.StatusOK, view, err)
}

// RemoveLine handles DELETE /sales/{saleID}/items/{itemID}.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}
	view, err := h.service.RemoveLine(r.Context(), op, chi.URLParam(r, "saleID"), chi.URLParam(r, "itemID"))
	writeView(w, http.StatusOK, view, err)
}

// SetDiscount handles PUT /sales/{saleID}/discount.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}
	var req discountRequest
	if !h.decode(w, r, &req) {
		return
	}
	d := ticket.Discount{Kind: ticket.DiscountKind(req.Kind), Value: req.Value}
	view, err := h.service.SetDiscount(r.Context(), op, chi.URLParam(r, "saleID"), d)
	writeView(w, http.StatusOK, view, err)
}

// ClearDiscount handles DELETE /sales/{saleID}/discount.
func (h *Handler) ClearDiscount(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}
	view, err := h.service.ClearDiscount(r.Context(), op, chi.URLParam(r, "saleID"))
	writeView(w, http.StatusOK, view, err)
}

// AddPayment handles POST /sales/{saleID}/payments.
func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}
	var req addPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	method, err := ticket.ParseMethod(req.Method)
	if err != nil {
		common.WriteError(w, AppError(err))
		return
	}
	view, index, err := h.service.AddPayment(r.Context(), op, chi.URLParam(r, "saleID"), method)
	if err != nil {
		common.WriteError(w, AppError(err))
		return
	}
	common.Data(w, http.StatusCreated, paymentResponse{Index: index, Sale: view})
}

// SetPaymentAmount handles PUT /sales/{saleID}/payments/{index}/amount.
func (h *Handler) SetPaymentAmount(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}
	i, ok := paymentIndex(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.SetPaymentAmount(r.Context(), op, chi.URLParam(r, "saleID"), i, req.Amount)
	writeView(w, http.StatusOK, view, err)
}

// SetPaymentInstallments handles PUT /sales/{saleID}/payments/{index}/installments.
func (h *Handler) SetPaymentInstallments(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}
	i, ok := paymentIndex(w, r)
	if !ok {
		return
	}
	var req installmentsRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.SetPaymentInstallments(r.Context(), op, chi.URLParam(r, "saleID"), i, req.Installments)
	writeView(w, http.StatusOK, view, err)
}

// SetPaymentInterest handles PUT /sales/{saleID}/payments/{index}/interest.
func (h *Handler) SetPaymentInterest(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}
	i, ok := paymentIndex(w, r)
	if !ok {
		return
	}
	var req interestRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.SetPaymentInterest(r.Context(), op, chi.URLParam(r, "saleID"), i, req.Interest)
	writeView(w, http.StatusOK, view, err)
}

// RemovePayment handles DELETE /sales/{saleID}/payments/{index}.
func (h *Handler) RemovePayment(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}
	i, ok := paymentIndex(w, r)
	if !ok {
		return
	}
	view, err := h.service.RemovePayment(r.Context(), op, chi.URLParam(r, "saleID"), i)
	writeView(w, http.StatusOK, view, err)
}

// SetSeller handles PUT /sales/{saleID}/seller.
func (h *Handler) SetSeller(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}
	var req sellerRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.SetSeller(r.Context(), op, chi.URLParam(r, "saleID"), req.SellerID)
	writeView(w, http.StatusOK, view, err)
}

// SetCustomer handles PUT /sales/{saleID}/customer. An empty id selects the walk-in customer.
func (h *Handler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}
	var req customerRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.SetCustomer(r.Context(), op, chi.URLParam(r, "saleID"), req.CustomerID)
	writeView(w, http.StatusOK, view, err)
}

// SettleAmount handles GET /sales/{saleID}/settle?method=.
func (h *Handler) SettleAmount(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}
	method := ticket.Method(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("method"))))
	amount, err := h.service.SettleAmount(r.Context(), op, chi.URLParam(r, "saleID"), method)
	if err != nil {
		common.WriteError(w, AppError(err))
		return
	}
	common.Data(w, http.StatusOK, settleResponse{Method: method, Amount: amount})
}

// Finalize handles POST /sales/{saleID}/finalize.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}
	receipt, err := h.service.Finalize(r.Context(), op, chi.URLParam(r, "saleID"))
	if err != nil {
		common.WriteError(w, AppError(err))
		return
	}
	common.Data(w, http.StatusCreated, receipt)
}
