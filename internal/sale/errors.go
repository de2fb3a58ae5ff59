package sale

import (
	"errors"
	"net/http"

	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/directory"
	"github.com/noah-isme/backend-pos/internal/repo"
	"github.com/noah-isme/backend-pos/internal/reservation"
	"github.com/noah-isme/backend-pos/internal/ticket"
)

var (
	// ErrItemUnavailable is returned when the item was sold or retired.
	ErrItemUnavailable = errors.New("item not available for sale")
	// ErrForbidden is returned when an operator touches another operator's sale.
	ErrForbidden = errors.New("sale belongs to another operator")
	// ErrBusy is returned when the sale stayed locked by a concurrent request.
	ErrBusy = errors.New("sale is being updated by another request")
)

// Rejection describes how an error is shown to the operator.
type Rejection struct {
	Code    string
	Title   string
	Status  int
	Details map[string]any
}

// Classify maps service errors to operator-facing rejections. ok is false for
// unexpected failures.
func Classify(err error) (Rejection, bool) {
	var (
		incomplete *ticket.PaymentIncompleteError
		missing    *ticket.MissingFieldError
		duplicate  *ticket.DuplicateUnitError
	)
	switch {
	case errors.Is(err, ticket.ErrEmptyCart):
		return Rejection{Code: "EMPTY_CART", Title: "Empty sale", Status: http.StatusUnprocessableEntity}, true
	case errors.As(err, &missing):
		return Rejection{Code: "MISSING_FIELD", Title: "Missing information", Status: http.StatusUnprocessableEntity,
			Details: map[string]any{"field": missing.Field}}, true
	case errors.Is(err, ticket.ErrOverpayment):
		return Rejection{Code: "OVERPAYMENT", Title: "Payment exceeds total", Status: http.StatusUnprocessableEntity}, true
	case errors.As(err, &incomplete):
		return Rejection{Code: "PAYMENT_INCOMPLETE", Title: "Payment incomplete", Status: http.StatusUnprocessableEntity,
			Details: map[string]any{"missing": incomplete.Missing.StringFixed(2)}}, true
	case errors.As(err, &duplicate):
		return Rejection{Code: "DUPLICATE_UNIT", Title: "Item already added", Status: http.StatusConflict,
			Details: map[string]any{"itemId": duplicate.ItemID}}, true
	case errors.Is(err, reservation.ErrUnitReserved):
		return Rejection{Code: "UNIT_RESERVED", Title: "Item reserved", Status: http.StatusConflict}, true
	case errors.Is(err, repo.ErrUnitUnavailable), errors.Is(err, ErrItemUnavailable):
		return Rejection{Code: "UNIT_UNAVAILABLE", Title: "Item unavailable", Status: http.StatusConflict}, true
	case errors.Is(err, repo.ErrSaleExists):
		return Rejection{Code: "SALE_EXISTS", Title: "Sale already recorded", Status: http.StatusConflict}, true
	case errors.Is(err, ticket.ErrPaymentNotFound):
		return Rejection{Code: "PAYMENT_NOT_FOUND", Title: "Payment not found", Status: http.StatusNotFound}, true
	case errors.Is(err, ticket.ErrInvalidInput):
		return Rejection{Code: "INVALID_INPUT", Title: "Invalid value", Status: http.StatusBadRequest}, true
	case errors.Is(err, ErrSessionNotFound):
		return Rejection{Code: "SALE_NOT_FOUND", Title: "Sale not found", Status: http.StatusNotFound}, true
	case errors.Is(err, catalog.ErrNotFound):
		return Rejection{Code: "ITEM_NOT_FOUND", Title: "Item not found", Status: http.StatusNotFound}, true
	case errors.Is(err, directory.ErrNotFound):
		return Rejection{Code: "PARTY_NOT_FOUND", Title: "Not found", Status: http.StatusNotFound}, true
	case errors.Is(err, ErrForbidden):
		return Rejection{Code: "FORBIDDEN", Title: "Not your sale", Status: http.StatusForbidden}, true
	case errors.Is(err, ErrBusy):
		return Rejection{Code: "SALE_BUSY", Title: "Try again", Status: http.StatusConflict}, true
	}
	return Rejection{}, false
}

// AppError converts err into the API error shape.
func AppError(err error) *common.AppError {
	if rej, ok := Classify(err); ok {
		appErr := common.NewAppError(rej.Code, err.Error(), rej.Status, err)
		details := map[string]any{"title": rej.Title}
		for k, v := range rej.Details {
			details[k] = v
		}
		return appErr.WithDetails(details)
	}
	return common.NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err)
}
