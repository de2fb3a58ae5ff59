package common

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the "error" member of a failed POS request. Code is the stable
// rejection code the till matches on (SALE_BUSY, UNIT_RESERVED, ...); Message
// is shown to the operator as is.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON encodes v with status. Encoding errors are dropped once the header is out.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Data answers a sale or catalog request as {"data": v}.
func Data(w http.ResponseWriter, status int, v any) {
	JSON(w, status, map[string]any{"data": v})
}

// JSONError answers a rejected operation as {"error": {code, message, details}}.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]any{"error": ErrorBody{Code: code, Message: message, Details: details}})
}
