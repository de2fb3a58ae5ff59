package common_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/common"
)

func TestEnvelopes(t *testing.T) {
	rec := httptest.NewRecorder()
	common.Data(rec, http.StatusCreated, map[string]string{"id": "s1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"data":{"id":"s1"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	common.JSONError(rec, http.StatusConflict, "SALE_BUSY", "Try again", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.JSONEq(t, `{"error":{"code":"SALE_BUSY","message":"Try again"}}`, rec.Body.String())
}
