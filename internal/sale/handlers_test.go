package sale

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/common"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	env := newTestEnv(t)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if op := r.Header.Get("X-Test-Operator"); op != "" {
				r = r.WithContext(common.WithUserID(r.Context(), op))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Route("/api/v1/sales", NewHandler(HandlerConfig{Service: env.svc}).Routes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("X-Test-Operator", "op-1")
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func TestSaleEndpointsFlow(t *testing.T) {
	srv := newTestServer(t)

	status, body := call(t, srv, http.MethodPost, "/api/v1/sales", "")
	require.Equal(t, http.StatusCreated, status)
	var view View
	require.NoError(t, json.Unmarshal(body.Data, &view))
	base := "/api/v1/sales/" + view.ID

	status, body = call(t, srv, http.MethodPost, base+"/finalize", "")
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "EMPTY_CART", body.Error.Code)
	require.Equal(t, "Empty sale", body.Error.Details["title"])

	status, _ = call(t, srv, http.MethodPost, base+"/items", `{"itemId":"cable","quantity":3}`)
	require.Equal(t, http.StatusOK, status)

	status, body = call(t, srv, http.MethodPut, base+"/discount", `{"kind":"percent","value":"10"}`)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body.Data, &view))
	require.True(t, view.Summary.TotalDue.Equal(dec("54")))

	status, body = call(t, srv, http.MethodPut, base+"/discount", `{"kind":"bogus","value":"10"}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "VALIDATION_FAILED", body.Error.Code)

	status, body = call(t, srv, http.MethodPost, base+"/payments", `{"method":"cheque"}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "INVALID_INPUT", body.Error.Code)

	status, body = call(t, srv, http.MethodPost, base+"/payments", `{"method":"debit"}`)
	require.Equal(t, http.StatusCreated, status)
	var added paymentResponse
	require.NoError(t, json.Unmarshal(body.Data, &added))
	require.Equal(t, 0, added.Index)

	status, _ = call(t, srv, http.MethodPut, base+"/payments/0/amount", `{"amount":"50"}`)
	require.Equal(t, http.StatusOK, status)
	status, _ = call(t, srv, http.MethodPut, base+"/payments/0/installments", `{"installments":2}`)
	require.Equal(t, http.StatusBadRequest, status)
	status, body = call(t, srv, http.MethodPut, base+"/payments/9/amount", `{"amount":"1"}`)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "PAYMENT_NOT_FOUND", body.Error.Code)

	status, _ = call(t, srv, http.MethodPut, base+"/seller", `{"sellerId":"seller-1"}`)
	require.Equal(t, http.StatusOK, status)

	// due 54, debit fee 1.25 on 50 leaves 5.25 to cover.
	status, body = call(t, srv, http.MethodPost, base+"/finalize", "")
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "PAYMENT_INCOMPLETE", body.Error.Code)
	require.Equal(t, "5.25", body.Error.Details["missing"])

	status, body = call(t, srv, http.MethodGet, base+"/settle?method=cash", "")
	require.Equal(t, http.StatusOK, status)
	var settle settleResponse
	require.NoError(t, json.Unmarshal(body.Data, &settle))
	require.True(t, settle.Amount.Equal(dec("5.25")))

	status, _ = call(t, srv, http.MethodPost, base+"/payments", `{"method":"cash"}`)
	require.Equal(t, http.StatusCreated, status)
	status, _ = call(t, srv, http.MethodPut, base+"/payments/1/amount", `{"amount":"5.25"}`)
	require.Equal(t, http.StatusOK, status)

	status, body = call(t, srv, http.MethodPost, base+"/finalize", "")
	require.Equal(t, http.StatusCreated, status)
	require.Contains(t, string(body.Data), `"saleId":"`+view.ID+`"`)

	status, body = call(t, srv, http.MethodGet, base, "")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "SALE_NOT_FOUND", body.Error.Code)
}

func TestAbortEndpoint(t *testing.T) {
	srv := newTestServer(t)
	status, body := call(t, srv, http.MethodPost, "/api/v1/sales", "")
	require.Equal(t, http.StatusCreated, status)
	var view View
	require.NoError(t, json.Unmarshal(body.Data, &view))

	status, _ = call(t, srv, http.MethodPost, "/api/v1/sales/"+view.ID+"/items", `{"itemId":"phone-1"}`)
	require.Equal(t, http.StatusOK, status)
	status, _ = call(t, srv, http.MethodDelete, "/api/v1/sales/"+view.ID, "")
	require.Equal(t, http.StatusNoContent, status)
}

func TestMissingOperatorIsUnauthorized(t *testing.T) {
	srv := newTestServer(t)
	resp, err := srv.Client().Post(srv.URL+"/api/v1/sales", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
