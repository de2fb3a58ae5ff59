package directory_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/directory"
)

type memDirectory struct {
	parties []directory.Party
}

func (m *memDirectory) Search(_ context.Context, kind directory.Kind, text string, _ int) ([]directory.Party, error) {
	out := []directory.Party{}
	for _, p := range m.parties {
		if p.Kind == kind && strings.Contains(strings.ToLower(p.Name), strings.ToLower(text)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memDirectory) Get(_ context.Context, kind directory.Kind, id string) (directory.Party, error) {
	for _, p := range m.parties {
		if p.Kind == kind && p.ID == id {
			return p, nil
		}
	}
	return directory.Party{}, directory.ErrNotFound
}

func (m *memDirectory) Create(_ context.Context, p directory.Party) (directory.Party, error) {
	p.ID = "new-" + p.Name
	m.parties = append(m.parties, p)
	return p, nil
}

func newRouter(dir directory.Directory) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", directory.NewHandler(dir, nil).Routes)
	return r
}

func TestSearchIsScopedByKind(t *testing.T) {
	dir := &memDirectory{parties: []directory.Party{
		{ID: "c1", Kind: directory.Customer, Name: "Ana"},
		{ID: "s1", Kind: directory.Seller, Name: "Ana Seller"},
	}}
	router := newRouter(dir)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sellers?q=ana", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []directory.Party `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "s1", body.Data[0].ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/suppliers", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateValidates(t *testing.T) {
	dir := &memDirectory{}
	router := newRouter(dir)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/customers", strings.NewReader(`{"name":"","email":"nope"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION_FAILED")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/customers", strings.NewReader(`{"name":"Bruno","email":"bruno@example.com"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, dir.parties, 1)
	require.Equal(t, directory.Customer, dir.parties[0].Kind)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/customers/new-Bruno", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestParseKind(t *testing.T) {
	k, ok := directory.ParseKind(" Seller ")
	require.True(t, ok)
	require.Equal(t, directory.Seller, k)
	_, ok = directory.ParseKind("supplier")
	require.False(t, ok)
}
