package quotes

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalyard/metalyard/internal/shared"
)

func newQuoteRouter(repo *memoryRepo, tenant string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if tenant != "" {
				req = req.WithContext(shared.ContextWithTenant(req.Context(), tenant))
			}
			next.ServeHTTP(w, req)
		})
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r.Route("/quotes", NewHandler(logger, NewService(repo, nil)).MountRoutes)
	return r
}

func call(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const createBody = `{
	"customer_name": "Acme Fabrication",
	"notes": "rush",
	"line_items": [
		{"material_id": 1, "material_name": "Steel", "grade": "A36", "dimensions": "L: 10, W: 5, T: 0.25", "quantity": 20, "unit_price": "10"},
		{"material_id": 2, "material_name": "Aluminum", "grade": "6061", "length": 12, "quantity": 3, "unit_price": 18.75, "subtotal": 56.25}
	]
}`

func TestQuoteHandlerCreateAndFetch(t *testing.T) {
	repo := newMemoryRepo()
	h := newQuoteRouter(repo, "user-1")

	rec := call(h, http.MethodPost, "/quotes", createBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, StatusDraft, created.Status)
	assert.Equal(t, "256.25", created.TotalPrice.String())
	require.Len(t, created.LineItems, 2)
	assert.Equal(t, "L: 10, W: 5, T: 0.25", created.LineItems[0].DimensionsLabel)
	assert.Equal(t, "L: 12", created.LineItems[1].DimensionsLabel)

	rec = call(h, http.MethodGet, "/quotes/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"customer_name":"Acme Fabrication"`)

	rec = call(h, http.MethodGet, "/quotes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = call(h, http.MethodPatch, "/quotes/1", `{"status":"sent","notes":"revised"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"sent"`)
}

func TestQuoteHandlerErrors(t *testing.T) {
	repo := newMemoryRepo()
	h := newQuoteRouter(repo, "user-1")
	require.Equal(t, http.StatusCreated, call(h, http.MethodPost, "/quotes", createBody).Code)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		kind   shared.Kind
	}{
		{"sub-cent price", http.MethodPost, "/quotes", `{"customer_name":"Acme","line_items":[{"material_id":1,"grade":"A36","quantity":1,"unit_price":"1.005"}]}`, http.StatusBadRequest, shared.KindInvalidInput},
		{"missing customer", http.MethodPost, "/quotes", `{"line_items":[{"material_id":1,"grade":"A36","quantity":1}]}`, http.StatusBadRequest, shared.KindInvalidInput},
		{"bad dimensions", http.MethodPost, "/quotes", `{"customer_name":"Acme","line_items":[{"material_id":1,"grade":"A36","dimensions":"big","quantity":1,"unit_price":"1"}]}`, http.StatusBadRequest, shared.KindInvalidInput},
		{"subtotal mismatch", http.MethodPost, "/quotes", `{"customer_name":"Acme","line_items":[{"material_id":1,"grade":"A36","quantity":2,"unit_price":"5","subtotal":"11"}]}`, http.StatusBadRequest, shared.KindInvalidInput},
		{"accept through create", http.MethodPost, "/quotes", `{"customer_name":"Acme","status":"accepted","line_items":[{"material_id":1,"grade":"A36","quantity":1,"unit_price":"1"}]}`, http.StatusConflict, shared.KindInvalidState},
		{"accept through patch", http.MethodPatch, "/quotes/1", `{"status":"accepted"}`, http.StatusConflict, shared.KindInvalidState},
		{"unknown status", http.MethodPatch, "/quotes/1", `{"status":"won"}`, http.StatusBadRequest, shared.KindInvalidInput},
		{"missing quote", http.MethodGet, "/quotes/99", ``, http.StatusNotFound, shared.KindNotFound},
		{"bad id", http.MethodGet, "/quotes/abc", ``, http.StatusBadRequest, shared.KindInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(h, tc.method, tc.path, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"kind":"`+string(tc.kind)+`"`)
		})
	}
}

func TestQuoteHandlerCreatesQuoteWithoutLines(t *testing.T) {
	h := newQuoteRouter(newMemoryRepo(), "user-1")

	rec := call(h, http.MethodPost, "/quotes", `{"customer_name":"Acme","line_items":[]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"total_price":"0"`)
}

func TestQuoteHandlerScopesByTenant(t *testing.T) {
	repo := newMemoryRepo()
	require.Equal(t, http.StatusCreated, call(newQuoteRouter(repo, "user-1"), http.MethodPost, "/quotes", createBody).Code)

	other := newQuoteRouter(repo, "user-2")
	assert.Equal(t, http.StatusNotFound, call(other, http.MethodGet, "/quotes/1", "").Code)
	assert.Equal(t, http.StatusNotFound, call(other, http.MethodPatch, "/quotes/1", `{"notes":"x"}`).Code)
	rec := call(other, http.MethodGet, "/quotes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	anon := newQuoteRouter(repo, "")
	assert.Equal(t, http.StatusUnauthorized, call(anon, http.MethodGet, "/quotes", "").Code)
}
