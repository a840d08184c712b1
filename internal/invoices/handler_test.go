package invoices

import (
	"encoding/json"
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

func newTestRouter(svc *Service, tenant string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if tenant != "" {
				req = req.WithContext(shared.ContextWithTenant(req.Context(), tenant))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/invoices", NewHandler(slog.Default(), svc).MountRoutes)
	return r
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHandlerInvoiceLifecycle(t *testing.T) {
	svc := newTestService(newMemoryRepo(), ServiceConfig{Renderer: &stubRenderer{}})
	router := newTestRouter(svc, "u1")

	rec := serve(router, http.MethodPost, "/invoices/create", `{"shipmentId":5,"tax_rate":10,"discount_amount":"5","payment_terms":"Net 15"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "215", created.TotalAmount.String())
	assert.Equal(t, "Net 15", created.PaymentTerms)

	rec = serve(router, http.MethodGet, "/invoices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = serve(router, http.MethodGet, "/invoices/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Contains(t, detail, "shipment")
	assert.Contains(t, detail, "sales_order")
	assert.EqualValues(t, 1, detail["id"])

	rec = serve(router, http.MethodGet, "/invoices/1/line-items", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Contains(t, view, "lineItems")
	assert.Contains(t, view, "shipment")

	rec = serve(router, http.MethodGet, "/invoices/1/pdf", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-invoice", rec.Body.String())

	rec = serve(router, http.MethodPost, "/invoices/1/pay", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var paid Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paid))
	assert.Equal(t, StatusPaid, paid.Status)
}

func TestHandlerErrors(t *testing.T) {
	svc := newTestService(newMemoryRepo(), ServiceConfig{})
	router := newTestRouter(svc, "u1")
	require.Equal(t, http.StatusCreated, serve(router, http.MethodPost, "/invoices/create", `{"shipmentId":5}`).Code)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		kind   shared.Kind
	}{
		{"missing shipment", http.MethodPost, "/invoices/create", `{}`, http.StatusBadRequest, shared.KindInvalidInput},
		{"other tenant shipment", http.MethodPost, "/invoices/create", `{"shipmentId":9}`, http.StatusNotFound, shared.KindNotFound},
		{"duplicate", http.MethodPost, "/invoices/create", `{"shipmentId":5}`, http.StatusConflict, shared.KindConflict},
		{"bad terms", http.MethodPost, "/invoices/create", `{"shipmentId":5,"payment_terms":"soon"}`, http.StatusBadRequest, shared.KindInvalidInput},
		{"bad id", http.MethodGet, "/invoices/0", "", http.StatusBadRequest, shared.KindInvalidInput},
		{"unknown invoice", http.MethodGet, "/invoices/77", "", http.StatusNotFound, shared.KindNotFound},
		{"renderer missing", http.MethodGet, "/invoices/1/pdf", "", http.StatusServiceUnavailable, shared.KindUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(router, tc.method, tc.path, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			var body struct {
				Kind shared.Kind `json:"kind"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.kind, body.Kind)
		})
	}
}

func TestHandlerRequiresTenant(t *testing.T) {
	router := newTestRouter(newTestService(newMemoryRepo(), ServiceConfig{}), "")
	rec := serve(router, http.MethodGet, "/invoices", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
