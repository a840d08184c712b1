package rfq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalyard/metalyard/internal/inventory"
	"github.com/metalyard/metalyard/internal/shared"
)

type stubInterpreter struct {
	summary Summary
	items   []Suggestion
	err     error
	drafts  []DraftRequest
	texts   []string
}

func (s *stubInterpreter) ParseRFQ(ctx context.Context, text string) (Summary, error) {
	s.texts = append(s.texts, text)
	return s.summary, s.err
}

func (s *stubInterpreter) DraftQuote(ctx context.Context, req DraftRequest) ([]Suggestion, error) {
	s.drafts = append(s.drafts, req)
	return s.items, s.err
}

type stubInventory struct {
	items []inventory.Item
	err   error
}

func (s stubInventory) List(ctx context.Context, tenant string) ([]inventory.Item, error) {
	out := make([]inventory.Item, 0)
	for _, it := range s.items {
		if it.UserID == tenant {
			out = append(out, it)
		}
	}
	return out, s.err
}

func f64(v float64) *float64 { return &v }

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
	NewHandler(slog.Default(), svc).MountRoutes(r)
	return r
}

func post(router http.Handler, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func TestDraftLoadsCallerInventory(t *testing.T) {
	interp := &stubInterpreter{items: []Suggestion{{MaterialName: "Steel", Grade: "A36", MatchStatus: MatchExact}}}
	stock := stubInventory{items: []inventory.Item{
		{UserID: "u1", MaterialName: "Steel", GradeLabel: "A36", Dimensions: shared.Dims(10, 5, 0.25), OnHand: 80},
		{UserID: "u2", MaterialName: "Steel", GradeLabel: "A36", OnHand: 999},
	}}
	router := newTestRouter(NewService(interp, stock, nil), "u1")

	rec := post(router, "/ai-draft-quote", `{"parsedRfqs":[{"material_name":"Steel","grade":"A36","dimensions":"L: 10, W: 5, T: 0.25","quantity":20}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var draft Draft
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &draft))
	require.Len(t, draft.Items, 1)

	require.Len(t, interp.drafts, 1)
	offered := interp.drafts[0].InventoryList
	require.Len(t, offered, 1)
	assert.Equal(t, 80.0, offered[0].OnHand)
	assert.Equal(t, "A36", offered[0].GradeName)
	require.NotNil(t, offered[0].Width)
	assert.Equal(t, 5.0, *offered[0].Width)
}

func TestDraftFiltersSuppliedInventory(t *testing.T) {
	interp := &stubInterpreter{items: []Suggestion{}}
	svc := NewService(interp, nil, nil)

	draft, err := svc.Draft(context.Background(), "u1", DraftRequest{
		ParsedRFQs: []RequestedItem{{MaterialName: "Steel"}},
		InventoryList: []InventoryEntry{
			{UserID: "u1", MaterialName: "Steel", Length: f64(10), OnHand: 5},
			{UserID: "u2", MaterialName: "Steel", OnHand: 500},
		},
	})
	require.NoError(t, err)
	assert.NotNil(t, draft.Items)
	require.Len(t, interp.drafts, 1)
	require.Len(t, interp.drafts[0].InventoryList, 1)
	assert.Equal(t, "u1", interp.drafts[0].InventoryList[0].UserID)
}

func TestDraftWithoutOwnedStockSkipsModel(t *testing.T) {
	interp := &stubInterpreter{}
	svc := NewService(interp, nil, nil)

	draft, err := svc.Draft(context.Background(), "u1", DraftRequest{
		ParsedRFQs:    []RequestedItem{{MaterialName: "Steel"}},
		InventoryList: []InventoryEntry{{UserID: "u2", MaterialName: "Steel", OnHand: 500}},
	})
	require.NoError(t, err)
	assert.Empty(t, draft.Items)
	assert.Empty(t, interp.drafts)
}

func TestDraftInventoryFailure(t *testing.T) {
	boom := errors.New("db down")
	svc := NewService(&stubInterpreter{}, stubInventory{err: boom}, nil)
	_, err := svc.Draft(context.Background(), "u1", DraftRequest{ParsedRFQs: []RequestedItem{{MaterialName: "Steel"}}})
	require.ErrorIs(t, err, boom)
}

func TestParseHandler(t *testing.T) {
	interp := &stubInterpreter{summary: Summary{Materials: []RequestedMaterial{{Name: "Steel", Grade: "A36"}}, Customer: "Acme"}}
	router := newTestRouter(NewService(interp, nil, nil), "u1")

	rec := post(router, "/parse-rfq", `{"text":"  5 pcs A36 plate  "}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "Acme", summary.Customer)
	assert.Equal(t, []string{"5 pcs A36 plate"}, interp.texts)
}

func TestHandlerErrors(t *testing.T) {
	failing := &stubInterpreter{err: ErrInvalidResponse.WithDetails("Response missing items array")}
	stock := stubInventory{items: []inventory.Item{{UserID: "u1", MaterialName: "Steel", OnHand: 1}}}
	router := newTestRouter(NewService(failing, stock, nil), "u1")

	cases := []struct {
		name   string
		path   string
		body   string
		status int
		kind   shared.Kind
	}{
		{"parse without text", "/parse-rfq", `{}`, http.StatusBadRequest, shared.KindInvalidInput},
		{"parse blank text", "/parse-rfq", `{"text":"   "}`, http.StatusBadRequest, shared.KindInvalidInput},
		{"parse upstream", "/parse-rfq", `{"text":"steel"}`, http.StatusBadGateway, shared.KindUpstreamFailure},
		{"draft without items", "/ai-draft-quote", `{"inventoryList":[]}`, http.StatusBadRequest, shared.KindInvalidInput},
		{"draft malformed", "/ai-draft-quote", `{"parsedRfqs":`, http.StatusBadRequest, shared.KindInvalidInput},
		{"draft upstream", "/ai-draft-quote", `{"parsedRfqs":[{"material_name":"Steel"}]}`, http.StatusBadGateway, shared.KindUpstreamFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := post(router, tc.path, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			var body struct {
				Kind    shared.Kind `json:"kind"`
				Details string      `json:"details"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.kind, body.Kind)
		})
	}
}

func TestHandlerRequiresTenant(t *testing.T) {
	router := newTestRouter(NewService(&stubInterpreter{}, nil, nil), "")
	assert.Equal(t, http.StatusUnauthorized, post(router, "/parse-rfq", `{"text":"x"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, post(router, "/ai-draft-quote", `{}`).Code)
}
