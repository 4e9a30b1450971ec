package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgerstore "github.com/thelarryrutledge/nvlp-app-sub004/ledger/store"
	"github.com/thelarryrutledge/nvlp-app-sub004/service"
)

// =============================================================================
// TEST FIXTURE
// =============================================================================

type fixture struct {
	router http.Handler
	actor  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	svc := service.New(service.Options{
		Store:  ledgerstore.NewTxMemory(),
		Logger: zerolog.Nop(),
	})
	h := NewHandler(svc, zerolog.Nop())
	return &fixture{
		router: NewRouter(h, zerolog.Nop()),
		actor:  uuid.New(),
	}
}

// do performs a request as the fixture's actor and decodes the JSON
// response body into out when out is non-nil.
func (f *fixture) do(t *testing.T, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	return f.doAs(t, f.actor.String(), method, path, body, out)
}

func (f *fixture) doAs(t *testing.T, actor, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func (f *fixture) createBudget(t *testing.T) BudgetDTO {
	t.Helper()
	var b BudgetDTO
	rec := f.do(t, http.MethodPost, "/api/v1/budgets", CreateBudgetRequest{Name: "Household"}, &b)
	require.Equal(t, http.StatusCreated, rec.Code)
	return b
}

func (f *fixture) createEnvelope(t *testing.T, budgetID uuid.UUID, name string) EnvelopeDTO {
	t.Helper()
	var e EnvelopeDTO
	rec := f.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/budgets/%s/envelopes", budgetID),
		CreateEnvelopeRequest{Name: name}, &e)
	require.Equal(t, http.StatusCreated, rec.Code)
	return e
}

// =============================================================================
// AUTH AND ERROR MAPPING
// =============================================================================

func TestMissingActorHeaderIsUnauthorized(t *testing.T) {
	f := newFixture(t)

	rec := f.doAs(t, "", http.MethodGet, "/api/v1/budgets", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unauthorized", resp.Code)
}

func TestMalformedActorHeaderIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	rec := f.doAs(t, "not-a-uuid", http.MethodGet, "/api/v1/budgets", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidationErrorsMapTo400(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/budgets", CreateBudgetRequest{Name: ""}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_failed", resp.Code)
}

func TestUnknownBudgetMapsTo404(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/budgets/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestForeignBudgetReadsAs404(t *testing.T) {
	f := newFixture(t)
	b := f.createBudget(t)

	rec := f.doAs(t, uuid.NewString(), http.MethodGet, "/api/v1/budgets/"+b.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// BUDGET CRUD OVER HTTP
// =============================================================================

func TestBudgetLifecycle(t *testing.T) {
	f := newFixture(t)
	b := f.createBudget(t)
	assert.Equal(t, "USD", b.Currency)
	assert.Equal(t, "0", b.AvailableAmount)

	var listed []BudgetDTO
	rec := f.do(t, http.MethodGet, "/api/v1/budgets", nil, &listed)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, listed, 1)

	name := "Renamed"
	var updated BudgetDTO
	rec = f.do(t, http.MethodPut, "/api/v1/budgets/"+b.ID.String(),
		UpdateBudgetRequest{Name: &name}, &updated)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", updated.Name)

	rec = f.do(t, http.MethodDelete, "/api/v1/budgets/"+b.ID.String(), nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/budgets/"+b.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// CATEGORY ROUTES
// =============================================================================

func TestCategoryTreeEndpoint(t *testing.T) {
	f := newFixture(t)
	b := f.createBudget(t)
	base := fmt.Sprintf("/api/v1/budgets/%s/categories", b.ID)

	var parent CategoryDTO
	rec := f.do(t, http.MethodPost, base, CreateCategoryRequest{Name: "Bills"}, &parent)
	require.Equal(t, http.StatusCreated, rec.Code)

	var child CategoryDTO
	rec = f.do(t, http.MethodPost, base,
		CreateCategoryRequest{Name: "Utilities", ParentID: &parent.ID}, &child)
	require.Equal(t, http.StatusCreated, rec.Code)

	var tree []CategoryTreeNodeDTO
	rec = f.do(t, http.MethodGet, base+"/tree", nil, &tree)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, tree, 1)
	assert.Equal(t, "Bills", tree[0].Name)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "Utilities", tree[0].Children[0].Name)
}

func TestCategoryReorderEndpoint(t *testing.T) {
	f := newFixture(t)
	b := f.createBudget(t)
	base := fmt.Sprintf("/api/v1/budgets/%s/categories", b.ID)

	var first, second CategoryDTO
	f.do(t, http.MethodPost, base, CreateCategoryRequest{Name: "A"}, &first)
	f.do(t, http.MethodPost, base, CreateCategoryRequest{Name: "B"}, &second)

	rec := f.do(t, http.MethodPost, base+"/reorder", ReorderRequest{
		Items: []ReorderItemDTO{
			{ID: second.ID, NewOrder: 0},
			{ID: first.ID, NewOrder: 1},
		},
	}, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	var cats []CategoryDTO
	rec = f.do(t, http.MethodGet, base, nil, &cats)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, cats, 2)
	assert.Equal(t, "B", cats[0].Name)
	assert.Equal(t, "A", cats[1].Name)
}

// =============================================================================
// TRANSACTION ROUTES
// =============================================================================

func TestTransactionFlowOverHTTP(t *testing.T) {
	f := newFixture(t)
	b := f.createBudget(t)
	env := f.createEnvelope(t, b.ID, "Groceries")

	txBase := fmt.Sprintf("/api/v1/budgets/%s/transactions", b.ID)

	var income TransactionDTO
	rec := f.do(t, http.MethodPost, txBase, map[string]any{
		"type":             "income",
		"amount":           "100.00",
		"transaction_date": "2026-08-01",
	}, &income)
	require.Equal(t, http.StatusCreated, rec.Code)

	var alloc TransactionDTO
	rec = f.do(t, http.MethodPost, txBase, map[string]any{
		"type":             "allocation",
		"amount":           "40.00",
		"transaction_date": "2026-08-02",
		"to_envelope_id":   env.ID,
	}, &alloc)
	require.Equal(t, http.StatusCreated, rec.Code)

	var gotBudget BudgetDTO
	f.do(t, http.MethodGet, "/api/v1/budgets/"+b.ID.String(), nil, &gotBudget)
	assert.Equal(t, "60", gotBudget.AvailableAmount)

	var gotEnv EnvelopeDTO
	f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/budgets/%s/envelopes/%s", b.ID, env.ID), nil, &gotEnv)
	assert.Equal(t, "40", gotEnv.CurrentBalance)

	// Filtered list: only allocations touching the envelope.
	var listed []TransactionDTO
	rec = f.do(t, http.MethodGet, txBase+"?envelope_id="+env.ID.String(), nil, &listed)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, listed, 1)
	assert.Equal(t, alloc.ID, listed[0].ID)
}

func TestTransactionShapeErrorsOverHTTP(t *testing.T) {
	f := newFixture(t)
	b := f.createBudget(t)
	txBase := fmt.Sprintf("/api/v1/budgets/%s/transactions", b.ID)

	// income must not reference an envelope
	env := f.createEnvelope(t, b.ID, "Rent")
	rec := f.do(t, http.MethodPost, txBase, map[string]any{
		"type":             "income",
		"amount":           "10.00",
		"transaction_date": "2026-08-01",
		"to_envelope_id":   env.ID,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, txBase, map[string]any{
		"type":             "income",
		"amount":           "not-money",
		"transaction_date": "2026-08-01",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSoftDeleteAndRestoreOverHTTP(t *testing.T) {
	f := newFixture(t)
	b := f.createBudget(t)
	txBase := fmt.Sprintf("/api/v1/budgets/%s/transactions", b.ID)

	var income TransactionDTO
	rec := f.do(t, http.MethodPost, txBase, map[string]any{
		"type":             "income",
		"amount":           "50.00",
		"transaction_date": "2026-08-01",
	}, &income)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/transactions/"+income.ID.String(), nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/transactions/"+income.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Someone else cannot restore it.
	rec = f.doAs(t, uuid.NewString(), http.MethodPost,
		"/api/v1/transactions/"+income.ID.String()+"/restore", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var restored TransactionDTO
	rec = f.do(t, http.MethodPost, "/api/v1/transactions/"+income.ID.String()+"/restore", nil, &restored)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, income.ID, restored.ID)

	var gotBudget BudgetDTO
	f.do(t, http.MethodGet, "/api/v1/budgets/"+b.ID.String(), nil, &gotBudget)
	assert.Equal(t, "50", gotBudget.AvailableAmount)
}

// =============================================================================
// UPDATE SEMANTICS
// =============================================================================

func TestEnvelopeUpdateClearsThresholdWithNull(t *testing.T) {
	f := newFixture(t)
	b := f.createBudget(t)

	threshold := "5.00"
	var e EnvelopeDTO
	rec := f.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/budgets/%s/envelopes", b.ID),
		CreateEnvelopeRequest{Name: "Fuel", NotifyOnLow: true, LowThreshold: &threshold}, &e)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, e.LowThreshold)

	// Raw JSON: explicit null clears, absence leaves alone.
	var updated EnvelopeDTO
	rec = f.do(t, http.MethodPut,
		fmt.Sprintf("/api/v1/budgets/%s/envelopes/%s", b.ID, e.ID),
		json.RawMessage(`{"low_threshold":null}`), &updated)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, updated.LowThreshold)
	assert.Equal(t, "Fuel", updated.Name)
}

func TestUnknownFieldsAreRejected(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/budgets",
		json.RawMessage(`{"name":"X","bogus":true}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
