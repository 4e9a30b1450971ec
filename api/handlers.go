/*
handlers.go - HTTP request handlers for the envelope budgeting API

PURPOSE:
  Implements all REST endpoints. Handlers are thin: decode the request,
  resolve the acting user and path parameters, call the service, map the
  result (or error) to JSON. No business rules live here.

ENDPOINTS:
  Budgets:
    GET    /api/v1/budgets                        List budgets for the actor
    POST   /api/v1/budgets                        Create a budget
    GET    /api/v1/budgets/{budgetID}             Get one budget
    PUT    /api/v1/budgets/{budgetID}             Update a budget
    DELETE /api/v1/budgets/{budgetID}             Delete a budget (cascades)

  Categories:
    GET    /api/v1/budgets/{budgetID}/categories          Flat list
    GET    /api/v1/budgets/{budgetID}/categories/tree     Two-level tree
    POST   /api/v1/budgets/{budgetID}/categories          Create
    POST   /api/v1/budgets/{budgetID}/categories/reorder  Bulk reorder
    GET    /api/v1/budgets/{budgetID}/categories/{id}     Get one
    PUT    /api/v1/budgets/{budgetID}/categories/{id}     Update / move
    DELETE /api/v1/budgets/{budgetID}/categories/{id}     Delete (detaches)

  Envelopes, payees, and income sources follow the same CRUD shape under
  the budget; envelopes additionally expose POST .../envelopes/reorder.

  Transactions:
    GET    /api/v1/budgets/{budgetID}/transactions  Filtered list
    POST   /api/v1/budgets/{budgetID}/transactions  Create
    GET    /api/v1/transactions/{id}                Get one
    PUT    /api/v1/transactions/{id}                Update
    DELETE /api/v1/transactions/{id}                Soft delete
    POST   /api/v1/transactions/{id}/restore        Restore (deleter only)

AUTHENTICATION:
  The acting user arrives as an X-Actor-ID header carrying a UUID. The
  actor middleware in server.go rejects requests without one; handlers
  read it from the request context via actorID.

ERROR HANDLING:
  Errors are returned as JSON with the domain taxonomy mapped to status:
  - 400: Validation errors, malformed input
  - 401: Missing/expired credentials
  - 404: Resource not found (including foreign-owner reads)
  - 409: Conflict (duplicates)
  - 503: Transient backend unavailability
  - 500: Everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - service/: The operations behind every endpoint
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
	"github.com/thelarryrutledge/nvlp-app-sub004/service"
)

// =============================================================================
// HANDLER STRUCT
// =============================================================================

// Handler holds the dependencies shared by all endpoints.
type Handler struct {
	svc *service.Service
	log zerolog.Logger
}

func NewHandler(svc *service.Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log.With().Str("component", "api").Logger()}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError maps a domain error onto the HTTP taxonomy.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	resp := ErrorResponse{Code: code, Message: err.Error()}

	var internal *ledger.InternalError
	if errors.As(err, &internal) && internal.Err != nil {
		resp.Message = "internal error in " + internal.Op
		resp.Cause = internal.Err.Error()
	}
	if status >= 500 {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) (int, string) {
	switch {
	case ledger.IsValidation(err):
		return http.StatusBadRequest, "validation_failed"
	case ledger.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case ledger.IsConflict(err):
		return http.StatusConflict, "conflict"
	case ledger.IsAuthExpiry(err):
		return http.StatusUnauthorized, "unauthorized"
	case ledger.IsTransient(err):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "bad_request", Message: message})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

func parseAmount(s, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, &ledger.ValidationError{Field: field, Reason: "not a valid decimal"}
	}
	return d, nil
}

func parseAmountPtr(s *string, field string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := parseAmount(*s, field)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// budgetAndID parses the two common path params, writing the 400 itself.
func (h *Handler) budgetAndID(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	budgetID, err := pathUUID(r, "budgetID")
	if err != nil {
		h.writeBadRequest(w, "invalid budget id")
		return uuid.Nil, uuid.Nil, false
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeBadRequest(w, "invalid id")
		return uuid.Nil, uuid.Nil, false
	}
	return budgetID, id, true
}

// =============================================================================
// BUDGET ENDPOINTS
// =============================================================================

func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r.Context())
	budgets, err := h.svc.ListBudgets(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]BudgetDTO, len(budgets))
	for i, b := range budgets {
		out[i] = toBudgetDTO(b)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	var req CreateBudgetRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	b, err := h.svc.CreateBudget(r.Context(), actorID(r.Context()), service.BudgetInput{
		Name:     req.Name,
		Currency: req.Currency,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetDTO(b))
}

func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	budgetID, err := pathUUID(r, "budgetID")
	if err != nil {
		h.writeBadRequest(w, "invalid budget id")
		return
	}
	b, err := h.svc.GetBudget(r.Context(), actorID(r.Context()), budgetID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTO(b))
}

func (h *Handler) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	budgetID, err := pathUUID(r, "budgetID")
	if err != nil {
		h.writeBadRequest(w, "invalid budget id")
		return
	}
	var req UpdateBudgetRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	b, err := h.svc.UpdateBudget(r.Context(), actorID(r.Context()), budgetID, service.BudgetPatch{
		Name:     req.Name,
		Currency: req.Currency,
		IsActive: req.IsActive,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTO(b))
}

func (h *Handler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	budgetID, err := pathUUID(r, "budgetID")
	if err != nil {
		h.writeBadRequest(w, "invalid budget id")
		return
	}
	if err := h.svc.DeleteBudget(r.Context(), actorID(r.Context()), budgetID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CATEGORY ENDPOINTS
// =============================================================================

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	budgetID, err := pathUUID(r, "budgetID")
	if err != nil {
		h.writeBadRequest(w, "invalid budget id")
		return
	}
	cats, err := h.svc.ListCategories(r.Context(), actorID(r.Context()), budgetID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTOs(cats))
}

func (h *Handler) GetCategoryTree(w http.ResponseWriter, r *http.Request) {
	budgetID, err := pathUUID(r, "budgetID")
	if err != nil {
		h.writeBadRequest(w, "invalid budget id")
		return
	}
	tree, err := h.svc.ListCategoryTree(r.Context(), actorID(r.Context()), budgetID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryTreeDTO(tree))
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	budgetID, err := pathUUID(r, "budgetID")
	if err != nil {
		h.writeBadRequest(w, "invalid budget id")
		return
	}
	var req CreateCategoryRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	c, err := h.svc.CreateCategory(r.Context(), actorID(r.Context()), budgetID, service.CategoryInput{
		Name:     req.Name,
		ParentID: req.ParentID,
		IsIncome: req.IsIncome,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(c))
}

func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	budgetID, id, ok := h.budgetAndID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.GetCategory(r.Context(), actorID(r.Context()), budgetID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(c))
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	budgetID, id, ok := h.budgetAndID(w, r)
	if !ok {
		return
	}
	var req UpdateCategoryRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	c, err := h.svc.UpdateCategory(r.Context(), actorID(r.Context()), budgetID, id, service.CategoryPatch{
		Name:     req.Name,
		ParentID: req.ParentID.patch(),
		IsIncome: req.IsIncome,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(c))
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	budgetID, id, ok := h.budgetAndID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteCategory(r.Context(), actorID(r.Context()), budgetID, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ReorderCategories(w http.ResponseWriter, r *http.Request) {
	budgetID, err := pathUUID(r, "budgetID")
	if err != nil {
		h.writeBadRequest(w, "invalid budget id")
		return
	}
	var req ReorderRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if err := h.svc.ReorderCategories(r.Context(), actorID(r.Context()), budgetID, req.toItems()); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ENVELOPE ENDPOINTS
// =============================================================================

func (h *Handler) ListEnvelopes(w http.ResponseWriter, r *http.Request) {
	budgetID, err := pathUUID(r, "budgetID")
	if err != nil {
		h.writeBadRequest(w, "invalid budget id")
		return
	}
	envs, err := h.svc.ListEnvelopes(r.Context(), actorID(r.Context()), budgetID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]EnvelopeDTO, len(envs))
	for i, e := range envs {
		out[i] = toEnvelopeDTO(e)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateEnvelope(w http.ResponseWriter, r *http.Request) {
	budgetID, err := pathUUID(r, "budgetID")
	if err != nil {
		h.writeBadRequest(w, "invalid budget id")
		return
	}
	var req CreateEnvelopeRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	target, err := parseAmountPtr(req.TargetAmount, "target_amount")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	threshold, err := parseAmountPtr(req.LowThreshold, "low_threshold")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.svc.CreateEnvelope(r.Context(), actorID(r.Context()), budgetID, service.EnvelopeInput{
		Name:         req.Name,
		Type:         ledger.EnvelopeType(req.Type),
		CategoryID:   req.CategoryID,
		TargetAmount: target,
		NotifyOnLow:  req.NotifyOnLow,
		LowThreshold: threshold,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEnvelopeDTO(e))
}

func (h *Handler) GetEnvelope(w http.ResponseWriter, r *http.Request) {
	budgetID, id, ok := h.budgetAndID(w, r)
	if !ok {
		return
	}
	e, err := h.svc.GetEnvelope(r.Context(), actorID(r.Context()), budgetID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnvelopeDTO(e))
}

func (h *Handler) UpdateEnvelope(w http.ResponseWriter, r *http.Request) {
	budgetID, id, ok := h.budgetAndID(w, r)
	if !ok {
		return
	}
	var req UpdateEnvelopeRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	patch := service.EnvelopePatch{
		Name:         req.Name,
		CategoryID:   req.CategoryID.patch(),
		TargetAmount: req.TargetAmount.patch(),
		NotifyOnLow:  req.NotifyOnLow,
		LowThreshold: req.LowThreshold.patch(),
		IsActive:     req.IsActive,
	}
	if req.Type != nil {
		t := ledger.EnvelopeType(*req.Type)
		patch.Type = &t
	}
	e, err := h.svc.UpdateEnvelope(r.Context(), actorID(r.Context()), budgetID, id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnvelopeDTO(e))
}

func (h *Handler) DeleteEnvelope(w http.ResponseWriter, r *http.Request) {
	budgetID, id, ok := h.budgetAndID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteEnvelope(r.Context(), actorID(r.Context()), budgetID, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ReorderEnvelopes(w http.ResponseWriter, r *http.Request) {
	budgetID, err := pathUUID(r, "budgetID")
	if err != nil {
		h.writeBadRequest(w, "invalid budget id")
		return
	}
	var req ReorderRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if err := h.svc.ReorderEnvelopes(r.Context(), actorID(r.Context()), budgetID, req.toItems()); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PAYEE ENDPOINTS
// =============================================================================

func (h *Handler) ListPayees(w http.ResponseWriter, r *http.Request) {
	budgetID, err := pathUUID(r, "budgetID")
	if err != nil {
		h.writeBadRequest(w, "invalid budget id")
		return
	}
	payees, err := h.svc.ListPayees(r.Context(), actorID(r.Context()), budgetID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]PayeeDTO, len(payees))
	for i, p := range payees {
		out[i] = toPayeeDTO(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreatePayee(w http.ResponseWriter, r *http.Request) {
	budgetID, err := pathUUID(r, "budgetID")
	if err != nil {
		h.writeBadRequest(w, "invalid budget id")
		return
	}
	var req CreatePayeeRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	p, err := h.svc.CreatePayee(r.Context(), actorID(r.Context()), budgetID, service.PayeeInput{Name: req.Name})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayeeDTO(p))
}

func (h *Handler) GetPayee(w http.ResponseWriter, r *http.Request) {
	budgetID, id, ok := h.budgetAndID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetPayee(r.Context(), actorID(r.Context()), budgetID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayeeDTO(p))
}

func (h *Handler) UpdatePayee(w http.ResponseWriter, r *http.Request) {
	budgetID, id, ok := h.budgetAndID(w, r)
	if !ok {
		return
	}
	var req UpdatePayeeRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	p, err := h.svc.UpdatePayee(r.Context(), actorID(r.Context()), budgetID, id, service.PayeePatch{
		Name:     req.Name,
		IsActive: req.IsActive,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayeeDTO(p))
}

func (h *Handler) DeletePayee(w http.ResponseWriter, r *http.Request) {
	budgetID, id, ok := h.budgetAndID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeletePayee(r.Context(), actorID(r.Context()), budgetID, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// INCOME SOURCE ENDPOINTS
// =============================================================================

func (h *Handler) ListIncomeSources(w http.ResponseWriter, r *http.Request) {
	budgetID, err := pathUUID(r, "budgetID")
	if err != nil {
		h.writeBadRequest(w, "invalid budget id")
		return
	}
	sources, err := h.svc.ListIncomeSources(r.Context(), actorID(r.Context()), budgetID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]IncomeSourceDTO, len(sources))
	for i, src := range sources {
		out[i] = toIncomeSourceDTO(src)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateIncomeSource(w http.ResponseWriter, r *http.Request) {
	budgetID, err := pathUUID(r, "budgetID")
	if err != nil {
		h.writeBadRequest(w, "invalid budget id")
		return
	}
	var req CreateIncomeSourceRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	amount, err := parseAmount(req.ExpectedAmount, "expected_amount")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	src, err := h.svc.CreateIncomeSource(r.Context(), actorID(r.Context()), budgetID, service.IncomeSourceInput{
		Name:           req.Name,
		ExpectedAmount: amount,
		Schedule:       req.Schedule.toSchedule(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIncomeSourceDTO(src))
}

func (h *Handler) GetIncomeSource(w http.ResponseWriter, r *http.Request) {
	budgetID, id, ok := h.budgetAndID(w, r)
	if !ok {
		return
	}
	src, err := h.svc.GetIncomeSource(r.Context(), actorID(r.Context()), budgetID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncomeSourceDTO(src))
}

func (h *Handler) UpdateIncomeSource(w http.ResponseWriter, r *http.Request) {
	budgetID, id, ok := h.budgetAndID(w, r)
	if !ok {
		return
	}
	var req UpdateIncomeSourceRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	amount, err := parseAmountPtr(req.ExpectedAmount, "expected_amount")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	patch := service.IncomeSourcePatch{
		Name:           req.Name,
		ExpectedAmount: amount,
		IsActive:       req.IsActive,
	}
	if req.Schedule != nil {
		sch := req.Schedule.toSchedule()
		patch.Schedule = &sch
	}
	src, err := h.svc.UpdateIncomeSource(r.Context(), actorID(r.Context()), budgetID, id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncomeSourceDTO(src))
}

func (h *Handler) DeleteIncomeSource(w http.ResponseWriter, r *http.Request) {
	budgetID, id, ok := h.budgetAndID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteIncomeSource(r.Context(), actorID(r.Context()), budgetID, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRANSACTION ENDPOINTS
// =============================================================================

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	budgetID, err := pathUUID(r, "budgetID")
	if err != nil {
		h.writeBadRequest(w, "invalid budget id")
		return
	}
	filter, err := transactionFilterFromQuery(r)
	if err != nil {
		h.writeBadRequest(w, err.Error())
		return
	}
	txs, err := h.svc.ListTransactions(r.Context(), actorID(r.Context()), budgetID, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		out[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	budgetID, err := pathUUID(r, "budgetID")
	if err != nil {
		h.writeBadRequest(w, "invalid budget id")
		return
	}
	var req CreateTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tx, err := h.svc.CreateTransaction(r.Context(), actorID(r.Context()), budgetID, service.TransactionInput{
		Type:            ledger.TransactionType(req.Type),
		Amount:          amount,
		TransactionDate: req.TransactionDate.Time,
		Description:     req.Description,
		FromEnvelopeID:  req.FromEnvelopeID,
		ToEnvelopeID:    req.ToEnvelopeID,
		PayeeID:         req.PayeeID,
		IncomeSourceID:  req.IncomeSourceID,
		CategoryID:      req.CategoryID,
		IsCleared:       req.IsCleared,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeBadRequest(w, "invalid transaction id")
		return
	}
	tx, err := h.svc.GetTransaction(r.Context(), actorID(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeBadRequest(w, "invalid transaction id")
		return
	}
	var req UpdateTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	amount, err := parseAmountPtr(req.Amount, "amount")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	patch := service.TransactionPatch{
		Amount:         amount,
		Description:    req.Description,
		FromEnvelopeID: req.FromEnvelopeID.patch(),
		ToEnvelopeID:   req.ToEnvelopeID.patch(),
		PayeeID:        req.PayeeID.patch(),
		IncomeSourceID: req.IncomeSourceID.patch(),
		CategoryID:     req.CategoryID.patch(),
		IsCleared:      req.IsCleared,
		IsReconciled:   req.IsReconciled,
	}
	if req.TransactionDate != nil {
		patch.TransactionDate = &req.TransactionDate.Time
	}
	tx, err := h.svc.UpdateTransaction(r.Context(), actorID(r.Context()), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeBadRequest(w, "invalid transaction id")
		return
	}
	if err := h.svc.SoftDeleteTransaction(r.Context(), actorID(r.Context()), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RestoreTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeBadRequest(w, "invalid transaction id")
		return
	}
	tx, err := h.svc.RestoreTransaction(r.Context(), actorID(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// transactionFilterFromQuery reads the list filter from query params.
// Unknown params are ignored; malformed values are rejected.
func transactionFilterFromQuery(r *http.Request) (ledger.TransactionFilter, error) {
	var f ledger.TransactionFilter
	q := r.URL.Query()

	if v := q.Get("date_from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, errors.New("invalid date_from, want YYYY-MM-DD")
		}
		f.DateFrom = &t
	}
	if v := q.Get("date_to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, errors.New("invalid date_to, want YYYY-MM-DD")
		}
		f.DateTo = &t
	}
	if v := q.Get("type"); v != "" {
		t := ledger.TransactionType(v)
		f.Type = &t
	}
	for param, dst := range map[string]**uuid.UUID{
		"envelope_id":      &f.EnvelopeID,
		"payee_id":         &f.PayeeID,
		"income_source_id": &f.IncomeSourceID,
		"category_id":      &f.CategoryID,
	} {
		if v := q.Get(param); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return f, errors.New("invalid " + param)
			}
			*dst = &id
		}
	}
	for param, dst := range map[string]**bool{
		"is_cleared":    &f.IsCleared,
		"is_reconciled": &f.IsReconciled,
	} {
		if v := q.Get(param); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return f, errors.New("invalid " + param)
			}
			*dst = &b
		}
	}
	for param, dst := range map[string]**decimal.Decimal{
		"amount_min": &f.AmountMin,
		"amount_max": &f.AmountMax,
	} {
		if v := q.Get(param); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				return f, errors.New("invalid " + param)
			}
			*dst = &d
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("invalid limit")
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("invalid offset")
		}
		f.Offset = n
	}
	return f, nil
}
