/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

CONVENTIONS:
  Money travels as decimal strings, never floats. Dates accept either
  "2006-01-02" or full RFC3339 and marshal as the former. Nullable
  reference fields on update requests use OptUUID / OptDecimal so that
  "absent", "null" (clear), and "set" are three different things.

TYPES:
  Budgets:
    BudgetDTO, CreateBudgetRequest, UpdateBudgetRequest

  Categories:
    CategoryDTO, CategoryTreeNodeDTO, CreateCategoryRequest,
    UpdateCategoryRequest

  Envelopes:
    EnvelopeDTO, CreateEnvelopeRequest, UpdateEnvelopeRequest

  Payees / Income sources:
    PayeeDTO, IncomeSourceDTO, ScheduleDTO and their requests

  Transactions:
    TransactionDTO, CreateTransactionRequest, UpdateTransactionRequest

  Reordering:
    ReorderRequest, ReorderItemDTO

VALIDATION:
  Shape validation (parseable UUIDs, decimals, dates) happens while
  decoding; semantic validation lives in the service layer.

SEE ALSO:
  - handlers.go: Uses these types
  - service/: The domain operations behind them
*/
package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
	"github.com/thelarryrutledge/nvlp-app-sub004/service"
)

// =============================================================================
// COMMON TYPES
// =============================================================================

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// OptUUID distinguishes an absent JSON key from an explicit null. Null
// clears the reference; absence leaves it alone.
type OptUUID struct {
	Set   bool
	Value *uuid.UUID
}

func (o *OptUUID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	o.Value = &id
	return nil
}

func (o OptUUID) patch() service.RefPatch {
	return service.RefPatch{Set: o.Set, Value: o.Value}
}

// OptDecimal is OptUUID for money fields.
type OptDecimal struct {
	Set   bool
	Value *decimal.Decimal
}

func (o *OptDecimal) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	o.Value = &d
	return nil
}

func (o OptDecimal) patch() service.RefAmountPatch {
	return service.RefAmountPatch{Set: o.Set, Value: o.Value}
}

// Date accepts "2006-01-02" or RFC3339 and marshals as the former.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC3339", s)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format("2006-01-02"))
}

// =============================================================================
// BUDGETS
// =============================================================================

type BudgetDTO struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Currency        string    `json:"currency"`
	AvailableAmount string    `json:"available_amount"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toBudgetDTO(b ledger.Budget) BudgetDTO {
	return BudgetDTO{
		ID:              b.ID,
		Name:            b.Name,
		Currency:        b.Currency,
		AvailableAmount: b.AvailableAmount.String(),
		IsActive:        b.IsActive,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

type CreateBudgetRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

type UpdateBudgetRequest struct {
	Name     *string `json:"name"`
	Currency *string `json:"currency"`
	IsActive *bool   `json:"is_active"`
}

// =============================================================================
// CATEGORIES
// =============================================================================

type CategoryDTO struct {
	ID           uuid.UUID  `json:"id"`
	BudgetID     uuid.UUID  `json:"budget_id"`
	ParentID     *uuid.UUID `json:"parent_id,omitempty"`
	Name         string     `json:"name"`
	DisplayOrder int        `json:"display_order"`
	IsIncome     bool       `json:"is_income"`
	IsSystem     bool       `json:"is_system"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toCategoryDTO(c ledger.Category) CategoryDTO {
	return CategoryDTO{
		ID:           c.ID,
		BudgetID:     c.BudgetID,
		ParentID:     c.ParentID,
		Name:         c.Name,
		DisplayOrder: c.DisplayOrder,
		IsIncome:     c.IsIncome,
		IsSystem:     c.IsSystem,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func toCategoryDTOs(cats []ledger.Category) []CategoryDTO {
	out := make([]CategoryDTO, len(cats))
	for i, c := range cats {
		out[i] = toCategoryDTO(c)
	}
	return out
}

type CategoryTreeNodeDTO struct {
	CategoryDTO
	Children []CategoryDTO `json:"children"`
}

func toCategoryTreeDTO(nodes []service.CategoryNode) []CategoryTreeNodeDTO {
	out := make([]CategoryTreeNodeDTO, len(nodes))
	for i, n := range nodes {
		out[i] = CategoryTreeNodeDTO{
			CategoryDTO: toCategoryDTO(n.Category),
			Children:    toCategoryDTOs(n.Children),
		}
	}
	return out
}

type CreateCategoryRequest struct {
	Name     string     `json:"name"`
	ParentID *uuid.UUID `json:"parent_id"`
	IsIncome bool       `json:"is_income"`
}

type UpdateCategoryRequest struct {
	Name     *string `json:"name"`
	ParentID OptUUID `json:"parent_id"`
	IsIncome *bool   `json:"is_income"`
}

// =============================================================================
// ENVELOPES
// =============================================================================

type EnvelopeDTO struct {
	ID             uuid.UUID  `json:"id"`
	BudgetID       uuid.UUID  `json:"budget_id"`
	CategoryID     *uuid.UUID `json:"category_id,omitempty"`
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	CurrentBalance string     `json:"current_balance"`
	TargetAmount   *string    `json:"target_amount,omitempty"`
	DisplayOrder   int        `json:"display_order"`
	NotifyOnLow    bool       `json:"notify_on_low"`
	LowThreshold   *string    `json:"low_threshold,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toEnvelopeDTO(e ledger.Envelope) EnvelopeDTO {
	return EnvelopeDTO{
		ID:             e.ID,
		BudgetID:       e.BudgetID,
		CategoryID:     e.CategoryID,
		Name:           e.Name,
		Type:           string(e.Type),
		CurrentBalance: e.CurrentBalance.String(),
		TargetAmount:   decimalPtrString(e.TargetAmount),
		DisplayOrder:   e.DisplayOrder,
		NotifyOnLow:    e.NotifyOnLow,
		LowThreshold:   decimalPtrString(e.LowThreshold),
		IsActive:       e.IsActive,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

type CreateEnvelopeRequest struct {
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	CategoryID   *uuid.UUID `json:"category_id"`
	TargetAmount *string    `json:"target_amount"`
	NotifyOnLow  bool       `json:"notify_on_low"`
	LowThreshold *string    `json:"low_threshold"`
}

type UpdateEnvelopeRequest struct {
	Name         *string    `json:"name"`
	Type         *string    `json:"type"`
	CategoryID   OptUUID    `json:"category_id"`
	TargetAmount OptDecimal `json:"target_amount"`
	NotifyOnLow  *bool      `json:"notify_on_low"`
	LowThreshold OptDecimal `json:"low_threshold"`
	IsActive     *bool      `json:"is_active"`
}

// =============================================================================
// PAYEES AND INCOME SOURCES
// =============================================================================

type PayeeDTO struct {
	ID                uuid.UUID  `json:"id"`
	BudgetID          uuid.UUID  `json:"budget_id"`
	Name              string     `json:"name"`
	TotalPaid         string     `json:"total_paid"`
	LastPaymentDate   *time.Time `json:"last_payment_date,omitempty"`
	LastPaymentAmount *string    `json:"last_payment_amount,omitempty"`
	IsActive          bool       `json:"is_active"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toPayeeDTO(p ledger.Payee) PayeeDTO {
	return PayeeDTO{
		ID:                p.ID,
		BudgetID:          p.BudgetID,
		Name:              p.Name,
		TotalPaid:         p.TotalPaid.String(),
		LastPaymentDate:   p.LastPaymentDate,
		LastPaymentAmount: decimalPtrString(p.LastPaymentAmount),
		IsActive:          p.IsActive,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

type CreatePayeeRequest struct {
	Name string `json:"name"`
}

type UpdatePayeeRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"is_active"`
}

type ScheduleDTO struct {
	Frequency  string `json:"frequency"`
	Weekday    int    `json:"weekday,omitempty"`
	DayOfMonth int    `json:"day_of_month,omitempty"`
	FirstDay   int    `json:"first_day,omitempty"`
	SecondDay  int    `json:"second_day,omitempty"`
	AnchorDate *Date  `json:"anchor_date,omitempty"`
}

func (s ScheduleDTO) toSchedule() ledger.Schedule {
	sch := ledger.Schedule{
		Frequency:  ledger.ScheduleFrequency(s.Frequency),
		Weekday:    time.Weekday(s.Weekday),
		DayOfMonth: s.DayOfMonth,
		FirstDay:   s.FirstDay,
		SecondDay:  s.SecondDay,
	}
	if s.AnchorDate != nil {
		sch.AnchorDate = s.AnchorDate.Time
	}
	return sch
}

func toScheduleDTO(s ledger.Schedule) ScheduleDTO {
	dto := ScheduleDTO{
		Frequency:  string(s.Frequency),
		Weekday:    int(s.Weekday),
		DayOfMonth: s.DayOfMonth,
		FirstDay:   s.FirstDay,
		SecondDay:  s.SecondDay,
	}
	if !s.AnchorDate.IsZero() {
		dto.AnchorDate = &Date{s.AnchorDate}
	}
	return dto
}

type IncomeSourceDTO struct {
	ID               uuid.UUID   `json:"id"`
	BudgetID         uuid.UUID   `json:"budget_id"`
	Name             string      `json:"name"`
	ExpectedAmount   string      `json:"expected_amount"`
	Schedule         ScheduleDTO `json:"schedule"`
	NextExpectedDate *Date       `json:"next_expected_date,omitempty"`
	IsActive         bool        `json:"is_active"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

func toIncomeSourceDTO(src ledger.IncomeSource) IncomeSourceDTO {
	dto := IncomeSourceDTO{
		ID:             src.ID,
		BudgetID:       src.BudgetID,
		Name:           src.Name,
		ExpectedAmount: src.ExpectedAmount.String(),
		Schedule:       toScheduleDTO(src.Schedule),
		IsActive:       src.IsActive,
		CreatedAt:      src.CreatedAt,
		UpdatedAt:      src.UpdatedAt,
	}
	if src.NextExpectedDate != nil {
		dto.NextExpectedDate = &Date{*src.NextExpectedDate}
	}
	return dto
}

type CreateIncomeSourceRequest struct {
	Name           string      `json:"name"`
	ExpectedAmount string      `json:"expected_amount"`
	Schedule       ScheduleDTO `json:"schedule"`
}

type UpdateIncomeSourceRequest struct {
	Name           *string      `json:"name"`
	ExpectedAmount *string      `json:"expected_amount"`
	Schedule       *ScheduleDTO `json:"schedule"`
	IsActive       *bool        `json:"is_active"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionDTO struct {
	ID              uuid.UUID  `json:"id"`
	BudgetID        uuid.UUID  `json:"budget_id"`
	Type            string     `json:"type"`
	Amount          string     `json:"amount"`
	TransactionDate Date       `json:"transaction_date"`
	Description     string     `json:"description,omitempty"`
	FromEnvelopeID  *uuid.UUID `json:"from_envelope_id,omitempty"`
	ToEnvelopeID    *uuid.UUID `json:"to_envelope_id,omitempty"`
	PayeeID         *uuid.UUID `json:"payee_id,omitempty"`
	IncomeSourceID  *uuid.UUID `json:"income_source_id,omitempty"`
	CategoryID      *uuid.UUID `json:"category_id,omitempty"`
	IsCleared       bool       `json:"is_cleared"`
	IsReconciled    bool       `json:"is_reconciled"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:              tx.ID,
		BudgetID:        tx.BudgetID,
		Type:            string(tx.Type),
		Amount:          tx.Amount.String(),
		TransactionDate: Date{tx.TransactionDate},
		Description:     tx.Description,
		FromEnvelopeID:  tx.FromEnvelopeID,
		ToEnvelopeID:    tx.ToEnvelopeID,
		PayeeID:         tx.PayeeID,
		IncomeSourceID:  tx.IncomeSourceID,
		CategoryID:      tx.CategoryID,
		IsCleared:       tx.IsCleared,
		IsReconciled:    tx.IsReconciled,
		CreatedAt:       tx.CreatedAt,
		UpdatedAt:       tx.UpdatedAt,
	}
}

type CreateTransactionRequest struct {
	Type            string     `json:"type"`
	Amount          string     `json:"amount"`
	TransactionDate Date       `json:"transaction_date"`
	Description     string     `json:"description"`
	FromEnvelopeID  *uuid.UUID `json:"from_envelope_id"`
	ToEnvelopeID    *uuid.UUID `json:"to_envelope_id"`
	PayeeID         *uuid.UUID `json:"payee_id"`
	IncomeSourceID  *uuid.UUID `json:"income_source_id"`
	CategoryID      *uuid.UUID `json:"category_id"`
	IsCleared       bool       `json:"is_cleared"`
}

type UpdateTransactionRequest struct {
	Amount          *string `json:"amount"`
	TransactionDate *Date   `json:"transaction_date"`
	Description     *string `json:"description"`
	FromEnvelopeID  OptUUID `json:"from_envelope_id"`
	ToEnvelopeID    OptUUID `json:"to_envelope_id"`
	PayeeID         OptUUID `json:"payee_id"`
	IncomeSourceID  OptUUID `json:"income_source_id"`
	CategoryID      OptUUID `json:"category_id"`
	IsCleared       *bool   `json:"is_cleared"`
	IsReconciled    *bool   `json:"is_reconciled"`
}

// =============================================================================
// REORDERING
// =============================================================================

type ReorderRequest struct {
	Items []ReorderItemDTO `json:"items"`
}

type ReorderItemDTO struct {
	ID       uuid.UUID `json:"id"`
	NewOrder int       `json:"new_order"`
}

func (r ReorderRequest) toItems() []ledger.ReorderItem {
	items := make([]ledger.ReorderItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = ledger.ReorderItem{ID: it.ID, NewOrder: it.NewOrder}
	}
	return items
}

func decimalPtrString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
