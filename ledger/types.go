/*
Package ledger provides the core envelope-budgeting domain.

PURPOSE:
  This package contains the domain types and decision logic for an
  envelope-budgeting system: budgets that scope everything, envelopes that
  earmark money, and the transactions that move money between them. The
  validator decides whether a proposed movement is structurally well-formed
  for its declared type; the balance effects describe exactly which cached
  balances each movement touches.

KEY CONCEPTS IN THIS FILE (types.go):
  - Budget: Top-level container owning all other records
  - Envelope: A sub-balance within a budget (regular, savings, or debt)
  - Category: One-level-deep grouping with a user-chosen display order
  - Transaction: A money movement typed as income, allocation, expense,
    transfer, or debt_payment, with type-determined reference fields

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point money errors
  2. Type Safety: uuid.UUID identifiers, typed enums with Valid() checks
  3. Explicit ownership: every record carries its BudgetID; callers verify
     budget ownership before any operation
  4. Soft deletion: transactions are hidden, never destroyed, and only the
     deleting actor can restore them

SEE ALSO:
  - validator.go: Structural and referential validation rules
  - balance.go: Balance effects applied atomically with writes
  - store.go: Persistence interfaces
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// BUDGET - Top-level container
// =============================================================================

type Budget struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID
	Name            string
	Currency        string
	AvailableAmount decimal.Decimal
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// =============================================================================
// CATEGORY - One-level-deep grouping with display order
// =============================================================================

type Category struct {
	ID           uuid.UUID
	BudgetID     uuid.UUID
	ParentID     *uuid.UUID
	Name         string
	DisplayOrder int
	IsIncome     bool
	IsSystem     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsChild reports whether the category sits under a parent.
func (c Category) IsChild() bool { return c.ParentID != nil }

// =============================================================================
// ENVELOPE - Earmarked sub-balance within a budget
// =============================================================================

type EnvelopeType string

const (
	EnvelopeRegular EnvelopeType = "regular"
	EnvelopeSavings EnvelopeType = "savings"
	EnvelopeDebt    EnvelopeType = "debt"
)

func (t EnvelopeType) Valid() bool {
	switch t {
	case EnvelopeRegular, EnvelopeSavings, EnvelopeDebt:
		return true
	}
	return false
}

type Envelope struct {
	ID             uuid.UUID
	BudgetID       uuid.UUID
	CategoryID     *uuid.UUID
	Name           string
	Type           EnvelopeType
	CurrentBalance decimal.Decimal
	TargetAmount   *decimal.Decimal
	DisplayOrder   int
	NotifyOnLow    bool
	LowThreshold   *decimal.Decimal
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// =============================================================================
// PAYEE - Recipient of expenses and debt payments
// =============================================================================

type Payee struct {
	ID                uuid.UUID
	BudgetID          uuid.UUID
	Name              string
	TotalPaid         decimal.Decimal
	LastPaymentDate   *time.Time
	LastPaymentAmount *decimal.Decimal
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// =============================================================================
// INCOME SOURCE - Expected money with a recurrence schedule
// =============================================================================

type IncomeSource struct {
	ID               uuid.UUID
	BudgetID         uuid.UUID
	Name             string
	ExpectedAmount   decimal.Decimal
	Schedule         Schedule
	NextExpectedDate *time.Time
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// =============================================================================
// TRANSACTION - Typed money movement
// =============================================================================

type TransactionType string

const (
	TxIncome      TransactionType = "income"       // Money arriving from an income source
	TxAllocation  TransactionType = "allocation"   // Available pool -> envelope
	TxExpense     TransactionType = "expense"      // Envelope -> payee
	TxTransfer    TransactionType = "transfer"     // Envelope -> envelope
	TxDebtPayment TransactionType = "debt_payment" // Debt envelope -> payee
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxIncome, TxAllocation, TxExpense, TxTransfer, TxDebtPayment:
		return true
	}
	return false
}

type Transaction struct {
	ID              uuid.UUID
	BudgetID        uuid.UUID
	Type            TransactionType
	Amount          decimal.Decimal
	TransactionDate time.Time
	Description     string

	// Reference fields. Which of these must be set is fully determined
	// by Type; see validator.go.
	FromEnvelopeID *uuid.UUID
	ToEnvelopeID   *uuid.UUID
	PayeeID        *uuid.UUID
	IncomeSourceID *uuid.UUID
	CategoryID     *uuid.UUID

	IsCleared    bool
	IsReconciled bool

	// Soft-delete triple. A deleted transaction is invisible to everyone
	// except the actor recorded in DeletedBy.
	IsDeleted bool
	DeletedAt *time.Time
	DeletedBy *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// LISTING FILTER - Criteria for transaction queries
// =============================================================================

type TransactionFilter struct {
	DateFrom       *time.Time
	DateTo         *time.Time
	Type           *TransactionType
	EnvelopeID     *uuid.UUID // matches either from or to side
	PayeeID        *uuid.UUID
	IncomeSourceID *uuid.UUID
	CategoryID     *uuid.UUID
	IsCleared      *bool
	IsReconciled   *bool
	AmountMin      *decimal.Decimal
	AmountMax      *decimal.Decimal
	Limit          int
	Offset         int
}

// =============================================================================
// REORDERING - Display-order maintenance inputs
// =============================================================================

// ReorderItem is one requested relocation: move the identified record to
// NewOrder within its scope.
type ReorderItem struct {
	ID       uuid.UUID
	NewOrder int
}

// ScopeKind names which kind of record a reorder touches.
type ScopeKind string

const (
	ScopeCategories ScopeKind = "categories"
	ScopeEnvelopes  ScopeKind = "envelopes"
)

// ScopeKey identifies one contiguous display-order sequence: top-level
// categories share a budget-wide scope, sub-categories group under their
// parent, envelopes group under their category. The zero Parent (nil) is
// the budget root for categories and "uncategorized" for envelopes.
type ScopeKey struct {
	Kind     ScopeKind
	BudgetID uuid.UUID
	Parent   *uuid.UUID
}
