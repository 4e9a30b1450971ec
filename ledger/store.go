/*
store.go - Persistence interfaces for the budgeting domain

PURPOSE:
  Defines the interface between the domain logic and the database, split
  into read and write capabilities so components can declare exactly what
  they need: the validator takes a Reader, the service takes a TxStore.

KEY INTERFACES:
  Reader:  Lookups scoped by budget, plus transaction listing
  Writer:  Entity CRUD, transaction lifecycle, balance effects, ordering
  Store:   Reader + Writer
  TxStore: Store + WithTx for atomic multi-write operations

ATOMICITY CONTRACT:
  A transaction write and its balance effects must land together. Callers
  compose them inside WithTx:

    err := store.WithTx(ctx, func(s ledger.Store) error {
        if err := s.InsertTransaction(ctx, tx); err != nil {
            return err
        }
        return s.ApplyEffects(ctx, effects)
    })

SOFT-DELETE VISIBILITY:
  GetTransaction and ListTransactions never return soft-deleted rows.
  GetDeletedTransaction returns a deleted row only when the requesting
  actor matches the recorded deleter; anyone else gets NotFoundError,
  indistinguishable from absence.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite store
  - ledger/store: In-memory store for tests and development

SEE ALSO:
  - balance.go: The effects ApplyEffects consumes
  - ordering/: Uses ResolveScopes, ListScopeMembers, SetDisplayOrder
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// READER - Budget-scoped lookups
// =============================================================================

type Reader interface {
	GetBudget(ctx context.Context, id uuid.UUID) (Budget, error)
	ListBudgets(ctx context.Context, ownerID uuid.UUID) ([]Budget, error)

	GetCategory(ctx context.Context, budgetID, id uuid.UUID) (Category, error)
	ListCategories(ctx context.Context, budgetID uuid.UUID) ([]Category, error)

	GetEnvelope(ctx context.Context, budgetID, id uuid.UUID) (Envelope, error)
	ListEnvelopes(ctx context.Context, budgetID uuid.UUID) ([]Envelope, error)

	GetPayee(ctx context.Context, budgetID, id uuid.UUID) (Payee, error)
	ListPayees(ctx context.Context, budgetID uuid.UUID) ([]Payee, error)

	GetIncomeSource(ctx context.Context, budgetID, id uuid.UUID) (IncomeSource, error)
	ListIncomeSources(ctx context.Context, budgetID uuid.UUID) ([]IncomeSource, error)

	// GetTransaction returns a live transaction. Soft-deleted rows yield
	// NotFoundError.
	GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error)

	// GetDeletedTransaction returns a soft-deleted transaction, but only
	// when deletedBy matches the recorded deleter.
	GetDeletedTransaction(ctx context.Context, id, deletedBy uuid.UUID) (Transaction, error)

	// ListTransactions returns live transactions matching the filter,
	// newest transaction date first.
	ListTransactions(ctx context.Context, budgetID uuid.UUID, filter TransactionFilter) ([]Transaction, error)

	// ResolveScopes maps each id to its display-order scope in ONE call.
	// Reordering depends on this staying a single batched lookup.
	ResolveScopes(ctx context.Context, kind ScopeKind, budgetID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ScopeKey, error)

	// ListScopeMembers returns every member of a scope ordered by
	// (display_order, created_at) so renumbering is stable.
	ListScopeMembers(ctx context.Context, scope ScopeKey) ([]OrderedItem, error)
}

// OrderedItem is the slice of a record the ordering engine works with.
type OrderedItem struct {
	ID           uuid.UUID
	DisplayOrder int
}

// =============================================================================
// WRITER - Mutations
// =============================================================================

type Writer interface {
	CreateBudget(ctx context.Context, b Budget) error
	UpdateBudget(ctx context.Context, b Budget) error
	DeleteBudget(ctx context.Context, id uuid.UUID) error

	CreateCategory(ctx context.Context, c Category) error
	UpdateCategory(ctx context.Context, c Category) error
	DeleteCategory(ctx context.Context, budgetID, id uuid.UUID) error

	CreateEnvelope(ctx context.Context, e Envelope) error
	UpdateEnvelope(ctx context.Context, e Envelope) error
	DeleteEnvelope(ctx context.Context, budgetID, id uuid.UUID) error

	CreatePayee(ctx context.Context, p Payee) error
	UpdatePayee(ctx context.Context, p Payee) error
	DeletePayee(ctx context.Context, budgetID, id uuid.UUID) error

	CreateIncomeSource(ctx context.Context, s IncomeSource) error
	UpdateIncomeSource(ctx context.Context, s IncomeSource) error
	DeleteIncomeSource(ctx context.Context, budgetID, id uuid.UUID) error

	InsertTransaction(ctx context.Context, tx Transaction) error
	UpdateTransaction(ctx context.Context, tx Transaction) error

	// MarkTransactionDeleted flips a live row to deleted, recording who
	// and when. Deleting an already-deleted row yields NotFoundError.
	MarkTransactionDeleted(ctx context.Context, id, actor uuid.UUID, at time.Time) error

	// MarkTransactionRestored flips a deleted row back to live.
	MarkTransactionRestored(ctx context.Context, id uuid.UUID) error

	// ApplyEffects adjusts cached balances. Must be called inside the
	// same WithTx as the transaction write it belongs to.
	ApplyEffects(ctx context.Context, effects []BalanceEffect) error

	// SetDisplayOrder writes one (id, order) pair without touching the
	// rest of the scope.
	SetDisplayOrder(ctx context.Context, kind ScopeKind, budgetID, id uuid.UUID, order int) error
}

// =============================================================================
// STORE - Full persistence surface
// =============================================================================

type Store interface {
	Reader
	Writer
}

// TxStore wraps Store with transaction support.
// If fn returns an error the transaction is rolled back, otherwise committed.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
