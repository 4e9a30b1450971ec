/*
transactions.go - Transaction lifecycle: create, update, soft delete, restore

PURPOSE:
  The write path for money movements. Every mutation validates first,
  then lands the row and its balance effects in one store transaction,
  then invalidates the affected cache namespaces and emits an event.

UPDATE SEMANTICS:
  An update reverses the old row's balance effects and applies the new
  row's effects inside the same store transaction, so cached balances
  never see a half-applied edit.

SOFT DELETE:
  Deletion reverses the effects and records (deleted_at, deleted_by).
  Only the recorded deleter can see or restore the row; to anyone else
  it does not exist.
*/
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thelarryrutledge/nvlp-app-sub004/events"
	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
	"github.com/thelarryrutledge/nvlp-app-sub004/resilience"
)

// =============================================================================
// INPUTS
// =============================================================================

type TransactionInput struct {
	Type            ledger.TransactionType
	Amount          decimal.Decimal
	TransactionDate time.Time
	Description     string

	FromEnvelopeID *uuid.UUID
	ToEnvelopeID   *uuid.UUID
	PayeeID        *uuid.UUID
	IncomeSourceID *uuid.UUID
	CategoryID     *uuid.UUID

	IsCleared bool
}

// RefPatch distinguishes "leave the reference alone" (Set false) from
// "replace it" (Set true; a nil Value clears it).
type RefPatch struct {
	Set   bool
	Value *uuid.UUID
}

type TransactionPatch struct {
	Amount          *decimal.Decimal
	TransactionDate *time.Time
	Description     *string

	FromEnvelopeID RefPatch
	ToEnvelopeID   RefPatch
	PayeeID        RefPatch
	IncomeSourceID RefPatch
	CategoryID     RefPatch

	IsCleared    *bool
	IsReconciled *bool
}

// touchesStructure reports whether the patch changes anything the
// validator cares about. Flag-only edits skip re-validation.
func (p TransactionPatch) touchesStructure() bool {
	return p.Amount != nil || p.TransactionDate != nil ||
		p.FromEnvelopeID.Set || p.ToEnvelopeID.Set ||
		p.PayeeID.Set || p.IncomeSourceID.Set || p.CategoryID.Set
}

func (p TransactionPatch) apply(tx ledger.Transaction) ledger.Transaction {
	if p.Amount != nil {
		tx.Amount = *p.Amount
	}
	if p.TransactionDate != nil {
		tx.TransactionDate = *p.TransactionDate
	}
	if p.Description != nil {
		tx.Description = *p.Description
	}
	if p.FromEnvelopeID.Set {
		tx.FromEnvelopeID = p.FromEnvelopeID.Value
	}
	if p.ToEnvelopeID.Set {
		tx.ToEnvelopeID = p.ToEnvelopeID.Value
	}
	if p.PayeeID.Set {
		tx.PayeeID = p.PayeeID.Value
	}
	if p.IncomeSourceID.Set {
		tx.IncomeSourceID = p.IncomeSourceID.Value
	}
	if p.CategoryID.Set {
		tx.CategoryID = p.CategoryID.Value
	}
	if p.IsCleared != nil {
		tx.IsCleared = *p.IsCleared
	}
	if p.IsReconciled != nil {
		tx.IsReconciled = *p.IsReconciled
	}
	return tx
}

// =============================================================================
// CREATE
// =============================================================================

func (s *Service) CreateTransaction(ctx context.Context, actor, budgetID uuid.UUID, in TransactionInput) (ledger.Transaction, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return ledger.Transaction{}, err
	}

	now := s.now()
	tx := ledger.Transaction{
		ID:              uuid.New(),
		BudgetID:        budgetID,
		Type:            in.Type,
		Amount:          in.Amount,
		TransactionDate: in.TransactionDate,
		Description:     in.Description,
		FromEnvelopeID:  in.FromEnvelopeID,
		ToEnvelopeID:    in.ToEnvelopeID,
		PayeeID:         in.PayeeID,
		IncomeSourceID:  in.IncomeSourceID,
		CategoryID:      in.CategoryID,
		IsCleared:       in.IsCleared,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.res.Execute(ctx, "validate transaction", func(ctx context.Context) error {
		return s.validator.Validate(ctx, tx, budgetID)
	}); err != nil {
		return ledger.Transaction{}, err
	}

	effects, err := ledger.Effects(tx)
	if err != nil {
		return ledger.Transaction{}, err
	}

	err = s.res.ExecuteRetry(ctx, "create transaction", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(st ledger.Store) error {
			if err := st.InsertTransaction(ctx, tx); err != nil {
				return err
			}
			return st.ApplyEffects(ctx, effects)
		})
	})
	if err != nil {
		return ledger.Transaction{}, err
	}

	s.invalidate(nsTransactions)
	s.publish(ctx, events.TransactionCreated, eventPayload(tx))
	return tx, nil
}

// =============================================================================
// UPDATE
// =============================================================================

func (s *Service) UpdateTransaction(ctx context.Context, actor, id uuid.UUID, patch TransactionPatch) (ledger.Transaction, error) {
	existing, err := resilience.ExecuteValue(ctx, s.res, "get transaction", func(ctx context.Context) (ledger.Transaction, error) {
		return s.store.GetTransaction(ctx, id)
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	if _, err := s.ownedBudget(ctx, actor, existing.BudgetID); err != nil {
		return ledger.Transaction{}, err
	}

	updated := patch.apply(existing)
	updated.UpdatedAt = s.now()

	if patch.touchesStructure() {
		if err := s.res.Execute(ctx, "validate transaction", func(ctx context.Context) error {
			return s.validator.Validate(ctx, updated, updated.BudgetID)
		}); err != nil {
			return ledger.Transaction{}, err
		}
	}

	reverse, err := ledger.ReverseEffects(existing)
	if err != nil {
		return ledger.Transaction{}, err
	}
	apply, err := ledger.Effects(updated)
	if err != nil {
		return ledger.Transaction{}, err
	}

	err = s.res.ExecuteRetry(ctx, "update transaction", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(st ledger.Store) error {
			if err := st.UpdateTransaction(ctx, updated); err != nil {
				return err
			}
			if err := st.ApplyEffects(ctx, reverse); err != nil {
				return err
			}
			return st.ApplyEffects(ctx, apply)
		})
	})
	if err != nil {
		return ledger.Transaction{}, err
	}

	s.invalidate(nsTransactions)
	s.publish(ctx, events.TransactionUpdated, eventPayload(updated))
	return updated, nil
}

// =============================================================================
// SOFT DELETE AND RESTORE
// =============================================================================

func (s *Service) SoftDeleteTransaction(ctx context.Context, actor, id uuid.UUID) error {
	existing, err := resilience.ExecuteValue(ctx, s.res, "get transaction", func(ctx context.Context) (ledger.Transaction, error) {
		return s.store.GetTransaction(ctx, id)
	})
	if err != nil {
		return err
	}
	if _, err := s.ownedBudget(ctx, actor, existing.BudgetID); err != nil {
		return err
	}

	reverse, err := ledger.ReverseEffects(existing)
	if err != nil {
		return err
	}

	at := s.now()
	err = s.res.ExecuteRetry(ctx, "soft delete transaction", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(st ledger.Store) error {
			if err := st.MarkTransactionDeleted(ctx, id, actor, at); err != nil {
				return err
			}
			return st.ApplyEffects(ctx, reverse)
		})
	})
	if err != nil {
		return err
	}

	s.invalidate(nsTransactions)
	s.publish(ctx, events.TransactionDeleted, map[string]any{
		"transaction_id": id,
		"budget_id":      existing.BudgetID,
		"deleted_by":     actor,
	})
	return nil
}

// RestoreTransaction brings a soft-deleted transaction back. Only the
// actor who deleted it can restore it; anyone else gets not-found.
func (s *Service) RestoreTransaction(ctx context.Context, actor, id uuid.UUID) (ledger.Transaction, error) {
	deleted, err := resilience.ExecuteValue(ctx, s.res, "get deleted transaction", func(ctx context.Context) (ledger.Transaction, error) {
		return s.store.GetDeletedTransaction(ctx, id, actor)
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	if _, err := s.ownedBudget(ctx, actor, deleted.BudgetID); err != nil {
		return ledger.Transaction{}, err
	}

	effects, err := ledger.Effects(deleted)
	if err != nil {
		return ledger.Transaction{}, err
	}

	err = s.res.ExecuteRetry(ctx, "restore transaction", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(st ledger.Store) error {
			if err := st.MarkTransactionRestored(ctx, id); err != nil {
				return err
			}
			return st.ApplyEffects(ctx, effects)
		})
	})
	if err != nil {
		return ledger.Transaction{}, err
	}

	deleted.IsDeleted = false
	deleted.DeletedAt = nil
	deleted.DeletedBy = nil

	s.invalidate(nsTransactions)
	s.publish(ctx, events.TransactionRestored, eventPayload(deleted))
	return deleted, nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) GetTransaction(ctx context.Context, actor, id uuid.UUID) (ledger.Transaction, error) {
	tx, err := resilience.ExecuteValue(ctx, s.res, "get transaction", func(ctx context.Context) (ledger.Transaction, error) {
		return s.store.GetTransaction(ctx, id)
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	if _, err := s.ownedBudget(ctx, actor, tx.BudgetID); err != nil {
		return ledger.Transaction{}, err
	}
	return tx, nil
}

// ListTransactions is uncached: the filter space is too wide for useful
// keys, and listings must reflect writes immediately.
func (s *Service) ListTransactions(ctx context.Context, actor, budgetID uuid.UUID, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return nil, err
	}
	return resilience.ExecuteValue(ctx, s.res, "list transactions", func(ctx context.Context) ([]ledger.Transaction, error) {
		return s.store.ListTransactions(ctx, budgetID, filter)
	})
}

func eventPayload(tx ledger.Transaction) map[string]any {
	return map[string]any{
		"transaction_id": tx.ID,
		"budget_id":      tx.BudgetID,
		"type":           tx.Type,
		"amount":         tx.Amount.String(),
		"date":           tx.TransactionDate.Format("2006-01-02"),
	}
}
