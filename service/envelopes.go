/*
envelopes.go - Envelope CRUD

BALANCE GUARD:
  An envelope carrying a non-zero balance cannot be deleted; the money
  has to be moved out first. This protects the budget-wide conservation
  of funds: deleting a funded envelope would silently destroy money.
*/
package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
	"github.com/thelarryrutledge/nvlp-app-sub004/resilience"
)

type EnvelopeInput struct {
	Name         string
	Type         ledger.EnvelopeType
	CategoryID   *uuid.UUID
	TargetAmount *decimal.Decimal
	NotifyOnLow  bool
	LowThreshold *decimal.Decimal
}

type EnvelopePatch struct {
	Name         *string
	Type         *ledger.EnvelopeType
	CategoryID   RefPatch
	TargetAmount RefAmountPatch
	NotifyOnLow  *bool
	LowThreshold RefAmountPatch
	IsActive     *bool
}

// RefAmountPatch is RefPatch for optional money fields.
type RefAmountPatch struct {
	Set   bool
	Value *decimal.Decimal
}

// =============================================================================
// CRUD
// =============================================================================

func (s *Service) CreateEnvelope(ctx context.Context, actor, budgetID uuid.UUID, in EnvelopeInput) (ledger.Envelope, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return ledger.Envelope{}, err
	}
	if in.Name == "" {
		return ledger.Envelope{}, &ledger.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if in.Type == "" {
		in.Type = ledger.EnvelopeRegular
	}
	if !in.Type.Valid() {
		return ledger.Envelope{}, &ledger.ValidationError{Field: "type", Reason: "must be regular, savings, or debt"}
	}
	if in.CategoryID != nil {
		if _, err := resilience.ExecuteValue(ctx, s.res, "get category", func(ctx context.Context) (ledger.Category, error) {
			return s.store.GetCategory(ctx, budgetID, *in.CategoryID)
		}); err != nil {
			return ledger.Envelope{}, err
		}
	}

	scope := ledger.ScopeKey{Kind: ledger.ScopeEnvelopes, BudgetID: budgetID, Parent: in.CategoryID}
	order, err := s.nextDisplayOrder(ctx, scope)
	if err != nil {
		return ledger.Envelope{}, err
	}

	now := s.now()
	e := ledger.Envelope{
		ID:             uuid.New(),
		BudgetID:       budgetID,
		CategoryID:     in.CategoryID,
		Name:           in.Name,
		Type:           in.Type,
		CurrentBalance: decimal.Zero,
		TargetAmount:   in.TargetAmount,
		DisplayOrder:   order,
		NotifyOnLow:    in.NotifyOnLow,
		LowThreshold:   in.LowThreshold,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.res.ExecuteRetry(ctx, "create envelope", func(ctx context.Context) error {
		return s.store.CreateEnvelope(ctx, e)
	})
	if err != nil {
		return ledger.Envelope{}, err
	}

	s.invalidate(nsEnvelopes)
	return e, nil
}

func (s *Service) GetEnvelope(ctx context.Context, actor, budgetID, id uuid.UUID) (ledger.Envelope, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return ledger.Envelope{}, err
	}
	return resilience.ExecuteValue(ctx, s.res, "get envelope", func(ctx context.Context) (ledger.Envelope, error) {
		return s.store.GetEnvelope(ctx, budgetID, id)
	})
}

func (s *Service) ListEnvelopes(ctx context.Context, actor, budgetID uuid.UUID) ([]ledger.Envelope, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return nil, err
	}
	return cachedList(ctx, s, nsEnvelopes, budgetID.String(), func(ctx context.Context) ([]ledger.Envelope, error) {
		return s.store.ListEnvelopes(ctx, budgetID)
	})
}

func (s *Service) UpdateEnvelope(ctx context.Context, actor, budgetID, id uuid.UUID, patch EnvelopePatch) (ledger.Envelope, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return ledger.Envelope{}, err
	}
	e, err := resilience.ExecuteValue(ctx, s.res, "get envelope", func(ctx context.Context) (ledger.Envelope, error) {
		return s.store.GetEnvelope(ctx, budgetID, id)
	})
	if err != nil {
		return ledger.Envelope{}, err
	}

	oldScope := ledger.ScopeKey{Kind: ledger.ScopeEnvelopes, BudgetID: budgetID, Parent: e.CategoryID}
	moved := false

	if patch.Name != nil {
		if *patch.Name == "" {
			return ledger.Envelope{}, &ledger.ValidationError{Field: "name", Reason: "must not be empty"}
		}
		e.Name = *patch.Name
	}
	if patch.Type != nil {
		if !patch.Type.Valid() {
			return ledger.Envelope{}, &ledger.ValidationError{Field: "type", Reason: "must be regular, savings, or debt"}
		}
		e.Type = *patch.Type
	}
	if patch.CategoryID.Set && !sameRef(e.CategoryID, patch.CategoryID.Value) {
		if patch.CategoryID.Value != nil {
			if _, err := resilience.ExecuteValue(ctx, s.res, "get category", func(ctx context.Context) (ledger.Category, error) {
				return s.store.GetCategory(ctx, budgetID, *patch.CategoryID.Value)
			}); err != nil {
				return ledger.Envelope{}, err
			}
		}
		e.CategoryID = patch.CategoryID.Value
		newScope := ledger.ScopeKey{Kind: ledger.ScopeEnvelopes, BudgetID: budgetID, Parent: e.CategoryID}
		order, err := s.nextDisplayOrder(ctx, newScope)
		if err != nil {
			return ledger.Envelope{}, err
		}
		e.DisplayOrder = order
		moved = true
	}
	if patch.TargetAmount.Set {
		e.TargetAmount = patch.TargetAmount.Value
	}
	if patch.NotifyOnLow != nil {
		e.NotifyOnLow = *patch.NotifyOnLow
	}
	if patch.LowThreshold.Set {
		e.LowThreshold = patch.LowThreshold.Value
	}
	if patch.IsActive != nil {
		e.IsActive = *patch.IsActive
	}
	e.UpdatedAt = s.now()

	err = s.res.ExecuteRetry(ctx, "update envelope", func(ctx context.Context) error {
		return s.store.UpdateEnvelope(ctx, e)
	})
	if err != nil {
		return ledger.Envelope{}, err
	}

	if moved {
		if err := s.renumber(ctx, oldScope); err != nil {
			return ledger.Envelope{}, err
		}
	}
	s.invalidate(nsEnvelopes)
	return e, nil
}

func (s *Service) DeleteEnvelope(ctx context.Context, actor, budgetID, id uuid.UUID) error {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return err
	}
	e, err := resilience.ExecuteValue(ctx, s.res, "get envelope", func(ctx context.Context) (ledger.Envelope, error) {
		return s.store.GetEnvelope(ctx, budgetID, id)
	})
	if err != nil {
		return err
	}
	if !e.CurrentBalance.IsZero() {
		return &ledger.ValidationError{Field: "current_balance", Reason: "envelope balance must be zero before deletion"}
	}

	err = s.res.ExecuteRetry(ctx, "delete envelope", func(ctx context.Context) error {
		return s.store.DeleteEnvelope(ctx, budgetID, id)
	})
	if err != nil {
		return err
	}

	scope := ledger.ScopeKey{Kind: ledger.ScopeEnvelopes, BudgetID: budgetID, Parent: e.CategoryID}
	if err := s.renumber(ctx, scope); err != nil {
		return err
	}

	s.invalidate(nsEnvelopes)
	return nil
}
