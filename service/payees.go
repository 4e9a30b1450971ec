// payees.go - Payee CRUD. Payment rollups (total paid, last payment)
// are maintained by transaction balance effects, never edited directly.
package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
	"github.com/thelarryrutledge/nvlp-app-sub004/resilience"
)

type PayeeInput struct {
	Name string
}

type PayeePatch struct {
	Name     *string
	IsActive *bool
}

func (s *Service) CreatePayee(ctx context.Context, actor, budgetID uuid.UUID, in PayeeInput) (ledger.Payee, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return ledger.Payee{}, err
	}
	if in.Name == "" {
		return ledger.Payee{}, &ledger.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	now := s.now()
	p := ledger.Payee{
		ID:        uuid.New(),
		BudgetID:  budgetID,
		Name:      in.Name,
		TotalPaid: decimal.Zero,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.res.ExecuteRetry(ctx, "create payee", func(ctx context.Context) error {
		return s.store.CreatePayee(ctx, p)
	})
	if err != nil {
		return ledger.Payee{}, err
	}

	s.invalidate(nsPayees)
	return p, nil
}

func (s *Service) GetPayee(ctx context.Context, actor, budgetID, id uuid.UUID) (ledger.Payee, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return ledger.Payee{}, err
	}
	return resilience.ExecuteValue(ctx, s.res, "get payee", func(ctx context.Context) (ledger.Payee, error) {
		return s.store.GetPayee(ctx, budgetID, id)
	})
}

func (s *Service) ListPayees(ctx context.Context, actor, budgetID uuid.UUID) ([]ledger.Payee, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return nil, err
	}
	return cachedList(ctx, s, nsPayees, budgetID.String(), func(ctx context.Context) ([]ledger.Payee, error) {
		return s.store.ListPayees(ctx, budgetID)
	})
}

func (s *Service) UpdatePayee(ctx context.Context, actor, budgetID, id uuid.UUID, patch PayeePatch) (ledger.Payee, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return ledger.Payee{}, err
	}
	p, err := resilience.ExecuteValue(ctx, s.res, "get payee", func(ctx context.Context) (ledger.Payee, error) {
		return s.store.GetPayee(ctx, budgetID, id)
	})
	if err != nil {
		return ledger.Payee{}, err
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return ledger.Payee{}, &ledger.ValidationError{Field: "name", Reason: "must not be empty"}
		}
		p.Name = *patch.Name
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
	p.UpdatedAt = s.now()

	err = s.res.ExecuteRetry(ctx, "update payee", func(ctx context.Context) error {
		return s.store.UpdatePayee(ctx, p)
	})
	if err != nil {
		return ledger.Payee{}, err
	}

	s.invalidate(nsPayees)
	return p, nil
}

func (s *Service) DeletePayee(ctx context.Context, actor, budgetID, id uuid.UUID) error {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return err
	}
	if _, err := resilience.ExecuteValue(ctx, s.res, "get payee", func(ctx context.Context) (ledger.Payee, error) {
		return s.store.GetPayee(ctx, budgetID, id)
	}); err != nil {
		return err
	}

	err := s.res.ExecuteRetry(ctx, "delete payee", func(ctx context.Context) error {
		return s.store.DeletePayee(ctx, budgetID, id)
	})
	if err != nil {
		return err
	}

	s.invalidate(nsPayees)
	return nil
}
