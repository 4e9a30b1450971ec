// income_sources.go - Income source CRUD. The next expected date is
// derived from the recurrence schedule whenever the schedule changes.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
	"github.com/thelarryrutledge/nvlp-app-sub004/resilience"
)

type IncomeSourceInput struct {
	Name           string
	ExpectedAmount decimal.Decimal
	Schedule       ledger.Schedule
}

type IncomeSourcePatch struct {
	Name           *string
	ExpectedAmount *decimal.Decimal
	Schedule       *ledger.Schedule
	IsActive       *bool
}

func (s *Service) CreateIncomeSource(ctx context.Context, actor, budgetID uuid.UUID, in IncomeSourceInput) (ledger.IncomeSource, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return ledger.IncomeSource{}, err
	}
	if in.Name == "" {
		return ledger.IncomeSource{}, &ledger.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if in.ExpectedAmount.IsNegative() {
		return ledger.IncomeSource{}, &ledger.ValidationError{Field: "expected_amount", Reason: "must not be negative"}
	}
	if err := in.Schedule.Validate(); err != nil {
		return ledger.IncomeSource{}, err
	}

	now := s.now()
	src := ledger.IncomeSource{
		ID:               uuid.New(),
		BudgetID:         budgetID,
		Name:             in.Name,
		ExpectedAmount:   in.ExpectedAmount,
		Schedule:         in.Schedule,
		NextExpectedDate: nextExpected(in.Schedule, now),
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.res.ExecuteRetry(ctx, "create income source", func(ctx context.Context) error {
		return s.store.CreateIncomeSource(ctx, src)
	})
	if err != nil {
		return ledger.IncomeSource{}, err
	}

	s.invalidate(nsIncomeSources)
	return src, nil
}

func (s *Service) GetIncomeSource(ctx context.Context, actor, budgetID, id uuid.UUID) (ledger.IncomeSource, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return ledger.IncomeSource{}, err
	}
	return resilience.ExecuteValue(ctx, s.res, "get income source", func(ctx context.Context) (ledger.IncomeSource, error) {
		return s.store.GetIncomeSource(ctx, budgetID, id)
	})
}

func (s *Service) ListIncomeSources(ctx context.Context, actor, budgetID uuid.UUID) ([]ledger.IncomeSource, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return nil, err
	}
	return cachedList(ctx, s, nsIncomeSources, budgetID.String(), func(ctx context.Context) ([]ledger.IncomeSource, error) {
		return s.store.ListIncomeSources(ctx, budgetID)
	})
}

func (s *Service) UpdateIncomeSource(ctx context.Context, actor, budgetID, id uuid.UUID, patch IncomeSourcePatch) (ledger.IncomeSource, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return ledger.IncomeSource{}, err
	}
	src, err := resilience.ExecuteValue(ctx, s.res, "get income source", func(ctx context.Context) (ledger.IncomeSource, error) {
		return s.store.GetIncomeSource(ctx, budgetID, id)
	})
	if err != nil {
		return ledger.IncomeSource{}, err
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return ledger.IncomeSource{}, &ledger.ValidationError{Field: "name", Reason: "must not be empty"}
		}
		src.Name = *patch.Name
	}
	if patch.ExpectedAmount != nil {
		if patch.ExpectedAmount.IsNegative() {
			return ledger.IncomeSource{}, &ledger.ValidationError{Field: "expected_amount", Reason: "must not be negative"}
		}
		src.ExpectedAmount = *patch.ExpectedAmount
	}
	if patch.Schedule != nil {
		if err := patch.Schedule.Validate(); err != nil {
			return ledger.IncomeSource{}, err
		}
		src.Schedule = *patch.Schedule
		src.NextExpectedDate = nextExpected(src.Schedule, s.now())
	}
	if patch.IsActive != nil {
		src.IsActive = *patch.IsActive
	}
	src.UpdatedAt = s.now()

	err = s.res.ExecuteRetry(ctx, "update income source", func(ctx context.Context) error {
		return s.store.UpdateIncomeSource(ctx, src)
	})
	if err != nil {
		return ledger.IncomeSource{}, err
	}

	s.invalidate(nsIncomeSources)
	return src, nil
}

func (s *Service) DeleteIncomeSource(ctx context.Context, actor, budgetID, id uuid.UUID) error {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return err
	}
	if _, err := resilience.ExecuteValue(ctx, s.res, "get income source", func(ctx context.Context) (ledger.IncomeSource, error) {
		return s.store.GetIncomeSource(ctx, budgetID, id)
	}); err != nil {
		return err
	}

	err := s.res.ExecuteRetry(ctx, "delete income source", func(ctx context.Context) error {
		return s.store.DeleteIncomeSource(ctx, budgetID, id)
	})
	if err != nil {
		return err
	}

	s.invalidate(nsIncomeSources)
	return nil
}

// nextExpected finds the first occurrence on or after the reference
// day. The schedule's NextAfter is strict, so the reference is backed
// up one day to let a due-today anchor count.
func nextExpected(sch ledger.Schedule, now time.Time) *time.Time {
	next, ok := sch.NextAfter(now.AddDate(0, 0, -1))
	if !ok {
		return nil
	}
	return &next
}
