// budgets.go - Budget CRUD. The owner is fixed at creation; deleting a
// budget cascades through the store to everything under it.
package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/thelarryrutledge/nvlp-app-sub004/cache"
	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
	"github.com/thelarryrutledge/nvlp-app-sub004/resilience"
)

type BudgetInput struct {
	Name     string
	Currency string
}

type BudgetPatch struct {
	Name     *string
	Currency *string
	IsActive *bool
}

func (s *Service) CreateBudget(ctx context.Context, actor uuid.UUID, in BudgetInput) (ledger.Budget, error) {
	if in.Name == "" {
		return ledger.Budget{}, &ledger.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}

	now := s.now()
	b := ledger.Budget{
		ID:        uuid.New(),
		OwnerID:   actor,
		Name:      in.Name,
		Currency:  in.Currency,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.res.ExecuteRetry(ctx, "create budget", func(ctx context.Context) error {
		return s.store.CreateBudget(ctx, b)
	})
	if err != nil {
		return ledger.Budget{}, err
	}

	s.invalidate(nsBudgets)
	return b, nil
}

func (s *Service) GetBudget(ctx context.Context, actor, id uuid.UUID) (ledger.Budget, error) {
	return s.ownedBudget(ctx, actor, id)
}

func (s *Service) ListBudgets(ctx context.Context, actor uuid.UUID) ([]ledger.Budget, error) {
	return cachedList(ctx, s, nsBudgets, actor.String(), func(ctx context.Context) ([]ledger.Budget, error) {
		return s.store.ListBudgets(ctx, actor)
	})
}

func (s *Service) UpdateBudget(ctx context.Context, actor, id uuid.UUID, patch BudgetPatch) (ledger.Budget, error) {
	b, err := s.ownedBudget(ctx, actor, id)
	if err != nil {
		return ledger.Budget{}, err
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return ledger.Budget{}, &ledger.ValidationError{Field: "name", Reason: "must not be empty"}
		}
		b.Name = *patch.Name
	}
	if patch.Currency != nil {
		b.Currency = *patch.Currency
	}
	if patch.IsActive != nil {
		b.IsActive = *patch.IsActive
	}
	b.UpdatedAt = s.now()

	err = s.res.ExecuteRetry(ctx, "update budget", func(ctx context.Context) error {
		return s.store.UpdateBudget(ctx, b)
	})
	if err != nil {
		return ledger.Budget{}, err
	}

	s.invalidate(nsBudgets)
	return b, nil
}

func (s *Service) DeleteBudget(ctx context.Context, actor, id uuid.UUID) error {
	if _, err := s.ownedBudget(ctx, actor, id); err != nil {
		return err
	}

	err := s.res.ExecuteRetry(ctx, "delete budget", func(ctx context.Context) error {
		return s.store.DeleteBudget(ctx, id)
	})
	if err != nil {
		return err
	}

	// Everything under the budget is gone with it.
	s.cache.Invalidate(nsBudgets, nsCategories, nsCategoryTree, nsEnvelopes, nsPayees, nsIncomeSources, nsTransactions)
	return nil
}

// cachedList probes a namespace by key and computes on miss, with
// concurrent misses deduplicated by the cache's singleflight group.
func cachedList[T any](ctx context.Context, s *Service, namespace, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	return cache.GetOrCompute(ctx, s.cache, namespace, key, s.cacheTTL, func(ctx context.Context) ([]T, error) {
		return resilience.ExecuteValue(ctx, s.res, "list "+namespace, load)
	})
}
