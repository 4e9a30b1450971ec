/*
categories.go - Category CRUD and the single-level tree

NESTING RULE:
  Categories nest exactly one level deep. A category with a parent can
  never become a parent itself, and a category that already has children
  can never be given a parent.

SYSTEM CATEGORIES:
  Rows flagged is_system (such as the seeded "Uncategorized") cannot be
  renamed, moved, or deleted.

DISPLAY ORDER:
  New categories append at the end of their scope. Deleting or moving a
  category renumbers every scope it touched so orders stay contiguous.
*/
package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
	"github.com/thelarryrutledge/nvlp-app-sub004/resilience"
)

type CategoryInput struct {
	Name     string
	ParentID *uuid.UUID
	IsIncome bool
}

type CategoryPatch struct {
	Name     *string
	ParentID RefPatch
	IsIncome *bool
}

// CategoryNode is one entry of the rendered tree: a top-level category
// with its children in display order.
type CategoryNode struct {
	ledger.Category
	Children []ledger.Category
}

// =============================================================================
// CRUD
// =============================================================================

func (s *Service) CreateCategory(ctx context.Context, actor, budgetID uuid.UUID, in CategoryInput) (ledger.Category, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return ledger.Category{}, err
	}
	if in.Name == "" {
		return ledger.Category{}, &ledger.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if in.ParentID != nil {
		parent, err := resilience.ExecuteValue(ctx, s.res, "get category", func(ctx context.Context) (ledger.Category, error) {
			return s.store.GetCategory(ctx, budgetID, *in.ParentID)
		})
		if err != nil {
			return ledger.Category{}, err
		}
		if parent.IsChild() {
			return ledger.Category{}, &ledger.ValidationError{Field: "parent_id", Reason: "categories nest at most one level deep"}
		}
	}

	scope := ledger.ScopeKey{Kind: ledger.ScopeCategories, BudgetID: budgetID, Parent: in.ParentID}
	order, err := s.nextDisplayOrder(ctx, scope)
	if err != nil {
		return ledger.Category{}, err
	}

	now := s.now()
	c := ledger.Category{
		ID:           uuid.New(),
		BudgetID:     budgetID,
		ParentID:     in.ParentID,
		Name:         in.Name,
		DisplayOrder: order,
		IsIncome:     in.IsIncome,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.res.ExecuteRetry(ctx, "create category", func(ctx context.Context) error {
		return s.store.CreateCategory(ctx, c)
	})
	if err != nil {
		return ledger.Category{}, err
	}

	s.invalidate(nsCategories)
	return c, nil
}

func (s *Service) GetCategory(ctx context.Context, actor, budgetID, id uuid.UUID) (ledger.Category, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return ledger.Category{}, err
	}
	return resilience.ExecuteValue(ctx, s.res, "get category", func(ctx context.Context) (ledger.Category, error) {
		return s.store.GetCategory(ctx, budgetID, id)
	})
}

func (s *Service) ListCategories(ctx context.Context, actor, budgetID uuid.UUID) ([]ledger.Category, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return nil, err
	}
	return cachedList(ctx, s, nsCategories, budgetID.String(), func(ctx context.Context) ([]ledger.Category, error) {
		return s.store.ListCategories(ctx, budgetID)
	})
}

// ListCategoryTree returns top-level categories with their children
// nested, both levels in display order. The flat listing from the store
// already arrives ordered by (display_order, created_at) per scope.
func (s *Service) ListCategoryTree(ctx context.Context, actor, budgetID uuid.UUID) ([]CategoryNode, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return nil, err
	}
	return cachedList(ctx, s, nsCategoryTree, budgetID.String(), func(ctx context.Context) ([]CategoryNode, error) {
		flat, err := s.store.ListCategories(ctx, budgetID)
		if err != nil {
			return nil, err
		}
		return buildTree(flat), nil
	})
}

func buildTree(flat []ledger.Category) []CategoryNode {
	byParent := make(map[uuid.UUID][]ledger.Category)
	var roots []ledger.Category
	for _, c := range flat {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
	}
	nodes := make([]CategoryNode, 0, len(roots))
	for _, r := range roots {
		nodes = append(nodes, CategoryNode{Category: r, Children: byParent[r.ID]})
	}
	return nodes
}

func (s *Service) UpdateCategory(ctx context.Context, actor, budgetID, id uuid.UUID, patch CategoryPatch) (ledger.Category, error) {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return ledger.Category{}, err
	}
	c, err := resilience.ExecuteValue(ctx, s.res, "get category", func(ctx context.Context) (ledger.Category, error) {
		return s.store.GetCategory(ctx, budgetID, id)
	})
	if err != nil {
		return ledger.Category{}, err
	}
	if c.IsSystem {
		return ledger.Category{}, &ledger.ValidationError{Field: "id", Reason: "system categories cannot be modified"}
	}

	oldScope := ledger.ScopeKey{Kind: ledger.ScopeCategories, BudgetID: budgetID, Parent: c.ParentID}
	moved := false

	if patch.Name != nil {
		if *patch.Name == "" {
			return ledger.Category{}, &ledger.ValidationError{Field: "name", Reason: "must not be empty"}
		}
		c.Name = *patch.Name
	}
	if patch.IsIncome != nil {
		c.IsIncome = *patch.IsIncome
	}
	if patch.ParentID.Set && !sameRef(c.ParentID, patch.ParentID.Value) {
		if err := s.checkReparent(ctx, budgetID, c, patch.ParentID.Value); err != nil {
			return ledger.Category{}, err
		}
		c.ParentID = patch.ParentID.Value
		newScope := ledger.ScopeKey{Kind: ledger.ScopeCategories, BudgetID: budgetID, Parent: c.ParentID}
		order, err := s.nextDisplayOrder(ctx, newScope)
		if err != nil {
			return ledger.Category{}, err
		}
		c.DisplayOrder = order
		moved = true
	}
	c.UpdatedAt = s.now()

	err = s.res.ExecuteRetry(ctx, "update category", func(ctx context.Context) error {
		return s.store.UpdateCategory(ctx, c)
	})
	if err != nil {
		return ledger.Category{}, err
	}

	if moved {
		if err := s.renumber(ctx, oldScope); err != nil {
			return ledger.Category{}, err
		}
	}
	s.invalidate(nsCategories)
	return c, nil
}

// checkReparent enforces the one-level nesting rule for a parent change.
func (s *Service) checkReparent(ctx context.Context, budgetID uuid.UUID, c ledger.Category, newParent *uuid.UUID) error {
	if newParent == nil {
		return nil
	}
	if *newParent == c.ID {
		return &ledger.ValidationError{Field: "parent_id", Reason: "category cannot be its own parent"}
	}
	parent, err := resilience.ExecuteValue(ctx, s.res, "get category", func(ctx context.Context) (ledger.Category, error) {
		return s.store.GetCategory(ctx, budgetID, *newParent)
	})
	if err != nil {
		return err
	}
	if parent.IsChild() {
		return &ledger.ValidationError{Field: "parent_id", Reason: "categories nest at most one level deep"}
	}
	children, err := resilience.ExecuteValue(ctx, s.res, "list scope members", func(ctx context.Context) ([]ledger.OrderedItem, error) {
		return s.store.ListScopeMembers(ctx, ledger.ScopeKey{Kind: ledger.ScopeCategories, BudgetID: budgetID, Parent: &c.ID})
	})
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return &ledger.ValidationError{Field: "parent_id", Reason: "category with children cannot become a child"}
	}
	return nil
}

// DeleteCategory removes the category. The store detaches children to
// the budget root and envelopes to uncategorized, so all three affected
// scopes get renumbered afterward.
func (s *Service) DeleteCategory(ctx context.Context, actor, budgetID, id uuid.UUID) error {
	if _, err := s.ownedBudget(ctx, actor, budgetID); err != nil {
		return err
	}
	c, err := resilience.ExecuteValue(ctx, s.res, "get category", func(ctx context.Context) (ledger.Category, error) {
		return s.store.GetCategory(ctx, budgetID, id)
	})
	if err != nil {
		return err
	}
	if c.IsSystem {
		return &ledger.ValidationError{Field: "id", Reason: "system categories cannot be deleted"}
	}

	err = s.res.ExecuteRetry(ctx, "delete category", func(ctx context.Context) error {
		return s.store.DeleteCategory(ctx, budgetID, id)
	})
	if err != nil {
		return err
	}

	scopes := []ledger.ScopeKey{
		{Kind: ledger.ScopeCategories, BudgetID: budgetID, Parent: c.ParentID},
		{Kind: ledger.ScopeCategories, BudgetID: budgetID, Parent: nil},
		{Kind: ledger.ScopeEnvelopes, BudgetID: budgetID, Parent: nil},
	}
	for _, scope := range scopes {
		if err := s.renumber(ctx, scope); err != nil {
			return err
		}
	}

	s.cache.Invalidate(nsCategories, nsCategoryTree, nsEnvelopes)
	return nil
}

func sameRef(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
