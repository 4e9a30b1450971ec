package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
)

func TestCategoryNestingIsOneLevelDeep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent, err := f.svc.CreateCategory(ctx, f.actor, f.budget.ID, CategoryInput{Name: "Bills"})
	require.NoError(t, err)
	child, err := f.svc.CreateCategory(ctx, f.actor, f.budget.ID, CategoryInput{Name: "Utilities", ParentID: &parent.ID})
	require.NoError(t, err)

	// A grandchild is rejected outright.
	_, err = f.svc.CreateCategory(ctx, f.actor, f.budget.ID, CategoryInput{Name: "Electric", ParentID: &child.ID})
	require.True(t, ledger.IsValidation(err), "got %v", err)

	// A category with children cannot itself be re-parented.
	other, err := f.svc.CreateCategory(ctx, f.actor, f.budget.ID, CategoryInput{Name: "Other"})
	require.NoError(t, err)
	_, err = f.svc.UpdateCategory(ctx, f.actor, f.budget.ID, parent.ID, CategoryPatch{
		ParentID: RefPatch{Set: true, Value: &other.ID},
	})
	require.True(t, ledger.IsValidation(err), "got %v", err)
}

func TestSystemCategoryIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Seed a system row directly; the service never creates one.
	sys := ledger.Category{
		ID:       uuid.New(),
		BudgetID: f.budget.ID,
		Name:     "Uncategorized",
		IsSystem: true,
	}
	require.NoError(t, f.store.CreateCategory(ctx, sys))

	name := "Renamed"
	_, err := f.svc.UpdateCategory(ctx, f.actor, f.budget.ID, sys.ID, CategoryPatch{Name: &name})
	require.True(t, ledger.IsValidation(err))

	err = f.svc.DeleteCategory(ctx, f.actor, f.budget.ID, sys.ID)
	require.True(t, ledger.IsValidation(err))
}

func TestCategoryDeleteDetachesAndRenumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreateCategory(ctx, f.actor, f.budget.ID, CategoryInput{Name: "A"})
	require.NoError(t, err)
	b, err := f.svc.CreateCategory(ctx, f.actor, f.budget.ID, CategoryInput{Name: "B"})
	require.NoError(t, err)
	c, err := f.svc.CreateCategory(ctx, f.actor, f.budget.ID, CategoryInput{Name: "C"})
	require.NoError(t, err)
	child, err := f.svc.CreateCategory(ctx, f.actor, f.budget.ID, CategoryInput{Name: "B child", ParentID: &b.ID})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteCategory(ctx, f.actor, f.budget.ID, b.ID))

	// Orders stay contiguous and the child was promoted to the root.
	cats, err := f.svc.ListCategories(ctx, f.actor, f.budget.ID)
	require.NoError(t, err)
	orders := map[string]int{}
	for _, cat := range cats {
		require.Nil(t, cat.ParentID, "all survivors are root after the delete")
		orders[cat.Name] = cat.DisplayOrder
	}
	assert.Len(t, cats, 3)
	// The promoted child keeps its old order 0 until the renumber pass,
	// which slots it by (order, creation) into a contiguous 0..2.
	assert.Equal(t, 0, orders[a.Name])
	assert.Equal(t, 1, orders[child.Name])
	assert.Equal(t, 2, orders[c.Name])
}

func TestCategoryTreeGroupsChildrenInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bills, err := f.svc.CreateCategory(ctx, f.actor, f.budget.ID, CategoryInput{Name: "Bills"})
	require.NoError(t, err)
	_, err = f.svc.CreateCategory(ctx, f.actor, f.budget.ID, CategoryInput{Name: "Rent", ParentID: &bills.ID})
	require.NoError(t, err)
	_, err = f.svc.CreateCategory(ctx, f.actor, f.budget.ID, CategoryInput{Name: "Utilities", ParentID: &bills.ID})
	require.NoError(t, err)
	_, err = f.svc.CreateCategory(ctx, f.actor, f.budget.ID, CategoryInput{Name: "Food"})
	require.NoError(t, err)

	tree, err := f.svc.ListCategoryTree(ctx, f.actor, f.budget.ID)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, "Bills", tree[0].Name)
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, "Rent", tree[0].Children[0].Name)
	assert.Equal(t, "Utilities", tree[0].Children[1].Name)
	assert.Equal(t, "Food", tree[1].Name)
	assert.Empty(t, tree[1].Children)
}

func TestCategoryTreeCacheInvalidatedByWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateCategory(ctx, f.actor, f.budget.ID, CategoryInput{Name: "Bills"})
	require.NoError(t, err)

	tree, err := f.svc.ListCategoryTree(ctx, f.actor, f.budget.ID)
	require.NoError(t, err)
	require.Len(t, tree, 1)

	_, err = f.svc.CreateCategory(ctx, f.actor, f.budget.ID, CategoryInput{Name: "Food"})
	require.NoError(t, err)

	tree, err = f.svc.ListCategoryTree(ctx, f.actor, f.budget.ID)
	require.NoError(t, err)
	require.Len(t, tree, 2, "create must invalidate the cached tree")
}
