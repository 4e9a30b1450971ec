package ordering_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
	"github.com/thelarryrutledge/nvlp-app-sub004/ledger/store"
	"github.com/thelarryrutledge/nvlp-app-sub004/ordering"
)

type fixture struct {
	store    *store.TxMemory
	engine   *ordering.Engine
	owner    uuid.UUID
	budgetID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewTxMemory()
	f := &fixture{
		store:    mem,
		engine:   ordering.NewEngine(mem, zerolog.Nop()),
		owner:    uuid.New(),
		budgetID: uuid.New(),
	}
	require.NoError(t, mem.CreateBudget(context.Background(), ledger.Budget{
		ID: f.budgetID, OwnerID: f.owner, Name: "main", Currency: "USD", IsActive: true,
	}))
	return f
}

// addCategories creates top-level categories with the given display orders
// and returns their ids in creation order.
func (f *fixture) addCategories(t *testing.T, orders ...int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, len(orders))
	for i, order := range orders {
		ids[i] = uuid.New()
		require.NoError(t, f.store.CreateCategory(context.Background(), ledger.Category{
			ID: ids[i], BudgetID: f.budgetID, Name: "cat", DisplayOrder: order,
		}))
	}
	return ids
}

func (f *fixture) categoryOrders(t *testing.T, ids []uuid.UUID) []int {
	t.Helper()
	orders := make([]int, len(ids))
	for i, id := range ids {
		c, err := f.store.GetCategory(context.Background(), f.budgetID, id)
		require.NoError(t, err)
		orders[i] = c.DisplayOrder
	}
	return orders
}

func (f *fixture) rootScope() ledger.ScopeKey {
	return ledger.ScopeKey{Kind: ledger.ScopeCategories, BudgetID: f.budgetID}
}

func TestReorder_MovesItemsAndRenumbers(t *testing.T) {
	f := newFixture(t)
	ids := f.addCategories(t, 0, 1, 2)

	// Move the first category to the end.
	err := f.engine.Reorder(context.Background(), f.owner, ledger.ScopeCategories, f.budgetID, []ledger.ReorderItem{
		{ID: ids[0], NewOrder: 2},
		{ID: ids[1], NewOrder: 0},
		{ID: ids[2], NewOrder: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 0, 1}, f.categoryOrders(t, ids))
}

func TestReorder_RepairsGapsAndDuplicates(t *testing.T) {
	f := newFixture(t)
	// Scope arrives with gaps and a duplicate: [0,2,2,5].
	ids := f.addCategories(t, 0, 2, 2, 5)

	// An empty relocation plus cleanup: submit current positions as-is.
	items := make([]ledger.ReorderItem, len(ids))
	for i, id := range ids {
		c, err := f.store.GetCategory(context.Background(), f.budgetID, id)
		require.NoError(t, err)
		items[i] = ledger.ReorderItem{ID: id, NewOrder: c.DisplayOrder}
	}

	require.NoError(t, f.engine.Reorder(context.Background(), f.owner, ledger.ScopeCategories, f.budgetID, items))

	// Contiguous 0..3 in stable relative order (ties broken by creation).
	assert.Equal(t, []int{0, 1, 2, 3}, f.categoryOrders(t, ids))
}

func TestRenumberScope_Idempotent(t *testing.T) {
	f := newFixture(t)
	ids := f.addCategories(t, 0, 2, 2, 5)

	require.NoError(t, f.engine.RenumberScope(context.Background(), f.rootScope()))
	first := f.categoryOrders(t, ids)
	assert.Equal(t, []int{0, 1, 2, 3}, first)

	// A redundant second pass must produce the identical sequence.
	require.NoError(t, f.engine.RenumberScope(context.Background(), f.rootScope()))
	assert.Equal(t, first, f.categoryOrders(t, ids))
}

func TestReorder_DistinctScopesRenumberedIndependently(t *testing.T) {
	f := newFixture(t)
	parents := f.addCategories(t, 0, 1)

	child := func(parent uuid.UUID, order int) uuid.UUID {
		id := uuid.New()
		require.NoError(t, f.store.CreateCategory(context.Background(), ledger.Category{
			ID: id, BudgetID: f.budgetID, ParentID: &parent, Name: "sub", DisplayOrder: order,
		}))
		return id
	}
	a1, a2 := child(parents[0], 3), child(parents[0], 7)
	b1, b2 := child(parents[1], 4), child(parents[1], 4)

	err := f.engine.Reorder(context.Background(), f.owner, ledger.ScopeCategories, f.budgetID, []ledger.ReorderItem{
		{ID: a1, NewOrder: 3}, {ID: a2, NewOrder: 7},
		{ID: b1, NewOrder: 4}, {ID: b2, NewOrder: 4},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, f.categoryOrders(t, []uuid.UUID{a1, a2}))
	assert.Equal(t, []int{0, 1}, f.categoryOrders(t, []uuid.UUID{b1, b2}))
}

func TestReorder_EnvelopesScopedByCategory(t *testing.T) {
	f := newFixture(t)
	catID := f.addCategories(t, 0)[0]

	env := func(order int) uuid.UUID {
		id := uuid.New()
		require.NoError(t, f.store.CreateEnvelope(context.Background(), ledger.Envelope{
			ID: id, BudgetID: f.budgetID, CategoryID: &catID, Name: "env",
			Type: ledger.EnvelopeRegular, DisplayOrder: order, IsActive: true,
		}))
		return id
	}
	e1, e2, e3 := env(0), env(1), env(2)

	err := f.engine.Reorder(context.Background(), f.owner, ledger.ScopeEnvelopes, f.budgetID, []ledger.ReorderItem{
		{ID: e3, NewOrder: 0},
		{ID: e1, NewOrder: 1},
		{ID: e2, NewOrder: 2},
	})
	require.NoError(t, err)

	orders := make(map[uuid.UUID]int)
	for _, id := range []uuid.UUID{e1, e2, e3} {
		e, err := f.store.GetEnvelope(context.Background(), f.budgetID, id)
		require.NoError(t, err)
		orders[id] = e.DisplayOrder
	}
	assert.Equal(t, 0, orders[e3])
	assert.Equal(t, 1, orders[e1])
	assert.Equal(t, 2, orders[e2])
}

func TestReorder_RejectsNonOwner(t *testing.T) {
	f := newFixture(t)
	ids := f.addCategories(t, 0, 1)

	stranger := uuid.New()
	err := f.engine.Reorder(context.Background(), stranger, ledger.ScopeCategories, f.budgetID, []ledger.ReorderItem{
		{ID: ids[0], NewOrder: 1},
	})
	require.ErrorIs(t, err, ledger.ErrNotFound)

	// Nothing moved.
	assert.Equal(t, []int{0, 1}, f.categoryOrders(t, ids))
}

func TestReorder_ForeignItemFailsBatchBeforeWrites(t *testing.T) {
	f := newFixture(t)
	ids := f.addCategories(t, 0, 1)

	otherBudget := uuid.New()
	require.NoError(t, f.store.CreateBudget(context.Background(), ledger.Budget{
		ID: otherBudget, OwnerID: f.owner, Name: "other", Currency: "USD", IsActive: true,
	}))
	foreign := uuid.New()
	require.NoError(t, f.store.CreateCategory(context.Background(), ledger.Category{
		ID: foreign, BudgetID: otherBudget, Name: "elsewhere", DisplayOrder: 0,
	}))

	err := f.engine.Reorder(context.Background(), f.owner, ledger.ScopeCategories, f.budgetID, []ledger.ReorderItem{
		{ID: ids[0], NewOrder: 1},
		{ID: foreign, NewOrder: 0},
	})
	require.ErrorIs(t, err, ledger.ErrNotFound)

	// Scope resolution failed before any write landed.
	assert.Equal(t, []int{0, 1}, f.categoryOrders(t, ids))
}

func TestReorder_EmptyBatchIsNoop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Reorder(context.Background(), f.owner, ledger.ScopeCategories, f.budgetID, nil))
}
