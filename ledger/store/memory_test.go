package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
	"github.com/thelarryrutledge/nvlp-app-sub004/ledger/store"
)

func seedBudget(t *testing.T, mem *store.TxMemory) ledger.Budget {
	t.Helper()
	b := ledger.Budget{ID: uuid.New(), OwnerID: uuid.New(), Name: "main", Currency: "USD", IsActive: true}
	require.NoError(t, mem.CreateBudget(context.Background(), b))
	return b
}

func TestTxMemory_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction write plus a failing follow-up inside WithTx
	// WHEN: The function returns an error
	// THEN: Neither the row nor the balance effect survives

	mem := store.NewTxMemory()
	ctx := context.Background()
	b := seedBudget(t, mem)

	src := uuid.New()
	require.NoError(t, mem.CreateIncomeSource(ctx, ledger.IncomeSource{
		ID: src, BudgetID: b.ID, Name: "salary", IsActive: true,
		Schedule: ledger.Schedule{Frequency: ledger.FreqMonthly, DayOfMonth: 1},
	}))

	txID := uuid.New()
	err := mem.WithTx(ctx, func(s ledger.Store) error {
		tx := ledger.Transaction{
			ID: txID, BudgetID: b.ID, Type: ledger.TxIncome,
			Amount: decimal.RequireFromString("100.00"), TransactionDate: time.Now().UTC(),
			IncomeSourceID: &src,
		}
		if err := s.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		if err := s.ApplyEffects(ctx, []ledger.BalanceEffect{
			{Target: ledger.TargetBudgetAvailable, ID: b.ID, Delta: tx.Amount},
		}); err != nil {
			return err
		}
		return ledger.ErrServiceUnavailable
	})
	require.Error(t, err)

	_, err = mem.GetTransaction(ctx, txID)
	assert.True(t, ledger.IsNotFound(err), "rolled-back transaction should not exist")

	got, err := mem.GetBudget(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.AvailableAmount.IsZero(), "rolled-back effect should not stick")
}

func TestMemory_DeletedTransaction_VisibleOnlyToDeleter(t *testing.T) {
	mem := store.NewTxMemory()
	ctx := context.Background()
	b := seedBudget(t, mem)

	txID := uuid.New()
	require.NoError(t, mem.InsertTransaction(ctx, ledger.Transaction{
		ID: txID, BudgetID: b.ID, Type: ledger.TxIncome,
		Amount: decimal.RequireFromString("10.00"), TransactionDate: time.Now().UTC(),
	}))

	deleter := uuid.New()
	require.NoError(t, mem.MarkTransactionDeleted(ctx, txID, deleter, time.Now().UTC()))

	_, err := mem.GetTransaction(ctx, txID)
	assert.True(t, ledger.IsNotFound(err), "deleted row hidden from normal reads")

	_, err = mem.GetDeletedTransaction(ctx, txID, uuid.New())
	assert.True(t, ledger.IsNotFound(err), "deleted row hidden from other actors")

	got, err := mem.GetDeletedTransaction(ctx, txID, deleter)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)

	require.NoError(t, mem.MarkTransactionRestored(ctx, txID))
	got, err = mem.GetTransaction(ctx, txID)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted)
	assert.Nil(t, got.DeletedBy)
}

func TestMemory_ListScopeMembers_StableOrder(t *testing.T) {
	// GIVEN: Envelopes with duplicate display orders
	// WHEN: Listing the scope
	// THEN: Ties break by creation order, so renumbering stays stable

	mem := store.NewTxMemory()
	ctx := context.Background()
	b := seedBudget(t, mem)

	catID := uuid.New()
	require.NoError(t, mem.CreateCategory(ctx, ledger.Category{ID: catID, BudgetID: b.ID, Name: "bills"}))

	first, second, third := uuid.New(), uuid.New(), uuid.New()
	for i, id := range []uuid.UUID{first, second, third} {
		order := []int{0, 2, 2}[i]
		require.NoError(t, mem.CreateEnvelope(ctx, ledger.Envelope{
			ID: id, BudgetID: b.ID, CategoryID: &catID, Name: "env",
			Type: ledger.EnvelopeRegular, DisplayOrder: order, IsActive: true,
		}))
	}

	members, err := mem.ListScopeMembers(ctx, ledger.ScopeKey{
		Kind: ledger.ScopeEnvelopes, BudgetID: b.ID, Parent: &catID,
	})
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, first, members[0].ID)
	assert.Equal(t, second, members[1].ID, "earlier creation wins the tie")
	assert.Equal(t, third, members[2].ID)
}

func TestMemory_ApplyEffects_PayeeReversalRecomputesLastPayment(t *testing.T) {
	mem := store.NewTxMemory()
	ctx := context.Background()
	b := seedBudget(t, mem)

	payeeID := uuid.New()
	require.NoError(t, mem.CreatePayee(ctx, ledger.Payee{ID: payeeID, BudgetID: b.ID, Name: "grocer", IsActive: true}))

	envID := uuid.New()
	require.NoError(t, mem.CreateEnvelope(ctx, ledger.Envelope{ID: envID, BudgetID: b.ID, Name: "food", Type: ledger.EnvelopeRegular, IsActive: true}))

	older := ledger.Transaction{
		ID: uuid.New(), BudgetID: b.ID, Type: ledger.TxExpense,
		Amount: decimal.RequireFromString("10.00"), TransactionDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		FromEnvelopeID: &envID, PayeeID: &payeeID,
	}
	newer := ledger.Transaction{
		ID: uuid.New(), BudgetID: b.ID, Type: ledger.TxExpense,
		Amount: decimal.RequireFromString("20.00"), TransactionDate: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		FromEnvelopeID: &envID, PayeeID: &payeeID,
	}
	for _, tx := range []ledger.Transaction{older, newer} {
		require.NoError(t, mem.InsertTransaction(ctx, tx))
		effects, err := ledger.Effects(tx)
		require.NoError(t, err)
		require.NoError(t, mem.ApplyEffects(ctx, effects))
	}

	// Soft-delete the newer payment, then reverse its effects
	require.NoError(t, mem.MarkTransactionDeleted(ctx, newer.ID, b.OwnerID, time.Now().UTC()))
	reversed, err := ledger.ReverseEffects(newer)
	require.NoError(t, err)
	require.NoError(t, mem.ApplyEffects(ctx, reversed))

	p, err := mem.GetPayee(ctx, b.ID, payeeID)
	require.NoError(t, err)
	assert.True(t, p.TotalPaid.Equal(decimal.RequireFromString("10.00")))
	require.NotNil(t, p.LastPaymentDate)
	assert.Equal(t, older.TransactionDate, *p.LastPaymentDate, "last payment falls back to the older row")
	require.NotNil(t, p.LastPaymentAmount)
	assert.True(t, p.LastPaymentAmount.Equal(older.Amount))
}

func TestMemory_ApplyEffects_BackdatedPaymentKeepsNewestPair(t *testing.T) {
	mem := store.NewTxMemory()
	ctx := context.Background()
	b := seedBudget(t, mem)

	payeeID := uuid.New()
	require.NoError(t, mem.CreatePayee(ctx, ledger.Payee{ID: payeeID, BudgetID: b.ID, Name: "grocer", IsActive: true}))

	envID := uuid.New()
	require.NoError(t, mem.CreateEnvelope(ctx, ledger.Envelope{ID: envID, BudgetID: b.ID, Name: "food", Type: ledger.EnvelopeRegular, IsActive: true}))

	newer := ledger.Transaction{
		ID: uuid.New(), BudgetID: b.ID, Type: ledger.TxExpense,
		Amount: decimal.RequireFromString("50.00"), TransactionDate: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		FromEnvelopeID: &envID, PayeeID: &payeeID,
	}
	backdated := ledger.Transaction{
		ID: uuid.New(), BudgetID: b.ID, Type: ledger.TxExpense,
		Amount: decimal.RequireFromString("30.00"), TransactionDate: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		FromEnvelopeID: &envID, PayeeID: &payeeID,
	}
	for _, tx := range []ledger.Transaction{newer, backdated} {
		require.NoError(t, mem.InsertTransaction(ctx, tx))
		effects, err := ledger.Effects(tx)
		require.NoError(t, err)
		require.NoError(t, mem.ApplyEffects(ctx, effects))
	}

	// Recording an older expense after a newer one adjusts the total but
	// leaves the last-payment pair on the newest surviving row.
	p, err := mem.GetPayee(ctx, b.ID, payeeID)
	require.NoError(t, err)
	assert.True(t, p.TotalPaid.Equal(decimal.RequireFromString("80.00")))
	require.NotNil(t, p.LastPaymentDate)
	assert.Equal(t, newer.TransactionDate, *p.LastPaymentDate)
	require.NotNil(t, p.LastPaymentAmount)
	assert.True(t, p.LastPaymentAmount.Equal(newer.Amount))
}
