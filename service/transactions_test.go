package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
)

// End-to-end money flow: income lands in the available pool, an
// allocation earmarks it, an expense drains the envelope and rolls up
// on the payee.
func TestTransactionFlowAdjustsBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	groceries := f.envelope(t, "Groceries", ledger.EnvelopeRegular)
	market := f.payee(t, "Corner Market")
	src := f.incomeSource(t, "Paycheck")

	_, err := f.svc.CreateTransaction(ctx, f.actor, f.budget.ID, TransactionInput{
		Type:            ledger.TxIncome,
		Amount:          dec("100.00"),
		TransactionDate: yesterday(),
		IncomeSourceID:  &src.ID,
	})
	require.NoError(t, err)

	_, err = f.svc.CreateTransaction(ctx, f.actor, f.budget.ID, TransactionInput{
		Type:            ledger.TxAllocation,
		Amount:          dec("40.00"),
		TransactionDate: yesterday(),
		ToEnvelopeID:    &groceries.ID,
	})
	require.NoError(t, err)

	expense, err := f.svc.CreateTransaction(ctx, f.actor, f.budget.ID, TransactionInput{
		Type:            ledger.TxExpense,
		Amount:          dec("25.00"),
		TransactionDate: yesterday(),
		Description:     "weekly shop",
		FromEnvelopeID:  &groceries.ID,
		PayeeID:         &market.ID,
	})
	require.NoError(t, err)

	budget, err := f.svc.GetBudget(ctx, f.actor, f.budget.ID)
	require.NoError(t, err)
	assert.True(t, budget.AvailableAmount.Equal(dec("60.00")), "available = %s", budget.AvailableAmount)

	env, err := f.svc.GetEnvelope(ctx, f.actor, f.budget.ID, groceries.ID)
	require.NoError(t, err)
	assert.True(t, env.CurrentBalance.Equal(dec("15.00")), "envelope = %s", env.CurrentBalance)

	p, err := f.svc.GetPayee(ctx, f.actor, f.budget.ID, market.ID)
	require.NoError(t, err)
	assert.True(t, p.TotalPaid.Equal(dec("25.00")))
	require.NotNil(t, p.LastPaymentAmount)
	assert.True(t, p.LastPaymentAmount.Equal(dec("25.00")))
	require.NotNil(t, p.LastPaymentDate)
	assert.Equal(t, expense.TransactionDate.Truncate(0).Format("2006-01-02"), p.LastPaymentDate.Format("2006-01-02"))
}

func TestCreateTransactionRejectsInvalidShape(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	groceries := f.envelope(t, "Groceries", ledger.EnvelopeRegular)

	// An expense without a payee never reaches the store.
	_, err := f.svc.CreateTransaction(ctx, f.actor, f.budget.ID, TransactionInput{
		Type:            ledger.TxExpense,
		Amount:          dec("10.00"),
		TransactionDate: yesterday(),
		FromEnvelopeID:  &groceries.ID,
	})
	require.True(t, ledger.IsValidation(err), "got %v", err)

	list, err := f.svc.ListTransactions(ctx, f.actor, f.budget.ID, ledger.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	env, err := f.svc.GetEnvelope(ctx, f.actor, f.budget.ID, groceries.ID)
	require.NoError(t, err)
	assert.True(t, env.CurrentBalance.IsZero(), "failed validation must not move money")
}

func TestUpdateTransactionSwapsEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	groceries := f.envelope(t, "Groceries", ledger.EnvelopeRegular)
	market := f.payee(t, "Corner Market")
	f.fund(t, groceries, "100.00")

	tx, err := f.svc.CreateTransaction(ctx, f.actor, f.budget.ID, TransactionInput{
		Type:            ledger.TxExpense,
		Amount:          dec("25.00"),
		TransactionDate: yesterday(),
		FromEnvelopeID:  &groceries.ID,
		PayeeID:         &market.ID,
	})
	require.NoError(t, err)

	newAmount := dec("30.00")
	updated, err := f.svc.UpdateTransaction(ctx, f.actor, tx.ID, TransactionPatch{Amount: &newAmount})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(newAmount))

	env, err := f.svc.GetEnvelope(ctx, f.actor, f.budget.ID, groceries.ID)
	require.NoError(t, err)
	assert.True(t, env.CurrentBalance.Equal(dec("70.00")), "old effect reversed, new applied: %s", env.CurrentBalance)

	p, err := f.svc.GetPayee(ctx, f.actor, f.budget.ID, market.ID)
	require.NoError(t, err)
	assert.True(t, p.TotalPaid.Equal(dec("30.00")))
}

func TestSoftDeleteReversesEffectsAndHidesRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	groceries := f.envelope(t, "Groceries", ledger.EnvelopeRegular)
	market := f.payee(t, "Corner Market")
	f.fund(t, groceries, "100.00")

	tx, err := f.svc.CreateTransaction(ctx, f.actor, f.budget.ID, TransactionInput{
		Type:            ledger.TxExpense,
		Amount:          dec("25.00"),
		TransactionDate: yesterday(),
		FromEnvelopeID:  &groceries.ID,
		PayeeID:         &market.ID,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.SoftDeleteTransaction(ctx, f.actor, tx.ID))

	env, err := f.svc.GetEnvelope(ctx, f.actor, f.budget.ID, groceries.ID)
	require.NoError(t, err)
	assert.True(t, env.CurrentBalance.Equal(dec("100.00")), "deletion refunds the envelope")

	p, err := f.svc.GetPayee(ctx, f.actor, f.budget.ID, market.ID)
	require.NoError(t, err)
	assert.True(t, p.TotalPaid.IsZero())
	assert.Nil(t, p.LastPaymentDate, "last payment recomputed from surviving rows")

	_, err = f.svc.GetTransaction(ctx, f.actor, tx.ID)
	require.True(t, ledger.IsNotFound(err))

	list, err := f.svc.ListTransactions(ctx, f.actor, f.budget.ID, ledger.TransactionFilter{})
	require.NoError(t, err)
	for _, got := range list {
		assert.NotEqual(t, tx.ID, got.ID, "deleted row must not appear in listings")
	}
}

func TestRestoreIsDeleterOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	groceries := f.envelope(t, "Groceries", ledger.EnvelopeRegular)
	market := f.payee(t, "Corner Market")
	f.fund(t, groceries, "100.00")

	tx, err := f.svc.CreateTransaction(ctx, f.actor, f.budget.ID, TransactionInput{
		Type:            ledger.TxExpense,
		Amount:          dec("25.00"),
		TransactionDate: yesterday(),
		FromEnvelopeID:  &groceries.ID,
		PayeeID:         &market.ID,
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.SoftDeleteTransaction(ctx, f.actor, tx.ID))

	// A different actor cannot even see the deleted row.
	other := uuid.New()
	_, err = f.svc.RestoreTransaction(ctx, other, tx.ID)
	require.True(t, ledger.IsNotFound(err), "non-deleter restore must look like absence, got %v", err)

	restored, err := f.svc.RestoreTransaction(ctx, f.actor, tx.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)
	assert.Nil(t, restored.DeletedAt)
	assert.Nil(t, restored.DeletedBy)

	env, err := f.svc.GetEnvelope(ctx, f.actor, f.budget.ID, groceries.ID)
	require.NoError(t, err)
	assert.True(t, env.CurrentBalance.Equal(dec("75.00")), "restore reapplies the effects")
}

func TestDoubleDeleteReadsAsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	groceries := f.envelope(t, "Groceries", ledger.EnvelopeRegular)
	market := f.payee(t, "Corner Market")
	f.fund(t, groceries, "50.00")

	tx, err := f.svc.CreateTransaction(ctx, f.actor, f.budget.ID, TransactionInput{
		Type:            ledger.TxExpense,
		Amount:          dec("10.00"),
		TransactionDate: yesterday(),
		FromEnvelopeID:  &groceries.ID,
		PayeeID:         &market.ID,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.SoftDeleteTransaction(ctx, f.actor, tx.ID))
	err = f.svc.SoftDeleteTransaction(ctx, f.actor, tx.ID)
	require.True(t, ledger.IsNotFound(err))

	// The envelope must not be refunded twice.
	env, err := f.svc.GetEnvelope(ctx, f.actor, f.budget.ID, groceries.ID)
	require.NoError(t, err)
	assert.True(t, env.CurrentBalance.Equal(dec("50.00")))
}

func TestListTransactionsFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	groceries := f.envelope(t, "Groceries", ledger.EnvelopeRegular)
	fun := f.envelope(t, "Fun", ledger.EnvelopeRegular)
	market := f.payee(t, "Corner Market")
	f.fund(t, groceries, "100.00")
	f.fund(t, fun, "50.00")

	_, err := f.svc.CreateTransaction(ctx, f.actor, f.budget.ID, TransactionInput{
		Type:            ledger.TxExpense,
		Amount:          dec("25.00"),
		TransactionDate: yesterday(),
		FromEnvelopeID:  &groceries.ID,
		PayeeID:         &market.ID,
	})
	require.NoError(t, err)

	_, err = f.svc.CreateTransaction(ctx, f.actor, f.budget.ID, TransactionInput{
		Type:            ledger.TxTransfer,
		Amount:          dec("5.00"),
		TransactionDate: yesterday(),
		FromEnvelopeID:  &fun.ID,
		ToEnvelopeID:    &groceries.ID,
	})
	require.NoError(t, err)

	expenseType := ledger.TxExpense
	expenses, err := f.svc.ListTransactions(ctx, f.actor, f.budget.ID, ledger.TransactionFilter{Type: &expenseType})
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, ledger.TxExpense, expenses[0].Type)

	// Envelope filter matches either side of a transfer.
	byEnvelope, err := f.svc.ListTransactions(ctx, f.actor, f.budget.ID, ledger.TransactionFilter{EnvelopeID: &fun.ID})
	require.NoError(t, err)
	require.Len(t, byEnvelope, 2, "allocation into fun plus the transfer out")
}
