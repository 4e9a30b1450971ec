package ledger_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
)

func TestEffects_Income_RaisesAvailable(t *testing.T) {
	budgetID := uuid.New()
	src := uuid.New()
	tx := ledger.Transaction{
		ID: uuid.New(), BudgetID: budgetID, Type: ledger.TxIncome,
		Amount: dec("2500.00"), TransactionDate: day(2025, time.March, 1),
		IncomeSourceID: &src,
	}

	effects, err := ledger.Effects(tx)
	require.NoError(t, err)
	require.Len(t, effects, 1)
	assert.Equal(t, ledger.TargetBudgetAvailable, effects[0].Target)
	assert.Equal(t, budgetID, effects[0].ID)
	assert.True(t, effects[0].Delta.Equal(dec("2500.00")))
}

func TestEffects_Allocation_MovesAvailableIntoEnvelope(t *testing.T) {
	budgetID, envID := uuid.New(), uuid.New()
	tx := ledger.Transaction{
		ID: uuid.New(), BudgetID: budgetID, Type: ledger.TxAllocation,
		Amount: dec("200.00"), TransactionDate: day(2025, time.March, 1),
		ToEnvelopeID: &envID,
	}

	effects, err := ledger.Effects(tx)
	require.NoError(t, err)
	require.Len(t, effects, 2)
	assert.Equal(t, ledger.TargetBudgetAvailable, effects[0].Target)
	assert.True(t, effects[0].Delta.Equal(dec("-200.00")))
	assert.Equal(t, ledger.TargetEnvelopeBalance, effects[1].Target)
	assert.Equal(t, envID, effects[1].ID)
	assert.True(t, effects[1].Delta.Equal(dec("200.00")))
}

func TestEffects_Expense_DrainsEnvelopeAndPaysPayee(t *testing.T) {
	budgetID, envID, payeeID := uuid.New(), uuid.New(), uuid.New()
	txDate := day(2025, time.March, 10)
	tx := ledger.Transaction{
		ID: uuid.New(), BudgetID: budgetID, Type: ledger.TxExpense,
		Amount: dec("25.00"), TransactionDate: txDate,
		FromEnvelopeID: &envID, PayeeID: &payeeID,
	}

	effects, err := ledger.Effects(tx)
	require.NoError(t, err)
	require.Len(t, effects, 2)

	assert.Equal(t, ledger.TargetEnvelopeBalance, effects[0].Target)
	assert.True(t, effects[0].Delta.Equal(dec("-25.00")))

	payee := effects[1]
	assert.Equal(t, ledger.TargetPayeeTotals, payee.Target)
	assert.Equal(t, payeeID, payee.ID)
	assert.True(t, payee.Delta.Equal(dec("25.00")))
	require.NotNil(t, payee.PaymentDate)
	assert.Equal(t, txDate, *payee.PaymentDate)
	require.NotNil(t, payee.PaymentAmount)
	assert.True(t, payee.PaymentAmount.Equal(dec("25.00")))
}

func TestEffects_Transfer_MovesBetweenEnvelopes(t *testing.T) {
	from, to := uuid.New(), uuid.New()
	tx := ledger.Transaction{
		ID: uuid.New(), BudgetID: uuid.New(), Type: ledger.TxTransfer,
		Amount: dec("75.50"), TransactionDate: day(2025, time.March, 1),
		FromEnvelopeID: &from, ToEnvelopeID: &to,
	}

	effects, err := ledger.Effects(tx)
	require.NoError(t, err)
	require.Len(t, effects, 2)
	assert.Equal(t, from, effects[0].ID)
	assert.True(t, effects[0].Delta.Equal(dec("-75.50")))
	assert.Equal(t, to, effects[1].ID)
	assert.True(t, effects[1].Delta.Equal(dec("75.50")))
}

func TestEffects_UnknownType_Rejected(t *testing.T) {
	tx := ledger.Transaction{ID: uuid.New(), Type: "refund", Amount: dec("1.00")}
	_, err := ledger.Effects(tx)

	var typeErr *ledger.InvalidTransactionTypeError
	assert.ErrorAs(t, err, &typeErr)
}

func TestReverseEffects_NegatesAndDropsPaymentInfo(t *testing.T) {
	// GIVEN: An expense with its payee payment pair
	// WHEN: Reversed
	// THEN: Deltas flip sign and the payment pair is dropped so stores
	//       recompute it from surviving rows

	envID, payeeID := uuid.New(), uuid.New()
	tx := ledger.Transaction{
		ID: uuid.New(), BudgetID: uuid.New(), Type: ledger.TxExpense,
		Amount: dec("25.00"), TransactionDate: day(2025, time.March, 10),
		FromEnvelopeID: &envID, PayeeID: &payeeID,
	}

	reversed, err := ledger.ReverseEffects(tx)
	require.NoError(t, err)
	require.Len(t, reversed, 2)
	assert.True(t, reversed[0].Delta.Equal(dec("25.00")))
	assert.True(t, reversed[1].Delta.Equal(dec("-25.00")))
	assert.Nil(t, reversed[1].PaymentDate)
	assert.Nil(t, reversed[1].PaymentAmount)
}
