/*
balance.go - Balance effects of transactions

PURPOSE:
  Describes exactly which cached balances a transaction touches and by how
  much. The original hosted store recomputed balances with triggers after
  every write; here the effects are explicit values a store applies inside
  the same storage transaction as the row write. That keeps "insert
  transaction" and "adjust balances" atomic, so no reader ever observes a
  transaction whose balances have not landed yet.

EFFECTS BY TYPE:
  income:       budget available += amount
  allocation:   budget available -= amount, destination envelope += amount
  expense:      source envelope -= amount, payee totals += amount
  transfer:     source envelope -= amount, destination envelope += amount
  debt_payment: source envelope -= amount, payee totals += amount

REVERSAL:
  Soft delete reverses the effects, restore re-applies them, and an update
  reverses the old transaction before applying the new one. Reversing a
  payee payment cannot recover the previous "last payment" pair, so stores
  recompute last_payment_date/amount from surviving rows when they apply a
  negative payee effect.

SEE ALSO:
  - store/sqlite: Applies effects inside WithTx
  - validator.go: Guarantees the reference fields effects rely on
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE EFFECT - One adjustment to a cached balance
// =============================================================================

type EffectTarget string

const (
	TargetBudgetAvailable EffectTarget = "budget_available"
	TargetEnvelopeBalance EffectTarget = "envelope_balance"
	TargetPayeeTotals     EffectTarget = "payee_totals"
)

// BalanceEffect is a signed adjustment to one cached balance. For payee
// totals with a positive delta, PaymentDate and PaymentAmount carry the
// new "last payment" pair; with a negative delta they are nil and the
// store recomputes the pair from surviving transactions.
type BalanceEffect struct {
	Target        EffectTarget
	ID            uuid.UUID
	Delta         decimal.Decimal
	PaymentDate   *time.Time
	PaymentAmount *decimal.Decimal
}

// Effects returns the balance adjustments applying tx entails. The
// transaction must already have passed validation; missing references
// surface as validation errors rather than panics.
func Effects(tx Transaction) ([]BalanceEffect, error) {
	switch tx.Type {
	case TxIncome:
		return []BalanceEffect{
			{Target: TargetBudgetAvailable, ID: tx.BudgetID, Delta: tx.Amount},
		}, nil

	case TxAllocation:
		if tx.ToEnvelopeID == nil {
			return nil, &ValidationError{Field: "to_envelope_id", Reason: "required for allocation"}
		}
		return []BalanceEffect{
			{Target: TargetBudgetAvailable, ID: tx.BudgetID, Delta: tx.Amount.Neg()},
			{Target: TargetEnvelopeBalance, ID: *tx.ToEnvelopeID, Delta: tx.Amount},
		}, nil

	case TxExpense, TxDebtPayment:
		if tx.FromEnvelopeID == nil {
			return nil, &ValidationError{Field: "from_envelope_id", Reason: "required for " + string(tx.Type)}
		}
		if tx.PayeeID == nil {
			return nil, &ValidationError{Field: "payee_id", Reason: "required for " + string(tx.Type)}
		}
		date := tx.TransactionDate
		amount := tx.Amount
		return []BalanceEffect{
			{Target: TargetEnvelopeBalance, ID: *tx.FromEnvelopeID, Delta: tx.Amount.Neg()},
			{Target: TargetPayeeTotals, ID: *tx.PayeeID, Delta: tx.Amount, PaymentDate: &date, PaymentAmount: &amount},
		}, nil

	case TxTransfer:
		if tx.FromEnvelopeID == nil || tx.ToEnvelopeID == nil {
			return nil, &ValidationError{Field: "from_envelope_id/to_envelope_id", Reason: "required for transfer"}
		}
		return []BalanceEffect{
			{Target: TargetEnvelopeBalance, ID: *tx.FromEnvelopeID, Delta: tx.Amount.Neg()},
			{Target: TargetEnvelopeBalance, ID: *tx.ToEnvelopeID, Delta: tx.Amount},
		}, nil
	}

	return nil, &InvalidTransactionTypeError{Type: tx.Type}
}

// ReverseEffects returns the adjustments that undo tx: every delta is
// negated and payment pairs are dropped so stores recompute them.
func ReverseEffects(tx Transaction) ([]BalanceEffect, error) {
	effects, err := Effects(tx)
	if err != nil {
		return nil, err
	}
	reversed := make([]BalanceEffect, len(effects))
	for i, e := range effects {
		reversed[i] = BalanceEffect{Target: e.Target, ID: e.ID, Delta: e.Delta.Neg()}
	}
	return reversed, nil
}
