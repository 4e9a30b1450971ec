/*
effects.go - Cached balance maintenance

Balance columns store decimal strings, so adjustments are read-modify-
write in Go rather than SQL arithmetic. ApplyEffects is documented to
run inside WithTx; the surrounding transaction is what makes the
read-modify-write atomic.

PAYEE ROLLUPS:
  A positive payee delta carries the new last-payment pair on the
  effect; it is adopted only when its date is not before the stored one,
  so a back-dated payment adjusts the total without moving the pair. A
  negative delta (reversal) drops the pair and recomputes it from the
  surviving live expense and debt_payment rows, which may leave it NULL
  when none remain.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
)

func (q *queries) ApplyEffects(ctx context.Context, effects []ledger.BalanceEffect) error {
	for _, e := range effects {
		var err error
		switch e.Target {
		case ledger.TargetBudgetAvailable:
			err = q.adjustBudgetAvailable(ctx, e)
		case ledger.TargetEnvelopeBalance:
			err = q.adjustEnvelopeBalance(ctx, e)
		case ledger.TargetPayeeTotals:
			err = q.adjustPayeeTotals(ctx, e)
		default:
			err = fmt.Errorf("unknown balance effect target %q", e.Target)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (q *queries) adjustBudgetAvailable(ctx context.Context, e ledger.BalanceEffect) error {
	var current string
	err := q.db.QueryRowContext(ctx,
		"SELECT available_amount FROM budgets WHERE id = ?", e.ID.String()).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return &ledger.NotFoundError{Kind: "budget", ID: e.ID}
	}
	if err != nil {
		return err
	}
	amount, err := decodeDecimal(current)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		"UPDATE budgets SET available_amount = ? WHERE id = ?",
		amount.Add(e.Delta).String(), e.ID.String())
	return err
}

func (q *queries) adjustEnvelopeBalance(ctx context.Context, e ledger.BalanceEffect) error {
	var current string
	err := q.db.QueryRowContext(ctx,
		"SELECT current_balance FROM envelopes WHERE id = ?", e.ID.String()).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return &ledger.NotFoundError{Kind: "envelope", ID: e.ID}
	}
	if err != nil {
		return err
	}
	balance, err := decodeDecimal(current)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		"UPDATE envelopes SET current_balance = ? WHERE id = ?",
		balance.Add(e.Delta).String(), e.ID.String())
	return err
}

func (q *queries) adjustPayeeTotals(ctx context.Context, e ledger.BalanceEffect) error {
	var current string
	var storedDate sql.NullString
	err := q.db.QueryRowContext(ctx,
		"SELECT total_paid, last_payment_date FROM payees WHERE id = ?", e.ID.String()).Scan(&current, &storedDate)
	if errors.Is(err, sql.ErrNoRows) {
		return &ledger.NotFoundError{Kind: "payee", ID: e.ID}
	}
	if err != nil {
		return err
	}
	total, err := decodeDecimal(current)
	if err != nil {
		return err
	}
	total = total.Add(e.Delta)

	if e.Delta.IsPositive() && e.PaymentDate != nil {
		// A back-dated payment must not displace a newer one: the pair
		// tracks the newest surviving payment by transaction date.
		if !storedDate.Valid || !e.PaymentDate.Before(decodeTime(storedDate.String)) {
			_, err = q.db.ExecContext(ctx,
				"UPDATE payees SET total_paid = ?, last_payment_date = ?, last_payment_amount = ? WHERE id = ?",
				total.String(), encodeTime(*e.PaymentDate), e.PaymentAmount.String(), e.ID.String())
			return err
		}
		_, err = q.db.ExecContext(ctx,
			"UPDATE payees SET total_paid = ? WHERE id = ?",
			total.String(), e.ID.String())
		return err
	}

	lastDate, lastAmount, err := q.lastPaymentFor(ctx, e.ID)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		"UPDATE payees SET total_paid = ?, last_payment_date = ?, last_payment_amount = ? WHERE id = ?",
		total.String(), lastDate, lastAmount, e.ID.String())
	return err
}

// lastPaymentFor finds the newest surviving payment to the payee, or
// NULLs when no live payment remains.
func (q *queries) lastPaymentFor(ctx context.Context, payeeID uuid.UUID) (any, any, error) {
	var date, amount string
	err := q.db.QueryRowContext(ctx, `
		SELECT transaction_date, amount FROM transactions
		WHERE payee_id = ? AND is_deleted = 0 AND type IN ('expense', 'debt_payment')
		ORDER BY transaction_date DESC, created_at DESC
		LIMIT 1`,
		payeeID.String()).Scan(&date, &amount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return date, amount, nil
}
