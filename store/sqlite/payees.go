// payees.go - Payee persistence. The rollup columns (total_paid and the
// last-payment pair) are only ever written through ApplyEffects.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
)

const payeeColumns = "id, budget_id, name, total_paid, last_payment_date, last_payment_amount, is_active, created_at, updated_at"

func (q *queries) GetPayee(ctx context.Context, budgetID, id uuid.UUID) (ledger.Payee, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+payeeColumns+" FROM payees WHERE budget_id = ? AND id = ?",
		budgetID.String(), id.String())
	p, err := scanPayee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Payee{}, &ledger.NotFoundError{Kind: "payee", ID: id}
	}
	return p, err
}

func (q *queries) ListPayees(ctx context.Context, budgetID uuid.UUID) ([]ledger.Payee, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+payeeColumns+" FROM payees WHERE budget_id = ? ORDER BY name ASC",
		budgetID.String())
	if err != nil {
		return nil, fmt.Errorf("list payees: %w", err)
	}
	defer rows.Close()

	var out []ledger.Payee
	for rows.Next() {
		p, err := scanPayee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *queries) CreatePayee(ctx context.Context, p ledger.Payee) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO payees (id, budget_id, name, total_paid, last_payment_date, last_payment_amount, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.BudgetID.String(), p.Name, p.TotalPaid.String(),
		encodeTimePtr(p.LastPaymentDate), encodeDecimalPtr(p.LastPaymentAmount),
		p.IsActive, encodeTime(p.CreatedAt), encodeTime(p.UpdatedAt),
	)
	return mapInsertErr("payee", err)
}

func (q *queries) UpdatePayee(ctx context.Context, p ledger.Payee) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE payees SET name = ?, is_active = ?, updated_at = ?
		WHERE budget_id = ? AND id = ?`,
		p.Name, p.IsActive, encodeTime(p.UpdatedAt),
		p.BudgetID.String(), p.ID.String(),
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "payee", p.ID)
}

func (q *queries) DeletePayee(ctx context.Context, budgetID, id uuid.UUID) error {
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM payees WHERE budget_id = ? AND id = ?",
		budgetID.String(), id.String())
	if err != nil {
		return err
	}
	return requireRowAffected(res, "payee", id)
}

func scanPayee(s scanner) (ledger.Payee, error) {
	var (
		p                     ledger.Payee
		id, budgetID, total   string
		lastDate, lastAmount  sql.NullString
		createdAt, updatedAt  string
	)
	if err := s.Scan(&id, &budgetID, &p.Name, &total, &lastDate, &lastAmount, &p.IsActive, &createdAt, &updatedAt); err != nil {
		return ledger.Payee{}, err
	}

	var err error
	if p.ID, err = decodeUUID(id); err != nil {
		return ledger.Payee{}, err
	}
	if p.BudgetID, err = decodeUUID(budgetID); err != nil {
		return ledger.Payee{}, err
	}
	if p.TotalPaid, err = decodeDecimal(total); err != nil {
		return ledger.Payee{}, err
	}
	p.LastPaymentDate = decodeTimePtr(lastDate)
	if p.LastPaymentAmount, err = decodeDecimalPtr(lastAmount); err != nil {
		return ledger.Payee{}, err
	}
	p.CreatedAt = decodeTime(createdAt)
	p.UpdatedAt = decodeTime(updatedAt)
	return p, nil
}
