// budgets.go - Budget persistence. Deleting a budget cascades to every
// dependent table through the schema's ON DELETE CASCADE.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
)

const budgetColumns = "id, owner_id, name, currency, available_amount, is_active, created_at, updated_at"

func (q *queries) GetBudget(ctx context.Context, id uuid.UUID) (ledger.Budget, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+budgetColumns+" FROM budgets WHERE id = ?", id.String())
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Budget{}, &ledger.NotFoundError{Kind: "budget", ID: id}
	}
	return b, err
}

func (q *queries) ListBudgets(ctx context.Context, ownerID uuid.UUID) ([]ledger.Budget, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+budgetColumns+" FROM budgets WHERE owner_id = ? ORDER BY created_at ASC",
		ownerID.String())
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []ledger.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (q *queries) CreateBudget(ctx context.Context, b ledger.Budget) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO budgets (id, owner_id, name, currency, available_amount, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID.String(), b.OwnerID.String(), b.Name, b.Currency,
		b.AvailableAmount.String(), b.IsActive,
		encodeTime(b.CreatedAt), encodeTime(b.UpdatedAt),
	)
	return mapInsertErr("budget", err)
}

func (q *queries) UpdateBudget(ctx context.Context, b ledger.Budget) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE budgets SET name = ?, currency = ?, available_amount = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		b.Name, b.Currency, b.AvailableAmount.String(), b.IsActive,
		encodeTime(b.UpdatedAt), b.ID.String(),
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "budget", b.ID)
}

func (q *queries) DeleteBudget(ctx context.Context, id uuid.UUID) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM budgets WHERE id = ?", id.String())
	if err != nil {
		return err
	}
	return requireRowAffected(res, "budget", id)
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBudget(s scanner) (ledger.Budget, error) {
	var (
		b                    ledger.Budget
		id, owner, available string
		createdAt, updatedAt string
	)
	if err := s.Scan(&id, &owner, &b.Name, &b.Currency, &available, &b.IsActive, &createdAt, &updatedAt); err != nil {
		return ledger.Budget{}, err
	}

	var err error
	if b.ID, err = decodeUUID(id); err != nil {
		return ledger.Budget{}, err
	}
	if b.OwnerID, err = decodeUUID(owner); err != nil {
		return ledger.Budget{}, err
	}
	if b.AvailableAmount, err = decodeDecimal(available); err != nil {
		return ledger.Budget{}, err
	}
	b.CreatedAt = decodeTime(createdAt)
	b.UpdatedAt = decodeTime(updatedAt)
	return b, nil
}
