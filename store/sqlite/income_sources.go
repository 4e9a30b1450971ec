// income_sources.go - Income source persistence. The recurrence
// schedule is stored as a JSON column; its shape is owned by the
// ledger.Schedule type.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
)

const incomeSourceColumns = "id, budget_id, name, expected_amount, schedule_json, next_expected_date, is_active, created_at, updated_at"

func (q *queries) GetIncomeSource(ctx context.Context, budgetID, id uuid.UUID) (ledger.IncomeSource, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+incomeSourceColumns+" FROM income_sources WHERE budget_id = ? AND id = ?",
		budgetID.String(), id.String())
	src, err := scanIncomeSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.IncomeSource{}, &ledger.NotFoundError{Kind: "income_source", ID: id}
	}
	return src, err
}

func (q *queries) ListIncomeSources(ctx context.Context, budgetID uuid.UUID) ([]ledger.IncomeSource, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+incomeSourceColumns+" FROM income_sources WHERE budget_id = ? ORDER BY name ASC",
		budgetID.String())
	if err != nil {
		return nil, fmt.Errorf("list income sources: %w", err)
	}
	defer rows.Close()

	var out []ledger.IncomeSource
	for rows.Next() {
		src, err := scanIncomeSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (q *queries) CreateIncomeSource(ctx context.Context, src ledger.IncomeSource) error {
	schedule, err := json.Marshal(src.Schedule)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO income_sources (id, budget_id, name, expected_amount, schedule_json, next_expected_date, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID.String(), src.BudgetID.String(), src.Name, src.ExpectedAmount.String(),
		string(schedule), encodeTimePtr(src.NextExpectedDate), src.IsActive,
		encodeTime(src.CreatedAt), encodeTime(src.UpdatedAt),
	)
	return mapInsertErr("income_source", err)
}

func (q *queries) UpdateIncomeSource(ctx context.Context, src ledger.IncomeSource) error {
	schedule, err := json.Marshal(src.Schedule)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	res, err := q.db.ExecContext(ctx, `
		UPDATE income_sources SET name = ?, expected_amount = ?, schedule_json = ?, next_expected_date = ?, is_active = ?, updated_at = ?
		WHERE budget_id = ? AND id = ?`,
		src.Name, src.ExpectedAmount.String(), string(schedule),
		encodeTimePtr(src.NextExpectedDate), src.IsActive, encodeTime(src.UpdatedAt),
		src.BudgetID.String(), src.ID.String(),
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "income_source", src.ID)
}

func (q *queries) DeleteIncomeSource(ctx context.Context, budgetID, id uuid.UUID) error {
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM income_sources WHERE budget_id = ? AND id = ?",
		budgetID.String(), id.String())
	if err != nil {
		return err
	}
	return requireRowAffected(res, "income_source", id)
}

func scanIncomeSource(s scanner) (ledger.IncomeSource, error) {
	var (
		src                            ledger.IncomeSource
		id, budgetID, amount, schedule string
		nextDate                       sql.NullString
		createdAt, updatedAt           string
	)
	if err := s.Scan(&id, &budgetID, &src.Name, &amount, &schedule, &nextDate, &src.IsActive, &createdAt, &updatedAt); err != nil {
		return ledger.IncomeSource{}, err
	}

	var err error
	if src.ID, err = decodeUUID(id); err != nil {
		return ledger.IncomeSource{}, err
	}
	if src.BudgetID, err = decodeUUID(budgetID); err != nil {
		return ledger.IncomeSource{}, err
	}
	if src.ExpectedAmount, err = decodeDecimal(amount); err != nil {
		return ledger.IncomeSource{}, err
	}
	if err := json.Unmarshal([]byte(schedule), &src.Schedule); err != nil {
		return ledger.IncomeSource{}, fmt.Errorf("unmarshal schedule: %w", err)
	}
	src.NextExpectedDate = decodeTimePtr(nextDate)
	src.CreatedAt = decodeTime(createdAt)
	src.UpdatedAt = decodeTime(updatedAt)
	return src, nil
}
