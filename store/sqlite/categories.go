// categories.go - Category persistence. Deleting a category leans on
// the schema's ON DELETE SET NULL to detach children, envelopes, and
// transaction labels in one statement.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
)

const categoryColumns = "id, budget_id, parent_id, name, display_order, is_income, is_system, created_at, updated_at"

func (q *queries) GetCategory(ctx context.Context, budgetID, id uuid.UUID) (ledger.Category, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE budget_id = ? AND id = ?",
		budgetID.String(), id.String())
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Category{}, &ledger.NotFoundError{Kind: "category", ID: id}
	}
	return c, err
}

func (q *queries) ListCategories(ctx context.Context, budgetID uuid.UUID) ([]ledger.Category, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE budget_id = ? ORDER BY display_order ASC, created_at ASC",
		budgetID.String())
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []ledger.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *queries) CreateCategory(ctx context.Context, c ledger.Category) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO categories (id, budget_id, parent_id, name, display_order, is_income, is_system, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.BudgetID.String(), encodeUUIDPtr(c.ParentID),
		c.Name, c.DisplayOrder, c.IsIncome, c.IsSystem,
		encodeTime(c.CreatedAt), encodeTime(c.UpdatedAt),
	)
	return mapInsertErr("category", err)
}

func (q *queries) UpdateCategory(ctx context.Context, c ledger.Category) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE categories SET parent_id = ?, name = ?, display_order = ?, is_income = ?, updated_at = ?
		WHERE budget_id = ? AND id = ?`,
		encodeUUIDPtr(c.ParentID), c.Name, c.DisplayOrder, c.IsIncome,
		encodeTime(c.UpdatedAt), c.BudgetID.String(), c.ID.String(),
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "category", c.ID)
}

func (q *queries) DeleteCategory(ctx context.Context, budgetID, id uuid.UUID) error {
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM categories WHERE budget_id = ? AND id = ?",
		budgetID.String(), id.String())
	if err != nil {
		return err
	}
	return requireRowAffected(res, "category", id)
}

func scanCategory(s scanner) (ledger.Category, error) {
	var (
		c                    ledger.Category
		id, budgetID         string
		parentID             sql.NullString
		createdAt, updatedAt string
	)
	if err := s.Scan(&id, &budgetID, &parentID, &c.Name, &c.DisplayOrder, &c.IsIncome, &c.IsSystem, &createdAt, &updatedAt); err != nil {
		return ledger.Category{}, err
	}

	var err error
	if c.ID, err = decodeUUID(id); err != nil {
		return ledger.Category{}, err
	}
	if c.BudgetID, err = decodeUUID(budgetID); err != nil {
		return ledger.Category{}, err
	}
	if c.ParentID, err = decodeUUIDPtr(parentID); err != nil {
		return ledger.Category{}, err
	}
	c.CreatedAt = decodeTime(createdAt)
	c.UpdatedAt = decodeTime(updatedAt)
	return c, nil
}
