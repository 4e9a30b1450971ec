// envelopes.go - Envelope persistence.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
)

const envelopeColumns = "id, budget_id, category_id, name, type, current_balance, target_amount, display_order, notify_on_low, low_threshold, is_active, created_at, updated_at"

func (q *queries) GetEnvelope(ctx context.Context, budgetID, id uuid.UUID) (ledger.Envelope, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+envelopeColumns+" FROM envelopes WHERE budget_id = ? AND id = ?",
		budgetID.String(), id.String())
	e, err := scanEnvelope(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Envelope{}, &ledger.NotFoundError{Kind: "envelope", ID: id}
	}
	return e, err
}

func (q *queries) ListEnvelopes(ctx context.Context, budgetID uuid.UUID) ([]ledger.Envelope, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+envelopeColumns+" FROM envelopes WHERE budget_id = ? ORDER BY display_order ASC, created_at ASC",
		budgetID.String())
	if err != nil {
		return nil, fmt.Errorf("list envelopes: %w", err)
	}
	defer rows.Close()

	var out []ledger.Envelope
	for rows.Next() {
		e, err := scanEnvelope(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *queries) CreateEnvelope(ctx context.Context, e ledger.Envelope) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO envelopes (id, budget_id, category_id, name, type, current_balance, target_amount,
			display_order, notify_on_low, low_threshold, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.BudgetID.String(), encodeUUIDPtr(e.CategoryID),
		e.Name, string(e.Type), e.CurrentBalance.String(), encodeDecimalPtr(e.TargetAmount),
		e.DisplayOrder, e.NotifyOnLow, encodeDecimalPtr(e.LowThreshold), e.IsActive,
		encodeTime(e.CreatedAt), encodeTime(e.UpdatedAt),
	)
	return mapInsertErr("envelope", err)
}

func (q *queries) UpdateEnvelope(ctx context.Context, e ledger.Envelope) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE envelopes SET category_id = ?, name = ?, type = ?, current_balance = ?, target_amount = ?,
			display_order = ?, notify_on_low = ?, low_threshold = ?, is_active = ?, updated_at = ?
		WHERE budget_id = ? AND id = ?`,
		encodeUUIDPtr(e.CategoryID), e.Name, string(e.Type),
		e.CurrentBalance.String(), encodeDecimalPtr(e.TargetAmount),
		e.DisplayOrder, e.NotifyOnLow, encodeDecimalPtr(e.LowThreshold), e.IsActive,
		encodeTime(e.UpdatedAt), e.BudgetID.String(), e.ID.String(),
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "envelope", e.ID)
}

func (q *queries) DeleteEnvelope(ctx context.Context, budgetID, id uuid.UUID) error {
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM envelopes WHERE budget_id = ? AND id = ?",
		budgetID.String(), id.String())
	if err != nil {
		return err
	}
	return requireRowAffected(res, "envelope", id)
}

func scanEnvelope(s scanner) (ledger.Envelope, error) {
	var (
		e                              ledger.Envelope
		id, budgetID, typ, balance     string
		categoryID, target, threshold  sql.NullString
		createdAt, updatedAt           string
	)
	if err := s.Scan(&id, &budgetID, &categoryID, &e.Name, &typ, &balance, &target,
		&e.DisplayOrder, &e.NotifyOnLow, &threshold, &e.IsActive, &createdAt, &updatedAt); err != nil {
		return ledger.Envelope{}, err
	}

	var err error
	if e.ID, err = decodeUUID(id); err != nil {
		return ledger.Envelope{}, err
	}
	if e.BudgetID, err = decodeUUID(budgetID); err != nil {
		return ledger.Envelope{}, err
	}
	if e.CategoryID, err = decodeUUIDPtr(categoryID); err != nil {
		return ledger.Envelope{}, err
	}
	e.Type = ledger.EnvelopeType(typ)
	if e.CurrentBalance, err = decodeDecimal(balance); err != nil {
		return ledger.Envelope{}, err
	}
	if e.TargetAmount, err = decodeDecimalPtr(target); err != nil {
		return ledger.Envelope{}, err
	}
	if e.LowThreshold, err = decodeDecimalPtr(threshold); err != nil {
		return ledger.Envelope{}, err
	}
	e.CreatedAt = decodeTime(createdAt)
	e.UpdatedAt = decodeTime(updatedAt)
	return e, nil
}
