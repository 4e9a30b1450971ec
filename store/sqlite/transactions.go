/*
transactions.go - Transaction persistence and soft-delete lifecycle

VISIBILITY:
  Live reads always carry "is_deleted = 0". GetDeletedTransaction is the
  single exception: it matches on is_deleted = 1 AND deleted_by = actor,
  so a row deleted by someone else is indistinguishable from absence.

FILTERING:
  ListTransactions builds its WHERE clause dynamically from the filter;
  the envelope criterion matches either side of a movement.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
)

const transactionColumns = `id, budget_id, type, amount, transaction_date, description,
	from_envelope_id, to_envelope_id, payee_id, income_source_id, category_id,
	is_cleared, is_reconciled, is_deleted, deleted_at, deleted_by, created_at, updated_at`

func (q *queries) GetTransaction(ctx context.Context, id uuid.UUID) (ledger.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ? AND is_deleted = 0",
		id.String())
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Transaction{}, &ledger.NotFoundError{Kind: "transaction", ID: id}
	}
	return tx, err
}

func (q *queries) GetDeletedTransaction(ctx context.Context, id, deletedBy uuid.UUID) (ledger.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ? AND is_deleted = 1 AND deleted_by = ?",
		id.String(), deletedBy.String())
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Transaction{}, &ledger.NotFoundError{Kind: "transaction", ID: id}
	}
	return tx, err
}

func (q *queries) ListTransactions(ctx context.Context, budgetID uuid.UUID, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	where := []string{"budget_id = ?", "is_deleted = 0"}
	args := []any{budgetID.String()}

	if filter.DateFrom != nil {
		where = append(where, "transaction_date >= ?")
		args = append(args, encodeTime(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		where = append(where, "transaction_date <= ?")
		args = append(args, encodeTime(*filter.DateTo))
	}
	if filter.Type != nil {
		where = append(where, "type = ?")
		args = append(args, string(*filter.Type))
	}
	if filter.EnvelopeID != nil {
		where = append(where, "(from_envelope_id = ? OR to_envelope_id = ?)")
		args = append(args, filter.EnvelopeID.String(), filter.EnvelopeID.String())
	}
	if filter.PayeeID != nil {
		where = append(where, "payee_id = ?")
		args = append(args, filter.PayeeID.String())
	}
	if filter.IncomeSourceID != nil {
		where = append(where, "income_source_id = ?")
		args = append(args, filter.IncomeSourceID.String())
	}
	if filter.CategoryID != nil {
		where = append(where, "category_id = ?")
		args = append(args, filter.CategoryID.String())
	}
	if filter.IsCleared != nil {
		where = append(where, "is_cleared = ?")
		args = append(args, *filter.IsCleared)
	}
	if filter.IsReconciled != nil {
		where = append(where, "is_reconciled = ?")
		args = append(args, *filter.IsReconciled)
	}
	if filter.AmountMin != nil {
		where = append(where, "CAST(amount AS REAL) >= ?")
		args = append(args, filter.AmountMin.InexactFloat64())
	}
	if filter.AmountMax != nil {
		where = append(where, "CAST(amount AS REAL) <= ?")
		args = append(args, filter.AmountMax.InexactFloat64())
	}

	query := "SELECT " + transactionColumns + " FROM transactions WHERE " +
		strings.Join(where, " AND ") +
		" ORDER BY transaction_date DESC, created_at DESC"
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1 // SQLite: negative LIMIT means unbounded, OFFSET still applies
		}
		query += fmt.Sprintf(" LIMIT %d", limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (q *queries) InsertTransaction(ctx context.Context, tx ledger.Transaction) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO transactions (id, budget_id, type, amount, transaction_date, description,
			from_envelope_id, to_envelope_id, payee_id, income_source_id, category_id,
			is_cleared, is_reconciled, is_deleted, deleted_at, deleted_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID.String(), tx.BudgetID.String(), string(tx.Type),
		tx.Amount.String(), encodeTime(tx.TransactionDate), tx.Description,
		encodeUUIDPtr(tx.FromEnvelopeID), encodeUUIDPtr(tx.ToEnvelopeID),
		encodeUUIDPtr(tx.PayeeID), encodeUUIDPtr(tx.IncomeSourceID), encodeUUIDPtr(tx.CategoryID),
		tx.IsCleared, tx.IsReconciled, tx.IsDeleted,
		encodeTimePtr(tx.DeletedAt), encodeUUIDPtr(tx.DeletedBy),
		encodeTime(tx.CreatedAt), encodeTime(tx.UpdatedAt),
	)
	return mapInsertErr("transaction", err)
}

func (q *queries) UpdateTransaction(ctx context.Context, tx ledger.Transaction) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE transactions SET type = ?, amount = ?, transaction_date = ?, description = ?,
			from_envelope_id = ?, to_envelope_id = ?, payee_id = ?, income_source_id = ?, category_id = ?,
			is_cleared = ?, is_reconciled = ?, updated_at = ?
		WHERE id = ? AND is_deleted = 0`,
		string(tx.Type), tx.Amount.String(), encodeTime(tx.TransactionDate), tx.Description,
		encodeUUIDPtr(tx.FromEnvelopeID), encodeUUIDPtr(tx.ToEnvelopeID),
		encodeUUIDPtr(tx.PayeeID), encodeUUIDPtr(tx.IncomeSourceID), encodeUUIDPtr(tx.CategoryID),
		tx.IsCleared, tx.IsReconciled, encodeTime(tx.UpdatedAt),
		tx.ID.String(),
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "transaction", tx.ID)
}

func (q *queries) MarkTransactionDeleted(ctx context.Context, id, actor uuid.UUID, at time.Time) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE transactions SET is_deleted = 1, deleted_at = ?, deleted_by = ?, updated_at = ?
		WHERE id = ? AND is_deleted = 0`,
		encodeTime(at), actor.String(), encodeTime(at), id.String(),
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "transaction", id)
}

func (q *queries) MarkTransactionRestored(ctx context.Context, id uuid.UUID) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE transactions SET is_deleted = 0, deleted_at = NULL, deleted_by = NULL
		WHERE id = ? AND is_deleted = 1`,
		id.String(),
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "transaction", id)
}

func scanTransaction(s scanner) (ledger.Transaction, error) {
	var (
		tx                                             ledger.Transaction
		id, budgetID, typ, amount, date                string
		fromEnv, toEnv, payee, incomeSrc, category     sql.NullString
		deletedAt, deletedBy                           sql.NullString
		createdAt, updatedAt                           string
	)
	if err := s.Scan(&id, &budgetID, &typ, &amount, &date, &tx.Description,
		&fromEnv, &toEnv, &payee, &incomeSrc, &category,
		&tx.IsCleared, &tx.IsReconciled, &tx.IsDeleted,
		&deletedAt, &deletedBy, &createdAt, &updatedAt); err != nil {
		return ledger.Transaction{}, err
	}

	var err error
	if tx.ID, err = decodeUUID(id); err != nil {
		return ledger.Transaction{}, err
	}
	if tx.BudgetID, err = decodeUUID(budgetID); err != nil {
		return ledger.Transaction{}, err
	}
	tx.Type = ledger.TransactionType(typ)
	if tx.Amount, err = decodeDecimal(amount); err != nil {
		return ledger.Transaction{}, err
	}
	tx.TransactionDate = decodeTime(date)
	if tx.FromEnvelopeID, err = decodeUUIDPtr(fromEnv); err != nil {
		return ledger.Transaction{}, err
	}
	if tx.ToEnvelopeID, err = decodeUUIDPtr(toEnv); err != nil {
		return ledger.Transaction{}, err
	}
	if tx.PayeeID, err = decodeUUIDPtr(payee); err != nil {
		return ledger.Transaction{}, err
	}
	if tx.IncomeSourceID, err = decodeUUIDPtr(incomeSrc); err != nil {
		return ledger.Transaction{}, err
	}
	if tx.CategoryID, err = decodeUUIDPtr(category); err != nil {
		return ledger.Transaction{}, err
	}
	tx.DeletedAt = decodeTimePtr(deletedAt)
	if tx.DeletedBy, err = decodeUUIDPtr(deletedBy); err != nil {
		return ledger.Transaction{}, err
	}
	tx.CreatedAt = decodeTime(createdAt)
	tx.UpdatedAt = decodeTime(updatedAt)
	return tx, nil
}
