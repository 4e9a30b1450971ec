/*
ordering.go - Display-order reads and writes for the ordering engine

ResolveScopes is deliberately ONE batched query per call: the reorder
path resolves every item up front so a foreign or missing id fails the
batch before any position is written.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
)

func (q *queries) ResolveScopes(ctx context.Context, kind ledger.ScopeKind, budgetID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.ScopeKey, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]ledger.ScopeKey{}, nil
	}

	var table, parentCol string
	switch kind {
	case ledger.ScopeCategories:
		table, parentCol = "categories", "parent_id"
	case ledger.ScopeEnvelopes:
		table, parentCol = "envelopes", "category_id"
	default:
		return nil, &ledger.ValidationError{Field: "kind", Reason: "unknown scope kind " + string(kind)}
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, budgetID.String())
	for _, id := range ids {
		args = append(args, id.String())
	}

	rows, err := q.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT id, %s FROM %s WHERE budget_id = ? AND id IN (%s)",
		parentCol, table, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("resolve scopes: %w", err)
	}
	defer rows.Close()

	scopes := make(map[uuid.UUID]ledger.ScopeKey, len(ids))
	for rows.Next() {
		var idStr string
		var parent sql.NullString
		if err := rows.Scan(&idStr, &parent); err != nil {
			return nil, err
		}
		id, err := decodeUUID(idStr)
		if err != nil {
			return nil, err
		}
		parentID, err := decodeUUIDPtr(parent)
		if err != nil {
			return nil, err
		}
		scopes[id] = ledger.ScopeKey{Kind: kind, BudgetID: budgetID, Parent: parentID}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, ok := scopes[id]; !ok {
			return nil, &ledger.NotFoundError{Kind: string(kind), ID: id}
		}
	}
	return scopes, nil
}

func (q *queries) ListScopeMembers(ctx context.Context, scope ledger.ScopeKey) ([]ledger.OrderedItem, error) {
	var query string
	switch scope.Kind {
	case ledger.ScopeCategories:
		query = "SELECT id, display_order FROM categories WHERE budget_id = ? AND parent_id IS ? ORDER BY display_order ASC, created_at ASC"
	case ledger.ScopeEnvelopes:
		query = "SELECT id, display_order FROM envelopes WHERE budget_id = ? AND category_id IS ? ORDER BY display_order ASC, created_at ASC"
	default:
		return nil, &ledger.ValidationError{Field: "kind", Reason: "unknown scope kind " + string(scope.Kind)}
	}

	rows, err := q.db.QueryContext(ctx, query, scope.BudgetID.String(), encodeUUIDPtr(scope.Parent))
	if err != nil {
		return nil, fmt.Errorf("list scope members: %w", err)
	}
	defer rows.Close()

	var out []ledger.OrderedItem
	for rows.Next() {
		var idStr string
		var item ledger.OrderedItem
		if err := rows.Scan(&idStr, &item.DisplayOrder); err != nil {
			return nil, err
		}
		if item.ID, err = decodeUUID(idStr); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (q *queries) SetDisplayOrder(ctx context.Context, kind ledger.ScopeKind, budgetID, id uuid.UUID, order int) error {
	var table string
	switch kind {
	case ledger.ScopeCategories:
		table = "categories"
	case ledger.ScopeEnvelopes:
		table = "envelopes"
	default:
		return &ledger.ValidationError{Field: "kind", Reason: "unknown scope kind " + string(kind)}
	}

	res, err := q.db.ExecContext(ctx, fmt.Sprintf(
		"UPDATE %s SET display_order = ? WHERE budget_id = ? AND id = ?", table),
		order, budgetID.String(), id.String())
	if err != nil {
		return err
	}
	return requireRowAffected(res, string(kind), id)
}
