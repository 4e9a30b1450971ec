// reorder.go - Bulk display-order changes, delegated to the ordering
// engine. The engine verifies ownership, writes positions concurrently,
// and renumbers every touched scope; the service layer adds cache
// invalidation and event emission on top.
package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/thelarryrutledge/nvlp-app-sub004/events"
	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
)

func (s *Service) ReorderCategories(ctx context.Context, actor, budgetID uuid.UUID, items []ledger.ReorderItem) error {
	return s.reorder(ctx, actor, ledger.ScopeCategories, budgetID, items)
}

func (s *Service) ReorderEnvelopes(ctx context.Context, actor, budgetID uuid.UUID, items []ledger.ReorderItem) error {
	return s.reorder(ctx, actor, ledger.ScopeEnvelopes, budgetID, items)
}

func (s *Service) reorder(ctx context.Context, actor uuid.UUID, kind ledger.ScopeKind, budgetID uuid.UUID, items []ledger.ReorderItem) error {
	err := s.res.Execute(ctx, "reorder "+string(kind), func(ctx context.Context) error {
		return s.ordering.Reorder(ctx, actor, kind, budgetID, items)
	})
	if err != nil {
		return err
	}

	event := events.CategoryReordered
	if kind == ledger.ScopeEnvelopes {
		event = events.EnvelopeReordered
		s.invalidate(nsEnvelopes)
	} else {
		s.invalidate(nsCategories)
	}

	s.publish(ctx, event, map[string]any{
		"budget_id": budgetID,
		"count":     len(items),
	})
	return nil
}
