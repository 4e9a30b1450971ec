/*
Package ordering keeps display orders contiguous after reorders and deletions.

PURPOSE:
  The user drags categories and envelopes into a chosen sequence; the
  client submits (id, newOrder) pairs that may be partial, stale, or
  inconsistent. This engine treats those writes as best-effort
  relocations and restores the real invariant afterwards: within every
  scope the display orders form a contiguous 0..n-1 run with no gaps or
  duplicates.

ALGORITHM (Reorder):
  1. One ownership check for the whole batch, never per item.
  2. Resolve every item's scope key in a single batched lookup. A
     missing or foreign id fails the batch here, before any write.
  3. Issue all position writes concurrently with a bounded errgroup.
     A failed write marks the batch failed but is NOT rolled back;
     step 4 repairs whatever state the writes left behind.
  4. Renumber every member of each touched scope to 0..n-1 in current
     relative order. The pass is idempotent and safe to rerun; passes
     for the same scope are serialized on a per-scope mutex while
     distinct scopes may renumber in parallel.

SEE ALSO:
  - ledger/store.go: ResolveScopes, ListScopeMembers, SetDisplayOrder
*/
package ordering

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
)

// writeConcurrency bounds the parallel position writes of one batch.
const writeConcurrency = 8

// Engine recomputes contiguous display-order sequences.
type Engine struct {
	store ledger.Store
	locks scopeLocks
	log   zerolog.Logger
}

func NewEngine(store ledger.Store, log zerolog.Logger) *Engine {
	return &Engine{store: store, log: log}
}

// Reorder applies the requested relocations for one record kind and
// restores gap-free ordering in every touched scope. The actor must own
// the budget; items outside the budget fail the whole batch.
func (e *Engine) Reorder(ctx context.Context, actor uuid.UUID, kind ledger.ScopeKind, budgetID uuid.UUID, items []ledger.ReorderItem) error {
	if len(items) == 0 {
		return nil
	}

	budget, err := e.store.GetBudget(ctx, budgetID)
	if err != nil {
		return err
	}
	if budget.OwnerID != actor {
		return &ledger.NotFoundError{Kind: "budget", ID: budgetID}
	}

	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	scopes, err := e.store.ResolveScopes(ctx, kind, budgetID, ids)
	if err != nil {
		return err
	}

	writeErr := e.writePositions(ctx, kind, budgetID, items)

	// Renumber regardless of write failures: the cleanup pass is what
	// actually restores the invariant over whatever subset landed.
	renumberErr := e.renumberScopes(ctx, distinctScopes(scopes))

	if writeErr != nil {
		e.log.Warn().Str("kind", string(kind)).Err(writeErr).
			Msg("reorder batch had failed writes, scopes renumbered")
		return writeErr
	}
	return renumberErr
}

// writePositions issues all (id, newOrder) writes concurrently. The
// group is not cancelled on first failure so every independent write
// gets its chance to land.
func (e *Engine) writePositions(ctx context.Context, kind ledger.ScopeKind, budgetID uuid.UUID, items []ledger.ReorderItem) error {
	g := &errgroup.Group{}
	g.SetLimit(writeConcurrency)

	for _, item := range items {
		item := item
		g.Go(func() error {
			return e.store.SetDisplayOrder(ctx, kind, budgetID, item.ID, item.NewOrder)
		})
	}
	return g.Wait()
}

func (e *Engine) renumberScopes(ctx context.Context, scopes []ledger.ScopeKey) error {
	g := &errgroup.Group{}
	for _, scope := range scopes {
		scope := scope
		g.Go(func() error {
			return e.RenumberScope(ctx, scope)
		})
	}
	return g.Wait()
}

// RenumberScope reassigns 0..n-1 over all members of the scope in their
// current relative order, eliminating gaps and duplicates. Idempotent:
// an already-contiguous scope is left untouched. Concurrent passes for
// the same scope are serialized.
func (e *Engine) RenumberScope(ctx context.Context, scope ledger.ScopeKey) error {
	unlock := e.locks.lock(scope)
	defer unlock()

	members, err := e.store.ListScopeMembers(ctx, scope)
	if err != nil {
		return err
	}

	for i, m := range members {
		if m.DisplayOrder == i {
			continue
		}
		if err := e.store.SetDisplayOrder(ctx, scope.Kind, scope.BudgetID, m.ID, i); err != nil {
			return err
		}
	}
	return nil
}

func distinctScopes(scopes map[uuid.UUID]ledger.ScopeKey) []ledger.ScopeKey {
	seen := make(map[string]struct{}, len(scopes))
	var out []ledger.ScopeKey
	for _, s := range scopes {
		k := scopeLockKey(s)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

// =============================================================================
// PER-SCOPE SERIALIZATION
// =============================================================================

type scopeLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *scopeLocks) lock(scope ledger.ScopeKey) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	key := scopeLockKey(scope)
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func scopeLockKey(s ledger.ScopeKey) string {
	key := string(s.Kind) + "/" + s.BudgetID.String()
	if s.Parent != nil {
		key += "/" + s.Parent.String()
	}
	return key
}
