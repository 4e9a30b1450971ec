// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu            sync.RWMutex
	budgets       map[uuid.UUID]ledger.Budget
	categories    map[uuid.UUID]ledger.Category
	envelopes     map[uuid.UUID]ledger.Envelope
	payees        map[uuid.UUID]ledger.Payee
	incomeSources map[uuid.UUID]ledger.IncomeSource
	transactions  map[uuid.UUID]ledger.Transaction

	// Creation sequence per record, for stable ordering where display
	// orders or dates tie.
	seq     map[uuid.UUID]int64
	nextSeq int64
}

func NewMemory() *Memory {
	return &Memory{
		budgets:       make(map[uuid.UUID]ledger.Budget),
		categories:    make(map[uuid.UUID]ledger.Category),
		envelopes:     make(map[uuid.UUID]ledger.Envelope),
		payees:        make(map[uuid.UUID]ledger.Payee),
		incomeSources: make(map[uuid.UUID]ledger.IncomeSource),
		transactions:  make(map[uuid.UUID]ledger.Transaction),
		seq:           make(map[uuid.UUID]int64),
	}
}

func (m *Memory) stamp(id uuid.UUID) {
	m.nextSeq++
	m.seq[id] = m.nextSeq
}

// =============================================================================
// READER
// =============================================================================

func (m *Memory) GetBudget(_ context.Context, id uuid.UUID) (ledger.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBudget(id)
}

func (m *Memory) getBudget(id uuid.UUID) (ledger.Budget, error) {
	b, ok := m.budgets[id]
	if !ok {
		return ledger.Budget{}, &ledger.NotFoundError{Kind: "budget", ID: id}
	}
	return b, nil
}

func (m *Memory) ListBudgets(_ context.Context, ownerID uuid.UUID) ([]ledger.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listBudgets(ownerID)
}

func (m *Memory) listBudgets(ownerID uuid.UUID) ([]ledger.Budget, error) {
	var out []ledger.Budget
	for _, b := range m.budgets {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.seq[out[i].ID] < m.seq[out[j].ID] })
	return out, nil
}

func (m *Memory) GetCategory(_ context.Context, budgetID, id uuid.UUID) (ledger.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCategory(budgetID, id)
}

func (m *Memory) getCategory(budgetID, id uuid.UUID) (ledger.Category, error) {
	c, ok := m.categories[id]
	if !ok || c.BudgetID != budgetID {
		return ledger.Category{}, &ledger.NotFoundError{Kind: "category", ID: id}
	}
	return c, nil
}

func (m *Memory) ListCategories(_ context.Context, budgetID uuid.UUID) ([]ledger.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCategories(budgetID)
}

func (m *Memory) listCategories(budgetID uuid.UUID) ([]ledger.Category, error) {
	var out []ledger.Category
	for _, c := range m.categories {
		if c.BudgetID == budgetID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return m.seq[out[i].ID] < m.seq[out[j].ID]
	})
	return out, nil
}

func (m *Memory) GetEnvelope(_ context.Context, budgetID, id uuid.UUID) (ledger.Envelope, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEnvelope(budgetID, id)
}

func (m *Memory) getEnvelope(budgetID, id uuid.UUID) (ledger.Envelope, error) {
	e, ok := m.envelopes[id]
	if !ok || e.BudgetID != budgetID {
		return ledger.Envelope{}, &ledger.NotFoundError{Kind: "envelope", ID: id}
	}
	return e, nil
}

func (m *Memory) ListEnvelopes(_ context.Context, budgetID uuid.UUID) ([]ledger.Envelope, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listEnvelopes(budgetID)
}

func (m *Memory) listEnvelopes(budgetID uuid.UUID) ([]ledger.Envelope, error) {
	var out []ledger.Envelope
	for _, e := range m.envelopes {
		if e.BudgetID == budgetID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return m.seq[out[i].ID] < m.seq[out[j].ID]
	})
	return out, nil
}

func (m *Memory) GetPayee(_ context.Context, budgetID, id uuid.UUID) (ledger.Payee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPayee(budgetID, id)
}

func (m *Memory) getPayee(budgetID, id uuid.UUID) (ledger.Payee, error) {
	p, ok := m.payees[id]
	if !ok || p.BudgetID != budgetID {
		return ledger.Payee{}, &ledger.NotFoundError{Kind: "payee", ID: id}
	}
	return p, nil
}

func (m *Memory) ListPayees(_ context.Context, budgetID uuid.UUID) ([]ledger.Payee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPayees(budgetID)
}

func (m *Memory) listPayees(budgetID uuid.UUID) ([]ledger.Payee, error) {
	var out []ledger.Payee
	for _, p := range m.payees {
		if p.BudgetID == budgetID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.seq[out[i].ID] < m.seq[out[j].ID] })
	return out, nil
}

func (m *Memory) GetIncomeSource(_ context.Context, budgetID, id uuid.UUID) (ledger.IncomeSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getIncomeSource(budgetID, id)
}

func (m *Memory) getIncomeSource(budgetID, id uuid.UUID) (ledger.IncomeSource, error) {
	s, ok := m.incomeSources[id]
	if !ok || s.BudgetID != budgetID {
		return ledger.IncomeSource{}, &ledger.NotFoundError{Kind: "income_source", ID: id}
	}
	return s, nil
}

func (m *Memory) ListIncomeSources(_ context.Context, budgetID uuid.UUID) ([]ledger.IncomeSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listIncomeSources(budgetID)
}

func (m *Memory) listIncomeSources(budgetID uuid.UUID) ([]ledger.IncomeSource, error) {
	var out []ledger.IncomeSource
	for _, s := range m.incomeSources {
		if s.BudgetID == budgetID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.seq[out[i].ID] < m.seq[out[j].ID] })
	return out, nil
}

func (m *Memory) GetTransaction(_ context.Context, id uuid.UUID) (ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getTransaction(id)
}

func (m *Memory) getTransaction(id uuid.UUID) (ledger.Transaction, error) {
	tx, ok := m.transactions[id]
	if !ok || tx.IsDeleted {
		return ledger.Transaction{}, &ledger.NotFoundError{Kind: "transaction", ID: id}
	}
	return tx, nil
}

func (m *Memory) GetDeletedTransaction(_ context.Context, id, deletedBy uuid.UUID) (ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getDeletedTransaction(id, deletedBy)
}

func (m *Memory) getDeletedTransaction(id, deletedBy uuid.UUID) (ledger.Transaction, error) {
	tx, ok := m.transactions[id]
	if !ok || !tx.IsDeleted || tx.DeletedBy == nil || *tx.DeletedBy != deletedBy {
		return ledger.Transaction{}, &ledger.NotFoundError{Kind: "transaction", ID: id}
	}
	return tx, nil
}

func (m *Memory) ListTransactions(_ context.Context, budgetID uuid.UUID, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listTransactions(budgetID, filter)
}

func (m *Memory) listTransactions(budgetID uuid.UUID, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for _, tx := range m.transactions {
		if tx.BudgetID == budgetID && matchesFilter(tx, filter) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TransactionDate.Equal(out[j].TransactionDate) {
			return out[i].TransactionDate.After(out[j].TransactionDate)
		}
		return m.seq[out[i].ID] > m.seq[out[j].ID]
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesFilter(tx ledger.Transaction, f ledger.TransactionFilter) bool {
	if tx.IsDeleted {
		return false
	}
	if f.DateFrom != nil && tx.TransactionDate.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && tx.TransactionDate.After(*f.DateTo) {
		return false
	}
	if f.Type != nil && tx.Type != *f.Type {
		return false
	}
	if f.EnvelopeID != nil {
		from := tx.FromEnvelopeID != nil && *tx.FromEnvelopeID == *f.EnvelopeID
		to := tx.ToEnvelopeID != nil && *tx.ToEnvelopeID == *f.EnvelopeID
		if !from && !to {
			return false
		}
	}
	if f.PayeeID != nil && (tx.PayeeID == nil || *tx.PayeeID != *f.PayeeID) {
		return false
	}
	if f.IncomeSourceID != nil && (tx.IncomeSourceID == nil || *tx.IncomeSourceID != *f.IncomeSourceID) {
		return false
	}
	if f.CategoryID != nil && (tx.CategoryID == nil || *tx.CategoryID != *f.CategoryID) {
		return false
	}
	if f.IsCleared != nil && tx.IsCleared != *f.IsCleared {
		return false
	}
	if f.IsReconciled != nil && tx.IsReconciled != *f.IsReconciled {
		return false
	}
	if f.AmountMin != nil && tx.Amount.LessThan(*f.AmountMin) {
		return false
	}
	if f.AmountMax != nil && tx.Amount.GreaterThan(*f.AmountMax) {
		return false
	}
	return true
}

func (m *Memory) ResolveScopes(_ context.Context, kind ledger.ScopeKind, budgetID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.ScopeKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolveScopes(kind, budgetID, ids)
}

func (m *Memory) resolveScopes(kind ledger.ScopeKind, budgetID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.ScopeKey, error) {
	scopes := make(map[uuid.UUID]ledger.ScopeKey, len(ids))
	for _, id := range ids {
		switch kind {
		case ledger.ScopeCategories:
			c, err := m.getCategory(budgetID, id)
			if err != nil {
				return nil, err
			}
			scopes[id] = ledger.ScopeKey{Kind: kind, BudgetID: budgetID, Parent: c.ParentID}
		case ledger.ScopeEnvelopes:
			e, err := m.getEnvelope(budgetID, id)
			if err != nil {
				return nil, err
			}
			scopes[id] = ledger.ScopeKey{Kind: kind, BudgetID: budgetID, Parent: e.CategoryID}
		default:
			return nil, &ledger.ValidationError{Field: "kind", Reason: "unknown scope kind " + string(kind)}
		}
	}
	return scopes, nil
}

func (m *Memory) ListScopeMembers(_ context.Context, scope ledger.ScopeKey) ([]ledger.OrderedItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listScopeMembers(scope)
}

func (m *Memory) listScopeMembers(scope ledger.ScopeKey) ([]ledger.OrderedItem, error) {
	type member struct {
		item ledger.OrderedItem
		seq  int64
	}
	var members []member

	switch scope.Kind {
	case ledger.ScopeCategories:
		for _, c := range m.categories {
			if c.BudgetID == scope.BudgetID && sameParent(c.ParentID, scope.Parent) {
				members = append(members, member{ledger.OrderedItem{ID: c.ID, DisplayOrder: c.DisplayOrder}, m.seq[c.ID]})
			}
		}
	case ledger.ScopeEnvelopes:
		for _, e := range m.envelopes {
			if e.BudgetID == scope.BudgetID && sameParent(e.CategoryID, scope.Parent) {
				members = append(members, member{ledger.OrderedItem{ID: e.ID, DisplayOrder: e.DisplayOrder}, m.seq[e.ID]})
			}
		}
	default:
		return nil, &ledger.ValidationError{Field: "kind", Reason: "unknown scope kind " + string(scope.Kind)}
	}

	sort.Slice(members, func(i, j int) bool {
		if members[i].item.DisplayOrder != members[j].item.DisplayOrder {
			return members[i].item.DisplayOrder < members[j].item.DisplayOrder
		}
		return members[i].seq < members[j].seq
	})

	out := make([]ledger.OrderedItem, len(members))
	for i, mem := range members {
		out[i] = mem.item
	}
	return out, nil
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// =============================================================================
// WRITER
// =============================================================================

func (m *Memory) CreateBudget(_ context.Context, b ledger.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createBudget(b)
}

func (m *Memory) createBudget(b ledger.Budget) error {
	if _, ok := m.budgets[b.ID]; ok {
		return ledger.ErrAlreadyExists
	}
	m.budgets[b.ID] = b
	m.stamp(b.ID)
	return nil
}

func (m *Memory) UpdateBudget(_ context.Context, b ledger.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateBudget(b)
}

func (m *Memory) updateBudget(b ledger.Budget) error {
	if _, ok := m.budgets[b.ID]; !ok {
		return &ledger.NotFoundError{Kind: "budget", ID: b.ID}
	}
	m.budgets[b.ID] = b
	return nil
}

func (m *Memory) DeleteBudget(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteBudget(id)
}

// deleteBudget cascades to every record scoped by the budget, mirroring
// the SQLite schema's ON DELETE CASCADE.
func (m *Memory) deleteBudget(id uuid.UUID) error {
	if _, ok := m.budgets[id]; !ok {
		return &ledger.NotFoundError{Kind: "budget", ID: id}
	}
	delete(m.budgets, id)
	for cid, c := range m.categories {
		if c.BudgetID == id {
			delete(m.categories, cid)
		}
	}
	for eid, e := range m.envelopes {
		if e.BudgetID == id {
			delete(m.envelopes, eid)
		}
	}
	for pid, p := range m.payees {
		if p.BudgetID == id {
			delete(m.payees, pid)
		}
	}
	for sid, s := range m.incomeSources {
		if s.BudgetID == id {
			delete(m.incomeSources, sid)
		}
	}
	for tid, tx := range m.transactions {
		if tx.BudgetID == id {
			delete(m.transactions, tid)
		}
	}
	return nil
}

func (m *Memory) CreateCategory(_ context.Context, c ledger.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCategory(c)
}

func (m *Memory) createCategory(c ledger.Category) error {
	if _, ok := m.categories[c.ID]; ok {
		return ledger.ErrAlreadyExists
	}
	m.categories[c.ID] = c
	m.stamp(c.ID)
	return nil
}

func (m *Memory) UpdateCategory(_ context.Context, c ledger.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateCategory(c)
}

func (m *Memory) updateCategory(c ledger.Category) error {
	if _, ok := m.categories[c.ID]; !ok {
		return &ledger.NotFoundError{Kind: "category", ID: c.ID}
	}
	m.categories[c.ID] = c
	return nil
}

func (m *Memory) DeleteCategory(_ context.Context, budgetID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteCategory(budgetID, id)
}

// deleteCategory detaches children and envelopes, mirroring the schema's
// ON DELETE SET NULL.
func (m *Memory) deleteCategory(budgetID, id uuid.UUID) error {
	if _, err := m.getCategory(budgetID, id); err != nil {
		return err
	}
	delete(m.categories, id)
	for cid, c := range m.categories {
		if c.ParentID != nil && *c.ParentID == id {
			c.ParentID = nil
			m.categories[cid] = c
		}
	}
	for eid, e := range m.envelopes {
		if e.CategoryID != nil && *e.CategoryID == id {
			e.CategoryID = nil
			m.envelopes[eid] = e
		}
	}
	for tid, tx := range m.transactions {
		if tx.CategoryID != nil && *tx.CategoryID == id {
			tx.CategoryID = nil
			m.transactions[tid] = tx
		}
	}
	return nil
}

func (m *Memory) CreateEnvelope(_ context.Context, e ledger.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createEnvelope(e)
}

func (m *Memory) createEnvelope(e ledger.Envelope) error {
	if _, ok := m.envelopes[e.ID]; ok {
		return ledger.ErrAlreadyExists
	}
	m.envelopes[e.ID] = e
	m.stamp(e.ID)
	return nil
}

func (m *Memory) UpdateEnvelope(_ context.Context, e ledger.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateEnvelope(e)
}

func (m *Memory) updateEnvelope(e ledger.Envelope) error {
	if _, ok := m.envelopes[e.ID]; !ok {
		return &ledger.NotFoundError{Kind: "envelope", ID: e.ID}
	}
	m.envelopes[e.ID] = e
	return nil
}

func (m *Memory) DeleteEnvelope(_ context.Context, budgetID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteEnvelope(budgetID, id)
}

func (m *Memory) deleteEnvelope(budgetID, id uuid.UUID) error {
	if _, err := m.getEnvelope(budgetID, id); err != nil {
		return err
	}
	delete(m.envelopes, id)
	for tid, tx := range m.transactions {
		changed := false
		if tx.FromEnvelopeID != nil && *tx.FromEnvelopeID == id {
			tx.FromEnvelopeID = nil
			changed = true
		}
		if tx.ToEnvelopeID != nil && *tx.ToEnvelopeID == id {
			tx.ToEnvelopeID = nil
			changed = true
		}
		if changed {
			m.transactions[tid] = tx
		}
	}
	return nil
}

func (m *Memory) CreatePayee(_ context.Context, p ledger.Payee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createPayee(p)
}

func (m *Memory) createPayee(p ledger.Payee) error {
	if _, ok := m.payees[p.ID]; ok {
		return ledger.ErrAlreadyExists
	}
	m.payees[p.ID] = p
	m.stamp(p.ID)
	return nil
}

func (m *Memory) UpdatePayee(_ context.Context, p ledger.Payee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePayee(p)
}

func (m *Memory) updatePayee(p ledger.Payee) error {
	if _, ok := m.payees[p.ID]; !ok {
		return &ledger.NotFoundError{Kind: "payee", ID: p.ID}
	}
	m.payees[p.ID] = p
	return nil
}

func (m *Memory) DeletePayee(_ context.Context, budgetID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletePayee(budgetID, id)
}

func (m *Memory) deletePayee(budgetID, id uuid.UUID) error {
	if _, err := m.getPayee(budgetID, id); err != nil {
		return err
	}
	delete(m.payees, id)
	for tid, tx := range m.transactions {
		if tx.PayeeID != nil && *tx.PayeeID == id {
			tx.PayeeID = nil
			m.transactions[tid] = tx
		}
	}
	return nil
}

func (m *Memory) CreateIncomeSource(_ context.Context, s ledger.IncomeSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createIncomeSource(s)
}

func (m *Memory) createIncomeSource(s ledger.IncomeSource) error {
	if _, ok := m.incomeSources[s.ID]; ok {
		return ledger.ErrAlreadyExists
	}
	m.incomeSources[s.ID] = s
	m.stamp(s.ID)
	return nil
}

func (m *Memory) UpdateIncomeSource(_ context.Context, s ledger.IncomeSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateIncomeSource(s)
}

func (m *Memory) updateIncomeSource(s ledger.IncomeSource) error {
	if _, ok := m.incomeSources[s.ID]; !ok {
		return &ledger.NotFoundError{Kind: "income_source", ID: s.ID}
	}
	m.incomeSources[s.ID] = s
	return nil
}

func (m *Memory) DeleteIncomeSource(_ context.Context, budgetID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteIncomeSource(budgetID, id)
}

func (m *Memory) deleteIncomeSource(budgetID, id uuid.UUID) error {
	if _, err := m.getIncomeSource(budgetID, id); err != nil {
		return err
	}
	delete(m.incomeSources, id)
	for tid, tx := range m.transactions {
		if tx.IncomeSourceID != nil && *tx.IncomeSourceID == id {
			tx.IncomeSourceID = nil
			m.transactions[tid] = tx
		}
	}
	return nil
}

func (m *Memory) InsertTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertTransaction(tx)
}

func (m *Memory) insertTransaction(tx ledger.Transaction) error {
	if _, ok := m.transactions[tx.ID]; ok {
		return ledger.ErrAlreadyExists
	}
	m.transactions[tx.ID] = tx
	m.stamp(tx.ID)
	return nil
}

func (m *Memory) UpdateTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateTransaction(tx)
}

func (m *Memory) updateTransaction(tx ledger.Transaction) error {
	existing, ok := m.transactions[tx.ID]
	if !ok || existing.IsDeleted {
		return &ledger.NotFoundError{Kind: "transaction", ID: tx.ID}
	}
	m.transactions[tx.ID] = tx
	return nil
}

func (m *Memory) MarkTransactionDeleted(_ context.Context, id, actor uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markTransactionDeleted(id, actor, at)
}

func (m *Memory) markTransactionDeleted(id, actor uuid.UUID, at time.Time) error {
	tx, ok := m.transactions[id]
	if !ok || tx.IsDeleted {
		return &ledger.NotFoundError{Kind: "transaction", ID: id}
	}
	tx.IsDeleted = true
	tx.DeletedAt = &at
	tx.DeletedBy = &actor
	m.transactions[id] = tx
	return nil
}

func (m *Memory) MarkTransactionRestored(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markTransactionRestored(id)
}

func (m *Memory) markTransactionRestored(id uuid.UUID) error {
	tx, ok := m.transactions[id]
	if !ok || !tx.IsDeleted {
		return &ledger.NotFoundError{Kind: "transaction", ID: id}
	}
	tx.IsDeleted = false
	tx.DeletedAt = nil
	tx.DeletedBy = nil
	m.transactions[id] = tx
	return nil
}

func (m *Memory) ApplyEffects(_ context.Context, effects []ledger.BalanceEffect) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyEffects(effects)
}

func (m *Memory) applyEffects(effects []ledger.BalanceEffect) error {
	for _, e := range effects {
		switch e.Target {
		case ledger.TargetBudgetAvailable:
			b, ok := m.budgets[e.ID]
			if !ok {
				return &ledger.NotFoundError{Kind: "budget", ID: e.ID}
			}
			b.AvailableAmount = b.AvailableAmount.Add(e.Delta)
			m.budgets[e.ID] = b

		case ledger.TargetEnvelopeBalance:
			env, ok := m.envelopes[e.ID]
			if !ok {
				return &ledger.NotFoundError{Kind: "envelope", ID: e.ID}
			}
			env.CurrentBalance = env.CurrentBalance.Add(e.Delta)
			m.envelopes[e.ID] = env

		case ledger.TargetPayeeTotals:
			p, ok := m.payees[e.ID]
			if !ok {
				return &ledger.NotFoundError{Kind: "payee", ID: e.ID}
			}
			p.TotalPaid = p.TotalPaid.Add(e.Delta)
			if e.PaymentDate != nil {
				// A back-dated payment must not displace a newer one: the
				// pair tracks the newest surviving payment by date.
				if p.LastPaymentDate == nil || !e.PaymentDate.Before(*p.LastPaymentDate) {
					p.LastPaymentDate = e.PaymentDate
					p.LastPaymentAmount = e.PaymentAmount
				}
			} else {
				p.LastPaymentDate, p.LastPaymentAmount = m.lastPaymentFor(e.ID)
			}
			m.payees[e.ID] = p

		default:
			return &ledger.ValidationError{Field: "target", Reason: "unknown effect target " + string(e.Target)}
		}
	}
	return nil
}

// lastPaymentFor recomputes the last payment pair from surviving rows
// after a payment is reversed.
func (m *Memory) lastPaymentFor(payeeID uuid.UUID) (*time.Time, *decimal.Decimal) {
	var (
		bestDate   time.Time
		bestAmount decimal.Decimal
		bestSeq    int64
		found      bool
	)
	for _, tx := range m.transactions {
		if tx.IsDeleted || tx.PayeeID == nil || *tx.PayeeID != payeeID {
			continue
		}
		if tx.Type != ledger.TxExpense && tx.Type != ledger.TxDebtPayment {
			continue
		}
		if !found || tx.TransactionDate.After(bestDate) ||
			(tx.TransactionDate.Equal(bestDate) && m.seq[tx.ID] > bestSeq) {
			bestDate = tx.TransactionDate
			bestAmount = tx.Amount
			bestSeq = m.seq[tx.ID]
			found = true
		}
	}
	if !found {
		return nil, nil
	}
	return &bestDate, &bestAmount
}

func (m *Memory) SetDisplayOrder(_ context.Context, kind ledger.ScopeKind, budgetID, id uuid.UUID, order int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setDisplayOrder(kind, budgetID, id, order)
}

func (m *Memory) setDisplayOrder(kind ledger.ScopeKind, budgetID, id uuid.UUID, order int) error {
	switch kind {
	case ledger.ScopeCategories:
		c, err := m.getCategory(budgetID, id)
		if err != nil {
			return err
		}
		c.DisplayOrder = order
		m.categories[id] = c
	case ledger.ScopeEnvelopes:
		e, err := m.getEnvelope(budgetID, id)
		if err != nil {
			return err
		}
		e.DisplayOrder = order
		m.envelopes[id] = e
	default:
		return &ledger.ValidationError{Field: "kind", Reason: "unknown scope kind " + string(kind)}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
// Transactions are simulated with a snapshot + rollback on error.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against a view of the store. The parent lock is held
// for the whole call; on error every map is restored from the snapshot.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snap := tm.snapshot()
	if err := fn(&txView{m: tm.Memory}); err != nil {
		tm.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	budgets       map[uuid.UUID]ledger.Budget
	categories    map[uuid.UUID]ledger.Category
	envelopes     map[uuid.UUID]ledger.Envelope
	payees        map[uuid.UUID]ledger.Payee
	incomeSources map[uuid.UUID]ledger.IncomeSource
	transactions  map[uuid.UUID]ledger.Transaction
	seq           map[uuid.UUID]int64
	nextSeq       int64
}

func (tm *TxMemory) snapshot() memorySnapshot {
	return memorySnapshot{
		budgets:       copyMap(tm.budgets),
		categories:    copyMap(tm.categories),
		envelopes:     copyMap(tm.envelopes),
		payees:        copyMap(tm.payees),
		incomeSources: copyMap(tm.incomeSources),
		transactions:  copyMap(tm.transactions),
		seq:           copyMap(tm.seq),
		nextSeq:       tm.nextSeq,
	}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.budgets = s.budgets
	tm.categories = s.categories
	tm.envelopes = s.envelopes
	tm.payees = s.payees
	tm.incomeSources = s.incomeSources
	tm.transactions = s.transactions
	tm.seq = s.seq
	tm.nextSeq = s.nextSeq
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// txView delegates to the unlocked implementations; the parent WithTx
// holds the write lock for the duration.
type txView struct {
	m *Memory
}

func (v *txView) GetBudget(_ context.Context, id uuid.UUID) (ledger.Budget, error) {
	return v.m.getBudget(id)
}

func (v *txView) ListBudgets(_ context.Context, ownerID uuid.UUID) ([]ledger.Budget, error) {
	return v.m.listBudgets(ownerID)
}

func (v *txView) GetCategory(_ context.Context, budgetID, id uuid.UUID) (ledger.Category, error) {
	return v.m.getCategory(budgetID, id)
}

func (v *txView) ListCategories(_ context.Context, budgetID uuid.UUID) ([]ledger.Category, error) {
	return v.m.listCategories(budgetID)
}

func (v *txView) GetEnvelope(_ context.Context, budgetID, id uuid.UUID) (ledger.Envelope, error) {
	return v.m.getEnvelope(budgetID, id)
}

func (v *txView) ListEnvelopes(_ context.Context, budgetID uuid.UUID) ([]ledger.Envelope, error) {
	return v.m.listEnvelopes(budgetID)
}

func (v *txView) GetPayee(_ context.Context, budgetID, id uuid.UUID) (ledger.Payee, error) {
	return v.m.getPayee(budgetID, id)
}

func (v *txView) ListPayees(_ context.Context, budgetID uuid.UUID) ([]ledger.Payee, error) {
	return v.m.listPayees(budgetID)
}

func (v *txView) GetIncomeSource(_ context.Context, budgetID, id uuid.UUID) (ledger.IncomeSource, error) {
	return v.m.getIncomeSource(budgetID, id)
}

func (v *txView) ListIncomeSources(_ context.Context, budgetID uuid.UUID) ([]ledger.IncomeSource, error) {
	return v.m.listIncomeSources(budgetID)
}

func (v *txView) GetTransaction(_ context.Context, id uuid.UUID) (ledger.Transaction, error) {
	return v.m.getTransaction(id)
}

func (v *txView) GetDeletedTransaction(_ context.Context, id, deletedBy uuid.UUID) (ledger.Transaction, error) {
	return v.m.getDeletedTransaction(id, deletedBy)
}

func (v *txView) ListTransactions(_ context.Context, budgetID uuid.UUID, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	return v.m.listTransactions(budgetID, filter)
}

func (v *txView) ResolveScopes(_ context.Context, kind ledger.ScopeKind, budgetID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.ScopeKey, error) {
	return v.m.resolveScopes(kind, budgetID, ids)
}

func (v *txView) ListScopeMembers(_ context.Context, scope ledger.ScopeKey) ([]ledger.OrderedItem, error) {
	return v.m.listScopeMembers(scope)
}

func (v *txView) CreateBudget(_ context.Context, b ledger.Budget) error { return v.m.createBudget(b) }
func (v *txView) UpdateBudget(_ context.Context, b ledger.Budget) error { return v.m.updateBudget(b) }
func (v *txView) DeleteBudget(_ context.Context, id uuid.UUID) error    { return v.m.deleteBudget(id) }

func (v *txView) CreateCategory(_ context.Context, c ledger.Category) error {
	return v.m.createCategory(c)
}

func (v *txView) UpdateCategory(_ context.Context, c ledger.Category) error {
	return v.m.updateCategory(c)
}

func (v *txView) DeleteCategory(_ context.Context, budgetID, id uuid.UUID) error {
	return v.m.deleteCategory(budgetID, id)
}

func (v *txView) CreateEnvelope(_ context.Context, e ledger.Envelope) error {
	return v.m.createEnvelope(e)
}

func (v *txView) UpdateEnvelope(_ context.Context, e ledger.Envelope) error {
	return v.m.updateEnvelope(e)
}

func (v *txView) DeleteEnvelope(_ context.Context, budgetID, id uuid.UUID) error {
	return v.m.deleteEnvelope(budgetID, id)
}

func (v *txView) CreatePayee(_ context.Context, p ledger.Payee) error { return v.m.createPayee(p) }
func (v *txView) UpdatePayee(_ context.Context, p ledger.Payee) error { return v.m.updatePayee(p) }

func (v *txView) DeletePayee(_ context.Context, budgetID, id uuid.UUID) error {
	return v.m.deletePayee(budgetID, id)
}

func (v *txView) CreateIncomeSource(_ context.Context, s ledger.IncomeSource) error {
	return v.m.createIncomeSource(s)
}

func (v *txView) UpdateIncomeSource(_ context.Context, s ledger.IncomeSource) error {
	return v.m.updateIncomeSource(s)
}

func (v *txView) DeleteIncomeSource(_ context.Context, budgetID, id uuid.UUID) error {
	return v.m.deleteIncomeSource(budgetID, id)
}

func (v *txView) InsertTransaction(_ context.Context, tx ledger.Transaction) error {
	return v.m.insertTransaction(tx)
}

func (v *txView) UpdateTransaction(_ context.Context, tx ledger.Transaction) error {
	return v.m.updateTransaction(tx)
}

func (v *txView) MarkTransactionDeleted(_ context.Context, id, actor uuid.UUID, at time.Time) error {
	return v.m.markTransactionDeleted(id, actor, at)
}

func (v *txView) MarkTransactionRestored(_ context.Context, id uuid.UUID) error {
	return v.m.markTransactionRestored(id)
}

func (v *txView) ApplyEffects(_ context.Context, effects []ledger.BalanceEffect) error {
	return v.m.applyEffects(effects)
}

func (v *txView) SetDisplayOrder(_ context.Context, kind ledger.ScopeKind, budgetID, id uuid.UUID, order int) error {
	return v.m.setDisplayOrder(kind, budgetID, id, order)
}
