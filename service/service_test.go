package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/thelarryrutledge/nvlp-app-sub004/cache"
	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
	ledgerstore "github.com/thelarryrutledge/nvlp-app-sub004/ledger/store"
)

// fixture wires a Service over the in-memory store with a fresh owner
// and one budget, the starting point for most tests.
type fixture struct {
	svc    *Service
	store  *ledgerstore.TxMemory
	cache  *cache.Cache
	actor  uuid.UUID
	budget ledger.Budget
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := ledgerstore.NewTxMemory()
	c := cache.New(256)
	svc := New(Options{
		Store:    store,
		Cache:    c,
		CacheTTL: time.Minute,
		Logger:   zerolog.Nop(),
	})

	actor := uuid.New()
	budget, err := svc.CreateBudget(context.Background(), actor, BudgetInput{Name: "Household"})
	require.NoError(t, err)

	return &fixture{svc: svc, store: store, cache: c, actor: actor, budget: budget}
}

func (f *fixture) envelope(t *testing.T, name string, typ ledger.EnvelopeType) ledger.Envelope {
	t.Helper()
	e, err := f.svc.CreateEnvelope(context.Background(), f.actor, f.budget.ID, EnvelopeInput{Name: name, Type: typ})
	require.NoError(t, err)
	return e
}

func (f *fixture) payee(t *testing.T, name string) ledger.Payee {
	t.Helper()
	p, err := f.svc.CreatePayee(context.Background(), f.actor, f.budget.ID, PayeeInput{Name: name})
	require.NoError(t, err)
	return p
}

func (f *fixture) incomeSource(t *testing.T, name string) ledger.IncomeSource {
	t.Helper()
	src, err := f.svc.CreateIncomeSource(context.Background(), f.actor, f.budget.ID, IncomeSourceInput{
		Name:           name,
		ExpectedAmount: dec("2500.00"),
		Schedule:       ledger.Schedule{Frequency: ledger.FreqMonthly, DayOfMonth: 1},
	})
	require.NoError(t, err)
	return src
}

// fund runs income then allocation so the envelope carries a balance.
func (f *fixture) fund(t *testing.T, env ledger.Envelope, amount string) {
	t.Helper()
	ctx := context.Background()
	src := f.incomeSource(t, "Paycheck "+uuid.NewString()[:8])

	_, err := f.svc.CreateTransaction(ctx, f.actor, f.budget.ID, TransactionInput{
		Type:            ledger.TxIncome,
		Amount:          dec(amount),
		TransactionDate: yesterday(),
		IncomeSourceID:  &src.ID,
	})
	require.NoError(t, err)

	_, err = f.svc.CreateTransaction(ctx, f.actor, f.budget.ID, TransactionInput{
		Type:            ledger.TxAllocation,
		Amount:          dec(amount),
		TransactionDate: yesterday(),
		ToEnvelopeID:    &env.ID,
	})
	require.NoError(t, err)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func yesterday() time.Time {
	return time.Now().UTC().AddDate(0, 0, -1)
}

func TestOwnershipIsEnforcedEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stranger := uuid.New()

	_, err := f.svc.GetBudget(ctx, stranger, f.budget.ID)
	require.True(t, ledger.IsNotFound(err), "foreign budget must read as not found, got %v", err)

	_, err = f.svc.ListCategories(ctx, stranger, f.budget.ID)
	require.True(t, ledger.IsNotFound(err))

	_, err = f.svc.CreateEnvelope(ctx, stranger, f.budget.ID, EnvelopeInput{Name: "Sneaky"})
	require.True(t, ledger.IsNotFound(err))
}

func TestListBudgetsIsCachedPerOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.ListBudgets(ctx, f.actor)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A second owner sees only their own budgets, not a shared cache row.
	other := uuid.New()
	theirs, err := f.svc.ListBudgets(ctx, other)
	require.NoError(t, err)
	require.Empty(t, theirs)
}
