/*
Package service is the core façade: every operation of the budgeting
ledger enters here.

PURPOSE:
  Composes the validator, ordering engine, cache, resilience wrapper,
  and event publisher around the store. Each method takes the acting
  identity as an explicit parameter and verifies budget ownership before
  touching anything; there is no ambient session.

WRITE PATH:
  validate -> WithTx(write + balance effects) -> invalidate cache groups
  -> publish event. Cache invalidation happens only after the write
  succeeds; a failed mutation leaves the cache untouched. Event publish
  failures are logged and never fail the mutation.

READ PATH:
  Listings probe the cache by (namespace, budget id) and fall through to
  the store on miss. All store traffic runs through the resilience
  wrapper, which owns classification and retries.

SEE ALSO:
  - ledger/: Domain types, validator, balance effects
  - ordering/: Display-order maintenance
  - api/: The HTTP surface over this façade
*/
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thelarryrutledge/nvlp-app-sub004/cache"
	"github.com/thelarryrutledge/nvlp-app-sub004/events"
	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
	"github.com/thelarryrutledge/nvlp-app-sub004/ordering"
	"github.com/thelarryrutledge/nvlp-app-sub004/resilience"
)

// =============================================================================
// CACHE NAMESPACES AND INVALIDATION GROUPS
// =============================================================================

const (
	nsBudgets       = "budgets"
	nsCategories    = "categories"
	nsCategoryTree  = "category-tree"
	nsEnvelopes     = "envelopes"
	nsPayees        = "payees"
	nsIncomeSources = "income-sources"
	nsTransactions  = "transactions"
)

// invalidationGroups maps a mutated kind to every namespace that must be
// cleared together. Transactions touch the balance-bearing namespaces
// because their effects change envelope, payee, and budget caches.
var invalidationGroups = map[string][]string{
	nsBudgets:       {nsBudgets},
	nsCategories:    {nsCategories, nsCategoryTree},
	nsEnvelopes:     {nsEnvelopes, nsCategoryTree},
	nsPayees:        {nsPayees},
	nsIncomeSources: {nsIncomeSources},
	nsTransactions:  {nsTransactions, nsEnvelopes, nsPayees, nsBudgets},
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store     ledger.TxStore
	validator *ledger.Validator
	ordering  *ordering.Engine
	cache     *cache.Cache
	cacheTTL  time.Duration
	res       *resilience.Wrapper
	events    events.Publisher
	log       zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

type Options struct {
	Store     ledger.TxStore
	Cache     *cache.Cache
	CacheTTL  time.Duration
	Resilient *resilience.Wrapper
	Events    events.Publisher
	Logger    zerolog.Logger
}

func New(opts Options) *Service {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Events == nil {
		opts.Events = events.Disabled{}
	}
	if opts.Resilient == nil {
		opts.Resilient = resilience.New(nil, resilience.DefaultOptions(), opts.Logger)
	}
	if opts.Cache == nil {
		opts.Cache = cache.New(0)
	}
	return &Service{
		store:     opts.Store,
		validator: ledger.NewValidator(opts.Store),
		ordering:  ordering.NewEngine(opts.Store, opts.Logger),
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		res:       opts.Resilient,
		events:    opts.Events,
		log:       opts.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// ownedBudget loads the budget and verifies the actor owns it. Foreign
// budgets surface as NotFound, indistinguishable from absence.
func (s *Service) ownedBudget(ctx context.Context, actor, budgetID uuid.UUID) (ledger.Budget, error) {
	b, err := resilience.ExecuteValue(ctx, s.res, "get budget", func(ctx context.Context) (ledger.Budget, error) {
		return s.store.GetBudget(ctx, budgetID)
	})
	if err != nil {
		return ledger.Budget{}, err
	}
	if b.OwnerID != actor {
		return ledger.Budget{}, &ledger.NotFoundError{Kind: "budget", ID: budgetID}
	}
	return b, nil
}

// invalidate clears the invalidation group of the mutated kind. Called
// only after a successful write.
func (s *Service) invalidate(kind string) {
	s.cache.Invalidate(invalidationGroups[kind]...)
}

// publish emits a mutation event. Failures are logged, never returned:
// the mutation already committed.
func (s *Service) publish(ctx context.Context, event string, payload any) {
	if err := s.events.Publish(ctx, event, payload); err != nil {
		s.log.Warn().Str("event", event).Err(err).Msg("event publish failed")
	}
}

// nextDisplayOrder appends at the end of a scope.
func (s *Service) nextDisplayOrder(ctx context.Context, scope ledger.ScopeKey) (int, error) {
	members, err := resilience.ExecuteValue(ctx, s.res, "list scope members", func(ctx context.Context) ([]ledger.OrderedItem, error) {
		return s.store.ListScopeMembers(ctx, scope)
	})
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

// renumber restores a gap-free 0..n-1 sequence in the scope, typically
// after a deletion or a move between scopes.
func (s *Service) renumber(ctx context.Context, scope ledger.ScopeKey) error {
	return s.res.Execute(ctx, "renumber scope", func(ctx context.Context) error {
		return s.ordering.RenumberScope(ctx, scope)
	})
}
