package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/potionshop/internal/cache"
	"github.com/roach88/potionshop/internal/policy"
	"github.com/roach88/potionshop/internal/shop"
	"github.com/roach88/potionshop/internal/store"
)

// Pricing prices capacity upgrades. Cost must not decrease as current grows.
// Implemented by policy.Policy.
type Pricing interface {
	Cost(kind shop.CapacityKind, current, units int) int64
}

// Publisher receives every committed journal. Implemented by notify.AMQP.
type Publisher interface {
	Publish(ctx context.Context, j shop.Journal) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, shop.Journal) error { return nil }

// DefaultCatalogTTL is how long a cached catalog listing is served.
const DefaultCatalogTTL = 30 * time.Second

// DefaultCheckoutLease is how long a cart may sit in CHECKING_OUT before Open
// treats its checkout as abandoned.
const DefaultCheckoutLease = time.Minute

// Engine owns every write to the resource pool, the potion catalog, carts and
// the ledger.
//
// Thread-safety: all methods are safe for concurrent use. Concurrent
// operations touching the same row are serialized by optimistic version
// checks (see doc.go), never by an in-process lock.
type Engine struct {
	store       *store.Store
	clock       Clock
	txnIDs      TxnIDGenerator
	pricing     Pricing
	cache       cache.Cache
	cacheTTL    time.Duration
	events      Publisher
	log         *slog.Logger
	retryBudget int
	lease       time.Duration

	// afterSnapshot, if set, runs between an operation's snapshot and its
	// commit. Tests use it to interleave a competing write.
	afterSnapshot func(op string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetryBudget sets how many attempts an operation gets before BUSY.
// Values below 1 are treated as 1.
func WithRetryBudget(n int) Option {
	return func(e *Engine) {
		e.retryBudget = n
	}
}

// WithClock sets the timestamp source.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithTxnIDGenerator sets the txn id source.
func WithTxnIDGenerator(g TxnIDGenerator) Option {
	return func(e *Engine) {
		e.txnIDs = g
	}
}

// WithPricing sets the capacity upgrade policy. Default: policy.Default().
func WithPricing(p Pricing) Option {
	return func(e *Engine) {
		e.pricing = p
	}
}

// WithCatalogCache caches the catalog listing for ttl.
func WithCatalogCache(c cache.Cache, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = c
		e.cacheTTL = ttl
	}
}

// WithPublisher sends committed journals to p.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		e.events = p
	}
}

// WithCheckoutLease sets how old a CHECKING_OUT cart must be before Open
// reopens it. It must exceed the longest checkout any live process can run.
func WithCheckoutLease(d time.Duration) Option {
	return func(e *Engine) {
		e.lease = d
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// Open creates an Engine over s.
//
// On a fresh database Open writes the genesis inventory together with its
// GENESIS ledger entries. It then reopens carts left in CHECKING_OUT for
// longer than the checkout lease by a process that died mid-checkout; such a
// checkout never committed. Younger ones may belong to another live process
// sharing the database and are left alone.
func Open(ctx context.Context, s *store.Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:       s,
		clock:       SystemClock{},
		txnIDs:      UUIDv7Generator{},
		pricing:     policy.Default(),
		cache:       cache.Nop{},
		cacheTTL:    DefaultCatalogTTL,
		events:      nopPublisher{},
		log:         slog.Default(),
		retryBudget: DefaultRetryBudget,
		lease:       DefaultCheckoutLease,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.retryBudget < 1 {
		e.retryBudget = 1
	}

	if err := e.bootstrap(ctx); err != nil {
		return nil, err
	}
	if err := e.recoverCheckouts(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) bootstrap(ctx context.Context) error {
	var j shop.Journal
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		inv := shop.GenesisInventory()
		created, err := tx.InitInventory(ctx, inv)
		if err != nil || !created {
			return err
		}
		j, err = e.record(ctx, tx, "genesis", genesisEntries(inv))
		return err
	})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if j.TxnID != "" {
		e.committed(ctx, j)
	}
	return nil
}

// genesisEntries records the starting balances so that replay from an empty
// state reproduces them.
func genesisEntries(inv shop.Inventory) []shop.LedgerEntry {
	entries := []shop.LedgerEntry{
		{ChangeType: shop.ChangeGenesis, Amount: inv.Gold, Description: "starting gold"},
		{ChangeType: shop.ChangeGenesis, Amount: int64(inv.PotionUnits), CapacityKind: shop.CapacityPotion, Description: "starting potion capacity"},
		{ChangeType: shop.ChangeGenesis, Amount: int64(inv.LiquidUnits), CapacityKind: shop.CapacityLiquid, Description: "starting liquid capacity"},
	}
	for _, lt := range shop.LiquidTypes {
		if v := inv.Liquids.Get(lt); v != 0 {
			entries = append(entries, shop.LedgerEntry{
				ChangeType:  shop.ChangeGenesis,
				Amount:      int64(v),
				LiquidType:  lt,
				Description: fmt.Sprintf("starting %s liquid", lt),
			})
		}
	}
	return entries
}

func (e *Engine) recoverCheckouts(ctx context.Context) error {
	now := e.clock.Now()
	return e.store.Update(ctx, func(tx *store.Tx) error {
		ids, err := tx.StaleCartIDs(ctx, shop.CartCheckingOut, now.Add(-e.lease))
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := tx.TransitionCart(ctx, id, shop.CartCheckingOut, shop.CartOpen, now); err != nil {
				return fmt.Errorf("recover cart %d: %w", id, err)
			}
			e.log.Warn("reopened cart left mid-checkout", "cart", id)
		}
		return nil
	})
}

// record stamps entries with a fresh txn id and appends them inside tx.
func (e *Engine) record(ctx context.Context, tx *store.Tx, op string, entries []shop.LedgerEntry) (shop.Journal, error) {
	txn := e.txnIDs.Generate()
	for i := range entries {
		entries[i].TxnID = txn
	}
	stored, err := tx.AppendLedger(ctx, entries, e.clock.Now())
	if err != nil {
		return shop.Journal{}, err
	}
	return shop.Journal{TxnID: txn, Op: op, Entries: stored}, nil
}

// committed runs after a journal's transaction has committed. Nothing here
// can undo the commit; failures are logged.
func (e *Engine) committed(ctx context.Context, j shop.Journal) {
	e.log.Info("committed", "op", j.Op, "txn", j.TxnID, "entries", len(j.Entries))
	if err := e.events.Publish(ctx, j); err != nil {
		e.log.Warn("publish journal failed", "op", j.Op, "txn", j.TxnID, "error", err)
	}
}

// Inventory returns the live resource pool.
func (e *Engine) Inventory(ctx context.Context) (shop.Inventory, error) {
	var inv shop.Inventory
	err := e.store.View(ctx, func(tx *store.Tx) error {
		var err error
		inv, err = tx.Inventory(ctx)
		return err
	})
	return inv, err
}
