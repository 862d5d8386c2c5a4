// Package reconcile keeps derived balances and bill statuses consistent with
// the transaction ledger.
//
// Account balances and credit card used amounts are recomputed from
// transactions on every read and written back when they drift. Bill payment,
// bill reversal and invoice payment are sagas: ordered store calls with no
// shared transaction, each documenting the state a mid-way failure leaves.
package reconcile

import (
	"time"

	"github.com/dvloznov/finance-ledger/internal/cache"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultTolerance is the drift below which a stored derived value is left alone.
var DefaultTolerance = decimal.NewFromFloat(0.01)

// Options configures an Engine. Zero values select defaults.
type Options struct {
	// Publisher receives write-back jobs. When nil, corrections are written
	// synchronously and their errors only logged.
	Publisher jobs.Publisher

	// Cache holds reconciled entities. A fresh cache is created when nil.
	Cache *cache.Cache

	// Tolerance overrides DefaultTolerance when non-zero.
	Tolerance decimal.Decimal

	// Logger is used where no request context is available (write-back jobs).
	Logger *zerolog.Logger

	// Now overrides the clock.
	Now func() time.Time

	// NewID overrides id generation.
	NewID func() string
}

// Engine is the reconciliation engine. It is safe for concurrent use as long
// as the underlying store is.
type Engine struct {
	store     store.Store
	publisher jobs.Publisher
	cache     *cache.Cache
	tolerance decimal.Decimal
	log       zerolog.Logger
	now       func() time.Time
	newID     func() string
}

// NewEngine creates an engine over s.
func NewEngine(s store.Store, opts Options) *Engine {
	e := &Engine{
		store:     s,
		publisher: opts.Publisher,
		cache:     opts.Cache,
		tolerance: opts.Tolerance,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if e.cache == nil {
		e.cache = cache.New()
	}
	if e.tolerance.IsZero() {
		e.tolerance = DefaultTolerance
	}
	if opts.Logger != nil {
		e.log = *opts.Logger
	} else {
		e.log = zerolog.Nop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// Cache returns the engine's read-through cache.
func (e *Engine) Cache() *cache.Cache { return e.cache }

func (e *Engine) drifted(computed, stored decimal.Decimal) bool {
	return computed.Sub(stored).Abs().GreaterThan(e.tolerance)
}
