// Package reconcile converges a telephony account's phone-number inventory
// toward a declared Spec.
//
// A single Reconciler invocation is sequential: it lists inventory, asks the
// matcher policy which number to retain, purchases at most one number and
// releases the rest. All decision state lives for one call and is discarded.
// Concurrent invocations against the same account are not coordinated; the
// matcher's deterministic tie-break makes racing runs converge on one number.
package reconcile

import (
	"context"
	"iter"
	"math/rand/v2"
	"time"

	"github.com/jjgriff93/ai-contact-centre/internal/matcher"
	"github.com/jjgriff93/ai-contact-centre/internal/numbers"
)

// Provider is the telephony number-management API. Implementations own no
// state across calls and never retry.
type Provider interface {
	// Search yields at most limit candidates. An empty sequence means no
	// inventory and is not an error. ctx stays live across pulls; each pull
	// must fail with ctx.Err() once it is done.
	Search(ctx context.Context, spec numbers.Spec, limit int) iter.Seq2[numbers.Candidate, error]
	Purchase(ctx context.Context, candidate numbers.Candidate) (numbers.PurchaseOrder, error)
	PollOrder(ctx context.Context, orderID string) (numbers.PurchaseOrder, error)
	ListOwned(ctx context.Context) ([]numbers.OwnedNumber, error)
	Release(ctx context.Context, e164 string) error
}

// Options tunes retry, timeout and polling behaviour.
type Options struct {
	// MaxPurchaseAttempts bounds how many candidates one purchase tries.
	MaxPurchaseAttempts int
	// MaxRetries bounds retries of transient failures on read-only calls.
	MaxRetries int
	// RequestTimeout applies to each individual provider call.
	RequestTimeout time.Duration
	// SearchTimeout bounds each pull of a candidate sequence. Time spent
	// purchasing a candidate does not count against the next pull.
	SearchTimeout time.Duration
	// OrderTimeout is the deadline for a pending order to settle.
	OrderTimeout time.Duration
	Backoff      Backoff
	// CostCeiling turns more expensive candidates into warnings.
	CostCeiling numbers.Cost
	Policy      matcher.Policy
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		MaxPurchaseAttempts: 5,
		MaxRetries:          3,
		RequestTimeout:      30 * time.Second,
		SearchTimeout:       2 * time.Minute,
		OrderTimeout:        5 * time.Minute,
		Backoff:             DefaultBackoff(),
		Policy:              matcher.ExactlyOne{},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxPurchaseAttempts <= 0 {
		o.MaxPurchaseAttempts = d.MaxPurchaseAttempts
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = d.RequestTimeout
	}
	if o.SearchTimeout <= 0 {
		o.SearchTimeout = d.SearchTimeout
	}
	if o.OrderTimeout <= 0 {
		o.OrderTimeout = d.OrderTimeout
	}
	if o.Backoff.Initial <= 0 {
		o.Backoff = d.Backoff
	}
	if o.Policy == nil {
		o.Policy = d.Policy
	}
	return o
}

// Reconciler drives a Provider toward a Spec.
type Reconciler struct {
	provider Provider
	opts     Options

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
	rng   func() float64
}

// New creates a Reconciler. Zero durations, a zero attempt limit and a nil
// policy take their defaults; MaxRetries of zero disables retries.
func New(provider Provider, opts Options) *Reconciler {
	return &Reconciler{
		provider: provider,
		opts:     opts.withDefaults(),
		now:      time.Now,
		sleep:    sleepContext,
		rng:      rand.Float64,
	}
}

// Options returns the effective options.
func (r *Reconciler) Options() Options {
	return r.opts
}
