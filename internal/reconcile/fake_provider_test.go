package reconcile

import (
	"context"
	"iter"
	"slices"
	"sync"
	"time"

	internalerrors "github.com/jjgriff93/ai-contact-centre/internal/errors"
	"github.com/jjgriff93/ai-contact-centre/internal/numbers"
)

// fakeProvider is an in-memory account that records every call.
type fakeProvider struct {
	mu sync.Mutex

	owned      []numbers.OwnedNumber
	candidates []numbers.Candidate

	// unavailable candidates fail at purchase time.
	unavailable map[string]bool
	// failAtPoll candidates fail when their order is polled.
	failAtPoll map[string]bool
	// pendingPolls is how many polls report pending before success; -1 never settles.
	pendingPolls int
	// synchronous orders succeed in the purchase response.
	synchronous bool
	// searchDelay and pollDelay are real time spent per search pull and per poll.
	searchDelay time.Duration
	pollDelay   time.Duration

	searchErr   error
	listErrs    []error
	pollErrs    []error
	releaseErrs map[string]error

	orders map[string]*fakeOrder

	purchases []string
	releases  []string
	polls     int
	lists     int
	searches  int
}

type fakeOrder struct {
	candidate numbers.Candidate
	remaining int
}

func newFakeProvider(owned ...numbers.OwnedNumber) *fakeProvider {
	return &fakeProvider{
		owned:       owned,
		unavailable: map[string]bool{},
		failAtPoll:  map[string]bool{},
		releaseErrs: map[string]error{},
		orders:      map[string]*fakeOrder{},
	}
}

func (f *fakeProvider) Search(ctx context.Context, spec numbers.Spec, limit int) iter.Seq2[numbers.Candidate, error] {
	return func(yield func(numbers.Candidate, error) bool) {
		f.mu.Lock()
		f.searches++
		searchErr := f.searchErr
		candidates := slices.Clone(f.candidates)
		delay := f.searchDelay
		f.mu.Unlock()

		if searchErr != nil {
			yield(numbers.Candidate{}, searchErr)
			return
		}
		for i, c := range candidates {
			if i >= limit {
				return
			}
			if err := waitPull(ctx, delay); err != nil {
				yield(numbers.Candidate{}, err)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

func (f *fakeProvider) Purchase(ctx context.Context, c numbers.Candidate) (numbers.PurchaseOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.purchases = append(f.purchases, c.E164)
	if f.unavailable[c.E164] {
		return numbers.PurchaseOrder{}, internalerrors.NewAPIError("purchase", 409, "PhoneNumberNotAvailable", "taken")
	}
	id := "order-" + c.E164
	if f.synchronous {
		f.addOwnedLocked(c)
		return numbers.PurchaseOrder{ID: id, Status: numbers.OrderSucceeded, PhoneNumbers: []string{c.E164}}, nil
	}
	f.orders[id] = &fakeOrder{candidate: c, remaining: f.pendingPolls}
	return numbers.PurchaseOrder{ID: id, Status: numbers.OrderPending}, nil
}

func (f *fakeProvider) PollOrder(ctx context.Context, orderID string) (numbers.PurchaseOrder, error) {
	if f.pollDelay > 0 {
		time.Sleep(f.pollDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.polls++
	if len(f.pollErrs) > 0 {
		err := f.pollErrs[0]
		f.pollErrs = f.pollErrs[1:]
		if err != nil {
			return numbers.PurchaseOrder{}, err
		}
	}
	o, ok := f.orders[orderID]
	if !ok {
		return numbers.PurchaseOrder{}, internalerrors.NewAPIError("poll", 404, "NotFound", "no such order")
	}
	if f.failAtPoll[o.candidate.E164] {
		return numbers.PurchaseOrder{
			ID:      orderID,
			Status:  numbers.OrderFailed,
			Failure: internalerrors.NewAPIError("purchase", 0, "PhoneNumberNotAvailable", "taken"),
		}, nil
	}
	if o.remaining < 0 {
		return numbers.PurchaseOrder{ID: orderID, Status: numbers.OrderPending}, nil
	}
	if o.remaining > 0 {
		o.remaining--
		return numbers.PurchaseOrder{ID: orderID, Status: numbers.OrderPending}, nil
	}
	if !f.ownsLocked(o.candidate.E164) {
		f.addOwnedLocked(o.candidate)
	}
	return numbers.PurchaseOrder{ID: orderID, Status: numbers.OrderSucceeded}, nil
}

func (f *fakeProvider) ListOwned(ctx context.Context) ([]numbers.OwnedNumber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lists++
	if len(f.listErrs) > 0 {
		err := f.listErrs[0]
		f.listErrs = f.listErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return slices.Clone(f.owned), nil
}

func (f *fakeProvider) Release(ctx context.Context, e164 string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.releases = append(f.releases, e164)
	if err := f.releaseErrs[e164]; err != nil {
		return err
	}
	if !f.ownsLocked(e164) {
		return internalerrors.NewAPIError("release", 404, "PhoneNumberNotFound", "not owned")
	}
	f.owned = slices.DeleteFunc(f.owned, func(n numbers.OwnedNumber) bool { return n.E164 == e164 })
	return nil
}

func (f *fakeProvider) ownsLocked(e164 string) bool {
	return slices.ContainsFunc(f.owned, func(n numbers.OwnedNumber) bool { return n.E164 == e164 })
}

func (f *fakeProvider) addOwnedLocked(c numbers.Candidate) {
	f.owned = append(f.owned, numbers.OwnedNumber{
		E164:         c.E164,
		Country:      c.Country,
		Type:         c.Type,
		Capabilities: []numbers.Capability{numbers.CapabilityInboundCall, numbers.CapabilityOutboundCall},
	})
}

func (f *fakeProvider) ownedE164s() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.owned))
	for _, n := range f.owned {
		out = append(out, n.E164)
	}
	slices.Sort(out)
	return out
}

// waitPull fails like a real search once ctx is done.
func waitPull(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// fakeClock advances only when the reconciler sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func newTestReconciler(p Provider) (*Reconciler, *fakeClock) {
	opts := DefaultOptions()
	opts.OrderTimeout = 10 * time.Second
	opts.Backoff = Backoff{Initial: time.Second, Multiplier: 2, Max: 4 * time.Second}

	r := New(p, opts)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r.now = clock.Now
	r.sleep = clock.Sleep
	r.rng = func() float64 { return 0.5 }
	return r, clock
}

func ownedNumber(e164 string, c numbers.Country, t numbers.NumberType) numbers.OwnedNumber {
	return numbers.OwnedNumber{E164: e164, Country: c, Type: t}
}

func candidate(e164 string, c numbers.Country, t numbers.NumberType) numbers.Candidate {
	return numbers.Candidate{E164: e164, Country: c, Type: t, SearchID: "search-" + e164}
}
