package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"

	internalerrors "github.com/jjgriff93/ai-contact-centre/internal/errors"
	"github.com/jjgriff93/ai-contact-centre/internal/numbers"
	"github.com/rs/zerolog/log"
)

// acquire walks the candidate sequence and buys the first candidate that is
// still available. When want is set only that number is eligible.
func (r *Reconciler) acquire(ctx context.Context, spec numbers.Spec, want string, res *Result) (*numbers.OwnedNumber, error) {
	limit := r.opts.MaxPurchaseAttempts
	outcome := &PurchaseOutcome{}
	res.Purchase = outcome

	pulls := newPullDeadline(ctx, r.opts.SearchTimeout)
	defer pulls.stop()

	seen := 0
	var lastUnavailable error
	for candidate, err := range r.provider.Search(pulls.ctx, spec, limit) {
		pulls.pause()
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", spec, pulls.wrap(ctx, err))
		}
		seen++
		if want != "" && candidate.E164 != want {
			pulls.resume()
			continue
		}
		if candidate.MonthlyCost.Exceeds(r.opts.CostCeiling) {
			res.warnf("candidate %s costs %s per month, above the configured ceiling of %s",
				candidate.E164, candidate.MonthlyCost, r.opts.CostCeiling)
		}

		outcome.Attempts++
		c := candidate
		outcome.Candidate = &c

		order, err := r.placeOrder(ctx, candidate)
		outcome.Order = order
		switch {
		case err == nil:
			return purchasedNumber(candidate), nil
		case errors.Is(err, internalerrors.ErrCandidateUnavailable):
			log.Warn().
				Str("candidate", candidate.E164).
				Err(err).
				Msg("Candidate no longer available, trying next")
			outcome.Unavailable = append(outcome.Unavailable, candidate.E164)
			lastUnavailable = err
			if outcome.Attempts >= limit {
				return nil, fmt.Errorf("%w: %d candidates unavailable: %w",
					internalerrors.ErrPurchaseExhausted, outcome.Attempts, lastUnavailable)
			}
		default:
			return nil, err
		}
		pulls.resume()
	}

	if seen == 0 {
		return nil, fmt.Errorf("%w for %s", internalerrors.ErrNoInventoryAvailable, spec)
	}
	if want != "" && outcome.Attempts == 0 {
		return nil, fmt.Errorf("%w: %s not offered among %d candidates for %s",
			internalerrors.ErrNoInventoryAvailable, want, seen, spec)
	}
	if lastUnavailable != nil {
		return nil, fmt.Errorf("%w: %d candidates unavailable: %w",
			internalerrors.ErrPurchaseExhausted, outcome.Attempts, lastUnavailable)
	}
	return nil, fmt.Errorf("%w for %s", internalerrors.ErrNoInventoryAvailable, spec)
}

func purchasedNumber(c numbers.Candidate) *numbers.OwnedNumber {
	return &numbers.OwnedNumber{
		E164:        c.E164,
		Country:     c.Country,
		Type:        c.Type,
		MonthlyCost: c.MonthlyCost,
	}
}

// placeOrder submits the purchase and waits for a terminal status. The
// purchase call itself is never retried.
func (r *Reconciler) placeOrder(ctx context.Context, candidate numbers.Candidate) (*numbers.PurchaseOrder, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
	order, err := r.provider.Purchase(callCtx, candidate)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("purchase %s: %w", candidate.E164, err)
	}
	if len(order.PhoneNumbers) == 0 {
		order.PhoneNumbers = []string{candidate.E164}
	}

	log.Info().
		Str("candidate", candidate.E164).
		Str("order", order.ID).
		Str("status", string(order.Status)).
		Msg("Purchase order placed")

	return r.awaitOrder(ctx, order)
}

// awaitOrder polls a pending order with capped backoff until it settles or
// OrderTimeout passes. A timeout leaves the order running provider-side.
func (r *Reconciler) awaitOrder(ctx context.Context, order numbers.PurchaseOrder) (*numbers.PurchaseOrder, error) {
	deadline := r.now().Add(r.opts.OrderTimeout)
	failures := 0

	for attempt := 0; ; attempt++ {
		switch order.Status {
		case numbers.OrderSucceeded:
			log.Info().Str("order", order.ID).Strs("numbers", order.PhoneNumbers).Msg("Purchase order succeeded")
			return &order, nil
		case numbers.OrderFailed:
			failure := order.Failure
			if failure == nil {
				failure = errors.New("provider reported failure without detail")
			}
			return &order, fmt.Errorf("order %s failed: %w", order.ID, failure)
		}

		remaining := deadline.Sub(r.now())
		if remaining <= 0 {
			return &order, fmt.Errorf("%w: order %s after %s", internalerrors.ErrPurchaseTimeout, order.ID, r.opts.OrderTimeout)
		}
		delay := min(r.opts.Backoff.nextDelay(attempt, r.rng()), remaining)
		if err := r.sleep(ctx, delay); err != nil {
			return &order, err
		}

		callCtx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
		next, err := r.provider.PollOrder(callCtx, order.ID)
		cancel()
		if err != nil {
			if internalerrors.IsTransient(err) && failures < r.opts.MaxRetries {
				failures++
				log.Warn().Err(err).Str("order", order.ID).Int("failures", failures).Msg("Order poll failed, will retry")
				continue
			}
			return &order, fmt.Errorf("poll order %s: %w", order.ID, err)
		}
		failures = 0
		if len(next.PhoneNumbers) == 0 {
			next.PhoneNumbers = order.PhoneNumbers
		}
		order = next
	}
}

// verifyOwned re-lists inventory after a purchase. Absence is a warning:
// inventory listings can lag behind order completion.
func (r *Reconciler) verifyOwned(ctx context.Context, e164 string, res *Result) {
	owned, err := r.listOwned(ctx)
	if err != nil {
		res.warnf("could not verify purchased number %s: %v", e164, err)
		return
	}
	if !slices.ContainsFunc(owned, func(n numbers.OwnedNumber) bool { return n.E164 == e164 }) {
		res.warnf("purchased number %s is not yet visible in inventory", e164)
	}
}

// listOwned retries transient failures with backoff.
func (r *Reconciler) listOwned(ctx context.Context) ([]numbers.OwnedNumber, error) {
	var owned []numbers.OwnedNumber
	err := r.retry(ctx, "list", func(ctx context.Context) error {
		var err error
		owned, err = r.provider.ListOwned(ctx)
		return err
	})
	return owned, err
}

func (r *Reconciler) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
		err := fn(callCtx)
		cancel()
		if err == nil || !internalerrors.IsTransient(err) || attempt >= r.opts.MaxRetries {
			return err
		}
		delay := r.opts.Backoff.nextDelay(attempt, r.rng())
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Dur("delay", delay).Msg("Transient provider failure, retrying")
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
}
