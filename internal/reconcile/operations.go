package reconcile

import (
	"context"
	"fmt"
	"slices"
	"strings"

	internalerrors "github.com/jjgriff93/ai-contact-centre/internal/errors"
	"github.com/jjgriff93/ai-contact-centre/internal/numbers"
	"github.com/rs/zerolog/log"
)

// List returns the owned inventory sorted by E.164.
func (r *Reconciler) List(ctx context.Context) (*Result, error) {
	res := newResult(OpList, nil)
	owned, err := r.listOwned(ctx)
	if err != nil {
		return fail(res, fmt.Errorf("list owned numbers: %w", err))
	}
	slices.SortFunc(owned, func(a, b numbers.OwnedNumber) int { return strings.Compare(a.E164, b.E164) })
	res.Owned = owned
	return res, nil
}

// Search collects up to limit candidates without purchasing. An empty
// result is a success.
func (r *Reconciler) Search(ctx context.Context, spec numbers.Spec, limit int) (*Result, error) {
	res := newResult(OpSearch, &spec)
	if err := spec.Validate(); err != nil {
		return fail(res, fmt.Errorf("%w: %w", internalerrors.ErrInvalidInput, err))
	}
	if limit <= 0 {
		limit = 1
	}

	pulls := newPullDeadline(ctx, r.opts.SearchTimeout)
	defer pulls.stop()

	for candidate, err := range r.provider.Search(pulls.ctx, spec, limit) {
		pulls.pause()
		if err != nil {
			return fail(res, fmt.Errorf("search %s: %w", spec, pulls.wrap(ctx, err)))
		}
		if candidate.MonthlyCost.Exceeds(r.opts.CostCeiling) {
			res.warnf("candidate %s costs %s per month, above the configured ceiling of %s",
				candidate.E164, candidate.MonthlyCost, r.opts.CostCeiling)
		}
		res.Candidates = append(res.Candidates, candidate)
		pulls.resume()
	}
	if len(res.Candidates) == 0 {
		res.warnf("no %s numbers currently available", spec)
	}
	return res, nil
}

// Purchase buys one number matching spec, or the specific number want when
// set. It never releases anything. Without confirm nothing is bought.
func (r *Reconciler) Purchase(ctx context.Context, spec numbers.Spec, want string, confirm bool) (*Result, error) {
	res := newResult(OpPurchase, &spec)
	if err := spec.Validate(); err != nil {
		return fail(res, fmt.Errorf("%w: %w", internalerrors.ErrInvalidInput, err))
	}
	if want != "" {
		normalized, err := numbers.NormalizeE164(want)
		if err != nil {
			return fail(res, fmt.Errorf("%w: %w", internalerrors.ErrInvalidInput, err))
		}
		want = normalized
	}
	if !confirm {
		res.PurchaseSkipped = true
		res.warnf("purchase of a %s number not confirmed; nothing was bought", spec)
		return res, nil
	}

	number, err := r.acquire(ctx, spec, want, res)
	if err != nil {
		return fail(res, err)
	}
	res.Satisfying = number
	r.verifyOwned(ctx, number.E164, res)
	return res, nil
}

// Release releases a single number. Without confirm nothing is released.
func (r *Reconciler) Release(ctx context.Context, e164 string, confirm bool) (*Result, error) {
	res := newResult(OpRelease, nil)
	normalized, err := numbers.NormalizeE164(e164)
	if err != nil {
		return fail(res, fmt.Errorf("%w: %w", internalerrors.ErrInvalidInput, err))
	}
	if !confirm {
		res.Unreleased = []string{normalized}
		res.warnf("release of %s not confirmed; nothing was released", normalized)
		return res, nil
	}

	if err := r.release(ctx, normalized); err != nil {
		res.ReleaseFailures = []ReleaseFailure{{E164: normalized, Error: err.Error()}}
		return fail(res, err)
	}
	log.Info().Str("number", normalized).Msg("Released number")
	res.Released = []string{normalized}
	return res, nil
}
