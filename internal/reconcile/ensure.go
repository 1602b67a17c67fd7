package reconcile

import (
	"context"
	"errors"
	"fmt"

	internalerrors "github.com/jjgriff93/ai-contact-centre/internal/errors"
	"github.com/jjgriff93/ai-contact-centre/internal/numbers"
	"github.com/rs/zerolog/log"
)

// Ensure converges the account to exactly the numbers the policy retains for
// spec. Purchases and releases only happen when spec.AutoPurchase and
// confirm are both true; otherwise the result reports the drift.
//
// Ensure is idempotent: a second run with no external change performs no
// purchase and no release.
func (r *Reconciler) Ensure(ctx context.Context, spec numbers.Spec, confirm bool) (*Result, error) {
	return r.ensure(ctx, OpEnsure, spec, confirm)
}

// Plan reports what Ensure would do without mutating anything.
func (r *Reconciler) Plan(ctx context.Context, spec numbers.Spec) (*Result, error) {
	return r.ensure(ctx, OpPlan, spec, false)
}

func (r *Reconciler) ensure(ctx context.Context, op Operation, spec numbers.Spec, confirm bool) (*Result, error) {
	res := newResult(op, &spec)
	if err := spec.Validate(); err != nil {
		return fail(res, fmt.Errorf("%w: %w", internalerrors.ErrInvalidInput, err))
	}

	owned, err := r.listOwned(ctx)
	if err != nil {
		return fail(res, fmt.Errorf("list owned numbers: %w", err))
	}
	res.Owned = owned

	classification := r.opts.Policy.Classify(owned, spec)
	mutate := spec.AutoPurchase && confirm

	logger := log.With().Str("op", string(op)).Str("spec", spec.String()).Logger()
	logger.Info().
		Int("owned", len(owned)).
		Int("mismatched", len(classification.Mismatched)).
		Bool("satisfied", classification.Satisfied()).
		Bool("mutate", mutate).
		Msg("Classified inventory")

	switch {
	case classification.Satisfied():
		res.Satisfying = classification.Satisfying
		res.AlreadySatisfied = true
	case !spec.AutoPurchase:
		res.PurchaseSkipped = true
		res.warnf("no %s number owned and auto-purchase is disabled", spec)
	case !confirm:
		res.PurchaseSkipped = true
		res.warnf("a %s number must be purchased; confirmation required", spec)
	default:
		number, err := r.acquire(ctx, spec, "", res)
		if err != nil {
			// Never release anything when no satisfying number exists.
			res.Unreleased = e164s(classification.Mismatched)
			if len(res.Unreleased) > 0 {
				res.warnf("kept %d mismatched numbers because no %s number could be secured", len(res.Unreleased), spec)
			}
			return fail(res, err)
		}
		res.Satisfying = number
		r.verifyOwned(ctx, number.E164, res)
	}

	var releaseErrs []error
	for _, n := range classification.Mismatched {
		if !mutate {
			res.Unreleased = append(res.Unreleased, n.E164)
			continue
		}
		if err := r.release(ctx, n.E164); err != nil {
			if errors.Is(err, internalerrors.ErrNotFound) {
				res.warnf("%s was already released", n.E164)
				res.Released = append(res.Released, n.E164)
				continue
			}
			logger.Error().Err(err).Str("number", n.E164).Msg("Release failed")
			res.ReleaseFailures = append(res.ReleaseFailures, ReleaseFailure{E164: n.E164, Error: err.Error()})
			releaseErrs = append(releaseErrs, err)
			continue
		}
		logger.Info().Str("number", n.E164).Msg("Released mismatched number")
		res.Released = append(res.Released, n.E164)
	}

	if len(res.Unreleased) > 0 {
		res.warnf("%d mismatched numbers not released: %s", len(res.Unreleased), skipReason(spec, confirm))
	}
	if len(releaseErrs) > 0 {
		return fail(res, fmt.Errorf("released %d of %d mismatched numbers: %w",
			len(res.Released), len(classification.Mismatched), errors.Join(releaseErrs...)))
	}
	return res, nil
}

func skipReason(spec numbers.Spec, confirm bool) string {
	if !spec.AutoPurchase {
		return "auto-purchase is disabled (report only)"
	}
	if !confirm {
		return "confirmation required"
	}
	return "no satisfying number"
}

// release issues one release call. Releases are billing-affecting and are
// never retried.
func (r *Reconciler) release(ctx context.Context, e164 string) error {
	callCtx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
	defer cancel()
	if err := r.provider.Release(callCtx, e164); err != nil {
		return fmt.Errorf("release %s: %w", e164, err)
	}
	return nil
}

func fail(res *Result, err error) (*Result, error) {
	res.Error = err.Error()
	return res, err
}

func e164s(ns []numbers.OwnedNumber) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.E164)
	}
	return out
}
