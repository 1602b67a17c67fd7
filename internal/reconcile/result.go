package reconcile

import (
	"fmt"

	"github.com/jjgriff93/ai-contact-centre/internal/numbers"
)

// Operation names the reconciler entry point that produced a Result.
type Operation string

const (
	OpEnsure   Operation = "ensure"
	OpPlan     Operation = "plan"
	OpSearch   Operation = "search"
	OpList     Operation = "list"
	OpPurchase Operation = "purchase"
	OpRelease  Operation = "release"
)

// PurchaseOutcome records one purchase run, successful or not.
type PurchaseOutcome struct {
	Order     *numbers.PurchaseOrder `json:"order,omitempty"`
	Candidate *numbers.Candidate     `json:"candidate,omitempty"`
	Attempts  int                    `json:"attempts"`
	// Unavailable lists candidates that were taken before the order landed.
	Unavailable []string `json:"unavailable,omitempty"`
}

// ReleaseFailure is a release that was attempted and failed.
type ReleaseFailure struct {
	E164  string `json:"phoneNumber"`
	Error string `json:"error"`
}

// Result summarises what one invocation did, skipped and failed. It is
// returned alongside any error so partial completion is always visible.
type Result struct {
	RunID     string        `json:"runId,omitempty"`
	Operation Operation     `json:"operation"`
	Spec      *numbers.Spec `json:"spec,omitempty"`

	Satisfying       *numbers.OwnedNumber `json:"satisfying,omitempty"`
	AlreadySatisfied bool                 `json:"alreadySatisfied"`

	Purchase        *PurchaseOutcome `json:"purchase,omitempty"`
	PurchaseSkipped bool             `json:"purchaseSkipped,omitempty"`

	Released        []string         `json:"released,omitempty"`
	Unreleased      []string         `json:"unreleased,omitempty"`
	ReleaseFailures []ReleaseFailure `json:"releaseFailures,omitempty"`

	Owned      []numbers.OwnedNumber `json:"owned,omitempty"`
	Candidates []numbers.Candidate   `json:"candidates,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func newResult(op Operation, spec *numbers.Spec) *Result {
	return &Result{Operation: op, Spec: spec}
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Purchased returns the newly purchased number, if any.
func (r *Result) Purchased() string {
	if r.Purchase == nil || r.Purchase.Order == nil || r.Purchase.Order.Status != numbers.OrderSucceeded {
		return ""
	}
	if len(r.Purchase.Order.PhoneNumbers) == 0 {
		return ""
	}
	return r.Purchase.Order.PhoneNumbers[0]
}

// Converged reports whether the account now holds exactly the retained
// number and nothing the policy wants gone.
func (r *Result) Converged() bool {
	return r.Satisfying != nil && len(r.Unreleased) == 0 && len(r.ReleaseFailures) == 0
}
