// Package matcher classifies owned numbers against a desired Spec.
//
// Classification is pure and deterministic. The retention rule lives behind
// Policy so it can change without touching purchase or release orchestration.
package matcher

import (
	"slices"
	"strings"

	"github.com/jjgriff93/ai-contact-centre/internal/numbers"
)

// Classification is the outcome of comparing inventory with a spec.
type Classification struct {
	// Satisfying is the retained number, nil when none matches.
	Satisfying *numbers.OwnedNumber
	// Mismatched are the numbers the policy does not retain, sorted by E.164.
	Mismatched []numbers.OwnedNumber
}

// Satisfied reports whether a retained number exists.
func (c Classification) Satisfied() bool {
	return c.Satisfying != nil
}

// Policy decides which owned numbers to retain.
type Policy interface {
	Classify(owned []numbers.OwnedNumber, spec numbers.Spec) Classification
}

// Matches is true iff owned has the spec's country and number type.
func Matches(owned numbers.OwnedNumber, spec numbers.Spec) bool {
	return owned.Country == spec.Country && owned.Type == spec.Type
}

// ExactlyOne retains a single matching number, the one with the
// lexicographically smallest E.164. Every other number, including surplus
// matches, is mismatched.
type ExactlyOne struct{}

func (ExactlyOne) Classify(owned []numbers.OwnedNumber, spec numbers.Spec) Classification {
	sorted := sortedByE164(owned)
	var out Classification
	for i := range sorted {
		n := sorted[i]
		if out.Satisfying == nil && Matches(n, spec) {
			out.Satisfying = &n
			continue
		}
		out.Mismatched = append(out.Mismatched, n)
	}
	return out
}

// KeepAllMatching retains every matching number; only numbers of another
// country or type are mismatched. Satisfying is still the smallest match.
type KeepAllMatching struct{}

func (KeepAllMatching) Classify(owned []numbers.OwnedNumber, spec numbers.Spec) Classification {
	sorted := sortedByE164(owned)
	var out Classification
	for i := range sorted {
		n := sorted[i]
		if !Matches(n, spec) {
			out.Mismatched = append(out.Mismatched, n)
			continue
		}
		if out.Satisfying == nil {
			out.Satisfying = &n
		}
	}
	return out
}

// Classify applies the default ExactlyOne policy.
func Classify(owned []numbers.OwnedNumber, spec numbers.Spec) Classification {
	return ExactlyOne{}.Classify(owned, spec)
}

func sortedByE164(owned []numbers.OwnedNumber) []numbers.OwnedNumber {
	sorted := slices.Clone(owned)
	slices.SortStableFunc(sorted, func(a, b numbers.OwnedNumber) int {
		return strings.Compare(a.E164, b.E164)
	})
	return sorted
}
