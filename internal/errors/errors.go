package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Base error types
var (
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidInput         = errors.New("invalid input")
	ErrCandidateUnavailable = errors.New("candidate no longer available")
)

// Reconciliation outcomes. These never come from the provider adapter.
var (
	ErrNoInventoryAvailable = errors.New("no inventory available")
	ErrPurchaseExhausted    = errors.New("purchase attempts exhausted")
	// ErrPurchaseTimeout means the order outcome is unknown, not failed.
	ErrPurchaseTimeout = errors.New("purchase order still pending at deadline")
)

// Kind classifies whether repeating the same call may succeed.
type Kind string

const (
	KindTransient Kind = "transient"
	KindPermanent Kind = "permanent"
)

// ProviderError is a structured error for telephony provider calls
type ProviderError struct {
	Kind       Kind
	Op         string // Operation that failed (e.g., "search", "purchase")
	StatusCode int    // HTTP status code if applicable
	Code       string // Provider error code if applicable
	Message    string
	Err        error // Underlying error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed [%s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ", status %d", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, ", code %s", e.Code)
	}
	b.WriteString("]")
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface
func (e *ProviderError) Is(target error) bool {
	if target == nil {
		return false
	}

	switch target {
	case ErrNotFound:
		return e.StatusCode == 404
	case ErrUnauthorized:
		return e.StatusCode == 401 || e.StatusCode == 403
	case ErrCandidateUnavailable:
		return IsCandidateUnavailableCode(e.Code)
	}

	return errors.Is(e.Err, target)
}

// Transient reports whether the failure may clear on its own.
func (e *ProviderError) Transient() bool {
	return e.Kind == KindTransient
}

// NewProviderError creates a ProviderError, classifying err when possible.
func NewProviderError(op string, err error) *ProviderError {
	return &ProviderError{
		Kind: classify(err),
		Op:   op,
		Err:  err,
	}
}

// NewAPIError creates a ProviderError from an HTTP error response.
func NewAPIError(op string, statusCode int, code, message string) *ProviderError {
	e := &ProviderError{Kind: KindPermanent, Op: op, Code: code, Message: message}
	return e.WithStatusCode(statusCode)
}

// WithStatusCode adds HTTP status code to the error
func (e *ProviderError) WithStatusCode(code int) *ProviderError {
	e.StatusCode = code
	if code >= 500 || code == 429 || code == 408 {
		e.Kind = KindTransient
	} else if code >= 400 {
		e.Kind = KindPermanent
	}
	return e
}

// classify treats network failures and per-call deadlines as transient.
// Cancellation by the caller is permanent so it is never retried.
func classify(err error) Kind {
	if err == nil {
		return KindPermanent
	}
	if errors.Is(err, context.Canceled) {
		return KindPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindTransient
	}
	return KindPermanent
}

// IsTransient checks if an error should be retried
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient()
	}
	return false
}

// candidateUnavailableCodes are provider codes for a reservation or number
// that another consumer took, or that expired, between search and purchase.
var candidateUnavailableCodes = []string{
	"phonenumbernotavailable",
	"phonenumbersnotavailable",
	"numbernotavailable",
	"phonenumberalreadypurchased",
	"searchexpired",
	"reservationexpired",
	"searchnotfound",
}

// IsCandidateUnavailableCode reports whether a provider error code means the
// candidate can no longer be purchased.
func IsCandidateUnavailableCode(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return false
	}
	for _, c := range candidateUnavailableCodes {
		if code == c {
			return true
		}
	}
	return false
}

// noInventoryCodes are provider codes returned by a search that found nothing.
var noInventoryCodes = []string{
	"noinventoryavailable",
	"nophonenumbersavailable",
	"insufficientinventory",
	"numbersnotfound",
}

// IsNoInventoryCode reports whether a search failure code means the provider
// has no matching inventory right now.
func IsNoInventoryCode(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, c := range noInventoryCodes {
		if code == c {
			return true
		}
	}
	return false
}
