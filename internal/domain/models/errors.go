package models

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies failures crossing the fetch boundary.
type ErrorKind string

const (
	KindNetworkFailure      ErrorKind = "network_failure"
	KindAuthFailure         ErrorKind = "auth_failure"
	KindPartialFetchFailure ErrorKind = "partial_fetch_failure"
	KindMalformedOperation  ErrorKind = "malformed_operation"
	KindRoiUndefined        ErrorKind = "roi_undefined"
)

var (
	// ErrUnauthorized is returned by gateways when the credential is rejected.
	ErrUnauthorized = errors.New("brokerage credential rejected")
	// ErrAllAccountsFailed means no requested account could be fetched.
	ErrAllAccountsFailed = errors.New("all account fetches failed")
	ErrNoToken           = errors.New("api token is not set")
	ErrNoAccounts        = errors.New("no accounts available")
	ErrUserBusy          = errors.New("user settings are locked by another writer")
)

// FetchError is the per-account failure captured by a fan-out.
type FetchError struct {
	AccountID string
	Kind      ErrorKind
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("account %s: %s: %v", e.AccountID, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// KindOf maps an error returned by a gateway call to its ErrorKind.
// Anything that is not a rejected credential is treated as transient.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, ErrUnauthorized) {
		return KindAuthFailure
	}
	return KindNetworkFailure
}

// IsCancelled reports whether err stems from the caller's context.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// FetchFailure is the serializable form of a FetchError.
type FetchFailure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// FetchReport describes the outcome of a fan-out over Requested accounts.
type FetchReport struct {
	Requested int                     `json:"requested"`
	Failures  map[string]FetchFailure `json:"failures,omitempty"`
}

// FailureCount returns the number of failed accounts.
func (r FetchReport) FailureCount() int { return len(r.Failures) }

// Partial reports whether some, but not all, accounts failed.
func (r FetchReport) Partial() bool {
	return len(r.Failures) > 0 && len(r.Failures) < r.Requested
}

// AllFailed reports whether every requested account failed.
func (r FetchReport) AllFailed() bool {
	return r.Requested > 0 && len(r.Failures) == r.Requested
}

// Kind summarizes the report: empty when nothing failed, AuthFailure when
// every account failed on credentials, otherwise the partial or network kind.
func (r FetchReport) Kind() ErrorKind {
	switch {
	case len(r.Failures) == 0:
		return ""
	case r.Partial():
		return KindPartialFetchFailure
	}
	for _, f := range r.Failures {
		if f.Kind == KindAuthFailure {
			return KindAuthFailure
		}
	}
	return KindNetworkFailure
}

// Err returns a non-nil error only when every account failed.
func (r FetchReport) Err() error {
	if !r.AllFailed() {
		return nil
	}
	if r.Kind() == KindAuthFailure {
		return fmt.Errorf("%w: %w", ErrAllAccountsFailed, ErrUnauthorized)
	}
	return ErrAllAccountsFailed
}
