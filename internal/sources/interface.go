package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/trendzee/live-trends/internal/models"
)

// Fetcher defines the contract for all trend providers
type Fetcher interface {
	GetName() models.Source
	IsEnabled() bool
	FetchTrends(ctx context.Context, count int) Result
}

// Result is the outcome of one fetch. Candidates may be non-empty even when
// Err is set: a partial batch, or a batch served by the syndication fallback.
type Result struct {
	Source     models.Source
	Candidates []models.Candidate
	Fallback   bool
	Err        error
}

// ErrorKind classifies why a fetch did not take its primary path
type ErrorKind string

const (
	KindMissingCredential ErrorKind = "missing_credential"
	KindMissingCapability ErrorKind = "missing_capability"
	KindProviderFailure   ErrorKind = "provider_failure"
	KindMalformed         ErrorKind = "malformed_response"
)

// FetchError is the typed error carried by Result.Err
type FetchError struct {
	Source models.Source
	Kind   ErrorKind
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from err, if it is a FetchError
func KindOf(err error) (ErrorKind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// IsKind reports whether err is a FetchError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func newFetchError(source models.Source, kind ErrorKind, err error) *FetchError {
	return &FetchError{Source: source, Kind: kind, Err: err}
}
