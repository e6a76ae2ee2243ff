package driven

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across stores and the registry.
var (
	ErrNotSubscribed     = errors.New("not subscribed")
	ErrAlreadySubscribed = errors.New("already subscribed")
	ErrPRNotFound        = errors.New("pull request not found")
)

// FetchKind classifies a source-of-truth fetch failure.
type FetchKind string

const (
	FetchNotFound     FetchKind = "not_found"
	FetchUnauthorized FetchKind = "unauthorized"
	FetchRateLimited  FetchKind = "rate_limited"
	FetchTransient    FetchKind = "transient"
)

// FetchError wraps a GitHub fetch failure with its classification. RateLimited
// is deliberately distinct from Unauthorized: hitting a rate limit does not
// invalidate the stored credential.
type FetchError struct {
	Kind FetchKind
	Op   string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetchKindOf returns the classification of err, or FetchTransient when err
// is not a FetchError.
func FetchKindOf(err error) FetchKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return FetchTransient
}

// IsUnauthorized reports whether err is a fetch failure that invalidates the
// stored credential.
func IsUnauthorized(err error) bool {
	return FetchKindOf(err) == FetchUnauthorized
}
