package github

import (
	"errors"
	"net/http"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/prmonitor/internal/domain/port/driven"
)

// classifyError wraps a go-github error into a driven.FetchError. A 403 is
// only treated as a credential failure when it is not a rate-limit response;
// an exhausted rate limit must not invalidate the stored token.
func classifyError(op string, err error) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return &driven.FetchError{Kind: driven.FetchRateLimited, Op: op, Err: err}
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &driven.FetchError{Kind: driven.FetchRateLimited, Op: op, Err: err}
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized:
			return &driven.FetchError{Kind: driven.FetchUnauthorized, Op: op, Err: err}
		case http.StatusForbidden:
			if respErr.Response.Header.Get("X-RateLimit-Remaining") == "0" {
				return &driven.FetchError{Kind: driven.FetchRateLimited, Op: op, Err: err}
			}
			return &driven.FetchError{Kind: driven.FetchUnauthorized, Op: op, Err: err}
		case http.StatusNotFound:
			return &driven.FetchError{Kind: driven.FetchNotFound, Op: op, Err: err}
		}
	}

	return &driven.FetchError{Kind: driven.FetchTransient, Op: op, Err: err}
}

// classifyStatus builds a FetchError from a bare HTTP status code, used on
// the GraphQL path where go-github's typed errors are not available.
func classifyStatus(op string, status int, err error) error {
	switch status {
	case http.StatusUnauthorized:
		return &driven.FetchError{Kind: driven.FetchUnauthorized, Op: op, Err: err}
	case http.StatusForbidden, http.StatusTooManyRequests:
		return &driven.FetchError{Kind: driven.FetchRateLimited, Op: op, Err: err}
	case http.StatusNotFound:
		return &driven.FetchError{Kind: driven.FetchNotFound, Op: op, Err: err}
	default:
		return &driven.FetchError{Kind: driven.FetchTransient, Op: op, Err: err}
	}
}
