package cardmarket

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthNotConfigured means the app token or secret is missing.
	ErrAuthNotConfigured = errors.New("cardmarket: api credentials not configured")
	// ErrRateLimitExceeded means the daily request budget is spent.
	ErrRateLimitExceeded = errors.New("cardmarket: daily request limit exceeded")
	// ErrNoPriceGuide means the response carries no usable price data.
	ErrNoPriceGuide = errors.New("cardmarket: response has no price guide")
)

// FetchError is a transport failure or a non-2xx answer from the marketplace.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cardmarket: GET %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("cardmarket: GET %s: status %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }
