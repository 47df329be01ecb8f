package linear

import (
	"errors"
	"fmt"
	"strings"
)

// APIError carries a failed GraphQL exchange: the HTTP status and every
// error message the remote returned.
type APIError struct {
	Status      int
	Messages    []string
	RateLimited bool
}

func (e *APIError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("linear api error (status %d): %s", e.Status, strings.Join(e.Messages, "; "))
	}
	return fmt.Sprintf("linear api error (status %d)", e.Status)
}

// IsRateLimited reports whether err represents remote rate limiting.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RateLimited
	}
	return false
}

// IsAPIError reports whether err is a remote API failure.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
