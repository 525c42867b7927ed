package posts

import (
	"errors"
	"fmt"
)

// ErrRateLimited indicates the search API rejected the request with HTTP 429.
var ErrRateLimited = errors.New("posts: rate limit exceeded")

// AuthError reports missing or rejected search API credentials.
type AuthError struct {
	Variable string
	Reason   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("posts: %s; set %s in the environment or a .env file", e.Reason, e.Variable)
}

func missingTokenError() *AuthError {
	return &AuthError{
		Variable: "TWITTER_BEARER_TOKEN",
		Reason:   "missing search API credentials (bearer token not configured)",
	}
}

func rejectedTokenError(detail string) *AuthError {
	reason := "search API rejected the bearer token"
	if detail != "" {
		reason = fmt.Sprintf("%s: %s", reason, detail)
	}
	return &AuthError{Variable: "TWITTER_BEARER_TOKEN", Reason: reason}
}
