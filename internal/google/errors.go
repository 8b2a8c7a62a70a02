package google

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the OAuth, callback and Gmail packages.
// Callers match with errors.Is; concrete errors wrap one of these.
var (
	// ErrConfig indicates malformed credentials or endpoint URLs.
	ErrConfig = errors.New("invalid OAuth configuration")

	// ErrBind indicates the callback port could not be bound, usually because
	// a previous listener is still running.
	ErrBind = errors.New("failed to bind callback listener")

	// ErrAuth indicates a failed code or refresh-token exchange.
	ErrAuth = errors.New("authentication failed")

	// ErrAuthExpired indicates the stored token expired and cannot be refreshed.
	ErrAuthExpired = errors.New("token expired and no refresh token available")

	// ErrNotAuthenticated indicates no token has been stored yet.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAPI indicates a non-success response from the Gmail API.
	ErrAPI = errors.New("gmail API error")

	// ErrDecode indicates a success response that could not be parsed.
	ErrDecode = errors.New("malformed response")
)

// APIError carries a non-success response from the Gmail API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", ErrAPI, e.Body)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrAPI, e.StatusCode, e.Body)
}

// Unwrap makes errors.Is(err, ErrAPI) hold for every APIError.
func (e *APIError) Unwrap() error {
	return ErrAPI
}
