package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors. A failed refresh leaves the session expired, so
	// ErrRefreshFailed wraps ErrAuthExpired and callers can branch on either.
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrAuthExpired      = fmt.Errorf("authentication expired")
	ErrRefreshFailed    = fmt.Errorf("%w: token refresh failed", ErrAuthExpired)
	ErrAuthTimeout      = fmt.Errorf("authorization timed out")
	ErrAuthDenied       = fmt.Errorf("authorization denied")

	// Provider errors
	ErrSearchUnavailable = fmt.Errorf("search service unavailable")
	ErrFetchFailed       = fmt.Errorf("audio fetch failed")

	// Publish errors
	ErrUploadFailed   = fmt.Errorf("track upload failed")
	ErrPublishPartial = fmt.Errorf("publish completed with excluded tracks")
	ErrNotReady       = fmt.Errorf("playlist not ready to publish")

	// Pipeline errors
	ErrInvalidInput      = fmt.Errorf("invalid input")
	ErrInvalidTransition = fmt.Errorf("invalid state transition")
	ErrSessionNotFound   = fmt.Errorf("session not found")
)
