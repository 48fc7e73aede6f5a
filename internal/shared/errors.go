package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authorization flow errors
	ErrRandomSourceUnavailable = fmt.Errorf("secure random source unavailable")
	ErrCallbackParse           = fmt.Errorf("malformed authorization callback")
	ErrStateMismatch           = fmt.Errorf("authorization state mismatch")
	ErrTokenExchange           = fmt.Errorf("token exchange failed")
	ErrMissingVerifier         = fmt.Errorf("no code verifier for pending authorization")
	ErrNotAuthenticated        = fmt.Errorf("not authenticated")
	ErrTokenExpired            = fmt.Errorf("access token expired")
	ErrTimeout                 = fmt.Errorf("operation timed out")

	// Storage errors
	ErrStorage = fmt.Errorf("client storage failure")

	// Resource API errors
	ErrUnauthorized       = fmt.Errorf("resource API rejected access token")
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
