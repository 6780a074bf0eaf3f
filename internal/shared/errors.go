package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig    = fmt.Errorf("configuration not found")
	ErrInvalidConfig    = fmt.Errorf("invalid configuration")
	ErrConnectorMissing = fmt.Errorf("no connector registered for service")
	ErrNotConfigured    = fmt.Errorf("connector credentials not configured")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrInvalidState     = fmt.Errorf("invalid oauth state")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrTransient          = fmt.Errorf("transient service error")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")

	// Sync errors
	ErrGroupNotFound  = fmt.Errorf("sync group not found")
	ErrAlreadyRunning = fmt.Errorf("scheduler already running")
	ErrNotRunning     = fmt.Errorf("scheduler not running")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrInvalidService  = fmt.Errorf("invalid service")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
