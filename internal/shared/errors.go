package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrInvalidConfig  = fmt.Errorf("invalid configuration")
	ErrUnknownSetting = fmt.Errorf("unknown setting")

	// Queue errors
	ErrTrackNotFound = fmt.Errorf("track not found")
	ErrMissingVoter  = fmt.Errorf("missing voter identity")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
