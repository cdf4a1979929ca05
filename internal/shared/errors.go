package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Pipeline errors
	ErrResolution  = fmt.Errorf("podcast resolution failed")
	ErrFeedParse   = fmt.Errorf("feed parse failed")
	ErrAcquisition = fmt.Errorf("audio acquisition failed")

	// Task errors
	ErrTaskNotFound    = fmt.Errorf("task not found")
	ErrNotCompleted    = fmt.Errorf("task not completed")
	ErrInvalidFilename = fmt.Errorf("invalid filename")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
