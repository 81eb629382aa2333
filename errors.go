package chatbridge

import "fmt"

// ErrConfig reports a missing or invalid required configuration value.
// Returned at startup only; not recoverable at runtime.
type ErrConfig struct {
	Field   string
	Message string
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ErrInjectNoChild reports that Inject was called with no live child.
type ErrInjectNoChild struct{}

func (e *ErrInjectNoChild) Error() string { return "inject: no child process is running" }
