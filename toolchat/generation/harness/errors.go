package harness

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DuplicateToolError is returned when a tool name is registered twice.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %s already registered", e.Name)
}

// InvalidToolError is returned when a nil or unnamed tool is registered.
type InvalidToolError struct {
	Reason string
}

func (e *InvalidToolError) Error() string {
	return "invalid tool: " + e.Reason
}

// UnknownToolError is returned when resolving an unregistered tool name.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("Function %s not found", e.Name)
}

// ToolExecutionError wraps a failure raised by a tool implementation.
type ToolExecutionError struct {
	Name string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Name, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// GatewayError reports a transport, authentication or rate-limit failure
// while calling the model backend.
type GatewayError struct {
	Provider   string
	StatusCode int // HTTP status when known, 0 otherwise
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s gateway error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s gateway error: %v", e.Provider, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) IsRateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

func (e *GatewayError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// MalformedReplyError reports a response whose candidate/part structure
// does not match what the gateway inspects.
type MalformedReplyError struct {
	Provider string
	Reason   string
}

func (e *MalformedReplyError) Error() string {
	return fmt.Sprintf("%s returned a malformed reply: %s", e.Provider, e.Reason)
}

// TimeoutError reports an outbound call that exceeded its deadline.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.After)
}

// IsTurnFailure reports whether err aborts only the current turn, leaving
// the session usable.
func IsTurnFailure(err error) bool {
	var gw *GatewayError
	var mr *MalformedReplyError
	return errors.As(err, &gw) || errors.As(err, &mr)
}
