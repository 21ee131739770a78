package proxy

import (
	"errors"
	"fmt"
)

// ProxyError describes a failure while forwarding a request to a
// backend target.
type ProxyError struct {
	Op     string
	Target string
	Cause  error
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("proxy %s %s: %v", e.Op, e.Target, e.Cause)
	}
	return fmt.Sprintf("proxy %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ProxyError) Unwrap() error {
	return e.Cause
}

// NewProxyError creates a ProxyError.
func NewProxyError(op, target string, cause error) *ProxyError {
	return &ProxyError{Op: op, Target: target, Cause: cause}
}

// IsProxyError reports whether err is a ProxyError.
func IsProxyError(err error) bool {
	var pe *ProxyError
	return errors.As(err, &pe)
}
