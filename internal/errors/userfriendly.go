package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tturner/s7dip/internal/s7"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapNetworkError wraps network errors with user-friendly context
func WrapNetworkError(err error, ip string, port int) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to communicate with device at %s:%d", ip, port),
		Reason:  extractNetworkReason(err),
		Hint:    "Device may not be an S7 PLC, or there may be a network connectivity issue",
		Try:     fmt.Sprintf("s7dip read --ip %s --port %d --area merkers --start 0 --count 1", ip, port),
		Err:     err,
	}
}

// WrapS7Error wraps S7 protocol errors with user-friendly context
func WrapS7Error(err error, operation string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("S7 operation failed: %s", operation),
		Reason:  extractS7Reason(err),
		Hint:    "The PLC may not expose this area, or the address may be out of range",
		Try:     "Check the area, DB number, start address, and element count",
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "See docs/CONFIGURATION.md for configuration examples",
		Try:     fmt.Sprintf("Validate your config: s7dip validate-config --config %s", configPath),
		Err:     err,
	}
}

func extractNetworkReason(err error) string {
	if errors.Is(err, s7.ErrDataExchangeTimedOut) {
		return "Data exchange timeout - device may be offline or unreachable"
	}

	errStr := err.Error()

	// Common network error patterns
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timeout - device may be offline or unreachable"
	}
	if strings.Contains(errStr, "connection refused") {
		return "Connection refused - device may not be listening on this port"
	}
	if strings.Contains(errStr, "no route to host") {
		return "No route to host - network routing issue or device unreachable"
	}
	if strings.Contains(errStr, "connection reset") {
		return "Connection reset - device closed the connection unexpectedly"
	}

	return "Network communication failed"
}

func extractS7Reason(err error) string {
	var protoErr *s7.S7ProtocolError
	if errors.As(err, &protoErr) {
		return "PLC returned an error: " + protoErr.ClassText()
	}

	var itemErr *s7.DataItemError
	if errors.As(err, &itemErr) {
		return "PLC rejected the item: " + itemErr.Status.String()
	}

	if errors.Is(err, s7.ErrRequestNotAcknowledged) {
		return "PLC did not acknowledge the request"
	}
	if errors.Is(err, s7.ErrResponseDoesNotBelongToCurrentPDU) {
		return "Response reference did not match the request"
	}
	if errors.Is(err, s7.ErrDataExchangeTimedOut) {
		return "PLC did not respond within timeout period"
	}

	return "S7 protocol error occurred"
}
