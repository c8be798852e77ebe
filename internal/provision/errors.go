package provision

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the category of a provisioning failure
type ErrorType int

const (
	// ErrTypeValidation indicates a malformed request (empty SSID)
	ErrTypeValidation ErrorType = iota
	// ErrTypeBusy indicates a request arrived while another was in flight
	ErrTypeBusy
	// ErrTypeAdapter indicates the radio itself reported a failure
	ErrTypeAdapter
	// ErrTypeTimeout indicates the radio did not answer within the bounded wait
	ErrTypeTimeout
	// ErrTypeStale indicates a completion for a request that is no longer pending
	ErrTypeStale
	// ErrTypeClosed indicates the session is not running
	ErrTypeClosed
)

// Message shown to channel clients when a request is rejected as busy.
const BusyMessage = "operation in progress"

// Message shown to channel clients that send events faster than allowed.
const RateLimitMessage = "rate limit exceeded"

// Message shown to channel clients when a connect request lacks an SSID.
const MissingSSIDMessage = "ssid is required"

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeBusy:
		return "Busy"
	case ErrTypeAdapter:
		return "Adapter Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeStale:
		return "Stale Result"
	case ErrTypeClosed:
		return "Session Closed"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is returned for every failed or rejected provisioning request
type Error struct {
	Type      ErrorType // Category of error
	Op        Operation // Operation the request asked for
	Message   string    // Message suitable for the UI
	RequestID uint64    // Zero for requests that were never accepted
	Err       error     // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation error
func NewValidationError(op Operation, message string) *Error {
	return &Error{Type: ErrTypeValidation, Op: op, Message: message}
}

// NewBusyError creates a busy rejection
func NewBusyError(op Operation) *Error {
	return &Error{Type: ErrTypeBusy, Op: op, Message: BusyMessage}
}

// NewAdapterError wraps a radio failure. The message is the radio's own text.
func NewAdapterError(op Operation, id uint64, err error) *Error {
	msg := "unknown radio error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &Error{Type: ErrTypeAdapter, Op: op, Message: msg, RequestID: id, Err: err}
}

// NewTimeoutError creates a timeout error for a request that exceeded its bound
func NewTimeoutError(op Operation, id uint64, after time.Duration) *Error {
	return &Error{
		Type:      ErrTypeTimeout,
		Op:        op,
		Message:   fmt.Sprintf("timeout: %s did not complete within %s", op, after),
		RequestID: id,
	}
}

// NewStaleError describes a discarded late completion. It is never sent to clients.
func NewStaleError(op Operation, id, pending uint64) *Error {
	return &Error{
		Type:      ErrTypeStale,
		Op:        op,
		Message:   fmt.Sprintf("result for request %d discarded (pending %d)", id, pending),
		RequestID: id,
	}
}

// NewClosedError creates an error for requests made after the session stopped
func NewClosedError(op Operation) *Error {
	return &Error{Type: ErrTypeClosed, Op: op, Message: "session closed"}
}

func errorType(err error) (ErrorType, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Type, true
	}
	return 0, false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeValidation
}

// IsBusyError checks if an error is a busy rejection
func IsBusyError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeBusy
}

// IsAdapterError checks if an error came from the radio
func IsAdapterError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeAdapter
}

// IsTimeoutError checks if an error is a timeout
func IsTimeoutError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeTimeout
}

// IsClosedError checks if the session had stopped
func IsClosedError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeClosed
}

// WireMessage returns the string placed in a result event's error field.
// Adapter failures are passed through verbatim.
func WireMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}

// ParseWireMessage rebuilds a typed error from the error field of a failed
// result event. Messages the session does not produce itself are treated as
// radio failures.
func ParseWireMessage(op Operation, msg string) *Error {
	switch {
	case msg == BusyMessage:
		return NewBusyError(op)
	case msg == RateLimitMessage:
		return &Error{Type: ErrTypeBusy, Op: op, Message: msg}
	case msg == MissingSSIDMessage, strings.HasPrefix(msg, "invalid "):
		return NewValidationError(op, msg)
	case msg == "session closed":
		return NewClosedError(op)
	case strings.HasPrefix(msg, "timeout: "):
		return &Error{Type: ErrTypeTimeout, Op: op, Message: msg}
	default:
		return &Error{Type: ErrTypeAdapter, Op: op, Message: msg}
	}
}

// GetTroubleshootingHint returns user-facing advice for a failed request
func GetTroubleshootingHint(err error) string {
	var pe *Error
	if !errors.As(err, &pe) {
		return "An unexpected error occurred. Please try again."
	}

	switch pe.Type {
	case ErrTypeBusy:
		return "Another scan or connection attempt is still running. Wait for it to finish and try again."

	case ErrTypeValidation:
		return "Choose a network before connecting."

	case ErrTypeTimeout:
		return strings.Join([]string{
			"The radio did not answer in time.",
			"Troubleshooting:",
			"  • Move the device closer to the access point",
			"  • Check that the network is still broadcasting",
			"  • Try again; the radio may still be finishing the previous attempt",
		}, "\n")

	case ErrTypeAdapter:
		msg := strings.ToLower(pe.Message)
		switch {
		case strings.Contains(msg, "authentication"), strings.Contains(msg, "password"), strings.Contains(msg, "secrets"):
			return strings.Join([]string{
				"The network rejected the credentials.",
				"Troubleshooting:",
				"  • Check the password (it is case sensitive)",
				"  • Leave the password empty only for open networks",
			}, "\n")
		case strings.Contains(msg, "not found"), strings.Contains(msg, "no network"):
			return strings.Join([]string{
				"The network could not be found.",
				"Troubleshooting:",
				"  • Run a new scan and pick the network from the list",
				"  • Check the SSID spelling, including capitalisation",
			}, "\n")
		}
		return "The radio reported an error. Check the device logs for details."

	case ErrTypeClosed:
		return "The provisioning service is shutting down. Restart it and try again."

	default:
		return "An error occurred. Please check the error message for details."
	}
}
