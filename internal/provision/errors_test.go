package provision

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorTypeString(t *testing.T) {
	tests := []struct {
		errType  ErrorType
		expected string
	}{
		{ErrTypeValidation, "Validation Error"},
		{ErrTypeBusy, "Busy"},
		{ErrTypeAdapter, "Adapter Error"},
		{ErrTypeTimeout, "Timeout"},
		{ErrTypeStale, "Stale Result"},
		{ErrTypeClosed, "Session Closed"},
		{ErrorType(42), "ErrorType(42)"},
	}

	for _, tt := range tests {
		if got := tt.errType.String(); got != tt.expected {
			t.Errorf("ErrorType(%d).String() = %q, want %q", tt.errType, got, tt.expected)
		}
	}
}

func TestWireMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"busy", NewBusyError(OpScan), "operation in progress"},
		{"validation", NewValidationError(OpConnect, MissingSSIDMessage), "ssid is required"},
		{"adapter verbatim", NewAdapterError(OpConnect, 3, errors.New("authentication failed")), "authentication failed"},
		{"timeout", NewTimeoutError(OpConnect, 4, 30*time.Second), "timeout: connect did not complete within 30s"},
		{"wrapped", fmt.Errorf("gateway: %w", NewBusyError(OpScan)), "operation in progress"},
		{"plain", errors.New("other"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WireMessage(tt.err); got != tt.want {
				t.Errorf("WireMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("nmcli exited 4")
	err := NewAdapterError(OpConnect, 1, cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the radio error")
	}
	if !IsAdapterError(err) {
		t.Error("IsAdapterError() = false")
	}
	if IsTimeoutError(err) || IsBusyError(err) || IsValidationError(err) {
		t.Error("adapter error matched another type")
	}
	if err.Error() != "Adapter Error: nmcli exited 4" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestNewAdapterErrorEmptyMessage(t *testing.T) {
	err := NewAdapterError(OpScan, 1, errors.New(""))
	if err.Message != "unknown radio error" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestGetTroubleshootingHint(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"auth", NewAdapterError(OpConnect, 1, errors.New("authentication failed")), "credentials"},
		{"not found", NewAdapterError(OpConnect, 1, errors.New("network not found")), "could not be found"},
		{"timeout", NewTimeoutError(OpScan, 1, time.Second), "did not answer"},
		{"busy", NewBusyError(OpScan), "still running"},
		{"unknown", errors.New("x"), "unexpected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hint := GetTroubleshootingHint(tt.err)
			if !strings.Contains(hint, tt.contains) {
				t.Errorf("hint %q does not contain %q", hint, tt.contains)
			}
		})
	}
}

func TestParseWireMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want ErrorType
	}{
		{BusyMessage, ErrTypeBusy},
		{RateLimitMessage, ErrTypeBusy},
		{MissingSSIDMessage, ErrTypeValidation},
		{"invalid connect_wifi payload", ErrTypeValidation},
		{"session closed", ErrTypeClosed},
		{NewTimeoutError(OpConnect, 3, 30*time.Second).Message, ErrTypeTimeout},
		{"authentication failed", ErrTypeAdapter},
		{"timeout while waiting", ErrTypeAdapter},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := ParseWireMessage(OpConnect, tt.msg)
			if err.Type != tt.want {
				t.Errorf("ParseWireMessage(%q).Type = %v, want %v", tt.msg, err.Type, tt.want)
			}
			if WireMessage(err) != tt.msg {
				t.Errorf("WireMessage round trip = %q, want %q", WireMessage(err), tt.msg)
			}
		})
	}
}
