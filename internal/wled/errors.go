package wled

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/muurk/wledui/internal/urls"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeHTTP indicates a non-200 response from the board
	ErrTypeHTTP
	// ErrTypeParse indicates the board sent something that isn't valid JSON
	ErrTypeParse
	// ErrTypeValidation indicates a bad argument or a rejected update
	ErrTypeValidation
	// ErrTypeTimeout indicates the board did not answer in time
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing is listening on the port
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a hostname could not be resolved
	ErrTypeDNS
	// ErrTypeCanceled indicates the caller gave up on the request
	ErrTypeCanceled
	// ErrTypeNotWLED indicates the address answered but is not a WLED board
	ErrTypeNotWLED
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeCanceled:
		return "Canceled"
	case ErrTypeNotWLED:
		return "Not WLED"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError is returned by every Client operation.
type DeviceError struct {
	Type           ErrorType
	Message        string
	StatusCode     int    // HTTP status, when the board answered
	BoardMessage   string // "error" field of the board's response body, if any
	Err            error
	NetworkSubtype NetworkErrorSubtype
	IP             string
	Retryable      bool
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError maps a transport error onto a DeviceError.
func ClassifyNetworkError(err error, ip string) *DeviceError {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return &DeviceError{Type: ErrTypeCanceled, Message: "Request canceled", Err: err, IP: ip}
	}

	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return &DeviceError{Type: ErrTypeTimeout, Message: "Request timed out", Err: err, IP: ip, Retryable: true}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &DeviceError{
			Type:    ErrTypeDNS,
			Message: fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:     err,
			IP:      ip,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return &DeviceError{Type: ErrTypeConnectionRefused, Message: "Board refused connection", Err: err, IP: ip, Retryable: true}
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return &DeviceError{Type: ErrTypeNetwork, Message: "Host unreachable", Err: err, IP: ip,
				NetworkSubtype: NetworkErrorHostUnreachable, Retryable: true}
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return &DeviceError{Type: ErrTypeNetwork, Message: "Network unreachable", Err: err, IP: ip,
				NetworkSubtype: NetworkErrorNetworkUnreachable, Retryable: true}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != err {
		return ClassifyNetworkError(urlErr.Err, ip)
	}

	return &DeviceError{Type: ErrTypeNetwork, Message: "Network error occurred", Err: err, IP: ip, Retryable: true}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(ip, message string, err error) *DeviceError {
	classified := ClassifyNetworkError(err, ip)
	if classified == nil {
		return &DeviceError{Type: ErrTypeNetwork, Message: message, IP: ip, Retryable: true}
	}
	if classified.Type != ErrTypeCanceled {
		classified.Message = message
	}
	return classified
}

// NewHTTPError creates an HTTP-level error. boardMsg is the "error" field the
// board put in its body, or empty.
func NewHTTPError(ip string, statusCode int, boardMsg string) *DeviceError {
	return &DeviceError{
		Type:         ErrTypeHTTP,
		Message:      fmt.Sprintf("unexpected status code: %d", statusCode),
		StatusCode:   statusCode,
		BoardMessage: boardMsg,
		IP:           ip,
		Retryable:    statusCode >= 500,
	}
}

// NewParseError creates a parsing error
func NewParseError(ip, message string, err error) *DeviceError {
	return &DeviceError{Type: ErrTypeParse, Message: message, Err: err, IP: ip}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *DeviceError {
	return &DeviceError{Type: ErrTypeValidation, Message: message}
}

// NewNotWLEDError reports an address that answered without a board name.
func NewNotWLEDError(ip string) *DeviceError {
	return &DeviceError{Type: ErrTypeNotWLED, Message: "Not a valid WLED board", IP: ip}
}

func typeOf(err error) (ErrorType, bool) {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Type, true
	}
	return 0, false
}

// IsNetworkError reports timeouts, refusals, DNS failures and other
// transport errors.
func IsNetworkError(err error) bool {
	t, ok := typeOf(err)
	return ok && (t == ErrTypeNetwork || t == ErrTypeTimeout || t == ErrTypeConnectionRefused || t == ErrTypeDNS)
}

// IsCanceled checks if the request was abandoned by its caller
func IsCanceled(err error) bool {
	if t, ok := typeOf(err); ok {
		return t == ErrTypeCanceled
	}
	return errors.Is(err, context.Canceled)
}

// IsNotWLED checks if the address is something other than a WLED board
func IsNotWLED(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeNotWLED
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeValidation
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Retryable
	}
	return false
}

// ShortMessage returns the one-line message shown next to a board. A message
// supplied by the board itself wins over the generic one.
func ShortMessage(err error) string {
	if err == nil {
		return ""
	}
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		if errors.Is(err, context.Canceled) {
			return "Request canceled"
		}
		return err.Error()
	}
	if devErr.BoardMessage != "" {
		return devErr.BoardMessage
	}

	switch devErr.Type {
	case ErrTypeCanceled:
		return "Request canceled"
	case ErrTypeTimeout:
		return "Board not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Board refused connection"
	case ErrTypeDNS:
		return "Cannot resolve board hostname"
	case ErrTypeNetwork:
		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			return "Board unreachable - check network connection"
		case NetworkErrorNetworkUnreachable:
			return "Network unreachable - check WiFi connection"
		default:
			return "Network error - check connection"
		}
	case ErrTypeHTTP:
		return fmt.Sprintf("Board error (HTTP %d)", devErr.StatusCode)
	case ErrTypeParse:
		return "Failed to parse board response"
	default:
		return devErr.Message
	}
}

// TroubleshootingHint returns multi-line advice for the CLI.
func TroubleshootingHint(err error) string {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return "An unexpected error occurred. Please try again."
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The board did not respond in time.",
			"Troubleshooting:",
			"  • Check that the board is powered and joined to your WiFi",
			"  • Try a longer timeout with --timeout",
		}, "\n")
	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"Something answered at this address but refused the connection.",
			"Troubleshooting:",
			"  • Verify the port (WLED listens on 80 by default)",
			"  • Make sure the address belongs to a WLED board",
		}, "\n")
	case ErrTypeNetwork:
		hint := []string{"Network communication failed.", "Troubleshooting:"}
		if devErr.NetworkSubtype == NetworkErrorHostUnreachable && devErr.IP != "" {
			hint = append(hint, "  • Try pinging the board: ping "+devErr.IP)
		}
		hint = append(hint,
			"  • Check that you're on the same network as the board",
			"  • Scan the subnet again; DHCP may have given it a new address",
			"  • More help: "+urls.FAQ,
		)
		return strings.Join(hint, "\n")
	case ErrTypeNotWLED:
		return "The address answered but did not identify as a WLED board. Check the IP.\nSee " + urls.JSONAPI
	case ErrTypeHTTP:
		if devErr.StatusCode >= 500 {
			return fmt.Sprintf("The board returned HTTP %d. Try rebooting it.", devErr.StatusCode)
		}
		return fmt.Sprintf("The board returned HTTP %d. Its firmware may not support this request.", devErr.StatusCode)
	case ErrTypeParse:
		return "The board's response could not be parsed. Check its firmware version.\nSee " + urls.JSONAPI
	default:
		return "An error occurred. Please check the error message for details."
	}
}
