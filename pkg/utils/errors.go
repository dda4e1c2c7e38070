package utils

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRetryFailed      = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrTimeout          = errors.New("request timed out")
	ErrNetwork          = errors.New("network error")
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrAccessRestricted = errors.New("response metadata not accessible") // Returned by a host facility for cross-origin-style restrictions
	ErrInvalidDataURI   = errors.New("invalid data URI")
	ErrNotImage         = errors.New("content is not an image")
	ErrImageTooLarge    = errors.New("image exceeds maximum size")
	ErrDecode           = errors.New("image decode failed")
	ErrParsing          = errors.New("parsing error")  // Wraps specific parsing error (HTML, URL)
	ErrDatabase         = errors.New("database error") // Wraps badger errors
	ErrSemaphoreTimeout = errors.New("timeout acquiring semaphore")
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrConfigValidation = errors.New("configuration validation error")
	ErrRunActive        = errors.New("an audit run is already active")
	ErrRunNotFound      = errors.New("audit run not found")
)

// WrapErrorf annotates err with a formatted message, keeping it inspectable with errors.Is.
// Returns nil when err is nil.
func WrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// IsTimeout reports whether err represents an expired deadline at any layer.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsNetworkFailure reports whether err is a connection-level failure: DNS,
// refused/reset connections, TLS problems or a malformed request URL.
func IsNetworkFailure(err error) bool {
	if err == nil || IsTimeout(err) {
		return false
	}
	if errors.Is(err, ErrNetwork) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var certErr x509.UnknownAuthorityError
	if errors.As(err, &certErr) {
		return true
	}
	var hostErr x509.HostnameError
	if errors.As(err, &hostErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var parseErr url.InvalidHostError
		if errors.As(urlErr.Err, &parseErr) {
			return true
		}
	}
	lower := strings.ToLower(err.Error())
	for _, s := range []string{"no such host", "connection refused", "reset by peer", "tls", "certificate", "unsupported protocol scheme", "eof"} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// CategorizeError maps an error to a predefined category string for logging/metrics.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	// Check against sentinel errors first
	switch {
	case errors.Is(err, ErrRetryFailed):
		if err == ErrRetryFailed { // bare sentinel, nothing wrapped
			return "RetryFailed_Unknown"
		}
		if IsTimeout(err) {
			return "RetryFailed_NetworkTimeout"
		}
		errMsg := strings.ToLower(err.Error())
		if strings.Contains(errMsg, "connection refused") {
			return "RetryFailed_ConnectionRefused"
		}
		if strings.Contains(errMsg, "no such host") {
			return "RetryFailed_DNSLookup"
		}
		return "RetryFailed_NetworkOther"
	case errors.Is(err, ErrTooManyRedirects):
		return "Policy_TooManyRedirects"
	case errors.Is(err, ErrAccessRestricted):
		return "Policy_AccessRestricted"
	case errors.Is(err, ErrTimeout):
		return "Network_Timeout"
	case errors.Is(err, ErrInvalidDataURI):
		return "Content_InvalidDataURI"
	case errors.Is(err, ErrNotImage):
		return "Content_NotImage"
	case errors.Is(err, ErrImageTooLarge):
		return "Content_ImageTooLarge"
	case errors.Is(err, ErrDecode):
		return "Content_Decode"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrSemaphoreTimeout):
		return "Resource_SemaphoreTimeout"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	case errors.Is(err, ErrRunActive):
		return "Run_Active"
	case errors.Is(err, ErrRunNotFound):
		return "Run_NotFound"
	case errors.Is(err, ErrNetwork):
		return "Network_Other"
	}

	// --- Fallback checks for common underlying error types/strings ---

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		if strings.Contains(err.Error(), "semaphore") {
			return "Resource_SemaphoreTimeout"
		}
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"):
		return "Network_TimeoutGeneric"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	case strings.Contains(lowerErrMsg, "broken pipe"):
		return "Network_BrokenPipe"
	}

	return "Unknown"
}
