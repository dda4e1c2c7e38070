package models

import "net/http"

// Status is the terminal health classification of a probed resource
type Status string

const (
	StatusUnset       Status = ""            // Zero value = not yet probed
	StatusSuccess     Status = "success"     // 2xx or trivially valid target
	StatusRedirect    Status = "redirect"    // 3xx reported as-is
	StatusInfo        Status = "info"        // 1xx
	StatusWarning     Status = "warning"     // Likely false negative (anti-bot, missing anchor, restricted)
	StatusClientError Status = "clientError" // 4xx
	StatusServerError Status = "serverError" // 5xx
	StatusInvalid     Status = "invalid"     // Malformed input, non-probeable scheme or wrong content
	StatusError       Status = "error"       // Transport or timeout failure, or hard policy failure
	StatusSkipped     Status = "skipped"     // Configuration opt-out
)

// AllStatuses lists every terminal status in display order
var AllStatuses = []Status{
	StatusSuccess, StatusRedirect, StatusInfo, StatusWarning, StatusClientError,
	StatusServerError, StatusInvalid, StatusError, StatusSkipped,
}

// String implements fmt.Stringer for logging
func (s Status) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is one of the terminal values
func (s Status) IsValid() bool {
	switch s {
	case StatusSuccess, StatusRedirect, StatusInfo, StatusWarning, StatusClientError,
		StatusServerError, StatusInvalid, StatusError, StatusSkipped:
		return true
	}
	return false
}

// IsFailure reports whether the status counts as a failed check
func (s Status) IsFailure() bool {
	return s.Bucket() == BucketErrors
}

// Bucket groups statuses for summary counts
type Bucket string

const (
	BucketSuccess  Bucket = "success"
	BucketWarnings Bucket = "warnings"
	BucketErrors   Bucket = "errors"
	BucketOther    Bucket = "other"
)

// Bucket returns the summary group a status is counted in.
// Redirects and skips are grouped with warnings; info has no group.
func (s Status) Bucket() Bucket {
	switch s {
	case StatusSuccess:
		return BucketSuccess
	case StatusRedirect, StatusWarning, StatusSkipped:
		return BucketWarnings
	case StatusError, StatusClientError, StatusServerError, StatusInvalid:
		return BucketErrors
	}
	return BucketOther
}

// CategorizeStatusCode maps an HTTP status code to its status class
func CategorizeStatusCode(code int) Status {
	switch {
	case code >= 100 && code < 200:
		return StatusInfo
	case code >= 200 && code < 300:
		return StatusSuccess
	case code >= 300 && code < 400:
		return StatusRedirect
	case code >= 400 && code < 500:
		return StatusClientError
	case code >= 500 && code < 600:
		return StatusServerError
	}
	return StatusError
}

// StatusCodeMessage returns the reason phrase for an HTTP status code
func StatusCodeMessage(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Unknown Status"
}
