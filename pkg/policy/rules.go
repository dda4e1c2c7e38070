package policy

import (
	"fmt"

	"github.com/Sriram-PR/page-auditor/pkg/models"
)

// Client errors that anti-bot layers commonly answer with instead of the real page
var softBlockCodes = map[int]bool{
	403: true, // Forbidden
	418: true, // I'm a teapot
	429: true, // Too Many Requests
}

// RetryBudget returns how many extra attempts a probe against host gets.
// Only registered domains are retried.
func RetryBudget(host string, base int) int {
	if base <= 0 || !IsProblematic(host) {
		return 0
	}
	return base
}

// ReclassifyResponse downgrades anti-bot style client errors from registered domains to warnings.
// The raw status code is kept on the result.
func ReclassifyResponse(r *models.ProbeResult) {
	if !r.IsProblematicDomain || r.Status != models.StatusClientError || !softBlockCodes[r.StatusCode] {
		return
	}
	r.Status = models.StatusWarning
	r.StatusMessage = fmt.Sprintf("Error %d - possible anti-scraping protection", r.StatusCode)
}

// ReclassifyFailure softens a transport-level failure. Registered domains become warnings;
// an invalid result against a social platform becomes a warning as well.
func ReclassifyFailure(r *models.ProbeResult, host string) {
	if r.Status != models.StatusError && r.Status != models.StatusInvalid {
		return
	}
	if r.IsProblematicDomain {
		r.Status = models.StatusWarning
		r.StatusMessage = "Site potentially protected: " + r.StatusMessage
	}
	if r.Status == models.StatusInvalid && IsSocial(host) {
		r.Status = models.StatusWarning
		r.StatusMessage = "Social media links may be valid even if unverifiable"
	}
}

// MightBeValid reports whether a failed result is plausibly a false negative:
// a social or registered domain that failed, or a response that could not be observed.
func MightBeValid(r *models.ProbeResult, host string) bool {
	if r.IsAccessRestricted {
		return true
	}
	switch r.Status {
	case models.StatusInvalid, models.StatusError, models.StatusClientError:
	default:
		return false
	}
	return IsSocial(host) || IsProblematic(host)
}
