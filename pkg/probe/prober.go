// Package probe turns one raw URL into a terminal ProbeResult. Link targets go through
// the classification state machine and an optional anchor check; image targets add
// data-URI handling, MIME and size validation and the access-restriction fallbacks.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/page-auditor/pkg/config"
	"github.com/Sriram-PR/page-auditor/pkg/fetch"
	"github.com/Sriram-PR/page-auditor/pkg/models"
	"github.com/Sriram-PR/page-auditor/pkg/parse"
	"github.com/Sriram-PR/page-auditor/pkg/policy"
	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

// Prober checks individual link and image targets. It is safe for concurrent use.
type Prober struct {
	fetcher *fetch.Fetcher
	opts    config.CheckOptions
	anchors *AnchorVerifier
	decoder ImageDecoder
	log     *logrus.Entry
}

// Option configures optional Prober behavior
type Option func(*Prober)

// WithImageDecoder replaces the decode facility used as the last access-restriction fallback
func WithImageDecoder(d ImageDecoder) Option {
	return func(p *Prober) { p.decoder = d }
}

// NewProber creates a Prober. The anchor verifier and the default decoder share the fetcher.
func NewProber(fetcher *fetch.Fetcher, opts config.CheckOptions, log *logrus.Entry, options ...Option) *Prober {
	p := &Prober{
		fetcher: fetcher,
		opts:    opts,
		anchors: NewAnchorVerifier(fetcher, opts.AnchorTimeout, opts.MaxAnchorBodyBytes, log),
		decoder: NewHTTPDecoder(fetcher, opts.ImageTimeout, opts.MaxImageSize),
		log:     log,
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// Options returns the resolved options the prober runs with
func (p *Prober) Options() config.CheckOptions {
	return p.opts
}

// Check dispatches on the target kind
func (p *Prober) Check(ctx context.Context, t models.CheckTarget) models.ProbeResult {
	if t.Kind == models.KindImage {
		return p.CheckImage(ctx, t.URL)
	}
	return p.CheckLink(ctx, t.URL)
}

// --- Shared pre-network stage ---

// classifyLocal settles every target that needs no network access. It returns the parsed
// URL and false when the target is checkable and the network phase should run.
func (p *Prober) classifyLocal(r *models.ProbeResult) (*url.URL, bool) {
	r.Resource = parse.Classify(r.URL)
	r.Protocol = parse.ExtractProtocol(r.URL)

	switch r.Resource {
	case models.ResourceFragment:
		r.IsFragment = true
		if p.opts.TreatFragmentsAsValid {
			r.Status = models.StatusSuccess
			r.StatusMessage = "Fragment link"
		} else {
			r.Status = models.StatusSkipped
			r.StatusMessage = "Fragment links are not checked"
		}
		return nil, true

	case models.ResourceSpecialProtocol:
		r.IsSpecialProtocol = true
		r.IsJavaScript = r.Protocol == "javascript"
		if p.opts.IncludeSpecialProtocols {
			r.Status = models.StatusSuccess
			r.StatusMessage = parse.ProtocolMessage(r.Protocol)
		} else {
			r.Status = models.StatusSkipped
			r.StatusMessage = "Special protocols are not checked"
		}
		return nil, true

	case models.ResourceDataURI:
		return nil, false // Handled by the caller

	case models.ResourceUnparseable:
		r.Status = models.StatusInvalid
		r.StatusMessage = "Invalid URL"
		return nil, true
	}

	u, err := parse.ParseCheckable(r.URL)
	if err != nil {
		r.Status = models.StatusInvalid
		r.StatusMessage = "Invalid URL"
		return nil, true
	}
	r.NormalizedURL = u.String()

	host := u.Hostname()
	r.IsProblematicDomain = policy.IsProblematic(host)
	if e, ok := policy.Match(host); ok {
		r.DomainCategory = string(e.Category)
	}

	if re := utils.MatchAny(p.opts.ExcludePatterns, r.NormalizedURL); re != nil {
		r.Status = models.StatusSkipped
		r.StatusMessage = "Excluded by configuration"
		return nil, true
	}
	return u, false
}

// reject settles r with a verdict caused by err and records the error's category
func reject(r *models.ProbeResult, status models.Status, message string, err error) {
	r.Status = status
	r.StatusMessage = message
	r.ErrorCategory = utils.CategorizeError(err)
}

// classifyFailure maps a transport-level failure onto the result, then applies domain policy
func (p *Prober) classifyFailure(r *models.ProbeResult, host string, err error) {
	r.ErrorCategory = utils.CategorizeError(err)
	switch {
	case errors.Is(err, utils.ErrTooManyRedirects):
		r.Status = models.StatusError
		r.StatusMessage = fmt.Sprintf("Too many redirects (max %d)", p.opts.MaxRedirects)
	case errors.Is(err, utils.ErrAccessRestricted):
		r.Status = models.StatusWarning
		r.StatusMessage = "Response not accessible (access restricted)"
		r.IsAccessRestricted = true
	case errors.Is(err, context.Canceled):
		r.Status = models.StatusError
		r.StatusMessage = "Request cancelled"
	case utils.IsTimeout(err):
		r.Status = models.StatusError
		r.StatusMessage = "Request timed out"
	case utils.IsNetworkFailure(err):
		r.Status = models.StatusInvalid
		r.StatusMessage = "Invalid URL or network problem"
	default:
		r.Status = models.StatusError
		r.StatusMessage = "Request failed"
	}
	r.MightBeValid = policy.MightBeValid(r, host)
	policy.ReclassifyFailure(r, host)
}

// permanentErr stops the retry loop for failures another attempt cannot fix
func permanentErr(err error) error {
	if isPermanentFailure(err) {
		return fetch.Permanent(err)
	}
	return err
}

func isPermanentFailure(err error) bool {
	return errors.Is(err, utils.ErrTooManyRedirects) || errors.Is(err, utils.ErrAccessRestricted) ||
		errors.Is(err, utils.ErrRequestCreation)
}

func stamp(r *models.ProbeResult) models.ProbeResult {
	r.Timestamp = time.Now()
	return *r
}
