package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/page-auditor/pkg/parse"
	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

// Doer is the outbound request facility supplied by the host environment.
// *http.Client satisfies it. A facility that can complete an exchange but cannot
// expose its metadata returns an error wrapping utils.ErrAccessRestricted.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestMode says how much of the response the caller needs to observe
type RequestMode int

const (
	ModeFull   RequestMode = iota // Status and headers must be readable
	ModeOpaque                    // Only completion matters; metadata may be hidden
)

func (m RequestMode) String() string {
	if m == ModeOpaque {
		return "opaque"
	}
	return "full"
}

type modeKey struct{}

// WithMode tags ctx with a request mode for the facility to honor
func WithMode(ctx context.Context, mode RequestMode) context.Context {
	return context.WithValue(ctx, modeKey{}, mode)
}

// ModeFromContext returns the mode set by WithMode, defaulting to ModeFull
func ModeFromContext(ctx context.Context) RequestMode {
	if m, ok := ctx.Value(modeKey{}).(RequestMode); ok {
		return m
	}
	return ModeFull
}

// Accept headers for the two probe kinds
const (
	AcceptDocument = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	AcceptImage    = "image/*,*/*;q=0.8"
)

// Request describes one outbound probe
type Request struct {
	Method string
	URL    string
	Accept string
	Mode   RequestMode
}

// Fetcher issues probe requests through a Doer with a browser-like header set,
// applying the optional per-host concurrency cap and politeness delay.
type Fetcher struct {
	client    Doer
	userAgent string
	hostSems  *HostSemaphorePool
	limiter   *RateLimiter
	log       *logrus.Entry
}

// FetcherOption configures optional Fetcher behavior
type FetcherOption func(*Fetcher)

// WithHostSemaphores bounds concurrent requests per host
func WithHostSemaphores(pool *HostSemaphorePool) FetcherOption {
	return func(f *Fetcher) { f.hostSems = pool }
}

// WithRateLimiter spaces requests to the same host
func WithRateLimiter(rl *RateLimiter) FetcherOption {
	return func(f *Fetcher) { f.limiter = rl }
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client Doer, userAgent string, log *logrus.Entry, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:    client,
		userAgent: userAgent,
		log:       log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Do performs one request. The caller owns the response body.
// The per-host slot covers the exchange up to response headers and is waited for
// under ctx, which is the probe's own deadline.
func (f *Fetcher) Do(ctx context.Context, r Request) (*http.Response, error) {
	req, err := http.NewRequestWithContext(WithMode(ctx, r.Mode), r.Method, r.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	setBrowserHeaders(req.Header, f.userAgent, r.Accept)

	host := probeHost(req)
	if f.hostSems != nil {
		release, err := f.hostSems.Hold(ctx, host)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, host); err != nil {
			return nil, err
		}
	}

	f.log.WithFields(logrus.Fields{"method": r.Method, "url": r.URL, "mode": r.Mode}).Debug("Sending probe request")
	resp, err := f.client.Do(req)
	if err != nil {
		return resp, transportError(err)
	}
	return resp, nil
}

// probeHost is the key used for per-host limits: the normalized hostname, so
// "Example.com:443" and "example.com" share one budget.
func probeHost(req *http.Request) string {
	if h := parse.ExtractDomain(req.URL.String()); h != "" {
		return h
	}
	return strings.ToLower(req.URL.Hostname())
}

// transportError tags a facility failure with ErrTimeout or ErrNetwork. Policy errors
// raised by the facility itself and cancellation pass through unchanged.
func transportError(err error) error {
	switch {
	case errors.Is(err, utils.ErrAccessRestricted), errors.Is(err, utils.ErrTooManyRedirects),
		errors.Is(err, context.Canceled):
		return err
	case utils.IsTimeout(err):
		return fmt.Errorf("%w: %w", utils.ErrTimeout, err)
	case utils.IsNetworkFailure(err):
		return fmt.Errorf("%w: %w", utils.ErrNetwork, err)
	}
	return err
}

// Discard drains a bounded amount of the body and closes it so the connection can be reused.
func Discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func setBrowserHeaders(h http.Header, userAgent, accept string) {
	if accept == "" {
		accept = AcceptDocument
	}
	h.Set("User-Agent", userAgent)
	h.Set("Accept", accept)
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
}
