package fetch

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/page-auditor/pkg/config"
	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

// RedirectPolicy controls how the client treats 3xx responses
type RedirectPolicy struct {
	Follow  bool // false = report the 3xx as-is
	MaxHops int  // exceeding it fails the request with utils.ErrTooManyRedirects
}

// NewClient creates a new HTTP client based on the provided configuration.
func NewClient(cfg config.HTTPClientConfig, redirects RedirectPolicy, log *logrus.Entry) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.DialerTimeout,
		KeepAlive: cfg.DialerKeepAlive,
	}

	transport := &http.Transport{
		Proxy:                  http.ProxyFromEnvironment,
		DialContext:            dialer.DialContext,
		ForceAttemptHTTP2:      true,
		MaxIdleConns:           cfg.MaxIdleConns,
		MaxIdleConnsPerHost:    cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:        cfg.IdleConnTimeout,
		TLSHandshakeTimeout:    cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout:  cfg.ExpectContinueTimeout,
		MaxResponseHeaderBytes: 1 << 20,
	}
	if cfg.ForceAttemptHTTP2 != nil {
		transport.ForceAttemptHTTP2 = *cfg.ForceAttemptHTTP2
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in
	}

	client := &http.Client{
		Timeout:       cfg.Timeout,
		Transport:     transport,
		CheckRedirect: checkRedirect(redirects, log),
	}
	log.WithFields(logrus.Fields{
		"follow_redirects": redirects.Follow,
		"max_redirects":    redirects.MaxHops,
	}).Debug("HTTP client initialized")
	return client
}

func checkRedirect(policy RedirectPolicy, log *logrus.Entry) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if !policy.Follow {
			return http.ErrUseLastResponse
		}
		if len(via) > policy.MaxHops {
			return fmt.Errorf("%w: stopped after %d redirects", utils.ErrTooManyRedirects, policy.MaxHops)
		}
		log.Debugf("Redirecting: %s -> %s (hop %d)", via[len(via)-1].URL, req.URL, len(via))
		return nil
	}
}
