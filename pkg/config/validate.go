package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

// Defaults applied by Validate
const (
	DefaultLinkConcurrency    = 5
	DefaultImageConcurrency   = 3
	DefaultLinkTimeout        = 10 * time.Second
	DefaultImageTimeout       = 15 * time.Second
	DefaultMaxRedirects       = 5
	DefaultRetryCount         = 1
	DefaultRetryDelay         = 1 * time.Second
	DefaultMaxImageSize       = 5 * 1024 * 1024
	DefaultMaxAnchorBodyBytes = 10 * 1024 * 1024
	DefaultCacheTTL           = 1 * time.Hour
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	// Queues
	if c.Links.Concurrency < 0 {
		warnings = append(warnings, fmt.Sprintf("links.concurrency should be > 0, defaulting to %d", DefaultLinkConcurrency))
	}
	if c.Links.Concurrency <= 0 {
		c.Links.Concurrency = DefaultLinkConcurrency
	}
	if c.Links.Timeout <= 0 {
		c.Links.Timeout = DefaultLinkTimeout
	}
	if c.Images.Concurrency < 0 {
		warnings = append(warnings, fmt.Sprintf("images.concurrency should be > 0, defaulting to %d", DefaultImageConcurrency))
	}
	if c.Images.Concurrency <= 0 {
		c.Images.Concurrency = DefaultImageConcurrency
	}
	if c.Images.Timeout <= 0 {
		c.Images.Timeout = DefaultImageTimeout
	}
	if c.Images.MaxImageSize < 0 {
		warnings = append(warnings, "images.max_image_size cannot be negative, using default")
	}
	if c.Images.MaxImageSize <= 0 {
		c.Images.MaxImageSize = DefaultMaxImageSize
	}

	// Redirects
	if c.MaxRedirects < 0 {
		warnings = append(warnings, fmt.Sprintf("max_redirects cannot be negative, defaulting to %d", DefaultMaxRedirects))
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = DefaultMaxRedirects
	}

	// Retries
	if c.RetryCount == nil {
		c.RetryCount = Int(DefaultRetryCount)
	} else if *c.RetryCount < 0 {
		warnings = append(warnings, "retry_count cannot be negative, setting to 0")
		c.RetryCount = Int(0)
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}

	// Anchors
	if c.AnchorTimeout <= 0 {
		c.AnchorTimeout = c.Links.Timeout
	}
	if c.MaxAnchorBodyBytes <= 0 {
		c.MaxAnchorBodyBytes = DefaultMaxAnchorBodyBytes
	}
	if c.CheckAnchors && c.FollowRedirects != nil && !*c.FollowRedirects {
		warnings = append(warnings, "check_anchors is enabled but follow_redirects is false; anchors on redirected pages will not be checked")
	}

	// Per-host politeness
	if c.MaxRequestsPerHost < 0 {
		warnings = append(warnings, "max_requests_per_host cannot be negative, disabling per-host limit")
		c.MaxRequestsPerHost = 0
	}
	if c.DelayPerHost < 0 {
		warnings = append(warnings, "delay_per_host cannot be negative, disabling delay")
		c.DelayPerHost = 0
	}

	// Cache
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		warnings = append(warnings, "cache.dir is empty, probe results are cached in memory for this process only")
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	// Struct-tag rules run after defaults so zero values never trip them
	if err := validateStruct(c); err != nil {
		return warnings, err
	}

	compiled, err := utils.CompileRegexPatterns(c.ExcludePatterns)
	if err != nil {
		return warnings, err
	}
	c.excludeRegexps = compiled

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 10
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

var structValidator = validator.New()

// validateStruct runs the `validate` struct tags and flattens failures into one error.
func validateStruct(c *AppConfig) error {
	err := structValidator.Struct(c)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("%w: %v", utils.ErrConfigValidation, err)
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := fmt.Sprintf("'%s' failed rule '%s'", e.Namespace(), e.Tag())
		if e.Param() != "" {
			msg += fmt.Sprintf(" (expected: %s)", e.Param())
		}
		msg += fmt.Sprintf(", actual: '%v'", e.Value())
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%w: %s", utils.ErrConfigValidation, strings.Join(msgs, "; "))
}
