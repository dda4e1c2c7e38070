package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

// CheckOptions is the flattened, defaulted view of AppConfig consumed by the probe engine.
// Build it with AppConfig.Resolve after Validate.
type CheckOptions struct {
	UserAgent               string
	LinkConcurrency         int
	ImageConcurrency        int
	LinkTimeout             time.Duration
	ImageTimeout            time.Duration
	MaxRedirects            int
	FollowRedirects         bool
	CheckAnchors            bool
	CheckExternal           bool
	CheckImages             bool
	RetryCount              int
	RetryDelay              time.Duration
	TreatFragmentsAsValid   bool
	IncludeSpecialProtocols bool
	MaxImageSize            int64
	AllowDataURLs           bool
	CheckDimensions         bool
	OpaqueFallback          bool
	DecodeFallback          bool
	AnchorTimeout           time.Duration
	MaxAnchorBodyBytes      int64
	ExcludePatterns         []*regexp.Regexp
}

// Resolve flattens the config into CheckOptions. Validate must have been called first;
// compiled exclude patterns are taken from that pass.
func (c *AppConfig) Resolve() CheckOptions {
	return CheckOptions{
		UserAgent:               c.UserAgent,
		LinkConcurrency:         c.Links.Concurrency,
		ImageConcurrency:        c.Images.Concurrency,
		LinkTimeout:             c.Links.Timeout,
		ImageTimeout:            c.Images.Timeout,
		MaxRedirects:            c.MaxRedirects,
		FollowRedirects:         boolOr(c.FollowRedirects, true),
		CheckAnchors:            c.CheckAnchors,
		CheckExternal:           boolOr(c.CheckExternal, true),
		CheckImages:             boolOr(c.CheckImages, true),
		RetryCount:              intOr(c.RetryCount, DefaultRetryCount),
		RetryDelay:              c.RetryDelay,
		TreatFragmentsAsValid:   boolOr(c.TreatFragmentsAsValid, true),
		IncludeSpecialProtocols: boolOr(c.IncludeSpecialProtocols, true),
		MaxImageSize:            c.Images.MaxImageSize,
		AllowDataURLs:           boolOr(c.Images.AllowDataURLs, true),
		CheckDimensions:         boolOr(c.Images.CheckDimensions, true),
		OpaqueFallback:          boolOr(c.Images.OpaqueFallback, true),
		DecodeFallback:          boolOr(c.Images.DecodeFallback, true),
		AnchorTimeout:           c.AnchorTimeout,
		MaxAnchorBodyBytes:      c.MaxAnchorBodyBytes,
		ExcludePatterns:         c.excludeRegexps,
	}
}

// CacheProfile fingerprints the options that can change the verdict of a network probe.
// Cached results are only shared between runs with the same profile.
func (o CheckOptions) CacheProfile() string {
	key := fmt.Sprintf("ua=%s;follow=%t;max_redirects=%d;anchors=%t;anchor_bytes=%d;retries=%d;max_image=%d;dims=%t;opaque=%t;decode=%t",
		o.UserAgent, o.FollowRedirects, o.MaxRedirects, o.CheckAnchors, o.MaxAnchorBodyBytes, o.RetryCount,
		o.MaxImageSize, o.CheckDimensions, o.OpaqueFallback, o.DecodeFallback)
	return utils.CalculateStringSHA256(key)[:16]
}

func intOr(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}
