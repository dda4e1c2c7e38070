package config

import (
	"regexp"
	"time"
)

// DefaultUserAgent is sent on outbound probes unless overridden
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// QueueConfig holds the per-queue worker pool settings
type QueueConfig struct {
	Concurrency int           `yaml:"concurrency,omitempty" validate:"omitempty,min=1,max=100"`
	Timeout     time.Duration `yaml:"timeout,omitempty"` // Per-attempt probe deadline
}

// ImageConfig extends QueueConfig with image-specific policy
type ImageConfig struct {
	QueueConfig     `yaml:",inline"`
	MaxImageSize    int64 `yaml:"max_image_size,omitempty" validate:"omitempty,min=0"` // Bytes; exceeding it hard-fails the probe
	AllowDataURLs   *bool `yaml:"allow_data_urls,omitempty"`                             // nil = default (true)
	CheckDimensions *bool `yaml:"check_dimensions,omitempty"`                            // nil = default (true)
	OpaqueFallback  *bool `yaml:"opaque_fallback,omitempty"`                             // Metadata-blind re-request on access restriction
	DecodeFallback  *bool `yaml:"decode_fallback,omitempty"`                             // Image-decode facility on access restriction
}

// CacheConfig controls the optional probe-result cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled,omitempty"`
	Dir     string        `yaml:"dir,omitempty"` // Empty = in-memory
	TTL     time.Duration `yaml:"ttl,omitempty"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	UserAgent               string           `yaml:"user_agent,omitempty"`
	Links                   QueueConfig      `yaml:"links,omitempty"`
	Images                  ImageConfig      `yaml:"images,omitempty"`
	MaxRedirects            int              `yaml:"max_redirects,omitempty" validate:"omitempty,min=0,max=50"`
	FollowRedirects         *bool            `yaml:"follow_redirects,omitempty"`
	CheckAnchors            bool             `yaml:"check_anchors,omitempty"`
	CheckExternal           *bool            `yaml:"check_external,omitempty"`
	CheckImages             *bool            `yaml:"check_images,omitempty"`
	RetryCount              *int             `yaml:"retry_count,omitempty" validate:"omitempty,min=0,max=10"`
	RetryDelay              time.Duration    `yaml:"retry_delay,omitempty"`
	TreatFragmentsAsValid   *bool            `yaml:"treat_fragments_as_valid,omitempty"`
	IncludeSpecialProtocols *bool            `yaml:"include_special_protocols,omitempty"`
	AnchorTimeout           time.Duration    `yaml:"anchor_timeout,omitempty"`
	MaxAnchorBodyBytes      int64            `yaml:"max_anchor_body_bytes,omitempty" validate:"omitempty,min=0"`
	MaxRequestsPerHost      int              `yaml:"max_requests_per_host,omitempty" validate:"omitempty,min=0"` // 0 = unbounded
	DelayPerHost            time.Duration    `yaml:"delay_per_host,omitempty"`                                  // 0 = no politeness delay
	ExcludePatterns         []string         `yaml:"exclude_patterns,omitempty" validate:"dive,required"`
	Cache                   CacheConfig      `yaml:"cache,omitempty"`
	HTTPClientSettings      HTTPClientConfig `yaml:"http_client_settings,omitempty"`

	excludeRegexps []*regexp.Regexp // Compiled by Validate
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Upper bound on a whole exchange; probes use shorter deadlines
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
	InsecureSkipVerify    bool          `yaml:"insecure_skip_verify,omitempty"`    // Accept any TLS certificate
}

func boolOr(p *bool, def bool) bool {
	if p != nil {
		return *p
	}
	return def
}

// Bool returns a pointer to b, for tri-state config fields
func Bool(b bool) *bool { return &b }

// Int returns a pointer to i, for tri-state config fields
func Int(i int) *int { return &i }
