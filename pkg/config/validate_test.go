package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

func TestAppConfig_Validate_Defaults(t *testing.T) {
	cfg := AppConfig{} // Zero value
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, 5, cfg.Links.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.Links.Timeout)
	assert.Equal(t, 3, cfg.Images.Concurrency)
	assert.Equal(t, 15*time.Second, cfg.Images.Timeout)
	assert.Equal(t, int64(5*1024*1024), cfg.Images.MaxImageSize)
	assert.Equal(t, 5, cfg.MaxRedirects)
	require.NotNil(t, cfg.RetryCount)
	assert.Equal(t, 1, *cfg.RetryCount)
	assert.Equal(t, 1*time.Second, cfg.RetryDelay)
	assert.Equal(t, 10*time.Second, cfg.AnchorTimeout)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxAnchorBodyBytes)
	assert.Equal(t, 0, cfg.MaxRequestsPerHost)

	// Check HTTP client defaults
	assert.Equal(t, 45*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 100, cfg.HTTPClientSettings.MaxIdleConns)
	assert.Equal(t, 10, cfg.HTTPClientSettings.MaxIdleConnsPerHost)
	assert.Equal(t, 90*time.Second, cfg.HTTPClientSettings.IdleConnTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTPClientSettings.TLSHandshakeTimeout)
	assert.Equal(t, 1*time.Second, cfg.HTTPClientSettings.ExpectContinueTimeout)
	assert.Equal(t, 15*time.Second, cfg.HTTPClientSettings.DialerTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTPClientSettings.DialerKeepAlive)
}

func TestAppConfig_Validate_ValidConfig(t *testing.T) {
	cfg := AppConfig{
		Links:              QueueConfig{Concurrency: 8, Timeout: 3 * time.Second},
		MaxRedirects:       2,
		RetryCount:         Int(3),
		RetryDelay:         500 * time.Millisecond,
		AnchorTimeout:      7 * time.Second,
		MaxRequestsPerHost: 4,
		HTTPClientSettings: HTTPClientConfig{
			Timeout:      30 * time.Second,
			MaxIdleConns: 50,
		},
	}

	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)

	// Values should be preserved
	assert.Equal(t, 8, cfg.Links.Concurrency)
	assert.Equal(t, 3*time.Second, cfg.Links.Timeout)
	assert.Equal(t, 2, cfg.MaxRedirects)
	assert.Equal(t, 3, *cfg.RetryCount)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, 7*time.Second, cfg.AnchorTimeout)
	assert.Equal(t, 4, cfg.MaxRequestsPerHost)
	assert.Equal(t, 30*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 50, cfg.HTTPClientSettings.MaxIdleConns)
}

func TestAppConfig_Validate_NegativeValues(t *testing.T) {
	cfg := AppConfig{
		Links:              QueueConfig{Concurrency: -1},
		MaxRedirects:       -2,
		RetryCount:         Int(-1),
		MaxRequestsPerHost: -3,
		DelayPerHost:       -time.Second,
	}
	cfg.Images.Concurrency = -5
	cfg.Images.MaxImageSize = -1

	warnings, err := cfg.Validate()
	require.NoError(t, err)

	assert.True(t, containsWarning(warnings, "links.concurrency should be > 0"))
	assert.True(t, containsWarning(warnings, "images.concurrency should be > 0"))
	assert.True(t, containsWarning(warnings, "images.max_image_size cannot be negative"))
	assert.True(t, containsWarning(warnings, "max_redirects cannot be negative"))
	assert.True(t, containsWarning(warnings, "retry_count cannot be negative"))
	assert.True(t, containsWarning(warnings, "max_requests_per_host cannot be negative"))
	assert.True(t, containsWarning(warnings, "delay_per_host cannot be negative"))

	assert.Equal(t, DefaultLinkConcurrency, cfg.Links.Concurrency)
	assert.Equal(t, DefaultImageConcurrency, cfg.Images.Concurrency)
	assert.Equal(t, int64(DefaultMaxImageSize), cfg.Images.MaxImageSize)
	assert.Equal(t, DefaultMaxRedirects, cfg.MaxRedirects)
	assert.Equal(t, 0, *cfg.RetryCount)
	assert.Equal(t, 0, cfg.MaxRequestsPerHost)
	assert.Equal(t, time.Duration(0), cfg.DelayPerHost)
}

func TestAppConfig_Validate_StructRules(t *testing.T) {
	cfg := AppConfig{
		Links:        QueueConfig{Concurrency: 500},
		MaxRedirects: 99,
	}

	_, err := cfg.Validate()

	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrConfigValidation))
	assert.Contains(t, err.Error(), "Concurrency")
	assert.Contains(t, err.Error(), "MaxRedirects")
}

func TestAppConfig_Validate_BadExcludePattern(t *testing.T) {
	cfg := AppConfig{ExcludePatterns: []string{`[unclosed`}}

	_, err := cfg.Validate()

	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrConfigValidation))
	assert.Contains(t, err.Error(), "[unclosed")
}

func TestAppConfig_Validate_AnchorWithoutRedirects(t *testing.T) {
	cfg := AppConfig{CheckAnchors: true, FollowRedirects: Bool(false)}
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.True(t, containsWarning(warnings, "check_anchors is enabled but follow_redirects is false"))
}

func TestAppConfig_Validate_CacheDefaults(t *testing.T) {
	cfg := AppConfig{Cache: CacheConfig{Enabled: true}}
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, DefaultCacheTTL, cfg.Cache.TTL)
	assert.True(t, containsWarning(warnings, "cache.dir is empty"))
}

func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
