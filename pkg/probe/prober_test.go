package probe

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/Sriram-PR/page-auditor/pkg/config"
	"github.com/Sriram-PR/page-auditor/pkg/fetch"
	"github.com/Sriram-PR/page-auditor/pkg/models"
)

// --- Test helpers ---

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func testConfig() config.AppConfig {
	cfg := config.AppConfig{
		RetryDelay: 10 * time.Millisecond,
		Links:      config.QueueConfig{Timeout: 2 * time.Second},
	}
	cfg.Images.Timeout = 2 * time.Second
	if _, err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

func testOptions() config.CheckOptions {
	cfg := testConfig()
	return cfg.Resolve()
}

func newTestProber(client fetch.Doer, opts config.CheckOptions, options ...Option) *Prober {
	return NewProber(fetch.NewFetcher(client, opts.UserAgent, testLogger()), opts, testLogger(), options...)
}

// routedClient sends every request, whatever its host, to server. It lets tests probe
// registered domains such as www.linkedin.com without leaving the machine.
func routedClient(server *httptest.Server, redirects fetch.RedirectPolicy) *http.Client {
	cfg := testConfig()
	client := fetch.NewClient(cfg.HTTPClientSettings, redirects, testLogger())
	addr := server.Listener.Addr().String()
	client.Transport = &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
	return client
}

func followAll() fetch.RedirectPolicy {
	return fetch.RedirectPolicy{Follow: true, MaxHops: config.DefaultMaxRedirects}
}

// unreachableDoer fails the test if a probe touches the network
type unreachableDoer struct{ t *testing.T }

func (d unreachableDoer) Do(req *http.Request) (*http.Response, error) {
	d.t.Errorf("unexpected request to %s", req.URL)
	return nil, errors.New("unexpected request")
}

// flakyDoer fails the first `failures` calls with err, then answers 200
type flakyDoer struct {
	failures int32
	err      error
	calls    atomic.Int32
}

func (d *flakyDoer) Do(req *http.Request) (*http.Response, error) {
	if d.calls.Add(1) <= d.failures {
		return nil, d.err
	}
	return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: http.NoBody, Request: req}, nil
}

func dialError() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
}

// --- Local classification ---

func TestCheckLink_Fragment(t *testing.T) {
	opts := testOptions()
	p := newTestProber(unreachableDoer{t}, opts)

	r := p.CheckLink(context.Background(), "#section")
	assert.Equal(t, models.StatusSuccess, r.Status)
	assert.True(t, r.IsFragment)
	assert.Equal(t, models.ResourceFragment, r.Resource)
	assert.False(t, r.Timestamp.IsZero())

	opts.TreatFragmentsAsValid = false
	p = newTestProber(unreachableDoer{t}, opts)
	assert.Equal(t, models.StatusSkipped, p.CheckLink(context.Background(), "#section").Status)
}

func TestCheckLink_SpecialProtocols(t *testing.T) {
	opts := testOptions()
	p := newTestProber(unreachableDoer{t}, opts)

	mail := p.CheckLink(context.Background(), "mailto:a@b.com")
	assert.Equal(t, models.StatusSuccess, mail.Status)
	assert.Equal(t, "mailto", mail.Protocol)
	assert.True(t, mail.IsSpecialProtocol)
	assert.False(t, mail.IsJavaScript)

	js := p.CheckLink(context.Background(), "javascript:void(0)")
	assert.Equal(t, models.StatusSuccess, js.Status)
	assert.True(t, js.IsJavaScript)
	assert.NotEqual(t, mail.StatusMessage, js.StatusMessage)

	opts.IncludeSpecialProtocols = false
	p = newTestProber(unreachableDoer{t}, opts)
	assert.Equal(t, models.StatusSkipped, p.CheckLink(context.Background(), "tel:+15551234").Status)
}

func TestCheckLink_Unparseable(t *testing.T) {
	p := newTestProber(unreachableDoer{t}, testOptions())

	for _, raw := range []string{"http://", "gopher://example.com/x", "   "} {
		r := p.CheckLink(context.Background(), raw)
		assert.Equal(t, models.StatusInvalid, r.Status, "CheckLink(%q)", raw)
		assert.Equal(t, raw, r.URL)
	}
}

func TestCheckLink_ExcludePatterns(t *testing.T) {
	opts := testOptions()
	opts.ExcludePatterns = []*regexp.Regexp{regexp.MustCompile(`/private/`)}
	p := newTestProber(unreachableDoer{t}, opts)

	r := p.CheckLink(context.Background(), "https://example.com/private/page")
	assert.Equal(t, models.StatusSkipped, r.Status)
	assert.Equal(t, "https://example.com/private/page", r.NormalizedURL)
}

func TestCheckLink_DataURI(t *testing.T) {
	p := newTestProber(unreachableDoer{t}, testOptions())

	ok := p.CheckLink(context.Background(), "data:text/plain,hello")
	assert.Equal(t, models.StatusSuccess, ok.Status)
	assert.True(t, ok.IsDataURI)

	bad := p.CheckLink(context.Background(), "data:text/plain")
	assert.Equal(t, models.StatusInvalid, bad.Status)
}

func TestCheck_DispatchesOnKind(t *testing.T) {
	p := newTestProber(unreachableDoer{t}, testOptions())

	r := p.Check(context.Background(), models.CheckTarget{URL: "data:image/png;base64", Kind: models.KindImage})
	assert.Equal(t, models.KindImage, r.Kind)
	r = p.Check(context.Background(), models.CheckTarget{URL: "#top"})
	assert.Equal(t, models.KindLink, r.Kind)
}
