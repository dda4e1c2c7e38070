package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// recordingDoer captures requests and returns a canned response
type recordingDoer struct {
	mu    sync.Mutex
	reqs  []*http.Request
	modes []RequestMode
	err   error
}

func (d *recordingDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	d.reqs = append(d.reqs, req)
	d.modes = append(d.modes, ModeFromContext(req.Context()))
	d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

func TestFetcher_SetsBrowserHeaders(t *testing.T) {
	var gotUA, gotAccept, gotLang, gotCache atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		gotAccept.Store(r.Header.Get("Accept"))
		gotLang.Store(r.Header.Get("Accept-Language"))
		gotCache.Store(r.Header.Get("Cache-Control"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := NewFetcher(server.Client(), "TestAgent/1.0", testLogger())
	resp, err := f.Do(context.Background(), Request{Method: http.MethodHead, URL: server.URL, Accept: AcceptImage})
	require.NoError(t, err)
	Discard(resp)

	assert.Equal(t, "TestAgent/1.0", gotUA.Load())
	assert.Equal(t, AcceptImage, gotAccept.Load())
	assert.Equal(t, "en-US,en;q=0.5", gotLang.Load())
	assert.Equal(t, "no-cache", gotCache.Load())
}

func TestFetcher_DefaultAcceptIsDocument(t *testing.T) {
	doer := &recordingDoer{}
	f := NewFetcher(doer, "UA", testLogger())

	resp, err := f.Do(context.Background(), Request{Method: http.MethodGet, URL: "https://example.com/"})
	require.NoError(t, err)
	Discard(resp)

	require.Len(t, doer.reqs, 1)
	assert.Equal(t, AcceptDocument, doer.reqs[0].Header.Get("Accept"))
	assert.Equal(t, "no-cache", doer.reqs[0].Header.Get("Pragma"))
}

func TestFetcher_PropagatesMode(t *testing.T) {
	doer := &recordingDoer{}
	f := NewFetcher(doer, "UA", testLogger())

	_, err := f.Do(context.Background(), Request{Method: http.MethodGet, URL: "https://example.com/a.png", Mode: ModeOpaque})
	require.NoError(t, err)
	_, err = f.Do(context.Background(), Request{Method: http.MethodGet, URL: "https://example.com/b.png"})
	require.NoError(t, err)

	assert.Equal(t, []RequestMode{ModeOpaque, ModeFull}, doer.modes)
	assert.Equal(t, "opaque", ModeOpaque.String())
	assert.Equal(t, ModeFull, ModeFromContext(context.Background()))
}

func TestFetcher_RequestCreationError(t *testing.T) {
	f := NewFetcher(&recordingDoer{}, "UA", testLogger())
	_, err := f.Do(context.Background(), Request{Method: "BAD METHOD", URL: "https://example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRequestCreation)
}

func TestFetcher_PassesThroughDoerError(t *testing.T) {
	f := NewFetcher(&recordingDoer{err: utils.ErrAccessRestricted}, "UA", testLogger())
	_, err := f.Do(context.Background(), Request{Method: http.MethodGet, URL: "https://example.com"})
	assert.True(t, errors.Is(err, utils.ErrAccessRestricted))
	assert.False(t, errors.Is(err, utils.ErrNetwork))
}

type deadlineErr struct{}

func (deadlineErr) Error() string   { return "i/o timeout" }
func (deadlineErr) Timeout() bool   { return true }
func (deadlineErr) Temporary() bool { return true }

func TestFetcher_TagsTransportFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"Timeout", &url.Error{Op: "Head", URL: "https://example.com", Err: deadlineErr{}}, utils.ErrTimeout},
		{"Refused", &url.Error{Op: "Head", URL: "https://example.com", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}, utils.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFetcher(&recordingDoer{err: tt.err}, "UA", testLogger())
			_, err := f.Do(context.Background(), Request{Method: http.MethodHead, URL: "https://example.com"})
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err, "the facility error stays inspectable")
		})
	}

	f := NewFetcher(&recordingDoer{err: context.Canceled}, "UA", testLogger())
	_, err := f.Do(context.Background(), Request{Method: http.MethodHead, URL: "https://example.com"})
	assert.Equal(t, context.Canceled, err)
}

func TestFetcher_HostSemaphoreLimitsConcurrency(t *testing.T) {
	var inFlight, peak int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := NewFetcher(server.Client(), "UA", testLogger(), WithHostSemaphores(NewHostSemaphorePool(1, testLogger())))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL})
			if err == nil {
				Discard(resp)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
}

func TestDiscard_NilSafe(t *testing.T) {
	Discard(nil)
	Discard(&http.Response{})
}
