package storage

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/page-auditor/pkg/models"
	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

const testProfile = "p1"

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestStore(t *testing.T, dir string, ttl time.Duration) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(dir, ttl, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleResult(url string, kind models.TargetKind) models.ProbeResult {
	return models.ProbeResult{
		URL:           url,
		NormalizedURL: url,
		Kind:          kind,
		Status:        models.StatusSuccess,
		StatusCode:    200,
		StatusMessage: "OK",
		Timestamp:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBadgerStore_PutGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "", time.Hour)

	r := sampleResult("https://example.com/a", models.KindLink)
	require.NoError(t, store.PutResult(ctx, testProfile, r))

	got, ok, err := store.GetResult(ctx, models.KindLink, testProfile, "https://example.com/a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, r.StatusCode, got.StatusCode)
	assert.Equal(t, r.Status, got.Status)
	assert.True(t, r.Timestamp.Equal(got.Timestamp))
}

func TestBadgerStore_Miss(t *testing.T) {
	store := newTestStore(t, "", time.Hour)
	_, ok, err := store.GetResult(context.Background(), models.KindLink, testProfile, "https://example.com/none")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBadgerStore_KindSeparatesKeys(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "", time.Hour)

	require.NoError(t, store.PutResult(ctx, testProfile, sampleResult("https://example.com/x.png", models.KindImage)))

	_, ok, err := store.GetResult(ctx, models.KindLink, testProfile, "https://example.com/x.png")
	require.NoError(t, err)
	assert.False(t, ok, "an image result must not satisfy a link lookup")

	_, ok, err = store.GetResult(ctx, models.KindImage, testProfile, "https://example.com/x.png")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBadgerStore_ProfileSeparatesKeys(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "", time.Hour)

	require.NoError(t, store.PutResult(ctx, "anchors-off", sampleResult("https://example.com/page", models.KindLink)))

	_, ok, err := store.GetResult(ctx, models.KindLink, "anchors-on", "https://example.com/page")
	require.NoError(t, err)
	assert.False(t, ok, "a result from other options must not be served")

	_, ok, err = store.GetResult(ctx, models.KindLink, "anchors-off", "https://example.com/page")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBadgerStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "", time.Hour)

	r := sampleResult("https://example.com/a", models.KindLink)
	require.NoError(t, store.PutResult(ctx, testProfile, r))
	r.Status = models.StatusClientError
	r.StatusCode = 404
	require.NoError(t, store.PutResult(ctx, testProfile, r))

	got, ok, err := store.GetResult(ctx, models.KindLink, testProfile, r.NormalizedURL)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 404, got.StatusCode)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBadgerStore_TTLExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for entry expiry")
	}
	ctx := context.Background()
	store := newTestStore(t, "", time.Second)

	require.NoError(t, store.PutResult(ctx, testProfile, sampleResult("https://example.com/a", models.KindLink)))
	time.Sleep(2100 * time.Millisecond)

	_, ok, err := store.GetResult(ctx, models.KindLink, testProfile, "https://example.com/a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBadgerStore_MissingNormalizedURL(t *testing.T) {
	store := newTestStore(t, "", time.Hour)
	r := sampleResult("#top", models.KindLink)
	r.NormalizedURL = ""
	err := store.PutResult(context.Background(), testProfile, r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrDatabase))
}

func TestBadgerStore_CancelledContext(t *testing.T) {
	store := newTestStore(t, "", time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.PutResult(ctx, testProfile, sampleResult("https://example.com/a", models.KindLink)), context.Canceled)
	_, _, err := store.GetResult(ctx, models.KindLink, testProfile, "https://example.com/a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store1, err := NewBadgerStore(dir, time.Hour, testLogger())
	require.NoError(t, err)
	require.NoError(t, store1.PutResult(ctx, testProfile, sampleResult("https://example.com/a", models.KindLink)))
	require.NoError(t, store1.Close())

	store2 := newTestStore(t, dir, time.Hour)
	_, ok, err := store2.GetResult(ctx, models.KindLink, testProfile, "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBadgerStore_ConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "", time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.PutResult(ctx, testProfile, sampleResult("https://example.com/same", models.KindLink)))
		}()
	}
	wg.Wait()

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBadgerStore_RunGC(t *testing.T) {
	t.Run("in-memory returns immediately", func(t *testing.T) {
		store := newTestStore(t, "", time.Hour)
		done := make(chan struct{})
		go func() {
			store.RunGC(context.Background(), time.Millisecond)
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("RunGC did not return for in-memory store")
		}
	})

	t.Run("stops on context cancel", func(t *testing.T) {
		store := newTestStore(t, t.TempDir(), time.Hour)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			store.RunGC(ctx, 10*time.Millisecond)
			close(done)
		}()
		time.Sleep(30 * time.Millisecond)
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("RunGC did not stop after cancel")
		}
	})
}

func TestBadgerStore_CloseTwice(t *testing.T) {
	store, err := NewBadgerStore("", time.Hour, testLogger())
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestBadgerLogger(t *testing.T) {
	l := newBadgerLogger(testLogger())
	assert.NotPanics(t, func() {
		l.Errorf("error %s", "x")
		l.Warningf("warning %d", 1)
		l.Infof("info")
		l.Debugf("debug")
	})
}
