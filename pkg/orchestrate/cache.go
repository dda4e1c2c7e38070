package orchestrate

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/page-auditor/pkg/models"
	"github.com/Sriram-PR/page-auditor/pkg/parse"
	"github.com/Sriram-PR/page-auditor/pkg/scheduler"
	"github.com/Sriram-PR/page-auditor/pkg/storage"
)

// cachingChecker serves checkable targets from a ResultStore and stores fresh results.
// Targets that need no network access always go straight to the wrapped checker.
// Entries are scoped by profile, the fingerprint of the options that shape a verdict.
type cachingChecker struct {
	next    scheduler.Checker
	store   storage.ResultStore
	profile string
	log     *logrus.Entry
}

func newCachingChecker(next scheduler.Checker, store storage.ResultStore, profile string, log *logrus.Entry) *cachingChecker {
	return &cachingChecker{
		next:    next,
		store:   store,
		profile: profile,
		log:     log.WithFields(logrus.Fields{"component": "result_cache", "profile": profile}),
	}
}

func (c *cachingChecker) Check(ctx context.Context, t models.CheckTarget) models.ProbeResult {
	if parse.Classify(t.URL) != models.ResourceCheckable {
		return c.next.Check(ctx, t)
	}
	u, err := parse.ParseCheckable(t.URL)
	if err != nil {
		return c.next.Check(ctx, t)
	}
	key := u.String()

	cached, ok, err := c.store.GetResult(ctx, t.Kind, c.profile, key)
	if err != nil {
		c.log.WithField("url", t.URL).Warnf("Cache lookup failed: %v", err)
	} else if ok {
		cached.URL = t.URL
		cached.FromCache = true
		c.log.WithField("url", t.URL).Debug("Serving probe result from cache")
		return cached
	}

	r := c.next.Check(ctx, t)
	if !cacheable(ctx, r) {
		return r
	}
	if err := c.store.PutResult(ctx, c.profile, r); err != nil {
		c.log.WithField("url", t.URL).Warnf("Cache store failed: %v", err)
	}
	return r
}

// cacheable reports whether r is a verdict about the URL itself. Interrupted probes,
// skipped targets and failures that never got an HTTP response are not.
func cacheable(ctx context.Context, r models.ProbeResult) bool {
	if ctx.Err() != nil || r.Status == models.StatusSkipped || r.NormalizedURL == "" {
		return false
	}
	return r.ErrorCategory == "" || r.StatusCode != 0
}
