// Package orchestrate owns the lifecycle of an audit run: admission, the two
// queue pools, result aggregation and the event stream.
package orchestrate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/page-auditor/pkg/config"
	"github.com/Sriram-PR/page-auditor/pkg/fetch"
	"github.com/Sriram-PR/page-auditor/pkg/models"
	"github.com/Sriram-PR/page-auditor/pkg/probe"
	"github.com/Sriram-PR/page-auditor/pkg/queue"
	"github.com/Sriram-PR/page-auditor/pkg/scheduler"
	"github.com/Sriram-PR/page-auditor/pkg/storage"
	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

// CheckerFactory builds the checker used for one run
type CheckerFactory func(opts config.CheckOptions) scheduler.Checker

// Option configures an Auditor
type Option func(*Auditor)

// WithCache serves repeated checkable targets from store
func WithCache(store storage.ResultStore) Option {
	return func(a *Auditor) { a.cache = store }
}

// WithDoer replaces the per-run HTTP client with d. Redirect options are then d's concern.
func WithDoer(d fetch.Doer) Option {
	return func(a *Auditor) { a.doer = d }
}

// WithCheckerFactory replaces the default prober
func WithCheckerFactory(f CheckerFactory) Option {
	return func(a *Auditor) { a.newChecker = f }
}

// Auditor runs audits one at a time. Host-level politeness state is shared across runs.
type Auditor struct {
	cfg        *config.AppConfig
	log        *logrus.Entry
	doer       fetch.Doer
	cache      storage.ResultStore
	newChecker CheckerFactory
	hostSems   *fetch.HostSemaphorePool
	limiter    *fetch.RateLimiter

	mu     sync.Mutex
	active *Run
}

// NewAuditor creates an Auditor for a validated config
func NewAuditor(cfg *config.AppConfig, log *logrus.Entry, options ...Option) *Auditor {
	a := &Auditor{
		cfg:     cfg,
		log:     log,
		limiter: fetch.NewRateLimiter(cfg.DelayPerHost, log.WithField("component", "rate_limiter")),
	}
	if cfg.MaxRequestsPerHost > 0 {
		a.hostSems = fetch.NewHostSemaphorePool(cfg.MaxRequestsPerHost, log.WithField("component", "host_semaphores"))
	}
	for _, opt := range options {
		opt(a)
	}
	if a.newChecker == nil {
		a.newChecker = a.defaultChecker
	}
	return a
}

// defaultChecker wires a fresh client, honoring the run's redirect options, into a Prober
func (a *Auditor) defaultChecker(opts config.CheckOptions) scheduler.Checker {
	doer := a.doer
	if doer == nil {
		redirects := fetch.RedirectPolicy{Follow: opts.FollowRedirects, MaxHops: opts.MaxRedirects}
		doer = fetch.NewClient(a.cfg.HTTPClientSettings, redirects, a.log)
	}
	fopts := []fetch.FetcherOption{fetch.WithRateLimiter(a.limiter)}
	if a.hostSems != nil {
		fopts = append(fopts, fetch.WithHostSemaphores(a.hostSems))
	}
	fetcher := fetch.NewFetcher(doer, opts.UserAgent, a.log, fopts...)
	return probe.NewProber(fetcher, opts, a.log)
}

func (a *Auditor) checker(opts config.CheckOptions) scheduler.Checker {
	c := a.newChecker(opts)
	if a.cache != nil {
		c = newCachingChecker(c, a.cache, opts.CacheProfile(), a.log)
	}
	return c
}

// RunMaintenance evicts idle per-host state until ctx is done. Long-lived owners run it
// in a goroutine.
func (a *Auditor) RunMaintenance(ctx context.Context, interval time.Duration) {
	if a.hostSems == nil {
		<-ctx.Done()
		return
	}
	a.hostSems.RunEviction(ctx, interval)
}

// Probe checks a single target outside of any run
func (a *Auditor) Probe(ctx context.Context, t models.CheckTarget, opts config.CheckOptions) models.ProbeResult {
	if t.Kind == "" {
		t.Kind = models.KindLink
	}
	return a.checker(opts).Check(ctx, t)
}

// Active returns the running audit, or nil
func (a *Auditor) Active() *Run {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Stop aborts the active run, if any, and reports whether there was one
func (a *Auditor) Stop() bool {
	r := a.Active()
	if r == nil {
		return false
	}
	r.Stop()
	return true
}

// Start admits targets and begins a run. ctx bounds the whole run, not just the call.
// It fails with utils.ErrRunActive while another run is in progress.
func (a *Auditor) Start(ctx context.Context, targets Targets, opts config.CheckOptions) (*Run, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active != nil {
		return nil, utils.WrapErrorf(utils.ErrRunActive, "run %s", a.active.id)
	}

	id := uuid.NewString()
	log := a.log.WithField("run_id", id)
	links, images := Admit(targets, opts, log)
	total := len(links) + len(images)

	run := &Run{
		id:      id,
		pageURL: targets.PageURL,
		state:   newRunState(len(links), len(images)),
		abort:   &scheduler.Abort{},
		events:  make(chan models.Event, 2*total+3),
		done:    make(chan struct{}),
		log:     log,
	}

	linkQueue := newSealedQueue(links, log.WithField("queue", models.QueueLinks))
	imageQueue := newSealedQueue(images, log.WithField("queue", models.QueueImages))

	checker := a.checker(opts)
	linkPool := scheduler.NewPool(models.QueueLinks, linkQueue, checker, opts.LinkConcurrency, run.abort, log.WithField("queue", models.QueueLinks))
	imagePool := scheduler.NewPool(models.QueueImages, imageQueue, checker, opts.ImageConcurrency, run.abort, log.WithField("queue", models.QueueImages))

	a.active = run
	log.WithFields(logrus.Fields{"page_url": targets.PageURL, "links": len(links), "images": len(images)}).Info("Audit run started")

	run.send(progressEvent(models.QueueLinks, 0, len(links)))
	run.send(progressEvent(models.QueueImages, 0, len(images)))

	go run.execute(ctx, linkPool, imagePool, len(links), len(images), func() {
		a.mu.Lock()
		if a.active == run {
			a.active = nil
		}
		a.mu.Unlock()
	})
	return run, nil
}

func newSealedQueue(targets []models.CheckTarget, log *logrus.Entry) *queue.TargetQueue {
	q := queue.NewTargetQueue(log)
	for _, t := range targets {
		q.Add(t)
	}
	q.Close()
	return q
}

// --- Run ---

// Run is one audit in progress or completed
type Run struct {
	id      string
	pageURL string
	state   *RunState
	abort   *scheduler.Abort
	events  chan models.Event
	done    chan struct{}
	report  models.Report
	log     *logrus.Entry
}

// ID returns the run's unique id
func (r *Run) ID() string { return r.id }

// Events streams progress and result events in completion order, then one complete
// event. The channel is closed when the run ends and never blocks the run.
func (r *Run) Events() <-chan models.Event { return r.events }

// Done is closed once the run has ended
func (r *Run) Done() <-chan struct{} { return r.done }

// Stop requests cooperative cancellation. When it returns no further target is dequeued;
// probes already started still finish and are recorded.
func (r *Run) Stop() {
	if r.abort.IsSet() {
		return
	}
	r.abort.Set()
	r.state.markAborted()
	r.log.Info("Audit run stop requested")
}

// Wait blocks until the run ends and returns its report
func (r *Run) Wait() models.Report {
	<-r.done
	return r.report
}

// Status reports the run's current progress
func (r *Run) Status() RunStatus {
	s := r.state.status()
	s.RunID = r.id
	s.PageURL = r.pageURL
	return s
}

// Report returns the final report once the run has ended, otherwise the results so far
func (r *Run) Report() models.Report {
	select {
	case <-r.done:
		return r.report
	default:
	}
	rep := r.state.report()
	rep.RunID = r.id
	rep.PageURL = r.pageURL
	return rep
}

func (r *Run) execute(ctx context.Context, linkPool, imagePool *scheduler.Pool, linkTotal, imageTotal int, release func()) {
	var g errgroup.Group
	g.Go(func() error {
		linkPool.Drain(ctx, linkTotal, r.emitter(models.QueueLinks))
		return nil
	})
	g.Go(func() error {
		imagePool.Drain(ctx, imageTotal, r.emitter(models.QueueImages))
		return nil
	})
	_ = g.Wait() // Pools report failures as results, never as errors

	report := r.state.finish(r.abort.IsSet() || ctx.Err() != nil)
	report.RunID = r.id
	report.PageURL = r.pageURL
	r.report = report

	r.log.WithFields(logrus.Fields{
		"success":  report.Summary.Success,
		"warnings": report.Summary.Warnings,
		"errors":   report.Summary.Errors,
		"aborted":  report.Summary.Aborted,
		"duration": report.Summary.Duration,
	}).Info("Audit run finished")

	r.send(models.Event{Type: models.EventComplete, Report: &report})
	close(r.events)
	release()
	close(r.done)
}

func (r *Run) emitter(q models.QueueName) scheduler.EmitFunc {
	return func(res models.ProbeResult, p models.Progress) {
		r.state.record(q, res)
		r.send(models.Event{Type: models.EventResult, Queue: q, Result: &res})
		r.send(progressEvent(q, p.Processed, p.Total))
	}
}

// send never blocks: the channel is sized for every event a run can produce
func (r *Run) send(e models.Event) {
	select {
	case r.events <- e:
	default:
		r.log.WithField("type", e.Type).Warn("Event channel full, dropping event")
	}
}

func progressEvent(q models.QueueName, processed, total int) models.Event {
	return models.Event{
		Type:     models.EventProgress,
		Queue:    q,
		Progress: &models.Progress{Queue: q, Processed: processed, Total: total},
	}
}
