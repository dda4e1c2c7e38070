package orchestrate

import (
	"sync"
	"time"

	"github.com/Sriram-PR/page-auditor/pkg/models"
)

// RunStatus is a point-in-time view of a run
type RunStatus struct {
	RunID     string          `json:"runId"`
	PageURL   string          `json:"pageUrl,omitempty"`
	Active    bool            `json:"active"`
	Aborted   bool            `json:"aborted"`
	StartedAt time.Time       `json:"startedAt"`
	Links     models.Progress `json:"links"`
	Images    models.Progress `json:"images"`
}

// RunState accumulates the results of one run. It is safe for concurrent use
// by the link and image pools.
type RunState struct {
	mu          sync.Mutex
	active      bool
	aborted     bool
	startedAt   time.Time
	completedAt time.Time
	linkTotal   int
	imageTotal  int
	links       []models.ProbeResult
	images      []models.ProbeResult
}

func newRunState(linkTotal, imageTotal int) *RunState {
	return &RunState{
		active:     true,
		startedAt:  time.Now(),
		linkTotal:  linkTotal,
		imageTotal: imageTotal,
		links:      make([]models.ProbeResult, 0, linkTotal),
		images:     make([]models.ProbeResult, 0, imageTotal),
	}
}

func (s *RunState) record(q models.QueueName, r models.ProbeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q == models.QueueImages {
		s.images = append(s.images, r)
	} else {
		s.links = append(s.links, r)
	}
}

func (s *RunState) markAborted() {
	s.mu.Lock()
	s.aborted = true
	s.mu.Unlock()
}

// finish deactivates the state and returns the final report
func (s *RunState) finish(aborted bool) models.Report {
	s.mu.Lock()
	s.active = false
	s.aborted = s.aborted || aborted
	s.completedAt = time.Now()
	s.mu.Unlock()
	return s.report()
}

// report builds a report from the results recorded so far
func (s *RunState) report() models.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	links := append([]models.ProbeResult(nil), s.links...)
	images := append([]models.ProbeResult(nil), s.images...)
	summary := models.Summarize(links, images)
	summary.StartedAt = s.startedAt
	summary.Aborted = s.aborted
	if !s.completedAt.IsZero() {
		summary.CompletedAt = s.completedAt
		summary.Duration = s.completedAt.Sub(s.startedAt)
	}
	return models.Report{Links: links, Images: images, Summary: summary}
}

func (s *RunState) status() RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RunStatus{
		Active:    s.active,
		Aborted:   s.aborted,
		StartedAt: s.startedAt,
		Links:     models.Progress{Queue: models.QueueLinks, Processed: len(s.links), Total: s.linkTotal},
		Images:    models.Progress{Queue: models.QueueImages, Processed: len(s.images), Total: s.imageTotal},
	}
}
