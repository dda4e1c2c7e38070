package models

import "time"

// QueueName identifies one of the two independent probe queues
type QueueName string

const (
	QueueLinks  QueueName = "links"
	QueueImages QueueName = "images"
)

// EventType discriminates the payload carried by an Event
type EventType string

const (
	EventProgress EventType = "progress"
	EventResult   EventType = "result"
	EventComplete EventType = "complete"
)

// Progress reports how far a queue has drained
type Progress struct {
	Queue     QueueName `json:"queue"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
}

// Event is one element of a run's event stream. Exactly one payload is set,
// matching Type.
type Event struct {
	Type     EventType    `json:"type"`
	Queue    QueueName    `json:"queue,omitempty"`
	Progress *Progress    `json:"progress,omitempty"`
	Result   *ProbeResult `json:"result,omitempty"`
	Report   *Report      `json:"report,omitempty"`
}

// Summary holds the counts derived from a run's results
type Summary struct {
	TotalLinks       int            `json:"totalLinks"`
	TotalImages      int            `json:"totalImages"`
	SuccessfulLinks  int            `json:"successfulLinks"`
	SuccessfulImages int            `json:"successfulImages"`
	Success          int            `json:"success"`
	Warnings         int            `json:"warnings"`
	Errors           int            `json:"errors"`
	MightBeValid     int            `json:"mightBeValid"`
	ByStatus         map[Status]int `json:"byStatus"`
	StartedAt        time.Time      `json:"startedAt"`
	CompletedAt      time.Time      `json:"completedAt"`
	Duration         time.Duration  `json:"duration"`
	Aborted          bool           `json:"aborted"`
}

// Report is the final output of a run
type Report struct {
	RunID   string        `json:"runId,omitempty"`
	PageURL string        `json:"pageUrl,omitempty"`
	Links   []ProbeResult `json:"links"`
	Images  []ProbeResult `json:"images"`
	Summary Summary       `json:"summary"`
}

// Summarize computes summary counts over link and image results
func Summarize(links, images []ProbeResult) Summary {
	s := Summary{
		TotalLinks:  len(links),
		TotalImages: len(images),
		ByStatus:    make(map[Status]int),
	}
	count := func(results []ProbeResult, successful *int) {
		for _, r := range results {
			s.ByStatus[r.Status]++
			if r.MightBeValid {
				s.MightBeValid++
			}
			switch r.Status.Bucket() {
			case BucketSuccess:
				s.Success++
				*successful++
			case BucketWarnings:
				s.Warnings++
			case BucketErrors:
				s.Errors++
			}
		}
	}
	count(links, &s.SuccessfulLinks)
	count(images, &s.SuccessfulImages)
	return s
}
