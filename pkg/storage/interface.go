package storage

import (
	"context"
	"time"

	"github.com/Sriram-PR/page-auditor/pkg/models"
)

// ResultStore caches terminal probe results keyed by target kind, options profile and
// normalized URL. The profile identifies the probe options that shaped a result, so a
// verdict reached under one set of options is never served to a run using another.
type ResultStore interface {
	// GetResult returns the cached result, if one exists and has not expired
	GetResult(ctx context.Context, kind models.TargetKind, profile, normalizedURL string) (models.ProbeResult, bool, error)

	// PutResult stores r under its kind, profile and normalized URL
	PutResult(ctx context.Context, profile string, r models.ProbeResult) error

	// Close cleanly closes the underlying database
	Close() error
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// Count returns the number of live cached results
	Count() (int, error)

	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)
}
