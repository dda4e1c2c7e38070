package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/page-auditor/pkg/models"
	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

const (
	resultKeyPrefix = "result:" // Prefix for cached probe results in DB
	defaultTTL      = time.Hour
)

// BadgerStore implements ResultStore using BadgerDB with per-entry TTLs
type BadgerStore struct {
	db       *badger.DB
	ttl      time.Duration
	inMemory bool
	log      *logrus.Entry
}

// NewBadgerStore opens a result cache at dir. An empty dir keeps the cache in memory.
func NewBadgerStore(dir string, ttl time.Duration, logger *logrus.Entry) (*BadgerStore, error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	store := &BadgerStore{
		ttl:      ttl,
		inMemory: dir == "",
		log:      logger,
	}

	var opts badger.Options
	if store.inMemory {
		logger.Info("Initializing in-memory probe result cache")
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		logger.Infof("Initializing probe result cache at: %s", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("cannot create cache directory %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.
		WithLogger(newBadgerLogger(logger.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open result cache: %w", utils.ErrDatabase, err)
	}

	logger.WithField("ttl", ttl).Info("Probe result cache initialized")
	return store, nil
}

func resultKey(kind models.TargetKind, profile, normalizedURL string) []byte {
	return []byte(resultKeyPrefix + string(kind) + ":" + profile + ":" + utils.CalculateStringSHA256(normalizedURL))
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent writers of the same result can return badger.ErrConflict; these
// resolve almost immediately, so a tight retry loop is sufficient.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// GetResult implements the ResultStore interface
func (s *BadgerStore) GetResult(ctx context.Context, kind models.TargetKind, profile, normalizedURL string) (models.ProbeResult, bool, error) {
	var result models.ProbeResult
	if err := ctx.Err(); err != nil {
		return result, false, err
	}
	key := resultKey(kind, profile, normalizedURL)
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return errGet
		}
		return item.Value(func(val []byte) error {
			if errJSON := json.Unmarshal(val, &result); errJSON != nil {
				// A corrupt entry is treated as a miss and overwritten on the next put
				s.log.WithField("url", normalizedURL).Warnf("Failed to unmarshal cached result: %v", errJSON)
				return nil
			}
			found = true
			return nil
		})
	})
	if err != nil {
		s.log.WithField("url", normalizedURL).Errorf("DB View error in GetResult: %v", err)
		return models.ProbeResult{}, false, fmt.Errorf("%w: reading cached result: %w", utils.ErrDatabase, err)
	}
	if !found {
		return models.ProbeResult{}, false, nil
	}
	return result, true, nil
}

// PutResult implements the ResultStore interface
func (s *BadgerStore) PutResult(ctx context.Context, profile string, r models.ProbeResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.NormalizedURL == "" {
		return fmt.Errorf("%w: result for %q has no normalized URL", utils.ErrDatabase, r.URL)
	}
	val, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: encoding result: %w", utils.ErrDatabase, err)
	}
	key := resultKey(r.Kind, profile, r.NormalizedURL)

	err = s.dbUpdate(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, val).WithTTL(s.ttl))
	})
	if err != nil {
		s.log.WithField("url", r.NormalizedURL).Errorf("DB Update error in PutResult: %v", err)
		return fmt.Errorf("%w: writing cached result: %w", utils.ErrDatabase, err)
	}
	return nil
}

// Count implements the StoreAdmin interface. Expired entries are not counted.
func (s *BadgerStore) Count() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(resultKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: counting cached results: %w", utils.ErrDatabase, err)
	}
	return count, nil
}

// RunGC runs BadgerDB's value log garbage collection periodically.
// It returns immediately for in-memory stores, which have no value log.
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if s.inMemory {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Debug("BadgerDB GC goroutine started.")

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				s.log.Debug("DB GC: Database is nil or closed, skipping GC cycle.")
				continue
			}

			var err error
			// Loop GC until it returns ErrNoRewrite or another error
			for {
				if err = s.db.RunValueLogGC(0.5); err != nil {
					break
				}
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}

		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection goroutine: %v", ctx.Err())
			return
		}
	}
}

// Close implements the ResultStore interface
func (s *BadgerStore) Close() error {
	if s.db != nil && !s.db.IsClosed() {
		if err := s.db.Close(); err != nil {
			s.log.Errorf("Error closing result cache: %v", err)
			return err
		}
		s.log.Debug("Result cache closed.")
	}
	return nil
}

var (
	_ ResultStore = (*BadgerStore)(nil)
	_ StoreAdmin  = (*BadgerStore)(nil)
)
