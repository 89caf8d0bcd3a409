// Package catalog is the authoritative in-memory record of every known
// path's processing state. All mutation goes through its synchronized API;
// producers (watch events, rescans) and the stability tracker never share
// raw maps.
package catalog

import (
	"log/slog"
	"sync"
	"time"
)

// sizeHistoryLen bounds the sliding window of observed sizes per record.
const sizeHistoryLen = 5

// State describes where a path is in its lifecycle.
type State string

const (
	StatePending   State = "pending"
	StateInFlight  State = "inflight"
	StateCompleted State = "completed"
	StateSkipped   State = "skipped"
)

// FileRecord tracks write-stability observations for one pending path.
type FileRecord struct {
	Path         string
	SizeHistory  []int64 // most recent last
	LastModTime  time.Time
	StableRounds int
}

// RecordSize appends an observed size, trimming the window to the most
// recent entries. Only the latest comparison matters for stability; the
// window exists for debuggability.
func (r *FileRecord) RecordSize(size int64) {
	r.SizeHistory = append(r.SizeHistory, size)
	if len(r.SizeHistory) > sizeHistoryLen {
		r.SizeHistory = r.SizeHistory[len(r.SizeHistory)-sizeHistoryLen:]
	}
}

// LastSize returns the most recently observed size, or -1 if none.
func (r *FileRecord) LastSize() int64 {
	if len(r.SizeHistory) == 0 {
		return -1
	}
	return r.SizeHistory[len(r.SizeHistory)-1]
}

// fingerprint is the size and mtime a path had when it was classified.
// A mismatch later means the file was replaced in place and the
// classification no longer applies.
type fingerprint struct {
	size    int64
	modTime time.Time
}

// Disposition is the outcome of evaluating one pending record during a sweep.
type Disposition int

const (
	// KeepPending leaves the record in the pending set for the next tick.
	KeepPending Disposition = iota
	// DropVanished removes the record; the file disappeared.
	DropVanished
	// PromoteStable moves the record to in-flight and hands it to processing.
	PromoteStable
)

// Catalog owns the lifetime of all FileRecords.
type Catalog struct {
	mu        sync.Mutex
	pending   map[string]*FileRecord
	inflight  map[string]struct{}
	completed map[string]fingerprint
	skipped   map[string]fingerprint
	logger    *slog.Logger
}

// New creates an empty catalog.
func New(logger *slog.Logger) *Catalog {
	return &Catalog{
		pending:   make(map[string]*FileRecord),
		inflight:  make(map[string]struct{}),
		completed: make(map[string]fingerprint),
		skipped:   make(map[string]fingerprint),
		logger:    logger,
	}
}

// ShouldIngest reports whether a path is new to the catalog. Completed and
// skipped membership is invalidated lazily: if the file's current size or
// mtime no longer matches what was recorded at classification time, the old
// membership is revoked and the path may be ingested again.
func (c *Catalog) ShouldIngest(path string, size int64, modTime time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidateLocked(c.completed, path, size, modTime)
	c.invalidateLocked(c.skipped, path, size, modTime)

	if _, ok := c.pending[path]; ok {
		return false
	}
	if _, ok := c.inflight[path]; ok {
		return false
	}
	if _, ok := c.completed[path]; ok {
		return false
	}
	if _, ok := c.skipped[path]; ok {
		return false
	}
	return true
}

func (c *Catalog) invalidateLocked(set map[string]fingerprint, path string, size int64, modTime time.Time) {
	fp, ok := set[path]
	if !ok {
		return
	}
	if fp.size != size || !fp.modTime.Equal(modTime) {
		delete(set, path)
		c.logger.Info("classification invalidated, file changed since processing",
			slog.String("path", path))
	}
}

// Enqueue registers a path for stability checks. Returns false if the path
// is already tracked in any state.
func (c *Catalog) Enqueue(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[path]; ok {
		return false
	}
	if _, ok := c.inflight[path]; ok {
		return false
	}
	if _, ok := c.completed[path]; ok {
		return false
	}
	if _, ok := c.skipped[path]; ok {
		return false
	}

	c.pending[path] = &FileRecord{Path: path}
	return true
}

// Sweep evaluates every pending record under a single lock acquisition and
// applies the returned dispositions atomically. Records promoted to stable
// are moved to the in-flight set and their paths returned; an in-flight path
// is invisible to ShouldIngest until a terminal outcome is reported.
func (c *Catalog) Sweep(eval func(rec *FileRecord) Disposition) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stable []string
	for path, rec := range c.pending {
		switch eval(rec) {
		case DropVanished:
			delete(c.pending, path)
		case PromoteStable:
			delete(c.pending, path)
			c.inflight[path] = struct{}{}
			stable = append(stable, path)
		}
	}
	return stable
}

// Complete records a terminal successful outcome for an in-flight path.
// The fingerprint is what the source file looked like when processed; it is
// used to detect in-place replacement later.
func (c *Catalog) Complete(path string, size int64, modTime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, path)
	c.completed[path] = fingerprint{size: size, modTime: modTime}
}

// Skip records that a path is confirmed non-media.
func (c *Catalog) Skip(path string, size int64, modTime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, path)
	c.skipped[path] = fingerprint{size: size, modTime: modTime}
}

// Discard drops an in-flight path without classifying it. Used for failed
// or vanished jobs: tracking terminates for this pass, and the path becomes
// eligible for re-ingestion by a later scan.
func (c *Catalog) Discard(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, path)
}

// StateOf returns the current state of a path, if tracked.
func (c *Catalog) StateOf(path string) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[path]; ok {
		return StatePending, true
	}
	if _, ok := c.inflight[path]; ok {
		return StateInFlight, true
	}
	if _, ok := c.completed[path]; ok {
		return StateCompleted, true
	}
	if _, ok := c.skipped[path]; ok {
		return StateSkipped, true
	}
	return "", false
}

// PendingCount returns the number of paths awaiting stability.
func (c *Catalog) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
