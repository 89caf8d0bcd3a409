// Package tracker implements the periodic stability check that decides when
// a file in the watch tree has been fully written.
package tracker

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/scalyfin/scalyfin/internal/catalog"
	"github.com/scalyfin/scalyfin/internal/media"
)

// Tracker evaluates every pending path on a fixed interval. A path becomes
// stable once its size and mtime have been unchanged for the required number
// of consecutive rounds and no other process holds it open.
type Tracker struct {
	catalog        *catalog.Catalog
	checker        media.InUseChecker
	interval       time.Duration
	requiredRounds int
	stable         chan<- string
	logger         *slog.Logger
}

// New creates a stability tracker. Promoted paths are sent on the stable
// channel; the send blocks when downstream workers are saturated, which
// throttles promotion rather than dropping work.
func New(cat *catalog.Catalog, checker media.InUseChecker, interval time.Duration, requiredRounds int, stable chan<- string, logger *slog.Logger) *Tracker {
	return &Tracker{
		catalog:        cat,
		checker:        checker,
		interval:       interval,
		requiredRounds: requiredRounds,
		stable:         stable,
		logger:         logger,
	}
}

// Run drives the tick loop until the context is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, path := range t.Tick(ctx) {
				select {
				case t.stable <- path:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// Tick evaluates all pending paths once and returns those promoted to
// stable. Exported for tests and for the single-pass startup sweep.
func (t *Tracker) Tick(ctx context.Context) []string {
	return t.catalog.Sweep(func(rec *catalog.FileRecord) catalog.Disposition {
		return t.evaluate(ctx, rec)
	})
}

func (t *Tracker) evaluate(ctx context.Context, rec *catalog.FileRecord) catalog.Disposition {
	info, err := os.Stat(rec.Path)
	if err != nil {
		if os.IsNotExist(err) {
			t.logger.Warn("file disappeared", slog.String("path", rec.Path))
			return catalog.DropVanished
		}
		// Transient stat failure: keep the record, reset progress.
		t.logger.Warn("stat failed during stability check",
			slog.String("path", rec.Path), slog.Any("error", err))
		rec.StableRounds = 0
		return catalog.KeepPending
	}

	// An open handle elsewhere always overrides size/time evidence.
	inUse, err := t.checker.InUse(ctx, rec.Path)
	if err != nil {
		t.logger.Debug("open-handle check failed, assuming not in use",
			slog.String("path", rec.Path), slog.Any("error", err))
	}
	if inUse {
		// No size/mtime bookkeeping while held open: the first round only
		// starts counting from an observation made after the handle closed.
		t.logger.Debug("file is in use by another process", slog.String("path", rec.Path))
		rec.StableRounds = 0
		return catalog.KeepPending
	}

	// Mtime catches in-place rewrites of same-size files; size alone would
	// miss tools that pre-allocate file length before writing content.
	if !info.ModTime().Equal(rec.LastModTime) {
		rec.LastModTime = info.ModTime()
		rec.StableRounds = 0
	} else if info.Size() == rec.LastSize() {
		rec.StableRounds++
	} else {
		rec.StableRounds = 0
	}
	rec.RecordSize(info.Size())

	if rec.StableRounds >= t.requiredRounds {
		t.logger.Info("file is stable", slog.String("path", rec.Path),
			slog.Int64("size", info.Size()))
		return catalog.PromoteStable
	}
	return catalog.KeepPending
}
