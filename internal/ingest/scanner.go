// Package ingest feeds the catalog with candidate paths from two sources:
// bulk directory scans and filesystem events. Both sources funnel through
// one Intake so dedup and registration logic lives in a single place.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/scalyfin/scalyfin/internal/catalog"
)

// Intake registers candidate files with the catalog. It ignores anything
// that is not a regular file and anything the catalog already tracks.
type Intake struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewIntake creates an intake bound to a catalog.
func NewIntake(cat *catalog.Catalog, logger *slog.Logger) *Intake {
	return &Intake{catalog: cat, logger: logger}
}

// Candidate offers one path for tracking. Returns true if the path was newly
// enqueued for stability checks.
func (in *Intake) Candidate(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		// Vanished between discovery and stat; nothing to track.
		return false
	}
	if !info.Mode().IsRegular() {
		return false
	}
	if !in.catalog.ShouldIngest(path, info.Size(), info.ModTime()) {
		return false
	}
	if !in.catalog.Enqueue(path) {
		return false
	}
	in.logger.Info("tracking new file", slog.String("path", path))
	return true
}

// Scanner walks the watch tree and offers every regular file to the intake.
type Scanner struct {
	root   string
	intake *Intake
	logger *slog.Logger
}

// NewScanner creates a scanner over the watch root.
func NewScanner(root string, intake *Intake, logger *slog.Logger) *Scanner {
	return &Scanner{root: root, intake: intake, logger: logger}
}

// Scan walks the tree once. Unreadable subtrees are logged and skipped
// rather than aborting the whole scan.
func (s *Scanner) Scan(ctx context.Context) error {
	found := 0
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.logger.Warn("scan error, skipping entry", slog.String("path", path), slog.Any("error", err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if s.intake.Candidate(path) {
			found++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning %s: %w", s.root, err)
	}
	if found > 0 {
		s.logger.Info("scan completed", slog.Int("new_files", found))
	}
	return nil
}
