package output

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SweepOrphans removes leftover temp files from previous runs that were
// interrupted before their cleanup ran. Only files carrying the process's
// temp prefix are touched. Run once at startup, before any work begins.
func SweepOrphans(tempDir string, logger *slog.Logger) {
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		logger.Warn("reading temp directory for orphan sweep",
			slog.String("dir", tempDir), slog.Any("error", err))
		return
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), TempPrefix) {
			continue
		}
		path := filepath.Join(tempDir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Warn("removing orphaned temp file",
				slog.String("path", path), slog.Any("error", err))
			continue
		}
		removed++
		logger.Info("removed orphaned temp file", slog.String("path", path))
	}
	if removed > 0 {
		logger.Info("orphan sweep completed", slog.Int("removed", removed))
	}
}
