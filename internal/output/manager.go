package output

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// TempPrefix marks every temporary file this process creates, so orphans
// from interrupted runs can be recognized and swept.
const TempPrefix = "scalyfin-"

// Manager performs all filesystem mutation for produced artifacts.
type Manager struct {
	tempDir string
	uid     int
	gid     int
	logger  *slog.Logger

	mu    sync.Mutex
	temps []string // append-only; read at shutdown for cleanup
}

// NewManager creates an output manager. An empty tempDir uses the system
// temp directory.
func NewManager(tempDir string, uid, gid int, logger *slog.Logger) *Manager {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Manager{tempDir: tempDir, uid: uid, gid: gid, logger: logger}
}

// TempFile creates and registers a temporary file, returning its path. The
// file is created empty and closed; encoders overwrite it.
func (m *Manager) TempFile(kind, suffix string) (string, error) {
	f, err := os.CreateTemp(m.tempDir, TempPrefix+kind+"-*"+suffix)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	m.Register(path)
	return path, nil
}

// Register adds a path to the temp registry for shutdown cleanup.
func (m *Manager) Register(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.temps = append(m.temps, path)
}

// CleanupTemps removes every registered temporary file that still exists.
// Called on shutdown.
func (m *Manager) CleanupTemps() {
	m.mu.Lock()
	temps := append([]string(nil), m.temps...)
	m.mu.Unlock()

	for _, path := range temps {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := os.Remove(path); err != nil {
			m.logger.Error("removing temp file", slog.String("path", path), slog.Any("error", err))
			continue
		}
		m.logger.Info("removed temp file", slog.String("path", path))
	}
}

// EnsureDir creates an output directory (and parents) and normalizes its
// permissions.
func (m *Manager) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	m.NormalizePermissions(dir)
	return nil
}

// Publish moves a finished temp file to its final path. Rename is atomic
// within one filesystem; across filesystems it degrades to copy+delete, in
// which case the copy still lands under a temp name next to the target and
// is renamed into place, so a partial output is never visible.
func (m *Manager) Publish(tempPath, finalPath string) error {
	if err := os.Rename(tempPath, finalPath); err == nil {
		return nil
	}

	staging, err := os.CreateTemp(filepath.Dir(finalPath), TempPrefix+"publish-*")
	if err != nil {
		return fmt.Errorf("staging publish: %w", err)
	}
	stagingPath := staging.Name()
	m.Register(stagingPath)

	src, err := os.Open(tempPath)
	if err != nil {
		staging.Close()
		return fmt.Errorf("opening temp output: %w", err)
	}
	_, copyErr := io.Copy(staging, src)
	src.Close()
	closeErr := staging.Close()
	if copyErr != nil {
		return fmt.Errorf("copying output across filesystems: %w", copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("flushing staged output: %w", closeErr)
	}

	if err := os.Rename(stagingPath, finalPath); err != nil {
		return fmt.Errorf("publishing output: %w", err)
	}
	if err := os.Remove(tempPath); err != nil {
		m.logger.Warn("removing temp file after cross-filesystem publish",
			slog.String("path", tempPath), slog.Any("error", err))
	}
	return nil
}

// Move relocates a source file to a final path (rename-only optimization).
// Falls back to copy+delete across filesystems.
func (m *Manager) Move(sourcePath, finalPath string) error {
	if err := os.Rename(sourcePath, finalPath); err == nil {
		return nil
	}
	if err := m.Publish(sourcePath, finalPath); err != nil {
		return err
	}
	// Publish leaves the original in place only on the rename path; make
	// sure it is gone.
	if _, err := os.Stat(sourcePath); err == nil {
		return os.Remove(sourcePath)
	}
	return nil
}

// NormalizePermissions applies the standard mode (0644 file / 0755 dir) and
// configured ownership. Ownership failure is logged, not returned: running
// unprivileged is supported.
func (m *Manager) NormalizePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		m.logger.Warn("stat for permission fix", slog.String("path", path), slog.Any("error", err))
		return
	}

	mode := os.FileMode(0o644)
	if info.IsDir() {
		mode = 0o755
	}
	if err := os.Chmod(path, mode); err != nil {
		m.logger.Warn("chmod failed", slog.String("path", path), slog.Any("error", err))
	}
	if err := os.Chown(path, m.uid, m.gid); err != nil {
		m.logger.Debug("chown failed", slog.String("path", path), slog.Any("error", err))
	}
}

// RemoveSource deletes an original file and prunes now-empty ancestor
// directories, stopping at the first non-empty ancestor and never removing
// the watch root itself.
func (m *Manager) RemoveSource(path, watchRoot string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing original: %w", err)
	}
	m.logger.Info("removed original file", slog.String("path", path))

	root := filepath.Clean(watchRoot)
	for dir := filepath.Dir(path); filepath.Clean(dir) != root; dir = filepath.Dir(dir) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := os.Remove(dir); err != nil {
			m.logger.Debug("removing empty directory", slog.String("path", dir), slog.Any("error", err))
			break
		}
		m.logger.Info("removed empty directory", slog.String("path", dir))
	}
	return nil
}
