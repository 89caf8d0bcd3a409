package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scalyfin/scalyfin/internal/catalog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIntakeCandidate(t *testing.T) {
	dir := t.TempDir()
	cat := catalog.New(testLogger())
	intake := NewIntake(cat, testLogger())

	path := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	t.Run("new file is enqueued", func(t *testing.T) {
		assert.True(t, intake.Candidate(path))
		state, ok := cat.StateOf(path)
		require.True(t, ok)
		assert.Equal(t, catalog.StatePending, state)
	})

	t.Run("already tracked file is rejected", func(t *testing.T) {
		assert.False(t, intake.Candidate(path))
	})

	t.Run("missing file is rejected", func(t *testing.T) {
		assert.False(t, intake.Candidate(filepath.Join(dir, "nope.mkv")))
	})

	t.Run("directory is rejected", func(t *testing.T) {
		sub := filepath.Join(dir, "subdir")
		require.NoError(t, os.Mkdir(sub, 0o755))
		assert.False(t, intake.Candidate(sub))
	})
}

func TestScannerFindsNestedFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "show", "s01"), 0o755))

	paths := []string{
		filepath.Join(root, "movie.mkv"),
		filepath.Join(root, "show", "s01", "ep1.mkv"),
		filepath.Join(root, "show", "s01", "ep2.mkv"),
	}
	for _, p := range paths {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	cat := catalog.New(testLogger())
	scanner := NewScanner(root, NewIntake(cat, testLogger()), testLogger())

	require.NoError(t, scanner.Scan(context.Background()))
	assert.Equal(t, len(paths), cat.PendingCount())

	for _, p := range paths {
		state, ok := cat.StateOf(p)
		require.True(t, ok, p)
		assert.Equal(t, catalog.StatePending, state)
	}
}

func TestScanIsIdempotent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "movie.mkv"), []byte("x"), 0o644))

	cat := catalog.New(testLogger())
	scanner := NewScanner(root, NewIntake(cat, testLogger()), testLogger())

	require.NoError(t, scanner.Scan(context.Background()))
	require.NoError(t, scanner.Scan(context.Background()))
	assert.Equal(t, 1, cat.PendingCount(), "repeated scans must not duplicate tracking")
}

func TestScanCanceled(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "movie.mkv"), []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cat := catalog.New(testLogger())
	scanner := NewScanner(root, NewIntake(cat, testLogger()), testLogger())
	assert.Error(t, scanner.Scan(ctx))
}
