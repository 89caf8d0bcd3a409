package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scalyfin/scalyfin/internal/catalog"
)

func TestWatcherPicksUpNewFiles(t *testing.T) {
	root := t.TempDir()
	cat := catalog.New(testLogger())
	w, err := NewWatcher(root, NewIntake(cat, testLogger()), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	path := filepath.Join(root, "movie.mkv")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	require.Eventually(t, func() bool {
		state, ok := cat.StateOf(path)
		return ok && state == catalog.StatePending
	}, 3*time.Second, 10*time.Millisecond, "created file must be tracked")
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	cat := catalog.New(testLogger())
	w, err := NewWatcher(root, NewIntake(cat, testLogger()), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	sub := filepath.Join(root, "show")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// Give the watcher a moment to register the new directory, then drop a
	// file into it.
	var path string
	require.Eventually(t, func() bool {
		if path == "" {
			path = filepath.Join(sub, "ep1.mkv")
			if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
				path = ""
				return false
			}
		}
		state, ok := cat.StateOf(path)
		return ok && state == catalog.StatePending
	}, 3*time.Second, 20*time.Millisecond)

	state, ok := cat.StateOf(path)
	require.True(t, ok)
	assert.Equal(t, catalog.StatePending, state)
}
