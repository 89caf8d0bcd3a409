// Package heartbeat maintains a liveness marker file that external monitors
// (container healthchecks, systemd watchdogs) can stat for freshness.
package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/renameio/v2"
)

// Writer refreshes the marker file on a fixed interval. Each refresh is an
// atomic replace so a monitor never observes a partially written marker.
type Writer struct {
	path      string
	interval  time.Duration
	logger    *slog.Logger
	onFailure func(error)
}

// New creates a heartbeat writer. onFailure is invoked once if a refresh
// fails; the daemon uses it to initiate shutdown, since an unwritable marker
// means monitors will restart the process anyway.
func New(path string, interval time.Duration, logger *slog.Logger, onFailure func(error)) *Writer {
	return &Writer{path: path, interval: interval, logger: logger, onFailure: onFailure}
}

// Run writes the marker immediately, then on every interval tick until the
// context is canceled. The marker is removed on exit.
func (w *Writer) Run(ctx context.Context) {
	if err := w.beat(); err != nil {
		w.fail(err)
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Remove()
			return
		case <-ticker.C:
			if err := w.beat(); err != nil {
				w.fail(err)
				return
			}
		}
	}
}

func (w *Writer) beat() error {
	payload := fmt.Sprintf("%d\n", time.Now().Unix())
	if err := renameio.WriteFile(w.path, []byte(payload), 0o644); err != nil {
		return fmt.Errorf("writing heartbeat marker: %w", err)
	}
	return nil
}

func (w *Writer) fail(err error) {
	w.logger.Error("heartbeat failed", slog.String("path", w.path), slog.Any("error", err))
	// A marker from an earlier successful beat must not outlive the writer.
	w.Remove()
	if w.onFailure != nil {
		w.onFailure(err)
	}
}

// Remove deletes the marker so monitors see a clean stop rather than a stale
// heartbeat.
func (w *Writer) Remove() {
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		w.logger.Warn("removing heartbeat marker", slog.String("path", w.path), slog.Any("error", err))
	}
}
