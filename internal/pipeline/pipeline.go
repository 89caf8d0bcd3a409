// Package pipeline processes stabilized files end to end: classification,
// planning, encoding, publishing, and source cleanup. It consumes the
// tracker's stable-path channel with a bounded worker pool.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/scalyfin/scalyfin/internal/catalog"
	"github.com/scalyfin/scalyfin/internal/media"
	"github.com/scalyfin/scalyfin/internal/output"
	"github.com/scalyfin/scalyfin/internal/planner"
	"github.com/scalyfin/scalyfin/internal/subtitle"
	"github.com/scalyfin/scalyfin/internal/transcode"
)

// defaultFrameRate stands in when the probe reports no frame rate. Sixty is
// the pessimistic choice: it selects the high-frame-rate bitrate tier.
const defaultFrameRate = 60.0

// Prober is the media inspection surface the pipeline needs. Satisfied by
// media.Prober.
type Prober interface {
	Probe(ctx context.Context, path string) (*media.ProbeResult, error)
	FrameCount(ctx context.Context, path string) (int64, error)
}

// Pipeline turns stable source files into published outputs.
type Pipeline struct {
	catalog        *catalog.Catalog
	prober         Prober
	planner        *planner.Planner
	executor       *transcode.Executor
	subtitles      *subtitle.Preparer
	outputs        *output.Manager
	layout         output.Layout
	deleteOriginal bool
	renameOnly     bool
	logger         *slog.Logger
}

// Options carries the behavioral switches for the pipeline.
type Options struct {
	// DeleteOriginal removes the source file after successful processing
	// and prunes emptied directories.
	DeleteOriginal bool
	// RenameOnly enables satisfying the default target by moving an
	// already-compliant source instead of re-encoding it.
	RenameOnly bool
}

// New creates a pipeline.
func New(cat *catalog.Catalog, prober Prober, plan *planner.Planner, exec *transcode.Executor, subs *subtitle.Preparer, outputs *output.Manager, layout output.Layout, opts Options, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		catalog:        cat,
		prober:         prober,
		planner:        plan,
		executor:       exec,
		subtitles:      subs,
		outputs:        outputs,
		layout:         layout,
		deleteOriginal: opts.DeleteOriginal,
		renameOnly:     opts.RenameOnly,
		logger:         logger,
	}
}

// Run consumes stable paths with the given number of workers until the
// channel closes or the context is canceled.
func (p *Pipeline) Run(ctx context.Context, stable <-chan string, workers int) {
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case path, ok := <-stable:
					if !ok {
						return
					}
					if err := p.Process(ctx, path); err != nil {
						p.logger.Error("processing failed",
							slog.String("path", path), slog.Any("error", err))
					}
				}
			}
		}()
	}
	wg.Wait()
}

// Process handles one stabilized file from classification through cleanup.
// The path is in-flight in the catalog; every return reports a terminal
// outcome so tracking never leaks.
func (p *Pipeline) Process(ctx context.Context, path string) error {
	logger := p.logger.With(slog.String("path", path))
	start := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		p.catalog.Discard(path)
		if os.IsNotExist(err) {
			logger.Warn("file vanished before processing")
			return nil
		}
		return fmt.Errorf("%w: stat: %v", ErrTransient, err)
	}
	srcSize, srcModTime := info.Size(), info.ModTime()

	frames, err := p.prober.FrameCount(ctx, path)
	if err != nil || frames == 0 {
		p.catalog.Skip(path, srcSize, srcModTime)
		logger.Info("not a playable video, skipping", slog.Int64("frames", frames))
		return nil
	}

	probe, err := p.prober.Probe(ctx, path)
	if err != nil {
		p.catalog.Discard(path)
		return fmt.Errorf("%w: probe: %v", ErrTransient, err)
	}
	video := probe.GetVideoStream()
	if video == nil || video.Width == 0 || video.Height == 0 {
		p.catalog.Discard(path)
		logger.Warn("no usable video stream")
		return fmt.Errorf("%w: %s", ErrUnclassifiable, path)
	}

	src := planner.Source{
		Path:      path,
		Codec:     video.CodecName,
		Width:     video.Width,
		Height:    video.Height,
		FrameRate: video.Framerate(),
		Bitrate:   probe.Bitrate(),
	}
	if src.FrameRate <= 0 {
		src.FrameRate = defaultFrameRate
	}

	targets, err := p.layout.Targets(path, src.Is4K())
	if err != nil {
		p.catalog.Discard(path)
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}

	// Each target is produced independently, so an interrupted earlier run
	// only redoes what is actually missing.
	needDefault := !fileExists(targets.Default)
	needScaled := src.Is4K() && !fileExists(targets.Scaled)
	if !needDefault && !needScaled {
		logger.Info("outputs already exist, nothing to do")
		p.catalog.Complete(path, srcSize, srcModTime)
		return nil
	}

	if err := p.outputs.EnsureDir(targets.Dir); err != nil {
		p.catalog.Discard(path)
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}

	subPlan := planner.PlanSubtitles(probe.SubtitleStreams())
	ceiling := p.planner.Ceiling(src.FrameRate, src.Is4K())
	working := p.planner.WorkingBitrate(src)

	logger.Info("processing file",
		slog.String("codec", src.Codec),
		slog.Int("width", src.Width),
		slog.Int("height", src.Height),
		slog.Float64("fps", src.FrameRate),
		slog.Int64("bitrate", src.Bitrate),
		slog.Bool("is_4k", src.Is4K()))

	// defaultInput is what the scaled derivative reads from: the source,
	// unless the source was already moved into place as the default target.
	defaultInput := path
	renamed := false

	if needDefault && p.renameOnly && planner.RenameEligible(src, subPlan, ceiling) {
		if err := p.outputs.Move(path, targets.Default); err != nil {
			p.catalog.Discard(path)
			return fmt.Errorf("%w: rename to output: %v", ErrFilesystem, err)
		}
		p.outputs.NormalizePermissions(targets.Default)
		logger.Info("source already compliant, moved into place",
			slog.String("output", targets.Default))
		defaultInput = targets.Default
		renamed = true
	}

	var prepared []subtitle.Prepared
	if subPlan.NeedsConversion() {
		prepared, err = p.subtitles.Prepare(ctx, defaultInput, subPlan)
		if err != nil {
			p.catalog.Discard(path)
			return fmt.Errorf("%w: preparing subtitles: %v", ErrTransient, err)
		}
		defer subtitle.Cleanup(prepared, logger)
	}

	if needDefault && !renamed {
		if err := p.executor.Encode(ctx, src, nil, working, subPlan, prepared, path, targets.Default); err != nil {
			p.catalog.Discard(path)
			return fmt.Errorf("%w: default output: %v", ErrEncode, err)
		}
	}

	if needScaled {
		srcRes := planner.Resolution{Width: src.Width, Height: src.Height}
		scaled := planner.ScaledResolution(src.Width, src.Height)
		scaledBitrate := planner.ScaledBitrate(working, srcRes, scaled)
		if err := p.executor.Encode(ctx, src, &scaled, scaledBitrate, subPlan, prepared, defaultInput, targets.Scaled); err != nil {
			p.catalog.Discard(path)
			return fmt.Errorf("%w: scaled output: %v", ErrEncode, err)
		}
	}

	if p.deleteOriginal && !renamed {
		if err := p.outputs.RemoveSource(path, p.layout.WatchRoot); err != nil {
			logger.Warn("removing original", slog.Any("error", err))
		}
	}

	logger.Info("file processed", slog.Duration("elapsed", time.Since(start).Round(time.Second)))

	// The source may be gone (deleted or moved into place). Record a
	// completion fingerprint only while it still exists to be rescanned.
	if _, err := os.Stat(path); err == nil {
		p.catalog.Complete(path, srcSize, srcModTime)
	} else {
		p.catalog.Discard(path)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
