package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/scalyfin/scalyfin/internal/catalog"
	"github.com/scalyfin/scalyfin/internal/heartbeat"
	"github.com/scalyfin/scalyfin/internal/ingest"
	"github.com/scalyfin/scalyfin/internal/media"
	"github.com/scalyfin/scalyfin/internal/observability"
	"github.com/scalyfin/scalyfin/internal/output"
	"github.com/scalyfin/scalyfin/internal/pipeline"
	"github.com/scalyfin/scalyfin/internal/planner"
	"github.com/scalyfin/scalyfin/internal/subtitle"
	"github.com/scalyfin/scalyfin/internal/tracker"
	"github.com/scalyfin/scalyfin/internal/transcode"
	"github.com/scalyfin/scalyfin/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the transcode daemon",
	Long: `Run the daemon: watch the configured directory tree, wait for incoming
files to stabilize, and transcode them into the output tree. The daemon
runs until interrupted (SIGINT, SIGTERM, or SIGHUP).`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("watch-root", "", "directory tree to watch for incoming files")
	serveCmd.Flags().String("output-root", "", "directory tree for produced outputs")
	serveCmd.Flags().String("acceleration", "", "encoder family (amd, rockchip, software)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	overrideIfSet(cmd.Flags(), "watch-root", &cfg.Watch.Root)
	overrideIfSet(cmd.Flags(), "output-root", &cfg.Output.Root)
	overrideIfSet(cmd.Flags(), "acceleration", &cfg.Encoder.Acceleration)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)
	logger.Info("starting scalyfin",
		slog.String("version", version.Version),
		slog.String("watch_root", cfg.Watch.Root),
		slog.String("output_root", cfg.Output.Root),
		slog.String("acceleration", cfg.Encoder.Acceleration))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", slog.String("signal", sig.String()))
		cancel()
	}()

	// Leftovers from a previous interrupted run.
	output.SweepOrphans(cfg.Output.TempDir, observability.WithComponent(logger, "sweep"))

	family, err := planner.ResolveFamily(cfg.Encoder.Acceleration, cfg.Encoder.Device)
	if err != nil {
		return err
	}
	ceilings := planner.CeilingTable{
		Standard1080: cfg.Encoder.Bitrates.Standard.FullHD.Int64(),
		Standard4K:   cfg.Encoder.Bitrates.Standard.UHD.Int64(),
		HighFPS1080:  cfg.Encoder.Bitrates.HighFPS.FullHD.Int64(),
		HighFPS4K:    cfg.Encoder.Bitrates.HighFPS.UHD.Int64(),
	}

	cat := catalog.New(observability.WithComponent(logger, "catalog"))
	intake := ingest.NewIntake(cat, observability.WithComponent(logger, "ingest"))
	scanner := ingest.NewScanner(cfg.Watch.Root, intake, observability.WithComponent(logger, "scanner"))
	watcher, err := ingest.NewWatcher(cfg.Watch.Root, intake, observability.WithComponent(logger, "watcher"))
	if err != nil {
		return fmt.Errorf("setting up filesystem watcher: %w", err)
	}

	outputs := output.NewManager(cfg.Output.TempDir, cfg.Output.OwnerUID, cfg.Output.OwnerGID,
		observability.WithComponent(logger, "output"))
	prober := media.NewProber(cfg.Encoder.FFprobePath)
	plan := planner.New(family, ceilings, observability.WithComponent(logger, "planner"))
	runner := transcode.NewFFmpegRunner(cfg.Encoder.FFmpegPath, observability.WithComponent(logger, "ffmpeg"))
	executor := transcode.NewExecutor(runner, plan, outputs, observability.WithComponent(logger, "transcode"))
	subs := subtitle.NewPreparer(cfg.Encoder.FFmpegPath, outputs, observability.WithComponent(logger, "subtitle"))

	layout := output.Layout{WatchRoot: cfg.Watch.Root, OutputRoot: cfg.Output.Root}
	pipe := pipeline.New(cat, prober, plan, executor, subs, outputs, layout,
		pipeline.Options{
			DeleteOriginal: cfg.Output.DeleteOriginal,
			RenameOnly:     cfg.Output.RenameOnly,
		},
		observability.WithComponent(logger, "pipeline"))

	stable := make(chan string)
	trk := tracker.New(cat, media.NewProcessChecker(),
		cfg.Watch.StabilityInterval, cfg.Watch.RequiredRounds, stable,
		observability.WithComponent(logger, "tracker"))

	hb := heartbeat.New(cfg.Heartbeat.Path, cfg.Heartbeat.Interval,
		observability.WithComponent(logger, "heartbeat"),
		func(error) { cancel() })

	if err := scanner.Scan(ctx); err != nil {
		logger.Warn("initial scan failed", slog.Any("error", err))
	}

	rescan := cron.New()
	rescan.Schedule(cron.Every(cfg.Watch.ScanInterval), cron.FuncJob(func() {
		if err := scanner.Scan(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("periodic scan failed", slog.Any("error", err))
		}
	}))
	rescan.Start()

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); hb.Run(ctx) }()
	go func() { defer wg.Done(); _ = watcher.Run(ctx) }()
	go func() { defer wg.Done(); trk.Run(ctx) }()
	go func() { defer wg.Done(); pipe.Run(ctx, stable, cfg.Encoder.Workers) }()

	<-ctx.Done()
	<-rescan.Stop().Done()
	wg.Wait()

	outputs.CleanupTemps()
	logger.Info("shutdown complete")
	return nil
}
