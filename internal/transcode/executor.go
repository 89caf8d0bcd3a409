package transcode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/scalyfin/scalyfin/internal/output"
	"github.com/scalyfin/scalyfin/internal/planner"
	"github.com/scalyfin/scalyfin/internal/subtitle"
)

// stderrTailLines bounds how much encoder output is kept for error reports.
const stderrTailLines = 15

// Transcoder runs one encode from an input file to an output file.
// Implementations other than the ffmpeg runner exist only in tests.
type Transcoder interface {
	Transcode(ctx context.Context, plan planner.EncodePlan, inputPath, outputPath string, subs []subtitle.Prepared) error
}

// FFmpegRunner is the real Transcoder, shelling out to ffmpeg.
type FFmpegRunner struct {
	ffmpegPath string
	logger     *slog.Logger
}

// NewFFmpegRunner creates a runner for the given ffmpeg binary.
func NewFFmpegRunner(ffmpegPath string, logger *slog.Logger) *FFmpegRunner {
	return &FFmpegRunner{ffmpegPath: ffmpegPath, logger: logger}
}

// Transcode builds and executes the ffmpeg command for one plan. On failure
// the error carries the tail of ffmpeg's stderr, which is where ffmpeg puts
// its diagnosis.
func (r *FFmpegRunner) Transcode(ctx context.Context, plan planner.EncodePlan, inputPath, outputPath string, subs []subtitle.Prepared) error {
	args := NewCommandBuilder(inputPath).
		WithInputArgs(plan.InputArgs).
		WithVideoFilter(plan.VideoFilter).
		WithVideoEncoder(plan.Encoder, plan.Bitrate).
		WithSubtitles(plan.Subtitles, subs).
		WithOutput(outputPath).
		Build()

	r.logger.Debug("running ffmpeg",
		slog.String("encoder", plan.Encoder),
		slog.String("output", outputPath))

	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg (%s): %w: %s", plan.Encoder, err, stderrTail(stderr.String()))
	}
	return nil
}

func stderrTail(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) > stderrTailLines {
		lines = lines[len(lines)-stderrTailLines:]
	}
	return strings.Join(lines, "\n")
}

// Executor drives one encode to a published output: temp file, encode,
// hardware-to-software retry, atomic publish, permission normalization.
type Executor struct {
	runner  Transcoder
	planner *planner.Planner
	outputs *output.Manager
	logger  *slog.Logger
}

// NewExecutor creates an executor.
func NewExecutor(runner Transcoder, plan *planner.Planner, outputs *output.Manager, logger *slog.Logger) *Executor {
	return &Executor{runner: runner, planner: plan, outputs: outputs, logger: logger}
}

// Encode produces finalPath from inputPath according to the given
// parameters. The encode writes to a registered temp file; finalPath only
// comes into existence by atomic publish after a successful encode, so an
// interrupted run never leaves a partial output at the final path. If the
// first attempt uses a hardware encoder and fails, the encode is retried
// exactly once on the software family before the job fails.
func (e *Executor) Encode(ctx context.Context, src planner.Source, scale *planner.Resolution, bitrate int64, subPlan planner.SubtitlePlan, subs []subtitle.Prepared, inputPath, finalPath string) error {
	jobID := ulid.Make().String()
	logger := e.logger.With(slog.String("job_id", jobID), slog.String("output", finalPath))

	plan := e.planner.Plan(src, scale, bitrate, subPlan)
	logger.Info("starting encode",
		slog.String("family", plan.Family),
		slog.String("encoder", plan.Encoder),
		slog.Int64("bitrate", plan.Bitrate))

	tempPath, err := e.outputs.TempFile("encode", filepath.Ext(finalPath))
	if err != nil {
		return err
	}

	err = e.runner.Transcode(ctx, plan, inputPath, tempPath, subs)
	if err != nil && plan.Hardware && ctx.Err() == nil {
		logger.Warn("hardware encode failed, retrying with software encoder",
			slog.Any("error", err))
		plan = e.planner.PlanSoftware(src, scale, bitrate, subPlan)
		err = e.runner.Transcode(ctx, plan, inputPath, tempPath, subs)
	}
	if err != nil {
		e.discard(tempPath, logger)
		return err
	}

	e.outputs.NormalizePermissions(tempPath)
	if err := e.outputs.Publish(tempPath, finalPath); err != nil {
		e.discard(tempPath, logger)
		return err
	}
	e.outputs.NormalizePermissions(finalPath)

	logger.Info("encode completed", slog.String("encoder", plan.Encoder))
	return nil
}

func (e *Executor) discard(tempPath string, logger *slog.Logger) {
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("removing failed encode temp file",
			slog.String("path", tempPath), slog.Any("error", err))
	}
}
