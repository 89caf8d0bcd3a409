// Package subtitle handles advanced text subtitles (ass/ssa) that are
// extracted from the source, converted to SRT, and remapped into the output.
package subtitle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/scalyfin/scalyfin/internal/output"
	"github.com/scalyfin/scalyfin/internal/planner"
)

const conversionTimeout = 5 * time.Minute

// Prepared is one converted subtitle ready to be remapped into the output.
type Prepared struct {
	// Path is the converted SRT temp file.
	Path string
	// Action is the originating plan entry, carrying language and title
	// metadata for the remapped stream.
	Action planner.SubtitleAction
}

// Preparer extracts and converts the subtitle streams an encode plan marks
// for conversion.
type Preparer struct {
	ffmpegPath string
	outputs    *output.Manager
	logger     *slog.Logger
}

// NewPreparer creates a subtitle preparer.
func NewPreparer(ffmpegPath string, outputs *output.Manager, logger *slog.Logger) *Preparer {
	return &Preparer{ffmpegPath: ffmpegPath, outputs: outputs, logger: logger}
}

// Prepare extracts every convertible stream from the source and converts it
// to SRT. All intermediates are registered temp files; Cleanup removes them.
// A stream that fails to extract or convert is dropped with a warning rather
// than failing the whole job; the video is still worth producing.
func (p *Preparer) Prepare(ctx context.Context, sourcePath string, plan planner.SubtitlePlan) ([]Prepared, error) {
	var prepared []Prepared
	for _, action := range plan.Actions {
		if action.Mode != planner.ExtractConvert {
			continue
		}

		raw, err := p.extract(ctx, sourcePath, action)
		if err != nil {
			p.logger.Warn("subtitle extraction failed, dropping stream",
				slog.String("source", sourcePath),
				slog.Int("stream", action.Index),
				slog.Any("error", err))
			continue
		}

		srt, err := p.convert(ctx, raw)
		if err != nil {
			p.logger.Warn("subtitle conversion failed, dropping stream",
				slog.String("source", sourcePath),
				slog.Int("stream", action.Index),
				slog.Any("error", err))
			continue
		}

		prepared = append(prepared, Prepared{Path: srt, Action: action})
	}
	return prepared, nil
}

// extract copies one subtitle stream out of the container without
// transcoding it.
func (p *Preparer) extract(ctx context.Context, sourcePath string, action planner.SubtitleAction) (string, error) {
	dest, err := p.outputs.TempFile("sub", action.Extension())
	if err != nil {
		return "", err
	}

	args := []string{
		"-y",
		"-i", sourcePath,
		"-map", fmt.Sprintf("0:s:%d", action.Index),
		"-c:s", "copy",
		dest,
	}
	if err := p.runFFmpeg(ctx, args); err != nil {
		return "", fmt.Errorf("extracting subtitle stream %d: %w", action.Index, err)
	}
	return dest, nil
}

// convert transcodes an extracted ass/ssa file to SRT.
func (p *Preparer) convert(ctx context.Context, rawPath string) (string, error) {
	dest, err := p.outputs.TempFile("sub", ".srt")
	if err != nil {
		return "", err
	}

	args := []string{"-y", "-i", rawPath, dest}
	if err := p.runFFmpeg(ctx, args); err != nil {
		return "", fmt.Errorf("converting subtitle to srt: %w", err)
	}
	return dest, nil
}

func (p *Preparer) runFFmpeg(ctx context.Context, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, conversionTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, lastLine(stderr.Bytes()))
	}
	return nil
}

// Cleanup removes prepared subtitle temp files after the encode finishes.
func Cleanup(prepared []Prepared, logger *slog.Logger) {
	for _, s := range prepared {
		if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
			logger.Warn("removing subtitle temp file",
				slog.String("path", s.Path), slog.Any("error", err))
		}
	}
}

func lastLine(out []byte) string {
	out = bytes.TrimSpace(out)
	if i := bytes.LastIndexByte(out, '\n'); i >= 0 {
		out = out[i+1:]
	}
	return string(out)
}
