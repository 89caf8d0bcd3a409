// Package transcode builds and runs ffmpeg encode invocations, including
// the hardware-to-software retry that keeps a failing accelerator from
// blocking the pipeline.
package transcode

import (
	"fmt"
	"strconv"

	"github.com/scalyfin/scalyfin/internal/planner"
	"github.com/scalyfin/scalyfin/internal/subtitle"
)

// CommandBuilder assembles an ffmpeg argument list for one encode. Argument
// order matters to ffmpeg: hwaccel flags precede -i, stream maps precede
// their codec options, and output flags come last.
type CommandBuilder struct {
	inputArgs   []string
	input       string
	subInputs   []subtitle.Prepared
	videoFilter string
	encoder     string
	bitrate     int64
	copyAllSubs bool
	subCopies   []planner.SubtitleAction
	output      string
}

// NewCommandBuilder creates a builder for the main source input.
func NewCommandBuilder(input string) *CommandBuilder {
	return &CommandBuilder{input: input}
}

// WithInputArgs sets the pre-input acceleration flags.
func (b *CommandBuilder) WithInputArgs(args []string) *CommandBuilder {
	b.inputArgs = args
	return b
}

// WithVideoFilter sets the -vf chain. Empty means no filter.
func (b *CommandBuilder) WithVideoFilter(filter string) *CommandBuilder {
	b.videoFilter = filter
	return b
}

// WithVideoEncoder sets the encoder and target bitrate for the single video
// stream.
func (b *CommandBuilder) WithVideoEncoder(encoder string, bitrate int64) *CommandBuilder {
	b.encoder = encoder
	b.bitrate = bitrate
	return b
}

// WithSubtitles applies the subtitle handling decisions: streams copied from
// the source and converted files supplied as extra inputs.
func (b *CommandBuilder) WithSubtitles(plan planner.SubtitlePlan, converted []subtitle.Prepared) *CommandBuilder {
	b.copyAllSubs = plan.CopyAll
	b.subInputs = converted

	converting := make(map[int]bool, len(converted))
	for _, c := range converted {
		converting[c.Action.Index] = true
	}
	for _, action := range plan.Actions {
		if action.Mode == planner.CopyAsIs && !converting[action.Index] {
			b.subCopies = append(b.subCopies, action)
		}
	}
	return b
}

// WithOutput sets the destination path.
func (b *CommandBuilder) WithOutput(path string) *CommandBuilder {
	b.output = path
	return b
}

// Build produces the final argument list.
func (b *CommandBuilder) Build() []string {
	args := []string{"-y", "-fix_sub_duration"}
	args = append(args, b.inputArgs...)
	args = append(args, "-i", b.input)
	for _, s := range b.subInputs {
		args = append(args, "-i", s.Path)
	}

	if b.videoFilter != "" {
		args = append(args, "-vf", b.videoFilter)
	}

	args = append(args,
		"-map_metadata", "0",
		"-map", "0:v:0",
		"-c:v", b.encoder,
		"-b:v:0", strconv.FormatInt(b.bitrate, 10),
		"-map", "0:a",
		"-c:a", "copy",
	)

	args = append(args, b.subtitleArgs()...)
	args = append(args, "-movflags", "+faststart", b.output)
	return args
}

// subtitleArgs emits the subtitle maps. Converted files arrive as extra
// inputs numbered after the source, replacing their original streams;
// untouched streams are copied individually. With nothing converted the
// whole subtitle set is copied with a single map.
func (b *CommandBuilder) subtitleArgs() []string {
	if b.copyAllSubs {
		return []string{"-map", "0:s?", "-c:s", "copy"}
	}

	var args []string
	out := 0
	for _, action := range b.subCopies {
		args = append(args,
			"-map", fmt.Sprintf("0:s:%d", action.Index),
			fmt.Sprintf("-c:s:%d", out), "copy",
		)
		out++
	}
	for i, conv := range b.subInputs {
		args = append(args,
			"-map", fmt.Sprintf("%d:0", i+1),
			fmt.Sprintf("-c:s:%d", out), "srt",
		)
		if lang := conv.Action.Language; lang != "" {
			args = append(args, fmt.Sprintf("-metadata:s:s:%d", out), "language="+lang)
		}
		if title := conv.Action.Title; title != "" {
			args = append(args, fmt.Sprintf("-metadata:s:s:%d", out), "title="+title)
		}
		out++
	}
	return args
}
