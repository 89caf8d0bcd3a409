package transcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scalyfin/scalyfin/internal/planner"
	"github.com/scalyfin/scalyfin/internal/subtitle"
)

func TestCommandBuilderBasic(t *testing.T) {
	args := NewCommandBuilder("/watch/in.mkv").
		WithVideoEncoder("libx265", 12_000_000).
		WithOutput("/tmp/out.mkv").
		Build()

	joined := strings.Join(args, " ")
	assert.True(t, strings.HasPrefix(joined, "-y -fix_sub_duration -i /watch/in.mkv"))
	assert.Contains(t, joined, "-map_metadata 0")
	assert.Contains(t, joined, "-map 0:v:0 -c:v libx265 -b:v:0 12000000")
	assert.Contains(t, joined, "-map 0:a -c:a copy")
	assert.True(t, strings.HasSuffix(joined, "-movflags +faststart /tmp/out.mkv"))
	assert.NotContains(t, joined, "-vf")
}

func TestCommandBuilderHardwareInputArgs(t *testing.T) {
	args := NewCommandBuilder("/watch/in.mkv").
		WithInputArgs([]string{"-hwaccel", "vaapi", "-vaapi_device", "/dev/dri/renderD128"}).
		WithVideoFilter("format=nv12,hwupload").
		WithVideoEncoder("hevc_vaapi", 49_000_000).
		WithOutput("/tmp/out.mkv").
		Build()

	joined := strings.Join(args, " ")
	// Acceleration flags must precede the input.
	assert.Less(t,
		strings.Index(joined, "-hwaccel vaapi"),
		strings.Index(joined, "-i /watch/in.mkv"))
	assert.Contains(t, joined, "-vf format=nv12,hwupload")
}

func TestCommandBuilderCopyAllSubtitles(t *testing.T) {
	args := NewCommandBuilder("/watch/in.mkv").
		WithVideoEncoder("libx264", 8_000_000).
		WithSubtitles(planner.SubtitlePlan{CopyAll: true}, nil).
		WithOutput("/tmp/out.mkv").
		Build()

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-map 0:s? -c:s copy")
}

func TestCommandBuilderConvertedSubtitles(t *testing.T) {
	plan := planner.SubtitlePlan{
		Actions: []planner.SubtitleAction{
			{Index: 0, Mode: planner.CopyAsIs, Codec: "subrip"},
			{Index: 1, Mode: planner.ExtractConvert, Codec: "ass", Language: "eng", Title: "Signs"},
		},
	}
	converted := []subtitle.Prepared{
		{Path: "/tmp/scalyfin-sub-1.srt", Action: plan.Actions[1]},
	}

	args := NewCommandBuilder("/watch/in.mkv").
		WithVideoEncoder("libx264", 8_000_000).
		WithSubtitles(plan, converted).
		WithOutput("/tmp/out.mkv").
		Build()

	joined := strings.Join(args, " ")

	// Converted file is an extra input after the source.
	require.Contains(t, joined, "-i /tmp/scalyfin-sub-1.srt")
	assert.Less(t,
		strings.Index(joined, "-i /watch/in.mkv"),
		strings.Index(joined, "-i /tmp/scalyfin-sub-1.srt"))

	// Untouched stream copied, converted stream mapped from input 1.
	assert.Contains(t, joined, "-map 0:s:0 -c:s:0 copy")
	assert.Contains(t, joined, "-map 1:0 -c:s:1 srt")
	assert.Contains(t, joined, "-metadata:s:s:1 language=eng")
	assert.Contains(t, joined, "-metadata:s:s:1 title=Signs")
	assert.NotContains(t, joined, "0:s?")
}
