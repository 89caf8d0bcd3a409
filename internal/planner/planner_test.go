package planner

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scalyfin/scalyfin/internal/media"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCeilings() CeilingTable {
	return CeilingTable{
		Standard1080: 12_000_000,
		Standard4K:   49_000_000,
		HighFPS1080:  18_000_000,
		HighFPS4K:    75_000_000,
	}
}

func TestIs4K(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		want   bool
	}{
		{"uhd", 3840, 2160, true},
		{"dci 4k", 4096, 2160, true},
		{"wide 4k with short height", 3840, 1600, true},
		{"full hd", 1920, 1080, false},
		{"720p", 1280, 720, false},
		{"just under", 3839, 2159, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Is4K(tt.width, tt.height))
		})
	}
}

func TestScaledResolution(t *testing.T) {
	t.Run("16:9 uhd", func(t *testing.T) {
		got := ScaledResolution(3840, 2160)
		assert.Equal(t, Resolution{Width: 1920, Height: 1080}, got)
	})

	t.Run("dci 4k rounds height up", func(t *testing.T) {
		got := ScaledResolution(4096, 2160)
		assert.Equal(t, Resolution{Width: 1920, Height: 1013}, got)
	})

	t.Run("ultrawide", func(t *testing.T) {
		got := ScaledResolution(3840, 1600)
		assert.Equal(t, Resolution{Width: 1920, Height: 800}, got)
	})
}

func TestScaledBitrate(t *testing.T) {
	src := Resolution{Width: 3840, Height: 2160}
	dst := Resolution{Width: 1920, Height: 1080}

	// Quarter of the pixels, quarter of the bits.
	assert.Equal(t, int64(10_000_000), ScaledBitrate(40_000_000, src, dst))

	// Non-integer ratios round up.
	odd := Resolution{Width: 4096, Height: 2160}
	got := ScaledBitrate(49_000_000, odd, ScaledResolution(4096, 2160))
	assert.Greater(t, got, int64(0))
	assert.Less(t, got, int64(49_000_000))
}

func TestCeilingTable(t *testing.T) {
	ceilings := testCeilings()

	tests := []struct {
		name      string
		frameRate float64
		is4K      bool
		want      int64
	}{
		{"standard 1080p", 23.976, false, 12_000_000},
		{"standard 4k", 30, true, 49_000_000},
		{"hfr 1080p", 60, false, 18_000_000},
		{"hfr 4k", 59.94, true, 75_000_000},
		{"threshold is inclusive", 35, true, 75_000_000},
		{"just under threshold", 34.99, true, 49_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ceilings.Ceiling(tt.frameRate, tt.is4K))
		})
	}
}

func TestWorkingBitrate(t *testing.T) {
	p := New(Software(), testCeilings(), testLogger())

	t.Run("excessive source is capped", func(t *testing.T) {
		src := Source{Width: 3840, Height: 2160, FrameRate: 30, Bitrate: 80_000_000}
		assert.Equal(t, int64(49_000_000), p.WorkingBitrate(src))
	})

	t.Run("compliant source passes through", func(t *testing.T) {
		src := Source{Width: 1920, Height: 1080, FrameRate: 60, Bitrate: 10_000_000}
		assert.Equal(t, int64(10_000_000), p.WorkingBitrate(src))
	})

	t.Run("unknown bitrate becomes the ceiling", func(t *testing.T) {
		src := Source{Width: 1920, Height: 1080, FrameRate: 24, Bitrate: 0}
		assert.Equal(t, int64(12_000_000), p.WorkingBitrate(src))
	})
}

func TestResolveFamily(t *testing.T) {
	t.Run("amd", func(t *testing.T) {
		f, err := ResolveFamily("amd", "/dev/dri/renderD128")
		require.NoError(t, err)
		assert.Equal(t, "amd", f.Name())
		assert.True(t, f.Hardware())
	})

	t.Run("rockchip", func(t *testing.T) {
		f, err := ResolveFamily("rockchip", "")
		require.NoError(t, err)
		assert.Equal(t, "rockchip", f.Name())
	})

	t.Run("software", func(t *testing.T) {
		f, err := ResolveFamily("software", "")
		require.NoError(t, err)
		assert.False(t, f.Hardware())
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := ResolveFamily("nvidia", "")
		require.Error(t, err)
	})
}

func TestFamilyEncoders(t *testing.T) {
	t.Run("amd supports all delivery codecs", func(t *testing.T) {
		f, err := ResolveFamily("amd", "/dev/dri/renderD128")
		require.NoError(t, err)

		enc, ok := f.Encoder("h264")
		require.True(t, ok)
		assert.Equal(t, "h264_vaapi", enc)

		enc, ok = f.Encoder("av1")
		require.True(t, ok)
		assert.Equal(t, "av1_vaapi", enc)

		enc, ok = f.Encoder("hevc")
		require.True(t, ok)
		assert.Equal(t, "hevc_vaapi", enc)
	})

	t.Run("rockchip cannot encode av1", func(t *testing.T) {
		f, err := ResolveFamily("rockchip", "")
		require.NoError(t, err)

		_, ok := f.Encoder("av1")
		assert.False(t, ok)
	})

	t.Run("unknown codecs default to hevc", func(t *testing.T) {
		enc, ok := Software().Encoder("mpeg2video")
		require.True(t, ok)
		assert.Equal(t, "libx265", enc)
	})
}

func TestPlanFallsBackToSoftware(t *testing.T) {
	rockchip, err := ResolveFamily("rockchip", "")
	require.NoError(t, err)
	p := New(rockchip, testCeilings(), testLogger())

	src := Source{Codec: "av1", Width: 3840, Height: 2160, FrameRate: 24, Bitrate: 20_000_000}
	plan := p.Plan(src, nil, 20_000_000, SubtitlePlan{})

	assert.Equal(t, "software", plan.Family)
	assert.False(t, plan.Hardware)
	assert.Equal(t, "libaom-av1", plan.Encoder)
	assert.Empty(t, plan.InputArgs)
}

func TestPlanHardware(t *testing.T) {
	amd, err := ResolveFamily("amd", "/dev/dri/renderD128")
	require.NoError(t, err)
	p := New(amd, testCeilings(), testLogger())

	src := Source{Codec: "hevc", Width: 3840, Height: 2160, FrameRate: 24, Bitrate: 30_000_000}

	t.Run("full resolution keeps upload filter", func(t *testing.T) {
		plan := p.Plan(src, nil, 30_000_000, SubtitlePlan{})
		assert.Equal(t, "hevc_vaapi", plan.Encoder)
		assert.True(t, plan.Hardware)
		assert.Equal(t, "format=nv12,hwupload", plan.VideoFilter)
		assert.Contains(t, plan.InputArgs, "-vaapi_device")
	})

	t.Run("scaled plan carries scale filter", func(t *testing.T) {
		scale := ScaledResolution(3840, 2160)
		plan := p.Plan(src, &scale, 7_500_000, SubtitlePlan{})
		assert.Equal(t, "format=nv12,hwupload,scale_vaapi=w=1920:h=1080", plan.VideoFilter)
	})
}

func TestPlanSoftwareForcesSoftware(t *testing.T) {
	amd, err := ResolveFamily("amd", "/dev/dri/renderD128")
	require.NoError(t, err)
	p := New(amd, testCeilings(), testLogger())

	src := Source{Codec: "hevc", Width: 1920, Height: 1080, FrameRate: 24, Bitrate: 8_000_000}
	plan := p.PlanSoftware(src, nil, 8_000_000, SubtitlePlan{})

	assert.Equal(t, "software", plan.Family)
	assert.Equal(t, "libx265", plan.Encoder)
	assert.Empty(t, plan.VideoFilter)
}

func TestRenameEligible(t *testing.T) {
	compliant := Source{Codec: "hevc", Width: 1920, Height: 1080, FrameRate: 24, Bitrate: 8_000_000}

	t.Run("compliant source is eligible", func(t *testing.T) {
		assert.True(t, RenameEligible(compliant, SubtitlePlan{}, 12_000_000))
	})

	t.Run("non delivery codec", func(t *testing.T) {
		src := compliant
		src.Codec = "mpeg2video"
		assert.False(t, RenameEligible(src, SubtitlePlan{}, 12_000_000))
	})

	t.Run("bitrate above ceiling", func(t *testing.T) {
		src := compliant
		src.Bitrate = 20_000_000
		assert.False(t, RenameEligible(src, SubtitlePlan{}, 12_000_000))
	})

	t.Run("unknown bitrate", func(t *testing.T) {
		src := compliant
		src.Bitrate = 0
		assert.False(t, RenameEligible(src, SubtitlePlan{}, 12_000_000))
	})

	t.Run("subtitle conversion blocks rename", func(t *testing.T) {
		plan := SubtitlePlan{Actions: []SubtitleAction{{Index: 0, Mode: ExtractConvert, Codec: "ass"}}}
		assert.False(t, RenameEligible(compliant, plan, 12_000_000))
	})
}

func TestPlanSubtitles(t *testing.T) {
	sub := func(codec string) media.ProbeStream {
		return media.ProbeStream{CodecType: "subtitle", CodecName: codec}
	}

	t.Run("no streams", func(t *testing.T) {
		plan := PlanSubtitles(nil)
		assert.True(t, plan.Empty())
	})

	t.Run("only copyable streams collapse to copy all", func(t *testing.T) {
		plan := PlanSubtitles([]media.ProbeStream{sub("subrip"), sub("hdmv_pgs_subtitle")})
		assert.True(t, plan.CopyAll)
		assert.Empty(t, plan.Actions)
		assert.False(t, plan.NeedsConversion())
	})

	t.Run("ass streams are converted", func(t *testing.T) {
		plan := PlanSubtitles([]media.ProbeStream{sub("subrip"), sub("ass"), sub("ssa")})
		require.Len(t, plan.Actions, 3)
		assert.False(t, plan.CopyAll)
		assert.True(t, plan.NeedsConversion())

		assert.Equal(t, CopyAsIs, plan.Actions[0].Mode)
		assert.Equal(t, ExtractConvert, plan.Actions[1].Mode)
		assert.Equal(t, ".ass", plan.Actions[1].Extension())
		assert.Equal(t, ExtractConvert, plan.Actions[2].Mode)
		assert.Equal(t, ".ssa", plan.Actions[2].Extension())
	})

	t.Run("stream indexes follow subtitle order", func(t *testing.T) {
		plan := PlanSubtitles([]media.ProbeStream{sub("ass"), sub("subrip")})
		require.Len(t, plan.Actions, 2)
		assert.Equal(t, 0, plan.Actions[0].Index)
		assert.Equal(t, 1, plan.Actions[1].Index)
	})
}
