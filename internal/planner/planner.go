// Package planner turns probed media facts into a concrete encode plan:
// encoder choice, bitrate, scale target, and subtitle handling. It performs
// no I/O; all inputs are gathered up front by the pipeline.
package planner

import (
	"log/slog"
	"math"
)

// ScaledTargetWidth is the fixed width of the 1080p-equivalent derivative.
const ScaledTargetWidth = 1920

// hfrThreshold is the frame rate at and above which the high-frame-rate
// bitrate tier applies.
const hfrThreshold = 35.0

// deliveryCodecs are codecs acceptable in output without re-encoding.
var deliveryCodecs = map[string]bool{
	"h264": true,
	"hevc": true,
	"av1":  true,
}

// Resolution is a width/height pair.
type Resolution struct {
	Width  int
	Height int
}

// Source carries the probed facts about one input file.
type Source struct {
	Path      string
	Codec     string
	Width     int
	Height    int
	FrameRate float64
	Bitrate   int64 // overall container bitrate; 0 if unknown
}

// Is4K classifies the source resolution.
func (s Source) Is4K() bool {
	return Is4K(s.Width, s.Height)
}

// Is4K reports whether a resolution is 4K class.
func Is4K(width, height int) bool {
	return width >= 3840 || height >= 2160
}

// ScaledResolution computes the 1080p-equivalent resolution, preserving the
// aspect ratio with a fixed target width and a ceiling-rounded height.
func ScaledResolution(width, height int) Resolution {
	h := int(math.Ceil(float64(ScaledTargetWidth) * float64(height) / float64(width)))
	return Resolution{Width: ScaledTargetWidth, Height: h}
}

// ScaledBitrate scales a bitrate by the area ratio between two resolutions,
// rounded up.
func ScaledBitrate(bitrate int64, src, dst Resolution) int64 {
	ratio := float64(dst.Width*dst.Height) / float64(src.Width*src.Height)
	return int64(math.Ceil(float64(bitrate) * ratio))
}

// CeilingTable holds the bitrate ceilings per frame-rate tier and
// resolution class, in bits per second.
type CeilingTable struct {
	Standard1080 int64
	Standard4K   int64
	HighFPS1080  int64
	HighFPS4K    int64
}

// Ceiling selects the bitrate ceiling for a frame rate and resolution class.
func (t CeilingTable) Ceiling(frameRate float64, is4K bool) int64 {
	if frameRate >= hfrThreshold {
		if is4K {
			return t.HighFPS4K
		}
		return t.HighFPS1080
	}
	if is4K {
		return t.Standard4K
	}
	return t.Standard1080
}

// EncodePlan is the fully resolved parameter set for one encoder invocation.
type EncodePlan struct {
	Family      string
	Hardware    bool
	Encoder     string
	InputArgs   []string
	VideoFilter string
	Bitrate     int64
	ScaleTo     *Resolution
	Subtitles   SubtitlePlan
}

// Planner maps sources to encode plans for a fixed acceleration family.
type Planner struct {
	family   Family
	ceilings CeilingTable
	logger   *slog.Logger
}

// New creates a planner bound to the startup-selected family.
func New(family Family, ceilings CeilingTable, logger *slog.Logger) *Planner {
	return &Planner{family: family, ceilings: ceilings, logger: logger}
}

// Family returns the planner's configured acceleration family.
func (p *Planner) Family() Family { return p.family }

// Ceiling exposes the ceiling lookup for the planner's table.
func (p *Planner) Ceiling(frameRate float64, is4K bool) int64 {
	return p.ceilings.Ceiling(frameRate, is4K)
}

// WorkingBitrate caps the source bitrate at the applicable ceiling. An
// unknown source bitrate (zero) is treated as the ceiling.
func (p *Planner) WorkingBitrate(src Source) int64 {
	ceiling := p.ceilings.Ceiling(src.FrameRate, src.Is4K())
	if src.Bitrate <= 0 || src.Bitrate > ceiling {
		return ceiling
	}
	return src.Bitrate
}

// Plan builds the encode plan for one output target. A nil scale means a
// same-resolution re-encode. The plan is built on the planner's family
// unless that family cannot encode the source codec, in which case the
// software family takes over; that fallback is always logged, never silent.
func (p *Planner) Plan(src Source, scale *Resolution, bitrate int64, subs SubtitlePlan) EncodePlan {
	return p.planWith(p.family, src, scale, bitrate, subs)
}

// PlanSoftware builds the same plan forced onto the software family. Used
// by the executor after a hardware encode failure.
func (p *Planner) PlanSoftware(src Source, scale *Resolution, bitrate int64, subs SubtitlePlan) EncodePlan {
	return p.planWith(Software(), src, scale, bitrate, subs)
}

func (p *Planner) planWith(family Family, src Source, scale *Resolution, bitrate int64, subs SubtitlePlan) EncodePlan {
	encoder, ok := family.Encoder(src.Codec)
	if !ok {
		p.logger.Info("codec not encodable on hardware family, using software encoder",
			slog.String("family", family.Name()),
			slog.String("codec", src.Codec))
		family = Software()
		encoder, _ = family.Encoder(src.Codec)
	}

	return EncodePlan{
		Family:      family.Name(),
		Hardware:    family.Hardware(),
		Encoder:     encoder,
		InputArgs:   family.InputArgs(),
		VideoFilter: family.Filter(scale),
		Bitrate:     bitrate,
		ScaleTo:     scale,
		Subtitles:   subs,
	}
}

// RenameEligible is the explicit predicate for satisfying the default
// target by renaming the source instead of re-encoding: the source codec is
// already a delivery codec, no subtitle stream needs conversion, and the
// original bitrate does not exceed the applicable ceiling. The default
// target is never rescaled, so no scale condition applies.
func RenameEligible(src Source, subs SubtitlePlan, ceiling int64) bool {
	if !deliveryCodecs[src.Codec] {
		return false
	}
	if subs.NeedsConversion() {
		return false
	}
	return src.Bitrate > 0 && src.Bitrate <= ceiling
}
