package planner

import "github.com/scalyfin/scalyfin/internal/media"

// SubtitleMode says what the executor must do with one subtitle stream.
type SubtitleMode int

const (
	// CopyAsIs passes the stream through untouched.
	CopyAsIs SubtitleMode = iota
	// ExtractConvert extracts the stream to a temp file, converts it to
	// SRT, and remaps the converted file into the output.
	ExtractConvert
)

// convertibleExtensions maps the advanced text-subtitle codecs the encoder
// cannot transcode directly to their on-disk extension.
var convertibleExtensions = map[string]string{
	"ass": ".ass",
	"ssa": ".ssa",
}

// SubtitleAction describes the handling of one subtitle stream. Index is
// the stream's position among the subtitle streams (ffmpeg 0:s:N order).
type SubtitleAction struct {
	Index    int
	Mode     SubtitleMode
	Codec    string
	Language string
	Title    string
}

// Extension returns the temp-file extension for a convertible stream.
func (a SubtitleAction) Extension() string {
	return convertibleExtensions[a.Codec]
}

// SubtitlePlan is the ordered handling decision for all subtitle streams.
type SubtitlePlan struct {
	Actions []SubtitleAction
	// CopyAll collapses per-stream copies into a single "copy all
	// subtitles" directive. Set only when there are copyable streams and
	// nothing to convert.
	CopyAll bool
}

// NeedsConversion reports whether any stream requires extract-and-convert.
func (p SubtitlePlan) NeedsConversion() bool {
	for _, a := range p.Actions {
		if a.Mode == ExtractConvert {
			return true
		}
	}
	return false
}

// Empty reports whether the plan carries no subtitle handling at all.
func (p SubtitlePlan) Empty() bool {
	return len(p.Actions) == 0 && !p.CopyAll
}

// PlanSubtitles decides per-stream handling for the given subtitle streams.
// ass/ssa streams are converted; everything else is copied. With nothing to
// convert the plan collapses to a single copy-all directive, and with no
// subtitle streams at all the plan is empty.
func PlanSubtitles(streams []media.ProbeStream) SubtitlePlan {
	var plan SubtitlePlan
	convertible := false
	for i, s := range streams {
		action := SubtitleAction{
			Index:    i,
			Codec:    s.CodecName,
			Language: s.Language(),
			Title:    s.Title(),
		}
		if _, ok := convertibleExtensions[s.CodecName]; ok {
			action.Mode = ExtractConvert
			convertible = true
		} else {
			action.Mode = CopyAsIs
		}
		plan.Actions = append(plan.Actions, action)
	}

	if !convertible && len(plan.Actions) > 0 {
		plan = SubtitlePlan{CopyAll: true}
	}
	return plan
}
