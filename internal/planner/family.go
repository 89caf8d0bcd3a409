package planner

import (
	"fmt"
)

// Family is one acceleration backend with a fixed codec-support matrix.
// The set is closed: amd (VAAPI), rockchip (RKMPP), and software. A family
// is resolved once at startup; no string dispatch happens per job.
type Family interface {
	Name() string
	Hardware() bool
	// Encoder resolves the concrete encoder for a source codec. ok=false
	// means the family cannot encode this codec and the software family
	// must take the job instead.
	Encoder(sourceCodec string) (encoder string, ok bool)
	// InputArgs returns the hwaccel flags placed before -i.
	InputArgs() []string
	// Filter returns the -vf chain for an optional scale target.
	// Empty means no filter.
	Filter(scale *Resolution) string
}

// ResolveFamily maps an acceleration mode name to its family.
func ResolveFamily(mode, device string) (Family, error) {
	switch mode {
	case "amd":
		return &amdFamily{device: device}, nil
	case "rockchip":
		return &rockchipFamily{}, nil
	case "software":
		return softwareFamily{}, nil
	default:
		return nil, fmt.Errorf("unknown acceleration mode %q", mode)
	}
}

// Software returns the universal fallback family.
func Software() Family {
	return softwareFamily{}
}

// amdFamily encodes through VAAPI. All three delivery codecs are supported.
type amdFamily struct {
	device string
}

func (f *amdFamily) Name() string   { return "amd" }
func (f *amdFamily) Hardware() bool { return true }

func (f *amdFamily) Encoder(sourceCodec string) (string, bool) {
	switch sourceCodec {
	case "h264":
		return "h264_vaapi", true
	case "av1":
		return "av1_vaapi", true
	default:
		return "hevc_vaapi", true
	}
}

func (f *amdFamily) InputArgs() []string {
	return []string{"-hwaccel", "vaapi", "-vaapi_device", f.device}
}

func (f *amdFamily) Filter(scale *Resolution) string {
	// Frames must be uploaded to the GPU even without scaling.
	vf := "format=nv12,hwupload"
	if scale != nil {
		vf += fmt.Sprintf(",scale_vaapi=w=%d:h=%d", scale.Width, scale.Height)
	}
	return vf
}

// rockchipFamily encodes through RKMPP. AV1 is decode-only on this family,
// so AV1 jobs always fall through to software.
type rockchipFamily struct{}

func (rockchipFamily) Name() string   { return "rockchip" }
func (rockchipFamily) Hardware() bool { return true }

func (rockchipFamily) Encoder(sourceCodec string) (string, bool) {
	switch sourceCodec {
	case "h264":
		return "h264_rkmpp", true
	case "av1":
		return "", false
	default:
		return "hevc_rkmpp", true
	}
}

func (rockchipFamily) InputArgs() []string {
	return []string{"-hwaccel", "rkmpp"}
}

func (rockchipFamily) Filter(scale *Resolution) string {
	if scale == nil {
		return ""
	}
	return fmt.Sprintf("scale=%d:%d", scale.Width, scale.Height)
}

// softwareFamily is the universal fallback: libx264/libx265/libaom-av1.
type softwareFamily struct{}

func (softwareFamily) Name() string   { return "software" }
func (softwareFamily) Hardware() bool { return false }

func (softwareFamily) Encoder(sourceCodec string) (string, bool) {
	switch sourceCodec {
	case "h264":
		return "libx264", true
	case "av1":
		return "libaom-av1", true
	default:
		// HEVC covers hevc and any codec outside the delivery set,
		// mirroring the hardware families' default.
		return "libx265", true
	}
}

func (softwareFamily) InputArgs() []string { return nil }

func (softwareFamily) Filter(scale *Resolution) string {
	if scale == nil {
		return ""
	}
	return fmt.Sprintf("scale=%d:%d", scale.Width, scale.Height)
}
