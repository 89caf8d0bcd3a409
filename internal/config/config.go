// Package config provides configuration management for scalyfin using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultScanInterval      = 60 * time.Second
	defaultStabilityInterval = 5 * time.Second
	defaultRequiredRounds    = 4
	defaultHeartbeatInterval = 20 * time.Second
	defaultHeartbeatPath     = "/tmp/scalyfin_status"
	defaultOwnerUID          = 1000
	defaultOwnerGID          = 1000
	defaultEncodeWorkers     = 1

	defaultStandard1080p = 12_000_000
	defaultStandard4K    = 49_000_000
	defaultHighFPS1080p  = 18_000_000
	defaultHighFPS4K     = 75_000_000
)

// Config holds all configuration for the application.
type Config struct {
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
	Encoder   EncoderConfig   `mapstructure:"encoder" yaml:"encoder"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat" yaml:"heartbeat"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// WatchConfig holds ingestion and stability-check configuration.
type WatchConfig struct {
	// Root is the directory tree monitored for incoming video files.
	Root string `mapstructure:"root" yaml:"root"`
	// ScanInterval is the period of the full-tree rescan.
	ScanInterval time.Duration `mapstructure:"scan_interval" yaml:"scan_interval"`
	// StabilityInterval is the period of the stability check tick.
	StabilityInterval time.Duration `mapstructure:"stability_interval" yaml:"stability_interval"`
	// RequiredRounds is the number of consecutive unchanged checks before
	// a file is considered fully written.
	RequiredRounds int `mapstructure:"required_rounds" yaml:"required_rounds"`
}

// OutputConfig holds output placement and cleanup configuration.
type OutputConfig struct {
	Root           string `mapstructure:"root" yaml:"root"`
	TempDir        string `mapstructure:"temp_dir" yaml:"temp_dir"`
	DeleteOriginal bool   `mapstructure:"delete_original" yaml:"delete_original"`
	// RenameOnly allows satisfying a job by renaming the source when no
	// re-encode is actually required.
	RenameOnly bool `mapstructure:"rename_only" yaml:"rename_only"`
	OwnerUID   int  `mapstructure:"owner_uid" yaml:"owner_uid"`
	OwnerGID   int  `mapstructure:"owner_gid" yaml:"owner_gid"`
}

// EncoderConfig holds transcoder configuration.
type EncoderConfig struct {
	// Acceleration selects the encoder family: amd, rockchip, or software.
	Acceleration string `mapstructure:"acceleration" yaml:"acceleration"`
	// Device is the hardware device path, e.g. /dev/dri/renderD128 for VAAPI.
	Device      string       `mapstructure:"device" yaml:"device"`
	FFmpegPath  string       `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`
	FFprobePath string       `mapstructure:"ffprobe_path" yaml:"ffprobe_path"`
	Workers     int          `mapstructure:"workers" yaml:"workers"`
	Bitrates    BitrateTable `mapstructure:"bitrates" yaml:"bitrates"`
}

// BitrateTable holds the per-tier bitrate ceilings.
// The high-FPS tier applies at frame rates of 35 fps and above.
type BitrateTable struct {
	Standard ResolutionCeilings `mapstructure:"standard" yaml:"standard"`
	HighFPS  ResolutionCeilings `mapstructure:"high_fps" yaml:"high_fps"`
}

// ResolutionCeilings holds the bitrate ceilings per resolution class.
type ResolutionCeilings struct {
	FullHD BitRate `mapstructure:"1080p" yaml:"1080p"`
	UHD    BitRate `mapstructure:"4k" yaml:"4k"`
}

// HeartbeatConfig holds liveness marker configuration.
type HeartbeatConfig struct {
	Path     string        `mapstructure:"path" yaml:"path"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source" yaml:"add_source"`
	TimeFormat string `mapstructure:"time_format" yaml:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with SCALYFIN_, using underscores for nesting.
// Example: SCALYFIN_WATCH_ROOT=/watch_dir.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/scalyfin")
		v.AddConfigPath("$HOME/.scalyfin")
	}

	v.SetEnvPrefix("SCALYFIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - defaults and env vars apply.
	}

	// The text-unmarshaller hook lets BitRate values be written as "49M"
	// in YAML and environment variables.
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("watch.root", "/watch_dir")
	v.SetDefault("watch.scan_interval", defaultScanInterval)
	v.SetDefault("watch.stability_interval", defaultStabilityInterval)
	v.SetDefault("watch.required_rounds", defaultRequiredRounds)

	v.SetDefault("output.root", "/output_dir")
	v.SetDefault("output.temp_dir", "")
	v.SetDefault("output.delete_original", true)
	v.SetDefault("output.rename_only", false)
	v.SetDefault("output.owner_uid", defaultOwnerUID)
	v.SetDefault("output.owner_gid", defaultOwnerGID)

	v.SetDefault("encoder.acceleration", "software")
	v.SetDefault("encoder.device", "")
	v.SetDefault("encoder.ffmpeg_path", "ffmpeg")
	v.SetDefault("encoder.ffprobe_path", "ffprobe")
	v.SetDefault("encoder.workers", defaultEncodeWorkers)
	v.SetDefault("encoder.bitrates.standard.1080p", defaultStandard1080p)
	v.SetDefault("encoder.bitrates.standard.4k", defaultStandard4K)
	v.SetDefault("encoder.bitrates.high_fps.1080p", defaultHighFPS1080p)
	v.SetDefault("encoder.bitrates.high_fps.4k", defaultHighFPS4K)

	v.SetDefault("heartbeat.path", defaultHeartbeatPath)
	v.SetDefault("heartbeat.interval", defaultHeartbeatInterval)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if c.Watch.Root == "" {
		return fmt.Errorf("watch.root must be set")
	}
	if c.Output.Root == "" {
		return fmt.Errorf("output.root must be set")
	}
	if c.Watch.Root == c.Output.Root {
		return fmt.Errorf("watch.root and output.root must differ")
	}
	if c.Watch.ScanInterval <= 0 {
		return fmt.Errorf("watch.scan_interval must be positive")
	}
	if c.Watch.StabilityInterval <= 0 {
		return fmt.Errorf("watch.stability_interval must be positive")
	}
	if c.Watch.RequiredRounds < 1 {
		return fmt.Errorf("watch.required_rounds must be at least 1")
	}
	if c.Encoder.Workers < 1 {
		return fmt.Errorf("encoder.workers must be at least 1")
	}

	switch c.Encoder.Acceleration {
	case "amd", "rockchip", "software":
	default:
		return fmt.Errorf("encoder.acceleration must be one of amd, rockchip, software (got %q)", c.Encoder.Acceleration)
	}
	if c.Encoder.Acceleration == "amd" && c.Encoder.Device == "" {
		return fmt.Errorf("encoder.device must be set when acceleration is amd")
	}

	for _, ceil := range []BitRate{
		c.Encoder.Bitrates.Standard.FullHD, c.Encoder.Bitrates.Standard.UHD,
		c.Encoder.Bitrates.HighFPS.FullHD, c.Encoder.Bitrates.HighFPS.UHD,
	} {
		if ceil <= 0 {
			return fmt.Errorf("encoder.bitrates ceilings must be positive")
		}
	}

	if c.Heartbeat.Interval <= 0 {
		return fmt.Errorf("heartbeat.interval must be positive")
	}

	return nil
}
