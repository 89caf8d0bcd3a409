package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/watch_dir", cfg.Watch.Root)
	assert.Equal(t, 60*time.Second, cfg.Watch.ScanInterval)
	assert.Equal(t, 5*time.Second, cfg.Watch.StabilityInterval)
	assert.Equal(t, 4, cfg.Watch.RequiredRounds)

	assert.Equal(t, "/output_dir", cfg.Output.Root)
	assert.True(t, cfg.Output.DeleteOriginal)
	assert.Equal(t, 1000, cfg.Output.OwnerUID)
	assert.Equal(t, 1000, cfg.Output.OwnerGID)

	assert.Equal(t, "software", cfg.Encoder.Acceleration)
	assert.Equal(t, 1, cfg.Encoder.Workers)
	assert.Equal(t, int64(12_000_000), cfg.Encoder.Bitrates.Standard.FullHD.Int64())
	assert.Equal(t, int64(49_000_000), cfg.Encoder.Bitrates.Standard.UHD.Int64())
	assert.Equal(t, int64(18_000_000), cfg.Encoder.Bitrates.HighFPS.FullHD.Int64())
	assert.Equal(t, int64(75_000_000), cfg.Encoder.Bitrates.HighFPS.UHD.Int64())

	assert.Equal(t, "/tmp/scalyfin_status", cfg.Heartbeat.Path)
	assert.Equal(t, 20*time.Second, cfg.Heartbeat.Interval)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
watch:
  root: /media/incoming
  required_rounds: 6
output:
  root: /media/library
encoder:
  acceleration: amd
  device: /dev/dri/renderD128
  bitrates:
    standard:
      4k: 40M
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/media/incoming", cfg.Watch.Root)
	assert.Equal(t, 6, cfg.Watch.RequiredRounds)
	assert.Equal(t, "amd", cfg.Encoder.Acceleration)
	assert.Equal(t, int64(40_000_000), cfg.Encoder.Bitrates.Standard.UHD.Int64(),
		"human-readable bitrate strings must parse")
	assert.Equal(t, int64(12_000_000), cfg.Encoder.Bitrates.Standard.FullHD.Int64(),
		"unset ceilings keep their defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SCALYFIN_WATCH_ROOT", "/from/env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Watch.Root)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	t.Run("valid defaults", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("same watch and output root", func(t *testing.T) {
		cfg := valid()
		cfg.Output.Root = cfg.Watch.Root
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown acceleration", func(t *testing.T) {
		cfg := valid()
		cfg.Encoder.Acceleration = "nvidia"
		assert.Error(t, cfg.Validate())
	})

	t.Run("amd requires a device", func(t *testing.T) {
		cfg := valid()
		cfg.Encoder.Acceleration = "amd"
		cfg.Encoder.Device = ""
		assert.Error(t, cfg.Validate())

		cfg.Encoder.Device = "/dev/dri/renderD128"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rounds below one", func(t *testing.T) {
		cfg := valid()
		cfg.Watch.RequiredRounds = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero ceiling", func(t *testing.T) {
		cfg := valid()
		cfg.Encoder.Bitrates.HighFPS.UHD = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero workers", func(t *testing.T) {
		cfg := valid()
		cfg.Encoder.Workers = 0
		assert.Error(t, cfg.Validate())
	})
}
