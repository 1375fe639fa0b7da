package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/physicam/internal/exposure"
	"github.com/normanking/physicam/internal/logging"
	"github.com/normanking/physicam/internal/postfx"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "auto", cfg.Camera.Mode)
	assert.Equal(t, "35mm", cfg.Camera.Sensor)
	assert.Equal(t, float32(0.5), cfg.Camera.ClipNear)
	assert.Equal(t, exposure.DefaultBounds(), cfg.Camera.Bounds())
	assert.Equal(t, "incremental", cfg.PostFX.Bloom.BlurMode)
	assert.Equal(t, "filmic", cfg.PostFX.Tonemap.Method)
	assert.Len(t, cfg.PostFX.Bloom.Spreads, postfx.BloomLevels)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestDefaultsConvertToPackageDefaults(t *testing.T) {
	cfg := DefaultConfig()

	fx, err := cfg.ToPostFXSettings()
	require.NoError(t, err)
	assert.Equal(t, postfx.DefaultSettings(), fx)

	es, err := cfg.ToExposureSettings()
	require.NoError(t, err)
	assert.Equal(t, exposure.DefaultSettings(), es)

	cc, err := cfg.ToCameraConfig(640, 480)
	require.NoError(t, err)
	assert.Equal(t, exposure.Auto, cc.Mode)
	assert.Equal(t, 640, cc.Width)
	assert.Equal(t, float32(1000), cc.ClipFar)

	lc := cfg.ToLoggingConfig()
	assert.Equal(t, logging.LevelInfo, lc.Level)
	assert.Empty(t, lc.LogDir)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Camera.Mode = "manual"
	cfg.Camera.ISO = 800
	cfg.Camera.Sensor = "aps-c"
	cfg.Camera.Compensation = -1.5
	cfg.PostFX.Bloom.BlurMode = "ninetap"
	cfg.PostFX.Bloom.Spreads = []float32{1, 4, 8, 16, 32}
	cfg.PostFX.Bloom.DirtTexture = "dirt.png"
	cfg.PostFX.Tonemap.Method = "uncharted2"
	cfg.PostFX.DoF.Pentagon = true
	cfg.GPU.DisableExtensions = []string{"GL_EXT_direct_state_access"}
	cfg.Logging.Level = "debug"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveToPath(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	fx, err := loaded.ToPostFXSettings()
	require.NoError(t, err)
	assert.Equal(t, postfx.BlurNineTap, fx.Bloom.Blur)
	assert.Equal(t, postfx.Uncharted2, fx.Tonemap.Method)
	assert.Equal(t, int32(-1), fx.Bloom.DirtTexture)
	assert.True(t, fx.DoF.Pentagon)

	cc, err := loaded.ToCameraConfig(10, 10)
	require.NoError(t, err)
	assert.Equal(t, exposure.Manual, cc.Mode)
	assert.Equal(t, exposure.APSC, cc.Settings.Sensor)
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", "camera:\n  iso: 400\npostfx:\n  bloom:\n    intensity: 0.8\n")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, float32(400), cfg.Camera.ISO)
	assert.Equal(t, float32(0.8), cfg.PostFX.Bloom.Intensity)
	assert.Equal(t, float32(7.5), cfg.Camera.Aperture)
	assert.True(t, cfg.PostFX.Bloom.Enabled)
	assert.Equal(t, 1280, cfg.Window.Width)
}

func TestEnvOverride(t *testing.T) {
	path := writeFile(t, "config.yaml", "camera:\n  iso: 400\n")
	t.Setenv("PHYSICAM_CAMERA_ISO", "1600")
	t.Setenv("PHYSICAM_POSTFX_TONEMAP_METHOD", "reinhard")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, float32(1600), cfg.Camera.ISO)
	assert.Equal(t, "reinhard", cfg.PostFX.Tonemap.Method)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "camera:\n  mode: sideways\n")
	_, err := LoadFromPath(path)
	assert.True(t, errors.Is(err, ErrInvalid))

	_, err = LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"mode", func(c *Config) { c.Camera.Mode = "program" }},
		{"sensor", func(c *Config) { c.Camera.Sensor = "super35" }},
		{"focal length", func(c *Config) { c.Camera.FocalLength = 0 }},
		{"clip planes", func(c *Config) { c.Camera.ClipFar = c.Camera.ClipNear }},
		{"iso range", func(c *Config) { c.Camera.ISORange = exposure.Range{Min: 800, Max: 100} }},
		{"blur mode", func(c *Config) { c.PostFX.Bloom.BlurMode = "box" }},
		{"spreads", func(c *Config) { c.PostFX.Bloom.Spreads = []float32{1, 2} }},
		{"strengths", func(c *Config) { c.PostFX.Bloom.Strengths = make([]float32, 6) }},
		{"method", func(c *Config) { c.PostFX.Tonemap.Method = "aces" }},
		{"lens scale", func(c *Config) { c.PostFX.LensScale = 0 }},
		{"grain", func(c *Config) { c.PostFX.Grain.MaxNoise = 0 }},
		{"window", func(c *Config) { c.Window.Height = 0 }},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "%v", err)
		})
	}
}

func TestEmptyBloomLevelsUseModeDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PostFX.Bloom.BlurMode = "ninetap"
	cfg.PostFX.Bloom.Spreads = nil
	cfg.PostFX.Bloom.Strengths = nil
	require.NoError(t, cfg.Validate())

	fx, err := cfg.ToPostFXSettings()
	require.NoError(t, err)
	spreads, strengths := postfx.DefaultBloomLevels(postfx.BlurNineTap)
	assert.Equal(t, spreads, fx.Bloom.Spreads)
	assert.Equal(t, strengths, fx.Bloom.Strengths)
}

func TestYAMLUsesSnakeCaseKeys(t *testing.T) {
	out, err := DefaultConfig().YAML()
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, "focal_length: 36")
	assert.Contains(t, s, "blur_mode: incremental")
	assert.Contains(t, s, "spreads: [16, 16, 24, 24, 32]")
}
