// Package config provides configuration management for PhysiCam
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/normanking/physicam/internal/exposure"
	"github.com/normanking/physicam/internal/postfx"
)

const (
	configName = "config"
	envPrefix  = "PHYSICAM"
)

// Config holds all application configuration
type Config struct {
	Camera  CameraConfig  `mapstructure:"camera" yaml:"camera"`
	PostFX  PostFXConfig  `mapstructure:"postfx" yaml:"postfx"`
	Window  WindowConfig  `mapstructure:"window" yaml:"window"`
	GPU     GPUConfig     `mapstructure:"gpu" yaml:"gpu"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// CameraConfig configures the physical camera
type CameraConfig struct {
	Mode          string         `mapstructure:"mode" yaml:"mode"` // auto or manual
	ISO           float32        `mapstructure:"iso" yaml:"iso"`
	Aperture      float32        `mapstructure:"aperture" yaml:"aperture"`
	Shutter       float32        `mapstructure:"shutter" yaml:"shutter"`
	FocalLength   float32        `mapstructure:"focal_length" yaml:"focal_length"`
	Sensor        string         `mapstructure:"sensor" yaml:"sensor"` // 4/3, aps-c, 35mm, medium, large
	Compensation  float32        `mapstructure:"compensation" yaml:"compensation"`
	ClipNear      float32        `mapstructure:"clip_near" yaml:"clip_near"`
	ClipFar       float32        `mapstructure:"clip_far" yaml:"clip_far"`
	ISORange      exposure.Range `mapstructure:"iso_range" yaml:"iso_range"`
	ApertureRange exposure.Range `mapstructure:"aperture_range" yaml:"aperture_range"`
	ShutterRange  exposure.Range `mapstructure:"shutter_range" yaml:"shutter_range"`
}

// PostFXConfig configures the effect chain
type PostFXConfig struct {
	LensDistortion float32       `mapstructure:"lens_distortion" yaml:"lens_distortion"`
	LensDispersion float32       `mapstructure:"lens_dispersion" yaml:"lens_dispersion"`
	LensScale      float32       `mapstructure:"lens_scale" yaml:"lens_scale"`
	Bloom          BloomConfig   `mapstructure:"bloom" yaml:"bloom"`
	DoF            DoFConfig     `mapstructure:"dof" yaml:"dof"`
	Tonemap        TonemapConfig `mapstructure:"tonemap" yaml:"tonemap"`
	Grain          GrainConfig   `mapstructure:"grain" yaml:"grain"`
}

// BloomConfig configures bloom and lens flare
type BloomConfig struct {
	Enabled     bool      `mapstructure:"enabled" yaml:"enabled"`
	Threshold   float32   `mapstructure:"threshold" yaml:"threshold"`
	Intensity   float32   `mapstructure:"intensity" yaml:"intensity"`
	BlurMode    string    `mapstructure:"blur_mode" yaml:"blur_mode"` // incremental or ninetap
	Spreads     []float32 `mapstructure:"spreads" yaml:"spreads,flow"`
	Strengths   []float32 `mapstructure:"strengths" yaml:"strengths,flow"`
	LensFlare   bool      `mapstructure:"lens_flare" yaml:"lens_flare"`
	DirtTexture string    `mapstructure:"dirt_texture" yaml:"dirt_texture"` // image path, empty for none
}

// DoFConfig configures depth of field
type DoFConfig struct {
	Enabled       bool    `mapstructure:"enabled" yaml:"enabled"`
	Aberration    float32 `mapstructure:"aberration" yaml:"aberration"`
	FocalDistance float32 `mapstructure:"focal_distance" yaml:"focal_distance"` // metres
	Autofocus     bool    `mapstructure:"autofocus" yaml:"autofocus"`
	Vignetting    bool    `mapstructure:"vignetting" yaml:"vignetting"`
	ShowFocus     bool    `mapstructure:"show_focus" yaml:"show_focus"`
	MaxBlur       float32 `mapstructure:"max_blur" yaml:"max_blur"`
	Pentagon      bool    `mapstructure:"pentagon" yaml:"pentagon"`
	DepthBlur     bool    `mapstructure:"depth_blur" yaml:"depth_blur"`
}

// TonemapConfig configures the tone curve
type TonemapConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Method  string `mapstructure:"method" yaml:"method"` // reinhard, filmic, uncharted2
}

// GrainConfig configures film grain
type GrainConfig struct {
	Enabled  bool    `mapstructure:"enabled" yaml:"enabled"`
	MinNoise float32 `mapstructure:"min_noise" yaml:"min_noise"`
	MaxNoise float32 `mapstructure:"max_noise" yaml:"max_noise"`
}

// WindowConfig configures the viewer window
type WindowConfig struct {
	Title  string `mapstructure:"title" yaml:"title"`
	Width  int    `mapstructure:"width" yaml:"width"`
	Height int    `mapstructure:"height" yaml:"height"`
	VSync  bool   `mapstructure:"vsync" yaml:"vsync"`
}

// GPUConfig configures the graphics backend
type GPUConfig struct {
	// DisableExtensions forces the fallback path for the named extensions.
	DisableExtensions []string `mapstructure:"disable_extensions" yaml:"disable_extensions"`
	// ShaderDir holds optional *.frag overrides, reloaded on change.
	ShaderDir string `mapstructure:"shader_dir" yaml:"shader_dir"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
	Console bool   `mapstructure:"console" yaml:"console"`
}

// MetricsConfig configures the prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	es := exposure.DefaultSettings()
	eb := exposure.DefaultBounds()
	fx := postfx.DefaultSettings()

	return &Config{
		Camera: CameraConfig{
			Mode:          exposure.Auto.String(),
			ISO:           es.ISO,
			Aperture:      es.Aperture,
			Shutter:       es.Shutter,
			FocalLength:   es.FocalLength,
			Sensor:        es.Sensor.String(),
			ClipNear:      0.5,
			ClipFar:       1000,
			ISORange:      eb.ISO,
			ApertureRange: eb.Aperture,
			ShutterRange:  eb.Shutter,
		},
		PostFX: PostFXConfig{
			LensDistortion: fx.Lens.Distortion,
			LensDispersion: fx.Lens.Dispersion,
			LensScale:      fx.Lens.Scale,
			Bloom: BloomConfig{
				Enabled:   fx.Bloom.Enabled,
				Threshold: fx.Bloom.Threshold,
				Intensity: fx.Bloom.Intensity,
				BlurMode:  fx.Bloom.Blur.String(),
				Spreads:   append([]float32(nil), fx.Bloom.Spreads[:]...),
				Strengths: append([]float32(nil), fx.Bloom.Strengths[:]...),
				LensFlare: fx.Bloom.LensFlare,
			},
			DoF: DoFConfig{
				Enabled:       fx.DoF.Enabled,
				Aberration:    fx.DoF.Aberration,
				FocalDistance: fx.DoF.FocalDistance,
				Autofocus:     fx.DoF.Autofocus,
				Vignetting:    fx.DoF.Vignetting,
				ShowFocus:     fx.DoF.ShowFocus,
				MaxBlur:       fx.DoF.MaxBlur,
				Pentagon:      fx.DoF.Pentagon,
				DepthBlur:     fx.DoF.DepthBlur,
			},
			Tonemap: TonemapConfig{
				Enabled: fx.Tonemap.Enabled,
				Method:  fx.Tonemap.Method.String(),
			},
			Grain: GrainConfig{
				Enabled:  fx.Grain.Enabled,
				MinNoise: fx.Grain.MinNoise,
				MaxNoise: fx.Grain.MaxNoise,
			},
		},
		Window: WindowConfig{
			Title:  "PhysiCam",
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".physicam"), nil
}

// Load reads config.yaml from the config directory or the working
// directory, with PHYSICAM_* environment overrides. A missing file is
// created with the defaults.
func Load() (*Config, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return DefaultConfig(), err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return DefaultConfig(), err
	}

	v, err := newViper()
	if err != nil {
		return DefaultConfig(), err
	}
	v.SetConfigName(configName)
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return DefaultConfig(), err
		}
		cfg := DefaultConfig()
		if err := SaveToPath(cfg, filepath.Join(configDir, configName+".yaml")); err != nil {
			return cfg, err
		}
	}
	return decode(v)
}

// LoadFromPath reads a specific config file on top of the defaults.
func LoadFromPath(path string) (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return decode(v)
}

// Watch re-reads path whenever it changes and hands the new configuration
// to onChange. Decode errors are passed along with a nil config.
func Watch(path string, onChange func(*Config, error)) error {
	v, err := newViper()
	if err != nil {
		return err
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	v.OnConfigChange(func(fsnotify.Event) {
		onChange(decode(v))
	})
	v.WatchConfig()
	return nil
}

// Save writes the configuration to the default location
func Save(cfg *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}
	return SaveToPath(cfg, filepath.Join(configDir, configName+".yaml"))
}

// SaveToPath writes the configuration as YAML to path.
func SaveToPath(cfg *Config, path string) error {
	data, err := cfg.YAML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// YAML renders the configuration.
func (c *Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// newViper returns a viper instance preloaded with the defaults, so every
// key is known to AutomaticEnv.
func newViper() (*viper.Viper, error) {
	defaults, err := DefaultConfig().YAML()
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
