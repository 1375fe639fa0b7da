package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/physicam/internal/config"
	"github.com/normanking/physicam/internal/imageio"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestFormatShutter(t *testing.T) {
	tests := []struct {
		in   float32
		want string
	}{
		{0.0025, "1/400s"},
		{1.0 / 30, "1/30s"},
		{2, "2.0s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatShutter(tt.in))
		})
	}
}

func TestExposureCommand(t *testing.T) {
	out, err := execute(t, "exposure", "--iso", "100", "--aperture", "1", "--shutter", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "EV100:")
	assert.Contains(t, out, "0.00")
	assert.NotContains(t, out, "Program auto")

	out, err = execute(t, "exposure", "--luminance", "4000")
	require.NoError(t, err)
	assert.Contains(t, out, "Program auto:")

	_, err = execute(t, "exposure", "--sensor", "super8")
	assert.Error(t, err)
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "physicam.yaml")
	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	out, err = execute(t, "--config", path, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "camera:")
	assert.Contains(t, out, "tonemap:")
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "physicam.yaml")
	cfg := config.DefaultConfig()
	cfg.Logging.Console = false
	require.NoError(t, config.SaveToPath(cfg, cfgPath))

	in := imageio.New(4, 4)
	for i := range in.Pix {
		in.Pix[i] = 0.5
	}
	inPath := filepath.Join(dir, "in.png")
	require.NoError(t, imageio.Save(in, inPath))

	outPath := filepath.Join(dir, "out.tiff")
	out, err := execute(t, "--config", cfgPath, "render", outPath,
		"--input", inPath, "--frames", "2", "--mode", "manual", "--tonemap", "reinhard")
	require.NoError(t, err)
	assert.Contains(t, out, "Mode:")
	assert.Contains(t, out, "manual")

	img, err := imageio.Open(outPath, imageio.DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, img.Width)

	_, err = execute(t, "--config", cfgPath, "render", filepath.Join(dir, "out.exr"))
	assert.Error(t, err)

	_, err = execute(t, "--config", cfgPath, "render", outPath, "--mode", "program")
	assert.Error(t, err)
}
