package offline

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/physicam/internal/config"
	"github.com/normanking/physicam/internal/exposure"
	"github.com/normanking/physicam/internal/imageio"
)

func neutralConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Camera.Mode = "manual"
	cfg.PostFX.LensDistortion = 0
	cfg.PostFX.LensDispersion = 0
	cfg.PostFX.LensScale = 1
	cfg.PostFX.Bloom.Enabled = false
	cfg.PostFX.DoF.Enabled = false
	cfg.PostFX.Tonemap.Enabled = false
	cfg.PostFX.Grain.Enabled = false
	return cfg
}

func writeGrey(t *testing.T, w, h int, v float32) string {
	t.Helper()
	img := imageio.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, [4]float32{v, v, v, 1})
		}
	}
	path := filepath.Join(t.TempDir(), "in.png")
	require.NoError(t, imageio.Save(img, path))
	return path
}

func TestRenderImageAppliesExposure(t *testing.T) {
	opts := DefaultOptions()
	opts.Input = writeGrey(t, 6, 4, 0.5)
	opts.Linearize = false
	opts.Gain = 1000
	opts.Frames = 1

	res, err := Render(neutralConfig(), opts, nil)
	require.NoError(t, err)
	require.Equal(t, 6, res.Image.Width)
	require.Equal(t, 4, res.Image.Height)
	assert.Equal(t, exposure.Manual, res.Mode)

	want := 500 * res.Exposure
	for i := 0; i < len(res.Image.Pix); i += 4 {
		assert.InDelta(t, want, res.Image.Pix[i], 1e-3)
	}
}

func TestRenderAutoExposureSettles(t *testing.T) {
	cfg := neutralConfig()
	cfg.Camera.Mode = "auto"

	opts := DefaultOptions()
	opts.Input = writeGrey(t, 4, 4, 0.5)
	opts.Linearize = false
	opts.Frames = 30

	res, err := Render(cfg, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, exposure.Auto, res.Mode)
	assert.InDelta(t, 500, res.Luminance, 5)
}

func TestRenderScene(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 16, 12
	opts.Frames = 2

	res, err := Render(config.DefaultConfig(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 16, res.Image.Width)
	assert.Greater(t, res.Luminance, float32(0))
	for _, v := range res.Image.Pix {
		require.False(t, math32.IsNaN(v))
	}

	path := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, imageio.Save(res.Image, path))
}

func TestRenderRejectsBadOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.Width = 0
	_, err := Render(config.DefaultConfig(), opts, nil)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.Input = writeGrey(t, 2, 2, 0.5)
	opts.Depth = 2
	_, err = Render(config.DefaultConfig(), opts, nil)
	assert.True(t, errors.Is(err, errDepthRange))

	opts = DefaultOptions()
	opts.Input = filepath.Join(t.TempDir(), "missing.png")
	_, err = Render(config.DefaultConfig(), opts, nil)
	assert.Error(t, err)
}
