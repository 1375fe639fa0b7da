package viewer

import (
	"fmt"

	"github.com/normanking/physicam/internal/camera"
	"github.com/normanking/physicam/internal/config"
	"github.com/normanking/physicam/internal/exposure"
	"github.com/normanking/physicam/internal/gpu"
	"github.com/normanking/physicam/internal/imageio"
	"github.com/normanking/physicam/internal/logging"
	"github.com/normanking/physicam/internal/metrics"
	"github.com/normanking/physicam/internal/postfx"
	"github.com/normanking/physicam/internal/scene"
)

// maxDeltaTime caps a frame step after stalls such as window drags.
const maxDeltaTime = 0.1

// App owns everything drawn each frame: the scene, the camera and its
// effect chain. It must be used from the render thread.
type App struct {
	dev      gpu.Device
	log      *logging.Logger
	stats    *metrics.Metrics
	fx       *postfx.Pipeline
	cam      *camera.Camera
	scene    *scene.Scene
	controls *Controls
	watcher  *gpu.ProgramWatcher

	dirt    uint32
	elapsed float32
	width   int
	height  int
	frames  int
}

// NewApp builds the scene, effect chain and camera for a width x height
// output from cfg. stats may be nil.
func NewApp(dev gpu.Device, cfg *config.Config, width, height int, log *logging.Logger, stats *metrics.Metrics) (*App, error) {
	if log == nil {
		log = logging.NewNop()
	}
	fxSettings, err := cfg.ToPostFXSettings()
	if err != nil {
		return nil, err
	}
	camCfg, err := cfg.ToCameraConfig(width, height)
	if err != nil {
		return nil, err
	}

	fx, err := postfx.New(dev, fxSettings, width, height, log)
	if err != nil {
		return nil, fmt.Errorf("post processing: %w", err)
	}
	cam, err := camera.New(camCfg, fx, log)
	if err != nil {
		fx.Destroy()
		return nil, err
	}
	cam.SetMetrics(stats)

	sc, err := scene.New(dev, width, height, log)
	if err != nil {
		fx.Destroy()
		return nil, err
	}

	a := &App{
		dev:    dev,
		log:    log,
		stats:  stats,
		fx:     fx,
		cam:    cam,
		scene:  sc,
		width:  width,
		height: height,
	}
	a.controls = NewControls(cam, fx.Settings(), log)

	if path := cfg.PostFX.Bloom.DirtTexture; path != "" {
		if err := a.LoadDirt(path); err != nil {
			log.Warn(component, "Lens dirt not loaded", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
		}
	}

	log.Info(component, "Viewer ready", map[string]interface{}{
		"width":  width,
		"height": height,
		"mode":   cam.Mode().String(),
		"blur":   fxSettings.Bloom.Blur.String(),
	})
	return a, nil
}

// Camera returns the camera.
func (a *App) Camera() *camera.Camera { return a.cam }

// Controls returns the input handler.
func (a *App) Controls() *Controls { return a.controls }

// Settings returns the live effect settings.
func (a *App) Settings() *postfx.Settings { return a.fx.Settings() }

// LoadDirt uploads an image as the lens dirt mask.
func (a *App) LoadDirt(path string) error {
	img, err := imageio.Open(path, imageio.DecodeOptions{})
	if err != nil {
		return err
	}
	// Images are stored top row first, textures bottom row first.
	img = img.FlipY()
	id, err := a.dev.NewTexture(img.Width, img.Height, gpu.FormatRGBA16F, img.Pix)
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	if a.dirt != 0 {
		a.dev.DeleteTexture(a.dirt)
	}
	a.dirt = id
	a.fx.Settings().Bloom.DirtTexture = int32(id)
	a.log.Info(component, "Lens dirt loaded", map[string]interface{}{
		"path":    path,
		"texture": id,
		"size":    fmt.Sprintf("%dx%d", img.Width, img.Height),
	})
	return nil
}

// WatchShaders reloads <program>.frag overrides from dir.
func (a *App) WatchShaders(dir string) error {
	pw, err := gpu.NewProgramWatcher(dir, a.log)
	if err != nil {
		return err
	}
	pw.Watch(append(a.fx.Programs(), a.scene.Program())...)
	if a.stats != nil {
		pw.OnReload(func(_ string, err error) { a.stats.ShaderReloaded(err == nil) })
	}
	a.watcher = pw
	return nil
}

// Resize follows a framebuffer size change. Zero sizes, as reported for
// minimized windows, are ignored.
func (a *App) Resize(width, height int) error {
	if width <= 0 || height <= 0 || (width == a.width && height == a.height) {
		return nil
	}
	if err := a.cam.SetScreenSize(width, height); err != nil {
		return err
	}
	if err := a.scene.Resize(width, height); err != nil {
		return err
	}
	a.width, a.height = width, height
	return nil
}

// Frame renders one frame into framebuffer out, dt seconds after the
// previous one.
func (a *App) Frame(dt float32, out uint32) error {
	if dt > maxDeltaTime {
		dt = maxDeltaTime
	}
	if a.watcher != nil {
		a.watcher.ApplyPending()
	}

	a.elapsed += dt
	a.cam.Update(dt)
	a.scene.Draw(scene.ViewFrom(a.cam, a.elapsed))
	if err := a.cam.RenderPostProcessing(a.scene.Input(), out); err != nil {
		return err
	}
	a.frames++
	return nil
}

// Frames returns the number of frames rendered.
func (a *App) Frames() int { return a.frames }

// ApplyConfig takes over a reloaded configuration. The blur mode and the
// output size are kept; everything else follows cfg.
func (a *App) ApplyConfig(cfg *config.Config) error {
	next, err := cfg.ToPostFXSettings()
	if err != nil {
		return err
	}
	camCfg, err := cfg.ToCameraConfig(a.width, a.height)
	if err != nil {
		return err
	}

	cur := a.fx.Settings()
	if next.Bloom.Blur != cur.Bloom.Blur {
		a.log.Warn(component, "Blur mode change needs a restart", map[string]interface{}{
			"current":   cur.Bloom.Blur.String(),
			"requested": next.Bloom.Blur.String(),
		})
		next.Bloom.Blur = cur.Bloom.Blur
		next.Bloom.Spreads, next.Bloom.Strengths = cur.Bloom.Spreads, cur.Bloom.Strengths
	}
	next.Bloom.DirtTexture = cur.Bloom.DirtTexture
	*cur = next

	if err := a.applyBounds(camCfg.Bounds); err != nil {
		return err
	}
	s := camCfg.Settings
	a.cam.SetMode(camCfg.Mode)
	a.cam.SetSensor(s.Sensor)
	a.cam.SetISO(s.ISO)
	a.cam.SetAperture(s.Aperture)
	a.cam.SetShutter(s.Shutter)
	a.cam.SetFocalLength(s.FocalLength)
	a.cam.SetCompensation(s.Compensation)
	if err := a.cam.SetClipPlanes(camCfg.ClipNear, camCfg.ClipFar); err != nil {
		return err
	}

	a.log.Info(component, "Configuration applied", map[string]interface{}{
		"mode":    camCfg.Mode.String(),
		"tonemap": next.Tonemap.Method.String(),
	})
	return nil
}

// applyBounds moves each range to next. The side moving away from the
// other bound goes first so the range never inverts in between.
func (a *App) applyBounds(next exposure.Bounds) error {
	cur := a.cam.Bounds()
	steps := []struct {
		cur, next      exposure.Range
		setMin, setMax func(float32) error
	}{
		{cur.ISO, next.ISO, a.cam.SetMinISO, a.cam.SetMaxISO},
		{cur.Aperture, next.Aperture, a.cam.SetMinAperture, a.cam.SetMaxAperture},
		{cur.Shutter, next.Shutter, a.cam.SetFastestShutter, a.cam.SetSlowestShutter},
	}
	for _, s := range steps {
		first, second := s.setMin, s.setMax
		firstV, secondV := s.next.Min, s.next.Max
		if s.next.Min > s.cur.Max {
			first, second = s.setMax, s.setMin
			firstV, secondV = s.next.Max, s.next.Min
		}
		if err := first(firstV); err != nil {
			return err
		}
		if err := second(secondV); err != nil {
			return err
		}
	}
	return nil
}

// Close releases GPU objects and stops the shader watcher.
func (a *App) Close() {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			a.log.Warn(component, "Shader watcher close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	a.scene.Destroy()
	a.fx.Destroy()
	if a.dirt != 0 {
		a.dev.DeleteTexture(a.dirt)
	}
	a.log.Info(component, "Viewer closed", map[string]interface{}{"frames": a.frames})
}
