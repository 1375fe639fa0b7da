// Package offline renders single frames on the CPU device: either the
// procedural scene or an image treated as scene radiance, developed
// through the camera and written to an image file.
package offline

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/normanking/physicam/internal/camera"
	"github.com/normanking/physicam/internal/config"
	"github.com/normanking/physicam/internal/exposure"
	"github.com/normanking/physicam/internal/gpu"
	"github.com/normanking/physicam/internal/gpu/soft"
	"github.com/normanking/physicam/internal/imageio"
	"github.com/normanking/physicam/internal/logging"
	"github.com/normanking/physicam/internal/postfx"
	"github.com/normanking/physicam/internal/scene"
)

const component = "offline"

// Options select what is rendered.
type Options struct {
	// Input is an image used as radiance. Empty renders the scene.
	Input string
	// Gain scales input pixel values into scene luminance.
	Gain float32
	// Linearize decodes sRGB input before scaling.
	Linearize bool
	// Depth is the window depth given to every input pixel.
	Depth float32

	// Width and Height size the scene render. Image inputs keep their size.
	Width  int
	Height int
	// Time is the scene clock in seconds.
	Time float32

	// Frames run before the output is taken, letting auto exposure settle.
	Frames    int
	DeltaTime float32 // seconds
}

// DefaultOptions renders one 640x360 scene frame after a second of
// auto exposure at 60 Hz.
func DefaultOptions() Options {
	return Options{
		Gain:      1000,
		Linearize: true,
		Depth:     0.99,
		Width:     640,
		Height:    360,
		Frames:    60,
		DeltaTime: 1.0 / 60,
	}
}

// Result is a developed frame and the camera state that produced it.
type Result struct {
	Image     *imageio.Image
	Settings  exposure.Settings
	Mode      exposure.Mode
	EV        float32
	Exposure  float32
	Luminance float32
}

// Kernels returns every program the renderer may run on the CPU device.
func Kernels() map[string]soft.Kernel {
	k := postfx.SoftKernels()
	for name, fn := range scene.SoftKernels() {
		k[name] = fn
	}
	return k
}

type source interface {
	input() postfx.Input
	draw(cam *camera.Camera, time float32)
	destroy()
}

// Render develops one frame according to cfg and opts.
func Render(cfg *config.Config, opts Options, log *logging.Logger) (*Result, error) {
	if log == nil {
		log = logging.NewNop()
	}
	if opts.Frames < 1 {
		opts.Frames = 1
	}

	var img *imageio.Image
	if opts.Input != "" {
		var err error
		img, err = imageio.Open(opts.Input, imageio.DecodeOptions{Linearize: opts.Linearize, Gain: opts.Gain})
		if err != nil {
			return nil, err
		}
		opts.Width, opts.Height = img.Width, img.Height
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("output size %dx%d must be positive", opts.Width, opts.Height)
	}

	fxSettings, err := cfg.ToPostFXSettings()
	if err != nil {
		return nil, err
	}
	camCfg, err := cfg.ToCameraConfig(opts.Width, opts.Height)
	if err != nil {
		return nil, err
	}

	dev := soft.NewDevice(opts.Width, opts.Height, Kernels())
	if path := cfg.PostFX.Bloom.DirtTexture; path != "" {
		id, err := uploadDirt(dev, path)
		if err != nil {
			return nil, err
		}
		fxSettings.Bloom.DirtTexture = int32(id)
	}

	fx, err := postfx.New(dev, fxSettings, opts.Width, opts.Height, log)
	if err != nil {
		return nil, err
	}
	defer fx.Destroy()

	cam, err := camera.New(camCfg, fx, log)
	if err != nil {
		return nil, err
	}
	cam.SetTransform(camera.LookAt(scene.DefaultEye, scene.DefaultTarget, mgl32.Vec3{0, 1, 0}))

	var src source
	if img != nil {
		src, err = newImageSource(dev, img, opts.Depth)
	} else {
		src, err = newSceneSource(dev, opts.Width, opts.Height, log)
	}
	if err != nil {
		return nil, err
	}
	defer src.destroy()

	for i := 0; i < opts.Frames; i++ {
		cam.Update(opts.DeltaTime)
		src.draw(cam, opts.Time)
		if err := cam.RenderPostProcessing(src.input(), 0); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
	}

	w, h, px := dev.Screen()
	out := &imageio.Image{Width: w, Height: h, Pix: px}
	res := &Result{
		Image:     out.FlipY(),
		Settings:  cam.Settings(),
		Mode:      cam.Mode(),
		EV:        cam.Model().ComputeCurrentEV(),
		Exposure:  cam.Exposure(),
		Luminance: cam.AverageLuminance(),
	}
	log.Info(component, "Frame developed", map[string]interface{}{
		"size":      fmt.Sprintf("%dx%d", w, h),
		"frames":    opts.Frames,
		"ev":        res.EV,
		"iso":       res.Settings.ISO,
		"aperture":  res.Settings.Aperture,
		"shutter":   res.Settings.Shutter,
		"luminance": res.Luminance,
	})
	return res, nil
}

func uploadDirt(dev gpu.Device, path string) (uint32, error) {
	img, err := imageio.Open(path, imageio.DecodeOptions{})
	if err != nil {
		return 0, fmt.Errorf("lens dirt: %w", err)
	}
	img = img.FlipY()
	return dev.NewTexture(img.Width, img.Height, gpu.FormatRGBA16F, img.Pix)
}

type sceneSource struct {
	s *scene.Scene
}

func newSceneSource(dev gpu.Device, w, h int, log *logging.Logger) (*sceneSource, error) {
	s, err := scene.New(dev, w, h, log)
	if err != nil {
		return nil, err
	}
	return &sceneSource{s: s}, nil
}

func (s *sceneSource) input() postfx.Input { return s.s.Input() }

func (s *sceneSource) draw(cam *camera.Camera, time float32) {
	s.s.Draw(scene.ViewFrom(cam, time))
}

func (s *sceneSource) destroy() { s.s.Destroy() }

// imageSource holds an uploaded image and a constant depth plane.
type imageSource struct {
	dev   gpu.Device
	fb    uint32
	color uint32
	depth uint32
}

var errDepthRange = errors.New("depth must be within [0,1]")

func newImageSource(dev gpu.Device, img *imageio.Image, depth float32) (*imageSource, error) {
	if depth < 0 || depth > 1 {
		return nil, fmt.Errorf("%w: %g", errDepthRange, depth)
	}
	flipped := img.FlipY()
	color, err := dev.NewTexture(img.Width, img.Height, gpu.FormatRGB32F, flipped.Pix)
	if err != nil {
		return nil, err
	}

	plane := make([]float32, img.Width*img.Height*4)
	for i := 0; i < len(plane); i += 4 {
		plane[i], plane[i+3] = depth, 1
	}
	z, err := dev.NewTexture(img.Width, img.Height, gpu.FormatR32F, plane)
	if err != nil {
		dev.DeleteTexture(color)
		return nil, err
	}

	fb, err := dev.CreateFramebuffer()
	if err != nil {
		dev.DeleteTexture(color)
		dev.DeleteTexture(z)
		return nil, err
	}
	if status := dev.FramebufferTexture(fb, gpu.ColorAttachment0, color); status != gpu.FramebufferComplete {
		src := &imageSource{dev: dev, fb: fb, color: color, depth: z}
		src.destroy()
		return nil, fmt.Errorf("%w: input framebuffer %s", gpu.ErrIncomplete, status)
	}
	return &imageSource{dev: dev, fb: fb, color: color, depth: z}, nil
}

func (s *imageSource) input() postfx.Input {
	return postfx.Input{Framebuffer: int32(s.fb), Color: int32(s.color), Depth: int32(s.depth)}
}

func (s *imageSource) draw(*camera.Camera, float32) {}

func (s *imageSource) destroy() {
	s.dev.DeleteFramebuffer(s.fb)
	s.dev.DeleteTexture(s.color)
	s.dev.DeleteTexture(s.depth)
}
