// Package viewer runs the interactive window: it maps keys and the mouse
// onto camera and effect controls and drives the per-frame render.
package viewer

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/normanking/physicam/internal/camera"
	"github.com/normanking/physicam/internal/exposure"
	"github.com/normanking/physicam/internal/logging"
	"github.com/normanking/physicam/internal/postfx"
	"github.com/normanking/physicam/internal/scene"
)

const component = "viewer"

// Action is a discrete control input.
type Action int

const (
	ToggleExposureMode Action = iota
	CycleTonemap
	ToggleTonemap
	ToggleBloom
	ToggleLensFlare
	ToggleDoF
	ToggleAutofocus
	ToggleShowFocus
	ToggleGrain
	CompensationUp
	CompensationDown
	ISOUp
	ISODown
	ApertureUp
	ApertureDown
	ShutterSlower
	ShutterFaster
	FocalLonger
	FocalShorter
	ResetView
)

var actionNames = map[Action]string{
	ToggleExposureMode: "toggle_exposure_mode",
	CycleTonemap:       "cycle_tonemap",
	ToggleTonemap:      "toggle_tonemap",
	ToggleBloom:        "toggle_bloom",
	ToggleLensFlare:    "toggle_lens_flare",
	ToggleDoF:          "toggle_dof",
	ToggleAutofocus:    "toggle_autofocus",
	ToggleShowFocus:    "toggle_show_focus",
	ToggleGrain:        "toggle_grain",
	CompensationUp:     "compensation_up",
	CompensationDown:   "compensation_down",
	ISOUp:              "iso_up",
	ISODown:            "iso_down",
	ApertureUp:         "aperture_up",
	ApertureDown:       "aperture_down",
	ShutterSlower:      "shutter_slower",
	ShutterFaster:      "shutter_faster",
	FocalLonger:        "focal_longer",
	FocalShorter:       "focal_shorter",
	ResetView:          "reset_view",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "unknown"
}

const (
	compensationStep = float32(1) / 3 // EV
	focalStep        = 5              // mm
	orbitSensitivity = 0.3            // degrees per pixel
	dollySensitivity = 0.5
)

// Controls applies user input to a camera and the effect settings.
type Controls struct {
	cam    *camera.Camera
	fx     *postfx.Settings
	log    *logging.Logger
	target mgl32.Vec3

	lastX, lastY float32
	orbiting     bool
}

// NewControls returns controls framing the scene's default view.
func NewControls(cam *camera.Camera, fx *postfx.Settings, log *logging.Logger) *Controls {
	if log == nil {
		log = logging.NewNop()
	}
	c := &Controls{cam: cam, fx: fx, log: log}
	c.reset()
	return c
}

func (c *Controls) reset() {
	c.target = scene.DefaultTarget
	c.cam.SetTransform(camera.LookAt(scene.DefaultEye, scene.DefaultTarget, mgl32.Vec3{0, 1, 0}))
}

// Target returns the orbit center.
func (c *Controls) Target() mgl32.Vec3 { return c.target }

// Apply performs a.
func (c *Controls) Apply(a Action) {
	s := c.cam.Settings()
	switch a {
	case ToggleExposureMode:
		if c.cam.Mode() == exposure.Auto {
			c.cam.SetMode(exposure.Manual)
		} else {
			c.cam.SetMode(exposure.Auto)
		}
	case CycleTonemap:
		c.fx.Tonemap.Method = (c.fx.Tonemap.Method + 1) % (postfx.Uncharted2 + 1)
	case ToggleTonemap:
		c.fx.Tonemap.Enabled = !c.fx.Tonemap.Enabled
	case ToggleBloom:
		c.fx.Bloom.Enabled = !c.fx.Bloom.Enabled
	case ToggleLensFlare:
		c.fx.Bloom.LensFlare = !c.fx.Bloom.LensFlare
	case ToggleDoF:
		c.fx.DoF.Enabled = !c.fx.DoF.Enabled
	case ToggleAutofocus:
		c.fx.DoF.Autofocus = !c.fx.DoF.Autofocus
	case ToggleShowFocus:
		c.fx.DoF.ShowFocus = !c.fx.DoF.ShowFocus
	case ToggleGrain:
		c.fx.Grain.Enabled = !c.fx.Grain.Enabled
	case CompensationUp:
		c.cam.SetCompensation(s.Compensation + compensationStep)
	case CompensationDown:
		c.cam.SetCompensation(s.Compensation - compensationStep)
	case ISOUp:
		c.cam.SetISO(s.ISO * 2)
	case ISODown:
		c.cam.SetISO(s.ISO / 2)
	case ApertureUp:
		c.cam.SetAperture(s.Aperture * math32.Sqrt2)
	case ApertureDown:
		c.cam.SetAperture(s.Aperture / math32.Sqrt2)
	case ShutterSlower:
		c.cam.SetShutter(s.Shutter * 2)
	case ShutterFaster:
		c.cam.SetShutter(s.Shutter / 2)
	case FocalLonger:
		c.cam.SetFocalLength(s.FocalLength + focalStep)
	case FocalShorter:
		c.cam.SetFocalLength(s.FocalLength - focalStep)
	case ResetView:
		c.reset()
	default:
		return
	}

	s = c.cam.Settings()
	c.log.Info(component, "Control applied", map[string]interface{}{
		"action":       a.String(),
		"mode":         c.cam.Mode().String(),
		"iso":          s.ISO,
		"aperture":     s.Aperture,
		"shutter":      s.Shutter,
		"focalLength":  s.FocalLength,
		"compensation": s.Compensation,
		"tonemap":      c.fx.Tonemap.Method.String(),
	})
}

// MouseMove orbits around the target while dragging.
func (c *Controls) MouseMove(x, y float32, dragging bool) {
	dx, dy := x-c.lastX, y-c.lastY
	c.lastX, c.lastY = x, y
	if !dragging {
		c.orbiting = false
		return
	}
	if !c.orbiting {
		c.orbiting = true
		return
	}
	c.cam.SetTransform(camera.Orbit(c.cam.Transform(), c.target, -dx*orbitSensitivity, -dy*orbitSensitivity))
}

// Scroll moves toward the target for positive delta.
func (c *Controls) Scroll(delta float32) {
	c.cam.SetTransform(camera.Dolly(c.cam.Transform(), c.target, delta*dollySensitivity))
}
