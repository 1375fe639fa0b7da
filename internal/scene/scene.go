// Package scene renders the procedural HDR test scene the viewer and the
// offline renderer feed into the camera: a sunlit floor with a row of
// spheres and a moving lamp, written as linear radiance plus a depth buffer.
package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/normanking/physicam/internal/camera"
	"github.com/normanking/physicam/internal/gpu"
	"github.com/normanking/physicam/internal/logging"
	"github.com/normanking/physicam/internal/postfx"
)

// ProgramName is the name of the scene program.
const ProgramName = "scene"

const component = "scene"

// The viewpoint the scene is framed for.
var (
	DefaultEye    = mgl32.Vec3{0, 2, 8}
	DefaultTarget = mgl32.Vec3{0, 1, -6}
)

// View is where the scene is looked at from.
type View struct {
	Eye         mgl32.Vec3
	Forward     mgl32.Vec3
	Right       mgl32.Vec3
	Up          mgl32.Vec3
	TanHalfFov  float32
	Aspect      float32
	Near        float32
	Far         float32
	TimeSeconds float32
}

// ViewFrom derives the view of cam.
func ViewFrom(cam *camera.Camera, timeSeconds float32) View {
	t := cam.Transform()
	near, far := cam.ClipPlanes()
	return View{
		Eye:         t.Position,
		Forward:     t.Rotation.Rotate(mgl32.Vec3{0, 0, -1}),
		Right:       t.Rotation.Rotate(mgl32.Vec3{1, 0, 0}),
		Up:          t.Rotation.Rotate(mgl32.Vec3{0, 1, 0}),
		TanHalfFov:  tanHalf(cam.FOV()),
		Aspect:      cam.AspectRatio(),
		Near:        near,
		Far:         far,
		TimeSeconds: timeSeconds,
	}
}

// Scene owns the framebuffer the scene is drawn into.
type Scene struct {
	dev  gpu.Device
	log  *logging.Logger
	fb   *gpu.FrameBuffer
	prog *gpu.Program
}

// New compiles the scene program and allocates a width x height target
// with RGB32F color in COLOR0 and R32F depth in COLOR1.
func New(dev gpu.Device, width, height int, log *logging.Logger) (*Scene, error) {
	if log == nil {
		log = logging.NewNop()
	}
	prog, err := gpu.NewProgram(dev, ProgramName, postfx.FullscreenVertexSource(), fragmentSrc)
	if err != nil {
		return nil, fmt.Errorf("scene program: %w", err)
	}
	fb, err := gpu.NewFrameBuffer(dev, width, height, log)
	if err != nil {
		prog.Delete()
		return nil, err
	}
	s := &Scene{dev: dev, log: log, fb: fb, prog: prog}
	if err := s.populate(); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

func (s *Scene) populate() error {
	for _, a := range []struct {
		att    gpu.Attachment
		format gpu.Format
	}{
		{gpu.ColorAttachment0, gpu.FormatRGB32F},
		{gpu.ColorAttachment(1), gpu.FormatR32F},
	} {
		rt, err := s.fb.CreateAndAttach(a.att, gpu.Texture2D, a.format, false)
		if err != nil {
			return fmt.Errorf("scene %s: %w", a.att, err)
		}
		rt.Release()
	}
	return nil
}

// Resize reallocates the targets.
func (s *Scene) Resize(width, height int) error {
	s.fb.Resize(width, height)
	s.log.Debug(component, "Scene resized", map[string]interface{}{
		"width":  width,
		"height": height,
	})
	return s.populate()
}

// Program returns the scene program, for hot reloading.
func (s *Scene) Program() *gpu.Program { return s.prog }

// Input describes the drawn scene to the effect chain.
func (s *Scene) Input() postfx.Input {
	return postfx.Input{
		Framebuffer: int32(s.fb.ID()),
		Color:       int32(s.fb.Target(gpu.ColorAttachment0).ID()),
		Depth:       int32(s.fb.Target(gpu.ColorAttachment(1)).ID()),
	}
}

// Draw renders the scene from v.
func (s *Scene) Draw(v View) {
	s.fb.Bind()
	p := s.prog
	p.Use()
	p.SetVec3("uEye", v.Eye)
	p.SetVec3("uForward", v.Forward)
	p.SetVec3("uRight", v.Right)
	p.SetVec3("uUp", v.Up)
	p.SetFloat("uTanHalfFov", v.TanHalfFov)
	p.SetFloat("uAspect", v.Aspect)
	p.SetFloat("uNear", v.Near)
	p.SetFloat("uFar", v.Far)
	p.SetFloat("uTime", v.TimeSeconds)
	s.dev.DrawFullscreen()
}

// Destroy releases the program and targets.
func (s *Scene) Destroy() {
	s.fb.Destroy()
	s.prog.Delete()
}

var fragmentSrc = `#version 410 core

in vec2 vTexCoord;

layout(location = 0) out vec3 fragColor;
layout(location = 1) out float fragDepth;

uniform vec3 uEye;
uniform vec3 uForward;
uniform vec3 uRight;
uniform vec3 uUp;
uniform float uTanHalfFov;
uniform float uAspect;
uniform float uNear;
uniform float uFar;
uniform float uTime;

const vec3 sunDir = normalize(vec3(0.4, 0.8, 0.3));
const float sunIlluminance = 20000.0;
const float skyIlluminance = 2000.0;
const float lampRadiance = 200000.0;

vec3 lampCenter() {
    return vec3(3.0 * sin(uTime * 0.3), 2.5, -6.0);
}

vec3 sphereCenter(int i) {
    return vec3(float(i) * 2.5 - 5.0, 1.0, -float(i) * 4.0);
}

vec3 sphereAlbedo(int i) {
    vec3 palette[5] = vec3[](
        vec3(0.8, 0.2, 0.2),
        vec3(0.2, 0.8, 0.2),
        vec3(0.2, 0.3, 0.8),
        vec3(0.9, 0.9, 0.9),
        vec3(0.9, 0.6, 0.1)
    );
    return palette[i];
}

// x: distance, y: material (0 floor, 1..5 spheres, 10 lamp)
vec2 sceneMap(vec3 p) {
    vec2 res = vec2(p.y, 0.0);
    for (int i = 0; i < 5; i++) {
        float d = length(p - sphereCenter(i)) - 1.0;
        if (d < res.x) {
            res = vec2(d, float(i + 1));
        }
    }
    float lamp = length(p - lampCenter()) - 0.3;
    if (lamp < res.x) {
        res = vec2(lamp, 10.0);
    }
    return res;
}

vec3 normalAt(vec3 p) {
    const vec2 e = vec2(0.001, 0.0);
    return normalize(vec3(
        sceneMap(p + e.xyy).x - sceneMap(p - e.xyy).x,
        sceneMap(p + e.yxy).x - sceneMap(p - e.yxy).x,
        sceneMap(p + e.yyx).x - sceneMap(p - e.yyx).x));
}

float shadow(vec3 p) {
    float t = 0.02;
    for (int i = 0; i < 48; i++) {
        float d = sceneMap(p + sunDir * t).x;
        if (d < 0.001) {
            return 0.0;
        }
        t += d;
        if (t > 50.0) {
            break;
        }
    }
    return 1.0;
}

vec3 sky(vec3 rd) {
    if (dot(rd, sunDir) > 0.9995) {
        return vec3(1.0e6);
    }
    float h = clamp(rd.y, 0.0, 1.0);
    return mix(vec3(0.8, 0.85, 1.0) * 4000.0, vec3(0.3, 0.5, 1.0) * 1500.0, h);
}

vec3 albedoAt(vec3 p, float material) {
    if (material < 0.5) {
        float c = mod(floor(p.x) + floor(p.z), 2.0);
        return mix(vec3(0.6), vec3(0.3), c);
    }
    return sphereAlbedo(int(material) - 1);
}

void main() {
    vec2 ndc = vTexCoord * 2.0 - 1.0;
    vec3 rd = normalize(uForward + ndc.x * uTanHalfFov * uAspect * uRight + ndc.y * uTanHalfFov * uUp);

    float t = uNear;
    float material = -1.0;
    for (int i = 0; i < 160; i++) {
        vec2 h = sceneMap(uEye + rd * t);
        if (h.x < 0.0005 * t) {
            material = h.y;
            break;
        }
        t += h.x;
        if (t > uFar) {
            break;
        }
    }

    float viewZ = uFar;
    vec3 color;
    if (material < 0.0) {
        color = sky(rd);
    } else {
        vec3 p = uEye + rd * t;
        viewZ = t * dot(rd, uForward);
        if (material > 9.5) {
            color = vec3(1.0, 0.9, 0.7) * lampRadiance;
        } else {
            vec3 n = normalAt(p);
            vec3 albedo = albedoAt(p, material);
            float sun = max(dot(n, sunDir), 0.0) * shadow(p + n * 0.01);
            vec3 toLamp = lampCenter() - p;
            float lampFalloff = max(dot(n, normalize(toLamp)), 0.0) / max(dot(toLamp, toLamp), 0.01);
            color = albedo * (sunIlluminance * sun + skyIlluminance * (0.5 + 0.5 * n.y) + lampRadiance * 0.09 * lampFalloff) / 3.14159;
        }
    }

    fragColor = color;
    float ndcZ = (uFar + uNear) / (uFar - uNear) - 2.0 * uFar * uNear / ((uFar - uNear) * viewZ);
    fragDepth = clamp(ndcZ * 0.5 + 0.5, 0.0, 1.0);
}
` + "\x00"
