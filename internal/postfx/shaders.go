package postfx

// Program names. They key the soft kernels and the <name>.frag shader
// override files.
const (
	progBlit            = "blit"
	progLensDistortion  = "lens_distortion"
	progDownsample      = "downsample"
	progBrightPass      = "bright_pass"
	progBlurIncremental = "blur_incremental"
	progBlurNineTap     = "blur_ninetap"
	progBloomCompose    = "bloom_compose"
	progLensFlare       = "lens_flare"
	progBloomFinal      = "bloom_final"
	progDoF             = "dof"
	progTonemap         = "tonemap"
)

// fragmentSources maps program names to their fragment shaders.
var fragmentSources = map[string]string{
	progBlit:            blitFragSrc,
	progLensDistortion:  lensDistortionFragSrc,
	progDownsample:      downsampleFragSrc,
	progBrightPass:      brightPassFragSrc,
	progBlurIncremental: incrementalBlurFragSrc,
	progBlurNineTap:     nineTapBlurFragSrc,
	progBloomCompose:    bloomComposeFragSrc,
	progLensFlare:       lensFlareFragSrc,
	progBloomFinal:      bloomFinalFragSrc,
	progDoF:             dofFragSrc,
	progTonemap:         tonemapFragSrc,
}

// FragmentSource returns the built-in fragment shader of a program.
func FragmentSource(name string) (string, bool) {
	src, ok := fragmentSources[name]
	return src, ok
}

// FullscreenVertexSource returns the vertex stage shared by every effect
// program. It emits one triangle from gl_VertexID with vTexCoord in [0, 1].
func FullscreenVertexSource() string { return fullscreenVertSrc }

var fullscreenVertSrc = `#version 410 core

out vec2 vTexCoord;

void main() {
    vec2 positions[3] = vec2[](
        vec2(-1.0, -1.0),
        vec2(3.0, -1.0),
        vec2(-1.0, 3.0)
    );

    gl_Position = vec4(positions[gl_VertexID], 0.0, 1.0);
    vTexCoord = (positions[gl_VertexID] + 1.0) * 0.5;
}
` + "\x00"

var blitFragSrc = `#version 410 core

in vec2 vTexCoord;
out vec4 FragColor;

uniform sampler2D uTex;
uniform float uExposure;

void main() {
    FragColor = vec4(texture(uTex, vTexCoord).rgb * uExposure, 1.0);
}
` + "\x00"

var lensDistortionFragSrc = `#version 410 core

in vec2 vTexCoord;
layout(location = 0) out vec4 ColorOut;
layout(location = 1) out vec4 DepthOut;

uniform sampler2D uColor;
uniform sampler2D uDepth;
uniform float uK;
uniform float uScale;
uniform float uDispersion;

void main() {
    // per channel index of refraction
    vec3 eta = vec3(1.0 + uDispersion * 0.9, 1.0 + uDispersion * 0.6, 1.0 + uDispersion * 0.3);

    vec2 d = vTexCoord - 0.5;
    float r2 = dot(d, d);
    float f = 1.0 + r2 * uK;

    vec2 rCoords = (f * eta.r) * uScale * d + 0.5;
    vec2 gCoords = (f * eta.g) * uScale * d + 0.5;
    vec2 bCoords = (f * eta.b) * uScale * d + 0.5;

    ColorOut = vec4(texture(uColor, rCoords).r,
                    texture(uColor, gCoords).g,
                    texture(uColor, bCoords).b, 1.0);
    DepthOut = vec4(texture(uDepth, rCoords).r);
}
` + "\x00"

var downsampleFragSrc = `#version 410 core

in vec2 vTexCoord;
out vec4 FragColor;

uniform sampler2D uTex;

void main() {
    FragColor = vec4(texture(uTex, vTexCoord).rgb, 1.0);
}
` + "\x00"

var brightPassFragSrc = `#version 410 core

in vec2 vTexCoord;
layout(location = 0) out vec4 BrightColor;
layout(location = 1) out vec4 FlareColor;

uniform sampler2D uTex;
uniform float uThreshold;
uniform float uFlareThreshold;

void main() {
    vec4 color = vec4(texture(uTex, vTexCoord).rgb, 1.0);
    float luminance = dot(color.rgb, vec3(0.2126, 0.7152, 0.0722));

    BrightColor = luminance > uThreshold ? color : vec4(0.0, 0.0, 0.0, 1.0);
    FlareColor = luminance > uFlareThreshold ? color / (uFlareThreshold - 1.0) : vec4(0.0, 0.0, 0.0, 1.0);
}
` + "\x00"

var incrementalBlurFragSrc = `#version 410 core
#define MAX_BLUR_RADIUS 4096

in vec2 vTexCoord;
out vec4 FragColor;

uniform sampler2D uTex;
uniform float uRadius;
uniform vec2 uDirection;
uniform vec2 uResolution;

// Incremental forward-differencing Gaussian (GPU Gems 3, ch. 40)
vec4 incrementalGauss1D(sampler2D srcTex, vec2 texelSize, vec2 origin, float radius, vec2 direction) {
    int nSamples = clamp(int(radius), 1, MAX_BLUR_RADIUS) / 2;
    if (nSamples == 0) {
        return texture(srcTex, origin);
    }

    float sigma = radius / 8.0;
    const float TWO_PI = 6.2831853071795;

    vec3 gaussInc;
    gaussInc.x = 1.0 / (sqrt(TWO_PI) * sigma);
    gaussInc.y = exp(-0.5 / (sigma * sigma));
    gaussInc.z = gaussInc.y * gaussInc.y;

    vec4 result = texture(srcTex, origin) * gaussInc.x;
    for (int i = 1; i < nSamples; ++i) {
        gaussInc.xy *= gaussInc.yz;

        vec2 offset = float(i) * direction * texelSize;
        result += texture(srcTex, origin - offset) * gaussInc.x;
        result += texture(srcTex, origin + offset) * gaussInc.x;
    }
    return result;
}

void main() {
    FragColor = incrementalGauss1D(uTex, 1.0 / uResolution, vTexCoord, uRadius, uDirection);
}
` + "\x00"

var nineTapBlurFragSrc = `#version 410 core

in vec2 vTexCoord;
out vec4 FragColor;

uniform sampler2D uTex;
uniform float uRadius;
uniform float uResolution;
uniform vec2 uDirection;

const float weights[5] = float[](0.2270270270, 0.1945945946, 0.1216216216, 0.0540540541, 0.0162162162);

void main() {
    vec2 stepVec = uDirection * (uRadius / uResolution);

    vec4 sum = texture(uTex, vTexCoord) * weights[0];
    for (int i = 1; i < 5; ++i) {
        sum += texture(uTex, vTexCoord - float(i) * stepVec) * weights[i];
        sum += texture(uTex, vTexCoord + float(i) * stepVec) * weights[i];
    }
    FragColor = vec4(sum.rgb, 1.0);
}
` + "\x00"

var bloomComposeFragSrc = `#version 410 core

in vec2 vTexCoord;
out vec4 FragColor;

uniform sampler2D uLevels[5];
uniform float uStrengths[5];
uniform float uIntensity;

void main() {
    vec4 sum = texture(uLevels[0], vTexCoord) * uStrengths[0];
    sum += texture(uLevels[1], vTexCoord) * uStrengths[1];
    sum += texture(uLevels[2], vTexCoord) * uStrengths[2];
    sum += texture(uLevels[3], vTexCoord) * uStrengths[3];
    sum += texture(uLevels[4], vTexCoord) * uStrengths[4];
    FragColor = vec4(sum.rgb * uIntensity, 1.0);
}
` + "\x00"

var lensFlareFragSrc = `#version 410 core

in vec2 vTexCoord;
out vec4 FragColor;

uniform sampler2D uTex;
uniform vec2 uScreenSize;
uniform float uHaloWidth;

const int GHOSTS = 8;
const float DISPERSAL = 0.3;
const float DISTORTION = 1.0;

vec3 textureDistorted(sampler2D tex, vec2 texcoord, vec2 direction, vec3 distortion) {
    return vec3(texture(tex, texcoord + direction * distortion.r).r,
                texture(tex, texcoord + direction * distortion.g).g,
                texture(tex, texcoord + direction * distortion.b).b);
}

float ghostWeight(vec2 offset) {
    float w = length(vec2(0.5) - offset) / length(vec2(0.5));
    return pow(1.0 - w, 10.0);
}

void main() {
    vec2 texcoord = vec2(1.0) - vTexCoord;
    vec2 texelSize = 1.0 / uScreenSize;

    vec2 ghostVec = (vec2(0.5) - texcoord) * DISPERSAL;
    vec2 direction = normalize(ghostVec);
    vec2 haloVec = direction * uHaloWidth;
    vec3 distortion = vec3(-texelSize.x * DISTORTION, 0.0, texelSize.x * DISTORTION);

    vec3 result = vec3(0.0);
    for (int i = 0; i < GHOSTS; ++i) {
        vec2 offset = fract(texcoord + ghostVec * float(i));
        result += textureDistorted(uTex, offset, direction, distortion) * ghostWeight(offset);
    }

    vec2 halo = fract(texcoord + haloVec);
    result += textureDistorted(uTex, halo, direction, distortion) * ghostWeight(halo);

    FragColor = vec4(result, 1.0);
}
` + "\x00"

var bloomFinalFragSrc = `#version 410 core

in vec2 vTexCoord;
out vec4 FragColor;

uniform sampler2D uBloom;
uniform sampler2D uFlare;
uniform sampler2D uBase;
uniform sampler2D uDirt;
uniform bool uHasDirt;
uniform float uFlareStrength;

void main() {
    vec3 bloom = texture(uBloom, vTexCoord).rgb;
    vec3 base = texture(uBase, vTexCoord).rgb;
    vec3 flare = texture(uFlare, vTexCoord).rgb * uFlareStrength;

    if (uHasDirt) {
        vec3 dirt = texture(uDirt, vTexCoord).rgb;
        bloom *= dirt;
        flare *= dirt;
    }
    FragColor = vec4(bloom + flare + base, 1.0);
}
` + "\x00"

var dofFragSrc = `#version 410 core
#define PI 3.14159265

in vec2 vTexCoord;
out vec4 FragColor;

uniform sampler2D uColor;
uniform sampler2D uDepth;
uniform vec2 uScreenSize;
uniform vec2 uClips;

uniform bool uAutofocus;
uniform float uFocalDepth;  // meters
uniform float uFocalLength; // mm
uniform float uFStop;
uniform float uCoC;         // mm
uniform float uFringe;
uniform float uMaxBlur;
uniform bool uVignetting;
uniform bool uShowFocus;
uniform bool uPentagon;
uniform bool uDepthBlur;

const int SAMPLES = 6;
const int RINGS = 3;
const float VIGN_OUT = 1.3;
const float VIGN_IN = 0.0;
const float VIGN_FADE = 22.0;
const float THRESHOLD = 1.0;
const float GAIN = 1.8;
const float BIAS = 0.5;
const float NOISE_AMOUNT = 0.0001;
const float DEPTH_BLUR_SIZE = 1.25;
const float FEATHER = 0.4;
const vec3 LUMCOEFF = vec3(0.299, 0.587, 0.114);

vec2 texel;

float linearize(float depth) {
    return -uClips.y * uClips.x / (depth * (uClips.y - uClips.x) - uClips.y);
}

float bdepth(vec2 coords) {
    vec2 wh = texel * DEPTH_BLUR_SIZE;
    float kernel[9] = float[](1.0, 2.0, 1.0, 2.0, 4.0, 2.0, 1.0, 2.0, 1.0);
    float d = 0.0;
    int k = 0;
    for (int y = -1; y <= 1; ++y) {
        for (int x = -1; x <= 1; ++x) {
            d += texture(uDepth, coords + vec2(float(x), float(y)) * wh).r * kernel[k] / 16.0;
            k++;
        }
    }
    return d;
}

vec2 rand(vec2 coord) {
    float noiseX = clamp(fract(sin(dot(coord, vec2(12.9898, 78.233))) * 43758.5453), 0.0, 1.0) * 2.0 - 1.0;
    float noiseY = clamp(fract(sin(dot(coord, vec2(12.9898, 78.233) * 2.0)) * 43758.5453), 0.0, 1.0) * 2.0 - 1.0;
    return vec2(noiseX, noiseY);
}

vec3 sampleColor(vec2 coords, float blur) {
    vec3 col;
    col.r = texture(uColor, coords + vec2(0.0, 1.0) * texel * uFringe * blur).r;
    col.g = texture(uColor, coords + vec2(-0.866, -0.5) * texel * uFringe * blur).g;
    col.b = texture(uColor, coords + vec2(0.866, -0.5) * texel * uFringe * blur).b;

    float lum = dot(col, LUMCOEFF);
    float thresh = max((lum - THRESHOLD) * GAIN, 0.0);
    return col + mix(vec3(0.0), col, thresh * blur);
}

float penta(vec2 coords) {
    float scale = float(RINGS) - 1.3;
    vec4 HS0 = vec4( 1.0,          0.0,         0.0, 1.0);
    vec4 HS1 = vec4( 0.309016994,  0.951056516, 0.0, 1.0);
    vec4 HS2 = vec4(-0.809016994,  0.587785252, 0.0, 1.0);
    vec4 HS3 = vec4(-0.809016994, -0.587785252, 0.0, 1.0);
    vec4 HS4 = vec4( 0.309016994, -0.951056516, 0.0, 1.0);
    vec4 HS5 = vec4( 0.0,          0.0,         1.0, 1.0);

    vec4 P = vec4(coords, vec2(scale, scale));
    vec4 dist = vec4(dot(P, HS0), dot(P, HS1), dot(P, HS2), dot(P, HS3));
    dist = smoothstep(-FEATHER, FEATHER, dist);
    float inorout = -4.0 + dot(dist, vec4(1.0));

    dist.x = dot(P, HS4);
    dist.y = HS5.w - abs(P.z);
    dist = smoothstep(-FEATHER, FEATHER, dist);
    inorout += dist.x;

    return clamp(inorout, 0.0, 1.0);
}

vec3 debugFocus(vec3 col, float blur, float depth) {
    float edge = 0.002 * depth;
    float m = clamp(smoothstep(0.0, edge, blur), 0.0, 1.0);
    float e = clamp(smoothstep(1.0 - edge, 1.0, blur), 0.0, 1.0);

    col = mix(col, vec3(1.0, 0.5, 0.0), (1.0 - m) * 0.6);
    col = mix(col, vec3(0.0, 0.5, 1.0), ((1.0 - e) - (1.0 - m)) * 0.2);
    return col;
}

float vignette() {
    float dist = distance(vTexCoord, vec2(0.5));
    dist = smoothstep(VIGN_OUT + uFStop / VIGN_FADE, VIGN_IN + uFStop / VIGN_FADE, dist);
    return clamp(dist, 0.0, 1.0);
}

void main() {
    texel = 1.0 / uScreenSize;

    float depth = uDepthBlur ? linearize(bdepth(vTexCoord)) : linearize(texture(uDepth, vTexCoord).r);
    float focalDepth = uAutofocus ? linearize(texture(uDepth, vec2(0.5)).r) : uFocalDepth;

    // thin lens circle of confusion, distances in mm
    float f = uFocalLength;
    float d = focalDepth * 1000.0;
    float o = depth * 1000.0;

    float a = (o * f) / (o - f);
    float b = (d * f) / (d - f);
    float c = (d - f) / (d * uFStop * uCoC);
    float blur = clamp(abs(a - b) * c, 0.0, 1.0);

    vec2 noise = rand(vTexCoord) * NOISE_AMOUNT * blur;
    float w = texel.x * blur * uMaxBlur + noise.x;
    float h = texel.y * blur * uMaxBlur + noise.y;

    vec3 col = texture(uColor, vTexCoord).rgb;
    if (blur >= 0.05) {
        float s = 1.0;
        for (int i = 1; i <= RINGS; ++i) {
            int ringSamples = i * SAMPLES;
            float angleStep = PI * 2.0 / float(ringSamples);
            for (int j = 0; j < ringSamples; ++j) {
                float pw = cos(float(j) * angleStep) * float(i);
                float ph = sin(float(j) * angleStep) * float(i);
                float p = uPentagon ? penta(vec2(pw, ph)) : 1.0;
                float weight = mix(1.0, float(i) / float(RINGS), BIAS) * p;
                col += sampleColor(vTexCoord + vec2(pw * w, ph * h), blur) * weight;
                s += weight;
            }
        }
        col /= s;
    }

    if (uShowFocus) {
        col = debugFocus(col, blur, depth);
    }
    if (uVignetting) {
        col *= vignette();
    }
    FragColor = vec4(col, 1.0);
}
` + "\x00"

var tonemapFragSrc = `#version 410 core

in vec2 vTexCoord;
out vec4 FragColor;

uniform sampler2D uHDR;
uniform int uMethod;
uniform bool uTonemap;
uniform bool uGrain;
uniform float uTimer;
uniform float uGrainAmount;
uniform vec2 uScreenSize;

const float A = 0.15;
const float B = 0.50;
const float C = 0.10;
const float D = 0.20;
const float E = 0.02;
const float F = 0.30;
const float W = 11.2;

const float PERM_TEX_UNIT = 1.0 / 256.0;
const float PERM_TEX_UNIT_HALF = 0.5 / 256.0;
const float GRAIN_SIZE = 1.6;

vec3 reinhard(vec3 col) {
    return pow(col / (col + vec3(1.0)), vec3(1.0 / 2.2));
}

vec3 filmic(vec3 col) {
    vec3 x = max(vec3(0.0), col - 0.004);
    return (x * (6.2 * x + 0.5)) / (x * (6.2 * x + 1.7) + 0.06);
}

vec3 uncharted2Curve(vec3 x) {
    return ((x * (A * x + C * B) + D * E) / (x * (A * x + B) + D * F)) - E / F;
}

vec3 uncharted2(vec3 col) {
    vec3 color = uncharted2Curve(2.0 * col);
    color *= vec3(1.0) / uncharted2Curve(vec3(W));
    return pow(color, vec3(1.0 / 2.2));
}

vec4 rnm(vec2 tc) {
    float noise = sin(dot(tc + vec2(uTimer, uTimer), vec2(12.9898, 78.233))) * 43758.5453;
    return vec4(fract(noise) * 2.0 - 1.0,
                fract(noise * 1.2154) * 2.0 - 1.0,
                fract(noise * 1.3453) * 2.0 - 1.0,
                fract(noise * 1.3647) * 2.0 - 1.0);
}

float fade(float t) {
    return t * t * t * (t * (t * 6.0 - 15.0) + 10.0);
}

float pnoise3D(vec3 p) {
    vec3 pi = PERM_TEX_UNIT * floor(p) + PERM_TEX_UNIT_HALF;
    vec3 pf = fract(p);

    float perm00 = rnm(pi.xy).a;
    float n000 = dot(rnm(vec2(perm00, pi.z)).rgb * 4.0 - 1.0, pf);
    float n001 = dot(rnm(vec2(perm00, pi.z + PERM_TEX_UNIT)).rgb * 4.0 - 1.0, pf - vec3(0.0, 0.0, 1.0));

    float perm01 = rnm(pi.xy + vec2(0.0, PERM_TEX_UNIT)).a;
    float n010 = dot(rnm(vec2(perm01, pi.z)).rgb * 4.0 - 1.0, pf - vec3(0.0, 1.0, 0.0));
    float n011 = dot(rnm(vec2(perm01, pi.z + PERM_TEX_UNIT)).rgb * 4.0 - 1.0, pf - vec3(0.0, 1.0, 1.0));

    float perm10 = rnm(pi.xy + vec2(PERM_TEX_UNIT, 0.0)).a;
    float n100 = dot(rnm(vec2(perm10, pi.z)).rgb * 4.0 - 1.0, pf - vec3(1.0, 0.0, 0.0));
    float n101 = dot(rnm(vec2(perm10, pi.z + PERM_TEX_UNIT)).rgb * 4.0 - 1.0, pf - vec3(1.0, 0.0, 1.0));

    float perm11 = rnm(pi.xy + vec2(PERM_TEX_UNIT, PERM_TEX_UNIT)).a;
    float n110 = dot(rnm(vec2(perm11, pi.z)).rgb * 4.0 - 1.0, pf - vec3(1.0, 1.0, 0.0));
    float n111 = dot(rnm(vec2(perm11, pi.z + PERM_TEX_UNIT)).rgb * 4.0 - 1.0, pf - vec3(1.0, 1.0, 1.0));

    vec4 nx = mix(vec4(n000, n001, n010, n011), vec4(n100, n101, n110, n111), fade(pf.x));
    vec2 nxy = mix(nx.xy, nx.zw, fade(pf.y));
    return mix(nxy.x, nxy.y, fade(pf.z));
}

vec2 coordRot(vec2 tc, float angle) {
    float aspect = uScreenSize.x / uScreenSize.y;
    float rotX = ((tc.x * 2.0 - 1.0) * aspect * cos(angle)) - ((tc.y * 2.0 - 1.0) * sin(angle));
    float rotY = ((tc.y * 2.0 - 1.0) * cos(angle)) + ((tc.x * 2.0 - 1.0) * aspect * sin(angle));
    return vec2((rotX / aspect) * 0.5 + 0.5, rotY * 0.5 + 0.5);
}

vec3 grain(vec3 col) {
    vec2 rot = coordRot(vTexCoord, uTimer + 1.425);
    vec3 noise = vec3(pnoise3D(vec3(rot * (uScreenSize / GRAIN_SIZE), 0.0)));

    // less grain in bright areas
    float luminance = dot(col, vec3(0.299, 0.587, 0.114));
    return mix(noise, vec3(0.0), luminance);
}

void main() {
    vec3 color = texture(uHDR, vTexCoord).rgb;
    if (uTonemap) {
        if (uMethod == 0) {
            color = reinhard(color);
        } else if (uMethod == 1) {
            color = filmic(color);
        } else {
            color = uncharted2(color);
        }
    }
    if (uGrain) {
        color += grain(color) * uGrainAmount;
    }
    FragColor = vec4(color, 1.0);
}
` + "\x00"
