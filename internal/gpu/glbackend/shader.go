package glbackend

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// CreateProgram compiles and links a vertex and fragment shader. Errors
// carry the driver's info log.
func (d *Device) CreateProgram(name, vertexSrc, fragmentSrc string) (uint32, error) {
	vert, err := compileShader(terminate(vertexSrc), gl.VERTEX_SHADER)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	defer gl.DeleteShader(vert)

	frag, err := compileShader(terminate(fragmentSrc), gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	defer gl.DeleteShader(frag)

	program := gl.CreateProgram()
	gl.AttachShader(program, vert)
	gl.AttachShader(program, frag)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)

		return 0, fmt.Errorf("%s: link failed: %s", name, strings.TrimRight(log, "\x00"))
	}

	d.log.Debug(component, "Program linked", map[string]interface{}{
		"name": name,
		"id":   program,
	})
	return program, nil
}

func terminate(src string) string {
	if strings.HasSuffix(src, "\x00") {
		return src
	}
	return src + "\x00"
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)

	csource, free := gl.Strs(source)
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)

		typeName := "vertex"
		if shaderType == gl.FRAGMENT_SHADER {
			typeName = "fragment"
		}
		return 0, fmt.Errorf("%s compile error: %s", typeName, strings.TrimRight(log, "\x00"))
	}

	return shader, nil
}

// DeleteProgram deletes the program.
func (d *Device) DeleteProgram(id uint32) { gl.DeleteProgram(id) }

// UseProgram makes id current.
func (d *Device) UseProgram(id uint32) { gl.UseProgram(id) }

// UniformLocation returns the location of a uniform, -1 when it is not
// active.
func (d *Device) UniformLocation(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(terminate(name)))
}

func (d *Device) Uniform1i(loc int32, v int32)         { gl.Uniform1i(loc, v) }
func (d *Device) Uniform1f(loc int32, v float32)       { gl.Uniform1f(loc, v) }
func (d *Device) Uniform2f(loc int32, x, y float32)    { gl.Uniform2f(loc, x, y) }
func (d *Device) Uniform3f(loc int32, x, y, z float32) { gl.Uniform3f(loc, x, y, z) }

func (d *Device) Uniform1iv(loc int32, v []int32) {
	if len(v) > 0 {
		gl.Uniform1iv(loc, int32(len(v)), &v[0])
	}
}

func (d *Device) Uniform1fv(loc int32, v []float32) {
	if len(v) > 0 {
		gl.Uniform1fv(loc, int32(len(v)), &v[0])
	}
}
