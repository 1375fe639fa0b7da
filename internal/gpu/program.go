// internal/gpu/program.go
//
// Program compilation, uniform binding and hot-reload support
package gpu

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/normanking/physicam/internal/logging"
)

// Program is a compiled vertex+fragment program with a uniform location cache.
type Program struct {
	dev  Device
	id   uint32
	name string

	vertSrc string
	fragSrc string

	uniformCache map[string]int32
}

// NewProgram compiles and links a program. name identifies the stage in
// logs and errors.
func NewProgram(dev Device, name, vertSrc, fragSrc string) (*Program, error) {
	id, err := dev.CreateProgram(name, vertSrc, fragSrc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCompile, name, err)
	}
	if id == 0 {
		return nil, fmt.Errorf("%w: %s: empty program handle", ErrCompile, name)
	}
	return &Program{
		dev:          dev,
		id:           id,
		name:         name,
		vertSrc:      vertSrc,
		fragSrc:      fragSrc,
		uniformCache: make(map[string]int32),
	}, nil
}

// ID returns the program handle.
func (p *Program) ID() uint32 { return p.id }

// Name returns the stage name.
func (p *Program) Name() string { return p.name }

// Use activates this program
func (p *Program) Use() {
	p.dev.UseProgram(p.id)
}

// Delete releases program resources
func (p *Program) Delete() {
	if p.id != 0 {
		p.dev.DeleteProgram(p.id)
		p.id = 0
	}
}

// Reload recompiles the program with a new fragment source. The old
// program stays active if compilation fails.
func (p *Program) Reload(fragSrc string) error {
	id, err := p.dev.CreateProgram(p.name, p.vertSrc, fragSrc)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCompile, p.name, err)
	}
	p.dev.DeleteProgram(p.id)
	p.id = id
	p.fragSrc = fragSrc
	p.uniformCache = make(map[string]int32)
	return nil
}

func (p *Program) location(name string) int32 {
	if loc, ok := p.uniformCache[name]; ok {
		return loc
	}
	loc := p.dev.UniformLocation(p.id, name)
	p.uniformCache[name] = loc
	return loc
}

// SetBool sets a boolean uniform
func (p *Program) SetBool(name string, value bool) {
	var v int32
	if value {
		v = 1
	}
	p.dev.Uniform1i(p.location(name), v)
}

// SetInt sets an integer uniform
func (p *Program) SetInt(name string, value int32) {
	p.dev.Uniform1i(p.location(name), value)
}

// SetIntArray sets an integer array uniform
func (p *Program) SetIntArray(name string, values []int32) {
	if len(values) > 0 {
		p.dev.Uniform1iv(p.location(name), values)
	}
}

// SetFloat sets a float uniform
func (p *Program) SetFloat(name string, value float32) {
	p.dev.Uniform1f(p.location(name), value)
}

// SetFloatArray sets a float array uniform
func (p *Program) SetFloatArray(name string, values []float32) {
	if len(values) > 0 {
		p.dev.Uniform1fv(p.location(name), values)
	}
}

// SetVec2 sets a vec2 uniform
func (p *Program) SetVec2(name string, v mgl32.Vec2) {
	p.dev.Uniform2f(p.location(name), v[0], v[1])
}

// SetVec3 sets a vec3 uniform
func (p *Program) SetVec3(name string, v mgl32.Vec3) {
	p.dev.Uniform3f(p.location(name), v[0], v[1], v[2])
}

// =============================================================================
// PROGRAM HOT-RELOAD WATCHER
// =============================================================================

// ProgramWatcher watches a directory of fragment shader overrides named
// <program>.frag. File events are only queued; ApplyPending must be called
// on the render thread to recompile.
type ProgramWatcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	log      *logging.Logger
	programs map[string]*Program // name -> program

	mu       sync.Mutex
	pending  map[string]struct{}
	done     chan struct{}
	onReload func(program string, err error)
}

// NewProgramWatcher starts watching dir.
func NewProgramWatcher(dir string, log *logging.Logger) (*ProgramWatcher, error) {
	if log == nil {
		log = logging.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	pw := &ProgramWatcher{
		watcher:  watcher,
		dir:      dir,
		log:      log,
		programs: make(map[string]*Program),
		pending:  make(map[string]struct{}),
		done:     make(chan struct{}),
	}
	go pw.watchLoop()
	return pw, nil
}

// Watch registers programs for reloading. Overrides already present in the
// directory are queued immediately.
func (pw *ProgramWatcher) Watch(programs ...*Program) {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	for _, p := range programs {
		pw.programs[p.name] = p
		if _, err := os.Stat(pw.pathFor(p.name)); err == nil {
			pw.pending[p.name] = struct{}{}
		}
	}
}

// OnReload sets a callback run on the render thread after every reload
// attempt, with a nil error on success.
func (pw *ProgramWatcher) OnReload(fn func(program string, err error)) {
	pw.onReload = fn
}

func (pw *ProgramWatcher) report(name string, err error) {
	if pw.onReload != nil {
		pw.onReload(name, err)
	}
}

func (pw *ProgramWatcher) pathFor(name string) string {
	return filepath.Join(pw.dir, name+".frag")
}

func (pw *ProgramWatcher) watchLoop() {
	for {
		select {
		case <-pw.done:
			return
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name := strings.TrimSuffix(filepath.Base(event.Name), ".frag")
			pw.mu.Lock()
			if _, ok := pw.programs[name]; ok {
				pw.pending[name] = struct{}{}
			}
			pw.mu.Unlock()
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.log.Warn("shader", "watcher error", map[string]interface{}{"error": err.Error()})
		}
	}
}

// Pending returns the number of queued reloads.
func (pw *ProgramWatcher) Pending() int {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return len(pw.pending)
}

// ApplyPending recompiles every program with a queued change and returns
// how many were reloaded. Failed reloads are logged and keep the old program.
func (pw *ProgramWatcher) ApplyPending() int {
	pw.mu.Lock()
	names := make([]string, 0, len(pw.pending))
	for name := range pw.pending {
		names = append(names, name)
	}
	pw.pending = make(map[string]struct{})
	pw.mu.Unlock()

	reloaded := 0
	for _, name := range names {
		pw.mu.Lock()
		p := pw.programs[name]
		pw.mu.Unlock()

		src, err := os.ReadFile(pw.pathFor(name))
		if err != nil {
			pw.log.Error("shader", "read override failed", err, map[string]interface{}{"program": name})
			pw.report(name, err)
			continue
		}
		fragSrc := string(src)
		if !strings.HasSuffix(fragSrc, "\x00") {
			fragSrc += "\x00"
		}
		if err := p.Reload(fragSrc); err != nil {
			pw.log.Error("shader", "reload failed", err, map[string]interface{}{"program": name})
			pw.report(name, err)
			continue
		}
		pw.log.Info("shader", "program reloaded", map[string]interface{}{"program": name})
		pw.report(name, nil)
		reloaded++
	}
	return reloaded
}

// Close stops the watcher
func (pw *ProgramWatcher) Close() error {
	close(pw.done)
	return pw.watcher.Close()
}
