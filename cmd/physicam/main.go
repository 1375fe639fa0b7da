// Command physicam opens a window onto the procedural test scene, seen
// through the physically based camera and its post-processing chain.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/normanking/physicam/internal/camera"
	"github.com/normanking/physicam/internal/config"
	"github.com/normanking/physicam/internal/gpu/glbackend"
	"github.com/normanking/physicam/internal/logging"
	"github.com/normanking/physicam/internal/metrics"
	"github.com/normanking/physicam/internal/viewer"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "Config file (default ~/.physicam/config.yaml)")
	logLevel := flag.String("log-level", "", "Override the configured log level")
	flag.Parse()

	if err := run(*configPath, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "physicam: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.LoadFromPath(path)
		return cfg, path, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}
	dir, err := config.GetConfigDir()
	if err != nil {
		return cfg, "", nil
	}
	return cfg, filepath.Join(dir, "config.yaml"), nil
}

func run(configPath, logLevel string) error {
	cfg, watchPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := logging.New(cfg.ToLoggingConfig())
	if err != nil {
		return err
	}
	defer log.Close()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("initialize glfw: %w", err)
	}
	defer glfw.Terminate()

	window, err := newWindow(cfg.Window)
	if err != nil {
		return err
	}
	defer window.Destroy()

	dev, err := glbackend.New(log, glbackend.WithoutExtensions(cfg.GPU.DisableExtensions...))
	if err != nil {
		return err
	}
	defer dev.Destroy()

	var stats *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		stats = metrics.New(reg)
		srv := serveMetrics(cfg.Metrics.Addr, reg, log)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	fbW, fbH := window.GetFramebufferSize()
	app, err := viewer.NewApp(dev, cfg, fbW, fbH, log, stats)
	if err != nil {
		return err
	}
	defer app.Close()

	if dir := cfg.GPU.ShaderDir; dir != "" {
		if err := app.WatchShaders(dir); err != nil {
			log.Warn("main", "Shader overrides disabled", map[string]interface{}{
				"dir":   dir,
				"error": err.Error(),
			})
		}
	}

	reloads := make(chan *config.Config, 1)
	if watchPath != "" {
		err := config.Watch(watchPath, func(next *config.Config, err error) {
			if err != nil {
				log.Error("main", "Config reload rejected", err, map[string]interface{}{"path": watchPath})
				return
			}
			select {
			case reloads <- next:
			default:
			}
		})
		if err != nil {
			log.Warn("main", "Config watch disabled", map[string]interface{}{"error": err.Error()})
		}
	}

	bindInput(window, app, func(err error) {
		log.Error("main", "Resize failed", err, nil)
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info("main", "Render loop started", map[string]interface{}{
		"width":  fbW,
		"height": fbH,
	})

	frameStart := time.Now()
	fpsTimer := time.Now()
	frameCount := 0

	for !window.ShouldClose() {
		glfw.PollEvents()

		select {
		case <-sigChan:
			log.Info("main", "Shutdown signal received", nil)
			return nil
		case next := <-reloads:
			if err := app.ApplyConfig(next); err != nil {
				log.Error("main", "Config reload failed", err, nil)
			}
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(frameStart).Seconds())
		frameStart = now

		// A skipped frame is already logged and counted by the camera.
		if err := app.Frame(dt, 0); err != nil && !errors.Is(err, camera.ErrInvalidInput) {
			log.Error("main", "Frame failed", err, nil)
		}
		window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			s := app.Camera().Settings()
			log.Debug("main", "Frame stats", map[string]interface{}{
				"fps":       frameCount,
				"luminance": app.Camera().AverageLuminance(),
				"exposure":  app.Camera().Exposure(),
				"iso":       s.ISO,
				"aperture":  s.Aperture,
				"shutter":   s.Shutter,
			})
			frameCount = 0
			fpsTimer = time.Now()
		}
	}

	log.Info("main", "Render loop ended", map[string]interface{}{"frames": app.Frames()})
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, log *logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics", "Metrics server stopped", err, map[string]interface{}{"addr": addr})
		}
	}()
	log.Info("metrics", "Serving metrics", map[string]interface{}{"addr": addr})
	return srv
}
