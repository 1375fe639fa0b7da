// Command physicam-render develops frames without a window and answers
// exposure questions from the command line.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/normanking/physicam/internal/config"
	"github.com/normanking/physicam/internal/logging"
)

// Version information (set at build time)
var version = "dev"

type globalFlags struct {
	configPath string
	logLevel   string
}

func (g *globalFlags) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFromPath(g.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	return cfg, nil
}

func (g *globalFlags) logger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(cfg.ToLoggingConfig())
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "physicam-render",
		Short: "Physically based camera, rendered offline",
		Long: `Develop HDR frames through the physical camera model on the CPU.

The procedural scene or any PNG, JPEG, TIFF or BMP image (read as scene
radiance) is exposed, post-processed and written to an image file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "Config file (default ~/.physicam/config.yaml)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(
		newRenderCmd(g),
		newExposureCmd(),
		newConfigCmd(g),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", strings.TrimSpace(err.Error()))
		os.Exit(1)
	}
}
