package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/normanking/physicam/internal/config"
	"github.com/normanking/physicam/internal/exposure"
	"github.com/normanking/physicam/internal/imageio"
	"github.com/normanking/physicam/internal/offline"
)

func newRenderCmd(g *globalFlags) *cobra.Command {
	opts := offline.DefaultOptions()
	var (
		mode    string
		tonemap string
	)

	cmd := &cobra.Command{
		Use:   "render [output]",
		Short: "Develop one frame and write it to an image file",
		Long: `Develop one frame and write it to an image file. The output format
follows the extension: .png, .jpg, .tif or .bmp.

Without --input the procedural scene is rendered.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := args[0]
			if _, err := imageio.FormatFromExt(filepath.Ext(output)); err != nil {
				return err
			}

			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if mode != "" {
				cfg.Camera.Mode = mode
			}
			if tonemap != "" {
				cfg.PostFX.Tonemap.Method = tonemap
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err := g.logger(cfg)
			if err != nil {
				return err
			}
			defer log.Close()

			res, err := offline.Render(cfg, opts, log)
			if err != nil {
				return err
			}
			if err := imageio.Save(res.Image, output); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Output:\t%s (%dx%d)\n", output, res.Image.Width, res.Image.Height)
			fmt.Fprintf(w, "Mode:\t%s\n", res.Mode)
			fmt.Fprintf(w, "Settings:\tISO %.0f  f/%.1f  %s\n", res.Settings.ISO, res.Settings.Aperture, formatShutter(res.Settings.Shutter))
			fmt.Fprintf(w, "EV:\t%.2f\n", res.EV)
			fmt.Fprintf(w, "Luminance:\t%.2f cd/m²\n", res.Luminance)
			return w.Flush()
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Input, "input", "i", "", "Image to use as scene radiance")
	f.Float32Var(&opts.Gain, "gain", opts.Gain, "Luminance of a full scale input pixel")
	f.BoolVar(&opts.Linearize, "linearize", opts.Linearize, "Decode sRGB input to linear")
	f.Float32Var(&opts.Depth, "depth", opts.Depth, "Window depth of the input image, 0..1")
	f.IntVar(&opts.Width, "width", opts.Width, "Scene render width")
	f.IntVar(&opts.Height, "height", opts.Height, "Scene render height")
	f.Float32Var(&opts.Time, "time", opts.Time, "Scene time in seconds")
	f.IntVar(&opts.Frames, "frames", opts.Frames, "Frames to run before capturing")
	f.Float32Var(&opts.DeltaTime, "dt", opts.DeltaTime, "Seconds per frame")
	f.StringVar(&mode, "mode", "", "Exposure mode override: auto or manual")
	f.StringVar(&tonemap, "tonemap", "", "Tone curve override: reinhard, filmic or uncharted2")
	return cmd
}

func newExposureCmd() *cobra.Command {
	s := exposure.DefaultSettings()
	var (
		sensor    string
		luminance float32
	)

	cmd := &cobra.Command{
		Use:   "exposure",
		Short: "Show EV, exposure factors and field of view for camera settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			preset, err := exposure.ParseSensorPreset(sensor)
			if err != nil {
				return err
			}
			s.Sensor = preset

			model, err := exposure.NewModel(s, exposure.HardwareLimits)
			if err != nil {
				return err
			}
			model.SetMode(exposure.Manual)
			return printExposure(cmd, model, luminance)
		},
	}

	f := cmd.Flags()
	f.Float32Var(&s.ISO, "iso", s.ISO, "Sensor sensitivity")
	f.Float32Var(&s.Aperture, "aperture", s.Aperture, "f-number")
	f.Float32Var(&s.Shutter, "shutter", s.Shutter, "Shutter speed in seconds")
	f.Float32Var(&s.FocalLength, "focal-length", s.FocalLength, "Focal length in mm")
	f.Float32Var(&s.Compensation, "compensation", 0, "Exposure compensation in EV")
	f.StringVar(&sensor, "sensor", s.Sensor.String(), "Sensor: 4/3, aps-c, 35mm, medium or large")
	f.Float32Var(&luminance, "luminance", 0, "Also show program auto settings for this scene luminance")
	return cmd
}

func printExposure(cmd *cobra.Command, model *exposure.Model, luminance float32) error {
	s := model.Settings()
	sensor := s.Sensor.Sensor()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Settings:\tISO %.0f  f/%.1f  %s  %.0fmm (%s)\n",
		s.ISO, s.Aperture, formatShutter(s.Shutter), s.FocalLength, s.Sensor)
	fmt.Fprintf(w, "EV100:\t%.2f\n", model.ComputeCurrentEV())
	fmt.Fprintf(w, "Exposure (SOS):\t%.6g\n", model.StandardOutputBasedExposure(exposure.DefaultMiddleGrey))
	fmt.Fprintf(w, "Exposure (SBS):\t%.6g\n", model.SaturationBasedExposure())
	fmt.Fprintf(w, "Vertical FOV:\t%.2f°\n", model.ComputeFOV(s.FocalLength))
	fmt.Fprintf(w, "Circle of confusion:\t%.3fmm\n", sensor.CoC)

	if luminance > 0 {
		target := exposure.ComputeTargetEV(luminance) + s.Compensation
		model.SetMode(exposure.Auto)
		model.Update(luminance)
		a := model.Settings()
		fmt.Fprintf(w, "\t\n")
		fmt.Fprintf(w, "Scene luminance:\t%.2f cd/m²\n", luminance)
		fmt.Fprintf(w, "Target EV:\t%.2f\n", target)
		fmt.Fprintf(w, "Program auto:\tISO %.0f  f/%.1f  %s (EV %.2f)\n",
			a.ISO, a.Aperture, formatShutter(a.Shutter), model.ComputeCurrentEV())
	}
	return w.Flush()
}

func formatShutter(t float32) string {
	if t > 0 && t < 1 {
		return fmt.Sprintf("1/%.0fs", 1/t)
	}
	return fmt.Sprintf("%.1fs", t)
}

func newConfigCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if len(args) == 0 {
				if err := config.Save(cfg); err != nil {
					return err
				}
				dir, err := config.GetConfigDir()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", filepath.Join(dir, "config.yaml"))
				return nil
			}
			if err := config.SaveToPath(cfg, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", args[0])
			return nil
		},
	}
	cmd.AddCommand(initCmd)
	return cmd
}
