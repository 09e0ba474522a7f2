package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-holocam/internal/config"
	"github.com/teslashibe/go-holocam/internal/log"
	"github.com/teslashibe/go-holocam/pkg/camera"
	"github.com/teslashibe/go-holocam/pkg/pipeline"
	"github.com/teslashibe/go-holocam/pkg/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type flags struct {
	configPath string
	capture    string
	preset     string
	background string
	segmentURL string
	fallback   string
	statusAddr string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:   "holocam [output-device]",
		Short: "Hologram virtual webcam",
		Long: `holocam reads the physical camera, renders each frame as a hologram,
composites the subject over a background image using masks from a
segmentation service, and writes the result to a v4l2loopback device.

The output device defaults to /dev/video20. Create it with:
  sudo modprobe v4l2loopback devices=1 video_nr=20 exclusive_caps=1

Configuration is read from holocam.yaml (or --config), then HOLOCAM_*
environment variables, then flags.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.effective(args)
			if err != nil {
				return err
			}
			log.Init(f.logLevel)
			return run(cmd.Context(), cfg, f.statusAddr)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "YAML config file (default ./holocam.yaml if present)")
	pf.StringVar(&f.capture, "capture", "", "capture device index or path")
	pf.StringVar(&f.preset, "preset", "", fmt.Sprintf("capture preset %v", camera.PresetNames()))
	pf.StringVar(&f.background, "background", "", "background image path")
	pf.StringVar(&f.segmentURL, "segment-url", "", "segmentation service URL")
	pf.StringVar(&f.fallback, "fallback", "", fmt.Sprintf("degraded mask handling %v", pipeline.Fallbacks()))
	root.Flags().StringVar(&f.statusAddr, "status-addr", "127.0.0.1:8090", "status server address, empty to disable")
	pf.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(newConfigCmd(&f), newVersionCmd())
	return root
}

// effective builds the configuration: defaults, file, env, then flags.
func (f *flags) effective(args []string) (pipeline.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}

	if f.preset != "" {
		p := camera.GetPreset(f.preset)
		if p == nil {
			return cfg, fmt.Errorf("unknown preset %q", f.preset)
		}
		p.Device = cfg.Capture.Device
		cfg.Capture = *p
	}
	if len(args) == 1 {
		cfg.Output.Device = args[0]
	}
	if f.capture != "" {
		cfg.Capture.Device = f.capture
	}
	if f.background != "" {
		cfg.Background = f.background
	}
	if f.segmentURL != "" {
		cfg.Segment.BaseURL = f.segmentURL
	}
	if f.fallback != "" {
		cfg.Fallback = pipeline.Fallback(f.fallback)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func run(parent context.Context, cfg pipeline.Config, statusAddr string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.Component("holocam")
	opts := []pipeline.Option{pipeline.WithLogger(log.L())}

	var srv *web.Server
	if statusAddr != "" {
		srv = web.NewServer(statusAddr, log.L())
		opts = append(opts, pipeline.WithObserver(srv))
	}

	driver, err := pipeline.Open(cfg, opts...)
	if err != nil {
		return err
	}

	srvDone := make(chan struct{})
	if srv != nil {
		srv.SetSource(driver)
		go func() {
			defer close(srvDone)
			if err := srv.Run(ctx); err != nil {
				logger.Error("status server stopped", "error", err)
			}
		}()
	} else {
		close(srvDone)
	}

	logger.Info("holocam started",
		"version", version,
		"run_id", driver.RunID(),
		"capture", cfg.Capture.Device,
		"output", cfg.Output.Device,
		"segment_url", cfg.Segment.BaseURL,
	)

	err = driver.Run(ctx)
	stop()
	<-srvDone
	return err
}

func newConfigCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "config [output-device]",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.effective(args)
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
