package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	fyneapp "fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"

	"philipredstone/photocapture/internal/capture"
	"philipredstone/photocapture/internal/capture/mjpeg"
	"philipredstone/photocapture/internal/capture/opencv"
	"philipredstone/photocapture/internal/config"
	xlog "philipredstone/photocapture/internal/log"
	"philipredstone/photocapture/internal/ui"
)

const appID = "com.philipredstone.photocapture"

type options struct {
	configPath string
	camera     string
	photoFile  string
	width      int
	logLevel   string
	pretty     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "photocapture",
		Short:         "Take a single photo from a USB or IP camera",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts.pretty)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", os.Getenv(config.EnvConfig), "YAML configuration file")
	f.StringVar(&opts.camera, "camera", "", "camera preset to use")
	f.StringVar(&opts.photoFile, "photo", "", "file the photo is saved to")
	f.IntVar(&opts.width, "width", 0, "width of the live view in pixels")
	f.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.BoolVar(&opts.pretty, "pretty", false, "human readable log output")

	root.AddCommand(newCamerasCmd(opts))
	return root
}

func newCamerasCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cameras",
		Short: "List the configured camera presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range cfg.PresetNames() {
				cam := cfg.Cameras[name]
				marker := " "
				if name == cfg.Camera {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-12s %-24s %s\n", marker, name, cam.Name, cam.Redacted())
			}
			return nil
		},
	}
}

// load applies the flags that were set on top of file and environment.
func (o *options) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	o.apply(&cfg, cmd.Flags().Changed)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (o *options) apply(cfg *config.Config, changed func(name string) bool) {
	if changed("camera") {
		cfg.Camera = o.camera
	}
	if changed("photo") {
		cfg.PhotoFile = o.photoFile
	}
	if changed("width") {
		cfg.FrameWidth = o.width
	}
	if changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
}

func run(ctx context.Context, cfg config.Config, pretty bool) error {
	xlog.Configure(xlog.Config{Level: cfg.LogLevel, Pretty: pretty})
	logger := xlog.Base()

	driver := capture.NewRouter(
		mjpeg.New(mjpeg.Options{Logger: xlog.WithComponent("mjpeg")}),
		opencv.New(xlog.WithComponent("opencv")),
	)

	w, err := ui.New(fyneapp.NewWithID(appID), cfg, driver, logger)
	if err != nil {
		return err
	}
	logger.Info().Str("session", w.Session().ID).Str("title", cfg.Title()).Msg("photo capture started")
	w.Run(ctx)
	return nil
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "photocapture:", err)
		stop()
		os.Exit(1)
	}
}
