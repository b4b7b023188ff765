// Package cmd wires the ppbatch command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/ppbatch/internal/accel"
	"github.com/MeKo-Tech/ppbatch/internal/config"
	"github.com/MeKo-Tech/ppbatch/internal/onnx"
	"github.com/MeKo-Tech/ppbatch/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	// Engine backends register themselves.
	_ "github.com/MeKo-Tech/ppbatch/internal/engine/remote"
	_ "github.com/MeKo-Tech/ppbatch/internal/engine/tesseract"
)

// app is the state shared by the commands of one root command tree.
type app struct {
	loader  *config.Loader
	cfg     *config.Config
	cfgFile string
	logger  *slog.Logger

	newCounter func(cfg config.Config, logger *slog.Logger) accel.DeviceCounter
}

// Option customizes a root command.
type Option func(*app)

// WithDeviceCounter replaces the ONNX Runtime GPU query.
func WithDeviceCounter(c accel.DeviceCounter) Option {
	return func(a *app) {
		a.newCounter = func(config.Config, *slog.Logger) accel.DeviceCounter { return c }
	}
}

func cudaCounter(cfg config.Config, logger *slog.Logger) accel.DeviceCounter {
	return &onnx.CUDADeviceCounter{
		LibraryPath: cfg.GPU.LibraryPath,
		DeviceID:    cfg.GPU.Device,
		Logger:      logger,
	}
}

// NewRootCommand builds the command tree. Every call uses its own viper
// instance, so trees do not share flag or config state.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{
		loader:     config.NewLoaderWith(viper.New()),
		newCounter: cudaCounter,
	}
	for _, o := range opts {
		o(a)
	}

	root := &cobra.Command{
		Use:   "ppbatch",
		Short: "Batch OCR over a manifest of images",
		Long: `ppbatch runs text detection, recognition and classification, or
document layout analysis, over every image listed in a JSON or YAML manifest.
Results are printed, optionally rendered onto the images, and written as a
JSON report.

The recognition itself is done by an engine backend: a remote OCR server
reached over a websocket (default) or a local Tesseract build.

Examples:
  ppbatch run --det-model-dir=models/det --rec-model-dir=models/rec --image-dir=list.json
  ppbatch run --type=structure --layout-model-dir=models/layout ... --image-dir=list.json
  ppbatch probe
  ppbatch config init`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
				return nil
			}
			return cmd.Help()
		},
		PersistentPreRunE: a.initConfig,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is search in ., $HOME, /etc/ppbatch, $XDG_CONFIG_HOME/ppbatch)")
	flags.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	flags.String("log-level", config.DefaultConfig().LogLevel, "log level (debug, info, warn, error)")
	flags.Bool("version", false, "print version information and exit")

	bindFlags(a.loader.GetViper(), flags, map[string]string{"verbose": "verbose", "log-level": "log_level"})

	root.AddCommand(newRunCommand(a), newProbeCommand(a), newConfigCommand(a))
	return root
}

// initConfig loads the configuration and installs the JSON logger. The
// configuration is validated by the commands that need a runnable one.
func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	var err error
	if a.cfgFile != "" {
		a.cfg, err = a.loader.LoadWithFileWithoutValidation(a.cfgFile)
	} else {
		a.cfg, err = a.loader.LoadWithoutValidation()
	}
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	level := slog.LevelInfo
	if a.cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch a.cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	// stdout carries the result blocks, logs go to stderr.
	a.logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)
	if used := a.loader.GetConfigFileUsed(); used != "" {
		a.logger.Debug("configuration loaded", "file", used)
	}
	return nil
}

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
