// Package batch runs one configured job end to end: it validates the
// configuration, loads the manifest, prepares the output directory and
// dispatches to the pipeline driver of the selected mode.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/ppbatch/internal/bench"
	"github.com/MeKo-Tech/ppbatch/internal/config"
	"github.com/MeKo-Tech/ppbatch/internal/engine"
	"github.com/MeKo-Tech/ppbatch/internal/manifest"
	"github.com/MeKo-Tech/ppbatch/internal/pipeline"
)

// Deps are the collaborators of a run. Zero values fall back to defaults:
// engine.New for NewEngine, os.Stdout, slog.Default().
type Deps struct {
	// NewEngine builds the engine for the run. It is called after the
	// manifest loaded.
	NewEngine func(opts engine.Options) (engine.Engine, error)
	Stdout    io.Writer
	Logger    *slog.Logger
	Progress  pipeline.ProgressCallback
}

// Summary describes a finished run.
type Summary struct {
	Mode      string
	Requested int
	Processed int
	Skipped   int
	Duration  time.Duration
}

// Run executes the job described by cfg. Per-image failures are logged by
// the drivers and counted as skipped; every returned error is fatal.
func Run(ctx context.Context, cfg config.Config, deps Deps) (*Summary, error) {
	deps = withDefaults(deps)
	logger := deps.Logger
	start := time.Now()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	entries, err := manifest.Load(cfg.Manifest)
	if err != nil {
		return nil, err
	}
	_, _ = fmt.Fprintf(deps.Stdout, "total images num: %d\n", len(entries))
	logger.Info("manifest loaded", "path", cfg.Manifest, "entries", len(entries))

	if err := ensureOutputDir(cfg.OutputDir); err != nil {
		return nil, err
	}

	eng, err := deps.NewEngine(EngineOptions(cfg, logger))
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Warn("failed to close engine", "error", err)
		}
	}()

	recorder := bench.NewRecorder(cfg.Benchmark || cfg.Metrics.Textfile != "")
	runner, err := pipeline.NewBuilder(cfg).
		WithEngine(eng).
		WithStdout(deps.Stdout).
		WithLogger(logger).
		WithRecorder(recorder).
		WithProgress(deps.Progress).
		Build()
	if err != nil {
		return nil, err
	}

	summary := &Summary{Mode: cfg.Mode, Requested: len(entries)}
	switch cfg.Mode {
	case config.ModeOCR:
		batch, err := runner.RunFlat(ctx, entries)
		if err != nil {
			return nil, err
		}
		summary.Processed = len(batch)
	case config.ModeStructure:
		batch, err := runner.RunStructured(ctx, entries)
		if err != nil {
			return nil, err
		}
		summary.Processed = len(batch)
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	summary.Skipped = summary.Requested - summary.Processed
	summary.Duration = time.Since(start)

	if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger.Warn("metrics export failed", "path", cfg.Metrics.Textfile, "error", err)
	}

	logger.Info("batch finished",
		"mode", summary.Mode,
		"requested", summary.Requested,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"duration", summary.Duration.Round(time.Millisecond),
	)
	return summary, nil
}

// EngineOptions maps the run configuration onto engine options.
func EngineOptions(cfg config.Config, logger *slog.Logger) engine.Options {
	return engine.Options{
		Backend:  cfg.Engine.Backend,
		Endpoint: cfg.Engine.Endpoint,
		Timeout:  cfg.Timeout(),
		Language: cfg.Engine.Language,
		Models: engine.ModelDirs{
			Det:    cfg.Models.DetDir,
			Rec:    cfg.Models.RecDir,
			Cls:    cfg.Models.ClsDir,
			Layout: cfg.Models.LayoutDir,
			Table:  cfg.Models.TableDir,
		},
		Precision:   cfg.Precision,
		UseGPU:      cfg.GPU.UseGPU,
		GPUDevice:   cfg.GPU.Device,
		UseAngleCls: cfg.Stages.UseAngleCls,
		Logger:      logger,
	}
}

func withDefaults(d Deps) Deps {
	if d.NewEngine == nil {
		d.NewEngine = engine.New
	}
	if d.Stdout == nil {
		d.Stdout = os.Stdout
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

func ensureOutputDir(dir string) error {
	if dir == "" {
		dir = config.DefaultOutputDir
	}
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("output path %s is not a directory", dir)
	case err == nil:
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("stat output directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}
