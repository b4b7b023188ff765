// Package pipeline drives the recognition engine over the entries of a
// manifest: it decodes images, calls the engine, prints and renders the
// results and writes the reports.
package pipeline

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/ppbatch/internal/bench"
	"github.com/MeKo-Tech/ppbatch/internal/config"
	"github.com/MeKo-Tech/ppbatch/internal/engine"
)

// Runner executes one mode over a list of manifest entries. A Runner is
// used by a single goroutine.
type Runner struct {
	cfg      config.Config
	engine   engine.Engine
	stdout   io.Writer
	logger   *slog.Logger
	recorder *bench.Recorder
	progress ProgressCallback
}

// Builder constructs a Runner with fluent configuration.
type Builder struct {
	r Runner
}

// NewBuilder creates a builder for cfg. Output goes to os.Stdout and logs to
// slog.Default() unless overridden.
func NewBuilder(cfg config.Config) *Builder {
	return &Builder{r: Runner{
		cfg:      cfg,
		stdout:   os.Stdout,
		logger:   slog.Default(),
		progress: NoOpProgressCallback{},
	}}
}

// WithEngine sets the recognition engine.
func (b *Builder) WithEngine(e engine.Engine) *Builder {
	b.r.engine = e
	return b
}

// WithStdout sets the writer that receives the result blocks.
func (b *Builder) WithStdout(w io.Writer) *Builder {
	if w != nil {
		b.r.stdout = w
	}
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	if l != nil {
		b.r.logger = l
	}
	return b
}

// WithRecorder sets the benchmark recorder. A nil recorder disables timing.
func (b *Builder) WithRecorder(rec *bench.Recorder) *Builder {
	b.r.recorder = rec
	return b
}

// WithProgress sets the progress callback.
func (b *Builder) WithProgress(cb ProgressCallback) *Builder {
	if cb != nil {
		b.r.progress = cb
	}
	return b
}

// Build returns the configured Runner.
func (b *Builder) Build() (*Runner, error) {
	if b.r.engine == nil {
		return nil, errors.New("pipeline: no engine configured")
	}
	r := b.r
	return &r, nil
}

// outputPath joins the output directory and name.
func (r *Runner) outputPath(name string) string {
	dir := r.cfg.OutputDir
	if dir == "" {
		dir = config.DefaultOutputDir
	}
	return filepath.Join(dir, name)
}

// reportPath is where the per-image report of an entry is written: its dst,
// or <output>/<base without extension>.json.
func (r *Runner) reportPath(src, dst string) string {
	if dst != "" {
		return dst
	}
	base := filepath.Base(src)
	return r.outputPath(strings.TrimSuffix(base, filepath.Ext(base)) + ".json")
}
