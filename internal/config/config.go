package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Run modes.
const (
	ModeOCR       = "ocr"
	ModeStructure = "structure"
)

// Engine backends.
const (
	BackendRemote    = "remote"
	BackendTesseract = "tesseract"
)

// DefaultOutputDir is where visualizations and per-image reports go.
const DefaultOutputDir = "./output/"

var (
	validModes      = []string{ModeOCR, ModeStructure}
	validPrecisions = []string{"fp32", "fp16", "int8"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validBackends   = []string{BackendRemote, BackendTesseract}
)

// ValidationError reports a configuration that cannot be run. Usage holds
// the hint printed for the user.
type ValidationError struct {
	Field string
	Usage string
}

func (e *ValidationError) Error() string {
	return e.Usage
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Mode:      ModeOCR,
		LogLevel:  "info",
		Verbose:   false,
		OutputDir: DefaultOutputDir,
		Visualize: true,
		Benchmark: false,
		Precision: "fp32",
		Stages: StageConfig{
			Det: true,
			Rec: true,
		},
		Engine: EngineConfig{
			Backend:    BackendRemote,
			Endpoint:   "ws://localhost:8080/ws/ocr",
			TimeoutSec: 60,
			Language:   "eng",
		},
		GPU: GPUConfig{
			UseGPU: true,
			Device: 0,
		},
	}
}

// Timeout returns the engine timeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Engine.TimeoutSec) * time.Second
}

// Validate checks the stage/model combination and the enumerated settings.
// The first problem found is returned as a *ValidationError.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return invalid("log_level", "invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Stages.Det && (c.Models.DetDir == "" || c.Manifest == "") {
		return invalid("models.det_dir", "Usage[det]: ppbatch run --det-model-dir=/PATH/TO/DET_INFERENCE_MODEL/ --image-dir=/PATH/TO/MANIFEST.json")
	}
	if c.Stages.Rec && (c.Models.RecDir == "" || c.Manifest == "") {
		return invalid("models.rec_dir", "Usage[rec]: ppbatch run --rec-model-dir=/PATH/TO/REC_INFERENCE_MODEL/ --image-dir=/PATH/TO/MANIFEST.json")
	}
	if c.Stages.Cls && c.Stages.UseAngleCls && (c.Models.ClsDir == "" || c.Manifest == "") {
		return invalid("models.cls_dir", "Usage[cls]: ppbatch run --cls-model-dir=/PATH/TO/CLS_INFERENCE_MODEL/ --image-dir=/PATH/TO/MANIFEST.json")
	}
	if c.Stages.Table && (c.Models.TableDir == "" || c.Models.DetDir == "" || c.Models.RecDir == "" || c.Manifest == "") {
		return invalid("models.table_dir", "Usage[table]: ppbatch run --det-model-dir=/PATH/TO/DET_INFERENCE_MODEL/ --rec-model-dir=/PATH/TO/REC_INFERENCE_MODEL/ --table-model-dir=/PATH/TO/TABLE_INFERENCE_MODEL/ --image-dir=/PATH/TO/MANIFEST.json")
	}
	if c.Stages.Layout && (c.Models.LayoutDir == "" || c.Manifest == "") {
		return invalid("models.layout_dir", "Usage[layout]: ppbatch run --layout-model-dir=/PATH/TO/LAYOUT_INFERENCE_MODEL/ --image-dir=/PATH/TO/MANIFEST.json")
	}
	if c.Mode == ModeStructure && (c.Models.LayoutDir == "" || c.Models.DetDir == "" || c.Models.RecDir == "" || c.Manifest == "") {
		return invalid("mode", "Usage[structure]: ppbatch run --type=structure --layout-model-dir=/PATH/TO/LAYOUT_INFERENCE_MODEL/ --det-model-dir=/PATH/TO/DET_INFERENCE_MODEL/ --rec-model-dir=/PATH/TO/REC_INFERENCE_MODEL/ --image-dir=/PATH/TO/MANIFEST.json")
	}

	if !slices.Contains(validPrecisions, c.Precision) {
		return invalid("precision", "precision should be 'fp32'(default), 'fp16' or 'int8'.")
	}
	if !slices.Contains(validModes, c.Mode) {
		return invalid("mode", "only value in ['ocr','structure'] is supported")
	}

	if !slices.Contains(validBackends, c.Engine.Backend) {
		return invalid("engine.backend", "invalid engine backend: %s (must be one of: %s)", c.Engine.Backend, strings.Join(validBackends, ", "))
	}
	if c.Engine.TimeoutSec <= 0 {
		return invalid("engine.timeout_sec", "invalid engine timeout: %d (must be positive)", c.Engine.TimeoutSec)
	}
	if c.GPU.Device < 0 {
		return invalid("gpu.device", "invalid GPU device: %d (must not be negative)", c.GPU.Device)
	}

	return nil
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Usage: fmt.Sprintf(format, args...)}
}
