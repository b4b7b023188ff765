package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func newTestLoader() *Loader {
	return NewLoaderWith(viper.New())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ppbatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

// TestNewLoader tests loader creation.
func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil || loader.v == nil {
		t.Fatal("NewLoader() returned an unusable loader")
	}
	if loader.GetViper() != viper.GetViper() {
		t.Error("NewLoader() should use the global viper instance")
	}
}

// TestLoadWithNoConfigFile tests loading with no config file present.
func TestLoadWithNoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	cfg, err := newTestLoader().LoadWithoutValidation()
	if err != nil {
		t.Fatalf("LoadWithoutValidation() unexpected error: %v", err)
	}
	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected default log level '%s', got %s", infoLevel, cfg.LogLevel)
	}
	if cfg.Engine.Endpoint != DefaultConfig().Engine.Endpoint {
		t.Errorf("Expected default endpoint, got %s", cfg.Engine.Endpoint)
	}
}

// TestLoadWithValidYAMLFile tests loading from a valid YAML file.
func TestLoadWithValidYAMLFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
mode: structure
manifest: /data/list.json
output_dir: /data/out
precision: fp16
stages:
  layout: true
  table: true
models:
  det_dir: /m/det
  rec_dir: /m/rec
  layout_dir: /m/layout
  table_dir: /m/table
engine:
  backend: tesseract
  language: deu
report:
  file: /data/result.json
  per_image: true
`)

	loader := newTestLoader()
	cfg, err := loader.LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}
	if cfg.LogLevel != debugLevel {
		t.Errorf("Expected log level '%s', got %s", debugLevel, cfg.LogLevel)
	}
	if cfg.Mode != ModeStructure {
		t.Errorf("Expected structure mode, got %s", cfg.Mode)
	}
	if cfg.Models.TableDir != "/m/table" {
		t.Errorf("Expected table dir '/m/table', got %s", cfg.Models.TableDir)
	}
	if !cfg.Stages.Det {
		t.Error("Expected det default to survive a partial stages block")
	}
	if cfg.Engine.Backend != BackendTesseract || cfg.Engine.Language != "deu" {
		t.Errorf("Unexpected engine config %+v", cfg.Engine)
	}
	if !cfg.Report.PerImage || cfg.Report.File != "/data/result.json" {
		t.Errorf("Unexpected report config %+v", cfg.Report)
	}
	if loader.GetConfigFileUsed() != path {
		t.Errorf("Expected config file %s, got %s", path, loader.GetConfigFileUsed())
	}
}

func TestLoadWithInvalidYAMLFile(t *testing.T) {
	path := writeConfig(t, "stages: [unclosed\n")
	if _, err := newTestLoader().LoadWithFile(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoadWithNonExistentFile(t *testing.T) {
	_, err := newTestLoader().LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadWithValidationFailure(t *testing.T) {
	path := writeConfig(t, "manifest: list.json\nmodels:\n  det_dir: /d\n  rec_dir: /r\nstages:\n  table: true\n")

	_, err := newTestLoader().LoadWithFile(path)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if verr.Field != "models.table_dir" {
		t.Errorf("Expected table_dir failure, got %s", verr.Field)
	}

	cfg, err := newTestLoader().LoadWithFileWithoutValidation(path)
	if err != nil {
		t.Fatalf("LoadWithFileWithoutValidation() unexpected error: %v", err)
	}
	if !cfg.Stages.Table {
		t.Error("Expected table stage to be loaded")
	}
}

// TestEnvironmentVariableOverride checks PPBATCH_* variables for nested keys.
func TestEnvironmentVariableOverride(t *testing.T) {
	t.Setenv("PPBATCH_LOG_LEVEL", "warn")
	t.Setenv("PPBATCH_ENGINE_ENDPOINT", "ws://ocr:9000/ws/ocr")
	t.Setenv("PPBATCH_GPU_USE_GPU", "false")
	t.Setenv("PPBATCH_STAGES_USE_ANGLE_CLS", "true")

	path := writeConfig(t, "log_level: debug\n")
	cfg, err := newTestLoader().LoadWithFileWithoutValidation(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Expected env to override file, got %s", cfg.LogLevel)
	}
	if cfg.Engine.Endpoint != "ws://ocr:9000/ws/ocr" {
		t.Errorf("Unexpected endpoint %s", cfg.Engine.Endpoint)
	}
	if cfg.GPU.UseGPU {
		t.Error("Expected use_gpu false from env")
	}
	if !cfg.Stages.UseAngleCls {
		t.Error("Expected use_angle_cls true from env")
	}
}

func TestExplicitlySet(t *testing.T) {
	t.Run("from config file", func(t *testing.T) {
		loader := newTestLoader()
		if _, err := loader.LoadWithFileWithoutValidation(writeConfig(t, "gpu:\n  use_gpu: false\n")); err != nil {
			t.Fatal(err)
		}
		if !loader.ExplicitlySet("gpu.use_gpu") {
			t.Error("Expected gpu.use_gpu to count as explicitly set")
		}
		if loader.ExplicitlySet("gpu.device") {
			t.Error("Expected gpu.device to be unset")
		}
	})

	t.Run("from environment", func(t *testing.T) {
		t.Setenv("PPBATCH_GPU_USE_GPU", "true")
		loader := newTestLoader()
		if _, err := loader.LoadWithFileWithoutValidation(writeConfig(t, "log_level: info\n")); err != nil {
			t.Fatal(err)
		}
		if !loader.ExplicitlySet("gpu.use_gpu") {
			t.Error("Expected env var to count as explicitly set")
		}
	})

	t.Run("defaults only", func(t *testing.T) {
		loader := newTestLoader()
		if _, err := loader.LoadWithFileWithoutValidation(writeConfig(t, "log_level: info\n")); err != nil {
			t.Fatal(err)
		}
		if loader.ExplicitlySet("gpu.use_gpu") {
			t.Error("Expected default to not count as explicitly set")
		}
	})
}

func TestEnvVar(t *testing.T) {
	if got := EnvVar("gpu.use_gpu"); got != "PPBATCH_GPU_USE_GPU" {
		t.Errorf("Unexpected env var %s", got)
	}
	if got := EnvVar("output-dir"); got != "PPBATCH_OUTPUT_DIR" {
		t.Errorf("Unexpected env var %s", got)
	}
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ppbatch.yaml")
	if err := GenerateDefaultConfigFile(path); err != nil {
		t.Fatalf("GenerateDefaultConfigFile() error: %v", err)
	}

	cfg, err := newTestLoader().LoadWithFileWithoutValidation(path)
	if err != nil {
		t.Fatalf("reloading generated file: %v", err)
	}
	if *cfg != DefaultConfig() {
		t.Errorf("Generated config does not round-trip to defaults: %+v", cfg)
	}
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths := GetConfigSearchPaths()
	if paths[0] != "." {
		t.Errorf("Expected current directory first, got %s", paths[0])
	}
	found := false
	for _, p := range paths {
		if p == filepath.Join("/xdg", ConfigFileName) {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected XDG path in %v", paths)
	}
}
