package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "ppbatch"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "PPBATCH"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance, which is where
// the cobra flags are bound.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWith creates a loader on a caller-owned viper instance.
func NewLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load reads the config file found on the search paths (if any), applies
// environment variables and defaults, and validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithoutValidation is Load without the final Validate call.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

// LoadWithFile loads configuration from a specific file path. An empty
// path falls back to the search paths.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

// LoadWithFileWithoutValidation is LoadWithFile without the final Validate call.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	return l.load(configFile, false)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// ExplicitlySet reports whether key was given in the config file or through
// its environment variable. Command-line flags are checked by the caller.
func (l *Loader) ExplicitlySet(key string) bool {
	if l.v.InConfig(key) {
		return true
	}
	_, ok := os.LookupEnv(EnvVar(key))
	return ok
}

// EnvVar returns the environment variable name for a configuration key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so that environment variables are picked
// up by Unmarshal.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("mode", defaults.Mode)
	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	l.v.SetDefault("manifest", defaults.Manifest)
	l.v.SetDefault("output_dir", defaults.OutputDir)
	l.v.SetDefault("visualize", defaults.Visualize)
	l.v.SetDefault("benchmark", defaults.Benchmark)
	l.v.SetDefault("precision", defaults.Precision)

	l.v.SetDefault("stages.det", defaults.Stages.Det)
	l.v.SetDefault("stages.rec", defaults.Stages.Rec)
	l.v.SetDefault("stages.cls", defaults.Stages.Cls)
	l.v.SetDefault("stages.use_angle_cls", defaults.Stages.UseAngleCls)
	l.v.SetDefault("stages.layout", defaults.Stages.Layout)
	l.v.SetDefault("stages.table", defaults.Stages.Table)

	l.v.SetDefault("models.det_dir", defaults.Models.DetDir)
	l.v.SetDefault("models.rec_dir", defaults.Models.RecDir)
	l.v.SetDefault("models.cls_dir", defaults.Models.ClsDir)
	l.v.SetDefault("models.layout_dir", defaults.Models.LayoutDir)
	l.v.SetDefault("models.table_dir", defaults.Models.TableDir)

	l.v.SetDefault("engine.backend", defaults.Engine.Backend)
	l.v.SetDefault("engine.endpoint", defaults.Engine.Endpoint)
	l.v.SetDefault("engine.timeout_sec", defaults.Engine.TimeoutSec)
	l.v.SetDefault("engine.language", defaults.Engine.Language)

	l.v.SetDefault("gpu.use_gpu", defaults.GPU.UseGPU)
	l.v.SetDefault("gpu.device", defaults.GPU.Device)
	l.v.SetDefault("gpu.library_path", defaults.GPU.LibraryPath)

	l.v.SetDefault("report.file", defaults.Report.File)
	l.v.SetDefault("report.per_image", defaults.Report.PerImage)

	l.v.SetDefault("metrics.textfile", defaults.Metrics.Textfile)
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile writes a config file containing every default.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWith(viper.New())
	loader.setDefaults()

	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}

	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	paths = append(paths, "/etc/"+ConfigFileName)

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	return paths
}
