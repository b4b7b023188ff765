//nolint:lll
package config

// Config is the complete, immutable configuration of one ppbatch run.
// It is assembled from defaults, a config file, PPBATCH_* environment
// variables and command-line flags, then passed around by value.
type Config struct {
	// Global settings
	Mode     string `mapstructure:"mode" yaml:"mode" json:"mode"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Inputs and outputs
	Manifest  string `mapstructure:"manifest" yaml:"manifest" json:"manifest"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	Visualize bool   `mapstructure:"visualize" yaml:"visualize" json:"visualize"`
	Benchmark bool   `mapstructure:"benchmark" yaml:"benchmark" json:"benchmark"`
	Precision string `mapstructure:"precision" yaml:"precision" json:"precision"`

	Stages  StageConfig   `mapstructure:"stages" yaml:"stages" json:"stages"`
	Models  ModelConfig   `mapstructure:"models" yaml:"models" json:"models"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine" json:"engine"`
	GPU     GPUConfig     `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
	Report  ReportConfig  `mapstructure:"report" yaml:"report" json:"report"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// StageConfig toggles the engine stages.
type StageConfig struct {
	Det         bool `mapstructure:"det" yaml:"det" json:"det"`
	Rec         bool `mapstructure:"rec" yaml:"rec" json:"rec"`
	Cls         bool `mapstructure:"cls" yaml:"cls" json:"cls"`
	UseAngleCls bool `mapstructure:"use_angle_cls" yaml:"use_angle_cls" json:"use_angle_cls"`
	Layout      bool `mapstructure:"layout" yaml:"layout" json:"layout"`
	Table       bool `mapstructure:"table" yaml:"table" json:"table"`
}

// ModelConfig holds the model directories handed to the engine.
type ModelConfig struct {
	DetDir    string `mapstructure:"det_dir" yaml:"det_dir" json:"det_dir"`
	RecDir    string `mapstructure:"rec_dir" yaml:"rec_dir" json:"rec_dir"`
	ClsDir    string `mapstructure:"cls_dir" yaml:"cls_dir" json:"cls_dir"`
	LayoutDir string `mapstructure:"layout_dir" yaml:"layout_dir" json:"layout_dir"`
	TableDir  string `mapstructure:"table_dir" yaml:"table_dir" json:"table_dir"`
}

// EngineConfig selects and addresses the recognition engine.
type EngineConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend" json:"backend"`
	Endpoint   string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	Language   string `mapstructure:"language" yaml:"language" json:"language"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	UseGPU      bool   `mapstructure:"use_gpu" yaml:"use_gpu" json:"use_gpu"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	LibraryPath string `mapstructure:"library_path" yaml:"library_path" json:"library_path"`
}

// ReportConfig controls the JSON report outputs of flat mode.
type ReportConfig struct {
	File     string `mapstructure:"file" yaml:"file" json:"file"`
	PerImage bool   `mapstructure:"per_image" yaml:"per_image" json:"per_image"`
}

// MetricsConfig controls benchmark metric export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile" json:"textfile"`
}
