package cmd

import (
	"log/slog"

	"github.com/MeKo-Tech/ppbatch/internal/accel"
	"github.com/MeKo-Tech/ppbatch/internal/batch"
	"github.com/MeKo-Tech/ppbatch/internal/config"
	"github.com/MeKo-Tech/ppbatch/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// runFlags maps command-line flags onto configuration keys.
var runFlags = map[string]string{
	"type":             "mode",
	"det":              "stages.det",
	"rec":              "stages.rec",
	"cls":              "stages.cls",
	"use-angle-cls":    "stages.use_angle_cls",
	"layout":           "stages.layout",
	"table":            "stages.table",
	"det-model-dir":    "models.det_dir",
	"rec-model-dir":    "models.rec_dir",
	"cls-model-dir":    "models.cls_dir",
	"layout-model-dir": "models.layout_dir",
	"table-model-dir":  "models.table_dir",
	"image-dir":        "manifest",
	"output":           "output_dir",
	"visualize":        "visualize",
	"benchmark":        "benchmark",
	"precision":        "precision",
	"use-gpu":          "gpu.use_gpu",
	"gpu-id":           "gpu.device",
	"onnx-lib":         "gpu.library_path",
	"report":           "report.file",
	"per-image-report": "report.per_image",
	"engine":           "engine.backend",
	"engine-endpoint":  "engine.endpoint",
	"engine-timeout":   "engine.timeout_sec",
	"lang":             "engine.language",
	"metrics-textfile": "metrics.textfile",
}

func newRunCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every image of a manifest",
		Long: `Process every image listed in the manifest given by --image-dir.

The manifest is a JSON (or YAML, by extension) document of the form
  {"files": [{"src": "/path/a.jpg", "dst": "/path/a.json"}, ...]}

In ocr mode all images are sent to the engine at once; results are printed,
rendered into --output when --visualize is on, and written to --report.
In structure mode every image goes through layout analysis on its own.

Images that cannot be read are logged and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd)
		},
	}

	d := config.DefaultConfig()
	f := cmd.Flags()
	f.String("type", d.Mode, "run mode: ocr or structure")
	f.Bool("det", d.Stages.Det, "run text detection")
	f.Bool("rec", d.Stages.Rec, "run text recognition")
	f.Bool("cls", d.Stages.Cls, "run angle classification")
	f.Bool("use-angle-cls", d.Stages.UseAngleCls, "use the angle classifier model")
	f.Bool("layout", d.Stages.Layout, "run layout analysis")
	f.Bool("table", d.Stages.Table, "run table recognition")
	f.String("det-model-dir", d.Models.DetDir, "detection model directory")
	f.String("rec-model-dir", d.Models.RecDir, "recognition model directory")
	f.String("cls-model-dir", d.Models.ClsDir, "angle classifier model directory")
	f.String("layout-model-dir", d.Models.LayoutDir, "layout model directory")
	f.String("table-model-dir", d.Models.TableDir, "table model directory")
	f.String("image-dir", d.Manifest, "path to the manifest listing the input images")
	f.String("output", d.OutputDir, "directory for visualized images and per-image reports")
	f.Bool("visualize", d.Visualize, "render results onto the images")
	f.Bool("benchmark", d.Benchmark, "log per-stage timings")
	f.String("precision", d.Precision, "inference precision: fp32, fp16 or int8")
	f.Bool("use-gpu", d.GPU.UseGPU, "use the GPU; probed and turned off when unavailable unless set explicitly")
	f.Int("gpu-id", d.GPU.Device, "GPU device id")
	f.String("onnx-lib", d.GPU.LibraryPath, "ONNX Runtime shared library used by the GPU probe")
	f.String("report", d.Report.File, "write the combined JSON report to this file")
	f.Bool("per-image-report", d.Report.PerImage, "write one JSON report per image to its manifest dst")
	f.String("engine", d.Engine.Backend, "engine backend: remote or tesseract")
	f.String("engine-endpoint", d.Engine.Endpoint, "websocket endpoint of the remote engine")
	f.Int("engine-timeout", d.Engine.TimeoutSec, "engine request timeout in seconds")
	f.String("lang", d.Engine.Language, "recognition language passed to the engine")
	f.String("metrics-textfile", d.Metrics.Textfile, "export stage metrics to this node exporter textfile")
	f.Bool("progress", false, "log progress while processing")
	f.Int("progress-interval", 10, "log progress every N images")

	bindFlags(a.loader.GetViper(), f, runFlags)
	return cmd
}

// bindFlags binds each flag of fs named in keys to its configuration key.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		if pf := fs.Lookup(flag); pf != nil {
			_ = v.BindPFlag(key, pf)
		}
	}
}

func (a *app) run(cmd *cobra.Command) error {
	cfg := *a.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}

	cfg.GPU.UseGPU = a.decideGPU(cmd, cfg)

	deps := batch.Deps{Stdout: cmd.OutOrStdout(), Logger: a.logger}
	if p, _ := cmd.Flags().GetBool("progress"); p {
		interval, _ := cmd.Flags().GetInt("progress-interval")
		deps.Progress = pipeline.NewLogProgressCallback(a.logger, slog.LevelInfo).WithInterval(interval)
	}
	_, err := batch.Run(cmd.Context(), cfg, deps)
	return err
}

// decideGPU resolves the GPU preference once, before any image is read.
func (a *app) decideGPU(cmd *cobra.Command, cfg config.Config) bool {
	explicit := cmd.Flags().Changed("use-gpu") || a.loader.ExplicitlySet("gpu.use_gpu")
	return accel.Decide(cmd.Context(), explicit, cfg.GPU.UseGPU, a.newCounter(cfg, a.logger), a.logger)
}
