package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/ppbatch/internal/bench"
	"github.com/MeKo-Tech/ppbatch/internal/engine"
	"github.com/MeKo-Tech/ppbatch/internal/imageio"
	"github.com/MeKo-Tech/ppbatch/internal/manifest"
	"github.com/MeKo-Tech/ppbatch/internal/report"
	"github.com/MeKo-Tech/ppbatch/internal/result"
	"github.com/MeKo-Tech/ppbatch/internal/visualize"
)

// RunFlat decodes every entry, sends all decoded images to the engine in one
// call and prints, renders and reports the results. Undecodable entries are
// skipped; an engine failure aborts the run. The returned batch holds the
// raw engine results, one entry per decoded image.
func (r *Runner) RunFlat(ctx context.Context, entries []manifest.Entry) (result.Batch, error) {
	r.recorder.Reset()
	r.progress.OnStart(len(entries))
	defer r.progress.OnComplete()

	var decoded []Outcome
	for _, o := range r.decodeAll(entries) {
		if !o.Skipped() {
			decoded = append(decoded, o)
		}
	}

	batch := make(result.Batch, 0, len(decoded))
	if len(decoded) > 0 {
		regions, err := r.recognize(ctx, decoded)
		if err != nil {
			return nil, err
		}
		stages := r.flatStages()
		for i, o := range decoded {
			_, _ = fmt.Fprintf(r.stdout, "predict img: %s\n", o.Entry.Src)
			result.Print(r.stdout, regions[i])
			if r.cfg.Visualize && stages.Detect {
				r.renderRecognitions(o, regions[i])
			}
			batch = append(batch, result.ImageResult{Path: o.Entry.Src, Dst: o.Entry.Dst, Regions: regions[i]})
		}
	}

	r.writeReports(batch)
	if r.cfg.Benchmark {
		r.recorder.Log(r.logger, len(entries))
	}
	return batch, nil
}

func (r *Runner) flatStages() engine.FlatStages {
	return engine.FlatStages{
		Detect:    r.cfg.Stages.Det,
		Recognize: r.cfg.Stages.Rec,
		Classify:  r.cfg.Stages.Cls,
	}
}

func (r *Runner) recognize(ctx context.Context, decoded []Outcome) ([][]result.Recognition, error) {
	images := make([]imageio.Image, len(decoded))
	for i, o := range decoded {
		images[i] = o.Image
	}

	t := r.recorder.Start(bench.StageEngine)
	regions, err := r.engine.Recognize(ctx, images, r.flatStages())
	t.Stop()
	if err != nil {
		return nil, fmt.Errorf("recognize batch: %w", err)
	}
	if len(regions) != len(images) {
		return nil, fmt.Errorf("recognize batch: engine returned %d results for %d images", len(regions), len(images))
	}
	r.logger.Debug("engine finished", "images", len(images), "duration", t.Duration())
	return regions, nil
}

func (r *Runner) renderRecognitions(o Outcome, regions []result.Recognition) {
	path := r.outputPath(filepath.Base(o.Entry.Src))
	t := r.recorder.Start(bench.StageRender)
	err := visualize.Recognitions(o.Image.Img, regions, path)
	t.Stop()
	if err != nil {
		r.logger.Warn("visualization failed", "path", path, "error", err)
		return
	}
	r.logger.Debug("visualized image saved", "path", path)
}

// writeReports writes the combined report and, when enabled, one report per
// image. Failures are logged.
func (r *Runner) writeReports(batch result.Batch) {
	if r.cfg.Report.File == "" && !r.cfg.Report.PerImage {
		return
	}
	t := r.recorder.Start(bench.StageReport)
	defer t.Stop()

	normalized := batch.Normalized()
	if r.cfg.Report.File != "" {
		if err := report.Write(normalized, r.cfg.Report.File); err != nil {
			r.logger.Error("report write failed", "path", r.cfg.Report.File, "error", err)
		} else {
			r.logger.Info("report written", "path", r.cfg.Report.File, "images", len(normalized), "regions", normalized.RegionCount())
		}
	}
	if !r.cfg.Report.PerImage {
		return
	}
	for _, img := range normalized {
		path := r.reportPath(img.Path, img.Dst)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			r.logger.Error("report write failed", "path", path, "error", err)
			continue
		}
		if err := report.Write(result.Batch{img}, path); err != nil {
			r.logger.Error("report write failed", "path", path, "error", err)
			continue
		}
		r.logger.Debug("image report written", "path", path)
	}
}
