package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/MeKo-Tech/ppbatch/internal/bench"
	"github.com/MeKo-Tech/ppbatch/internal/engine"
	"github.com/MeKo-Tech/ppbatch/internal/manifest"
	"github.com/MeKo-Tech/ppbatch/internal/result"
	"github.com/MeKo-Tech/ppbatch/internal/visualize"
)

// RunStructured runs layout analysis image by image. Entries that cannot be
// decoded, and images the engine fails on, are logged and skipped.
func (r *Runner) RunStructured(ctx context.Context, entries []manifest.Entry) (result.StructureBatch, error) {
	r.recorder.Reset()
	r.progress.OnStart(len(entries))
	defer r.progress.OnComplete()

	stages := engine.StructureStages{
		Layout: r.cfg.Stages.Layout,
		Table:  r.cfg.Stages.Table,
		OCR:    r.cfg.Stages.Det && r.cfg.Stages.Rec,
	}

	batch := make(result.StructureBatch, 0, len(entries))
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		_, _ = fmt.Fprintf(r.stdout, "predict img: %s\n", e.Src)

		o := r.decode(i, e)
		if o.Skipped() {
			r.progress.OnProgress(i+1, len(entries))
			continue
		}

		t := r.recorder.Start(bench.StageEngine)
		regions, err := r.engine.Structure(ctx, o.Image, stages)
		t.Stop()
		if err != nil {
			r.logger.Error("structure analysis failed", "path", e.Src, "error", err)
			r.recorder.CountImage(outcomeFailed)
			r.progress.OnError(i+1, err)
			r.progress.OnProgress(i+1, len(entries))
			continue
		}

		for j, s := range regions {
			result.PrintStructure(r.stdout, j, s)
			if r.cfg.Visualize {
				r.renderTableCells(o, j, s)
			}
		}
		batch = append(batch, result.StructureImage{Path: e.Src, Regions: regions})
		r.progress.OnProgress(i+1, len(entries))
	}

	if r.cfg.Benchmark {
		r.recorder.Log(r.logger, len(entries))
	}
	return batch, nil
}

// renderTableCells saves the cell overlay of table region j to
// <output>/<j>_<base name>.
func (r *Runner) renderTableCells(o Outcome, j int, s result.Structure) {
	table, ok := s.Content.(result.TableContent)
	if !ok || len(table.CellBoxes) == 0 {
		return
	}
	path := r.outputPath(fmt.Sprintf("%d_%s", j, filepath.Base(o.Entry.Src)))
	t := r.recorder.Start(bench.StageRender)
	err := visualize.TableCells(o.Image.Img, s, path)
	t.Stop()
	if err != nil {
		r.logger.Warn("visualization failed", "path", path, "error", err)
	}
}
