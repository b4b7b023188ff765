package pipeline

import (
	"github.com/MeKo-Tech/ppbatch/internal/bench"
	"github.com/MeKo-Tech/ppbatch/internal/imageio"
	"github.com/MeKo-Tech/ppbatch/internal/manifest"
)

// Image outcomes as counted by the benchmark recorder.
const (
	outcomeDecoded = "decoded"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// Outcome is the decode result of one manifest entry: either a decoded
// image, or a skip with its reason.
type Outcome struct {
	Entry manifest.Entry
	Image imageio.Image
	Err   error
}

// Skipped reports whether the entry could not be decoded.
func (o Outcome) Skipped() bool {
	return o.Err != nil
}

// decode reads one entry. Failures are logged and returned as a skipped
// outcome.
func (r *Runner) decode(index int, e manifest.Entry) Outcome {
	t := r.recorder.Start(bench.StageDecode)
	img, err := imageio.Decode(e.Src)
	t.Stop()
	if err != nil {
		r.logger.Error("image read failed", "path", e.Src, "error", err)
		r.recorder.CountImage(outcomeSkipped)
		r.progress.OnError(index+1, err)
		return Outcome{Entry: e, Err: err}
	}
	r.recorder.CountImage(outcomeDecoded)
	b := img.Bounds()
	r.logger.Debug("image decoded", "path", e.Src, "width", b.Dx(), "height", b.Dy())
	return Outcome{Entry: e, Image: img}
}

// decodeAll decodes every entry in manifest order.
func (r *Runner) decodeAll(entries []manifest.Entry) []Outcome {
	out := make([]Outcome, 0, len(entries))
	for i, e := range entries {
		out = append(out, r.decode(i, e))
		r.progress.OnProgress(i+1, len(entries))
	}
	return out
}
