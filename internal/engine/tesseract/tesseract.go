//go:build tesseract

package tesseract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/ppbatch/internal/engine"
	"github.com/MeKo-Tech/ppbatch/internal/imageio"
	"github.com/MeKo-Tech/ppbatch/internal/result"
	"github.com/otiai10/gosseract/v2"
)

func init() {
	engine.Register(Name, func(opts engine.Options) (engine.Engine, error) {
		return New(opts), nil
	})
}

// Engine runs Tesseract in process. A new client is created per image.
type Engine struct {
	clientFactory func() *gosseract.Client
	opts          engine.Options
	logger        *slog.Logger
}

// New returns a Tesseract engine. Models.RecDir, when set, is used as the
// tessdata directory.
func New(opts engine.Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.UseGPU {
		logger.Warn("tesseract backend runs on the CPU only, ignoring use_gpu")
	}
	return &Engine{clientFactory: gosseract.NewClient, opts: opts, logger: logger}
}

// Recognize reads text lines from every image.
func (e *Engine) Recognize(ctx context.Context, images []imageio.Image, stages engine.FlatStages) ([][]result.Recognition, error) {
	if stages.Classify {
		e.logger.Warn("tesseract backend has no angle classifier, cls results are left unset")
	}
	out := make([][]result.Recognition, 0, len(images))
	for _, img := range images {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		regions, err := e.recognizeOne(img, stages)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", img.Path, err)
		}
		out = append(out, regions)
	}
	return out, nil
}

func (e *Engine) recognizeOne(img imageio.Image, stages engine.FlatStages) ([]result.Recognition, error) {
	c, err := e.client(img)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Close() }()

	if !stages.Detect {
		if !stages.Recognize {
			return nil, nil
		}
		if err := c.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
			return nil, fmt.Errorf("set page segmentation mode: %w", err)
		}
		text, err := c.Text()
		if err != nil {
			return nil, fmt.Errorf("recognize text: %w", err)
		}
		words, err := boundingBoxes(c, gosseract.RIL_WORD)
		if err != nil {
			return nil, err
		}
		return []result.Recognition{wholeImage(text, words)}, nil
	}

	textLines, err := boundingBoxes(c, gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, err
	}
	return lines(textLines, stages.Recognize), nil
}

// Structure reports every Tesseract block as a text region.
func (e *Engine) Structure(ctx context.Context, img imageio.Image, stages engine.StructureStages) ([]result.Structure, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if stages.Table {
		e.logger.Warn("tesseract backend has no table recognizer", "image", img.Path)
	}
	c, err := e.client(img)
	if err != nil {
		return nil, fmt.Errorf("structure %s: %w", img.Path, err)
	}
	defer func() { _ = c.Close() }()

	blockBoxes, err := boundingBoxes(c, gosseract.RIL_BLOCK)
	if err != nil {
		return nil, fmt.Errorf("structure %s: %w", img.Path, err)
	}
	var lineBoxes []box
	if stages.OCR {
		if lineBoxes, err = boundingBoxes(c, gosseract.RIL_TEXTLINE); err != nil {
			return nil, fmt.Errorf("structure %s: %w", img.Path, err)
		}
	}
	return blocks(blockBoxes, lineBoxes, stages.OCR), nil
}

// Close is a no-op; clients are closed per image.
func (e *Engine) Close() error { return nil }

func (e *Engine) client(img imageio.Image) (*gosseract.Client, error) {
	data, err := imageio.EncodePNG(img.Img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	c := e.clientFactory()
	if dir := e.opts.Models.RecDir; dir != "" {
		if err := c.SetTessdataPrefix(dir); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if e.opts.Language != "" {
		if err := c.SetLanguage(e.opts.Language); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("set language: %w", err)
		}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("set image: %w", err)
	}
	return c, nil
}

func boundingBoxes(c *gosseract.Client, level gosseract.PageIteratorLevel) ([]box, error) {
	bbs, err := c.GetBoundingBoxes(level)
	if err != nil {
		return nil, fmt.Errorf("bounding boxes: %w", err)
	}
	out := make([]box, 0, len(bbs))
	for _, b := range bbs {
		out = append(out, box{rect: b.Box, text: b.Word, conf: b.Confidence, block: b.BlockNum})
	}
	return out, nil
}
