// Package tesseract is an engine backend built on the Tesseract library
// through gosseract. It is compiled in with -tags=tesseract; without the
// tag the backend is registered but every call returns engine.ErrNoBackend.
//
// Tesseract has no angle classifier and no table recognizer. Classification
// results are left unset and table regions are never produced.
package tesseract

import (
	"image"
	"strings"

	"github.com/MeKo-Tech/ppbatch/internal/result"
	"golang.org/x/text/unicode/norm"
)

// Name is the backend name used in configuration.
const Name = "tesseract"

// box is one page iterator element, independent of the cgo binding.
type box struct {
	rect  image.Rectangle
	text  string
	conf  float64
	block int
}

func quad(r image.Rectangle) []image.Point {
	if r.Empty() {
		return nil
	}
	return []image.Point{
		{r.Min.X, r.Min.Y},
		{r.Max.X, r.Min.Y},
		{r.Max.X, r.Max.Y},
		{r.Min.X, r.Max.Y},
	}
}

// lines converts text line boxes into recognitions. Without recognition the
// text is dropped and the score is unset.
func lines(boxes []box, recognize bool) []result.Recognition {
	out := make([]result.Recognition, 0, len(boxes))
	for _, b := range boxes {
		r := result.Recognition{Box: quad(b.rect), Score: -1, ClsLabel: -1}
		if recognize {
			r.Text = norm.NFC.String(strings.TrimSpace(b.text))
			r.Score = b.conf / 100
		}
		out = append(out, r)
	}
	return out
}

// wholeImage is the recognition of an image read as one line.
func wholeImage(text string, words []box) result.Recognition {
	var sum float64
	for _, w := range words {
		sum += w.conf
	}
	score := 0.0
	if len(words) > 0 {
		score = sum / float64(len(words)) / 100
	}
	return result.Recognition{
		Text:     norm.NFC.String(strings.Join(strings.Fields(text), " ")),
		Score:    score,
		ClsLabel: -1,
	}
}

// blocks groups text lines under their enclosing block and returns one
// text structure per block.
func blocks(blockBoxes, lineBoxes []box, ocr bool) []result.Structure {
	out := make([]result.Structure, 0, len(blockBoxes))
	for _, b := range blockBoxes {
		var text []result.Recognition
		if ocr {
			var members []box
			for _, l := range lineBoxes {
				if l.block == b.block {
					members = append(members, l)
				}
			}
			text = lines(members, true)
		}
		rect := [4]float64{
			float64(b.rect.Min.X), float64(b.rect.Min.Y),
			float64(b.rect.Max.X), float64(b.rect.Max.Y),
		}
		out = append(out, result.NewStructure("text", rect, b.conf/100, "", nil, text))
	}
	return out
}
