package remote

import (
	"image"
	"math"

	"github.com/MeKo-Tech/ppbatch/internal/result"
	"golang.org/x/text/unicode/norm"
)

// Request types.
const (
	TypeImage     = "image"
	TypeStructure = "structure"
)

// Response statuses.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Request is one OCR request frame.
type Request struct {
	Type     string                 `json:"type"`
	Image    []byte                 `json:"image,omitempty"`
	Filename string                 `json:"filename,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// Response is one server frame. A request yields zero or more processing
// frames followed by exactly one completed or error frame.
type Response[T any] struct {
	Type      string  `json:"type"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress,omitempty"`
	Result    *T      `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
	ErrorType string  `json:"error_type,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
}

// ImageResult is the payload of a completed image request.
type ImageResult struct {
	Width   int            `json:"width"`
	Height  int            `json:"height"`
	Regions []RegionResult `json:"regions"`
}

// RegionResult is one detected text region.
type RegionResult struct {
	Polygon       []struct{ X, Y float64 } `json:"polygon"`
	Box           struct{ X, Y, W, H int } `json:"box"`
	DetConfidence float64                  `json:"det_confidence"`
	Text          string                   `json:"text"`
	RecConfidence float64                  `json:"rec_confidence"`
	Rotated       bool                     `json:"rotated"`
	ClsLabel      *int                     `json:"cls_label,omitempty"`
	ClsScore      *float64                 `json:"cls_score,omitempty"`
}

// StructureResult is the payload of a completed structure request.
type StructureResult struct {
	Regions []StructureRegion `json:"regions"`
}

// StructureRegion is one layout region.
type StructureRegion struct {
	Type       string         `json:"type"`
	Box        [4]float64     `json:"box"`
	Confidence float64        `json:"confidence"`
	HTML       string         `json:"html,omitempty"`
	CellBoxes  [][]float64    `json:"cell_boxes,omitempty"`
	Text       []RegionResult `json:"text_results,omitempty"`
}

func (r RegionResult) quad() []image.Point {
	if len(r.Polygon) == 4 {
		pts := make([]image.Point, 4)
		for i, p := range r.Polygon {
			pts[i] = image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
		}
		return pts
	}
	if r.Box.W <= 0 || r.Box.H <= 0 {
		return nil
	}
	x0, y0 := r.Box.X, r.Box.Y
	x1, y1 := x0+r.Box.W, y0+r.Box.H
	return []image.Point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

// toRecognition maps a wire region onto the result model, marking the
// stages that did not run.
func (r RegionResult) toRecognition(recognize, classify bool) result.Recognition {
	out := result.Recognition{Box: r.quad(), Score: -1, ClsLabel: -1}
	if recognize {
		out.Text = norm.NFC.String(r.Text)
		out.Score = r.RecConfidence
	}
	if classify {
		switch {
		case r.ClsLabel != nil:
			out.ClsLabel = *r.ClsLabel
		case r.Rotated:
			out.ClsLabel = 1
		default:
			out.ClsLabel = 0
		}
		if r.ClsScore != nil {
			out.ClsScore = *r.ClsScore
		}
	}
	return out
}

func (s StructureRegion) toStructure() result.Structure {
	var text []result.Recognition
	for _, r := range s.Text {
		text = append(text, r.toRecognition(true, false))
	}
	return result.NewStructure(s.Type, s.Box, s.Confidence, s.HTML, s.CellBoxes, text)
}
