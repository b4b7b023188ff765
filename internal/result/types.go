// Package result holds the per-image data produced by the recognition engine
// and consumed by printing, visualization and report serialization.
package result

import "image"

// TableType is the layout class whose regions carry table markup.
const TableType = "table"

// Recognition is a single detected (and possibly recognized) text region.
type Recognition struct {
	// Box holds four clockwise corner points, or nothing in whole-image mode.
	Box   []image.Point `json:"box,omitempty"`
	Text  string        `json:"text"`
	Score float64       `json:"score"`

	// ClsLabel is -1 when the angle classifier did not run.
	ClsLabel int     `json:"cls_label"`
	ClsScore float64 `json:"cls_score"`
}

// HasQuad reports whether the region carries a full four point box.
func (r Recognition) HasQuad() bool {
	return len(r.Box) == 4
}

// Recognized reports whether recognition produced a score for the region.
func (r Recognition) Recognized() bool {
	return r.Score != -1
}

// Classified reports whether the angle classifier ran for the region.
func (r Recognition) Classified() bool {
	return r.ClsLabel != -1
}

// Structure is a typed document region returned by layout analysis.
type Structure struct {
	Type       string     `json:"type"`
	Box        [4]float64 `json:"box"` // x1, y1, x2, y2
	Confidence float64    `json:"confidence"`
	Content    Content    `json:"-"`
}

// Content is the region payload. It is either TableContent or TextContent.
type Content interface {
	isContent()
}

// TableContent is the payload of a "table" region.
type TableContent struct {
	HTML string
	// CellBoxes holds one polygon per cell as flat x,y coordinate pairs.
	CellBoxes [][]float64
}

// TextContent is the payload of every non-table region.
type TextContent struct {
	Results []Recognition
}

func (TableContent) isContent() {}
func (TextContent) isContent()  {}

// NewStructure builds a region, choosing the content variant from the type tag.
func NewStructure(typ string, box [4]float64, confidence float64, html string, cells [][]float64, text []Recognition) Structure {
	s := Structure{Type: typ, Box: box, Confidence: confidence}
	if typ == TableType {
		s.Content = TableContent{HTML: html, CellBoxes: cells}
	} else {
		s.Content = TextContent{Results: text}
	}
	return s
}

// ImageResult is the flat-mode output for one decoded image.
type ImageResult struct {
	Path    string
	Dst     string
	Regions []Recognition
}

// Batch is the flat-mode output of a run, one entry per decoded image.
type Batch []ImageResult

// StructureImage is the structure-mode output for one decoded image.
type StructureImage struct {
	Path    string
	Regions []Structure
}

// StructureBatch is the structure-mode output of a run.
type StructureBatch []StructureImage

// Normalized returns a copy of the batch with every image normalized.
func (b Batch) Normalized() Batch {
	out := make(Batch, len(b))
	for i, img := range b {
		out[i] = ImageResult{Path: img.Path, Dst: img.Dst, Regions: Normalize(img.Regions)}
	}
	return out
}

// RegionCount returns the total number of regions across all images.
func (b Batch) RegionCount() int {
	n := 0
	for _, img := range b {
		n += len(img.Regions)
	}
	return n
}
