// Package visualize renders engine results on top of the source image.
package visualize

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/MeKo-Tech/ppbatch/internal/imageio"
	"github.com/MeKo-Tech/ppbatch/internal/result"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	// BoxColor outlines detected text regions.
	BoxColor = color.NRGBA{0, 255, 0, 255}
	// CellColor outlines table cells.
	CellColor = color.NRGBA{255, 0, 0, 255}
	// LabelColor is used for recognized text drawn next to a box.
	LabelColor = color.NRGBA{0, 0, 255, 255}
)

const boxThickness = 2

// RenderRecognitions returns a copy of img with every quadrilateral box
// outlined and its recognized text printed above it. Regions without a
// box are skipped.
func RenderRecognitions(img image.Image, regions []result.Recognition) *image.NRGBA {
	dst := imaging.Clone(img)
	for _, r := range regions {
		if len(r.Box) < 2 {
			continue
		}
		pts := shift(r.Box, dst.Bounds().Min.Sub(img.Bounds().Min))
		drawPolygon(dst, pts, BoxColor, boxThickness)
		if r.Recognized() && r.Text != "" {
			drawLabel(dst, topLeft(pts), r.Text)
		}
	}
	return dst
}

// Recognitions renders regions onto img and saves the result to path.
func Recognitions(img image.Image, regions []result.Recognition, path string) error {
	return imageio.Save(RenderRecognitions(img, regions), path)
}

// RenderTableCells crops img to the table region and outlines each cell.
// Cells with eight coordinates are drawn as polygons, cells with four as
// rectangles, both in coordinates relative to the region.
func RenderTableCells(img image.Image, s result.Structure) *image.NRGBA {
	b := img.Bounds()
	region := image.Rect(
		b.Min.X+int(math.Round(s.Box[0])), b.Min.Y+int(math.Round(s.Box[1])),
		b.Min.X+int(math.Round(s.Box[2])), b.Min.Y+int(math.Round(s.Box[3])),
	).Intersect(b)
	var dst *image.NRGBA
	if region.Empty() {
		dst = imaging.Clone(img)
	} else {
		dst = imaging.Crop(img, region)
	}

	table, ok := s.Content.(result.TableContent)
	if !ok {
		return dst
	}
	for _, cell := range table.CellBoxes {
		switch len(cell) {
		case 8:
			pts := make([]image.Point, 4)
			for i := range pts {
				pts[i] = image.Pt(int(math.Round(cell[2*i])), int(math.Round(cell[2*i+1])))
			}
			drawPolygon(dst, pts, CellColor, boxThickness)
		case 4:
			rect := image.Rect(int(math.Round(cell[0])), int(math.Round(cell[1])), int(math.Round(cell[2])), int(math.Round(cell[3])))
			drawRect(dst, rect, CellColor, boxThickness)
		}
	}
	return dst
}

// TableCells renders the cells of a table region and saves the result to path.
func TableCells(img image.Image, s result.Structure, path string) error {
	return imageio.Save(RenderTableCells(img, s), path)
}

func drawLabel(dst draw.Image, at image.Point, text string) {
	face := basicfont.Face7x13
	y := at.Y - 2
	if y-face.Ascent < dst.Bounds().Min.Y {
		y = at.Y + face.Ascent + 2
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(LabelColor),
		Face: face,
		Dot:  fixed.P(at.X, y),
	}
	d.DrawString(text)
}

func topLeft(pts []image.Point) image.Point {
	p := pts[0]
	for _, q := range pts[1:] {
		p.X = min(p.X, q.X)
		p.Y = min(p.Y, q.Y)
	}
	return p
}

func shift(pts []image.Point, d image.Point) []image.Point {
	out := make([]image.Point, len(pts))
	for i, p := range pts {
		out[i] = p.Add(d)
	}
	return out
}
