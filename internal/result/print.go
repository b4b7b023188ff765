package result

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Print writes one line per region: index, box corners, recognized text and
// score, and classifier output for the stages that ran.
func Print(w io.Writer, rs []Recognition) {
	for i, r := range rs {
		var b strings.Builder
		b.WriteString(strconv.Itoa(i))
		b.WriteByte('\t')
		if len(r.Box) > 0 {
			b.WriteString("det boxes: [")
			for n, p := range r.Box {
				if n > 0 {
					b.WriteByte(',')
				}
				fmt.Fprintf(&b, "[%d,%d]", p.X, p.Y)
			}
			b.WriteString("] ")
		}
		if r.Recognized() {
			fmt.Fprintf(&b, "rec text: %s rec score: %s ", r.Text, formatFloat(r.Score))
		}
		if r.Classified() {
			fmt.Fprintf(&b, "cls label: %d cls score: %s", r.ClsLabel, formatFloat(r.ClsScore))
		}
		b.WriteByte('\n')
		_, _ = io.WriteString(w, b.String())
	}
}

// PrintStructure writes the summary line of region idx followed by its
// payload: table markup, or the nested recognition block.
func PrintStructure(w io.Writer, idx int, s Structure) {
	_, _ = fmt.Fprintf(w, "%d\ttype: %s, region: [%s,%s,%s,%s], score: %s, res: ",
		idx, s.Type,
		formatFloat(s.Box[0]), formatFloat(s.Box[1]), formatFloat(s.Box[2]), formatFloat(s.Box[3]),
		formatFloat(s.Confidence))

	switch c := s.Content.(type) {
	case TableContent:
		_, _ = fmt.Fprintln(w, c.HTML)
	case TextContent:
		_, _ = fmt.Fprintf(w, "count of ocr result is : %d\n", len(c.Results))
		if len(c.Results) > 0 {
			_, _ = fmt.Fprintln(w, "********** print ocr result **********")
			Print(w, c.Results)
			_, _ = fmt.Fprintln(w, "********** end print ocr result **********")
		}
	default:
		// Regions built without NewStructure have no payload.
		_, _ = fmt.Fprintln(w, "count of ocr result is : 0")
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
