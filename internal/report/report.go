// Package report renders flat-mode results into the fixed JSON report schema.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/MeKo-Tech/ppbatch/internal/result"
)

// WriteError is returned when the report destination cannot be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("report %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Write serializes the batch to destination, creating or truncating the file.
// The batch is written as given; callers normalize it first.
func Write(batch result.Batch, destination string) error {
	f, err := os.Create(destination) //nolint:gosec // G304: destination comes from the run configuration
	if err != nil {
		return &WriteError{Path: destination, Err: err}
	}
	if err := Encode(f, batch); err != nil {
		_ = f.Close()
		return &WriteError{Path: destination, Err: err}
	}
	if err := f.Close(); err != nil {
		return &WriteError{Path: destination, Err: err}
	}
	return nil
}

// Encode writes the report for batch to w. Entries from all images are
// concatenated in image order, then region order.
func Encode(w io.Writer, batch result.Batch) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("{\n")
	bw.WriteString("   \"code\" : \"0\",\n")
	bw.WriteString("   \"result\" : [\n")
	first := true
	for _, img := range batch {
		for _, r := range img.Regions {
			if !first {
				bw.WriteString(",\n")
			}
			first = false
			bw.WriteString("      ")
			bw.WriteString(entry(r))
		}
	}
	if !first {
		bw.WriteString("\n")
	}
	bw.WriteString("   ]\n")
	bw.WriteString("}\n")
	return bw.Flush()
}

func entry(r result.Recognition) string {
	var b strings.Builder
	b.WriteString("{ ")
	for i := range 4 {
		fmt.Fprintf(&b, "\"P%d\":\"%s\",", i+1, corner(r, i))
	}
	b.WriteString("\"score\":")
	b.WriteString(strconv.FormatFloat(r.Score, 'f', 10, 64))
	b.WriteString(",\"text\":\"")
	b.WriteString(escape(r.Text))
	b.WriteString("\" }")
	return b.String()
}

func corner(r result.Recognition, i int) string {
	if !r.HasQuad() {
		return ""
	}
	p := r.Box[i]
	return strconv.Itoa(p.X) + "," + strconv.Itoa(p.Y)
}

// escape keeps the document valid JSON for characters that survive
// sanitization. Double quotes are already gone at this point. Invalid UTF-8
// bytes become U+FFFD.
func escape(s string) string {
	if utf8.ValidString(s) && !strings.ContainsFunc(s, func(r rune) bool { return r == '\\' || r < 0x20 }) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\r':
			b.WriteString(`\r`)
		case r < 0x20:
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
