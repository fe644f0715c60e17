package pdfengine

import (
	"bytes"
	"fmt"
	"strconv"

	"golang.org/x/text/encoding/charmap"

	"github.com/local/bookletd/internal/document"
)

// fontName is the resource name a document font is registered under. The
// prefix keeps it clear of names already used by source pages.
func fontName(f *document.Font) string {
	return "Bk" + f.Key
}

func xobjectName(e *document.EmbeddedPage) string {
	return "Bk" + e.Key
}

// num formats a coordinate for a content stream.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// literal encodes s as a PDF literal string in WinAnsiEncoding. Runes
// outside Windows-1252 become '?'.
func literal(s string) string {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, r := range s {
		c, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			c = '?'
		}
		switch {
		case c == '(' || c == ')' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&b, "\\%03o", c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(')')
	return b.String()
}

func writeText(buf *bytes.Buffer, font string, t document.TextOp) {
	fmt.Fprintf(buf, "BT /%s %s Tf %s %s Td %s Tj ET\n", font, num(t.Size), num(t.X), num(t.Y), literal(t.Text))
}

func writePlacement(buf *bytes.Buffer, name string, r document.Rect, w, h float64) {
	fmt.Fprintf(buf, "q %s 0 0 %s %s %s cm /%s Do Q\n", num(r.Width/w), num(r.Height/h), num(r.X), num(r.Y), name)
}
