package pdfengine

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/local/bookletd/internal/document"
)

// minimalPage is a page written without going through pdfcpu: a media box
// and text drawn with standard fonts.
type minimalPage struct {
	size  document.Size
	texts []document.TextOp
}

// writeMinimal serialises pages as a classic xref-table PDF. Fonts are
// inlined into each page's resources.
func writeMinimal(pages []minimalPage) []byte {
	var buf bytes.Buffer
	var offsets []int
	begin := func() int {
		offsets = append(offsets, buf.Len())
		n := len(offsets)
		fmt.Fprintf(&buf, "%d 0 obj\n", n)
		return n
	}
	end := func() { buf.WriteString("endobj\n") }

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	begin()
	buf.WriteString("<</Type/Catalog/Pages 2 0 R>>\n")
	end()

	// page i is object 3+2i, its content stream 4+2i
	begin()
	buf.WriteString("<</Type/Pages/Kids[")
	for i := range pages {
		if i > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "%d 0 R", 3+2*i)
	}
	fmt.Fprintf(&buf, "]/Count %d>>\n", len(pages))
	end()

	for _, p := range pages {
		n := begin()
		fmt.Fprintf(&buf, "<</Type/Page/Parent 2 0 R/MediaBox[0 0 %s %s]/Resources<<%s>>/Contents %d 0 R>>\n",
			num(p.size.Width), num(p.size.Height), fontResources(p.texts), n+1)
		end()

		var content bytes.Buffer
		for _, t := range p.texts {
			writeText(&content, fontName(t.Font), t)
		}
		begin()
		fmt.Fprintf(&buf, "<</Length %d>>\nstream\n", content.Len())
		buf.Write(content.Bytes())
		buf.WriteString("\nendstream\n")
		end()
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	fmt.Fprintf(&buf, "%010d %05d f \r\n", 0, 65535)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d %05d n \r\n", off, 0)
	}
	fmt.Fprintf(&buf, "trailer\n<</Size %d/Root 1 0 R>>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func fontResources(texts []document.TextOp) string {
	fonts := map[string]document.StandardFont{}
	for _, t := range texts {
		fonts[fontName(t.Font)] = t.Font.Name
	}
	if len(fonts) == 0 {
		return ""
	}
	names := make([]string, 0, len(fonts))
	for n := range fonts {
		names = append(names, n)
	}
	sort.Strings(names)

	var b bytes.Buffer
	b.WriteString("/Font<<")
	for _, n := range names {
		fmt.Fprintf(&b, "/%s<</Type/Font/Subtype/Type1/BaseFont/%s/Encoding/WinAnsiEncoding>>", n, fonts[n])
	}
	b.WriteString(">>")
	return b.String()
}

// Sample returns an n-page PDF of the given size with a large page number
// on every page. It backs the CLI's -sample flag and the engine tests.
func Sample(n int, size document.Size) []byte {
	font := &document.Font{Name: document.Helvetica, Key: "F1"}
	pages := make([]minimalPage, n)
	for i := range pages {
		pages[i] = minimalPage{
			size: size,
			texts: []document.TextOp{
				{Text: fmt.Sprintf("Page %d", i+1), X: size.Width/2 - 80, Y: size.Height / 2, Font: font, Size: 48},
				{Text: fmt.Sprintf("%d / %d", i+1, n), X: 40, Y: 40, Font: font, Size: 12},
			},
		}
	}
	return writeMinimal(pages)
}
