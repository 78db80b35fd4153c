// Package ocr parses hOCR and ALTO OCR markup into a geometric word model:
// lines of spans carrying pixel coordinates scaled to a reference image
// size, ready for the PDF generator to render as an invisible text layer.
package ocr

import "errors"

// ErrNoPage is returned when the source document has no recognised page
// element (no div.ocr_page in hOCR; in ALTO, a Page with neither a WIDTH
// nor any TextBlock). An ALTO document whose root is not <alto> fails with
// ErrBadXML instead.
var ErrNoPage = errors.New("ocr: no recognised page element")

// ErrBadXML wraps failures from the underlying XML/HTML reader.
var ErrBadXML = errors.New("ocr: malformed source document")

// Span is one word, inter-word gap, or hyphenation mark on a line, with
// coordinates already scaled to the canvas's native pixel dimensions.
type Span struct {
	X, Y          float64
	Width, Height float64
	Text          string
	Style         string
	IsExtra       bool // true for a synthesized inter-word whitespace span
}

// Line is one line of text, made up of ordered spans.
type Line struct {
	X, Y          float64
	Width, Height float64
	Spans         []Span
}

// Page is the parsed text model for one canvas: an ordered list of lines.
// hOCR's block/paragraph hierarchy and ALTO's TextBlock hierarchy are both
// flattened to lines, since the generator only needs line-level geometry.
type Page struct {
	Width, Height float64
	Lines         []Line
}

// maxCoords returns the largest right and bottom span edges on the page,
// used as the page size when no reference image size is given.
func maxCoords(p *Page) (maxX, maxY float64) {
	for _, l := range p.Lines {
		for _, s := range l.Spans {
			if x := s.X + s.Width; x > maxX {
				maxX = x
			}
			if y := s.Y + s.Height; y > maxY {
				maxY = y
			}
		}
	}
	return
}
