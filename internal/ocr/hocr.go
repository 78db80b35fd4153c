package ocr

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var bboxRe = regexp.MustCompile(`bbox\s+(-?\d+)\s+(-?\d+)\s+(-?\d+)\s+(-?\d+)`)

type bbox struct{ x1, y1, x2, y2 float64 }

func (b bbox) w() float64 { return b.x2 - b.x1 }
func (b bbox) h() float64 { return b.y2 - b.y1 }

func parseBBox(title string) (bbox, bool) {
	m := bboxRe.FindStringSubmatch(title)
	if m == nil {
		return bbox{}, false
	}
	x1, _ := strconv.ParseFloat(m[1], 64)
	y1, _ := strconv.ParseFloat(m[2], 64)
	x2, _ := strconv.ParseFloat(m[3], 64)
	y2, _ := strconv.ParseFloat(m[4], 64)
	return bbox{x1, y1, x2, y2}, true
}

func classList(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key == "class" {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, names ...string) bool {
	cl := classList(n)
	for _, name := range names {
		for _, c := range strings.Fields(cl) {
			if c == name {
				return true
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, match func(*html.Node) bool, out *[]*html.Node) {
	if match(n) {
		*out = append(*out, n)
		return // do not descend into nested matches of the same kind
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		findAll(c, match, out)
	}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// ParseHOCR parses hOCR markup, scaling every coordinate uniformly by
// refWidth / pageWidth. onWarn, if non-nil, is called when the X and Y
// scale factors implied by the page bbox differ by more than 0.5 — hOCR
// applies only the X-derived factor regardless.
func ParseHOCR(data []byte, refWidth, refHeight float64, onWarn func(string)) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadXML, err)
	}
	pageNode := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && hasClass(n, "ocr_page")
	})
	if pageNode == nil {
		return nil, ErrNoPage
	}
	title, _ := attr(pageNode, "title")
	pbbox, ok := parseBBox(title)
	if !ok || pbbox.w() <= 0 {
		pbbox = bbox{0, 0, refWidth, refHeight}
	}

	scaleX := refWidth / pbbox.w()
	if pbbox.h() > 0 && onWarn != nil {
		scaleY := refHeight / pbbox.h()
		if math.Abs(scaleX-scaleY) > 0.5 {
			onWarn(fmt.Sprintf("ocr: hOCR X/Y scale mismatch: x=%f y=%f", scaleX, scaleY))
		}
	}
	scale := scaleX

	var lineNodes []*html.Node
	findAll(pageNode, func(n *html.Node) bool {
		return n.Type == html.ElementNode && hasClass(n, "ocr_line", "ocrx_line")
	}, &lineNodes)

	page := &Page{Width: refWidth, Height: refHeight}
	for _, ln := range lineNodes {
		line := buildHOCRLine(ln, scale)
		if len(line.Spans) > 0 {
			page.Lines = append(page.Lines, line)
		}
	}
	if refWidth <= 0 || refHeight <= 0 {
		page.Width, page.Height = maxCoords(page)
	}
	return page, nil
}

func buildHOCRLine(ln *html.Node, scale float64) Line {
	title, _ := attr(ln, "title")
	lb, _ := parseBBox(title)
	line := Line{
		X: lb.x1 * scale, Y: lb.y1 * scale,
		Width: lb.w() * scale, Height: lb.h() * scale,
	}
	var wordNodes []*html.Node
	findAll(ln, func(n *html.Node) bool {
		return n.Type == html.ElementNode && hasClass(n, "ocrx_word")
	}, &wordNodes)

	var spans []Span
	for _, wn := range wordNodes {
		wtitle, _ := attr(wn, "title")
		wb, ok := parseBBox(wtitle)
		if !ok {
			continue
		}
		text := textContent(wn)
		if text == "" {
			continue
		}
		style, _ := attr(wn, "style")
		spans = append(spans, Span{
			X: wb.x1 * scale, Y: wb.y1 * scale,
			Width: wb.w() * scale, Height: wb.h() * scale,
			Text: text, Style: style,
		})
	}

	spans = insertExtraSpans(spans)
	if n := len(spans); n > 0 {
		last := spans[n-1]
		if !strings.HasSuffix(last.Text, "­") {
			spans[n-1].Text += "\n"
		}
	}
	line.Spans = spans
	return line
}

// insertExtraSpans adds a synthesized whitespace span between consecutive
// words, with width backpatched from the gap between them: the final
// width of an "extra" span is only known once the following word's x
// coordinate has been observed.
func insertExtraSpans(words []Span) []Span {
	if len(words) == 0 {
		return nil
	}
	out := make([]Span, 0, len(words)*2)
	for i, w := range words {
		out = append(out, w)
		if i+1 < len(words) {
			next := words[i+1]
			gap := next.X - (w.X + w.Width)
			if gap > 0 {
				out = append(out, Span{
					X: w.X + w.Width, Y: w.Y, Width: gap, Height: w.Height,
					Text: " ", IsExtra: true,
				})
			}
		}
	}
	return out
}
