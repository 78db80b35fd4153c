package ocr

import (
	"encoding/xml"
	"fmt"
	"strings"
)

type altoDoc struct {
	XMLName     xml.Name        `xml:"alto"`
	Description altoDescription `xml:"Description"`
	Styles      altoStyles      `xml:"Styles"`
	Layout      altoLayout      `xml:"Layout"`
}

type altoDescription struct {
	MeasurementUnit string `xml:"MeasurementUnit"`
}

type altoStyles struct {
	TextStyle []altoTextStyle `xml:"TextStyle"`
}

type altoTextStyle struct {
	ID        string `xml:"ID,attr"`
	FontFam   string `xml:"FONTFAMILY,attr"`
	FontSize  string `xml:"FONTSIZE,attr"`
	FontStyle string `xml:"FONTSTYLE,attr"`
}

type altoLayout struct {
	Page altoPage `xml:"Page"`
}

type altoPage struct {
	Width      float64        `xml:"WIDTH,attr"`
	Height     float64        `xml:"HEIGHT,attr"`
	PrintSpace altoPrintSpace `xml:"PrintSpace"`
}

type altoPrintSpace struct {
	TextBlock []altoTextBlock `xml:"TextBlock"`
}

type altoTextBlock struct {
	TextLine []altoTextLine `xml:"TextLine"`
}

type altoTextLine struct {
	HPOS     float64        `xml:"HPOS,attr"`
	VPOS     float64        `xml:"VPOS,attr"`
	Width    float64        `xml:"WIDTH,attr"`
	Height   float64        `xml:"HEIGHT,attr"`
	Elements []altoLineElem `xml:",any"`
}

// altoLineElem captures String/SP/HYP children in document order; Go's
// encoding/xml has no native "ordered union of element kinds" so the raw
// XMLName is kept and inspected after unmarshalling.
type altoLineElem struct {
	XMLName   xml.Name `xml:""`
	Content   string   `xml:"CONTENT,attr"`
	HPOS      float64  `xml:"HPOS,attr"`
	VPOS      float64  `xml:"VPOS,attr"`
	Width     float64  `xml:"WIDTH,attr"`
	Height    float64  `xml:"HEIGHT,attr"`
	StyleRefs string   `xml:"STYLEREFS,attr"`
}

// ParseALTO parses ALTO XML. If the document declares a non-pixel
// MeasurementUnit, X and Y are scaled independently from Page WIDTH/HEIGHT
// versus the reference image size — unlike hOCR, ALTO does not collapse to
// a single scale factor.
func ParseALTO(data []byte, refWidth, refHeight float64) (*Page, error) {
	var doc altoDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadXML, err)
	}
	if len(doc.Layout.Page.PrintSpace.TextBlock) == 0 && doc.Layout.Page.Width == 0 {
		return nil, ErrNoPage
	}

	styles := make(map[string]string, len(doc.Styles.TextStyle))
	for _, ts := range doc.Styles.TextStyle {
		var parts []string
		if ts.FontFam != "" {
			parts = append(parts, "font-family:"+ts.FontFam)
		}
		if ts.FontSize != "" {
			parts = append(parts, "font-size:"+ts.FontSize+"pt")
		}
		if ts.FontStyle != "" {
			parts = append(parts, "font-style:"+ts.FontStyle)
		}
		styles[ts.ID] = strings.Join(parts, ";")
	}

	scaleX, scaleY := 1.0, 1.0
	pw, ph := doc.Layout.Page.Width, doc.Layout.Page.Height
	if doc.Description.MeasurementUnit != "" && doc.Description.MeasurementUnit != "pixel" {
		if pw > 0 && refWidth > 0 {
			scaleX = refWidth / pw
		}
		if ph > 0 && refHeight > 0 {
			scaleY = refHeight / ph
		}
	}

	page := &Page{Width: refWidth, Height: refHeight}
	for _, block := range doc.Layout.Page.PrintSpace.TextBlock {
		for _, tl := range block.TextLine {
			line := buildALTOLine(tl, styles, scaleX, scaleY)
			if len(line.Spans) > 0 {
				page.Lines = append(page.Lines, line)
			}
		}
	}
	if refWidth <= 0 || refHeight <= 0 {
		page.Width, page.Height = maxCoords(page)
	}
	return page, nil
}

func buildALTOLine(tl altoTextLine, styles map[string]string, scaleX, scaleY float64) Line {
	line := Line{
		X: tl.HPOS * scaleX, Y: tl.VPOS * scaleY,
		Width: tl.Width * scaleX, Height: tl.Height * scaleY,
	}
	var spans []Span
	endsWithHyphen := false
	for _, el := range tl.Elements {
		switch el.XMLName.Local {
		case "String":
			if el.Content == "" {
				continue
			}
			spans = append(spans, Span{
				X: el.HPOS * scaleX, Y: el.VPOS * scaleY,
				Width: el.Width * scaleX, Height: el.Height * scaleY,
				Text: el.Content, Style: styles[el.StyleRefs],
			})
			endsWithHyphen = false
		case "SP":
			spans = append(spans, Span{
				X: el.HPOS * scaleX, Y: el.VPOS * scaleY,
				Width: el.Width * scaleX, Height: el.Height * scaleY,
				Text: " ", IsExtra: true,
			})
			endsWithHyphen = false
		case "HYP":
			if n := len(spans); n > 0 {
				spans[n-1].Text += el.Content
			}
			endsWithHyphen = true
		}
	}
	if n := len(spans); n > 0 && !endsWithHyphen {
		spans[n-1].Text += "\n"
	}
	line.Spans = spans
	return line
}

// LooksLikeALTO recognises ALTO by the presence of an "<alto" root tag,
// as distinguished from hOCR per the format-selection rule.
func LooksLikeALTO(data []byte) bool {
	return strings.Contains(string(data[:min(len(data), 2048)]), "<alto")
}
