package pdfgen

import (
	"bytes"
	"fmt"
	"math"

	"github.com/iiifstream/pdfstream/internal/ocr"
	"github.com/iiifstream/pdfstream/internal/pdfval"
)

const hiddenTextCharWidth = 2.0

// imageXObject is the resolved dictionary content for one image placement,
// paired with the raw (already-encoded) stream bytes to emit.
type imageXObject struct {
	dict   string
	stream []byte
	smask  *imageXObject
}

// buildPageContent emits the page's content stream: one q/cm/Do block per
// image (with the IIIF-to-PDF y-flip), followed by hidden-text operators
// when ocrPage is non-nil.
func (g *Generator) buildPageContent(layout pageLayout, canvasW, canvasH, unitScale float64, images []PlacedImage, ocrPage *ocr.Page) ([]byte, []imageXObject, error) {
	var content bytes.Buffer
	xobjs := make([]imageXObject, len(images))

	for i, img := range images {
		xobj, err := buildImageXObject(img)
		if err != nil {
			return nil, nil, err
		}
		xobjs[i] = xobj

		destX := img.X * unitScale
		destY := (canvasH - img.Y - img.H) * unitScale
		destW := img.W * unitScale
		destH := img.H * unitScale

		fmt.Fprintf(&content, "q %s 0 0 %s %s %s cm /Im%d Do Q\n",
			fmtNum(destW), fmtNum(destH), fmtNum(destX), fmtNum(destY), i)
	}

	if ocrPage != nil {
		writeHiddenTextOperators(&content, ocrPage, canvasH, unitScale)
	}

	return content.Bytes(), xobjs, nil
}

// writeHiddenTextOperators appends the invisible-text block: one BT…ET
// span per OCR line, word positions encoded via relative Td plus a
// per-word Tz horizontal scale so the glyphless run spans the true word
// width despite carrying no visible glyphs.
func writeHiddenTextOperators(content *bytes.Buffer, page *ocr.Page, canvasH, unitScale float64) {
	for _, line := range page.Lines {
		fontSize := line.Height * unitScale * 0.75
		if fontSize <= 0 {
			continue
		}
		xPos := line.X * unitScale
		yPos := (canvasH - line.Y - 0.75*line.Height) * unitScale

		fmt.Fprintf(content, "BT\n3 Tr\n/f-0-0 %s Tf\n", fmtNum(fontSize))
		fmt.Fprintf(content, "1 0 0 1 %s %s Tm\n", fmtNum(xPos), fmtNum(yPos))

		prevX, prevY := 0.0, 0.0
		for _, span := range line.Spans {
			if span.IsExtra {
				continue
			}
			dx := span.X*unitScale - prevX
			dy := span.Y*unitScale - prevY
			prevX, prevY = span.X*unitScale, span.Y*unitScale

			wordLen := math.Hypot(span.Width, span.Height) * unitScale
			numChars := float64(len([]rune(span.Text)))
			if numChars == 0 {
				continue
			}
			tz := hiddenTextCharWidth * 100 * wordLen / (fontSize * numChars)

			fmt.Fprintf(content, "%s %s Td\n", fmtNum(dx), fmtNum(dy))
			fmt.Fprintf(content, "%s Tz\n", fmtNum(tz))
			fmt.Fprintf(content, "[%s] TJ\n", hexUTF16BE(span.Text+" "))
		}
		content.WriteString("ET\n")
	}
}

func hexUTF16BE(s string) string {
	return pdfval.Serialize(pdfval.HexString(pdfval.ToUTF16BE(s)), 0)
}

func pdfTextString(s string) string {
	return pdfval.Serialize(pdfval.LiteralString(s), 0)
}

// buildImageXObject resolves a placed image's XObject dictionary and
// stream bytes, including an SMask object when the PNG carries alpha.
func buildImageXObject(img PlacedImage) (imageXObject, error) {
	switch img.Format {
	case "jpeg":
		return buildJPEGXObject(img)
	case "png":
		return buildPNGXObject(img)
	default:
		return imageXObject{}, ErrUnknownFormat
	}
}

func buildJPEGXObject(img PlacedImage) (imageXObject, error) {
	info := img.JPEG
	colorSpace := info.ColorSpaceName()
	dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d "+
		"/BitsPerComponent %d /ColorSpace /%s /Filter /DCTDecode",
		info.Width, info.Height, info.BitsPerComponent, colorSpace)
	return imageXObject{dict: dict, stream: img.JPEGBytes}, nil
}

func buildPNGXObject(img PlacedImage) (imageXObject, error) {
	png := img.PNG
	var smask *imageXObject
	if png.SMaskStream != nil {
		smaskDict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d "+
			"/BitsPerComponent 8 /ColorSpace /DeviceGray /Filter /FlateDecode",
			png.Width, png.Height)
		smask = &imageXObject{dict: smaskDict, stream: png.SMaskStream}
	}

	dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d "+
		"/BitsPerComponent %d /ColorSpace /%s /Filter /FlateDecode "+
		"/DecodeParms << /Predictor 15 /Colors %s /BitsPerComponent %d /Columns %d >>",
		png.Width, png.Height, png.BitsPerComponent, png.ColorSpace,
		pngColorComponents(png.ColorSpace), png.BitsPerComponent, png.Width)
	return imageXObject{dict: dict, stream: png.Stream, smask: smask}, nil
}

func pngColorComponents(colorSpace string) string {
	if colorSpace == "DeviceRGB" {
		return "3"
	}
	return "1"
}

// writeImageObject writes an image XObject to the sink, allocating and
// writing its SMask object first (if the PNG carried an alpha channel) so
// the image dict can reference a concrete object number.
func (g *Generator) writeImageObject(objID int, obj imageXObject) error {
	extra := obj.dict
	if obj.smask != nil {
		smaskObjID := g.allocID()
		extra += fmt.Sprintf(" /SMask %d 0 R", smaskObjID)
		if err := g.writeStreamObject(smaskObjID, obj.smask.dict, obj.smask.stream); err != nil {
			return err
		}
	}
	return g.writeStreamObject(objID, extra, obj.stream)
}

// pageResourcesDict builds the /Resources dictionary for a page: the
// hidden-text font (if enabled) and one XObject entry per placed image.
func (g *Generator) pageResourcesDict(layout pageLayout, images []PlacedImage) string {
	var b bytes.Buffer
	b.WriteString("<<")
	if g.withHiddenText {
		fmt.Fprintf(&b, " /Font << /f-0-0 %d 0 R >>", g.fontIDs.Type0)
	}
	if len(images) > 0 {
		b.WriteString(" /XObject <<")
		for i, id := range layout.imageObjIDs {
			fmt.Fprintf(&b, " /Im%d %d 0 R", i, id)
		}
		b.WriteString(" >>")
	}
	b.WriteString(" >>")
	return b.String()
}
