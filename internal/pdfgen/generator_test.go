package pdfgen

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iiifstream/pdfstream/internal/imagecodec"
	"github.com/iiifstream/pdfstream/internal/ocr"
	"github.com/iiifstream/pdfstream/internal/pdfio"
)

func newTestGenerator(withHiddenText bool) (*Generator, *bytes.Buffer) {
	var buf bytes.Buffer
	sink := pdfio.NewSink(&buf)
	return New(sink, withHiddenText), &buf
}

// inflatedStreams returns the zlib-inflated bodies of every stream in a
// generated PDF, concatenated; streams that are not zlib data are skipped.
// Page content streams are always compressed, so content-operator
// assertions look here rather than at the raw output.
func inflatedStreams(data []byte) string {
	var out bytes.Buffer
	for {
		start := bytes.Index(data, []byte("stream\n"))
		if start < 0 {
			return out.String()
		}
		data = data[start+len("stream\n"):]
		end := bytes.Index(data, []byte("\nendstream"))
		if end < 0 {
			return out.String()
		}
		if r, err := zlib.NewReader(bytes.NewReader(data[:end])); err == nil {
			if b, err := io.ReadAll(r); err == nil {
				out.Write(b)
			}
		}
		data = data[end+len("\nendstream"):]
	}
}

func TestSetupRejectedOutsideNewState(t *testing.T) {
	g, _ := newTestGenerator(false)
	require.NoError(t, g.Setup(nil, nil))
	assert.ErrorIs(t, g.Setup(nil, nil), ErrWrongState)
}

func TestInsertCoverPagesRejectedOutsideSetup(t *testing.T) {
	g, _ := newTestGenerator(false)
	assert.ErrorIs(t, g.InsertCoverPages(nil), ErrWrongState)
}

func TestRenderPageFinalisesKidsOnFirstCall(t *testing.T) {
	g, buf := newTestGenerator(false)
	require.NoError(t, g.Setup([]PageSpec{{ImageCount: 0}, {ImageCount: 0}}, nil))
	require.NoError(t, g.RenderPage(0, 100, 200, 300, nil, nil))
	require.NoError(t, g.RenderPage(1, 100, 200, 300, nil, nil))
	require.NoError(t, g.End())

	out := buf.String()
	m := regexp.MustCompile(`/Type /Pages /Kids \[([^\]]*)\] /Count (\d+)`).FindStringSubmatch(out)
	require.NotNil(t, m)
	refs := regexp.MustCompile(`\d+ 0 R`).FindAllString(m[1], -1)
	assert.Len(t, refs, 2)
	count, err := strconv.Atoi(m[2])
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMediaBoxComputationAt300PPI(t *testing.T) {
	g, buf := newTestGenerator(false)
	require.NoError(t, g.Setup([]PageSpec{{ImageCount: 0}}, nil))
	require.NoError(t, g.RenderPage(0, 290, 400, 300, nil, nil))
	require.NoError(t, g.End())

	assert.Contains(t, buf.String(), "/MediaBox [0 0 69.6 96]")
}

func TestXrefOffsetPointsAtObjectHeader(t *testing.T) {
	g, buf := newTestGenerator(false)
	require.NoError(t, g.Setup([]PageSpec{{ImageCount: 0}}, nil))
	require.NoError(t, g.RenderPage(0, 100, 200, 300, nil, nil))
	require.NoError(t, g.End())

	data := buf.Bytes()
	for id, off := range g.xrefOffsets {
		header := []byte(fmt.Sprintf("%d 0 obj", id))
		assert.True(t, bytes.HasPrefix(data[off:], header), "object %d: expected header at offset %d", id, off)
	}
}

func TestOnePixelCanvasProducesValidOnePagePDF(t *testing.T) {
	g, buf := newTestGenerator(false)
	require.NoError(t, g.Setup([]PageSpec{{ImageCount: 0}}, nil))
	require.NoError(t, g.RenderPage(0, 1, 1, 300, nil, nil))
	require.NoError(t, g.End())
	assert.Contains(t, buf.String(), "/Type /Page ")
}

func TestZeroCanvasesAfterFiltering(t *testing.T) {
	g, buf := newTestGenerator(false)
	require.NoError(t, g.Setup(nil, nil))
	require.NoError(t, g.End())
	assert.Contains(t, buf.String(), "/Kids [ ] /Count 0")
}

func TestJPEGXObjectUsesDCTDecode(t *testing.T) {
	g, buf := newTestGenerator(false)
	require.NoError(t, g.Setup([]PageSpec{{ImageCount: 1}}, nil))

	img := PlacedImage{
		Format:    "jpeg",
		JPEG:      &imagecodec.JPEGInfo{Width: 10, Height: 10, BitsPerComponent: 8, Components: 3},
		JPEGBytes: []byte{0xFF, 0xD8, 0xFF, 0xD9},
		X:         0, Y: 0, W: 10, H: 10,
	}
	require.NoError(t, g.RenderPage(0, 100, 100, 300, []PlacedImage{img}, nil))
	require.NoError(t, g.End())

	out := buf.String()
	assert.Contains(t, out, "/Filter /DCTDecode")
	assert.Contains(t, out, "/ColorSpace /DeviceRGB")
}

func TestPNGXObjectUsesPredictor15(t *testing.T) {
	g, buf := newTestGenerator(false)
	require.NoError(t, g.Setup([]PageSpec{{ImageCount: 1}}, nil))

	img := PlacedImage{
		Format: "png",
		PNG: &imagecodec.PNGImage{
			Width: 4, Height: 4, BitsPerComponent: 8, ColorSpace: "DeviceRGB",
			Stream: []byte{1, 2, 3, 4},
		},
		X: 0, Y: 0, W: 4, H: 4,
	}
	require.NoError(t, g.RenderPage(0, 100, 100, 300, []PlacedImage{img}, nil))
	require.NoError(t, g.End())

	out := buf.String()
	assert.Contains(t, out, "/DecodeParms << /Predictor 15 /Colors 3 /BitsPerComponent 8 /Columns 4 >>")
}

func TestPNGWithAlphaEmitsSMaskObject(t *testing.T) {
	g, buf := newTestGenerator(false)
	require.NoError(t, g.Setup([]PageSpec{{ImageCount: 1}}, nil))

	img := PlacedImage{
		Format: "png",
		PNG: &imagecodec.PNGImage{
			Width: 2, Height: 2, BitsPerComponent: 8, ColorSpace: "DeviceGray",
			Stream:      []byte{9, 9},
			SMaskStream: []byte{5, 5},
		},
		X: 0, Y: 0, W: 2, H: 2,
	}
	require.NoError(t, g.RenderPage(0, 100, 100, 300, []PlacedImage{img}, nil))
	require.NoError(t, g.End())

	assert.Contains(t, buf.String(), "/SMask")
}

func TestHiddenTextBaselinePlacement(t *testing.T) {
	g, buf := newTestGenerator(true)
	require.NoError(t, g.Setup([]PageSpec{{ImageCount: 0}}, nil))

	page := &ocr.Page{
		Lines: []ocr.Line{
			{
				X: 10, Y: 20, Width: 100, Height: 8,
				Spans: []ocr.Span{{X: 10, Y: 20, Width: 40, Height: 8, Text: "hi"}},
			},
		},
	}
	ppi := 300.0
	unitScale := 72.0 / ppi
	canvasH := 400.0
	require.NoError(t, g.RenderPage(0, 300, canvasH, ppi, nil, page))
	require.NoError(t, g.End())

	expectedX := fmtNum(10 * unitScale)
	expectedY := fmtNum((canvasH - 20 - 0.75*8) * unitScale)
	assert.Contains(t, inflatedStreams(buf.Bytes()), fmt.Sprintf("1 0 0 1 %s %s Tm", expectedX, expectedY))
}

func TestHiddenTextSkipsZeroRuneSpan(t *testing.T) {
	g, buf := newTestGenerator(true)
	require.NoError(t, g.Setup([]PageSpec{{ImageCount: 0}}, nil))

	page := &ocr.Page{
		Lines: []ocr.Line{
			{
				X: 0, Y: 0, Width: 10, Height: 8,
				Spans: []ocr.Span{{X: 0, Y: 0, Width: 0, Height: 8, Text: ""}},
			},
		},
	}
	require.NoError(t, g.RenderPage(0, 300, 400, 300, nil, page))
	require.NoError(t, g.End())

	out := inflatedStreams(buf.Bytes())
	assert.Contains(t, out, "BT\n3 Tr")
	assert.NotContains(t, out, "TJ")
}

func TestOutlineDestResolvesToPageObject(t *testing.T) {
	g, buf := newTestGenerator(false)
	outline := []OutlineSpec{{Label: "Chapter 1", PageIndex: 0}}
	require.NoError(t, g.Setup([]PageSpec{{ImageCount: 0}, {ImageCount: 0}}, outline))
	require.NoError(t, g.RenderPage(0, 100, 200, 300, nil, nil))
	require.NoError(t, g.RenderPage(1, 100, 200, 300, nil, nil))
	require.NoError(t, g.End())

	out := buf.String()
	assert.Contains(t, out, "/Title (Chapter 1)")
	pageID := g.layouts[0].pageObjID
	assert.Contains(t, out, fmt.Sprintf("/Dest [%d 0 R /Fit]", pageID))
}

func TestInsertCoverPagesPrependsToKids(t *testing.T) {
	g, buf := newTestGenerator(false)
	require.NoError(t, g.Setup([]PageSpec{{ImageCount: 0}}, nil))

	cover := buildOnePageCoverPDFForTest()
	require.NoError(t, g.InsertCoverPages(cover))
	require.NoError(t, g.RenderPage(0, 100, 200, 300, nil, nil))
	require.NoError(t, g.End())

	m := regexp.MustCompile(`/Type /Pages /Kids \[([^\]]*)\] /Count (\d+)`).FindStringSubmatch(buf.String())
	require.NotNil(t, m)
	count, err := strconv.Atoi(m[2])
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	firstKidID := g.coverIDs[0]
	refs := regexp.MustCompile(`(\d+) 0 R`).FindAllStringSubmatch(m[1], -1)
	require.NotEmpty(t, refs)
	firstRef, err := strconv.Atoi(refs[0][1])
	require.NoError(t, err)
	assert.Equal(t, firstKidID, firstRef)
}

func buildOnePageCoverPDFForTest() []byte {
	var objs []string
	objs = append(objs, "1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	objs = append(objs, "2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	objs = append(objs, "3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 100 200] "+
		"/Contents 4 0 R /StructParents 0 >>\nendobj\n")
	content := "BT /F1 12 Tf (Cover) Tj ET"
	objs = append(objs, fmt.Sprintf("4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(content), content))

	var out []byte
	out = append(out, []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")...)
	offsets := make([]int, len(objs)+1)
	for i, o := range objs {
		offsets[i+1] = len(out)
		out = append(out, []byte(o)...)
	}
	xrefStart := len(out)
	out = append(out, []byte("xref\n")...)
	out = append(out, []byte(fmt.Sprintf("0 %d\n", len(objs)+1))...)
	out = append(out, []byte("0000000000 65535 f \n")...)
	for i := 1; i <= len(objs); i++ {
		out = append(out, []byte(fmt.Sprintf("%010d 00000 n \n", offsets[i]))...)
	}
	out = append(out, []byte("trailer\n")...)
	out = append(out, []byte(fmt.Sprintf("<< /Size %d /Root 1 0 R >>\n", len(objs)+1))...)
	out = append(out, []byte("startxref\n")...)
	out = append(out, []byte(fmt.Sprintf("%d\n", xrefStart))...)
	out = append(out, []byte("%%EOF\n")...)
	return out
}
