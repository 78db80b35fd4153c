// Package pdfgen implements the streaming PDF generator: a state machine
// that writes a classic-xref PDF one object at a time to an append-only
// sink, finalising the page tree once cover pages (if any) and per-canvas
// image counts are known.
package pdfgen

import (
	"bytes"
	"compress/zlib"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/iiifstream/pdfstream/internal/imagecodec"
	"github.com/iiifstream/pdfstream/internal/ocr"
	"github.com/iiifstream/pdfstream/internal/pdfio"
	"github.com/iiifstream/pdfstream/internal/pdfval"
	"github.com/iiifstream/pdfstream/internal/splice"
)

// State is a generator lifecycle stage. Transitions only move forward.
type State int

const (
	StateNew State = iota
	StateSetup
	StatePages
	StateEnd
)

var (
	ErrWrongState    = errors.New("pdfgen: operation not valid in current state")
	ErrUnknownFormat = errors.New("pdfgen: unsupported image format")
)

// PageSpec describes one content page's shape, known before any image
// bytes are fetched so the page tree can be numbered ahead of rendering.
type PageSpec struct {
	ImageCount int
}

// OutlineSpec is a bookmark entry pointing at a content-page index (not a
// raw object id, since object ids aren't assigned until the first
// RenderPage call).
type OutlineSpec struct {
	Label     string
	PageIndex int // -1 when unresolved
	Children  []OutlineSpec
}

// PlacedImage is one image to paint into a page's content stream.
type PlacedImage struct {
	Format     string // "jpeg" or "png"
	JPEG       *imagecodec.JPEGInfo
	JPEGBytes  []byte
	PNG        *imagecodec.PNGImage
	X, Y, W, H float64 // destination rectangle, canvas pixel space, Y down
}

type pageLayout struct {
	pageObjID    int
	contentObjID int
	imageObjIDs  []int
}

// Generator drives the PDF object stream. It is not safe for concurrent
// use; the conversion pipeline serialises calls per output document.
type Generator struct {
	sink   *pdfio.Sink
	state  State
	nextID int

	xrefOffsets map[int]int64

	withHiddenText bool
	fontIDs        hiddenTextFontIDs

	catalogID   int
	pagesRootID int
	outlineRoot int
	outlineSpec []OutlineSpec

	pageSpecs  []PageSpec
	coverIDs   []int
	layouts    []pageLayout
	firstCall  bool
	pagesTotal int
}

// New constructs a Generator writing to sink. withHiddenText controls
// whether the glyphless CIDFontType2 font is embedded during Setup.
func New(sink *pdfio.Sink, withHiddenText bool) *Generator {
	return &Generator{
		sink:           sink,
		state:          StateNew,
		nextID:         1,
		xrefOffsets:    make(map[int]int64),
		withHiddenText: withHiddenText,
		firstCall:      true,
	}
}

func (g *Generator) allocID() int {
	id := g.nextID
	g.nextID++
	return id
}

// Setup writes the PDF header and reserves object numbers for the catalog,
// pages root, optional hidden-text font, and optional outline tree. Actual
// page-tree and outline content is deferred to the first RenderPage call.
func (g *Generator) Setup(pageSpecs []PageSpec, outline []OutlineSpec) error {
	if g.state != StateNew {
		return ErrWrongState
	}
	if _, err := g.sink.Write([]byte("%PDF-1.5\n%\xe2\xe3\xcf\xd3\n")); err != nil {
		return err
	}

	g.catalogID = g.allocID()
	g.pagesRootID = g.allocID()

	if g.withHiddenText {
		g.fontIDs = hiddenTextFontIDs{
			Type0:     g.allocID(),
			CIDFont:   g.allocID(),
			FontDescr: g.allocID(),
			FontFile:  g.allocID(),
			CIDToGID:  g.allocID(),
			ToUnicode: g.allocID(),
		}
		if err := g.writeHiddenTextFont(g.fontIDs); err != nil {
			return err
		}
	}

	g.outlineSpec = outline
	if len(outline) > 0 {
		g.outlineRoot = g.allocID()
	}

	catalogExtra := ""
	if g.outlineRoot > 0 {
		catalogExtra = fmt.Sprintf(" /Outlines %d 0 R /PageMode /UseOutlines", g.outlineRoot)
	}
	catalog := fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R%s >>", g.pagesRootID, catalogExtra)
	if err := g.writeObject(g.catalogID, catalog); err != nil {
		return err
	}

	g.pageSpecs = pageSpecs
	g.state = StateSetup
	return nil
}

// InsertCoverPages is only valid in SETUP. coverPDF is the raw bytes of an
// external, classic-xref PDF; each of its pages (and everything each page
// transitively references) is cloned under freshly allocated object numbers
// and appended to the sink, with /Parent redirected to this generator's own
// Pages root and /StructParents stripped.
func (g *Generator) InsertCoverPages(coverPDF []byte) error {
	if g.state != StateSetup {
		return ErrWrongState
	}
	result, err := splice.Transplant(coverPDF, g.allocID, pdfval.Ref{Num: g.pagesRootID})
	if err != nil {
		return err
	}
	for _, obj := range result.Objects {
		g.xrefOffsets[obj.ID] = g.sink.BytesWritten()
		if _, err := g.sink.Write(obj.Data); err != nil {
			return err
		}
	}
	g.coverIDs = append(g.coverIDs, result.PageObjectIDs...)
	return nil
}

// RenderPage renders the index'th canvas (0-based, declared order). On the
// first call it finalises the page tree and outline using the now-fixed
// cover-page count.
func (g *Generator) RenderPage(index int, width, height, ppi float64, images []PlacedImage, ocrPage *ocr.Page) error {
	if g.state != StateSetup && g.state != StatePages {
		return ErrWrongState
	}
	if g.firstCall {
		if err := g.finalizePageTree(); err != nil {
			return err
		}
		g.firstCall = false
		g.state = StatePages
	}
	if index < 0 || index >= len(g.layouts) {
		return fmt.Errorf("pdfgen: render index %d out of range", index)
	}

	layout := g.layouts[index]
	unitScale := 72.0 / ppi

	content, imageDicts, err := g.buildPageContent(layout, width, height, unitScale, images, ocrPage)
	if err != nil {
		return err
	}

	compressed, err := deflate(content)
	if err != nil {
		return err
	}
	if err := g.writeStreamObject(layout.contentObjID, "/Filter /FlateDecode", compressed); err != nil {
		return err
	}

	for i, imgObj := range imageDicts {
		if err := g.writeImageObject(layout.imageObjIDs[i], imgObj); err != nil {
			return err
		}
	}

	resources := g.pageResourcesDict(layout, images)
	mediaBox := fmt.Sprintf("[0 0 %s %s]", fmtNum(unitScale*width), fmtNum(unitScale*height))
	pageDict := fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox %s /Contents %d 0 R /Resources %s >>",
		g.pagesRootID, mediaBox, layout.contentObjID, resources)
	return g.writeObject(layout.pageObjID, pageDict)
}

// finalizePageTree numbers every content page's objects, writes the Pages
// root with the complete Kids array, and writes the outline tree with
// destinations resolved to real page object references.
func (g *Generator) finalizePageTree() error {
	g.layouts = make([]pageLayout, len(g.pageSpecs))
	for i, spec := range g.pageSpecs {
		layout := pageLayout{
			pageObjID:    g.allocID(),
			contentObjID: g.allocID(),
		}
		layout.imageObjIDs = make([]int, spec.ImageCount)
		for j := 0; j < spec.ImageCount; j++ {
			layout.imageObjIDs[j] = g.allocID()
		}
		g.layouts[i] = layout
	}

	kids := append([]int{}, g.coverIDs...)
	for _, l := range g.layouts {
		kids = append(kids, l.pageObjID)
	}
	g.pagesTotal = len(kids)

	kidsStr := ""
	for _, k := range kids {
		kidsStr += fmt.Sprintf(" %d 0 R", k)
	}
	pagesDict := fmt.Sprintf("<< /Type /Pages /Kids [%s ] /Count %d >>", kidsStr, len(kids))
	if err := g.writeObject(g.pagesRootID, pagesDict); err != nil {
		return err
	}

	if g.outlineRoot > 0 {
		if err := g.writeOutlineTree(); err != nil {
			return err
		}
	}
	return nil
}

// writeOutlineTree writes the outline root and every descendant,
// allocating object ids lazily (post page-tree finalisation) and resolving
// each item's PageIndex to the cover-adjusted page object id.
func (g *Generator) writeOutlineTree() error {
	childIDs := make([]int, len(g.outlineSpec))
	for i := range g.outlineSpec {
		childIDs[i] = g.allocID()
	}

	if len(g.outlineSpec) == 0 {
		return g.writeObject(g.outlineRoot, "<< /Type /Outlines /Count 0 >>")
	}

	root := fmt.Sprintf("<< /Type /Outlines /First %d 0 R /Last %d 0 R /Count %d >>",
		childIDs[0], childIDs[len(childIDs)-1], len(g.outlineSpec))
	if err := g.writeObject(g.outlineRoot, root); err != nil {
		return err
	}
	return g.writeOutlineSiblings(g.outlineSpec, childIDs, g.outlineRoot)
}

// writeOutlineSiblings writes one level of outline items, whose object ids
// (childIDs) were already allocated, linking /Prev, /Next, and /Parent, and
// recursing into each item's own children (allocated just-in-time).
func (g *Generator) writeOutlineSiblings(items []OutlineSpec, childIDs []int, parentID int) error {
	for i, it := range items {
		var grandChildIDs []int
		if len(it.Children) > 0 {
			grandChildIDs = make([]int, len(it.Children))
			for j := range it.Children {
				grandChildIDs[j] = g.allocID()
			}
		}

		var entry bytes.Buffer
		fmt.Fprintf(&entry, "<< /Title %s", pdfTextString(it.Label))
		if i > 0 {
			fmt.Fprintf(&entry, " /Prev %d 0 R", childIDs[i-1])
		}
		if i < len(items)-1 {
			fmt.Fprintf(&entry, " /Next %d 0 R", childIDs[i+1])
		}
		fmt.Fprintf(&entry, " /Parent %d 0 R", parentID)
		if it.PageIndex >= 0 && it.PageIndex < len(g.layouts) {
			fmt.Fprintf(&entry, " /Dest [%d 0 R /Fit]", g.layouts[it.PageIndex].pageObjID)
		}
		if len(grandChildIDs) > 0 {
			fmt.Fprintf(&entry, " /First %d 0 R /Last %d 0 R /Count %d",
				grandChildIDs[0], grandChildIDs[len(grandChildIDs)-1], len(it.Children))
		}
		entry.WriteString(" >>")
		if err := g.writeObject(childIDs[i], entry.String()); err != nil {
			return err
		}

		if len(grandChildIDs) > 0 {
			if err := g.writeOutlineSiblings(it.Children, grandChildIDs, childIDs[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// End finalises the classic xref table and trailer, then closes the sink.
// If no canvas was ever rendered (zero-page document after filtering, or a
// cover-only document), it finalises the page tree here instead, since
// RenderPage never got the chance to.
func (g *Generator) End() error {
	if g.state != StatePages && g.state != StateSetup {
		return ErrWrongState
	}
	if g.firstCall {
		if err := g.finalizePageTree(); err != nil {
			return err
		}
		g.firstCall = false
	}
	xrefStart := g.sink.BytesWritten()

	maxID := 0
	for id := range g.xrefOffsets {
		if id > maxID {
			maxID = id
		}
	}
	size := maxID + 1

	var b bytes.Buffer
	b.WriteString("xref\n")
	ids := make([]int, 0, len(g.xrefOffsets)+1)
	ids = append(ids, 0)
	for id := range g.xrefOffsets {
		ids = append(ids, id)
	}
	sortInts(ids)

	i := 0
	for i < len(ids) {
		start := ids[i]
		count := 1
		for i+count < len(ids) && ids[i+count] == start+count {
			count++
		}
		fmt.Fprintf(&b, "%d %d\n", start, count)
		for j := 0; j < count; j++ {
			id := start + j
			if id == 0 {
				b.WriteString("0000000000 65535 f \n")
			} else {
				fmt.Fprintf(&b, "%010d 00000 n \n", g.xrefOffsets[id])
			}
		}
		i += count
	}

	id1, id2 := randomID(), randomID()
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root %d 0 R /ID [<%s> <%s>] >>\n", size, g.catalogID, id1, id2)
	fmt.Fprintf(&b, "startxref\n%d\n%%%%EOF\n", xrefStart)

	if _, err := g.sink.Write(b.Bytes()); err != nil {
		return err
	}
	g.state = StateEnd
	return g.sink.Close()
}

func randomID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func (g *Generator) writeObject(id int, dict string) error {
	g.xrefOffsets[id] = g.sink.BytesWritten()
	_, err := fmt.Fprintf(g.sink, "%d 0 obj\n%s\nendobj\n", id, dict)
	return err
}

// writeStreamObject writes an object whose value is a dictionary plus a
// stream. extraDictEntries (may be empty) is merged with an auto-computed
// /Length.
func (g *Generator) writeStreamObject(id int, extraDictEntries string, data []byte) error {
	g.xrefOffsets[id] = g.sink.BytesWritten()
	dict := fmt.Sprintf("<< %s /Length %d >>", extraDictEntries, len(data))
	if _, err := fmt.Fprintf(g.sink, "%d 0 obj\n%s\nstream\n", id, dict); err != nil {
		return err
	}
	if _, err := g.sink.Write(data); err != nil {
		return err
	}
	_, err := g.sink.Write([]byte("\nendstream\nendobj\n"))
	return err
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fmtNum(f float64) string {
	if math.Abs(f-math.Round(f)) < 1e-6 {
		return fmt.Sprintf("%d", int(math.Round(f)))
	}
	s := strings.TrimRight(fmt.Sprintf("%.4f", f), "0")
	return strings.TrimSuffix(s, ".")
}
