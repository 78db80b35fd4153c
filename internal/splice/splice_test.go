package splice

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iiifstream/pdfstream/internal/pdfparse"
	"github.com/iiifstream/pdfstream/internal/pdfval"
)

// buildTwoPageCoverPDF writes a minimal classic-xref PDF with two pages
// sharing one font resource, each page carrying /StructParents, mirroring
// a tagged PDF used as a front cover.
func buildTwoPageCoverPDF() []byte {
	var objs []string
	objs = append(objs, "1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	objs = append(objs, "2 0 obj\n<< /Type /Pages /Kids [3 0 R 5 0 R] /Count 2 >>\nendobj\n")
	objs = append(objs, "3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 100 200] "+
		"/Contents 4 0 R /Resources << /Font << /F1 6 0 R >> >> /StructParents 0 >>\nendobj\n")
	content1 := "BT /F1 12 Tf (Cover) Tj ET"
	objs = append(objs, fmt.Sprintf("4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(content1), content1))
	objs = append(objs, "5 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 100 200] "+
		"/Contents 7 0 R /Resources << /Font << /F1 6 0 R >> >> /StructParents 1 >>\nendobj\n")
	objs = append(objs, "6 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")
	content2 := "BT /F1 12 Tf (Back) Tj ET"
	objs = append(objs, fmt.Sprintf("7 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(content2), content2))

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

func TestTransplantTwoPageCover(t *testing.T) {
	data := buildTwoPageCoverPDF()

	nextID := 100
	allocID := func() int {
		id := nextID
		nextID++
		return id
	}

	result, err := Transplant(data, allocID, pdfval.Ref{Num: 9})
	require.NoError(t, err)
	require.Len(t, result.PageObjectIDs, 2)
	assert.NotEqual(t, result.PageObjectIDs[0], result.PageObjectIDs[1])

	byID := make(map[int][]byte)
	for _, obj := range result.Objects {
		byID[obj.ID] = obj.Data
	}

	for _, pageID := range result.PageObjectIDs {
		raw := byID[pageID]
		require.NotNil(t, raw)
		assert.Contains(t, string(raw), "/Parent 9 0 R")
		assert.NotContains(t, string(raw), "StructParents")
	}

	// The shared font object must be cloned exactly once and referenced,
	// under its new number, by both pages.
	var fontID int
	for id, raw := range byID {
		if bytes.Contains(raw, []byte("Helvetica")) {
			fontID = id
		}
	}
	require.NotZero(t, fontID)
	var fontRefCount int
	for _, pageID := range result.PageObjectIDs {
		fontRefCount += strings.Count(string(byID[pageID]), fmt.Sprintf("%d 0 R", fontID))
	}
	assert.Equal(t, 2, fontRefCount)

	for id := range byID {
		assert.True(t, id >= 100, "all cloned objects must carry freshly allocated ids")
	}
}

func TestTransplantPreservesContentStreamBytes(t *testing.T) {
	data := buildTwoPageCoverPDF()
	nextID := 1
	allocID := func() int { id := nextID; nextID++; return id }

	result, err := Transplant(data, allocID, pdfval.Ref{Num: 1})
	require.NoError(t, err)

	var sawCover, sawBack bool
	for _, obj := range result.Objects {
		if bytes.Contains(obj.Data, []byte("(Cover) Tj")) {
			sawCover = true
		}
		if bytes.Contains(obj.Data, []byte("(Back) Tj")) {
			sawBack = true
		}
	}
	assert.True(t, sawCover)
	assert.True(t, sawBack)
}

func TestTransplantRoundTripsThroughPdfparse(t *testing.T) {
	data := buildTwoPageCoverPDF()
	p, err := pdfparse.Open(data)
	require.NoError(t, err)
	pages, err := p.PageRefs()
	require.NoError(t, err)
	require.Len(t, pages, 2)
}
