// Package pdfparse implements the low-level PDF parser used only for
// cover-page splicing: given the bytes of a cover-page PDF, it locates the
// cross-reference table, resolves objects by number, and exposes the page
// tree in document order. Only classic xref tables are read; xref streams
// are not decoded, so a PDF whose cross-reference data is only in an xref
// stream cannot be resolved.
package pdfparse

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/iiifstream/pdfstream/internal/pdfval"
)

// XRefEntry is one row of the cross-reference table: a byte offset and
// generation for an in-use object.
type XRefEntry struct {
	Offset     int64
	Generation int
}

// Parser holds a fully loaded cover-page PDF and its resolved xref.
type Parser struct {
	data    []byte
	Xref    map[int]XRefEntry
	Trailer *pdfval.Dict
}

// Open parses the %%EOF / startxref / xref chain of data and returns a
// Parser ready to resolve objects by number.
func Open(data []byte) (*Parser, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("pdfparse: not a PDF (bad header)")
	}
	p := &Parser{data: data, Xref: map[int]XRefEntry{}}
	if err := p.buildXRef(); err != nil {
		return nil, fmt.Errorf("pdfparse: %w", err)
	}
	if p.Trailer == nil {
		return nil, fmt.Errorf("pdfparse: no trailer found")
	}
	return p, nil
}

func (p *Parser) buildXRef() error {
	const tailScan = 2048
	start := len(p.data) - tailScan
	if start < 0 {
		start = 0
	}
	tail := p.data[start:]
	pos := bytes.LastIndex(tail, []byte("startxref"))
	if pos == -1 {
		return p.scanAllXRefSections()
	}
	lineStart := pos + len("startxref")
	rest := tail[lineStart:]
	rest = bytes.TrimLeft(rest, "\r\n \t")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return p.scanAllXRefSections()
	}
	off, err := strconv.Atoi(string(rest[:end]))
	if err != nil || off < 0 || off >= len(p.data) {
		return p.scanAllXRefSections()
	}
	if err := p.followXRefChain(off, map[int]bool{}); err != nil {
		return p.scanAllXRefSections()
	}
	return nil
}

// followXRefChain parses the classic xref section at off and recurses into
// /Prev, merging trailers so the first-seen (most recent) entry for any
// given object number wins.
func (p *Parser) followXRefChain(off int, visited map[int]bool) error {
	if visited[off] {
		return nil
	}
	visited[off] = true
	if !bytes.HasPrefix(bytes.TrimLeft(p.data[off:], " \r\n\t"), []byte("xref")) {
		return fmt.Errorf("no classic xref at offset %d", off)
	}
	trailer, prev, err := p.parseClassicSection(off)
	if err != nil {
		return err
	}
	if p.Trailer == nil {
		p.Trailer = trailer
	} else if trailer != nil {
		for k, v := range trailer.Entries {
			if _, ok := p.Trailer.Entries[k]; !ok {
				p.Trailer.Set(k, v)
			}
		}
	}
	if prev >= 0 && prev < len(p.data) {
		return p.followXRefChain(prev, visited)
	}
	return nil
}

func (p *Parser) parseClassicSection(off int) (*pdfval.Dict, int, error) {
	data := p.data
	i := off + len("xref")
	for {
		i = skipWS(data, i)
		if bytes.HasPrefix(data[i:], []byte("trailer")) {
			i += len("trailer")
			i = skipWS(data, i)
			v, n, err := parseValue(data, i)
			if err != nil {
				return nil, -1, err
			}
			i += n
			dict, _ := v.(*pdfval.Dict)
			prev := -1
			if dict != nil {
				if pv, ok := dict.Get("Prev"); ok {
					if iv, ok := pv.(pdfval.Int); ok {
						prev = int(iv)
					}
				}
			}
			return dict, prev, nil
		}
		// subsection header: "first count"
		firstStr, n1 := readInt(data, i)
		if n1 == 0 {
			return nil, -1, fmt.Errorf("malformed xref subsection at %d", i)
		}
		i += n1
		i = skipWS(data, i)
		countStr, n2 := readInt(data, i)
		if n2 == 0 {
			return nil, -1, fmt.Errorf("malformed xref subsection count at %d", i)
		}
		i += n2
		first := mustAtoi(firstStr)
		count := mustAtoi(countStr)
		i = skipWS(data, i)
		for k := 0; k < count; k++ {
			if i+18 > len(data) {
				return nil, -1, fmt.Errorf("truncated xref entry")
			}
			entry := data[i : i+20]
			offStr := strings.TrimSpace(string(entry[0:10]))
			genStr := strings.TrimSpace(string(entry[11:16]))
			kind := entry[17]
			if kind == 'n' {
				offVal, _ := strconv.ParseInt(offStr, 10, 64)
				gen, _ := strconv.Atoi(genStr)
				num := first + k
				if _, exists := p.Xref[num]; !exists {
					p.Xref[num] = XRefEntry{Offset: offVal, Generation: gen}
				}
			}
			i += 20
		}
	}
}

// scanAllXRefSections is the fallback used when startxref is missing or
// unreliable: every "xref\n" occurrence in the file is parsed independently.
func (p *Parser) scanAllXRefSections() error {
	idx := 0
	found := false
	for {
		pos := bytes.Index(p.data[idx:], []byte("xref"))
		if pos == -1 {
			break
		}
		abs := idx + pos
		if _, _, err := p.parseClassicSection(abs); err == nil {
			found = true
		}
		idx = abs + 4
	}
	if p.Trailer == nil {
		// last resort: synthesize a trailer from any object carrying /Type /Catalog
		if root := p.findCatalogByScan(); root > 0 {
			d := &pdfval.Dict{}
			d.Set("Root", pdfval.Ref{Num: root})
			p.Trailer = d
			found = true
		}
	}
	if !found {
		return fmt.Errorf("no xref section found")
	}
	return nil
}

var objHeaderRe = regexp.MustCompile(`(\d+)\s+(\d+)\s+obj`)

func (p *Parser) findCatalogByScan() int {
	for _, loc := range objHeaderRe.FindAllSubmatchIndex(p.data, -1) {
		numStr := string(p.data[loc[2]:loc[3]])
		end := bytes.Index(p.data[loc[1]:], []byte("endobj"))
		if end == -1 {
			continue
		}
		body := p.data[loc[1] : loc[1]+end]
		if bytes.Contains(body, []byte("/Type /Catalog")) || bytes.Contains(body, []byte("/Type/Catalog")) {
			if num, err := strconv.Atoi(numStr); err == nil {
				return num
			}
		}
	}
	return -1
}

// Object resolves object number num to its value and, if it is a stream,
// the raw (still-encoded) stream bytes.
func (p *Parser) Object(num int) (pdfval.Value, []byte, error) {
	entry, ok := p.Xref[num]
	if !ok {
		return nil, nil, fmt.Errorf("pdfparse: object %d not in xref", num)
	}
	off := int(entry.Offset)
	if off < 0 || off >= len(p.data) {
		return nil, nil, fmt.Errorf("pdfparse: object %d offset out of range", num)
	}
	i := off
	_, n := readInt(p.data, i)
	i += n
	i = skipWS(p.data, i)
	_, n = readInt(p.data, i)
	i += n
	i = skipWS(p.data, i)
	if !bytes.HasPrefix(p.data[i:], []byte("obj")) {
		return nil, nil, fmt.Errorf("pdfparse: object %d header not found at offset %d", num, off)
	}
	i += 3
	i = skipWS(p.data, i)
	v, consumed, err := parseValue(p.data, i)
	if err != nil {
		return nil, nil, fmt.Errorf("pdfparse: object %d: %w", num, err)
	}
	i += consumed
	i = skipWS(p.data, i)
	if !bytes.HasPrefix(p.data[i:], []byte("stream")) {
		return v, nil, nil
	}
	i += len("stream")
	if i < len(p.data) && p.data[i] == '\r' {
		i++
	}
	if i < len(p.data) && p.data[i] == '\n' {
		i++
	}
	dict, _ := v.(*pdfval.Dict)
	length := 0
	if dict != nil {
		if lv, ok := dict.Get("Length"); ok {
			if iv, ok := lv.(pdfval.Int); ok {
				length = int(iv)
			}
		}
	}
	if length <= 0 || i+length > len(p.data) {
		end := bytes.Index(p.data[i:], []byte("endstream"))
		if end == -1 {
			return v, nil, fmt.Errorf("pdfparse: object %d: unterminated stream", num)
		}
		length = end
		for length > 0 && (p.data[i+length-1] == '\n' || p.data[i+length-1] == '\r') {
			length--
		}
	}
	stream := p.data[i : i+length]
	return v, stream, nil
}

// PageRefs walks /Root -> /Pages -> /Kids recursively and returns the page
// object numbers in document (in-order) traversal order.
func (p *Parser) PageRefs() ([]int, error) {
	rootV, ok := p.Trailer.Get("Root")
	if !ok {
		return nil, fmt.Errorf("pdfparse: trailer has no /Root")
	}
	rootRef, ok := rootV.(pdfval.Ref)
	if !ok {
		return nil, fmt.Errorf("pdfparse: /Root is not a reference")
	}
	catV, _, err := p.Object(rootRef.Num)
	if err != nil {
		return nil, err
	}
	cat, ok := catV.(*pdfval.Dict)
	if !ok {
		return nil, fmt.Errorf("pdfparse: catalog object is not a dictionary")
	}
	pagesV, ok := cat.Get("Pages")
	if !ok {
		return nil, fmt.Errorf("pdfparse: catalog has no /Pages")
	}
	pagesRef, ok := pagesV.(pdfval.Ref)
	if !ok {
		return nil, fmt.Errorf("pdfparse: /Pages is not a reference")
	}
	var pages []int
	visited := map[int]bool{}
	if err := p.walkPageTree(pagesRef.Num, visited, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func (p *Parser) walkPageTree(num int, visited map[int]bool, out *[]int) error {
	if visited[num] {
		return nil
	}
	visited[num] = true
	v, _, err := p.Object(num)
	if err != nil {
		return err
	}
	d, ok := v.(*pdfval.Dict)
	if !ok {
		return fmt.Errorf("pdfparse: page tree node %d is not a dictionary", num)
	}
	typeV, _ := d.Get("Type")
	if name, ok := typeV.(pdfval.Name); ok && name == "Page" {
		*out = append(*out, num)
		return nil
	}
	kidsV, ok := d.Get("Kids")
	if !ok {
		// no /Type and no /Kids: treat as a leaf page (tolerant of malformed trees)
		*out = append(*out, num)
		return nil
	}
	kids, ok := kidsV.(pdfval.Array)
	if !ok {
		return fmt.Errorf("pdfparse: /Kids is not an array on node %d", num)
	}
	for _, k := range kids {
		ref, ok := k.(pdfval.Ref)
		if !ok {
			continue
		}
		if err := p.walkPageTree(ref.Num, visited, out); err != nil {
			return err
		}
	}
	return nil
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
