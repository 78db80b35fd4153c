// pdfxref is a small debug tool for inspecting a classic-xref PDF produced
// by pdfstreamd: it walks the xref table and trailer, checks every offset
// it lists actually points at the object it claims to, and flags the usual
// off-by-one mistakes a hand-written generator can make.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var (
	xrefEntryRx  = regexp.MustCompile(`^(\d{10}) (\d{5}) ([nf]) ?\r?\n?$`)
	xrefHeaderRx = regexp.MustCompile(`^(\d+) (\d+)\s*$`)
	objStartRx   = regexp.MustCompile(`\b(\d+)\s+0\s+obj\b`)
	trailerRx    = regexp.MustCompile(`/Size\s+(\d+)`)
	rootRx       = regexp.MustCompile(`/Root\s+(\d+)\s+0\s+R`)
)

func main() {
	if len(os.Args) != 2 {
		fmt.Println("usage: pdfxref file.pdf")
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Println("read error:", err)
		os.Exit(1)
	}

	startXref, err := findStartXref(data)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Printf("startxref -> offset %d\n", startXref)

	entries, err := parseXrefTable(data, startXref)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Printf("xref table: %d entries\n", len(entries))

	problems := 0
	for id, offset := range entries {
		if id == 0 {
			continue
		}
		if offset < 0 || int(offset) >= len(data) {
			fmt.Printf("object %d: offset %d out of range\n", id, offset)
			problems++
			continue
		}
		rest := data[offset:]
		m := objStartRx.FindSubmatch(rest)
		if m == nil || string(m[1]) != strconv.Itoa(id) {
			fmt.Printf("object %d: offset %d does not point at \"%d 0 obj\"\n", id, offset, id)
			problems++
		}
	}

	highest := 0
	for id := range entries {
		if id > highest {
			highest = id
		}
	}
	trailer := trailerRx.FindSubmatch(data)
	if trailer == nil {
		fmt.Println("trailer: missing /Size")
		problems++
	} else if size, _ := strconv.Atoi(string(trailer[1])); size != highest+1 {
		fmt.Printf("trailer: /Size %d is not one more than the highest object number %d\n", size, highest)
		problems++
	}
	if root := rootRx.FindSubmatch(data); root == nil {
		fmt.Println("trailer: missing /Root reference")
		problems++
	}

	// every "endstream" also contains "stream", so subtract those
	endstreams := strings.Count(string(data), "endstream")
	streams := strings.Count(string(data), "stream") - endstreams
	if streams != endstreams {
		fmt.Printf("stream/endstream mismatch (%d/%d)\n", streams, endstreams)
		problems++
	}

	if problems == 0 {
		fmt.Println("OK: no structural problems found")
		return
	}
	fmt.Printf("%d problem(s) found\n", problems)
	os.Exit(1)
}

// findStartXref returns the byte offset the file's trailing "startxref"
// keyword points at.
func findStartXref(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, fmt.Errorf("no startxref keyword found")
	}
	rest := bytes.TrimLeft(data[idx+len("startxref"):], "\r\n \t")
	end := bytes.IndexAny(rest, "\r\n")
	if end < 0 {
		end = len(rest)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(rest[:end])), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing startxref offset: %w", err)
	}
	return n, nil
}

// parseXrefTable reads a classic "xref" table starting at offset and
// returns the byte offset recorded for every in-use object ID.
func parseXrefTable(data []byte, offset int64) (map[int]int64, error) {
	if offset < 0 || int(offset) >= len(data) {
		return nil, fmt.Errorf("startxref offset %d out of range", offset)
	}
	section := data[offset:]
	if !bytes.HasPrefix(bytes.TrimLeft(section, " \r\n\t"), []byte("xref")) {
		return nil, fmt.Errorf("offset %d does not begin with \"xref\" (cross-reference streams are not supported)", offset)
	}

	scanner := bufio.NewScanner(bytes.NewReader(section))
	scanner.Scan() // consume the "xref" line

	entries := map[int]int64{}
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "trailer") {
			break
		}
		header := xrefHeaderRx.FindStringSubmatch(line)
		if header == nil {
			continue
		}
		start, _ := strconv.Atoi(header[1])
		count, _ := strconv.Atoi(header[2])
		for i := 0; i < count; i++ {
			if !scanner.Scan() {
				return nil, fmt.Errorf("xref subsection %d..%d truncated", start, start+count)
			}
			m := xrefEntryRx.FindStringSubmatch(scanner.Text() + "\n")
			if m == nil {
				return nil, fmt.Errorf("malformed xref entry at object %d", start+i)
			}
			if m[3] != "n" {
				continue
			}
			off, _ := strconv.ParseInt(m[1], 10, 64)
			entries[start+i] = off
		}
	}
	return entries, nil
}
