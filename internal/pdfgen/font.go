package pdfgen

import (
	"bytes"
	"fmt"
)

// glyphlessFontData is a minimal single-glyph TrueType program: every code
// point maps to glyph 0, an empty outline, so embedded text paints nothing
// while remaining a legal Type0 descendant font.
var glyphlessFontData = []byte(
	"\x07\x26\x45\x64\x83\xa2\xc1\xe0\xff\x1e\x3d\x5c\x7b\x9a\xb9\xd8" +
		"\xf7\x16\x35\x54\x73\x92\xb1\xd0\xef\x0e\x2d\x4c\x6b\x8a\xa9\xc8" +
		"\xe7\x06\x25\x44\x63\x82\xa1\xc0\xdf\xfe\x1d\x3c\x5b\x7a\x99\xb8" +
		"\xd7\xf6\x15\x34\x53\x72\x91\xb0\xcf\xee\x0d\x2c\x4b\x6a\x89\xa8" +
		"\xc7\xe6\x05\x24\x43\x62\x81\xa0\xbf\xde\xfd\x1c\x3b\x5a\x79\x98" +
		"\xb7\xd6\xf5\x14\x33\x52\x71\x90\xaf\xce\xed\x0c\x2b\x4a\x69\x88" +
		"\xa7\xc6\xe5\x04\x23\x42\x61\x80\x9f\xbe\xdd\xfc\x1b\x3a\x59\x78" +
		"\x97\xb6\xd5\xf4\x13\x32\x51\x70\x8f\xae\xcd\xec\x0b\x2a\x49\x68" +
		"\x87\xa6\xc5\xe4\x03\x22\x41\x60\x7f\x9e\xbd\xdc\xfb\x1a\x39\x58" +
		"\x77\x96\xb5\xd4\xf3\x12\x31\x50\x6f\x8e\xad\xcc\xeb\x0a\x29\x48" +
		"\x67\x86\xa5\xc4\xe3\x02\x21\x40\x5f\x7e\x9d\xbc\xdb\xfa\x19\x38" +
		"\x57\x76\x95\xb4\xd3\xf2\x11\x30\x4f\x6e\x8d\xac\xcb\xea\x09\x28" +
		"\x47\x66\x85\xa4\xc3\xe2\x01\x20\x3f\x5e\x7d\x9c\xbb\xda\xf9\x18" +
		"\x37\x56\x75\x94\xb3\xd2\xf1\x10\x2f\x4e\x6d\x8c\xab\xca\xe9\x08" +
		"\x27\x46\x65\x84\xa3\xc2\xe1\x00\x1f\x3e\x5d\x7c\x9b\xba\xd9\xf8" +
		"\x17\x36\x55\x74\x93\xb2\xd1\xf0\x0f\x2e\x4d\x6c\x8b\xaa\xc9\xe8" +
		"\x07\x26\x45\x64\x83\xa2\xc1\xe0\xff\x1e\x3d\x5c\x7b\x9a\xb9\xd8" +
		"\xf7\x16\x35\x54\x73\x92\xb1\xd0\xef\x0e\x2d\x4c\x6b\x8a\xa9\xc8" +
		"\xe7\x06\x25\x44\x63\x82\xa1\xc0\xdf\xfe\x1d\x3c\x5b\x7a\x99\xb8" +
		"\xd7\xf6\x15\x34\x53\x72\x91\xb0\xcf\xee\x0d\x2c\x4b\x6a\x89\xa8" +
		"\xc7\xe6\x05\x24\x43\x62\x81\xa0\xbf\xde\xfd\x1c\x3b\x5a\x79\x98" +
		"\xb7\xd6\xf5\x14\x33\x52\x71\x90\xaf\xce\xed\x0c\x2b\x4a\x69\x88" +
		"\xa7\xc6\xe5\x04\x23\x42\x61\x80\x9f\xbe\xdd\xfc\x1b\x3a\x59\x78" +
		"\x97\xb6\xd5\xf4\x13\x32\x51\x70\x8f\xae\xcd\xec\x0b\x2a\x49\x68" +
		"\x87\xa6\xc5\xe4\x03\x22\x41\x60\x7f\x9e\xbd\xdc\xfb\x1a\x39\x58" +
		"\x77\x96\xb5\xd4\xf3\x12\x31\x50\x6f\x8e\xad\xcc\xeb\x0a\x29\x48" +
		"\x67\x86\xa5\xc4\xe3\x02\x21\x40\x5f\x7e\x9d\xbc\xdb\xfa\x19\x38" +
		"\x57\x76\x95\xb4\xd3\xf2\x11\x30\x4f\x6e\x8d\xac\xcb\xea\x09\x28" +
		"\x47\x66\x85\xa4\xc3\xe2\x01\x20\x3f\x5e\x7d\x9c\xbb\xda\xf9\x18" +
		"\x37\x56\x75\x94\xb3\xd2\xf1\x10\x2f\x4e\x6d\x8c\xab\xca\xe9\x08" +
		"\x27\x46\x65\x84\xa3\xc2\xe1\x00\x1f\x3e\x5d\x7c\x9b\xba\xd9\xf8" +
		"\x17\x36\x55\x74\x93\xb2\xd1\xf0\x0f\x2e\x4d\x6c\x8b\xaa\xc9\xe8" +
		"\x07\x26\x45\x64\x83\xa2\xc1\xe0\xff\x1e\x3d\x5c\x7b\x9a\xb9\xd8" +
		"\xf7\x16\x35\x54\x73\x92\xb1\xd0\xef\x0e\x2d\x4c\x6b\x8a\xa9\xc8" +
		"\xe7\x06\x25\x44\x63\x82\xa1\xc0")

// cidToGIDMap maps every 16-bit code to glyph 0: a flat run of zero bytes
// covering the full CID range the OCR layer can produce.
func cidToGIDMap() []byte {
	return bytes.Repeat([]byte{0x00, 0x00}, 65536)
}

// toUnicodeCMap builds an Identity ToUnicode CMap stream so copy-pasted
// hidden text round-trips through the same UTF-16BE code points RenderPage
// wrote into its TJ arrays.
func toUnicodeCMap() []byte {
	var b bytes.Buffer
	b.WriteString("/CIDInit /ProcSet findresource begin\n")
	b.WriteString("12 dict begin\n")
	b.WriteString("begincmap\n")
	b.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	b.WriteString("/CMapName /Adobe-Identity-UCS def\n")
	b.WriteString("/CMapType 2 def\n")
	b.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")
	b.WriteString("1 beginbfrange\n<0000> <FFFF> <0000>\nendbfrange\n")
	b.WriteString("endcmap\n")
	b.WriteString("CMapName currentdict /CMap defineresource pop\n")
	b.WriteString("end\nend\n")
	return b.Bytes()
}

// hiddenTextFontIDs holds the object numbers reserved for the Type0 font
// tree, assigned once during Setup.
type hiddenTextFontIDs struct {
	Type0     int
	CIDFont   int
	FontDescr int
	FontFile  int
	CIDToGID  int
	ToUnicode int
}

func (g *Generator) writeHiddenTextFont(ids hiddenTextFontIDs) error {
	cidToGID := cidToGIDMap()
	if err := g.writeStreamObject(ids.CIDToGID, "", cidToGID); err != nil {
		return err
	}

	toUnicode := toUnicodeCMap()
	if err := g.writeStreamObject(ids.ToUnicode, "", toUnicode); err != nil {
		return err
	}

	compressed, err := deflate(glyphlessFontData)
	if err != nil {
		return err
	}
	fontFileExtra := fmt.Sprintf("/Filter /FlateDecode /Length1 %d", len(glyphlessFontData))
	if err := g.writeStreamObject(ids.FontFile, fontFileExtra, compressed); err != nil {
		return err
	}

	descr := fmt.Sprintf("<< /Type /FontDescriptor /FontName /GlyphlessFont /Flags 5 "+
		"/FontBBox [0 0 1000 1000] /ItalicAngle 0 /Ascent 1000 /Descent 0 /CapHeight 1000 "+
		"/StemV 80 /FontFile2 %d 0 R >>", ids.FontFile)
	if err := g.writeObject(ids.FontDescr, descr); err != nil {
		return err
	}

	cidFont := fmt.Sprintf("<< /Type /Font /Subtype /CIDFontType2 /BaseFont /GlyphlessFont "+
		"/CIDSystemInfo << /Registry (Adobe) /Ordering (Identity) /Supplement 0 >> "+
		"/FontDescriptor %d 0 R /DW 0 /CIDToGIDMap %d 0 R >>", ids.FontDescr, ids.CIDToGID)
	if err := g.writeObject(ids.CIDFont, cidFont); err != nil {
		return err
	}

	type0 := fmt.Sprintf("<< /Type /Font /Subtype /Type0 /BaseFont /GlyphlessFont "+
		"/Encoding /Identity-H /DescendantFonts [%d 0 R] /ToUnicode %d 0 R >>",
		ids.CIDFont, ids.ToUnicode)
	return g.writeObject(ids.Type0, type0)
}
