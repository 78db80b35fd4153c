// Package imagecodec implements the image XObject adapters: JPEG bytes are
// passed through unchanged (only their marker stream is parsed for
// dimensions), while PNG is decoded and re-encoded as a DEFLATE image
// XObject, with a separate soft-mask object for alpha and a separate
// palette object for indexed color.
package imagecodec

import (
	"encoding/binary"
	"fmt"
)

// JPEGInfo describes a JPEG's geometry as recovered from its SOFn marker,
// without decoding any pixel data.
type JPEGInfo struct {
	Width            int
	Height           int
	BitsPerComponent int
	Components       int // 1 = gray, 3 = YCbCr/RGB, 4 = CMYK
}

// ColorSpaceName returns the PDF /ColorSpace name matching Components.
func (j JPEGInfo) ColorSpaceName() string {
	switch j.Components {
	case 1:
		return "DeviceGray"
	case 4:
		return "DeviceCMYK"
	default:
		return "DeviceRGB"
	}
}

// sofMarkers lists the SOFn segment markers that carry frame geometry.
// SOF markers C4, C8, CC are reserved/non-frame markers and excluded.
var sofMarkers = map[byte]bool{
	0xC0: true, 0xC1: true, 0xC2: true, 0xC3: true,
	0xC5: true, 0xC6: true, 0xC7: true,
	0xC9: true, 0xCA: true, 0xCB: true,
	0xCD: true, 0xCE: true, 0xCF: true,
}

// ParseJPEG walks the marker stream of a JPEG byte slice to recover its
// dimensions and component count, without decoding pixel data.
func ParseJPEG(data []byte) (JPEGInfo, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return JPEGInfo{}, fmt.Errorf("imagecodec: not a JPEG (bad SOI marker)")
	}
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			i++
			continue
		}
		marker := data[i+1]
		if marker == 0x01 || (marker >= 0xD0 && marker <= 0xD9) {
			i += 2
			continue
		}
		if i+4 > len(data) {
			break
		}
		segLen := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if sofMarkers[marker] {
			body := data[i+4:]
			if len(body) < 6 {
				return JPEGInfo{}, fmt.Errorf("imagecodec: truncated SOF segment")
			}
			precision := int(body[0])
			height := int(binary.BigEndian.Uint16(body[1:3]))
			width := int(binary.BigEndian.Uint16(body[3:5]))
			components := int(body[5])
			return JPEGInfo{
				Width:            width,
				Height:           height,
				BitsPerComponent: precision,
				Components:       components,
			}, nil
		}
		if marker == 0xD8 || marker == 0xD9 {
			i += 2
			continue
		}
		i += 2 + segLen
	}
	return JPEGInfo{}, fmt.Errorf("imagecodec: no SOF marker found")
}
