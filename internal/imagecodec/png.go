package imagecodec

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"
)

// PNGImage is the decoded, re-encodable form of a PNG: a main image stream
// (DEFLATE, PNG-predictor "None" per row), an optional indexed palette, and
// an optional soft-mask stream for the alpha channel.
type PNGImage struct {
	Width            int
	Height           int
	BitsPerComponent int
	ColorSpace       string // DeviceGray, DeviceRGB, or Indexed
	Palette          []byte // RGB triples, present when ColorSpace == "Indexed"
	Stream           []byte // FlateDecode-compressed, PNG-predictor-tagged scanlines
	SMaskStream      []byte // FlateDecode-compressed 8-bit gray alpha scanlines, or nil
}

// DecodePNG decodes data (any PNG: interlaced or not, paletted, gray, RGB,
// with or without alpha) and re-encodes it into the XObject-ready form
// described by PNGImage.
func DecodePNG(data []byte) (*PNGImage, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imagecodec: png decode: %w", err)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if pal, ok := img.(*image.Paletted); ok {
		return encodeIndexed(pal, w, h)
	}

	hasAlpha, opaque := scanAlpha(img)
	if hasAlpha && !opaque {
		gray := isGrayscale(img)
		var colorStream []byte
		var cs string
		if gray {
			colorStream, err = encodeGrayScanlines(img, w, h)
			cs = "DeviceGray"
		} else {
			colorStream, err = encodeRGBScanlines(img, w, h)
			cs = "DeviceRGB"
		}
		if err != nil {
			return nil, err
		}
		smask, err := encodeAlphaScanlines(img, w, h)
		if err != nil {
			return nil, err
		}
		return &PNGImage{
			Width: w, Height: h, BitsPerComponent: 8,
			ColorSpace: cs, Stream: colorStream, SMaskStream: smask,
		}, nil
	}

	if isGrayscale(img) {
		stream, err := encodeGrayScanlines(img, w, h)
		if err != nil {
			return nil, err
		}
		return &PNGImage{Width: w, Height: h, BitsPerComponent: 8, ColorSpace: "DeviceGray", Stream: stream}, nil
	}
	stream, err := encodeRGBScanlines(img, w, h)
	if err != nil {
		return nil, err
	}
	return &PNGImage{Width: w, Height: h, BitsPerComponent: 8, ColorSpace: "DeviceRGB", Stream: stream}, nil
}

// scanAlpha reports whether img carries an alpha channel at all, and
// whether every pixel is fully opaque (in which case the caller can skip
// emitting a soft mask).
func scanAlpha(img image.Image) (hasAlpha, opaque bool) {
	switch img.(type) {
	case *image.NRGBA, *image.RGBA, *image.NRGBA64, *image.RGBA64:
		hasAlpha = true
	default:
		return false, true
	}
	b := img.Bounds()
	opaque = true
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a != 0xFFFF {
				opaque = false
				return
			}
		}
	}
	return
}

func isGrayscale(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}

// addPredictorByte prepends a zero filter-type byte (PNG filter "None") to
// each scanline, matching PDF /Predictor 15 semantics: the PDF reader
// applies the standard PNG unfiltering algorithm row by row.
func addPredictorByte(rows [][]byte) []byte {
	var out bytes.Buffer
	for _, row := range rows {
		out.WriteByte(0)
		out.Write(row)
	}
	return out.Bytes()
}

func deflate(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeGrayScanlines(img image.Image, w, h int) ([]byte, error) {
	b := img.Bounds()
	rows := make([][]byte, h)
	for y := 0; y < h; y++ {
		row := make([]byte, w)
		for x := 0; x < w; x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			row[x] = g.Y
		}
		rows[y] = row
	}
	return deflate(addPredictorByte(rows))
}

func encodeRGBScanlines(img image.Image, w, h int) ([]byte, error) {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	rows := make([][]byte, h)
	for y := 0; y < h; y++ {
		row := make([]byte, w*3)
		rowStart := y * dst.Stride
		for x := 0; x < w; x++ {
			px := dst.Pix[rowStart+x*4 : rowStart+x*4+4]
			row[x*3] = px[0]
			row[x*3+1] = px[1]
			row[x*3+2] = px[2]
		}
		rows[y] = row
	}
	return deflate(addPredictorByte(rows))
}

func encodeAlphaScanlines(img image.Image, w, h int) ([]byte, error) {
	b := img.Bounds()
	rows := make([][]byte, h)
	for y := 0; y < h; y++ {
		row := make([]byte, w)
		for x := 0; x < w; x++ {
			_, _, _, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			row[x] = byte(a >> 8)
		}
		rows[y] = row
	}
	return deflate(addPredictorByte(rows))
}

func encodeIndexed(pal *image.Paletted, w, h int) (*PNGImage, error) {
	rows := make([][]byte, h)
	for y := 0; y < h; y++ {
		start := y * pal.Stride
		row := make([]byte, w)
		copy(row, pal.Pix[start:start+w])
		rows[y] = row
	}
	stream, err := deflate(addPredictorByte(rows))
	if err != nil {
		return nil, err
	}
	paletteBytes := make([]byte, 0, len(pal.Palette)*3)
	hasAlpha := false
	for _, c := range pal.Palette {
		r, g, b, a := c.RGBA()
		paletteBytes = append(paletteBytes, byte(r>>8), byte(g>>8), byte(b>>8))
		if a != 0xFFFF {
			hasAlpha = true
		}
	}
	out := &PNGImage{
		Width: w, Height: h, BitsPerComponent: 8,
		ColorSpace: "Indexed", Palette: paletteBytes, Stream: stream,
	}
	if hasAlpha {
		smask, err := encodeAlphaScanlines(pal, w, h)
		if err != nil {
			return nil, err
		}
		out.SMaskStream = smask
	}
	return out, nil
}
