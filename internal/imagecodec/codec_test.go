package imagecodec

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalJPEG builds a byte-minimal baseline JPEG stream containing only a
// SOI, a SOF0 segment, and an EOI, enough for ParseJPEG to recover geometry.
func minimalJPEG(width, height, components int) []byte {
	var b bytes.Buffer
	b.Write([]byte{0xFF, 0xD8}) // SOI
	segLen := 8 + components*3
	b.Write([]byte{0xFF, 0xC0, byte(segLen >> 8), byte(segLen)})
	b.WriteByte(8) // precision
	b.Write([]byte{byte(height >> 8), byte(height)})
	b.Write([]byte{byte(width >> 8), byte(width)})
	b.WriteByte(byte(components))
	for i := 0; i < components; i++ {
		b.Write([]byte{byte(i + 1), 0x11, 0})
	}
	b.Write([]byte{0xFF, 0xD9}) // EOI
	return b.Bytes()
}

func TestParseJPEGRGB(t *testing.T) {
	data := minimalJPEG(290, 400, 3)
	info, err := ParseJPEG(data)
	require.NoError(t, err)
	assert.Equal(t, 290, info.Width)
	assert.Equal(t, 400, info.Height)
	assert.Equal(t, 3, info.Components)
	assert.Equal(t, "DeviceRGB", info.ColorSpaceName())
}

func TestParseJPEGCMYK(t *testing.T) {
	data := minimalJPEG(10, 10, 4)
	info, err := ParseJPEG(data)
	require.NoError(t, err)
	assert.Equal(t, "DeviceCMYK", info.ColorSpaceName())
}

func TestParseJPEGRejectsNonJPEG(t *testing.T) {
	_, err := ParseJPEG([]byte("not a jpeg"))
	assert.Error(t, err)
}

func buildPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodePNGOpaqueRGB(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: byte(x * 10), G: byte(y * 10), B: 5, A: 255})
		}
	}
	out, err := DecodePNG(buildPNG(t, img))
	require.NoError(t, err)
	assert.Equal(t, 4, out.Width)
	assert.Equal(t, 3, out.Height)
	assert.Equal(t, "DeviceRGB", out.ColorSpace)
	assert.Nil(t, out.SMaskStream)
	assert.NotEmpty(t, out.Stream)
}

func TestDecodePNGWithAlphaProducesSMask(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{255, 0, 0, 255})
	img.Set(1, 0, color.NRGBA{0, 255, 0, 128})
	img.Set(0, 1, color.NRGBA{0, 0, 255, 0})
	img.Set(1, 1, color.NRGBA{255, 255, 255, 255})
	out, err := DecodePNG(buildPNG(t, img))
	require.NoError(t, err)
	assert.NotNil(t, out.SMaskStream)
}

func TestDecodePNGPaletted(t *testing.T) {
	pal := color.Palette{
		color.RGBA{255, 0, 0, 255},
		color.RGBA{0, 255, 0, 255},
	}
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), pal)
	img.SetColorIndex(0, 0, 0)
	img.SetColorIndex(1, 0, 1)
	img.SetColorIndex(0, 1, 1)
	img.SetColorIndex(1, 1, 0)
	out, err := DecodePNG(buildPNG(t, img))
	require.NoError(t, err)
	assert.Equal(t, "Indexed", out.ColorSpace)
	assert.Len(t, out.Palette, 6)
}
