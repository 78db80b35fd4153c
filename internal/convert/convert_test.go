package convert

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: byte(x), G: byte(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: byte(x * 10), G: byte(y * 10), B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

const testHOCR = `<!DOCTYPE html>
<html><body>
<div class="ocr_page" title="bbox 0 0 100 100">
<span class="ocr_line" title="bbox 10 10 90 30">
<span class="ocrx_word" title="bbox 10 10 50 30">hello</span>
</span>
</div>
</body></html>`

// newTestManifestServer serves a two-canvas IIIF v3 manifest plus its
// backing JPEG/PNG images and hOCR text, all on one httptest server.
// If failImg1 is true, the first canvas's image 404s so callers can
// exercise the partial-failure path.
func newTestManifestServer(t *testing.T, failImg1 bool) *httptest.Server {
	t.Helper()
	jpegBytes := encodeTestJPEG(t, 20, 20)
	pngBytes := encodeTestPNG(t, 16, 16)

	mux := http.NewServeMux()
	mux.HandleFunc("/img1.jpg", func(w http.ResponseWriter, r *http.Request) {
		if failImg1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(jpegBytes)
	})
	mux.HandleFunc("/img2.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes)
	})
	mux.HandleFunc("/ocr1.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testHOCR))
	})

	var srv *httptest.Server
	mux.HandleFunc("/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		manifest := fmt.Sprintf(`{
			"id": "%[1]s/manifest.json",
			"type": "Manifest",
			"items": [
				{
					"id": "%[1]s/canvas1",
					"type": "Canvas",
					"width": 100, "height": 100,
					"items": [{
						"type": "AnnotationPage",
						"items": [{
							"type": "Annotation",
							"motivation": "painting",
							"body": {"id": "%[1]s/img1.jpg", "type": "Image", "format": "image/jpeg", "width": 20, "height": 20}
						}]
					}],
					"seeAlso": {"id": "%[1]s/ocr1.html", "format": "text/vnd.hocr+html"}
				},
				{
					"id": "%[1]s/canvas2",
					"type": "Canvas",
					"width": 100, "height": 100,
					"items": [{
						"type": "AnnotationPage",
						"items": [{
							"type": "Annotation",
							"motivation": "painting",
							"body": {"id": "%[1]s/img2.png", "type": "Image", "format": "image/png", "width": 16, "height": 16}
						}]
					}]
				}
			]
		}`, srv.URL)
		w.Write([]byte(manifest))
	})

	srv = httptest.NewServer(mux)
	return srv
}

func TestRunProducesTwoPagePDFWithHiddenText(t *testing.T) {
	srv := newTestManifestServer(t, false)
	defer srv.Close()

	var out bytes.Buffer
	var progressEvents []Progress
	result, err := Run(context.Background(), &out, Input{ManifestURL: srv.URL + "/manifest.json"}, Options{
		HiddenText: true,
		Progress:   func(p Progress) { progressEvents = append(progressEvents, p) },
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.PagesWritten)
	assert.Empty(t, result.PageErrors)

	data := out.String()
	assert.Contains(t, data, "%PDF-1.5")
	assert.Equal(t, 2, countOccurrences(data, "/Type /Page "))
	assert.Contains(t, data, "/Filter /DCTDecode") // the jpeg canvas
	// hidden-text layer from hOCR: "hello" as UTF-16BE hex in a compressed content stream
	assert.Contains(t, inflatedStreams(out.Bytes()), "00680065006C006C006F")

	require.NotEmpty(t, progressEvents)
	last := progressEvents[len(progressEvents)-1]
	assert.Equal(t, StageFinishing, last.Stage)
	assert.Equal(t, int64(out.Len()), last.BytesWritten)
}

func TestRunHonoursCanvasFilter(t *testing.T) {
	srv := newTestManifestServer(t, false)
	defer srv.Close()

	var out bytes.Buffer
	result, err := Run(context.Background(), &out, Input{ManifestURL: srv.URL + "/manifest.json"}, Options{
		CanvasFilter: func(index int, id string) bool { return index == 0 },
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.PagesWritten)
}

func TestRunReportsPartialFailureWithoutAborting(t *testing.T) {
	srv := newTestManifestServer(t, true)
	defer srv.Close()

	var out bytes.Buffer
	result, err := Run(context.Background(), &out, Input{ManifestURL: srv.URL + "/manifest.json"}, Options{
		MaxRetries: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.PagesWritten)
	require.Len(t, result.PageErrors, 1)
	assert.Equal(t, 0, result.PageErrors[0].CanvasIndex)
}

func TestRunRejectsEmptyInput(t *testing.T) {
	var out bytes.Buffer
	_, err := Run(context.Background(), &out, Input{}, Options{})
	assert.ErrorIs(t, err, ErrNoManifestSource)
}

func TestEstimateSizeSumsFetchedBytes(t *testing.T) {
	srv := newTestManifestServer(t, false)
	defer srv.Close()

	total, err := EstimateSize(context.Background(), Input{ManifestURL: srv.URL + "/manifest.json"}, Options{})
	require.NoError(t, err)
	assert.Greater(t, total, int64(0))
}

// inflatedStreams returns the zlib-inflated bodies of every stream in a
// generated PDF, concatenated; streams that are not zlib data are skipped.
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

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
			i += len(substr) - 1
		}
	}
	return count
}
