package convert

import (
	"context"

	"github.com/iiifstream/pdfstream/internal/fetch"
	"github.com/iiifstream/pdfstream/internal/iiif"
	"github.com/iiifstream/pdfstream/internal/imagecodec"
	"github.com/iiifstream/pdfstream/internal/ocr"
	"github.com/iiifstream/pdfstream/internal/pdfgen"
)

// canvasTask holds one canvas's fetch results, populated concurrently by
// fetchCanvas and consumed strictly in canvas order by Run's render loop.
type canvasTask struct {
	desc iiif.CanvasDescriptor

	images       []placedImage
	ocrPage      *ocr.Page
	bytesFetched int64
	err          error
}

type placedImage struct {
	placement iiif.ImagePlacement
	format    string
	bytes     []byte
	jpeg      *imagecodec.JPEGInfo
	png       *imagecodec.PNGImage
}

// fetchCanvas resolves and fetches every image and the OCR reference for
// one canvas. Failures are recorded on the task, not returned, so one
// canvas's missing image or OCR never aborts the run; it is reported
// through the progress callback instead.
func fetchCanvas(ctx context.Context, fc *fetch.Client, scale float64, t *canvasTask) {
	for _, placement := range t.desc.Images {
		if placement.Choice && !placement.IsDefault {
			continue // non-default Choice alternatives are never painted
		}
		if placement.Format == "unsupported" {
			continue
		}

		url := imageRequestURL(placement, t.desc, scale)
		data, _, err := fc.Get(ctx, url)
		if err != nil {
			t.err = err
			continue
		}
		t.bytesFetched += int64(len(data))

		pi := placedImage{placement: placement, format: placement.Format, bytes: data}
		switch placement.Format {
		case "jpeg":
			info, err := imagecodec.ParseJPEG(data)
			if err != nil {
				t.err = err
				continue
			}
			pi.jpeg = &info
		case "png":
			png, err := imagecodec.DecodePNG(data)
			if err != nil {
				t.err = err
				continue
			}
			pi.png = png
		}
		t.images = append(t.images, pi)
	}

	if t.desc.OCR != nil {
		data, _, err := fc.Get(ctx, t.desc.OCR.URL)
		if err != nil {
			t.err = err
		} else {
			t.bytesFetched += int64(len(data))
			page, err := parseOCR(data, t.desc.OCR.Format, t.desc.Width, t.desc.Height)
			if err != nil {
				t.err = err
			} else {
				t.ocrPage = page
			}
		}
	}
}

// imageRequestURL resolves the IIIF Image API request for one placement.
// Placements with no image service (a bare content resource, no Image API
// available) are fetched at their declared id directly.
func imageRequestURL(p iiif.ImagePlacement, cd iiif.CanvasDescriptor, scale float64) string {
	if p.Service == nil {
		return p.Source
	}
	maxWidth := p.NativeW
	if maxWidth <= 0 {
		maxWidth = int(cd.Width)
	}
	return iiif.SelectSize(p.Service, maxWidth, scale)
}

func parseOCR(data []byte, format string, refWidth, refHeight float64) (*ocr.Page, error) {
	if format == "alto" || (format == "" && ocr.LooksLikeALTO(data)) {
		return ocr.ParseALTO(data, refWidth, refHeight)
	}
	return ocr.ParseHOCR(data, refWidth, refHeight, nil)
}

// placedImages converts a task's fetched images into the destination
// rectangles the generator expects, defaulting an unset placement (no
// target fragment given by the manifest) to the full canvas, since a
// painting annotation with no region paints the whole canvas.
func placedImages(t *canvasTask) []pdfgen.PlacedImage {
	out := make([]pdfgen.PlacedImage, 0, len(t.images))
	for _, pi := range t.images {
		x, y, w, h := pi.placement.X, pi.placement.Y, pi.placement.W, pi.placement.H
		if w <= 0 {
			w = t.desc.Width
		}
		if h <= 0 {
			h = t.desc.Height
		}
		img := pdfgen.PlacedImage{
			Format: pi.format,
			X:      x, Y: y, W: w, H: h,
		}
		switch pi.format {
		case "jpeg":
			img.JPEG = pi.jpeg
			img.JPEGBytes = pi.bytes
		case "png":
			img.PNG = pi.png
		}
		out = append(out, img)
	}
	return out
}
