// Package convert implements the top-level conversion pipeline: it fetches
// a IIIF manifest, resolves its canvases, fans image and OCR requests out
// through the fetch coordinator, and feeds the results into the PDF
// generator in declared canvas order.
package convert

import (
	"context"
	"os"
	"time"

	"github.com/iiifstream/pdfstream/internal/fetch"
	"github.com/iiifstream/pdfstream/internal/platform/logger"
	"github.com/iiifstream/pdfstream/internal/platform/metrics"
)

// envLanguageVar is consulted when the caller leaves Options.Language
// empty, before falling back to "none".
const envLanguageVar = "PDFSTREAM_OCR_LANGUAGE"

// CoverPageSource supplies the bytes of an external PDF to splice in ahead
// of the converted canvases. Exactly one of its fields should be set; if
// more than one is, Bytes wins, then Render, then Endpoint.
type CoverPageSource struct {
	// Bytes is an already-rendered cover-page PDF.
	Bytes []byte
	// Render is called once, with the run's cancellation context, to
	// produce the cover-page PDF (e.g. a chromedp-backed HTML renderer).
	Render func(ctx context.Context) ([]byte, error)
	// Endpoint is POSTed to (via the run's fetch.Client, so it shares rate
	// limiting and retry behaviour with every other outbound request) with
	// Body as the request payload; the response body is used as-is.
	Endpoint    string
	Body        []byte
	ContentType string
}

// resolve returns the cover-page PDF bytes, or nil if no source is set.
func (s *CoverPageSource) resolve(ctx context.Context, fc *fetch.Client) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	if s.Bytes != nil {
		return s.Bytes, nil
	}
	if s.Render != nil {
		return s.Render(ctx)
	}
	if s.Endpoint != "" {
		body, _, err := fc.Post(ctx, s.Endpoint, s.ContentType, s.Body)
		return body, err
	}
	return nil, nil
}

// Input selects the manifest to convert: either an already-fetched
// manifest, or a URL the pipeline fetches itself via the fetch coordinator.
type Input struct {
	ManifestURL  string
	ManifestData []byte
}

// Options configures one conversion run.
type Options struct {
	// Language is the caller's OCR/label language preference. Resolution
	// order is caller-supplied, then the PDFSTREAM_OCR_LANGUAGE
	// environment variable, then "none".
	Language string

	// CanvasFilter, if non-nil, is consulted once per manifest canvas in
	// declared order; a canvas is dropped from the output unless it
	// returns true.
	CanvasFilter func(index int, id string) bool

	// ScaleFactor is the Image API size-selection scale in (0, 1]; 0 or
	// out of range means 1 (full native resolution).
	ScaleFactor float64

	// Concurrency bounds the number of canvases whose image/OCR fetches
	// run in parallel. 0 means 4.
	Concurrency int

	// MaxRetries bounds fetch retries per request. 0 means the fetch
	// package default.
	MaxRetries int

	// HiddenText controls whether a searchable (invisible) OCR text layer
	// is embedded on every page.
	HiddenText bool

	// CoverPage optionally supplies a cover-page PDF spliced in ahead of
	// the converted canvases.
	CoverPage *CoverPageSource

	// Outline, if true, builds a PDF outline (bookmarks) from the
	// manifest's structures/ranges.
	Outline bool

	// Progress, if non-nil, is called after every meaningful step: each
	// per-canvas failure, each page written, and once after the PDF has
	// been finalised. It must return quickly; slow callbacks delay the
	// pipeline.
	Progress func(Progress)

	// FetchClient lets the caller supply a pre-built, possibly shared
	// fetch.Client (e.g. one already warmed up with credentials). If nil,
	// a new one is built for this run alone.
	FetchClient *fetch.Client

	Log     *logger.Logger
	Metrics metrics.Recorder
}

func (o Options) resolveLanguage() string {
	if o.Language != "" {
		return o.Language
	}
	if v := os.Getenv(envLanguageVar); v != "" {
		return v
	}
	return "none"
}

func (o Options) concurrency() int {
	if o.Concurrency <= 0 {
		return 4
	}
	return o.Concurrency
}

func (o Options) scale() float64 {
	if o.ScaleFactor <= 0 || o.ScaleFactor > 1 {
		return 1
	}
	return o.ScaleFactor
}

func (o Options) logger() *logger.Logger {
	if o.Log != nil {
		return o.Log
	}
	return logger.Nop()
}

func (o Options) recorder() metrics.Recorder {
	if o.Metrics != nil {
		return o.Metrics
	}
	return metrics.Nop{}
}

// Stage identifies which phase of the pipeline a Progress update describes.
type Stage string

const (
	StageFetching  Stage = "fetching"
	StageRendering Stage = "rendering"
	StageFinishing Stage = "finishing"
)

// Progress is emitted to Options.Progress as the conversion advances.
type Progress struct {
	Stage Stage

	PagesWritten int
	PagesTotal   int

	// BytesFetched is the running total of image+OCR bytes pulled from
	// the source IIIF service so far.
	BytesFetched int64
	// BytesWritten is the running total of PDF bytes pushed to the sink.
	BytesWritten int64
	// PredictedTotalBytes extrapolates the final PDF size from the
	// average bytes-written-per-page-written so far; 0 until at least one
	// page has been written.
	PredictedTotalBytes int64
	// BytesPerSecond is BytesWritten divided by elapsed wall time.
	BytesPerSecond float64
	// ETA estimates the remaining time to StageFinishing, derived from
	// BytesPerSecond and PredictedTotalBytes; 0 when not yet estimable.
	ETA time.Duration

	// PageError carries a non-fatal per-canvas failure (a missing image,
	// an OCR fetch/parse failure): the canvas was still rendered, just
	// without that input. The pipeline never aborts for these.
	PageError *PageError
}

// PageError describes a recoverable failure scoped to a single canvas.
type PageError struct {
	CanvasIndex int
	CanvasID    string
	Err         error
}

func (e *PageError) Error() string {
	return "convert: canvas " + e.CanvasID + ": " + e.Err.Error()
}

func (e *PageError) Unwrap() error { return e.Err }

// Result summarises a completed conversion run.
type Result struct {
	PagesWritten int
	BytesWritten int64
	Duration     time.Duration
	// PageErrors lists every non-fatal per-canvas failure encountered.
	PageErrors []*PageError
}
