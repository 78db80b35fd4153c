package pdfstream

import (
	"context"
	"io"

	"github.com/iiifstream/pdfstream/internal/convert"
	"github.com/iiifstream/pdfstream/internal/fetch"
	"github.com/iiifstream/pdfstream/internal/platform/logger"
	"github.com/iiifstream/pdfstream/internal/platform/metrics"
)

// Input selects the manifest to convert.
type Input = convert.Input

// Options configures one conversion run.
type Options = convert.Options

// CoverPageSource supplies an external cover-page PDF spliced in ahead of
// the converted canvases.
type CoverPageSource = convert.CoverPageSource

// Progress reports incremental conversion status through Options.Progress.
type Progress = convert.Progress

// Stage identifies which phase of the pipeline a Progress update describes.
type Stage = convert.Stage

const (
	StageFetching  = convert.StageFetching
	StageRendering = convert.StageRendering
	StageFinishing = convert.StageFinishing
)

// Result summarises a completed conversion run.
type Result = convert.Result

// PageError describes a recoverable failure scoped to a single canvas; the
// canvas was still rendered, just without that input.
type PageError = convert.PageError

// FetchClient is the rate-limited, backoff-respecting HTTP client every
// fetch in a run goes through. Callers that want to share one client (and
// its rate-limit state) across several conversions build it with NewFetchClient
// and pass it as Options.FetchClient.
type FetchClient = fetch.Client

// Logger is the logger type accepted by Options.Log.
type Logger = logger.Logger

// MetricsRecorder is the metrics interface accepted by Options.Metrics.
type MetricsRecorder = metrics.Recorder

// ErrNoManifestSource is returned when Input supplies neither a manifest
// URL nor already-fetched manifest bytes.
var ErrNoManifestSource = convert.ErrNoManifestSource

// NewFetchClient builds a fetch client with its own rate-limit registry,
// for callers that want to reuse one client (and its per-host backoff
// state) across multiple Convert calls.
func NewFetchClient(maxRetries int, log *Logger, rec MetricsRecorder) *FetchClient {
	return fetch.NewClient(fetch.NewRateLimitRegistry(), maxRetries, log, rec)
}

// NewLogger builds a Logger; mode "production" yields JSON output at info
// level, anything else yields human-readable development output at debug
// level.
func NewLogger(mode string) (*Logger, error) {
	return logger.New(mode)
}

// Convert fetches the manifest named by in, resolves its canvases, and
// streams the resulting PDF to sink. Returns once every page has been
// written and sink has drained; a per-canvas fetch or OCR failure is
// recorded in Result.PageErrors without aborting the run.
func Convert(ctx context.Context, sink io.Writer, in Input, opts Options) (Result, error) {
	return convert.Run(ctx, sink, in, opts)
}

// EstimateSize predicts the byte size a real Convert call would produce,
// by fetching every image and OCR resource a conversion would need and
// summing their lengths, without ever constructing a PDF. It is a lower
// bound, not a guarantee: a transient fetch failure here is silently
// excluded from the total rather than retried indefinitely.
func EstimateSize(ctx context.Context, in Input, opts Options) (int64, error) {
	return convert.EstimateSize(ctx, in, opts)
}
