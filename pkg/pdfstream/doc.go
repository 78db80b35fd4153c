// Package pdfstream is the public entry point for converting a IIIF
// Presentation manifest into a streaming PDF.
//
// # Quick Start
//
//	pdfBytes := &bytes.Buffer{}
//	result, err := pdfstream.Convert(context.Background(), pdfBytes, pdfstream.Input{
//		ManifestURL: "https://example.org/iiif/book42/manifest.json",
//	}, pdfstream.Options{
//		HiddenText: true,
//	})
//
// Convert writes directly to sink as pages become available; callers that
// want byte-level progress should pass Options.Progress and Options.Concurrency
// to size the fetch fan-out to the source server's capacity.
//
// # Estimating size before converting
//
// EstimateSize runs the cheaper manifest/canvas/fetch portion of the
// pipeline alone and sums the bytes it would otherwise feed to the PDF
// generator, without ever building a PDF:
//
//	n, err := pdfstream.EstimateSize(ctx, input, options)
//
// # Features
//
//   - [Convert] - drive one manifest-to-PDF conversion end to end
//   - [EstimateSize] - predict output size without generating a PDF
//   - [CoverPageSource] - splice an externally rendered cover page in first
package pdfstream
