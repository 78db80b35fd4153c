package convert

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/iiifstream/pdfstream/internal/fetch"
	"github.com/iiifstream/pdfstream/internal/iiif"
)

// EstimateSize runs only the manifest-fetch, canvas-resolution, and fetch
// steps of the pipeline, summing the byte length of every image and OCR
// resource it would otherwise hand to the generator. It never constructs a
// pdfgen.Generator and reuses the same fetch client's rate-limiting and
// backoff behaviour as Run, so its estimate reflects the same network
// conditions a real conversion would hit.
func EstimateSize(ctx context.Context, in Input, opts Options) (int64, error) {
	if in.ManifestURL == "" && in.ManifestData == nil {
		return 0, ErrNoManifestSource
	}
	fc := opts.FetchClient
	if fc == nil {
		fc = fetch.NewClient(fetch.NewRateLimitRegistry(), opts.MaxRetries, opts.logger(), opts.recorder())
	}

	manifestData := in.ManifestData
	if manifestData == nil {
		data, _, err := fc.Get(ctx, in.ManifestURL)
		if err != nil {
			return 0, fmt.Errorf("convert: fetching manifest: %w", err)
		}
		manifestData = data
	}
	manifest, err := iiif.Parse(manifestData)
	if err != nil {
		return 0, fmt.Errorf("convert: parsing manifest: %w", err)
	}
	canvases, err := iiif.ResolveCanvases(manifest, opts.CanvasFilter)
	if err != nil {
		return 0, fmt.Errorf("convert: resolving canvases: %w", err)
	}

	sem := semaphore.NewWeighted(int64(opts.concurrency()))
	group, gctx := errgroup.WithContext(ctx)
	totals := make([]int64, len(canvases))
	for i, cd := range canvases {
		i, cd := i, cd
		group.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			totals[i] = estimateCanvasBytes(gctx, fc, opts.scale(), cd)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}

	var total int64
	for _, n := range totals {
		total += n
	}
	return total, nil
}

// estimateCanvasBytes fetches (but discards, beyond their length) every
// image and OCR resource a real RenderPage call for cd would need.
// Fetch failures are swallowed, mirroring Run's non-aborting treatment of
// a single canvas's missing input: an estimate is a lower bound, not a
// guarantee.
func estimateCanvasBytes(ctx context.Context, fc *fetch.Client, scale float64, cd iiif.CanvasDescriptor) int64 {
	var total int64
	for _, placement := range cd.Images {
		if placement.Choice && !placement.IsDefault {
			continue
		}
		if placement.Format == "unsupported" {
			continue
		}
		url := imageRequestURL(placement, cd, scale)
		data, _, err := fc.Get(ctx, url)
		if err == nil {
			total += int64(len(data))
		}
	}
	if cd.OCR != nil {
		data, _, err := fc.Get(ctx, cd.OCR.URL)
		if err == nil {
			total += int64(len(data))
		}
	}
	return total
}
