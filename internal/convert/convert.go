package convert

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/iiifstream/pdfstream/internal/fetch"
	"github.com/iiifstream/pdfstream/internal/iiif"
	"github.com/iiifstream/pdfstream/internal/ocr"
	"github.com/iiifstream/pdfstream/internal/pdfgen"
	"github.com/iiifstream/pdfstream/internal/pdfio"
)

// Run drives one conversion end to end: fetch and normalise the manifest,
// resolve canvases, fan image/OCR fetches out through a bounded concurrent
// queue, then write pages through the PDF generator in declared canvas
// order while the remaining fetches continue in the background.
func Run(ctx context.Context, sink io.Writer, in Input, opts Options) (Result, error) {
	if in.ManifestURL == "" && in.ManifestData == nil {
		return Result{}, ErrNoManifestSource
	}
	start := time.Now()
	fc := opts.FetchClient
	if fc == nil {
		fc = fetch.NewClient(fetch.NewRateLimitRegistry(), opts.MaxRetries, opts.logger(), opts.recorder())
	}

	manifestData := in.ManifestData
	if manifestData == nil {
		data, _, err := fc.Get(ctx, in.ManifestURL)
		if err != nil {
			return Result{}, fmt.Errorf("convert: fetching manifest: %w", err)
		}
		manifestData = data
	}
	manifest, err := iiif.Parse(manifestData)
	if err != nil {
		return Result{}, fmt.Errorf("convert: parsing manifest: %w", err)
	}

	canvases, err := iiif.ResolveCanvases(manifest, opts.CanvasFilter)
	if err != nil {
		return Result{}, fmt.Errorf("convert: resolving canvases: %w", err)
	}

	language := opts.resolveLanguage()
	opts.logger().Debug("convert: resolved language preference", "language", language, "manifest", manifest.Label())

	survives := func(id string) bool {
		for _, c := range canvases {
			if c.ID == id {
				return true
			}
		}
		return false
	}
	var outlineSpecs []pdfgen.OutlineSpec
	if opts.Outline {
		outlineItems := iiif.BuildOutline(manifest, survives)
		outlineSpecs = buildOutlineSpecs(outlineItems, canvases)
	}

	tasks := make([]*canvasTask, len(canvases))
	for i, cd := range canvases {
		tasks[i] = &canvasTask{desc: cd}
	}

	// Each task's own done channel is its "future": the per-canvas loop
	// below awaits them strictly in declared canvas order, even though
	// the underlying fetches race ahead (bounded by sem) in any order.
	// errgroup additionally cancels gctx the moment any future fails,
	// which only happens here when ctx itself is cancelled.
	sem := semaphore.NewWeighted(int64(opts.concurrency()))
	group, gctx := errgroup.WithContext(ctx)
	done := make([]chan struct{}, len(tasks))
	for idx, t := range tasks {
		t := t
		d := make(chan struct{})
		done[idx] = d
		group.Go(func() error {
			defer close(d)
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			fetchCanvas(gctx, fc, opts.scale(), t)
			return nil
		})
	}

	sink2 := pdfio.NewSink(sink)
	gen := pdfgen.New(sink2, opts.HiddenText)

	pageSpecs := make([]pdfgen.PageSpec, len(tasks))
	for i, t := range tasks {
		pageSpecs[i] = pdfgen.PageSpec{ImageCount: len(t.desc.Images)}
	}
	if err := gen.Setup(pageSpecs, outlineSpecs); err != nil {
		return Result{}, fmt.Errorf("convert: generator setup: %w", err)
	}

	if opts.CoverPage != nil {
		coverBytes, err := opts.CoverPage.resolve(ctx, fc)
		if err != nil {
			return Result{}, fmt.Errorf("convert: rendering cover page: %w", err)
		}
		if coverBytes != nil {
			if err := gen.InsertCoverPages(coverBytes); err != nil {
				return Result{}, fmt.Errorf("convert: inserting cover pages: %w", err)
			}
		}
	}

	var result Result
	emit := func(stage Stage, pageErr *PageError) {
		if opts.Progress == nil {
			return
		}
		elapsed := time.Since(start).Seconds()
		bps := 0.0
		written := sink2.BytesWritten()
		if elapsed > 0 {
			bps = float64(written) / elapsed
		}
		var predicted int64
		var eta time.Duration
		if result.PagesWritten > 0 && len(tasks) > 0 {
			predicted = written * int64(len(tasks)) / int64(result.PagesWritten)
			if bps > 0 && predicted > written {
				eta = time.Duration(float64(predicted-written)/bps) * time.Second
			}
		}
		opts.Progress(Progress{
			Stage:               stage,
			PagesWritten:        result.PagesWritten,
			PagesTotal:          len(tasks),
			BytesFetched:        fetchedTotal(tasks),
			BytesWritten:        written,
			PredictedTotalBytes: predicted,
			BytesPerSecond:      bps,
			ETA:                 eta,
			PageError:           pageErr,
		})
	}

	for i, t := range tasks {
		select {
		case <-done[i]:
		case <-ctx.Done():
			_ = group.Wait()
			return Result{}, ctx.Err()
		}

		var images []pdfgen.PlacedImage
		var ocrPage *ocr.Page
		if t.err != nil {
			pageErr := &PageError{CanvasIndex: i, CanvasID: t.desc.ID, Err: t.err}
			result.PageErrors = append(result.PageErrors, pageErr)
			emit(StageFetching, pageErr)
		}
		images = placedImages(t)
		ocrPage = t.ocrPage

		ppi := t.desc.PPI
		if ppi <= 0 {
			ppi = 300
		}
		if err := gen.RenderPage(i, t.desc.Width, t.desc.Height, ppi, images, ocrPage); err != nil {
			return Result{}, fmt.Errorf("convert: rendering canvas %d (%s): %w", i, t.desc.ID, err)
		}
		result.PagesWritten++
		if err := sink2.WaitForDrain(ctx); err != nil {
			return Result{}, err
		}
		emit(StageRendering, nil)
	}

	if err := group.Wait(); err != nil {
		return Result{}, err
	}

	if err := gen.End(); err != nil {
		return Result{}, fmt.Errorf("convert: finalising: %w", err)
	}
	emit(StageFinishing, nil)

	result.BytesWritten = sink2.BytesWritten()
	result.Duration = time.Since(start)
	return result, nil
}

func fetchedTotal(tasks []*canvasTask) int64 {
	var total int64
	for _, t := range tasks {
		total += t.bytesFetched
	}
	return total
}

// buildOutlineSpecs resolves each outline item's canvas id to the
// surviving canvas's post-filter index. Every item is kept: one whose
// canvas was filtered out (or is unknown) gets PageIndex -1, and the
// generator writes it as a bookmark without a destination.
func buildOutlineSpecs(items []iiif.OutlineItem, canvases []iiif.CanvasDescriptor) []pdfgen.OutlineSpec {
	index := make(map[string]int, len(canvases))
	for i, c := range canvases {
		index[c.ID] = i
	}
	var build func([]iiif.OutlineItem) []pdfgen.OutlineSpec
	build = func(items []iiif.OutlineItem) []pdfgen.OutlineSpec {
		specs := make([]pdfgen.OutlineSpec, 0, len(items))
		for _, it := range items {
			idx, ok := index[it.CanvasID]
			if !ok {
				idx = -1
			}
			specs = append(specs, pdfgen.OutlineSpec{
				Label:     it.Label,
				PageIndex: idx,
				Children:  build(it.Children),
			})
		}
		return specs
	}
	return build(items)
}
