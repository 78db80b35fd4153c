package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// renderHTMLCoverPage returns a CoverPageSource.Render function that
// prints html to PDF through a headless Chrome instance, for callers that
// supply a cover-page template inline rather than an already-rendered PDF
// or an external rendering endpoint.
func renderHTMLCoverPage(html string) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
		defer cancelAlloc()
		taskCtx, cancelTask := chromedp.NewContext(allocCtx)
		defer cancelTask()
		taskCtx, cancelTimeout := context.WithTimeout(taskCtx, 20*time.Second)
		defer cancelTimeout()

		dataURL := "data:text/html," + url.PathEscape(html)
		var pdfBytes []byte
		err := chromedp.Run(taskCtx,
			chromedp.Navigate(dataURL),
			chromedp.ActionFunc(func(ctx context.Context) error {
				buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
				if err != nil {
					return err
				}
				pdfBytes = buf
				return nil
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("cover page: rendering html via chromedp: %w", err)
		}
		return pdfBytes, nil
	}
}
