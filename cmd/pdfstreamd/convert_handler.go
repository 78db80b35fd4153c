package main

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iiifstream/pdfstream/internal/middleware"
	"github.com/iiifstream/pdfstream/pkg/pdfstream"
)

// convertRequest is the JSON body accepted by POST /api/v1/convert and
// POST /api/v1/estimate.
type convertRequest struct {
	ManifestURL     string  `json:"manifest_url" binding:"required"`
	Language        string  `json:"language"`
	Scale           float64 `json:"scale"`
	Concurrency     int     `json:"concurrency"`
	MaxRetries      int     `json:"max_retries"`
	HiddenText      bool    `json:"hidden_text"`
	Outline         bool    `json:"outline"`
	CoverPageURL    string  `json:"cover_page_url"`
	CoverPageHTML   string  `json:"cover_page_html"`
	CanvasIndexFrom int     `json:"canvas_index_from"`
	CanvasIndexTo   int     `json:"canvas_index_to"`
}

func (r convertRequest) options(deps serverDeps) pdfstream.Options {
	opts := pdfstream.Options{
		Language:    r.Language,
		ScaleFactor: r.Scale,
		Concurrency: r.Concurrency,
		MaxRetries:  r.MaxRetries,
		HiddenText:  r.HiddenText,
		Outline:     r.Outline,
		Log:         deps.log,
		Metrics:     deps.rec,
	}
	if r.CanvasIndexTo > 0 || r.CanvasIndexFrom > 0 {
		from, to := r.CanvasIndexFrom, r.CanvasIndexTo
		opts.CanvasFilter = func(index int, id string) bool {
			if to > 0 && index > to {
				return false
			}
			return index >= from
		}
	}
	switch {
	case r.CoverPageHTML != "":
		opts.CoverPage = &pdfstream.CoverPageSource{
			Render: renderHTMLCoverPage(r.CoverPageHTML),
		}
	case r.CoverPageURL != "":
		opts.CoverPage = &pdfstream.CoverPageSource{Endpoint: r.CoverPageURL}
	}
	return opts
}

// handleConvert streams the generated PDF back to the client as chunked
// application/pdf, driven by c.Stream: the pipeline writes into one end of
// an io.Pipe while the stream callback drains the other end in lockstep.
func (deps serverDeps) handleConvert(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	middleware.LogAuthInfo(c, deps.log)

	pr, pw := io.Pipe()
	go func() {
		_, err := pdfstream.Convert(c.Request.Context(), pw, pdfstream.Input{ManifestURL: req.ManifestURL}, req.options(deps))
		pw.CloseWithError(err)
	}()

	c.Header("Content-Type", "application/pdf")
	c.Header("Transfer-Encoding", "chunked")
	buf := make([]byte, 32*1024)
	c.Stream(func(w io.Writer) bool {
		n, err := pr.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				deps.log.Warn("convert: client disconnected mid-stream", "error", werr)
				return false
			}
		}
		if err != nil {
			if err != io.EOF {
				deps.log.Error("convert: stream ended with error", "error", err)
			}
			return false
		}
		return true
	})
}

// handleEstimate reports a predicted output size without generating a PDF.
func (deps serverDeps) handleEstimate(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := pdfstream.EstimateSize(c.Request.Context(), pdfstream.Input{ManifestURL: req.ManifestURL}, req.options(deps))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"estimated_bytes": n})
}
