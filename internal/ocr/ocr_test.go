package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHOCRScalesCoordinates(t *testing.T) {
	doc := `<!DOCTYPE html>
<html><body>
<div class="ocr_page" title="bbox 0 0 580 800">
  <span class="ocr_line" title="bbox 30 40 200 70">
    <span class="ocrx_word" title="bbox 30 40 100 70">Hello</span>
  </span>
</div>
</body></html>`
	page, err := ParseHOCR([]byte(doc), 290, 400, nil)
	require.NoError(t, err)
	require.Len(t, page.Lines, 1)
	line := page.Lines[0]
	assert.InDelta(t, 15, line.X, 0.01)
	assert.InDelta(t, 20, line.Y, 0.01)
	assert.InDelta(t, 85, line.Width, 0.01)
	assert.InDelta(t, 15, line.Height, 0.01)
	require.Len(t, line.Spans, 1)
	assert.Equal(t, "Hello\n", line.Spans[0].Text)
}

func TestParseHOCRNoPage(t *testing.T) {
	_, err := ParseHOCR([]byte("<html><body>nothing here</body></html>"), 100, 100, nil)
	assert.ErrorIs(t, err, ErrNoPage)
}

func TestParseHOCRInsertsExtraSpanBetweenWords(t *testing.T) {
	doc := `<html><body>
<div class="ocr_page" title="bbox 0 0 100 100">
  <span class="ocr_line" title="bbox 0 0 100 20">
    <span class="ocrx_word" title="bbox 0 0 20 20">one</span>
    <span class="ocrx_word" title="bbox 30 0 50 20">two</span>
  </span>
</div>
</body></html>`
	page, err := ParseHOCR([]byte(doc), 100, 100, nil)
	require.NoError(t, err)
	spans := page.Lines[0].Spans
	require.Len(t, spans, 3)
	assert.True(t, spans[1].IsExtra)
	assert.InDelta(t, 10, spans[1].Width, 0.01)
}

const sampleALTO = `<?xml version="1.0"?>
<alto>
  <Description><MeasurementUnit>pixel</MeasurementUnit></Description>
  <Layout>
    <Page WIDTH="290" HEIGHT="400">
      <PrintSpace>
        <TextBlock>
          <TextLine HPOS="10" VPOS="20" WIDTH="80" HEIGHT="15">
            <String CONTENT="Hello" HPOS="10" VPOS="20" WIDTH="40" HEIGHT="15"/>
            <SP WIDTH="5" HPOS="50"/>
            <String CONTENT="world" HPOS="55" VPOS="20" WIDTH="35" HEIGHT="15"/>
          </TextLine>
        </TextBlock>
      </PrintSpace>
    </Page>
  </Layout>
</alto>`

func TestParseALTOBasic(t *testing.T) {
	page, err := ParseALTO([]byte(sampleALTO), 290, 400)
	require.NoError(t, err)
	require.Len(t, page.Lines, 1)
	spans := page.Lines[0].Spans
	require.Len(t, spans, 3)
	assert.Equal(t, "Hello", spans[0].Text)
	assert.True(t, spans[1].IsExtra)
	assert.Equal(t, "world\n", spans[2].Text)
}

func TestParseALTONonPixelUnitScalesIndependently(t *testing.T) {
	doc := `<alto>
  <Description><MeasurementUnit>mm10</MeasurementUnit></Description>
  <Layout>
    <Page WIDTH="100" HEIGHT="200">
      <PrintSpace>
        <TextBlock>
          <TextLine HPOS="10" VPOS="10" WIDTH="20" HEIGHT="20">
            <String CONTENT="x" HPOS="10" VPOS="10" WIDTH="20" HEIGHT="20"/>
          </TextLine>
        </TextBlock>
      </PrintSpace>
    </Page>
  </Layout>
</alto>`
	page, err := ParseALTO([]byte(doc), 200, 1000)
	require.NoError(t, err)
	line := page.Lines[0]
	assert.InDelta(t, 20, line.X, 0.01)  // 10 * (200/100)
	assert.InDelta(t, 50, line.Y, 0.01)  // 10 * (1000/200)
}

func TestLooksLikeALTO(t *testing.T) {
	assert.True(t, LooksLikeALTO([]byte(sampleALTO)))
	assert.False(t, LooksLikeALTO([]byte("<html><body class=\"ocr_page\"></body></html>")))
}
