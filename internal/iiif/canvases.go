package iiif

import (
	"strings"
)

// CanvasDescriptor is a page to render, derived from the manifest before
// rendering begins and immutable thereafter.
type CanvasDescriptor struct {
	ID     string
	Width  float64
	Height float64
	PPI    float64
	Label  string
	Index  int
	Images []ImagePlacement
	OCR    *OCRRef
	Start  *Rect // start-position fragment, if the manifest's "start" targets this canvas
}

// ImagePlacement is one image to paint on a canvas.
type ImagePlacement struct {
	Source    string // content-resource id
	Service   *ImageService
	X, Y      float64
	W, H      float64 // destination rectangle in canvas pixels
	NativeW   int
	NativeH   int
	Format    string // "jpeg", "png", or "unsupported"
	Choice    bool
	Enabled   bool
	IsDefault bool
}

// ImageService describes a IIIF Image API service associated with a
// content resource, resolved during size selection.
type ImageService struct {
	ID      string
	Profile string
	Level   int
	Sizes   []ImageSize
}

// ImageSize is one entry of a IIIF Image API service's "sizes" array.
type ImageSize struct {
	Width  int
	Height int
}

// OCRRef points at hOCR or ALTO OCR content for a canvas.
type OCRRef struct {
	URL    string
	Format string // "hocr" or "alto"
}

// Rect is a destination rectangle, used both for image placements and
// outline start-position fragments.
type Rect struct{ X, Y, W, H float64 }

// ResolveCanvases enumerates canvases in declared order, applying filter
// (nil means "keep everything"), and resolves each surviving canvas's
// image placements and OCR reference.
func ResolveCanvases(m *Manifest, filter func(index int, id string) bool) ([]CanvasDescriptor, error) {
	items := m.Items()
	var out []CanvasDescriptor
	for i, cn := range items {
		id := getString(cn, "id")
		if filter != nil && !filter(i, id) {
			continue
		}
		cd := CanvasDescriptor{
			ID:     id,
			Width:  getFloat(cn, "width"),
			Height: getFloat(cn, "height"),
			PPI:    ResolvePPI(cn),
			Label:  labelString(cn["label"]),
			Index:  i,
		}
		cd.Images = collectPaintingImages(cn)
		cd.OCR = findOCRRef(cn)
		out = append(out, cd)
	}
	return out, nil
}

// collectPaintingImages walks items[].items[] annotations with
// motivation=painting, expanding Choice bodies into one placement per
// choice item.
func collectPaintingImages(canvas node) []ImagePlacement {
	var placements []ImagePlacement
	for _, page := range asNodeSlice(canvas["items"]) {
		for _, anno := range asNodeSlice(page["items"]) {
			motivation := getString(anno, "motivation")
			if motivation != "painting" {
				continue
			}
			bodyRaw := anno["body"]
			placements = append(placements, expandBody(bodyRaw)...)
		}
	}
	return placements
}

func expandBody(bodyRaw any) []ImagePlacement {
	switch b := bodyRaw.(type) {
	case node:
		if getString(b, "type") == "Choice" {
			return expandChoice(b)
		}
		return []ImagePlacement{placementFromBody(b, false, true)}
	case []any:
		var out []ImagePlacement
		for _, e := range b {
			if bn, ok := e.(node); ok {
				out = append(out, placementFromBody(bn, false, true))
			}
		}
		return out
	}
	return nil
}

func expandChoice(choice node) []ImagePlacement {
	items := asNodeSlice(choice["items"])
	defaultID := getString(choice, "default")
	var out []ImagePlacement
	for i, item := range items {
		isDefault := defaultID != "" && getString(item, "id") == defaultID
		if defaultID == "" && i == 0 {
			isDefault = true
		}
		p := placementFromBody(item, true, isDefault)
		out = append(out, p)
	}
	return out
}

func placementFromBody(body node, choice, isDefault bool) ImagePlacement {
	p := ImagePlacement{
		Source:    getString(body, "id"),
		NativeW:   int(getFloat(body, "width")),
		NativeH:   int(getFloat(body, "height")),
		Format:    classifyFormat(getString(body, "format"), getString(body, "id")),
		Choice:    choice,
		Enabled:   true,
		IsDefault: isDefault,
	}
	if svc := firstService(body["service"]); svc != nil {
		p.Service = svc
	}
	return p
}

func classifyFormat(mime, id string) string {
	switch {
	case strings.Contains(mime, "jpeg") || strings.HasSuffix(strings.ToLower(id), ".jpg") || strings.HasSuffix(strings.ToLower(id), ".jpeg"):
		return "jpeg"
	case strings.Contains(mime, "png") || strings.HasSuffix(strings.ToLower(id), ".png"):
		return "png"
	default:
		return "unsupported"
	}
}

func firstService(v any) *ImageService {
	var svcNode node
	switch t := v.(type) {
	case node:
		svcNode = t
	case []any:
		if len(t) > 0 {
			svcNode, _ = t[0].(node)
		}
	}
	if svcNode == nil {
		return nil
	}
	svc := &ImageService{
		ID:      firstNonEmpty(getString(svcNode, "id"), getString(svcNode, "@id")),
		Profile: profileString(svcNode["profile"]),
	}
	if strings.Contains(svc.Profile, "level2") || strings.Contains(svc.Profile, "level1") {
		if strings.Contains(svc.Profile, "level2") {
			svc.Level = 2
		} else {
			svc.Level = 1
		}
	}
	for _, s := range asNodeSlice(svcNode["sizes"]) {
		svc.Sizes = append(svc.Sizes, ImageSize{
			Width:  int(getFloat(s, "width")),
			Height: int(getFloat(s, "height")),
		})
	}
	return svc
}

func profileString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok {
				return s
			}
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ocrFormatOf maps a content resource's declared format/profile to our
// internal OCR format tag.
func ocrFormatOf(n node) string {
	format := getString(n, "format")
	profile := profileString(n["profile"])
	combined := strings.ToLower(format + " " + profile)
	switch {
	case strings.Contains(combined, "alto"):
		return "alto"
	case strings.Contains(combined, "hocr") || strings.Contains(combined, "html"):
		return "hocr"
	}
	return ""
}

// findOCRRef locates the first content resource under seeAlso or rendering
// whose format or profile indicates ALTO or hOCR.
func findOCRRef(canvas node) *OCRRef {
	for _, key := range []string{"seeAlso", "rendering"} {
		for _, n := range asNodeSlice(canvas[key]) {
			if f := ocrFormatOf(n); f != "" {
				return &OCRRef{URL: getString(n, "id"), Format: f}
			}
		}
		// seeAlso/rendering may also be a single object rather than an array
		if n, ok := canvas[key].(node); ok {
			if f := ocrFormatOf(n); f != "" {
				return &OCRRef{URL: getString(n, "id"), Format: f}
			}
		}
	}
	return nil
}

// ResolvePPI resolves a canvas's physical-dimensions service to a
// points-per-inch value, defaulting to 300 when absent or unrecognised.
func ResolvePPI(canvas node) float64 {
	const defaultPPI = 300
	services := canvas["service"]
	var candidates []node
	switch t := services.(type) {
	case node:
		candidates = []node{t}
	case []any:
		candidates = asNodeSlice(t)
	}
	for _, svc := range candidates {
		profile := profileString(svc["profile"])
		if !strings.Contains(profile, "physdim") {
			continue
		}
		unit := getString(svc, "physicalScale")
		scale := getFloat(svc, "physicalScale")
		if scale <= 0 {
			continue
		}
		switch getString(svc, "physicalUnits") {
		case "in":
			return 1 / scale
		case "mm":
			return 25.4 / scale
		case "cm":
			return 2.54 / scale
		default:
			_ = unit
		}
	}
	return defaultPPI
}
