// Package iiif implements the IIIF Presentation model adapter: resolving
// canvases, image placements, OCR references, physical-dimensions
// services, and outline ranges from a normalised (v2-upgraded) manifest.
package iiif

import (
	"encoding/json"
	"fmt"
)

// node is a raw JSON object, used throughout this package because IIIF
// manifests mix v2 and v3 field spellings that a fixed struct would have
// to duplicate for every field anyway.
type node = map[string]any

// Manifest wraps the normalised (v3-shaped) top-level manifest object.
type Manifest struct {
	raw node
}

// Parse unmarshals data and upgrades a v2 manifest to the v3 field subset
// this package consults.
func Parse(data []byte) (*Manifest, error) {
	var raw node
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("iiif: manifest-malformed: %w", err)
	}
	upgradeV2(raw)
	return &Manifest{raw: raw}, nil
}

// upgradeV2 mutates raw in place: sequences[0].canvases -> items,
// "@id" -> "id", "@type" -> "type", recursively, wherever these v2
// spellings are found nested under items/canvases/images/resources.
func upgradeV2(raw node) {
	normalizeIDType(raw)
	if _, hasItems := raw["items"]; hasItems {
		return
	}
	seqs, _ := raw["sequences"].([]any)
	if len(seqs) == 0 {
		return
	}
	seq0, _ := seqs[0].(node)
	if seq0 == nil {
		return
	}
	canvases, _ := seq0["canvases"].([]any)
	items := make([]any, 0, len(canvases))
	for _, c := range canvases {
		cn, ok := c.(node)
		if !ok {
			continue
		}
		upgradeV2Canvas(cn)
		items = append(items, cn)
	}
	raw["items"] = items
}

func upgradeV2Canvas(cn node) {
	normalizeIDType(cn)
	images, _ := cn["images"].([]any)
	if images == nil {
		return
	}
	var annotations []any
	for _, im := range images {
		imn, ok := im.(node)
		if !ok {
			continue
		}
		normalizeIDType(imn)
		if imn["motivation"] == nil {
			imn["motivation"] = "painting"
		}
		if res, ok := imn["resource"].(node); ok {
			normalizeIDType(res)
			imn["body"] = res
			delete(imn, "resource")
		}
		annotations = append(annotations, imn)
	}
	cn["items"] = []any{
		node{"type": "AnnotationPage", "items": annotations},
	}
}

// normalizeIDType rewrites "@id"/"@type" keys to "id"/"type" in place.
func normalizeIDType(n node) {
	if n == nil {
		return
	}
	if v, ok := n["@id"]; ok {
		if _, hasID := n["id"]; !hasID {
			n["id"] = v
		}
		delete(n, "@id")
	}
	if v, ok := n["@type"]; ok {
		if _, hasType := n["type"]; !hasType {
			n["type"] = v
		}
		delete(n, "@type")
	}
}

func getString(n node, key string) string {
	if v, ok := n[key].(string); ok {
		return v
	}
	return ""
}

func getFloat(n node, key string) float64 {
	switch v := n[key].(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

func asNodeSlice(v any) []node {
	arr, _ := v.([]any)
	out := make([]node, 0, len(arr))
	for _, e := range arr {
		if n, ok := e.(node); ok {
			out = append(out, n)
		}
	}
	return out
}

// Items returns the top-level canvas list (post v2-upgrade).
func (m *Manifest) Items() []node {
	return asNodeSlice(m.raw["items"])
}

// Structures returns the top-level ranges list.
func (m *Manifest) Structures() []node {
	return asNodeSlice(m.raw["structures"])
}

// Start returns the manifest-level start descriptor, if any.
func (m *Manifest) Start() node {
	n, _ := m.raw["start"].(node)
	return n
}

// Label returns the manifest's label, collapsing a IIIF language map to
// its first value.
func (m *Manifest) Label() string {
	return labelString(m.raw["label"])
}

func labelString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case node:
		for _, vals := range t {
			if arr, ok := vals.([]any); ok && len(arr) > 0 {
				if s, ok := arr[0].(string); ok {
					return s
				}
			}
		}
	}
	return ""
}
