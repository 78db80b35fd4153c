package iiif

// OutlineItem is one bookmark entry, with its target canvas resolved to a
// canvas ID (left for the caller/H to map to an actual page reference).
type OutlineItem struct {
	Label    string
	CanvasID string
	Fragment *Rect
	Children []OutlineItem
}

// BuildOutline walks structures, preferring a behavior=top range as the
// outline root if one exists, and resolves each range's start canvas.
// survives reports whether a canvas id passed the caller's canvas filter;
// ranges with no surviving canvas and no surviving children are dropped.
func BuildOutline(m *Manifest, survives func(canvasID string) bool) []OutlineItem {
	structures := m.Structures()
	if len(structures) == 0 {
		return nil
	}

	roots := structures
	for _, s := range structures {
		if hasTopBehavior(s) {
			roots = asNodeSlice(s["items"])
			break
		}
	}

	visited := make(map[string]bool)
	var out []OutlineItem
	for _, r := range roots {
		if item, ok := buildRange(r, survives, visited); ok {
			out = append(out, item)
		}
	}
	return out
}

func hasTopBehavior(n node) bool {
	switch v := n["behavior"].(type) {
	case string:
		return v == "top"
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && s == "top" {
				return true
			}
		}
	}
	return false
}

func buildRange(r node, survives func(string) bool, visited map[string]bool) (OutlineItem, bool) {
	id := getString(r, "id")
	if id != "" {
		if visited[id] {
			return OutlineItem{}, false
		}
		visited[id] = true
	}

	item := OutlineItem{Label: labelString(r["label"])}

	canvasID, frag := resolveStart(r, survives)
	childItems := r["items"]
	if canvasID == "" {
		canvasID = firstSurvivingCanvas(childItems, survives, visited)
	}
	item.CanvasID = canvasID
	item.Fragment = frag

	for _, child := range asNodeSlice(childItems) {
		if getString(child, "type") != "Range" {
			continue
		}
		if ci, ok := buildRange(child, survives, visited); ok {
			item.Children = append(item.Children, ci)
		}
	}

	if item.CanvasID == "" && len(item.Children) == 0 {
		return OutlineItem{}, false
	}
	return item, true
}

// resolveStart inspects a range's explicit "start" descriptor, returning
// its canvas id and any fragment (region-in-canvas selector), if the
// target canvas survives the caller's filter.
func resolveStart(r node, survives func(string) bool) (string, *Rect) {
	start, ok := r["start"].(node)
	if !ok {
		if s, ok := r["start"].(string); ok {
			id, frag := splitFragment(s)
			if survives == nil || survives(id) {
				return id, frag
			}
			return "", nil
		}
		return "", nil
	}
	id := getString(start, "id")
	if id == "" {
		return "", nil
	}
	canvasID, frag := splitFragment(id)
	if survives != nil && !survives(canvasID) {
		return "", nil
	}
	return canvasID, frag
}

// splitFragment separates a canvas URI from its "#xywh=" media fragment.
func splitFragment(uri string) (string, *Rect) {
	idx := -1
	for i := 0; i < len(uri); i++ {
		if uri[i] == '#' {
			idx = i
			break
		}
	}
	if idx == -1 {
		return uri, nil
	}
	base := uri[:idx]
	frag := uri[idx+1:]
	var x, y, w, h float64
	if n, _ := parseXYWH(frag, &x, &y, &w, &h); n {
		return base, &Rect{X: x, Y: y, W: w, H: h}
	}
	return base, nil
}

func parseXYWH(frag string, x, y, w, h *float64) (bool, error) {
	const prefix = "xywh="
	if len(frag) <= len(prefix) || frag[:len(prefix)] != prefix {
		return false, nil
	}
	vals := frag[len(prefix):]
	var parts []float64
	cur := ""
	for _, r := range vals + "," {
		if r == ',' {
			f, err := parseFloatStrict(cur)
			if err != nil {
				return false, err
			}
			parts = append(parts, f)
			cur = ""
			continue
		}
		cur += string(r)
	}
	if len(parts) != 4 {
		return false, nil
	}
	*x, *y, *w, *h = parts[0], parts[1], parts[2], parts[3]
	return true, nil
}

func parseFloatStrict(s string) (float64, error) {
	var f float64
	var sign float64 = 1
	i := 0
	if i < len(s) && s[i] == '-' {
		sign = -1
		i++
	}
	seenDigit := false
	whole := 0.0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		whole = whole*10 + float64(s[i]-'0')
		seenDigit = true
	}
	frac := 0.0
	div := 1.0
	if i < len(s) && s[i] == '.' {
		i++
		for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
			frac = frac*10 + float64(s[i]-'0')
			div *= 10
			seenDigit = true
		}
	}
	if !seenDigit {
		return 0, errNotANumber
	}
	f = sign * (whole + frac/div)
	return f, nil
}

// firstSurvivingCanvas returns the ordinally-first Canvas-typed item under
// childItems that survives the caller's filter.
func firstSurvivingCanvas(childItems any, survives func(string) bool, visited map[string]bool) string {
	for _, child := range asNodeSlice(childItems) {
		t := getString(child, "type")
		if t == "Canvas" {
			id := getString(child, "id")
			if survives == nil || survives(id) {
				return id
			}
			continue
		}
		if t == "Range" {
			// descend into nested range's own items looking for the first
			// surviving canvas, without mutating the visited set used for
			// cycle detection at the outline-item level.
			if id := firstSurvivingCanvas(child["items"], survives, visited); id != "" {
				return id
			}
		}
	}
	return ""
}

type simpleError string

func (e simpleError) Error() string { return string(e) }

const errNotANumber = simpleError("iiif: not a number")
