package iiif

import (
	"fmt"
	"math"
)

// SelectSize builds the IIIF Image API request URL to fetch, given a
// service descriptor, the canvas's native width, and a desired scale
// factor in (0, 1].
func SelectSize(svc *ImageService, maxWidth int, scale float64) string {
	if scale <= 0 || scale > 1 {
		scale = 1
	}
	w := int(math.Floor(scale * float64(maxWidth)))
	if w < 1 {
		w = 1
	}

	if svc == nil {
		return ""
	}

	if svc.Level >= 2 {
		return fmt.Sprintf("%s/full/%d,/0/default.jpg", svc.ID, w)
	}
	if len(svc.Sizes) > 0 {
		best := closestWidthAtMost(svc.Sizes, w)
		return fmt.Sprintf("%s/full/%d,/0/default.jpg", svc.ID, best)
	}
	token := "max"
	if svc.Level == 1 {
		token = "full"
	}
	return fmt.Sprintf("%s/full/%s/0/default.jpg", svc.ID, token)
}

// closestWidthAtMost finds the size whose width is closest to (but not
// exceeding) target; if every size exceeds target, the smallest available
// width is used.
func closestWidthAtMost(sizes []ImageSize, target int) int {
	best := -1
	smallest := sizes[0].Width
	for _, s := range sizes {
		if s.Width < smallest {
			smallest = s.Width
		}
		if s.Width <= target && s.Width > best {
			best = s.Width
		}
	}
	if best == -1 {
		return smallest
	}
	return best
}
