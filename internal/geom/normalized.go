package geom

import "math"

// NormalizedRect expresses a region of a page as fractions of the page's
// rendered box. Persisted highlights and paragraph markers store this form
// so geometry survives scale changes without recomputation.
type NormalizedRect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Selection rectangles reported by overlapping ranges can describe the same
// glyph row twice; rounding to five decimals before comparing makes those
// duplicates bit-identical.
const dedupDecimals = 5

func round5(v float64) float64 {
	const p = 1e5
	return math.Round(v*p) / p
}

// Clamp returns n with every component forced into [0,1] and the extents
// trimmed so left+width and top+height never exceed 1.
func (n NormalizedRect) Clamp() NormalizedRect {
	clamp01 := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}
	out := NormalizedRect{
		Left:   clamp01(n.Left),
		Top:    clamp01(n.Top),
		Width:  clamp01(n.Width),
		Height: clamp01(n.Height),
	}
	if out.Left+out.Width > 1 {
		out.Width = 1 - out.Left
	}
	if out.Top+out.Height > 1 {
		out.Height = 1 - out.Top
	}
	return out
}

func (n NormalizedRect) rounded() NormalizedRect {
	return NormalizedRect{
		Left:   round5(n.Left),
		Top:    round5(n.Top),
		Width:  round5(n.Width),
		Height: round5(n.Height),
	}
}

// DedupRects clamps every rect and drops entries that are identical after
// five-decimal rounding, preserving first-seen order.
func DedupRects(rects []NormalizedRect) []NormalizedRect {
	seen := make(map[NormalizedRect]bool, len(rects))
	out := make([]NormalizedRect, 0, len(rects))
	for _, r := range rects {
		key := r.Clamp().rounded()
		if key.Width == 0 || key.Height == 0 {
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

// UnionNormalized returns the bounding box of a set of normalized rects,
// used to draw the focus outline around a selected highlight.
func UnionNormalized(rects []NormalizedRect) NormalizedRect {
	var u Rect
	for _, n := range rects {
		u = u.Union(Rect{X: n.Left, Y: n.Top, W: n.Width, H: n.Height})
	}
	return NormalizedRect{Left: u.X, Top: u.Y, Width: u.W, Height: u.H}
}
