package geom

// The mapper is a pure set of conversions; callers supply the page's
// screen offset (scroll position plus cumulative preceding page heights)
// and the page's current rendered box. Nothing here keeps state.

// IntrinsicToScreen converts a point in intrinsic units to logical screen
// pixels for a page whose container sits at pageOffset.
func IntrinsicToScreen(p Point, scale float64, pageOffset Point) Point {
	return Point{X: pageOffset.X + p.X*scale, Y: pageOffset.Y + p.Y*scale}
}

// IntrinsicRectToScreen converts a rectangle in intrinsic units to logical
// screen pixels.
func IntrinsicRectToScreen(r Rect, scale float64, pageOffset Point) Rect {
	return Rect{
		X: pageOffset.X + r.X*scale,
		Y: pageOffset.Y + r.Y*scale,
		W: r.W * scale,
		H: r.H * scale,
	}
}

// FractionToScreen converts a normalized rect to logical screen pixels
// given the page's current rendered box size and offset.
func FractionToScreen(n NormalizedRect, box Size, pageOffset Point) Rect {
	return Rect{
		X: pageOffset.X + n.Left*box.W,
		Y: pageOffset.Y + n.Top*box.H,
		W: n.Width * box.W,
		H: n.Height * box.H,
	}
}

// ScreenToFraction is the inverse of FractionToScreen. The result is
// clamped so persisted geometry always stays inside the page.
func ScreenToFraction(r Rect, box Size, pageOffset Point) NormalizedRect {
	if box.W <= 0 || box.H <= 0 {
		return NormalizedRect{}
	}
	return NormalizedRect{
		Left:   (r.X - pageOffset.X) / box.W,
		Top:    (r.Y - pageOffset.Y) / box.H,
		Width:  r.W / box.W,
		Height: r.H / box.H,
	}.Clamp()
}

// NormalizeSelection converts the client rectangles of a text selection
// into deduplicated normalized rects ready to persist.
func NormalizeSelection(rects []Rect, box Size, pageOffset Point) []NormalizedRect {
	out := make([]NormalizedRect, 0, len(rects))
	for _, r := range rects {
		out = append(out, ScreenToFraction(r, box, pageOffset))
	}
	return DedupRects(out)
}
