package viewport

import "github.com/lectern-app/lectern/internal/geom"

// Layout constants in logical pixels.
const (
	pageGap      = 16.0
	columnMargin = 24.0
)

// Layout positions the page column in document space (y grows downward
// from 0 at the top of page one's margin). It is rebuilt whenever the
// scale or the page set changes, never per query.
type Layout struct {
	scale   float64
	widest  float64
	rects   []geom.Rect
	totalH  float64
	viewW   float64
	centerX bool
}

// Reflow recomputes every page rectangle at the given scale. Pages are
// centered horizontally inside viewW when they are narrower than it.
func (l *Layout) Reflow(pages []*Page, scale, viewW float64) {
	l.scale = scale
	l.viewW = viewW
	l.rects = make([]geom.Rect, len(pages))
	l.widest = 0
	y := columnMargin
	for i, p := range pages {
		w := p.Intrinsic.W * scale
		h := p.Intrinsic.H * scale
		x := columnMargin
		if w < viewW {
			x = (viewW - w) / 2
		}
		l.rects[i] = geom.Rect{X: x, Y: y, W: w, H: h}
		if w > l.widest {
			l.widest = w
		}
		y += h + pageGap
	}
	l.totalH = y - pageGap + columnMargin
	if len(pages) == 0 {
		l.totalH = 0
	}
}

// PageRect returns the document-space rectangle of a 1-based page and
// whether the page is laid out yet.
func (l *Layout) PageRect(n int) (geom.Rect, bool) {
	if n < 1 || n > len(l.rects) {
		return geom.Rect{}, false
	}
	return l.rects[n-1], true
}

// PageAtY returns the 1-based page whose vertical span contains the
// document-space y coordinate.
func (l *Layout) PageAtY(y float64) (int, bool) {
	for i, r := range l.rects {
		if r.ContainsY(y) {
			return i + 1, true
		}
	}
	return 0, false
}

// VisibleRange returns the inclusive 1-based page range intersecting
// [top-buffer, top+height+buffer). A false return means no page
// intersects (empty document).
func (l *Layout) VisibleRange(top, height, buffer float64) (int, int, bool) {
	lo, hi := 0, 0
	spanTop := top - buffer
	spanBottom := top + height + buffer
	for i, r := range l.rects {
		if r.IntersectsSpan(spanTop, spanBottom) {
			if lo == 0 {
				lo = i + 1
			}
			hi = i + 1
		} else if lo != 0 {
			break
		}
	}
	return lo, hi, lo != 0
}

// TotalHeight is the full document-space height at the current scale.
func (l *Layout) TotalHeight() float64 { return l.totalH }

// Scale is the scale the layout was last reflowed at.
func (l *Layout) Scale() float64 { return l.scale }
