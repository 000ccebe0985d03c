package viewport

import "github.com/lectern-app/lectern/internal/geom"

// Anchor is the focal point captured before a scale change: a page plus
// the fractional offset of the point within that page's box. DestX/DestY
// are present only for pointer-driven zoom; ratioX may leave [0,1] because
// a page can be narrower than the viewport.
type Anchor struct {
	Page   int
	RatioX float64
	RatioY float64

	DestX   float64
	DestY   float64
	HasDest bool
}

// captureAnchorLocked records the anchor for the upcoming scale change.
// pointer is in viewport coordinates; nil means a button or typed zoom,
// which anchors the viewport's own center. A pointer over a content gap
// falls back to the first page at ratio (0, 0.5). An already-captured
// anchor is kept so rapid successive zooms share one focal point.
func (e *Engine) captureAnchorLocked(pointer *geom.Point) {
	if e.anchor != nil || len(e.pages) == 0 {
		return
	}
	a := &Anchor{}
	p := geom.Point{X: e.view.W / 2, Y: e.view.H / 2}
	if pointer != nil {
		p = *pointer
		a.DestX, a.DestY = p.X, p.Y
		a.HasDest = true
	}
	docY := e.scrollTop + p.Y
	docX := e.scrollLeft + p.X
	if n, ok := e.layout.PageAtY(docY); ok {
		r, _ := e.layout.PageRect(n)
		a.Page = n
		a.RatioY = (docY - r.Y) / r.H
		a.RatioX = (docX - r.X) / r.W
	} else {
		a.Page = 1
		a.RatioX = 0
		a.RatioY = 0.5
	}
	e.anchor = a
	e.pendingAnchor = true
}

// restoreAnchorLocked scrolls so the captured focal point lands back under
// the pointer (pointer-driven zoom) or the viewport center. It is a single
// instantaneous scroll assignment. When the anchor page's box is not laid
// out yet — a race during very fast successive zooms — the anchor is kept
// and the restore retried on the next layout or render completion rather
// than dropped.
func (e *Engine) restoreAnchorLocked() bool {
	if !e.pendingAnchor || e.anchor == nil {
		return false
	}
	a := e.anchor
	r, ok := e.layout.PageRect(a.Page)
	if !ok || r.H == 0 {
		return false
	}
	targetX := r.X + a.RatioX*r.W
	targetY := r.Y + a.RatioY*r.H
	if a.HasDest {
		e.scrollTop = targetY - a.DestY
		e.scrollLeft = targetX - a.DestX
	} else {
		e.scrollTop = targetY - e.view.H/2
		e.scrollLeft = targetX - e.view.W/2
	}
	e.clampScrollLocked()
	e.pendingAnchor = false
	e.anchor = nil
	e.lastSettledPage = a.Page
	return true
}
