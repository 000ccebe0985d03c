package viewport

import (
	"log"

	"github.com/lectern-app/lectern/internal/geom"
)

// SetScalePercent applies a zoom to percent (100 = reference scale).
// pointer, when non-nil, is the viewport-relative position the zoom should
// stay anchored under; nil anchors the viewport center (toolbar button or
// typed percentage).
//
// The sequence follows the anchor state machine: capture the focal point,
// reflow every page box immediately at the new scale (the compositor
// stretches stale rasters by the interim ratio so the layout responds
// before any re-render lands), mark all pages stale, cancel in-flight
// work and the preloader, schedule, then restore the scroll position.
func (e *Engine) SetScalePercent(percent float64, pointer *geom.Point) {
	scale := percent / 100
	if scale < MinScale {
		scale = MinScale
	}
	if scale > MaxScale {
		scale = MaxScale
	}

	e.mu.Lock()
	if e.doc == nil || scale == e.scale {
		e.mu.Unlock()
		return
	}
	e.captureAnchorLocked(pointer)

	e.scale = scale
	e.layout.Reflow(e.pages, scale, e.view.W)

	for _, p := range e.pages {
		if p.State == Rendered || p.State == Rendering {
			p.State = StalePendingRerender
		}
	}
	e.cancelTasksForRescaleLocked()
	if e.preloadCancel != nil {
		e.preloadCancel()
		e.preloadCancel = nil
	}
	e.preloadArmed = true

	settled := e.restoreAnchorLocked()
	anchorPage := e.lastSettledPage
	e.scheduleLocked(e.buffer)
	e.mu.Unlock()

	log.Printf("[scheduler] scale set to %.0f%%", scale*100)
	if settled {
		e.emit(AnchorSettled{Page: anchorPage})
	}
}

// ZoomStep nudges the scale by a multiplicative step, anchored at pointer
// when given. step > 1 zooms in.
func (e *Engine) ZoomStep(step float64, pointer *geom.Point) {
	e.SetScalePercent(e.Scale()*step*100, pointer)
}
