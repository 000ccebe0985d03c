// Package viewport is the virtualized document viewport engine: it decides
// which pages are visible, owns the per-page render tasks, preserves the
// user's focal point across zoom, and exposes the scroll/zoom surface the
// shell drives. All geometry is in logical pixels; the compositor alone
// knows about the device pixel ratio.
package viewport

import (
	"errors"

	"github.com/lectern-app/lectern/internal/geom"
)

// ErrRenderCancelled marks the expected outcome of a superseded or aborted
// render task. It is never surfaced.
var ErrRenderCancelled = errors.New("viewport: render cancelled")

// ErrRenderFailed wraps any non-cancellation render error. The page stays
// Unrendered and is retried on its next visibility pass.
var ErrRenderFailed = errors.New("viewport: render failed")

// RenderState is the lifecycle of a page's raster content.
type RenderState int

const (
	Unrendered RenderState = iota
	Rendering
	Rendered
	StalePendingRerender
)

func (s RenderState) String() string {
	switch s {
	case Unrendered:
		return "unrendered"
	case Rendering:
		return "rendering"
	case Rendered:
		return "rendered"
	case StalePendingRerender:
		return "stale"
	default:
		return "unknown"
	}
}

// Page is the engine's record of one document page. Created when the
// document loads with its intrinsic size prefetched at scale 1; never
// destroyed while the document stays open; the whole set is reset on
// document switch.
type Page struct {
	Number    int
	Intrinsic geom.Size
	State     RenderState
	// RenderedScale is the scale of the last completed raster, used for
	// the interim transform ratio during zoom.
	RenderedScale float64
}
