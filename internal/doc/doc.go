// Package doc is the boundary to the document-loading collaborator. It
// exposes page count, per-page intrinsic geometry, async page rendering,
// text-run geometry, link annotations and paragraph snap targets. The
// viewport engine consumes these interfaces and never looks behind them.
package doc

import (
	"context"
	"errors"
	"image"

	"github.com/lectern-app/lectern/internal/geom"
)

// ErrDestinationNotFound reports that a named destination could not be
// resolved. Internal links carrying such destinations render as inert
// regions rather than failing the page.
var ErrDestinationNotFound = errors.New("doc: named destination not found")

// Document is an opened document handle. Implementations are safe for use
// from the single update goroutine that owns the engine; Render and
// ResolveNamedDestination may be called from task goroutines and must be
// internally synchronized.
type Document interface {
	// ID identifies the document for cache keys and highlight scoping.
	ID() string
	// PageCount returns the number of pages.
	PageCount() int
	// Page returns the 1-based page handle.
	Page(n int) (Page, error)
	// Paragraphs returns the read-only snap targets on a page.
	Paragraphs(page int) []Paragraph
	// ResolveNamedDestination maps a named destination to a 1-based page
	// index. The lookup may require walking document structures and is
	// treated as async by callers.
	ResolveNamedDestination(ctx context.Context, name string) (int, error)
	// Close releases the underlying resources.
	Close() error
}

// Page is a single page of an open document.
type Page interface {
	Number() int
	// IntrinsicSize is the page box at the reference scale (scale=1).
	IntrinsicSize() geom.Size
	// Render paints the page at the given scale into dst, which the caller
	// sizes to intrinsic × scale × device pixel ratio physical pixels.
	// Render must honor ctx cancellation between painting steps.
	Render(ctx context.Context, scale float64, dst *image.RGBA) error
	// TextGeometry returns the positioned text runs in intrinsic units.
	TextGeometry() ([]TextRun, error)
	// Annotations returns the page's link annotations.
	Annotations() ([]Annotation, error)
}

// TextRun is one positioned fragment of text. Origin is the fragment's
// top-left in intrinsic units; Width is the advance width the document
// declares for it, which can disagree with what a substituted font
// actually measures.
type TextRun struct {
	Text     string
	Origin   geom.Point
	FontSize float64
	Width    float64
	// Vertical marks vertical writing mode; the extent correction then
	// applies to the vertical axis.
	Vertical bool
	// Rotation in degrees. Only axis-aligned runs (multiples of 90) are
	// eligible for extent correction.
	Rotation float64
}

// AxisAligned reports whether the run's rotation is a multiple of 90
// degrees.
func (r TextRun) AxisAligned() bool {
	rot := int(r.Rotation) % 360
	if rot < 0 {
		rot += 360
	}
	return rot%90 == 0
}

// LinkKind discriminates annotation targets.
type LinkKind int

const (
	// LinkExternal is a URI link rendered as an anchor.
	LinkExternal LinkKind = iota
	// LinkPage is an internal link with an explicit 1-based target page.
	LinkPage
	// LinkNamed is an internal link whose destination must be resolved
	// through ResolveNamedDestination.
	LinkNamed
)

// Annotation is a link region on a page, Rect in intrinsic units.
type Annotation struct {
	Rect geom.Rect
	Kind LinkKind
	URI  string
	Page int
	Name string
}

// Paragraph is a snap target supplied by the provider: a stable id plus a
// bounding box in intrinsic units. Read-only to the engine.
type Paragraph struct {
	ID   string
	Page int
	BBox geom.Rect
}
