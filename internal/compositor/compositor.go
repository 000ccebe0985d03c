// Package compositor builds the four aligned layers of a rendered page:
// raster surface, selectable text, link overlay and highlight overlay.
// The raster alone is in physical pixels (scale × device pixel ratio);
// every other layer works in logical pixels so overlay math never sees
// the DPR.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/lectern-app/lectern/internal/geom"
	"github.com/lectern-app/lectern/internal/highlight"
	"github.com/lectern-app/lectern/internal/viewport"
)

// ErrDestinationResolution marks an internal link whose destination could
// not be resolved; the region renders inert instead of failing the page.
var ErrDestinationResolution = errors.New("compositor: destination resolution failed")

// TextMeasurer reports the extent, in logical pixels, that a text run
// actually occupies in the live layer at the given scale. The live
// measurement can drift from the geometry's declared width when fonts are
// substituted.
type TextMeasurer func(text string, fontSize, scale float64) float64

// HighlightSource supplies the highlight overlay's content.
type HighlightSource interface {
	HighlightsOn(page int) []highlight.Highlight
	SelectedHighlight() string
}

// PageLayers is the composed output for one rendered page. Box is the
// logical (CSS-equivalent) size shared by all four layers; the raster's
// pixel dimensions are Box × DPR.
type PageLayers struct {
	Page  int
	Scale float64
	Box   geom.Size

	Raster     *image.RGBA
	Text       []TextFragment
	Links      []LinkRegion
	Highlights []HighlightRect
	// SelectionBox is the union outline drawn around the currently
	// selected highlight, nil when none is on this page.
	SelectionBox *geom.Rect
}

// TextFragment is one positioned run of the selectable text layer,
// page-relative logical pixels. ScaleX/ScaleY carry the compensating
// axis transform applied when measured extent drifts from declared.
type TextFragment struct {
	Text     string
	Rect     geom.Rect
	ScaleX   float64
	ScaleY   float64
	Vertical bool
}

// LinkKind is the rendered behavior of a link region.
type LinkKind int

const (
	// LinkAnchor opens an external URI.
	LinkAnchor LinkKind = iota
	// LinkGoto navigates to a 1-based page.
	LinkGoto
	// LinkInert is a region whose destination failed to resolve; it is
	// rendered without interaction.
	LinkInert
)

// LinkRegion is one entry of the link overlay, page-relative logical
// pixels.
type LinkRegion struct {
	Rect geom.Rect
	Kind LinkKind
	URI  string
	Page int
}

// HighlightRect is one painted highlight rectangle.
type HighlightRect struct {
	ID    string
	Color string
	Rect  geom.Rect
}

// Compositor renders pages for the engine and keeps the geometry registry
// other components query. It is handed to the engine as its RenderFunc.
type Compositor struct {
	mu     sync.Mutex
	engine *viewport.Engine
	dpr    float64

	pages      map[int]*PageLayers
	registry   *Registry
	measure    TextMeasurer
	highlights HighlightSource
}

// New builds a compositor. dpr is the device pixel ratio the raster
// layer renders at; measure may be nil to use the built-in face metrics.
// The engine is constructed with the compositor's RenderPage and then
// attached:
//
//	c := compositor.New(dpr, nil)
//	engine := viewport.New(c.RenderPage)
//	c.Attach(engine)
func New(dpr float64, measure TextMeasurer) *Compositor {
	if dpr <= 0 {
		dpr = 1
	}
	if measure == nil {
		measure = faceMeasure
	}
	return &Compositor{
		dpr:      dpr,
		pages:    map[int]*PageLayers{},
		registry: NewRegistry(),
		measure:  measure,
	}
}

// Attach binds the engine the compositor renders for.
func (c *Compositor) Attach(engine *viewport.Engine) {
	c.engine = engine
}

// SetHighlightSource wires the highlight collection; the overlay is empty
// until one is set.
func (c *Compositor) SetHighlightSource(src HighlightSource) {
	c.mu.Lock()
	c.highlights = src
	c.mu.Unlock()
}

// Registry exposes the page/paragraph geometry registry.
func (c *Compositor) Registry() *Registry { return c.registry }

// Layers returns the composed layers for a page, nil when the page has
// never completed a render.
func (c *Compositor) Layers(page int) *PageLayers {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages[page]
}

// Reset drops every composed page, called on document switch.
func (c *Compositor) Reset() {
	c.mu.Lock()
	c.pages = map[int]*PageLayers{}
	c.mu.Unlock()
	c.registry.Reset()
}

// RenderPage is the engine's RenderFunc. Stages run in dependency order —
// raster, then text, then links — and the previously composed layers stay
// visible until the new set is complete: everything is built off-screen
// and swapped in at the end, so a re-scale never flashes blank content.
func (c *Compositor) RenderPage(ctx context.Context, pageNum int, scale float64) error {
	d := c.engine.Doc()
	if d == nil {
		return fmt.Errorf("compositor: no document open")
	}
	page, err := d.Page(pageNum)
	if err != nil {
		return err
	}
	size := page.IntrinsicSize()
	box := geom.Size{W: size.W * scale, H: size.H * scale}

	// Stage 1: raster at physical resolution.
	raster := image.NewRGBA(image.Rect(0, 0, pixels(box.W*c.dpr), pixels(box.H*c.dpr)))
	if err := page.Render(ctx, scale*c.dpr, raster); err != nil {
		return err
	}

	// Stage 2: text layer, positioned from the raster's geometry.
	text, err := c.buildTextLayer(ctx, page, scale)
	if err != nil {
		return err
	}

	// Stage 3: link overlay on top of the text geometry.
	links, err := c.buildLinkLayer(ctx, d, page, scale)
	if err != nil {
		return err
	}

	layers := &PageLayers{
		Page:   pageNum,
		Scale:  scale,
		Box:    box,
		Raster: raster,
		Text:   text,
		Links:  links,
	}
	c.composeHighlights(layers)

	if err := ctx.Err(); err != nil {
		// Superseded after the work finished: drop the frame, keep the
		// old one visible.
		return err
	}
	c.mu.Lock()
	c.pages[pageNum] = layers
	c.mu.Unlock()
	return nil
}

// RefreshHighlights rebuilds only the highlight overlay of an already
// composed page, after a highlight mutation.
func (c *Compositor) RefreshHighlights(page int) {
	c.mu.Lock()
	layers := c.pages[page]
	c.mu.Unlock()
	if layers == nil {
		return
	}
	fresh := *layers
	c.composeHighlights(&fresh)
	c.mu.Lock()
	c.pages[page] = &fresh
	c.mu.Unlock()
}

func (c *Compositor) composeHighlights(layers *PageLayers) {
	c.mu.Lock()
	src := c.highlights
	c.mu.Unlock()
	layers.Highlights = nil
	layers.SelectionBox = nil
	if src == nil {
		return
	}
	selected := src.SelectedHighlight()
	for _, h := range src.HighlightsOn(layers.Page) {
		for _, n := range h.Rects {
			layers.Highlights = append(layers.Highlights, HighlightRect{
				ID:    h.ID,
				Color: h.Color,
				Rect:  geom.FractionToScreen(n, layers.Box, geom.Point{}),
			})
		}
		if h.ID == selected && len(h.Rects) > 0 {
			u := geom.UnionNormalized(h.Rects)
			box := geom.FractionToScreen(u, layers.Box, geom.Point{})
			layers.SelectionBox = &box
		}
	}
}

// InterimSnapshot stretches the last completed raster by the engine's
// interim ratio, giving the viewport something correctly sized to show
// while the re-render at the new scale is still in flight.
func (c *Compositor) InterimSnapshot(page int) *image.RGBA {
	c.mu.Lock()
	layers := c.pages[page]
	c.mu.Unlock()
	if layers == nil || layers.Raster == nil {
		return nil
	}
	ratio := c.engine.InterimRatio(page)
	if ratio == 1 {
		return layers.Raster
	}
	src := layers.Raster
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, pixels(float64(b.Dx())*ratio), pixels(float64(b.Dy())*ratio)))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

func pixels(v float64) int {
	p := int(v + 0.5)
	if p < 1 {
		p = 1
	}
	return p
}
