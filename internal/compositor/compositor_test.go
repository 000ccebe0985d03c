package compositor

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/lectern-app/lectern/internal/doc"
	"github.com/lectern-app/lectern/internal/geom"
	"github.com/lectern-app/lectern/internal/highlight"
	"github.com/lectern-app/lectern/internal/viewport"
)

func newHarness(t *testing.T, d *doc.Memory, dpr float64) (*viewport.Engine, *Compositor) {
	t.Helper()
	c := New(dpr, nil)
	e := viewport.New(c.RenderPage)
	c.Attach(e)
	e.Resize(geom.Size{W: 1000, H: 700})
	if err := e.SetDocument(d); err != nil {
		t.Fatalf("SetDocument: %v", err)
	}
	return e, c
}

func waitLayers(t *testing.T, c *Compositor, page int, scale float64) *PageLayers {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if layers := c.Layers(page); layers != nil && layers.Scale == scale {
			return layers
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("page %d never composed at scale %v", page, scale)
	return nil
}

func within(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestLayerBoxesAlignAcrossScales(t *testing.T) {
	d := doc.NewMemory("doc1", 2, geom.Size{W: 600, H: 800})
	d.Runs[1] = []doc.TextRun{
		{Text: "Abstract", Origin: geom.Point{X: 50, Y: 100}, FontSize: 12, Width: 80},
	}
	d.Links[1] = []doc.Annotation{
		{Rect: geom.Rect{X: 50, Y: 700, W: 120, H: 14}, Kind: doc.LinkExternal, URI: "https://example.org"},
	}
	e, c := newHarness(t, d, 2)

	layers := waitLayers(t, c, 1, 1)
	if layers.Box.W != 600 || layers.Box.H != 800 {
		t.Fatalf("unexpected logical box: %+v", layers.Box)
	}
	// The raster is the only layer in physical pixels: logical box × DPR.
	b := layers.Raster.Bounds()
	if !within(float64(b.Dx())/2, layers.Box.W, 1) || !within(float64(b.Dy())/2, layers.Box.H, 1) {
		t.Fatalf("raster %v not aligned with logical box %+v", b, layers.Box)
	}
	frag := layers.Text[0]
	link := layers.Links[0]

	e.SetScalePercent(150, nil)
	scaled := waitLayers(t, c, 1, 1.5)
	if !within(scaled.Box.W, 900, 1) || !within(scaled.Box.H, 1200, 1) {
		t.Fatalf("scaled box wrong: %+v", scaled.Box)
	}
	sb := scaled.Raster.Bounds()
	if !within(float64(sb.Dx())/2, scaled.Box.W, 1) || !within(float64(sb.Dy())/2, scaled.Box.H, 1) {
		t.Fatalf("scaled raster %v not aligned with box %+v", sb, scaled.Box)
	}
	// Overlay geometry scales with the box, within a pixel.
	sfrag := scaled.Text[0]
	if !within(sfrag.Rect.X, frag.Rect.X*1.5, 1) || !within(sfrag.Rect.W, frag.Rect.W*1.5, 1) {
		t.Fatalf("text layer drifted: %+v vs %+v", sfrag.Rect, frag.Rect)
	}
	slink := scaled.Links[0]
	if !within(slink.Rect.Y, link.Rect.Y*1.5, 1) || !within(slink.Rect.H, link.Rect.H*1.5, 1) {
		t.Fatalf("link layer drifted: %+v vs %+v", slink.Rect, link.Rect)
	}
}

func TestTextDriftCorrection(t *testing.T) {
	d := doc.NewMemory("doc1", 1, geom.Size{W: 600, H: 800})
	page, err := d.Page(1)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	d.Runs[1] = []doc.TextRun{
		{Text: "drifting run", Origin: geom.Point{X: 10, Y: 10}, FontSize: 12, Width: 100},
		{Text: "rotated run", Origin: geom.Point{X: 10, Y: 40}, FontSize: 12, Width: 100, Rotation: 45},
		{Text: "vertical run", Origin: geom.Point{X: 10, Y: 70}, FontSize: 12, Width: 100, Vertical: true},
	}

	// The live layer measures 10% wider than declared.
	measure := func(text string, fontSize, scale float64) float64 {
		return 110 * scale
	}
	c := New(1, measure)
	c.Attach(viewport.New(c.RenderPage))

	frags, err := c.buildTextLayer(context.Background(), page, 1)
	if err != nil {
		t.Fatalf("buildTextLayer: %v", err)
	}
	if len(frags) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(frags))
	}

	if !within(frags[0].ScaleX, 100.0/110.0, 1e-9) || frags[0].ScaleY != 1 {
		t.Fatalf("horizontal run should squeeze along X: %+v", frags[0])
	}
	if frags[1].ScaleX != 1 || frags[1].ScaleY != 1 {
		t.Fatalf("rotated run must not be axis-corrected: %+v", frags[1])
	}
	if frags[2].ScaleX != 1 || !within(frags[2].ScaleY, 100.0/110.0, 1e-9) {
		t.Fatalf("vertical run should squeeze along Y: %+v", frags[2])
	}
}

func TestTextDriftWithinToleranceUntouched(t *testing.T) {
	d := doc.NewMemory("doc1", 1, geom.Size{W: 600, H: 800})
	page, _ := d.Page(1)
	d.Runs[1] = []doc.TextRun{
		{Text: "close enough", Origin: geom.Point{X: 10, Y: 10}, FontSize: 12, Width: 100},
	}

	// 0.5% off: inside tolerance.
	measure := func(text string, fontSize, scale float64) float64 {
		return 100.5 * scale
	}
	c := New(1, measure)
	c.Attach(viewport.New(c.RenderPage))

	frags, err := c.buildTextLayer(context.Background(), page, 1)
	if err != nil {
		t.Fatalf("buildTextLayer: %v", err)
	}
	if frags[0].ScaleX != 1 {
		t.Fatalf("sub-tolerance drift should not be corrected: %+v", frags[0])
	}
}

func TestLinkOverlayResolution(t *testing.T) {
	d := doc.NewMemory("doc1", 5, geom.Size{W: 600, H: 800})
	d.NamedDests["section.3"] = 4
	d.Links[1] = []doc.Annotation{
		{Rect: geom.Rect{X: 10, Y: 10, W: 80, H: 12}, Kind: doc.LinkExternal, URI: "https://arxiv.org"},
		{Rect: geom.Rect{X: 10, Y: 30, W: 80, H: 12}, Kind: doc.LinkPage, Page: 2},
		{Rect: geom.Rect{X: 10, Y: 50, W: 80, H: 12}, Kind: doc.LinkNamed, Name: "section.3"},
		{Rect: geom.Rect{X: 10, Y: 70, W: 80, H: 12}, Kind: doc.LinkNamed, Name: "no.such.dest"},
	}
	_, c := newHarness(t, d, 1)

	layers := waitLayers(t, c, 1, 1)
	if len(layers.Links) != 4 {
		t.Fatalf("expected 4 link regions, got %d", len(layers.Links))
	}
	if layers.Links[0].Kind != LinkAnchor || layers.Links[0].URI != "https://arxiv.org" {
		t.Fatalf("external link wrong: %+v", layers.Links[0])
	}
	if layers.Links[1].Kind != LinkGoto || layers.Links[1].Page != 2 {
		t.Fatalf("page link wrong: %+v", layers.Links[1])
	}
	if layers.Links[2].Kind != LinkGoto || layers.Links[2].Page != 4 {
		t.Fatalf("named destination should resolve to page 4: %+v", layers.Links[2])
	}
	// A failed resolution degrades to an inert region, never an error.
	if layers.Links[3].Kind != LinkInert {
		t.Fatalf("unresolvable destination should be inert: %+v", layers.Links[3])
	}
}

type fakeHighlights struct {
	items    map[int][]highlight.Highlight
	selected string
}

func (f *fakeHighlights) HighlightsOn(page int) []highlight.Highlight { return f.items[page] }
func (f *fakeHighlights) SelectedHighlight() string                   { return f.selected }

func TestHighlightOverlayAndSelectionBox(t *testing.T) {
	d := doc.NewMemory("doc1", 1, geom.Size{W: 600, H: 800})
	src := &fakeHighlights{
		items: map[int][]highlight.Highlight{
			1: {
				{ID: "h1", Page: 1, Color: "yellow", Rects: []geom.NormalizedRect{
					{Left: 0.1, Top: 0.1, Width: 0.5, Height: 0.02},
					{Left: 0.1, Top: 0.13, Width: 0.3, Height: 0.02},
				}},
			},
		},
		selected: "h1",
	}
	c := New(1, nil)
	e := viewport.New(c.RenderPage)
	c.Attach(e)
	c.SetHighlightSource(src)
	e.Resize(geom.Size{W: 1000, H: 700})
	if err := e.SetDocument(d); err != nil {
		t.Fatalf("SetDocument: %v", err)
	}

	layers := waitLayers(t, c, 1, 1)
	if len(layers.Highlights) != 2 {
		t.Fatalf("expected 2 highlight rects, got %d", len(layers.Highlights))
	}
	first := layers.Highlights[0].Rect
	if !within(first.X, 60, 1e-6) || !within(first.Y, 80, 1e-6) || !within(first.W, 300, 1e-6) {
		t.Fatalf("highlight rect misprojected: %+v", first)
	}
	if layers.SelectionBox == nil {
		t.Fatal("selected highlight should carry a union focus box")
	}
	u := *layers.SelectionBox
	// Union spans both rects: x 0.1..0.6, y 0.1..0.15.
	if !within(u.X, 60, 1e-6) || !within(u.W, 300, 1e-6) || !within(u.Y, 80, 1e-6) || !within(u.H, 40, 1e-6) {
		t.Fatalf("union box wrong: %+v", u)
	}
}

func TestRefreshHighlightsWithoutRerender(t *testing.T) {
	d := doc.NewMemory("doc1", 1, geom.Size{W: 600, H: 800})
	src := &fakeHighlights{items: map[int][]highlight.Highlight{}}
	c := New(1, nil)
	e := viewport.New(c.RenderPage)
	c.Attach(e)
	c.SetHighlightSource(src)
	e.Resize(geom.Size{W: 1000, H: 700})
	if err := e.SetDocument(d); err != nil {
		t.Fatalf("SetDocument: %v", err)
	}
	layers := waitLayers(t, c, 1, 1)
	if len(layers.Highlights) != 0 {
		t.Fatalf("expected empty overlay, got %d", len(layers.Highlights))
	}
	renders := d.RenderCount(1)

	src.items[1] = []highlight.Highlight{
		{ID: "h1", Page: 1, Color: "green", Rects: []geom.NormalizedRect{{Left: 0.2, Top: 0.2, Width: 0.1, Height: 0.05}}},
	}
	c.RefreshHighlights(1)

	if got := c.Layers(1); len(got.Highlights) != 1 {
		t.Fatalf("overlay should rebuild, got %d rects", len(got.Highlights))
	}
	if d.RenderCount(1) != renders {
		t.Fatalf("highlight refresh must not re-render the raster")
	}
}

func TestInterimSnapshotStretchesLastRaster(t *testing.T) {
	d := doc.NewMemory("doc1", 1, geom.Size{W: 600, H: 800})
	d.RenderDelay = 30 * time.Millisecond
	e, c := newHarness(t, d, 1)

	waitLayers(t, c, 1, 1)
	e.SetScalePercent(200, nil)

	snap := c.InterimSnapshot(1)
	if snap == nil {
		t.Fatal("expected a snapshot while the re-render is in flight")
	}
	b := snap.Bounds()
	if !within(float64(b.Dx()), 1200, 2) || !within(float64(b.Dy()), 1600, 2) {
		t.Fatalf("snapshot should stretch by the interim ratio, got %v", b)
	}

	// Once the re-render lands, the full-quality raster takes over.
	scaled := waitLayers(t, c, 1, 2)
	sb := scaled.Raster.Bounds()
	if !within(float64(sb.Dx()), 1200, 1) || !within(float64(sb.Dy()), 1600, 1) {
		t.Fatalf("settled raster wrong size: %v", sb)
	}
}

func TestSyncRegistryProjectsParagraphs(t *testing.T) {
	d := doc.NewMemory("doc1", 2, geom.Size{W: 600, H: 800})
	d.Paras[1] = []doc.Paragraph{
		{ID: "p1-1", Page: 1, BBox: geom.Rect{X: 50, Y: 100, W: 300, H: 40}},
	}
	e, c := newHarness(t, d, 1)
	waitLayers(t, c, 1, 1)

	c.SyncRegistry()

	// Page is centered in the 1000px viewport: x offset 200, top margin 24.
	rect, ok := c.Registry().Paragraph("p1-1")
	if !ok {
		t.Fatal("paragraph missing from registry")
	}
	if !within(rect.X, 250, 1e-6) || !within(rect.Y, 124, 1e-6) || !within(rect.W, 300, 1e-6) {
		t.Fatalf("paragraph misprojected: %+v", rect)
	}

	// Scrolling moves the projection on the next sync.
	e.SetScroll(50)
	c.SyncRegistry()
	rect, _ = c.Registry().Paragraph("p1-1")
	if !within(rect.Y, 74, 1e-6) {
		t.Fatalf("registry should track scroll: %+v", rect)
	}

	if page, ok := c.Registry().ParagraphPage("p1-1"); !ok || page != 1 {
		t.Fatalf("paragraph page lost: %d %v", page, ok)
	}
}
