package highlight

import (
	"testing"

	"github.com/lectern-app/lectern/internal/geom"
)

func pageRect() geom.Rect { return geom.Rect{X: 100, Y: 50, W: 600, H: 800} }

func mustAdd(t *testing.T, c *Collection, page int, rects []geom.Rect, color string) Highlight {
	t.Helper()
	h, err := c.AddFromSelection(page, rects, pageRect(), "", color)
	if err != nil {
		t.Fatalf("AddFromSelection: %v", err)
	}
	return h
}

func TestAddFromSelectionNormalizes(t *testing.T) {
	t.Parallel()

	c := NewCollection("doc1")
	h := mustAdd(t, c, 2, []geom.Rect{
		{X: 100, Y: 50, W: 300, H: 80},
		{X: 100.000004, Y: 50.000004, W: 300, H: 80}, // dedup with the first
		{X: 400, Y: 130, W: 0, H: 40},                // zero width, dropped
	}, "yellow")

	if len(h.Rects) != 1 {
		t.Fatalf("expected 1 rect after dedup, got %d: %+v", len(h.Rects), h.Rects)
	}
	r := h.Rects[0]
	if r.Left != 0 || r.Top != 0 || r.Width != 0.5 || r.Height != 0.1 {
		t.Fatalf("unexpected normalized rect: %+v", r)
	}
	if c.SelectedHighlight() != h.ID {
		t.Fatalf("new highlight should be selected")
	}
}

func TestAddFromSelectionRejectsEmpty(t *testing.T) {
	t.Parallel()

	c := NewCollection("doc1")
	if _, err := c.AddFromSelection(1, []geom.Rect{{X: 100, Y: 50, W: 0, H: 0}}, pageRect(), "", "yellow"); err == nil {
		t.Fatalf("expected error for empty selection")
	}
}

func TestRecolorAndDelete(t *testing.T) {
	t.Parallel()

	c := NewCollection("doc1")
	h := mustAdd(t, c, 1, []geom.Rect{{X: 100, Y: 50, W: 100, H: 20}}, "yellow")

	if err := c.Recolor(h.ID, "green"); err != nil {
		t.Fatalf("Recolor: %v", err)
	}
	got, ok := c.Get(h.ID)
	if !ok || got.Color != "green" {
		t.Fatalf("recolor not applied: %+v ok=%v", got, ok)
	}

	if err := c.Delete(h.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := c.Get(h.ID); ok {
		t.Fatalf("highlight survived delete")
	}
	if c.SelectedHighlight() != "" {
		t.Fatalf("selection should clear when selected highlight is deleted")
	}
	if err := c.Delete(h.ID); err == nil {
		t.Fatalf("expected ErrNotFound on double delete")
	}
}

func TestHighlightsOnIndex(t *testing.T) {
	t.Parallel()

	c := NewCollection("doc1")
	mustAdd(t, c, 1, []geom.Rect{{X: 100, Y: 50, W: 100, H: 20}}, "yellow")
	mustAdd(t, c, 3, []geom.Rect{{X: 100, Y: 50, W: 100, H: 20}}, "green")
	mustAdd(t, c, 1, []geom.Rect{{X: 100, Y: 100, W: 100, H: 20}}, "pink")

	if got := len(c.HighlightsOn(1)); got != 2 {
		t.Fatalf("expected 2 highlights on page 1, got %d", got)
	}
	if got := len(c.HighlightsOn(2)); got != 0 {
		t.Fatalf("expected no highlights on page 2, got %d", got)
	}
}

func TestHitCycleAdvancesThroughOverlaps(t *testing.T) {
	t.Parallel()

	c := NewCollection("doc1")
	// Two overlapping marks covering the page's upper-left quadrant.
	a := mustAdd(t, c, 1, []geom.Rect{{X: 100, Y: 50, W: 300, H: 400}}, "yellow")
	b := mustAdd(t, c, 1, []geom.Rect{{X: 100, Y: 50, W: 300, H: 400}}, "green")

	at := geom.Point{X: 0.25, Y: 0.25}
	if got := c.HitCycle(1, at); got != b.ID {
		t.Fatalf("first click should select topmost %q, got %q", b.ID, got)
	}
	if got := c.HitCycle(1, at); got != a.ID {
		t.Fatalf("second click should cycle to %q, got %q", a.ID, got)
	}
	if got := c.HitCycle(1, at); got != b.ID {
		t.Fatalf("third click should wrap back to %q, got %q", b.ID, got)
	}
}

func TestHitCycleRestartsOnFreshSpot(t *testing.T) {
	t.Parallel()

	c := NewCollection("doc1")
	a := mustAdd(t, c, 1, []geom.Rect{{X: 100, Y: 50, W: 300, H: 400}}, "yellow")
	b := mustAdd(t, c, 1, []geom.Rect{{X: 100, Y: 50, W: 300, H: 400}}, "green")
	lone := mustAdd(t, c, 1, []geom.Rect{{X: 500, Y: 600, W: 150, H: 100}}, "pink")

	overlap := geom.Point{X: 0.25, Y: 0.25}
	c.HitCycle(1, overlap) // b
	c.HitCycle(1, overlap) // a
	_ = a

	// Clicking the disjoint mark must not continue the old cycle.
	if got := c.HitCycle(1, geom.Point{X: 0.7, Y: 0.75}); got != lone.ID {
		t.Fatalf("fresh spot should restart at %q, got %q", lone.ID, got)
	}
	// Returning to the overlap restarts at the topmost mark.
	if got := c.HitCycle(1, overlap); got != b.ID {
		t.Fatalf("expected restart at topmost %q, got %q", b.ID, got)
	}
}

func TestHitCycleMissClearsSelection(t *testing.T) {
	t.Parallel()

	c := NewCollection("doc1")
	mustAdd(t, c, 1, []geom.Rect{{X: 100, Y: 50, W: 100, H: 100}}, "yellow")

	if got := c.HitCycle(1, geom.Point{X: 0.9, Y: 0.9}); got != "" {
		t.Fatalf("miss should return empty id, got %q", got)
	}
	if c.SelectedHighlight() != "" {
		t.Fatalf("miss should clear selection")
	}
}

func TestReplacePreservesSequence(t *testing.T) {
	t.Parallel()

	c := NewCollection("doc1")
	c.Replace([]Highlight{
		{ID: "h7", DocID: "doc1", Page: 1, Rects: []geom.NormalizedRect{{Left: 0, Top: 0, Width: 0.1, Height: 0.1}}, Color: "yellow"},
	})
	h := mustAdd(t, c, 1, []geom.Rect{{X: 100, Y: 50, W: 100, H: 20}}, "green")
	if h.ID != "h8" {
		t.Fatalf("expected id sequence to continue past loaded set, got %q", h.ID)
	}
}
