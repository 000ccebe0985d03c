package viewport

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/lectern-app/lectern/internal/doc"
	"github.com/lectern-app/lectern/internal/geom"
)

// countingRender is a RenderFunc that records renders and can stall or
// fail on demand.
type countingRender struct {
	mu     sync.Mutex
	counts map[int]int
	delay  time.Duration
	failOn map[int]error
}

func newCountingRender() *countingRender {
	return &countingRender{counts: map[int]int{}, failOn: map[int]error{}}
}

func (c *countingRender) setDelay(d time.Duration) {
	c.mu.Lock()
	c.delay = d
	c.mu.Unlock()
}

func (c *countingRender) fn(ctx context.Context, page int, scale float64) error {
	c.mu.Lock()
	delay := c.delay
	c.mu.Unlock()
	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failOn[page]; err != nil {
		return err
	}
	c.counts[page]++
	return nil
}

func (c *countingRender) count(page int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[page]
}

func newTestEngine(t *testing.T, pages int) (*Engine, *countingRender) {
	t.Helper()
	r := newCountingRender()
	e := New(r.fn)
	e.Resize(geom.Size{W: 800, H: 600})
	d := doc.NewMemory("doc-1", pages, geom.Size{W: 612, H: 792})
	if err := e.SetDocument(d); err != nil {
		t.Fatalf("SetDocument: %v", err)
	}
	return e, r
}

// drain pulls events until pred is satisfied or the timeout hits.
func drain(t *testing.T, e *Engine, timeout time.Duration, pred func(Event) bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-e.Events():
			if pred(ev) {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for engine event")
		}
	}
}

func waitRendered(t *testing.T, e *Engine, page int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.PageState(page) == Rendered {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("page %d never reached Rendered (state %v)", page, e.PageState(page))
}

func TestScheduleRendersVisiblePages(t *testing.T) {
	e, r := newTestEngine(t, 20)

	visible := e.VisiblePages()
	if len(visible) == 0 || visible[0] != 1 {
		t.Fatalf("expected visibility to start at page 1, got %v", visible)
	}
	for _, n := range visible {
		waitRendered(t, e, n)
	}
	if r.count(visible[len(visible)-1]) == 0 {
		t.Fatal("last visible page was never rendered")
	}
	// Far-away pages are outside the visibility pass; only the preloader
	// reaches them later.
	for _, n := range visible {
		if n == 20 {
			t.Fatalf("page 20 should not be in the initial visible set %v", visible)
		}
	}
}

func TestVisibleSetMonotonicUnderScroll(t *testing.T) {
	e, _ := newTestEngine(t, 30)
	before := e.VisiblePages()

	// Scroll by less than one page height: only boundary pages may change.
	e.UpdateVisiblePages(e.ScrollTop()+300, 600, DefaultBuffer)
	after := e.VisiblePages()

	beforeSet := map[int]bool{}
	for _, n := range before {
		beforeSet[n] = true
	}
	interiorLost := 0
	for _, n := range before[1 : len(before)-1] {
		found := false
		for _, m := range after {
			if m == n {
				found = true
			}
		}
		if !found {
			interiorLost++
		}
	}
	if interiorLost > 0 {
		t.Fatalf("interior pages flickered out of visibility: before=%v after=%v", before, after)
	}
}

func TestAtMostOneLiveTaskPerPageUnderRapidZoom(t *testing.T) {
	e, r := newTestEngine(t, 6)
	r.setDelay(20 * time.Millisecond)

	for i := 0; i < 5; i++ {
		e.SetScalePercent(float64(110+10*i), nil)
	}

	e.mu.Lock()
	perPage := map[int]int{}
	for n, task := range e.tasks {
		if task != nil {
			perPage[n]++
		}
	}
	e.mu.Unlock()
	for n, c := range perPage {
		if c > 1 {
			t.Fatalf("page %d has %d live tasks", n, c)
		}
	}

	// Everything settles at the final scale.
	waitRendered(t, e, 1)
	if got := e.Scale(); math.Abs(got-1.5) > 1e-9 {
		t.Fatalf("final scale wrong: %v", got)
	}
}

func TestRenderFailureLeavesPageRetryable(t *testing.T) {
	r := newCountingRender()
	boom := errors.New("decode exploded")
	r.failOn[1] = boom

	e := New(r.fn)
	e.Resize(geom.Size{W: 800, H: 600})
	d := doc.NewMemory("doc-f", 3, geom.Size{W: 612, H: 792})
	if err := e.SetDocument(d); err != nil {
		t.Fatalf("SetDocument: %v", err)
	}

	drain(t, e, 2*time.Second, func(ev Event) bool {
		res, ok := ev.(RenderResult)
		return ok && res.Page == 1 && res.Err != nil
	})
	if e.PageState(1) == Rendered {
		t.Fatal("failed page must not be Rendered")
	}

	// Clearing the failure and re-scheduling retries the page.
	r.mu.Lock()
	delete(r.failOn, 1)
	r.mu.Unlock()
	e.Schedule()
	waitRendered(t, e, 1)
}

func TestZoomAnchorIdempotence(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	waitRendered(t, e, 1)

	e.SetScroll(900)
	pointer := geom.Point{X: 400, Y: 200}

	// Record which logical point currently sits under the pointer.
	docY := e.ScrollTop() + pointer.Y
	e.mu.Lock()
	page, ok := e.layout.PageAtY(docY)
	if !ok {
		e.mu.Unlock()
		t.Fatal("pointer not over a page")
	}
	rect, _ := e.layout.PageRect(page)
	ratioY := (docY - rect.Y) / rect.H
	e.mu.Unlock()

	e.SetScalePercent(175, &pointer)

	e.mu.Lock()
	newRect, _ := e.layout.PageRect(page)
	screenY := newRect.Y + ratioY*newRect.H - e.scrollTop
	e.mu.Unlock()
	if math.Abs(screenY-pointer.Y) > 2 {
		t.Fatalf("anchor drifted %.2fpx (screenY=%.2f want %.2f)", math.Abs(screenY-pointer.Y), screenY, pointer.Y)
	}
}

func TestCenterAnchorIdempotence(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	e.SetScroll(1200)

	centerY := e.Viewport().H / 2
	docY := e.ScrollTop() + centerY
	e.mu.Lock()
	page, ok := e.layout.PageAtY(docY)
	if !ok {
		e.mu.Unlock()
		t.Fatal("center not over a page")
	}
	rect, _ := e.layout.PageRect(page)
	ratioY := (docY - rect.Y) / rect.H
	e.mu.Unlock()

	e.SetScalePercent(60, nil)

	e.mu.Lock()
	newRect, _ := e.layout.PageRect(page)
	screenY := newRect.Y + ratioY*newRect.H - e.scrollTop
	e.mu.Unlock()
	if math.Abs(screenY-centerY) > 2 {
		t.Fatalf("center anchor drifted %.2fpx", math.Abs(screenY-centerY))
	}
}

func TestAnchorGapFallsBackToFirstPage(t *testing.T) {
	e, _ := newTestEngine(t, 5)
	e.mu.Lock()
	// Point into the inter-page gap just below page 1.
	r1, _ := e.layout.PageRect(1)
	gapY := r1.Y + r1.H + pageGap/2
	e.captureAnchorLocked(&geom.Point{X: 100, Y: gapY - e.scrollTop})
	a := e.anchor
	e.mu.Unlock()
	if a == nil || a.Page != 1 || a.RatioY != 0.5 || a.RatioX != 0 {
		t.Fatalf("gap fallback wrong: %+v", a)
	}
}

func TestPreloadRendersWholeDocument(t *testing.T) {
	e, r := newTestEngine(t, 8)

	drain(t, e, 3*time.Second, func(ev Event) bool {
		_, ok := ev.(PreloadDone)
		return ok
	})
	for n := 1; n <= 8; n++ {
		if e.PageState(n) != Rendered {
			t.Fatalf("page %d not rendered after preload (state %v)", n, e.PageState(n))
		}
	}
	if r.count(8) != 1 {
		t.Fatalf("page 8 rendered %d times, want 1", r.count(8))
	}
}

func TestDocumentSwitchResetsPages(t *testing.T) {
	e, _ := newTestEngine(t, 8)
	waitRendered(t, e, 1)

	d2 := doc.NewMemory("doc-2", 3, geom.Size{W: 500, H: 700})
	if err := e.SetDocument(d2); err != nil {
		t.Fatalf("SetDocument: %v", err)
	}
	if e.PageCount() != 3 {
		t.Fatalf("page count not reset: %d", e.PageCount())
	}
	if e.Scale() != 1 || e.ScrollTop() != 0 {
		t.Fatalf("scale/scroll not reset: %v %v", e.Scale(), e.ScrollTop())
	}
}

func TestCoalescer(t *testing.T) {
	var c Coalescer
	t1 := c.Arm()
	t2 := c.Arm()
	if c.Current(t1) {
		t.Fatal("stale token should not be current")
	}
	if !c.Current(t2) {
		t.Fatal("latest token should be current")
	}
}

func TestGoToPage(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	e.GoToPage(4)
	r, _ := e.PageRect(4)
	if math.Abs(e.ScrollTop()-(r.Y-columnMargin)) > 1e-9 {
		t.Fatalf("goto misplaced scroll: %v vs page top %v", e.ScrollTop(), r.Y)
	}
	if e.CurrentPage() != 4 {
		t.Fatalf("current page %d want 4", e.CurrentPage())
	}
}

func TestInterimRatio(t *testing.T) {
	e, r := newTestEngine(t, 3)
	waitRendered(t, e, 1)
	r.setDelay(50 * time.Millisecond)
	e.SetScalePercent(200, nil)
	if got := e.InterimRatio(1); math.Abs(got-2) > 1e-9 {
		t.Fatalf("interim ratio %v want 2", got)
	}
}

func TestInterimRatioWithoutRaster(t *testing.T) {
	// Stall every render from the start so no page ever completes a
	// raster; there is then nothing to stretch, whatever the scale.
	r := newCountingRender()
	r.setDelay(time.Minute)
	e := New(r.fn)
	e.Resize(geom.Size{W: 800, H: 600})
	if err := e.SetDocument(doc.NewMemory("doc-1", 3, geom.Size{W: 612, H: 792})); err != nil {
		t.Fatalf("SetDocument: %v", err)
	}
	e.SetScalePercent(200, nil)
	for n := 1; n <= 3; n++ {
		if got := e.InterimRatio(n); got != 1 {
			t.Fatalf("page %d interim ratio %v with no raster, want 1", n, got)
		}
	}
}
