package viewport

import (
	"context"
	"log"
	"sync"

	"github.com/lectern-app/lectern/internal/doc"
	"github.com/lectern-app/lectern/internal/geom"
)

const (
	// DefaultBuffer is the visibility margin in logical pixels.
	DefaultBuffer = 300.0

	MinScale = 0.25
	MaxScale = 4.0
)

// Engine owns the viewport state for one open document: page set, layout,
// scroll position, scale, render tasks and the zoom anchor. It is created
// by the top-level controller and passed by reference to the compositor
// and panel manager; there is no package-level state.
//
// All exported methods are safe for concurrent use, but the intended
// discipline is single-loop: state mutation happens from the one update
// goroutine, task goroutines only report back through the event channel.
type Engine struct {
	mu     sync.Mutex
	doc    doc.Document
	pages  []*Page
	layout Layout

	scale      float64
	scrollTop  float64
	scrollLeft float64
	view       geom.Size
	buffer     float64

	render RenderFunc
	tasks  map[int]*RenderTask

	anchor          *Anchor
	pendingAnchor   bool
	lastSettledPage int

	preloadCancel context.CancelFunc
	preloadArmed  bool

	lastVisibleLo int
	lastVisibleHi int

	loading bool
	events  chan Event
	dropped int
}

// New builds an engine around the injected render function.
func New(render RenderFunc) *Engine {
	return &Engine{
		scale:  1,
		buffer: DefaultBuffer,
		render: render,
		tasks:  map[int]*RenderTask{},
		events: make(chan Event, 128),
	}
}

// Events is the completion stream for async work.
func (e *Engine) Events() <-chan Event { return e.events }

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		e.dropped++
		log.Printf("[scheduler] event dropped (%d total)", e.dropped)
	}
}

// SetDocument swaps the open document: every task and the preloader are
// cancelled, the page set is rebuilt with intrinsic sizes prefetched at
// the reference scale, and scroll/scale reset.
func (e *Engine) SetDocument(d doc.Document) error {
	e.mu.Lock()
	e.cancelAllLocked()
	e.doc = d
	e.scale = 1
	e.scrollTop = 0
	e.scrollLeft = 0
	e.anchor = nil
	e.pendingAnchor = false
	e.preloadArmed = true
	e.lastVisibleLo, e.lastVisibleHi = 0, 0
	e.pages = nil
	e.loading = d != nil

	if d != nil {
		count := d.PageCount()
		e.pages = make([]*Page, count)
		for i := 1; i <= count; i++ {
			p, err := d.Page(i)
			if err != nil {
				e.mu.Unlock()
				return err
			}
			e.pages[i-1] = &Page{Number: i, Intrinsic: p.IntrinsicSize()}
		}
	}
	e.layout.Reflow(e.pages, e.scale, e.view.W)
	e.loading = false
	var ev Event
	if d != nil {
		ev = DocumentLoaded{ID: d.ID(), Pages: len(e.pages)}
	}
	e.mu.Unlock()

	if ev != nil {
		e.emit(ev)
	}
	e.Schedule()
	return nil
}

// Doc returns the open document, possibly nil.
func (e *Engine) Doc() doc.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc
}

// Loading reports whether a document switch is in progress.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// PageCount returns the number of pages in the open document.
func (e *Engine) PageCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pages)
}

// Scale returns the current target scale.
func (e *Engine) Scale() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scale
}

// ScrollTop returns the current vertical scroll offset in document space.
func (e *Engine) ScrollTop() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scrollTop
}

// PageState returns the render state of a 1-based page.
func (e *Engine) PageState(n int) RenderState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n < 1 || n > len(e.pages) {
		return Unrendered
	}
	return e.pages[n-1].State
}

// PageRect returns a page's document-space rectangle at the current scale.
func (e *Engine) PageRect(n int) (geom.Rect, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.layout.PageRect(n)
}

// PageScreenRect returns a page's rectangle in viewport coordinates.
func (e *Engine) PageScreenRect(n int) (geom.Rect, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.layout.PageRect(n)
	if !ok {
		return geom.Rect{}, false
	}
	r.X -= e.scrollLeft
	r.Y -= e.scrollTop
	return r, true
}

// InterimRatio returns the cheap transform factor new/last-rendered scale
// for a page, used to stretch an already-painted raster while its
// re-render is in flight. 1 when nothing is rendered yet.
func (e *Engine) InterimRatio(n int) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n < 1 || n > len(e.pages) {
		return 1
	}
	p := e.pages[n-1]
	if p.RenderedScale <= 0 {
		return 1
	}
	return e.scale / p.RenderedScale
}

// CurrentPage is the page under the viewport's vertical center.
func (e *Engine) CurrentPage() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n, ok := e.layout.PageAtY(e.scrollTop + e.view.H/2); ok {
		return n
	}
	if len(e.pages) > 0 {
		return 1
	}
	return 0
}

// TotalHeight is the laid-out document height at the current scale.
func (e *Engine) TotalHeight() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.layout.TotalHeight()
}

// Resize updates the viewport size and reflows. Callers debounce with
// ResizeSettle before invoking Schedule.
func (e *Engine) Resize(size geom.Size) {
	e.mu.Lock()
	e.view = size
	e.layout.Reflow(e.pages, e.scale, size.W)
	e.clampScrollLocked()
	e.restoreAnchorLocked()
	e.mu.Unlock()
}

// Viewport returns the current viewport size.
func (e *Engine) Viewport() geom.Size {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

// ScrollBy shifts the viewport vertically. Callers debounce the follow-up
// Schedule with ScrollDebounce.
func (e *Engine) ScrollBy(dy float64) {
	e.mu.Lock()
	e.scrollTop += dy
	e.clampScrollLocked()
	e.mu.Unlock()
}

// SetScroll assigns an absolute scroll position.
func (e *Engine) SetScroll(top float64) {
	e.mu.Lock()
	e.scrollTop = top
	e.clampScrollLocked()
	e.mu.Unlock()
}

// GoToPage scrolls so the 1-based page's top sits at the viewport top.
func (e *Engine) GoToPage(n int) {
	e.mu.Lock()
	if r, ok := e.layout.PageRect(n); ok {
		e.scrollTop = r.Y - columnMargin
		e.clampScrollLocked()
	}
	e.mu.Unlock()
	e.Schedule()
}

func (e *Engine) clampScrollLocked() {
	max := e.layout.TotalHeight() - e.view.H
	if max < 0 {
		max = 0
	}
	if e.scrollTop < 0 {
		e.scrollTop = 0
	}
	if e.scrollTop > max {
		e.scrollTop = max
	}
	maxLeft := e.layout.widest + 2*columnMargin - e.view.W
	if maxLeft < 0 {
		maxLeft = 0
	}
	if e.scrollLeft < 0 {
		e.scrollLeft = 0
	}
	if e.scrollLeft > maxLeft {
		e.scrollLeft = maxLeft
	}
}

func (e *Engine) cancelAllLocked() {
	if e.preloadCancel != nil {
		e.preloadCancel()
		e.preloadCancel = nil
	}
	for _, t := range e.tasks {
		t.Cancel()
	}
}

// cancelTasksForRescaleLocked cancels in-flight tasks ahead of a scale
// change; replacements are issued by the next scheduler pass.
func (e *Engine) cancelTasksForRescaleLocked() {
	for _, t := range e.tasks {
		t.Cancel()
	}
}
