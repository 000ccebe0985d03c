package viewport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Debounce windows coalescing rapid input before a scheduler pass.
const (
	ScrollDebounce = 100 * time.Millisecond
	ResizeSettle   = 150 * time.Millisecond
)

// Coalescer implements token-based debouncing in the shell's timer idiom:
// every input arms a new token, and only the timer carrying the latest
// token triggers the pass.
type Coalescer struct {
	seq int
}

// Arm invalidates earlier tokens and returns a fresh one.
func (c *Coalescer) Arm() int {
	c.seq++
	return c.seq
}

// Current reports whether the token is still the latest.
func (c *Coalescer) Current(token int) bool {
	return token == c.seq
}

// UpdateVisiblePages computes the page range intersecting the scroll span
// plus buffer and issues render tasks for entering pages that need one.
// Pages leaving visibility keep their content; only a scale change cancels
// work.
func (e *Engine) UpdateVisiblePages(scrollTop, viewportHeight, buffer float64) {
	e.mu.Lock()
	e.scrollTop = scrollTop
	e.view.H = viewportHeight
	e.clampScrollLocked()
	e.scheduleLocked(buffer)
	e.mu.Unlock()
}

// Schedule runs a scheduler pass with the engine's own scroll state and
// default buffer.
func (e *Engine) Schedule() {
	e.mu.Lock()
	e.scheduleLocked(e.buffer)
	e.mu.Unlock()
}

func (e *Engine) scheduleLocked(buffer float64) {
	if e.doc == nil || len(e.pages) == 0 {
		return
	}
	lo, hi, ok := e.layout.VisibleRange(e.scrollTop, e.view.H, buffer)
	if !ok {
		return
	}
	e.lastVisibleLo, e.lastVisibleHi = lo, hi
	for n := lo; n <= hi; n++ {
		p := e.pages[n-1]
		switch p.State {
		case Unrendered, StalePendingRerender:
			e.issueLocked(n, context.Background(), true)
		}
	}
}

// VisiblePages returns the 1-based pages of the last scheduler pass.
func (e *Engine) VisiblePages() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastVisibleLo == 0 {
		return nil
	}
	out := make([]int, 0, e.lastVisibleHi-e.lastVisibleLo+1)
	for n := e.lastVisibleLo; n <= e.lastVisibleHi; n++ {
		out = append(out, n)
	}
	return out
}

// issueLocked starts a render task for page n unless an equivalent one is
// already live. A task at a superseded scale is cancelled first and the
// replacement waits for it to drain, so two tasks never paint the same
// surface.
func (e *Engine) issueLocked(n int, parent context.Context, foreground bool) *RenderTask {
	prev := e.tasks[n]
	if prev != nil {
		if prev.Scale == e.scale && prev.ctx.Err() == nil {
			return prev
		}
		prev.Cancel()
	}
	t := newRenderTask(parent, n, e.scale)
	e.tasks[n] = t
	e.pages[n-1].State = Rendering
	go e.runTask(t, prev, foreground)
	return t
}

func (e *Engine) runTask(t *RenderTask, superseded *RenderTask, foreground bool) {
	defer close(t.done)
	if superseded != nil {
		<-superseded.Done()
	}
	err := t.ctx.Err()
	if err == nil {
		err = e.render(t.ctx, t.Page, t.Scale)
	}

	e.mu.Lock()
	current := e.tasks[t.Page] == t
	if current {
		delete(e.tasks, t.Page)
	}
	switch {
	case err == nil:
		if current {
			p := e.pages[t.Page-1]
			p.State = Rendered
			p.RenderedScale = t.Scale
		}
	case isCancellation(err):
		// Expected: swallowed. The page is left for the replacement task
		// or the next visibility pass.
		if current && e.pages[t.Page-1].State == Rendering {
			e.pages[t.Page-1].State = Unrendered
		}
	default:
		log.Printf("[scheduler] page %d render failed: %v", t.Page, err)
		if current {
			e.pages[t.Page-1].State = Unrendered
		}
	}
	settled := e.restoreAnchorLocked()
	idle := len(e.tasks) == 0
	armed := e.preloadArmed && idle && err == nil
	if armed {
		e.preloadArmed = false
	}
	anchorPage := 0
	if settled {
		anchorPage = e.lastSettledPage
	}
	e.mu.Unlock()

	if isCancellation(err) {
		return
	}
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	e.emit(RenderResult{Page: t.Page, Scale: t.Scale, Err: err})
	if settled {
		e.emit(AnchorSettled{Page: anchorPage})
	}
	if armed && foreground {
		e.StartPreload()
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrRenderCancelled)
}
