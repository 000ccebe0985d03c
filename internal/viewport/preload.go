package viewport

import (
	"context"
	"log"
)

// StartPreload walks every not-yet-rendered page in document order after
// the visible set has finished its initial paint. One page renders per
// idle slice, and a page with a live foreground task is skipped by
// task-presence check, so visible work is never starved. The whole pass
// shares a single cancellation token: document switches and zooms abort
// it as one unit.
func (e *Engine) StartPreload() {
	e.mu.Lock()
	if e.doc == nil || e.preloadCancel != nil {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.preloadCancel = cancel
	e.mu.Unlock()

	go e.preloadLoop(ctx)
}

// CancelPreload aborts the current preload pass, if any.
func (e *Engine) CancelPreload() {
	e.mu.Lock()
	if e.preloadCancel != nil {
		e.preloadCancel()
		e.preloadCancel = nil
	}
	e.mu.Unlock()
}

func (e *Engine) preloadLoop(ctx context.Context) {
	rendered := 0
	page := 1
	for {
		if ctx.Err() != nil {
			return
		}
		e.mu.Lock()
		if page > len(e.pages) {
			if e.preloadCancel != nil {
				e.preloadCancel()
				e.preloadCancel = nil
			}
			e.mu.Unlock()
			log.Printf("[preload] pass complete (%d pages rendered)", rendered)
			e.emit(PreloadDone{Rendered: rendered})
			return
		}
		p := e.pages[page-1]
		if p.State == Rendered && p.RenderedScale == e.scale {
			page++
			e.mu.Unlock()
			continue
		}
		if live := e.tasks[page]; live != nil {
			// Foreground render in flight for this page: yield to it and
			// move on; the scheduler owns that page's outcome.
			e.mu.Unlock()
			select {
			case <-live.Done():
			case <-ctx.Done():
				return
			}
			page++
			continue
		}
		t := e.issueLocked(page, ctx, false)
		e.mu.Unlock()

		select {
		case <-t.Done():
			rendered++
		case <-ctx.Done():
			return
		}
		page++
	}
}
