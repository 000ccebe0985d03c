package viewport

import "context"

// RenderFunc renders one page at the given scale. The compositor injects
// it; the scheduler owns when and for which page it runs.
type RenderFunc func(ctx context.Context, page int, scale float64) error

// RenderTask is the scheduler's handle on one in-flight page render. At
// most one live task exists per page; a superseded task is cancelled and
// fully drained before its replacement starts painting the same surface.
type RenderTask struct {
	Page  int
	Scale float64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newRenderTask(parent context.Context, page int, scale float64) *RenderTask {
	ctx, cancel := context.WithCancel(parent)
	return &RenderTask{
		Page:   page,
		Scale:  scale,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Cancel requests the task stop at its next suspension point.
func (t *RenderTask) Cancel() { t.cancel() }

// Done is closed once the task goroutine has fully exited.
func (t *RenderTask) Done() <-chan struct{} { return t.done }
