package viewport

// Event is delivered on the engine's event channel so the shell can react
// to asynchronous completions without polling.
type Event interface{ event() }

// RenderResult reports a completed (or failed) page render. Cancellations
// never produce a result.
type RenderResult struct {
	Page  int
	Scale float64
	Err   error
}

// DocumentLoaded fires after SetDocument has built the page set.
type DocumentLoaded struct {
	ID    string
	Pages int
}

// PreloadDone fires when a background preload pass walks off the end of
// the document without being cancelled.
type PreloadDone struct {
	Rendered int
}

// AnchorSettled fires when a zoom anchor's scroll restoration has been
// applied.
type AnchorSettled struct {
	Page int
}

func (RenderResult) event()   {}
func (DocumentLoaded) event() {}
func (PreloadDone) event()    {}
func (AnchorSettled) event()  {}
