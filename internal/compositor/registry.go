package compositor

import (
	"sync"

	"github.com/lectern-app/lectern/internal/geom"
)

// Registry is the live geometry index: where each page and each paragraph
// sits in screen coordinates right now. It is rebuilt after every scroll,
// resize and zoom tick so snapping and anchoring never read stale boxes.
type Registry struct {
	mu         sync.Mutex
	pages      map[int]geom.Rect
	paragraphs map[string]geom.Rect
	paraPage   map[string]int
	order      []string
}

func NewRegistry() *Registry {
	return &Registry{
		pages:      map[int]geom.Rect{},
		paragraphs: map[string]geom.Rect{},
		paraPage:   map[string]int{},
	}
}

// Reset clears everything, called on document switch.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.pages = map[int]geom.Rect{}
	r.paragraphs = map[string]geom.Rect{}
	r.paraPage = map[string]int{}
	r.order = nil
	r.mu.Unlock()
}

// SetPage records a page's current screen rect.
func (r *Registry) SetPage(page int, rect geom.Rect) {
	r.mu.Lock()
	r.pages[page] = rect
	r.mu.Unlock()
}

// SetParagraph records a paragraph's current screen rect.
func (r *Registry) SetParagraph(id string, page int, rect geom.Rect) {
	r.mu.Lock()
	if _, seen := r.paragraphs[id]; !seen {
		r.order = append(r.order, id)
	}
	r.paragraphs[id] = rect
	r.paraPage[id] = page
	r.mu.Unlock()
}

// Page returns a page's screen rect.
func (r *Registry) Page(page int) (geom.Rect, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rect, ok := r.pages[page]
	return rect, ok
}

// Paragraph returns a paragraph's screen rect by id.
func (r *Registry) Paragraph(id string) (geom.Rect, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rect, ok := r.paragraphs[id]
	return rect, ok
}

// ParagraphPage returns the page a paragraph belongs to.
func (r *Registry) ParagraphPage(id string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	page, ok := r.paraPage[id]
	return page, ok
}

// ParagraphAt finds the paragraph whose box contains the point. If none
// contains it, the nearest paragraph by center distance is returned, so a
// drop just outside a column edge still lands somewhere sensible. ok is
// false only when the registry holds no paragraphs at all.
func (r *Registry) ParagraphAt(p geom.Point) (id string, rect geom.Rect, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	best := ""
	bestDist := 0.0
	for _, cand := range r.order {
		box := r.paragraphs[cand]
		if box.Contains(p) {
			return cand, box, true
		}
		d := box.Center().Dist(p)
		if best == "" || d < bestDist {
			best, bestDist = cand, d
		}
	}
	if best == "" {
		return "", geom.Rect{}, false
	}
	return best, r.paragraphs[best], true
}

// Paragraphs returns the known paragraph ids in registration order.
func (r *Registry) Paragraphs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
