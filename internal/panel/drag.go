package panel

import (
	"fmt"
	"log"

	"github.com/lectern-app/lectern/internal/geom"
)

// Edge selects which panel edges a resize moves.
type Edge int

const (
	EdgeLeft Edge = 1 << iota
	EdgeRight
	EdgeTop
	EdgeBottom
)

// StartDrag begins a header drag. The grab point must lie in the header
// strip; a grab anywhere else only focuses the panel. Starting a drag
// resets any active snap so the panel floats free until release.
func (m *Manager) StartDrag(id string, at geom.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.getLocked(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	m.focusLocked(id)
	if !p.headerRect().Contains(at) {
		return nil
	}
	p.dragging = true
	p.dragOffset = geom.Point{X: at.X - p.Pos.X, Y: at.Y - p.Pos.Y}
	p.Snap = SnapNone
	p.Target = ""
	return nil
}

// Drag moves a dragging panel and recomputes both snap candidates.
func (m *Manager) Drag(id string, to geom.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.getLocked(id)
	if !ok || !p.dragging {
		return
	}
	p.Pos = geom.Point{X: to.X - p.dragOffset.X, Y: to.Y - p.dragOffset.Y}

	p.sidebarCandidate = m.viewport.W > 0 &&
		m.viewport.W-(p.Pos.X+p.Size.W) <= SidebarThreshold
	p.paragraphCandidate = ""
	center := p.Rect().Center()
	if id, rect, ok := m.geo.ParagraphAt(center); ok {
		// Containment wins immediately; otherwise the nearest paragraph
		// counts only within the snap distance.
		if rect.Contains(center) || rect.Center().Dist(center) <= ParagraphSnapDistance {
			p.paragraphCandidate = id
		}
	}
}

// EndDrag releases a drag and applies whichever snap candidate was
// active, sidebar taking priority. A paragraph candidate whose geometry
// vanished between the last move and the release clears the snap and
// reports ErrSnapTargetMissing.
func (m *Manager) EndDrag(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.getLocked(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if !p.dragging {
		return nil
	}
	p.dragging = false
	switch {
	case p.sidebarCandidate:
		p.Snap = SnapSidebar
		p.Target = ""
		log.Printf("[panel] %s docked to sidebar", p.ID)
	case p.paragraphCandidate != "":
		rect, ok := m.geo.Paragraph(p.paragraphCandidate)
		if !ok {
			p.Snap = SnapNone
			p.Target = ""
			return fmt.Errorf("%w: %q", ErrSnapTargetMissing, p.paragraphCandidate)
		}
		p.Snap = SnapParagraph
		p.Target = p.paragraphCandidate
		p.Pos = geom.Point{X: rect.X, Y: rect.Y}
		p.Size.W = clampWidth(rect.W)
		log.Printf("[panel] %s snapped to %s", p.ID, p.Target)
	default:
		p.Snap = SnapNone
		p.Target = ""
	}
	p.sidebarCandidate = false
	p.paragraphCandidate = ""
	return nil
}

// StartResize begins an edge/corner resize and focuses the panel.
func (m *Manager) StartResize(id string, edge Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.getLocked(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	m.focusLocked(id)
	p.resizing = true
	p.resizeEdge = edge
	return nil
}

// Resize moves the grabbed edges to the pointer, clamping width and
// height independently to their min/max.
func (m *Manager) Resize(id string, to geom.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.getLocked(id)
	if !ok || !p.resizing {
		return
	}
	r := p.Rect()
	if p.resizeEdge&EdgeRight != 0 {
		r.W = to.X - r.X
	}
	if p.resizeEdge&EdgeLeft != 0 {
		right := r.X + r.W
		r.X = to.X
		r.W = right - r.X
	}
	if p.resizeEdge&EdgeBottom != 0 {
		r.H = to.Y - r.Y
	}
	if p.resizeEdge&EdgeTop != 0 {
		bottom := r.Y + r.H
		r.Y = to.Y
		r.H = bottom - r.Y
	}
	w, h := clampWidth(r.W), clampHeight(r.H)
	// A clamped left/top edge must not shift the opposite edge.
	if p.resizeEdge&EdgeLeft != 0 {
		r.X += r.W - w
	}
	if p.resizeEdge&EdgeTop != 0 {
		r.Y += r.H - h
	}
	p.Pos = geom.Point{X: r.X, Y: r.Y}
	p.Size = geom.Size{W: w, H: h}
}

// EndResize finishes a resize.
func (m *Manager) EndResize(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.getLocked(id); ok {
		p.resizing = false
	}
}

// Tick re-clamps every paragraph-snapped panel to its target's current
// screen rect; called once per scroll, zoom or resize pass. A target
// that disappeared (document switch mid-gesture) degrades the panel to
// free-floating.
func (m *Manager) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.panels {
		if p.Snap != SnapParagraph || p.dragging {
			continue
		}
		rect, ok := m.geo.Paragraph(p.Target)
		if !ok {
			log.Printf("[panel] %s lost snap target %s", p.ID, p.Target)
			p.Snap = SnapNone
			p.Target = ""
			continue
		}
		p.Pos = geom.Point{X: rect.X, Y: rect.Y}
		p.Size.W = clampWidth(rect.W)
	}
}
