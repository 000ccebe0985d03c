// Package panel manages the floating translation panels: header drag,
// edge resize, spatial snapping against paragraph boxes and the sidebar
// edge, z-order, and content population from the translation client.
package panel

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/lectern-app/lectern/internal/geom"
)

const (
	// MinWidth and MaxWidth bound a panel's width in logical pixels,
	// including the width adopted from a snapped paragraph.
	MinWidth  = 280.0
	MaxWidth  = 900.0
	MinHeight = 160.0
	MaxHeight = 700.0

	// DefaultWidth and DefaultHeight size a freshly opened panel.
	DefaultWidth  = 420.0
	DefaultHeight = 280.0

	// HeaderHeight is the draggable strip at the top of a panel.
	HeaderHeight = 28.0

	// SidebarThreshold is how close the panel's right edge must be to
	// the viewport's right edge for a sidebar snap.
	SidebarThreshold = 100.0
	// ParagraphSnapDistance is the max center-to-center distance for a
	// paragraph snap when the panel center is not inside the box.
	ParagraphSnapDistance = 120.0
)

// ErrSnapTargetMissing is returned when a drag releases onto a snap
// target that no longer exists; the panel stays where it was dropped
// with snapping cleared.
var ErrSnapTargetMissing = errors.New("panel: snap target missing")

// ErrNotFound is returned for operations on an unknown panel id.
var ErrNotFound = errors.New("panel: not found")

// SnapMode is a panel's spatial-docking state.
type SnapMode int

const (
	SnapNone SnapMode = iota
	SnapParagraph
	SnapSidebar
)

func (m SnapMode) String() string {
	switch m {
	case SnapParagraph:
		return "paragraph"
	case SnapSidebar:
		return "sidebar"
	default:
		return "none"
	}
}

// Panel is one floating translation panel.
type Panel struct {
	ID          string
	ParagraphID string // "" for free-text panels
	Pos         geom.Point
	Size        geom.Size
	Snap        SnapMode
	Target      string // snapped paragraph id when Snap == SnapParagraph

	Original    string
	Translation string
	ErrText     string // inline failure message, panel stays open
	Loading     bool

	dragging   bool
	dragOffset geom.Point
	resizing   bool
	resizeEdge Edge
	// snap candidates recomputed continuously while dragging
	sidebarCandidate   bool
	paragraphCandidate string
}

// Rect returns the panel's current screen rect.
func (p *Panel) Rect() geom.Rect {
	return geom.Rect{X: p.Pos.X, Y: p.Pos.Y, W: p.Size.W, H: p.Size.H}
}

func (p *Panel) headerRect() geom.Rect {
	return geom.Rect{X: p.Pos.X, Y: p.Pos.Y, W: p.Size.W, H: HeaderHeight}
}

// Geometry is the live screen-space index panels snap against. The
// compositor's registry satisfies it.
type Geometry interface {
	Paragraph(id string) (geom.Rect, bool)
	ParagraphAt(p geom.Point) (id string, rect geom.Rect, ok bool)
}

// Manager owns every live panel. Panels are kept in z-order: the last
// slice element renders on top.
type Manager struct {
	mu       sync.Mutex
	geo      Geometry
	viewport geom.Size
	panels   []*Panel
	seq      int
}

// NewManager builds an empty manager over the given geometry index.
func NewManager(geo Geometry) *Manager {
	return &Manager{geo: geo}
}

// SetViewport records the viewport size sidebar snapping measures
// against.
func (m *Manager) SetViewport(size geom.Size) {
	m.mu.Lock()
	m.viewport = size
	m.mu.Unlock()
}

// Open creates a panel anchored at the given position for a paragraph.
// Opening a second panel for the same paragraph focuses the existing one
// and returns it unchanged, so the panel id is stable across repeat
// opens.
func (m *Manager) Open(paragraphID string, anchor geom.Point, original string) *Panel {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.panels {
		if p.ParagraphID != "" && p.ParagraphID == paragraphID {
			m.focusLocked(p.ID)
			return p
		}
	}
	p := &Panel{
		ID:          "panel-" + paragraphID,
		ParagraphID: paragraphID,
		Pos:         anchor,
		Size:        geom.Size{W: DefaultWidth, H: DefaultHeight},
		Original:    original,
	}
	m.clampIntoViewportLocked(p)
	m.panels = append(m.panels, p)
	log.Printf("[panel] opened %s", p.ID)
	return p
}

// OpenFreeText creates a panel for a translate-selection action.
func (m *Manager) OpenFreeText(anchor geom.Point, text string) *Panel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	p := &Panel{
		ID:       fmt.Sprintf("panel-free-%d", m.seq),
		Pos:      anchor,
		Size:     geom.Size{W: DefaultWidth, H: DefaultHeight},
		Original: text,
	}
	m.clampIntoViewportLocked(p)
	m.panels = append(m.panels, p)
	return p
}

// Close destroys a panel.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.panels {
		if p.ID == id {
			m.panels = append(m.panels[:i], m.panels[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrNotFound, id)
}

// CloseAll destroys every panel, used on document switch.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	m.panels = nil
	m.mu.Unlock()
}

// Focus raises a panel to the top of the z-order.
func (m *Manager) Focus(id string) {
	m.mu.Lock()
	m.focusLocked(id)
	m.mu.Unlock()
}

func (m *Manager) focusLocked(id string) {
	for i, p := range m.panels {
		if p.ID == id {
			m.panels = append(append(m.panels[:i:i], m.panels[i+1:]...), p)
			return
		}
	}
}

// Get returns a panel by id.
func (m *Manager) Get(id string) (*Panel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(id)
}

func (m *Manager) getLocked(id string) (*Panel, bool) {
	for _, p := range m.panels {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Floating returns the free and paragraph-snapped panels in z-order,
// bottom first.
func (m *Manager) Floating() []*Panel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Panel, 0, len(m.panels))
	for _, p := range m.panels {
		if p.Snap != SnapSidebar {
			out = append(out, p)
		}
	}
	return out
}

// Docked returns the sidebar-docked panels in docking order.
func (m *Manager) Docked() []*Panel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Panel, 0, len(m.panels))
	for _, p := range m.panels {
		if p.Snap == SnapSidebar {
			out = append(out, p)
		}
	}
	return out
}

// Top returns the focused (topmost) panel, nil when none are open.
func (m *Manager) Top() *Panel {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.panels) == 0 {
		return nil
	}
	return m.panels[len(m.panels)-1]
}

func (m *Manager) clampIntoViewportLocked(p *Panel) {
	if m.viewport.W <= 0 || m.viewport.H <= 0 {
		return
	}
	if p.Pos.X+p.Size.W > m.viewport.W {
		p.Pos.X = m.viewport.W - p.Size.W
	}
	if p.Pos.Y+p.Size.H > m.viewport.H {
		p.Pos.Y = m.viewport.H - p.Size.H
	}
	if p.Pos.X < 0 {
		p.Pos.X = 0
	}
	if p.Pos.Y < 0 {
		p.Pos.Y = 0
	}
}

func clampWidth(w float64) float64 {
	if w < MinWidth {
		return MinWidth
	}
	if w > MaxWidth {
		return MaxWidth
	}
	return w
}

func clampHeight(h float64) float64 {
	if h < MinHeight {
		return MinHeight
	}
	if h > MaxHeight {
		return MaxHeight
	}
	return h
}
