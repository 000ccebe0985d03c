// Package highlight keeps the user's highlights for one open document:
// creation from a raw selection, recoloring, deletion, selection cycling
// over overlapping marks, and a per-page index for the overlay painter.
package highlight

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lectern-app/lectern/internal/geom"
)

// ErrNotFound is returned when an id names no stored highlight.
var ErrNotFound = errors.New("highlight: not found")

// Highlight is one persistent mark. Rects are normalized page fractions,
// so the mark re-projects correctly at any zoom level.
type Highlight struct {
	ID        string                `json:"id"`
	DocID     string                `json:"docId"`
	Page      int                   `json:"page"`
	Rects     []geom.NormalizedRect `json:"rects"`
	Text      string                `json:"text,omitempty"`
	Color     string                `json:"color"`
	CreatedAt time.Time             `json:"createdAt"`
}

// Collection is the in-memory highlight set for a single document. It
// carries no persistence itself; callers save and reload it around
// mutations.
type Collection struct {
	mu       sync.Mutex
	docID    string
	items    []Highlight
	byPage   map[int][]int
	selected string
	seq      int

	// selection-cycling state: which overlapping ids the previous
	// click saw, and which one it landed on.
	lastHits []string
	lastPick string

	now func() time.Time
}

// NewCollection builds an empty collection for the document.
func NewCollection(docID string) *Collection {
	return &Collection{
		docID:  docID,
		byPage: map[int][]int{},
		now:    time.Now,
	}
}

// Replace swaps in a loaded highlight set, used when restoring from
// storage or when another instance published a change.
func (c *Collection) Replace(items []Highlight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]Highlight(nil), items...)
	for _, h := range c.items {
		if n := sequenceOf(h.ID); n > c.seq {
			c.seq = n
		}
	}
	c.reindexLocked()
	if c.selected != "" {
		if _, ok := c.findLocked(c.selected); !ok {
			c.selected = ""
		}
	}
}

// AddFromSelection turns a raw selection into a stored highlight. rects
// are viewport-space boxes over the page whose screen rect is pageRect;
// they are normalized, deduplicated and clamped before storage. An empty
// result after cleanup is rejected.
func (c *Collection) AddFromSelection(page int, rects []geom.Rect, pageRect geom.Rect, text, color string) (Highlight, error) {
	norm := geom.NormalizeSelection(rects, geom.Size{W: pageRect.W, H: pageRect.H}, geom.Point{X: pageRect.X, Y: pageRect.Y})
	if len(norm) == 0 {
		return Highlight{}, fmt.Errorf("highlight: selection produced no rects")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	h := Highlight{
		ID:        fmt.Sprintf("h%d", c.seq),
		DocID:     c.docID,
		Page:      page,
		Rects:     norm,
		Text:      text,
		Color:     color,
		CreatedAt: c.now(),
	}
	c.items = append(c.items, h)
	c.reindexLocked()
	c.selected = h.ID
	return h, nil
}

// Recolor changes a highlight's color in place.
func (c *Collection) Recolor(id, color string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.findLocked(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	c.items[i].Color = color
	return nil
}

// Delete removes a highlight. Deleting the selected one clears the
// selection.
func (c *Collection) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.findLocked(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.reindexLocked()
	if c.selected == id {
		c.selected = ""
	}
	return nil
}

// Get returns a highlight by id.
func (c *Collection) Get(id string) (Highlight, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.findLocked(id)
	if !ok {
		return Highlight{}, false
	}
	return c.items[i], true
}

// All returns every highlight in creation order.
func (c *Collection) All() []Highlight {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Highlight(nil), c.items...)
}

// HighlightsOn returns the highlights on a page, creation order.
func (c *Collection) HighlightsOn(page int) []Highlight {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.byPage[page]
	out := make([]Highlight, 0, len(idx))
	for _, i := range idx {
		out = append(out, c.items[i])
	}
	return out
}

// SelectedHighlight returns the id of the selected highlight, "" when
// none.
func (c *Collection) SelectedHighlight() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Select sets the selection directly, as from a list pick.
func (c *Collection) Select(id string) {
	c.mu.Lock()
	c.selected = id
	c.lastHits = nil
	c.lastPick = ""
	c.mu.Unlock()
}

func (c *Collection) findLocked(id string) (int, bool) {
	for i := range c.items {
		if c.items[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

func (c *Collection) reindexLocked() {
	c.byPage = map[int][]int{}
	for i, h := range c.items {
		c.byPage[h.Page] = append(c.byPage[h.Page], i)
	}
}

func sequenceOf(id string) int {
	var n int
	if _, err := fmt.Sscanf(id, "h%d", &n); err != nil {
		return 0
	}
	return n
}
