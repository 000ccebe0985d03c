package doc

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lectern-app/lectern/internal/geom"
)

// Memory is an in-memory Document used by the engine tests and by the
// --demo flag. Pages share one intrinsic size; text runs, annotations,
// paragraphs and named destinations are injectable, and rendering can be
// slowed down or failed per page to exercise scheduler behavior.
type Memory struct {
	DocID      string
	Pages      int
	Size       geom.Size
	Runs       map[int][]TextRun
	Links      map[int][]Annotation
	Paras      map[int][]Paragraph
	NamedDests map[string]int

	// RenderDelay stalls every render, letting tests observe in-flight
	// tasks. RenderErr fails specific pages.
	RenderDelay time.Duration
	RenderErr   map[int]error

	mu      sync.Mutex
	renders map[int]int
	total   int64
}

// NewMemory returns a document with n pages of the given intrinsic size.
func NewMemory(id string, n int, size geom.Size) *Memory {
	return &Memory{
		DocID:      id,
		Pages:      n,
		Size:       size,
		Runs:       map[int][]TextRun{},
		Links:      map[int][]Annotation{},
		Paras:      map[int][]Paragraph{},
		NamedDests: map[string]int{},
		RenderErr:  map[int]error{},
		renders:    map[int]int{},
	}
}

func (m *Memory) ID() string     { return m.DocID }
func (m *Memory) PageCount() int { return m.Pages }
func (m *Memory) Close() error   { return nil }

func (m *Memory) Page(n int) (Page, error) {
	if n < 1 || n > m.Pages {
		return nil, fmt.Errorf("doc: page %d out of range 1..%d", n, m.Pages)
	}
	return &memoryPage{doc: m, number: n}, nil
}

func (m *Memory) Paragraphs(page int) []Paragraph {
	return m.Paras[page]
}

func (m *Memory) ResolveNamedDestination(ctx context.Context, name string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if page, ok := m.NamedDests[name]; ok {
		return page, nil
	}
	return 0, ErrDestinationNotFound
}

// RenderCount reports how many renders completed for a page.
func (m *Memory) RenderCount(page int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renders[page]
}

// TotalRenders reports completed renders across all pages.
func (m *Memory) TotalRenders() int {
	return int(atomic.LoadInt64(&m.total))
}

type memoryPage struct {
	doc    *Memory
	number int
}

func (p *memoryPage) Number() int              { return p.number }
func (p *memoryPage) IntrinsicSize() geom.Size { return p.doc.Size }

func (p *memoryPage) TextGeometry() ([]TextRun, error) {
	return p.doc.Runs[p.number], nil
}

func (p *memoryPage) Annotations() ([]Annotation, error) {
	return p.doc.Links[p.number], nil
}

func (p *memoryPage) Render(ctx context.Context, scale float64, dst *image.RGBA) error {
	if err, ok := p.doc.RenderErr[p.number]; ok && err != nil {
		return err
	}
	if d := p.doc.RenderDelay; d > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	p.doc.mu.Lock()
	p.doc.renders[p.number]++
	p.doc.mu.Unlock()
	atomic.AddInt64(&p.doc.total, 1)
	return nil
}
