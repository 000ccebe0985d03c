package doc

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/ledongthuc/pdf"
	"golang.org/x/image/font/basicfont"

	"github.com/lectern-app/lectern/internal/geom"
)

// PDFDocument adapts a ledongthuc/pdf reader to the Document interface.
type PDFDocument struct {
	id     string
	file   *os.File
	reader *pdf.Reader

	mu         sync.Mutex
	pages      []*pdfPage
	paragraphs map[int][]Paragraph
	destCache  map[string]int
}

// Open loads a document from a local path or an http(s) URL. URL refs are
// fetched through the resumable cache. Page sizes are prefetched at the
// reference scale so layout never blocks on the parser.
func Open(ctx context.Context, ref string) (*PDFDocument, error) {
	path := ref
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		cache, err := newFetchCache(nil)
		if err != nil {
			return nil, err
		}
		path, err = cache.Fetch(ctx, ref)
		if err != nil {
			return nil, err
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	file, reader, err := pdf.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	sum := sha1.Sum([]byte(abs))
	d := &PDFDocument{
		id:         hex.EncodeToString(sum[:8]),
		file:       file,
		reader:     reader,
		paragraphs: map[int][]Paragraph{},
		destCache:  map[string]int{},
	}

	count := reader.NumPage()
	d.pages = make([]*pdfPage, count)
	for i := 1; i <= count; i++ {
		page := reader.Page(i)
		d.pages[i-1] = &pdfPage{
			doc:    d,
			number: i,
			page:   page,
			size:   mediaBoxSize(page),
		}
	}
	log.Printf("[doc] opened %s (%d pages)", filepath.Base(abs), count)
	return d, nil
}

func (d *PDFDocument) ID() string     { return d.id }
func (d *PDFDocument) PageCount() int { return len(d.pages) }

func (d *PDFDocument) Page(n int) (Page, error) {
	if n < 1 || n > len(d.pages) {
		return nil, fmt.Errorf("doc: page %d out of range 1..%d", n, len(d.pages))
	}
	return d.pages[n-1], nil
}

func (d *PDFDocument) Close() error {
	return d.file.Close()
}

// Paragraphs groups a page's text runs into paragraph snap targets. Lines
// are clustered by baseline, then split into paragraphs at vertical gaps
// larger than 1.8× the running line height. Results are memoized.
func (d *PDFDocument) Paragraphs(page int) []Paragraph {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cached, ok := d.paragraphs[page]; ok {
		return cached
	}
	p, err := d.Page(page)
	if err != nil {
		return nil
	}
	runs, err := p.TextGeometry()
	if err != nil {
		d.paragraphs[page] = nil
		return nil
	}
	paras := groupParagraphs(page, runs)
	d.paragraphs[page] = paras
	return paras
}

func groupParagraphs(page int, runs []TextRun) []Paragraph {
	if len(runs) == 0 {
		return nil
	}
	sorted := append([]TextRun(nil), runs...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Origin.Y != sorted[j].Origin.Y {
			return sorted[i].Origin.Y < sorted[j].Origin.Y
		}
		return sorted[i].Origin.X < sorted[j].Origin.X
	})

	var paras []Paragraph
	var box geom.Rect
	lastBottom := -1.0
	lineHeight := sorted[0].FontSize
	flush := func() {
		if box.W == 0 && box.H == 0 {
			return
		}
		paras = append(paras, Paragraph{
			ID:   fmt.Sprintf("p%d-%d", page, len(paras)+1),
			Page: page,
			BBox: box,
		})
		box = geom.Rect{}
	}
	for _, run := range sorted {
		h := run.FontSize
		if h <= 0 {
			h = lineHeight
		}
		r := geom.Rect{X: run.Origin.X, Y: run.Origin.Y, W: run.Width, H: h}
		if lastBottom >= 0 && run.Origin.Y-lastBottom > 1.8*lineHeight {
			flush()
		}
		box = box.Union(r)
		if run.Origin.Y+h > lastBottom {
			lastBottom = run.Origin.Y + h
		}
		if h > 0 {
			lineHeight = h
		}
	}
	flush()
	return paras
}

// ResolveNamedDestination looks the name up in the catalog's Dests
// dictionary and the Names tree. Destinations that carry an explicit page
// number resolve directly; page-object destinations are matched against
// the page list. Results are cached per document.
func (d *PDFDocument) ResolveNamedDestination(ctx context.Context, name string) (int, error) {
	d.mu.Lock()
	if page, ok := d.destCache[name]; ok {
		d.mu.Unlock()
		return page, nil
	}
	d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	root := d.reader.Trailer().Key("Root")
	dest := root.Key("Dests").Key(name)
	if dest.IsNull() {
		dest = lookupNameTree(root.Key("Names").Key("Dests"), name)
	}
	page, err := d.destPage(dest)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	d.destCache[name] = page
	d.mu.Unlock()
	return page, nil
}

func lookupNameTree(node pdf.Value, name string) pdf.Value {
	if node.IsNull() {
		return pdf.Value{}
	}
	names := node.Key("Names")
	for i := 0; i+1 < names.Len(); i += 2 {
		if names.Index(i).RawString() == name {
			return names.Index(i + 1)
		}
	}
	kids := node.Key("Kids")
	for i := 0; i < kids.Len(); i++ {
		if v := lookupNameTree(kids.Index(i), name); !v.IsNull() {
			return v
		}
	}
	return pdf.Value{}
}

func (d *PDFDocument) destPage(dest pdf.Value) (int, error) {
	if dest.IsNull() {
		return 0, ErrDestinationNotFound
	}
	// Some producers wrap the array in a dict under D.
	if dest.Kind() == pdf.Dict {
		dest = dest.Key("D")
	}
	if dest.Kind() != pdf.Array || dest.Len() == 0 {
		return 0, ErrDestinationNotFound
	}
	target := dest.Index(0)
	if target.Kind() == pdf.Integer {
		// Zero-based explicit index form.
		page := int(target.Int64()) + 1
		if page < 1 || page > len(d.pages) {
			return 0, ErrDestinationNotFound
		}
		return page, nil
	}
	if target.Kind() == pdf.Dict {
		want := target.String()
		for _, p := range d.pages {
			if p.page.V.String() == want {
				return p.number, nil
			}
		}
	}
	return 0, ErrDestinationNotFound
}

type pdfPage struct {
	doc    *PDFDocument
	number int
	page   pdf.Page
	size   geom.Size

	mu      sync.Mutex
	runs    []TextRun
	annots  []Annotation
	hasRuns bool
	hasAnn  bool
}

func (p *pdfPage) Number() int              { return p.number }
func (p *pdfPage) IntrinsicSize() geom.Size { return p.size }

func mediaBoxSize(page pdf.Page) geom.Size {
	box := page.V.Key("MediaBox")
	if box.Len() < 4 {
		// US Letter fallback when the box is missing or inherited in a
		// form the parser does not surface.
		return geom.Size{W: 612, H: 792}
	}
	x0, y0 := box.Index(0).Float64(), box.Index(1).Float64()
	x1, y1 := box.Index(2).Float64(), box.Index(3).Float64()
	return geom.Size{W: x1 - x0, H: y1 - y0}
}

// TextGeometry converts the parser's bottom-left text coordinates into
// top-left intrinsic units. Memoized: content extraction dominates open
// time on large documents.
func (p *pdfPage) TextGeometry() ([]TextRun, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hasRuns {
		return p.runs, nil
	}
	content := p.page.Content()
	runs := make([]TextRun, 0, len(content.Text))
	for _, t := range content.Text {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		runs = append(runs, TextRun{
			Text:     t.S,
			Origin:   geom.Point{X: t.X, Y: p.size.H - t.Y - t.FontSize},
			FontSize: t.FontSize,
			Width:    t.W,
		})
	}
	p.runs = runs
	p.hasRuns = true
	return runs, nil
}

// Annotations reads the page's link annotations. URI actions become
// external links, GoTo actions and Dest entries become internal links,
// string destinations stay named for async resolution.
func (p *pdfPage) Annotations() ([]Annotation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hasAnn {
		return p.annots, nil
	}
	var out []Annotation
	annots := p.page.V.Key("Annots")
	for i := 0; i < annots.Len(); i++ {
		a := annots.Index(i)
		if a.Key("Subtype").Name() != "Link" {
			continue
		}
		rect := a.Key("Rect")
		if rect.Len() < 4 {
			continue
		}
		x0, y0 := rect.Index(0).Float64(), rect.Index(1).Float64()
		x1, y1 := rect.Index(2).Float64(), rect.Index(3).Float64()
		region := geom.Rect{X: x0, Y: p.size.H - y1, W: x1 - x0, H: y1 - y0}

		ann := Annotation{Rect: region}
		action := a.Key("A")
		dest := a.Key("Dest")
		switch {
		case action.Key("S").Name() == "URI":
			ann.Kind = LinkExternal
			ann.URI = action.Key("URI").RawString()
		case action.Key("S").Name() == "GoTo":
			ann = p.internalLink(region, action.Key("D"))
		case !dest.IsNull():
			ann = p.internalLink(region, dest)
		default:
			continue
		}
		out = append(out, ann)
	}
	p.annots = out
	p.hasAnn = true
	return out, nil
}

func (p *pdfPage) internalLink(region geom.Rect, dest pdf.Value) Annotation {
	if dest.Kind() == pdf.String || dest.Kind() == pdf.Name {
		return Annotation{Rect: region, Kind: LinkNamed, Name: dest.RawString()}
	}
	if page, err := p.doc.destPage(dest); err == nil {
		return Annotation{Rect: region, Kind: LinkPage, Page: page}
	}
	// Unresolvable destination: keep the region so the compositor can
	// render it inert.
	return Annotation{Rect: region, Kind: LinkNamed}
}

// Render paints the page raster: white ground plus the text runs, scaled.
// scale already includes the device pixel ratio; dst is sized by the
// caller. Cancellation is checked between rows of runs so a superseded
// task exits promptly.
func (p *pdfPage) Render(ctx context.Context, scale float64, dst *image.RGBA) error {
	runs, err := p.TextGeometry()
	if err != nil {
		return err
	}
	dc := gg.NewContextForRGBA(dst)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(color.Black)
	for i, run := range runs {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		dc.DrawString(run.Text, run.Origin.X*scale, (run.Origin.Y+run.FontSize)*scale)
	}
	return ctx.Err()
}
