package compositor

import "github.com/lectern-app/lectern/internal/geom"

// SyncRegistry re-projects the visible pages and their paragraphs into
// screen coordinates. Called once per layout tick (scroll, resize, zoom)
// so everything reading the registry sees this tick's geometry.
func (c *Compositor) SyncRegistry() {
	d := c.engine.Doc()
	if d == nil {
		return
	}
	scale := c.engine.Scale()
	for _, page := range c.engine.VisiblePages() {
		rect, ok := c.engine.PageScreenRect(page)
		if !ok {
			continue
		}
		c.registry.SetPage(page, rect)
		for _, para := range d.Paragraphs(page) {
			c.registry.SetParagraph(para.ID, page, geom.Rect{
				X: rect.X + para.BBox.X*scale,
				Y: rect.Y + para.BBox.Y*scale,
				W: para.BBox.W * scale,
				H: para.BBox.H * scale,
			})
		}
	}
}
