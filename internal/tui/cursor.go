package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lectern-app/lectern/internal/doc"
	"github.com/lectern-app/lectern/internal/geom"
	"github.com/lectern-app/lectern/internal/panel"
)

// visibleParagraphs lists the paragraphs of the currently visible pages in
// reading order. The cursor indexes into this slice.
func (m *model) visibleParagraphs() []doc.Paragraph {
	d := m.engine.Doc()
	if d == nil {
		return nil
	}
	var out []doc.Paragraph
	for _, page := range m.engine.VisiblePages() {
		out = append(out, d.Paragraphs(page)...)
	}
	return out
}

func (m *model) clampCursor() {
	paras := m.visibleParagraphs()
	if len(paras) == 0 {
		m.cursor = 0
		return
	}
	if m.cursor < 0 {
		m.cursor = len(paras) - 1
	}
	if m.cursor >= len(paras) {
		m.cursor = 0
	}
}

func (m *model) cursorParagraph() (doc.Paragraph, bool) {
	paras := m.visibleParagraphs()
	if len(paras) == 0 {
		return doc.Paragraph{}, false
	}
	if m.cursor < 0 || m.cursor >= len(paras) {
		m.cursor = 0
	}
	return paras[m.cursor], true
}

// paragraphText reassembles the source text of a paragraph from the text
// runs whose origin falls inside its bounding box.
func paragraphText(d doc.Document, para doc.Paragraph) string {
	page, err := d.Page(para.Page)
	if err != nil {
		return ""
	}
	runs, err := page.TextGeometry()
	if err != nil {
		return ""
	}
	var sb strings.Builder
	for _, run := range runs {
		if !para.BBox.Contains(run.Origin) {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(run.Text)
	}
	return sb.String()
}

func (m *model) openTranslationForCursor(force bool) tea.Cmd {
	para, ok := m.cursorParagraph()
	if !ok {
		m.errText = "no paragraph under the cursor"
		return nil
	}
	rect, found := m.comp.Registry().Paragraph(para.ID)
	anchor := geom.Point{X: 80, Y: 80}
	if found {
		anchor = geom.Point{X: rect.X + rect.W, Y: rect.Y}
	}
	text := paragraphText(m.engine.Doc(), para)
	p := m.panels.Open(para.ID, anchor, text)
	return m.translatePanel(p.ID, force)
}

// translatePanel populates one panel off the event loop. Failures stay
// inside the panel body, never in the job result.
func (m *model) translatePanel(panelID string, force bool) tea.Cmd {
	if m.config.AI == nil {
		m.errText = "no translation backend configured"
		return nil
	}
	tr := panel.Translator{
		Client:   m.config.AI,
		Cache:    m.translationCache(),
		DocID:    m.docID(),
		DocTitle: m.docTitle,
	}
	panels := m.panels
	return tea.Batch(
		m.jobs.Start(jobKindTranslate, func(ctx context.Context) (tea.Msg, error) {
			panels.Populate(ctx, tr, panelID, force)
			return translationDoneMsg{panelID: panelID}, nil
		}),
		m.spinner.Tick,
	)
}

// translationCache avoids handing the translator a typed nil store.
func (m *model) translationCache() panel.TranslationCache {
	if m.config.Store == nil {
		return nil
	}
	return m.config.Store
}

func (m *model) docID() string {
	if d := m.engine.Doc(); d != nil {
		return d.ID()
	}
	return ""
}

// snapTopPanelToCursor drives the topmost panel onto the cursor paragraph
// through the same grab/drag/release path a pointer would take.
func (m *model) snapTopPanelToCursor() tea.Cmd {
	top := m.panels.Top()
	if top == nil {
		return nil
	}
	para, ok := m.cursorParagraph()
	if !ok {
		return nil
	}
	rect, found := m.comp.Registry().Paragraph(para.ID)
	if !found {
		return nil
	}
	grab := geom.Point{X: top.Pos.X + 10, Y: top.Pos.Y + 10}
	if err := m.panels.StartDrag(top.ID, grab); err != nil {
		return nil
	}
	center := rect.Center()
	m.panels.Drag(top.ID, geom.Point{
		X: center.X - top.Size.W/2 + 10,
		Y: center.Y - top.Size.H/2 + 10,
	})
	if err := m.panels.EndDrag(top.ID); err != nil {
		m.errText = err.Error()
	}
	return nil
}

func (m *model) highlightCursorParagraph() tea.Cmd {
	if m.marks == nil {
		return nil
	}
	para, ok := m.cursorParagraph()
	if !ok {
		return nil
	}
	rect, found := m.comp.Registry().Paragraph(para.ID)
	if !found {
		return nil
	}
	pageRect, ok := m.engine.PageScreenRect(para.Page)
	if !ok {
		return nil
	}
	text := paragraphText(m.engine.Doc(), para)
	h, err := m.marks.AddFromSelection(para.Page, []geom.Rect{rect}, pageRect, text, "yellow")
	if err != nil {
		m.errText = err.Error()
		return nil
	}
	m.refreshVisibleHighlights()
	m.info = fmt.Sprintf("Highlighted %s.", h.ID)
	return m.persistHighlights()
}

// cycleHighlightUnderCursor steps the selection through overlapping marks
// at the cursor paragraph's center.
func (m *model) cycleHighlightUnderCursor() {
	para, ok := m.cursorParagraph()
	if !ok {
		return
	}
	rect, found := m.comp.Registry().Paragraph(para.ID)
	if !found {
		return
	}
	pageRect, ok := m.engine.PageScreenRect(para.Page)
	if !ok || pageRect.W <= 0 || pageRect.H <= 0 {
		return
	}
	center := rect.Center()
	at := geom.Point{
		X: (center.X - pageRect.X) / pageRect.W,
		Y: (center.Y - pageRect.Y) / pageRect.H,
	}
	id := m.marks.HitCycle(para.Page, at)
	if id == "" {
		m.info = "No highlight there."
	} else {
		m.info = fmt.Sprintf("Selected %s.", id)
	}
	m.refreshVisibleHighlights()
}
