package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/lectern-app/lectern/internal/compositor"
	"github.com/lectern-app/lectern/internal/geom"
	"github.com/lectern-app/lectern/internal/panel"
)

func (m *model) View() string {
	switch m.stage {
	case stageInput:
		return m.viewInput()
	case stageLoading:
		return m.viewLoading()
	case stageDisplay, stageGoto, stageSearch:
		return m.viewDisplay()
	default:
		return ""
	}
}

func (m *model) viewInput() string {
	parts := []string{
		titleStyle.Render("Lectern"),
		helperStyle.Render("A reader for scientific PDFs with a translation side panel."),
		sectionHeaderStyle.Render("Open a document"),
		m.refInput.View(),
	}
	if m.errText != "" {
		parts = append(parts, errorStyle.Render(m.errText))
	}
	if m.info != "" {
		parts = append(parts, helperStyle.Render(m.info))
	}
	parts = append(parts, helperStyle.Render("Enter opens, Esc quits."))
	return joinNonEmpty(parts)
}

func (m *model) viewLoading() string {
	return joinNonEmpty([]string{
		titleStyle.Render("Lectern"),
		fmt.Sprintf("%s %s", m.spinner.View(), helperStyle.Render(m.info)),
	})
}

func (m *model) viewDisplay() string {
	parts := []string{m.heroView()}
	for _, page := range m.engine.VisiblePages() {
		parts = append(parts, m.pageView(page))
	}
	if floating := m.floatingPanelViews(); floating != "" {
		parts = append(parts, floating)
	}
	if docked := m.dockedPanelView(); docked != "" {
		parts = append(parts, docked)
	}
	if m.stage == stageGoto {
		parts = append(parts, joinNonEmpty([]string{
			sectionHeaderStyle.Render("Go to page"),
			m.gotoInput.View(),
		}))
	}
	if m.stage == stageSearch {
		parts = append(parts, joinNonEmpty([]string{
			sectionHeaderStyle.Render("Search"),
			m.searchInput.View(),
			helperStyle.Render("Enter searches, Esc cancels, n/N cycle matches."),
		}))
	}
	if m.errText != "" {
		parts = append(parts, errorStyle.Render(m.errText))
	}
	if m.info != "" {
		message := m.info
		if m.loadingJobs() {
			message = fmt.Sprintf("%s %s", m.spinner.View(), message)
		}
		parts = append(parts, helperStyle.Render(message))
	}
	if m.help {
		parts = append(parts, m.helpView())
	}
	parts = append(parts, m.statusBarView())
	return joinNonEmpty(parts)
}

func (m *model) heroView() string {
	title := m.docTitle
	if title == "" {
		title = "untitled"
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render("Lectern  "),
		helperStyle.Render(title),
	)
}

// pageView projects one composed page into terminal cells: text fragments
// are bucketed into rows by their screen Y, highlight marks restyle the
// fragments they cover, and the cursor paragraph gets the current-line
// treatment.
func (m *model) pageView(page int) string {
	header := sectionHeaderStyle.Render(fmt.Sprintf("Page %d / %d", page, m.engine.PageCount()))
	layers := m.comp.Layers(page)
	if layers == nil {
		state := m.engine.PageState(page)
		return pageBoxStyle.Render(joinNonEmpty([]string{
			header,
			helperStyle.Render(fmt.Sprintf("%s %s…", m.spinner.View(), state)),
		}))
	}

	width := int(layers.Box.W/cellWidth) - 4
	if width < 20 {
		width = 20
	}

	var cursorRect geom.Rect
	if para, ok := m.cursorParagraph(); ok && para.Page == page {
		if rect, found := m.comp.Registry().Paragraph(para.ID); found {
			if pageRect, ok := m.engine.PageScreenRect(page); ok {
				// Registry rects are viewport-relative; make them page-local.
				cursorRect = geom.Rect{X: rect.X - pageRect.X, Y: rect.Y - pageRect.Y, W: rect.W, H: rect.H}
			}
		}
	}

	lines := renderTextRows(layers, cursorRect, m.selectedMarkID(), width)
	if len(lines) == 0 {
		lines = []string{helperStyle.Render("(no text on this page)")}
	}
	if n := len(layers.Links); n > 0 {
		lines = append(lines, helperStyle.Render(fmt.Sprintf("%d links", n)))
	}
	return pageBoxStyle.Render(joinNonEmpty([]string{header, strings.Join(lines, "\n")}))
}

func (m *model) selectedMarkID() string {
	if m.marks == nil {
		return ""
	}
	return m.marks.SelectedHighlight()
}

// renderTextRows flattens the text layer into display rows. Fragments are
// sorted by position, grouped into cell-height bands, and each band is
// wrapped to the page width.
func renderTextRows(layers *compositor.PageLayers, cursorRect geom.Rect, selectedMark string, width int) []string {
	frags := make([]compositor.TextFragment, len(layers.Text))
	copy(frags, layers.Text)
	sort.SliceStable(frags, func(i, j int) bool {
		if frags[i].Rect.Y != frags[j].Rect.Y {
			return frags[i].Rect.Y < frags[j].Rect.Y
		}
		return frags[i].Rect.X < frags[j].Rect.X
	})

	var rows []string
	lastBand := -1 << 30
	var row strings.Builder
	flush := func() {
		if row.Len() == 0 {
			return
		}
		rows = append(rows, wordwrap.String(row.String(), width))
		row.Reset()
	}
	for _, frag := range frags {
		band := int(frag.Rect.Y / cellHeight)
		if band != lastBand {
			flush()
			lastBand = band
		} else if row.Len() > 0 {
			row.WriteByte(' ')
		}
		row.WriteString(styleFragment(layers, frag, cursorRect, selectedMark))
	}
	flush()
	return rows
}

func styleFragment(layers *compositor.PageLayers, frag compositor.TextFragment, cursorRect geom.Rect, selectedMark string) string {
	center := frag.Rect.Center()
	for _, h := range layers.Highlights {
		if !h.Rect.Contains(center) {
			continue
		}
		if h.ID == selectedMark {
			return selectedMarkStyle.Render(frag.Text)
		}
		return highlightStyle.Render(frag.Text)
	}
	if cursorRect.W > 0 && cursorRect.Contains(center) {
		return cursorLineStyle.Render(frag.Text)
	}
	return frag.Text
}

func (m *model) floatingPanelViews() string {
	floating := m.panels.Floating()
	if len(floating) == 0 {
		return ""
	}
	top := m.panels.Top()
	var boxes []string
	for _, p := range floating {
		style := panelBoxStyle
		if top != nil && p.ID == top.ID {
			style = focusedPanelStyle
		}
		boxes = append(boxes, style.Render(m.panelBody(p)))
	}
	return strings.Join(boxes, "\n")
}

func (m *model) dockedPanelView() string {
	docked := m.panels.Docked()
	if len(docked) == 0 {
		return ""
	}
	lines := []string{sectionHeaderStyle.Render("Sidebar")}
	for _, p := range docked {
		lines = append(lines, panelBoxStyle.Render(m.panelBody(p)))
	}
	return strings.Join(lines, "\n")
}

func (m *model) panelBody(p *panel.Panel) string {
	width := int(p.Size.W/cellWidth) - 4
	if width < 24 {
		width = 24
	}
	label := p.ParagraphID
	if label == "" {
		label = "free text"
	}
	header := sectionHeaderStyle.Render(fmt.Sprintf("Translation · %s · %s", label, p.Snap))
	parts := []string{header}
	switch {
	case p.Loading:
		parts = append(parts, fmt.Sprintf("%s translating…", m.spinner.View()))
	case p.ErrText != "":
		parts = append(parts,
			errorStyle.Render(wordwrap.String(p.ErrText, width)),
			helperStyle.Render("Press r to retry."))
	case p.Translation != "":
		parts = append(parts, wordwrap.String(p.Translation, width))
	default:
		parts = append(parts, helperStyle.Render("Press t to translate."))
	}
	return strings.Join(parts, "\n")
}

func (m *model) statusBarView() string {
	stats := []string{
		fmt.Sprintf("Page %d/%d", m.engine.CurrentPage(), m.engine.PageCount()),
		fmt.Sprintf("Zoom %.0f%%", m.engine.Scale()*100),
		fmt.Sprintf("Mode %s", m.modeLabel()),
	}
	if m.marks != nil {
		stats = append(stats, fmt.Sprintf("Marks %d", len(m.marks.All())))
	}
	if open := len(m.panels.Floating()) + len(m.panels.Docked()); open > 0 {
		stats = append(stats, fmt.Sprintf("Panels %d", open))
	}
	if len(m.matches) > 0 {
		stats = append(stats, fmt.Sprintf("Match %d/%d", m.matchIdx+1, len(m.matches)))
	}
	stats = append(stats, m.jobStatusBadges()...)
	return statusBarStyle.Render(strings.Join(stats, "  •  "))
}

func (m *model) jobStatusBadges() []string {
	var badges []string
	for _, snap := range m.active {
		if snap.Status == jobStatusRunning {
			badges = append(badges, fmt.Sprintf("%s…", snap.Kind))
		}
	}
	sort.Strings(badges)
	return badges
}

func (m *model) helpView() string {
	lines := []string{
		sectionHeaderStyle.Render("Keys"),
		helperStyle.Render("• j/k scroll, ctrl+d/ctrl+u page, g/G top or bottom, p jumps to a page."),
		helperStyle.Render("• +/- zoom around the cursor paragraph, 0 resets to 100%."),
		helperStyle.Render("• tab/shift+tab move the paragraph cursor, t opens a translation panel, r re-translates."),
		helperStyle.Render("• s snaps the focused panel to the cursor paragraph, f cycles focus, x closes."),
		helperStyle.Render("• h toggles highlight mode: Enter marks, n cycles overlapping marks, c recolors, d deletes."),
		helperStyle.Render("• / searches the document text, n/N jump between matches."),
		helperStyle.Render("• o opens another document, q quits and saves the session."),
	}
	return helpBoxStyle.Render(strings.Join(lines, "\n"))
}
