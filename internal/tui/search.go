package tui

import (
	"fmt"
	"strings"
)

// searchMatch pins one hit to a page and the intrinsic Y of its run, so
// navigation can scroll there at any scale.
type searchMatch struct {
	page int
	y    float64
	text string
}

// runSearch scans the extracted text of every page for a case-insensitive
// substring match. Pages whose text extraction fails are skipped.
func (m *model) runSearch(query string) {
	m.matches = nil
	m.matchIdx = 0
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return
	}
	d := m.engine.Doc()
	if d == nil {
		return
	}
	for n := 1; n <= m.engine.PageCount(); n++ {
		page, err := d.Page(n)
		if err != nil {
			continue
		}
		runs, err := page.TextGeometry()
		if err != nil {
			continue
		}
		for _, run := range runs {
			if strings.Contains(strings.ToLower(run.Text), query) {
				m.matches = append(m.matches, searchMatch{page: n, y: run.Origin.Y, text: run.Text})
			}
		}
	}
}

// gotoMatch scrolls the viewport so the idx-th match sits in the upper
// third of the screen, wrapping in either direction.
func (m *model) gotoMatch(idx int) {
	if len(m.matches) == 0 {
		m.info = "No matches."
		return
	}
	idx = ((idx % len(m.matches)) + len(m.matches)) % len(m.matches)
	m.matchIdx = idx
	hit := m.matches[idx]
	rect, ok := m.engine.PageRect(hit.page)
	if !ok {
		return
	}
	target := rect.Y + hit.y*m.engine.Scale() - m.logicalViewport().H/3
	if target < 0 {
		target = 0
	}
	m.engine.SetScroll(target)
	m.settleGeometry()
	m.cursor = 0
	m.info = fmt.Sprintf("Match %d/%d on page %d.", idx+1, len(m.matches), hit.page)
}
