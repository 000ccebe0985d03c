package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lectern-app/lectern/internal/geom"
	"github.com/lectern-app/lectern/internal/viewport"
)

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyCtrlC:
		m.saveSession()
		return m, tea.Quit
	case tea.KeyEsc:
		switch m.stage {
		case stageGoto:
			m.stage = stageDisplay
			m.gotoInput.SetValue("")
			m.gotoInput.Blur()
			return m, nil
		case stageSearch:
			m.stage = stageDisplay
			m.searchInput.SetValue("")
			m.searchInput.Blur()
			return m, nil
		case stageDisplay:
			if m.mode == modeHighlight {
				m.mode = modeNormal
				m.info = "Highlight mode off."
				return m, nil
			}
			m.saveSession()
			return m, tea.Quit
		case stageInput:
			m.saveSession()
			return m, tea.Quit
		}
		return m, nil
	}

	switch m.stage {
	case stageInput:
		return m.handleInputKey(key)
	case stageGoto:
		return m.handleGotoKey(key)
	case stageSearch:
		return m.handleSearchKey(key)
	case stageDisplay:
		return m.handleDisplayKey(key)
	}
	return m, nil
}

func (m *model) handleInputKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyEnter {
		ref := strings.TrimSpace(m.refInput.Value())
		if ref == "" {
			return m, nil
		}
		m.stage = stageLoading
		m.errText = ""
		m.info = fmt.Sprintf("Opening %s…", ref)
		m.refInput.SetValue("")
		m.refInput.Blur()
		return m, tea.Batch(
			m.jobs.Start(jobKindOpen, openDocumentJob(ref)),
			m.spinner.Tick,
		)
	}
	var cmd tea.Cmd
	m.refInput, cmd = m.refInput.Update(key)
	return m, cmd
}

func (m *model) handleGotoKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyEnter {
		raw := strings.TrimSpace(m.gotoInput.Value())
		m.stage = stageDisplay
		m.gotoInput.SetValue("")
		m.gotoInput.Blur()
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > m.engine.PageCount() {
			m.errText = fmt.Sprintf("no page %q", raw)
			return m, nil
		}
		m.engine.GoToPage(n)
		m.settleGeometry()
		m.cursor = 0
		m.info = fmt.Sprintf("Page %d.", n)
		return m, nil
	}
	var cmd tea.Cmd
	m.gotoInput, cmd = m.gotoInput.Update(key)
	return m, cmd
}

func (m *model) handleSearchKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyEnter {
		query := m.searchInput.Value()
		m.stage = stageDisplay
		m.searchInput.Blur()
		m.runSearch(query)
		m.gotoMatch(0)
		return m, nil
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(key)
	return m, cmd
}

func (m *model) handleDisplayKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "q":
		m.saveSession()
		return m, tea.Quit

	case "j", "down":
		return m, m.scrollBy(scrollStep)
	case "k", "up":
		return m, m.scrollBy(-scrollStep)
	case "ctrl+d", "pgdown":
		return m, m.scrollBy(m.logicalViewport().H * 0.9)
	case "ctrl+u", "pgup":
		return m, m.scrollBy(-m.logicalViewport().H * 0.9)
	case "g", "home":
		m.engine.SetScroll(0)
		m.settleGeometry()
		return m, nil
	case "G", "end":
		m.engine.SetScroll(m.engine.TotalHeight())
		m.settleGeometry()
		return m, nil

	case "+", "=":
		m.engine.ZoomStep(1.1, m.zoomPointer())
		m.settleGeometry()
		return m, nil
	case "-", "_":
		m.engine.ZoomStep(1/1.1, m.zoomPointer())
		m.settleGeometry()
		return m, nil
	case "0":
		m.engine.SetScalePercent(100, nil)
		m.settleGeometry()
		return m, nil

	case "p", ":":
		m.stage = stageGoto
		m.gotoInput.Focus()
		return m, textinput.Blink
	case "/":
		m.stage = stageSearch
		m.searchInput.Focus()
		m.searchInput.SetValue("")
		return m, textinput.Blink
	case "o":
		m.stage = stageInput
		m.refInput.Focus()
		m.info = "Enter a document path or URL."
		return m, textinput.Blink

	case "tab":
		m.cursor++
		m.clampCursor()
		return m, nil
	case "shift+tab":
		m.cursor--
		m.clampCursor()
		return m, nil

	case "t":
		return m, m.openTranslationForCursor(false)
	case "r":
		if top := m.panels.Top(); top != nil {
			return m, m.translatePanel(top.ID, true)
		}
		return m, nil
	case "x":
		if top := m.panels.Top(); top != nil {
			m.panels.Close(top.ID)
		}
		return m, nil
	case "f":
		// Cycle panel focus: raise the bottom panel.
		if floating := m.panels.Floating(); len(floating) > 1 {
			m.panels.Focus(floating[0].ID)
		}
		return m, nil
	case "s":
		return m, m.snapTopPanelToCursor()

	case "h":
		if m.mode == modeHighlight {
			m.mode = modeNormal
			m.info = "Highlight mode off."
		} else {
			m.mode = modeHighlight
			m.info = "Highlight mode: Enter marks the selected paragraph, d deletes, c recolors."
		}
		return m, nil
	case "enter":
		if m.mode == modeHighlight {
			return m, m.highlightCursorParagraph()
		}
		return m, nil
	case "d":
		if m.mode == modeHighlight && m.marks != nil {
			if id := m.marks.SelectedHighlight(); id != "" {
				if err := m.marks.Delete(id); err == nil {
					m.refreshVisibleHighlights()
					m.info = "Highlight deleted."
					return m, m.persistHighlights()
				}
			}
		}
		return m, nil
	case "c":
		if m.mode == modeHighlight && m.marks != nil {
			if id := m.marks.SelectedHighlight(); id != "" {
				if h, ok := m.marks.Get(id); ok {
					if err := m.marks.Recolor(id, nextColor(h.Color)); err == nil {
						m.refreshVisibleHighlights()
						return m, m.persistHighlights()
					}
				}
			}
		}
		return m, nil
	case "n":
		if m.mode == modeHighlight && m.marks != nil {
			m.cycleHighlightUnderCursor()
			return m, nil
		}
		m.gotoMatch(m.matchIdx + 1)
		return m, nil
	case "N":
		m.gotoMatch(m.matchIdx - 1)
		return m, nil

	case "?":
		m.help = !m.help
		return m, nil
	}
	return m, nil
}

// scrollBy shifts the viewport immediately and arms the debounce token
// that triggers the scheduler pass once input settles.
func (m *model) scrollBy(dy float64) tea.Cmd {
	m.engine.ScrollBy(dy)
	token := m.scrollDebounce.Arm()
	return tea.Tick(viewport.ScrollDebounce, func(time.Time) tea.Msg {
		return scrollSettledMsg{token: token}
	})
}

// zoomPointer anchors keyboard zoom at the cursor paragraph when one is
// selected, the viewport center otherwise.
func (m *model) zoomPointer() *geom.Point {
	if para, ok := m.cursorParagraph(); ok {
		if rect, found := m.comp.Registry().Paragraph(para.ID); found {
			c := rect.Center()
			return &c
		}
	}
	return nil
}

func nextColor(current string) string {
	order := []string{"yellow", "green", "pink", "blue"}
	for i, c := range order {
		if c == current {
			return order[(i+1)%len(order)]
		}
	}
	return order[0]
}
