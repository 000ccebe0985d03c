package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lectern-app/lectern/internal/ai"
	"github.com/lectern-app/lectern/internal/bus"
	"github.com/lectern-app/lectern/internal/compositor"
	"github.com/lectern-app/lectern/internal/doc"
	"github.com/lectern-app/lectern/internal/geom"
	"github.com/lectern-app/lectern/internal/highlight"
	"github.com/lectern-app/lectern/internal/panel"
	"github.com/lectern-app/lectern/internal/store"
	"github.com/lectern-app/lectern/internal/viewport"
)

// Terminal cells are mapped onto the engine's logical pixel space with a
// fixed cell box, so scroll distances and panel geometry stay in one unit.
const (
	cellWidth  = 8.0
	cellHeight = 16.0

	scrollStep = 48.0
)

// Config wires runtime options into the TUI program.
type Config struct {
	AI    ai.Client
	Store *store.Store
	Bus   bus.Bus
	DPR   float64
	// Demo, when set, is opened immediately instead of waiting for a
	// document reference.
	Demo doc.Document
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	refInput := textinput.New()
	refInput.Placeholder = "Path or URL of a PDF…"
	refInput.Focus()
	refInput.CharLimit = 200
	refInput.Width = 70

	gotoInput := textinput.New()
	gotoInput.Placeholder = "Page number…"
	gotoInput.CharLimit = 6
	gotoInput.Width = 12

	searchInput := textinput.New()
	searchInput.Placeholder = "Search text…"
	searchInput.CharLimit = 120
	searchInput.Width = 40

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	if config.DPR <= 0 {
		config.DPR = 1
	}
	if config.Bus == nil {
		config.Bus = bus.NewMemory()
	}

	comp := compositor.New(config.DPR, nil)
	engine := viewport.New(comp.RenderPage)
	comp.Attach(engine)

	m := &model{
		config:      config,
		stage:       stageInput,
		mode:        modeNormal,
		refInput:    refInput,
		gotoInput:   gotoInput,
		searchInput: searchInput,
		spinner:     spin,
		engine:      engine,
		comp:        comp,
		panels:      panel.NewManager(comp.Registry()),
		jobs:        newJobBus(),
		active:      map[string]jobSnapshot{},
		busEvents:   config.Bus.Subscribe(),
		info:        "Press o to open a document.",
	}
	if config.Demo != nil {
		m.openDemo = true
	}
	return m
}

type stage int

const (
	stageInput stage = iota
	stageLoading
	stageDisplay
	stageGoto
	stageSearch
)

type interactionMode int

const (
	modeNormal interactionMode = iota
	modeHighlight
)

type model struct {
	config Config
	stage  stage
	mode   interactionMode

	engine *viewport.Engine
	comp   *compositor.Compositor
	panels *panel.Manager
	marks  *highlight.Collection

	refInput    textinput.Model
	gotoInput   textinput.Model
	searchInput textinput.Model
	spinner     spinner.Model

	matches  []searchMatch
	matchIdx int

	width, height int

	scrollDebounce viewport.Coalescer
	resizeDebounce viewport.Coalescer

	jobs      *jobBus
	active    map[string]jobSnapshot
	busEvents <-chan bus.Event

	docTitle string
	cursor   int // paragraph cursor on the current page
	openDemo bool

	info    string
	errText string
	help    bool
}

// Messages produced by jobs and timers.
type engineEventMsg struct{ ev viewport.Event }

type busEventMsg struct{ ev bus.Event }

type scrollSettledMsg struct{ token int }

type resizeSettledMsg struct{ token int }

type documentOpenedMsg struct {
	doc doc.Document
	err error
}

type stateLoadedMsg struct {
	highlights []highlight.Highlight
	session    store.Session
	hasSession bool
	err        error
}

type translationDoneMsg struct{ panelID string }

type highlightsSavedMsg struct{ err error }

func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.waitEngineEvent(), m.waitBusEvent()}
	if m.openDemo {
		m.openDemo = false
		m.stage = stageLoading
		cmds = append(cmds, m.spinner.Tick,
			m.jobs.Start(jobKindOpen, func(context.Context) (tea.Msg, error) {
				return documentOpenedMsg{doc: m.config.Demo}, nil
			}))
	}
	return tea.Batch(cmds...)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.stage == stageLoading || m.loadingJobs() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.engine.Resize(m.logicalViewport())
		m.panels.SetViewport(m.logicalViewport())
		// Pages reflowed immediately; the render pass waits for the
		// resize to settle.
		token := m.resizeDebounce.Arm()
		return m, tea.Tick(viewport.ResizeSettle, func(time.Time) tea.Msg {
			return resizeSettledMsg{token: token}
		})

	case resizeSettledMsg:
		if m.resizeDebounce.Current(msg.token) {
			m.settleGeometry()
		}
		return m, nil

	case scrollSettledMsg:
		if m.scrollDebounce.Current(msg.token) {
			m.settleGeometry()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case engineEventMsg:
		return m.handleEngineEvent(msg.ev)

	case busEventMsg:
		return m.handleBusEvent(msg.ev)

	case jobSignalMsg:
		m.active[msg.Snapshot.ID] = msg.Snapshot
		return m, nil

	case jobResultEnvelope:
		m.active[msg.Snapshot.ID] = msg.Snapshot
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)

	case documentOpenedMsg:
		return m.handleDocumentOpened(msg)

	case stateLoadedMsg:
		return m.handleStateLoaded(msg)

	case translationDoneMsg:
		return m, nil

	case highlightsSavedMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
		}
		return m, nil
	}
	return m, nil
}

func (m *model) loadingJobs() bool {
	for _, snap := range m.active {
		if snap.Status == jobStatusRunning {
			return true
		}
	}
	return false
}

func (m *model) logicalViewport() geom.Size {
	return geom.Size{W: float64(m.width) * cellWidth, H: float64(m.height) * cellHeight}
}

// settleGeometry runs the post-debounce pass: scheduler, registry
// projection, and panel re-clamp, in that order so panels read this
// tick's geometry.
func (m *model) settleGeometry() {
	m.engine.Schedule()
	m.comp.SyncRegistry()
	m.panels.Tick()
}

func (m *model) handleDocumentOpened(msg documentOpenedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.stage = stageInput
		m.errText = msg.err.Error()
		m.info = "Try another document reference."
		m.refInput.Focus()
		return m, nil
	}
	d := msg.doc
	m.panels.CloseAll()
	m.comp.Reset()
	if err := m.engine.SetDocument(d); err != nil {
		m.stage = stageInput
		m.errText = err.Error()
		return m, nil
	}
	m.marks = highlight.NewCollection(d.ID())
	m.comp.SetHighlightSource(m.marks)
	m.docTitle = d.ID()
	m.stage = stageDisplay
	m.mode = modeNormal
	m.cursor = 0
	m.matches = nil
	m.errText = ""
	m.info = fmt.Sprintf("Opened %s (%d pages).", d.ID(), d.PageCount())
	m.comp.SyncRegistry()

	var cmds []tea.Cmd
	if m.config.Store != nil {
		cmds = append(cmds, m.jobs.Start(jobKindState, loadStateJob(m.config.Store, d.ID())))
	}
	return m, tea.Batch(cmds...)
}

func (m *model) handleStateLoaded(msg stateLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.errText = msg.err.Error()
		return m, nil
	}
	if m.marks != nil && len(msg.highlights) > 0 {
		m.marks.Replace(msg.highlights)
		m.refreshVisibleHighlights()
		m.info = fmt.Sprintf("Restored %d highlights.", len(msg.highlights))
	}
	if msg.hasSession {
		if msg.session.Scale > 0 && msg.session.Scale != 1 {
			m.engine.SetScalePercent(msg.session.Scale*100, nil)
		}
		m.engine.SetScroll(msg.session.ScrollTop)
		m.settleGeometry()
		return m, tea.Batch(m.reopenSessionPanels(msg.session.OpenPanels)...)
	}
	return m, nil
}

// reopenSessionPanels restores the translation panels the last session
// left open, anchored at their paragraphs. Paragraphs the document no
// longer reports are skipped.
func (m *model) reopenSessionPanels(paragraphIDs []string) []tea.Cmd {
	d := m.engine.Doc()
	if d == nil {
		return nil
	}
	var cmds []tea.Cmd
	for _, id := range paragraphIDs {
		var para doc.Paragraph
		found := false
		for page := 1; page <= d.PageCount() && !found; page++ {
			for _, p := range d.Paragraphs(page) {
				if p.ID == id {
					para, found = p, true
					break
				}
			}
		}
		if !found {
			continue
		}
		anchor := geom.Point{X: 80, Y: 80}
		if rect, ok := m.comp.Registry().Paragraph(id); ok {
			anchor = geom.Point{X: rect.X + rect.W, Y: rect.Y}
		}
		p := m.panels.Open(id, anchor, paragraphText(d, para))
		if cmd := m.translatePanel(p.ID, false); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

func (m *model) handleEngineEvent(ev viewport.Event) (tea.Model, tea.Cmd) {
	switch ev := ev.(type) {
	case viewport.RenderResult:
		if ev.Err != nil {
			m.errText = fmt.Sprintf("page %d render failed: %v", ev.Page, ev.Err)
		} else {
			m.comp.SyncRegistry()
			m.panels.Tick()
		}
	case viewport.DocumentLoaded:
		m.info = fmt.Sprintf("Laid out %d pages.", ev.Pages)
	case viewport.PreloadDone:
		m.info = fmt.Sprintf("Background preload finished (%d pages).", ev.Rendered)
	case viewport.AnchorSettled:
		m.comp.SyncRegistry()
		m.panels.Tick()
	}
	return m, m.waitEngineEvent()
}

func (m *model) handleBusEvent(ev bus.Event) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch ev.Kind {
	case bus.ReloadHighlights:
		// Reloads for other documents are not ours to act on.
		if d := m.engine.Doc(); d != nil && d.ID() == ev.DocID && m.config.Store != nil {
			cmds = append(cmds, m.jobs.Start(jobKindState, loadStateJob(m.config.Store, d.ID())))
		}
	}
	cmds = append(cmds, m.waitBusEvent())
	return m, tea.Batch(cmds...)
}

func (m *model) waitEngineEvent() tea.Cmd {
	events := m.engine.Events()
	return func() tea.Msg {
		return engineEventMsg{ev: <-events}
	}
}

func (m *model) waitBusEvent() tea.Cmd {
	events := m.busEvents
	return func() tea.Msg {
		return busEventMsg{ev: <-events}
	}
}

// refreshVisibleHighlights rebuilds the highlight overlay of every
// composed visible page after a mutation.
func (m *model) refreshVisibleHighlights() {
	for _, page := range m.engine.VisiblePages() {
		m.comp.RefreshHighlights(page)
	}
}

// persistHighlights saves the collection and announces the change.
func (m *model) persistHighlights() tea.Cmd {
	if m.marks == nil || m.config.Store == nil {
		return nil
	}
	d := m.engine.Doc()
	if d == nil {
		return nil
	}
	items := m.marks.All()
	st, docID, b := m.config.Store, d.ID(), m.config.Bus
	return m.jobs.Start(jobKindSave, func(ctx context.Context) (tea.Msg, error) {
		if err := st.SaveHighlights(ctx, docID, items); err != nil {
			return highlightsSavedMsg{err: err}, err
		}
		b.Publish(bus.Event{Kind: bus.ReloadHighlights, DocID: docID})
		return highlightsSavedMsg{}, nil
	})
}

// saveSession is best-effort and runs inline before quitting.
func (m *model) saveSession() {
	if m.config.Store == nil {
		return
	}
	d := m.engine.Doc()
	if d == nil {
		return
	}
	var open []string
	for _, p := range m.panels.Floating() {
		if p.ParagraphID != "" {
			open = append(open, p.ParagraphID)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sess := store.Session{
		DocID:      d.ID(),
		ScrollTop:  m.engine.ScrollTop(),
		Scale:      m.engine.Scale(),
		OpenPanels: open,
	}
	if err := m.config.Store.SaveSession(ctx, sess); err == nil {
		m.config.Bus.Publish(bus.Event{Kind: bus.ReloadSessions, DocID: d.ID()})
	}
}

func (m *model) modeLabel() string {
	if m.mode == modeHighlight {
		return "HIGHLIGHT"
	}
	return "NORMAL"
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}

var (
	titleStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helperStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	statusBarStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	pageBoxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(0, 1)
	panelBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7f5af0")).Padding(0, 1)
	focusedPanelStyle  = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("#ffd166")).Padding(0, 1)
	cursorLineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("190"))
	selectedMarkStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("229"))
	helpBoxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(1, 2)
)
