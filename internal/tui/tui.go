package tui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Zuo-Peng/chatcap/internal/document"
	"github.com/Zuo-Peng/chatcap/internal/index"
	"github.com/Zuo-Peng/chatcap/internal/search"
)

const debounceDelay = 200 * time.Millisecond

type tuiMode int

const (
	modeSearch tuiMode = iota
	modeList
)

type Options struct {
	// Query pre-fills the input; with List unset it starts a search.
	Query  string
	List   bool
	Search search.Options
	// ExportDir is where C-e copies the selected document.
	ExportDir string
	// Out receives the post-exit message; defaults to stdout.
	Out io.Writer
}

// message types

type searchResultMsg struct {
	query   string
	results []search.Result
	err     error
}

type debounceTickMsg struct {
	query string
}

type actionDoneMsg struct {
	docName string
	deleted bool
	notice  string
	err     error
}

// model

type model struct {
	store       *document.Store
	db          *index.DB
	searchOpts  search.Options
	exportDir   string
	mode        tuiMode
	query       string
	results     []search.Result
	cursor      int
	listOffset  int
	filterInput textinput.Model
	preview     viewport.Model
	previewKey  string // "docName:msgID" to avoid duplicate renders
	notice      string
	width       int
	height      int
	ready       bool
	quitting    bool
	chosen      *search.Result
}

func newModel(store *document.Store, db *index.DB, opts Options) model {
	ti := textinput.New()
	ti.Placeholder = "Search..."
	if opts.List {
		ti.Placeholder = "Filter..."
	}
	ti.Focus()
	ti.SetValue(opts.Query)
	ti.Prompt = "> "
	ti.PromptStyle = styleInputPrompt
	ti.TextStyle = styleInput
	ti.CharLimit = 256

	mode := modeSearch
	if opts.List {
		mode = modeList
	}
	return model{
		store:       store,
		db:          db,
		searchOpts:  opts.Search,
		exportDir:   opts.ExportDir,
		mode:        mode,
		query:       opts.Query,
		filterInput: ti,
		preview:     viewport.New(0, 0),
	}
}

// Run starts the browser and blocks until it exits. Choosing a document with
// Enter copies its path to the clipboard, or prints it when no clipboard is
// available.
func Run(store *document.Store, db *index.DB, opts Options) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	p := tea.NewProgram(newModel(store, db, opts), tea.WithAltScreen(), tea.WithMouseCellMotion())
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}

	fm := finalModel.(model)
	if fm.chosen != nil {
		copyPath(out, fm.chosen.Path)
	}
	return nil
}

func copyPath(out io.Writer, path string) {
	if err := clipboard.WriteAll(path); err != nil {
		fmt.Fprintf(out, "%s\n", path)
		return
	}
	fmt.Fprintf(out, "Copied to clipboard: %s\n", path)
}

// Init triggers the initial search/list load.
func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.mode == modeList {
		cmds = append(cmds, m.doListAll(m.query))
	} else if m.query != "" {
		cmds = append(cmds, m.doSearch(m.query))
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.preview = newViewport(m.previewWidth(), m.panelHeight())
		m.previewKey = ""
		if len(m.results) > 0 && m.cursor < len(m.results) {
			cmds = append(cmds, loadPreviewCmd(m.store, m.results[m.cursor], m.query, m.previewWidth()))
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.Enter):
			if r, ok := m.selected(); ok {
				m.chosen = &r
				m.quitting = true
				return m, tea.Quit
			}

		case key.Matches(msg, keys.Delete):
			if r, ok := m.selected(); ok {
				return m, deleteCmd(m.store, m.db, r)
			}
			return m, nil

		case key.Matches(msg, keys.Export):
			if r, ok := m.selected(); ok && m.exportDir != "" {
				return m, exportCmd(m.store, r, m.exportDir)
			}
			return m, nil

		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.adjustListScroll(m.panelHeight())
				cmds = append(cmds, m.loadCurrentPreview())
			}
			return m, tea.Batch(cmds...)

		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.results)-1 {
				m.cursor++
				m.adjustListScroll(m.panelHeight())
				cmds = append(cmds, m.loadCurrentPreview())
			}
			return m, tea.Batch(cmds...)

		case key.Matches(msg, keys.PreviewUp):
			m.preview.LineUp(m.panelHeight() / 2)
			return m, nil

		case key.Matches(msg, keys.PreviewDn):
			m.preview.LineDown(m.panelHeight() / 2)
			return m, nil

		case key.Matches(msg, keys.PageUp):
			m.preview.LineUp(m.panelHeight())
			return m, nil

		case key.Matches(msg, keys.PageDown):
			m.preview.LineDown(m.panelHeight())
			return m, nil
		}

		var tiCmd tea.Cmd
		m.filterInput, tiCmd = m.filterInput.Update(msg)
		cmds = append(cmds, tiCmd)

		if newQuery := m.filterInput.Value(); newQuery != m.query {
			m.query = newQuery
			cmds = append(cmds, m.scheduleDebouncedSearch(newQuery))
		}
		return m, tea.Batch(cmds...)

	case tea.MouseMsg:
		if !m.ready || len(m.results) == 0 {
			return m, nil
		}

		region, itemIdx := m.hitTest(msg.X, msg.Y)

		switch {
		case region == regionList && msg.Button == tea.MouseButtonWheelUp:
			if m.listOffset > 0 {
				m.listOffset--
			}
			return m, nil

		case region == regionList && msg.Button == tea.MouseButtonWheelDown:
			visibleItems := m.panelHeight() / linesPerItem
			maxOffset := len(m.results) - visibleItems
			if maxOffset < 0 {
				maxOffset = 0
			}
			if m.listOffset < maxOffset {
				m.listOffset++
			}
			return m, nil

		case region == regionList && msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
			if itemIdx >= 0 && itemIdx < len(m.results) && m.cursor != itemIdx {
				m.cursor = itemIdx
				m.adjustListScroll(m.panelHeight())
				cmds = append(cmds, m.loadCurrentPreview())
			}
			return m, tea.Batch(cmds...)

		case region == regionPreview && (msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown):
			var vpCmd tea.Cmd
			m.preview, vpCmd = m.preview.Update(msg)
			return m, vpCmd
		}
		return m, nil

	case debounceTickMsg:
		// Only fire if the query hasn't changed since the tick was scheduled
		if msg.query == m.query {
			if m.mode == modeList {
				cmds = append(cmds, m.doListAll(msg.query))
			} else {
				cmds = append(cmds, m.doSearch(msg.query))
			}
		}
		return m, tea.Batch(cmds...)

	case searchResultMsg:
		if msg.query != m.query {
			return m, nil
		}
		m.cursor = 0
		m.listOffset = 0
		m.previewKey = ""
		if msg.err != nil {
			m.results = nil
			m.preview.SetContent("Error: " + msg.err.Error())
			return m, nil
		}
		m.results = msg.results
		if len(m.results) > 0 {
			cmds = append(cmds, m.loadCurrentPreview())
		} else {
			m.preview.SetContent("")
		}
		return m, tea.Batch(cmds...)

	case actionDoneMsg:
		m.notice = msg.notice
		if msg.err != nil {
			m.notice = msg.err.Error()
		}
		if msg.deleted {
			m.removeResult(msg.docName)
			m.previewKey = ""
			if len(m.results) == 0 {
				m.preview.SetContent("")
			}
			cmds = append(cmds, m.loadCurrentPreview())
		}
		return m, tea.Batch(cmds...)

	case previewRenderedMsg:
		key := previewCacheKey(msg.docName, msg.msgID)
		if key == m.previewKey {
			return m, nil
		}
		if r, ok := m.selected(); ok && key != previewCacheKey(r.DocName, r.MsgID) {
			return m, nil // stale preview
		}
		if msg.err != nil {
			m.preview.SetContent("Preview error: " + msg.err.Error())
		} else {
			m.preview.SetContent(msg.content)
			if msg.hitLine > 0 {
				m.preview.SetYOffset(msg.hitLine)
			} else {
				m.preview.GotoTop()
			}
		}
		m.previewKey = key
		return m, nil
	}

	return m, tea.Batch(cmds...)
}

// View renders the full TUI.
func (m model) View() string {
	if m.quitting || !m.ready {
		return ""
	}

	listW := m.listWidth()
	previewW := m.previewWidth()
	panelH := m.panelHeight()

	listPanel := stylePanelBorder.
		Width(listW).
		Height(panelH).
		Render(m.renderList(listW, panelH))

	m.preview.Width = previewW
	m.preview.Height = panelH
	previewPanel := styleActiveBorder.
		Width(previewW).
		Height(panelH).
		Render(m.preview.View())

	panels := lipgloss.JoinHorizontal(lipgloss.Top, listPanel, previewPanel)
	return lipgloss.JoinVertical(lipgloss.Left, m.filterInput.View(), panels, m.statusBar())
}

// helper methods

func (m model) selected() (search.Result, bool) {
	if len(m.results) == 0 || m.cursor >= len(m.results) {
		return search.Result{}, false
	}
	return m.results[m.cursor], true
}

func (m *model) removeResult(docName string) {
	kept := m.results[:0]
	for _, r := range m.results {
		if r.DocName != docName {
			kept = append(kept, r)
		}
	}
	m.results = kept
	if m.cursor >= len(m.results) && m.cursor > 0 {
		m.cursor = len(m.results) - 1
	}
	m.adjustListScroll(m.panelHeight())
}

func (m model) listWidth() int {
	if m.width <= 0 {
		return 40
	}
	w := m.width*40/100 - 4
	if w < 20 {
		w = 20
	}
	return w
}

func (m model) previewWidth() int {
	if m.width <= 0 {
		return 60
	}
	w := m.width*60/100 - 4
	if w < 20 {
		w = 20
	}
	return w
}

func (m model) panelHeight() int {
	if m.height <= 0 {
		return 20
	}
	// Subtract input row (1) + status bar (1) + borders (4)
	h := m.height - 6
	if h < 5 {
		h = 5
	}
	return h
}

type mouseRegion int

const (
	regionNone mouseRegion = iota
	regionList
	regionPreview
)

// hitTest maps terminal coordinates to a panel region and list item index.
func (m model) hitTest(x, y int) (mouseRegion, int) {
	pH := m.panelHeight()
	contentYStart := 2 // input row (1) + top border (1)
	contentYEnd := contentYStart + pH - 1

	if y < contentYStart || y > contentYEnd {
		return regionNone, -1
	}
	relY := y - contentYStart

	lw := m.listWidth()
	listBoxRight := lw + 1 // col 0=border, 1..lw=content, lw+1=border

	if x >= 1 && x <= lw {
		return regionList, m.listOffset + (relY / linesPerItem)
	}
	if x > listBoxRight+1 {
		return regionPreview, -1
	}
	return regionNone, -1
}

func (m model) statusBar() string {
	parts := []string{fmt.Sprintf("%d documents", len(m.results))}
	if m.notice != "" {
		parts = append(parts, styleNotice.Render(m.notice))
	}
	parts = append(parts,
		"up/dn navigate",
		"C-u/C-d preview",
		"Enter copy path",
		"C-x delete",
	)
	if m.exportDir != "" {
		parts = append(parts, "C-e export")
	}
	parts = append(parts, "Esc quit")
	return styleStatusBar.Render(strings.Join(parts, " | "))
}

func (m model) doSearch(query string) tea.Cmd {
	db := m.db
	opts := m.searchOpts
	opts.Query = query
	return func() tea.Msg {
		if strings.TrimSpace(query) == "" {
			return searchResultMsg{query: query}
		}
		results, err := search.Search(db, opts)
		return searchResultMsg{query: query, results: results, err: err}
	}
}

func (m model) doListAll(filter string) tea.Cmd {
	db := m.db
	opts := m.searchOpts
	opts.Query = filter
	return func() tea.Msg {
		if strings.TrimSpace(filter) == "" {
			results, err := search.ListAll(db, opts.Limit)
			return searchResultMsg{query: filter, results: results, err: err}
		}
		// With input, search across all message content
		results, err := search.Search(db, opts)
		return searchResultMsg{query: filter, results: results, err: err}
	}
}

func deleteCmd(store *document.Store, db *index.DB, r search.Result) tea.Cmd {
	return func() tea.Msg {
		ok, err := store.Delete(r.Path)
		if err != nil {
			return actionDoneMsg{docName: r.DocName, err: err}
		}
		if err := db.DeleteDocument(r.DocName); err != nil {
			return actionDoneMsg{docName: r.DocName, deleted: true, err: fmt.Errorf("deleted file, index not updated: %w", err)}
		}
		notice := "deleted " + r.DocName
		if !ok {
			notice = r.DocName + " was already gone"
		}
		return actionDoneMsg{docName: r.DocName, deleted: true, notice: notice}
	}
}

func exportCmd(store *document.Store, r search.Result, dir string) tea.Cmd {
	return func() tea.Msg {
		dest, err := store.Export(r.Path, dir)
		if err != nil {
			return actionDoneMsg{docName: r.DocName, err: err}
		}
		return actionDoneMsg{docName: r.DocName, notice: "exported to " + dest}
	}
}

func (m model) scheduleDebouncedSearch(query string) tea.Cmd {
	return tea.Tick(debounceDelay, func(time.Time) tea.Msg {
		return debounceTickMsg{query: query}
	})
}

func (m model) loadCurrentPreview() tea.Cmd {
	r, ok := m.selected()
	if !ok {
		return nil
	}
	if previewCacheKey(r.DocName, r.MsgID) == m.previewKey {
		return nil
	}
	return loadPreviewCmd(m.store, r, m.query, m.previewWidth())
}

func previewCacheKey(docName string, msgID int) string {
	return fmt.Sprintf("%s:%d", docName, msgID)
}
