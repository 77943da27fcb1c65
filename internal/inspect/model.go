// Package inspect is a live struct/variable viewer: a bubbletea TUI driving
// a proxy.Lib the same way the REPL it's grounded on drives a query session,
// except each "query" is a single Member/Index read against a running
// target instead of a table fetch.
package inspect

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/remlink/rlg/internal/proxy"
)

// frame is one level of the navigation stack: the value currently expanded
// and the label it was reached under.
type frame struct {
	label string
	val   any
}

// refreshedMsg carries the result of re-flattening the current frame.
type refreshedMsg struct {
	rows []field
	err  error
}

// copiedMsg reports a clipboard write attempt.
type copiedMsg struct {
	text string
	err  error
}

// Model is the top-level bubbletea model for `rlg inspect`.
type Model struct {
	lib   *proxy.Lib
	stack []frame
	tbl   table.Model
	rows  []field
	status string
	err    error
	width, height int
}

// New builds an inspector rooted at rootName, the variable it should start
// expanded on (resolved through Lib.Get, so a function name is rejected).
func New(lib *proxy.Lib, rootName string) (Model, error) {
	val, err := lib.Get(rootName)
	if err != nil {
		return Model{}, fmt.Errorf("inspect: %s: %w", rootName, err)
	}

	cols := []table.Column{
		{Title: "Field", Width: 20},
		{Title: "Type", Width: 20},
		{Title: "Value", Width: 40},
	}
	t := table.New(table.WithColumns(cols), table.WithFocused(true), table.WithHeight(20))
	s := table.DefaultStyles()
	s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(colorDim).BorderBottom(true).Bold(true)
	s.Selected = s.Selected.Foreground(lipgloss.Color("#FFFFFF")).Background(colorPrimary).Bold(false)
	t.SetStyles(s)

	m := Model{
		lib:   lib,
		stack: []frame{{label: rootName, val: val}},
		tbl:   t,
	}
	m.reflatten()
	return m, nil
}

func (m Model) Init() tea.Cmd { return nil }

func (m *Model) reflatten() {
	top := m.stack[len(m.stack)-1]
	m.rows = flatten(top.label, top.val)
	rows := make([]table.Row, len(m.rows))
	for i, f := range m.rows {
		rows[i] = table.Row{f.name, f.typ, f.text}
	}
	m.tbl.SetRows(rows)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.tbl.SetHeight(m.height - 6)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter":
			return m.descend()
		case "esc", "backspace":
			if len(m.stack) > 1 {
				m.stack = m.stack[:len(m.stack)-1]
				m.reflatten()
				m.status = ""
			}
			return m, nil
		case "r":
			return m, m.refresh()
		case "ctrl+y":
			return m, m.copySelected()
		}

	case refreshedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.rows = msg.rows
		rows := make([]table.Row, len(m.rows))
		for i, f := range m.rows {
			rows[i] = table.Row{f.name, f.typ, f.text}
		}
		m.tbl.SetRows(rows)
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("copy failed: %v", msg.err)
		} else {
			m.status = fmt.Sprintf("copied %q", msg.text)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.tbl, cmd = m.tbl.Update(msg)
	return m, cmd
}

// descend pushes the selected row's value as a new frame when it is a
// struct, union or array — otherwise enter is a no-op.
func (m Model) descend() (tea.Model, tea.Cmd) {
	i := m.tbl.Cursor()
	if i < 0 || i >= len(m.rows) {
		return m, nil
	}
	f := m.rows[i]
	if !f.navigable {
		return m, nil
	}
	m.stack = append(m.stack, frame{label: f.name, val: f.raw})
	m.reflatten()
	m.status = ""
	return m, nil
}

// refresh re-reads the current frame's fields from the target; Lib.Get
// itself always hits the wire (cached data aside), so this is simply a
// re-flatten with fresh Member/Index calls.
func (m Model) refresh() tea.Cmd {
	top := m.stack[len(m.stack)-1]
	label, val := top.label, top.val
	return func() tea.Msg {
		rows := flatten(label, val)
		return refreshedMsg{rows: rows}
	}
}

// copySelected writes the selected row's value text to the system
// clipboard, the one piece of this screen that reaches outside the process.
func (m Model) copySelected() tea.Cmd {
	i := m.tbl.Cursor()
	if i < 0 || i >= len(m.rows) {
		return nil
	}
	text := m.rows[i].text
	return func() tea.Msg {
		err := clipboard.WriteAll(text)
		return copiedMsg{text: text, err: err}
	}
}

func (m Model) View() string {
	path := m.stack[0].label
	for _, f := range m.stack[1:] {
		path += "." + f.label
	}

	header := styleTitle.Render(fmt.Sprintf("rlg inspect — %s", path))
	body := m.tbl.View()

	status := ""
	if m.err != nil {
		status = styleError.Render(fmt.Sprintf("error: %v", m.err))
	} else if m.status != "" {
		status = styleSuccess.Render(m.status)
	}

	help := styleHelpBar.Render("enter: expand  esc: back  r: refresh  ctrl+y: copy  q: quit")

	return fmt.Sprintf("%s\n%s\n%s\n%s\n", header, body, status, help)
}
