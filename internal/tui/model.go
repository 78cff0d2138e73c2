// Package tui renders a coordinator.Coordinator as a bubbletea program: the
// app title, an optional info section, one editor per argument, the action
// bar and the output of the last run.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CZERTAINLY/cliform/internal/coordinator"
	"github.com/CZERTAINLY/cliform/internal/dispatch"
	"github.com/CZERTAINLY/cliform/internal/form"
	"github.com/CZERTAINLY/cliform/internal/model"
	"github.com/CZERTAINLY/cliform/internal/schema"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	inputWidth = 28
	minOutput  = 3
)

type tickMsg struct {
	at time.Time
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(at time.Time) tea.Msg {
		return tickMsg{at: at}
	})
}

type field struct {
	desc    schema.Descriptor
	input   textinput.Model // KindValue only
	checked bool            // KindFlag only
}

type Model struct {
	// KeyMap and Styles may be changed before the program starts.
	KeyMap KeyMap
	Styles Styles

	ctx   context.Context
	coord *coordinator.Coordinator
	info  schema.AppInfo
	tick  time.Duration

	fields []field
	focus  int

	output  viewport.Model
	content string
	spinner spinner.Model
	help    help.Model

	running  bool
	showInfo bool
	status   string
	failed   bool

	width  int
	height int
	ready  bool
}

// New builds the form for coord. ctx is the parent of every run context.
func New(ctx context.Context, coord *coordinator.Coordinator, cfg model.UI) Model {
	descriptors := coord.Descriptors()
	fields := make([]field, len(descriptors))
	for i, d := range descriptors {
		fields[i] = field{desc: d}
		if !d.TakesValue() {
			continue
		}
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = d.Default
		in.Width = inputWidth
		fields[i].input = in
	}

	output := viewport.New(80, minOutput)
	output.KeyMap = viewport.KeyMap{
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
	}

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot

	tick := cfg.TickInterval
	if tick <= 0 {
		tick = model.DefaultConfig().UI.TickInterval
	}

	m := Model{
		KeyMap:  DefaultKeyMap(),
		Styles:  NewStyles(cfg.Theme),
		ctx:     ctx,
		coord:   coord,
		info:    coord.AppInfo(),
		tick:    tick,
		fields:  fields,
		output:  output,
		spinner: spin,
		help:    help.New(),
	}
	m.applyFocus()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tickCmd(m.tick))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.resize()
		return m, nil

	case tickMsg:
		m.onTick()
		return m, tickCmd(m.tick)

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.onKey(msg)
	}

	return m, nil
}

func (m Model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.KeyMap.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.KeyMap.Run):
		cmd := m.run()
		return m, cmd

	case key.Matches(msg, m.KeyMap.Clear):
		m.coord.Clear()
		m.syncOutput()
		return m, nil

	case key.Matches(msg, m.KeyMap.Cancel):
		m.coord.Cancel()
		return m, nil

	case key.Matches(msg, m.KeyMap.Info):
		if m.info.HasDetails() {
			m.showInfo = !m.showInfo
			m.resize()
		}
		return m, nil

	case key.Matches(msg, m.KeyMap.PageUp), key.Matches(msg, m.KeyMap.PageDown):
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		return m, cmd
	}

	if m.running || len(m.fields) == 0 {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.KeyMap.Next):
		m.focus = (m.focus + 1) % len(m.fields)
		cmd := m.applyFocus()
		return m, cmd
	case key.Matches(msg, m.KeyMap.Prev):
		m.focus = (m.focus + len(m.fields) - 1) % len(m.fields)
		cmd := m.applyFocus()
		return m, cmd
	}

	f := &m.fields[m.focus]
	if !f.desc.TakesValue() {
		if key.Matches(msg, m.KeyMap.Toggle) {
			f.checked = !f.checked
			m.commit(m.focus)
		}
		return m, nil
	}

	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	m.commit(m.focus)
	return m, cmd
}

// run starts the callback. A validation error ends up in the output.
func (m *Model) run() tea.Cmd {
	if m.running {
		return nil
	}
	err := m.coord.Run(m.ctx)
	m.syncOutput()
	var perr *schema.ParseError
	switch {
	case err == nil:
	case errors.As(err, &perr):
		m.status, m.failed = "Invalid arguments", true
		return nil
	case errors.Is(err, dispatch.ErrRunInProgress):
		return nil
	default:
		m.status, m.failed = err.Error(), true
		return nil
	}

	m.running = true
	m.status, m.failed = "Running...", false
	m.applyFocus()
	return m.spinner.Tick
}

func (m *Model) onTick() {
	running := m.coord.Tick()
	m.syncOutput()
	if m.running && !running {
		m.running = false
		m.status, m.failed = finished(m.coord.LastResult())
		m.applyFocus()
	}
}

func finished(res dispatch.Result) (string, bool) {
	took := res.Stopped.Sub(res.Started).Round(time.Millisecond)
	if res.Panic != nil {
		return fmt.Sprintf("Panicked after %s", took), true
	}
	return fmt.Sprintf("Finished in %s", took), false
}

func (m *Model) commit(i int) {
	f := m.fields[i]
	if f.desc.TakesValue() {
		m.coord.Set(f.desc.Name, form.Entry{Text: f.input.Value()})
		return
	}
	m.coord.Set(f.desc.Name, form.Entry{FlagSet: f.checked})
}

// applyFocus focuses the editor under the cursor; while running every editor
// is blurred so it ignores input.
func (m *Model) applyFocus() tea.Cmd {
	var cmd tea.Cmd
	for i := range m.fields {
		f := &m.fields[i]
		if !f.desc.TakesValue() {
			continue
		}
		if i == m.focus && !m.running {
			cmd = f.input.Focus()
			continue
		}
		f.input.Blur()
	}
	return cmd
}

// syncOutput copies the output buffer into the viewport and keeps it pinned
// to the bottom unless the user scrolled up.
func (m *Model) syncOutput() {
	out := m.coord.Output()
	if out == m.content {
		return
	}
	follow := m.output.AtBottom() || len(out) < len(m.content)
	m.content = out
	m.output.SetContent(out)
	if follow {
		m.output.GotoBottom()
	}
}

func (m *Model) resize() {
	if !m.ready {
		return
	}
	top := lipgloss.Height(m.topView())
	bottom := lipgloss.Height(m.help.View(m.KeyMap))
	m.output.Width = m.width
	m.output.Height = max(minOutput, m.height-top-bottom-1)
	m.output.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading " + m.info.Name + "..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.topView(),
		m.Styles.Output.Render(m.output.View()),
		m.help.View(m.KeyMap),
	)
}

func (m Model) topView() string {
	parts := []string{m.titleView()}
	if len(m.fields) > 0 {
		parts = append(parts, m.separator(), m.formView())
	}
	parts = append(parts, m.separator(), m.actionsView(), m.separator())
	return strings.Join(parts, "\n")
}

func (m Model) titleView() string {
	title := m.Styles.Title.Render(m.info.Name)
	if m.info.Version != "" {
		title += " " + m.Styles.Version.Render(m.info.Version)
	}
	lines := []string{title}
	if m.info.About != "" {
		lines = append(lines, m.Styles.About.Render(m.info.About))
	}
	if !m.info.HasDetails() {
		return strings.Join(lines, "\n")
	}

	if !m.showInfo {
		return strings.Join(append(lines, "▸ Info"), "\n")
	}
	lines = append(lines, "▾ Info")
	var info []string
	if m.info.LongAbout != "" {
		info = append(info, "Description: "+m.info.LongAbout)
	}
	if m.info.Author != "" {
		info = append(info, "Author: "+m.info.Author)
	}
	if m.info.Version != "" {
		info = append(info, "Version: "+m.info.Version)
	}
	lines = append(lines, m.Styles.Info.Render(strings.Join(info, "\n")))
	return strings.Join(lines, "\n")
}

func (m Model) formView() string {
	labelWidth := len("Key")
	for _, f := range m.fields {
		labelWidth = max(labelWidth, lipgloss.Width(f.desc.DisplayName))
	}
	labelWidth += 4 // cursor, required mark, gap

	label := lipgloss.NewStyle().Width(labelWidth)
	value := lipgloss.NewStyle().Width(inputWidth + 2)

	rows := []string{lipgloss.JoinHorizontal(lipgloss.Top,
		label.Render(m.Styles.Header.Render("  Key")),
		value.Render(m.Styles.Header.Render("Value")),
		m.Styles.Header.Render("Description"),
	)}
	for i, f := range m.fields {
		name := f.desc.DisplayName
		if f.desc.Required {
			name += "*"
		}
		style := m.Styles.Label
		if i == m.focus && !m.running {
			name = "> " + name
			style = m.Styles.Focused
		} else {
			name = "  " + name
		}

		var editor string
		if f.desc.TakesValue() {
			editor = "[" + f.input.View() + "]"
		} else {
			editor = "[ ]"
			if f.checked {
				editor = "[x]"
			}
		}

		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			label.Render(style.Render(name)),
			value.Render(editor),
			m.Styles.Description.Render(f.desc.Description),
		))
	}
	return strings.Join(rows, "\n")
}

func (m Model) actionsView() string {
	actions := fmt.Sprintf("[%s run] [%s clear]",
		m.KeyMap.Run.Help().Key, m.KeyMap.Clear.Help().Key)
	switch {
	case m.running:
		return actions + "  " + m.spinner.View() + " " + m.Styles.Status.Render(m.status)
	case m.failed:
		return actions + "  " + m.Styles.Error.Render(m.status)
	case m.status != "":
		return actions + "  " + m.Styles.Status.Render(m.status)
	}
	return actions
}

func (m Model) separator() string {
	w := m.width
	if w <= 0 {
		w = 40
	}
	return m.Styles.Separator.Render(strings.Repeat("─", w))
}
