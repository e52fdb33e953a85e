package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/sharedref/host"
	"github.com/wippyai/sharedref/resource"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1).
			MarginLeft(2)
)

const maxEvents = 12

type interactiveModel struct {
	err      error
	rt       wazero.Runtime
	host     *host.Host
	table    *resource.Table
	events   *eventLog
	result   string
	funcs    []host.Func
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

// eventLog collects table events; host calls run off the UI goroutine.
type eventLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *eventLog) OnResourceEvent(e resource.Event) {
	var line string
	switch e.Type {
	case resource.EventRetired:
		line = fmt.Sprintf("%-8s pair %d value=%v", e.Type, e.Pair, e.Value)
	default:
		line = fmt.Sprintf("%-8s #%d pair %d count=%d", e.Type, e.Handle, e.Pair, e.Count)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
	if len(l.lines) > maxEvents {
		l.lines = l.lines[len(l.lines)-maxEvents:]
	}
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func newInteractiveModel() *interactiveModel {
	return &interactiveModel{
		state:  stateSelectFunc,
		events: &eventLog{},
	}
}

type loadedMsg struct {
	err   error
	rt    wazero.Runtime
	host  *host.Host
	table *resource.Table
	funcs []host.Func
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadHost
}

func (m *interactiveModel) loadHost() tea.Msg {
	ctx := context.Background()

	table := resource.NewTable()
	table.Subscribe(m.events)
	h := host.New(table)

	rt := wazero.NewRuntime(ctx)
	if _, err := h.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return loadedMsg{err: err}
	}

	return loadedMsg{rt: rt, host: h, table: table, funcs: h.Functions()}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.shutdown()
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				m.shutdown()
				return m, tea.Quit
			}

		case "x":
			if m.state == stateSelectFunc && m.table != nil {
				m.table.Clear()
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.funcs = msg.funcs
		m.rt = msg.rt
		m.host = msg.host
		m.table = msg.table

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) shutdown() {
	ctx := context.Background()
	if m.table != nil {
		m.table.Close()
	}
	if m.rt != nil {
		m.rt.Close(ctx)
	}
}

func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.Params))
	for i, p := range f.Params {
		ti := textinput.New()
		ti.Placeholder = host.TypeString(p.Type)
		ti.Prompt = p.Name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	if m.host == nil {
		return callResultMsg{err: fmt.Errorf("host not loaded")}
	}

	f := m.funcs[m.selected]
	args := make([]uint64, len(m.inputs))
	for i, input := range m.inputs {
		v, err := encodeArg(input.Value(), f.Params[i].Type)
		if err != nil {
			return callResultMsg{err: fmt.Errorf("%s: %w", f.Params[i].Name, err)}
		}
		args[i] = v
	}

	res, err := m.host.Call(context.Background(), f.Name, args...)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: formatResults(f.Results, res)}
}

func encodeArg(value string, t wit.Type) (uint64, error) {
	value = strings.TrimSpace(value)
	switch t.(type) {
	case wit.U32:
		v, err := strconv.ParseUint(value, 10, 32)
		return api.EncodeU32(uint32(v)), err
	case wit.S32:
		v, err := strconv.ParseInt(value, 10, 32)
		return api.EncodeI32(int32(v)), err
	case wit.S64:
		v, err := strconv.ParseInt(value, 10, 64)
		return api.EncodeI64(v), err
	case wit.U64:
		return strconv.ParseUint(value, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported parameter type %s", host.TypeString(t))
	}
}

func formatResults(params []host.Param, res []uint64) string {
	parts := make([]string, len(params))
	for i, p := range params {
		var s string
		switch p.Type.(type) {
		case wit.S32:
			v := api.DecodeI32(res[i])
			if p.Name == "status" {
				s = host.Status(v).String()
			} else {
				s = strconv.FormatInt(int64(v), 10)
			}
		case wit.S64:
			s = strconv.FormatInt(int64(res[i]), 10)
		default:
			s = strconv.FormatUint(uint64(api.DecodeU32(res[i])), 10)
		}
		parts[i] = p.Name + " = " + s
	}
	return strings.Join(parts, ", ")
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if len(m.funcs) == 0 {
		return "Loading host module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Shared Handles"))
	b.WriteString(" ")
	b.WriteString(host.ModuleName)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to call:\n\n")
		for i, f := range m.funcs {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + host.Signature(f)))
			} else {
				b.WriteString(cursor + m.formatFunc(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • x clear slots • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(host.TypeString(f.Params[i].Type)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.Name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, b.String(), panelStyle.Render(m.tableView()))
}

func (m *interactiveModel) tableView() string {
	var b strings.Builder
	b.WriteString(funcStyle.Render("Slots"))
	b.WriteString("\n")

	slots := m.table.Snapshot()
	if len(slots) == 0 {
		b.WriteString(helpStyle.Render("(empty)"))
		b.WriteString("\n")
	}
	for _, s := range slots {
		if s.Null {
			fmt.Fprintf(&b, "#%-3d pair %-3d count=%d null\n", s.Handle, s.Pair, s.Count)
			continue
		}
		v, _ := m.table.Get(s.Handle)
		fmt.Fprintf(&b, "#%-3d pair %-3d count=%d value=%v\n", s.Handle, s.Pair, s.Count, v)
	}

	b.WriteString("\n")
	b.WriteString(funcStyle.Render("Events"))
	b.WriteString("\n")
	for _, line := range m.events.snapshot() {
		b.WriteString(typeStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *interactiveModel) formatFunc(f host.Func) string {
	var params []string
	for _, p := range f.Params {
		params = append(params, p.Name+": "+typeStyle.Render(host.TypeString(p.Type)))
	}
	var results []string
	for _, r := range f.Results {
		results = append(results, typeStyle.Render(host.TypeString(r.Type)))
	}
	result := ""
	if len(results) > 0 {
		result = " -> " + strings.Join(results, ", ")
	}
	return funcStyle.Render(f.Name) + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive() error {
	p := tea.NewProgram(newInteractiveModel(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
