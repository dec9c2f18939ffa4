package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.bytecodealliance.org/wit"

	olivebridge "github.com/wippyai/olive-bridge"
	"github.com/wippyai/olive-bridge/bridge"
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

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type paramInfo struct {
	name    string
	witType wit.Type
}

// formParams mirrors the analysis arguments after the instance handle
var formParams = []paramInfo{
	{"dsm", wit.String{}},
	{"ndvi", wit.String{}},
	{"shapefile", wit.String{}},
	{"denoise", wit.Bool{}},
	{"area-threshold", wit.S32{}},
}

type modelState int

const (
	stateInput modelState = iota
	stateRunning
	stateResult
)

type interactiveModel struct {
	err    error
	shim   *bridge.Shim
	cfg    bridge.Config
	inputs []textinput.Model
	out    olivebridge.Outcome

	focusIdx int
	state    modelState
}

type analysisMsg struct {
	err error
	out olivebridge.Outcome
}

func newInteractiveModel(cfg bridge.Config, req olivebridge.Request) *interactiveModel {
	m := &interactiveModel{
		cfg:  cfg,
		shim: bridge.New(cfg),
	}
	initial := formValues(req)
	m.inputs = make([]textinput.Model, len(formParams))
	for i, p := range formParams {
		ti := textinput.New()
		ti.Placeholder = witTypeStr(p.witType)
		ti.Prompt = fmt.Sprintf("%-15s", p.name+":")
		ti.Width = 60
		ti.SetValue(initial[i])
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.shim.Close(context.Background())
			return m, tea.Quit

		case "q":
			if m.state != stateInput {
				m.shim.Close(context.Background())
				return m, tea.Quit
			}

		case "tab", "down":
			if m.state == stateInput {
				m.moveFocus(1)
				return m, nil
			}

		case "shift+tab", "up":
			if m.state == stateInput {
				m.moveFocus(-1)
				return m, nil
			}

		case "enter":
			switch m.state {
			case stateInput:
				m.state = stateRunning
				return m, m.runAnalysis
			case stateResult:
				m.state = stateInput
				m.err = nil
				return m, nil
			}

		case "esc":
			if m.state == stateResult {
				m.state = stateInput
				m.err = nil
				return m, nil
			}
		}

	case analysisMsg:
		m.out = msg.out
		m.err = msg.err
		m.state = stateResult
		return m, nil
	}

	if m.state == stateInput {
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

func (m *interactiveModel) moveFocus(delta int) {
	m.inputs[m.focusIdx].Blur()
	m.focusIdx = (m.focusIdx + delta + len(m.inputs)) % len(m.inputs)
	m.inputs[m.focusIdx].Focus()
}

func (m *interactiveModel) runAnalysis() tea.Msg {
	values := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		values[i] = input.Value()
	}
	req, err := parseRequest(values)
	if err != nil {
		return analysisMsg{err: err}
	}
	out, err := m.shim.Analyze(context.Background(), req)
	return analysisMsg{out: out, err: err}
}

// formValues renders a request as the initial form contents
func formValues(req olivebridge.Request) []string {
	return []string{
		req.DSMPath,
		req.NDVIPath,
		req.ShapefilePath,
		strconv.FormatBool(req.Denoise),
		strconv.FormatInt(int64(req.AreaThreshold), 10),
	}
}

// parseRequest converts form values, in formParams order, to a request
func parseRequest(values []string) (olivebridge.Request, error) {
	if len(values) != len(formParams) {
		return olivebridge.Request{}, fmt.Errorf("expected %d values, got %d", len(formParams), len(values))
	}

	args := make([]any, len(values))
	for i, v := range values {
		arg, err := convertArg(strings.TrimSpace(v), formParams[i].witType)
		if err != nil {
			return olivebridge.Request{}, fmt.Errorf("%s: %w", formParams[i].name, err)
		}
		args[i] = arg
	}

	return olivebridge.Request{
		DSMPath:       args[0].(string),
		NDVIPath:      args[1].(string),
		ShapefilePath: args[2].(string),
		Denoise:       args[3].(bool),
		AreaThreshold: args[4].(int32),
	}, nil
}

func convertArg(value string, t wit.Type) (any, error) {
	switch t.(type) {
	case wit.String:
		return value, nil
	case wit.S32:
		if value == "" {
			return int32(0), nil
		}
		v, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid s32 %q", value)
		}
		return int32(v), nil
	case wit.Bool:
		switch strings.ToLower(value) {
		case "", "false", "0", "no", "n":
			return false, nil
		case "true", "1", "yes", "y":
			return true, nil
		}
		return nil, fmt.Errorf("invalid bool %q", value)
	default:
		return nil, fmt.Errorf("unsupported type %s", witTypeStr(t))
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Olive Analysis"))
	b.WriteString(" ")
	b.WriteString(m.cfg.ComponentFile())
	b.WriteString("\n")
	b.WriteString(funcStyle.Render(m.cfg.TypeName + "." + m.cfg.MethodName))
	b.WriteString("\n\n")

	switch m.state {
	case stateInput:
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(witTypeStr(formParams[i].witType)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab/↑/↓ move • enter run • ctrl+c quit"))

	case stateRunning:
		b.WriteString("Running analysis...")

	case stateResult:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n")
			b.WriteString(fmt.Sprintf("status: %d", bridge.Status(m.err)))
		} else {
			b.WriteString(resultStyle.Render(fmt.Sprintf("status:    %d\nfCov:      %g\nmean NDVI: %g",
				m.out.Status, m.out.FCov, m.out.MeanNDVI)))
			if !m.out.HasStatus {
				b.WriteString("\n")
				b.WriteString(helpStyle.Render("(method returned no status)"))
			}
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter edit • q quit"))
	}

	return b.String()
}

func witTypeStr(t wit.Type) string {
	switch t.(type) {
	case wit.Bool:
		return "bool"
	case wit.S32:
		return "s32"
	case wit.U32:
		return "u32"
	case wit.String:
		return "string"
	default:
		return fmt.Sprintf("%T", t)
	}
}

func runInteractive(cfg bridge.Config, req olivebridge.Request) error {
	p := tea.NewProgram(newInteractiveModel(cfg, req), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
