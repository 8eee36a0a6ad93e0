package main

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/native-bindgen/generator"
	"github.com/wippyai/native-bindgen/plan"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

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

type interactiveModel struct {
	gen      *generator.Generator
	source   string
	input    textinput.Model
	view     viewport.Model
	history  []string
	owner    plan.OwnerKind
	recalled int
	ready    bool
}

func newInteractiveModel(g *generator.Generator, source string, owner plan.OwnerKind) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "Map<int32, String>"
	ti.Prompt = "type: "
	ti.Width = 60
	ti.Focus()
	if source == "" {
		source = "built-in types"
	}
	return &interactiveModel{gen: g, source: source, input: ti, owner: owner}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h := max(msg.Height-6, 3)
		if !m.ready {
			m.view = viewport.New(msg.Width, h)
			m.ready = true
		} else {
			m.view.Width, m.view.Height = msg.Width, h
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "tab":
			if m.owner == plan.OwnerClass {
				m.owner = plan.OwnerStruct
			} else {
				m.owner = plan.OwnerClass
			}
			m.show(m.input.Value())
			return m, nil

		case "up":
			if m.recalled > 0 {
				m.recalled--
				m.input.SetValue(m.history[m.recalled])
			}
			return m, nil

		case "down":
			if m.recalled < len(m.history)-1 {
				m.recalled++
				m.input.SetValue(m.history[m.recalled])
			}
			return m, nil

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd

		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				m.history = append(m.history, q)
				m.recalled = len(m.history)
				m.show(q)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) show(q string) {
	if q == "" || !m.ready {
		return
	}
	m.view.SetContent(inspect(m.gen, q, m.owner).render())
	m.view.GotoTop()
}

func (m *interactiveModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Binding Inspector"))
	b.WriteString(" ")
	b.WriteString(m.source)
	b.WriteString(" ")
	b.WriteString(typeStyle.Render("[" + m.owner.String() + "]"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	if m.ready {
		b.WriteString(m.view.View())
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("enter inspect • tab class/struct • ↑/↓ history • pgup/pgdown scroll • esc quit"))
	return b.String()
}

func runInteractive(g *generator.Generator, source string, owner plan.OwnerKind) error {
	p := tea.NewProgram(newInteractiveModel(g, source, owner), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
