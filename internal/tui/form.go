// Package tui answers prompt requests in the terminal with a small
// bubbletea form.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	contextStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
	focusedPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	blurredPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const (
	keyEsc   = "esc"
	keyCtrlC = "ctrl+c"
)

// form is a bubbletea model with a heading, a read-only context box and
// one text input per field. Enter on the last field submits; esc or
// ctrl+c abandons.
type form struct {
	heading string
	context string
	inputs  []textinput.Model
	focus   int

	submitted bool
	abandoned bool
}

func newForm(heading, context string, placeholders []string) form {
	f := form{heading: heading, context: context}
	for i, ph := range placeholders {
		in := textinput.New()
		in.Placeholder = ph
		in.Prompt = "› "
		in.CharLimit = 512
		in.Width = 60
		in.PromptStyle = blurredPrompt
		if i == 0 {
			in.Focus()
			in.PromptStyle = focusedPrompt
		}
		f.inputs = append(f.inputs, in)
	}
	return f
}

func (f form) Init() tea.Cmd {
	return textinput.Blink
}

func (f form) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case keyEsc, keyCtrlC:
			f.abandoned = true
			return f, tea.Quit
		case "enter":
			if f.focus == len(f.inputs)-1 {
				f.submitted = true
				return f, tea.Quit
			}
			cmd := f.setFocus(f.focus + 1)
			return f, cmd
		case "tab", "down":
			cmd := f.setFocus((f.focus + 1) % len(f.inputs))
			return f, cmd
		case "shift+tab", "up":
			cmd := f.setFocus((f.focus + len(f.inputs) - 1) % len(f.inputs))
			return f, cmd
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

// setFocus must be called on the addressable copy held by Update.
func (f *form) setFocus(i int) tea.Cmd {
	var cmd tea.Cmd
	for j := range f.inputs {
		if j == i {
			cmd = f.inputs[j].Focus()
			f.inputs[j].PromptStyle = focusedPrompt
			continue
		}
		f.inputs[j].Blur()
		f.inputs[j].PromptStyle = blurredPrompt
	}
	f.focus = i
	return cmd
}

func (f form) View() string {
	if f.submitted || f.abandoned {
		return ""
	}
	var b strings.Builder
	b.WriteString(headingStyle.Render(f.heading))
	b.WriteString("\n")
	if f.context != "" {
		b.WriteString(contextStyle.Render(f.context))
		b.WriteString("\n")
	}
	for _, in := range f.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	b.WriteString(hintStyle.Render("enter: weiter · tab: nächstes Feld · esc: abbrechen"))
	b.WriteString("\n")
	return b.String()
}

func (f form) values() []string {
	out := make([]string, len(f.inputs))
	for i, in := range f.inputs {
		out[i] = strings.TrimSpace(in.Value())
	}
	return out
}
