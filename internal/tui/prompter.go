package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	appLog "calnorm/internal/log"
	"calnorm/internal/prompt"
)

// ErrNoDestination is returned by ChooseOutput when the user leaves the
// path empty or abandons the form.
var ErrNoDestination = errors.New("no output destination chosen")

// Prompter runs one bubbletea program per request on the terminal.
type Prompter struct {
	opts []tea.ProgramOption
}

// Option configures a Prompter.
type Option func(*Prompter)

// WithIO redirects the program away from the controlling terminal.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(p *Prompter) {
		p.opts = append(p.opts, tea.WithInput(in), tea.WithOutput(out))
	}
}

func New(opts ...Option) *Prompter {
	p := &Prompter{}
	for _, o := range opts {
		o(p)
	}
	return p
}

var headings = map[prompt.Kind]string{
	prompt.KindTitle:    "Unbekannter Titel",
	prompt.KindLocation: "Unbekannter Ort",
}

// Ask implements prompt.Prompter.
func (p *Prompter) Ask(ctx context.Context, req prompt.Request) (prompt.Response, error) {
	heading, ok := headings[req.Kind]
	if !ok {
		heading = string(req.Kind)
	}
	f := newForm(heading, req.Context, []string{req.Fields[0].Placeholder, req.Fields[1].Placeholder})

	final, err := p.run(ctx, f)
	if err != nil {
		return prompt.Response{}, err
	}
	if !final.submitted {
		return prompt.Response{}, prompt.ErrAbandoned
	}
	v := final.values()
	return prompt.Response{Values: [2]string{v[0], v[1]}}, nil
}

// ChooseOutput asks where to write the result, pre-filled with defaultPath.
func (p *Prompter) ChooseOutput(ctx context.Context, defaultPath string) (string, error) {
	f := newForm("Ausgabedatei", "", []string{"Pfad der Ausgabedatei"})
	f.inputs[0].SetValue(defaultPath)
	f.inputs[0].CursorEnd()

	final, err := p.run(ctx, f)
	if err != nil {
		return "", err
	}
	if !final.submitted {
		return "", ErrNoDestination
	}
	path := final.values()[0]
	if path == "" {
		return "", ErrNoDestination
	}
	return path, nil
}

func (p *Prompter) run(ctx context.Context, f form) (form, error) {
	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, p.opts...)
	m, err := tea.NewProgram(f, opts...).Run()
	if err != nil {
		if ctx.Err() != nil {
			return form{}, ctx.Err()
		}
		appLog.Error("terminal prompt failed", err)
		return form{}, fmt.Errorf("terminal prompt: %w", err)
	}
	final, ok := m.(form)
	if !ok {
		return form{}, fmt.Errorf("terminal prompt: unexpected model %T", m)
	}
	return final, nil
}
