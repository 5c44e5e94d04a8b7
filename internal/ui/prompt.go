// Package ui contains the small interactive terminal surfaces of trueplayers.
package ui

import (
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/leighmacdonald/trueplayers/internal/ui/input"
	"github.com/leighmacdonald/trueplayers/internal/ui/styles"
	"github.com/muesli/reflow/wordwrap"
)

const defaultWidth = 72

var ErrPrompt = errors.New("prompt failed")

// Terminal is a blocking single line prompt drawn with bubbletea.
type Terminal struct {
	Title  string
	Input  io.Reader
	Output io.Writer
}

// Prompt runs the prompt until the user accepts or cancels. Cancelling returns ok == false.
func (t Terminal) Prompt(message string, initial string) (string, bool, error) {
	var opts []tea.ProgramOption
	if t.Input != nil {
		opts = append(opts, tea.WithInput(t.Input))
	}

	if t.Output != nil {
		opts = append(opts, tea.WithOutput(t.Output))
	}

	final, errRun := tea.NewProgram(newPromptModel(t.Title, message, initial), opts...).Run()
	if errRun != nil {
		return "", false, errors.Join(errRun, ErrPrompt)
	}

	model, ok := final.(promptModel)
	if !ok {
		return "", false, ErrPrompt
	}

	return model.result()
}

type promptModel struct {
	title     string
	message   string
	input     textinput.Model
	help      help.Model
	keys      input.Map
	width     int
	submitted bool
	cancelled bool
}

func newPromptModel(title string, message string, initial string) promptModel {
	field := textinput.New()
	field.Placeholder = "Bot1,Bot2,[TAG]"
	field.Prompt = "> "
	field.PromptStyle = styles.FocusedStyle
	field.TextStyle = styles.FocusedStyle
	field.Cursor.Style = styles.CursorStyle
	field.SetValue(initial)
	field.CursorEnd()
	field.Focus()

	return promptModel{
		title:   title,
		message: message,
		input:   field,
		help:    help.New(),
		keys:    input.Default,
		width:   defaultWidth,
	}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = min(msg.Width, defaultWidth)
		m.input.Width = max(m.width-6, 10)

		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Accept):
			m.submitted = true

			return m, tea.Quit
		case key.Matches(msg, m.keys.Cancel):
			m.cancelled = true

			return m, tea.Quit
		case key.Matches(msg, m.keys.Clear):
			m.input.Reset()

			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m promptModel) View() string {
	if m.submitted || m.cancelled {
		return ""
	}

	var body strings.Builder
	if m.title != "" {
		body.WriteString(styles.PromptTitle.Render(m.title))
		body.WriteString("\n\n")
	}

	body.WriteString(styles.PromptMessage.Render(wordwrap.String(m.message, max(m.width-4, 20))))
	body.WriteString("\n\n")
	body.WriteString(m.input.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		styles.PromptBox.Render(body.String()),
		styles.HelpStyle.Render(m.help.View(m.keys))) + "\n"
}

func (m promptModel) result() (string, bool, error) {
	if !m.submitted {
		return "", false, nil
	}

	return m.input.Value(), true, nil
}
