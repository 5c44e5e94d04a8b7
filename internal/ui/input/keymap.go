package input

import "github.com/charmbracelet/bubbles/key"

type Map struct {
	Accept key.Binding
	Cancel key.Binding
	Clear  key.Binding
}

var Default = Map{
	Accept: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "Save"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "Cancel"),
	),
	Clear: key.NewBinding(
		key.WithKeys("ctrl+u"),
		key.WithHelp("ctrl+u", "Clear"),
	),
}

// ShortHelp lists the bindings shown below an input.
func (m Map) ShortHelp() []key.Binding {
	return []key.Binding{m.Accept, m.Clear, m.Cancel}
}

// FullHelp is the same as ShortHelp as there are only a few bindings.
func (m Map) FullHelp() [][]key.Binding {
	return [][]key.Binding{m.ShortHelp()}
}
