package styles

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	Accent = lipgloss.Color("#f4722b")

	Gray   = lipgloss.Color("#3e3e3e")
	White  = lipgloss.Color("#cccccc")
	Red    = lipgloss.Color("#B8383B")
	Blu    = lipgloss.Color("#5885A2")
	Green  = lipgloss.Color("#4d7455")
	Yellow = lipgloss.Color("#ffd700")

	FocusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	BlurredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	CursorStyle  = FocusedStyle
	HelpStyle    = BlurredStyle

	PromptTitle   = lipgloss.NewStyle().Foreground(Accent).Bold(true)
	PromptMessage = lipgloss.NewStyle().Foreground(White)
	PromptBox     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(Blu).Padding(0, 1)

	SettingLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Align(lipgloss.Right).Width(34)
	SettingOn    = lipgloss.NewStyle().Foreground(Green).Bold(true)
	SettingOff   = lipgloss.NewStyle().Foreground(Red)
	SettingValue = lipgloss.NewStyle().Foreground(Yellow)
	SettingAge   = lipgloss.NewStyle().Foreground(Gray).Italic(true)

	IconCheck = "✅"
	IconCross = "❌"
)

// Setting renders a single aligned label/value row.
func Setting(label string, value string, age string) string {
	row := lipgloss.JoinHorizontal(lipgloss.Top, SettingLabel.Render(label+" "), " ", value)
	if age == "" {
		return row
	}

	return fmt.Sprintf("%s  %s", row, SettingAge.Render(age))
}

// Toggle renders a boolean setting value.
func Toggle(enabled bool) string {
	if enabled {
		return SettingOn.Render(IconCheck + " on")
	}

	return SettingOff.Render(IconCross + " off")
}
