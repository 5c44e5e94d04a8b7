// Package editor implements the interactive editing of the ignored player names.
package editor

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/leighmacdonald/trueplayers/internal/settings"
)

var ErrEditNames = errors.New("failed to edit ignored names")

// Prompter asks the user for a line of text. It blocks until the user submits or cancels.
// ok is false when the prompt was cancelled, which is distinct from submitting an empty value.
type Prompter interface {
	Prompt(message string, initial string) (value string, ok bool, err error)
}

// NameStore persists the ignore list.
type NameStore interface {
	IgnoredNames(ctx context.Context) ([]string, error)
	SetIgnoredNames(ctx context.Context, names []string) error
}

type Editor struct {
	store    NameStore
	prompter Prompter
}

func New(store NameStore, prompter Prompter) *Editor {
	return &Editor{store: store, prompter: prompter}
}

// Edit presents the current names for editing and stores the result. Returns the names now in
// effect and whether they were changed.
func (e *Editor) Edit(ctx context.Context) ([]string, bool, error) {
	current, errCurrent := e.store.IgnoredNames(ctx)
	if errCurrent != nil {
		return nil, false, errors.Join(errCurrent, ErrEditNames)
	}

	input, ok, errPrompt := e.prompter.Prompt(settings.NamesTooltip, FormatNames(current))
	if errPrompt != nil {
		return current, false, errors.Join(errPrompt, ErrEditNames)
	}

	if !ok {
		slog.Debug("Name editing cancelled")

		return current, false, nil
	}

	names := ParseNames(input)
	if err := e.store.SetIgnoredNames(ctx, names); err != nil {
		return current, false, errors.Join(err, ErrEditNames)
	}

	slog.Info("Updated ignored names", slog.Int("count", len(names)))

	return names, true, nil
}

// ParseNames splits comma separated input into names. Surrounding whitespace is trimmed, case is
// kept, empty entries and repeats are dropped and order is preserved.
func ParseNames(input string) []string {
	names := []string{}
	seen := map[string]struct{}{}

	for _, part := range strings.Split(input, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}

		if _, found := seen[name]; found {
			continue
		}

		seen[name] = struct{}{}
		names = append(names, name)
	}

	return names
}

// FormatNames is the inverse of ParseNames, used to pre-fill the prompt.
func FormatNames(names []string) string {
	return strings.Join(names, ",")
}
