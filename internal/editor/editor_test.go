package editor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/leighmacdonald/trueplayers/internal/editor"
	"github.com/stretchr/testify/require"
)

type memNames struct {
	names  []string
	writes int
}

func (m *memNames) IgnoredNames(_ context.Context) ([]string, error) {
	return m.names, nil
}

func (m *memNames) SetIgnoredNames(_ context.Context, names []string) error {
	m.writes++
	m.names = names

	return nil
}

type scriptedPrompt struct {
	value   string
	ok      bool
	err     error
	initial string
}

func (s *scriptedPrompt) Prompt(_ string, initial string) (string, bool, error) {
	s.initial = initial

	return s.value, s.ok, s.err
}

func TestEditSubmitEmptyClears(t *testing.T) {
	store := &memNames{names: []string{"A", "B"}}
	prompt := &scriptedPrompt{value: "", ok: true}

	names, changed, err := editor.New(store, prompt).Edit(t.Context())
	require.NoError(t, err)
	require.True(t, changed)
	require.Empty(t, names)
	require.Equal(t, "A,B", prompt.initial)
	require.Equal(t, []string{}, store.names)
}

func TestEditCancelKeeps(t *testing.T) {
	store := &memNames{names: []string{"A", "B"}}

	names, changed, err := editor.New(store, &scriptedPrompt{ok: false}).Edit(t.Context())
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, []string{"A", "B"}, names)
	require.Equal(t, []string{"A", "B"}, store.names)
	require.Zero(t, store.writes)
}

func TestEditSubmit(t *testing.T) {
	store := &memNames{names: []string{}}
	prompt := &scriptedPrompt{value: " Bot1 ,Bot2,, bot1,Bot1", ok: true}

	names, changed, err := editor.New(store, prompt).Edit(t.Context())
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "", prompt.initial)
	require.Equal(t, []string{"Bot1", "Bot2", "bot1"}, names)
	require.Equal(t, names, store.names)
}

func TestEditPromptError(t *testing.T) {
	store := &memNames{names: []string{"A"}}
	_, changed, err := editor.New(store, &scriptedPrompt{err: errors.New("no tty")}).Edit(t.Context())
	require.ErrorIs(t, err, editor.ErrEditNames)
	require.False(t, changed)
	require.Zero(t, store.writes)
}

func TestParseNames(t *testing.T) {
	require.Equal(t, []string{}, editor.ParseNames(""))
	require.Equal(t, []string{}, editor.ParseNames(" , ,"))
	require.Equal(t, []string{"[TAG] Name", "x"}, editor.ParseNames("[TAG] Name, x"))
	require.Equal(t, "A,B", editor.FormatNames(editor.ParseNames("A, B")))
}
