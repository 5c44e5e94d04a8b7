package view_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/leighmacdonald/trueplayers/internal/view"
	"github.com/stretchr/testify/require"
)

const page = `<html><body><div id="serverguide-listing">
<div class="serverguide-bodycells active" guid="aaa"><div class="serverguide-cell-name">Grand Bazaar</div><div class="serverguide-cell-players"><span>61 / 64</span></div></div>
<div class="serverguide-bodycells" guid="bbb"><div class="serverguide-cell-players"><span>12 / 32</span></div></div>
<div class="serverguide-bodycells bblog-true-players" guid="ccc"><div class="serverguide-cell-players"><span>5 <b>[2]</b> / 32</span></div></div>
<div class="serverguide-bodycells"><div class="serverguide-cell-players"><span>1 / 2</span></div></div>
<div class="serverguide-bodycells" guid="ddd"><div class="serverguide-cell-name">No players cell</div></div>
</div></body></html>`

func load(t *testing.T) *view.Document {
	t.Helper()

	doc := view.NewDocument(view.Battlelog)
	require.NoError(t, doc.Load(strings.NewReader(page), "https://battlelog.battlefield.com/bf3/servers/"))

	return doc
}

func TestClaim(t *testing.T) {
	doc := load(t)
	require.Equal(t, "https://battlelog.battlefield.com/bf3/servers/", doc.URL())

	rows := doc.Claim()
	ids := make([]string, len(rows))
	for idx, row := range rows {
		ids[idx] = row.ServerID()
	}

	require.Equal(t, []string{"aaa", "bbb", "ddd"}, ids)
	require.Empty(t, doc.Claim(), "claimed rows must not be selected again")

	states := doc.Rows()
	require.Len(t, states, 5)
	require.True(t, states[0].Claimed)
	require.True(t, states[2].Processed)
	require.Equal(t, "<span>61 / 64</span>", states[0].Markup)
}

func TestApply(t *testing.T) {
	doc := load(t)
	rows := doc.Claim()

	require.NoError(t, rows[0].Apply(func(markup string) (string, error) {
		return strings.Replace(markup, " / ", " <b>[9]</b> / ", 1), nil
	}))

	errFn := errors.New("no delimiter")
	require.ErrorIs(t, rows[1].Apply(func(string) (string, error) { return "", errFn }), errFn)
	require.ErrorIs(t, rows[2].Apply(func(markup string) (string, error) { return markup, nil }), view.ErrNoCell)

	states := doc.Rows()
	require.Equal(t, "<span>61 <b>[9]</b> / 64</span>", states[0].Markup)
	require.True(t, states[0].Processed)
	require.Equal(t, "<span>12 / 32</span>", states[1].Markup)
	require.False(t, states[1].Processed)

	var buf bytes.Buffer
	require.NoError(t, doc.Render(&buf))
	require.Contains(t, buf.String(), `class="serverguide-bodycells active bblog-true-players" guid="aaa"`)

	// The rendered page round trips with the marker intact.
	reloaded := view.NewDocument(view.Battlelog)
	require.NoError(t, reloaded.Load(&buf, ""))
	ids := []string{}
	for _, row := range reloaded.Claim() {
		ids = append(ids, row.ServerID())
	}
	require.Equal(t, []string{"bbb", "ddd"}, ids)
}

func TestDetached(t *testing.T) {
	doc := load(t)
	rows := doc.Claim()

	// Host re-render.
	require.NoError(t, doc.Load(strings.NewReader(page), ""))

	require.ErrorIs(t, rows[0].Apply(func(markup string) (string, error) { return markup, nil }), view.ErrDetached)

	// New appearances start unprocessed.
	require.Len(t, doc.Claim(), 3)
}

func TestApplyIsAtomicForRender(t *testing.T) {
	var body strings.Builder
	body.WriteString("<html><body>")
	for idx := range 64 {
		fmt.Fprintf(&body, `<div class="serverguide-bodycells" guid="row-%d"><div class="serverguide-cell-players"><span>%d / 64</span></div></div>`, idx, idx)
	}
	body.WriteString("</body></html>")

	doc := view.NewDocument(view.Battlelog)
	require.NoError(t, doc.Load(strings.NewReader(body.String()), ""))

	rows := doc.Claim()
	require.Len(t, rows, 64)

	var wg sync.WaitGroup
	for _, row := range rows {
		wg.Add(1)

		go func(row view.Row) {
			defer wg.Done()

			_ = row.Apply(func(markup string) (string, error) {
				return strings.Replace(markup, " / ", " <b>[1]</b> / ", 1), nil
			})
		}(row)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		default:
		}

		var buf bytes.Buffer
		require.NoError(t, doc.Render(&buf))

		// Every snapshot reloads into rows that are either untouched or patched and marked.
		snapshot := view.NewDocument(view.Battlelog)
		require.NoError(t, snapshot.Load(&buf, ""))

		for _, state := range snapshot.Rows() {
			require.Equal(t, strings.Contains(state.Markup, "<b>[1]</b>"), state.Processed, state.ServerID)
		}
	}

	require.Empty(t, doc.Claim())
	for _, state := range doc.Rows() {
		require.True(t, state.Processed)
	}
}
