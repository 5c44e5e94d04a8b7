package reconcile_test

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leighmacdonald/trueplayers/internal/battlelog"
	"github.com/leighmacdonald/trueplayers/internal/reconcile"
	"github.com/leighmacdonald/trueplayers/internal/settings"
	"github.com/leighmacdonald/trueplayers/internal/view"
	"github.com/stretchr/testify/require"
)

const page = `<html><body>
<div class="serverguide-bodycells" guid="full"><div class="serverguide-cell-players"><span>64 / 64</span></div></div>
<div class="serverguide-bodycells" guid="empty"><div class="serverguide-cell-players"><span>40 / 64</span></div></div>
<div class="serverguide-bodycells" guid="down"><div class="serverguide-cell-players"><span>10 / 32</span></div></div>
<div class="serverguide-bodycells" guid="odd"><div class="serverguide-cell-players"><span>full</span></div></div>
</body></html>`

var errDown = errors.New("connection refused")

func player(name string, playing bool) battlelog.Player {
	return battlelog.Player{Persona: &battlelog.Persona{
		PersonaName: name,
		User:        &battlelog.User{Username: strings.ToLower(name), Presence: &battlelog.Presence{IsPlaying: playing}},
	}}
}

type fakeFetcher struct {
	rosters map[string][]battlelog.Player
	calls   sync.Map
	gate    chan struct{}
	total   atomic.Int32
}

func (f *fakeFetcher) Roster(ctx context.Context, serverID string) ([]battlelog.Player, error) {
	f.total.Add(1)
	count, _ := f.calls.LoadOrStore(serverID, new(atomic.Int32))
	count.(*atomic.Int32).Add(1)

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	roster, found := f.rosters[serverID]
	if !found {
		return nil, errDown
	}

	return roster, nil
}

func (f *fakeFetcher) callsFor(serverID string) int32 {
	count, found := f.calls.Load(serverID)
	if !found {
		return 0
	}

	return count.(*atomic.Int32).Load()
}

type staticConfig struct {
	mu   sync.Mutex
	conf settings.FilterConfig
}

func (s *staticConfig) Load(_ context.Context) (settings.FilterConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conf, nil
}

func newFixture(t *testing.T) (*view.Document, *fakeFetcher) {
	t.Helper()

	doc := view.NewDocument(view.Battlelog)
	require.NoError(t, doc.Load(strings.NewReader(page), "https://battlelog.battlefield.com/bf3/servers/show/pc/"))

	fetcher := &fakeFetcher{rosters: map[string][]battlelog.Player{
		"full":  {player("Bot1", true), player("Alice", true), player("Bob", false)},
		"empty": {},
		"odd":   {player("Alice", true)},
	}}

	return doc, fetcher
}

func markup(t *testing.T, doc *view.Document) map[string]view.RowState {
	t.Helper()

	states := map[string]view.RowState{}
	for _, state := range doc.Rows() {
		states[state.ServerID] = state
	}

	return states
}

func collect(results chan reconcile.Result, count int) map[string]reconcile.Result {
	out := map[string]reconcile.Result{}
	for range count {
		result := <-results
		out[result.ServerID] = result
	}

	return out
}

func TestScanAnnotate(t *testing.T) {
	doc, fetcher := newFixture(t)
	results := make(chan reconcile.Result, 10)
	config := &staticConfig{conf: settings.FilterConfig{FilterNames: true, IgnoredNames: []string{"Bot"}, PlayingOnly: true}}

	rec := reconcile.New(doc, fetcher, config, reconcile.Options{MaxInFlight: 2, Results: results})
	require.Equal(t, 4, rec.Scan(t.Context()))
	rec.Wait()

	outcomes := collect(results, 4)
	require.Equal(t, reconcile.Patched, outcomes["full"].Outcome)
	require.Equal(t, 1, outcomes["full"].Count)
	require.Equal(t, reconcile.Patched, outcomes["empty"].Outcome)
	require.Equal(t, 0, outcomes["empty"].Count)
	require.Equal(t, reconcile.FetchFailed, outcomes["down"].Outcome)
	require.ErrorIs(t, outcomes["down"].Err, errDown)
	require.Equal(t, reconcile.PatchFailed, outcomes["odd"].Outcome)

	states := markup(t, doc)
	require.Equal(t, "<span>64 <b>[1]</b> / 64</span>", states["full"].Markup)
	require.True(t, states["full"].Processed)
	require.Equal(t, "<span>40 <b>[0]</b> / 64</span>", states["empty"].Markup)
	require.Equal(t, "<span>10 / 32</span>", states["down"].Markup)
	require.False(t, states["down"].Processed)
	require.True(t, states["down"].Claimed)
	require.False(t, states["odd"].Processed)
}

func TestScanReplace(t *testing.T) {
	doc, fetcher := newFixture(t)
	rec := reconcile.New(doc, fetcher, &staticConfig{conf: settings.FilterConfig{OnlyCorrected: true}}, reconcile.Options{})
	rec.Scan(t.Context())
	rec.Wait()

	states := markup(t, doc)
	require.Equal(t, "<span><b>[3]</b> / 64</span>", states["full"].Markup)
	require.Equal(t, "<span><b>[0]</b> / 64</span>", states["empty"].Markup)
}

func TestScanIdempotent(t *testing.T) {
	doc, fetcher := newFixture(t)
	rec := reconcile.New(doc, fetcher, &staticConfig{}, reconcile.Options{MaxInFlight: 4})
	rec.Scan(t.Context())
	rec.Wait()

	var before bytes.Buffer
	require.NoError(t, doc.Render(&before))

	require.Zero(t, rec.Scan(t.Context()))
	rec.Wait()

	var after bytes.Buffer
	require.NoError(t, doc.Render(&after))
	require.Equal(t, before.String(), after.String())
	require.Equal(t, int32(4), fetcher.total.Load())
}

func TestScanWhileInFlight(t *testing.T) {
	doc, fetcher := newFixture(t)
	fetcher.gate = make(chan struct{})

	rec := reconcile.New(doc, fetcher, &staticConfig{}, reconcile.Options{MaxInFlight: 8})
	require.Equal(t, 4, rec.Scan(t.Context()))

	// Repeated triggers while every fetch is blocked must not select the rows again.
	for range 5 {
		require.Zero(t, rec.Scan(t.Context()))
	}

	close(fetcher.gate)
	rec.Wait()

	for _, serverID := range []string{"full", "empty", "down", "odd"} {
		require.Equal(t, int32(1), fetcher.callsFor(serverID), serverID)
	}
}

func TestScanDetached(t *testing.T) {
	doc, fetcher := newFixture(t)
	fetcher.gate = make(chan struct{})
	results := make(chan reconcile.Result, 10)

	rec := reconcile.New(doc, fetcher, &staticConfig{}, reconcile.Options{MaxInFlight: 8, Results: results})
	rec.Scan(t.Context())

	// The host re-renders the page before any response arrives.
	require.NoError(t, doc.Load(strings.NewReader(page), ""))
	close(fetcher.gate)
	rec.Wait()

	outcomes := collect(results, 4)
	require.Equal(t, reconcile.Detached, outcomes["full"].Outcome)
	require.Equal(t, reconcile.Detached, outcomes["empty"].Outcome)

	for _, state := range doc.Rows() {
		require.False(t, state.Processed)
		require.False(t, state.Claimed)
	}
}

func TestPageGate(t *testing.T) {
	doc, fetcher := newFixture(t)
	rec := reconcile.New(doc, fetcher, &staticConfig{}, reconcile.Options{
		PagePattern: regexp.MustCompile(reconcile.DefaultPagePattern),
	})
	require.True(t, rec.Eligible())

	require.NoError(t, doc.Load(strings.NewReader(page), "https://battlelog.battlefield.com/bf3/user/someone/"))
	require.False(t, rec.Eligible())
	require.Zero(t, rec.Scan(t.Context()))
	require.Zero(t, fetcher.total.Load())
}

func TestRun(t *testing.T) {
	doc, fetcher := newFixture(t)
	rec := reconcile.New(doc, fetcher, &staticConfig{}, reconcile.Options{MaxInFlight: 2})

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	triggers := make(chan struct{})
	done := make(chan struct{})

	go func() {
		rec.Run(ctx, triggers)
		close(done)
	}()

	triggers <- struct{}{}
	triggers <- struct{}{}
	close(triggers)
	<-done

	require.Equal(t, int32(4), fetcher.total.Load())
	require.True(t, markup(t, doc)["full"].Processed)
}
