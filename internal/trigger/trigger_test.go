package trigger_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leighmacdonald/trueplayers/internal/trigger"
	"github.com/stretchr/testify/require"
)

func TestDebounceCollapsesBursts(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	in := make(chan struct{})
	out := trigger.Debounce(ctx, in, 50*time.Millisecond, nil)

	for range 10 {
		in <- struct{}{}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-out:
	case <-time.After(time.Second):
		t.Fatal("expected a debounced event")
	}

	select {
	case <-out:
		t.Fatal("burst produced more than one event")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebounceLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	in := make(chan struct{})
	out := trigger.Debounce(ctx, in, 10*time.Millisecond, trigger.NewLimiter(200*time.Millisecond))

	start := time.Now()
	in <- struct{}{}
	<-out
	in <- struct{}{}
	<-out
	require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestDebounceClosed(t *testing.T) {
	in := make(chan struct{})
	out := trigger.Debounce(t.Context(), in, time.Millisecond, nil)
	close(in)

	select {
	case _, ok := <-out:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("output not closed")
	}
}

func TestWatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.html")
	require.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0o600))

	ctx, cancel := context.WithCancel(t.Context())
	changes := make(chan struct{}, 1)
	done := make(chan error)

	go func() {
		done <- trigger.WatchFile(ctx, path, changes)
	}()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("<html><body></body></html>"), 0o600)

		select {
		case <-changes:
			return true
		default:
			return false
		}
	}, 2*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
