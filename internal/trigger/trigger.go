// Package trigger turns bursts of page change notifications into a bounded stream of rescan events.
package trigger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// DefaultQuiet is how long the page must stay unchanged before a rescan fires.
const DefaultQuiet = 200 * time.Millisecond

var ErrWatch = errors.New("failed to watch page")

// NewLimiter returns a limiter allowing at most one rescan per interval.
func NewLimiter(interval time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Notify performs a non blocking send. A pending event already covers the new one.
func Notify(events chan<- struct{}) {
	select {
	case events <- struct{}{}:
	default:
	}
}

// Debounce emits a single event once no input has arrived for quiet. Emission is additionally
// paced by limiter when one is given. The returned channel is closed when ctx is done or in is closed.
func Debounce(ctx context.Context, in <-chan struct{}, quiet time.Duration, limiter *rate.Limiter) <-chan struct{} {
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)

		timer := time.NewTimer(quiet)
		timer.Stop()

		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-in:
				if !ok {
					return
				}

				timer.Reset(quiet)
			case <-timer.C:
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return
					}
				}

				Notify(out)
			}
		}
	}()

	return out
}

// WatchFile sends a change event every time the file at path is written, created or replaced.
// The parent directory is watched so editors that save through a rename are also seen. It blocks
// until ctx is done.
func WatchFile(ctx context.Context, path string, changes chan<- struct{}) error {
	watcher, errWatcher := fsnotify.NewWatcher()
	if errWatcher != nil {
		return errors.Join(errWatcher, ErrWatch)
	}

	defer func(closer io.Closer) {
		if err := closer.Close(); err != nil {
			slog.Error("watcher close error", slog.String("error", err.Error()))
		}
	}(watcher)

	absPath, errAbs := filepath.Abs(path)
	if errAbs != nil {
		return errors.Join(errAbs, ErrWatch)
	}

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return errors.Join(err, ErrWatch)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != absPath {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			Notify(changes)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			slog.Warn("Page watcher error", slog.String("error", err.Error()))
		}
	}
}
