// Package reconcile drives the scan, fetch, filter, patch and mark cycle over a view.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"github.com/leighmacdonald/trueplayers/internal/battlelog"
	"github.com/leighmacdonald/trueplayers/internal/filter"
	"github.com/leighmacdonald/trueplayers/internal/patch"
	"github.com/leighmacdonald/trueplayers/internal/settings"
	"github.com/leighmacdonald/trueplayers/internal/view"
	"github.com/remeh/sizedwaitgroup"
)

// DefaultPagePattern matches the server browser, favourites and history pages.
const DefaultPagePattern = `.*/bf3/servers.*`

// Fetcher retrieves the raw roster for a server.
type Fetcher interface {
	Roster(ctx context.Context, serverID string) ([]battlelog.Player, error)
}

// ConfigSource provides a FilterConfig snapshot at the time of use.
type ConfigSource interface {
	Load(ctx context.Context) (settings.FilterConfig, error)
}

// Outcome is the terminal state of one row cycle.
type Outcome int

const (
	Patched Outcome = iota
	FetchFailed
	ConfigFailed
	PatchFailed
	Detached
)

func (o Outcome) String() string {
	switch o {
	case Patched:
		return "patched"
	case FetchFailed:
		return "fetch_failed"
	case ConfigFailed:
		return "config_failed"
	case PatchFailed:
		return "patch_failed"
	case Detached:
		return "detached"
	default:
		return "unknown"
	}
}

// Result reports what happened to a claimed row.
type Result struct {
	ScanID   string
	ServerID string
	Outcome  Outcome
	Count    int
	Mode     patch.Mode
	Err      error
}

type Options struct {
	// PagePattern restricts scanning to matching page urls. Pages without a url are always scanned.
	PagePattern *regexp.Regexp
	// MaxInFlight bounds concurrent roster requests. Values below 1 mean 1.
	MaxInFlight     int
	MissingPresence filter.MissingPresence
	// Results receives one Result per claimed row when set. It must be drained.
	Results chan<- Result
}

// Reconciler owns the pipeline. Rows are claimed when selected, before their fetch starts, so a
// rescan firing while requests are in flight never selects them a second time. A row whose
// fetch fails stays claimed but unmarked: it is not retried until the host renders it again.
type Reconciler struct {
	view    view.View
	fetcher Fetcher
	config  ConfigSource
	opts    Options
	limit   sizedwaitgroup.SizedWaitGroup
	pending sync.WaitGroup
}

func New(target view.View, fetcher Fetcher, config ConfigSource, opts Options) *Reconciler {
	if opts.MaxInFlight < 1 {
		opts.MaxInFlight = 1
	}

	return &Reconciler{
		view:    target,
		fetcher: fetcher,
		config:  config,
		opts:    opts,
		limit:   sizedwaitgroup.New(opts.MaxInFlight),
	}
}

// Eligible reports whether the current page is one the pipeline applies to.
func (r *Reconciler) Eligible() bool {
	if r.opts.PagePattern == nil {
		return true
	}

	pageURL := r.view.URL()

	return pageURL == "" || r.opts.PagePattern.MatchString(pageURL)
}

// Scan claims every unprocessed row and starts one fetch per row. It does not wait for the
// fetches and returns the number of rows claimed.
func (r *Reconciler) Scan(ctx context.Context) int {
	if !r.Eligible() {
		return 0
	}

	rows := r.view.Claim()
	if len(rows) == 0 {
		return 0
	}

	scanID := uuid.NewString()
	slog.Debug("Scanning rows", slog.String("scan_id", scanID), slog.Int("rows", len(rows)))

	for _, row := range rows {
		r.pending.Add(1)

		go func(row view.Row) {
			defer r.pending.Done()

			if err := r.limit.AddWithContext(ctx); err != nil {
				r.report(ctx, Result{ScanID: scanID, ServerID: row.ServerID(), Outcome: FetchFailed, Err: err})

				return
			}
			defer r.limit.Done()

			r.report(ctx, r.process(ctx, scanID, row))
		}(row)
	}

	return len(rows)
}

// Run scans once per received trigger until ctx is done or triggers is closed, then waits for
// in flight work to finish.
func (r *Reconciler) Run(ctx context.Context, triggers <-chan struct{}) {
	defer r.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-triggers:
			if !ok {
				return
			}

			r.Scan(ctx)
		}
	}
}

// Wait blocks until every started row cycle has completed.
func (r *Reconciler) Wait() {
	r.pending.Wait()
}

func (r *Reconciler) process(ctx context.Context, scanID string, row view.Row) Result {
	result := Result{ScanID: scanID, ServerID: row.ServerID()}
	logger := slog.With(slog.String("scan_id", scanID), slog.String("server_id", result.ServerID))

	players, errRoster := r.fetcher.Roster(ctx, result.ServerID)
	if errRoster != nil {
		logger.Debug("Roster fetch failed", slog.String("error", errRoster.Error()))
		result.Outcome, result.Err = FetchFailed, errRoster

		return result
	}

	conf, errConf := r.config.Load(ctx)
	if errConf != nil {
		logger.Warn("Failed to load filter config", slog.String("error", errConf.Error()))
		result.Outcome, result.Err = ConfigFailed, errConf

		return result
	}

	result.Mode = conf.Mode()
	result.Count = filter.Count(players, conf.Filter(r.opts.MissingPresence))

	errPatch := row.Apply(func(markup string) (string, error) {
		return patch.Apply(markup, result.Count, result.Mode)
	})

	switch {
	case errPatch == nil:
		result.Outcome = Patched
		logger.Debug("Patched row", slog.Int("count", result.Count), slog.Int("roster", len(players)),
			slog.String("mode", result.Mode.String()))
	case errors.Is(errPatch, view.ErrDetached):
		result.Outcome, result.Err = Detached, errPatch
	default:
		logger.Debug("Failed to patch row", slog.String("error", errPatch.Error()))
		result.Outcome, result.Err = PatchFailed, errPatch
	}

	return result
}

func (r *Reconciler) report(ctx context.Context, result Result) {
	if r.opts.Results == nil {
		return
	}

	select {
	case r.opts.Results <- result:
	case <-ctx.Done():
	}
}
