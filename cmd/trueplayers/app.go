package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/leighmacdonald/trueplayers/internal/battlelog"
	"github.com/leighmacdonald/trueplayers/internal/config"
	"github.com/leighmacdonald/trueplayers/internal/network"
	"github.com/leighmacdonald/trueplayers/internal/reconcile"
	"github.com/leighmacdonald/trueplayers/internal/settings"
	"github.com/leighmacdonald/trueplayers/internal/store"
	"github.com/leighmacdonald/trueplayers/internal/trigger"
	"github.com/leighmacdonald/trueplayers/internal/view"
	"golang.org/x/sync/errgroup"
)

// App is the main application container. It wires the settings store, the roster client and the
// page being patched together.
type App struct {
	config   config.Config
	database *sql.DB
	store    *store.Settings
	settings *settings.Manager
	client   *battlelog.Client
}

// NewApp opens the settings database and seeds any missing settings.
func NewApp(ctx context.Context, conf config.Config) (*App, error) {
	database, errDB := store.Open(ctx, conf.DatabasePath, true)
	if errDB != nil {
		return nil, errors.Join(errDB, errApp)
	}

	settingsStore := store.NewSettings(database)
	manager := settings.New(settingsStore)

	if err := manager.Bootstrap(ctx, conf.RosterBaseURL); err != nil {
		_ = database.Close()

		return nil, errors.Join(err, errApp)
	}

	return &App{
		config:   conf,
		database: database,
		store:    settingsStore,
		settings: manager,
		client:   battlelog.New(network.NewClient(conf.HTTPTimeout()), manager),
	}, nil
}

func (app *App) Close() {
	if err := app.database.Close(); err != nil {
		slog.Error("Error closing database", slog.String("error", err.Error()))
	}
}

func (app *App) reconciler(target view.View, results chan<- reconcile.Result) (*reconcile.Reconciler, error) {
	pattern, errPattern := app.config.PageRegexp()
	if errPattern != nil {
		return nil, errors.Join(errPattern, errApp)
	}

	return reconcile.New(target, app.client, app.settings, reconcile.Options{
		PagePattern:     pattern,
		MaxInFlight:     app.config.MaxInFlight,
		MissingPresence: app.config.MissingPresence(),
		Results:         results,
	}), nil
}

// Scan patches the page once, waiting for every row to complete.
func (app *App) Scan(ctx context.Context, page *Page, target string) ([]reconcile.Result, error) {
	if _, err := page.Load(); err != nil {
		return nil, err
	}

	results := make(chan reconcile.Result)

	rec, errRec := app.reconciler(page.Document, results)
	if errRec != nil {
		return nil, errRec
	}

	if !rec.Eligible() {
		slog.Warn("Page url does not match the page pattern, nothing to do", slog.String("url", page.URL))
	}

	rec.Scan(ctx)

	go func() {
		rec.Wait()
		close(results)
	}()

	var collected []reconcile.Result //nolint:prealloc
	for result := range results {
		collected = append(collected, result)
	}

	if err := page.Save(target); err != nil {
		return collected, err
	}

	return collected, nil
}

// Watch patches the page every time it changes on disk until ctx is done. Writes made by Watch
// itself are recognised and do not trigger a rescan.
func (app *App) Watch(ctx context.Context, page *Page) error {
	results := make(chan reconcile.Result)

	rec, errRec := app.reconciler(page.Document, results)
	if errRec != nil {
		return errRec
	}

	group, groupCtx := errgroup.WithContext(ctx)
	changes := make(chan struct{}, 1)

	group.Go(func() error {
		return trigger.WatchFile(groupCtx, page.Path, changes)
	})

	triggers := trigger.Debounce(groupCtx, changes, app.config.Debounce(), trigger.NewLimiter(app.config.Debounce()))

	// Process whatever is on disk right away.
	trigger.Notify(changes)

	group.Go(func() error {
		defer rec.Wait()

		for {
			select {
			case <-groupCtx.Done():
				return nil
			case _, ok := <-triggers:
				if !ok {
					return nil
				}

				changed, errLoad := page.Load()
				if errLoad != nil {
					slog.Warn("Failed to load page", slog.String("error", errLoad.Error()))

					continue
				}

				if !changed {
					continue
				}

				if claimed := rec.Scan(groupCtx); claimed > 0 {
					slog.Info("Processing rows", slog.Int("rows", claimed))
				}
			case result := <-results:
				logResult(result)

				if result.Outcome != reconcile.Patched {
					continue
				}

				if err := page.Save(""); err != nil {
					slog.Error("Failed to save page", slog.String("error", err.Error()))
				}
			}
		}
	})

	return group.Wait()
}

func logResult(result reconcile.Result) {
	attrs := []any{
		slog.String("server_id", result.ServerID),
		slog.String("outcome", result.Outcome.String()),
	}

	if result.Outcome == reconcile.Patched {
		slog.Info("Row patched", append(attrs, slog.Int("count", result.Count))...)

		return
	}

	if result.Err != nil {
		attrs = append(attrs, slog.String("error", result.Err.Error()))
	}

	slog.Debug("Row not patched", attrs...)
}

// Page is a server browser page backed by a file.
type Page struct {
	Path     string
	URL      string
	Document *view.Document

	mu   sync.Mutex
	last []byte
}

func NewPage(path string, pageURL string, selectors view.Selectors) *Page {
	return &Page{Path: path, URL: pageURL, Document: view.NewDocument(selectors)}
}

// Load parses the file into the document if its content differs from what was last seen.
func (p *Page) Load() (bool, error) {
	body, errRead := os.ReadFile(p.Path)
	if errRead != nil {
		return false, errors.Join(errRead, errApp)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last != nil && bytes.Equal(body, p.last) {
		return false, nil
	}

	if err := p.Document.Load(bytes.NewReader(body), p.URL); err != nil {
		return false, errors.Join(err, errApp)
	}

	p.last = body

	return true, nil
}

// Save renders the document to target, or back to the page file when target is empty.
func (p *Page) Save(target string) error {
	var buf bytes.Buffer
	if err := p.Document.Render(&buf); err != nil {
		return errors.Join(err, errApp)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if target == "" || target == p.Path {
		target = p.Path
		p.last = buf.Bytes()
	}

	if err := os.WriteFile(target, buf.Bytes(), 0o600); err != nil {
		return errors.Join(err, errApp)
	}

	return nil
}
