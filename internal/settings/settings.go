// Package settings holds the user facing filter configuration and persists it through a
// key/value Store.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leighmacdonald/trueplayers/internal/encoding"
	"github.com/leighmacdonald/trueplayers/internal/filter"
	"github.com/leighmacdonald/trueplayers/internal/patch"
	"github.com/leighmacdonald/trueplayers/internal/store"
)

var (
	ErrSettings   = errors.New("settings error")
	ErrUnknownKey = errors.New("unknown setting")
	ErrValue      = errors.New("invalid setting value")
)

// Keys used in the settings store.
const (
	KeyRosterBaseURL = "roster.base_url"
	KeyIgnoredNames  = "filtered.players.names"
)

// Toggle is one of the boolean switches exposed in the settings menu.
type Toggle string

const (
	OnlyCorrected Toggle = "only.real.players"
	PlayingOnly   Toggle = "filter.real.playing.players"
	FilterNames   Toggle = "filter.players.names"
)

// Toggles lists every toggle in menu order.
var Toggles = []Toggle{OnlyCorrected, PlayingOnly, FilterNames} //nolint:gochecknoglobals

// Label is the short menu text for the toggle.
func (t Toggle) Label() string {
	switch t {
	case OnlyCorrected:
		return "Show only real players"
	case PlayingOnly:
		return "Filter only real playing players"
	case FilterNames:
		return "Filter players names"
	default:
		return string(t)
	}
}

// Tooltip is the longer help text for the toggle.
func (t Toggle) Tooltip() string {
	switch t {
	case OnlyCorrected:
		return "Only show the real players count in the server browser. NOTE: sorting will still be based on the fake players count!"
	case PlayingOnly:
		return "Filter the real online and playing players count in the server browser. NOTE: players with status set to invisible will not count!"
	case FilterNames:
		return NamesTooltip
	default:
		return ""
	}
}

// NamesTooltip is shown when editing the ignored names.
const NamesTooltip = "Insert the players names to ignore when counting players in a server. " +
	"Separate multiple names using a comma (','). Case sensitive."

// ParseToggle resolves a toggle from its key.
func ParseToggle(key string) (Toggle, error) {
	for _, toggle := range Toggles {
		if string(toggle) == key {
			return toggle, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
}

// Store is the persistent key/value backend.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
}

// FilterConfig is a point in time snapshot of the user configuration.
type FilterConfig struct {
	OnlyCorrected bool
	PlayingOnly   bool
	FilterNames   bool
	IgnoredNames  []string
}

// Mode returns the patch strategy selected by the configuration.
func (c FilterConfig) Mode() patch.Mode {
	if c.OnlyCorrected {
		return patch.Replace
	}

	return patch.Annotate
}

// Filter converts the snapshot into the filter chain configuration.
func (c FilterConfig) Filter(missing filter.MissingPresence) filter.Config {
	return filter.Config{
		FilterNames:     c.FilterNames,
		IgnoredNames:    c.IgnoredNames,
		PlayingOnly:     c.PlayingOnly,
		MissingPresence: missing,
	}
}

// Manager reads and writes the typed settings. Every read goes to the store so that a
// fetch continuation always sees the latest user choice.
type Manager struct {
	store Store
}

func New(store Store) *Manager {
	return &Manager{store: store}
}

// Bootstrap seeds the store with defaults for any key that was never written.
func (m *Manager) Bootstrap(ctx context.Context, rosterBaseURL string) error {
	defaults := map[string]string{KeyRosterBaseURL: rosterBaseURL, KeyIgnoredNames: "[]"}
	for _, toggle := range Toggles {
		defaults[string(toggle)] = formatBool(false)
	}

	for key, value := range defaults {
		_, errGet := m.store.Get(ctx, key)
		if errGet == nil {
			continue
		}

		if !errors.Is(errGet, store.ErrNotFound) {
			return errors.Join(errGet, ErrSettings)
		}

		if err := m.store.Set(ctx, key, value); err != nil {
			return errors.Join(err, ErrSettings)
		}

		slog.Debug("Seeded setting", slog.String("key", key), slog.String("value", value))
	}

	return nil
}

// Load reads a FilterConfig snapshot.
func (m *Manager) Load(ctx context.Context) (FilterConfig, error) {
	var (
		conf FilterConfig
		err  error
	)

	if conf.OnlyCorrected, err = m.Toggle(ctx, OnlyCorrected); err != nil {
		return FilterConfig{}, err
	}

	if conf.PlayingOnly, err = m.Toggle(ctx, PlayingOnly); err != nil {
		return FilterConfig{}, err
	}

	if conf.FilterNames, err = m.Toggle(ctx, FilterNames); err != nil {
		return FilterConfig{}, err
	}

	if conf.IgnoredNames, err = m.IgnoredNames(ctx); err != nil {
		return FilterConfig{}, err
	}

	return conf, nil
}

// RosterBaseURL returns the configured roster endpoint.
func (m *Manager) RosterBaseURL(ctx context.Context) (string, error) {
	value, err := m.store.Get(ctx, KeyRosterBaseURL)
	if err != nil {
		return "", errors.Join(err, ErrSettings)
	}

	return value, nil
}

// SetRosterBaseURL updates the roster endpoint.
func (m *Manager) SetRosterBaseURL(ctx context.Context, value string) error {
	if err := m.store.Set(ctx, KeyRosterBaseURL, strings.TrimSpace(value)); err != nil {
		return errors.Join(err, ErrSettings)
	}

	return nil
}

// Toggle returns the current state of a toggle. Unset toggles are off.
func (m *Manager) Toggle(ctx context.Context, toggle Toggle) (bool, error) {
	value, err := m.store.Get(ctx, string(toggle))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}

		return false, errors.Join(err, ErrSettings)
	}

	return parseBool(value), nil
}

// SetToggle stores the state of a toggle.
func (m *Manager) SetToggle(ctx context.Context, toggle Toggle, enabled bool) error {
	if err := m.store.Set(ctx, string(toggle), formatBool(enabled)); err != nil {
		return errors.Join(err, ErrSettings)
	}

	return nil
}

// Flip inverts a toggle and returns the new state.
func (m *Manager) Flip(ctx context.Context, toggle Toggle) (bool, error) {
	current, err := m.Toggle(ctx, toggle)
	if err != nil {
		return false, err
	}

	return !current, m.SetToggle(ctx, toggle, !current)
}

// IgnoredNames returns the ordered list of ignored names. Unset, empty and undecodable values
// all yield an empty list.
func (m *Manager) IgnoredNames(ctx context.Context) ([]string, error) {
	value, err := m.store.Get(ctx, KeyIgnoredNames)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []string{}, nil
		}

		return nil, errors.Join(err, ErrSettings)
	}

	if strings.TrimSpace(value) == "" {
		return []string{}, nil
	}

	names, errDecode := encoding.UnmarshalString[[]string](value)
	if errDecode != nil {
		slog.Warn("Discarding unreadable ignored names", slog.String("error", errDecode.Error()))

		return []string{}, nil
	}

	if names == nil {
		names = []string{}
	}

	return names, nil
}

// SetIgnoredNames replaces the stored ignore list.
func (m *Manager) SetIgnoredNames(ctx context.Context, names []string) error {
	if names == nil {
		names = []string{}
	}

	value, errEncode := encoding.MarshalString(names)
	if errEncode != nil {
		return errors.Join(errEncode, ErrSettings)
	}

	if err := m.store.Set(ctx, KeyIgnoredNames, value); err != nil {
		return errors.Join(err, ErrSettings)
	}

	return nil
}

// Set assigns a setting from its textual form, as entered on the command line.
func (m *Manager) Set(ctx context.Context, key string, value string) error {
	if key == KeyRosterBaseURL {
		return m.SetRosterBaseURL(ctx, value)
	}

	toggle, errToggle := ParseToggle(key)
	if errToggle != nil {
		return errToggle
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return m.SetToggle(ctx, toggle, true)
	case "0", "false", "off", "no":
		return m.SetToggle(ctx, toggle, false)
	default:
		return fmt.Errorf("%w: %q", ErrValue, value)
	}
}

func parseBool(value string) bool {
	return value == "1"
}

func formatBool(value bool) string {
	if value {
		return "1"
	}

	return "0"
}
