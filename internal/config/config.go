package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/leighmacdonald/trueplayers/internal/filter"
	"github.com/leighmacdonald/trueplayers/internal/view"
)

var (
	errConfigWrite = errors.New("failed to write config file")
	errConfigRead  = errors.New("failed to read config file")
	errLoggerInit  = errors.New("failed to initialize logger")
	errPattern     = errors.New("invalid page pattern")
)

const (
	ConfigDirName      = "trueplayers"
	DefaultConfigName  = "trueplayers"
	DefaultDBName      = "trueplayers.db"
	DefaultLogName     = "trueplayers.log"
	EnvPrefix          = "trueplayers"
	DefaultHTTPTimeout = 15 * time.Second
)

type Config struct {
	// RosterBaseURL seeds the settings store the first time it is opened. Once stored, the
	// value in the settings store wins.
	RosterBaseURL string `mapstructure:"roster_base_url"`
	DatabasePath  string `mapstructure:"database_path"`
	// PagePattern restricts processing to page urls matching this expression.
	PagePattern   string `mapstructure:"page_pattern"`
	DebounceMs    int    `mapstructure:"debounce_ms"`
	MaxInFlight   int    `mapstructure:"max_in_flight"`
	HTTPTimeoutMs int    `mapstructure:"http_timeout_ms"`
	// MissingPresencePlaying counts roster entries without presence data as playing.
	MissingPresencePlaying bool      `mapstructure:"missing_presence_playing"`
	LogLevel               string    `mapstructure:"log_level"`
	Selectors              Selectors `mapstructure:"selectors"`
}

type Selectors struct {
	RowClass    string `mapstructure:"row_class"`
	IDAttr      string `mapstructure:"id_attr"`
	CellClass   string `mapstructure:"cell_class"`
	MarkerClass string `mapstructure:"marker_class"`
}

func (c Config) Debounce() time.Duration {
	if c.DebounceMs <= 0 {
		return 200 * time.Millisecond
	}

	return time.Duration(c.DebounceMs) * time.Millisecond
}

func (c Config) HTTPTimeout() time.Duration {
	if c.HTTPTimeoutMs <= 0 {
		return DefaultHTTPTimeout
	}

	return time.Duration(c.HTTPTimeoutMs) * time.Millisecond
}

func (c Config) MissingPresence() filter.MissingPresence {
	if c.MissingPresencePlaying {
		return filter.MissingIncluded
	}

	return filter.MissingExcluded
}

// PageRegexp compiles the page pattern. An empty pattern disables page gating.
func (c Config) PageRegexp() (*regexp.Regexp, error) {
	if c.PagePattern == "" {
		return nil, nil //nolint:nilnil
	}

	pattern, err := regexp.Compile(c.PagePattern)
	if err != nil {
		return nil, errors.Join(err, errPattern)
	}

	return pattern, nil
}

// ViewSelectors returns the configured selectors, falling back to the Battlelog ones per field.
func (c Config) ViewSelectors() view.Selectors {
	selectors := view.Battlelog
	if c.Selectors.RowClass != "" {
		selectors.RowClass = c.Selectors.RowClass
	}

	if c.Selectors.IDAttr != "" {
		selectors.IDAttr = c.Selectors.IDAttr
	}

	if c.Selectors.CellClass != "" {
		selectors.CellClass = c.Selectors.CellClass
	}

	if c.Selectors.MarkerClass != "" {
		selectors.MarkerClass = c.Selectors.MarkerClass
	}

	return selectors
}

func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}

	return level
}

// Path generates a path pointing to the filename under this apps defined $XDG_CONFIG_HOME.
func Path(name string) string {
	fullPath, errFullPath := xdg.ConfigFile(path.Join(ConfigDirName, name))
	if errFullPath != nil {
		panic(errFullPath)
	}

	return fullPath
}

// LoggerInit sets up the slog global handler to write to a log file. When stderr is set, records are
// also written to the terminal.
func LoggerInit(logPath string, level slog.Level, stderr bool) (io.Closer, error) {
	logFile, errLogFile := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if errLogFile != nil {
		return nil, errors.Join(errLogFile, errLoggerInit)
	}

	var writer io.Writer = logFile
	if stderr {
		writer = io.MultiWriter(logFile, os.Stderr)
	}

	logger := slog.New(slog.NewTextHandler(writer, &slog.HandlerOptions{
		AddSource: false,
		Level:     level,
	}))

	slog.SetDefault(logger)

	return logFile, nil
}
