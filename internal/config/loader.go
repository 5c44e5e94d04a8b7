package config

import (
	"errors"
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/leighmacdonald/trueplayers/internal/battlelog"
	"github.com/spf13/viper"
)

// Loader handles setting up viper, loading configuration from files, and broadcasting configuration changes.
type Loader struct {
	*viper.Viper
	changes chan<- Config
}

// NewLoader creates a loader searching the xdg config dir and the working directory. changes may
// be nil when reload notifications are not needed.
func NewLoader(changes chan<- Config) *Loader {
	loader := Loader{changes: changes, Viper: viper.New()}
	loader.SetDefault("roster_base_url", battlelog.DefaultRosterURL)
	loader.SetDefault("database_path", Path(DefaultDBName))
	loader.SetDefault("page_pattern", `.*/bf3/servers.*`)
	loader.SetDefault("debounce_ms", 200)
	loader.SetDefault("max_in_flight", 8)
	loader.SetDefault("http_timeout_ms", int(DefaultHTTPTimeout.Milliseconds()))
	loader.SetDefault("missing_presence_playing", false)
	loader.SetDefault("log_level", "info")
	loader.SetDefault("selectors.row_class", "serverguide-bodycells")
	loader.SetDefault("selectors.id_attr", "guid")
	loader.SetDefault("selectors.cell_class", "serverguide-cell-players")
	loader.SetDefault("selectors.marker_class", "bblog-true-players")
	loader.SetConfigName(DefaultConfigName)
	loader.SetConfigType("yaml")
	loader.SetEnvPrefix(EnvPrefix)
	loader.AddConfigPath(Path(""))
	loader.AddConfigPath(".")
	loader.AutomaticEnv()

	return &loader
}

func (cl *Loader) Path() string {
	return cl.ConfigFileUsed()
}

// Watch starts watching the config file in use, sending the new config on every external change.
func (cl *Loader) Watch() {
	if cl.changes == nil || cl.ConfigFileUsed() == "" {
		return
	}

	cl.OnConfigChange(cl.onConfigChange)
	cl.WatchConfig()
}

func (cl *Loader) onConfigChange(in fsnotify.Event) {
	if !in.Has(fsnotify.Write) && !in.Has(fsnotify.Rename) {
		return
	}

	slog.Debug("External config reload triggered")
	config, err := cl.Read()
	if err != nil {
		slog.Error("Error reading config", slog.String("error", err.Error()))

		return
	}

	cl.changes <- config
}

func (cl *Loader) Write(config Config) error {
	cl.Set("roster_base_url", config.RosterBaseURL)
	cl.Set("database_path", config.DatabasePath)
	cl.Set("page_pattern", config.PagePattern)
	cl.Set("debounce_ms", config.DebounceMs)
	cl.Set("max_in_flight", config.MaxInFlight)
	cl.Set("http_timeout_ms", config.HTTPTimeoutMs)
	cl.Set("missing_presence_playing", config.MissingPresencePlaying)
	cl.Set("log_level", config.LogLevel)
	cl.Set("selectors.row_class", config.Selectors.RowClass)
	cl.Set("selectors.id_attr", config.Selectors.IDAttr)
	cl.Set("selectors.cell_class", config.Selectors.CellClass)
	cl.Set("selectors.marker_class", config.Selectors.MarkerClass)

	if cl.ConfigFileUsed() == "" {
		if err := cl.SafeWriteConfigAs(Path(DefaultConfigName + ".yaml")); err != nil {
			return errors.Join(err, errConfigWrite)
		}

		return nil
	}

	if err := cl.WriteConfig(); err != nil {
		return errors.Join(err, errConfigWrite)
	}

	return nil
}

// Read loads the config file if one exists. A missing file is not an error, defaults apply.
func (cl *Loader) Read() (Config, error) {
	if err := cl.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return Config{}, errors.Join(err, errConfigRead)
		}
	}

	var config Config
	if err := cl.Unmarshal(&config); err != nil {
		return Config{}, errors.Join(err, errConfigRead)
	}

	if _, err := config.PageRegexp(); err != nil {
		return Config{}, errors.Join(err, errConfigRead)
	}

	return config, nil
}
