package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"runtime"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/fang"
	_ "github.com/joho/godotenv/autoload"
	"github.com/leighmacdonald/trueplayers/internal/config"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

var (
	BuildVersion   = "master"
	BuildCommit    = "00000000"
	BuildDate      = time.Now().Format("2006-01-02T15:04:05Z")
	BuildGoVersion = runtime.Version()
	cfgFile        string
	logStderr      bool
	pageFile       string
	pageURL        string
	outFile        string
	writeConfig    bool
	rootCmd        = &cobra.Command{
		Use:   "trueplayers",
		Short: "Battlelog true player counts",
		Long:  `trueplayers - Annotates the Battlefield 3 server browser with the real number of players on each server`,
	}

	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Patch a saved server browser page once",
		Args:  cobra.NoArgs,
		RunE:  runScan,
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Keep patching a server browser page as it changes",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}

	namesCmd = &cobra.Command{
		Use:   "names",
		Short: "Edit the player names ignored when counting",
		Args:  cobra.NoArgs,
		RunE:  runNames,
	}

	settingsCmd = &cobra.Command{
		Use:   "settings",
		Short: "Show the current settings",
		Args:  cobra.NoArgs,
		RunE:  runSettings,
	}

	settingsSetCmd = &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting",
		Args:  cobra.ExactArgs(2),
		RunE:  runSettingsSet,
	}

	settingsToggleCmd = &cobra.Command{
		Use:   "toggle <key>",
		Short: "Flip a boolean setting",
		Args:  cobra.ExactArgs(1),
		RunE:  runSettingsToggle,
	}

	versionCmd = &cobra.Command{
		Use:               "version",
		Short:             "Print version information",
		Long:              "Print detailed version information about trueplayers",
		Args:              cobra.NoArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		Run:               version,
	}
)

var errApp = errors.New("application error")

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&logStderr, "log-stderr", false, "Also write logs to stderr")

	for _, command := range []*cobra.Command{scanCmd, watchCmd} {
		command.Flags().StringVarP(&pageFile, "page", "p", "", "Server browser html file")
		command.Flags().StringVar(&pageURL, "url", "", "Url the page was loaded from, used to check the page is a server list")
		_ = command.MarkFlagRequired("page")
	}

	scanCmd.Flags().StringVarP(&outFile, "out", "o", "", "Write the patched page here instead of in place")
	settingsCmd.Flags().BoolVar(&writeConfig, "write-config", false, "Write the effective file configuration, creating the config file if needed")

	settingsCmd.AddCommand(settingsSetCmd, settingsToggleCmd)
	rootCmd.AddCommand(scanCmd, watchCmd, namesCmd, settingsCmd, versionCmd)

	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		slog.Error("Exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func version(_ *cobra.Command, _ []string) {
	fmt.Printf("trueplayers - Battlelog true player counts\n\n") //nolint:forbidigo
	fmt.Printf("  Version: %s\n", BuildVersion)                  //nolint:forbidigo
	fmt.Printf("  Commit:  %s\n", BuildCommit)                   //nolint:forbidigo
	fmt.Printf("  Built:   %s\n", BuildDate)                     //nolint:forbidigo
	fmt.Printf("  Runtime: %s\n\n", BuildGoVersion)              //nolint:forbidigo
}

// loadConfig reads the configuration and installs the file logger. The returned cleanup closes the log.
func loadConfig(changes chan<- config.Config) (config.Config, *config.Loader, func(), error) {
	// Make sure our config & data home exists.
	if err := os.MkdirAll(path.Join(xdg.ConfigHome, config.ConfigDirName), 0o750); err != nil {
		return config.Config{}, nil, nil, errors.Join(err, errApp)
	}

	loader := config.NewLoader(changes)
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}

	userConfig, errConfig := loader.Read()
	if errConfig != nil {
		return config.Config{}, nil, nil, errors.Join(errConfig, errApp)
	}

	logFile, errLogger := config.LoggerInit(config.Path(config.DefaultLogName), userConfig.Level(), logStderr)
	if errLogger != nil {
		return config.Config{}, nil, nil, errors.Join(errLogger, errApp)
	}

	cleanup := func() {
		if err := logFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close log file: %v\n", err)
		}
	}

	slog.Debug("Starting trueplayers", slog.String("version", BuildVersion),
		slog.String("commit", BuildCommit), slog.String("date", BuildDate),
		slog.String("go", runtime.Version()), slog.String("config", loader.Path()))

	return userConfig, loader, cleanup, nil
}
