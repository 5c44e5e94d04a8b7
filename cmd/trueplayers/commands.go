package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/leighmacdonald/trueplayers/internal/config"
	"github.com/leighmacdonald/trueplayers/internal/editor"
	"github.com/leighmacdonald/trueplayers/internal/patch"
	"github.com/leighmacdonald/trueplayers/internal/reconcile"
	"github.com/leighmacdonald/trueplayers/internal/settings"
	"github.com/leighmacdonald/trueplayers/internal/ui"
	"github.com/leighmacdonald/trueplayers/internal/ui/styles"
	"github.com/leighmacdonald/trueplayers/internal/view"
	"github.com/spf13/cobra"
)

func runScan(cmd *cobra.Command, _ []string) error {
	userConfig, _, cleanup, errConfig := loadConfig(nil)
	if errConfig != nil {
		return errConfig
	}
	defer cleanup()

	app, errApp := NewApp(cmd.Context(), userConfig)
	if errApp != nil {
		return errApp
	}
	defer app.Close()

	page := NewPage(pageFile, pageURL, userConfig.ViewSelectors())

	results, errScan := app.Scan(cmd.Context(), page, outFile)
	if errScan != nil {
		return errScan
	}

	printSummary(cmd.OutOrStdout(), results, page.Document.Rows())

	return nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	configUpdates := make(chan config.Config)

	userConfig, loader, cleanup, errConfig := loadConfig(configUpdates)
	if errConfig != nil {
		return errConfig
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, errApp := NewApp(ctx, userConfig)
	if errApp != nil {
		return errApp
	}
	defer app.Close()

	// Runtime settings live in the settings store, the file config only needs a restart notice.
	loader.Watch()

	go func() {
		for {
			select {
			case <-configUpdates:
				slog.Warn("Config file changed, restart watch to apply it")
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s, press ctrl+c to stop\n", pageFile)

	return app.Watch(ctx, NewPage(pageFile, pageURL, userConfig.ViewSelectors()))
}

func runNames(cmd *cobra.Command, _ []string) error {
	userConfig, _, cleanup, errConfig := loadConfig(nil)
	if errConfig != nil {
		return errConfig
	}
	defer cleanup()

	app, errApp := NewApp(cmd.Context(), userConfig)
	if errApp != nil {
		return errApp
	}
	defer app.Close()

	prompt := ui.Terminal{Title: settings.FilterNames.Label(), Input: cmd.InOrStdin(), Output: cmd.OutOrStdout()}

	names, changed, errEdit := editor.New(app.settings, prompt).Edit(cmd.Context())
	if errEdit != nil {
		return errEdit
	}

	out := cmd.OutOrStdout()
	if !changed {
		fmt.Fprintln(out, "Cancelled, ignored names unchanged")

		return nil
	}

	if len(names) == 0 {
		fmt.Fprintln(out, "Ignored names cleared")

		return nil
	}

	fmt.Fprintf(out, "Ignoring %d name(s): %s\n", len(names), strings.Join(names, ", "))

	enabled, errToggle := app.settings.Toggle(cmd.Context(), settings.FilterNames)
	if errToggle == nil && !enabled {
		fmt.Fprintf(out, "Note: %q is off, enable it with `trueplayers settings toggle %s`\n",
			settings.FilterNames.Label(), settings.FilterNames)
	}

	return nil
}

func runSettings(cmd *cobra.Command, _ []string) error {
	userConfig, loader, cleanup, errConfig := loadConfig(nil)
	if errConfig != nil {
		return errConfig
	}
	defer cleanup()

	app, errApp := NewApp(cmd.Context(), userConfig)
	if errApp != nil {
		return errApp
	}
	defer app.Close()

	stored, errAll := app.store.All(cmd.Context())
	if errAll != nil {
		return errAll
	}

	ages := map[string]string{}
	for _, setting := range stored {
		ages[setting.Key] = "updated " + humanize.Time(setting.UpdatedOn)
	}

	conf, errLoad := app.settings.Load(cmd.Context())
	if errLoad != nil {
		return errLoad
	}

	baseURL, errURL := app.settings.RosterBaseURL(cmd.Context())
	if errURL != nil {
		return errURL
	}

	enabled := map[settings.Toggle]bool{
		settings.OnlyCorrected: conf.OnlyCorrected,
		settings.PlayingOnly:   conf.PlayingOnly,
		settings.FilterNames:   conf.FilterNames,
	}

	names := "(none)"
	if len(conf.IgnoredNames) > 0 {
		names = editor.FormatNames(conf.IgnoredNames)
	}

	out := cmd.OutOrStdout()
	for _, toggle := range settings.Toggles {
		fmt.Fprintln(out, styles.Setting(toggle.Label(), styles.Toggle(enabled[toggle]), ages[string(toggle)]))
	}

	fmt.Fprintln(out, styles.Setting("Ignored names", styles.SettingValue.Render(names), ages[settings.KeyIgnoredNames]))
	fmt.Fprintln(out, styles.Setting("Roster endpoint", styles.SettingValue.Render(baseURL), ages[settings.KeyRosterBaseURL]))
	fmt.Fprintln(out, styles.Setting("Count mode", styles.SettingValue.Render(conf.Mode().String()), ""))

	if writeConfig {
		if err := loader.Write(userConfig); err != nil {
			return err
		}

		if loader.Path() == "" {
			fmt.Fprintln(out, styles.Setting("Config file", config.Path(config.DefaultConfigName+".yaml"), "written"))
		}
	}

	if path := loader.Path(); path != "" {
		fmt.Fprintln(out, styles.Setting("Config file", path, ""))
	}

	fmt.Fprintln(out, styles.Setting("Database", userConfig.DatabasePath, ""))

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	userConfig, _, cleanup, errConfig := loadConfig(nil)
	if errConfig != nil {
		return errConfig
	}
	defer cleanup()

	app, errApp := NewApp(cmd.Context(), userConfig)
	if errApp != nil {
		return errApp
	}
	defer app.Close()

	if args[0] == settings.KeyIgnoredNames {
		return app.settings.SetIgnoredNames(cmd.Context(), editor.ParseNames(args[1]))
	}

	return app.settings.Set(cmd.Context(), args[0], args[1])
}

func runSettingsToggle(cmd *cobra.Command, args []string) error {
	toggle, errToggle := settings.ParseToggle(args[0])
	if errToggle != nil {
		return errToggle
	}

	userConfig, _, cleanup, errConfig := loadConfig(nil)
	if errConfig != nil {
		return errConfig
	}
	defer cleanup()

	app, errApp := NewApp(cmd.Context(), userConfig)
	if errApp != nil {
		return errApp
	}
	defer app.Close()

	enabled, errFlip := app.settings.Flip(cmd.Context(), toggle)
	if errFlip != nil {
		return errFlip
	}

	fmt.Fprintln(cmd.OutOrStdout(), styles.Setting(toggle.Label(), styles.Toggle(enabled), ""))

	return nil
}

func printSummary(out io.Writer, results []reconcile.Result, rows []view.RowState) {
	markup := make(map[string]string, len(rows))
	for _, row := range rows {
		markup[row.ServerID] = row.Markup
	}

	tally := map[reconcile.Outcome]int{}
	for _, result := range results {
		tally[result.Outcome]++

		if result.Outcome != reconcile.Patched {
			reason := result.Outcome.String()
			if result.Err != nil && !errors.Is(result.Err, patch.ErrNoDelimiter) {
				reason = result.Err.Error()
			}

			fmt.Fprintf(out, "%-40s %s\n", result.ServerID, styles.SettingOff.Render(reason))

			continue
		}

		count, errParse := patch.Parse(markup[result.ServerID])
		if errParse != nil {
			fmt.Fprintf(out, "%-40s %d\n", result.ServerID, result.Count)

			continue
		}

		shown := "?"
		if count.HasFake {
			shown = fmt.Sprint(count.Fake)
		}

		fmt.Fprintf(out, "%-40s %s -> %s / %d\n", result.ServerID, shown,
			styles.SettingOn.Render(fmt.Sprint(result.Count)), count.Max)
	}

	fmt.Fprintf(out, "\n%d row(s): %d patched, %d failed fetches, %d unpatchable\n",
		len(results), tally[reconcile.Patched], tally[reconcile.FetchFailed],
		tally[reconcile.PatchFailed]+tally[reconcile.ConfigFailed])
}
