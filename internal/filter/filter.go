// Package filter computes the corrected player count for a roster.
//
// Two stages are applied in a fixed order: players matching an ignored name are removed first,
// then, optionally, everyone not actively playing is dropped. The order matters as the playing
// stage only ever sees the survivors of the name stage.
package filter

import (
	"regexp"
	"strings"

	"github.com/leighmacdonald/trueplayers/internal/battlelog"
)

// MissingPresence decides how the playing stage treats entries without presence data.
type MissingPresence int

const (
	// MissingExcluded drops players whose presence is unknown.
	MissingExcluded MissingPresence = iota
	// MissingIncluded counts players whose presence is unknown as playing.
	MissingIncluded
)

// Config is the read-only snapshot of the filter settings used for one count.
type Config struct {
	FilterNames     bool
	IgnoredNames    []string
	PlayingOnly     bool
	MissingPresence MissingPresence
}

// NameMatcher matches names containing any of the ignored names as a literal, case-sensitive substring.
type NameMatcher struct {
	pattern *regexp.Regexp
}

// NewNameMatcher builds a single alternation pattern out of the names. Every name is quoted so
// that characters like '.' or '[' in a clan tag are matched literally. Empty names are skipped
// as they would otherwise match everything. Returns nil if nothing is left to match.
func NewNameMatcher(names []string) *NameMatcher {
	quoted := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}

		quoted = append(quoted, regexp.QuoteMeta(name))
	}

	if len(quoted) == 0 {
		return nil
	}

	return &NameMatcher{pattern: regexp.MustCompile(strings.Join(quoted, "|"))}
}

// Match reports whether the value contains an ignored name. A nil matcher never matches.
func (m *NameMatcher) Match(value string) bool {
	if m == nil {
		return false
	}

	return m.pattern.MatchString(value)
}

// Ignored reports whether either the display name or the account name of the player matches.
// Missing names cannot match.
func (m *NameMatcher) Ignored(player battlelog.Player) bool {
	if name, found := player.DisplayName(); found && m.Match(name) {
		return true
	}

	if account, found := player.AccountName(); found && m.Match(account) {
		return true
	}

	return false
}

// ByName returns the players not matched by the ignore list.
func ByName(players []battlelog.Player, names []string) []battlelog.Player {
	matcher := NewNameMatcher(names)
	if matcher == nil {
		return players
	}

	kept := make([]battlelog.Player, 0, len(players))
	for _, player := range players {
		if matcher.Ignored(player) {
			continue
		}

		kept = append(kept, player)
	}

	return kept
}

// Playing returns the players actively in game. Invisible players report not playing and are dropped.
func Playing(players []battlelog.Player, missing MissingPresence) []battlelog.Player {
	kept := make([]battlelog.Player, 0, len(players))
	for _, player := range players {
		playing, known := player.Playing()
		if !known {
			playing = missing == MissingIncluded
		}

		if playing {
			kept = append(kept, player)
		}
	}

	return kept
}

// Apply runs the enabled stages in order and returns the surviving players.
func Apply(players []battlelog.Player, conf Config) []battlelog.Player {
	if conf.FilterNames && len(conf.IgnoredNames) > 0 {
		players = ByName(players, conf.IgnoredNames)
	}

	if conf.PlayingOnly {
		players = Playing(players, conf.MissingPresence)
	}

	return players
}

// Count returns the corrected player count, always in the range [0, len(players)].
func Count(players []battlelog.Player, conf Config) int {
	return len(Apply(players, conf))
}
