// Package battlelog implements the client for the Battlelog server population endpoint.
package battlelog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/leighmacdonald/trueplayers/internal/network"
)

// DefaultRosterURL is the endpoint the Battlelog frontend itself uses to list the players on a server.
const DefaultRosterURL = "https://battlelog.battlefield.com/bf3/servers/getPlayersOnServer/pc/"

var (
	ErrFetchRoster = errors.New("failed to fetch server roster")
	ErrServerID    = errors.New("invalid server id")
)

// Presence holds the live status flags of a user. Only isPlaying is currently consumed.
type Presence struct {
	IsPlaying bool `json:"isPlaying"`
	IsOnline  bool `json:"isOnline"`
}

type User struct {
	Username string    `json:"username"`
	Presence *Presence `json:"presence"`
}

type Persona struct {
	PersonaName string `json:"personaName"`
	User        *User  `json:"user"`
}

// Player is a single roster entry. Nested objects are pointers since the endpoint omits them
// for some entries and they must decode as absent rather than zero.
type Player struct {
	Persona *Persona `json:"persona"`
}

// DisplayName returns the persona name and whether it was present.
func (p Player) DisplayName() (string, bool) {
	if p.Persona == nil {
		return "", false
	}

	return p.Persona.PersonaName, true
}

// AccountName returns the account username and whether it was present.
func (p Player) AccountName() (string, bool) {
	if p.Persona == nil || p.Persona.User == nil {
		return "", false
	}

	return p.Persona.User.Username, true
}

// Playing reports the presence flag, the second value is false when presence data is missing.
func (p Player) Playing() (bool, bool) {
	if p.Persona == nil || p.Persona.User == nil || p.Persona.User.Presence == nil {
		return false, false
	}

	return p.Persona.User.Presence.IsPlaying, true
}

// RosterResponse is the body returned by the getPlayersOnServer endpoint.
type RosterResponse struct {
	Players []Player `json:"players"`
}

// BaseURLSource provides the endpoint base url at the time of use.
type BaseURLSource interface {
	RosterBaseURL(ctx context.Context) (string, error)
}

// StaticURL is a BaseURLSource that never changes.
type StaticURL string

func (s StaticURL) RosterBaseURL(_ context.Context) (string, error) {
	return string(s), nil
}

// Client fetches rosters from the remote endpoint. It holds no mutable state and is safe for
// concurrent use.
type Client struct {
	httpClient network.HTTPDoer
	baseURL    BaseURLSource
}

func New(httpClient network.HTTPDoer, baseURL BaseURLSource) *Client {
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

// Roster issues a single request for the players on the server identified by serverID.
// Failures are not retried.
func (c *Client) Roster(ctx context.Context, serverID string) ([]Player, error) {
	serverID = strings.TrimSpace(serverID)
	if serverID == "" {
		return nil, errors.Join(ErrServerID, ErrFetchRoster)
	}

	base, errBase := c.baseURL.RosterBaseURL(ctx)
	if errBase != nil {
		return nil, errors.Join(errBase, ErrFetchRoster)
	}

	if _, errParse := url.Parse(base); errParse != nil || base == "" {
		return nil, errors.Join(fmt.Errorf("invalid base url %q", base), ErrFetchRoster)
	}

	resp, errResp := network.FetchJSON[RosterResponse](ctx, c.httpClient, base+url.PathEscape(serverID))
	if errResp != nil {
		return nil, errors.Join(errResp, ErrFetchRoster)
	}

	if resp.Players == nil {
		return []Player{}, nil
	}

	return resp.Players, nil
}
