// deeplink.go - Shareable player locations in URL form.

package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// PlayerLocation identifies a game and a zero-based track index within
// the library. The zero value means "nothing selected".
type PlayerLocation struct {
	GameID string
	Track  int
}

// ParsePlayerLocation resolves a shared URL against the manifest. Two
// shapes are accepted: the query form `?game=dkc2&track=3` and the
// older fragment form `#dkc2/Stickerbrush%20Symphony`. Parsing is
// forgiving, bad links land somewhere sensible instead of erroring: an
// unknown game yields the zero location and a bad track yields track 0.
func ParsePlayerLocation(m *Manifest, rawURL string) PlayerLocation {
	if m == nil {
		return PlayerLocation{}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return PlayerLocation{}
	}

	if id := u.Query().Get("game"); id != "" {
		game, ok := m.Game(id)
		if !ok {
			return PlayerLocation{}
		}
		track := 0
		if n, err := strconv.Atoi(u.Query().Get("track")); err == nil && n >= 0 && n < len(game.Tracks) {
			track = n
		}
		return PlayerLocation{GameID: id, Track: track}
	}

	if u.Fragment != "" {
		id, name, _ := strings.Cut(u.Fragment, "/")
		game, ok := m.Game(id)
		if !ok {
			return PlayerLocation{}
		}
		track, _ := game.TrackIndexByName(name)
		return PlayerLocation{GameID: id, Track: track}
	}

	return PlayerLocation{}
}

// FormatPlayerLocation renders the query shape, the one new links use.
func FormatPlayerLocation(loc PlayerLocation) string {
	if loc.GameID == "" {
		return ""
	}
	return fmt.Sprintf("?game=%s&track=%d", url.QueryEscape(loc.GameID), loc.Track)
}
