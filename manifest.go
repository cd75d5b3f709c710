// manifest.go - Library manifest schema, lookup and tag overrides.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Manifest is the library index written by the scanner and consumed
// by the player and the HTTP server. Unknown JSON fields are ignored
// so newer manifests keep loading on older builds.
type Manifest struct {
	GeneratedAt string         `json:"generatedAt"`
	Games       []ManifestGame `json:"games"`
}

type ManifestGame struct {
	ID         string          `json:"id"`
	Format     string          `json:"format,omitempty"`
	ZipFile    string          `json:"zipFile,omitempty"`
	AudioDir   string          `json:"audioDir,omitempty"`
	Title      string          `json:"title,omitempty"`
	TitleJP    string          `json:"titleJp,omitempty"`
	System     string          `json:"system,omitempty"`
	Author     string          `json:"author,omitempty"`
	CoverImage string          `json:"coverImage,omitempty"`
	OGImage    string          `json:"ogImage,omitempty"`
	TrackCount int             `json:"trackCount"`
	Tracks     []ManifestTrack `json:"tracks"`
}

type ManifestTrack struct {
	Filename  string  `json:"filename,omitempty"`
	AudioFile string  `json:"audioFile,omitempty"` // key used by older manifests
	Name      string  `json:"name,omitempty"`
	NameJP    string  `json:"nameJp,omitempty"`
	Duration  float64 `json:"duration,omitempty"` // seconds
	Fade      int     `json:"fade,omitempty"`     // milliseconds
}

// File resolves the entry name across both manifest generations.
func (t ManifestTrack) File() string {
	if t.Filename != "" {
		return t.Filename
	}
	return t.AudioFile
}

// DisplayTitle resolves the listing title: English, localized, then ID.
func (g ManifestGame) DisplayTitle() string {
	if g.Title != "" {
		return g.Title
	}
	if g.TitleJP != "" {
		return g.TitleJP
	}
	return g.ID
}

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: %w: %v", ErrParseFailure, err)
	}
	return &m, nil
}

func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

func WriteManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func (m *Manifest) Game(id string) (ManifestGame, bool) {
	for _, g := range m.Games {
		if g.ID == id {
			return g, true
		}
	}
	return ManifestGame{}, false
}

// TrackIndexByName finds a track by its display name, for fragment
// deep links. Matching is case-insensitive and also accepts the entry
// filename stem, which is what links carried before tracks were named.
func (g ManifestGame) TrackIndexByName(name string) (int, bool) {
	for i, tr := range g.Tracks {
		if strings.EqualFold(tr.Name, name) || strings.EqualFold(filenameStem(tr.File()), name) {
			return i, true
		}
	}
	return 0, false
}

// ApplyOverrides copies curated manifest fields onto a loaded
// collection. The manifest wins over parsed tags: rips often carry no
// usable length while the manifest was checked by hand.
func (g ManifestGame) ApplyOverrides(col *GameCollection) {
	for i := range col.Tracks {
		mt, ok := g.trackFor(col.Tracks[i].Filename)
		if !ok {
			continue
		}
		if mt.Duration > 0 {
			col.Tracks[i].Meta.Duration = mt.Duration
			col.Tracks[i].Meta.FadeMs = mt.Fade
		}
		if mt.Name != "" {
			col.Tracks[i].Meta.Title = mt.Name
		}
		if mt.NameJP != "" {
			col.Tracks[i].Meta.TitleJP = mt.NameJP
		}
	}
}

func (g ManifestGame) trackFor(filename string) (ManifestTrack, bool) {
	for _, mt := range g.Tracks {
		if mt.File() == filename {
			return mt, true
		}
	}
	return ManifestTrack{}, false
}

// ManifestGameFor builds the manifest entry for a loaded collection.
// The caller fills in the file layout fields (zipFile or audioDir,
// cover and OG image paths) that depend on where the library lives.
func ManifestGameFor(id string, col *GameCollection) ManifestGame {
	g := ManifestGame{
		ID:         id,
		Title:      col.Meta.Game,
		TitleJP:    col.Meta.GameJP,
		System:     col.Meta.System,
		Author:     col.Meta.Author,
		TrackCount: len(col.Tracks),
	}
	if len(col.Tracks) > 0 {
		g.Format = col.Tracks[0].Format
	}
	for _, tr := range col.Tracks {
		g.Tracks = append(g.Tracks, ManifestTrack{
			Filename: tr.Filename,
			Name:     tr.Meta.Title,
			NameJP:   tr.Meta.TitleJP,
			Duration: tr.Meta.Duration,
			Fade:     tr.Meta.FadeMs,
		})
	}
	return g
}
