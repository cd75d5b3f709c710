// manifest_test.go - Manifest schema, lookup and override tests.

package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestManifest_RoundTrip(t *testing.T) {
	m := &Manifest{
		GeneratedAt: "2026-08-20T17:04:05Z",
		Games: []ManifestGame{{
			ID:         "dkc2",
			Format:     "spc",
			ZipFile:    "dkc2.zip",
			Title:      "Donkey Kong Country 2",
			System:     "Super Nintendo",
			CoverImage: "covers/dkc2.png",
			OGImage:    "og/dkc2.jpg",
			TrackCount: 1,
			Tracks: []ManifestTrack{{
				Filename: "stickerbrush.spc",
				Name:     "Stickerbrush Symphony",
				Duration: 205,
				Fade:     8000,
			}},
		}},
	}

	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := WriteManifest(path, m); err != nil {
		t.Fatal(err)
	}

	got, err := ReadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.GeneratedAt != m.GeneratedAt {
		t.Fatalf("generatedAt = %q", got.GeneratedAt)
	}
	g, ok := got.Game("dkc2")
	if !ok {
		t.Fatal("game dkc2 missing after round trip")
	}
	if g.Title != "Donkey Kong Country 2" || g.TrackCount != 1 {
		t.Fatalf("game = %+v", g)
	}
	if g.Tracks[0].Duration != 205 || g.Tracks[0].Fade != 8000 {
		t.Fatalf("track = %+v", g.Tracks[0])
	}
}

func TestParseManifest_AlternateKeysAndUnknownFields(t *testing.T) {
	raw := []byte(`{
		"generatedAt": "2026-01-01T00:00:00Z",
		"schemaVersion": 3,
		"games": [{
			"id": "ys3",
			"audioDir": "ys3",
			"futureField": {"nested": true},
			"tracks": [{"audioFile": "01 Prelude.vgm", "bpm": 140}]
		}]
	}`)

	m, err := ParseManifest(raw)
	if err != nil {
		t.Fatal(err)
	}
	g, ok := m.Game("ys3")
	if !ok {
		t.Fatal("game ys3 missing")
	}
	if g.AudioDir != "ys3" || g.ZipFile != "" {
		t.Fatalf("source = %q / %q", g.ZipFile, g.AudioDir)
	}
	if got := g.Tracks[0].File(); got != "01 Prelude.vgm" {
		t.Fatalf("File() = %q", got)
	}
}

func TestParseManifest_Garbage(t *testing.T) {
	if _, err := ParseManifest([]byte("{not json")); !errors.Is(err, ErrParseFailure) {
		t.Fatalf("err = %v", err)
	}
}

func TestManifestTrack_File(t *testing.T) {
	if got := (ManifestTrack{Filename: "a.spc", AudioFile: "b.spc"}).File(); got != "a.spc" {
		t.Fatalf("File() = %q, want filename to win", got)
	}
	if got := (ManifestTrack{AudioFile: "b.spc"}).File(); got != "b.spc" {
		t.Fatalf("File() = %q", got)
	}
}

func TestManifestGame_DisplayTitle(t *testing.T) {
	tests := []struct {
		name string
		game ManifestGame
		want string
	}{
		{name: "english", game: ManifestGame{ID: "x", Title: "Ys III", TitleJP: "イースIII"}, want: "Ys III"},
		{name: "localized", game: ManifestGame{ID: "x", TitleJP: "イースIII"}, want: "イースIII"},
		{name: "id fallback", game: ManifestGame{ID: "ys3"}, want: "ys3"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.game.DisplayTitle(); got != tc.want {
				t.Fatalf("DisplayTitle() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestManifestGame_TrackIndexByName(t *testing.T) {
	g := ManifestGame{Tracks: []ManifestTrack{
		{Filename: "01 Title.spc", Name: "Title Screen"},
		{Filename: "02 Boss.spc"},
	}}

	if idx, ok := g.TrackIndexByName("title screen"); !ok || idx != 0 {
		t.Fatalf("name match = %d %v", idx, ok)
	}
	if idx, ok := g.TrackIndexByName("02 Boss"); !ok || idx != 1 {
		t.Fatalf("stem match = %d %v", idx, ok)
	}
	if idx, ok := g.TrackIndexByName("no such track"); ok || idx != 0 {
		t.Fatalf("miss = %d %v", idx, ok)
	}
}

func TestManifestGame_ApplyOverrides(t *testing.T) {
	col, err := LoadGameArchiveData("quest", buildZip(t,
		entry("01 Title.spc", taggedSPC("Title", "Quest")),
		entry("02 Field.spc", taggedSPC("Field", "Quest")),
	))
	if err != nil {
		t.Fatal(err)
	}

	g := ManifestGame{Tracks: []ManifestTrack{
		{Filename: "01 Title.spc", Name: "Title Screen", Duration: 205, Fade: 8000},
		{Filename: "02 Field.spc"},
	}}
	g.ApplyOverrides(col)

	if got := col.Tracks[0].Meta; got.Title != "Title Screen" || got.Duration != 205 || got.FadeMs != 8000 {
		t.Fatalf("overridden meta = %+v", got)
	}
	// No curated data for track 2: the parsed tag stays.
	if got := col.Tracks[1].Meta; got.Title != "Field" || got.Duration != 0 {
		t.Fatalf("untouched meta = %+v", got)
	}
}

func TestManifestGameFor(t *testing.T) {
	col, err := LoadGameArchiveData("quest", buildZip(t,
		entry("01 Title.spc", taggedSPC("Title", "Test Quest")),
		entry("02 Field.spc", taggedSPC("Field", "Test Quest")),
	))
	if err != nil {
		t.Fatal(err)
	}

	g := ManifestGameFor("quest", col)
	if g.ID != "quest" || g.Format != "spc" || g.TrackCount != 2 {
		t.Fatalf("game = %+v", g)
	}
	if g.Title != "Test Quest" {
		t.Fatalf("Title = %q", g.Title)
	}
	if g.Tracks[0].Filename != "01 Title.spc" || g.Tracks[0].Name != "Title" {
		t.Fatalf("track = %+v", g.Tracks[0])
	}
}

func TestWriteManifest_EndsWithNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := WriteManifest(path, &Manifest{GeneratedAt: "now"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		t.Fatalf("manifest should end with a newline, got %q", data)
	}
}
