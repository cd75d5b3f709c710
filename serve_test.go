// serve_test.go - Library server helper tests.

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func buildTestLibrary(t *testing.T) string {
	t.Helper()
	lib := t.TempDir()

	zipData := buildZip(t,
		entry("01 Title.spc", taggedSPC("Title", "Quest")),
		entry("02 Field.spc", taggedSPC("Field", "Quest")),
	)
	if err := os.WriteFile(filepath.Join(lib, "quest.zip"), zipData, 0o644); err != nil {
		t.Fatal(err)
	}

	m := &Manifest{
		GeneratedAt: "2026-08-20T17:04:05Z",
		Games: []ManifestGame{{
			ID:         "quest",
			Format:     "spc",
			ZipFile:    "quest.zip",
			Title:      "Quest",
			TrackCount: 2,
			Tracks: []ManifestTrack{
				{Filename: "01 Title.spc", Name: "Title Screen", Duration: 205, Fade: 8000},
				{Filename: "02 Field.spc", Name: "Field Theme", Duration: 95, Fade: 5000},
			},
		}},
	}
	if err := WriteManifest(filepath.Join(lib, "manifest.json"), m); err != nil {
		t.Fatal(err)
	}
	return lib
}

func TestNewLibraryServer(t *testing.T) {
	lib := buildTestLibrary(t)
	s, err := NewLibraryServer(lib)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.manifest.Games) != 1 || s.manifest.Games[0].ID != "quest" {
		t.Fatalf("manifest = %+v", s.manifest)
	}

	if _, err := NewLibraryServer(t.TempDir()); err == nil {
		t.Fatal("expected error for a library without a manifest")
	}
}

func TestLibraryServer_CollectionCacheAndOverrides(t *testing.T) {
	s, err := NewLibraryServer(buildTestLibrary(t))
	if err != nil {
		t.Fatal(err)
	}
	game, ok := s.manifest.Game("quest")
	if !ok {
		t.Fatal("game quest missing")
	}

	col, err := s.collection(game)
	if err != nil {
		t.Fatal(err)
	}
	if len(col.Tracks) != 2 {
		t.Fatalf("tracks = %d", len(col.Tracks))
	}
	if got := col.Tracks[0].Meta; got.Title != "Title Screen" || got.Duration != 205 {
		t.Fatalf("manifest override not applied: %+v", got)
	}

	again, err := s.collection(game)
	if err != nil {
		t.Fatal(err)
	}
	if again != col {
		t.Fatal("second load should come from the cache")
	}
}

func TestLibraryServer_CollectionWithoutSource(t *testing.T) {
	s := &LibraryServer{lib: t.TempDir(), cache: map[string]*GameCollection{}}
	if _, err := s.collection(ManifestGame{ID: "ghost"}); err == nil {
		t.Fatal("expected error for a game with no zipFile or audioDir")
	}
}

func TestResolveUnderDir(t *testing.T) {
	base := t.TempDir()

	if _, ok := resolveUnderDir(base, "safe.png"); !ok {
		t.Fatal("expected safe relative path to be accepted")
	}
	if _, ok := resolveUnderDir(base, "sub/safe.png"); !ok {
		t.Fatal("expected nested relative path to be accepted")
	}
	if _, ok := resolveUnderDir(base, "../escape.png"); ok {
		t.Fatal("expected traversal path to be rejected")
	}
	if _, ok := resolveUnderDir(base, "/abs/path.png"); ok {
		t.Fatal("expected absolute path to be rejected")
	}
	if _, ok := resolveUnderDir(base, ""); ok {
		t.Fatal("expected empty name to be rejected")
	}
}

func TestImageContentType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "cover.png", want: "image/png"},
		{name: "cover.JPG", want: "image/jpeg"},
		{name: "cover.jpeg", want: "image/jpeg"},
		{name: "cover.gif", want: "image/gif"},
		{name: "cover.webp", want: "image/webp"},
		{name: "cover.bin", want: "application/octet-stream"},
	}
	for _, tc := range tests {
		if got := imageContentType(tc.name); got != tc.want {
			t.Fatalf("imageContentType(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}
