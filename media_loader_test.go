// media_loader_test.go - Background loading and newest-wins delivery tests.

package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMediaPath_Dispatch(t *testing.T) {
	dir := t.TempDir()

	zipPath := filepath.Join(dir, "game.zip")
	if err := os.WriteFile(zipPath, buildZip(t, entry("01.spc", taggedSPC("Intro", "Quest"))), 0o644); err != nil {
		t.Fatal(err)
	}
	spcPath := filepath.Join(dir, "solo.spc")
	if err := os.WriteFile(spcPath, taggedSPC("Solo", "Quest"), 0o644); err != nil {
		t.Fatal(err)
	}
	looseDir := filepath.Join(dir, "loose")
	if err := os.Mkdir(looseDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(looseDir, "a.vgm"), validVGM(), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		path   string
		tracks int
	}{
		{name: "zip archive", path: zipPath, tracks: 1},
		{name: "bare track", path: spcPath, tracks: 1},
		{name: "directory", path: looseDir, tracks: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			col, err := loadMediaPath(tc.path)
			if err != nil {
				t.Fatal(err)
			}
			if len(col.Tracks) != tc.tracks {
				t.Fatalf("tracks = %d, want %d", len(col.Tracks), tc.tracks)
			}
		})
	}

	if _, err := loadMediaPath(filepath.Join(dir, "missing.zip")); err == nil {
		t.Fatalf("expected error for missing path")
	}
}

func TestLoadGameFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "07 Ending.spc")
	if err := os.WriteFile(path, taggedSPC("Ending", "Quest"), 0o644); err != nil {
		t.Fatal(err)
	}

	col, err := LoadGameFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if col.Name != "07 Ending" {
		t.Fatalf("Name = %q", col.Name)
	}
	if len(col.Tracks) != 1 || col.Tracks[0].Meta.Title != "Ending" {
		t.Fatalf("tracks = %+v", col.Tracks)
	}

	if _, err := LoadGameFile(filepath.Join(dir, "song.mod")); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("unknown extension: %v", err)
	}
	bad := filepath.Join(dir, "bad.spc")
	if err := os.WriteFile(bad, []byte("not an spc"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGameFile(bad); !errors.Is(err, ErrParseFailure) {
		t.Fatalf("corrupt file: %v", err)
	}
}

func TestMediaLoader_InstallsIntoTransport(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "quest.zip")
	data := buildZip(t,
		entry("01 Title.spc", taggedSPC("Title", "Quest")),
		entry("02 Field.spc", taggedSPC("Field", "Quest")),
	)
	if err := os.WriteFile(zipPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	ctrl := newTestTransport(t, 0)
	loader := NewMediaLoader(ctrl)

	doneCh := make(chan error, 1)
	loader.Load(zipPath, func(col *GameCollection, err error) {
		doneCh <- err
	})
	select {
	case err := <-doneCh:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("load did not complete")
	}

	cur, ok := ctrl.CurrentTrack()
	if !ok || cur.Meta.Title != "Title" {
		t.Fatalf("current track = %+v", cur)
	}
	if state, path, err := loader.Status(); state != LoadReady || path != zipPath || err != nil {
		t.Fatalf("status = %v %q %v", state, path, err)
	}
}

func TestMediaLoader_FailureKeepsCurrentCollection(t *testing.T) {
	ctrl := newTestTransport(t, 2)
	loader := NewMediaLoader(ctrl)

	doneCh := make(chan error, 1)
	loader.Load(filepath.Join(t.TempDir(), "missing.zip"), func(col *GameCollection, err error) {
		doneCh <- err
	})
	select {
	case err := <-doneCh:
		if err == nil {
			t.Fatal("expected load error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("load did not complete")
	}

	if _, ok := ctrl.CurrentTrack(); !ok {
		t.Fatal("failed load should not evict the installed collection")
	}
	if state, _, err := loader.Status(); state != LoadFailed || err == nil {
		t.Fatalf("status = %v %v", state, err)
	}
}

func TestMediaLoader_NewestRequestWins(t *testing.T) {
	ctrl := newTestTransport(t, 0)
	loader := NewMediaLoader(ctrl)

	slowEntered := make(chan struct{})
	slowRelease := make(chan struct{})
	loader.loadFn = func(path string) (*GameCollection, error) {
		if path == "slow" {
			close(slowEntered)
			<-slowRelease
			col := testCollection(1)
			col.Name = "slow"
			return col, nil
		}
		col := testCollection(2)
		col.Name = "fast"
		return col, nil
	}

	staleDone := make(chan struct{}, 1)
	loader.Load("slow", func(col *GameCollection, err error) {
		staleDone <- struct{}{}
	})
	<-slowEntered

	fastDone := make(chan struct{})
	loader.Load("fast", func(col *GameCollection, err error) {
		close(fastDone)
	})
	select {
	case <-fastDone:
	case <-time.After(5 * time.Second):
		t.Fatal("newer load did not complete")
	}

	close(slowRelease)
	select {
	case <-staleDone:
		t.Fatal("superseded load must not report completion")
	case <-time.After(100 * time.Millisecond):
	}

	if got := ctrl.Collection(); got == nil || got.Name != "fast" {
		t.Fatalf("installed collection = %+v", got)
	}
	if state, path, _ := loader.Status(); state != LoadReady || path != "fast" {
		t.Fatalf("status = %v %q", state, path)
	}
}
