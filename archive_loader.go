// archive_loader.go - Game archives: one zip per game, tracks in
// stored order.
//
// Loading is fail-soft at the entry level. A corrupt track or an
// unreadable image skips that entry and keeps going; only an archive
// with no playable tracks at all is an error. Every track keeps its
// raw bytes so the decode engine can boot it at play time.

package main

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type Track struct {
	Filename string // entry name inside the archive
	Format   string // decode engine format, see FormatForFilename
	Data     []byte
	Meta     MusicMetadata
}

// DisplayTitle resolves the listing title: tag, localized tag, then
// filename stem.
func (t Track) DisplayTitle() string {
	return t.Meta.DisplayTitle(t.Filename)
}

type GameCollection struct {
	Name      string
	Tracks    []Track
	CoverArt  []byte
	CoverName string

	// Meta is taken from the first track that parses; the tags inside
	// a game rip agree on everything above the track level.
	Meta MusicMetadata
}

// DisplayName prefers the game tag over the archive filename.
func (g *GameCollection) DisplayName() string {
	if g.Meta.Game != "" {
		return g.Meta.Game
	}
	return g.Name
}

var coverExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

func LoadGameArchive(zipPath string) (*GameCollection, error) {
	data, err := os.ReadFile(zipPath)
	if err != nil {
		return nil, err
	}
	return LoadGameArchiveData(filenameStem(zipPath), data)
}

// LoadGameArchiveData walks the zip in central directory order, which
// is the order the archive was built in. Track order on screen matches
// track order in the file.
func LoadGameArchiveData(name string, data []byte) (*GameCollection, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w: %v", name, ErrDecompression, err)
	}

	col := &GameCollection{Name: name}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		base := path.Base(f.Name)
		if strings.HasPrefix(base, ".") || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}

		if coverExtensions[strings.ToLower(path.Ext(base))] {
			if col.CoverArt == nil {
				if img, err := readZipEntry(f); err == nil {
					col.CoverArt = img
					col.CoverName = f.Name
				}
			}
			continue
		}

		format := FormatForFilename(base)
		if format == "" {
			continue
		}
		raw, err := readZipEntry(f)
		if err != nil {
			debugf("archive %s: unreadable entry %s: %v\n", name, f.Name, err)
			continue
		}
		meta, ok := parseTrackMetadata(format, raw)
		if !ok {
			debugf("archive %s: skipping unparseable %s\n", name, f.Name)
			continue
		}
		col.Tracks = append(col.Tracks, Track{
			Filename: f.Name,
			Format:   format,
			Data:     raw,
			Meta:     meta,
		})
	}

	if len(col.Tracks) == 0 {
		return nil, fmt.Errorf("archive %s: %w", name, ErrNoTracks)
	}
	col.Meta = col.Tracks[0].Meta
	return col, nil
}

// LoadGameDir builds a collection from loose files in a directory,
// ordered by filename. This backs manifests that point at an unpacked
// audio directory instead of a zip.
func LoadGameDir(dir string) (*GameCollection, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	col := &GameCollection{Name: filepath.Base(dir)}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		full := filepath.Join(dir, entry.Name())

		if coverExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			if col.CoverArt == nil {
				if img, err := os.ReadFile(full); err == nil {
					col.CoverArt = img
					col.CoverName = entry.Name()
				}
			}
			continue
		}

		format := FormatForFilename(entry.Name())
		if format == "" {
			continue
		}
		raw, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		meta, ok := parseTrackMetadata(format, raw)
		if !ok {
			continue
		}
		col.Tracks = append(col.Tracks, Track{
			Filename: entry.Name(),
			Format:   format,
			Data:     raw,
			Meta:     meta,
		})
	}

	if len(col.Tracks) == 0 {
		return nil, fmt.Errorf("directory %s: %w", dir, ErrNoTracks)
	}
	col.Meta = col.Tracks[0].Meta
	return col, nil
}

// LoadGameFile wraps a bare track file in a single-track collection so
// the transport can treat loose files and archives alike.
func LoadGameFile(path string) (*GameCollection, error) {
	base := filepath.Base(path)
	format := FormatForFilename(base)
	if format == "" {
		return nil, fmt.Errorf("%s: %w", base, ErrEngineUnavailable)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	meta, ok := parseTrackMetadata(format, raw)
	if !ok {
		return nil, fmt.Errorf("%s: %w", base, ErrParseFailure)
	}
	col := &GameCollection{
		Name: strings.TrimSuffix(base, filepath.Ext(base)),
		Tracks: []Track{{
			Filename: base,
			Format:   format,
			Data:     raw,
			Meta:     meta,
		}},
		Meta: meta,
	}
	return col, nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// parseTrackMetadata validates an entry by fully parsing it once at
// load time. Entries that fail here are the ones playback could never
// boot anyway.
func parseTrackMetadata(format string, data []byte) (MusicMetadata, bool) {
	switch format {
	case "spc":
		f, err := ParseSPCData(data)
		if err != nil {
			return MusicMetadata{}, false
		}
		return f.GetMetadata(), true
	case "vgm":
		f, err := ParseVGMData(data)
		if err != nil {
			return MusicMetadata{}, false
		}
		return f.GetMetadata(), true
	}
	return MusicMetadata{}, false
}
