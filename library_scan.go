// library_scan.go - Library scanner: walk rips, write the manifest, derive artwork.

package main

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

const (
	OG_IMAGE_WIDTH  = 1200
	OG_IMAGE_HEIGHT = 630
	OG_JPEG_QUALITY = 85
)

// ScanLibrary walks a directory of game rips, writes manifest.json,
// copies each game's cover into covers/ and derives og/<id>.jpg social
// preview images. Game IDs are the zip or directory names, so repeated
// scans of the same library produce the same IDs.
func ScanLibrary(lib string) (*Manifest, error) {
	log := slog.With("job", scanJobID())

	entries, err := os.ReadDir(lib)
	if err != nil {
		return nil, err
	}
	coversDir := filepath.Join(lib, "covers")
	ogDir := filepath.Join(lib, "og")
	if err := os.MkdirAll(coversDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(ogDir, 0o755); err != nil {
		return nil, err
	}

	var candidates []os.DirEntry
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || name == "covers" || name == "og" {
			continue
		}
		if !entry.IsDir() && !strings.EqualFold(filepath.Ext(name), ".zip") {
			continue
		}
		candidates = append(candidates, entry)
	}

	// Games parse independently, so fan out. Results land in slots
	// indexed by directory order, keeping the manifest deterministic.
	results := make([]*ManifestGame, len(candidates))
	var grp errgroup.Group
	grp.SetLimit(runtime.NumCPU())
	for i, entry := range candidates {
		grp.Go(func() error {
			if game, ok := scanLibraryEntry(lib, coversDir, ogDir, entry, log); ok {
				results[i] = &game
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	manifest := &Manifest{GeneratedAt: time.Now().UTC().Format(time.RFC3339)}
	for _, game := range results {
		if game != nil {
			manifest.Games = append(manifest.Games, *game)
		}
	}

	if err := WriteManifest(filepath.Join(lib, "manifest.json"), manifest); err != nil {
		return nil, err
	}
	log.Info("scan complete", "games", len(manifest.Games))
	return manifest, nil
}

// scanLibraryEntry loads one zip or loose-track directory and stages
// its artwork. A bad rip is logged and skipped, never fatal.
func scanLibraryEntry(lib, coversDir, ogDir string, entry os.DirEntry, log *slog.Logger) (ManifestGame, bool) {
	name := entry.Name()

	var (
		col  *GameCollection
		game ManifestGame
		err  error
	)
	if entry.IsDir() {
		col, err = LoadGameDir(filepath.Join(lib, name))
		if err != nil {
			log.Warn("skipping directory", "dir", name, "error", err)
			return ManifestGame{}, false
		}
		game = ManifestGameFor(name, col)
		game.AudioDir = name
	} else {
		col, err = LoadGameArchive(filepath.Join(lib, name))
		if err != nil {
			log.Warn("skipping archive", "file", name, "error", err)
			return ManifestGame{}, false
		}
		game = ManifestGameFor(filenameStem(name), col)
		game.ZipFile = name
	}

	if col.CoverArt != nil {
		coverName := game.ID + strings.ToLower(filepath.Ext(col.CoverName))
		if err := os.WriteFile(filepath.Join(coversDir, coverName), col.CoverArt, 0o644); err != nil {
			log.Warn("writing cover", "game", game.ID, "error", err)
		} else {
			game.CoverImage = "covers/" + coverName
			ogName := game.ID + ".jpg"
			if err := writeOGImage(filepath.Join(ogDir, ogName), col.CoverArt); err != nil {
				log.Warn("deriving og image", "game", game.ID, "error", err)
			} else {
				game.OGImage = "og/" + ogName
			}
		}
	}

	log.Info("scanned", "game", game.ID, "tracks", game.TrackCount)
	return game, true
}

// scanJobID tags every log line from one scan run. V7 IDs carry a
// timestamp, so runs sort chronologically in aggregated logs.
func scanJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("scan_%d", time.Now().UnixNano())
	}
	return "scan_" + id.String()
}

// writeOGImage scales a cover to the 1200x630 preview size, centered
// on a black background so the source aspect ratio is kept.
func writeOGImage(path string, cover []byte) error {
	src, _, err := image.Decode(bytes.NewReader(cover))
	if err != nil {
		return err
	}

	dst := image.NewRGBA(image.Rect(0, 0, OG_IMAGE_WIDTH, OG_IMAGE_HEIGHT))
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw == 0 || sh == 0 {
		return fmt.Errorf("cover has no pixels")
	}
	w, h := OG_IMAGE_WIDTH, sh*OG_IMAGE_WIDTH/sw
	if h > OG_IMAGE_HEIGHT {
		w, h = sw*OG_IMAGE_HEIGHT/sh, OG_IMAGE_HEIGHT
	}
	x := (OG_IMAGE_WIDTH - w) / 2
	y := (OG_IMAGE_HEIGHT - h) / 2
	xdraw.ApproxBiLinear.Scale(dst, image.Rect(x, y, x+w, y+h), src, sb, xdraw.Over, nil)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, dst, &jpeg.Options{Quality: OG_JPEG_QUALITY})
}
