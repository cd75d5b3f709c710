// serve.go - HTTP library server.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.oneofone.dev/gserv"
)

// LibraryServer serves a scanned library over HTTP: the manifest,
// per-game metadata, raw track bytes and artwork. Playback stays on
// the client; nothing here touches the audio path.
type LibraryServer struct {
	lib      string
	manifest *Manifest

	mu    sync.Mutex
	cache map[string]*GameCollection
}

func NewLibraryServer(lib string) (*LibraryServer, error) {
	manifest, err := ReadManifest(filepath.Join(lib, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("library %s: %w", lib, err)
	}
	return &LibraryServer{
		lib:      lib,
		manifest: manifest,
		cache:    make(map[string]*GameCollection),
	}, nil
}

// Register mounts the API onto srv.
func (s *LibraryServer) Register(srv *gserv.Server) {
	srv.GET("/ping", s.handlePing)
	srv.GET("/api/manifest", s.handleManifest)
	srv.GET("/api/games/{id}", s.handleGame)
	srv.GET("/api/games/{id}/tracks/{n}", s.handleTrackData)
	srv.GET("/covers/{file}", s.handleCover)
	srv.GET("/og/{file}", s.handleOGImage)
}

func (s *LibraryServer) handlePing(ctx *gserv.Context) gserv.Response {
	return gserv.NewJSONResponse(map[string]string{"message": "pong"})
}

func (s *LibraryServer) handleManifest(ctx *gserv.Context) gserv.Response {
	return gserv.NewJSONResponse(s.manifest)
}

func (s *LibraryServer) handleGame(ctx *gserv.Context) gserv.Response {
	game, ok := s.manifest.Game(ctx.Param("id"))
	if !ok {
		return gserv.NewJSONErrorResponse(http.StatusNotFound, "game not found")
	}
	return gserv.NewJSONResponse(game)
}

func (s *LibraryServer) handleTrackData(ctx *gserv.Context) gserv.Response {
	game, ok := s.manifest.Game(ctx.Param("id"))
	if !ok {
		return gserv.NewJSONErrorResponse(http.StatusNotFound, "game not found")
	}
	n, err := strconv.Atoi(ctx.Param("n"))
	if err != nil || n < 0 {
		return gserv.NewJSONErrorResponse(http.StatusBadRequest, "bad track index")
	}
	col, err := s.collection(game)
	if err != nil {
		slog.Error("load collection", "game", game.ID, "error", err)
		return gserv.NewJSONErrorResponse(http.StatusInternalServerError, "collection unavailable")
	}
	if n >= len(col.Tracks) {
		return gserv.NewJSONErrorResponse(http.StatusNotFound, "track not found")
	}

	track := col.Tracks[n]
	ctx.Header().Set("Content-Type", "application/octet-stream")
	ctx.Header().Set("Content-Length", strconv.Itoa(len(track.Data)))
	ctx.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", track.Filename))
	_, _ = ctx.Write(track.Data)
	return nil
}

func (s *LibraryServer) handleCover(ctx *gserv.Context) gserv.Response {
	return s.serveLibraryFile(ctx, "covers", ctx.Param("file"))
}

func (s *LibraryServer) handleOGImage(ctx *gserv.Context) gserv.Response {
	return s.serveLibraryFile(ctx, "og", ctx.Param("file"))
}

func (s *LibraryServer) serveLibraryFile(ctx *gserv.Context, sub, name string) gserv.Response {
	path, ok := resolveUnderDir(filepath.Join(s.lib, sub), name)
	if !ok {
		return gserv.NewJSONErrorResponse(http.StatusBadRequest, "bad path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return gserv.NewJSONErrorResponse(http.StatusNotFound, "not found")
	}
	ctx.Header().Set("Content-Type", imageContentType(name))
	ctx.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = ctx.Write(data)
	return nil
}

// collection loads and caches a game's tracks. Rips do not change
// while serving, so a cached load never goes stale.
func (s *LibraryServer) collection(game ManifestGame) (*GameCollection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.cache[game.ID]; ok {
		return col, nil
	}

	var col *GameCollection
	var err error
	switch {
	case game.ZipFile != "":
		path, ok := resolveUnderDir(s.lib, game.ZipFile)
		if !ok {
			return nil, fmt.Errorf("game %s: source path escapes library", game.ID)
		}
		col, err = LoadGameArchive(path)
	case game.AudioDir != "":
		path, ok := resolveUnderDir(s.lib, game.AudioDir)
		if !ok {
			return nil, fmt.Errorf("game %s: source path escapes library", game.ID)
		}
		col, err = LoadGameDir(path)
	default:
		return nil, fmt.Errorf("game %s: manifest names no source", game.ID)
	}
	if err != nil {
		return nil, err
	}

	game.ApplyOverrides(col)
	s.cache[game.ID] = col
	return col, nil
}

// resolveUnderDir joins name under base and rejects anything that
// would escape it.
func resolveUnderDir(base, name string) (string, bool) {
	if name == "" || filepath.IsAbs(name) || strings.Contains(name, "..") {
		return "", false
	}
	full := filepath.Join(base, name)
	rel, err := filepath.Rel(base, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return full, true
}

func imageContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// RunLibraryServer blocks serving lib on listen until the process is
// signalled to stop or the server fails.
func RunLibraryServer(lib, listen string) error {
	s, err := NewLibraryServer(lib)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	srv := gserv.New(gserv.WriteTimeout(30*time.Second), gserv.ReadTimeout(30*time.Second))
	s.Register(srv)

	slog.Info("serving library", "dir", lib, "listen", listen, "games", len(s.manifest.Games))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx, listen) }()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		srv.Close()
		return nil
	case err := <-errCh:
		return err
	}
}
