// media_loader.go - Async collection loading, newest request wins.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MediaLoader runs collection loads in the background and installs the
// result into the transport. Only the newest request can take effect:
// a load that finishes after a newer one started is dropped, callback
// and all. A failed load leaves whatever is currently installed alone.
type MediaLoader struct {
	transport *TransportController
	loadFn    func(string) (*GameCollection, error)

	state   LoadState
	path    string
	lastErr error

	reqGen uint64

	mu sync.Mutex
}

type LoadState int

const (
	LoadIdle LoadState = iota
	LoadPending
	LoadReady
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadIdle:
		return "idle"
	case LoadPending:
		return "loading"
	case LoadReady:
		return "ready"
	case LoadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func NewMediaLoader(transport *TransportController) *MediaLoader {
	return &MediaLoader{transport: transport, loadFn: loadMediaPath}
}

// Load resolves path by what it points at, a zip rip, a directory of
// loose tracks, or a bare track file, and loads it off the caller's
// goroutine. done may be nil; it is never invoked for a request that
// lost to a newer one.
func (m *MediaLoader) Load(path string, done func(*GameCollection, error)) {
	m.mu.Lock()
	m.reqGen++
	gen := m.reqGen
	m.state = LoadPending
	m.path = path
	m.lastErr = nil
	m.mu.Unlock()

	go m.runLoad(gen, path, done)
}

func (m *MediaLoader) runLoad(gen uint64, path string, done func(*GameCollection, error)) {
	col, err := m.loadFn(path)

	m.mu.Lock()
	if gen != m.reqGen {
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.state = LoadFailed
		m.lastErr = err
		m.mu.Unlock()
		if done != nil {
			done(nil, err)
		}
		return
	}
	// Installing under the loader lock keeps a slow older load from
	// overwriting a newer one that raced past its staleness check.
	m.transport.LoadCollection(col)
	m.state = LoadReady
	m.mu.Unlock()

	if done != nil {
		done(col, nil)
	}
}

// Status reports the most recent request and how it went.
func (m *MediaLoader) Status() (LoadState, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.path, m.lastErr
}

func loadMediaPath(path string) (*GameCollection, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return LoadGameDir(path)
	}
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return LoadGameArchive(path)
	}
	return LoadGameFile(path)
}
