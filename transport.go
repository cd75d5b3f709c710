// transport.go - Session and transport control over one game collection.
//
// The controller owns track selection: which collection is loaded,
// which track is current, and how the next one is picked. It keeps
// exactly one decode session alive through the playback engine; when
// track requests overlap, the newest request wins and the session the
// loser built is released before it ever reaches the device.

package main

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatAll
	RepeatOne
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "off"
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	}
	return fmt.Sprintf("repeat(%d)", int(m))
}

type TransportController struct {
	mutex  sync.Mutex
	engine *PlaybackEngine

	collection *GameCollection
	index      int
	repeat     RepeatMode
	shuffle    bool

	// reqGen invalidates in-flight track requests: a session built for
	// an older generation is released instead of played.
	reqGen uint64

	pickTrack func(n, exclude int) int
}

func NewTransportController(engine *PlaybackEngine) *TransportController {
	t := &TransportController{
		engine:    engine,
		pickTrack: shufflePick,
	}
	engine.SetTrackEndFunc(t.handleTrackEnd)
	return t
}

// shufflePick draws uniformly from the other n-1 tracks, so shuffle
// never repeats the track that just played.
func shufflePick(n, exclude int) int {
	if n <= 1 {
		return 0
	}
	pick := rand.Intn(n - 1)
	if pick >= exclude {
		pick++
	}
	return pick
}

// LoadCollection swaps in a new collection and resets the transport:
// playback stops, the current index returns to the first track and any
// in-flight track request is abandoned.
func (t *TransportController) LoadCollection(col *GameCollection) {
	t.mutex.Lock()
	t.collection = col
	t.index = 0
	t.reqGen++
	t.mutex.Unlock()

	t.engine.Stop()
}

func (t *TransportController) Collection() *GameCollection {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.collection
}

// PlayTrack boots the indexed track and starts playing it. The old
// session is released by the engine before the new one produces audio.
// When two calls race, the later one wins; the earlier session is
// discarded unplayed.
func (t *TransportController) PlayTrack(index int) error {
	t.mutex.Lock()
	col := t.collection
	if col == nil || index < 0 || index >= len(col.Tracks) {
		t.mutex.Unlock()
		return fmt.Errorf("track %d: %w", index, ErrBadTrackIndex)
	}
	t.reqGen++
	gen := t.reqGen
	track := col.Tracks[index]
	t.mutex.Unlock()

	t.engine.MarkLoading()
	eng, err := EngineFor(track.Format)
	if err != nil {
		t.engine.Stop()
		return err
	}
	session, err := eng.Initialize(track.Data)
	if err != nil {
		t.engine.Stop()
		return fmt.Errorf("track %q: %w", track.Filename, err)
	}

	t.mutex.Lock()
	if gen != t.reqGen {
		t.mutex.Unlock()
		session.Release()
		return nil
	}
	t.index = index
	seconds, fadeMs := track.Meta.DurationOrDefault()
	err = t.engine.PlayTrack(session,
		time.Duration(seconds*float64(time.Second)),
		time.Duration(fadeMs)*time.Millisecond)
	t.mutex.Unlock()
	return err
}

// Next advances manually: random under shuffle, wrapping order
// otherwise.
func (t *TransportController) Next() error {
	index, ok := t.pickNext(+1)
	if !ok {
		return fmt.Errorf("next: %w", ErrNoTracks)
	}
	return t.PlayTrack(index)
}

func (t *TransportController) Previous() error {
	index, ok := t.pickNext(-1)
	if !ok {
		return fmt.Errorf("previous: %w", ErrNoTracks)
	}
	return t.PlayTrack(index)
}

func (t *TransportController) pickNext(dir int) (int, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.collection == nil || len(t.collection.Tracks) == 0 {
		return 0, false
	}
	n := len(t.collection.Tracks)
	if t.shuffle {
		return t.pickTrack(n, t.index), true
	}
	return (t.index + dir + n) % n, true
}

// Restart plays the current track from the top. Chip streams have no
// random access, so this is the whole of seeking.
func (t *TransportController) Restart() error {
	t.mutex.Lock()
	index := t.index
	t.mutex.Unlock()
	return t.PlayTrack(index)
}

// TogglePause pauses a playing track and resumes a paused one.
// Anything else is left alone.
func (t *TransportController) TogglePause() {
	switch t.engine.State() {
	case StatePlaying:
		t.engine.Pause()
	case StatePaused:
		t.engine.Resume()
	}
}

func (t *TransportController) Stop() {
	t.mutex.Lock()
	t.reqGen++
	t.mutex.Unlock()
	t.engine.Stop()
}

// CycleRepeat steps off -> all -> one -> off and returns the new mode.
func (t *TransportController) CycleRepeat() RepeatMode {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	switch t.repeat {
	case RepeatOff:
		t.repeat = RepeatAll
	case RepeatAll:
		t.repeat = RepeatOne
	default:
		t.repeat = RepeatOff
	}
	return t.repeat
}

func (t *TransportController) Repeat() RepeatMode {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.repeat
}

func (t *TransportController) SetRepeat(mode RepeatMode) {
	t.mutex.Lock()
	t.repeat = mode
	t.mutex.Unlock()
}

func (t *TransportController) SetShuffle(on bool) {
	t.mutex.Lock()
	t.shuffle = on
	t.mutex.Unlock()
}

func (t *TransportController) Shuffle() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.shuffle
}

func (t *TransportController) CurrentIndex() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.index
}

func (t *TransportController) CurrentTrack() (Track, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.collection == nil || t.index >= len(t.collection.Tracks) {
		return Track{}, false
	}
	return t.collection.Tracks[t.index], true
}

func (t *TransportController) State() PlaybackState { return t.engine.State() }

func (t *TransportController) Elapsed() time.Duration { return t.engine.Elapsed() }

func (t *TransportController) Spectrum() FrequencySnapshot { return t.engine.Spectrum() }

func (t *TransportController) SetVolume(v float64) { t.engine.SetVolume(v) }

func (t *TransportController) Volume() float64 { return t.engine.Volume() }

// handleTrackEnd runs when the advance timer fires. Repeat one replays
// the same track, repeat all wraps forever, repeat off stops after the
// last track in play order. Shuffle has no last track, so with repeat
// off it keeps drawing.
func (t *TransportController) handleTrackEnd() {
	t.mutex.Lock()
	col := t.collection
	if col == nil || len(col.Tracks) == 0 {
		t.mutex.Unlock()
		return
	}
	n := len(col.Tracks)
	index := t.index
	repeat := t.repeat
	shuffle := t.shuffle
	t.mutex.Unlock()

	var next int
	switch {
	case repeat == RepeatOne:
		next = index
	case shuffle:
		t.mutex.Lock()
		next = t.pickTrack(n, index)
		t.mutex.Unlock()
	case index+1 < n:
		next = index + 1
	case repeat == RepeatAll:
		next = 0
	default:
		t.engine.Stop()
		return
	}
	_ = t.PlayTrack(next)
}
