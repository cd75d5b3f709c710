// playback_engine_test.go - State machine, resampling, fade and timer tests.

package main

import (
	"testing"
	"time"
)

// fakeOutput stands in for the audio device; tests drive the pull path
// by hand.
type fakeOutput struct {
	renderer SampleRenderer
	started  bool
	rate     int
}

func (f *fakeOutput) SetRenderer(r SampleRenderer) { f.renderer = r }
func (f *fakeOutput) Start() error                 { f.started = true; return nil }
func (f *fakeOutput) Stop() error                  { f.started = false; return nil }
func (f *fakeOutput) Close() error                 { f.started = false; return nil }
func (f *fakeOutput) IsStarted() bool              { return f.started }
func (f *fakeOutput) SampleRate() int              { return f.rate }

func (f *fakeOutput) pull(frames int) []float32 {
	buf := make([]float32, frames*2)
	f.renderer.RenderAudio(buf)
	return buf
}

// dcSource emits a constant level, optionally draining after limit
// frames the way a one-shot stream does.
type dcSource struct {
	level int16
	limit int
	sent  int
}

func (s *dcSource) RenderFrames(dst []int16, frames int) int {
	if s.limit > 0 {
		if remain := s.limit - s.sent; frames > remain {
			frames = remain
		}
	}
	if frames > len(dst)/2 {
		frames = len(dst) / 2
	}
	for i := 0; i < frames; i++ {
		dst[i*2] = s.level
		dst[i*2+1] = s.level
	}
	s.sent += frames
	return frames
}

func (s *dcSource) Finished() bool {
	return s.limit > 0 && s.sent >= s.limit
}

func newTestSession(src frameSource, rate int) *DecodeSession {
	return &DecodeSession{source: src, engine: "test", rate: rate}
}

func newTestEngine(rate int) (*PlaybackEngine, *fakeOutput) {
	out := &fakeOutput{rate: rate}
	return NewPlaybackEngine(out), out
}

func peak(buf []float32) float32 {
	var m float32
	for _, v := range buf {
		if v > m {
			m = v
		}
		if -v > m {
			m = -v
		}
	}
	return m
}

func TestPlayback_StateTransitions(t *testing.T) {
	p, out := newTestEngine(SAMPLE_RATE)
	if p.State() != StateIdle {
		t.Fatalf("fresh engine state = %v", p.State())
	}

	p.MarkLoading()
	if p.State() != StateLoading {
		t.Fatalf("state = %v, want loading", p.State())
	}

	session := newTestSession(&dcSource{level: 8192}, SAMPLE_RATE)
	if err := p.PlayTrack(session, time.Second, 0); err != nil {
		t.Fatal(err)
	}
	if p.State() != StatePlaying || !out.IsStarted() {
		t.Fatalf("after play: state=%v started=%v", p.State(), out.IsStarted())
	}

	p.Pause()
	if p.State() != StatePaused {
		t.Fatalf("state = %v, want paused", p.State())
	}
	p.Resume()
	if p.State() != StatePlaying {
		t.Fatalf("state = %v, want playing", p.State())
	}

	p.Stop()
	if p.State() != StateIdle || out.IsStarted() {
		t.Fatalf("after stop: state=%v started=%v", p.State(), out.IsStarted())
	}
	if !session.Finished() {
		t.Error("stop must release the session")
	}
}

func TestPlayback_StopAndPauseIdempotent(t *testing.T) {
	p, out := newTestEngine(SAMPLE_RATE)

	p.Pause() // nothing playing
	if p.State() != StateIdle {
		t.Fatalf("pause when idle moved state to %v", p.State())
	}
	p.Stop()
	p.Stop()
	if p.State() != StateIdle || out.IsStarted() {
		t.Fatalf("double stop: state=%v started=%v", p.State(), out.IsStarted())
	}

	if err := p.PlayTrack(newTestSession(&dcSource{level: 100}, SAMPLE_RATE), time.Minute, 0); err != nil {
		t.Fatal(err)
	}
	p.Stop()
	p.Stop()
	if p.State() != StateIdle {
		t.Fatalf("state after double stop = %v", p.State())
	}
	p.Resume() // resume without a pause
	if p.State() != StateIdle {
		t.Fatalf("resume when idle moved state to %v", p.State())
	}
}

func TestPlayback_SilentUnlessPlaying(t *testing.T) {
	p, out := newTestEngine(SAMPLE_RATE)
	if got := peak(out.pull(256)); got != 0 {
		t.Fatalf("idle output peak = %v", got)
	}

	if err := p.PlayTrack(newTestSession(&dcSource{level: 16384}, SAMPLE_RATE), time.Minute, 0); err != nil {
		t.Fatal(err)
	}
	if got := peak(out.pull(256)); got == 0 {
		t.Fatal("playing engine produced silence")
	}

	p.Pause()
	if got := peak(out.pull(256)); got != 0 {
		t.Fatalf("paused output peak = %v", got)
	}
}

func TestPlayback_VolumeScalesMultiplicatively(t *testing.T) {
	p, out := newTestEngine(SAMPLE_RATE)
	err := p.PlayTrack(newTestSession(&dcSource{level: 16384}, SAMPLE_RATE), time.Minute, 0)
	if err != nil {
		t.Fatal(err)
	}

	out.pull(64) // let the resampler settle
	full := peak(out.pull(256))
	if full < 0.45 || full > 0.55 {
		t.Fatalf("full volume peak = %v, want about 0.5", full)
	}

	p.SetVolume(0.5)
	half := peak(out.pull(256))
	if half < 0.2 || half > 0.3 {
		t.Fatalf("half volume peak = %v, want about 0.25", half)
	}

	p.SetVolume(2.0)
	if p.Volume() != 1.0 {
		t.Errorf("volume above range clamped to %v", p.Volume())
	}
	p.SetVolume(-1)
	if p.Volume() != 0 {
		t.Errorf("volume below range clamped to %v", p.Volume())
	}
}

func TestPlayback_ResamplesNativeRate(t *testing.T) {
	// 1000 source frames at 32kHz should stretch to about 1378 output
	// frames at 44.1kHz before the stream drains to silence.
	p, out := newTestEngine(SAMPLE_RATE)
	src := &dcSource{level: 16384, limit: 1000}
	if err := p.PlayTrack(newTestSession(src, SPC_SAMPLE_RATE), time.Minute, 0); err != nil {
		t.Fatal(err)
	}

	nonzero := 0
	for i := 0; i < 30; i++ {
		buf := out.pull(100)
		for j := 0; j < 100; j++ {
			if buf[j*2] != 0 {
				nonzero++
			}
		}
	}
	if nonzero < 1370 || nonzero > 1390 {
		t.Fatalf("32kHz stream stretched to %d device frames, want about 1378", nonzero)
	}
}

func TestPlayback_FadeStepsToSilence(t *testing.T) {
	p, out := newTestEngine(SAMPLE_RATE)
	session := newTestSession(&dcSource{level: 16384}, SAMPLE_RATE)
	if err := p.PlayTrack(session, 100*time.Millisecond, 100*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	chunk := SAMPLE_RATE / 100 // 10ms of frames per pull
	var peaks []float32
	for i := 0; i < 25; i++ {
		peaks = append(peaks, peak(out.pull(chunk)))
	}

	if peaks[5] < 0.45 {
		t.Fatalf("pre-fade peak = %v, want full level", peaks[5])
	}
	// Half way into the fade the gain should sit near one half.
	if peaks[15] < 0.15 || peaks[15] > 0.35 {
		t.Fatalf("mid-fade peak = %v, want about 0.25", peaks[15])
	}
	for i := 21; i < 25; i++ {
		if peaks[i] != 0 {
			t.Fatalf("chunk %d after fade end still audible: %v", i, peaks[i])
		}
	}
}

func TestPlayback_VolumeCompoundsWithFade(t *testing.T) {
	p, out := newTestEngine(SAMPLE_RATE)
	session := newTestSession(&dcSource{level: 16384}, SAMPLE_RATE)
	if err := p.PlayTrack(session, 100*time.Millisecond, 100*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	p.SetVolume(0.5)

	chunk := SAMPLE_RATE / 100
	var peaks []float32
	for i := 0; i < 16; i++ {
		peaks = append(peaks, peak(out.pull(chunk)))
	}

	// Half volume over the full-level source lands near 0.25; half way
	// into the fade the two gains multiply to about 0.125.
	if peaks[5] < 0.2 || peaks[5] > 0.3 {
		t.Fatalf("pre-fade peak = %v, want about 0.25", peaks[5])
	}
	if peaks[15] < 0.08 || peaks[15] > 0.17 {
		t.Fatalf("mid-fade peak = %v, want about 0.125", peaks[15])
	}
}

func TestPlayback_AutoAdvance(t *testing.T) {
	p, _ := newTestEngine(SAMPLE_RATE)
	fired := make(chan struct{}, 4)
	p.SetTrackEndFunc(func() { fired <- struct{}{} })

	session := newTestSession(&dcSource{level: 8192}, SAMPLE_RATE)
	if err := p.PlayTrack(session, 30*time.Millisecond, 0); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("advance timer never fired")
	}
	if p.State() != StateEnded {
		t.Fatalf("state after advance = %v", p.State())
	}
	if !session.Finished() {
		t.Error("advance must release the session")
	}
	if got := p.Elapsed(); got != 30*time.Millisecond {
		t.Errorf("elapsed after end = %v, want the track length", got)
	}
	if (p.Spectrum() != FrequencySnapshot{}) {
		t.Error("spectrum must read zero after the track ends")
	}

	select {
	case <-fired:
		t.Fatal("advance fired twice")
	case <-time.After(350 * time.Millisecond):
	}
}

func TestPlayback_PauseCancelsAdvance(t *testing.T) {
	p, _ := newTestEngine(SAMPLE_RATE)
	fired := make(chan struct{}, 4)
	p.SetTrackEndFunc(func() { fired <- struct{}{} })

	if err := p.PlayTrack(newTestSession(&dcSource{level: 8192}, SAMPLE_RATE), 30*time.Millisecond, 0); err != nil {
		t.Fatal(err)
	}
	p.Pause()

	select {
	case <-fired:
		t.Fatal("advance fired while paused")
	case <-time.After(400 * time.Millisecond):
	}

	p.Resume()
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("advance never fired after resume")
	}
}

func TestPlayback_CallbackPanicContained(t *testing.T) {
	p, _ := newTestEngine(SAMPLE_RATE)
	p.SetTrackEndFunc(func() { panic("listener bug") })

	if err := p.PlayTrack(newTestSession(&dcSource{}, SAMPLE_RATE), 20*time.Millisecond, 0); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for p.State() != StateEnded {
		if time.Now().After(deadline) {
			t.Fatal("engine never reached ended")
		}
		time.Sleep(10 * time.Millisecond)
	}
	// The engine must stay usable after the panic.
	if err := p.PlayTrack(newTestSession(&dcSource{level: 100}, SAMPLE_RATE), time.Minute, 0); err != nil {
		t.Fatal(err)
	}
	if p.State() != StatePlaying {
		t.Fatalf("state = %v", p.State())
	}
	p.Stop()
}

func TestPlayback_ElapsedClampedToLength(t *testing.T) {
	p, _ := newTestEngine(SAMPLE_RATE)
	if err := p.PlayTrack(newTestSession(&dcSource{}, SAMPLE_RATE), 50*time.Millisecond, 0); err != nil {
		t.Fatal(err)
	}
	time.Sleep(120 * time.Millisecond)
	if got := p.Elapsed(); got != 50*time.Millisecond {
		t.Fatalf("elapsed = %v, want clamped to 50ms", got)
	}

	// The fade tail keeps playing but the reported position holds at
	// the tagged duration.
	if err := p.PlayTrack(newTestSession(&dcSource{}, SAMPLE_RATE), 40*time.Millisecond, 400*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(120 * time.Millisecond)
	if p.State() != StatePlaying {
		t.Fatalf("state in fade tail = %v", p.State())
	}
	if got := p.Elapsed(); got != 40*time.Millisecond {
		t.Fatalf("elapsed in fade tail = %v, want held at 40ms", got)
	}

	p.Stop()
	if got := p.Elapsed(); got != 0 {
		t.Fatalf("elapsed after stop = %v", got)
	}
}

func TestPlayback_DrainedStreamEndsEarly(t *testing.T) {
	p, out := newTestEngine(SAMPLE_RATE)
	fired := make(chan struct{}, 1)
	p.SetTrackEndFunc(func() { fired <- struct{}{} })

	src := &dcSource{level: 8192, limit: 200}
	if err := p.PlayTrack(newTestSession(src, SAMPLE_RATE), time.Hour, 0); err != nil {
		t.Fatal(err)
	}

	// Pull past the stream's end; the advance must come from the drain,
	// not from the hour-long timer.
	for i := 0; i < 4; i++ {
		out.pull(100)
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("drained stream never ended the track")
	}
	if p.State() != StateEnded {
		t.Fatalf("state = %v, want ended", p.State())
	}
}

func TestPlayback_PlayTrackReplacesSession(t *testing.T) {
	p, out := newTestEngine(SAMPLE_RATE)
	first := newTestSession(&dcSource{level: 100}, SAMPLE_RATE)
	if err := p.PlayTrack(first, time.Minute, 0); err != nil {
		t.Fatal(err)
	}
	second := newTestSession(&dcSource{level: 16384}, SAMPLE_RATE)
	if err := p.PlayTrack(second, time.Minute, 0); err != nil {
		t.Fatal(err)
	}
	if !first.Finished() {
		t.Error("replaced session was not released")
	}
	out.pull(64)
	if got := peak(out.pull(128)); got < 0.45 {
		t.Fatalf("second session peak = %v", got)
	}
}
