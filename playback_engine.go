// playback_engine.go - Pull-driven playback of one decode session.
//
// The engine sits between a DecodeSession and an AudioOutput. The
// output's pull path calls RenderAudio, which resamples the session's
// native-rate stream to the device rate, applies volume and the
// end-of-track fade, and taps the result for the spectrum view. Track
// end is driven by a wall-clock timer armed for the tagged duration
// plus fade; a looped stream never has to end, and a one-shot stream
// that drains early ends the track on the spot.

package main

import (
	"fmt"
	"os"
	"sync"
	"time"
)

type PlaybackState int

const (
	StateIdle PlaybackState = iota
	StateLoading
	StatePlaying
	StatePaused
	StateEnded
)

func (s PlaybackState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type PlaybackEngine struct {
	mutex  sync.Mutex
	output AudioOutput

	state      PlaybackState
	session    *DecodeSession
	generation uint64

	// Resampler state. The accumulator walks the native stream at
	// nativeRate source frames per deviceRate output frames.
	nativeRate  int
	deviceRate  int
	resampleAcc int
	srcPrev     [2]float32
	srcNext     [2]float32

	decodeBuf []int16
	decodePos int
	decodeLen int
	drained   bool

	// Track timing. duration is the tagged play length, fade the tail
	// applied after it; the advance timer covers both plus a guard.
	duration   time.Duration
	fade       time.Duration
	startTime  time.Time
	elapsedAcc time.Duration
	timer      *time.Timer

	volume         float64
	renderedFrames uint64

	spectrum spectrumTap

	onTrackEnd func()
}

func NewPlaybackEngine(output AudioOutput) *PlaybackEngine {
	p := &PlaybackEngine{
		output:     output,
		deviceRate: output.SampleRate(),
		volume:     1.0,
		decodeBuf:  make([]int16, 4096),
	}
	output.SetRenderer(p)
	return p
}

// SetTrackEndFunc installs the callback invoked when the advance timer
// fires. It runs on the timer goroutine; a panicking callback is
// contained so playback state stays consistent.
func (p *PlaybackEngine) SetTrackEndFunc(fn func()) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.onTrackEnd = fn
}

// MarkLoading flags the gap between a track being requested and its
// session being ready. The outgoing session is released here, before
// the replacement even starts to initialize, so two sessions never
// hold chip state at once. Rendering is silent while loading.
func (p *PlaybackEngine) MarkLoading() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session != nil {
		p.session.Release()
		p.session = nil
	}
	p.stopTimerLocked()
	p.generation++
	p.state = StateLoading
}

// PlayTrack replaces the current session and starts playing. The
// previous session is released first, so the chip state behind it is
// gone before the new one produces a sample. The resample ratio is
// computed here from the session's native rate, never cached across
// tracks.
func (p *PlaybackEngine) PlayTrack(session *DecodeSession, duration, fade time.Duration) error {
	if session == nil {
		return fmt.Errorf("playback: nil session: %w", ErrInvalidPayload)
	}
	if duration <= 0 {
		duration = DEFAULT_DURATION_SECONDS * time.Second
	}
	if fade < 0 {
		fade = DEFAULT_FADE_MS * time.Millisecond
	}

	p.mutex.Lock()
	if p.session != nil {
		p.session.Release()
	}
	p.stopTimerLocked()
	p.generation++
	gen := p.generation

	p.session = session
	p.state = StatePlaying
	p.nativeRate = session.NativeRate()
	p.resampleAcc = p.deviceRate // prime the first source pull
	p.srcPrev = [2]float32{}
	p.srcNext = [2]float32{}
	p.decodePos = 0
	p.decodeLen = 0
	p.drained = false
	p.duration = duration
	p.fade = fade
	p.startTime = time.Now()
	p.elapsedAcc = 0
	p.renderedFrames = 0
	p.spectrum.reset()
	p.armTimerLocked(gen, p.totalLenLocked()+AUTO_ADVANCE_GUARD_MS*time.Millisecond)
	p.mutex.Unlock()

	debugf("playback: %s session, %d Hz -> %d Hz, duration %s fade %s\n",
		session.EngineName(), session.NativeRate(), p.deviceRate, duration, fade)
	return p.output.Start()
}

// Pause keeps the session alive so Resume picks up exactly where the
// chips left off. The advance timer is cancelled, not suspended.
func (p *PlaybackEngine) Pause() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.state != StatePlaying {
		return
	}
	p.stopTimerLocked()
	p.generation++
	p.elapsedAcc += time.Since(p.startTime)
	p.state = StatePaused
}

func (p *PlaybackEngine) Resume() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.state != StatePaused {
		return
	}
	p.generation++
	gen := p.generation
	p.startTime = time.Now()
	p.state = StatePlaying
	remaining := p.totalLenLocked() + AUTO_ADVANCE_GUARD_MS*time.Millisecond - p.elapsedAcc
	if remaining < 0 {
		remaining = 0
	}
	p.armTimerLocked(gen, remaining)
}

// Stop releases the session and returns to idle. Unlike Pause there is
// no way back; the next track starts from a fresh session.
func (p *PlaybackEngine) Stop() {
	p.mutex.Lock()
	if p.session != nil {
		p.session.Release()
		p.session = nil
	}
	p.stopTimerLocked()
	p.generation++
	p.state = StateIdle
	p.elapsedAcc = 0
	p.spectrum.reset()
	p.mutex.Unlock()

	p.output.Stop()
}

func (p *PlaybackEngine) State() PlaybackState {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.state
}

// Elapsed reports wall-clock play position, clamped to the tagged
// duration. The fade tail plays past that point without moving the
// reported position.
func (p *PlaybackEngine) Elapsed() time.Duration {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	elapsed := p.elapsedAcc
	if p.state == StatePlaying {
		elapsed += time.Since(p.startTime)
	}
	if elapsed > p.duration {
		elapsed = p.duration
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed
}

// SetVolume clamps to [0, 1]. Volume multiplies with the fade gain, it
// never replaces it.
func (p *PlaybackEngine) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.mutex.Lock()
	p.volume = v
	p.mutex.Unlock()
}

func (p *PlaybackEngine) Volume() float64 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.volume
}

// Spectrum returns the current 16-bin magnitude snapshot. Anything but
// the playing state reads as all zeros.
func (p *PlaybackEngine) Spectrum() FrequencySnapshot {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.state != StatePlaying {
		return FrequencySnapshot{}
	}
	return p.spectrum.snapshot()
}

// RenderAudio fills buf with interleaved stereo float32 at the device
// rate. This is the output's pull path: it must always fill the whole
// buffer and never block on anything slower than the decode itself.
func (p *PlaybackEngine) RenderAudio(buf []float32) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.state != StatePlaying || p.session == nil {
		for i := range buf {
			buf[i] = 0
		}
		return
	}

	// One gain step per pull keeps the fade audibly discrete, matching
	// the buffer cadence rather than per-sample ramping.
	gain := float32(p.volume) * p.fadeGainLocked()
	wasDrained := p.drained

	frames := len(buf) / 2
	for i := 0; i < frames; i++ {
		p.resampleAcc += p.nativeRate
		for p.resampleAcc >= p.deviceRate {
			p.resampleAcc -= p.deviceRate
			p.srcPrev = p.srcNext
			p.srcNext = p.pullSourceFrameLocked()
		}
		frac := float32(p.resampleAcc) / float32(p.deviceRate)
		l := (p.srcPrev[0] + (p.srcNext[0]-p.srcPrev[0])*frac) * gain
		r := (p.srcPrev[1] + (p.srcNext[1]-p.srcPrev[1])*frac) * gain
		buf[i*2] = l
		buf[i*2+1] = r
		p.spectrum.push((l + r) * 0.5)
	}
	p.renderedFrames += uint64(frames)

	// A one-shot stream that drains before the tagged duration ends the
	// track now instead of waiting out the timer.
	if p.drained && !wasDrained {
		p.stopTimerLocked()
		p.armTimerLocked(p.generation, 0)
	}
}

// pullSourceFrameLocked returns the next native-rate frame, refilling
// the decode buffer as needed. A drained stream yields silence.
func (p *PlaybackEngine) pullSourceFrameLocked() [2]float32 {
	if p.decodePos >= p.decodeLen {
		if p.drained {
			return [2]float32{}
		}
		n := p.session.DecodeFrames(p.decodeBuf, len(p.decodeBuf)/2)
		if n == 0 {
			p.drained = true
			return [2]float32{}
		}
		p.decodeLen = n
		p.decodePos = 0
	}
	i := p.decodePos * 2
	p.decodePos++
	return [2]float32{
		float32(p.decodeBuf[i]) / 32768.0,
		float32(p.decodeBuf[i+1]) / 32768.0,
	}
}

// fadeGainLocked derives the fade multiplier from the rendered frame
// count, which tracks the audio actually delivered rather than the
// wall clock.
func (p *PlaybackEngine) fadeGainLocked() float32 {
	if p.fade <= 0 {
		return 1
	}
	played := time.Duration(p.renderedFrames) * time.Second / time.Duration(p.deviceRate)
	if played <= p.duration {
		return 1
	}
	over := played - p.duration
	if over >= p.fade {
		return 0
	}
	return 1 - float32(over)/float32(p.fade)
}

func (p *PlaybackEngine) totalLenLocked() time.Duration {
	return p.duration + p.fade
}

func (p *PlaybackEngine) armTimerLocked(gen uint64, d time.Duration) {
	p.timer = time.AfterFunc(d, func() {
		p.handleAdvance(gen)
	})
}

func (p *PlaybackEngine) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// handleAdvance runs on the timer goroutine. The generation check
// discards fires from timers that were cancelled after they had
// already been committed to run.
func (p *PlaybackEngine) handleAdvance(gen uint64) {
	p.mutex.Lock()
	if gen != p.generation || p.state != StatePlaying {
		p.mutex.Unlock()
		return
	}
	if p.session != nil {
		p.session.Release()
		p.session = nil
	}
	p.state = StateEnded
	p.elapsedAcc = p.duration
	fn := p.onTrackEnd
	p.mutex.Unlock()

	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "track end callback panic: %v\n", r)
		}
	}()
	fn()
}
