// decode_engine.go - Bridges parsed tracks to PCM decode sessions. The
// chip engines behind the sessions are acquired lazily, one per
// format, and a failed acquisition stays failed.

package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// frameSource is the shared face of the chip engines: interleaved
// stereo int16 frames at the engine's native rate.
type frameSource interface {
	RenderFrames(dst []int16, frames int) int
	Finished() bool
}

// DecodeSession is one playing instance of a track. Sessions are
// independent: each one owns a fresh chip engine, so a corrupt or
// half-played track cannot leak state into the next.
type DecodeSession struct {
	mutex    sync.Mutex
	source   frameSource
	engine   string
	rate     int
	released bool
}

func (s *DecodeSession) EngineName() string {
	return s.engine
}

// NativeRate returns the session's output rate in Hz.
func (s *DecodeSession) NativeRate() int {
	return s.rate
}

// DecodeFrames fills dst with up to frames stereo pairs and returns
// the count delivered. A released session delivers nothing.
func (s *DecodeSession) DecodeFrames(dst []int16, frames int) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.released {
		return 0
	}
	return s.source.RenderFrames(dst, frames)
}

// Finished reports whether the stream has a natural end and reached
// it. Snapshot formats run forever; the tagged duration decides when
// those move on.
func (s *DecodeSession) Finished() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.released {
		return true
	}
	return s.source.Finished()
}

// Release drops the chip state behind the session. Safe to call any
// number of times.
func (s *DecodeSession) Release() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.released = true
}

// spcDecodeEngine boots an SPC snapshot into the SPC700/S-DSP pair.
type spcDecodeEngine struct{}

func (spcDecodeEngine) Name() string    { return "spc" }
func (spcDecodeEngine) NativeRate() int { return SPC_SAMPLE_RATE }

func (spcDecodeEngine) Initialize(data []byte) (*DecodeSession, error) {
	file, err := ParseSPCData(data)
	if err != nil {
		return nil, fmt.Errorf("spc initialize: %w: %v", ErrInvalidPayload, err)
	}
	eng, err := NewSPCEngine(file)
	if err != nil {
		return nil, err
	}
	return &DecodeSession{source: eng, engine: "spc", rate: SPC_SAMPLE_RATE}, nil
}

// vgmDecodeEngine replays a VGM command stream through the YM2612 and
// SN76489 cores. Gzipped payloads (.vgz) are handled by the parser.
type vgmDecodeEngine struct{}

func (vgmDecodeEngine) Name() string    { return "vgm" }
func (vgmDecodeEngine) NativeRate() int { return VGM_SAMPLE_RATE }

func (vgmDecodeEngine) Initialize(data []byte) (*DecodeSession, error) {
	file, err := ParseVGMData(data)
	if err != nil {
		return nil, fmt.Errorf("vgm initialize: %w: %v", ErrInvalidPayload, err)
	}
	return &DecodeSession{
		source: NewVGMEngine(file, VGM_SAMPLE_RATE),
		engine: "vgm",
		rate:   VGM_SAMPLE_RATE,
	}, nil
}

// decodeEngineBuilders maps format names to constructors. Construction
// runs at most once per format; see EngineFor.
var decodeEngineBuilders = map[string]func() (DecodeEngine, error){
	"spc": func() (DecodeEngine, error) { return spcDecodeEngine{}, nil },
	"vgm": func() (DecodeEngine, error) { return vgmDecodeEngine{}, nil },
}

type engineSlot struct {
	once   sync.Once
	engine DecodeEngine
	err    error
}

var (
	engineSlotsMutex sync.Mutex
	engineSlots      = map[string]*engineSlot{}
)

// EngineFor returns the decode engine for a format name, constructing
// it on first use. The outcome is latched either way: a format whose
// engine failed to come up keeps returning ErrEngineUnavailable
// without retrying.
func EngineFor(format string) (DecodeEngine, error) {
	format = strings.ToLower(format)

	engineSlotsMutex.Lock()
	slot, ok := engineSlots[format]
	if !ok {
		slot = &engineSlot{}
		engineSlots[format] = slot
	}
	engineSlotsMutex.Unlock()

	slot.once.Do(func() {
		builder, ok := decodeEngineBuilders[format]
		if !ok {
			slot.err = fmt.Errorf("no decode engine for format %q: %w", format, ErrEngineUnavailable)
			return
		}
		engine, err := builder()
		if err != nil {
			slot.err = fmt.Errorf("engine %q failed to start: %w: %v", format, ErrEngineUnavailable, err)
			return
		}
		slot.engine = engine
		debugf("decode: engine %q ready, native rate %d Hz\n", engine.Name(), engine.NativeRate())
	})
	return slot.engine, slot.err
}

// FormatForFilename maps a track filename to its engine format.
// Unsupported extensions map to the empty string.
func FormatForFilename(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".spc":
		return "spc"
	case ".vgm", ".vgz":
		return "vgm"
	}
	return ""
}
