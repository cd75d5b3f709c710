// vgm_engine.go - Sample-domain playback of a parsed VGM command stream.
//
// The engine owns one YM3438 core (in YM2612 mode) and one SN76489 core per
// track. Commands are interpreted in step with sample generation: waits turn
// into generated frames, writes land on the chips between frames. The stream
// loops at the recorded loop point; a one-shot stream finishes and the
// session reports end-of-stream.

package main

import (
	"sync"

	"github.com/elemir/nukeykt"
)

// PSG sits noticeably below the FM mix on real hardware
const vgmPSGMixLevel = 0.5

type VGMEngine struct {
	mutex sync.Mutex

	file       *VGMFile
	fm         *nukeykt.YM3438
	psg        *PSGCore
	sampleRate int

	cmdPos      int
	waitSamples uint64
	samplePos   uint64
	pcmPos      int
	finished    bool
}

func NewVGMEngine(file *VGMFile, sampleRate int) *VGMEngine {
	fmClock := file.FMClockHz
	if fmClock == 0 {
		fmClock = YM2612_CLOCK_NTSC
	}

	var fm nukeykt.YM3438
	nukeykt.OPN2_Reset(&fm, uint32(sampleRate), fmClock)
	nukeykt.OPN2_SetChipType(nukeykt.ModeYM2612)

	return &VGMEngine{
		file:       file,
		fm:         &fm,
		psg:        NewPSGCore(file.SNClockHz, sampleRate),
		sampleRate: sampleRate,
	}
}

// RenderFrames fills dst with up to frames interleaved stereo samples and
// returns the number of frames written. A short count means the stream
// finished; subsequent calls return 0.
func (e *VGMEngine) RenderFrames(dst []int16, frames int) int {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if len(dst) < frames*2 {
		frames = len(dst) / 2
	}

	var fmBuf [2]int32
	written := 0
	for written < frames {
		if e.waitSamples == 0 {
			e.processCommands()
			if e.finished {
				break
			}
		}

		nukeykt.OPN2_GenerateResampled(e.fm, fmBuf[:])
		psgL, psgR := e.psg.RunSample()

		left := float32(fmBuf[0])/32768.0 + psgL*vgmPSGMixLevel
		right := float32(fmBuf[1])/32768.0 + psgR*vgmPSGMixLevel

		dst[written*2] = clampToInt16(left)
		dst[written*2+1] = clampToInt16(right)

		e.waitSamples--
		e.samplePos++
		written++
	}
	return written
}

// Finished reports whether the one-shot stream has played out.
func (e *VGMEngine) Finished() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.finished
}

// processCommands applies chip writes until the stream asks for a wait,
// loops, or ends. Commands are pre-validated by the parser, so length
// checks here only guard the loop jump.
func (e *VGMEngine) processCommands() {
	cmds := e.file.Commands
	// A loop body without a single wait would spin here forever; bail out
	// once we have visited more commands than the stream holds.
	steps := 0
	for e.waitSamples == 0 {
		if steps > len(cmds) {
			e.finished = true
			return
		}
		steps++
		if e.cmdPos >= len(cmds) {
			if e.file.HasLoop && e.file.LoopCmdPos < len(cmds) {
				e.cmdPos = e.file.LoopCmdPos
				continue
			}
			e.finished = true
			return
		}

		cmd := cmds[e.cmdPos]
		switch {
		case cmd == 0x50:
			e.psg.WriteData(cmds[e.cmdPos+1])
			e.cmdPos += 2
		case cmd == 0x4F:
			e.psg.WriteStereo(cmds[e.cmdPos+1])
			e.cmdPos += 2
		case cmd == 0x52 || cmd == 0x53:
			port := uint32(cmd&0x01) << 1
			nukeykt.OPN2_WriteBuffered(e.fm, port, cmds[e.cmdPos+1])
			nukeykt.OPN2_WriteBuffered(e.fm, port|0x01, cmds[e.cmdPos+2])
			e.cmdPos += 3
		case cmd == 0x61:
			e.waitSamples = uint64(cmds[e.cmdPos+1]) | uint64(cmds[e.cmdPos+2])<<8
			e.cmdPos += 3
		case cmd == 0x62:
			e.waitSamples = 735
			e.cmdPos++
		case cmd == 0x63:
			e.waitSamples = 882
			e.cmdPos++
		case cmd >= 0x70 && cmd <= 0x7F:
			e.waitSamples = uint64(cmd&0x0F) + 1
			e.cmdPos++
		case cmd >= 0x80 && cmd <= 0x8F:
			e.writeDACSample()
			e.waitSamples = uint64(cmd & 0x0F)
			e.cmdPos++
		case cmd == 0xE0:
			e.pcmPos = int(uint32(cmds[e.cmdPos+1]) | uint32(cmds[e.cmdPos+2])<<8 |
				uint32(cmds[e.cmdPos+3])<<16 | uint32(cmds[e.cmdPos+4])<<24)
			e.cmdPos += 5
		default:
			if n := vgmCommandLength(cmd); n > 0 {
				e.cmdPos += n
			} else {
				e.cmdPos++
			}
		}
	}
}

// writeDACSample feeds the next PCM bank byte to the YM2612 DAC register.
func (e *VGMEngine) writeDACSample() {
	if e.pcmPos < 0 || e.pcmPos >= len(e.file.PCMBank) {
		return
	}
	nukeykt.OPN2_WriteBuffered(e.fm, 0, 0x2A)
	nukeykt.OPN2_WriteBuffered(e.fm, 1, e.file.PCMBank[e.pcmPos])
	e.pcmPos++
}

func clampToInt16(v float32) int16 {
	scaled := v * 32767.0
	if scaled > 32767 {
		return 32767
	}
	if scaled < -32768 {
		return -32768
	}
	return int16(scaled)
}
