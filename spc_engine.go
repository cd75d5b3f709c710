// spc_engine.go - SNES APU emulation: SPC700, S-DSP, timers and the
// I/O page, restored from an SPC snapshot and pulled from the render
// path.

package main

import (
	"fmt"
	"sync"
)

// The Nintendo IPL boot ROM, mapped at 0xFFC0 while bit 7 of the
// control register is set. Writes always land in the RAM underneath.
var spcIPLROM = [64]byte{
	0xCD, 0xEF, 0xBD, 0xE8, 0x00, 0xC6, 0x1D, 0xD0,
	0xFC, 0x8F, 0xAA, 0xF4, 0x8F, 0xBB, 0xF5, 0x78,
	0xCC, 0xF4, 0xD0, 0xFB, 0x2F, 0x19, 0xEB, 0xF4,
	0xD0, 0xFC, 0x7E, 0xF4, 0xD0, 0x0B, 0xE4, 0xF5,
	0xCB, 0xF4, 0xD7, 0x00, 0xFC, 0xD0, 0xF3, 0xAB,
	0x01, 0x10, 0xEF, 0x7E, 0xF4, 0x10, 0xEB, 0xBA,
	0xF6, 0xDA, 0x00, 0xBA, 0xF4, 0xC4, 0xF4, 0xDD,
	0x5D, 0xD0, 0xDB, 0x1F, 0x00, 0x00, 0xC0, 0xFF,
}

// spcTimer is one of the three APU timers: an internal up-counter
// that rolls into a 4-bit output counter each time it reaches the
// target. Target 0 counts a full 256 stages.
type spcTimer struct {
	enabled  bool
	prescale int
	divider  int
	stage    byte
	target   byte
	counter  byte
}

func (t *spcTimer) run(cycles int) {
	if !t.enabled {
		return
	}
	t.divider += cycles
	for t.divider >= t.prescale {
		t.divider -= t.prescale
		t.stage++
		if t.stage == t.target {
			t.stage = 0
			t.counter = (t.counter + 1) & 0x0F
		}
	}
}

// SPCEngine wires the SPC700 core, the S-DSP and the timers into the
// shared 64KiB RAM. State comes from a parsed SPC snapshot, after
// which RenderFrames resumes the captured sound driver
// mid-performance. A snapshot has no natural end; the tagged duration
// decides when playback moves on.
type SPCEngine struct {
	mutex sync.Mutex

	ram [65536]byte
	cpu *CPU_SPC700
	dsp *SPCDSP

	timers     [3]spcTimer
	dspAddr    byte
	iplEnabled bool
	portsIn    [4]byte
	auxIO      [2]byte

	cycleCarry int
}

func NewSPCEngine(file *SPCFile) (*SPCEngine, error) {
	if file == nil || len(file.RAM) != 0x10000 {
		return nil, fmt.Errorf("spc engine: %w: bad RAM image", ErrInvalidPayload)
	}
	e := &SPCEngine{}
	copy(e.ram[:], file.RAM)

	e.timers[0].prescale = SPC_TIMER01_DIV
	e.timers[1].prescale = SPC_TIMER01_DIV
	e.timers[2].prescale = SPC_TIMER2_DIV

	e.dsp = NewSPCDSP(e.ram[:])
	if len(file.DSPRegs) >= 128 {
		e.dsp.LoadRegs(file.DSPRegs)
	}

	e.cpu = NewCPU_SPC700(e)
	e.restoreIOPage(file)
	e.restoreCPU(file.Header)
	return e, nil
}

// restoreIOPage rebuilds timer, port and DSP address state from the
// I/O page bytes captured in the snapshot. Counters are restored
// as-is rather than reset, so a driver waiting on one picks up where
// it left off.
func (e *SPCEngine) restoreIOPage(file *SPCFile) {
	control := e.ram[0xF1]
	for i := range e.timers {
		e.timers[i].enabled = control&(1<<i) != 0
	}
	e.iplEnabled = control&0x80 != 0
	e.dspAddr = e.ram[0xF2]
	copy(e.portsIn[:], e.ram[0xF4:0xF8])
	copy(e.auxIO[:], e.ram[0xF8:0xFA])
	e.timers[0].target = e.ram[0xFA]
	e.timers[1].target = e.ram[0xFB]
	e.timers[2].target = e.ram[0xFC]
	e.timers[0].counter = e.ram[0xFD] & 0x0F
	e.timers[1].counter = e.ram[0xFE] & 0x0F
	e.timers[2].counter = e.ram[0xFF] & 0x0F

	// With the IPL mapped, the snapshot's main image holds the ROM
	// bytes at 0xFFC0; the hidden RAM travels separately.
	if e.iplEnabled && len(file.ExtraRAM) >= 64 {
		copy(e.ram[0xFFC0:], file.ExtraRAM[:64])
	}
}

func (e *SPCEngine) restoreCPU(h SPCHeader) {
	e.cpu.PC = h.PC
	e.cpu.A = h.A
	e.cpu.X = h.X
	e.cpu.Y = h.Y
	e.cpu.PSW = h.PSW
	e.cpu.SP = h.SP
	e.cpu.Stopped = false
}

func (e *SPCEngine) Read(addr uint16) byte {
	if addr&0xFFF0 == 0x00F0 {
		return e.readIO(byte(addr & 0x0F))
	}
	if addr >= 0xFFC0 && e.iplEnabled {
		return spcIPLROM[addr-0xFFC0]
	}
	return e.ram[addr]
}

func (e *SPCEngine) Write(addr uint16, value byte) {
	if addr&0xFFF0 == 0x00F0 {
		e.writeIO(byte(addr&0x0F), value)
		return
	}
	e.ram[addr] = value
}

func (e *SPCEngine) readIO(port byte) byte {
	switch port {
	case 0x2:
		return e.dspAddr
	case 0x3:
		return e.dsp.Read(e.dspAddr)
	case 0x4, 0x5, 0x6, 0x7:
		return e.portsIn[port-0x4]
	case 0x8, 0x9:
		return e.auxIO[port-0x8]
	case 0xD, 0xE, 0xF:
		// Counter reads clear.
		t := &e.timers[port-0xD]
		v := t.counter
		t.counter = 0
		return v
	}
	return 0
}

func (e *SPCEngine) writeIO(port, value byte) {
	switch port {
	case 0x1:
		e.applyControl(value)
	case 0x2:
		e.dspAddr = value
	case 0x3:
		e.dsp.Write(e.dspAddr, value)
	case 0x4, 0x5, 0x6, 0x7:
		// Output latches face the main CPU; nothing connects to them
		// in a standalone player.
	case 0x8, 0x9:
		e.auxIO[port-0x8] = value
	case 0xA, 0xB, 0xC:
		e.timers[port-0xA].target = value
	}
}

// applyControl handles timer enables, port clears and IPL mapping.
// Enabling a stopped timer resets its stage and counter.
func (e *SPCEngine) applyControl(value byte) {
	for i := range e.timers {
		enable := value&(1<<i) != 0
		if enable && !e.timers[i].enabled {
			e.timers[i].stage = 0
			e.timers[i].counter = 0
			e.timers[i].divider = 0
		}
		e.timers[i].enabled = enable
	}
	if value&0x10 != 0 {
		e.portsIn[0], e.portsIn[1] = 0, 0
	}
	if value&0x20 != 0 {
		e.portsIn[2], e.portsIn[3] = 0, 0
	}
	e.iplEnabled = value&0x80 != 0
}

func (e *SPCEngine) runTimers(cycles int) {
	for i := range e.timers {
		e.timers[i].run(cycles)
	}
}

// RenderFrames fills dst with up to frames stereo pairs at the native
// 32kHz rate, interleaving CPU execution with one DSP sample every 32
// cycles. The requested count is always delivered.
func (e *SPCEngine) RenderFrames(dst []int16, frames int) int {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if frames > len(dst)/2 {
		frames = len(dst) / 2
	}
	for i := 0; i < frames; i++ {
		target := SPC_CYCLES_PER_SAMPLE - e.cycleCarry
		cycles := 0
		for cycles < target {
			cycles += e.cpu.Step()
		}
		e.cycleCarry = cycles - target
		e.runTimers(cycles)
		l, r := e.dsp.RunSample()
		dst[i*2] = l
		dst[i*2+1] = r
	}
	return frames
}

func (e *SPCEngine) Finished() bool {
	return false
}
