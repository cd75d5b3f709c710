// spc_dsp.go - SNES S-DSP emulation: BRR sample playback, envelopes,
// noise, pitch modulation and the echo FIR filter.

package main

import "math"

const (
	spcVoiceCount = 8

	// FLG register bits
	spcFlgReset     = 0x80
	spcFlgMute      = 0x40
	spcFlgEchoWroff = 0x20
)

// Envelope phases. Release is the zero value so a fresh voice sits
// silent until keyed on.
const (
	spcEnvRelease = iota
	spcEnvAttack
	spcEnvDecay
	spcEnvSustain
)

// Envelope and noise rate periods in samples. Rate 0 never fires.
var spcRatePeriods = [32]uint32{
	0, 2048, 1536, 1280, 1024, 768, 640, 512,
	384, 320, 256, 192, 160, 128, 96, 80,
	64, 48, 40, 32, 24, 20, 16, 12,
	10, 8, 6, 5, 4, 3, 2, 1,
}

// spcGauss is the 4-tap interpolation kernel, generated at 11-bit
// scale. The four taps of any phase sum to 2048, keeping DC gain at
// unity.
var spcGauss [512]int32

func init() {
	const twoSigmaSq = 0.791
	for i := range spcGauss {
		d := (511.5 - float64(i)) / 256
		spcGauss[i] = int32(math.Round(1305 * math.Exp(-d*d/twoSigmaSq)))
	}
}

type spcVoice struct {
	// BRR decode state. buf holds a 12-sample ring, doubled so the
	// interpolator can read four consecutive taps without wrapping.
	buf       [24]int32
	bufPos    int
	brrAddr   uint16
	brrOffset int
	brrHeader byte
	prev1     int32
	prev2     int32

	interpPos int32

	env       int32
	hiddenEnv int32
	envState  int
}

// SPCDSP runs the eight-voice sample synthesizer against the shared
// 64KiB APU RAM. One call to RunSample produces one stereo frame at
// the native 32kHz rate.
type SPCDSP struct {
	ram  []byte
	regs [128]byte

	voices [spcVoiceCount]spcVoice

	envCounter uint32
	noise      uint16
	newKON     byte

	echoPos    int
	echoLength int
	firBuf     [8][2]int32
	firPos     int
}

func NewSPCDSP(ram []byte) *SPCDSP {
	d := &SPCDSP{ram: ram, noise: 0x4000}
	d.regs[0x6C] = spcFlgReset | spcFlgMute | spcFlgEchoWroff
	for i := range d.voices {
		d.voices[i].brrOffset = 1
	}
	return d
}

// LoadRegs restores the register file from a snapshot. The KON value
// in the snapshot is treated as pending, so voices that were keyed at
// dump time restart from the top of their samples.
func (d *SPCDSP) LoadRegs(regs []byte) {
	copy(d.regs[:], regs)
	d.newKON = d.regs[0x4C]
	d.echoPos = 0
	for i := range d.voices {
		d.voices[i] = spcVoice{brrOffset: 1}
	}
}

func (d *SPCDSP) Read(reg byte) byte {
	return d.regs[reg&0x7F]
}

// Write stores a register value. The upper half of the address space
// is a read-only mirror. Any write to ENDX clears it.
func (d *SPCDSP) Write(reg, value byte) {
	if reg >= 0x80 {
		return
	}
	switch reg {
	case 0x7C:
		d.regs[0x7C] = 0
	case 0x4C:
		d.regs[0x4C] = value
		d.newKON |= value
	default:
		d.regs[reg] = value
	}
}

func (d *SPCDSP) counterFired(rate int) bool {
	period := spcRatePeriods[rate&0x1F]
	if period == 0 {
		return false
	}
	return d.envCounter%period == 0
}

// directoryEntry returns the start and loop addresses for a voice's
// source number.
func (d *SPCDSP) directoryEntry(voice int) (start, loop uint16) {
	base := int(d.regs[0x5D])*0x100 + int(d.regs[voice*0x10+4])*4
	start = uint16(d.ram[base&0xFFFF]) | uint16(d.ram[(base+1)&0xFFFF])<<8
	loop = uint16(d.ram[(base+2)&0xFFFF]) | uint16(d.ram[(base+3)&0xFFFF])<<8
	return start, loop
}

func (d *SPCDSP) keyOn(voice int) {
	v := &d.voices[voice]
	start, _ := d.directoryEntry(voice)
	v.brrAddr = start
	v.brrOffset = 1
	v.brrHeader = 0
	v.bufPos = 0
	v.interpPos = 0
	v.prev1 = 0
	v.prev2 = 0
	v.env = 0
	v.hiddenEnv = 0
	v.envState = spcEnvAttack
	for i := range v.buf {
		v.buf[i] = 0
	}
	d.regs[0x7C] &^= 1 << voice

	// Prime the interpolation window with the first three groups.
	for i := 0; i < 3; i++ {
		d.decodeGroup(voice)
	}
}

// decodeGroup decodes the next four BRR samples into the voice ring
// buffer and advances to the following block when the current one is
// exhausted. The end flag jumps to the loop address; without the loop
// flag the voice is silenced as well.
func (d *SPCDSP) decodeGroup(voice int) {
	v := &d.voices[voice]
	header := d.ram[v.brrAddr]
	v.brrHeader = header
	b0 := d.ram[(v.brrAddr+uint16(v.brrOffset))&0xFFFF]
	b1 := d.ram[(v.brrAddr+uint16(v.brrOffset)+1)&0xFFFF]

	shift := uint(header >> 4)
	filter := (header >> 2) & 3

	nibbles := [4]int32{
		int32(int8(b0)) >> 4,
		int32(int8(b0<<4)) >> 4,
		int32(int8(b1)) >> 4,
		int32(int8(b1<<4)) >> 4,
	}

	for i, nib := range nibbles {
		s := nib << shift >> 1
		if shift > 12 {
			s = (s >> 25) << 11
		}

		p1 := v.prev1
		p2 := v.prev2 >> 1
		switch filter {
		case 1:
			// p1 * 15/32
			s += p1 >> 1
			s += (-p1) >> 5
		case 2:
			// p1 * 61/64 - p2 * 15/16
			s += p1
			s -= p2
			s += p2 >> 4
			s += (p1 * -3) >> 6
		case 3:
			// p1 * 115/128 - p2 * 13/16
			s += p1
			s -= p2
			s += (p1 * -13) >> 7
			s += (p2 * 3) >> 4
		}

		s = clamp16(s)
		s = int32(int16(s * 2))
		v.buf[v.bufPos+i] = s
		v.buf[v.bufPos+i+12] = s
		v.prev2 = v.prev1
		v.prev1 = s
	}

	v.bufPos += 4
	if v.bufPos >= 12 {
		v.bufPos = 0
	}

	v.brrOffset += 2
	if v.brrOffset >= 9 {
		v.brrAddr += 9
		if header&1 != 0 {
			_, loop := d.directoryEntry(voice)
			v.brrAddr = loop
			d.regs[0x7C] |= 1 << voice
		}
		v.brrOffset = 1
	}
}

func (d *SPCDSP) interpolate(v *spcVoice) int32 {
	o := int(v.interpPos >> 4 & 0xFF)
	idx := int(v.interpPos>>12) + v.bufPos
	out := (spcGauss[255-o] * v.buf[idx]) >> 11
	out += (spcGauss[511-o] * v.buf[idx+1]) >> 11
	out += (spcGauss[256+o] * v.buf[idx+2]) >> 11
	out = int32(int16(out))
	out += (spcGauss[o] * v.buf[idx+3]) >> 11
	return clamp16(out) &^ 1
}

// runEnvelope computes the next envelope value and commits it when
// the rate counter fires. Phase transitions track the candidate value
// the way the hardware does.
func (d *SPCDSP) runEnvelope(voice int) {
	v := &d.voices[voice]
	if v.envState == spcEnvRelease {
		if v.env -= 8; v.env < 0 {
			v.env = 0
		}
		return
	}

	base := voice * 0x10
	adsr0 := d.regs[base+5]
	env := v.env
	var rate int

	if adsr0&0x80 != 0 {
		adsr1 := d.regs[base+6]
		if v.envState == spcEnvAttack {
			rate = int(adsr0&0x0F)*2 + 1
			if rate < 31 {
				env += 0x20
			} else {
				env += 0x400
			}
		} else {
			env--
			env -= env >> 8
			if v.envState == spcEnvDecay {
				rate = int(adsr0>>3&0x0E) + 0x10
			} else {
				rate = int(adsr1 & 0x1F)
			}
		}
		if v.envState == spcEnvDecay && env>>8 == int32(adsr1>>5) {
			v.envState = spcEnvSustain
		}
	} else {
		gain := d.regs[base+7]
		if gain&0x80 == 0 {
			env = int32(gain) * 0x10
			rate = 31
		} else {
			rate = int(gain & 0x1F)
			switch gain >> 5 & 3 {
			case 0:
				env -= 0x20
			case 1:
				env--
				env -= env >> 8
			case 2:
				env += 0x20
			case 3:
				if v.hiddenEnv >= 0x600 {
					env += 0x08
				} else {
					env += 0x20
				}
			}
		}
	}

	v.hiddenEnv = env
	if env < 0 || env > 0x7FF {
		if env < 0 {
			env = 0
		} else {
			env = 0x7FF
		}
		if v.envState == spcEnvAttack {
			v.envState = spcEnvDecay
		}
	}

	if d.counterFired(rate) {
		v.env = env
	}
}

// RunSample advances every voice by one sample period and returns one
// stereo frame. Voice order matters: pitch modulation feeds each
// voice the final output of the one before it.
func (d *SPCDSP) RunSample() (int16, int16) {
	flg := d.regs[0x6C]

	kon := d.newKON
	d.newKON = 0
	kof := d.regs[0x5C]

	d.envCounter++

	if d.counterFired(int(flg & 0x1F)) {
		feedback := (d.noise ^ d.noise>>1) & 1
		d.noise = d.noise>>1 | feedback<<14
	}

	var mainL, mainR, echoL, echoR, prevOut int32

	for i := 0; i < spcVoiceCount; i++ {
		v := &d.voices[i]
		bit := byte(1) << i
		base := i * 0x10

		if kon&bit != 0 {
			d.keyOn(i)
		}
		if kof&bit != 0 {
			v.envState = spcEnvRelease
		}
		if flg&spcFlgReset != 0 || v.brrHeader&3 == 1 {
			v.envState = spcEnvRelease
			v.env = 0
		}

		pitch := int32(d.regs[base+2]) | int32(d.regs[base+3]&0x3F)<<8
		if i > 0 && d.regs[0x2D]&bit != 0 {
			pitch += ((prevOut >> 5) * pitch) >> 10
		}

		if v.interpPos >= 0x4000 {
			d.decodeGroup(i)
		}

		var sample int32
		if d.regs[0x3D]&bit != 0 {
			sample = int32(int16(d.noise << 1))
		} else {
			sample = d.interpolate(v)
		}

		out := (sample * v.env) >> 11
		d.runEnvelope(i)

		prevOut = out
		d.regs[base+8] = byte(v.env >> 4)
		d.regs[base+9] = byte(out >> 8)

		volL := int32(int8(d.regs[base+0]))
		volR := int32(int8(d.regs[base+1]))
		l := (out * volL) >> 7
		r := (out * volR) >> 7
		mainL += l
		mainR += r
		if d.regs[0x4D]&bit != 0 {
			echoL += l
			echoR += r
		}

		v.interpPos = v.interpPos&0x3FFF + pitch
		if v.interpPos > 0x7FFF {
			v.interpPos = 0x7FFF
		}
	}

	// Echo buffer read and FIR filter. The filter history keeps a
	// doubled ring like the voice buffers.
	if d.echoPos == 0 {
		d.echoLength = int(d.regs[0x7D]&0x0F) * 0x800
		if d.echoLength == 0 {
			d.echoLength = 4
		}
	}
	addr := (int(d.regs[0x6D])*0x100 + d.echoPos) & 0xFFFF
	inL := int32(int16(uint16(d.ram[addr])|uint16(d.ram[(addr+1)&0xFFFF])<<8)) >> 1
	inR := int32(int16(uint16(d.ram[(addr+2)&0xFFFF])|uint16(d.ram[(addr+3)&0xFFFF])<<8)) >> 1

	d.firPos = (d.firPos + 1) & 7
	d.firBuf[d.firPos][0] = inL
	d.firBuf[d.firPos][1] = inR

	var firL, firR int32
	for i := 0; i < 8; i++ {
		c := int32(int8(d.regs[0x0F+i*0x10]))
		h := d.firBuf[(d.firPos+i+1)&7]
		firL += (h[0] * c) >> 6
		firR += (h[1] * c) >> 6
		if i == 6 {
			firL = int32(int16(firL))
			firR = int32(int16(firR))
		}
	}
	firL = clamp16(firL)
	firR = clamp16(firR)

	mvolL := int32(int8(d.regs[0x0C]))
	mvolR := int32(int8(d.regs[0x1C]))
	evolL := int32(int8(d.regs[0x2C]))
	evolR := int32(int8(d.regs[0x3C]))

	outL := clamp16((mainL*mvolL)>>7 + (firL*evolL)>>7)
	outR := clamp16((mainR*mvolR)>>7 + (firR*evolR)>>7)

	if flg&spcFlgMute != 0 {
		outL, outR = 0, 0
	}

	if flg&spcFlgEchoWroff == 0 {
		efb := int32(int8(d.regs[0x0D]))
		wL := clamp16(echoL+(firL*efb)>>7) &^ 1
		wR := clamp16(echoR+(firR*efb)>>7) &^ 1
		d.ram[addr] = byte(wL)
		d.ram[(addr+1)&0xFFFF] = byte(wL >> 8)
		d.ram[(addr+2)&0xFFFF] = byte(wR)
		d.ram[(addr+3)&0xFFFF] = byte(wR >> 8)
	}
	d.echoPos += 4
	if d.echoPos >= d.echoLength {
		d.echoPos = 0
	}

	return int16(outL), int16(outR)
}

func clamp16(v int32) int32 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}
