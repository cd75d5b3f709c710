// psg_core.go - SN76489 PSG core for Mega Drive VGM playback.
//
// Three square-wave channels plus a shift-register noise channel, driven by
// the latch/data write protocol of the single chip port. The core runs at
// the chip's internal rate (clock/16) and produces one stereo sample per
// RunSample call, with Game Gear stereo masking applied at mix time.

package main

const (
	psgToneChannels = 3
	psgNoiseChannel = 3

	// White noise taps for the 16-bit SMS/Mega Drive shift register
	psgNoiseTapMask = 0x0009

	psgLatchType   = 0x10
	psgLatchMarker = 0x80
)

// psgVolumeTable maps 4-bit attenuation to linear amplitude: 2 dB per step,
// 15 = silence. Generated once at package init.
var psgVolumeTable = func() [16]float32 {
	var table [16]float32
	level := 1.0
	for i := 0; i < 15; i++ {
		table[i] = float32(level)
		level *= 0.79432823 // -2 dB
	}
	table[15] = 0
	return table
}()

type PSGCore struct {
	clockHz    uint32
	sampleRate int
	clockAcc   uint32 // accumulates clockHz, ticks every 16*sampleRate

	latchedCh   uint8
	latchedType uint8

	tonePeriod  [psgToneChannels]uint16
	toneCounter [psgToneChannels]uint16
	toneOutput  [psgToneChannels]bool

	atten [4]uint8 // 0 = full volume, 15 = off

	noiseCtrl    uint8
	noiseShift   uint16
	noiseCounter uint16
	noiseOutput  bool

	// Game Gear stereo mask: bits 0-3 right enables, bits 4-7 left enables
	stereoMask uint8
}

func NewPSGCore(clockHz uint32, sampleRate int) *PSGCore {
	if clockHz == 0 {
		clockHz = SN76489_CLOCK
	}
	core := &PSGCore{
		clockHz:    clockHz,
		sampleRate: sampleRate,
		stereoMask: 0xFF,
		noiseShift: 0x8000,
	}
	for ch := range core.atten {
		core.atten[ch] = 15
	}
	return core
}

// WriteData processes one byte written to the chip port.
// Latch bytes (bit 7 set) select channel and type and carry the low data
// bits; data bytes extend the latched tone register with the high bits.
func (c *PSGCore) WriteData(val uint8) {
	if val&psgLatchMarker != 0 {
		c.latchedCh = (val >> 5) & 0x03
		c.latchedType = val & psgLatchType
		low := val & 0x0F

		if c.latchedType != 0 {
			c.atten[c.latchedCh] = low
			return
		}
		if c.latchedCh == psgNoiseChannel {
			c.writeNoiseControl(low)
			return
		}
		c.tonePeriod[c.latchedCh] = (c.tonePeriod[c.latchedCh] & 0x3F0) | uint16(low)
		return
	}

	data := val & 0x3F
	if c.latchedType != 0 {
		c.atten[c.latchedCh] = data & 0x0F
		return
	}
	if c.latchedCh == psgNoiseChannel {
		// The real chip reloads the noise register from data bytes too
		c.writeNoiseControl(data & 0x07)
		return
	}
	c.tonePeriod[c.latchedCh] = (c.tonePeriod[c.latchedCh] & 0x00F) | (uint16(data) << 4)
}

func (c *PSGCore) writeNoiseControl(val uint8) {
	c.noiseCtrl = val & 0x07
	c.noiseShift = 0x8000
}

// WriteStereo sets the Game Gear stereo mask (command 0x4F).
func (c *PSGCore) WriteStereo(val uint8) {
	c.stereoMask = val
}

// RunSample advances the core by one output sample and returns the
// left/right contribution in [-1, 1] per channel group.
func (c *PSGCore) RunSample() (float32, float32) {
	c.clockAcc += c.clockHz
	step := uint32(16 * c.sampleRate)
	for c.clockAcc >= step {
		c.clockAcc -= step
		c.tick()
	}
	return c.mix()
}

// tick advances every counter by one chip cycle (clock/16).
func (c *PSGCore) tick() {
	for ch := 0; ch < psgToneChannels; ch++ {
		if c.toneCounter[ch] > 0 {
			c.toneCounter[ch]--
		}
		if c.toneCounter[ch] == 0 {
			reload := c.tonePeriod[ch]
			if reload <= 1 {
				// Periods 0 and 1 flip above Nyquist; the chip's output
				// sits high, which games use for sampled speech
				c.toneOutput[ch] = true
				c.toneCounter[ch] = 1
				continue
			}
			c.toneOutput[ch] = !c.toneOutput[ch]
			c.toneCounter[ch] = reload
		}
	}

	c.tickNoise()
}

func (c *PSGCore) tickNoise() {
	if c.noiseCounter > 0 {
		c.noiseCounter--
		if c.noiseCounter > 0 {
			return
		}
	}

	switch c.noiseCtrl & 0x03 {
	case 0:
		c.noiseCounter = 32 // clock/512
	case 1:
		c.noiseCounter = 64 // clock/1024
	case 2:
		c.noiseCounter = 128 // clock/2048
	case 3:
		// Track channel 2's tone period
		reload := c.tonePeriod[2]
		if reload < 1 {
			reload = 1
		}
		c.noiseCounter = reload
	}

	c.noiseOutput = c.noiseShift&1 != 0
	var feedback uint16
	if c.noiseCtrl&0x04 != 0 {
		// White noise: parity of the tapped bits
		tapped := c.noiseShift & psgNoiseTapMask
		tapped ^= tapped >> 8
		tapped ^= tapped >> 4
		tapped ^= tapped >> 2
		tapped ^= tapped >> 1
		feedback = tapped & 1
	} else {
		feedback = c.noiseShift & 1
	}
	c.noiseShift = (c.noiseShift >> 1) | (feedback << 15)
}

func (c *PSGCore) mix() (float32, float32) {
	var left, right float32
	for ch := 0; ch < psgToneChannels; ch++ {
		vol := psgVolumeTable[c.atten[ch]]
		sample := -vol
		if c.toneOutput[ch] {
			sample = vol
		}
		if c.stereoMask&(1<<(4+ch)) != 0 {
			left += sample
		}
		if c.stereoMask&(1<<ch) != 0 {
			right += sample
		}
	}

	vol := psgVolumeTable[c.atten[psgNoiseChannel]]
	sample := -vol
	if c.noiseOutput {
		sample = vol
	}
	if c.stereoMask&0x80 != 0 {
		left += sample
	}
	if c.stereoMask&0x08 != 0 {
		right += sample
	}

	// Four channels at full scale sum to 4.0; normalise to [-1, 1]
	return left * 0.25, right * 0.25
}
