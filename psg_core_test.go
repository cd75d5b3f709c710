package main

import (
	"testing"
)

func TestPSGCore_VolumeTable(t *testing.T) {
	if psgVolumeTable[0] != 1.0 {
		t.Errorf("attenuation 0: got %v, want 1.0", psgVolumeTable[0])
	}
	if psgVolumeTable[15] != 0 {
		t.Errorf("attenuation 15: got %v, want 0", psgVolumeTable[15])
	}
	for i := 1; i < 15; i++ {
		if psgVolumeTable[i] >= psgVolumeTable[i-1] {
			t.Errorf("volume table not decreasing at %d: %v >= %v", i, psgVolumeTable[i], psgVolumeTable[i-1])
		}
	}
}

func TestPSGCore_LatchDataProtocol(t *testing.T) {
	core := NewPSGCore(SN76489_CLOCK, SAMPLE_RATE)

	// Latch: ch0 tone, low nibble 5. Data: high bits 0x10.
	core.WriteData(0x85)
	core.WriteData(0x10)
	if core.tonePeriod[0] != 0x105 {
		t.Errorf("ch0 period: got 0x%03X, want 0x105", core.tonePeriod[0])
	}

	// A second data byte replaces the high bits, keeping the latched low bits.
	core.WriteData(0x3F)
	if core.tonePeriod[0] != 0x3F5 {
		t.Errorf("ch0 period after second data byte: got 0x%03X, want 0x3F5", core.tonePeriod[0])
	}

	// Attenuation latch is complete in one byte.
	core.WriteData(0x9A)
	if core.atten[0] != 0x0A {
		t.Errorf("ch0 attenuation: got %d, want 10", core.atten[0])
	}
}

func TestPSGCore_ToneFrequency(t *testing.T) {
	core := NewPSGCore(SN76489_CLOCK, SAMPLE_RATE)

	// Channel 0: divider 100 -> 3579545/(32*100) = 1118.6 Hz.
	core.WriteData(0x84)       // latch ch0 tone, low = 4
	core.WriteData(0x06)       // data: high = 6 -> divider 100
	core.WriteData(0x90)       // ch0 attenuation 0
	for ch := uint8(1); ch < 4; ch++ {
		core.WriteData(0x90 | ch<<5 | 0x0F) // silence the rest
	}

	flips := 0
	var last float32
	for i := 0; i < SAMPLE_RATE; i++ {
		l, _ := core.RunSample()
		if i > 0 && ((l > 0) != (last > 0)) && l != 0 {
			flips++
		}
		last = l
	}
	// Two flips per cycle: expect about 2237.
	if flips < 2100 || flips > 2400 {
		t.Errorf("output flips in 1s: got %d, want about 2237", flips)
	}
}

func TestPSGCore_SilentWhenAttenuated(t *testing.T) {
	core := NewPSGCore(SN76489_CLOCK, SAMPLE_RATE)
	core.WriteData(0x84)
	core.WriteData(0x06)
	// All channels stay at power-on attenuation 15.

	for i := 0; i < 1000; i++ {
		l, r := core.RunSample()
		if l != 0 || r != 0 {
			t.Fatalf("sample %d: got (%v, %v), want silence", i, l, r)
		}
	}
}

func TestPSGCore_StereoMask(t *testing.T) {
	core := NewPSGCore(SN76489_CLOCK, SAMPLE_RATE)
	core.WriteData(0x84)
	core.WriteData(0x06)
	core.WriteData(0x90) // ch0 full volume

	// Channel 0 to the left ear only: left enable bit 4, no right bits.
	core.WriteStereo(0x10)

	var leftEnergy, rightEnergy float64
	for i := 0; i < 4096; i++ {
		l, r := core.RunSample()
		leftEnergy += float64(l * l)
		rightEnergy += float64(r * r)
	}
	if leftEnergy == 0 {
		t.Error("left channel silent despite enable bit")
	}
	if rightEnergy != 0 {
		t.Errorf("right channel leaked energy %v with enable bit clear", rightEnergy)
	}
}

func TestPSGCore_NoiseModes(t *testing.T) {
	// White noise (bit 2 set) must produce both output states in a short
	// window; the shift register starts full of zeroes except the seed.
	core := NewPSGCore(SN76489_CLOCK, SAMPLE_RATE)
	core.WriteData(0xE4) // noise: white, fastest rate
	core.WriteData(0xF0) // noise attenuation 0

	seenHigh, seenLow := false, false
	for i := 0; i < SAMPLE_RATE/4; i++ {
		l, _ := core.RunSample()
		if l > 0 {
			seenHigh = true
		}
		if l < 0 {
			seenLow = true
		}
	}
	if !seenHigh || !seenLow {
		t.Errorf("white noise output: high=%v low=%v, want both", seenHigh, seenLow)
	}

	// Writing the noise register resets the shift register seed.
	if core.noiseCtrl != 0x04 {
		t.Errorf("noise control: got %d, want 4", core.noiseCtrl)
	}
	core.WriteData(0xE0)
	if core.noiseShift != 0x8000 {
		t.Errorf("noise shift after control write: got 0x%04X, want 0x8000", core.noiseShift)
	}
}
