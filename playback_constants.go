// playback_constants.go - Shared playback and chip timing constants.

package main

const (
	// Device output rate. Both engines are resampled to this.
	SAMPLE_RATE = 44100

	// Fixed native rates per engine
	SPC_SAMPLE_RATE = 32000
	VGM_SAMPLE_RATE = 44100

	// Playback fallbacks for untagged tracks
	DEFAULT_DURATION_SECONDS = 180
	DEFAULT_FADE_MS          = 10000

	// Auto-advance fires this long after duration + fade so the fade
	// is audibly complete first
	AUTO_ADVANCE_GUARD_MS = 250

	// Spectrum snapshot shape: bin count and per-bin ceiling
	SPECTRUM_BINS      = 16
	SPECTRUM_MAX_VALUE = 255

	// Mono samples retained for spectrum analysis
	SPECTRUM_TAP_SIZE = 1024

	// Device buffer target in milliseconds
	AUDIO_BUFFER_MS = 50

	// Chip clocks
	SPC_CPU_CLOCK     = 1024000
	YM2612_CLOCK_PAL  = 7600489
	YM2612_CLOCK_NTSC = 7670453
	SN76489_CLOCK     = 3579545

	// APU timing: one DSP sample per 32 CPU cycles, timers 0/1 at
	// 8kHz and timer 2 at 64kHz
	SPC_CYCLES_PER_SAMPLE = 32
	SPC_TIMER01_DIV       = 128
	SPC_TIMER2_DIV        = 16
)
