// playback_spectrum.go - 16-band spectrum tap over the rendered stream.
//
// The playback engine pushes every rendered mono sample into a short
// ring; snapshots run one Goertzel pass per band over that window.
// Goertzel beats a full FFT here because only sixteen fixed bins are
// ever read, and it needs no per-frame allocation.

package main

import "math"

// FrequencySnapshot holds one magnitude per band, 0..SPECTRUM_MAX_VALUE.
type FrequencySnapshot [SPECTRUM_BINS]uint8

// Band centers are log-spaced across the range chip music actually
// occupies.
var (
	spectrumFreqs  [SPECTRUM_BINS]float64
	spectrumCoeffs [SPECTRUM_BINS]float64
)

func init() {
	const lo, hi = 50.0, 8000.0
	for i := range spectrumFreqs {
		f := lo * math.Pow(hi/lo, float64(i)/float64(SPECTRUM_BINS-1))
		spectrumFreqs[i] = f
		spectrumCoeffs[i] = 2 * math.Cos(2*math.Pi*f/float64(SAMPLE_RATE))
	}
}

type spectrumTap struct {
	ring [SPECTRUM_TAP_SIZE]float32
	pos  int
}

func (t *spectrumTap) push(sample float32) {
	t.ring[t.pos] = sample
	t.pos = (t.pos + 1) & (SPECTRUM_TAP_SIZE - 1)
}

func (t *spectrumTap) reset() {
	*t = spectrumTap{}
}

// snapshot walks the ring oldest-first once per band and scales the
// magnitudes so a full-scale tone pins its band.
func (t *spectrumTap) snapshot() FrequencySnapshot {
	var out FrequencySnapshot
	for b := 0; b < SPECTRUM_BINS; b++ {
		coeff := spectrumCoeffs[b]
		var s1, s2 float64
		for i := 0; i < SPECTRUM_TAP_SIZE; i++ {
			x := float64(t.ring[(t.pos+i)&(SPECTRUM_TAP_SIZE-1)])
			s0 := x + coeff*s1 - s2
			s2 = s1
			s1 = s0
		}
		power := s1*s1 + s2*s2 - coeff*s1*s2
		if power < 0 {
			power = 0
		}
		mag := math.Sqrt(power) / (SPECTRUM_TAP_SIZE / 2)
		v := int(mag * 2 * SPECTRUM_MAX_VALUE)
		if v > SPECTRUM_MAX_VALUE {
			v = SPECTRUM_MAX_VALUE
		}
		out[b] = uint8(v)
	}
	return out
}
