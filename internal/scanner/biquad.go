package scanner

import (
	"fmt"
	"math"
)

// biquad is a second-order IIR filter section, direct form 1.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// newHighPass builds a Butterworth high-pass biquad. The cutoff must sit
// below Nyquist; scanning 8 kHz material for 6 kHz energy is a config error,
// not something to silently clamp.
func newHighPass(sampleRate int, cutoffHz float64) (*biquad, error) {
	nyquist := float64(sampleRate) / 2
	if cutoffHz <= 0 || cutoffHz >= nyquist {
		return nil, fmt.Errorf("high-pass cutoff %.0f Hz outside (0, %.0f) for %d Hz material", cutoffHz, nyquist, sampleRate)
	}

	q := math.Sqrt2 / 2
	omega := 2 * math.Pi * cutoffHz / float64(sampleRate)
	sinW, cosW := math.Sin(omega), math.Cos(omega)
	alpha := sinW / (2 * q)

	a0 := 1 + alpha
	return &biquad{
		b0: (1 + cosW) / 2 / a0,
		b1: -(1 + cosW) / a0,
		b2: (1 + cosW) / 2 / a0,
		a1: -2 * cosW / a0,
		a2: (1 - alpha) / a0,
	}, nil
}

func (f *biquad) process(in []float64) []float64 {
	out := make([]float64, len(in))
	var x1, x2, y1, y2 float64
	for i, x := range in {
		y := f.b0*x + f.b1*x1 + f.b2*x2 - f.a1*y1 - f.a2*y2
		out[i] = y
		x2, x1 = x1, x
		y2, y1 = y1, y
	}
	return out
}
