// Package discriminator converts a complex IF stream into instantaneous
// angular frequency via the phase of z[n]*conj(z[n-1]), normalized so a
// configured frequency deviation produces full-scale (+/-1.0) output.
package discriminator

import (
	"math"

	"github.com/sdrkit/fmradion/dsp"
)

// Discriminator converts a complex IF stream to instantaneous frequency.
type Discriminator struct {
	// gain maps a phase delta of +/-(2*pi*freqDev/sampleRate) to +/-1.0.
	gain float64
	prev complex64
}

// New constructs a discriminator normalized so that a frequency deviation
// of freqDevHz at the given sampleRate produces full-scale output.
func New(freqDevHz, sampleRate float64) *Discriminator {
	maxPhaseDelta := 2 * math.Pi * freqDevHz / sampleRate
	return &Discriminator{gain: 1.0 / maxPhaseDelta}
}

// Process converts src into dst, where dst[i] is the normalized
// instantaneous frequency between src[i] and src[i-1] (or, for i==0, the
// sample carried over from the previous call to Process, so the estimate
// is phase-continuous across block boundaries).
func (d *Discriminator) Process(dst []float64, src []complex64) {
	prev := d.prev
	for i, x := range src {
		re := float64(real(x))*float64(real(prev)) + float64(imag(x))*float64(imag(prev))
		im := float64(imag(x))*float64(real(prev)) - float64(real(x))*float64(imag(prev))
		dst[i] = dsp.FastAtan2(im, re) * d.gain
		prev = x
	}
	d.prev = prev
}
