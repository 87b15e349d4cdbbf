// Package resample implements the receiver's fractional sample-rate
// converters (device IF rate to demodulator rate, and MPX rate to PCM
// rate): a polyphase FIR interpolator whose read position is a
// free-running fractional accumulator, so it supports arbitrary
// (non-integer) rate ratios and stays phase-continuous across blocks by
// carrying its history and fractional position forward between calls.
package resample

import (
	"math"

	"hz.tools/rf"

	"github.com/sdrkit/fmradion/internal/filterdesign"
)

const (
	numPhases     = 64
	tapsPerPhase  = 8
	designFFTSize = 8192
)

// polyphase holds a prototype low-pass filter decomposed into numPhases
// fractional-delay sub-filters, shared by the complex (IF) and real
// (audio) resamplers below.
type polyphase struct {
	phases [][]float64
	step   float64 // input samples consumed per output sample
}

func newPolyphase(inRate, outRate uint, cutoffHz rf.Hz) (*polyphase, error) {
	// The prototype is designed at the virtual upsampled rate
	// inRate*numPhases, so each branch below is an 8-tap fractional-delay
	// low-pass at the input rate.
	proto, err := filterdesign.PrototypeLowpass(numPhases*tapsPerPhase, designFFTSize, inRate*numPhases, cutoffHz)
	if err != nil {
		return nil, err
	}

	phases := make([][]float64, numPhases)
	for p := 0; p < numPhases; p++ {
		phases[p] = make([]float64, tapsPerPhase)
		sum := 0.0
		for k := 0; k < tapsPerPhase; k++ {
			// Tap order is reversed within the branch: branch p, tap k
			// must weight the input sample (base+k) by the prototype's
			// response at offset (tapsPerPhase-1-k)*numPhases + p.
			t := float64(proto[(tapsPerPhase-1-k)*numPhases+p])
			phases[p][k] = t
			sum += t
		}
		// Normalize each branch to unit DC gain; this absorbs both the
		// 1/numPhases gain of the polyphase decomposition and the
		// window's mainlobe loss.
		if sum != 0 {
			for k := range phases[p] {
				phases[p][k] /= sum
			}
		}
	}

	return &polyphase{
		phases: phases,
		step:   float64(inRate) / float64(outRate),
	}, nil
}

func (p *polyphase) phaseFor(pos float64) (base int, taps []float64) {
	ii := int(math.Floor(pos))
	frac := pos - float64(ii)
	idx := int(frac * float64(numPhases))
	if idx >= numPhases {
		idx = numPhases - 1
	}
	return ii - tapsPerPhase/2 + 1, p.phases[idx]
}

// Complex is a phase-continuous fractional resampler for complex64 IF
// streams.
type Complex struct {
	poly *polyphase
	buf  []complex64
	pos  float64
}

// NewComplex builds an IF resampler from inRate to outRate Hz, with the
// anti-alias prototype's cutoff at cutoffHz.
func NewComplex(inRate, outRate uint, cutoffHz rf.Hz) (*Complex, error) {
	poly, err := newPolyphase(inRate, outRate, cutoffHz)
	if err != nil {
		return nil, err
	}
	return &Complex{poly: poly, buf: make([]complex64, 0, tapsPerPhase*4)}, nil
}

// Process consumes src, returning as many output samples as the
// accumulated history supports; unconsumed input is retained internally
// for the next call, keeping the resampler phase-continuous across block
// boundaries.
func (c *Complex) Process(src []complex64) []complex64 {
	c.buf = append(c.buf, src...)
	half := tapsPerPhase / 2

	var out []complex64
	for c.pos+float64(half) < float64(len(c.buf)) {
		base, taps := c.poly.phaseFor(c.pos)
		var acc complex64
		for k, t := range taps {
			idx := base + k
			if idx >= 0 && idx < len(c.buf) {
				acc += complex64(complex(t, 0)) * c.buf[idx]
			}
		}
		out = append(out, acc)
		c.pos += c.poly.step
	}

	drop := int(c.pos) - half
	if drop > 0 {
		if drop > len(c.buf) {
			drop = len(c.buf)
		}
		c.buf = c.buf[drop:]
		c.pos -= float64(drop)
	}
	return out
}

// Real is the real-valued equivalent of Complex, used for the audio-rate
// resamplers.
type Real struct {
	poly *polyphase
	buf  []float64
	pos  float64
}

// NewReal builds an audio resampler from inRate to outRate Hz.
func NewReal(inRate, outRate uint, cutoffHz rf.Hz) (*Real, error) {
	poly, err := newPolyphase(inRate, outRate, cutoffHz)
	if err != nil {
		return nil, err
	}
	return &Real{poly: poly, buf: make([]float64, 0, tapsPerPhase*4)}, nil
}

// Process is Complex.Process's real-valued counterpart.
func (r *Real) Process(src []float64) []float64 {
	r.buf = append(r.buf, src...)
	half := tapsPerPhase / 2

	var out []float64
	for r.pos+float64(half) < float64(len(r.buf)) {
		base, taps := r.poly.phaseFor(r.pos)
		var acc float64
		for k, t := range taps {
			idx := base + k
			if idx >= 0 && idx < len(r.buf) {
				acc += t * r.buf[idx]
			}
		}
		out = append(out, acc)
		r.pos += r.poly.step
	}

	drop := int(r.pos) - half
	if drop > 0 {
		if drop > len(r.buf) {
			drop = len(r.buf)
		}
		r.buf = r.buf[drop:]
		r.pos -= float64(drop)
	}
	return out
}
