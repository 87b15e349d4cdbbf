// Package multipath implements an adaptive complex FIR equalizer: an
// N-tap (N odd) LMS equalizer operating on the AGC'd FM IF, with a
// startup grace period and a reset-on-anomaly rule.
package multipath

import (
	"math"
	"math/cmplx"
)

// StartupGraceBlocks is the number of blocks after construction during
// which the equalizer bypasses itself to let the AGC and pilot loop
// settle.
const StartupGraceBlocks = 100

// ReferenceFloor is the minimum reference envelope magnitude below which
// the filter is considered to have lost lock on a sane reference and is
// reset.
const ReferenceFloor = 0.01

// Config parametrizes the equalizer.
type Config struct {
	// Stages is the number of taps, N (odd; user-configured).
	Stages int
	// StepSize is the LMS adaptation step, normalized by reference power.
	StepSize float64
}

// Equalizer is an adaptive complex FIR equalizer with LMS coefficient
// updates, normalized by a running reference envelope.
type Equalizer struct {
	cfg Config

	taps    []complex64
	history []complex64
	pos     int

	refEnvelope float64 // smoothed reference envelope (running reference level)
	lastError   complex128

	blocksSeen int
}

// New constructs an equalizer with the center tap at 1+0i and all others
// zero. An even Stages is rounded up to the next odd count.
func New(cfg Config) *Equalizer {
	if cfg.Stages%2 == 0 {
		cfg.Stages++
	}
	if cfg.StepSize <= 0 {
		cfg.StepSize = 0.01
	}
	e := &Equalizer{
		cfg:     cfg,
		taps:    make([]complex64, cfg.Stages),
		history: make([]complex64, cfg.Stages),
	}
	e.reset()
	return e
}

func (e *Equalizer) reset() {
	for i := range e.taps {
		e.taps[i] = 0
	}
	e.taps[len(e.taps)/2] = 1
	e.refEnvelope = 1.0
	e.lastError = 0
}

// Error returns the LMS error of the most recently processed sample, for
// telemetry.
func (e *Equalizer) Error() complex128 { return e.lastError }

// ReferenceLevel returns the current smoothed reference envelope, for
// telemetry.
func (e *Equalizer) ReferenceLevel() float64 { return e.refEnvelope }

// Coefficients returns the current tap vector. Callers must not modify it.
func (e *Equalizer) Coefficients() []complex64 { return e.taps }

// Process filters the AGC'd IF stream src into dst (which may alias src),
// running the LMS update for each sample. During the startup grace period
// (the first StartupGraceBlocks calls to Process), the equalizer bypasses
// itself and simply copies src to dst while still tracking the reference
// envelope, so its state is warm once the grace period ends.
func (e *Equalizer) Process(dst, src []complex64) {
	bypass := e.blocksSeen < StartupGraceBlocks
	e.blocksSeen++

	for i, x := range src {
		// Running reference envelope: exponential average of |x|.
		mag := cmplx.Abs(complex128(x))
		e.refEnvelope += 0.001 * (mag - e.refEnvelope)

		if bypass || !e.healthy() {
			if !bypass {
				e.reset()
			}
			dst[i] = x
			e.history[e.pos] = x
			e.advance()
			continue
		}

		e.history[e.pos] = x
		y := e.filterOne()

		// LMS: error is the difference between the (assumed unit-gain)
		// reference and the equalized output, normalized by reference
		// power.
		err := complex128(x) - complex128(y)
		e.lastError = err

		if !e.healthy() {
			e.reset()
			dst[i] = x
			e.advance()
			continue
		}

		norm := e.refEnvelope * e.refEnvelope
		if norm < 1e-20 {
			norm = 1e-20
		}
		mu := complex(e.cfg.StepSize/norm, 0)
		idx := e.pos
		for k := range e.taps {
			e.taps[k] = complex64(complex128(e.taps[k]) + mu*err*cmplx.Conj(complex128(e.history[idx])))
			idx--
			if idx < 0 {
				idx = len(e.taps) - 1
			}
		}

		dst[i] = y
		e.advance()
	}
}

// filterOne computes the filter output assuming the newest sample has
// already been written to e.history[e.pos].
func (e *Equalizer) filterOne() complex64 {
	var acc complex64
	idx := e.pos
	for _, tap := range e.taps {
		acc += tap * e.history[idx]
		idx--
		if idx < 0 {
			idx = len(e.taps) - 1
		}
	}
	return acc
}

// advance moves the circular history write pointer forward by one sample.
func (e *Equalizer) advance() {
	e.pos++
	if e.pos >= len(e.taps) {
		e.pos = 0
	}
}

// healthy reports whether the filter's working state is still finite and
// the reference level is above the floor.
func (e *Equalizer) healthy() bool {
	if e.refEnvelope < ReferenceFloor {
		return false
	}
	if math.IsNaN(real(e.lastError)) || math.IsInf(real(e.lastError), 0) ||
		math.IsNaN(imag(e.lastError)) || math.IsInf(imag(e.lastError), 0) {
		return false
	}
	return true
}
