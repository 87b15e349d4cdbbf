// Package dsp holds the shared DSP building blocks used across every
// demodulator: FIR filter application (real and complex), single-pole IIR
// deemphasis, a DC blocker, a moving average, and a fast atan2
// approximation. Each type keeps just enough state to be safely advanced
// one block at a time, so a chain of these can be driven phase-continuously
// across arbitrarily sized blocks.
package dsp

// FIRComplex applies a fixed complex tap set to a complex64 stream using a
// circular history buffer, so state survives across block boundaries.
type FIRComplex struct {
	taps    []complex64
	history []complex64
	pos     int
}

// NewFIRComplex constructs a complex FIR filter from the given taps.
func NewFIRComplex(taps []complex64) *FIRComplex {
	return &FIRComplex{
		taps:    append([]complex64(nil), taps...),
		history: make([]complex64, len(taps)),
	}
}

// Taps returns the filter's current tap vector. Callers must not modify it.
func (f *FIRComplex) Taps() []complex64 { return f.taps }

// SetTaps replaces the tap vector in place; history is unaffected.
func (f *FIRComplex) SetTaps(taps []complex64) {
	copy(f.taps, taps)
}

// Process filters src into dst (which may alias src) one sample at a time.
func (f *FIRComplex) Process(dst, src []complex64) {
	n := len(f.taps)
	for i, x := range src {
		f.history[f.pos] = x

		var acc complex64
		idx := f.pos
		for _, tap := range f.taps {
			acc += tap * f.history[idx]
			idx--
			if idx < 0 {
				idx = n - 1
			}
		}
		dst[i] = acc

		f.pos++
		if f.pos >= n {
			f.pos = 0
		}
	}
}

// FIRReal is the real-valued equivalent of FIRComplex, used by the audio
// side pilot-cut and narrowband filters.
type FIRReal struct {
	taps    []float64
	history []float64
	pos     int
}

// NewFIRReal constructs a real FIR filter from the given taps.
func NewFIRReal(taps []float64) *FIRReal {
	return &FIRReal{
		taps:    append([]float64(nil), taps...),
		history: make([]float64, len(taps)),
	}
}

// Process filters src into dst (which may alias src) one sample at a time.
func (f *FIRReal) Process(dst, src []float64) {
	n := len(f.taps)
	for i, x := range src {
		f.history[f.pos] = x

		var acc float64
		idx := f.pos
		for _, tap := range f.taps {
			acc += tap * f.history[idx]
			idx--
			if idx < 0 {
				idx = n - 1
			}
		}
		dst[i] = acc

		f.pos++
		if f.pos >= n {
			f.pos = 0
		}
	}
}
