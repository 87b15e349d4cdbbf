// Package filterdesign builds static FIR filter taps in the frequency
// domain: a passband mask is placed over the bins of an FFT-sized buffer
// and the buffer is unwound to real-space taps via an inverse FFT. The
// mask is built once, at filter-construction time, and windowed down to a
// short tap count suitable for streaming FIR application (see
// dsp.FIRComplex).
package filterdesign

import (
	"fmt"
	"math"

	"hz.tools/fftw"
	"hz.tools/rf"
	"hz.tools/sdr"
	"hz.tools/sdr/fft"
)

// Order controls which half of the FFT buffer carries the zero frequency,
// matching hz.tools/sdr/fft.Order's ZeroFirst/ZeroCenter conventions.
type Order = fft.Order

// Mask sets dst[idx] = 1+0i for every FFT bin whose frequency falls
// within rng, leaving the rest at zero. Accepting an arbitrary rf.Range
// rather than a center+deviation pair lets it express the asymmetric
// USB/LSB passbands.
func Mask(dst []complex64, sampleRate uint, order Order, rng rf.Range) error {
	bins, err := fft.BinsByRange(dst, sampleRate, order, rng)
	if err != nil {
		return err
	}
	for _, idx := range bins {
		dst[idx] = complex64(complex(1, 0))
	}
	return nil
}

// BandpassTaps designs a symmetric (AM/DSB/NBFM) complex
// bandpass filter of ntaps taps centered at cf with half-bandwidth dv,
// using an fftSize-point frequency-domain mask windowed down to ntaps with
// a Hamming window to control time-domain ripple.
func BandpassTaps(ntaps int, fftSize int, sampleRate uint, cf, dv rf.Hz) ([]complex64, error) {
	return maskTaps(ntaps, fftSize, sampleRate, rf.Range{cf - dv, cf + dv})
}

// SidebandTaps designs an asymmetric complex bandpass filter covering
// only one sideband, used for USB/LSB/CW: lo < hi, and either may be
// negative to select the lower sideband.
func SidebandTaps(ntaps int, fftSize int, sampleRate uint, lo, hi rf.Hz) ([]complex64, error) {
	return maskTaps(ntaps, fftSize, sampleRate, rf.Range{lo, hi})
}

func maskTaps(ntaps int, fftSize int, sampleRate uint, rng rf.Range) ([]complex64, error) {
	mask := make([]complex64, fftSize)
	if err := Mask(mask, sampleRate, fft.ZeroFirst, rng); err != nil {
		return nil, err
	}

	full, err := idft(mask)
	if err != nil {
		return nil, err
	}
	return centerAndWindow(full, ntaps), nil
}

// idft inverse-transforms a frequency-domain mask back to an impulse
// response using an fftw.Plan. Filter design runs once per demodulator
// construction, never in the per-sample hot path. The backward transform
// is unnormalized, so the result is scaled down by the buffer length
// here.
func idft(freq []complex64) ([]complex128, error) {
	iq := make(sdr.SamplesC64, len(freq))
	fbuf := make([]complex64, len(freq))
	copy(fbuf, freq)

	plan, err := fftw.Plan(iq, fbuf, fft.Backward)
	if err != nil {
		return nil, fmt.Errorf("filterdesign: planning inverse transform: %w", err)
	}
	defer plan.Close()
	if err := plan.Transform(); err != nil {
		return nil, fmt.Errorf("filterdesign: inverse transform: %w", err)
	}

	n := complex(float64(len(iq)), 0)
	out := make([]complex128, len(iq))
	for i, v := range iq {
		out[i] = complex128(v) / n
	}
	return out, nil
}

// centerAndWindow takes the (circularly shifted, so the peak impulse
// response sits at index 0) impulse response, rotates it so the peak sits
// at the center, truncates to ntaps, and applies a Hamming window.
func centerAndWindow(full []complex128, ntaps int) []complex64 {
	n := len(full)
	half := ntaps / 2
	out := make([]complex64, ntaps)
	for i := 0; i < ntaps; i++ {
		srcIdx := ((i - half) + n) % n
		w := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(ntaps-1))
		out[i] = complex64(full[srcIdx] * complex(w, 0))
	}
	return out
}

// PrototypeLowpass designs a real-valued low-pass prototype filter used
// by the polyphase resampler, with cutoff cutoffHz at sampleRate. The
// mask is symmetric about DC, so its inverse transform is real-valued (up
// to floating-point noise); only the real part is kept.
func PrototypeLowpass(ntaps int, fftSize int, sampleRate uint, cutoffHz rf.Hz) ([]float32, error) {
	taps, err := maskTaps(ntaps, fftSize, sampleRate, rf.Range{-cutoffHz, cutoffHz})
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(taps))
	for i, t := range taps {
		out[i] = real(t)
	}
	return out, nil
}
