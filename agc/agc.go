// Package agc implements the slow magnitude-tracking gain control shared
// by the FM IF AGC and the AM-family IF/audio AGC stages: track a
// smoothed magnitude estimate and push it towards a target level by
// adjusting a single scalar gain, clamped to [minGain, maxGain].
package agc

import "math"

// Config parametrizes an AGC loop. IFDefault and AudioDefault supply the
// stock configurations for the IF and audio call sites.
type Config struct {
	Target  float64 // desired steady-state magnitude
	MinGain float64
	MaxGain float64
	// Rate is the per-sample adaptation coefficient: magnitude estimate
	// moves a Rate fraction of the way to the instantaneous sample
	// magnitude on every sample (an exponential tracker).
	Rate float64
}

// IFDefault returns the IF AGC configuration: target ~1.0 peak, gain in
// [1, 10000] (80dB ceiling), time constant ~0.001 reciprocal/sample.
func IFDefault() Config {
	return Config{Target: 1.0, MinGain: 1.0, MaxGain: 10000.0, Rate: 0.001}
}

// AudioDefault returns the audio AGC configuration: ceiling 5x (~14dB),
// faster peak-tracking rate than the IF loop.
func AudioDefault(target float64) Config {
	return Config{Target: target, MinGain: 1.0, MaxGain: 5.0, Rate: 0.01}
}

// AGC is a single-channel magnitude-tracking gain control.
type AGC struct {
	cfg   Config
	gain  float64
	level float64
}

// New constructs an AGC starting at unity gain.
func New(cfg Config) *AGC {
	return &AGC{cfg: cfg, gain: 1.0}
}

// Gain returns the current gain.
func (a *AGC) Gain() float64 { return a.gain }

// Level returns the current smoothed magnitude estimate (pre-gain).
func (a *AGC) Level() float64 { return a.level }

func (a *AGC) track(mag float64) {
	a.level += a.cfg.Rate * (mag - a.level)
	if a.level > 1e-12 {
		wantGain := a.cfg.Target / a.level
		a.gain += a.cfg.Rate * (wantGain - a.gain)
	}
	if a.gain < a.cfg.MinGain {
		a.gain = a.cfg.MinGain
	}
	if a.gain > a.cfg.MaxGain {
		a.gain = a.cfg.MaxGain
	}
}

// ProcessComplex applies the AGC to a complex64 IF stream in place,
// tracking magnitude and scaling by the running gain.
func (a *AGC) ProcessComplex(buf []complex64) {
	for i, x := range buf {
		mag := math.Hypot(float64(real(x)), float64(imag(x)))
		a.track(mag)
		buf[i] = complex64(complex(float64(real(x))*a.gain, float64(imag(x))*a.gain))
	}
}

// ProcessReal applies the AGC to a real-valued (audio-side) stream in
// place, using the absolute value as the instantaneous magnitude.
func (a *AGC) ProcessReal(buf []float64) {
	for i, x := range buf {
		mag := math.Abs(x)
		a.track(mag)
		buf[i] = x * a.gain
	}
}
