package dsp

import "math"

// Deemphasis is a single-pole low-pass IIR filter compensating a
// transmitter's pre-emphasis curve, with time constant tau in seconds
// (typically 50us for EU or 75us for US broadcast FM).
//
// A tau of zero makes the filter the identity, which is useful for
// AM-family chains that want the same type used with a much longer,
// audio-band time constant.
type Deemphasis struct {
	alpha float64
	y     float64
}

// NewDeemphasis builds a deemphasis filter for the given tau (seconds) and
// sample rate (Hz).
func NewDeemphasis(tau float64, sampleRate float64) *Deemphasis {
	d := &Deemphasis{}
	d.SetTau(tau, sampleRate)
	return d
}

// SetTau recomputes the filter coefficient for a new time constant without
// resetting the running state.
func (d *Deemphasis) SetTau(tau float64, sampleRate float64) {
	if tau <= 0 {
		d.alpha = 1 // identity: y[n] = x[n]
		return
	}
	dt := 1.0 / sampleRate
	d.alpha = dt / (tau + dt)
}

// Process applies the filter in place over buf.
func (d *Deemphasis) Process(buf []float64) {
	y := d.y
	a := d.alpha
	for i, x := range buf {
		y = a*x + (1-a)*y
		buf[i] = y
	}
	d.y = y
}

// DCBlocker removes a slowly varying DC offset with a one-pole high-pass:
// y[n] = x[n] - x[n-1] + r*y[n-1]. r close to (but below) 1 gives a very
// low cutoff, appropriate for cleaning up demodulator output ahead of an
// audio sink.
type DCBlocker struct {
	r     float64
	xPrev float64
	yPrev float64
}

// NewDCBlocker builds a DC blocker with pole radius r (0 < r < 1, typically
// ~0.9999 at audio sample rates).
func NewDCBlocker(r float64) *DCBlocker {
	return &DCBlocker{r: r}
}

// Process applies the filter in place over buf.
func (b *DCBlocker) Process(buf []float64) {
	x1, y1, r := b.xPrev, b.yPrev, b.r
	for i, x := range buf {
		y := x - x1 + r*y1
		buf[i] = y
		x1, y1 = x, y
	}
	b.xPrev, b.yPrev = x1, y1
}

// MovingAverage maintains a running mean over the last N samples seen,
// implemented with a circular buffer and a running sum so Value() is
// O(1). It exists purely for telemetry display (PPM averaging); it must
// never feed a control loop.
type MovingAverage struct {
	window []float64
	pos    int
	filled int
	sum    float64
}

// NewMovingAverage builds a moving average over the given window length.
func NewMovingAverage(window int) *MovingAverage {
	return &MovingAverage{window: make([]float64, window)}
}

// Add records a new sample.
func (m *MovingAverage) Add(v float64) {
	n := len(m.window)
	old := m.window[m.pos]
	m.window[m.pos] = v
	m.sum += v - old
	m.pos = (m.pos + 1) % n
	if m.filled < n {
		m.filled++
	}
}

// Value returns the current mean, or 0 if nothing has been added yet.
func (m *MovingAverage) Value() float64 {
	if m.filled == 0 {
		return 0
	}
	return m.sum / float64(m.filled)
}

// FastAtan2 is a polynomial approximation of math.Atan2 accurate to
// within about 0.004 radians (0.22 degrees) over the full input range, used in the phase
// discriminator and the pilot PLL's phase detector hot paths where
// math.Atan2's precision is unnecessary. It has the same signature and
// quadrant conventions as math.Atan2.
func FastAtan2(y, x float64) float64 {
	if x == 0 && y == 0 {
		return 0
	}

	abs := func(v float64) float64 {
		if v < 0 {
			return -v
		}
		return v
	}

	ax, ay := abs(x), abs(y)
	var angle float64
	if ax > ay {
		r := ay / ax
		angle = fastAtanPoly(r)
	} else if ay != 0 {
		r := ax / ay
		angle = math.Pi/2 - fastAtanPoly(r)
	} else {
		angle = 0
	}

	switch {
	case x < 0 && y >= 0:
		angle = math.Pi - angle
	case x < 0 && y < 0:
		angle = angle - math.Pi
	case x >= 0 && y < 0:
		angle = -angle
	}
	return angle
}

// fastAtanPoly approximates atan(r) for r in [0,1] using a quadratic,
// the standard "fast atan" constants used throughout embedded/SDR DSP code.
func fastAtanPoly(r float64) float64 {
	return r * (math.Pi/4 + 0.273*(1-abs64(r)))
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
