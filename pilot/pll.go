// Package pilot implements the FM stereo pilot PLL: a type-2, 4th-order
// PLL that locks the 19kHz stereo pilot tone, emits the 38kHz
// subcarrier (or a 90-degree-shifted variant for external QMM analysis),
// and derives a pulse-per-second timing reference from the locked pilot
// phase.
package pilot

import (
	"math"

	"github.com/sdrkit/fmradion/dsp"
)

// PilotFrequencyHz is the nominal stereo pilot frequency.
const PilotFrequencyHz = 19000.0

// Event is a single pulse-per-second tick derived from the locked pilot.
type Event struct {
	PPSIndex    int
	SampleIndex int64
	BlockPos    float64 // in [0,1)
}

// Config parametrizes the PLL.
type Config struct {
	SampleRate float64 // MPX sample rate, Hz
	// Bandwidth is the loop bandwidth in Hz (50Hz typical), converted
	// internally to the dimensionless b = Bandwidth/SampleRate used by
	// the coefficient formulas below.
	Bandwidth float64
	// MinSignal is the minimum 2*pilotLevel required to be considered
	// locked.
	MinSignal float64
	// PilotShift rotates the emitted subcarrier by 90 degrees, for
	// external QMM analysis.
	PilotShift bool
}

// PLL is the stateful pilot-locked loop.
type PLL struct {
	cfg Config
	b   float64 // normalized bandwidth

	freq  float64 // radians/sample
	phase float64 // radians, kept in [0, 2pi)

	minFreq, maxFreq float64

	// Biquad low-pass coefficients, shared by the I and Q channels.
	a1, a2, b0 float64
	// Loop filter coefficients.
	c0, c1 float64

	iY1, iY2 float64
	qY1, qY2 float64
	ePrev    float64

	lockCnt   float64
	lockDelay float64
	locked    bool

	blockMinI float64

	pilotPeriods float64
	ppsCnt       int
	sampleIndex  int64
}

// New constructs a pilot PLL. The oscillator starts centered on the
// nominal pilot frequency.
func New(cfg Config) *PLL {
	p := &PLL{cfg: cfg}
	p.b = cfg.Bandwidth / cfg.SampleRate

	nominal := 2 * math.Pi * PilotFrequencyHz / cfg.SampleRate
	p.freq = nominal
	p.minFreq = nominal - 2*math.Pi*p.b
	p.maxFreq = nominal + 2*math.Pi*p.b

	tau := 2 * math.Pi
	p1 := math.Exp(-1.146 * tau * p.b)
	p2 := math.Exp(-5.331 * tau * p.b)
	q1 := math.Exp(-0.1153 * tau * p.b)

	p.a1 = -(p1 + p2)
	p.a2 = p1 * p2
	p.b0 = 1 + p.a1 + p.a2

	p.c0 = 0.62 * tau * p.b
	p.c1 = -p.c0 * q1

	p.lockDelay = 20.0 / p.b
	p.blockMinI = math.Inf(1)

	return p
}

// Locked reports the raw lock predicate, independent of any
// stereo-detection display policy (see demod.StereoPolicy, an open
// question resolved in DESIGN.md).
func (p *PLL) Locked() bool { return p.locked }

// Frequency returns the current oscillator frequency in radians/sample.
func (p *PLL) Frequency() float64 { return p.freq }

// ProcessBlock mixes the pilot out of mpx, emitting the 38kHz subcarrier
// (or its 90-degree-shifted variant) into sub, and returns any PPS events
// generated while processing this block. Lock state is (re-)evaluated once
// at the end of the block, using the minimum filtered in-phase level seen
// across it, a conservative estimate of the pilot level.
func (p *PLL) ProcessBlock(sub []float64, mpx []float64) []Event {
	var events []Event
	blockLen := len(mpx)

	for i, x := range mpx {
		sinP, cosP := math.Sin(p.phase), math.Cos(p.phase)

		if p.cfg.PilotShift {
			sub[i] = 2*cosP*cosP - 1 // cos(2*phase)
		} else {
			sub[i] = 2 * sinP * cosP // sin(2*phase)
		}

		I := sinP * x
		Q := cosP * x

		yI := p.b0*I - p.a1*p.iY1 - p.a2*p.iY2
		p.iY2, p.iY1 = p.iY1, yI
		yQ := p.b0*Q - p.a1*p.qY1 - p.a2*p.qY2
		p.qY2, p.qY1 = p.qY1, yQ

		if yI < p.blockMinI {
			p.blockMinI = yI
		}

		err := dsp.FastAtan2(yQ, yI)
		delta := p.c0*err + p.c1*p.ePrev
		p.ePrev = err

		p.freq += delta
		if p.freq < p.minFreq {
			p.freq = p.minFreq
		}
		if p.freq > p.maxFreq {
			p.freq = p.maxFreq
		}

		p.phase += p.freq
		if p.phase >= 2*math.Pi {
			p.phase -= 2 * math.Pi
			p.pilotPeriods++
			if p.pilotPeriods >= PilotFrequencyHz {
				p.pilotPeriods -= PilotFrequencyHz
				if p.locked {
					events = append(events, Event{
						PPSIndex:    p.ppsCnt,
						SampleIndex: p.sampleIndex,
						BlockPos:    float64(i) / float64(blockLen),
					})
					p.ppsCnt++
				}
			}
		}

		p.sampleIndex++
	}

	p.updateLock(blockLen)
	return events
}

// updateLock applies the lock hysteresis state machine using the block's
// tracked minimum in-phase level, then resets the per-block tracker for
// the next call.
func (p *PLL) updateLock(blockLen int) {
	level := p.blockMinI
	p.blockMinI = math.Inf(1)

	above := 2*level > p.cfg.MinSignal
	if above {
		p.lockCnt += float64(blockLen)
		if p.lockCnt >= p.lockDelay {
			p.locked = true
		}
	} else {
		p.lockCnt = 0
		if p.locked {
			p.locked = false
		}
		// Loss of signal immediately discards pending PPS state.
		p.pilotPeriods = 0
		p.ppsCnt = 0
	}
}
