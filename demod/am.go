package demod

import (
	"fmt"
	"math"
	"math/cmplx"

	"hz.tools/rf"

	"github.com/sdrkit/fmradion/agc"
	"github.com/sdrkit/fmradion/dsp"
	"github.com/sdrkit/fmradion/internal/filterdesign"
	"github.com/sdrkit/fmradion/resample"
)

// AMMode selects which member of the AM/DSB/USB/LSB/CW family AMChain
// decodes.
type AMMode int

const (
	ModeAM AMMode = iota
	ModeDSB
	ModeUSB
	ModeLSB
	ModeCW
)

// amInternalRate is the AM-family chain's fixed internal rate.
const amInternalRate = 48000

// cwBFOHz is CW's fixed beat-frequency oscillator offset; CW is decoded
// as USB with this fixed BFO.
const cwBFOHz = 500.0

// AMConfig parametrizes an AMChain.
type AMConfig struct {
	IFRate uint
	Mode   AMMode
	// Bandwidth is the half-bandwidth (AM/DSB) or full sideband width
	// (USB/LSB/CW) of the passband filter, in Hz.
	Bandwidth float64
	// DeemphasisTau is the audio-side slow low-pass time constant
	// (~100us class).
	DeemphasisTau          float64
	SquelchThresholdLinear float64
	SquelchHoldBlocks      int
}

// AMChain decodes AM, DSB, USB, LSB, or CW from IF to audio.
type AMChain struct {
	cfg AMConfig

	ifRes    *resample.Complex
	ifAGC    *agc.AGC
	bpf      *dsp.FIRComplex
	audioAGC *agc.AGC
	deemph   *dsp.Deemphasis

	bfoHz    float64
	bfoPhase float64

	squelchBelow int

	mixed []complex64
	audio []float64
}

// NewAMChain builds an AMChain, designing the mode-dependent passband
// filter at the fixed 48kHz internal rate.
func NewAMChain(cfg AMConfig) (*AMChain, error) {
	if cfg.Bandwidth <= 0 {
		cfg.Bandwidth = 3000
	}

	ifRes, err := resample.NewComplex(cfg.IFRate, amInternalRate, rf.Hz(amInternalRate)/2)
	if err != nil {
		return nil, fmt.Errorf("demod: building AM IF resampler: %w", err)
	}

	bfoHz := 0.0
	var taps []complex64
	switch cfg.Mode {
	case ModeAM, ModeDSB:
		taps, err = filterdesign.BandpassTaps(127, 4096, amInternalRate, 0, rf.Hz(cfg.Bandwidth))
	case ModeUSB:
		taps, err = filterdesign.SidebandTaps(127, 4096, amInternalRate, 0, rf.Hz(cfg.Bandwidth))
	case ModeLSB:
		taps, err = filterdesign.SidebandTaps(127, 4096, amInternalRate, rf.Hz(-cfg.Bandwidth), 0)
	case ModeCW:
		bfoHz = cwBFOHz
		taps, err = filterdesign.SidebandTaps(127, 4096, amInternalRate, 0, rf.Hz(cfg.Bandwidth))
	default:
		return nil, fmt.Errorf("demod: unknown AM-family mode %d", cfg.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("demod: building AM passband filter: %w", err)
	}

	return &AMChain{
		cfg:      cfg,
		ifRes:    ifRes,
		ifAGC:    agc.New(agc.IFDefault()),
		bpf:      dsp.NewFIRComplex(taps),
		audioAGC: agc.New(agc.AudioDefault(1.0)),
		deemph:   dsp.NewDeemphasis(cfg.DeemphasisTau, amInternalRate),
		bfoHz:    bfoHz,
	}, nil
}

// ProcessBlock decodes one IQ block into mono audio.
func (a *AMChain) ProcessBlock(iq []complex64) (audio []float64, squelched bool) {
	ifOut := a.ifRes.Process(iq)
	a.ifAGC.ProcessComplex(ifOut)

	if cap(a.mixed) < len(ifOut) {
		a.mixed = make([]complex64, len(ifOut))
	}
	mixed := a.mixed[:len(ifOut)]
	if a.bfoHz != 0 {
		step := 2 * math.Pi * a.bfoHz / amInternalRate
		phase := a.bfoPhase
		for i, x := range ifOut {
			osc := complex64(complex(math.Cos(phase), -math.Sin(phase)))
			mixed[i] = x * osc
			phase += step
		}
		a.bfoPhase = math.Mod(phase, 2*math.Pi)
	} else {
		copy(mixed, ifOut)
	}

	a.bpf.Process(mixed, mixed)

	if cap(a.audio) < len(mixed) {
		a.audio = make([]float64, len(mixed))
	}
	out := a.audio[:len(mixed)]
	switch a.cfg.Mode {
	case ModeAM, ModeDSB:
		for i, z := range mixed {
			out[i] = cmplx.Abs(complex128(z))
		}
	default: // USB, LSB, CW: real part after BFO mixing
		for i, z := range mixed {
			out[i] = real(complex128(z))
		}
	}

	a.deemph.Process(out)
	a.audioAGC.ProcessReal(out)

	squelched = a.updateSquelch()
	if squelched {
		for i := range out {
			out[i] = 0
		}
	}
	return out, squelched
}

func (a *AMChain) updateSquelch() bool {
	if a.cfg.SquelchThresholdLinear <= 0 {
		return false
	}
	if a.ifAGC.Level() < a.cfg.SquelchThresholdLinear {
		a.squelchBelow++
	} else {
		a.squelchBelow = 0
	}
	hold := a.cfg.SquelchHoldBlocks
	if hold <= 0 {
		hold = 1
	}
	return a.squelchBelow >= hold
}
