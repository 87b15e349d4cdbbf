package demod

import (
	"fmt"

	"hz.tools/rf"

	"github.com/sdrkit/fmradion/agc"
	"github.com/sdrkit/fmradion/discriminator"
	"github.com/sdrkit/fmradion/dsp"
	"github.com/sdrkit/fmradion/internal/filterdesign"
	"github.com/sdrkit/fmradion/resample"
)

// nbfmInternalRate is the NBFM chain's fixed internal rate.
const nbfmInternalRate = 48000

// NBFMChannelWidth selects one of the four supported narrow-band channel
// widths.
type NBFMChannelWidth int

const (
	NBFMWidth6250 NBFMChannelWidth = iota
	NBFMWidth8000
	NBFMWidth10000
	NBFMWidth20000
)

func (w NBFMChannelWidth) halfBandwidthHz() float64 {
	switch w {
	case NBFMWidth6250:
		return 6250
	case NBFMWidth8000:
		return 8000
	case NBFMWidth10000:
		return 10000
	case NBFMWidth20000:
		return 20000
	default:
		return 6250
	}
}

// deviationHz returns the discriminator's full-scale deviation for this
// channel width: narrower channels carry a proportionally smaller
// deviation than broadcast FM's 75kHz.
func (w NBFMChannelWidth) deviationHz() float64 {
	return w.halfBandwidthHz() * 0.4
}

// NBFMConfig parametrizes an NBFMChain.
type NBFMConfig struct {
	IFRate                 uint
	Width                  NBFMChannelWidth
	SquelchThresholdLinear float64
	SquelchHoldBlocks      int
}

// NBFMChain decodes narrow-band FM from IF to audio: IF AGC, a narrow
// complex FIR, then a phase discriminator scaled to the channel's
// deviation.
type NBFMChain struct {
	cfg NBFMConfig

	ifRes *resample.Complex
	ifAGC *agc.AGC
	bpf   *dsp.FIRComplex
	disc  *discriminator.Discriminator

	squelchBelow int

	filtered []complex64
	audio    []float64
}

// NewNBFMChain builds an NBFMChain.
func NewNBFMChain(cfg NBFMConfig) (*NBFMChain, error) {
	ifRes, err := resample.NewComplex(cfg.IFRate, nbfmInternalRate, rf.Hz(nbfmInternalRate)/2)
	if err != nil {
		return nil, fmt.Errorf("demod: building NBFM IF resampler: %w", err)
	}

	halfBW := rf.Hz(cfg.Width.halfBandwidthHz())
	taps, err := filterdesign.BandpassTaps(127, 4096, nbfmInternalRate, 0, halfBW)
	if err != nil {
		return nil, fmt.Errorf("demod: building NBFM channel filter: %w", err)
	}

	return &NBFMChain{
		cfg:   cfg,
		ifRes: ifRes,
		ifAGC: agc.New(agc.IFDefault()),
		bpf:   dsp.NewFIRComplex(taps),
		disc:  discriminator.New(cfg.Width.deviationHz(), nbfmInternalRate),
	}, nil
}

// ProcessBlock decodes one IQ block into mono audio.
func (n *NBFMChain) ProcessBlock(iq []complex64) (audio []float64, squelched bool) {
	ifOut := n.ifRes.Process(iq)
	n.ifAGC.ProcessComplex(ifOut)

	if cap(n.filtered) < len(ifOut) {
		n.filtered = make([]complex64, len(ifOut))
	}
	filtered := n.filtered[:len(ifOut)]
	n.bpf.Process(filtered, ifOut)

	if cap(n.audio) < len(filtered) {
		n.audio = make([]float64, len(filtered))
	}
	out := n.audio[:len(filtered)]
	n.disc.Process(out, filtered)

	squelched = n.updateSquelch()
	if squelched {
		for i := range out {
			out[i] = 0
		}
	}
	return out, squelched
}

func (n *NBFMChain) updateSquelch() bool {
	if n.cfg.SquelchThresholdLinear <= 0 {
		return false
	}
	if n.ifAGC.Level() < n.cfg.SquelchThresholdLinear {
		n.squelchBelow++
	} else {
		n.squelchBelow = 0
	}
	hold := n.cfg.SquelchHoldBlocks
	if hold <= 0 {
		hold = 1
	}
	return n.squelchBelow >= hold
}
