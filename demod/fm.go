// Package demod assembles the per-mode decode chains out of the shared
// DSP blocks: wideband FM with stereo pilot separation, the AM-family
// envelope/SSB chain, and NBFM.
package demod

import (
	"fmt"

	"hz.tools/rf"

	"github.com/sdrkit/fmradion/agc"
	"github.com/sdrkit/fmradion/discriminator"
	"github.com/sdrkit/fmradion/dsp"
	"github.com/sdrkit/fmradion/internal/filterdesign"
	"github.com/sdrkit/fmradion/multipath"
	"github.com/sdrkit/fmradion/pilot"
	"github.com/sdrkit/fmradion/resample"
	"github.com/sdrkit/fmradion/shift"
)

// StereoPolicy selects how stereo detection is decided: follow the PLL's
// raw lock predicate, or always treat the signal as stereo (useful when
// measuring PLL phase noise on a generator signal).
type StereoPolicy int

const (
	// StereoPolicyFollowLock uses pilot.PLL.Locked() to decide the
	// stereo/mono output split. This is the default.
	StereoPolicyFollowLock StereoPolicy = iota
	// StereoPolicyAlwaysOn always treats the signal as stereo-detected.
	StereoPolicyAlwaysOn
)

// AudioBandwidthHz is the nominal post-demod audio low-pass used by the
// pilot-cut filter on both the mono and stereo paths, implemented as a
// lowpass below the 19kHz pilot rather than a notch since downsampling to
// audio rate already attenuates everything above it.
const AudioBandwidthHz = 15000.0

// stereoBoost is the empirical L-R channel gain applied before matrixing;
// it measurably improves channel separation.
const stereoBoost = 1.017

// FMConfig parametrizes an FMChain.
type FMConfig struct {
	// IFRate is the device's raw IQ sample rate in Hz.
	IFRate uint
	// ZeroIF selects whether the Fs/4 shifter runs ahead of the IF
	// resampler (device is zero-IF) or is skipped (device output is
	// already centered on a low IF).
	ZeroIF bool
	// MPXRate is the FM demodulator's internal rate (typical 384kHz).
	MPXRate uint
	// AudioRate is the output PCM rate (typical 48kHz).
	AudioRate uint
	// FreqDeviationHz is the maximum FM deviation (75kHz for broadcast).
	FreqDeviationHz float64
	// DeemphasisTau is 50e-6 (EU) or 75e-6 (US) seconds; zero disables it.
	DeemphasisTau float64
	// MultipathStages is the user-configured equalizer tap count.
	MultipathStages int
	// PilotBandwidthHz is the PLL loop bandwidth (50Hz typical).
	PilotBandwidthHz float64
	// PilotMinSignal is the minimum 2*pilot_level required to lock.
	PilotMinSignal float64
	// PilotShift rotates the stereo subcarrier 90 degrees for external
	// QMM analysis.
	PilotShift bool
	// StereoPolicy selects how stereo detection is decided.
	StereoPolicy StereoPolicy
	// ForceMono overrides StereoPolicy and always takes the mono output
	// branch.
	ForceMono bool
	// SquelchThresholdLinear mutes audio output when the IF AGC's
	// smoothed magnitude estimate stays below this level; zero disables
	// squelch entirely.
	SquelchThresholdLinear float64
	// SquelchHoldBlocks is the number of consecutive below-threshold
	// blocks required before audio is muted.
	SquelchHoldBlocks int
}

// FMChain decodes wideband FM (mono or stereo) from IF to audio.
type FMChain struct {
	cfg FMConfig

	shifter *shift.Shifter
	ifRes   *resample.Complex
	ifAGC   *agc.AGC
	eq      *multipath.Equalizer
	disc    *discriminator.Discriminator
	pll     *pilot.PLL

	monoDeemph   *dsp.Deemphasis
	monoRes      *resample.Real
	monoCut      *dsp.FIRReal
	monoDC       *dsp.DCBlocker
	stereoDeemph *dsp.Deemphasis
	stereoRes    *resample.Real
	stereoCut    *dsp.FIRReal
	stereoDC     *dsp.DCBlocker

	squelchBelow int

	// scratch buffers, reused across ProcessBlock calls to avoid
	// reallocating on every block.
	shifted   []complex64
	equalized []complex64
	mpx       []float64
	sub       []float64
	lr        []float64
}

// NewFMChain builds an FMChain, designing the pilot-cut audio filters from
// the target audio rate.
func NewFMChain(cfg FMConfig) (*FMChain, error) {
	if cfg.MultipathStages <= 0 {
		cfg.MultipathStages = 9
	}

	ifRes, err := resample.NewComplex(cfg.IFRate, cfg.MPXRate, rf.Hz(cfg.MPXRate)/2)
	if err != nil {
		return nil, fmt.Errorf("demod: building FM IF resampler: %w", err)
	}

	cutTaps, err := filterdesign.PrototypeLowpass(63, 4096, cfg.AudioRate, rf.Hz(AudioBandwidthHz))
	if err != nil {
		return nil, fmt.Errorf("demod: building FM pilot-cut filter: %w", err)
	}
	cutTapsF64 := make([]float64, len(cutTaps))
	for i, t := range cutTaps {
		cutTapsF64[i] = float64(t)
	}

	monoRes, err := resample.NewReal(cfg.MPXRate, cfg.AudioRate, rf.Hz(AudioBandwidthHz))
	if err != nil {
		return nil, fmt.Errorf("demod: building FM mono resampler: %w", err)
	}
	stereoRes, err := resample.NewReal(cfg.MPXRate, cfg.AudioRate, rf.Hz(AudioBandwidthHz))
	if err != nil {
		return nil, fmt.Errorf("demod: building FM stereo resampler: %w", err)
	}

	f := &FMChain{
		cfg: cfg,

		shifter: shift.New(),
		ifRes:   ifRes,
		ifAGC:   agc.New(agc.IFDefault()),
		eq: multipath.New(multipath.Config{
			Stages:   cfg.MultipathStages,
			StepSize: 0.01,
		}),
		disc: discriminator.New(cfg.FreqDeviationHz, float64(cfg.MPXRate)),
		pll: pilot.New(pilot.Config{
			SampleRate: float64(cfg.MPXRate),
			Bandwidth:  cfg.PilotBandwidthHz,
			MinSignal:  cfg.PilotMinSignal,
			PilotShift: cfg.PilotShift,
		}),

		monoDeemph:   dsp.NewDeemphasis(cfg.DeemphasisTau, float64(cfg.MPXRate)),
		monoRes:      monoRes,
		monoCut:      dsp.NewFIRReal(cutTapsF64),
		monoDC:       dsp.NewDCBlocker(0.9999),
		stereoDeemph: dsp.NewDeemphasis(cfg.DeemphasisTau, float64(cfg.MPXRate)),
		stereoRes:    stereoRes,
		stereoCut:    dsp.NewFIRReal(cutTapsF64),
		stereoDC:     dsp.NewDCBlocker(0.9999),
	}
	return f, nil
}

// PLL returns the pilot PLL, for telemetry (lock state, frequency) and for
// wiring PPS output.
func (f *FMChain) PLL() *pilot.PLL { return f.pll }

// Equalizer returns the multipath equalizer, for telemetry.
func (f *FMChain) Equalizer() *multipath.Equalizer { return f.eq }

// IFAGC returns the IF AGC, for telemetry and squelch level inspection.
func (f *FMChain) IFAGC() *agc.AGC { return f.ifAGC }

// Result is one decoded FM audio block.
type Result struct {
	// Audio is interleaved (left, right) samples at the configured audio
	// rate; mono output duplicates the single channel into both slots.
	Audio []float64
	// Events are any PPS events generated while decoding this block.
	Events []pilot.Event
	// StereoDetected reflects whichever policy FMConfig.StereoPolicy
	// selected.
	StereoDetected bool
	// Squelched is true if this block's audio was muted by the squelch
	// gate.
	Squelched bool
}

// ProcessBlock decodes one IQ block into one audio Result. Even when the
// squelch gate is muting output or the pilot is unlocked, the stereo
// resampler is still driven on every call so its state stays
// phase-aligned with the mono resampler.
func (f *FMChain) ProcessBlock(iq []complex64) Result {
	if cap(f.shifted) < len(iq) {
		f.shifted = make([]complex64, len(iq))
	}
	shifted := f.shifted[:len(iq)]

	if f.cfg.ZeroIF {
		f.shifter.Process(shifted, iq)
	} else {
		copy(shifted, iq)
	}

	ifOut := f.ifRes.Process(shifted)
	f.ifAGC.ProcessComplex(ifOut)

	if cap(f.equalized) < len(ifOut) {
		f.equalized = make([]complex64, len(ifOut))
	}
	equalized := f.equalized[:len(ifOut)]
	f.eq.Process(equalized, ifOut)

	if cap(f.mpx) < len(equalized) {
		f.mpx = make([]float64, len(equalized))
		f.sub = make([]float64, len(equalized))
	}
	mpx := f.mpx[:len(equalized)]
	sub := f.sub[:len(equalized)]
	f.disc.Process(mpx, equalized)

	events := f.pll.ProcessBlock(sub, mpx)

	stereoDetected := f.pll.Locked()
	if f.cfg.StereoPolicy == StereoPolicyAlwaysOn {
		stereoDetected = true
	}
	if f.cfg.ForceMono {
		stereoDetected = false
	}

	// Mono path: deemphasis at MPX rate, then resample, pilot-cut, DC block.
	monoMPX := append([]float64(nil), mpx...)
	f.monoDeemph.Process(monoMPX)
	monoAudio := f.monoRes.Process(monoMPX)
	monoFiltered := make([]float64, len(monoAudio))
	f.monoCut.Process(monoFiltered, monoAudio)
	f.monoDC.Process(monoFiltered)

	// Stereo path: multiply MPX by 2*local_38kHz subcarrier, deemphasis
	// only when pilot-shift is off, resample, pilot-cut, DC block, then
	// boost.
	if cap(f.lr) < len(mpx) {
		f.lr = make([]float64, len(mpx))
	}
	lr := f.lr[:len(mpx)]
	for i := range mpx {
		lr[i] = mpx[i] * 2 * sub[i]
	}
	if !f.cfg.PilotShift {
		f.stereoDeemph.Process(lr)
	}
	stereoAudio := f.stereoRes.Process(lr)
	stereoFiltered := make([]float64, len(stereoAudio))
	f.stereoCut.Process(stereoFiltered, stereoAudio)
	f.stereoDC.Process(stereoFiltered)
	for i := range stereoFiltered {
		stereoFiltered[i] *= stereoBoost
	}

	squelched := f.updateSquelch()

	n := len(monoFiltered)
	if len(stereoFiltered) < n {
		n = len(stereoFiltered)
	}
	audio := make([]float64, 2*n)
	switch {
	case squelched:
		// audio already zero
	case stereoDetected && !f.cfg.PilotShift:
		for i := 0; i < n; i++ {
			m, s := monoFiltered[i], stereoFiltered[i]
			audio[2*i] = m + s
			audio[2*i+1] = m - s
		}
	case stereoDetected && f.cfg.PilotShift:
		for i := 0; i < n; i++ {
			audio[2*i] = stereoFiltered[i]
			audio[2*i+1] = stereoFiltered[i]
		}
	case !stereoDetected && !f.cfg.PilotShift:
		for i := 0; i < n; i++ {
			audio[2*i] = monoFiltered[i]
			audio[2*i+1] = monoFiltered[i]
		}
	default: // !stereoDetected && PilotShift: interleaved zeros of length 2*|S|
	}

	if squelched {
		events = nil
	}

	return Result{
		Audio:          audio,
		Events:         events,
		StereoDetected: stereoDetected,
		Squelched:      squelched,
	}
}

// updateSquelch advances the squelch hold counter from the IF AGC's
// smoothed magnitude estimate and reports whether this block should be
// muted.
func (f *FMChain) updateSquelch() bool {
	if f.cfg.SquelchThresholdLinear <= 0 {
		return false
	}
	if f.ifAGC.Level() < f.cfg.SquelchThresholdLinear {
		f.squelchBelow++
	} else {
		f.squelchBelow = 0
	}
	hold := f.cfg.SquelchHoldBlocks
	if hold <= 0 {
		hold = 1
	}
	return f.squelchBelow >= hold
}
