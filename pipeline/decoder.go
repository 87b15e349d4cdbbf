package pipeline

import (
	"github.com/sdrkit/fmradion/demod"
	"github.com/sdrkit/fmradion/pilot"
)

// FMDecoder adapts demod.FMChain's Result-returning ProcessBlock to the
// Decoder interface.
type FMDecoder struct{ Chain *demod.FMChain }

// ProcessBlock implements Decoder.
func (d FMDecoder) ProcessBlock(iq []complex64) ([]float64, []pilot.Event, bool) {
	r := d.Chain.ProcessBlock(iq)
	return r.Audio, r.Events, r.Squelched
}

// AMDecoder adapts demod.AMChain, which has no pilot and therefore no
// events.
type AMDecoder struct{ Chain *demod.AMChain }

// ProcessBlock implements Decoder.
func (d AMDecoder) ProcessBlock(iq []complex64) ([]float64, []pilot.Event, bool) {
	audio, squelched := d.Chain.ProcessBlock(iq)
	return audio, nil, squelched
}

// NBFMDecoder adapts demod.NBFMChain, which also has no pilot.
type NBFMDecoder struct{ Chain *demod.NBFMChain }

// ProcessBlock implements Decoder.
func (d NBFMDecoder) ProcessBlock(iq []complex64) ([]float64, []pilot.Event, bool) {
	audio, squelched := d.Chain.ProcessBlock(iq)
	return audio, nil, squelched
}
