// Package metrics holds the pipeline's telemetry counters: block count,
// pilot-lock state, IF/audio level, and the PPM moving average. Only the
// decode worker writes these, and the reporting code reads them from the
// same goroutine, so no cross-thread synchronization is needed.
package metrics

import "github.com/sdrkit/fmradion/dsp"

// Snapshot is a single point-in-time read of the worker's telemetry,
// written only by the decode worker and read only by the same goroutine's
// reporting code.
type Snapshot struct {
	// Blocks is the number of IQ blocks decoded so far.
	Blocks uint64
	// PilotLocked mirrors pilot.PLL.Locked() for FM mode; always false
	// for AM-family/NBFM modes.
	PilotLocked bool
	// IFLevel is the IF AGC's smoothed magnitude estimate.
	IFLevel float64
	// AudioLevel is the audio-side level estimate (for AM-family's audio
	// AGC; zero for FM, which has no audio AGC stage).
	AudioLevel float64
	// PPMAverage is the Tracker's windowed ppm estimate, display-only.
	PPMAverage float64
}

// Tracker accumulates the worker-thread-only counters above.
type Tracker struct {
	blocks uint64
	ppm    *dsp.MovingAverage
}

// NewTracker builds a Tracker with a ppm moving-average window (number of
// samples, typically one per reporting tick).
func NewTracker(ppmWindow int) *Tracker {
	return &Tracker{ppm: dsp.NewMovingAverage(ppmWindow)}
}

// RecordBlock increments the block counter; call once per decoded block
// from the worker thread.
func (t *Tracker) RecordBlock() { t.blocks++ }

// RecordPPM feeds a single ppm observation into the display-only moving
// average. It must never be read back into any control loop.
func (t *Tracker) RecordPPM(ppm float64) { t.ppm.Add(ppm) }

// Snapshot reads the current counters plus the supplied live levels
// (pulled from the active demod chain) into a single telemetry value.
func (t *Tracker) Snapshot(pilotLocked bool, ifLevel, audioLevel float64) Snapshot {
	return Snapshot{
		Blocks:      t.blocks,
		PilotLocked: pilotLocked,
		IFLevel:     ifLevel,
		AudioLevel:  audioLevel,
		PPMAverage:  t.ppm.Value(),
	}
}
