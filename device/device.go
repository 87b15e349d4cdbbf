// Package device defines the tuner capability surface the pipeline
// consumes, with one constructor per supported device family.
//
// FileSource is fully functional, built on hz.tools/sdr's pull-based
// Reader contract. RTLSDR, AirspyR2, and AirspyHF are
// configuration-and-contract stubs: this build carries no cgo vendor
// binding for any of them, so their Start reports a device error rather
// than silently no-opping.
package device

import (
	"context"
	"fmt"

	"hz.tools/sdr"
)

// Device is the capability surface the pipeline orchestrator consumes.
type Device interface {
	// Start begins pushing IQ blocks to push until ctx is done or the
	// device is exhausted/fails; it always returns promptly after either.
	Start(ctx context.Context, push func([]complex64) error) error
	Stop() error
	Configure(opts map[string]string) error
	SampleRate() float64
	Frequency() float64
	ConfiguredFrequency() float64
	IsLowIF() bool
	// Err returns and clears the device's most recent error.
	Err() error
	Ready() bool
}

// FileSource reads IQ blocks from an hz.tools/sdr.Reader (e.g. a raw
// complex64 capture file), applying an optional ppm crystal correction to
// the rate and frequency it reports. The correction is consumed by the
// resampler's ratio calculation, not by any DSP block.
type FileSource struct {
	reader         sdr.Reader
	blockSize      int
	ppm            float64
	lowIF          bool
	configuredFreq float64

	err   error
	ready bool
}

// NewFileSource wraps reader as a Device. blockSize is the number of IQ
// samples pulled per Start callback.
func NewFileSource(reader sdr.Reader, blockSize int) *FileSource {
	if blockSize <= 0 {
		blockSize = 8192
	}
	return &FileSource{reader: reader, blockSize: blockSize, ready: true}
}

// Configure applies "ppm" (IF-rate offset in parts-per-million) and
// "low_if" ("true"/"false") options; unknown keys are a configuration
// error.
func (f *FileSource) Configure(opts map[string]string) error {
	for k, v := range opts {
		switch k {
		case "ppm":
			var ppm float64
			if _, err := fmt.Sscanf(v, "%g", &ppm); err != nil {
				return fmt.Errorf("device: invalid ppm value %q: %w", v, err)
			}
			if ppm < -1000000 || ppm > 1000000 {
				return fmt.Errorf("device: ppm %g out of range [-1000000, 1000000]", ppm)
			}
			f.ppm = ppm
		case "low_if":
			f.lowIF = v == "true"
		default:
			return fmt.Errorf("device: unknown FileSource option %q", k)
		}
	}
	return nil
}

// Start pulls blocks from the underlying reader until ctx is done or the
// reader is exhausted, calling push for each.
func (f *FileSource) Start(ctx context.Context, push func([]complex64) error) error {
	buf := make(sdr.SamplesC64, f.blockSize)
	readAny := false
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := sdr.ReadFull(f.reader, buf)
		if n > 0 {
			readAny = true
			block := make([]complex64, n)
			copy(block, buf[:n])
			if perr := push(block); perr != nil {
				f.err = perr
				f.ready = false
				return perr
			}
		}
		if err != nil {
			// End of file or underlying read failure: either way, the
			// producer's natural end, not escalated as a fatal device
			// error unless nothing was ever read.
			if !readAny {
				f.err = fmt.Errorf("device: FileSource read no samples: %w", err)
				f.ready = false
				return f.err
			}
			return nil
		}
	}
}

// Stop is a no-op for a file-backed source; Start already returns once the
// file is exhausted or the context is cancelled.
func (f *FileSource) Stop() error { return nil }

// SampleRate returns the reader's sample rate corrected by the configured
// ppm offset.
func (f *FileSource) SampleRate() float64 {
	return float64(f.reader.SampleRate()) * (1 + f.ppm/1e6)
}

// Frequency returns the device's actual tuned frequency (same as
// ConfiguredFrequency for a file source, which has no hardware drift to
// correct beyond the declared ppm offset).
func (f *FileSource) Frequency() float64 {
	return f.configuredFreq * (1 + f.ppm/1e6)
}

// ConfiguredFrequency returns the nominal (uncorrected) tuned frequency.
func (f *FileSource) ConfiguredFrequency() float64 { return f.configuredFreq }

// SetConfiguredFrequency sets the nominal tuned frequency a file was
// captured at (there being no hardware to query it from).
func (f *FileSource) SetConfiguredFrequency(hz float64) { f.configuredFreq = hz }

// IsLowIF reports whether this source should skip the Fs/4 shifter.
func (f *FileSource) IsLowIF() bool { return f.lowIF }

// Err returns and clears the most recent error.
func (f *FileSource) Err() error {
	err := f.err
	f.err = nil
	return err
}

// Ready reports overall health.
func (f *FileSource) Ready() bool { return f.ready }

// family tags which unavailable vendor device a stub represents.
type family string

const (
	familyRTLSDR   family = "rtlsdr"
	familyAirspyR2 family = "airspy-r2"
	familyAirspyHF family = "airspy-hf"
)

// vendorStub is the ownership-tagged stand-in for a device family this
// build has no cgo binding for.
type vendorStub struct {
	family family
	index  int
	err    error
}

// NewRTLSDR returns an ownership-tagged RTLSDR stub.
func NewRTLSDR(index int) *vendorStub { return &vendorStub{family: familyRTLSDR, index: index} }

// NewAirspyR2 returns an ownership-tagged AirspyR2 stub.
func NewAirspyR2(index int) *vendorStub { return &vendorStub{family: familyAirspyR2, index: index} }

// NewAirspyHF returns an ownership-tagged AirspyHF stub.
func NewAirspyHF(index int) *vendorStub { return &vendorStub{family: familyAirspyHF, index: index} }

func (v *vendorStub) Configure(opts map[string]string) error { return nil }

func (v *vendorStub) Start(ctx context.Context, push func([]complex64) error) error {
	v.err = fmt.Errorf("device: %s[%d]: no vendor SDK binding available in this build", v.family, v.index)
	return v.err
}

func (v *vendorStub) Stop() error                     { return nil }
func (v *vendorStub) SampleRate() float64             { return 0 }
func (v *vendorStub) Frequency() float64              { return 0 }
func (v *vendorStub) ConfiguredFrequency() float64    { return 0 }
func (v *vendorStub) IsLowIF() bool                   { return false }
func (v *vendorStub) Ready() bool                     { return false }

func (v *vendorStub) Err() error {
	err := v.err
	v.err = nil
	return err
}
