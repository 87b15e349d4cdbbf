package discriminator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// synthFM builds a complex exponential whose instantaneous frequency is a
// constant devHz offset from zero IF.
func synthFM(n int, devHz, sampleRate float64) []complex64 {
	out := make([]complex64, n)
	phase := 0.0
	step := 2 * math.Pi * devHz / sampleRate
	for i := range out {
		out[i] = complex64(complex(math.Cos(phase), math.Sin(phase)))
		phase += step
	}
	return out
}

func TestConstantDeviationProducesFullScale(t *testing.T) {
	const sr = 384000.0
	const dev = 75000.0
	d := New(dev, sr)

	src := synthFM(2000, dev, sr)
	dst := make([]float64, len(src))
	d.Process(dst, src)

	// Skip the first sample (discontinuity from the zero-valued carried
	// "previous" sample) and check steady state.
	for _, v := range dst[10:] {
		assert.InDelta(t, 1.0, v, 0.02)
	}
}

func TestZeroDeviationIsZero(t *testing.T) {
	d := New(75000, 384000)
	src := make([]complex64, 100)
	for i := range src {
		src[i] = 1
	}
	dst := make([]float64, len(src))
	d.Process(dst, src)
	for _, v := range dst[1:] {
		assert.InDelta(t, 0, v, 1e-6)
	}
}

func TestPhaseContinuousAcrossBlocks(t *testing.T) {
	const sr = 384000.0
	const dev = 75000.0
	full := synthFM(4000, dev, sr)

	whole := New(dev, sr)
	dstWhole := make([]float64, len(full))
	whole.Process(dstWhole, full)

	chunked := New(dev, sr)
	dstChunked := make([]float64, len(full))
	const chunk = 257 // deliberately not a divisor of len(full)
	for i := 0; i < len(full); i += chunk {
		end := i + chunk
		if end > len(full) {
			end = len(full)
		}
		chunked.Process(dstChunked[i:end], full[i:end])
	}

	for i := 10; i < len(full); i++ {
		assert.InDelta(t, dstWhole[i], dstChunked[i], 1e-9)
	}
}
