package agc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIFAGCBringsMagnitudeToTarget(t *testing.T) {
	a := New(IFDefault())
	buf := make([]complex64, 200000)
	for i := range buf {
		buf[i] = complex64(complex(0.01, 0)) // very quiet IF
	}
	a.ProcessComplex(buf)

	tail := buf[len(buf)-100:]
	var sum float64
	for _, x := range tail {
		sum += float64(real(x))
	}
	mean := sum / float64(len(tail))
	assert.InDelta(t, 1.0, mean, 0.05)
}

func TestGainNeverExceedsConfiguredCeiling(t *testing.T) {
	a := New(IFDefault())
	buf := make([]complex64, 500000)
	for i := range buf {
		buf[i] = complex64(complex(1e-7, 0))
	}
	a.ProcessComplex(buf)
	assert.LessOrEqual(t, a.Gain(), 10000.0)
}

func TestGainNeverBelowConfiguredFloor(t *testing.T) {
	a := New(IFDefault())
	buf := make([]complex64, 500000)
	for i := range buf {
		buf[i] = complex64(complex(100.0, 0))
	}
	a.ProcessComplex(buf)
	assert.GreaterOrEqual(t, a.Gain(), 1.0)
}
