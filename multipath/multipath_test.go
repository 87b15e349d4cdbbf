package multipath

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityCoeffs(n int) []complex64 {
	taps := make([]complex64, n)
	taps[n/2] = 1
	return taps
}

func TestNewCentersTapAtOne(t *testing.T) {
	e := New(Config{Stages: 5, StepSize: 0.01})
	assert.Equal(t, identityCoeffs(5), e.Coefficients())
}

func TestOddStagesForcedFromEven(t *testing.T) {
	e := New(Config{Stages: 4, StepSize: 0.01})
	assert.Equal(t, 5, len(e.Coefficients()))
}

func TestStartupGraceBypassesFilter(t *testing.T) {
	e := New(Config{Stages: 7, StepSize: 0.05})
	src := make([]complex64, 10)
	for i := range src {
		src[i] = complex64(complex(float64(i)*0.1, 0.2))
	}
	dst := make([]complex64, len(src))

	for b := 0; b < StartupGraceBlocks; b++ {
		e.Process(dst, src)
		require.Equal(t, src, dst)
	}
}

// TestResetOnNonFiniteError: once the coefficients go non-finite, the
// next block starts from the identity vector.
func TestResetOnNonFiniteError(t *testing.T) {
	e := New(Config{Stages: 5, StepSize: 1e9})
	// Burn the startup grace period first.
	warm := make([]complex64, 64)
	for i := range warm {
		warm[i] = 1
	}
	dstWarm := make([]complex64, len(warm))
	for b := 0; b < StartupGraceBlocks; b++ {
		e.Process(dstWarm, warm)
	}

	// Feed an extreme value designed to overflow the LMS tap update.
	blowup := []complex64{complex64(complex(math.MaxFloat32/2, 0))}
	dst := make([]complex64, 1)
	e.Process(dst, blowup)

	var anyNonFinite bool
	for _, c := range e.Coefficients() {
		if cmplx.IsNaN(complex128(c)) || cmplx.IsInf(complex128(c)) {
			anyNonFinite = true
		}
	}
	require.True(t, anyNonFinite, "tap update should have overflowed")

	// The next block detects the non-finite error and resets.
	e.Process(dst, []complex64{1})
	assert.Equal(t, identityCoeffs(5), e.Coefficients())
}

func TestReferenceLevelTracksInputMagnitude(t *testing.T) {
	e := New(Config{Stages: 5, StepSize: 0.01})
	src := make([]complex64, 50000)
	for i := range src {
		src[i] = 2
	}
	e.Process(make([]complex64, len(src)), src)
	assert.InDelta(t, 2.0, e.ReferenceLevel(), 0.1)
}
