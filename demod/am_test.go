package demod

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// synthAM builds a carrier amplitude-modulated by a 1kHz tone at 50% depth.
func synthAM(n int, carrierHz, rate float64) []complex64 {
	out := make([]complex64, n)
	carrierPhase := 0.0
	carrierStep := 2 * math.Pi * carrierHz / rate
	for i := range out {
		env := 1 + 0.5*math.Sin(2*math.Pi*1000*float64(i)/rate)
		out[i] = complex64(complex(env*math.Cos(carrierPhase), env*math.Sin(carrierPhase)))
		carrierPhase += carrierStep
	}
	return out
}

// TestAMCarrierSettlesToTargetLevel feeds a 1kHz-AM-modulated carrier and
// expects the settled audio level to land near the AGC target.
func TestAMCarrierSettlesToTargetLevel(t *testing.T) {
	a, err := NewAMChain(AMConfig{IFRate: 48000, Mode: ModeAM, Bandwidth: 5000, DeemphasisTau: 100e-6})
	require.NoError(t, err)

	iq := synthAM(200000, 0, 48000)

	var sumSq float64
	var count int
	const block = 2000
	for i := 0; i < len(iq); i += block {
		end := i + block
		if end > len(iq) {
			end = len(iq)
		}
		out, _ := a.ProcessBlock(iq[i:end])
		if i > len(iq)/2 {
			for _, v := range out {
				sumSq += v * v
				count++
			}
		}
	}
	rms := math.Sqrt(sumSq / float64(count))
	// AGC target is 1.0 peak; a settled 1kHz tone RMS should land near
	// target/sqrt(2) within a generous tolerance (this chain's AGC ceiling
	// and slow deemphasis both shape the final level).
	assert.Greater(t, rms, 0.2)
	assert.Less(t, rms, 1.5)
}

func TestUSBModeProducesAudio(t *testing.T) {
	a, err := NewAMChain(AMConfig{IFRate: 48000, Mode: ModeUSB, Bandwidth: 3000})
	require.NoError(t, err)
	iq := synthAM(50000, 1000, 48000)
	out, _ := a.ProcessBlock(iq)
	assert.NotEmpty(t, out)
}

func TestCWModeAppliesFixedBFO(t *testing.T) {
	a, err := NewAMChain(AMConfig{IFRate: 48000, Mode: ModeCW, Bandwidth: 500})
	require.NoError(t, err)
	assert.Equal(t, cwBFOHz, a.bfoHz)
	iq := synthAM(50000, 0, 48000)
	out, _ := a.ProcessBlock(iq)
	assert.NotEmpty(t, out)
}

func TestAMSquelchMutesWeakSignal(t *testing.T) {
	a, err := NewAMChain(AMConfig{
		IFRate:                 48000,
		Mode:                   ModeAM,
		Bandwidth:              5000,
		SquelchThresholdLinear: 0.5,
		SquelchHoldBlocks:      2,
	})
	require.NoError(t, err)

	iq := make([]complex64, 4000)
	for i := range iq {
		iq[i] = complex64(complex(0.01, 0))
	}
	var out []float64
	var squelched bool
	for i := 0; i < 5; i++ {
		out, squelched = a.ProcessBlock(iq)
	}
	assert.True(t, squelched)
	for _, v := range out {
		assert.Equal(t, 0.0, v)
	}
}
