package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerAccumulatesBlockCount(t *testing.T) {
	tr := NewTracker(8)
	for i := 0; i < 5; i++ {
		tr.RecordBlock()
	}
	s := tr.Snapshot(true, 0.9, 0.5)
	assert.Equal(t, uint64(5), s.Blocks)
	assert.True(t, s.PilotLocked)
	assert.Equal(t, 0.9, s.IFLevel)
	assert.Equal(t, 0.5, s.AudioLevel)
}

func TestTrackerPPMAverageIsDisplayOnly(t *testing.T) {
	tr := NewTracker(4)
	tr.RecordPPM(1)
	tr.RecordPPM(3)
	s := tr.Snapshot(false, 0, 0)
	assert.InDelta(t, 2.0, s.PPMAverage, 1e-9)
}
