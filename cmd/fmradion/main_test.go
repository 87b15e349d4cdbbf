package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeviceConfigSplitsKeyValuePairs(t *testing.T) {
	opts, err := parseDeviceConfig("ppm=12.5,low_if=true")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ppm": "12.5", "low_if": "true"}, opts)
}

func TestParseDeviceConfigEmptyStringIsEmptyMap(t *testing.T) {
	opts, err := parseDeviceConfig("")
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestParseDeviceConfigRejectsMalformedPair(t *testing.T) {
	_, err := parseDeviceConfig("ppm")
	assert.Error(t, err)
}

func TestDBToLinearUnityAtZeroDB(t *testing.T) {
	assert.InDelta(t, 1.0, dbToLinear(0), 1e-9)
	assert.InDelta(t, 0.1, dbToLinear(-20), 1e-9)
	assert.True(t, dbToLinear(-200) < math.Pow(10, -9))
}
