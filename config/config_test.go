package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdrkit/fmradion/demod"
)

func TestParseWidthAcceptsAllFourNames(t *testing.T) {
	cases := map[string]Width{
		"wide":    Wide,
		"default": Default,
		"medium":  Medium,
		"narrow":  Narrow,
	}
	for s, want := range cases {
		got, err := ParseWidth(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestParseWidthRejectsUnknown(t *testing.T) {
	_, err := ParseWidth("ultrawide")
	assert.Error(t, err)
}

func TestFilterParametersAMBandwidthOrdering(t *testing.T) {
	var fp FilterParameters
	assert.Greater(t, fp.AMBandwidthHz(Wide), fp.AMBandwidthHz(Default))
	assert.Greater(t, fp.AMBandwidthHz(Default), fp.AMBandwidthHz(Medium))
	assert.Greater(t, fp.AMBandwidthHz(Medium), fp.AMBandwidthHz(Narrow))
}

func TestFilterParametersNBFMWidthOrdering(t *testing.T) {
	var fp FilterParameters
	assert.Equal(t, demod.NBFMWidth20000, fp.NBFMWidth(Wide))
	assert.Equal(t, demod.NBFMWidth10000, fp.NBFMWidth(Default))
	assert.Equal(t, demod.NBFMWidth8000, fp.NBFMWidth(Medium))
	assert.Equal(t, demod.NBFMWidth6250, fp.NBFMWidth(Narrow))
}

func TestFilterParametersDeemphasisTau(t *testing.T) {
	var fp FilterParameters
	assert.InDelta(t, 50e-6, fp.DeemphasisTau(true), 1e-9)
	assert.InDelta(t, 75e-6, fp.DeemphasisTau(false), 1e-9)
}

func TestLoadFileParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fmradion.yaml")
	contents := "mode: fm\nstereo: true\nfilter_width: narrow\nsquelch_db: -20\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fm", s.Mode)
	assert.True(t, s.Stereo)
	assert.Equal(t, "narrow", s.FilterWidth)
	assert.InDelta(t, -20, s.SquelchDB, 1e-9)
}

func TestLoadFileMissingReturnsError(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMergeCLIOverridesFile(t *testing.T) {
	base := Settings{Mode: "fm", FilterWidth: "wide", SquelchDB: -30}
	override := Settings{FilterWidth: "narrow"}

	merged := Merge(base, override)
	assert.Equal(t, "fm", merged.Mode)
	assert.Equal(t, "narrow", merged.FilterWidth)
	assert.InDelta(t, -30, merged.SquelchDB, 1e-9)
}

func TestMergeLeavesBaseWhenOverrideIsZeroValue(t *testing.T) {
	base := Settings{Mode: "am", Stereo: true, MultipathStages: 9}
	merged := Merge(base, Settings{})
	assert.Equal(t, base, merged)
}
