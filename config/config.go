// Package config gathers the receiver's tuning constants behind named
// FilterParameters builders, replacing per-call-site magic numbers, plus
// a YAML config-file layer merged under CLI flags: a file of defaults,
// overridable per-run by explicit flags.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sdrkit/fmradion/demod"
)

// Width selects one of the CLI's four named filter widths
// (wide|default|medium|narrow).
type Width int

const (
	Wide Width = iota
	Default
	Medium
	Narrow
)

// ParseWidth parses the CLI's filter-width string.
func ParseWidth(s string) (Width, error) {
	switch s {
	case "wide":
		return Wide, nil
	case "default":
		return Default, nil
	case "medium":
		return Medium, nil
	case "narrow":
		return Narrow, nil
	default:
		return Default, fmt.Errorf("config: unknown filter width %q", s)
	}
}

// FilterParameters is the builder table for per-mode tuning constants:
// one named constant set per mode/width combination, consumed by the
// builder methods below instead of being spelled out inline at each demod
// construction call site.
type FilterParameters struct{}

// AMBandwidthHz returns the AM-family half/sideband bandwidth for a given
// filter width.
func (FilterParameters) AMBandwidthHz(w Width) float64 {
	switch w {
	case Wide:
		return 6000
	case Medium:
		return 2200
	case Narrow:
		return 1200
	default:
		return 3000
	}
}

// NBFMWidth maps a filter width to one of NBFM's four selectable channel
// widths.
func (FilterParameters) NBFMWidth(w Width) demod.NBFMChannelWidth {
	switch w {
	case Wide:
		return demod.NBFMWidth20000
	case Medium:
		return demod.NBFMWidth8000
	case Narrow:
		return demod.NBFMWidth6250
	default:
		return demod.NBFMWidth10000
	}
}

// DeemphasisTau returns 75us (US) or 50us (EU); us50 selects EU.
func (FilterParameters) DeemphasisTau(us50 bool) float64 {
	if us50 {
		return 50e-6
	}
	return 75e-6
}

// MultipathStagesDefault is the multipath equalizer's default tap count
// when the CLI doesn't override it.
func (FilterParameters) MultipathStagesDefault() int { return 9 }

// Settings is the subset of the CLI surface that can also be set from a
// YAML config file, with CLI flags taking priority. Zero-value fields
// mean "not set in this layer."
type Settings struct {
	Mode            string  `yaml:"mode"`
	DeviceType      string  `yaml:"device_type"`
	DeviceIndex     int     `yaml:"device_index"`
	DeviceConfig    string  `yaml:"device_config"`
	OutputMode      string  `yaml:"output_mode"`
	BufferSeconds   float64 `yaml:"buffer_seconds"`
	Stereo          bool    `yaml:"stereo"`
	PilotShift      bool    `yaml:"pilot_shift"`
	DeemphasisUS50  bool    `yaml:"deemphasis_us50"`
	FilterWidth     string  `yaml:"filter_width"`
	SquelchDB       float64 `yaml:"squelch_db"`
	MultipathStages int     `yaml:"multipath_stages"`
	PPMOffset       float64 `yaml:"ppm_offset"`
	PPSOutputFile   string  `yaml:"pps_output_file"`
}

// LoadFile reads and parses a YAML config file into a Settings struct.
func LoadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &s, nil
}

// Merge overlays override on top of base: any field override sets to a
// non-zero value replaces base's. Numeric/bool/string zero values are
// indistinguishable from "unset" in this scheme, matching the CLI's own
// pflag defaults (the caller is expected to only pass flags the user
// actually supplied into override).
func Merge(base, override Settings) Settings {
	out := base
	if override.Mode != "" {
		out.Mode = override.Mode
	}
	if override.DeviceType != "" {
		out.DeviceType = override.DeviceType
	}
	if override.DeviceIndex != 0 {
		out.DeviceIndex = override.DeviceIndex
	}
	if override.DeviceConfig != "" {
		out.DeviceConfig = override.DeviceConfig
	}
	if override.OutputMode != "" {
		out.OutputMode = override.OutputMode
	}
	if override.BufferSeconds != 0 {
		out.BufferSeconds = override.BufferSeconds
	}
	if override.Stereo {
		out.Stereo = true
	}
	if override.PilotShift {
		out.PilotShift = true
	}
	if override.DeemphasisUS50 {
		out.DeemphasisUS50 = true
	}
	if override.FilterWidth != "" {
		out.FilterWidth = override.FilterWidth
	}
	if override.SquelchDB != 0 {
		out.SquelchDB = override.SquelchDB
	}
	if override.MultipathStages != 0 {
		out.MultipathStages = override.MultipathStages
	}
	if override.PPMOffset != 0 {
		out.PPMOffset = override.PPMOffset
	}
	if override.PPSOutputFile != "" {
		out.PPSOutputFile = override.PPSOutputFile
	}
	return out
}
