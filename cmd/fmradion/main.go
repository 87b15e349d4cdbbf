// Command fmradion is the CLI entrypoint wiring a device source through a
// demod chain to an audio sink.
package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"hz.tools/sdr"

	"github.com/sdrkit/fmradion/audio"
	"github.com/sdrkit/fmradion/config"
	"github.com/sdrkit/fmradion/demod"
	"github.com/sdrkit/fmradion/device"
	"github.com/sdrkit/fmradion/metrics"
	"github.com/sdrkit/fmradion/pipeline"
	"github.com/sdrkit/fmradion/pps"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		mode            = pflag.StringP("mode", "m", "fm", "Demodulation mode: fm|am|dsb|usb|lsb|cw|nbfm.")
		deviceType      = pflag.StringP("device-type", "t", "file", "Device type: file|rtlsdr|airspy-r2|airspy-hf.")
		deviceIndex     = pflag.IntP("device-index", "n", 0, "Device index, for device types that support more than one unit.")
		deviceConfig    = pflag.StringP("device-config", "d", "", "Comma-separated key=value device configuration string.")
		outputMode      = pflag.StringP("output-mode", "O", "wav", "Output mode: raw-int16|raw-float32|wav|playback-device.")
		outputFile      = pflag.StringP("output", "o", "-", "Output file path, or - for stdout.")
		bufferSeconds   = pflag.Float64P("buffer-seconds", "b", 0.1, "Audio output buffering, in seconds.")
		stereo          = pflag.BoolP("stereo", "s", true, "Enable FM stereo separation (mode=fm only).")
		pilotShift      = pflag.BoolP("pilot-shift", "P", false, "Shift stereo output 90 degrees from the pilot phase reference.")
		deemphasisUS50  = pflag.BoolP("deemphasis-us50", "E", false, "Use 50us de-emphasis (EU) instead of 75us (US).")
		filterWidth     = pflag.StringP("filter-width", "w", "default", "Filter width: wide|default|medium|narrow.")
		squelchDB       = pflag.Float64P("squelch-db", "q", -200, "Squelch threshold in dB; -200 effectively disables it.")
		multipathStages = pflag.IntP("multipath-stages", "M", 9, "Multipath equalizer tap count (mode=fm only).")
		ppmOffset       = pflag.Float64P("ppm-offset", "p", 0, "IF-rate offset in parts per million, range +-1000000.")
		ppsOutputFile   = pflag.StringP("pps-output-file", "T", "", "File to write PPS/periodic timing reports to.")
		configFile      = pflag.StringP("config", "c", "", "YAML configuration file; CLI flags override its values.")
		ifRate          = pflag.Float64P("if-rate", "r", 1024000, "Device IQ sample rate in Hz.")
		lowIF           = pflag.BoolP("low-if", "z", false, "Device output is centered on a low IF; skip the Fs/4 shift.")
		help            = pflag.BoolP("help", "h", false, "Display help text.")
	)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - a software FM/AM broadcast receiver signal chain.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: fmradion [options] <input-file>\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		return 1
	}

	settings := config.Settings{
		Mode:            *mode,
		DeviceType:      *deviceType,
		DeviceIndex:     *deviceIndex,
		DeviceConfig:    *deviceConfig,
		OutputMode:      *outputMode,
		BufferSeconds:   *bufferSeconds,
		Stereo:          *stereo,
		PilotShift:      *pilotShift,
		DeemphasisUS50:  *deemphasisUS50,
		FilterWidth:     *filterWidth,
		SquelchDB:       *squelchDB,
		MultipathStages: *multipathStages,
		PPMOffset:       *ppmOffset,
		PPSOutputFile:   *ppsOutputFile,
	}
	if *configFile != "" {
		fileSettings, err := config.LoadFile(*configFile)
		if err != nil {
			log.Error("loading config file", "err", err)
			return 1
		}
		settings = config.Merge(*fileSettings, settings)
	}

	if len(pflag.Args()) == 0 {
		fmt.Fprintln(os.Stderr, "error: an input file is required")
		pflag.Usage()
		return 1
	}
	if len(pflag.Args()) > 1 {
		fmt.Fprintln(os.Stderr, "warning: input files beyond the first are ignored")
	}
	inputPath := pflag.Arg(0)

	width, err := config.ParseWidth(settings.FilterWidth)
	if err != nil {
		log.Error("configuration error", "err", err)
		return 1
	}

	dev, err := openDevice(settings, inputPath, *ifRate, lowIF)
	if err != nil {
		log.Error("device error", "err", err)
		return 1
	}
	defer dev.Stop()

	decoder, err := buildDecoder(settings, width, dev.SampleRate(), !dev.IsLowIF())
	if err != nil {
		log.Error("configuration error", "err", err)
		return 1
	}

	sink, err := openSink(settings, *outputFile)
	if err != nil {
		log.Error("sink error", "err", err)
		return 1
	}

	var ppsWriter *pps.Writer
	var ppsFile *os.File
	if settings.PPSOutputFile != "" {
		ppsFile, err = os.Create(settings.PPSOutputFile)
		if err != nil {
			log.Error("opening pps output file", "err", err)
			return 1
		}
		defer ppsFile.Close()
		if strings.EqualFold(settings.Mode, "fm") {
			ppsWriter = pps.NewFMWriter(ppsFile)
		} else {
			ppsWriter = pps.NewOtherWriter(ppsFile)
		}
	}

	p := pipeline.New(pipeline.Config{
		Device:          dev,
		Decoder:         decoder,
		Sink:            sink,
		PPSWriter:       ppsWriter,
		Metrics:         metrics.NewTracker(32),
		AudioSampleRate: 48000,
		Channels:        2,
		BufferSeconds:   settings.BufferSeconds,
		OverflowSamples: int(10 * dev.SampleRate()),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.Run(ctx); err != nil {
		log.Error("pipeline error", "err", err)
		return 1
	}
	return 0
}

// rawIQFile adapts a raw interleaved complex64-LE file into the
// sdr.Reader that device.FileSource's Start loop consumes via
// sdr.ReadFull: no header, just little-endian float32 I/Q pairs at the
// configured --if-rate.
type rawIQFile struct {
	f    *os.File
	rate uint
}

func openRawIQFile(path string, rate uint) (*rawIQFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &rawIQFile{f: f, rate: rate}, nil
}

func (r *rawIQFile) Read(buf sdr.Samples) (int, error) {
	dst, ok := buf.(sdr.SamplesC64)
	if !ok {
		return 0, sdr.ErrSampleFormatMismatch
	}
	raw := make([]byte, len(dst)*8)
	n, err := r.f.Read(raw)
	samples := n / 8
	for i := 0; i < samples; i++ {
		re := le32(raw[i*8:])
		im := le32(raw[i*8+4:])
		dst[i] = complex(re, im)
	}
	if samples == 0 && err == nil {
		err = io.EOF
	}
	return samples, err
}

func le32(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}

func (r *rawIQFile) SampleRate() uint32             { return uint32(r.rate) }
func (r *rawIQFile) SampleFormat() sdr.SampleFormat { return sdr.SampleFormatC64 }
func (r *rawIQFile) Close() error                   { return r.f.Close() }

// parseDeviceConfig splits the CLI's comma-separated key=value device
// configuration string into the map Device.Configure expects.
func parseDeviceConfig(s string) (map[string]string, error) {
	opts := map[string]string{}
	if s == "" {
		return opts, nil
	}
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("device-config: malformed key=value pair %q", pair)
		}
		opts[kv[0]] = kv[1]
	}
	return opts, nil
}

func openDevice(s config.Settings, inputPath string, ifRate float64, lowIF *bool) (device.Device, error) {
	opts, err := parseDeviceConfig(s.DeviceConfig)
	if err != nil {
		return nil, err
	}
	if _, set := opts["low_if"]; !set {
		opts["low_if"] = fmt.Sprintf("%v", *lowIF)
	}
	if s.PPMOffset != 0 {
		if _, set := opts["ppm"]; !set {
			opts["ppm"] = fmt.Sprintf("%g", s.PPMOffset)
		}
	}

	var dev device.Device
	switch strings.ToLower(s.DeviceType) {
	case "", "file":
		reader, err := openRawIQFile(inputPath, uint(ifRate))
		if err != nil {
			return nil, err
		}
		src := device.NewFileSource(reader, 8192)
		src.SetConfiguredFrequency(0)
		dev = src
	case "rtlsdr":
		dev = device.NewRTLSDR(s.DeviceIndex)
	case "airspy-r2":
		dev = device.NewAirspyR2(s.DeviceIndex)
	case "airspy-hf":
		dev = device.NewAirspyHF(s.DeviceIndex)
	default:
		return nil, fmt.Errorf("unknown device type %q", s.DeviceType)
	}
	if err := dev.Configure(opts); err != nil {
		return nil, err
	}
	return dev, nil
}

func buildDecoder(s config.Settings, width config.Width, ifRate float64, zeroIF bool) (pipeline.Decoder, error) {
	var fp config.FilterParameters
	mode := strings.ToLower(s.Mode)

	switch mode {
	case "fm":
		stages := s.MultipathStages
		if stages <= 0 {
			stages = fp.MultipathStagesDefault()
		}
		chain, err := demod.NewFMChain(demod.FMConfig{
			IFRate:                 uint(ifRate),
			ZeroIF:                 zeroIF,
			MPXRate:                384000,
			AudioRate:              48000,
			FreqDeviationHz:        75000,
			DeemphasisTau:          fp.DeemphasisTau(s.DeemphasisUS50),
			MultipathStages:        stages,
			PilotBandwidthHz:       50,
			PilotMinSignal:         0.01,
			PilotShift:             s.PilotShift,
			StereoPolicy:           demod.StereoPolicyFollowLock,
			ForceMono:              !s.Stereo,
			SquelchThresholdLinear: dbToLinear(s.SquelchDB),
			SquelchHoldBlocks:      4,
		})
		if err != nil {
			return nil, err
		}
		return pipeline.FMDecoder{Chain: chain}, nil

	case "am", "dsb", "usb", "lsb", "cw":
		amMode := map[string]demod.AMMode{
			"am":  demod.ModeAM,
			"dsb": demod.ModeDSB,
			"usb": demod.ModeUSB,
			"lsb": demod.ModeLSB,
			"cw":  demod.ModeCW,
		}[mode]
		chain, err := demod.NewAMChain(demod.AMConfig{
			IFRate:                 uint(ifRate),
			Mode:                   amMode,
			Bandwidth:              fp.AMBandwidthHz(width),
			DeemphasisTau:          100e-6,
			SquelchThresholdLinear: dbToLinear(s.SquelchDB),
			SquelchHoldBlocks:      4,
		})
		if err != nil {
			return nil, err
		}
		return pipeline.AMDecoder{Chain: chain}, nil

	case "nbfm":
		chain, err := demod.NewNBFMChain(demod.NBFMConfig{
			IFRate:                 uint(ifRate),
			Width:                  fp.NBFMWidth(width),
			SquelchThresholdLinear: dbToLinear(s.SquelchDB),
			SquelchHoldBlocks:      4,
		})
		if err != nil {
			return nil, err
		}
		return pipeline.NBFMDecoder{Chain: chain}, nil

	default:
		return nil, fmt.Errorf("unknown mode %q", s.Mode)
	}
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

func openSink(s config.Settings, outputPath string) (audio.Sink, error) {
	switch strings.ToLower(s.OutputMode) {
	case "raw-int16":
		w, err := openOutput(outputPath)
		if err != nil {
			return nil, err
		}
		return audio.NewFileSink(w, outputPath, audio.EncodingS16LE), nil
	case "raw-float32":
		w, err := openOutput(outputPath)
		if err != nil {
			return nil, err
		}
		return audio.NewFileSink(w, outputPath, audio.EncodingF32LE), nil
	case "", "wav":
		w, err := openSeekableOutput(outputPath)
		if err != nil {
			return nil, err
		}
		return audio.NewWAVWriter(w, 48000, 2)
	case "playback-device":
		return audio.NewPlaybackSink(48000, 2, 1024)
	default:
		return nil, fmt.Errorf("unknown output mode %q", s.OutputMode)
	}
}

func openOutput(path string) (*os.File, error) {
	if path == "-" {
		return os.Stdout, nil
	}
	return os.Create(path)
}

func openSeekableOutput(path string) (*os.File, error) {
	if path == "-" {
		return nil, fmt.Errorf("wav output requires a seekable file, not stdout")
	}
	return os.Create(path)
}
