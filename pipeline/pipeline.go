// Package pipeline wires the three-stage producer/worker/consumer
// orchestration: the device pushes IQ blocks into one queue.Queue, the
// decode worker pulls them and pushes audio into a second, and the
// consumer drains audio into the sink. The three stages are goroutines
// joined by golang.org/x/sync/errgroup so that a failure or clean stop on
// any one of them unwinds the other two.
package pipeline

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/sdrkit/fmradion/audio"
	"github.com/sdrkit/fmradion/device"
	"github.com/sdrkit/fmradion/metrics"
	"github.com/sdrkit/fmradion/pilot"
	"github.com/sdrkit/fmradion/pps"
	"github.com/sdrkit/fmradion/queue"
)

// iqBlock and audioBlock give the raw sample slices the queue.Block
// method set queue.Queue needs.
type iqBlock []complex64

func (b iqBlock) Len() int { return len(b) }

type audioBlock []float64

func (b audioBlock) Len() int { return len(b) }

// Decoder is the common shape of demod.FMChain/AMChain/NBFMChain that the
// worker stage drives; each chain's concrete ProcessBlock signature is
// adapted to this interface by the small wrappers in decoder.go.
type Decoder interface {
	ProcessBlock(iq []complex64) (audioOut []float64, events []pilot.Event, squelched bool)
}

// Config assembles one run of the pipeline.
type Config struct {
	Device  device.Device
	Decoder Decoder
	Sink    audio.Sink

	// PPSWriter is optional; nil disables PPS/periodic reporting.
	PPSWriter *pps.Writer
	Metrics   *metrics.Tracker

	// AudioSampleRate, Channels, and BufferSeconds size the consumer's
	// minimum-fill batch: max(480, BufferSeconds*rate*channels) samples.
	AudioSampleRate float64
	Channels        int
	BufferSeconds   float64
	// OverflowSamples is the queued-IQ-sample watermark past which a
	// one-shot overflow warning is logged (typically 10x the IF rate).
	OverflowSamples int

	// UnixTime supplies wall-clock time for PPS/periodic reporting,
	// since the DSP pipeline itself only counts samples and blocks.
	UnixTime func() float64
}

// Pipeline runs the device→decoder→sink chain until ctx is cancelled, the
// device reaches end of stream, or a stage errors.
type Pipeline struct {
	cfg Config

	iq    *queue.Queue[iqBlock]
	audio *queue.Queue[audioBlock]

	overflowWarned bool
}

// New constructs a Pipeline from cfg.
func New(cfg Config) *Pipeline {
	if cfg.Channels <= 0 {
		cfg.Channels = 2
	}
	if cfg.BufferSeconds <= 0 {
		cfg.BufferSeconds = 0.1
	}
	return &Pipeline{
		cfg:   cfg,
		iq:    queue.New[iqBlock](),
		audio: queue.New[audioBlock](),
	}
}

func (p *Pipeline) minFillSamples() int {
	want := int(p.cfg.BufferSeconds * p.cfg.AudioSampleRate * float64(p.cfg.Channels))
	if want < 480 {
		want = 480
	}
	return want
}

// Run drives all three stages to completion. It returns the first error
// from any stage (context cancellation is not itself reported as an
// error: a caller that cancelled ctx on purpose gets a nil return once
// everything has unwound).
func (p *Pipeline) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return p.produce(gctx) })
	g.Go(func() error { return p.work(gctx) })
	g.Go(func() error { return p.consume(gctx) })

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (p *Pipeline) produce(ctx context.Context) error {
	defer p.iq.EndStream()
	return p.cfg.Device.Start(ctx, func(samples []complex64) error {
		block := make(iqBlock, len(samples))
		copy(block, samples)
		p.iq.Push(block)

		if n := p.iq.QueuedSamples(); n > p.cfg.OverflowSamples && p.cfg.OverflowSamples > 0 {
			if !p.overflowWarned {
				log.Warn("IQ queue backlog exceeds watermark", "queued_samples", n, "watermark", p.cfg.OverflowSamples)
				p.overflowWarned = true
			}
		} else {
			p.overflowWarned = false
		}
		return nil
	})
}

func (p *Pipeline) work(ctx context.Context) error {
	defer p.audio.EndStream()
	var blockIndex int
	for {
		if ctx.Err() != nil {
			return nil
		}
		block, ok := p.iq.Pull()
		if !ok {
			return nil
		}

		samples, events, _ := p.cfg.Decoder.ProcessBlock(block)
		out := make(audioBlock, len(samples))
		copy(out, samples)
		p.audio.Push(out)

		if p.cfg.Metrics != nil {
			p.cfg.Metrics.RecordBlock()
		}
		if err := p.report(blockIndex, events); err != nil {
			return err
		}
		blockIndex++
	}
}

func (p *Pipeline) report(blockIndex int, events []pilot.Event) error {
	if p.cfg.PPSWriter == nil {
		return nil
	}
	now := 0.0
	if p.cfg.UnixTime != nil {
		now = p.cfg.UnixTime()
	}
	if p.cfg.PPSWriter.FM() {
		for _, ev := range events {
			if err := p.cfg.PPSWriter.WriteEvent(ev, now); err != nil {
				return fmt.Errorf("pipeline: writing pps event: %w", err)
			}
		}
		return nil
	}
	if err := p.cfg.PPSWriter.WriteBlock(blockIndex, now); err != nil {
		return fmt.Errorf("pipeline: writing pps block: %w", err)
	}
	return nil
}

func (p *Pipeline) consume(ctx context.Context) error {
	defer func() {
		if err := p.cfg.Sink.Close(); err != nil {
			log.Error("closing audio sink", "err", err)
		}
	}()

	minFill := p.minFillSamples()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if p.audio.QueuedSamples() == 0 && !p.audio.EndOfStream() {
			p.audio.WaitUntilAtLeast(minFill)
		}
		block, ok := p.audio.Pull()
		if !ok {
			return nil
		}
		if _, err := p.cfg.Sink.Write(block); err != nil {
			return fmt.Errorf("pipeline: writing audio: %w", err)
		}
		if err := p.cfg.Sink.Err(); err != nil {
			return fmt.Errorf("pipeline: audio sink: %w", err)
		}
	}
}
