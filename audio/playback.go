package audio

import (
	"github.com/gordonklaus/portaudio"
)

// PlaybackSink writes interleaved float32 samples to the default system
// output device via PortAudio's blocking I/O API.
type PlaybackSink struct {
	stream   *portaudio.Stream
	buf      []float32
	channels int
	err      error
}

// NewPlaybackSink opens the default output device at sampleRate with the
// given channel count and a framesPerBuffer-sized blocking buffer.
func NewPlaybackSink(sampleRate float64, channels, framesPerBuffer int) (*PlaybackSink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}

	s := &PlaybackSink{
		buf:      make([]float32, framesPerBuffer*channels),
		channels: channels,
	}
	stream, err := portaudio.OpenDefaultStream(0, channels, sampleRate, framesPerBuffer, &s.buf)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, err
	}
	s.stream = stream
	return s, nil
}

// Write blocks until len(samples)/channels frames have been written to the
// output device. samples must be exactly the framesPerBuffer*channels size
// the sink was opened with; PortAudio's blocking stream is bound to that
// fixed-size buffer for its lifetime.
func (p *PlaybackSink) Write(samples []float64) (bool, error) {
	n := len(samples)
	if n > len(p.buf) {
		n = len(p.buf)
	}
	for i := 0; i < n; i++ {
		p.buf[i] = float32(samples[i])
	}
	for i := n; i < len(p.buf); i++ {
		p.buf[i] = 0
	}
	if err := p.stream.Write(); err != nil {
		p.err = err
		return false, err
	}
	return true, nil
}

// Err implements Sink.
func (p *PlaybackSink) Err() error {
	err := p.err
	p.err = nil
	return err
}

// Ready implements Sink.
func (p *PlaybackSink) Ready() bool { return p.err == nil }

// DeviceName implements Sink.
func (p *PlaybackSink) DeviceName() string { return "default playback device" }

// Close stops the stream and releases PortAudio's global state.
func (p *PlaybackSink) Close() error {
	if err := p.stream.Close(); err != nil {
		return err
	}
	return portaudio.Terminate()
}
