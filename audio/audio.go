// Package audio implements the receiver's audio output: a
// write/error/ready/device-name sink contract, S16LE/F32LE encoders, a
// bit-exact WAV container writer, a file sink, and a live playback sink.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Sink is the audio sink capability consumed by the pipeline's consumer
// stage.
type Sink interface {
	// Write encodes and emits one interleaved audio block; ok is false on
	// a benign, non-fatal condition (e.g. transient underflow) that the
	// caller should report once and continue past.
	Write(samples []float64) (ok bool, err error)
	Err() error
	Ready() bool
	DeviceName() string
	Close() error
}

// EncodeS16LE clamps each sample to [-1, 1] and scales it to a signed
// 16-bit two's-complement little-endian sample.
func EncodeS16LE(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(math.Round(s * 32767))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// DecodeS16LE is EncodeS16LE's inverse, for round-trip testing.
func DecodeS16LE(data []byte) []float64 {
	out := make([]float64, len(data)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float64(v) / 32767
	}
	return out
}

// EncodeF32LE writes each sample as a verbatim 32-bit little-endian
// IEEE-754 float, unclamped.
func EncodeF32LE(samples []float64) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(s)))
	}
	return out
}

// FileSink writes raw encoded audio bytes (S16LE or F32LE) to an
// io.WriteCloser.
type FileSink struct {
	w      io.WriteCloser
	encode func([]float64) []byte
	name   string
	err    error
}

// EncodingS16LE and EncodingF32LE select FileSink's wire format.
type Encoding int

const (
	EncodingS16LE Encoding = iota
	EncodingF32LE
)

// NewFileSink builds a FileSink writing to w with the given encoding.
func NewFileSink(w io.WriteCloser, name string, enc Encoding) *FileSink {
	encode := EncodeS16LE
	if enc == EncodingF32LE {
		encode = EncodeF32LE
	}
	return &FileSink{w: w, encode: encode, name: name}
}

// Write implements Sink.
func (f *FileSink) Write(samples []float64) (bool, error) {
	if _, err := f.w.Write(f.encode(samples)); err != nil {
		f.err = err
		return false, err
	}
	return true, nil
}

// Err implements Sink.
func (f *FileSink) Err() error {
	err := f.err
	f.err = nil
	return err
}

// Ready implements Sink.
func (f *FileSink) Ready() bool { return f.err == nil }

// DeviceName implements Sink.
func (f *FileSink) DeviceName() string { return f.name }

// Close implements Sink.
func (f *FileSink) Close() error { return f.w.Close() }

// wavHeaderSize is the fixed 44-byte RIFF/WAVE/fmt /data header.
const wavHeaderSize = 44

// WAVWriter writes a 16-bit PCM WAV container, rewriting its header on
// Close with the final sample count.
type WAVWriter struct {
	w              io.WriteSeeker
	sampleRate     uint32
	channels       uint16
	samplesWritten uint64
	err            error
}

// NewWAVWriter writes the (initially zero-length) 44-byte header
// immediately and returns a writer ready to accept interleaved samples.
func NewWAVWriter(w io.WriteSeeker, sampleRate uint32, channels uint16) (*WAVWriter, error) {
	ww := &WAVWriter{w: w, sampleRate: sampleRate, channels: channels}
	if err := ww.writeHeader(0); err != nil {
		return nil, err
	}
	return ww, nil
}

func (w *WAVWriter) writeHeader(dataBytes uint32) error {
	var hdr [wavHeaderSize]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], 36+dataBytes)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(hdr[20:22], 1)  // WAVE_FORMAT_PCM
	binary.LittleEndian.PutUint16(hdr[22:24], w.channels)
	binary.LittleEndian.PutUint32(hdr[24:28], w.sampleRate)
	byteRate := w.sampleRate * uint32(w.channels) * 2
	binary.LittleEndian.PutUint32(hdr[28:32], byteRate)
	blockAlign := w.channels * 2
	binary.LittleEndian.PutUint16(hdr[32:34], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:36], 16) // bits per sample
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataBytes)

	if _, err := w.w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := w.w.Write(hdr[:])
	return err
}

// Write appends interleaved samples, encoded S16LE, to the data chunk.
// len(samples) must be divisible by the configured channel count.
func (w *WAVWriter) Write(samples []float64) (bool, error) {
	if len(samples)%int(w.channels) != 0 {
		err := fmt.Errorf("audio: WAVWriter.Write: %d samples not divisible by %d channels", len(samples), w.channels)
		w.err = err
		return false, err
	}
	if _, err := w.w.Seek(0, io.SeekEnd); err != nil {
		w.err = err
		return false, err
	}
	if _, err := w.w.Write(EncodeS16LE(samples)); err != nil {
		w.err = err
		return false, err
	}
	w.samplesWritten += uint64(len(samples))
	return true, nil
}

// Err implements Sink.
func (w *WAVWriter) Err() error {
	err := w.err
	w.err = nil
	return err
}

// Ready implements Sink.
func (w *WAVWriter) Ready() bool { return w.err == nil }

// DeviceName implements Sink.
func (w *WAVWriter) DeviceName() string { return "wav" }

// Close rewrites the header with the final sample count, then closes the
// underlying writer if it also implements io.Closer.
func (w *WAVWriter) Close() error {
	dataBytes := uint32(w.samplesWritten * 2)
	if err := w.writeHeader(dataBytes); err != nil {
		return err
	}
	if closer, ok := w.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
