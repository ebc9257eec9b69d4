// Package audio converts caller-supplied recordings into the float32 16 kHz
// mono buffers the transcription engine accepts.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

// EngineRate is the sample rate the engine consumes.
const EngineRate = 16000

// DecodeWAVToFloat32 decodes a WAV blob into normalized float32 samples and
// reports the source sample rate. Multi-channel audio is downmixed to mono by
// averaging the channels.
func DecodeWAVToFloat32(b []byte) ([]float32, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(b))
	if !dec.IsValidFile() {
		return nil, 0, errors.New("audio: invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil && err != io.EOF {
		return nil, 0, fmt.Errorf("audio: decode wav: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, 0, errors.New("audio: empty wav buffer")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int(1) << (bitDepth - 1))
	out := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = float32(v) / scale
	}

	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 1 {
		channels = buf.Format.NumChannels
	}
	if channels > 1 {
		mono := make([]float32, len(out)/channels)
		for i := range mono {
			var sum float32
			for c := 0; c < channels; c++ {
				sum += out[i*channels+c]
			}
			mono[i] = sum / float32(channels)
		}
		out = mono
	}

	rate := int(dec.SampleRate)
	if rate == 0 && buf.Format != nil {
		rate = buf.Format.SampleRate
	}
	if rate == 0 {
		rate = EngineRate
	}
	return out, rate, nil
}

// DecodePCM16LEToFloat32 converts raw little-endian PCM16 into float32
// samples. The caller supplies the rate; a non-positive value defaults to the
// engine rate.
func DecodePCM16LEToFloat32(b []byte, sampleRate int) ([]float32, int, error) {
	if sampleRate <= 0 {
		sampleRate = EngineRate
	}
	if len(b)%2 != 0 {
		return nil, 0, errors.New("audio: pcm16 length must be even")
	}
	out := make([]float32, len(b)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(b[2*i:]))
		out[i] = float32(v) / 32768.0
	}
	return out, sampleRate, nil
}

// ResampleLinear converts samples from inRate to outRate by linear
// interpolation. Equal rates return a copy; degenerate rates return the input
// untouched.
func ResampleLinear(samples []float32, inRate, outRate int) []float32 {
	if inRate == outRate {
		return append([]float32(nil), samples...)
	}
	if inRate <= 0 || outRate <= 0 || len(samples) == 0 {
		return samples
	}
	ratio := float64(outRate) / float64(inRate)
	outLen := int(float64(len(samples)) * ratio)
	if outLen <= 1 {
		outLen = 1
	}
	out := make([]float32, outLen)
	for i := range out {
		srcPos := float64(i) / ratio
		i0 := int(srcPos)
		if i0 >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(srcPos - float64(i0))
		out[i] = samples[i0] + (samples[i0+1]-samples[i0])*frac
	}
	return out
}

// ToEngineBuffer decodes a WAV blob and resamples it to the engine rate in
// one step.
func ToEngineBuffer(b []byte) ([]float32, error) {
	samples, rate, err := DecodeWAVToFloat32(b)
	if err != nil {
		return nil, err
	}
	return ResampleLinear(samples, rate, EngineRate), nil
}
