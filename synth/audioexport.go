package synth

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/viterin/vek/vek32"
)

// AudioBuffer is interleaved stereo float32 audio at SampleRate: L, R, L, R,
// ...
type AudioBuffer []float32

// Channels is the number of interleaved channels of an AudioBuffer.
const Channels = 2

// Format tags of the fmt chunk of a .wav file.
const (
	wavPCM   = 1
	wavFloat = 3
)

// Frames returns the number of stereo samples in the buffer.
func (b AudioBuffer) Frames() int {
	return len(b) / Channels
}

// Duration returns the length of the buffer in seconds.
func (b AudioBuffer) Duration() float64 {
	return float64(b.Frames()) / SampleRate
}

// Peak returns the largest absolute sample value.
func (b AudioBuffer) Peak() float32 {
	if len(b) == 0 {
		return 0
	}
	return vek32.Max(vek32.Abs(b))
}

// PCM16 converts the samples to 16-bit integers. Samples beyond full scale
// are clipped.
func (b AudioBuffer) PCM16() []int16 {
	ret := make([]int16, len(b))
	for i, v := range b {
		s := math.Round(float64(v) * math.MaxInt16)
		ret[i] = int16(max(math.MinInt16, min(math.MaxInt16, s)))
	}
	return ret
}

// Raw encodes the buffer as headerless little endian samples, either as
// 16-bit PCM or as 32-bit IEEE floats.
func (b AudioBuffer) Raw(pcm16 bool) ([]byte, error) {
	var samples any = []float32(b)
	if pcm16 {
		samples = b.PCM16()
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("Raw failed: %w", err)
	}
	return buf.Bytes(), nil
}

type wavFormat struct {
	Tag           uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// wavFormatEx is the fmt chunk of a non-PCM file, which ends with the size
// of an (empty) extension.
type wavFormatEx struct {
	Format        wavFormat
	ExtensionSize uint16
}

func (b AudioBuffer) wavFormat(pcm16 bool) wavFormat {
	tag, bits := wavFloat, 32
	if pcm16 {
		tag, bits = wavPCM, 16
	}
	blockAlign := Channels * bits / 8
	return wavFormat{
		Tag:           uint16(tag),
		Channels:      Channels,
		SampleRate:    SampleRate,
		ByteRate:      uint32(SampleRate * blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: uint16(bits),
	}
}

// Wav encodes the buffer as a .wav file. Float files carry a fact chunk with
// the number of frames.
func (b AudioBuffer) Wav(pcm16 bool) ([]byte, error) {
	data, err := b.Raw(pcm16)
	if err != nil {
		return nil, fmt.Errorf("Wav failed: %w", err)
	}
	var wave bytes.Buffer
	wave.WriteString("WAVE")
	var format any = b.wavFormat(pcm16)
	if !pcm16 {
		format = wavFormatEx{Format: b.wavFormat(pcm16)}
	}
	if err := writeChunk(&wave, "fmt ", format); err != nil {
		return nil, fmt.Errorf("Wav failed: %w", err)
	}
	if !pcm16 {
		if err := writeChunk(&wave, "fact", uint32(b.Frames())); err != nil {
			return nil, fmt.Errorf("Wav failed: %w", err)
		}
	}
	if err := writeChunk(&wave, "data", data); err != nil {
		return nil, fmt.Errorf("Wav failed: %w", err)
	}
	var riff bytes.Buffer
	if err := writeChunk(&riff, "RIFF", wave.Bytes()); err != nil {
		return nil, fmt.Errorf("Wav failed: %w", err)
	}
	return riff.Bytes(), nil
}

// writeChunk writes a RIFF chunk: the id, the size of the body and the body.
func writeChunk(buf *bytes.Buffer, id string, body any) error {
	size := binary.Size(body)
	if size < 0 {
		return fmt.Errorf("chunk %q has no fixed size", id)
	}
	buf.WriteString(id)
	if err := binary.Write(buf, binary.LittleEndian, uint32(size)); err != nil {
		return err
	}
	return binary.Write(buf, binary.LittleEndian, body)
}
