package wavfile

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const encodeBitDepth = 16

// Clip holds mono PCM samples normalized to [-1, 1].
type Clip struct {
	SampleRate int
	Samples    []float64
}

// Read decodes a WAV file into a mono Clip. Multi-channel input is downmixed
// by averaging the channels.
func Read(path string) (*Clip, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wav read: %w", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("wav read: %s is not a valid wav file", filepath.Base(path))
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav read: decode pcm: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("wav read: %s has no sample rate", filepath.Base(path))
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = encodeBitDepth
	}
	scale := float64(int(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch])
		}
		samples[i] = sum / float64(channels) / scale
	}

	return &Clip{SampleRate: buf.Format.SampleRate, Samples: samples}, nil
}

// Write encodes the clip as 16-bit mono PCM at the clip's sample rate.
func Write(path string, clip *Clip) error {
	if clip == nil {
		return errors.New("wav write: nil clip")
	}
	if clip.SampleRate <= 0 {
		return fmt.Errorf("wav write: invalid sample rate %d", clip.SampleRate)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wav write: %w", err)
	}

	encoder := wav.NewEncoder(file, clip.SampleRate, encodeBitDepth, 1, 1)

	data := make([]int, len(clip.Samples))
	for i, sample := range clip.Samples {
		if sample > 1 {
			sample = 1
		}
		if sample < -1 {
			sample = -1
		}
		data[i] = int(math.Round(sample * 32767.0))
	}

	outBuf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  clip.SampleRate,
		},
		Data:           data,
		SourceBitDepth: encodeBitDepth,
	}

	if err := encoder.Write(outBuf); err != nil {
		file.Close()
		return fmt.Errorf("wav write: encode: %w", err)
	}
	if err := encoder.Close(); err != nil {
		file.Close()
		return fmt.Errorf("wav write: close encoder: %w", err)
	}
	return file.Close()
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Peak returns the largest absolute sample value.
func (c *Clip) Peak() float64 {
	if c == nil {
		return 0
	}
	peak := 0.0
	for _, sample := range c.Samples {
		if abs := math.Abs(sample); abs > peak {
			peak = abs
		}
	}
	return peak
}

// TailSilence measures the trailing run of samples below floorDBFS, in
// milliseconds. Only the final windowMs of the clip is inspected, so the
// result is capped at windowMs.
func (c *Clip) TailSilence(windowMs, floorDBFS float64) float64 {
	if c == nil || c.SampleRate <= 0 || len(c.Samples) == 0 {
		return 0
	}

	threshold := math.Pow(10, floorDBFS/20)
	windowSamples := int(windowMs / 1000 * float64(c.SampleRate))
	if windowSamples <= 0 {
		return 0
	}
	start := len(c.Samples) - windowSamples
	if start < 0 {
		start = 0
	}

	silent := 0
	for i := len(c.Samples) - 1; i >= start; i-- {
		if math.Abs(c.Samples[i]) >= threshold {
			break
		}
		silent++
	}
	return float64(silent) / float64(c.SampleRate) * 1000
}
