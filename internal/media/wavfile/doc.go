// Package wavfile provides mono PCM decoding, encoding, and level
// measurement for take waveforms.
//
// This package depends only on go-audio and could be extracted as a
// standalone library.
//
// Clips carry samples normalized to [-1, 1] regardless of source bit depth.
// Multi-channel sources are downmixed on read; output is always 16-bit mono.
//
// Key types:
//   - Clip: sample rate plus normalized samples
//
// Primary entry points:
//   - Read, Write: WAV file IO
//   - Clip.TailSilence: trailing-silence measurement used by the selection gates
package wavfile
