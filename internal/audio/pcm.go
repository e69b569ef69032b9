package audio

import (
	"encoding/binary"
	"errors"
	"math"
)

// BytesPerSample is the wire sample width: 16-bit signed little-endian.
const BytesPerSample = 2

// ErrOddChunkLength is returned when a PCM16 chunk has an odd byte count.
// A trailing half-sample is a protocol violation, not something to truncate.
var ErrOddChunkLength = errors.New("audio: pcm16 chunk length must be even")

// QuantizeS16LE converts normalized float32 samples to 16-bit signed
// little-endian PCM. Every sample is clamped to [-1, 1] first so an
// out-of-range input can never wrap around.
func QuantizeS16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(math.Round(float64(s) * 32767))
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(v))
	}
	return out
}

// DecodeS16LE converts 16-bit signed little-endian PCM back to normalized
// float32 samples in [-1, 1).
func DecodeS16LE(pcm []byte) ([]float32, error) {
	if len(pcm)%BytesPerSample != 0 {
		return nil, ErrOddChunkLength
	}
	out := make([]float32, len(pcm)/BytesPerSample)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:]))
		out[i] = float32(v) / 32768.0
	}
	return out, nil
}

// ApplyFades ramps the first and last fadeSamples of the block in place to
// suppress clicks at chunk boundaries during gapless playback. Blocks
// shorter than fadeSamples get proportionally shorter ramps.
func ApplyFades(samples []float32, fadeSamples int) {
	n := fadeSamples
	if n > len(samples) {
		n = len(samples)
	}
	for i := 0; i < n; i++ {
		samples[i] *= float32(i) / float32(n)
	}
	start := len(samples) - n
	for i := 0; i < n; i++ {
		samples[start+i] *= float32(n-i) / float32(n)
	}
}
