// Package audio provides the pure PCM transforms shared by the capture and
// playback pipelines: linear-interpolation resampling, 16-bit little-endian
// quantization and decoding, and short boundary fades.
//
// Everything in this package is side-effect free. Device handling lives in
// the adapters.
package audio
