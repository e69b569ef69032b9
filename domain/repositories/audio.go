package repositories

import "context"

// CaptureDevice abstracts a microphone. Implementations own the device
// handle, acquire it lazily on Start and release it on Stop. Blocks are
// delivered as float32 samples in [-1, 1] at the device's native rate.
type CaptureDevice interface {
	// Start acquires the device and begins delivering fixed-size sample
	// blocks to onBlock until Stop is called. Returns an error if the
	// device cannot be acquired (permission denied, no device).
	Start(ctx context.Context, onBlock func(block []float32)) error

	// SampleRate returns the device's native sample rate in Hz. Only
	// valid after a successful Start.
	SampleRate() int

	// Stop halts capture and releases the device. Idempotent.
	Stop() error
}

// PlaybackSink abstracts an audio output. Play blocks until the given
// samples have been played to completion or ctx is done, which is what
// serializes chunk playback in the engine's loop.
type PlaybackSink interface {
	// Play renders one chunk of mono float32 samples at the sink's fixed
	// sample rate. Must not overlap concurrent playback; callers
	// serialize.
	Play(ctx context.Context, samples []float32) error

	// Close releases the output device. Idempotent.
	Close() error
}
