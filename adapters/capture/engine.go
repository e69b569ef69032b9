// Package capture turns raw microphone blocks into the 16-bit mono chunks
// the session expects: rate-limited, resampled to the session rate, and
// quantized to little-endian PCM.
package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wicara-ai/wicara/domain/repositories"
	"github.com/wicara-ai/wicara/internal/audio"
	"github.com/wicara-ai/wicara/internal/config"
)

// Engine drives one capture device and owns the outbound chunk pipeline.
// Blocks arriving faster than the chunk interval are dropped whole; the
// pipeline never reorders or queues capture data.
type Engine struct {
	device     repositories.CaptureDevice
	logger     *zap.Logger
	targetRate int
	interval   time.Duration

	mu        sync.Mutex
	handler   func(chunk []byte)
	recording bool
	lastEmit  time.Time
}

// NewEngine creates an engine over the given device. The device is not
// started until StartRecording.
func NewEngine(device repositories.CaptureDevice, cfg config.Client, logger *zap.Logger) *Engine {
	return &Engine{
		device:     device,
		logger:     logger,
		targetRate: cfg.InputSampleRate,
		interval:   cfg.ChunkInterval,
	}
}

// SetChunkHandler installs the consumer for encoded chunks. Installing a
// handler mid-recording takes effect on the next block.
func (e *Engine) SetChunkHandler(handler func(chunk []byte)) {
	e.mu.Lock()
	e.handler = handler
	e.mu.Unlock()
}

// ClearChunkHandler detaches the consumer. Capture may keep running; blocks
// with no handler are discarded.
func (e *Engine) ClearChunkHandler() {
	e.mu.Lock()
	e.handler = nil
	e.mu.Unlock()
}

// StartRecording opens the device and begins emitting chunks. Calling it
// while already recording is a no-op.
func (e *Engine) StartRecording(ctx context.Context) error {
	e.mu.Lock()
	if e.recording {
		e.mu.Unlock()
		return nil
	}
	e.recording = true
	e.lastEmit = time.Time{}
	e.mu.Unlock()

	if err := e.device.Start(ctx, e.onBlock); err != nil {
		e.mu.Lock()
		e.recording = false
		e.mu.Unlock()
		return fmt.Errorf("failed to start capture: %w", err)
	}

	e.logger.Info("Recording started",
		zap.Int("deviceRate", e.device.SampleRate()),
		zap.Int("targetRate", e.targetRate))
	return nil
}

// StopRecording stops the device. Idempotent.
func (e *Engine) StopRecording() error {
	e.mu.Lock()
	if !e.recording {
		e.mu.Unlock()
		return nil
	}
	e.recording = false
	e.mu.Unlock()

	if err := e.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture: %w", err)
	}
	e.logger.Info("Recording stopped")
	return nil
}

// IsRecording reports whether the device is currently capturing.
func (e *Engine) IsRecording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recording
}

// onBlock runs on the device's capture thread for every full block.
func (e *Engine) onBlock(block []float32) {
	e.mu.Lock()
	handler := e.handler
	if !e.recording || handler == nil {
		e.mu.Unlock()
		return
	}
	now := time.Now()
	if !e.lastEmit.IsZero() && now.Sub(e.lastEmit) < e.interval {
		e.mu.Unlock()
		return
	}
	e.lastEmit = now
	e.mu.Unlock()

	resampled := audio.Resample(block, e.device.SampleRate(), e.targetRate)
	handler(audio.QuantizeS16LE(resampled))
}
