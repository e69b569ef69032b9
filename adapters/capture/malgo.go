package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/wicara-ai/wicara/domain/entities"
)

// Microphone captures mono float32 audio from the default input device and
// delivers it in fixed-size blocks. Echo cancellation and noise suppression
// are left to the OS audio stack.
//
// Two locks: mu guards the device lifecycle, dataMu guards the sample
// accumulator touched by the audio thread. They are never nested, and Stop
// never holds either while joining the audio thread — stopping the device
// blocks until the data callback returns, so sharing a lock with it would
// deadlock.
type Microphone struct {
	rate      int
	blockSize int
	logger    *zap.Logger

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	dataMu  sync.Mutex
	pending []float32
}

// NewMicrophone configures a microphone at the given sample rate and block
// size. No device is touched until Start.
func NewMicrophone(rate, blockSize int, logger *zap.Logger) *Microphone {
	return &Microphone{
		rate:      rate,
		blockSize: blockSize,
		logger:    logger,
	}
}

// SampleRate returns the rate the device was configured to capture at.
func (m *Microphone) SampleRate() int {
	return m.rate
}

// Start opens the default capture device and invokes onBlock with every
// full block of samples. Blocks arrive on the device's own thread. A second
// Start while running is a no-op.
func (m *Microphone) Start(ctx context.Context, onBlock func(block []float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return nil
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{
		ThreadPriority: malgo.ThreadPriorityRealtime,
	}, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", entities.ErrMicrophoneUnavailable, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(m.rate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			m.onData(input, onBlock)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		mctx.Uninit()
		return fmt.Errorf("%w: %v", entities.ErrMicrophoneUnavailable, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return fmt.Errorf("%w: %v", entities.ErrMicrophoneUnavailable, err)
	}

	m.dataMu.Lock()
	m.pending = m.pending[:0]
	m.dataMu.Unlock()

	m.ctx = mctx
	m.device = device
	m.logger.Info("Microphone opened", zap.Int("sampleRate", m.rate), zap.Int("blockSize", m.blockSize))
	return nil
}

// Stop closes the device and releases the audio context. Idempotent and
// safe to call while a period callback is in flight.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	device := m.device
	mctx := m.ctx
	m.device = nil
	m.ctx = nil
	m.mu.Unlock()

	if device == nil {
		return nil
	}

	// These join the audio thread, which may be inside onData right now.
	device.Stop()
	device.Uninit()
	mctx.Uninit()

	m.dataMu.Lock()
	m.pending = nil
	m.dataMu.Unlock()

	m.logger.Info("Microphone closed")
	return nil
}

// onData accumulates interleaved f32le bytes until a full block is ready.
// Runs on the device's audio thread.
func (m *Microphone) onData(input []byte, onBlock func(block []float32)) {
	m.dataMu.Lock()
	for i := 0; i+4 <= len(input); i += 4 {
		bits := binary.LittleEndian.Uint32(input[i : i+4])
		m.pending = append(m.pending, math.Float32frombits(bits))
	}

	var blocks [][]float32
	for len(m.pending) >= m.blockSize {
		block := make([]float32, m.blockSize)
		copy(block, m.pending[:m.blockSize])
		m.pending = m.pending[m.blockSize:]
		blocks = append(blocks, block)
	}
	m.dataMu.Unlock()

	for _, block := range blocks {
		onBlock(block)
	}
}
