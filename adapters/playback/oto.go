package playback

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"

	"github.com/wicara-ai/wicara/internal/audio"
)

// Speaker renders mono 16-bit audio through the default output device. The
// underlying context is process-global and created lazily on the first
// Play; oto has no teardown, so Close only marks the speaker unusable.
type Speaker struct {
	sampleRate int
	logger     *zap.Logger

	once    sync.Once
	ctx     *oto.Context
	initErr error

	mu     sync.Mutex
	closed bool
}

// NewSpeaker configures a speaker at the given output sample rate.
func NewSpeaker(sampleRate int, logger *zap.Logger) *Speaker {
	return &Speaker{sampleRate: sampleRate, logger: logger}
}

func (s *Speaker) init() error {
	s.once.Do(func() {
		octx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   s.sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   100 * time.Millisecond,
		})
		if err != nil {
			s.initErr = fmt.Errorf("failed to open audio output: %w", err)
			return
		}
		<-ready
		s.ctx = octx
		s.logger.Info("Speaker opened", zap.Int("sampleRate", s.sampleRate))
	})
	return s.initErr
}

// Play renders one chunk and blocks until it has drained or ctx is done.
func (s *Speaker) Play(ctx context.Context, samples []float32) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("speaker closed")
	}
	s.mu.Unlock()

	if err := s.init(); err != nil {
		return err
	}

	player := s.ctx.NewPlayer(bytes.NewReader(audio.QuantizeS16LE(samples)))
	defer player.Close()
	player.Play()

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Close marks the speaker unusable. The oto context itself cannot be torn
// down and lives until process exit.
func (s *Speaker) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
