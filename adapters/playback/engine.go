// Package playback queues inbound PCM chunks and renders them gaplessly,
// one at a time, through a playback sink.
package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wicara-ai/wicara/domain/repositories"
	"github.com/wicara-ai/wicara/internal/audio"
	"github.com/wicara-ai/wicara/internal/config"
)

// Engine owns the playback queue. Chunks play strictly in arrival order on
// a single loop; IsPlaying spans the whole queue, not just the current
// chunk.
type Engine struct {
	sink        repositories.PlaybackSink
	logger      *zap.Logger
	fadeSamples int
	playTimeout time.Duration

	mu      sync.Mutex
	queue   [][]byte
	playing bool
	cancel  context.CancelFunc
}

// NewEngine creates an idle engine over the given sink.
func NewEngine(sink repositories.PlaybackSink, cfg config.Client, logger *zap.Logger) *Engine {
	return &Engine{
		sink:        sink,
		logger:      logger,
		fadeSamples: cfg.FadeSamples,
		playTimeout: cfg.PlayTimeout,
	}
}

// Enqueue appends one 16-bit little-endian PCM chunk to the queue and
// starts the playback loop if it is not already running.
func (e *Engine) Enqueue(pcm []byte) {
	e.mu.Lock()
	e.queue = append(e.queue, pcm)
	if e.playing {
		e.mu.Unlock()
		return
	}
	e.playing = true
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.mu.Unlock()

	go e.loop(ctx)
}

// IsPlaying reports whether the loop is rendering or has chunks pending.
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// StopAudio drops every queued chunk and interrupts the chunk currently
// rendering. Safe to call while idle.
func (e *Engine) StopAudio() {
	e.mu.Lock()
	e.queue = nil
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Close stops playback and releases the sink.
func (e *Engine) Close() error {
	e.StopAudio()
	return e.sink.Close()
}

func (e *Engine) loop(ctx context.Context) {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 || ctx.Err() != nil {
			e.playing = false
			e.cancel = nil
			e.mu.Unlock()
			return
		}
		chunk := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		if err := e.playChunk(ctx, chunk); err != nil {
			if !errors.Is(err, context.Canceled) {
				e.logger.Error("Playback aborted", zap.Error(err))
			}
			e.mu.Lock()
			e.queue = nil
			e.playing = false
			e.cancel = nil
			e.mu.Unlock()
			return
		}
	}
}

func (e *Engine) playChunk(ctx context.Context, chunk []byte) error {
	samples, err := audio.DecodeS16LE(chunk)
	if err != nil {
		return err
	}
	audio.ApplyFades(samples, e.fadeSamples)

	playCtx, cancel := context.WithTimeout(ctx, e.playTimeout)
	defer cancel()
	return e.sink.Play(playCtx, samples)
}
