package voice

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pitchroom/pitchroom/internal/audio"
)

// BridgeConfig tunes one transcription attempt. Zero values fall back to the
// wire contract: 16kHz PCM16 mono, a 5s liveness check, a 10s idle threshold
// and 500ms silence injections.
type BridgeConfig struct {
	SampleRate      int
	Language        string
	CheckInterval   time.Duration
	IdleThreshold   time.Duration
	SilenceDuration time.Duration
}

func (c BridgeConfig) withDefaults() BridgeConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Language == "" {
		c.Language = "en-US"
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 5 * time.Second
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = 10 * time.Second
	}
	if c.SilenceDuration <= 0 {
		c.SilenceDuration = 500 * time.Millisecond
	}
	return c
}

// BridgeCallbacks deliver bridge output. OnFinalTranscript fires only for
// finalized results; partial results are discarded at this boundary so
// unstable text never reaches the dialogue layer. OnFailure fires at most
// once, when the transcription channel ends with an error.
type BridgeCallbacks struct {
	OnFinalTranscript func(text string)
	OnFailure         func(err error)
	OnSilenceInjected func()
}

// Bridge owns one audio-in/text-out stream against the transcription
// capability, including the liveness keep-alive that stops the upstream
// channel from closing while the speaker pauses.
type Bridge struct {
	cfg    BridgeConfig
	cb     BridgeCallbacks
	stream TranscriptStream
	cancel context.CancelFunc

	mu         sync.Mutex
	lastAudio  time.Time
	sendClosed bool
}

// StartBridge opens a transcription stream and begins consuming its results.
// The returned bridge accepts audio until StopSend.
func StartBridge(ctx context.Context, t Transcriber, cfg BridgeConfig, cb BridgeCallbacks) (*Bridge, error) {
	cfg = cfg.withDefaults()

	stream, err := t.StartStream(ctx, StreamConfig{SampleRate: cfg.SampleRate, Language: cfg.Language})
	if err != nil {
		return nil, err
	}

	monitorCtx, cancel := context.WithCancel(ctx)
	b := &Bridge{
		cfg:       cfg,
		cb:        cb,
		stream:    stream,
		cancel:    cancel,
		lastAudio: time.Now(),
	}
	go b.monitor(monitorCtx)
	go b.consume()
	return b, nil
}

// PushAudio appends one inbound chunk. It never blocks the caller and is a
// no-op once the send side is closed.
func (b *Bridge) PushAudio(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	if b.sendClosed {
		b.mu.Unlock()
		return
	}
	b.lastAudio = time.Now()
	stream := b.stream
	b.mu.Unlock()

	_ = stream.SendAudio(chunk)
}

// StopSend closes the audio stream, signalling end-of-stream upstream, and
// cancels the liveness monitor. Result consumption continues until the
// provider flushes its tail.
func (b *Bridge) StopSend() {
	b.mu.Lock()
	if b.sendClosed {
		b.mu.Unlock()
		return
	}
	b.sendClosed = true
	b.mu.Unlock()

	b.cancel()
	_ = b.stream.CloseSend()
}

// Close tears the stream down on disconnect. Best effort: in-flight upstream
// work runs to completion with its results unobserved.
func (b *Bridge) Close() {
	b.StopSend()
	_ = b.stream.Close()
}

func (b *Bridge) monitor(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.mu.Lock()
			idle := time.Since(b.lastAudio) > b.cfg.IdleThreshold
			open := !b.sendClosed
			stream := b.stream
			b.mu.Unlock()
			if !idle || !open {
				continue
			}
			// Keep-alive only: injected silence is not audio activity and
			// must not reset the idle clock.
			_ = stream.SendAudio(audio.SilencePCM16(b.cfg.SilenceDuration, b.cfg.SampleRate))
			if b.cb.OnSilenceInjected != nil {
				b.cb.OnSilenceInjected()
			}
		}
	}
}

func (b *Bridge) consume() {
	for evt := range b.stream.Events() {
		if !evt.Final {
			continue
		}
		text := strings.TrimSpace(evt.Text)
		if text == "" {
			continue
		}
		if b.cb.OnFinalTranscript != nil {
			b.cb.OnFinalTranscript(text)
		}
	}
	if err := b.stream.Err(); err != nil && b.cb.OnFailure != nil {
		b.cb.OnFailure(err)
	}
}
