package voice

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pitchroom/pitchroom/internal/audio"
)

// MockTranscriber is a local fallback used when Deepgram is not configured.
// It emits a canned partial-then-final pair after enough audio has arrived.
type MockTranscriber struct{}

func NewMockTranscriber() *MockTranscriber { return &MockTranscriber{} }

func (t *MockTranscriber) StartStream(_ context.Context, _ StreamConfig) (TranscriptStream, error) {
	return &mockTranscriptStream{events: make(chan TranscriptEvent, 64)}, nil
}

type mockTranscriptStream struct {
	mu     sync.Mutex
	events chan TranscriptEvent
	chunks int
	bytes  int
	closed bool
}

func (s *mockTranscriptStream) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.chunks++
	s.bytes += len(chunk)
	if s.chunks%4 == 0 {
		s.events <- TranscriptEvent{Text: "simulated voice", Final: false, Confidence: 0.5}
	}
	if s.chunks%8 == 0 {
		s.events <- TranscriptEvent{Text: "simulated voice input", Final: true, Confidence: 0.7}
	}
	return nil
}

func (s *mockTranscriptStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.bytes > 0 {
		s.events <- TranscriptEvent{Text: "simulated voice input", Final: true, Confidence: 0.7}
	}
	s.closed = true
	close(s.events)
	return nil
}

func (s *mockTranscriptStream) Events() <-chan TranscriptEvent { return s.events }

func (s *mockTranscriptStream) Err() error { return nil }

func (s *mockTranscriptStream) Close() error { return s.CloseSend() }

// MockSynthesizer produces silent WAV payloads sized to the estimated spoken
// duration of the text, so downstream timing behaves like real synthesis.
type MockSynthesizer struct{}

func NewMockSynthesizer() *MockSynthesizer { return &MockSynthesizer{} }

func (s *MockSynthesizer) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	words := len(strings.Fields(text))
	if words == 0 {
		return audio.EncodeWAVPCM16LE(nil, 16000)
	}
	d := time.Duration(words) * 400 * time.Millisecond
	return audio.EncodeWAVPCM16LE(audio.SilencePCM16(d, 16000), 16000)
}
