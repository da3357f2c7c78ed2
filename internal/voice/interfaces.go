// Package voice manages the audio half of a session: the live speech-to-text
// stream with its keep-alive policy, and speech synthesis for the buyer's
// replies.
package voice

import "context"

// TranscriptEvent is one result from the speech-to-text channel. Partial
// events are still revisable; only final events may be surfaced downstream.
type TranscriptEvent struct {
	Text       string
	Final      bool
	Confidence float64
}

// StreamConfig describes the inbound audio for one transcription attempt.
type StreamConfig struct {
	SampleRate int
	Language   string
}

// TranscriptStream is one live speech-to-text session. SendAudio never blocks
// on transcription progress; Events closes when the stream ends, after which
// Err reports whether it ended cleanly. CloseSend signals end-of-audio.
type TranscriptStream interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan TranscriptEvent
	Err() error
	Close() error
}

// Transcriber is the speech-to-text capability: it accepts a live open-ended
// PCM16 sequence and produces transcript events tagged final-or-partial.
type Transcriber interface {
	StartStream(ctx context.Context, cfg StreamConfig) (TranscriptStream, error)
}

// Synthesizer is the text-to-speech capability: one text unit plus a tone
// directive in, one complete audio payload out. Stateless per call.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, toneDirective string) ([]byte, error)
}
