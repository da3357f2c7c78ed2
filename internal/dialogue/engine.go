// Package dialogue drives the scripted buyer persona: it folds the model's
// streamed output into speakable units, hands each unit to speech synthesis,
// and produces the terminal coaching feedback turn.
package dialogue

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pitchroom/pitchroom/internal/session"
	"github.com/pitchroom/pitchroom/internal/voice"
)

// Generator is the turn-generation capability. StreamTurn yields text deltas
// in order through onDelta and returns the full reply; CompleteTurn is the
// single-shot variant used for feedback. Both accept the unbounded growing
// history.
type Generator interface {
	StreamTurn(ctx context.Context, history []session.Message, onDelta func(delta string) error) (string, error)
	CompleteTurn(ctx context.Context, history []session.Message) (string, error)
}

// StreamCallbacks receive the engine's progressive output. OnPartial fires on
// every delta with the reply accumulated so far; OnUnitAudio fires once per
// finalized speakable unit, in finalization order.
type StreamCallbacks struct {
	OnPartial   func(fullText string)
	OnUnitAudio func(audio []byte)
}

type Engine struct {
	gen   Generator
	synth voice.Synthesizer
}

func NewEngine(gen Generator, synth voice.Synthesizer) *Engine {
	return &Engine{gen: gen, synth: synth}
}

// StreamReply runs one streaming buyer turn over the full history. Synthesis
// happens inline per unit so audio chunks reach the client in reply order.
// Any generation or synthesis error aborts the turn; callers replace it with
// the fixed apology.
func (e *Engine) StreamReply(ctx context.Context, history []session.Message, toneDirective string, cb StreamCallbacks) (string, error) {
	var full strings.Builder
	var buf TurnBuffer

	synthUnit := func(unit string) error {
		speakable := sanitizeSpeechText(unit)
		if speakable == "" {
			return nil
		}
		audio, err := e.synth.Synthesize(ctx, speakable, toneDirective)
		if err != nil {
			return fmt.Errorf("synthesize unit: %w", err)
		}
		if cb.OnUnitAudio != nil {
			cb.OnUnitAudio(audio)
		}
		return nil
	}

	_, err := e.gen.StreamTurn(ctx, history, func(delta string) error {
		full.WriteString(delta)
		if unit, ready := buf.Append(delta); ready {
			if err := synthUnit(unit); err != nil {
				return err
			}
		}
		if cb.OnPartial != nil {
			cb.OnPartial(full.String())
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("stream turn: %w", err)
	}

	if unit, ok := buf.Flush(); ok {
		if err := synthUnit(unit); err != nil {
			return "", err
		}
	}
	return full.String(), nil
}

// Feedback produces the terminal coaching turn in one non-streamed call.
func (e *Engine) Feedback(ctx context.Context, history []session.Message) (string, error) {
	text, err := e.gen.CompleteTurn(ctx, history)
	if err != nil {
		return "", fmt.Errorf("feedback turn: %w", err)
	}
	return text, nil
}

// spokenWordsPerSecond is the playback-rate estimate (roughly 150 wpm) used
// to hold the transcription pause until the synthesized reply has played out.
const spokenWordsPerSecond = 2.5

// EstimateSpokenDuration returns ceil(wordCount/2.5*1000) milliseconds.
func EstimateSpokenDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	ms := math.Ceil(float64(words) / spokenWordsPerSecond * 1000)
	return time.Duration(ms) * time.Millisecond
}
