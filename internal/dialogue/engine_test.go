package dialogue

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pitchroom/pitchroom/internal/session"
)

type recordingSynth struct {
	texts []string
	err   error
}

func (s *recordingSynth) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.texts = append(s.texts, text)
	return []byte(text), nil
}

func history(userText string) []session.Message {
	return []session.Message{
		{Role: session.RoleSystem, Content: "you are a buyer"},
		{Role: session.RoleUser, Content: userText},
	}
}

func TestStreamReplySingleUnitShortSentence(t *testing.T) {
	gen := NewMockGenerator().Script("Sure", "! I have about ten minutes", ".")
	synth := &recordingSynth{}
	eng := NewEngine(gen, synth)

	var units [][]byte
	var lastPartial string
	full, err := eng.StreamReply(context.Background(), history("Do you have a minute?"), "", StreamCallbacks{
		OnPartial:   func(s string) { lastPartial = s },
		OnUnitAudio: func(a []byte) { units = append(units, a) },
	})
	if err != nil {
		t.Fatalf("StreamReply: %v", err)
	}
	if full != "Sure! I have about ten minutes." {
		t.Fatalf("full reply = %q", full)
	}
	if len(units) != 1 {
		t.Fatalf("unit count = %d, want 1", len(units))
	}
	if lastPartial != full {
		t.Fatalf("last partial = %q, want the full reply", lastPartial)
	}
	if synth.texts[0] != "Sure! I have about ten minutes." {
		t.Fatalf("synthesized text = %q", synth.texts[0])
	}
}

func TestStreamReplyCutsAtTokenThresholdAndFlushesRemainder(t *testing.T) {
	deltas := make([]string, 25)
	for i := range deltas {
		deltas[i] = "word "
	}
	gen := NewMockGenerator().Script(deltas...)
	synth := &recordingSynth{}
	eng := NewEngine(gen, synth)

	_, err := eng.StreamReply(context.Background(), history("go"), "", StreamCallbacks{})
	if err != nil {
		t.Fatalf("StreamReply: %v", err)
	}
	if len(synth.texts) != 2 {
		t.Fatalf("unit count = %d, want threshold cut plus remainder", len(synth.texts))
	}
	if got := len(strings.Fields(synth.texts[0])); got != 20 {
		t.Fatalf("first unit tokens = %d, want 20", got)
	}
	if got := len(strings.Fields(synth.texts[1])); got != 5 {
		t.Fatalf("remainder tokens = %d, want 5", got)
	}
}

func TestStreamReplySanitizesUnitsBeforeSynthesis(t *testing.T) {
	gen := NewMockGenerator().Script("Check https://example.com/pricing now.")
	synth := &recordingSynth{}
	eng := NewEngine(gen, synth)

	if _, err := eng.StreamReply(context.Background(), history("link?"), "", StreamCallbacks{}); err != nil {
		t.Fatalf("StreamReply: %v", err)
	}
	if len(synth.texts) != 1 || synth.texts[0] != "Check now." {
		t.Fatalf("synthesized texts = %q", synth.texts)
	}
}

func TestStreamReplyGeneratorFailure(t *testing.T) {
	gen := NewMockGenerator().Fail(errors.New("model offline"))
	eng := NewEngine(gen, &recordingSynth{})

	if _, err := eng.StreamReply(context.Background(), history("hi"), "", StreamCallbacks{}); err == nil {
		t.Fatal("generator failure should abort the turn")
	}
}

func TestStreamReplySynthesisFailureAbortsTurn(t *testing.T) {
	gen := NewMockGenerator().Script("A full sentence that ends cleanly.")
	synthErr := errors.New("tts offline")
	eng := NewEngine(gen, &recordingSynth{err: synthErr})

	_, err := eng.StreamReply(context.Background(), history("hi"), "", StreamCallbacks{})
	if !errors.Is(err, synthErr) {
		t.Fatalf("err = %v, want wrapped synthesis error", err)
	}
}

func TestFeedbackSingleShot(t *testing.T) {
	gen := NewMockGenerator().ScriptComplete("Score: 8/10")
	eng := NewEngine(gen, &recordingSynth{})

	text, err := eng.Feedback(context.Background(), history("wrap up"))
	if err != nil {
		t.Fatalf("Feedback: %v", err)
	}
	if text != "Score: 8/10" {
		t.Fatalf("feedback = %q", text)
	}
}

func TestEstimateSpokenDuration(t *testing.T) {
	cases := []struct {
		text string
		want time.Duration
	}{
		{"", 0},
		{"one", 400 * time.Millisecond},
		{"one two three four five", 2 * time.Second},
		{"one two three four five six", 2400 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := EstimateSpokenDuration(tc.text); got != tc.want {
			t.Fatalf("EstimateSpokenDuration(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
