package dialogue

import (
	"context"
	"sync"

	"github.com/pitchroom/pitchroom/internal/session"
)

// MockGenerator is a scripted Generator used as the local fallback when no
// model credentials are configured, and by tests that need deterministic
// streamed output.
type MockGenerator struct {
	mu       sync.Mutex
	deltas   []string
	complete string
	err      error
	calls    int
}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		deltas: []string{
			"That sounds interesting",
			", but I'm not convinced yet",
			". What makes this worth the price?",
		},
		complete: "Things done well:\n1. You opened with a clear greeting.\n\n" +
			"Areas of improvement:\n1. Quantify the value earlier.\n\n" +
			"Score: 6/10\n\nTips: lead with the outcome the buyer cares about.",
	}
}

// Script replaces the streamed deltas for the next turns.
func (g *MockGenerator) Script(deltas ...string) *MockGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deltas = deltas
	return g
}

// ScriptComplete replaces the single-shot reply.
func (g *MockGenerator) ScriptComplete(text string) *MockGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.complete = text
	return g
}

// Fail makes every subsequent call return err.
func (g *MockGenerator) Fail(err error) *MockGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
	return g
}

// Calls reports how many turns have been requested.
func (g *MockGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *MockGenerator) StreamTurn(_ context.Context, _ []session.Message, onDelta func(delta string) error) (string, error) {
	g.mu.Lock()
	g.calls++
	deltas := g.deltas
	err := g.err
	g.mu.Unlock()

	if err != nil {
		return "", err
	}
	var full string
	for _, d := range deltas {
		full += d
		if err := onDelta(d); err != nil {
			return "", err
		}
	}
	return full, nil
}

func (g *MockGenerator) CompleteTurn(_ context.Context, _ []session.Message) (string, error) {
	g.mu.Lock()
	g.calls++
	text := g.complete
	err := g.err
	g.mu.Unlock()

	if err != nil {
		return "", err
	}
	return text, nil
}
