package roleplay

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pitchroom/pitchroom/internal/dialogue"
	"github.com/pitchroom/pitchroom/internal/observability"
	"github.com/pitchroom/pitchroom/internal/protocol"
	"github.com/pitchroom/pitchroom/internal/session"
	"github.com/pitchroom/pitchroom/internal/voice"
)

const testConnID = "conn-1"

type testHarness struct {
	sessions *session.Registry
	inbound  chan any
	outbound chan any
	done     chan error
	cancel   context.CancelFunc
}

func startHarness(t *testing.T, namespace string, gen dialogue.Generator, transcriber voice.Transcriber) *testHarness {
	t.Helper()

	sessions := session.NewRegistry(time.Minute)
	sessions.Create(testConnID)
	eng := dialogue.NewEngine(gen, voice.NewMockSynthesizer())
	if transcriber == nil {
		transcriber = voice.NewMockTranscriber()
	}
	coord := NewCoordinator(
		sessions,
		eng,
		transcriber,
		observability.NewMetrics(namespace),
		observability.NewLatencyWindow(32),
		voice.BridgeConfig{},
	)

	ctx, cancel := context.WithCancel(context.Background())
	h := &testHarness{
		sessions: sessions,
		inbound:  make(chan any, 16),
		outbound: make(chan any, 64),
		done:     make(chan error, 1),
		cancel:   cancel,
	}
	go func() {
		h.done <- coord.RunConnection(ctx, testConnID, h.inbound, h.outbound)
	}()
	t.Cleanup(cancel)
	return h
}

func startB2C() protocol.StartSession {
	return protocol.StartSession{
		Type:        protocol.TypeStartSession,
		TargetBuyer: "b2c",
		Product:     "meal kit subscription",
		B2C: protocol.BuyerB2C{
			Customer:   "busy parent",
			Age:        "38",
			Income:     "90k",
			Motivation: "save time on weeknights",
			Difficulty: "medium",
		},
	}
}

func (h *testHarness) waitFor(t *testing.T, match func(any) bool) any {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg := <-h.outbound:
			if match(msg) {
				return msg
			}
		case <-deadline:
			t.Fatal("timed out waiting for outbound message")
		}
	}
}

func isType(want protocol.MessageType) func(any) bool {
	return func(msg any) bool {
		switch m := msg.(type) {
		case protocol.PauseTranscription:
			return m.Type == want
		case protocol.ResumeTranscription:
			return m.Type == want
		case protocol.GPTPartialText:
			return m.Type == want
		case protocol.GPTAudio:
			return m.Type == want
		case protocol.GPTReply:
			return m.Type == want
		case protocol.Transcription:
			return m.Type == want
		default:
			return false
		}
	}
}

func TestRunConnectionFullTurn(t *testing.T) {
	gen := dialogue.NewMockGenerator().Script("Ok.")
	h := startHarness(t, "roleplay_full_turn", gen, nil)

	h.inbound <- startB2C()
	h.inbound <- protocol.UserMessage{Type: protocol.TypeUserMessage, Text: "Hi, do you cook at home?"}

	h.waitFor(t, isType(protocol.TypePauseTranscription))
	// The unit's audio is synthesized before the partial for the same delta
	// goes out, so the audio frame arrives first.
	audio := h.waitFor(t, isType(protocol.TypeGPTAudio)).(protocol.GPTAudio)
	if audio.AudioBase64 == "" {
		t.Fatal("gpt_audio carried no payload")
	}
	partial := h.waitFor(t, isType(protocol.TypeGPTPartialText)).(protocol.GPTPartialText)
	if partial.Text != "Ok." {
		t.Fatalf("partial text = %q", partial.Text)
	}
	h.waitFor(t, isType(protocol.TypeResumeTranscription))

	history, err := h.sessions.History(testConnID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("history length = %d, want system+opening+user+assistant", len(history))
	}
	if history[3].Role != session.RoleAssistant || history[3].Content != "Ok." {
		t.Fatalf("assistant entry = %+v", history[3])
	}
	s, _ := h.sessions.Get(testConnID)
	if s.TurnLocked {
		t.Fatal("turn lock still held after resume")
	}
}

type gatedGenerator struct {
	release chan struct{}
	reply   string
}

func (g *gatedGenerator) StreamTurn(ctx context.Context, _ []session.Message, onDelta func(string) error) (string, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if err := onDelta(g.reply); err != nil {
		return "", err
	}
	return g.reply, nil
}

func (g *gatedGenerator) CompleteTurn(context.Context, []session.Message) (string, error) {
	return g.reply, nil
}

func TestRunConnectionDropsMessageWhileTurnInFlight(t *testing.T) {
	gen := &gatedGenerator{release: make(chan struct{}), reply: "Fine."}
	h := startHarness(t, "roleplay_turn_lock", gen, nil)

	h.inbound <- startB2C()
	h.inbound <- protocol.UserMessage{Type: protocol.TypeUserMessage, Text: "first"}
	h.waitFor(t, isType(protocol.TypePauseTranscription))

	// Second message arrives while the turn lock is held: dropped, no reply.
	h.inbound <- protocol.UserMessage{Type: protocol.TypeUserMessage, Text: "second"}
	close(gen.release)
	h.waitFor(t, isType(protocol.TypeResumeTranscription))

	history, _ := h.sessions.History(testConnID)
	if len(history) != 4 {
		t.Fatalf("history length = %d, want exactly one accepted turn", len(history))
	}
	if history[2].Content != "first" {
		t.Fatalf("accepted user entry = %q", history[2].Content)
	}
}

func TestRunConnectionApologyOnGenerationFailure(t *testing.T) {
	gen := dialogue.NewMockGenerator().Fail(errors.New("model offline"))
	h := startHarness(t, "roleplay_apology", gen, nil)

	h.inbound <- startB2C()
	h.inbound <- protocol.UserMessage{Type: protocol.TypeUserMessage, Text: "pitch"}

	reply := h.waitFor(t, isType(protocol.TypeGPTReply)).(protocol.GPTReply)
	if reply.Text != apologyReply {
		t.Fatalf("reply = %q, want fixed apology", reply.Text)
	}
	h.waitFor(t, isType(protocol.TypeResumeTranscription))

	history, _ := h.sessions.History(testConnID)
	if len(history) != 3 {
		t.Fatalf("history length = %d, apology must not be recorded", len(history))
	}
	s, _ := h.sessions.Get(testConnID)
	if s.TurnLocked {
		t.Fatal("turn lock still held after failed turn")
	}
}

func TestRunConnectionFeedbackSealsAndDisconnects(t *testing.T) {
	gen := dialogue.NewMockGenerator().ScriptComplete("Score: 7/10")
	h := startHarness(t, "roleplay_feedback", gen, nil)

	h.inbound <- startB2C()
	h.inbound <- protocol.StopTranscription{Type: protocol.TypeStopTranscription}

	h.waitFor(t, isType(protocol.TypePauseTranscription))
	reply := h.waitFor(t, isType(protocol.TypeGPTReply)).(protocol.GPTReply)
	if reply.Text != "Score: 7/10" {
		t.Fatalf("feedback reply = %q", reply.Text)
	}

	s, _ := h.sessions.Get(testConnID)
	if s.Phase != session.PhaseSealed {
		t.Fatalf("phase = %q, want sealed", s.Phase)
	}

	select {
	case <-h.done:
	case <-time.After(4 * time.Second):
		t.Fatal("connection did not close after feedback")
	}
}

// slowFeedbackGenerator holds CompleteTurn until released, so a second stop
// frame can race the in-flight feedback turn.
type slowFeedbackGenerator struct {
	release chan struct{}
	reply   string
}

func (g *slowFeedbackGenerator) StreamTurn(_ context.Context, _ []session.Message, _ func(string) error) (string, error) {
	return g.reply, nil
}

func (g *slowFeedbackGenerator) CompleteTurn(ctx context.Context, _ []session.Message) (string, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return g.reply, nil
}

func TestRunConnectionSecondStopDuringFeedbackIsNoOp(t *testing.T) {
	gen := &slowFeedbackGenerator{release: make(chan struct{}), reply: "Score: 7/10"}
	h := startHarness(t, "roleplay_feedback_dup", gen, nil)

	h.inbound <- startB2C()
	h.inbound <- protocol.StopTranscription{Type: protocol.TypeStopTranscription}
	h.inbound <- protocol.StopTranscription{Type: protocol.TypeStopTranscription}
	close(gen.release)

	h.waitFor(t, isType(protocol.TypeGPTReply))
	select {
	case msg := <-h.outbound:
		if _, dup := msg.(protocol.GPTReply); dup {
			t.Fatalf("second gpt_reply emitted: %+v", msg)
		}
	case <-time.After(300 * time.Millisecond):
	}

	history, _ := h.sessions.History(testConnID)
	if len(history) != 4 {
		t.Fatalf("history length = %d, directive must append exactly once", len(history))
	}
	s, _ := h.sessions.Get(testConnID)
	if s.Phase != session.PhaseSealed {
		t.Fatalf("phase = %q, want sealed", s.Phase)
	}
}

func TestRunConnectionFeedbackFailureLeavesSessionOpen(t *testing.T) {
	gen := dialogue.NewMockGenerator().ScriptComplete("Score: 8/10").Fail(errors.New("model offline"))
	h := startHarness(t, "roleplay_feedback_retry", gen, nil)

	h.inbound <- startB2C()
	h.inbound <- protocol.StopTranscription{Type: protocol.TypeStopTranscription}

	reply := h.waitFor(t, isType(protocol.TypeGPTReply)).(protocol.GPTReply)
	if reply.Text != apologyFeedback {
		t.Fatalf("reply = %q, want fixed feedback apology", reply.Text)
	}
	s, _ := h.sessions.Get(testConnID)
	if s.Phase != session.PhaseActive || s.TurnLocked {
		t.Fatalf("after failure: phase=%q locked=%v, want active/unlocked", s.Phase, s.TurnLocked)
	}

	// The provider recovers and the client stops again.
	gen.Fail(nil)
	h.inbound <- protocol.StopTranscription{Type: protocol.TypeStopTranscription}

	reply = h.waitFor(t, isType(protocol.TypeGPTReply)).(protocol.GPTReply)
	if reply.Text != "Score: 8/10" {
		t.Fatalf("retried feedback reply = %q", reply.Text)
	}
	history, _ := h.sessions.History(testConnID)
	if len(history) != 4 {
		t.Fatalf("history length = %d, failed attempt must not leave a directive behind", len(history))
	}
	s, _ = h.sessions.Get(testConnID)
	if s.Phase != session.PhaseSealed {
		t.Fatalf("phase = %q, want sealed after retry", s.Phase)
	}
	select {
	case <-h.done:
	case <-time.After(4 * time.Second):
		t.Fatal("connection did not close after successful retry")
	}
}

func TestRunConnectionUnconfiguredMessagesDropped(t *testing.T) {
	gen := dialogue.NewMockGenerator()
	h := startHarness(t, "roleplay_unconfigured", gen, nil)

	h.inbound <- protocol.UserMessage{Type: protocol.TypeUserMessage, Text: "hello?"}
	h.inbound <- protocol.StopTranscription{Type: protocol.TypeStopTranscription}

	select {
	case msg := <-h.outbound:
		t.Fatalf("unexpected outbound message %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
	if gen.Calls() != 0 {
		t.Fatalf("generator calls = %d, want 0", gen.Calls())
	}
}

type scriptedStream struct {
	mu     sync.Mutex
	sent   [][]byte
	events chan voice.TranscriptEvent
}

func (s *scriptedStream) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.sent = append(s.sent, cp)
	return nil
}

func (s *scriptedStream) CloseSend() error                          { return nil }
func (s *scriptedStream) Events() <-chan voice.TranscriptEvent      { return s.events }
func (s *scriptedStream) Err() error                                { return nil }
func (s *scriptedStream) Close() error                              { return nil }

type scriptedTranscriber struct {
	stream *scriptedStream
}

func (f *scriptedTranscriber) StartStream(context.Context, voice.StreamConfig) (voice.TranscriptStream, error) {
	return f.stream, nil
}

// multiStreamTranscriber hands out a fresh stream per StartStream call so a
// test can observe transcription being stopped and started again.
type multiStreamTranscriber struct {
	mu      sync.Mutex
	streams []*scriptedStream
}

func (f *multiStreamTranscriber) StartStream(context.Context, voice.StreamConfig) (voice.TranscriptStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &scriptedStream{events: make(chan voice.TranscriptEvent, 8)}
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *multiStreamTranscriber) stream(i int) *scriptedStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.streams) {
		return nil
	}
	return f.streams[i]
}

func TestRunConnectionTranscriptionRestartsAfterStop(t *testing.T) {
	transcriber := &multiStreamTranscriber{}
	gen := dialogue.NewMockGenerator()
	h := startHarness(t, "roleplay_transcription_restart", gen, transcriber)

	// Stop before the session is configured: the feedback request is dropped
	// and the audio path must come back on the next start.
	h.inbound <- protocol.StartTranscription{Type: protocol.TypeStartTranscription}
	h.inbound <- protocol.StopTranscription{Type: protocol.TypeStopTranscription}
	h.inbound <- protocol.StartTranscription{Type: protocol.TypeStartTranscription}

	var second *scriptedStream
	deadline := time.Now().Add(3 * time.Second)
	for second == nil {
		if time.Now().After(deadline) {
			t.Fatal("second transcription stream was never opened")
		}
		second = transcriber.stream(1)
		time.Sleep(10 * time.Millisecond)
	}

	second.events <- voice.TranscriptEvent{Text: "still listening", Final: true}
	got := h.waitFor(t, isType(protocol.TypeTranscription)).(protocol.Transcription)
	if got.Text != "still listening" {
		t.Fatalf("transcription = %q after restart", got.Text)
	}
}

func TestRunConnectionSurfacesFinalTranscripts(t *testing.T) {
	stream := &scriptedStream{events: make(chan voice.TranscriptEvent, 8)}
	gen := dialogue.NewMockGenerator()
	h := startHarness(t, "roleplay_transcripts", gen, &scriptedTranscriber{stream: stream})

	h.inbound <- startB2C()
	h.inbound <- protocol.StartTranscription{Type: protocol.TypeStartTranscription}

	pcm := base64.StdEncoding.EncodeToString([]byte{0, 0, 1, 1})
	h.inbound <- protocol.AudioChunk{Type: protocol.TypeAudioChunk, PCM16Base64: pcm, SampleRate: 16000}

	stream.events <- voice.TranscriptEvent{Text: "I usually order takeout", Final: false}
	stream.events <- voice.TranscriptEvent{Text: "I usually order takeout.", Final: true}

	got := h.waitFor(t, isType(protocol.TypeTranscription)).(protocol.Transcription)
	if got.Text != "I usually order takeout." {
		t.Fatalf("transcription = %q, want the finalized text only", got.Text)
	}

	deadline := time.Now().Add(time.Second)
	for {
		stream.mu.Lock()
		n := len(stream.sent)
		stream.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("forwarded chunks = %d, want 1", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
