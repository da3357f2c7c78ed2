package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageStartSession(t *testing.T) {
	raw := []byte(`{"type":"start_session","target_buyer":"b2b","industry":"saas","product":"CRM seats","b2b":{"persona":"VP of Sales","industry":"fintech","difficulty":"medium"}}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	start, ok := msg.(StartSession)
	if !ok {
		t.Fatalf("message type = %T, want StartSession", msg)
	}
	if start.TargetBuyer != "b2b" || start.Product != "CRM seats" {
		t.Fatalf("unexpected start_session: %+v", start)
	}
	if start.B2B.Persona != "VP of Sales" || start.B2B.Difficulty != "medium" {
		t.Fatalf("unexpected b2b buyer: %+v", start.B2B)
	}
}

func TestParseClientMessageUserMessage(t *testing.T) {
	raw := []byte(`{"type":"user_message","text":"Hi, thanks for taking the call."}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	um, ok := msg.(UserMessage)
	if !ok {
		t.Fatalf("message type = %T, want UserMessage", msg)
	}
	if um.Text != "Hi, thanks for taking the call." {
		t.Fatalf("Text = %q", um.Text)
	}
}

func TestParseClientMessageAudioChunk(t *testing.T) {
	raw := []byte(`{"type":"audio_chunk","pcm16_base64":"AQID","sample_rate":16000,"ts_ms":123}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	chunk, ok := msg.(AudioChunk)
	if !ok {
		t.Fatalf("message type = %T, want AudioChunk", msg)
	}
	if chunk.PCM16Base64 != "AQID" || chunk.SampleRate != 16000 {
		t.Fatalf("unexpected audio chunk: %+v", chunk)
	}
}

func TestParseClientMessageTranscriptionLifecycle(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"start_transcription"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage(start) error = %v", err)
	}
	if _, ok := msg.(StartTranscription); !ok {
		t.Fatalf("message type = %T, want StartTranscription", msg)
	}

	msg, err = ParseClientMessage([]byte(`{"type":"stop_transcription"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage(stop) error = %v", err)
	}
	if _, ok := msg.(StopTranscription); !ok {
		t.Fatalf("message type = %T, want StopTranscription", msg)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRejectsEmptyPayloads(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":"user_message","text":""}`)); err == nil {
		t.Fatalf("expected validation error for empty user_message")
	}
	if _, err := ParseClientMessage([]byte(`{"type":"audio_chunk","pcm16_base64":""}`)); err == nil {
		t.Fatalf("expected validation error for empty audio_chunk")
	}
	if _, err := ParseClientMessage([]byte(`{"type":"start_session","target_buyer":""}`)); err == nil {
		t.Fatalf("expected validation error for empty start_session")
	}
}

func BenchmarkParseClientMessageAudioChunk(b *testing.B) {
	raw := []byte(`{"type":"audio_chunk","pcm16_base64":"AQIDBAUGBwgJCgsMDQ4P","sample_rate":16000,"ts_ms":123456}`)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		msg, err := ParseClientMessage(raw)
		if err != nil {
			b.Fatalf("ParseClientMessage() error = %v", err)
		}
		if _, ok := msg.(AudioChunk); !ok {
			b.Fatalf("message type = %T, want AudioChunk", msg)
		}
	}
}
