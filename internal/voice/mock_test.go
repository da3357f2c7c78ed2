package voice

import (
	"bytes"
	"context"
	"testing"
)

func TestMockSynthesizerProducesWAV(t *testing.T) {
	wav, err := NewMockSynthesizer().Synthesize(context.Background(), "three short words", "")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if !bytes.HasPrefix(wav, []byte("RIFF")) || string(wav[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE markers: % x", wav[:12])
	}
	// 3 words at 400ms each, 16kHz 16-bit mono, behind a 44-byte header.
	if len(wav) != 44+38400 {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+38400)
	}
}

func TestMockSynthesizerEmptyTextYieldsHeaderOnly(t *testing.T) {
	wav, err := NewMockSynthesizer().Synthesize(context.Background(), "   ", "skeptical")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if len(wav) != 44 {
		t.Fatalf("wav length = %d, want header only", len(wav))
	}
}
