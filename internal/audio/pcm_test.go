package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

func TestSilencePCM16Size(t *testing.T) {
	// 500ms at 16kHz, 16-bit mono: 16000 * 0.5 * 2 bytes.
	got := SilencePCM16(500*time.Millisecond, 16000)
	if len(got) != 16000 {
		t.Fatalf("len = %d, want 16000", len(got))
	}
	for i, b := range got {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestSilencePCM16Defaults(t *testing.T) {
	if got := SilencePCM16(0, 16000); got != nil {
		t.Fatalf("zero duration should yield nil, got %d bytes", len(got))
	}
	if got := SilencePCM16(time.Second, 0); len(got) != 32000 {
		t.Fatalf("default sample rate silence = %d bytes, want 32000", len(got))
	}
}

func TestPCM16DurationRoundTrip(t *testing.T) {
	pcm := SilencePCM16(250*time.Millisecond, 16000)
	if got := pcm16Duration(pcm, 16000); got != 250*time.Millisecond {
		t.Fatalf("pcm16Duration = %v, want 250ms", got)
	}
}

func TestEncodeWAVPCM16LEHeader(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	wav, err := EncodeWAVPCM16LE(pcm, 16000)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}
	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	if !bytes.HasPrefix(wav, []byte("RIFF")) || string(wav[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE markers: % x", wav[:12])
	}
	rate := binary.LittleEndian.Uint32(wav[24:28])
	if rate != 16000 {
		t.Fatalf("sample rate = %d, want 16000", rate)
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Fatalf("data chunk mismatch")
	}
}
