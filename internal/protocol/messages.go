package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeStartSession       MessageType = "start_session"
	TypeUserMessage        MessageType = "user_message"
	TypeStartTranscription MessageType = "start_transcription"
	TypeAudioChunk         MessageType = "audio_chunk"
	TypeStopTranscription  MessageType = "stop_transcription"

	TypePauseTranscription  MessageType = "pause_transcription"
	TypeResumeTranscription MessageType = "resume_transcription"
	TypeGPTPartialText      MessageType = "gpt_partial_text"
	TypeGPTAudio            MessageType = "gpt_audio"
	TypeGPTReply            MessageType = "gpt_reply"
	TypeTranscription       MessageType = "transcription"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// BuyerB2B describes the simulated business buyer for a B2B roleplay.
type BuyerB2B struct {
	Persona    string `json:"persona"`
	Industry   string `json:"industry"`
	Difficulty string `json:"difficulty"`
}

// BuyerB2C describes the simulated consumer buyer for a B2C roleplay.
type BuyerB2C struct {
	Customer   string `json:"customer"`
	Age        string `json:"age"`
	Income     string `json:"income"`
	Motivation string `json:"motivation"`
	Difficulty string `json:"difficulty"`
}

// StartSession configures the roleplay persona for a connection. It is
// accepted once; later start_session frames on the same connection are
// ignored.
type StartSession struct {
	Type        MessageType `json:"type"`
	TargetBuyer string      `json:"target_buyer"`
	Industry    string      `json:"industry"`
	Product     string      `json:"product"`
	B2B         BuyerB2B    `json:"b2b"`
	B2C         BuyerB2C    `json:"b2c"`
}

type UserMessage struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

type StartTranscription struct {
	Type MessageType `json:"type"`
}

type AudioChunk struct {
	Type        MessageType `json:"type"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate,omitempty"`
	TSMs        int64       `json:"ts_ms,omitempty"`
}

type StopTranscription struct {
	Type MessageType `json:"type"`
}

type PauseTranscription struct {
	Type MessageType `json:"type"`
}

type ResumeTranscription struct {
	Type MessageType `json:"type"`
}

// GPTPartialText carries the assistant reply accumulated so far, re-sent on
// every delta for progressive display.
type GPTPartialText struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

type GPTAudio struct {
	Type        MessageType `json:"type"`
	AudioBase64 string      `json:"audio_base64"`
}

// GPTReply carries a complete non-streamed turn: the final feedback text or a
// fixed apology when generation failed.
type GPTReply struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// Transcription carries a finalized transcript, or a warning string when the
// transcription channel failed.
type Transcription struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeStartSession:
		var msg StartSession
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.TargetBuyer == "" {
			return nil, errors.New("invalid start_session")
		}
		return msg, nil
	case TypeUserMessage:
		var msg UserMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Text == "" {
			return nil, errors.New("invalid user_message")
		}
		return msg, nil
	case TypeStartTranscription:
		var msg StartTranscription
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeAudioChunk:
		var msg AudioChunk
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.PCM16Base64 == "" {
			return nil, errors.New("invalid audio_chunk")
		}
		return msg, nil
	case TypeStopTranscription:
		var msg StopTranscription
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
