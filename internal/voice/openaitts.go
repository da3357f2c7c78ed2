package voice

import (
	"context"
	"errors"
	"fmt"
	"io"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

// OpenAISynthesizer implements Synthesizer using the OpenAI speech endpoint.
// Each call produces one complete WAV payload for one speakable unit.
type OpenAISynthesizer struct {
	client oai.Client
	model  string
	voice  string
}

// OpenAISynthOption configures an OpenAISynthesizer.
type OpenAISynthOption func(*OpenAISynthesizer)

// WithSpeechModel overrides the default speech model.
func WithSpeechModel(model string) OpenAISynthOption {
	return func(s *OpenAISynthesizer) {
		s.model = model
	}
}

// WithSpeechVoice overrides the default voice preset.
func WithSpeechVoice(voice string) OpenAISynthOption {
	return func(s *OpenAISynthesizer) {
		s.voice = voice
	}
}

func NewOpenAISynthesizer(apiKey string, opts ...OpenAISynthOption) (*OpenAISynthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("openai tts: apiKey must not be empty")
	}
	s := &OpenAISynthesizer{
		client: oai.NewClient(option.WithAPIKey(apiKey)),
		model:  "gpt-4o-mini-tts",
		voice:  "coral",
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Synthesize renders one text unit. The tone directive steers delivery; it is
// not part of the spoken text.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text, toneDirective string) ([]byte, error) {
	params := oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(s.model),
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatWAV,
	}
	if toneDirective != "" {
		params.Instructions = param.NewOpt(toneDirective)
	}

	resp, err := s.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai tts: speech request: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read audio: %w", err)
	}
	return audio, nil
}
