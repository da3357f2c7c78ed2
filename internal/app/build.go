// Package app wires configuration, providers, and the HTTP surface into a
// runnable service.
package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/pitchroom/pitchroom/internal/catalog"
	"github.com/pitchroom/pitchroom/internal/config"
	"github.com/pitchroom/pitchroom/internal/dialogue"
	"github.com/pitchroom/pitchroom/internal/httpapi"
	"github.com/pitchroom/pitchroom/internal/observability"
	"github.com/pitchroom/pitchroom/internal/roleplay"
	"github.com/pitchroom/pitchroom/internal/session"
	"github.com/pitchroom/pitchroom/internal/voice"
)

type BuildResult struct {
	Config      config.Config
	API         *httpapi.Server
	Sessions    *session.Registry
	Coordinator *roleplay.Coordinator
	Metrics     *observability.Metrics
	Latency     *observability.LatencyWindow

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	latency := observability.NewLatencyWindow(256)

	courses, err := catalog.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("course catalog init failed: %w", err)
	}

	generator, synthesizer, err := resolveDialogueProviders(cfg)
	if err != nil {
		_ = courses.Close()
		return nil, err
	}
	transcriber, err := resolveTranscriber(cfg)
	if err != nil {
		_ = courses.Close()
		return nil, err
	}

	sessions := session.NewRegistry(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	coordinator := roleplay.NewCoordinator(
		sessions,
		dialogue.NewEngine(generator, synthesizer),
		transcriber,
		metrics,
		latency,
		voice.BridgeConfig{
			SampleRate:      cfg.AudioSampleRate,
			Language:        cfg.DeepgramLanguage,
			CheckInterval:   cfg.SilenceCheckInterval,
			IdleThreshold:   cfg.SilenceIdleThreshold,
			SilenceDuration: cfg.SilenceInjectDuration,
		},
	)

	api := httpapi.New(cfg, sessions, coordinator, courses, metrics, latency)

	cleanup := func() error {
		var errs []string
		if err := courses.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:      cfg,
		API:         api,
		Sessions:    sessions,
		Coordinator: coordinator,
		Metrics:     metrics,
		Latency:     latency,
		Cleanup:     cleanup,
	}, nil
}

// resolveDialogueProviders picks the OpenAI generation and speech backends
// when a key is configured, otherwise local mocks so the service runs without
// credentials.
func resolveDialogueProviders(cfg config.Config) (dialogue.Generator, voice.Synthesizer, error) {
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		log.Printf("dialogue provider: mock (OPENAI_API_KEY not set)")
		return dialogue.NewMockGenerator(), voice.NewMockSynthesizer(), nil
	}

	generator, err := dialogue.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if err != nil {
		return nil, nil, fmt.Errorf("openai generator init failed: %w", err)
	}
	synthesizer, err := voice.NewOpenAISynthesizer(cfg.OpenAIAPIKey,
		voice.WithSpeechModel(cfg.SpeechModel),
		voice.WithSpeechVoice(cfg.OpenAIVoice),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("openai synthesizer init failed: %w", err)
	}
	log.Printf("dialogue provider: openai (%s, voice %s)", cfg.OpenAIModel, cfg.OpenAIVoice)
	return generator, synthesizer, nil
}

func resolveTranscriber(cfg config.Config) (voice.Transcriber, error) {
	if strings.TrimSpace(cfg.DeepgramAPIKey) == "" {
		log.Printf("transcription provider: mock (DEEPGRAM_API_KEY not set)")
		return voice.NewMockTranscriber(), nil
	}
	transcriber, err := voice.NewDeepgramTranscriber(cfg.DeepgramAPIKey,
		voice.WithDeepgramModel(cfg.DeepgramModel),
		voice.WithDeepgramLanguage(cfg.DeepgramLanguage),
	)
	if err != nil {
		return nil, fmt.Errorf("deepgram transcriber init failed: %w", err)
	}
	log.Printf("transcription provider: deepgram (%s)", cfg.DeepgramModel)
	return transcriber, nil
}
