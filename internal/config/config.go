package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the roleplay trainer service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	OpenAIAPIKey string
	OpenAIModel  string
	OpenAIVoice  string
	SpeechModel  string

	DeepgramAPIKey   string
	DeepgramModel    string
	DeepgramLanguage string

	AudioSampleRate       int
	SilenceCheckInterval  time.Duration
	SilenceIdleThreshold  time.Duration
	SilenceInjectDuration time.Duration

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "pitchroom"),
		AllowAnyOrigin:   false,

		OpenAIAPIKey: trimmedEnv("OPENAI_API_KEY"),
		OpenAIModel:  envOrDefault("OPENAI_MODEL", "gpt-4o"),
		OpenAIVoice:  envOrDefault("OPENAI_TTS_VOICE", "coral"),
		SpeechModel:  envOrDefault("OPENAI_TTS_MODEL", "gpt-4o-mini-tts"),

		DeepgramAPIKey:   trimmedEnv("DEEPGRAM_API_KEY"),
		DeepgramModel:    envOrDefault("DEEPGRAM_MODEL", "nova-2"),
		DeepgramLanguage: envOrDefault("DEEPGRAM_LANGUAGE", "en-US"),

		AudioSampleRate:       16000,
		SilenceCheckInterval:  5 * time.Second,
		SilenceIdleThreshold:  10 * time.Second,
		SilenceInjectDuration: 500 * time.Millisecond,

		DatabaseURL:              trimmedEnv("DATABASE_URL"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SilenceCheckInterval, err = durationFromEnv("APP_SILENCE_CHECK_INTERVAL", cfg.SilenceCheckInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.SilenceIdleThreshold, err = durationFromEnv("APP_SILENCE_IDLE_THRESHOLD", cfg.SilenceIdleThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.SilenceInjectDuration, err = durationFromEnv("APP_SILENCE_INJECT_DURATION", cfg.SilenceInjectDuration)
	if err != nil {
		return Config{}, err
	}
	cfg.AudioSampleRate, err = intFromEnv("APP_AUDIO_SAMPLE_RATE", cfg.AudioSampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.AudioSampleRate <= 0 {
		return Config{}, fmt.Errorf("APP_AUDIO_SAMPLE_RATE must be positive")
	}
	if cfg.SilenceCheckInterval <= 0 || cfg.SilenceIdleThreshold <= 0 || cfg.SilenceInjectDuration <= 0 {
		return Config{}, fmt.Errorf("silence keep-alive intervals must be positive")
	}
	if cfg.SilenceIdleThreshold < cfg.SilenceCheckInterval {
		return Config{}, fmt.Errorf("APP_SILENCE_IDLE_THRESHOLD must be at least the check interval")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
