package session

import "time"

// Role tags a history entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one append-only history entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Phase is the lifecycle state of a roleplay session. Transitions are
// monotonic except the Active/AwaitingAssistant oscillation, and terminate in
// Sealed.
type Phase string

const (
	PhaseUninitialized     Phase = "uninitialized"
	PhaseActive            Phase = "active"
	PhaseAwaitingAssistant Phase = "awaiting_assistant"
	PhaseSealed            Phase = "sealed"
)

// Session is the per-connection conversational state. Snapshots returned by
// the registry are copies; all mutation goes through registry methods.
type Session struct {
	ID                string    `json:"session_id"`
	Phase             Phase     `json:"phase"`
	History           []Message `json:"history"`
	TurnLocked        bool      `json:"turn_locked"`
	StartedAt         time.Time `json:"started_at"`
	LastActivityAt    time.Time `json:"last_activity_at"`
	LastAudioActivity time.Time `json:"last_audio_activity"`
}
