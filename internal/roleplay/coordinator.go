// Package roleplay coordinates one sales-training conversation per websocket
// connection: persona setup, half-duplex turn taking against the buyer model,
// live transcription, and the terminal feedback turn.
package roleplay

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/pitchroom/pitchroom/internal/dialogue"
	"github.com/pitchroom/pitchroom/internal/observability"
	"github.com/pitchroom/pitchroom/internal/persona"
	"github.com/pitchroom/pitchroom/internal/protocol"
	"github.com/pitchroom/pitchroom/internal/session"
	"github.com/pitchroom/pitchroom/internal/voice"
)

const (
	// Fixed replacement turns; generation failures never surface raw errors.
	apologyReply    = "Sorry, there was an issue generating a response."
	apologyFeedback = "Sorry, there was an issue generating your feedback."

	// Terminal notices delivered on the transcription channel.
	transcriptionStartFailed  = "No transcript stream received."
	transcriptionStreamFailed = "Transcription failed."

	feedbackDisconnectDelay = 2 * time.Second
	terminalSendTimeout     = 600 * time.Millisecond
)

type Coordinator struct {
	sessions    *session.Registry
	engine      *dialogue.Engine
	transcriber voice.Transcriber
	metrics     *observability.Metrics
	latency     *observability.LatencyWindow
	bridgeCfg   voice.BridgeConfig
}

func NewCoordinator(
	sessions *session.Registry,
	engine *dialogue.Engine,
	transcriber voice.Transcriber,
	metrics *observability.Metrics,
	latency *observability.LatencyWindow,
	bridgeCfg voice.BridgeConfig,
) *Coordinator {
	return &Coordinator{
		sessions:    sessions,
		engine:      engine,
		transcriber: transcriber,
		metrics:     metrics,
		latency:     latency,
		bridgeCfg:   bridgeCfg,
	}
}

type turnResult struct {
	text      string
	err       error
	startedAt time.Time
}

type feedbackResult struct {
	text      string
	err       error
	startedAt time.Time
}

// RunConnection drives the session lifecycle for one websocket connection.
// All session mutation happens on this goroutine; turn generation and the
// transcription bridge run concurrently and report back through channels.
// Returning ends the connection.
func (c *Coordinator) RunConnection(ctx context.Context, connID string, inbound <-chan any, outbound chan<- any) error {
	var (
		toneDirective string

		bridge      *voice.Bridge
		transcripts = make(chan string, 16)
		sttFailures = make(chan error, 1)

		turnResults = make(chan turnResult, 1)

		feedbackResults = make(chan feedbackResult, 1)

		cooldownTimer *time.Timer
		cooldownC     <-chan time.Time
		disconnectC   <-chan time.Time
	)

	defer func() {
		if bridge != nil {
			bridge.Close()
		}
		if cooldownTimer != nil {
			cooldownTimer.Stop()
		}
	}()

	drop := func(reason string) {
		c.metrics.DroppedMessages.WithLabelValues(reason).Inc()
	}

	dropReason := func(err error) string {
		switch err {
		case session.ErrSealed:
			return "sealed"
		case session.ErrNotConfigured:
			return "not_configured"
		case session.ErrConfigured:
			return "already_configured"
		case session.ErrTurnInFlight:
			return "turn_in_flight"
		default:
			return "unknown"
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			switch m := msg.(type) {
			case protocol.StartSession:
				cfg := personaConfig(m)
				if err := c.sessions.Configure(connID, persona.Directive(cfg), persona.OpeningLine(cfg)); err != nil {
					drop(dropReason(err))
					continue
				}
				toneDirective = persona.ToneDirective(cfg)
				c.metrics.SessionEvents.WithLabelValues("session_configured").Inc()

			case protocol.UserMessage:
				if err := c.sessions.BeginTurn(connID, m.Text); err != nil {
					drop(dropReason(err))
					if err == session.ErrTurnInFlight {
						c.latency.ObserveIndicator("turn_rejected")
					}
					continue
				}
				history, err := c.sessions.History(connID)
				if err != nil {
					drop(dropReason(err))
					continue
				}
				c.send(outbound, protocol.PauseTranscription{Type: protocol.TypePauseTranscription}, true)
				go c.runTurn(ctx, history, toneDirective, outbound, turnResults)

			case protocol.StartTranscription:
				s, err := c.sessions.Get(connID)
				if err != nil || s.Phase == session.PhaseSealed {
					drop("sealed")
					continue
				}
				if bridge != nil {
					drop("transcription_active")
					continue
				}
				b, err := voice.StartBridge(ctx, c.transcriber, c.bridgeCfg, voice.BridgeCallbacks{
					OnFinalTranscript: func(text string) {
						select {
						case transcripts <- text:
						case <-ctx.Done():
						}
					},
					OnFailure: func(err error) {
						select {
						case sttFailures <- err:
						default:
						}
					},
					OnSilenceInjected: func() {
						c.metrics.SilenceInjections.Inc()
					},
				})
				if err != nil {
					c.metrics.ProviderErrors.WithLabelValues("stt", "start").Inc()
					c.send(outbound, protocol.Transcription{Type: protocol.TypeTranscription, Text: transcriptionStartFailed}, true)
					continue
				}
				bridge = b
				c.metrics.SessionEvents.WithLabelValues("transcription_started").Inc()

			case protocol.AudioChunk:
				s, err := c.sessions.Get(connID)
				if err != nil || s.Phase == session.PhaseSealed {
					drop("sealed")
					continue
				}
				if bridge == nil {
					drop("no_transcription")
					continue
				}
				pcm, err := base64.StdEncoding.DecodeString(m.PCM16Base64)
				if err != nil {
					drop("bad_audio")
					continue
				}
				_ = c.sessions.TouchAudio(connID)
				bridge.PushAudio(pcm)

			case protocol.StopTranscription:
				if bridge != nil {
					bridge.StopSend()
					bridge = nil
				}
				if err := c.sessions.BeginFeedback(connID, persona.FeedbackDirective); err != nil {
					drop(dropReason(err))
					continue
				}
				history, err := c.sessions.History(connID)
				if err != nil {
					drop(dropReason(err))
					continue
				}
				// Feedback supersedes any pending playback cooldown.
				if cooldownTimer != nil {
					cooldownTimer.Stop()
				}
				cooldownC = nil
				c.send(outbound, protocol.PauseTranscription{Type: protocol.TypePauseTranscription}, true)
				c.metrics.SessionEvents.WithLabelValues("feedback_requested").Inc()
				go c.runFeedback(ctx, history, feedbackResults)
			}

		case text := <-transcripts:
			c.metrics.SessionEvents.WithLabelValues("transcript_final").Inc()
			c.send(outbound, protocol.Transcription{Type: protocol.TypeTranscription, Text: text}, false)

		case <-sttFailures:
			c.metrics.ProviderErrors.WithLabelValues("stt", "stream").Inc()
			if bridge != nil {
				bridge.Close()
				bridge = nil
			}
			c.send(outbound, protocol.Transcription{Type: protocol.TypeTranscription, Text: transcriptionStreamFailed}, true)

		case res := <-turnResults:
			if res.err != nil {
				c.metrics.ProviderErrors.WithLabelValues("llm", "turn").Inc()
				c.latency.ObserveIndicator("apology_reply")
				_ = c.sessions.AbortTurn(connID)
				c.send(outbound, protocol.GPTReply{Type: protocol.TypeGPTReply, Text: apologyReply}, true)
				c.send(outbound, protocol.ResumeTranscription{Type: protocol.TypeResumeTranscription}, true)
				continue
			}
			_ = c.sessions.CompleteTurn(connID, res.text)
			c.latency.Observe("message_to_reply_done", time.Since(res.startedAt))
			cooldown := dialogue.EstimateSpokenDuration(res.text)
			c.metrics.ObserveReplyCooldown(cooldown)
			if cooldownTimer != nil {
				cooldownTimer.Stop()
			}
			cooldownTimer = time.NewTimer(cooldown)
			cooldownC = cooldownTimer.C

		case <-cooldownC:
			cooldownC = nil
			_ = c.sessions.ReleaseTurn(connID)
			c.send(outbound, protocol.ResumeTranscription{Type: protocol.TypeResumeTranscription}, true)

		case res := <-feedbackResults:
			if res.err != nil {
				// The session stays open so the client can stop again and
				// retry; only a successful feedback turn seals it.
				c.metrics.ProviderErrors.WithLabelValues("llm", "feedback").Inc()
				c.latency.ObserveIndicator("apology_feedback")
				_ = c.sessions.AbortFeedback(connID)
				c.send(outbound, protocol.GPTReply{Type: protocol.TypeGPTReply, Text: apologyFeedback}, true)
				continue
			}
			c.latency.Observe("feedback_total", time.Since(res.startedAt))
			_ = c.sessions.Seal(connID, res.text)
			c.metrics.SessionEvents.WithLabelValues("session_sealed").Inc()
			c.send(outbound, protocol.GPTReply{Type: protocol.TypeGPTReply, Text: res.text}, true)
			disconnectC = time.After(feedbackDisconnectDelay)

		case <-disconnectC:
			return nil
		}
	}
}

// runTurn streams one buyer reply off the coordinator goroutine. Partial text
// and per-unit audio go straight to the writer; the final outcome comes back
// through results so the loop owns every state change.
func (c *Coordinator) runTurn(ctx context.Context, history []session.Message, toneDirective string, outbound chan<- any, results chan<- turnResult) {
	start := time.Now()
	firstUnit := true

	text, err := c.engine.StreamReply(ctx, history, toneDirective, dialogue.StreamCallbacks{
		OnPartial: func(fullText string) {
			c.send(outbound, protocol.GPTPartialText{Type: protocol.TypeGPTPartialText, Text: fullText}, false)
		},
		OnUnitAudio: func(audio []byte) {
			if firstUnit {
				firstUnit = false
				c.metrics.ObserveFirstAudioLatency(time.Since(start))
				c.latency.Observe("message_to_first_unit", time.Since(start))
			}
			c.metrics.SpeakableUnits.Inc()
			c.send(outbound, protocol.GPTAudio{
				Type:        protocol.TypeGPTAudio,
				AudioBase64: base64.StdEncoding.EncodeToString(audio),
			}, false)
		},
	})

	select {
	case results <- turnResult{text: text, err: err, startedAt: start}:
	case <-ctx.Done():
	}
}

func (c *Coordinator) runFeedback(ctx context.Context, history []session.Message, results chan<- feedbackResult) {
	start := time.Now()
	text, err := c.engine.Feedback(ctx, history)
	select {
	case results <- feedbackResult{text: text, err: err, startedAt: start}:
	case <-ctx.Done():
	}
}

// send delivers one outbound frame. Terminal frames get a bounded wait so a
// slow client cannot wedge the loop; progressive frames are dropped when the
// writer is backed up.
func (c *Coordinator) send(outbound chan<- any, msg any, terminal bool) {
	if terminal {
		timer := time.NewTimer(terminalSendTimeout)
		defer timer.Stop()
		select {
		case outbound <- msg:
		case <-timer.C:
			c.metrics.SessionEvents.WithLabelValues("outbound_drop").Inc()
		}
		return
	}
	select {
	case outbound <- msg:
	default:
		c.metrics.SessionEvents.WithLabelValues("outbound_drop").Inc()
	}
}

func personaConfig(m protocol.StartSession) persona.Config {
	cfg := persona.Config{
		Channel:  persona.ParseChannel(m.TargetBuyer),
		Industry: m.Industry,
		Product:  m.Product,
	}
	if cfg.Channel == persona.ChannelB2B {
		cfg.Difficulty = persona.ParseDifficulty(m.B2B.Difficulty)
		cfg.Business = persona.BusinessBuyer{
			Persona:  m.B2B.Persona,
			Industry: m.B2B.Industry,
		}
		if cfg.Industry == "" {
			cfg.Industry = m.B2B.Industry
		}
	} else {
		cfg.Difficulty = persona.ParseDifficulty(m.B2C.Difficulty)
		cfg.Consumer = persona.ConsumerBuyer{
			Customer:   m.B2C.Customer,
			Age:        m.B2C.Age,
			Income:     m.B2C.Income,
			Motivation: m.B2C.Motivation,
		}
	}
	return cfg
}
