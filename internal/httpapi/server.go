package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pitchroom/pitchroom/internal/catalog"
	"github.com/pitchroom/pitchroom/internal/config"
	"github.com/pitchroom/pitchroom/internal/observability"
	"github.com/pitchroom/pitchroom/internal/protocol"
	"github.com/pitchroom/pitchroom/internal/session"
)

// Coordinator drives one roleplay conversation per websocket connection.
type Coordinator interface {
	RunConnection(ctx context.Context, connID string, inbound <-chan any, outbound chan<- any) error
}

type Server struct {
	cfg         config.Config
	sessions    *session.Registry
	coordinator Coordinator
	courses     catalog.Store
	metrics     *observability.Metrics
	latency     *observability.LatencyWindow
	upgrader    websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Registry, coordinator Coordinator, courses catalog.Store, metrics *observability.Metrics, latency *observability.LatencyWindow) *Server {
	return &Server{
		cfg:         cfg,
		sessions:    sessions,
		coordinator: coordinator,
		courses:     courses,
		metrics:     metrics,
		latency:     latency,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only same-origin browser connections. Anything else
				// could drive the user's mic session from a foreign page.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"service": "pitchroom",
			"ws":      "/v1/roleplay/ws",
		})
	})
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/roleplay/ws", s.handleRoleplayWS)
	r.Get("/v1/courses", s.handleListCourses)
	r.Get("/v1/courses/{id}", s.handleGetCourse)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

func (s *Server) handleRoleplayWS(w http.ResponseWriter, r *http.Request) {
	if s.coordinator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "coordinator not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	s.sessions.Create(connID)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	defer func() {
		s.sessions.Remove(connID)
		s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
		s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 256)
	outbound := make(chan any, 256)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		_ = s.coordinator.RunConnection(ctx, connID, inbound, outbound)
		// The coordinator ends the connection on its own after feedback.
		cancel()
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					s.metrics.SessionEvents.WithLabelValues("ws_write_error").Inc()
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			// Malformed frames are dropped without a reply.
			s.metrics.DroppedMessages.WithLabelValues("unparseable").Inc()
			continue
		}

		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.StartSession:
		return m.Type, true
	case protocol.UserMessage:
		return m.Type, true
	case protocol.StartTranscription:
		return m.Type, true
	case protocol.AudioChunk:
		return m.Type, true
	case protocol.StopTranscription:
		return m.Type, true
	case protocol.PauseTranscription:
		return m.Type, true
	case protocol.ResumeTranscription:
		return m.Type, true
	case protocol.GPTPartialText:
		return m.Type, true
	case protocol.GPTAudio:
		return m.Type, true
	case protocol.GPTReply:
		return m.Type, true
	case protocol.Transcription:
		return m.Type, true
	default:
		return "", false
	}
}
