package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/coder/websocket"
)

const (
	deepgramEndpoint   = "wss://api.deepgram.com/v1/listen"
	deepgramModel      = "nova-2"
	deepgramSampleRate = 16000
)

// DeepgramOption configures a DeepgramTranscriber.
type DeepgramOption func(*DeepgramTranscriber)

// WithDeepgramModel overrides the default recognition model.
func WithDeepgramModel(model string) DeepgramOption {
	return func(t *DeepgramTranscriber) {
		t.model = model
	}
}

// WithDeepgramLanguage sets the BCP-47 recognition language.
func WithDeepgramLanguage(language string) DeepgramOption {
	return func(t *DeepgramTranscriber) {
		t.language = language
	}
}

// DeepgramTranscriber implements Transcriber against the Deepgram streaming
// WebSocket API.
type DeepgramTranscriber struct {
	apiKey   string
	model    string
	language string
}

func NewDeepgramTranscriber(apiKey string, opts ...DeepgramOption) (*DeepgramTranscriber, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	t := &DeepgramTranscriber{
		apiKey:   apiKey,
		model:    deepgramModel,
		language: "en-US",
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// StartStream dials the streaming endpoint and returns a live stream.
func (t *DeepgramTranscriber) StartStream(ctx context.Context, cfg StreamConfig) (TranscriptStream, error) {
	wsURL, err := t.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+t.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	s := &deepgramStream{
		conn:   conn,
		events: make(chan TranscriptEvent, 64),
		audio:  make(chan []byte, 256),
		done:   make(chan struct{}),
	}
	s.wg.Add(2)
	go s.readLoop(ctx)
	go s.writeLoop(ctx)
	return s, nil
}

func (t *DeepgramTranscriber) buildURL(cfg StreamConfig) (string, error) {
	u, err := url.Parse(deepgramEndpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = t.language
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = deepgramSampleRate
	}

	q := u.Query()
	q.Set("model", t.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sr))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramResponse is the JSON shape of a Results event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type deepgramStream struct {
	conn   *websocket.Conn
	events chan TranscriptEvent
	audio  chan []byte

	done      chan struct{}
	sendOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup

	errMu sync.Mutex
	err   error
}

func (s *deepgramStream) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("deepgram: stream is closed")
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return errors.New("deepgram: stream is closed")
	}
}

// CloseSend flags end-of-audio so Deepgram flushes any pending final results.
// The read side stays open until the server closes the socket.
func (s *deepgramStream) CloseSend() error {
	s.sendOnce.Do(func() {
		close(s.done)
		_ = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
	})
	return nil
}

func (s *deepgramStream) Events() <-chan TranscriptEvent { return s.events }

func (s *deepgramStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *deepgramStream) Close() error {
	_ = s.CloseSend()
	s.closeOnce.Do(func() {
		// Closing the socket unblocks the read loop; the server may never
		// close its side after an error.
		s.conn.Close(websocket.StatusNormalClosure, "stream closed")
		s.wg.Wait()
	})
	return nil
}

func (s *deepgramStream) setErr(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

func (s *deepgramStream) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				s.setErr(fmt.Errorf("deepgram: write: %w", err))
				return
			}
		case <-s.done:
			// Drain queued audio before exiting.
			for {
				select {
				case chunk := <-s.audio:
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

func (s *deepgramStream) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.events)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			select {
			case <-s.done:
				// Expected close after CloseStream.
			default:
				s.setErr(fmt.Errorf("deepgram: read: %w", err))
			}
			return
		}

		evt, ok := parseDeepgramResponse(msg)
		if !ok {
			continue
		}
		select {
		case s.events <- evt:
		case <-ctx.Done():
			return
		}
	}
}

// parseDeepgramResponse extracts the top alternative from a Results message.
// Non-result messages and empty alternatives are dropped.
func parseDeepgramResponse(data []byte) (TranscriptEvent, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return TranscriptEvent{}, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return TranscriptEvent{}, false
	}
	alt := resp.Channel.Alternatives[0]
	return TranscriptEvent{
		Text:       alt.Transcript,
		Final:      resp.IsFinal,
		Confidence: alt.Confidence,
	}, true
}
