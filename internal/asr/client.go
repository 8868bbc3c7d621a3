package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/evermind-ai/interview-gateway/internal/config"
	"github.com/evermind-ai/interview-gateway/internal/observability"
	"github.com/evermind-ai/interview-gateway/internal/resilience"
)

const pingInterval = 30 * time.Second

// AudioFormat describes the raw audio the client will forward.
type AudioFormat struct {
	Type       string `json:"type"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// TranscriptionConfig holds recognition parameters for the session.
type TranscriptionConfig struct {
	Language       string `json:"language"`
	EnablePartials bool   `json:"enable_partials"`
}

type startRecognitionMessage struct {
	Message             string              `json:"message"`
	AudioFormat         AudioFormat         `json:"audio_format"`
	TranscriptionConfig TranscriptionConfig `json:"transcription_config"`
}

type stopRecognitionMessage struct {
	Message string `json:"message"`
}

// transcriptEvent is the upstream frame shape for AddTranscript and
// AddPartialTranscript messages. All other frames are ignored.
type transcriptEvent struct {
	Message  string `json:"message"`
	Metadata struct {
		Transcript string `json:"transcript"`
		SegmentID  string `json:"segment_id"`
	} `json:"metadata"`
}

// Client manages one upstream recognition session over a WebSocket.
type Client struct {
	conn   *websocket.Conn
	events chan Event
	logger zerolog.Logger

	writeMu sync.Mutex
	mu      sync.RWMutex
	active  bool
	stopped bool

	ctx     context.Context
	cancel  context.CancelFunc
	breaker *resilience.CircuitBreaker
}

// Dial opens the upstream connection, sends the recognition-start frame,
// and begins reading transcript events. The dial itself is retried with
// backoff; a session without ASR is still viable, so callers treat a
// returned error as entering degraded mode rather than failing the session.
func Dial(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	header := http.Header{}
	header.Set("Authorization", fmt.Sprintf("Bearer %s", cfg.ASRAPIKey))

	url := fmt.Sprintf("%s/%s", cfg.ASRURL, cfg.ASRLanguage)

	var conn *websocket.Conn
	err := resilience.Connect(ctx, func() error {
		var dialErr error
		conn, _, dialErr = websocket.DefaultDialer.DialContext(ctx, url, header)
		return dialErr
	}, &resilience.ReconnectConfig{
		MaxAttempts: cfg.ReconnectMaxAttempts,
		Backoff:     time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to recognizer: %w", err)
	}

	clientCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:   conn,
		events: make(chan Event, 100),
		logger: logger,
		active: true,
		ctx:    clientCtx,
		cancel: cancel,
		breaker: resilience.NewCircuitBreaker(
			"asr",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
	}

	start := startRecognitionMessage{
		Message: "StartRecognition",
		AudioFormat: AudioFormat{
			Type:       "raw",
			Encoding:   "pcm_f32le",
			SampleRate: cfg.ASRSampleRate,
		},
		TranscriptionConfig: TranscriptionConfig{
			Language:       cfg.ASRLanguage,
			EnablePartials: cfg.ASREnablePartials,
		},
	}
	if err := c.writeJSON(start); err != nil {
		conn.Close()
		cancel()
		return nil, fmt.Errorf("failed to send StartRecognition: %w", err)
	}

	go c.readLoop()
	go c.keepAlive()

	return c, nil
}

// SendAudio forwards a raw audio frame upstream. Frames arriving after the
// connection died are dropped silently.
func (c *Client) SendAudio(data []byte) error {
	c.mu.RLock()
	active := c.active
	c.mu.RUnlock()

	if !active {
		return nil
	}

	err := c.breaker.Call(func() error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return c.conn.WriteMessage(websocket.BinaryMessage, data)
	})

	observability.UpdateCircuitBreakerState("asr", int(c.breaker.GetState()))
	if err != nil {
		observability.IncrementCircuitBreakerFailures("asr")
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
		return fmt.Errorf("failed to send audio to recognizer: %w", err)
	}

	return nil
}

// Events returns the stream of transcript segments. The channel closes
// when the upstream connection dies or Stop is called.
func (c *Client) Events() <-chan Event {
	return c.events
}

// IsActive reports whether the upstream connection is usable.
func (c *Client) IsActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Stop sends StopRecognition and closes the connection. Errors during
// shutdown are deliberately ignored; Stop is idempotent.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.active = false
	c.mu.Unlock()

	c.cancel()

	_ = c.writeJSON(stopRecognitionMessage{Message: "StopRecognition"})
	return c.conn.Close()
}

func (c *Client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// readLoop parses upstream frames into Events until the connection dies.
func (c *Client) readLoop() {
	defer close(c.events)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			wasStopped := c.stopped
			c.active = false
			c.mu.Unlock()

			if !wasStopped && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("Recognizer connection lost")
			}
			return
		}

		var ev transcriptEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			c.logger.Error().Err(err).Msg("Failed to parse recognizer event")
			continue
		}

		var final bool
		switch ev.Message {
		case "AddTranscript":
			final = true
		case "AddPartialTranscript":
			final = false
		default:
			// RecognitionStarted, AudioAdded, Info, etc.
			c.logger.Debug().Str("message", ev.Message).Msg("Ignoring recognizer event")
			continue
		}

		if ev.Metadata.Transcript == "" {
			continue
		}

		segmentID := ev.Metadata.SegmentID
		if segmentID == "" {
			segmentID = fmt.Sprintf("seg_%d", time.Now().UnixMilli())
		}

		select {
		case c.events <- Event{SegmentID: segmentID, Text: ev.Metadata.Transcript, Final: final}:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) keepAlive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}
