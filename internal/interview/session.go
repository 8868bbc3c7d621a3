package interview

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/evermind-ai/interview-gateway/internal/asr"
	"github.com/evermind-ai/interview-gateway/internal/config"
	"github.com/evermind-ai/interview-gateway/internal/llm"
	"github.com/evermind-ai/interview-gateway/internal/observability"
	"github.com/evermind-ai/interview-gateway/internal/transcript"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The product fronts this with its own auth layer; origin
		// filtering happens there.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Services bundles the external collaborators a session needs. One value
// is constructed at startup and shared by all sessions; the registry is
// the only process-wide mutable state.
type Services struct {
	Config *config.Config
	LLM    llm.Adapter

	// DialASR opens the upstream recognition connection for one session.
	// Nil selects test mode.
	DialASR func(ctx context.Context, logger zerolog.Logger) (asr.Recognizer, error)
}

// Mode of a session: live against the upstream recognizer, or test mode
// producing canned transcripts.
type Mode string

const (
	ModeLive Mode = "live"
	ModeTest Mode = "test"
)

// Session is the per-connection state machine driving one interview.
type Session struct {
	id       string
	mode     Mode
	sink     *wsSink
	buffer   *transcript.Buffer
	services *Services
	cfg      *config.Config
	registry *Registry
	logger   zerolog.Logger
	metrics  *observability.Metrics

	mu         sync.Mutex
	questions  []llm.Question
	recognizer asr.Recognizer // nil in test mode or after upstream death
	ended      bool           // interview_ended already emitted

	// llmJobs serializes LLM-backed control messages for this session.
	llmJobs chan controlMessage

	// ctx spans the whole session; llmCtx additionally ends at
	// end_interview so an in-flight answer stream can be abandoned while
	// the socket stays open.
	ctx       context.Context
	cancel    context.CancelFunc
	llmCtx    context.Context
	llmCancel context.CancelFunc

	closeOnce sync.Once
}

// HandleInterviewWS is the entry point for interview WebSocket connections.
func HandleInterviewWS(services *Services, registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger := observability.GetLogger()
			logger.Error().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		session := newSession(services, registry)
		registry.add(session)
		session.run(conn)
	}
}

func newSession(services *Services, registry *Registry) *Session {
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	llmCtx, llmCancel := context.WithCancel(ctx)

	mode := ModeLive
	if services.DialASR == nil {
		mode = ModeTest
	}

	metrics := observability.NewSessionMetrics(id)

	return &Session{
		id:        id,
		mode:      mode,
		buffer:    transcript.NewBuffer(),
		services:  services,
		cfg:       services.Config,
		registry:  registry,
		logger:    observability.WithSession(id),
		metrics:   metrics,
		llmJobs:   make(chan controlMessage, 4),
		ctx:       ctx,
		cancel:    cancel,
		llmCtx:    llmCtx,
		llmCancel: llmCancel,
	}
}

// ID returns the session identifier minted on accept.
func (s *Session) ID() string {
	return s.id
}

// run drives the session until the client socket dies.
func (s *Session) run(conn *websocket.Conn) {
	s.sink = newWSSink(conn, s.metrics)
	s.metrics.RecordSessionStart()
	s.logger.Info().Str("mode", string(s.mode)).Msg("Interview session started")

	defer s.teardown()

	if s.mode == ModeLive {
		recognizer, err := s.services.DialASR(s.ctx, s.logger)
		if err != nil {
			// A session without ASR is still usable for control messages;
			// continue degraded rather than dropping the client.
			s.logger.Error().Err(err).Msg("Recognizer unavailable, continuing without transcription")
			s.metrics.RecordError("asr_dial", "asr")
		} else {
			s.mu.Lock()
			s.recognizer = recognizer
			s.mu.Unlock()
			go s.consumeTranscripts(recognizer)
		}
	} else {
		go s.runTestMode()
	}

	go s.runHeartbeat()
	go s.runLLMWorker()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("Client socket read error")
			}
			return
		}
		s.handleFrame(msgType, data)
	}
}

// consumeTranscripts applies recognizer events to the buffer and relays
// updates to the client, in arrival order. A closed event channel means
// the upstream died; the session continues without transcription.
func (s *Session) consumeTranscripts(recognizer asr.Recognizer) {
	for {
		select {
		case ev, ok := <-recognizer.Events():
			if !ok {
				s.mu.Lock()
				s.recognizer = nil
				s.mu.Unlock()
				// Release the upstream socket and its keepalive.
				if err := recognizer.Stop(); err != nil {
					s.logger.Debug().Err(err).Msg("Error stopping dead recognizer")
				}
				s.logger.Warn().Msg("Recognizer stream ended, transcription disabled for session")
				return
			}
			s.applySegment(ev)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) applySegment(ev asr.Event) {
	var update transcript.Update
	var applied bool
	if ev.Final {
		update, applied = s.buffer.ApplyFinal(ev.SegmentID, ev.Text)
	} else {
		update, applied = s.buffer.ApplyPartial(ev.SegmentID, ev.Text)
	}
	if !applied {
		// Duplicate segment id re-emitted by the recognizer.
		return
	}

	s.metrics.RecordSegment(ev.Final)
	s.send(transcriptUpdateFrame{
		Type:       "transcript_update",
		Transcript: update.Transcript,
		IsPartial:  update.IsPartial,
		SegmentID:  update.SegmentID,
		Timestamp:  nowMillis(),
	})
}

// runHeartbeat emits a heartbeat frame on a fixed interval while the
// client socket is open, and stops itself once it is not.
func (s *Session) runHeartbeat() {
	interval := time.Duration(s.cfg.HeartbeatIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.send(heartbeatFrame{Type: "heartbeat", Timestamp: nowMillis()}); err != nil {
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// forwardAudio relays one raw audio frame to the recognizer. Frames are
// dropped silently in test mode and after the upstream has died.
func (s *Session) forwardAudio(data []byte) {
	s.mu.Lock()
	recognizer := s.recognizer
	s.mu.Unlock()

	if recognizer == nil {
		return
	}

	s.metrics.RecordAudioBytes("in", int64(len(data)))
	if err := recognizer.SendAudio(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to forward audio to recognizer")
		s.metrics.RecordError("asr_send", "asr")
		s.mu.Lock()
		s.recognizer = nil
		s.mu.Unlock()
		if err := recognizer.Stop(); err != nil {
			s.logger.Debug().Err(err).Msg("Error stopping failed recognizer")
		}
	}
}

// endInterview closes the recognizer, drops the buffer, emits the terminal
// frame exactly once, and tears the session down: the heartbeat stops and
// the registry entry is released. The client socket itself stays open; the
// client closes it.
func (s *Session) endInterview() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	recognizer := s.recognizer
	s.recognizer = nil
	s.mu.Unlock()

	// Abandon any in-flight answer stream.
	s.llmCancel()

	if recognizer != nil {
		if err := recognizer.Stop(); err != nil {
			s.logger.Warn().Err(err).Msg("Error stopping recognizer")
		}
	}
	s.buffer.Clear()

	s.send(interviewEndedFrame{
		Type:      "interview_ended",
		Message:   "Interview ended. Thank you for sharing your story.",
		Timestamp: nowMillis(),
	})
	s.logger.Info().Msg("Interview ended by client")

	s.teardown()
}

// teardown releases everything the session holds. Safe to call multiple
// times; reached from endInterview, from the connection handler on socket
// close, and from Registry.Destroy.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		s.cancel()

		s.mu.Lock()
		recognizer := s.recognizer
		s.recognizer = nil
		s.mu.Unlock()

		if recognizer != nil {
			if err := recognizer.Stop(); err != nil {
				s.logger.Warn().Err(err).Msg("Error stopping recognizer during teardown")
			}
		}

		s.buffer.Clear()
		if s.sink != nil {
			s.sink.Close()
		}
		s.registry.remove(s.id)
		s.metrics.RecordSessionEnd()
		s.logger.Info().Msg("Interview session closed")
	})
}

// send writes one frame to the client. A skipped write on a dead socket
// is logged, not surfaced to the client (the socket is gone).
func (s *Session) send(frame any) error {
	err := s.sink.Write(frame)
	if err != nil {
		s.logger.Debug().Err(err).Str("frame", frameType(frame)).Msg("Skipped frame send, client socket not open")
	}
	return err
}

func (s *Session) sendError(message string, err error, questionID string) {
	s.metrics.RecordError("request", "interview")
	frame := errorFrame{
		Type:      "error",
		Message:   message,
		Timestamp: nowMillis(),
	}
	if err != nil {
		frame.Error = err.Error()
	}
	frame.QuestionID = questionID
	s.send(frame)
}
