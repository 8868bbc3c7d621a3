package interview

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/evermind-ai/interview-gateway/internal/observability"
)

// errSinkClosed is returned by Write once the client socket is gone. The
// LLM adapter uses this to short-circuit an in-flight stream.
var errSinkClosed = errors.New("client sink closed")

// wsSink writes JSON frames to the client WebSocket. One wsSink exists per
// session; all goroutines that emit frames share it. Writes are serialized
// so the frame order on the wire equals the call order.
type wsSink struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	metrics *observability.Metrics
}

func newWSSink(conn *websocket.Conn, metrics *observability.Metrics) *wsSink {
	return &wsSink{conn: conn, metrics: metrics}
}

// Write sends one frame. Writes after Close (or after a transport failure)
// fail with errSinkClosed.
func (s *wsSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSinkClosed
	}

	if err := s.conn.WriteJSON(v); err != nil {
		// A failed client write is unrecoverable; poison the sink so
		// later senders skip the socket entirely.
		s.closed = true
		if s.metrics != nil {
			s.metrics.RecordError("transport_write", "interview")
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordFrameSent(frameType(v))
	}
	return nil
}

// Close marks the sink closed. It does not close the underlying socket;
// the connection handler owns that.
func (s *wsSink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Closed reports whether the sink can still write.
func (s *wsSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
