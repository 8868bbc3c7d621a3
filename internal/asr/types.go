package asr

// Event is one transcript segment emitted by the upstream recognizer.
type Event struct {
	// SegmentID identifies the partial/final pair this segment belongs to.
	SegmentID string

	// Text is the transcript content.
	Text string

	// Final indicates a committed result; false means a partial that may
	// still change.
	Final bool
}

// Recognizer is the interface for realtime speech recognition clients.
type Recognizer interface {
	// SendAudio forwards one raw audio frame upstream. Frames sent after
	// the connection has died are dropped silently.
	SendAudio(data []byte) error

	// Events returns the stream of transcript segments. The channel is
	// closed when the upstream connection dies.
	Events() <-chan Event

	// Stop ends recognition and closes the connection.
	Stop() error
}
