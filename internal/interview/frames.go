package interview

import (
	"time"

	"github.com/evermind-ai/interview-gateway/internal/llm"
)

// Server-to-client frames. Every frame carries a millisecond timestamp.

type transcriptUpdateFrame struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	IsPartial  bool   `json:"isPartial"`
	SegmentID  string `json:"segmentId"`
	Timestamp  int64  `json:"timestamp"`
}

type questionGeneratedFrame struct {
	Type      string       `json:"type"`
	Question  llm.Question `json:"question"`
	Timestamp int64        `json:"timestamp"`
}

type questionsGeneratedFrame struct {
	Type      string         `json:"type"`
	Questions []llm.Question `json:"questions"`
	Timestamp int64          `json:"timestamp"`
}

type answerReceivedFrame struct {
	Type       string     `json:"type"`
	QuestionID string     `json:"questionId"`
	Question   string     `json:"question"`
	Answer     llm.Answer `json:"answer"`
	Timestamp  int64      `json:"timestamp"`
}

type heartbeatFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type interviewEndedFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type errorFrame struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Error      string `json:"error"`
	QuestionID string `json:"questionId,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// controlMessage is the client-to-server control frame, discriminated by
// Type. Unknown types are logged and ignored.
type controlMessage struct {
	Type       string `json:"type"`
	Style      string `json:"style,omitempty"`
	QuestionID string `json:"questionId,omitempty"`
}

const (
	controlEndInterview        = "end_interview"
	controlGetTranscriptAnswer = "get_transcript_answer"
	controlGetAnswer           = "get_answer"
	controlGenerateQuestions   = "generate_questions"
)

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// frameType extracts the wire type of an outbound frame for metrics.
func frameType(v any) string {
	switch f := v.(type) {
	case transcriptUpdateFrame:
		return f.Type
	case questionGeneratedFrame:
		return f.Type
	case questionsGeneratedFrame:
		return f.Type
	case answerReceivedFrame:
		return f.Type
	case heartbeatFrame:
		return f.Type
	case interviewEndedFrame:
		return f.Type
	case errorFrame:
		return f.Type
	case llm.AnswerChunk:
		return f.Type
	case llm.AnswerComplete:
		return f.Type
	default:
		return "unknown"
	}
}
