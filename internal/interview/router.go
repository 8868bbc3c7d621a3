package interview

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/evermind-ai/interview-gateway/internal/llm"
)

// handleFrame discriminates audio from control on the shared client
// channel. The transport has no framing header, so the only cheap signal
// for a control frame is a leading '{'; anything that fails JSON parsing
// falls through to audio handling.
func (s *Session) handleFrame(msgType int, data []byte) {
	if msgType == websocket.BinaryMessage {
		s.forwardAudio(data)
		return
	}

	trimmed := strings.TrimLeftFunc(string(data), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(trimmed) == 0 || trimmed[0] != '{' {
		s.forwardAudio(data)
		return
	}

	var msg controlMessage
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
		// Some clients wrap audio in text frames; treat unparseable text
		// as audio rather than failing the session.
		s.forwardAudio(data)
		return
	}

	s.dispatch(msg)
}

func (s *Session) dispatch(msg controlMessage) {
	switch msg.Type {
	case controlEndInterview:
		s.endInterview()

	case controlGetTranscriptAnswer, controlGetAnswer, controlGenerateQuestions:
		// LLM-backed controls run serialized on the session's worker so a
		// streamed answer is never interleaved with another reply.
		select {
		case s.llmJobs <- msg:
		default:
			s.sendError("Another request is already in progress", errors.New("request queue full"), "")
		}

	default:
		s.logger.Warn().Str("type", msg.Type).Msg("Ignoring unknown control message")
	}
}

// runLLMWorker executes LLM-backed control messages one at a time.
func (s *Session) runLLMWorker() {
	for {
		select {
		case msg := <-s.llmJobs:
			switch msg.Type {
			case controlGetTranscriptAnswer:
				s.handleTranscriptAnswer(msg)
			case controlGetAnswer:
				s.handleGetAnswer(msg)
			case controlGenerateQuestions:
				s.handleGenerateQuestions()
			}

		case <-s.ctx.Done():
			return
		}
	}
}

// handleTranscriptAnswer streams an answer over the accumulated transcript
// and, on success, resets the buffer: each answer closes one
// conversational unit.
func (s *Session) handleTranscriptAnswer(msg controlMessage) {
	prompt, err := llm.TranscriptAnswerPrompt(s.buffer.Snapshot(), answerStyle(msg))
	if err != nil {
		s.sendError("Invalid get_transcript_answer request", err, "")
		return
	}

	s.metrics.RecordLLMStart("stream_answer")
	err = s.services.LLM.StreamAnswer(s.llmCtx, prompt, llm.StreamOptions{
		Temperature: s.cfg.AnswerTemperature,
		MaxTokens:   s.cfg.AnswerMaxTokens,
	}, s.sink)
	s.metrics.RecordLLMEnd("stream_answer", err == nil)

	if err != nil {
		if errors.Is(err, errSinkClosed) || errors.Is(err, context.Canceled) {
			// Client is gone or the interview ended mid-stream; nothing
			// left to notify.
			s.logger.Debug().Err(err).Msg("Answer stream abandoned")
			return
		}
		s.sendError("Failed to generate answer", err, "")
		return
	}

	if s.cfg.ClearBufferOnAnswer {
		s.buffer.Clear()
	}
}

// handleGetAnswer answers one previously generated question.
func (s *Session) handleGetAnswer(msg controlMessage) {
	question, ok := s.findQuestion(msg.QuestionID)
	if !ok {
		s.sendError("Question not found", errors.New("unknown questionId"), msg.QuestionID)
		return
	}

	s.metrics.RecordLLMStart("get_answer")
	answer, err := s.services.LLM.GetAnswer(s.llmCtx, question.Text, s.buffer.Snapshot(), answerStyle(msg))
	s.metrics.RecordLLMEnd("get_answer", err == nil)
	if err != nil {
		if errors.Is(err, llm.ErrValidation) {
			s.sendError("Invalid get_answer request", err, msg.QuestionID)
		} else {
			s.sendError("Failed to generate answer", err, msg.QuestionID)
		}
		return
	}

	s.send(answerReceivedFrame{
		Type:       "answer_received",
		QuestionID: question.ID,
		Question:   question.Text,
		Answer:     answer,
		Timestamp:  nowMillis(),
	})
}

// handleGenerateQuestions derives follow-up questions from the finalized
// transcript and stores them on the session.
func (s *Session) handleGenerateQuestions() {
	snapshot := s.buffer.Snapshot()
	if strings.TrimSpace(snapshot) == "" {
		s.sendError("No transcript available yet", errors.New("transcript is empty"), "")
		return
	}

	s.metrics.RecordLLMStart("generate_questions")
	questions, err := s.services.LLM.GenerateQuestions(s.llmCtx, snapshot, s.cfg.MaxQuestions, nil)
	s.metrics.RecordLLMEnd("generate_questions", err == nil)
	if err != nil {
		if errors.Is(err, llm.ErrValidation) {
			s.sendError("Invalid generate_questions request", err, "")
		} else {
			s.sendError("Failed to generate questions", err, "")
		}
		return
	}

	s.mu.Lock()
	s.questions = append(s.questions, questions...)
	s.mu.Unlock()

	s.send(questionsGeneratedFrame{
		Type:      "questions_generated",
		Questions: questions,
		Timestamp: nowMillis(),
	})
}

// answerStyle applies the default style when the client omits one.
func answerStyle(msg controlMessage) llm.Style {
	if msg.Style == "" {
		return llm.StyleProfessional
	}
	return llm.Style(msg.Style)
}

func (s *Session) findQuestion(id string) (llm.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.questions {
		if q.ID == id {
			return q, true
		}
	}
	return llm.Question{}, false
}
