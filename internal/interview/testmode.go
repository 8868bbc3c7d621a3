package interview

import (
	"fmt"
	"time"
)

// testSentences are the canned transcript lines emitted in test mode, in
// rotation. They exercise the same buffer and question path a live
// recognizer does.
var testSentences = []string{
	"I grew up in a small coastal town where my grandfather ran a fishing boat.",
	"After university I moved abroad for my first engineering job.",
	"The hardest year of my life was when we started the company from a garage.",
	"My grandmother taught me to cook, and Sunday dinners were sacred in our house.",
	"I spent three years working on search infrastructure before switching to audio.",
	"We traveled across South America for six months with nothing but backpacks.",
}

// runTestMode drives a session without an upstream recognizer. On a fixed
// interval it applies one canned sentence as a final segment, relays the
// transcript update, and asks the model for one follow-up question.
func (s *Session) runTestMode() {
	interval := time.Duration(s.cfg.TestTranscriptIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	next := 0
	for {
		select {
		case <-ticker.C:
			sentence := testSentences[next%len(testSentences)]
			next++
			s.emitTestSegment(sentence)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) emitTestSegment(sentence string) {
	segmentID := fmt.Sprintf("test_seg_%d", nowMillis())
	update, applied := s.buffer.ApplyFinal(segmentID, sentence)
	if !applied {
		return
	}

	s.metrics.RecordSegment(true)
	s.send(transcriptUpdateFrame{
		Type:       "transcript_update",
		Transcript: update.Transcript,
		IsPartial:  update.IsPartial,
		SegmentID:  update.SegmentID,
		Timestamp:  nowMillis(),
	})

	s.metrics.RecordLLMStart("single_question")
	question, err := s.services.LLM.GenerateSingleQuestion(s.llmCtx, sentence)
	s.metrics.RecordLLMEnd("single_question", err == nil)
	if err != nil {
		// Test mode keeps emitting transcripts even when the model is
		// unreachable.
		s.logger.Error().Err(err).Msg("Failed to generate test mode question")
		s.metrics.RecordError("llm_single_question", "llm")
		return
	}

	s.mu.Lock()
	s.questions = append(s.questions, question)
	s.mu.Unlock()

	s.send(questionGeneratedFrame{
		Type:      "question_generated",
		Question:  question,
		Timestamp: nowMillis(),
	})
}
