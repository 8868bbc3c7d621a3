package llm

import (
	"fmt"
	"strings"
)

// Limits on question generation requests.
const (
	MaxQuestionLimit   = 10
	MaxTranscriptChars = 10000
)

// stylePrompts are the enumerated tone presets for answers.
var stylePrompts = map[Style]string{
	StyleProfessional:   "Provide a well-structured response suitable for a job interview.",
	StyleConversational: "Provide a friendly response that shows personality.",
	StyleDetailed:       "Provide a comprehensive response with examples and explanations.",
	StyleConcise:        "Provide a brief response that is to the point.",
}

// StylePrompt returns the preset instruction for a style, or ErrValidation
// for an unknown style.
func StylePrompt(style Style) (string, error) {
	prompt, ok := stylePrompts[style]
	if !ok {
		return "", fmt.Errorf("%w: unknown style %q", ErrValidation, style)
	}
	return prompt, nil
}

// TranscriptAnswerPrompt builds the prompt for a streamed answer over the
// accumulated interview transcript.
func TranscriptAnswerPrompt(transcript string, style Style) (string, error) {
	stylePrompt, err := StylePrompt(style)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("You are helping an interviewee respond during a live interview. ")
	b.WriteString("Based on the transcript so far, compose the answer the interviewee should give next.\n\n")
	b.WriteString(stylePrompt)
	b.WriteString("\n\nTranscript:\n")
	b.WriteString(transcript)
	return b.String(), nil
}

const singleQuestionSystemPrompt = "You are an interviewer building a personal memoir. " +
	"Given a statement from the interviewee, reply with exactly one follow-up " +
	"interview question about it. Reply with the question only."

func questionsSystemPrompt(maxQuestions int, categories []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an interviewer preparing follow-up questions. "+
		"Based on the interview transcript, generate at most %d questions.\n", maxQuestions)
	if len(categories) > 0 {
		fmt.Fprintf(&b, "Tag each question with one of these categories: %s.\n", strings.Join(categories, ", "))
	}
	b.WriteString(`Respond with a JSON array only, no prose: [{"text": "...", "category": "..."}]`)
	return b.String()
}

func answerSystemPrompt(stylePrompt string) string {
	return "You are helping an interviewee answer a specific interview question. " +
		"Use the transcript for context when it is relevant. " + stylePrompt
}

func answerUserPrompt(question, transcriptContext string) string {
	if transcriptContext == "" {
		return fmt.Sprintf("Question: %s", question)
	}
	return fmt.Sprintf("Transcript so far:\n%s\n\nQuestion: %s", transcriptContext, question)
}
