package usecase

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-mock-interview/internal/config"
)

const analysisSystem = `You are an interview coach reviewing one spoken or typed answer.
Return a JSON object with exactly these fields:
confidence_score (number 0..1), filler_word_count (integer), filler_words (array of strings),
sentiment ("Positive", "Neutral" or "Negative"), concise_summary (one sentence),
feedback_tip (one actionable sentence), wpm_feedback (one sentence about pace, empty when unknown).`

const claritySystem = `You assess how clearly a candidate delivered an interview answer.
Return a JSON object with: clarity_score (number 0..1), pace_assessment ("Good", "Too Fast" or "Too Slow"),
filler_word_count (integer), delivery_tip (one actionable sentence).`

const perfectAnswerSystem = `You are a senior interviewer writing a model answer.
Answer in the first person using the STAR structure (Situation, Task, Action, Result).
Keep it under 200 words and include one concrete metric in the result.`

const codeStructureSystem = `You help candidates prepare for coding interviews.
Give a code skeleton for the problem: function signatures, the main data structures and short
comments marking each step. Do not write the full solution. Mention the time and space complexity.`

const resumeQuestionsSystem = `You are a technical interviewer preparing questions from a resume.
Return a JSON object {"questions": [...]} with exactly 3 questions tailored to the candidate's
projects and skills. Each question is one sentence.`

const adaptiveSystem = `You are an adaptive interviewer. Ask exactly one follow-up question that probes
the weakest area visible in the candidate's previous answers. Reply with the question only.`

const reportSystem = `You write the end-of-interview report for a candidate.
Return a JSON object with: overall_assessment (2-3 sentences), strengths (array of strings),
weaknesses (array of strings), suggestions (array of strings).`

const strategySystem = `You are an interview preparation coach. Build a 7-day plan that targets the
candidate's weaknesses. Return a JSON object {"days": [{"day": 1, "focus": "...", "tasks": ["..."]}, ...]}
with exactly 7 entries, days 1 to 7.`

func analysisPrompt(question, answer string, wpm float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\nAnswer: %s\n", question, answer)
	if wpm > 0 {
		fmt.Fprintf(&b, "Speaking rate: %.0f words per minute (comfortable range is 120-160).\n", wpm)
	}
	return b.String()
}

func clarityPrompt(answer string, wpm float64) string {
	if wpm > 0 {
		return fmt.Sprintf("Answer: %s\nSpeaking rate: %.0f words per minute.", answer, wpm)
	}
	return "Answer: " + answer
}

func resumeQuestionsPrompt(resume string) string {
	return "Resume:\n" + resume
}

func adaptivePrompt(history, resume string) string {
	var b strings.Builder
	b.WriteString("Previous answers:\n")
	b.WriteString(history)
	if resume != "" {
		b.WriteString("\n\nResume:\n")
		b.WriteString(resume)
	}
	return b.String()
}

func panelSystem(p config.Persona) string {
	return fmt.Sprintf(`You are %s, the %s on an interview panel. Your style: %s.
Ask exactly one interview question in your own voice. Reply with the question only.`, p.Name, p.Role, p.Style)
}

func panelPrompt(asked []string, resume string) string {
	var b strings.Builder
	if len(asked) > 0 {
		b.WriteString("Questions already asked, do not repeat them:\n- ")
		b.WriteString(strings.Join(asked, "\n- "))
		b.WriteString("\n")
	}
	if resume != "" {
		b.WriteString("\nResume:\n")
		b.WriteString(resume)
	}
	if b.Len() == 0 {
		return "Ask your opening question."
	}
	return b.String()
}
