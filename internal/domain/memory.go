package domain

import (
	"fmt"
	"strings"
)

// NoHistory is the history text used when a user has no stored answers.
const NoHistory = "No previous data found."

// Document renders the record the way it is embedded and shown to the model.
func (r QARecord) Document() string {
	return "Q: " + r.Question + "\nA: " + r.Answer
}

// FormatHistory renders records for a prompt, one block per record.
func FormatHistory(records []QARecord) string {
	if len(records) == 0 {
		return NoHistory
	}
	blocks := make([]string, 0, len(records))
	for _, r := range records {
		var b strings.Builder
		b.WriteString(r.Document())
		fmt.Fprintf(&b, "\nFeedback: confidence: %.2f", r.Confidence)
		if r.Feedback != "" {
			b.WriteString(", " + r.Feedback)
		}
		if !r.Timestamp.IsZero() {
			b.WriteString("\nTime: " + r.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}
