package ai

import "github.com/xeipuuv/gojsonschema"

// Schema is a named JSON Schema that model output must satisfy.
type Schema struct {
	Name   string
	loader gojsonschema.JSONLoader
}

// NewSchema wraps a draft-07 schema document.
func NewSchema(name, schemaJSON string) Schema {
	return Schema{Name: name, loader: gojsonschema.NewStringLoader(schemaJSON)}
}

// Validate checks doc against the schema and returns the violations.
func (s Schema) Validate(doc string) ([]string, error) {
	res, err := gojsonschema.Validate(s.loader, gojsonschema.NewStringLoader(doc))
	if err != nil {
		return nil, err
	}
	if res.Valid() {
		return nil, nil
	}
	out := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		out = append(out, e.String())
	}
	return out, nil
}

var (
	AnalysisSchema = NewSchema("answer_analysis", `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["confidence_score", "filler_word_count", "sentiment", "concise_summary", "feedback_tip"],
  "properties": {
    "confidence_score": {"type": "number", "minimum": 0, "maximum": 1},
    "filler_word_count": {"type": "integer", "minimum": 0},
    "filler_words": {"type": "array", "items": {"type": "string"}},
    "sentiment": {"type": "string", "enum": ["Positive", "Neutral", "Negative"]},
    "concise_summary": {"type": "string", "minLength": 1},
    "feedback_tip": {"type": "string", "minLength": 1},
    "wpm_feedback": {"type": "string"}
  }
}`)

	ClaritySchema = NewSchema("clarity", `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["clarity_score", "pace_assessment", "filler_word_count", "delivery_tip"],
  "properties": {
    "clarity_score": {"type": "number", "minimum": 0, "maximum": 1},
    "pace_assessment": {"type": "string", "enum": ["Good", "Too Fast", "Too Slow"]},
    "filler_word_count": {"type": "integer", "minimum": 0},
    "delivery_tip": {"type": "string", "minLength": 1}
  }
}`)

	QuestionsSchema = NewSchema("questions", `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 5}
    }
  }
}`)

	ReportSchema = NewSchema("session_report", `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["overall_assessment", "strengths", "weaknesses", "suggestions"],
  "properties": {
    "overall_assessment": {"type": "string", "minLength": 1},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "weaknesses": {"type": "array", "items": {"type": "string"}},
    "suggestions": {"type": "array", "items": {"type": "string"}}
  }
}`)

	StrategySchema = NewSchema("strategy", `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["days"],
  "properties": {
    "days": {
      "type": "array",
      "minItems": 7,
      "maxItems": 7,
      "items": {
        "type": "object",
        "required": ["day", "focus", "tasks"],
        "properties": {
          "day": {"type": "integer", "minimum": 1, "maximum": 7},
          "focus": {"type": "string", "minLength": 1},
          "tasks": {"type": "array", "minItems": 1, "items": {"type": "string"}}
        }
      }
    }
  }
}`)
)
