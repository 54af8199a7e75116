// Package feedback scores interview answers with local, explainable heuristics.
//
// The scorer never calls an external service. It counts filler, hesitation and
// confident phrases, buckets sentiment polarity into a tone, measures sentence
// development and folds everything into a 0-100 confidence score.
package feedback

import (
	"fmt"
	"strings"
)

// MatchMode selects how lexicon phrases are located in an answer.
type MatchMode string

const (
	// MatchSubstring counts raw, non-overlapping substring occurrences.
	MatchSubstring MatchMode = "substring"
	// MatchWord only counts occurrences bounded by non-word characters.
	MatchWord MatchMode = "word"
)

// Weights are the coefficients of the confidence score formula:
//
//	score = (polarity+1)/2*SentimentSpan + confident*Confident - filler*Filler - hesitation*Hesitation
type Weights struct {
	SentimentSpan float64 `yaml:"sentiment_span" json:"sentiment_span" validate:"gte=0,lte=100"`
	Confident     float64 `yaml:"confident" json:"confident" validate:"gte=0"`
	Filler        float64 `yaml:"filler" json:"filler" validate:"gte=0"`
	Hesitation    float64 `yaml:"hesitation" json:"hesitation" validate:"gte=0"`
}

// Config holds every tunable of the scorer.
type Config struct {
	Fillers          []string `yaml:"fillers" json:"fillers" validate:"dive,required"`
	Hesitations      []string `yaml:"hesitations" json:"hesitations" validate:"dive,required"`
	ConfidentPhrases []string `yaml:"confident_phrases" json:"confident_phrases" validate:"dive,required"`

	// Polarity above PositiveThreshold is Positive, below NegativeThreshold is Negative.
	PositiveThreshold float64 `yaml:"positive_threshold" json:"positive_threshold" validate:"gte=-1,lte=1"`
	NegativeThreshold float64 `yaml:"negative_threshold" json:"negative_threshold" validate:"gte=-1,lte=1"`

	// Fragments whose trimmed length is not greater than MinFragmentChars are ignored.
	MinFragmentChars int `yaml:"min_fragment_chars" json:"min_fragment_chars" validate:"gte=0"`

	WellDevelopedWords float64 `yaml:"well_developed_words" json:"well_developed_words" validate:"gte=0"`
	DecentWords        float64 `yaml:"decent_words" json:"decent_words" validate:"gte=0"`

	Weights  Weights   `yaml:"weights" json:"weights"`
	Matching MatchMode `yaml:"matching" json:"matching" validate:"omitempty,oneof=substring word"`
}

// DefaultConfig returns the stock lexicons, thresholds and weights.
func DefaultConfig() Config {
	return Config{
		Fillers:            []string{"um", "uh", "like", "you know", "basically", "actually", "literally"},
		Hesitations:        []string{"i think", "maybe", "i guess", "probably", "i'm not sure", "kind of", "sort of"},
		ConfidentPhrases:   []string{"i led", "i built", "i created", "i achieved", "i managed", "i improved", "i delivered"},
		PositiveThreshold:  0.25,
		NegativeThreshold:  -0.25,
		MinFragmentChars:   5,
		WellDevelopedWords: 18,
		DecentWords:        10,
		Weights: Weights{
			SentimentSpan: 60,
			Confident:     8,
			Filler:        5,
			Hesitation:    6,
		},
		Matching: MatchSubstring,
	}
}

// Validate checks the relations between thresholds that struct tags cannot express.
func (c Config) Validate() error {
	if c.NegativeThreshold > c.PositiveThreshold {
		return fmt.Errorf("negative_threshold %.2f is above positive_threshold %.2f", c.NegativeThreshold, c.PositiveThreshold)
	}
	if c.DecentWords > c.WellDevelopedWords {
		return fmt.Errorf("decent_words %.1f is above well_developed_words %.1f", c.DecentWords, c.WellDevelopedWords)
	}
	switch c.Matching {
	case "", MatchSubstring, MatchWord:
	default:
		return fmt.Errorf("unknown matching mode %q", c.Matching)
	}
	return nil
}

// normalizePhrases lower-cases the lexicon and drops blanks.
// An empty phrase would match everywhere, so it can never be counted.
func normalizePhrases(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
