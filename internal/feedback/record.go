package feedback

// Tone is the three-way sentiment bucket of an answer.
type Tone string

const (
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
	ToneNeutral  Tone = "neutral"
)

// Label returns the human readable form shown to candidates.
func (t Tone) Label() string {
	switch t {
	case TonePositive:
		return "Positive / Confident"
	case ToneNegative:
		return "Negative / Uncertain"
	default:
		return "Neutral / Mixed"
	}
}

// Structure buckets how developed the sentences of an answer are.
type Structure string

const (
	StructureBrief         Structure = "brief"
	StructureDecent        Structure = "decent"
	StructureWellDeveloped Structure = "well_developed"
)

// Label returns the human readable form shown to candidates.
func (s Structure) Label() string {
	switch s {
	case StructureWellDeveloped:
		return "Well-developed / Detailed"
	case StructureDecent:
		return "Decent / Clear"
	default:
		return "Brief / Could Elaborate More"
	}
}

// Record is the result of scoring one answer. It is a value; callers own it.
type Record struct {
	Tone                  Tone      `json:"tone"`
	FillerWordCount       int       `json:"filler_word_count"`
	HesitationPhraseCount int       `json:"hesitation_phrase_count"`
	ConfidentPhraseCount  int       `json:"confident_phrase_count"`
	SentenceStructure     Structure `json:"sentence_structure"`
	ConfidenceScore       float64   `json:"confidence_score"`

	// Polarity is the sentiment value the tone and score were derived from.
	Polarity         float64 `json:"polarity"`
	AvgSentenceWords float64 `json:"avg_sentence_words"`
}
