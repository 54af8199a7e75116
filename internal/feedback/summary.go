package feedback

import "math"

// ImprovementRules are the thresholds that turn a session summary into advice.
type ImprovementRules struct {
	MinAvgConfidence float64 `yaml:"min_avg_confidence" json:"min_avg_confidence" validate:"gte=0,lte=100"`
	MaxTotalFillers  int     `yaml:"max_total_fillers" json:"max_total_fillers" validate:"gte=0"`
	MinAvgPolarity   float64 `yaml:"min_avg_polarity" json:"min_avg_polarity" validate:"gte=-1,lte=1"`
}

// DefaultImprovementRules mirrors the thresholds used by interview coaches:
// confidence under 70, more than 5 fillers, polarity under 0.2.
func DefaultImprovementRules() ImprovementRules {
	return ImprovementRules{MinAvgConfidence: 70, MaxTotalFillers: 5, MinAvgPolarity: 0.2}
}

const (
	ImprovementConfidence = "Confidence: speak more assertively and lead with what you did."
	ImprovementFillers    = "Speech clarity: reduce filler words like 'um', 'uh' and 'like'."
	ImprovementTone       = "Positive tone: frame outcomes with more energy and enthusiasm."
)

// Summary aggregates the records of a session.
type Summary struct {
	Answered              int          `json:"answered"`
	AverageConfidence     float64      `json:"average_confidence"`
	AveragePolarity       float64      `json:"average_polarity"`
	TotalFillers          int          `json:"total_fillers"`
	TotalHesitations      int          `json:"total_hesitations"`
	TotalConfidentPhrases int          `json:"total_confident_phrases"`
	ToneCounts            map[Tone]int `json:"tone_counts"`
	Improvements          []string     `json:"improvements"`
}

// Summarize folds records into a Summary. An empty session has zero averages
// and no improvements.
func Summarize(records []Record, rules ImprovementRules) Summary {
	sum := Summary{
		ToneCounts:   map[Tone]int{TonePositive: 0, ToneNeutral: 0, ToneNegative: 0},
		Improvements: []string{},
	}
	if len(records) == 0 {
		return sum
	}
	var conf, pol float64
	for _, r := range records {
		conf += r.ConfidenceScore
		pol += r.Polarity
		sum.TotalFillers += r.FillerWordCount
		sum.TotalHesitations += r.HesitationPhraseCount
		sum.TotalConfidentPhrases += r.ConfidentPhraseCount
		sum.ToneCounts[r.Tone]++
	}
	sum.Answered = len(records)
	sum.AverageConfidence = round2(conf / float64(len(records)))
	sum.AveragePolarity = round2(pol / float64(len(records)))

	if sum.AverageConfidence < rules.MinAvgConfidence {
		sum.Improvements = append(sum.Improvements, ImprovementConfidence)
	}
	if sum.TotalFillers > rules.MaxTotalFillers {
		sum.Improvements = append(sum.Improvements, ImprovementFillers)
	}
	if sum.AveragePolarity < rules.MinAvgPolarity {
		sum.Improvements = append(sum.Improvements, ImprovementTone)
	}
	return sum
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
