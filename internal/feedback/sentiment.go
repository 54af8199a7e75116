package feedback

import (
	"strings"
	"unicode"
)

// LexiconAnalyzer is a deterministic polarity estimator. Each known word
// carries a valence in [-1, 1]; an immediately preceding intensifier scales
// it and a negator within the previous three words flips and halves it. The
// polarity is the mean valence of the known words, or 0 when there are none.
type LexiconAnalyzer struct {
	valence      map[string]float64
	intensifiers map[string]float64
	negators     map[string]struct{}
}

// NewLexiconAnalyzer returns an analyzer with the built-in English lexicon.
func NewLexiconAnalyzer() *LexiconAnalyzer {
	return NewLexiconAnalyzerWith(nil)
}

// NewLexiconAnalyzerWith extends the built-in lexicon with extra valences.
// Entries in extra override built-in ones.
func NewLexiconAnalyzerWith(extra map[string]float64) *LexiconAnalyzer {
	v := make(map[string]float64, len(baseValence)+len(extra))
	for w, x := range baseValence {
		v[w] = x
	}
	for w, x := range extra {
		v[strings.ToLower(w)] = clamp(x, -1, 1)
	}
	return &LexiconAnalyzer{valence: v, intensifiers: intensifiers, negators: negators}
}

// Polarity implements SentimentAnalyzer.
func (a *LexiconAnalyzer) Polarity(text string) (float64, error) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	sum, hits := 0.0, 0
	for i, w := range words {
		v, ok := a.valence[w]
		if !ok {
			continue
		}
		if i > 0 {
			if f, ok := a.intensifiers[words[i-1]]; ok {
				v *= f
			}
		}
		if a.negated(words, i) {
			v *= -0.5
		}
		sum += clamp(v, -1, 1)
		hits++
	}
	if hits == 0 {
		return 0, nil
	}
	return clamp(sum/float64(hits), -1, 1), nil
}

func (a *LexiconAnalyzer) negated(words []string, i int) bool {
	for j := i - 1; j >= 0 && j >= i-3; j-- {
		w := words[j]
		if _, ok := a.negators[w]; ok || strings.HasSuffix(w, "n't") {
			return true
		}
	}
	return false
}

var negators = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "cannot": {}, "nothing": {}, "hardly": {}, "without": {},
}

var intensifiers = map[string]float64{
	"very":       1.3,
	"really":     1.3,
	"extremely":  1.5,
	"highly":     1.3,
	"incredibly": 1.5,
	"truly":      1.2,
	"so":         1.2,
	"quite":      1.1,
	"somewhat":   0.7,
	"slightly":   0.5,
	"fairly":     0.8,
}

var baseValence = map[string]float64{
	// accomplishment
	"achieved":     0.8,
	"accomplished": 0.8,
	"delivered":    0.6,
	"led":          0.5,
	"built":        0.5,
	"created":      0.5,
	"improved":     0.6,
	"managed":      0.4,
	"launched":     0.5,
	"shipped":      0.5,
	"solved":       0.6,
	"succeeded":    0.8,
	"won":          0.7,
	"exceeded":     0.7,
	"grew":         0.4,
	"optimized":    0.5,
	"streamlined":  0.5,
	"mentored":     0.4,
	"resolved":     0.5,
	"increased":    0.3,

	// general positive
	"good":         0.7,
	"great":        0.8,
	"excellent":    1.0,
	"best":         1.0,
	"better":       0.5,
	"strong":       0.4,
	"confident":    0.5,
	"successful":   0.75,
	"success":      0.6,
	"successfully": 0.6,
	"positive":     0.6,
	"happy":        0.8,
	"glad":         0.5,
	"proud":        0.8,
	"excited":      0.6,
	"enjoy":        0.5,
	"enjoyed":      0.5,
	"love":         0.5,
	"loved":        0.6,
	"passionate":   0.6,
	"effective":    0.6,
	"efficient":    0.5,
	"reliable":     0.5,
	"impressive":   1.0,
	"clear":        0.3,
	"easy":         0.4,
	"fast":         0.2,
	"nice":         0.6,
	"wonderful":    1.0,
	"amazing":      0.6,
	"fantastic":    0.4,
	"perfect":      1.0,
	"okay":         0.5,
	"ok":           0.5,
	"fine":         0.4,
	"helpful":      0.5,
	"valuable":     0.5,
	"innovative":   0.5,
	"creative":     0.5,
	"motivated":    0.5,
	"improve":      0.4,
	"achieve":      0.5,
	"opportunity":  0.3,
	"win":          0.6,
	"ready":        0.2,
	"skilled":      0.5,
	"capable":      0.4,
	"robust":       0.4,
	"smooth":       0.4,

	// general negative
	"bad":          -0.7,
	"worse":        -0.5,
	"worst":        -1.0,
	"poor":         -0.4,
	"weak":         -0.4,
	"fail":         -0.5,
	"failed":       -0.5,
	"failure":      -0.6,
	"difficult":    -0.5,
	"hard":         -0.3,
	"problem":      -0.3,
	"problems":     -0.3,
	"struggle":     -0.5,
	"struggled":    -0.5,
	"negative":     -0.3,
	"wrong":        -0.5,
	"terrible":     -1.0,
	"awful":        -1.0,
	"horrible":     -1.0,
	"sad":          -0.5,
	"angry":        -0.5,
	"frustrated":   -0.6,
	"frustrating":  -0.6,
	"confused":     -0.4,
	"confusing":    -0.4,
	"nervous":      -0.3,
	"worried":      -0.4,
	"afraid":       -0.6,
	"unsure":       -0.3,
	"uncertain":    -0.3,
	"stressful":    -0.5,
	"stressed":     -0.5,
	"boring":       -1.0,
	"hate":         -0.8,
	"hated":        -0.8,
	"slow":         -0.3,
	"broken":       -0.4,
	"mistake":      -0.5,
	"mistakes":     -0.5,
	"impossible":   -0.7,
	"useless":      -0.5,
	"lost":         -0.3,
	"missed":       -0.3,
	"blame":        -0.4,
	"conflict":     -0.3,
	"messy":        -0.4,

	"unfortunately": -0.5,
}
