package feedback

import (
	"log/slog"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SentimentAnalyzer returns the polarity of a text in [-1, 1]. The Scorer
// hands it the lowercased answer with configured fillers removed.
type SentimentAnalyzer interface {
	Polarity(text string) (float64, error)
}

// SentimentFunc adapts a plain function to SentimentAnalyzer.
type SentimentFunc func(text string) (float64, error)

// Polarity implements SentimentAnalyzer.
func (f SentimentFunc) Polarity(text string) (float64, error) { return f(text) }

// Scorer computes heuristic feedback for answers. It is safe for concurrent use.
type Scorer struct {
	cfg         Config
	analyzer    SentimentAnalyzer
	logger      *slog.Logger
	fillers     []string
	hesitations []string
	confident   []string
}

// Option customises a Scorer.
type Option func(*Scorer)

// WithAnalyzer replaces the default lexicon sentiment analyzer.
func WithAnalyzer(a SentimentAnalyzer) Option {
	return func(s *Scorer) {
		if a != nil {
			s.analyzer = a
		}
	}
}

// WithLogger reports degraded scoring (analyzer failures, recovered panics).
func WithLogger(l *slog.Logger) Option {
	return func(s *Scorer) { s.logger = l }
}

// New builds a Scorer. Zero thresholds and weights are taken as given; use
// DefaultConfig as the starting point for partial overrides.
func New(cfg Config, opts ...Option) *Scorer {
	if cfg.Matching == "" {
		cfg.Matching = MatchSubstring
	}
	s := &Scorer{
		cfg:         cfg,
		analyzer:    NewLexiconAnalyzer(),
		fillers:     normalizePhrases(cfg.Fillers),
		hesitations: normalizePhrases(cfg.Hesitations),
		confident:   normalizePhrases(cfg.ConfidentPhrases),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Config returns the configuration the scorer was built with.
func (s *Scorer) Config() Config { return s.cfg }

// Score analyses text and never fails. A panic anywhere in the pipeline
// yields the neutral record.
func (s *Scorer) Score(text string) (rec Record) {
	defer func() {
		if r := recover(); r != nil {
			s.warn("feedback scoring recovered from panic", slog.Any("panic", r))
			rec = s.neutral()
		}
	}()

	text = strings.ToValidUTF8(text, " ")
	lower := strings.ToLower(text)

	rec.FillerWordCount = s.countAll(lower, s.fillers)
	rec.HesitationPhraseCount = s.countAll(lower, s.hesitations)
	rec.ConfidentPhraseCount = s.countAll(lower, s.confident)

	rec.Polarity = s.polarity(stripWords(lower, s.fillers))
	rec.Tone = s.tone(rec.Polarity)

	rec.AvgSentenceWords = s.avgSentenceWords(text)
	rec.SentenceStructure = s.structure(rec.AvgSentenceWords)

	rec.ConfidenceScore = s.confidence(rec.Polarity, rec.ConfidentPhraseCount, rec.FillerWordCount, rec.HesitationPhraseCount)
	return rec
}

func (s *Scorer) neutral() Record {
	return Record{
		Tone:              ToneNeutral,
		SentenceStructure: StructureBrief,
		ConfidenceScore:   s.confidence(0, 0, 0, 0),
	}
}

func (s *Scorer) polarity(text string) float64 {
	p, err := s.analyzer.Polarity(text)
	if err != nil {
		s.warn("sentiment analyzer failed, using neutral polarity", slog.Any("error", err))
		return 0
	}
	if math.IsNaN(p) {
		return 0
	}
	return clamp(p, -1, 1)
}

func (s *Scorer) tone(p float64) Tone {
	switch {
	case p > s.cfg.PositiveThreshold:
		return TonePositive
	case p < s.cfg.NegativeThreshold:
		return ToneNegative
	default:
		return ToneNeutral
	}
}

func (s *Scorer) structure(avg float64) Structure {
	switch {
	case avg > s.cfg.WellDevelopedWords:
		return StructureWellDeveloped
	case avg > s.cfg.DecentWords:
		return StructureDecent
	default:
		return StructureBrief
	}
}

func (s *Scorer) avgSentenceWords(text string) float64 {
	fragments := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	kept, words := 0, 0
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if utf8.RuneCountInString(f) <= s.cfg.MinFragmentChars {
			continue
		}
		kept++
		words += len(strings.Fields(f))
	}
	return float64(words) / float64(max(1, kept))
}

func (s *Scorer) confidence(polarity float64, confident, fillers, hesitations int) float64 {
	w := s.cfg.Weights
	v := (polarity+1)/2*w.SentimentSpan +
		float64(confident)*w.Confident -
		float64(fillers)*w.Filler -
		float64(hesitations)*w.Hesitation
	v = clamp(v, 0, 100)
	return math.Round(v*10) / 10
}

func (s *Scorer) countAll(lower string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if s.cfg.Matching == MatchWord {
			n += countWord(lower, p)
			continue
		}
		n += strings.Count(lower, p)
	}
	return n
}

func (s *Scorer) warn(msg string, attrs ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, attrs...)
	}
}

// stripWords blanks out every word-bounded occurrence of phrases so that
// fillers never shift negation windows or intensifier lookups.
func stripWords(s string, phrases []string) string {
	for _, p := range phrases {
		if !strings.Contains(s, p) {
			continue
		}
		var b strings.Builder
		b.Grow(len(s))
		for i := 0; i < len(s); {
			j := strings.Index(s[i:], p)
			if j < 0 {
				b.WriteString(s[i:])
				break
			}
			start := i + j
			end := start + len(p)
			if boundaryBefore(s, start) && boundaryAfter(s, end) {
				b.WriteString(s[i:start])
				b.WriteByte(' ')
				i = end
				continue
			}
			_, size := utf8.DecodeRuneInString(s[start:])
			b.WriteString(s[i : start+size])
			i = start + size
		}
		s = b.String()
	}
	return s
}

// countWord counts non-overlapping occurrences of phrase that are not glued
// to a letter, digit or apostrophe on either side.
func countWord(s, phrase string) int {
	n := 0
	for i := 0; i <= len(s)-len(phrase); {
		j := strings.Index(s[i:], phrase)
		if j < 0 {
			break
		}
		start := i + j
		end := start + len(phrase)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			n++
			i = end
			continue
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		i = start + size
	}
	return n
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\''
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
