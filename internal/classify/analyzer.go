package classify

import (
	"context"
	"strings"
	"unicode"

	"github.com/surveypulse/surveypulse/internal/domain"
)

const maxKeywords = 10

// LexiconAnalyzer is the built-in sentiment analyzer: a pure function over
// the concatenated free-text answers. Deterministic for deterministic input,
// which keeps classification reproducible in tests. An external NLP service
// can replace it behind the domain.Analyzer interface.
type LexiconAnalyzer struct{}

func NewLexiconAnalyzer() *LexiconAnalyzer { return &LexiconAnalyzer{} }

var _ domain.Analyzer = (*LexiconAnalyzer)(nil)

func (a *LexiconAnalyzer) AnalyzeSentiment(_ context.Context, texts []string) (domain.SentimentResult, error) {
	text := strings.Join(texts, " ")
	tokens := tokenize(text)

	var sum float64
	matched := 0
	var emotions, keywords, themes []string
	seenEmotion := map[string]bool{}
	seenKeyword := map[string]bool{}
	seenTheme := map[string]bool{}

	for i, tok := range tokens {
		if valence, ok := valenceLexicon[tok]; ok {
			if i > 0 {
				prev := tokens[i-1]
				if negators[prev] {
					valence = -valence
				} else if factor, ok := intensifiers[prev]; ok {
					valence *= factor
				}
			}
			sum += clamp(valence, -1, 1)
			matched++
		}

		if emotion, ok := emotionLexicon[tok]; ok && !seenEmotion[emotion] {
			seenEmotion[emotion] = true
			emotions = append(emotions, emotion)
		}
		if theme, ok := themeLexicon[tok]; ok && !seenTheme[theme] {
			seenTheme[theme] = true
			themes = append(themes, theme)
		}
		if len(tok) >= 4 && !stopwords[tok] && !seenKeyword[tok] && len(keywords) < maxKeywords {
			seenKeyword[tok] = true
			keywords = append(keywords, tok)
		}
	}

	var score float64
	if matched > 0 {
		score = clamp(sum/float64(matched), -1, 1)
	}

	result := domain.SentimentResult{
		Sentiment:  polarity(score, matched),
		Score:      score,
		Confidence: confidence(matched, len(tokens)),
		Emotions:   emotions,
		Keywords:   keywords,
		Themes:     themes,
		Language:   detectLanguage(text),
	}
	return result, nil
}

// polarity buckets the score. Weak signals stay neutral so a single mild
// word does not flip a long response.
func polarity(score float64, matched int) domain.Sentiment {
	if matched == 0 {
		return domain.SentimentNeutral
	}
	switch {
	case score >= 0.2:
		return domain.SentimentPositive
	case score <= -0.2:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

func confidence(matched, total int) float64 {
	if total == 0 {
		return 0
	}
	// Ratio of opinion-bearing tokens, scaled so a handful of hits in a
	// short answer already reads as confident.
	return clamp(3*float64(matched)/float64(total), 0, 1)
}

func tokenize(text string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else if r != '\'' { // keep contractions as one token ("don't" -> "dont")
			flush()
		}
	}
	flush()
	return tokens
}

// detectLanguage gives a coarse script-based hint. Arabic script dominates
// the platform's non-English responses; everything else defaults to English.
func detectLanguage(text string) string {
	for _, r := range text {
		if unicode.Is(unicode.Arabic, r) {
			return "ar"
		}
	}
	return "en"
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
