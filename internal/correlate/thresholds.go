package correlate

import (
	"math"
	"slices"

	"github.com/surveypulse/surveypulse/internal/domain"
)

// defaultLevels is the severity mapping used when a tenant configures none.
var defaultLevels = []domain.LevelBoundary{
	{MinMagnitude: 0.75, Level: domain.AlertLevelHigh},
	{MinMagnitude: 0.5, Level: domain.AlertLevelMedium},
	{MinMagnitude: 0, Level: domain.AlertLevelLow},
}

// crossesThreshold decides whether the classification warrants an alert:
// a sufficiently negative score, or a configured emotion/keyword trigger.
func crossesThreshold(th domain.AlertThresholds, sentiment domain.SentimentResult) bool {
	if th.NegativeScore != 0 &&
		sentiment.Sentiment == domain.SentimentNegative &&
		sentiment.Score <= th.NegativeScore {
		return true
	}

	for _, emotion := range sentiment.Emotions {
		if slices.Contains(th.EmotionTriggers, emotion) {
			return true
		}
	}
	for _, keyword := range sentiment.Keywords {
		if slices.Contains(th.KeywordTriggers, keyword) {
			return true
		}
	}
	return false
}

// levelFor maps the score magnitude onto an alert level. Boundaries are
// checked highest floor first; the first one at or below the magnitude wins.
func levelFor(th domain.AlertThresholds, score float64) domain.AlertLevel {
	levels := th.Levels
	if len(levels) == 0 {
		levels = defaultLevels
	} else {
		levels = slices.Clone(levels)
	}
	slices.SortFunc(levels, func(a, b domain.LevelBoundary) int {
		switch {
		case a.MinMagnitude > b.MinMagnitude:
			return -1
		case a.MinMagnitude < b.MinMagnitude:
			return 1
		default:
			return 0
		}
	})

	magnitude := math.Abs(score)
	for _, boundary := range levels {
		if magnitude >= boundary.MinMagnitude {
			return boundary.Level
		}
	}
	return domain.AlertLevelLow
}
