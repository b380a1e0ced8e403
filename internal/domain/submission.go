package domain

import (
	"time"

	"github.com/google/uuid"
)

// Submission is one survey response. The core reads Data and writes Analysis;
// everything else is owned by the host application.
type Submission struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	FormID   uuid.UUID
	// ContactID identifies the responding customer when known. Empty for
	// anonymous submissions.
	ContactID string
	// Data maps question keys to answers. String values are treated as
	// free text for sentiment analysis; the whole map doubles as the
	// attribute record for persona rule evaluation.
	Data      map[string]any
	Analysis  *Classification
	CreatedAt time.Time
}

// Sentiment is the coarse polarity of a response.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// SentimentResult is the canonical shape every analyzer maps into, whether
// the lexicon analyzer or an external NLP service behind the Analyzer
// interface produced it.
type SentimentResult struct {
	Sentiment  Sentiment
	Score      float64 // [-1, 1]
	Confidence float64 // [0, 1]
	Emotions   []string
	Keywords   []string
	Themes     []string
	Language   string
}

// Classification is the combined output of the classification engine,
// written onto Submission.Analysis.
type Classification struct {
	Sentiment SentimentResult
	Persona   PersonaResult
}
