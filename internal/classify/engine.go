// Package classify derives sentiment metadata and a persona label from one
// admitted submission. The engine is stateless and safe for concurrent use;
// no two submissions interact here.
package classify

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/surveypulse/surveypulse/internal/domain"
	"github.com/surveypulse/surveypulse/internal/metrics"
)

type Engine struct {
	analyzer domain.Analyzer
	config   domain.ConfigSource
	log      *slog.Logger
}

func NewEngine(analyzer domain.Analyzer, config domain.ConfigSource, log *slog.Logger) *Engine {
	return &Engine{analyzer: analyzer, config: config, log: log}
}

// Classify computes sentiment and persona for the submission and writes the
// result onto submission.Analysis. A failing analyzer degrades to a neutral
// sentiment; a failing rule lookup is a fatal configuration error.
func (e *Engine) Classify(ctx context.Context, submission *domain.Submission) (domain.Classification, error) {
	start := time.Now()
	defer func() {
		metrics.ClassificationDuration.Observe(time.Since(start).Seconds())
	}()

	sentiment, err := e.analyzer.AnalyzeSentiment(ctx, freeTextAnswers(submission.Data))
	if err != nil {
		// The analyzer is a collaborator; its failure must not stop
		// classification. Fall back to an uncommitted neutral result.
		e.log.WarnContext(ctx, "sentiment analysis failed, falling back to neutral",
			"submission_id", submission.ID, "error", err)
		sentiment = domain.SentimentResult{
			Sentiment: domain.SentimentNeutral,
			Language:  "en",
		}
	}

	rules, err := e.config.PersonaRules(ctx, submission.TenantID)
	if err != nil {
		return domain.Classification{}, domain.NewConfigError("load persona rules", err)
	}

	persona := EvaluateRules(submission.Data, rules)
	metrics.PersonaAssignments.WithLabelValues(persona.PersonaID).Inc()

	classification := domain.Classification{
		Sentiment: sentiment,
		Persona:   persona,
	}
	submission.Analysis = &classification
	return classification, nil
}

// freeTextAnswers extracts the string answers in deterministic (key-sorted)
// order. Map iteration order must not leak into analyzer input.
func freeTextAnswers(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok && s != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	texts := make([]string, 0, len(keys))
	for _, k := range keys {
		texts = append(texts, data[k].(string))
	}
	return texts
}
