// Package pipeline composes admission, classification, and alert correlation
// into one run per submission, executed across a bounded worker pool.
// Submissions are independent: no state is shared between jobs beyond the
// counter and alert stores.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/surveypulse/surveypulse/internal/admission"
	"github.com/surveypulse/surveypulse/internal/classify"
	"github.com/surveypulse/surveypulse/internal/correlate"
	"github.com/surveypulse/surveypulse/internal/domain"
	"github.com/surveypulse/surveypulse/internal/metrics"
	"github.com/surveypulse/surveypulse/internal/platform/correlation"
)

// Result is the evolving outcome record of one submission's pipeline run.
type Result struct {
	Decision       domain.Decision
	Classification domain.Classification
	Correlation    domain.CorrelationResult
}

type Processor struct {
	admission  *admission.Controller
	classifier *classify.Engine
	correlator *correlate.Engine
	config     domain.ConfigSource
	log        *slog.Logger

	workers int
	jobs    chan job
	wg      sync.WaitGroup
	stop    sync.Once
}

type job struct {
	ctx        context.Context
	submission *domain.Submission
}

func NewProcessor(
	admissionCtrl *admission.Controller,
	classifier *classify.Engine,
	correlator *correlate.Engine,
	config domain.ConfigSource,
	workers int,
	log *slog.Logger,
) *Processor {
	if workers < 1 {
		workers = 1
	}
	return &Processor{
		admission:  admissionCtrl,
		classifier: classifier,
		correlator: correlator,
		config:     config,
		log:        log,
		workers:    workers,
		jobs:       make(chan job, workers*4),
	}
}

// Start launches the worker pool.
func (p *Processor) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop drains queued jobs and waits for in-flight ones to finish.
func (p *Processor) Stop() {
	p.stop.Do(func() { close(p.jobs) })
	p.wg.Wait()
}

// Enqueue hands a submission to the pool. Blocks when all workers are busy
// and the queue is full, unless ctx is cancelled first.
func (p *Processor) Enqueue(ctx context.Context, submission *domain.Submission) error {
	metrics.PipelineQueueDepth.Inc()
	select {
	case p.jobs <- job{ctx: context.WithoutCancel(ctx), submission: submission}:
		return nil
	case <-ctx.Done():
		metrics.PipelineQueueDepth.Dec()
		return fmt.Errorf("enqueue submission: %w", ctx.Err())
	}
}

func (p *Processor) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		metrics.PipelineQueueDepth.Dec()
		ctx := correlation.WithID(j.ctx, correlation.NewID())
		if _, err := p.Process(ctx, j.submission); err != nil {
			p.log.ErrorContext(ctx, "pipeline run failed",
				"submission_id", j.submission.ID, "error", err)
		}
	}
}

// Process runs the full pipeline for one submission:
// admit -> classify -> correlate. The run is cancellable until admission
// succeeds; admission handles counter rollback on cancellation internally.
// Once admitted, the submission is processed to completion on a context
// detached from cancellation so an accepted response is never half-handled.
func (p *Processor) Process(ctx context.Context, submission *domain.Submission) (Result, error) {
	var result Result

	decision, err := p.admission.Admit(ctx, submission.TenantID, submission.FormID, submission.CreatedAt)
	if err != nil {
		if ctx.Err() != nil {
			metrics.PipelineJobs.WithLabelValues("cancelled").Inc()
		} else {
			metrics.PipelineJobs.WithLabelValues("error").Inc()
		}
		return result, fmt.Errorf("admission: %w", err)
	}
	result.Decision = decision

	if !decision.Accepted {
		metrics.PipelineJobs.WithLabelValues("rejected").Inc()
		p.log.InfoContext(ctx, "submission rejected",
			"submission_id", submission.ID, "quota_id", decision.ExhaustedQuotaID)
		return result, nil
	}

	ctx = context.WithoutCancel(ctx)

	classification, err := p.classifier.Classify(ctx, submission)
	if err != nil {
		metrics.PipelineJobs.WithLabelValues("error").Inc()
		return result, fmt.Errorf("classification: %w", err)
	}
	result.Classification = classification

	thresholds, err := p.config.AlertThresholds(ctx, submission.TenantID, submission.FormID)
	if err != nil {
		metrics.PipelineJobs.WithLabelValues("error").Inc()
		return result, domain.NewConfigError("load alert thresholds", err)
	}

	corr, err := p.correlator.Correlate(ctx, submission, classification, thresholds)
	if err != nil {
		metrics.PipelineJobs.WithLabelValues("error").Inc()
		return result, fmt.Errorf("correlation: %w", err)
	}
	result.Correlation = corr

	metrics.PipelineJobs.WithLabelValues("accepted").Inc()
	return result, nil
}
