package contentgen

import (
	"context"
	"math/rand"
	"time"
)

// GeneratorRole produces a Content artifact for a request, optionally
// conditioned on reviewer feedback for a refinement pass.
type GeneratorRole interface {
	Generate(ctx context.Context, req GenerationRequest, feedback []string) (*Content, error)
}

// ReviewerRole evaluates a Content artifact against the request it was
// generated for.
type ReviewerRole interface {
	Review(ctx context.Context, content *Content, req GenerationRequest) (*Review, error)
}

// maxRefinements bounds the refinement loop. Exactly one refinement pass is
// permitted regardless of the refined content's own quality; the refined
// output is never re-reviewed. This is a fixed policy, not a tunable retry
// count.
const maxRefinements = 1

// Pipeline orchestrates the generate -> review -> refine sequence for a
// single request. Stages run strictly sequentially; the pipeline performs no
// retries and owns no state across runs, so concurrent runs need no
// coordination.
type Pipeline struct {
	generator GeneratorRole
	reviewer  ReviewerRole
	logger    *RunLogger
}

// NewPipeline creates a pipeline with LLM-backed generator and reviewer
// roles sharing the configured backend.
func NewPipeline(cfg ClientConfig) *Pipeline {
	return NewPipelineWithRoles(NewGenerator(cfg), NewReviewer(cfg))
}

// NewPipelineWithRoles creates a pipeline over explicit role implementations.
// Both roles are pure functions of their inputs, so deterministic test
// doubles slot in directly.
func NewPipelineWithRoles(generator GeneratorRole, reviewer ReviewerRole) *Pipeline {
	return &Pipeline{
		generator: generator,
		reviewer:  reviewer,
	}
}

// SetLogger attaches a per-run logger. It is forwarded to roles that record
// their LLM traffic.
func (p *Pipeline) SetLogger(logger *RunLogger) {
	p.logger = logger
	type loggable interface {
		SetLogger(*RunLogger)
	}
	if g, ok := p.generator.(loggable); ok {
		g.SetLogger(logger)
	}
	if r, ok := p.reviewer.(loggable); ok {
		r.SetLogger(logger)
	}
}

// Run executes one pipeline run: validate the request, generate initial
// content, review it, and refine once when the review fails. Every failure
// is terminal and returned as a *StageError together with the partially
// assembled result, so callers can still inspect the artifacts produced
// before the failing stage.
func (p *Pipeline) Run(ctx context.Context, req GenerationRequest) (*PipelineResult, error) {
	result := &PipelineResult{
		Request:   req,
		CreatedAt: time.Now(),
	}

	if err := req.Validate(); err != nil {
		return result, &StageError{Stage: StageValidate, Err: err}
	}

	VerboseLog("Pipeline run started: grade %d, topic %q", req.Grade, req.Topic)

	initial, err := p.generator.Generate(ctx, req, nil)
	if err != nil {
		p.logStage(StageGenerate, err)
		return result, &StageError{Stage: StageGenerate, Err: err}
	}
	result.InitialContent = initial
	p.logStage(StageGenerate, nil)

	review, err := p.reviewer.Review(ctx, initial, req)
	if err != nil {
		p.logStage(StageReview, err)
		return result, &StageError{Stage: StageReview, Err: err}
	}
	result.Review = review
	p.logStage(StageReview, nil)
	if p.logger != nil {
		p.logger.LogReview(review)
	}

	if review.Passed() {
		result.FinalContent = initial
		VerboseLog("Pipeline run complete: content passed review, no refinement")
		return result, nil
	}

	for attempt := 0; attempt < maxRefinements; attempt++ {
		refined, err := p.generator.Generate(ctx, req, review.Feedback)
		if err != nil {
			p.logStage(StageRefine, err)
			return result, &StageError{Stage: StageRefine, Err: err}
		}
		result.RefinedContent = refined
		result.FinalContent = refined
		p.logStage(StageRefine, nil)
	}

	VerboseLog("Pipeline run complete: content refined after %d feedback items", len(review.Feedback))
	return result, nil
}

func (p *Pipeline) logStage(stage Stage, err error) {
	if p.logger == nil {
		return
	}
	p.logger.LogStageResult(stage, err)
}

// NewRunID generates a short random identifier for a pipeline run.
func NewRunID() string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 12)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
