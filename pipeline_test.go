package contentgen

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
)

type mockGenerator struct {
	generateFunc func(ctx context.Context, req GenerationRequest, feedback []string) (*Content, error)
	callCount    atomic.Int32
	lastFeedback []string
}

func (m *mockGenerator) Generate(ctx context.Context, req GenerationRequest, feedback []string) (*Content, error) {
	m.callCount.Add(1)
	m.lastFeedback = feedback
	if m.generateFunc != nil {
		return m.generateFunc(ctx, req, feedback)
	}
	return validContent(), nil
}

type mockReviewer struct {
	reviewFunc func(ctx context.Context, content *Content, req GenerationRequest) (*Review, error)
	callCount  atomic.Int32
}

func (m *mockReviewer) Review(ctx context.Context, content *Content, req GenerationRequest) (*Review, error) {
	m.callCount.Add(1)
	if m.reviewFunc != nil {
		return m.reviewFunc(ctx, content, req)
	}
	return &Review{Status: ReviewPass}, nil
}

func validContent() *Content {
	content := &Content{
		Explanation: "An angle is formed when two rays meet at a point. Angles are measured in degrees.",
	}
	for i := 0; i < MCQsPerContent; i++ {
		content.MCQs = append(content.MCQs, MCQ{
			Question:     fmt.Sprintf("Question %d about angles?", i+1),
			Options:      []string{"Acute", "Right", "Obtuse", "Straight"},
			CorrectIndex: i % OptionsPerMCQ,
		})
	}
	return content
}

func validRequest() GenerationRequest {
	return GenerationRequest{Grade: 4, Topic: "Types of angles"}
}

func TestPipeline_Run_Pass(t *testing.T) {
	gen := &mockGenerator{}
	rev := &mockReviewer{}
	p := NewPipelineWithRoles(gen, rev)

	result, err := p.Run(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.RefinedContent != nil {
		t.Error("expected no refined content when review passes")
	}
	if result.FinalContent != result.InitialContent {
		t.Error("expected final content to be the initial content")
	}
	if gen.callCount.Load() != 1 {
		t.Errorf("expected 1 generator call, got %d", gen.callCount.Load())
	}
	if rev.callCount.Load() != 1 {
		t.Errorf("expected 1 reviewer call, got %d", rev.callCount.Load())
	}
}

func TestPipeline_Run_FailTriggersRefinement(t *testing.T) {
	feedback := []string{"too advanced vocabulary"}
	refined := validContent()
	refined.Explanation = "Angles are like corners. Some corners are sharp and some are wide."

	gen := &mockGenerator{
		generateFunc: func(ctx context.Context, req GenerationRequest, fb []string) (*Content, error) {
			if len(fb) > 0 {
				return refined, nil
			}
			return validContent(), nil
		},
	}
	rev := &mockReviewer{
		reviewFunc: func(ctx context.Context, content *Content, req GenerationRequest) (*Review, error) {
			return &Review{Status: ReviewFail, Feedback: feedback}, nil
		},
	}
	p := NewPipelineWithRoles(gen, rev)

	result, err := p.Run(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.RefinedContent == nil {
		t.Fatal("expected refined content when review fails")
	}
	if result.FinalContent != result.RefinedContent {
		t.Error("expected final content to be the refined content")
	}
	if gen.callCount.Load() != 2 {
		t.Errorf("expected 2 generator calls, got %d", gen.callCount.Load())
	}
	// The refined content is not re-reviewed.
	if rev.callCount.Load() != 1 {
		t.Errorf("expected 1 reviewer call, got %d", rev.callCount.Load())
	}
	if len(gen.lastFeedback) != 1 || gen.lastFeedback[0] != feedback[0] {
		t.Errorf("expected refinement call to carry reviewer feedback, got %v", gen.lastFeedback)
	}
}

func TestPipeline_Run_GeneratorCallBound(t *testing.T) {
	gen := &mockGenerator{}
	rev := &mockReviewer{
		reviewFunc: func(ctx context.Context, content *Content, req GenerationRequest) (*Review, error) {
			return &Review{Status: ReviewFail, Feedback: []string{"still not good enough"}}, nil
		},
	}
	p := NewPipelineWithRoles(gen, rev)

	if _, err := p.Run(context.Background(), validRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A run never issues more than 2 generator calls regardless of verdicts.
	if gen.callCount.Load() != 2 {
		t.Errorf("expected exactly 2 generator calls, got %d", gen.callCount.Load())
	}
}

func TestPipeline_Run_InvalidRequest(t *testing.T) {
	cases := []struct {
		name string
		req  GenerationRequest
	}{
		{"grade zero", GenerationRequest{Grade: 0, Topic: "Fractions"}},
		{"grade thirteen", GenerationRequest{Grade: 13, Topic: "Fractions"}},
		{"empty topic", GenerationRequest{Grade: 4, Topic: ""}},
		{"whitespace topic", GenerationRequest{Grade: 4, Topic: "   \t"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := &mockGenerator{}
			rev := &mockReviewer{}
			p := NewPipelineWithRoles(gen, rev)

			_, err := p.Run(context.Background(), tc.req)
			if err == nil {
				t.Fatal("expected error for invalid request")
			}
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
			if FailedStage(err) != StageValidate {
				t.Errorf("expected stage %q, got %q", StageValidate, FailedStage(err))
			}
			// Validation fails before any external call.
			if gen.callCount.Load() != 0 {
				t.Errorf("expected 0 generator calls, got %d", gen.callCount.Load())
			}
			if rev.callCount.Load() != 0 {
				t.Errorf("expected 0 reviewer calls, got %d", rev.callCount.Load())
			}
		})
	}
}

func TestPipeline_Run_GenerateFailure(t *testing.T) {
	gen := &mockGenerator{
		generateFunc: func(ctx context.Context, req GenerationRequest, fb []string) (*Content, error) {
			return nil, fmt.Errorf("%w: backend unreachable", ErrGeneration)
		},
	}
	rev := &mockReviewer{}
	p := NewPipelineWithRoles(gen, rev)

	result, err := p.Run(context.Background(), validRequest())
	if err == nil {
		t.Fatal("expected error when generation fails")
	}
	if FailedStage(err) != StageGenerate {
		t.Errorf("expected stage %q, got %q", StageGenerate, FailedStage(err))
	}
	if !errors.Is(err, ErrGeneration) {
		t.Errorf("expected ErrGeneration, got %v", err)
	}
	if result.InitialContent != nil {
		t.Error("expected no initial content in partial result")
	}
	if rev.callCount.Load() != 0 {
		t.Errorf("expected 0 reviewer calls, got %d", rev.callCount.Load())
	}
}

func TestPipeline_Run_ReviewFailure(t *testing.T) {
	gen := &mockGenerator{}
	rev := &mockReviewer{
		reviewFunc: func(ctx context.Context, content *Content, req GenerationRequest) (*Review, error) {
			return nil, fmt.Errorf("%w: unparsable verdict", ErrReview)
		},
	}
	p := NewPipelineWithRoles(gen, rev)

	result, err := p.Run(context.Background(), validRequest())
	if err == nil {
		t.Fatal("expected error when review fails")
	}
	if FailedStage(err) != StageReview {
		t.Errorf("expected stage %q, got %q", StageReview, FailedStage(err))
	}
	if !errors.Is(err, ErrReview) {
		t.Errorf("expected ErrReview, got %v", err)
	}
	// The initial content survives as a partial result.
	if result.InitialContent == nil {
		t.Error("expected initial content in partial result")
	}
	if result.Review != nil {
		t.Error("expected no review in partial result")
	}
	if result.FinalContent != nil {
		t.Error("expected no final content in partial result")
	}
}

func TestPipeline_Run_RefineFailure(t *testing.T) {
	gen := &mockGenerator{
		generateFunc: func(ctx context.Context, req GenerationRequest, fb []string) (*Content, error) {
			if len(fb) > 0 {
				return nil, fmt.Errorf("%w: backend unreachable", ErrGeneration)
			}
			return validContent(), nil
		},
	}
	rev := &mockReviewer{
		reviewFunc: func(ctx context.Context, content *Content, req GenerationRequest) (*Review, error) {
			return &Review{Status: ReviewFail, Feedback: []string{"needs simpler wording"}}, nil
		},
	}
	p := NewPipelineWithRoles(gen, rev)

	result, err := p.Run(context.Background(), validRequest())
	if err == nil {
		t.Fatal("expected error when refinement fails")
	}
	if FailedStage(err) != StageRefine {
		t.Errorf("expected stage %q, got %q", StageRefine, FailedStage(err))
	}
	// Initial content and review remain available.
	if result.InitialContent == nil {
		t.Error("expected initial content in partial result")
	}
	if result.Review == nil {
		t.Error("expected review in partial result")
	}
	if result.RefinedContent != nil {
		t.Error("expected no refined content in partial result")
	}
	if result.FinalContent != nil {
		t.Error("expected no final content in partial result")
	}
}

func TestPipeline_Run_FinalContentSatisfiesInvariants(t *testing.T) {
	gen := &mockGenerator{}
	rev := &mockReviewer{}
	p := NewPipelineWithRoles(gen, rev)

	result, err := p.Run(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinalContent == nil {
		t.Fatal("expected final content")
	}
	if err := result.FinalContent.Validate(); err != nil {
		t.Errorf("final content violates invariants: %v", err)
	}
}
