package contentgen

import (
	"fmt"
	"strings"
	"time"
)

// Grade bounds accepted by a GenerationRequest.
const (
	MinGrade = 1
	MaxGrade = 12
)

// Content shape constants. Every generated Content carries exactly
// MCQsPerContent questions with exactly OptionsPerMCQ options each.
const (
	MCQsPerContent = 3
	OptionsPerMCQ  = 4
)

// GenerationRequest is the immutable input to a pipeline run.
type GenerationRequest struct {
	Grade int    `json:"grade"`
	Topic string `json:"topic"`
}

// Validate checks the request constraints: grade in [MinGrade, MaxGrade] and
// a non-empty topic after trimming whitespace.
func (r GenerationRequest) Validate() error {
	if r.Grade < MinGrade || r.Grade > MaxGrade {
		return fmt.Errorf("%w: grade %d out of range [%d, %d]", ErrInvalidRequest, r.Grade, MinGrade, MaxGrade)
	}
	if strings.TrimSpace(r.Topic) == "" {
		return fmt.Errorf("%w: topic is empty", ErrInvalidRequest)
	}
	return nil
}

// MCQ is a single multiple choice question with four options and a 0-based
// index of the correct one.
type MCQ struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
}

// Content is the educational artifact produced by the Generator role: an
// explanation plus exactly three MCQs.
type Content struct {
	Explanation string `json:"explanation"`
	MCQs        []MCQ  `json:"mcqs"`
}

// Validate checks the Content invariants: exactly three MCQs, four options
// each, and a correct index that references one of the options.
func (c Content) Validate() error {
	if strings.TrimSpace(c.Explanation) == "" {
		return fmt.Errorf("explanation is empty")
	}
	if len(c.MCQs) != MCQsPerContent {
		return fmt.Errorf("expected %d mcqs, got %d", MCQsPerContent, len(c.MCQs))
	}
	for i, mcq := range c.MCQs {
		if strings.TrimSpace(mcq.Question) == "" {
			return fmt.Errorf("mcq %d: question is empty", i+1)
		}
		if len(mcq.Options) != OptionsPerMCQ {
			return fmt.Errorf("mcq %d: expected %d options, got %d", i+1, OptionsPerMCQ, len(mcq.Options))
		}
		if mcq.CorrectIndex < 0 || mcq.CorrectIndex >= len(mcq.Options) {
			return fmt.Errorf("mcq %d: correct_index %d out of range", i+1, mcq.CorrectIndex)
		}
	}
	return nil
}

// ReviewStatus is the binary verdict of the Reviewer role.
type ReviewStatus string

const (
	ReviewPass ReviewStatus = "pass"
	ReviewFail ReviewStatus = "fail"
)

// Review is the Reviewer role's verdict on a Content artifact. Feedback may
// be empty only when the status is pass.
type Review struct {
	Status   ReviewStatus `json:"status"`
	Feedback []string     `json:"feedback"`
}

// Passed reports whether the review verdict is pass.
func (r Review) Passed() bool {
	return r.Status == ReviewPass
}

// Validate checks that the review is well-formed: a known status, and at
// least one feedback entry when failing.
func (r Review) Validate() error {
	switch r.Status {
	case ReviewPass:
		return nil
	case ReviewFail:
		if len(r.Feedback) == 0 {
			return fmt.Errorf("failing review carries no feedback")
		}
		return nil
	default:
		return fmt.Errorf("unknown review status %q", r.Status)
	}
}

// PipelineResult bundles every stage artifact of a single run. RefinedContent
// is present iff the review failed; FinalContent is the refined content when
// present and the initial content otherwise. On a failed run the fields hold
// whatever artifacts were produced before the failure.
type PipelineResult struct {
	Request        GenerationRequest `json:"request"`
	InitialContent *Content          `json:"initial_content,omitempty"`
	Review         *Review           `json:"review,omitempty"`
	RefinedContent *Content          `json:"refined_content,omitempty"`
	FinalContent   *Content          `json:"final_content,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
