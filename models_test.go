package contentgen

import (
	"errors"
	"testing"
)

func TestGenerationRequest_Validate(t *testing.T) {
	cases := []struct {
		name    string
		req     GenerationRequest
		wantErr bool
	}{
		{"valid", GenerationRequest{Grade: 4, Topic: "Types of angles"}, false},
		{"min grade", GenerationRequest{Grade: 1, Topic: "Counting"}, false},
		{"max grade", GenerationRequest{Grade: 12, Topic: "Calculus"}, false},
		{"grade below range", GenerationRequest{Grade: 0, Topic: "Counting"}, true},
		{"grade above range", GenerationRequest{Grade: 13, Topic: "Calculus"}, true},
		{"empty topic", GenerationRequest{Grade: 4, Topic: ""}, true},
		{"whitespace topic", GenerationRequest{Grade: 4, Topic: "  \t\n"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tc.wantErr && !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestContent_Validate(t *testing.T) {
	valid := *validContent()
	if err := valid.Validate(); err != nil {
		t.Errorf("valid content rejected: %v", err)
	}

	tooFew := *validContent()
	tooFew.MCQs = tooFew.MCQs[:2]
	if err := tooFew.Validate(); err == nil {
		t.Error("expected error for 2 mcqs")
	}

	tooMany := *validContent()
	tooMany.MCQs = append(tooMany.MCQs, tooMany.MCQs[0])
	if err := tooMany.Validate(); err == nil {
		t.Error("expected error for 4 mcqs")
	}

	wrongOptions := *validContent()
	wrongOptions.MCQs[1].Options = wrongOptions.MCQs[1].Options[:3]
	if err := wrongOptions.Validate(); err == nil {
		t.Error("expected error for 3 options")
	}

	badIndex := *validContent()
	badIndex.MCQs[0].CorrectIndex = 4
	if err := badIndex.Validate(); err == nil {
		t.Error("expected error for out-of-range correct index")
	}

	negIndex := *validContent()
	negIndex.MCQs[0].CorrectIndex = -1
	if err := negIndex.Validate(); err == nil {
		t.Error("expected error for negative correct index")
	}

	noExplanation := *validContent()
	noExplanation.Explanation = " "
	if err := noExplanation.Validate(); err == nil {
		t.Error("expected error for empty explanation")
	}
}

func TestReview_Validate(t *testing.T) {
	pass := Review{Status: ReviewPass}
	if err := pass.Validate(); err != nil {
		t.Errorf("pass with empty feedback rejected: %v", err)
	}

	passWithNotes := Review{Status: ReviewPass, Feedback: []string{"minor suggestion"}}
	if err := passWithNotes.Validate(); err != nil {
		t.Errorf("pass with feedback rejected: %v", err)
	}

	fail := Review{Status: ReviewFail, Feedback: []string{"too advanced vocabulary"}}
	if err := fail.Validate(); err != nil {
		t.Errorf("fail with feedback rejected: %v", err)
	}

	failNoFeedback := Review{Status: ReviewFail}
	if err := failNoFeedback.Validate(); err == nil {
		t.Error("expected error for fail without feedback")
	}

	unknown := Review{Status: "maybe"}
	if err := unknown.Validate(); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestFailedStage(t *testing.T) {
	err := &StageError{Stage: StageReview, Err: ErrReview}
	if got := FailedStage(err); got != StageReview {
		t.Errorf("expected %q, got %q", StageReview, got)
	}
	if got := FailedStage(errors.New("plain")); got != "" {
		t.Errorf("expected empty stage, got %q", got)
	}
	if !errors.Is(err, ErrReview) {
		t.Error("expected StageError to unwrap to its cause")
	}
}
