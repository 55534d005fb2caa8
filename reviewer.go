package contentgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Reviewer evaluates a Content artifact for age appropriateness, conceptual
// correctness and clarity, and returns a binary pass/fail verdict. The role
// is stateless across calls.
type Reviewer struct {
	client *openai.Client
	model  string
	logger *RunLogger
}

// NewReviewer creates a reviewer role backed by the configured endpoint.
func NewReviewer(cfg ClientConfig) *Reviewer {
	cfg = cfg.withDefaults()
	return &Reviewer{
		client: newClient(cfg),
		model:  cfg.Model,
	}
}

// SetLogger attaches a per-run logger that records LLM traffic.
func (r *Reviewer) SetLogger(logger *RunLogger) {
	r.logger = logger
}

// Review evaluates the content against the request. The verdict is pass only
// when all three dimensions are judged acceptable; a failing verdict carries
// one feedback entry per failing dimension. Failures wrap ErrReview; there is
// no internal retry and a malformed verdict is never replaced by a default.
func (r *Reviewer) Review(ctx context.Context, content *Content, req GenerationRequest) (*Review, error) {
	if content == nil {
		return nil, fmt.Errorf("%w: no content to review", ErrReview)
	}
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReview, err)
	}

	prompt, err := r.buildPrompt(content, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReview, err)
	}
	VerboseLog("Reviewing content for grade %d, topic: %s", req.Grade, req.Topic)

	if r.logger != nil {
		r.logger.LogLLMRequest("Reviewer", prompt)
	}

	resp, err := r.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: r.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are an expert educational content reviewer. Evaluate content for age-appropriateness, conceptual correctness, and clarity, and submit your verdict with the submit_review tool.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Tools: []openai.Tool{
				{
					Type: openai.ToolTypeFunction,
					Function: &openai.FunctionDefinition{
						Name:        "submit_review",
						Description: "Submit the review verdict for the educational content",
						Parameters: map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"status": map[string]interface{}{
									"type":        "string",
									"enum":        []string{"pass", "fail"},
									"description": "pass only if all evaluation criteria are met",
								},
								"feedback": map[string]interface{}{
									"type": "array",
									"items": map[string]interface{}{
										"type": "string",
									},
									"description": "Specific, actionable issues; at least one entry when failing",
								},
							},
							"required": []string{"status", "feedback"},
						},
					},
				},
			},
			ToolChoice: openai.ToolChoice{
				Type: openai.ToolTypeFunction,
				Function: openai.ToolFunction{
					Name: "submit_review",
				},
			},
		},
	)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReview, err)
	}

	args, err := toolCallArguments(resp, "submit_review")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReview, err)
	}

	if r.logger != nil {
		r.logger.LogLLMResponse("Reviewer", args)
	}

	var toolArgs struct {
		Status   string   `json:"status"`
		Feedback []string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(args), &toolArgs); err != nil {
		return nil, fmt.Errorf("%w: failed to parse tool arguments: %v", ErrReview, err)
	}

	review := &Review{
		Status:   ReviewStatus(strings.ToLower(strings.TrimSpace(toolArgs.Status))),
		Feedback: toolArgs.Feedback,
	}
	if err := review.Validate(); err != nil {
		return nil, fmt.Errorf("%w: malformed review: %v", ErrReview, err)
	}

	VerboseLog("Review verdict: %s (%d feedback items)", review.Status, len(review.Feedback))
	return review, nil
}

func (r *Reviewer) buildPrompt(content *Content, req GenerationRequest) (string, error) {
	contentJSON, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal content: %v", err)
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Review the following educational content for Grade %d students about %q.\n\n", req.Grade, req.Topic))
	sb.WriteString("CONTENT TO REVIEW:\n")
	sb.Write(contentJSON)
	sb.WriteString("\n\n")

	sb.WriteString("EVALUATION CRITERIA:\n")
	sb.WriteString(fmt.Sprintf("1. Age Appropriateness: Is the language and complexity suitable for Grade %d?\n", req.Grade))
	sb.WriteString("2. Conceptual Correctness: Are the concepts explained accurately?\n")
	sb.WriteString("3. Clarity: Is the explanation clear and easy to understand?\n")
	sb.WriteString("4. MCQ Quality:\n")
	sb.WriteString("   - Do questions test the explained concepts?\n")
	sb.WriteString("   - Are options clear and distinct?\n")
	sb.WriteString("   - Is the option at correct_index actually correct?\n\n")

	sb.WriteString("Rules:\n")
	sb.WriteString("- Return \"pass\" ONLY if ALL criteria are met with no significant issues\n")
	sb.WriteString("- Return \"fail\" if there are ANY issues that need correction\n")
	sb.WriteString("- When failing, list one specific, actionable issue per failing criterion\n")
	sb.WriteString("- Be specific about which part of the content has issues (e.g., \"Sentence 2\", \"Question 3\")\n")
	sb.WriteString("- Use the submit_review tool to return the verdict\n")

	return sb.String(), nil
}
