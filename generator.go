package contentgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Default backend settings. The Groq endpoint speaks the OpenAI chat
// completions protocol, so the same client serves both.
const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.1-8b-instant"
)

// ClientConfig carries the backend endpoint settings shared by both roles.
// Zero-value BaseURL and Model fall back to the Groq defaults.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	return c
}

func newClient(cfg ClientConfig) *openai.Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	return openai.NewClientWithConfig(apiCfg)
}

// Generator produces educational content (explanation + MCQs) for a grade and
// topic, optionally conditioned on reviewer feedback for a refinement pass.
// The role is stateless across calls.
type Generator struct {
	client *openai.Client
	model  string
	logger *RunLogger
}

// NewGenerator creates a generator role backed by the configured endpoint.
func NewGenerator(cfg ClientConfig) *Generator {
	cfg = cfg.withDefaults()
	return &Generator{
		client: newClient(cfg),
		model:  cfg.Model,
	}
}

// SetLogger attaches a per-run logger that records LLM traffic.
func (g *Generator) SetLogger(logger *RunLogger) {
	g.logger = logger
}

// Generate produces a Content artifact for the request. An empty feedback
// slice means a first-pass generation; a non-empty one means a refinement
// pass and every feedback item is fed back into the prompt. Failures wrap
// ErrGeneration; there is no internal retry.
func (g *Generator) Generate(ctx context.Context, req GenerationRequest, feedback []string) (*Content, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	prompt := g.buildPrompt(req, feedback)
	VerboseLog("Generating content for grade %d, topic: %s (feedback items: %d)", req.Grade, req.Topic, len(feedback))

	if g.logger != nil {
		g.logger.LogLLMRequest("Generator", prompt)
	}

	resp, err := g.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: g.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are an expert educational content creator. Generate age-appropriate explanations and multiple choice questions, and submit them with the submit_content tool.",
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
						Name:        "submit_content",
						Description: "Submit the generated educational content",
						Parameters: map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"explanation": map[string]interface{}{
									"type":        "string",
									"description": "A clear, age-appropriate explanation of the concept (3-5 sentences)",
								},
								"mcqs": map[string]interface{}{
									"type": "array",
									"items": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"question": map[string]interface{}{
												"type":        "string",
												"description": "The question text",
											},
											"options": map[string]interface{}{
												"type": "array",
												"items": map[string]interface{}{
													"type": "string",
												},
												"description": "Array of exactly 4 answer options",
											},
											"correct_index": map[string]interface{}{
												"type":        "integer",
												"description": "0-based index of the correct option",
											},
										},
										"required": []string{"question", "options", "correct_index"},
									},
									"description": "Exactly 3 multiple choice questions",
								},
							},
							"required": []string{"explanation", "mcqs"},
						},
					},
				},
			},
			ToolChoice: openai.ToolChoice{
				Type: openai.ToolTypeFunction,
				Function: openai.ToolFunction{
					Name: "submit_content",
				},
			},
		},
	)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	args, err := toolCallArguments(resp, "submit_content")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	if g.logger != nil {
		g.logger.LogLLMResponse("Generator", args)
	}

	var toolArgs struct {
		Explanation string `json:"explanation"`
		MCQs        []struct {
			Question     string   `json:"question"`
			Options      []string `json:"options"`
			CorrectIndex int      `json:"correct_index"`
		} `json:"mcqs"`
	}
	if err := json.Unmarshal([]byte(args), &toolArgs); err != nil {
		return nil, fmt.Errorf("%w: failed to parse tool arguments: %v", ErrGeneration, err)
	}

	content := &Content{
		Explanation: toolArgs.Explanation,
		MCQs:        make([]MCQ, 0, len(toolArgs.MCQs)),
	}
	for _, q := range toolArgs.MCQs {
		content.MCQs = append(content.MCQs, MCQ{
			Question:     q.Question,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
		})
	}

	// A malformed shape never degrades into a default artifact.
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: malformed content: %v", ErrGeneration, err)
	}

	VerboseLog("Generated content: %d explanation chars, %d mcqs", len(content.Explanation), len(content.MCQs))
	return content, nil
}

func (g *Generator) buildPrompt(req GenerationRequest, feedback []string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Generate educational content for Grade %d students about %q.\n\n", req.Grade, req.Topic))

	sb.WriteString("Requirements:\n")
	sb.WriteString(fmt.Sprintf("- Use simple vocabulary appropriate for Grade %d students\n", req.Grade))
	sb.WriteString("- Keep the explanation clear and concise (3-5 sentences)\n")
	sb.WriteString(fmt.Sprintf("- Generate exactly %d MCQs\n", MCQsPerContent))
	sb.WriteString(fmt.Sprintf("- Each MCQ must have exactly %d options\n", OptionsPerMCQ))
	sb.WriteString("- Questions should test understanding of the explained concepts\n")
	sb.WriteString("- correct_index must reference the correct option\n")
	sb.WriteString("- Use the submit_content tool to return the content\n")

	if len(feedback) > 0 {
		sb.WriteString("\nPREVIOUS FEEDBACK TO ADDRESS:\n")
		for _, fb := range feedback {
			sb.WriteString(fmt.Sprintf("- %s\n", fb))
		}
		sb.WriteString("\nRevise the content addressing all the feedback points above.\n")
	}

	return sb.String()
}

// toolCallArguments extracts the arguments of the expected forced tool call
// from a chat completion response.
func toolCallArguments(resp openai.ChatCompletionResponse, name string) (string, error) {
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}
	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) == 0 {
		return "", fmt.Errorf("no tool calls in response")
	}
	toolCall := choice.Message.ToolCalls[0]
	if toolCall.Function.Name != name {
		return "", fmt.Errorf("unexpected tool call: %s", toolCall.Function.Name)
	}
	return toolCall.Function.Arguments, nil
}
