package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	contentgen "github.com/adityaraj31/ai-educational-content-generator"

	openai "github.com/sashabaranov/go-openai"
)

// TopicSuggestion represents a suggested educational topic
type TopicSuggestion struct {
	Topic       string `json:"topic"`
	Description string `json:"description"`
	Subject     string `json:"subject"`
}

// TopicGenerator generates educational topics using an LLM
type TopicGenerator struct {
	client *openai.Client
	model  string
}

// NewTopicGenerator creates a new topic generator
func NewTopicGenerator(apiKey, baseURL, model string) *TopicGenerator {
	if baseURL == "" {
		baseURL = contentgen.DefaultBaseURL
	}
	if model == "" {
		model = contentgen.DefaultModel
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &TopicGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// GenerateFreshTopic generates a single fresh topic for the grade that doesn't
// already exist in the run database
func (tg *TopicGenerator) GenerateFreshTopic(ctx context.Context, grade int, existingTopics []string, subject string) (*TopicSuggestion, error) {
	var prompt strings.Builder

	prompt.WriteString(fmt.Sprintf("Suggest ONE educational topic suitable for Grade %d students.\n\n", grade))

	if subject != "" {
		prompt.WriteString(fmt.Sprintf("Focus on the subject: %s\n\n", subject))
	}

	if len(existingTopics) > 0 {
		prompt.WriteString("IMPORTANT: The topic must be completely different from these existing topics:\n")
		for _, topic := range existingTopics {
			prompt.WriteString(fmt.Sprintf("- %s\n", topic))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("Requirements:\n")
	prompt.WriteString(fmt.Sprintf("- Topic should match the curriculum and reading level of Grade %d\n", grade))
	prompt.WriteString("- Topic should be narrow enough for a 3-5 sentence explanation\n")
	prompt.WriteString("- Topic should support meaningful multiple choice questions\n")
	prompt.WriteString("- Return the topic using the submit_topic tool\n")

	resp, err := tg.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: tg.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are an expert at picking engaging, grade-appropriate educational topics. Suggest unique topics that make for clear explanations and good multiple choice questions.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt.String(),
				},
			},
			Tools: []openai.Tool{
				{
					Type: openai.ToolTypeFunction,
					Function: &openai.FunctionDefinition{
						Name:        "submit_topic",
						Description: "Submit the suggested educational topic",
						Parameters: map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"topic": map[string]interface{}{
									"type":        "string",
									"description": "The topic name",
								},
								"description": map[string]interface{}{
									"type":        "string",
									"description": "Brief description of what the content would cover",
								},
								"subject": map[string]interface{}{
									"type":        "string",
									"description": "School subject (e.g., Math, Science, History)",
								},
							},
							"required": []string{"topic", "description", "subject"},
						},
					},
				},
			},
			ToolChoice: openai.ToolChoice{
				Type: openai.ToolTypeFunction,
				Function: openai.ToolFunction{
					Name: "submit_topic",
				},
			},
		},
	)

	if err != nil {
		return nil, fmt.Errorf("failed to generate topic: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from model")
	}

	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) == 0 {
		return nil, fmt.Errorf("no tool calls in response")
	}

	toolCall := choice.Message.ToolCalls[0]
	if toolCall.Function.Name != "submit_topic" {
		return nil, fmt.Errorf("unexpected tool call: %s", toolCall.Function.Name)
	}

	var topic TopicSuggestion
	if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &topic); err != nil {
		return nil, fmt.Errorf("failed to parse topic: %w", err)
	}

	return &topic, nil
}

func main() {
	var (
		grade   = flag.Int("grade", 4, "Target grade level (1-12)")
		subject = flag.String("subject", "", "Focus on specific subject (optional)")
		dbPath  = flag.String("db", "./content.db", "Database path")
		apiKey  = flag.String("api-key", "", "Groq API key (or set GROQ_API_KEY env var)")
		baseURL = flag.String("base-url", "", "Backend base URL (default: Groq OpenAI-compatible endpoint)")
		model   = flag.String("model", "", "Model name (default: "+contentgen.DefaultModel+")")
		verbose = flag.Bool("verbose", false, "Enable verbose output")
	)

	flag.Parse()

	contentgen.SetVerbose(*verbose)

	// Get API key from flag or environment
	if *apiKey == "" {
		*apiKey = os.Getenv("GROQ_API_KEY")
		if *apiKey == "" {
			log.Fatal("Groq API key is required. Use -api-key flag or set GROQ_API_KEY environment variable.")
		}
	}

	// Initialize database
	db, err := contentgen.OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.CloseDB()

	if err := db.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	// Get topics already covered by stored runs
	existingRuns, err := db.GetRuns(0)
	if err != nil {
		log.Fatalf("Failed to get existing runs: %v", err)
	}

	var existingTopics []string
	for _, run := range existingRuns {
		existingTopics = append(existingTopics, run.Topic)
	}

	fmt.Printf("Found %d existing topics in database\n", len(existingTopics))
	for _, topic := range existingTopics {
		fmt.Printf("  - %s\n", topic)
	}

	topicGen := NewTopicGenerator(*apiKey, *baseURL, *model)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Printf("Generating a fresh topic for Grade %d", *grade)
	if *subject != "" {
		fmt.Printf(" in subject: %s", *subject)
	}
	fmt.Println("...")

	topic, err := topicGen.GenerateFreshTopic(ctx, *grade, existingTopics, *subject)
	if err != nil {
		log.Fatalf("Failed to generate topic: %v", err)
	}

	fmt.Printf("\nTopic: %s (%s)\n", topic.Topic, topic.Subject)
	fmt.Printf("Description: %s\n\n", topic.Description)

	runID := contentgen.NewRunID()
	run := &contentgen.DBRun{
		ID:        runID,
		Grade:     *grade,
		Topic:     topic.Topic,
		Status:    contentgen.RunStatusRunning,
		CreatedAt: time.Now(),
	}
	if err := db.CreateRun(run); err != nil {
		log.Fatalf("Failed to create run for topic '%s': %v", topic.Topic, err)
	}

	fmt.Printf("Run created with ID: %s\n", runID)

	db.RunPipeline(runID, *grade, topic.Topic)

	stored, err := db.GetRun(runID)
	if err != nil {
		log.Fatalf("Failed to read back run: %v", err)
	}
	fmt.Printf("Run finished with status: %s\n", stored.Status)
}
