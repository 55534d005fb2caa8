package contentgen

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunLogger handles logging of all LLM interactions for a single pipeline run
type RunLogger struct {
	file  *os.File
	mu    sync.Mutex
	runID string
}

// NewRunLogger creates a new run logger for a specific pipeline run
func NewRunLogger(runID string, req GenerationRequest) (*RunLogger, error) {
	// Ensure log directory exists
	if err := os.MkdirAll("log", 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Create log file
	filename := filepath.Join("log", fmt.Sprintf("%s.log", runID))
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger := &RunLogger{
		file:  file,
		runID: runID,
	}

	// Write header with run parameters
	logger.Logf("=== Content Pipeline Run Log ===\n")
	logger.Logf("Run ID: %s\n", runID)
	logger.Logf("Grade: %d\n", req.Grade)
	logger.Logf("Topic: %s\n", req.Topic)
	logger.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	logger.Logf("===============================\n\n")

	return logger, nil
}

// Logf writes a formatted log entry with timestamp
func (rl *RunLogger) Logf(format string, args ...interface{}) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.logf(format, args...)
}

// logf writes without locking; callers must hold mu.
func (rl *RunLogger) logf(format string, args ...interface{}) {
	timestamp := time.Now().Format("15:04:05.000")
	message := fmt.Sprintf(format, args...)

	// Write to file
	fmt.Fprintf(rl.file, "[%s] %s", timestamp, message)

	// Also flush to ensure it's written immediately
	rl.file.Sync()
}

// LogLLMRequest logs an LLM request
func (rl *RunLogger) LogLLMRequest(role, prompt string) {
	rl.Logf("=== LLM REQUEST (%s) ===\n", role)
	rl.Logf("Prompt:\n%s\n", prompt)
	rl.Logf("=====================\n\n")
}

// LogLLMResponse logs an LLM response
func (rl *RunLogger) LogLLMResponse(role, response string) {
	rl.Logf("=== LLM RESPONSE (%s) ===\n", role)
	rl.Logf("Response:\n%s\n", response)
	rl.Logf("======================\n\n")
}

// LogStageResult logs the outcome of a pipeline stage
func (rl *RunLogger) LogStageResult(stage Stage, err error) {
	if err != nil {
		rl.Logf("Stage %s: FAILED - %v\n", stage, err)
	} else {
		rl.Logf("Stage %s: ok\n", stage)
	}
}

// LogReview logs a review verdict with its feedback
func (rl *RunLogger) LogReview(review *Review) {
	rl.Logf("Review verdict: %s\n", review.Status)
	for _, fb := range review.Feedback {
		rl.Logf("  - %s\n", fb)
	}
}

// Close closes the log file
func (rl *RunLogger) Close() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.file != nil {
		rl.logf("=== Pipeline Run Complete ===\n")
		rl.logf("Completed: %s\n", time.Now().Format(time.RFC3339))
		rl.logf("=============================\n")
		return rl.file.Close()
	}
	return nil
}
