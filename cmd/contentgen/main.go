package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	contentgen "github.com/adityaraj31/ai-educational-content-generator"
)

func main() {
	var (
		grade      = flag.Int("grade", 4, "Target grade level (1-12)")
		topic      = flag.String("topic", "", "Educational topic (required)")
		outputFile = flag.String("output", "", "Output file for result JSON (default: stdout)")
		apiKey     = flag.String("api-key", "", "Groq API key (or set GROQ_API_KEY env var)")
		baseURL    = flag.String("base-url", "", "Backend base URL (default: Groq OpenAI-compatible endpoint)")
		model      = flag.String("model", "", "Model name (default: "+contentgen.DefaultModel+")")
		dbPath     = flag.String("db", "", "Optional sqlite database to record the run")
		verbose    = flag.Bool("verbose", false, "Enable verbose debugging output")
	)

	flag.Parse()

	contentgen.SetVerbose(*verbose)

	if *topic == "" {
		log.Fatal("Topic is required. Use -topic flag.")
	}

	// Get API key from flag or environment
	if *apiKey == "" {
		*apiKey = os.Getenv("GROQ_API_KEY")
		if *apiKey == "" {
			log.Fatal("Groq API key is required. Use -api-key flag or set GROQ_API_KEY environment variable.")
		}
	}

	pipeline := contentgen.NewPipeline(contentgen.ClientConfig{
		APIKey:  *apiKey,
		BaseURL: *baseURL,
		Model:   *model,
	})

	req := contentgen.GenerationRequest{
		Grade: *grade,
		Topic: *topic,
	}

	runID := contentgen.NewRunID()
	logger, err := contentgen.NewRunLogger(runID, req)
	if err != nil {
		log.Printf("Failed to create run logger: %v", err)
	} else {
		pipeline.SetLogger(logger)
		defer logger.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, runErr := pipeline.Run(ctx, req)

	if *dbPath != "" {
		recordRun(*dbPath, runID, req, result, runErr)
	}

	if runErr != nil {
		// Surface the failing stage distinctly, and dump any partial
		// artifacts so the caller can still inspect them.
		if result != nil && result.InitialContent != nil {
			partial, err := json.MarshalIndent(result, "", "  ")
			if err == nil {
				fmt.Fprintln(os.Stderr, string(partial))
			}
		}
		log.Fatalf("Pipeline failed at stage %q: %v", contentgen.FailedStage(runErr), runErr)
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal result: %v", err)
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, output, 0644); err != nil {
			log.Fatalf("Failed to write output file: %v", err)
		}
		log.Printf("Result saved to: %s", *outputFile)
	} else {
		fmt.Println(string(output))
	}

	if *verbose {
		if result.RefinedContent != nil {
			log.Printf("Content was refined after review feedback")
		} else {
			log.Printf("Content passed review without refinement")
		}
	}
}

// recordRun persists the run and its artifacts the way the webserver does.
func recordRun(dbPath, runID string, req contentgen.GenerationRequest, result *contentgen.PipelineResult, runErr error) {
	db, err := contentgen.OpenDB(dbPath)
	if err != nil {
		log.Printf("Failed to open database: %v", err)
		return
	}
	defer db.CloseDB()

	if err := db.CreateTables(); err != nil {
		log.Printf("Failed to create tables: %v", err)
		return
	}

	run := &contentgen.DBRun{
		ID:        runID,
		Grade:     req.Grade,
		Topic:     req.Topic,
		Status:    contentgen.RunStatusRunning,
		CreatedAt: time.Now(),
	}
	if err := db.CreateRun(run); err != nil {
		log.Printf("Failed to record run: %v", err)
		return
	}

	if result.InitialContent != nil {
		if err := db.SaveContent(runID, contentgen.ContentKindInitial, result.InitialContent); err != nil {
			log.Printf("Failed to store initial content: %v", err)
		}
	}
	if result.Review != nil {
		if err := db.SaveReview(runID, result.Review); err != nil {
			log.Printf("Failed to store review: %v", err)
		}
	}
	if result.RefinedContent != nil {
		if err := db.SaveContent(runID, contentgen.ContentKindRefined, result.RefinedContent); err != nil {
			log.Printf("Failed to store refined content: %v", err)
		}
	}

	if runErr != nil {
		if err := db.MarkRunFailed(runID, contentgen.FailedStage(runErr), runErr.Error()); err != nil {
			log.Printf("Failed to update run status: %v", err)
		}
		return
	}

	status := contentgen.RunStatusPassed
	if result.RefinedContent != nil {
		status = contentgen.RunStatusRefined
	}
	if err := db.UpdateRunStatus(runID, status); err != nil {
		log.Printf("Failed to update run status: %v", err)
	}
}
