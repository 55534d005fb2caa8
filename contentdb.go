package contentgen

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB represents a content run database connection
type DB struct {
	db *sql.DB
}

// Run lifecycle statuses stored in the database.
const (
	RunStatusRunning = "running"
	RunStatusPassed  = "passed"  // review passed, no refinement
	RunStatusRefined = "refined" // review failed, one refinement pass done
	RunStatusFailed  = "failed"
)

// Content kinds stored per run.
const (
	ContentKindInitial = "initial"
	ContentKindRefined = "refined"
)

// DBRun represents a pipeline run in the database
type DBRun struct {
	ID          string    `json:"id"`
	Grade       int       `json:"grade"`
	Topic       string    `json:"topic"`
	Status      string    `json:"status"`
	FailedStage string    `json:"failed_stage,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// OpenDB opens a new database connection
func OpenDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db: db}, nil
}

// CloseDB closes the database connection
func (db *DB) CloseDB() error {
	return db.db.Close()
}

// CreateTables creates the necessary tables if they don't exist
func (db *DB) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			grade INTEGER NOT NULL,
			topic TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'running',
			failed_stage TEXT,
			error TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS contents (
			run_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			explanation TEXT NOT NULL,
			mcqs TEXT NOT NULL,
			PRIMARY KEY (run_id, kind),
			FOREIGN KEY (run_id) REFERENCES runs(id)
		)`,
		`CREATE TABLE IF NOT EXISTS reviews (
			run_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			feedback TEXT NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id)
		)`,
	}

	for _, query := range queries {
		if _, err := db.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// CreateRun creates a new run record
func (db *DB) CreateRun(run *DBRun) error {
	_, err := db.db.Exec(
		"INSERT INTO runs (id, grade, topic, status, failed_stage, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		run.ID, run.Grade, run.Topic, run.Status, run.FailedStage, run.Error, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (db *DB) GetRun(id string) (*DBRun, error) {
	var run DBRun
	var failedStage, errMsg sql.NullString
	err := db.db.QueryRow(
		"SELECT id, grade, topic, status, failed_stage, error, created_at FROM runs WHERE id = ?",
		id,
	).Scan(&run.ID, &run.Grade, &run.Topic, &run.Status, &failedStage, &errMsg, &run.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	run.FailedStage = failedStage.String
	run.Error = errMsg.String
	return &run, nil
}

// GetRuns retrieves all runs, newest first, optionally limited by count
func (db *DB) GetRuns(limit int) ([]DBRun, error) {
	query := "SELECT id, grade, topic, status, failed_stage, error, created_at FROM runs ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get runs: %w", err)
	}
	defer rows.Close()

	var runs []DBRun
	for rows.Next() {
		var run DBRun
		var failedStage, errMsg sql.NullString
		err := rows.Scan(&run.ID, &run.Grade, &run.Topic, &run.Status, &failedStage, &errMsg, &run.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.FailedStage = failedStage.String
		run.Error = errMsg.String
		runs = append(runs, run)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// UpdateRunStatus updates the status of a run
func (db *DB) UpdateRunStatus(id, status string) error {
	_, err := db.db.Exec("UPDATE runs SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	return nil
}

// MarkRunFailed records a terminal failure with the stage that produced it
func (db *DB) MarkRunFailed(id string, stage Stage, errMsg string) error {
	_, err := db.db.Exec(
		"UPDATE runs SET status = ?, failed_stage = ?, error = ? WHERE id = ?",
		RunStatusFailed, string(stage), errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	return nil
}

// SaveContent stores a stage's content artifact for a run
func (db *DB) SaveContent(runID, kind string, content *Content) error {
	mcqsJSON, err := MCQsToJSON(content.MCQs)
	if err != nil {
		return err
	}
	_, err = db.db.Exec(
		"INSERT OR REPLACE INTO contents (run_id, kind, explanation, mcqs) VALUES (?, ?, ?, ?)",
		runID, kind, content.Explanation, mcqsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save content: %w", err)
	}
	return nil
}

// GetContent retrieves a stage's content artifact; returns (nil, nil) when
// the run produced no artifact of that kind.
func (db *DB) GetContent(runID, kind string) (*Content, error) {
	var explanation, mcqsJSON string
	err := db.db.QueryRow(
		"SELECT explanation, mcqs FROM contents WHERE run_id = ? AND kind = ?",
		runID, kind,
	).Scan(&explanation, &mcqsJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get content: %w", err)
	}

	mcqs, err := JSONToMCQs(mcqsJSON)
	if err != nil {
		return nil, err
	}
	return &Content{Explanation: explanation, MCQs: mcqs}, nil
}

// SaveReview stores a run's review verdict
func (db *DB) SaveReview(runID string, review *Review) error {
	feedbackJSON, err := json.Marshal(review.Feedback)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}
	_, err = db.db.Exec(
		"INSERT OR REPLACE INTO reviews (run_id, status, feedback) VALUES (?, ?, ?)",
		runID, string(review.Status), string(feedbackJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save review: %w", err)
	}
	return nil
}

// GetReview retrieves a run's review verdict; returns (nil, nil) when the
// run never reached the review stage.
func (db *DB) GetReview(runID string) (*Review, error) {
	var status, feedbackJSON string
	err := db.db.QueryRow(
		"SELECT status, feedback FROM reviews WHERE run_id = ?",
		runID,
	).Scan(&status, &feedbackJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	var feedback []string
	if err := json.Unmarshal([]byte(feedbackJSON), &feedback); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feedback: %w", err)
	}
	return &Review{Status: ReviewStatus(status), Feedback: feedback}, nil
}

// GetResult assembles the stored PipelineResult for a run from whatever
// artifacts it produced.
func (db *DB) GetResult(runID string) (*PipelineResult, error) {
	run, err := db.GetRun(runID)
	if err != nil {
		return nil, err
	}

	result := &PipelineResult{
		Request:   GenerationRequest{Grade: run.Grade, Topic: run.Topic},
		CreatedAt: run.CreatedAt,
	}

	if result.InitialContent, err = db.GetContent(runID, ContentKindInitial); err != nil {
		return nil, err
	}
	if result.Review, err = db.GetReview(runID); err != nil {
		return nil, err
	}
	if result.RefinedContent, err = db.GetContent(runID, ContentKindRefined); err != nil {
		return nil, err
	}

	switch run.Status {
	case RunStatusPassed:
		result.FinalContent = result.InitialContent
	case RunStatusRefined:
		result.FinalContent = result.RefinedContent
	}

	return result, nil
}

// MCQsToJSON converts an MCQ slice to its JSON column representation
func MCQsToJSON(mcqs []MCQ) (string, error) {
	data, err := json.Marshal(mcqs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal mcqs: %w", err)
	}
	return string(data), nil
}

// JSONToMCQs converts a JSON column value back to an MCQ slice
func JSONToMCQs(mcqsJSON string) ([]MCQ, error) {
	var mcqs []MCQ
	if err := json.Unmarshal([]byte(mcqsJSON), &mcqs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mcqs: %w", err)
	}
	return mcqs, nil
}

// RunPipeline executes a full pipeline run for an already-created run record
// and stores every stage artifact, including partial artifacts of failed
// runs. Intended to be called in a background goroutine by the webserver.
func (db *DB) RunPipeline(runID string, grade int, topic string) {
	req := GenerationRequest{Grade: grade, Topic: topic}

	apiKey := os.Getenv("GROQ_API_KEY")
	pipeline := NewPipeline(ClientConfig{APIKey: apiKey})

	logger, err := NewRunLogger(runID, req)
	if err != nil {
		log.Printf("Failed to create logger for run %s: %v", runID, err)
		// Continue without logging rather than failing
	} else {
		pipeline.SetLogger(logger)
		defer logger.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, runErr := pipeline.Run(ctx, req)

	// Store whatever artifacts the run produced, even on failure.
	if result.InitialContent != nil {
		if err := db.SaveContent(runID, ContentKindInitial, result.InitialContent); err != nil {
			log.Printf("Failed to store initial content for run %s: %v", runID, err)
		}
	}
	if result.Review != nil {
		if err := db.SaveReview(runID, result.Review); err != nil {
			log.Printf("Failed to store review for run %s: %v", runID, err)
		}
	}
	if result.RefinedContent != nil {
		if err := db.SaveContent(runID, ContentKindRefined, result.RefinedContent); err != nil {
			log.Printf("Failed to store refined content for run %s: %v", runID, err)
		}
	}

	if runErr != nil {
		log.Printf("Run %s failed at stage %s: %v", runID, FailedStage(runErr), runErr)
		if err := db.MarkRunFailed(runID, FailedStage(runErr), runErr.Error()); err != nil {
			log.Printf("Failed to update run status for %s: %v", runID, err)
		}
		return
	}

	status := RunStatusPassed
	if result.RefinedContent != nil {
		status = RunStatusRefined
	}
	if err := db.UpdateRunStatus(runID, status); err != nil {
		log.Printf("Failed to update run status for %s: %v", runID, err)
	}
	log.Printf("Run %s complete: %s", runID, status)
}
