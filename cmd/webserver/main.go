package main

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	contentgen "github.com/adityaraj31/ai-educational-content-generator"

	"github.com/gorilla/sessions"
)

type Server struct {
	db        *contentgen.DB
	store     *sessions.CookieStore
	templates map[string]*template.Template
}

const sessionName = "contentgen-session"

func main() {
	contentgen.SetVerbose(true)

	// Get API key from environment; runs are launched in the background and
	// read it again there, but fail fast when it is missing.
	if os.Getenv("GROQ_API_KEY") == "" {
		log.Fatal("GROQ_API_KEY environment variable is required")
	}

	dbPath := os.Getenv("CONTENT_DB")
	if dbPath == "" {
		dbPath = "./content.db"
	}

	// Initialize database
	db, err := contentgen.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.CloseDB()

	if err := db.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	// Initialize session store
	sessionKey := os.Getenv("SESSION_KEY")
	if sessionKey == "" {
		sessionKey = "contentgen-dev-session-key"
	}
	store := sessions.NewCookieStore([]byte(sessionKey))

	// Load templates with custom functions
	funcMap := template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"letter": func(i int) string {
			letters := []string{"A", "B", "C", "D"}
			if i >= 0 && i < len(letters) {
				return letters[i]
			}
			return "?"
		},
	}

	templates := make(map[string]*template.Template)
	templateFiles := []struct {
		name string
		file string
	}{
		{"home", "templates/home.html"},
		{"new_run", "templates/new_run.html"},
		{"generating", "templates/generating.html"},
		{"run", "templates/run.html"},
	}
	for _, tmpl := range templateFiles {
		templates[tmpl.name] = template.Must(template.New(tmpl.name).Funcs(funcMap).ParseFiles("templates/base.html", tmpl.file))
	}

	server := &Server{
		db:        db,
		store:     store,
		templates: templates,
	}

	// Setup routes
	http.HandleFunc("/", server.handleHome)
	http.HandleFunc("/run/new", server.handleNewRun)
	http.HandleFunc("/run/", server.handleRun)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8180"
	}

	log.Printf("Starting server on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, nil))
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	runs, err := s.db.GetRuns(50)
	if err != nil {
		log.Printf("Failed to get runs: %v", err)
		http.Error(w, "Failed to get runs", http.StatusInternalServerError)
		return
	}

	session, _ := s.store.Get(r, sessionName)
	flashes := session.Flashes()
	session.Save(r, w)

	err = s.templates["home"].ExecuteTemplate(w, "base.html", map[string]interface{}{
		"Runs":    runs,
		"Flashes": flashes,
	})
	if err != nil {
		log.Printf("Template error in home: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

func (s *Server) handleNewRun(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		err := s.templates["new_run"].ExecuteTemplate(w, "base.html", nil)
		if err != nil {
			log.Printf("Template error in new_run: %v", err)
			http.Error(w, "Template error", http.StatusInternalServerError)
		}
		return
	}

	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	grade, err := strconv.Atoi(r.FormValue("grade"))
	if err != nil {
		http.Error(w, "Invalid grade", http.StatusBadRequest)
		return
	}
	topic := strings.TrimSpace(r.FormValue("topic"))

	// Reject bad input before creating a run record.
	req := contentgen.GenerationRequest{Grade: grade, Topic: topic}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runID := contentgen.NewRunID()
	run := &contentgen.DBRun{
		ID:        runID,
		Grade:     grade,
		Topic:     topic,
		Status:    contentgen.RunStatusRunning,
		CreatedAt: time.Now(),
	}
	if err := s.db.CreateRun(run); err != nil {
		log.Printf("Failed to create run: %v", err)
		http.Error(w, "Failed to create run", http.StatusInternalServerError)
		return
	}

	// Run the pipeline in the background; the run page polls until done.
	go s.db.RunPipeline(runID, grade, topic)

	session, _ := s.store.Get(r, sessionName)
	session.AddFlash(fmt.Sprintf("Generation started for %q (Grade %d)", topic, grade))
	session.Values["last_run"] = runID
	session.Save(r, w)

	http.Redirect(w, r, "/run/"+runID, http.StatusSeeOther)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/run/")
	if path == "" || path == "new" {
		http.NotFound(w, r)
		return
	}

	if strings.HasSuffix(path, "/download") {
		s.handleDownload(w, r, strings.TrimSuffix(path, "/download"))
		return
	}

	run, err := s.db.GetRun(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if run.Status == contentgen.RunStatusRunning {
		err := s.templates["generating"].ExecuteTemplate(w, "base.html", map[string]interface{}{
			"Run": run,
		})
		if err != nil {
			log.Printf("Template error in generating: %v", err)
			http.Error(w, "Template error", http.StatusInternalServerError)
		}
		return
	}

	result, err := s.db.GetResult(run.ID)
	if err != nil {
		log.Printf("Failed to get result for run %s: %v", run.ID, err)
		http.Error(w, "Failed to get result", http.StatusInternalServerError)
		return
	}

	err = s.templates["run"].ExecuteTemplate(w, "base.html", map[string]interface{}{
		"Run":    run,
		"Result": result,
	})
	if err != nil {
		log.Printf("Template error in run: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := s.db.GetRun(runID)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	result, err := s.db.GetResult(runID)
	if err != nil || result.FinalContent == nil {
		http.Error(w, "No final content for this run", http.StatusNotFound)
		return
	}

	output, err := json.MarshalIndent(result.FinalContent, "", "  ")
	if err != nil {
		http.Error(w, "Failed to marshal content", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("content_grade%d_%s.json", run.Grade, strings.ReplaceAll(run.Topic, " ", "_"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(output)
}
