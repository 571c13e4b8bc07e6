// Package server provides the sample analysis backend.
//
// It serves the same REST surface the client consumes, backed by the
// deterministic sample fixtures, so the live path has a real endpoint to talk
// to in development. Ingestion jobs progress asynchronously and their status
// changes are streamed over a websocket.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/askdata/askdata/internal/gateway"
)

// Options configures the sample backend.
type Options struct {
	// JobStepDelay is the pause between job status transitions. Tests set it
	// low; the default makes progression observable by hand.
	JobStepDelay time.Duration

	// Synthesizer rewrites final-answer summaries through an LLM when set.
	Synthesizer *Synthesizer
}

// Server is the sample backend. All state is in memory and reset on restart.
type Server struct {
	log       *slog.Logger
	source    *gateway.MockSource
	synth     *Synthesizer
	stepDelay time.Duration
	hub       *eventHub

	mu       sync.Mutex
	datasets []gateway.Dataset
	jobs     []gateway.Job
}

// New seeds a server from the embedded sample fixtures.
func New(log *slog.Logger, opts Options) *Server {
	if log == nil {
		log = slog.Default()
	}
	if opts.JobStepDelay <= 0 {
		opts.JobStepDelay = 2 * time.Second
	}

	data, err := gateway.LoadSampleData()
	if err != nil {
		panic(err)
	}

	s := &Server{
		log:       log,
		source:    gateway.NewMockSource(),
		synth:     opts.Synthesizer,
		stepDelay: opts.JobStepDelay,
		hub:       newEventHub(log),
	}
	s.datasets = append(s.datasets, data.Datasets...)
	s.jobs = append(s.jobs, data.Jobs...)
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /datasets/register", s.handleRegister)
	mux.HandleFunc("POST /datasets/upload", s.handleUpload)
	mux.HandleFunc("GET /datasets", s.handleListDatasets)
	mux.HandleFunc("POST /datasets/{id}/ingest", s.handleIngest)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("POST /queries/execute", s.handleExecute)
	mux.HandleFunc("GET /datasets/{id}/catalog", s.handleCatalog)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /events", s.hub.handleSubscribe)
	return loggingMiddleware(s.log, mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}

	ds := gateway.Dataset{
		ID:        "ds_" + uuid.New().String()[:8],
		Name:      req.Name,
		CreatedAt: time.Now(),
		Status:    gateway.DatasetRegistered,
	}
	s.mu.Lock()
	s.datasets = append(s.datasets, ds)
	s.mu.Unlock()

	s.log.Info("dataset registered", "id", ds.ID, "name", ds.Name)
	writeJSON(w, http.StatusOK, ds)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	datasetID := r.FormValue("dataset_id")
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// The sample backend has no storage; accepting the upload is enough for
	// the client flow.
	s.log.Info("upload received", "dataset", datasetID, "filename", header.Filename, "size", header.Size)
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]gateway.Dataset, len(s.datasets))
	copy(out, s.datasets)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"datasets": out})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	datasetID := r.PathValue("id")

	s.mu.Lock()
	found := false
	for i := range s.datasets {
		if s.datasets[i].ID == datasetID {
			s.datasets[i].Status = gateway.DatasetIngesting
			found = true
		}
	}
	if !found {
		s.mu.Unlock()
		http.Error(w, "unknown dataset", http.StatusNotFound)
		return
	}

	job := gateway.Job{
		ID:        "job_" + uuid.New().String()[:8],
		Type:      "ingest",
		DatasetID: datasetID,
		Status:    gateway.JobQueued,
		StartedAt: time.Now(),
	}
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()

	s.hub.broadcast(job)
	go s.progressJob(job.ID, datasetID)

	writeJSON(w, http.StatusOK, job)
}

// progressJob walks an ingest job queued -> running -> done, broadcasting
// each transition and marking the dataset ready at the end.
func (s *Server) progressJob(jobID, datasetID string) {
	time.Sleep(s.stepDelay)
	s.transitionJob(jobID, datasetID, gateway.JobRunning)

	time.Sleep(s.stepDelay)
	s.transitionJob(jobID, datasetID, gateway.JobDone)
}

func (s *Server) transitionJob(jobID, datasetID string, status gateway.JobStatus) {
	s.mu.Lock()
	var updated gateway.Job
	for i := range s.jobs {
		if s.jobs[i].ID != jobID {
			continue
		}
		s.jobs[i].Status = status
		if status == gateway.JobDone {
			now := time.Now()
			s.jobs[i].FinishedAt = &now
			for j := range s.datasets {
				if s.datasets[j].ID == datasetID {
					s.datasets[j].Status = gateway.DatasetReady
					s.datasets[j].LastIngestAt = &now
				}
			}
		}
		updated = s.jobs[i]
	}
	s.mu.Unlock()

	s.log.Info("job status changed", "job", jobID, "status", status)
	s.hub.broadcast(updated)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]gateway.Job, len(s.jobs))
	copy(out, s.jobs)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DatasetID string               `json:"dataset_id"`
		Queries   []gateway.NamedQuery `json:"queries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	results, err := s.source.ExecuteQueries(r.Context(), req.DatasetID, req.Queries)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.source.Catalog(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req gateway.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	resp, err := s.source.Chat(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Optionally rewrite the summary through the LLM; failure falls back to
	// the deterministic text.
	if resp.Answer != nil && s.synth != nil {
		if summary, err := s.synth.Summarize(r.Context(), req.Message, resp.Answer.Tables); err != nil {
			s.log.Warn("llm summary failed, keeping deterministic text", "error", err)
		} else if summary != "" {
			resp.Answer.Summary = summary
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
