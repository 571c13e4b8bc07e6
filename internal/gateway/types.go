// Package gateway provides the single data-access point for the analysis
// core. Every operation has a live implementation talking to the backend
// over HTTP and a mock implementation serving deterministic sample data;
// which one handles a call is decided per call from the demo-mode flag, and
// both return identical shapes, so callers never branch on the source.
package gateway

import (
	"fmt"
	"time"
)

// DatasetStatus is the lifecycle state of a dataset.
type DatasetStatus string

const (
	DatasetRegistered DatasetStatus = "registered"
	DatasetIngesting  DatasetStatus = "ingesting"
	DatasetReady      DatasetStatus = "ready"
	DatasetError      DatasetStatus = "error"
)

// Dataset is a registered data source.
type Dataset struct {
	ID           string        `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	CreatedAt    time.Time     `json:"created_at" yaml:"created_at"`
	LastIngestAt *time.Time    `json:"last_ingest_at,omitempty" yaml:"last_ingest_at,omitempty"`
	Status       DatasetStatus `json:"status" yaml:"status"`
}

// JobStatus is the lifecycle state of a background job. Jobs move
// monotonically toward done or error and never regress.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobError   JobStatus = "error"
)

// Job is an asynchronous backend task, such as an ingestion run.
type Job struct {
	ID         string     `json:"id" yaml:"id"`
	Type       string     `json:"type" yaml:"type"`
	DatasetID  string     `json:"dataset_id" yaml:"dataset_id"`
	Status     JobStatus  `json:"status" yaml:"status"`
	StartedAt  time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// NamedQuery is one SQL statement with the name its result set will carry.
type NamedQuery struct {
	Name string `json:"name" yaml:"name"`
	SQL  string `json:"sql" yaml:"sql"`
}

// Table is a named, ordered result set. Rows are fixed-arity ordered scalar
// lists; nil cells are permitted. The same shape serves query-execution
// results and the tables of a final answer.
type Table struct {
	Name    string  `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
	Rows    [][]any `json:"rows" yaml:"rows"`
}

// CatalogColumn describes one column of a cataloged table.
type CatalogColumn struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// CatalogTable describes one table of a dataset.
type CatalogTable struct {
	Name    string          `json:"name" yaml:"name"`
	Columns []CatalogColumn `json:"columns" yaml:"columns"`
}

// Catalog is the table/column inventory of a dataset.
type Catalog struct {
	DatasetID string         `json:"dataset_id" yaml:"dataset_id"`
	Tables    []CatalogTable `json:"tables" yaml:"tables"`
}

// Clarification asks the user a question before analysis can proceed.
type Clarification struct {
	Question      string   `json:"question"`
	Choices       []string `json:"choices"`
	AllowFreeText bool     `json:"allow_free_text"`
}

// Audit records what was disclosed to the AI collaborator during a turn,
// together with the data-handling posture in effect.
type Audit struct {
	DisclosedTables []string       `json:"disclosed_tables"`
	RowCounts       map[string]int `json:"row_counts,omitempty"`
	Aggregates      []string       `json:"aggregates,omitempty"`
	PrivacyMode     bool           `json:"privacy_mode"`
	SafeMode        bool           `json:"safe_mode"`
}

// FinalAnswer is the completed result of an analysis turn.
type FinalAnswer struct {
	Summary      string  `json:"summary"`
	Tables       []Table `json:"tables"`
	Audit        Audit   `json:"audit"`
	AnalysisType string  `json:"analysis_type"`
	Period       string  `json:"period"`
}

// Chat response variant tags.
const (
	VariantClarification = "needs_clarification"
	VariantRunQueries    = "run_queries"
	VariantFinalAnswer   = "final_answer"
)

// ChatRequest is one utterance sent to the chat operation. Results carries
// previously executed query results back as context; the gateway itself
// never holds result state between calls.
type ChatRequest struct {
	DatasetID      string  `json:"dataset_id"`
	ConversationID string  `json:"conversation_id"`
	Message        string  `json:"message"`
	Results        []Table `json:"results,omitempty"`
}

// ChatResponse is the tagged union returned by the chat operation. Exactly
// one variant is populated; callers branch exhaustively over the three.
type ChatResponse struct {
	Type          string         `json:"type"`
	Clarification *Clarification `json:"clarification,omitempty"`
	RunQueries    []NamedQuery   `json:"run_queries,omitempty"`
	Answer        *FinalAnswer   `json:"final_answer,omitempty"`
}

// Validate checks that the variant tag names exactly the populated variant.
func (r *ChatResponse) Validate() error {
	switch r.Type {
	case VariantClarification:
		if r.Clarification == nil || r.RunQueries != nil || r.Answer != nil {
			return fmt.Errorf("chat response tagged %q has mismatched variants", r.Type)
		}
	case VariantRunQueries:
		if len(r.RunQueries) == 0 || r.Clarification != nil || r.Answer != nil {
			return fmt.Errorf("chat response tagged %q has mismatched variants", r.Type)
		}
	case VariantFinalAnswer:
		if r.Answer == nil || r.Clarification != nil || r.RunQueries != nil {
			return fmt.Errorf("chat response tagged %q has mismatched variants", r.Type)
		}
	default:
		return fmt.Errorf("chat response has unknown variant tag %q", r.Type)
	}
	return nil
}
