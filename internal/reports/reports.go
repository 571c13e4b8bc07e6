// Package reports persists completed analysis turns as immutable records.
//
// A report is written once when a conversation reaches a final answer and is
// never updated or deleted afterwards. Because records are immutable there is
// no cache layer; reads always go to the store.
package reports

import (
	"context"
	"errors"
	"time"

	"github.com/askdata/askdata/internal/gateway"
)

// ErrNotFound indicates the requested report does not exist.
var ErrNotFound = errors.New("report not found")

// Report is a saved analysis outcome.
type Report struct {
	ID             string          `json:"id"`
	DatasetID      string          `json:"dataset_id"`
	ConversationID string          `json:"conversation_id"`
	Question       string          `json:"question"`
	AnalysisType   string          `json:"analysis_type"`
	Period         string          `json:"period"`
	Summary        string          `json:"summary"`
	Tables         []gateway.Table `json:"tables"`
	Audit          gateway.Audit   `json:"audit"`
	ModeFlags      map[string]bool `json:"mode_flags"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Summary is the listing projection of a report.
type Summary struct {
	ID           string    `json:"id"`
	DatasetID    string    `json:"dataset_id"`
	Question     string    `json:"question"`
	AnalysisType string    `json:"analysis_type"`
	Period       string    `json:"period"`
	CreatedAt    time.Time `json:"created_at"`
}

// Filter narrows a listing. The zero value lists everything.
type Filter struct {
	DatasetID string
	Limit     int
}

// Store persists reports. Implementations assign the id on Create and list
// newest first. There is deliberately no update or delete.
type Store interface {
	Create(ctx context.Context, r Report) (string, error)
	List(ctx context.Context, f Filter) ([]Summary, error)
	Get(ctx context.Context, id string) (*Report, error)
}
