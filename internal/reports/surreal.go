package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/askdata/askdata/internal/db"
	"github.com/askdata/askdata/internal/gateway"
)

// SurrealStore persists reports in SurrealDB. It is the durable store used
// when a database connection is configured.
type SurrealStore struct {
	client *db.Client
}

// NewSurrealStore wraps an established database client.
func NewSurrealStore(client *db.Client) *SurrealStore {
	return &SurrealStore{client: client}
}

// reportRecord is the database shape of a report. The id is a record id on
// the way out and absent on the way in (SurrealDB assigns it).
type reportRecord struct {
	ID             surrealmodels.RecordID `json:"id,omitempty"`
	DatasetID      string                 `json:"dataset_id"`
	ConversationID string                 `json:"conversation_id"`
	Question       string                 `json:"question"`
	AnalysisType   string                 `json:"analysis_type"`
	Period         string                 `json:"period"`
	Summary        string                 `json:"summary"`
	Tables         []gateway.Table        `json:"tables"`
	Audit          *gateway.Audit         `json:"audit,omitempty"`
	ModeFlags      map[string]bool        `json:"mode_flags,omitempty"`
	Created        time.Time              `json:"created"`
}

// reportSummaryRecord is the listing projection.
type reportSummaryRecord struct {
	ID           surrealmodels.RecordID `json:"id"`
	DatasetID    string                 `json:"dataset_id"`
	Question     string                 `json:"question"`
	AnalysisType string                 `json:"analysis_type"`
	Period       string                 `json:"period"`
	Created      time.Time              `json:"created"`
}

func recordIDString(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("unexpected record id type: %T", id.ID)
	}
	return s, nil
}

func (s *SurrealStore) Create(ctx context.Context, r Report) (string, error) {
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	tables := r.Tables
	if tables == nil {
		tables = []gateway.Table{}
	}
	audit := r.Audit
	content := map[string]any{
		"dataset_id":      r.DatasetID,
		"conversation_id": r.ConversationID,
		"question":        r.Question,
		"analysis_type":   r.AnalysisType,
		"period":          r.Period,
		"summary":         r.Summary,
		"tables":          tables,
		"audit":           &audit,
		"mode_flags":      r.ModeFlags,
		"created":         created,
	}

	results, err := surrealdb.Query[[]reportRecord](ctx, s.client.DB(), `
		CREATE report CONTENT $report
	`, map[string]any{"report": content})
	if err != nil {
		return "", fmt.Errorf("create report: %w", db.WrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return "", fmt.Errorf("create report: empty result")
	}
	id, err := recordIDString((*results)[0].Result[0].ID)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	return id, nil
}

func (s *SurrealStore) List(ctx context.Context, f Filter) ([]Summary, error) {
	datasetClause := ""
	vars := map[string]any{}
	if f.DatasetID != "" {
		datasetClause = "WHERE dataset_id = $dataset"
		vars["dataset"] = f.DatasetID
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	vars["limit"] = limit

	sql := fmt.Sprintf(`
		SELECT id, dataset_id, question, analysis_type, period, created
		FROM report %s
		ORDER BY created DESC
		LIMIT $limit
	`, datasetClause)

	results, err := surrealdb.Query[[]reportSummaryRecord](ctx, s.client.DB(), sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", db.WrapQueryError(err))
	}

	out := []Summary{}
	if results != nil && len(*results) > 0 {
		for _, rec := range (*results)[0].Result {
			id, err := recordIDString(rec.ID)
			if err != nil {
				return nil, fmt.Errorf("list reports: %w", err)
			}
			out = append(out, Summary{
				ID:           id,
				DatasetID:    rec.DatasetID,
				Question:     rec.Question,
				AnalysisType: rec.AnalysisType,
				Period:       rec.Period,
				CreatedAt:    rec.Created,
			})
		}
	}
	return out, nil
}

func (s *SurrealStore) Get(ctx context.Context, id string) (*Report, error) {
	results, err := surrealdb.Query[[]reportRecord](ctx, s.client.DB(), `
		SELECT * FROM type::record("report", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get report: %w", db.WrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}

	rec := (*results)[0].Result[0]
	recID, err := recordIDString(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	r := &Report{
		ID:             recID,
		DatasetID:      rec.DatasetID,
		ConversationID: rec.ConversationID,
		Question:       rec.Question,
		AnalysisType:   rec.AnalysisType,
		Period:         rec.Period,
		Summary:        rec.Summary,
		Tables:         rec.Tables,
		ModeFlags:      rec.ModeFlags,
		CreatedAt:      rec.Created,
	}
	if rec.Audit != nil {
		r.Audit = *rec.Audit
	}
	return r, nil
}
