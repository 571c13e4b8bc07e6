package gateway

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	_ "embed"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed sampledata.yaml
var sampleDataYAML []byte

// SampleData is the hand-authored fixture set behind the mock path.
type SampleData struct {
	Datasets     []Dataset                 `yaml:"datasets"`
	Jobs         []Job                     `yaml:"jobs"`
	Catalogs     map[string][]CatalogTable `yaml:"catalogs"`
	TrendQueries []NamedQuery              `yaml:"trend_queries"`
	Results      map[string]Table          `yaml:"results"`
}

// LoadSampleData parses the embedded fixture document.
func LoadSampleData() (*SampleData, error) {
	var data SampleData
	if err := yaml.Unmarshal(sampleDataYAML, &data); err != nil {
		return nil, fmt.Errorf("parse sample data: %w", err)
	}
	for name, t := range data.Results {
		t.Name = name
		data.Results[name] = t
	}
	return &data, nil
}

// clarificationChoices are the fixed time-period options offered when the
// mock cannot route a message to a concrete analysis.
var clarificationChoices = []string{
	"Last 30 days",
	"Last quarter",
	"Last 6 months",
	"Year to date",
}

const clarificationQuestion = "What time period would you like to analyze?"

// MockSource serves every gateway operation from the sample fixtures,
// synchronously and without any network I/O. Registered datasets and
// triggered jobs are kept in memory so the demo behaves like a session, but
// the seed state is always the same.
type MockSource struct {
	mu       sync.Mutex
	data     *SampleData
	datasets []Dataset
	jobs     []Job
	now      func() time.Time
}

// NewMockSource seeds a mock source from the embedded fixtures. The fixture
// document is compiled in; a parse failure is a build defect, so it panics.
func NewMockSource() *MockSource {
	data, err := LoadSampleData()
	if err != nil {
		panic(err)
	}
	m := &MockSource{data: data, now: time.Now}
	m.datasets = append(m.datasets, data.Datasets...)
	m.jobs = append(m.jobs, data.Jobs...)
	return m
}

// Health never fails: demo mode has no transport to lose.
func (m *MockSource) Health(ctx context.Context) error {
	return nil
}

func (m *MockSource) RegisterDataset(ctx context.Context, name string) (*Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ds := Dataset{
		ID:        "ds_" + uuid.New().String()[:8],
		Name:      name,
		CreatedAt: m.now(),
		Status:    DatasetRegistered,
	}
	m.datasets = append(m.datasets, ds)
	return &ds, nil
}

func (m *MockSource) UploadDataset(ctx context.Context, datasetID, filename string, r io.Reader) error {
	// Consume the payload so callers see identical stream semantics to the
	// live path, then discard it.
	_, err := io.Copy(io.Discard, r)
	return err
}

func (m *MockSource) ListDatasets(ctx context.Context) ([]Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Dataset, len(m.datasets))
	copy(out, m.datasets)
	return out, nil
}

// TriggerIngest records a job that completes immediately: the mock has no
// background execution, and callers only observe terminal statuses anyway.
func (m *MockSource) TriggerIngest(ctx context.Context, datasetID string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	started := m.now()
	finished := started
	job := Job{
		ID:         "job_" + uuid.New().String()[:8],
		Type:       "ingest",
		DatasetID:  datasetID,
		Status:     JobDone,
		StartedAt:  started,
		FinishedAt: &finished,
	}
	m.jobs = append(m.jobs, job)

	for i := range m.datasets {
		if m.datasets[i].ID == datasetID {
			m.datasets[i].Status = DatasetReady
			m.datasets[i].LastIngestAt = &finished
		}
	}
	return &job, nil
}

func (m *MockSource) ListJobs(ctx context.Context) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Job, len(m.jobs))
	copy(out, m.jobs)
	return out, nil
}

// ExecuteQueries resolves each named query against the fixture result sets,
// preserving the supplied order. Unknown names yield an empty result set of
// the same name rather than an error.
func (m *MockSource) ExecuteQueries(ctx context.Context, datasetID string, queries []NamedQuery) ([]Table, error) {
	out := make([]Table, 0, len(queries))
	for _, q := range queries {
		if t, ok := m.data.Results[q.Name]; ok {
			out = append(out, t)
			continue
		}
		out = append(out, Table{Name: q.Name, Columns: nil, Rows: nil})
	}
	return out, nil
}

func (m *MockSource) Catalog(ctx context.Context, datasetID string) (*Catalog, error) {
	tables := m.data.Catalogs[datasetID]
	return &Catalog{DatasetID: datasetID, Tables: tables}, nil
}

// Chat routes the message with literal keyword matching. This is fixture
// behavior, not intent classification: the substrings below exist so demo
// sessions exercise each response variant, and nothing outside this file
// may depend on the matching policy.
func (m *MockSource) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	msg := strings.ToLower(req.Message)

	switch {
	case len(req.Results) > 0:
		return &ChatResponse{
			Type:   VariantFinalAnswer,
			Answer: m.summarizeResults(req),
		}, nil

	case strings.Contains(msg, "trend"):
		return &ChatResponse{
			Type:       VariantRunQueries,
			RunQueries: append([]NamedQuery(nil), m.data.TrendQueries...),
		}, nil

	case strings.Contains(msg, "category") || strings.Contains(msg, "breakdown"):
		t := m.data.Results["category_breakdown"]
		return &ChatResponse{
			Type: VariantFinalAnswer,
			Answer: &FinalAnswer{
				Summary: "Electronics leads revenue at 98,412.30 across 512 orders, " +
					"followed by home and apparel. A small uncategorized remainder " +
					"accounts for 1,250.00.",
				Tables:       []Table{t},
				Audit:        auditFor([]Table{t}),
				AnalysisType: "category_breakdown",
				Period:       "all time",
			},
		}, nil

	default:
		return &ChatResponse{
			Type: VariantClarification,
			Clarification: &Clarification{
				Question:      clarificationQuestion,
				Choices:       append([]string(nil), clarificationChoices...),
				AllowFreeText: true,
			},
		}, nil
	}
}

// summarizeResults builds the deterministic final answer for a follow-up
// call that carries executed query results.
func (m *MockSource) summarizeResults(req ChatRequest) *FinalAnswer {
	names := make([]string, 0, len(req.Results))
	rows := 0
	for _, t := range req.Results {
		names = append(names, t.Name)
		rows += len(t.Rows)
	}
	return &FinalAnswer{
		Summary: fmt.Sprintf(
			"Across the last six months the trend is upward: revenue grew from "+
				"41,250.50 in January to 55,872.40 in June, and order volume rose "+
				"from 312 to 428. Based on %d rows from %s.",
			rows, strings.Join(names, ", ")),
		Tables:       append([]Table(nil), req.Results...),
		Audit:        auditFor(req.Results),
		AnalysisType: "trend",
		Period:       "last 6 months",
	}
}

func auditFor(tables []Table) Audit {
	a := Audit{RowCounts: make(map[string]int, len(tables))}
	for _, t := range tables {
		a.DisclosedTables = append(a.DisclosedTables, t.Name)
		a.RowCounts[t.Name] = len(t.Rows)
	}
	a.Aggregates = []string{"sum", "count"}
	return a
}
