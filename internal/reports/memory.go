package reports

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/askdata/askdata/internal/gateway"
)

// MemoryStore keeps reports in process memory. It backs demo mode and tests,
// where records only need to outlive the session.
type MemoryStore struct {
	mu      sync.Mutex
	reports []Report // insertion order, oldest first
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Create(ctx context.Context, r Report) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = uuid.New().String()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	s.reports = append(s.reports, r)
	return r.ID, nil
}

func (s *MemoryStore) List(ctx context.Context, f Filter) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Summary, 0, len(s.reports))
	for i := len(s.reports) - 1; i >= 0; i-- {
		r := s.reports[i]
		if f.DatasetID != "" && r.DatasetID != f.DatasetID {
			continue
		}
		out = append(out, Summary{
			ID:           r.ID,
			DatasetID:    r.DatasetID,
			Question:     r.Question,
			AnalysisType: r.AnalysisType,
			Period:       r.Period,
			CreatedAt:    r.CreatedAt,
		})
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.reports {
		if r.ID == id {
			out := r
			// Copy the table slice so callers cannot mutate stored state.
			out.Tables = append([]gateway.Table(nil), r.Tables...)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}
