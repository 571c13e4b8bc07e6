package reports

import (
	"context"
	"log/slog"

	"github.com/askdata/askdata/internal/diag"
	"github.com/askdata/askdata/internal/flags"
	"github.com/askdata/askdata/internal/gateway"
)

const diagCategory = "reports"

// Recorder turns a completed analysis into a durable report. Persistence
// failures are logged as warnings and never surface to the caller: losing a
// report must not fail the turn that produced it.
type Recorder struct {
	store Store
	flags *flags.Store
	diag  *diag.Recorder
	log   *slog.Logger
}

// NewRecorder builds a recorder over the given store.
func NewRecorder(store Store, fl *flags.Store, d *diag.Recorder, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{store: store, flags: fl, diag: d, log: log}
}

// Record persists a final answer together with the question that produced it
// and a snapshot of the mode flags in effect. Returns the stored report id,
// or "" when persistence failed.
func (r *Recorder) Record(ctx context.Context, datasetID, conversationID, question string, answer *gateway.FinalAnswer) string {
	if answer == nil {
		return ""
	}

	snapshot := make(map[string]bool, len(flags.All))
	for _, f := range flags.All {
		snapshot[string(f)] = r.flags.Bool(f)
	}

	id, err := r.store.Create(ctx, Report{
		DatasetID:      datasetID,
		ConversationID: conversationID,
		Question:       question,
		AnalysisType:   answer.AnalysisType,
		Period:         answer.Period,
		Summary:        answer.Summary,
		Tables:         answer.Tables,
		Audit:          answer.Audit,
		ModeFlags:      snapshot,
	})
	if err != nil {
		r.diag.Record(diag.SeverityWarning, diagCategory, "could not save report", err.Error())
		r.log.Warn("report not saved", "dataset", datasetID, "error", err)
		return ""
	}

	r.diag.Record(diag.SeveritySuccess, diagCategory, "report saved", id)
	return id
}
