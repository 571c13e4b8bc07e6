package gateway

import (
	"context"
	"strings"
	"testing"
)

func TestMockChatDefaultsToClarification(t *testing.T) {
	m := NewMockSource()

	resp, err := m.Chat(context.Background(), ChatRequest{
		DatasetID:      "ds_orders",
		ConversationID: "conv-1",
		Message:        "Show me total sales",
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if err := resp.Validate(); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Type != VariantClarification {
		t.Fatalf("variant = %q, want %q", resp.Type, VariantClarification)
	}

	c := resp.Clarification
	if c.Question != "What time period would you like to analyze?" {
		t.Errorf("question = %q", c.Question)
	}
	if len(c.Choices) != 4 {
		t.Errorf("got %d choices, want 4", len(c.Choices))
	}
	if !c.AllowFreeText {
		t.Error("free text should be allowed")
	}
}

func TestMockChatTrendRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMockSource()

	// First call: a trend question yields exactly two named queries.
	resp, err := m.Chat(ctx, ChatRequest{
		DatasetID:      "ds_orders",
		ConversationID: "conv-1",
		Message:        "How did revenue trend this year?",
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Type != VariantRunQueries {
		t.Fatalf("variant = %q, want %q", resp.Type, VariantRunQueries)
	}
	if len(resp.RunQueries) != 2 {
		t.Fatalf("got %d queries, want 2", len(resp.RunQueries))
	}

	// Executing them yields two named result sets with six rows each.
	results, err := m.ExecuteQueries(ctx, "ds_orders", resp.RunQueries)
	if err != nil {
		t.Fatalf("ExecuteQueries: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d result sets, want 2", len(results))
	}
	for i, r := range results {
		if r.Name != resp.RunQueries[i].Name {
			t.Errorf("result %d named %q, want %q", i, r.Name, resp.RunQueries[i].Name)
		}
		if len(r.Rows) != 6 {
			t.Errorf("result %q has %d rows, want 6", r.Name, len(r.Rows))
		}
	}

	// Feeding the results back yields a final answer over those tables.
	followup, err := m.Chat(ctx, ChatRequest{
		DatasetID:      "ds_orders",
		ConversationID: "conv-1",
		Message:        "How did revenue trend this year?",
		Results:        results,
	})
	if err != nil {
		t.Fatalf("followup Chat: %v", err)
	}
	if followup.Type != VariantFinalAnswer {
		t.Fatalf("followup variant = %q, want %q", followup.Type, VariantFinalAnswer)
	}
	ans := followup.Answer
	if len(ans.Tables) != 2 {
		t.Errorf("answer carries %d tables, want 2", len(ans.Tables))
	}
	if len(ans.Audit.DisclosedTables) != 2 {
		t.Errorf("audit discloses %d tables, want 2", len(ans.Audit.DisclosedTables))
	}
	if ans.Audit.RowCounts["monthly_revenue"] != 6 {
		t.Errorf("audit row count = %d, want 6", ans.Audit.RowCounts["monthly_revenue"])
	}
	if ans.AnalysisType != "trend" {
		t.Errorf("analysis type = %q", ans.AnalysisType)
	}
}

func TestMockChatCategoryAnswersDirectly(t *testing.T) {
	m := NewMockSource()

	resp, err := m.Chat(context.Background(), ChatRequest{
		DatasetID: "ds_orders",
		Message:   "Give me a breakdown by category",
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Type != VariantFinalAnswer {
		t.Fatalf("variant = %q, want %q", resp.Type, VariantFinalAnswer)
	}
	if len(resp.Answer.Tables) != 1 || resp.Answer.Tables[0].Name != "category_breakdown" {
		t.Errorf("unexpected answer tables: %+v", resp.Answer.Tables)
	}
	if !strings.Contains(resp.Answer.Summary, "Electronics") {
		t.Errorf("summary missing expected content: %q", resp.Answer.Summary)
	}
}

func TestMockListAndRegisterDatasets(t *testing.T) {
	ctx := context.Background()
	m := NewMockSource()

	base, err := m.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	if len(base) != 2 {
		t.Fatalf("seed datasets = %d, want 2", len(base))
	}

	ds, err := m.RegisterDataset(ctx, "inventory")
	if err != nil {
		t.Fatalf("RegisterDataset: %v", err)
	}
	if ds.Status != DatasetRegistered {
		t.Errorf("new dataset status = %q", ds.Status)
	}

	job, err := m.TriggerIngest(ctx, ds.ID)
	if err != nil {
		t.Fatalf("TriggerIngest: %v", err)
	}
	if job.Status != JobDone || job.FinishedAt == nil {
		t.Errorf("mock ingest should complete immediately: %+v", job)
	}

	after, err := m.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	for _, d := range after {
		if d.ID == ds.ID && d.Status != DatasetReady {
			t.Errorf("ingested dataset status = %q, want %q", d.Status, DatasetReady)
		}
	}
}

func TestMockCatalog(t *testing.T) {
	m := NewMockSource()

	cat, err := m.Catalog(context.Background(), "ds_orders")
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if len(cat.Tables) != 2 {
		t.Fatalf("got %d tables, want 2", len(cat.Tables))
	}
	if cat.Tables[0].Name != "orders" || len(cat.Tables[0].Columns) != 5 {
		t.Errorf("unexpected first table: %+v", cat.Tables[0])
	}
}

func TestChatResponseValidate(t *testing.T) {
	tests := []struct {
		name    string
		resp    ChatResponse
		wantErr bool
	}{
		{
			name: "valid clarification",
			resp: ChatResponse{Type: VariantClarification, Clarification: &Clarification{Question: "q"}},
		},
		{
			name: "valid run queries",
			resp: ChatResponse{Type: VariantRunQueries, RunQueries: []NamedQuery{{Name: "a"}}},
		},
		{
			name: "valid final answer",
			resp: ChatResponse{Type: VariantFinalAnswer, Answer: &FinalAnswer{Summary: "s"}},
		},
		{
			name:    "missing tag",
			resp:    ChatResponse{Answer: &FinalAnswer{}},
			wantErr: true,
		},
		{
			name:    "unknown tag",
			resp:    ChatResponse{Type: "surprise"},
			wantErr: true,
		},
		{
			name:    "tag without variant",
			resp:    ChatResponse{Type: VariantRunQueries},
			wantErr: true,
		},
		{
			name: "two variants populated",
			resp: ChatResponse{
				Type:          VariantClarification,
				Clarification: &Clarification{Question: "q"},
				Answer:        &FinalAnswer{},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.resp.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
