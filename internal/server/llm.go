package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/askdata/askdata/internal/gateway"
)

// Synthesizer rewrites answer summaries through a local LLM.
type Synthesizer struct {
	llm       llms.Model
	modelName string
}

// NewSynthesizer creates an Ollama-backed synthesizer.
func NewSynthesizer(host, model string) (*Synthesizer, error) {
	m, err := ollama.New(
		ollama.WithModel(model),
		ollama.WithServerURL(host),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	return &Synthesizer{llm: m, modelName: model}, nil
}

// Model returns the LLM model name.
func (s *Synthesizer) Model() string {
	return s.modelName
}

// Summarize produces a short narrative over the result tables. The caller
// keeps its deterministic summary when this fails.
func (s *Synthesizer) Summarize(ctx context.Context, question string, tables []gateway.Table) (string, error) {
	systemPrompt := `You are a data analyst. Summarize the result tables to answer the user's question.
Base the summary ONLY on the numbers in the tables. Be concise: two or three sentences, no preamble.`

	userPrompt := fmt.Sprintf(`Question: %s

Result tables:
%s

Summary:`, question, renderTables(tables))

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	response, err := s.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return strings.TrimSpace(response.Choices[0].Content), nil
}

// renderTables flattens result tables into prompt text.
func renderTables(tables []gateway.Table) string {
	var b strings.Builder
	for _, t := range tables {
		fmt.Fprintf(&b, "## %s\n", t.Name)
		fmt.Fprintf(&b, "%s\n", strings.Join(t.Columns, " | "))
		for _, row := range t.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = fmt.Sprint(v)
			}
			fmt.Fprintf(&b, "%s\n", strings.Join(cells, " | "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
