// Package conversation runs the turn protocol between the user and the data
// backend.
//
// A turn is one call to Send: it forwards the utterance, executes at most one
// round of queries the backend asks for, feeds the results back in a single
// follow-up call, and lands in a terminal outcome. The backend never gets a
// second chance to request queries within the same turn.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/askdata/askdata/internal/gateway"
	"github.com/askdata/askdata/internal/reports"
)

// Sentinel errors callers branch on with errors.Is.
var (
	// ErrBusy is returned by Send while a previous turn is still in flight.
	ErrBusy = errors.New("conversation turn already in flight")

	// ErrProtocol indicates the backend violated the turn protocol, such as
	// requesting a second query round or answering with a malformed variant.
	ErrProtocol = errors.New("chat protocol violation")
)

// State names the machine's position in a turn.
type State string

const (
	StateIdle                  State = "idle"
	StateAwaitingChat          State = "awaiting_chat_response"
	StateAwaitingClarification State = "awaiting_clarification"
	StateExecutingQueries      State = "executing_queries"
	StateAwaitingFollowup      State = "awaiting_followup_response"
	StateFinal                 State = "final"
	StateFailed                State = "failed"
)

// DataGateway is the slice of the gateway surface a turn needs.
type DataGateway interface {
	Chat(ctx context.Context, req gateway.ChatRequest) *gateway.ChatResponse
	ExecuteQueries(ctx context.Context, datasetID string, queries []gateway.NamedQuery) []gateway.Table
}

// Outcome is the terminal result of one turn.
type Outcome struct {
	State         State
	Clarification *gateway.Clarification
	Answer        *gateway.FinalAnswer
	ReportID      string
}

// Machine drives one conversation against one dataset. The conversation id is
// stable for the machine's lifetime and sent with every chat call.
type Machine struct {
	id        string
	datasetID string
	gw        DataGateway
	recorder  *reports.Recorder
	log       *slog.Logger

	mu    sync.Mutex
	busy  bool
	state State
}

// New creates an idle machine for the given dataset. recorder may be nil, in
// which case final answers are not persisted.
func New(datasetID string, gw DataGateway, recorder *reports.Recorder, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		id:        uuid.New().String(),
		datasetID: datasetID,
		gw:        gw,
		recorder:  recorder,
		log:       log,
		state:     StateIdle,
	}
}

// ID returns the stable conversation id.
func (m *Machine) ID() string {
	return m.id
}

// DatasetID returns the dataset this conversation analyzes.
func (m *Machine) DatasetID() string {
	return m.datasetID
}

// State returns the current machine state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Busy reports whether a turn is in flight.
func (m *Machine) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Send runs one full turn for the given message. A clarification reply goes
// through the same path: the caller sends the user's answer as the next
// message. The gateway calls within a turn are strictly sequential and the
// turn is never cancelled midway; ctx applies to the individual calls.
func (m *Machine) Send(ctx context.Context, message string) (*Outcome, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	m.busy = true
	m.state = StateAwaitingChat
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.busy = false
		m.mu.Unlock()
	}()

	resp := m.gw.Chat(ctx, gateway.ChatRequest{
		DatasetID:      m.datasetID,
		ConversationID: m.id,
		Message:        message,
	})
	if resp == nil {
		m.setState(StateFailed)
		return &Outcome{State: StateFailed}, errors.New("no chat response from backend")
	}
	if err := resp.Validate(); err != nil {
		m.setState(StateFailed)
		return &Outcome{State: StateFailed}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	switch resp.Type {
	case gateway.VariantClarification:
		m.setState(StateAwaitingClarification)
		return &Outcome{State: StateAwaitingClarification, Clarification: resp.Clarification}, nil

	case gateway.VariantFinalAnswer:
		return m.finish(ctx, message, resp.Answer), nil

	case gateway.VariantRunQueries:
		return m.runQueryRound(ctx, message, resp.RunQueries)
	}

	// Validate guarantees a known tag; this is unreachable.
	m.setState(StateFailed)
	return &Outcome{State: StateFailed}, fmt.Errorf("%w: unknown variant %q", ErrProtocol, resp.Type)
}

// runQueryRound executes the backend's requested queries and makes the single
// follow-up chat call carrying the results.
func (m *Machine) runQueryRound(ctx context.Context, message string, queries []gateway.NamedQuery) (*Outcome, error) {
	m.setState(StateExecutingQueries)

	results := m.gw.ExecuteQueries(ctx, m.datasetID, queries)
	if results == nil {
		m.setState(StateFailed)
		return &Outcome{State: StateFailed}, errors.New("query execution failed")
	}

	m.setState(StateAwaitingFollowup)
	followup := m.gw.Chat(ctx, gateway.ChatRequest{
		DatasetID:      m.datasetID,
		ConversationID: m.id,
		Message:        message,
		Results:        results,
	})
	if followup == nil {
		m.setState(StateFailed)
		return &Outcome{State: StateFailed}, errors.New("no follow-up response from backend")
	}
	if err := followup.Validate(); err != nil {
		m.setState(StateFailed)
		return &Outcome{State: StateFailed}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	switch followup.Type {
	case gateway.VariantFinalAnswer:
		return m.finish(ctx, message, followup.Answer), nil

	case gateway.VariantClarification:
		m.setState(StateAwaitingClarification)
		return &Outcome{State: StateAwaitingClarification, Clarification: followup.Clarification}, nil

	default:
		// One query round per turn. A second run_queries is refused without
		// another chat call.
		m.setState(StateFailed)
		return &Outcome{State: StateFailed}, fmt.Errorf("%w: backend requested a second query round", ErrProtocol)
	}
}

// finish lands the turn on a final answer and hands it to the recorder.
func (m *Machine) finish(ctx context.Context, question string, answer *gateway.FinalAnswer) *Outcome {
	m.setState(StateFinal)
	out := &Outcome{State: StateFinal, Answer: answer}
	if m.recorder != nil {
		out.ReportID = m.recorder.Record(ctx, m.datasetID, m.id, question, answer)
	}
	return out
}
