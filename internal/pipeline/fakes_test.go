package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"clinical-decision-agent/internal/agent"
	"clinical-decision-agent/internal/knowledge"
	"clinical-decision-agent/internal/patient"
	"clinical-decision-agent/internal/safety"
)

type fakeStore struct {
	profiles map[string]*patient.Profile
	err      error
}

func (f *fakeStore) Lookup(ctx context.Context, id string) (*patient.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type fakeSearcher struct {
	text    string
	err     error
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string, maxResults int) (string, error) {
	f.queries = append(f.queries, query)
	return f.text, f.err
}

// fakeCompleter answers by system prompt so one instance can serve both the
// research and the safety stage.
type fakeCompleter struct {
	mu       sync.Mutex
	research func(ctx context.Context, req agent.CompletionRequest) (string, error)
	safety   func(ctx context.Context, req agent.CompletionRequest) (string, error)
	requests []agent.CompletionRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, req agent.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	handler := f.research
	if req.System == safety.SystemPrompt {
		handler = f.safety
	}
	if handler == nil {
		return "", agent.ErrCompletion
	}
	return handler(ctx, req)
}

func (f *fakeCompleter) last() agent.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func reply(text string) func(context.Context, agent.CompletionRequest) (string, error) {
	return func(context.Context, agent.CompletionRequest) (string, error) { return text, nil }
}

func fail(err error) func(context.Context, agent.CompletionRequest) (string, error) {
	return func(context.Context, agent.CompletionRequest) (string, error) { return "", err }
}

func blockUntilDone(ctx context.Context, _ agent.CompletionRequest) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type fakeInteractions struct {
	groups map[string][]agent.InteractionGroup
	err    error
}

func (f *fakeInteractions) InteractionsFor(ctx context.Context, drug string) ([]agent.InteractionGroup, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.groups[drug], nil
}

func testTables(t *testing.T) *knowledge.Tables {
	t.Helper()
	tables, err := knowledge.Default()
	require.NoError(t, err)
	return tables
}

type harness struct {
	store        *fakeStore
	searcher     *fakeSearcher
	completer    *fakeCompleter
	interactions InteractionSource
	timeout      time.Duration
}

func (h *harness) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	logger := zaptest.NewLogger(t)
	tables := testTables(t)
	timeout := h.timeout
	if timeout == 0 {
		timeout = time.Second
	}
	return NewOrchestrator(
		NewPersonalizationStage(h.store, timeout, logger),
		NewResearchStage(h.searcher, h.completer, tables, "research-model", timeout, logger),
		NewSafetyStage(safety.NewEngine(tables), h.completer, h.interactions, "safety-model", timeout, logger),
		logger,
	)
}

func ckdPatient() *patient.Profile {
	return &patient.Profile{
		Name:        "Ramesh Kumar",
		Age:         67,
		Gender:      "Male",
		Conditions:  []string{"Chronic Kidney Disease"},
		Medications: []string{},
		Allergies:   []string{},
		Vitals:      map[string]any{"creatinine": 2.1, "eGFR": 28},
	}
}
