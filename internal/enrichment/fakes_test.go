package enrichment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"legaldoc-backend/internal/documents"
	"legaldoc-backend/internal/llm"
	"legaldoc-backend/internal/shared/storage/object/local"
)

// fakeLLM answers by stage and records every call.
type fakeLLM struct {
	mu      sync.Mutex
	calls   []string
	replies map[string]string
	fail    map[string]error
	gate    chan struct{}
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		replies: map[string]string{
			"summary": "A twelve month residential lease.",
			"risks":   "- Automatic renewal\n- Early termination fee",
			"clauses": "Term:\n- 12 months\nRent:\n- $1,500 monthly",
			"qa":      `{"answer":"The notice period is 30 days.","confidence":0.9}`,
		},
		fail: map[string]error{},
	}
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Stage)
	gate := f.gate
	reply, failErr := f.replies[req.Stage], f.fail[req.Stage]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if failErr != nil {
		return "", failErr
	}
	return reply, nil
}

func (f *fakeLLM) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeLLM) CountStage(stage string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == stage {
			n++
		}
	}
	return n
}

var errModelDown = errors.New("model unavailable")

type fixture struct {
	llm      *fakeLLM
	repo     *documents.MemoryRepo
	docs     *documents.Service
	stages   *Stages
	orch     *Orchestrator
	svc      *Service
	document documents.Document
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := newFakeLLM()
	repo := documents.NewMemoryRepo()
	docs := &documents.Service{
		Store:   local.New(t.TempDir()),
		Repo:    repo,
		Extract: func([]byte) (string, error) { return "Lease agreement text.", nil },
	}
	stages := &Stages{LLM: fake}
	f := &fixture{
		llm:    fake,
		repo:   repo,
		docs:   docs,
		stages: stages,
		orch:   &Orchestrator{Repo: repo, Generator: stages},
		svc:    &Service{Documents: docs, Stages: stages, Now: func() time.Time { return time.Unix(1700000000, 0) }},
	}
	doc, err := docs.Upload(context.Background(), "owner", "contract.pdf", []byte("%PDF-1.7 contract"))
	require.NoError(t, err)
	f.document = doc
	return f
}
