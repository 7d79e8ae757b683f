package enrichment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legaldoc-backend/internal/documents"
)

func TestEnsureIsIdempotentAfterOrchestration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.orch.Run(ctx, f.document.ID))

	value, err := f.docs.AIField(ctx, "owner", f.document.ID, documents.KindSummary)
	require.NoError(t, err)
	require.NotNil(t, value)

	got, err := f.svc.Ensure(ctx, "owner", f.document.ID, documents.KindSummary)
	require.NoError(t, err)
	assert.Equal(t, *value, got)
	assert.Equal(t, 1, f.llm.CountStage("summary"))
}

func TestEnsureGeneratesAndPersistsMissingField(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.Ensure(ctx, "owner", f.document.ID, documents.KindClauses)
	require.NoError(t, err)
	assert.Equal(t, f.llm.replies["clauses"], got)

	doc, err := f.repo.GetByID(ctx, f.document.ID)
	require.NoError(t, err)
	require.NotNil(t, doc.AI.Clauses)
	assert.Nil(t, doc.AI.Summary)
}

func TestEnsureOwnershipAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Ensure(ctx, "intruder", f.document.ID, documents.KindSummary)
	assert.ErrorIs(t, err, documents.ErrForbidden)

	_, err = f.svc.Ensure(ctx, "owner", "missing", documents.KindSummary)
	assert.ErrorIs(t, err, documents.ErrNotFound)

	_, err = f.svc.Ensure(ctx, "owner", f.document.ID, documents.Kind("verdict"))
	assert.ErrorIs(t, err, documents.ErrInvalidKind)

	assert.Empty(t, f.llm.Calls())
}

func TestEnsureReturnsEnrichmentErrorAndLeavesFieldUnset(t *testing.T) {
	f := newFixture(t)
	f.llm.fail["risks"] = errModelDown
	ctx := context.Background()

	_, err := f.svc.Ensure(ctx, "owner", f.document.ID, documents.KindRisks)
	var enrichErr *EnrichmentError
	require.True(t, errors.As(err, &enrichErr))
	assert.Equal(t, "risks", enrichErr.Kind)
	assert.ErrorIs(t, err, errModelDown)

	doc, err := f.repo.GetByID(ctx, f.document.ID)
	require.NoError(t, err)
	assert.Nil(t, doc.AI.Risks)
}

func TestEnsureConcurrentWithOrchestratorKeepsSiblings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = f.orch.Run(ctx, f.document.ID)
	}()
	var ensured string
	var ensureErr error
	go func() {
		defer wg.Done()
		ensured, ensureErr = f.svc.Ensure(ctx, "owner", f.document.ID, documents.KindRisks)
	}()
	wg.Wait()

	require.NoError(t, ensureErr)
	doc, err := f.repo.GetByID(ctx, f.document.ID)
	require.NoError(t, err)
	require.True(t, doc.AI.Complete(), "no field may be erased by a concurrent writer")
	assert.Equal(t, *doc.AI.Risks, ensured)
}

func TestEnsureCollapsesConcurrentCalls(t *testing.T) {
	f := newFixture(t)
	f.llm.gate = make(chan struct{})
	ctx := context.Background()

	const callers = 5
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = f.svc.Ensure(ctx, "owner", f.document.ID, documents.KindSummary)
		}(i)
	}
	require.Eventually(t, func() bool { return f.llm.CountStage("summary") >= 1 }, timeout, tick)
	close(f.llm.gate)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, f.llm.replies["summary"], r)
	}
	assert.Equal(t, 1, f.llm.CountStage("summary"))
}

func TestAskQuestionAppendsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.svc.AskQuestion(ctx, "owner", f.document.ID, "  What is the notice period?  ")
	require.NoError(t, err)
	assert.Equal(t, "What is the notice period?", entry.Question)
	assert.Equal(t, "The notice period is 30 days.", entry.Answer)
	require.NotNil(t, entry.Confidence)
	assert.InDelta(t, 0.9, *entry.Confidence, 1e-9)

	f.llm.replies["qa"] = "I recommend consulting a lawyer for this matter."
	_, err = f.svc.AskQuestion(ctx, "owner", f.document.ID, "Can I sublet?")
	require.NoError(t, err)

	doc, err := f.repo.GetByID(ctx, f.document.ID)
	require.NoError(t, err)
	require.Len(t, doc.QA, 2)
	assert.Equal(t, "What is the notice period?", doc.QA[0].Question)
	assert.Equal(t, "Can I sublet?", doc.QA[1].Question)
	assert.Nil(t, doc.QA[1].Confidence)
}

func TestAskQuestionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AskQuestion(ctx, "owner", f.document.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = f.svc.AskQuestion(ctx, "intruder", f.document.ID, "Who signs?")
	assert.ErrorIs(t, err, documents.ErrForbidden)

	assert.Empty(t, f.llm.Calls())
}

func TestEnsureSurvivesFirstCallerCancelling(t *testing.T) {
	f := newFixture(t)
	f.llm.gate = make(chan struct{})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.svc.Ensure(firstCtx, "owner", f.document.ID, documents.KindSummary)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return f.llm.CountStage("summary") >= 1 }, timeout, tick)

	secondVal := make(chan string, 1)
	go func() {
		v, err := f.svc.Ensure(context.Background(), "owner", f.document.ID, documents.KindSummary)
		assert.NoError(t, err)
		secondVal <- v
	}()

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(f.llm.gate)
	assert.Equal(t, f.llm.replies["summary"], <-secondVal)
	assert.Equal(t, 1, f.llm.CountStage("summary"))

	doc, err := f.repo.GetByID(context.Background(), f.document.ID)
	require.NoError(t, err)
	require.NotNil(t, doc.AI.Summary)
}
