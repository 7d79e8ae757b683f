package enrichment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"legaldoc-backend/internal/documents"
	"legaldoc-backend/internal/llm"
	"legaldoc-backend/internal/shared/metrics"
	"legaldoc-backend/internal/shared/telemetry"
)

// Stages turns document text into AI-derived fields with one model call per stage.
// The full text is sent as-is.
type Stages struct {
	LLM llm.Client
}

// Generate runs the stage for kind.
func (s *Stages) Generate(ctx context.Context, kind documents.Kind, text string) (string, error) {
	prompt, ok := stagePrompts[kind]
	if !ok {
		return "", documents.ErrInvalidKind
	}

	stage := string(kind)
	metrics.IncStageStarted(stage)
	start := time.Now()
	out, err := s.complete(ctx, llm.Request{
		System: prompt.system,
		User:   stageRequestText(prompt.task, text),
		Stage:  stage,
	})
	metrics.ObserveStageDurationMs(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.IncStageFailed(stage)
		return "", &EnrichmentError{Kind: stage, Err: err}
	}
	metrics.IncStageCompleted(stage)
	return out, nil
}

// Summarize produces the plain-language summary.
func (s *Stages) Summarize(ctx context.Context, text string) (string, error) {
	return s.Generate(ctx, documents.KindSummary, text)
}

// DetectRisks lists terms that could disadvantage the reader.
func (s *Stages) DetectRisks(ctx context.Context, text string) (string, error) {
	return s.Generate(ctx, documents.KindRisks, text)
}

// ExtractClauses lists key clauses and obligations.
func (s *Stages) ExtractClauses(ctx context.Context, text string) (string, error) {
	return s.Generate(ctx, documents.KindClauses, text)
}

// Answer asks a question about the document. Only a failed call is an error;
// a reply that does not parse becomes the answer verbatim.
func (s *Stages) Answer(ctx context.Context, text, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}

	metrics.IncStageStarted("qa")
	start := time.Now()
	raw, err := s.complete(ctx, llm.Request{
		System: qaSystemPrompt,
		User:   qaRequestText(text, question),
		JSON:   true,
		Stage:  "qa",
	})
	metrics.ObserveStageDurationMs(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.IncStageFailed("qa")
		return Answer{}, &EnrichmentError{Kind: "qa", Err: err}
	}
	metrics.IncStageCompleted("qa")
	return ParseAnswer(raw), nil
}

func (s *Stages) complete(ctx context.Context, req llm.Request) (string, error) {
	if s.LLM == nil {
		return "", llm.ErrNotImplemented
	}
	out, err := s.LLM.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	out = llm.Sanitize(out)
	if out == "" {
		telemetry.Warn("enrichment.empty_output", map[string]any{
			"request_id": telemetry.RequestIDFromContext(ctx),
			"stage":      req.Stage,
		})
		return "", fmt.Errorf("%s: %w", req.Stage, ErrEmptyOutput)
	}
	return out, nil
}
