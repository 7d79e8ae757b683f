package enrichment

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"legaldoc-backend/internal/documents"
	"legaldoc-backend/internal/shared/telemetry"
)

// Service serves the on-demand AI routes.
type Service struct {
	Documents *documents.Service
	Stages    *Stages
	Now       func() time.Time
	// EnsureTimeout bounds a shared generation; zero means defaultEnsureTimeout.
	EnsureTimeout time.Duration

	group singleflight.Group
}

const defaultEnsureTimeout = 3 * time.Minute

// Ensure returns the kind field of an owned document, generating and persisting
// it first when it is still unset. The value returned is the persisted one, so a
// concurrent writer that got there first wins.
func (s *Service) Ensure(ctx context.Context, userID, documentID string, kind documents.Kind) (string, error) {
	if _, err := documents.ParseKind(string(kind)); err != nil {
		return "", err
	}
	doc, err := s.Documents.Owned(ctx, userID, documentID)
	if err != nil {
		return "", err
	}
	if value := doc.AI.Get(kind); value != nil {
		return *value, nil
	}

	// The flight outlives any one caller: a disconnecting client must not
	// cancel generation for the others joined on it.
	ch := s.group.DoChan(documentID+"|"+string(kind), func() (any, error) {
		flightCtx, cancel := context.WithTimeout(telemetry.Detach(ctx), s.ensureTimeout())
		defer cancel()
		return s.generate(flightCtx, documentID, kind)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return "", res.Err
	}
	if res.Shared {
		telemetry.Debug("enrichment.ensure.shared", map[string]any{
			"document_id": documentID,
			"ai_kind":     string(kind),
		})
	}
	return res.Val.(string), nil
}

func (s *Service) ensureTimeout() time.Duration {
	if s.EnsureTimeout > 0 {
		return s.EnsureTimeout
	}
	return defaultEnsureTimeout
}

func (s *Service) generate(ctx context.Context, documentID string, kind documents.Kind) (string, error) {
	repo := s.Documents.Repo
	// Re-read: the orchestrator may have finished between the check and the flight.
	doc, err := repo.GetByID(ctx, documentID)
	if err != nil {
		return "", err
	}
	if value := doc.AI.Get(kind); value != nil {
		return *value, nil
	}

	value, err := s.Stages.Generate(ctx, kind, doc.Text)
	if err != nil {
		return "", err
	}
	stored, written, err := repo.SetAIField(ctx, documentID, kind, value)
	if err != nil {
		return "", err
	}
	telemetry.Info("enrichment.ensure.generated", map[string]any{
		"request_id":  telemetry.RequestIDFromContext(ctx),
		"document_id": documentID,
		"ai_kind":     string(kind),
		"written":     written,
	})
	return stored, nil
}

// AskQuestion answers a question about an owned document and appends it to the QA history.
func (s *Service) AskQuestion(ctx context.Context, userID, documentID, question string) (documents.QAEntry, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return documents.QAEntry{}, ErrEmptyQuestion
	}
	doc, err := s.Documents.Owned(ctx, userID, documentID)
	if err != nil {
		return documents.QAEntry{}, err
	}

	answer, err := s.Stages.Answer(ctx, doc.Text, question)
	if err != nil {
		return documents.QAEntry{}, err
	}

	entry := documents.QAEntry{
		Question:   question,
		Answer:     answer.Text,
		Confidence: answer.Confidence,
		CreatedAt:  s.now(),
	}
	if err := s.Documents.Repo.AppendQA(ctx, doc.ID, entry); err != nil {
		return documents.QAEntry{}, err
	}
	return entry, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
