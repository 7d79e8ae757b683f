package enrichment

import (
	"context"
	"fmt"
	"time"

	"legaldoc-backend/internal/documents"
	"legaldoc-backend/internal/shared/telemetry"
)

// Generator produces one AI field from document text.
type Generator interface {
	Generate(ctx context.Context, kind documents.Kind, text string) (string, error)
}

// Orchestrator fills the missing AI fields of a document in a fixed order,
// persisting each one as soon as it is produced.
type Orchestrator struct {
	Repo      documents.Repo
	Generator Generator
}

// Run processes summary, then risks, then clauses. A failed stage is logged and
// skipped; the remaining stages still run. Only loading the document can fail the run.
func (o *Orchestrator) Run(ctx context.Context, documentID string) error {
	doc, err := o.Repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}

	start := time.Now()
	produced := 0
	for _, kind := range documents.AIKinds {
		if doc.AI.Get(kind) != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if o.runStage(ctx, doc, kind) {
			produced++
		}
	}

	telemetry.Info("enrichment.run.completed", map[string]any{
		"request_id":  telemetry.RequestIDFromContext(ctx),
		"document_id": documentID,
		"produced":    produced,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

func (o *Orchestrator) runStage(ctx context.Context, doc documents.Document, kind documents.Kind) bool {
	fields := map[string]any{
		"request_id":  telemetry.RequestIDFromContext(ctx),
		"document_id": doc.ID,
		"ai_kind":     string(kind),
	}

	value, err := o.Generator.Generate(ctx, kind, doc.Text)
	if err != nil {
		fields["err"] = err
		telemetry.Error("enrichment.stage.failed", fields)
		return false
	}

	_, written, err := o.Repo.SetAIField(ctx, doc.ID, kind, value)
	if err != nil {
		fields["err"] = err
		telemetry.Error("enrichment.stage.persist_failed", fields)
		return false
	}
	if !written {
		telemetry.Info("enrichment.stage.already_set", fields)
		return false
	}
	telemetry.Debug("enrichment.stage.persisted", fields)
	return true
}
