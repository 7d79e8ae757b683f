// Package poller watches a document until its AI fields are all generated.
package poller

import (
	"context"
	"time"

	"legaldoc-backend/internal/client"
	"legaldoc-backend/internal/shared/telemetry"
)

const DefaultInterval = 2 * time.Second

var kinds = []string{"summary", "risks", "clauses"}

// Fetcher reads one persisted AI field; nil means still pending.
type Fetcher interface {
	GetAIField(ctx context.Context, documentID, kind string) (*string, error)
}

// Poller fetches pending fields once per interval and merges what resolves.
type Poller struct {
	Fetcher  Fetcher
	Interval time.Duration
	// OnUpdate is called with the merged state whenever a field resolves.
	OnUpdate func(client.AI)
}

// Watch polls until every field is resolved or ctx ends. A failed fetch is
// logged and retried on the next tick. The ticker never outlives Watch.
func (p *Poller) Watch(ctx context.Context, documentID string, state client.AI) (client.AI, error) {
	if resolved(state) {
		return state, nil
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-ticker.C:
		}

		changed := false
		for _, kind := range kinds {
			slot := field(&state, kind)
			if *slot != nil {
				continue
			}
			value, err := p.Fetcher.GetAIField(ctx, documentID, kind)
			if err != nil {
				if ctx.Err() != nil {
					return state, ctx.Err()
				}
				telemetry.Warn("poller.fetch_failed", map[string]any{
					"document_id": documentID,
					"ai_kind":     kind,
					"err":         err,
				})
				continue
			}
			if value != nil {
				*slot = value
				changed = true
			}
		}

		if changed && p.OnUpdate != nil {
			p.OnUpdate(state)
		}
		if resolved(state) {
			return state, nil
		}
	}
}

func field(ai *client.AI, kind string) **string {
	switch kind {
	case "summary":
		return &ai.Summary
	case "risks":
		return &ai.Risks
	default:
		return &ai.Clauses
	}
}

func resolved(ai client.AI) bool {
	return ai.Summary != nil && ai.Risks != nil && ai.Clauses != nil
}
