package documents

import (
	"strings"
	"time"
)

// Kind names one AI-derived field of a document.
type Kind string

const (
	KindSummary Kind = "summary"
	KindRisks   Kind = "risks"
	KindClauses Kind = "clauses"
)

// AIKinds lists the enrichment fields in the order they are generated.
var AIKinds = []Kind{KindSummary, KindRisks, KindClauses}

// ParseKind validates a kind coming from a route or a message.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindSummary:
		return KindSummary, nil
	case KindRisks:
		return KindRisks, nil
	case KindClauses:
		return KindClauses, nil
	default:
		return "", ErrInvalidKind
	}
}

// AIFields holds the derived results. A nil field has not been generated yet;
// once set it never changes.
type AIFields struct {
	Summary *string
	Risks   *string
	Clauses *string
}

// Get returns the field for kind.
func (a AIFields) Get(kind Kind) *string {
	switch kind {
	case KindSummary:
		return a.Summary
	case KindRisks:
		return a.Risks
	case KindClauses:
		return a.Clauses
	default:
		return nil
	}
}

func (a *AIFields) set(kind Kind, value *string) {
	switch kind {
	case KindSummary:
		a.Summary = value
	case KindRisks:
		a.Risks = value
	case KindClauses:
		a.Clauses = value
	}
}

// Complete reports whether every field has been generated.
func (a AIFields) Complete() bool {
	for _, kind := range AIKinds {
		if a.Get(kind) == nil {
			return false
		}
	}
	return true
}

// QAEntry is one answered question. Entries are append-only.
type QAEntry struct {
	Question   string
	Answer     string
	Confidence *float64
	CreatedAt  time.Time
}

// Document represents an uploaded PDF owned by exactly one user.
type Document struct {
	ID               string
	UserID           string
	OriginalFileName string
	ContentType      string
	SizeBytes        int64
	StorageKey       string
	Text             string
	AI               AIFields
	QA               []QAEntry
	CreatedAt        time.Time
}

// ListItem is the lightweight row used by document listings.
type ListItem struct {
	ID               string
	OriginalFileName string
	CreatedAt        time.Time
	HasSummary       bool
	HasRisks         bool
	HasClauses       bool
}
