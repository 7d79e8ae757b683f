package documents

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		docs: make(map[string]*Document),
	}
}

// Create stores a new document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := doc
	stored.QA = append([]QAEntry(nil), doc.QA...)
	r.docs[doc.ID] = &stored
	return nil
}

// GetByID returns a copy of the document.
func (r *MemoryRepo) GetByID(ctx context.Context, documentID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[documentID]
	if !ok {
		return Document{}, ErrNotFound
	}
	out := *doc
	out.QA = append([]QAEntry(nil), doc.QA...)
	return out, nil
}

// ListByUser returns the user's documents newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]ListItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]ListItem, 0)
	for _, doc := range r.docs {
		if doc.UserID != userID {
			continue
		}
		out = append(out, ListItem{
			ID:               doc.ID,
			OriginalFileName: doc.OriginalFileName,
			CreatedAt:        doc.CreatedAt,
			HasSummary:       doc.AI.Summary != nil,
			HasRisks:         doc.AI.Risks != nil,
			HasClauses:       doc.AI.Clauses != nil,
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes the document and its QA history.
func (r *MemoryRepo) Delete(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[documentID]; !ok {
		return ErrNotFound
	}
	delete(r.docs, documentID)
	return nil
}

// SetAIField stores value if the field is unset.
func (r *MemoryRepo) SetAIField(ctx context.Context, documentID string, kind Kind, value string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return "", false, err
	}
	if strings.TrimSpace(value) == "" {
		return "", false, ErrEmptyValue
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentID]
	if !ok {
		return "", false, ErrNotFound
	}
	if existing := doc.AI.Get(kind); existing != nil {
		return *existing, false, nil
	}
	v := value
	doc.AI.set(kind, &v)
	return value, true, nil
}

// AppendQA adds an entry to the end of the QA history.
func (r *MemoryRepo) AppendQA(ctx context.Context, documentID string, entry QAEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentID]
	if !ok {
		return ErrNotFound
	}
	doc.QA = append(doc.QA, entry)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
