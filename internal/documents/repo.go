package documents

import "context"

// Repo defines persistence operations for documents.
//
// AI fields are written one at a time with SetAIField, never by rewriting the
// whole record, so concurrent writers for different kinds cannot clobber each other.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, documentID string) (Document, error)
	ListByUser(ctx context.Context, userID string) ([]ListItem, error)
	Delete(ctx context.Context, documentID string) error
	// SetAIField stores value only if the field is still unset. It returns the
	// value held after the call and whether this call wrote it.
	SetAIField(ctx context.Context, documentID string, kind Kind, value string) (stored string, written bool, err error)
	AppendQA(ctx context.Context, documentID string, entry QAEntry) error
}
