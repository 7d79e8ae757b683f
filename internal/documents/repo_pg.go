package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    user_id,
    original_file_name,
    content_type,
    size_bytes,
    storage_key,
    text,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.UserID,
		doc.OriginalFileName,
		doc.ContentType,
		doc.SizeBytes,
		doc.StorageKey,
		doc.Text,
		doc.CreatedAt,
	)
	return err
}

// GetByID fetches a document with its QA history.
func (r *PGRepo) GetByID(ctx context.Context, documentID string) (Document, error) {
	const query = `
SELECT id, user_id, original_file_name, content_type, size_bytes, storage_key, text, ai_summary, ai_risks, ai_clauses, created_at
FROM documents
WHERE id = $1
LIMIT 1`
	var doc Document
	var summary, risks, clauses sql.NullString
	err := r.DB.QueryRowContext(ctx, query, documentID).Scan(
		&doc.ID,
		&doc.UserID,
		&doc.OriginalFileName,
		&doc.ContentType,
		&doc.SizeBytes,
		&doc.StorageKey,
		&doc.Text,
		&summary,
		&risks,
		&clauses,
		&doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	doc.AI = AIFields{
		Summary: nullableValue(summary),
		Risks:   nullableValue(risks),
		Clauses: nullableValue(clauses),
	}

	qa, err := r.listQA(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	doc.QA = qa
	return doc, nil
}

func (r *PGRepo) listQA(ctx context.Context, documentID string) ([]QAEntry, error) {
	const query = `
SELECT question, answer, confidence, created_at
FROM document_qa
WHERE document_id = $1
ORDER BY id ASC`
	rows, err := r.DB.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QAEntry
	for rows.Next() {
		var entry QAEntry
		var confidence sql.NullFloat64
		if err := rows.Scan(&entry.Question, &entry.Answer, &confidence, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if confidence.Valid {
			v := confidence.Float64
			entry.Confidence = &v
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// ListByUser lists a user's documents newest first without loading their text.
func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]ListItem, error) {
	const query = `
SELECT id, original_file_name, created_at,
       ai_summary IS NOT NULL, ai_risks IS NOT NULL, ai_clauses IS NOT NULL
FROM documents
WHERE user_id = $1
ORDER BY created_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ListItem, 0)
	for rows.Next() {
		var item ListItem
		if err := rows.Scan(
			&item.ID,
			&item.OriginalFileName,
			&item.CreatedAt,
			&item.HasSummary,
			&item.HasRisks,
			&item.HasClauses,
		); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// Delete removes the document; its QA rows go with it via ON DELETE CASCADE.
func (r *PGRepo) Delete(ctx context.Context, documentID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, documentID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAIField writes one AI column only while it is still NULL.
func (r *PGRepo) SetAIField(ctx context.Context, documentID string, kind Kind, value string) (string, bool, error) {
	column, err := aiColumn(kind)
	if err != nil {
		return "", false, err
	}
	if strings.TrimSpace(value) == "" {
		return "", false, ErrEmptyValue
	}

	update := fmt.Sprintf(`UPDATE documents SET %s = $1 WHERE id = $2 AND %s IS NULL`, column, column)
	res, err := r.DB.ExecContext(ctx, update, value, documentID)
	if err != nil {
		return "", false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if affected == 1 {
		return value, true, nil
	}

	var current sql.NullString
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, column)
	if err := r.DB.QueryRowContext(ctx, query, documentID).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, ErrNotFound
		}
		return "", false, err
	}
	if !current.Valid {
		return "", false, fmt.Errorf("set %s on document %s: no row updated", column, documentID)
	}
	return current.String, false, nil
}

// AppendQA inserts a QA row; the serial id keeps insertion order.
func (r *PGRepo) AppendQA(ctx context.Context, documentID string, entry QAEntry) error {
	const query = `
INSERT INTO document_qa (document_id, question, answer, confidence, created_at)
VALUES ($1, $2, $3, $4, $5)`
	var confidence sql.NullFloat64
	if entry.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *entry.Confidence, Valid: true}
	}
	_, err := r.DB.ExecContext(ctx, query, documentID, entry.Question, entry.Answer, confidence, entry.CreatedAt)
	return err
}

func aiColumn(kind Kind) (string, error) {
	switch kind {
	case KindSummary:
		return "ai_summary", nil
	case KindRisks:
		return "ai_risks", nil
	case KindClauses:
		return "ai_clauses", nil
	default:
		return "", ErrInvalidKind
	}
}

func nullableValue(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

var _ Repo = (*PGRepo)(nil)
