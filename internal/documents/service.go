package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"legaldoc-backend/internal/extract"
	"legaldoc-backend/internal/shared/metrics"
	"legaldoc-backend/internal/shared/storage/object"
	"legaldoc-backend/internal/shared/telemetry"
)

const defaultMaxUploadBytes = 20 << 20

// Dispatcher hands a freshly created document to the background enrichment pipeline.
// Dispatch must return without waiting for the pipeline to run.
type Dispatcher interface {
	Dispatch(ctx context.Context, documentID string) error
}

// Service contains business logic for documents.
type Service struct {
	Store          object.ObjectStore
	Repo           Repo
	Dispatcher     Dispatcher
	MaxUploadBytes int64
	Now            func() time.Time
	// Extract defaults to extract.PDFText.
	Extract func(data []byte) (string, error)
}

// Upload validates and extracts the PDF, stores its bytes, records the
// document and schedules enrichment. AI fields start unset.
func (s *Service) Upload(ctx context.Context, userID, fileName string, data []byte) (Document, error) {
	fileName = strings.TrimSpace(fileName)
	if userID == "" || fileName == "" {
		return Document{}, ErrInvalidInput
	}
	if int64(len(data)) > s.maxUploadBytes() {
		return Document{}, ErrTooLarge
	}
	if !extract.IsPDF(data) {
		return Document{}, ErrNotPDF
	}

	text, err := s.extract(data)
	if err != nil {
		return Document{}, err
	}

	storageKey, err := object.NewKey(userID, fileName)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	size, err := s.Store.Put(ctx, storageKey, "application/pdf", bytes.NewReader(data))
	if err != nil {
		return Document{}, fmt.Errorf("store document bytes: %w", err)
	}

	doc := Document{
		ID:               uuid.NewString(),
		UserID:           userID,
		OriginalFileName: fileName,
		ContentType:      "application/pdf",
		SizeBytes:        size,
		StorageKey:       storageKey,
		Text:             text,
		CreatedAt:        s.now(),
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		if delErr := s.Store.Delete(telemetry.Detach(ctx), storageKey); delErr != nil {
			telemetry.Warn("document.cleanup.failed", map[string]any{"storage_key": storageKey, "err": delErr})
		}
		return Document{}, fmt.Errorf("create document: %w", err)
	}
	metrics.IncDocumentsUploaded()

	telemetry.Info("document.uploaded", map[string]any{
		"request_id":  telemetry.RequestIDFromContext(ctx),
		"document_id": doc.ID,
		"user_id":     userID,
		"size_bytes":  size,
		"text_chars":  len(text),
	})

	if s.Dispatcher != nil {
		if err := s.Dispatcher.Dispatch(ctx, doc.ID); err != nil {
			// Fields stay unset and can still be produced on demand.
			telemetry.Error("enrichment.dispatch.failed", map[string]any{
				"request_id":  telemetry.RequestIDFromContext(ctx),
				"document_id": doc.ID,
				"err":         err,
			})
		}
	}
	return doc, nil
}

// List returns the user's documents newest first.
func (s *Service) List(ctx context.Context, userID string) ([]ListItem, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userID)
}

// Owned loads a document and checks that userID owns it.
// It returns ErrNotFound for unknown ids and ErrForbidden for someone else's document.
func (s *Service) Owned(ctx context.Context, userID, documentID string) (Document, error) {
	if strings.TrimSpace(documentID) == "" {
		return Document{}, ErrInvalidInput
	}
	doc, err := s.Repo.GetByID(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	if doc.UserID != userID {
		return Document{}, ErrForbidden
	}
	return doc, nil
}

// Delete removes the document, its QA history and its stored bytes.
func (s *Service) Delete(ctx context.Context, userID, documentID string) error {
	doc, err := s.Owned(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, doc.ID); err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, doc.StorageKey); err != nil {
		telemetry.Warn("document.object.delete_failed", map[string]any{
			"document_id": doc.ID,
			"storage_key": doc.StorageKey,
			"err":         err,
		})
	}
	return nil
}

// AIField returns the persisted value of one AI field without generating it.
func (s *Service) AIField(ctx context.Context, userID, documentID string, kind Kind) (*string, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	doc, err := s.Owned(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	return doc.AI.Get(kind), nil
}

// OpenFile returns the original PDF bytes of an owned document.
func (s *Service) OpenFile(ctx context.Context, userID, documentID string) (Document, io.ReadCloser, error) {
	doc, err := s.Owned(ctx, userID, documentID)
	if err != nil {
		return Document{}, nil, err
	}
	rc, err := s.Store.Open(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Document{}, nil, ErrNotFound
		}
		return Document{}, nil, err
	}
	return doc, rc, nil
}

func (s *Service) maxUploadBytes() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}

func (s *Service) extract(data []byte) (string, error) {
	if s.Extract != nil {
		return s.Extract(data)
	}
	return extract.PDFText(data)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
