package documents

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legaldoc-backend/internal/extract"
	"legaldoc-backend/internal/shared/storage/object/local"
)

var samplePDF = []byte("%PDF-1.4 sample contract bytes")

type recordingDispatcher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, documentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, documentID)
	return d.err
}

func newTestService(t *testing.T) (*Service, *recordingDispatcher) {
	t.Helper()
	dispatcher := &recordingDispatcher{}
	return &Service{
		Store:          local.New(t.TempDir()),
		Repo:           NewMemoryRepo(),
		Dispatcher:     dispatcher,
		MaxUploadBytes: 1 << 10,
		Now:            func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
		Extract:        func([]byte) (string, error) { return "This lease runs for 12 months.", nil },
	}, dispatcher
}

func TestUploadStoresDocumentAndDispatches(t *testing.T) {
	svc, dispatcher := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "user-1", " lease.pdf ", samplePDF)
	require.NoError(t, err)

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "lease.pdf", doc.OriginalFileName)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, int64(len(samplePDF)), doc.SizeBytes)
	assert.Equal(t, "This lease runs for 12 months.", doc.Text)
	assert.Nil(t, doc.AI.Summary)
	assert.Nil(t, doc.AI.Risks)
	assert.Nil(t, doc.AI.Clauses)
	assert.Equal(t, []string{doc.ID}, dispatcher.ids)

	_, rc, err := svc.OpenFile(ctx, "user-1", doc.ID)
	require.NoError(t, err)
	defer rc.Close()
	stored, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, stored)
}

func TestUploadSucceedsWhenDispatchFails(t *testing.T) {
	svc, dispatcher := newTestService(t)
	dispatcher.err = errors.New("queue full")

	doc, err := svc.Upload(context.Background(), "user-1", "nda.pdf", samplePDF)
	require.NoError(t, err)

	items, err := svc.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, doc.ID, items[0].ID)
	assert.False(t, items[0].HasSummary)
}

func TestUploadRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		data    []byte
		extract func([]byte) (string, error)
		want    error
	}{
		{name: "missing name", file: " ", data: samplePDF, want: ErrInvalidInput},
		{name: "not a pdf", file: "a.docx", data: []byte("PK\x03\x04"), want: ErrNotPDF},
		{name: "too large", file: "big.pdf", data: append([]byte("%PDF-"), make([]byte, 2<<10)...), want: ErrTooLarge},
		{
			name: "no text",
			file: "scan.pdf",
			data: samplePDF,
			extract: func([]byte) (string, error) {
				return "", &extract.ExtractionError{Reason: "no extractable text"}
			},
			want: extract.ErrExtraction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, dispatcher := newTestService(t)
			if tt.extract != nil {
				svc.Extract = tt.extract
			}
			_, err := svc.Upload(context.Background(), "user-1", tt.file, tt.data)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, dispatcher.ids)

			items, err := svc.List(context.Background(), "user-1")
			require.NoError(t, err)
			assert.Empty(t, items)
		})
	}
}

func TestOwnedDistinguishesMissingFromForeign(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, err := svc.Upload(ctx, "owner", "lease.pdf", samplePDF)
	require.NoError(t, err)

	_, err = svc.Owned(ctx, "intruder", doc.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Owned(ctx, "owner", "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.AIField(ctx, "intruder", doc.ID, KindSummary)
	assert.ErrorIs(t, err, ErrForbidden)

	err = svc.Delete(ctx, "intruder", doc.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDeleteRemovesDocumentAndBytes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, err := svc.Upload(ctx, "owner", "lease.pdf", samplePDF)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "owner", doc.ID))

	_, err = svc.Owned(ctx, "owner", doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = svc.OpenFile(ctx, "owner", doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	err = svc.Delete(ctx, "owner", doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAIFieldReturnsStoredValue(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, err := svc.Upload(ctx, "owner", "lease.pdf", samplePDF)
	require.NoError(t, err)

	value, err := svc.AIField(ctx, "owner", doc.ID, KindRisks)
	require.NoError(t, err)
	assert.Nil(t, value)

	_, _, err = svc.Repo.SetAIField(ctx, doc.ID, KindRisks, "- Auto renewal")
	require.NoError(t, err)

	value, err = svc.AIField(ctx, "owner", doc.ID, KindRisks)
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "- Auto renewal", *value)

	_, err = svc.AIField(ctx, "owner", doc.ID, Kind("verdict"))
	assert.ErrorIs(t, err, ErrInvalidKind)
}
