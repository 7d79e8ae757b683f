package workerproc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"legaldoc-backend/internal/documents"
	"legaldoc-backend/internal/queue"
	"legaldoc-backend/internal/shared/telemetry"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr any
	}{
		{name: "empty", body: "  ", wantErr: ErrEmptyBody{}},
		{name: "garbage", body: "{not json", wantErr: ErrDecode{}},
		{name: "no id", body: `{"requestId":"r1"}`, wantErr: ErrMissingDocumentID{}},
		{name: "ok", body: `{"documentId":"doc-1","requestId":"r1","version":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, meta, err := ParseMessage(tt.body)
			switch tt.wantErr.(type) {
			case nil:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if msg.DocumentID != "doc-1" || meta.BodySHA == "" {
					t.Fatalf("unexpected msg=%+v meta=%+v", msg, meta)
				}
			case ErrEmptyBody:
				if _, ok := err.(ErrEmptyBody); !ok {
					t.Fatalf("expected ErrEmptyBody, got %T", err)
				}
			case ErrDecode:
				if _, ok := err.(ErrDecode); !ok {
					t.Fatalf("expected ErrDecode, got %T", err)
				}
			case ErrMissingDocumentID:
				e, ok := err.(ErrMissingDocumentID)
				if !ok || e.RequestID != "r1" {
					t.Fatalf("expected ErrMissingDocumentID with request id, got %#v", err)
				}
			}
		})
	}
}

type runnerFunc func(ctx context.Context, id string) error

func (f runnerFunc) Run(ctx context.Context, id string) error { return f(ctx, id) }

func TestHandleMessagePropagatesRequestID(t *testing.T) {
	var gotReq, gotDoc string
	runner := runnerFunc(func(ctx context.Context, id string) error {
		gotReq, gotDoc = telemetry.RequestIDFromContext(ctx), id
		return nil
	})
	if err := HandleMessage(context.Background(), runner, queue.Message{DocumentID: "doc-1", RequestID: "req-1"}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if gotReq != "req-1" || gotDoc != "doc-1" {
		t.Fatalf("runner saw request=%q doc=%q", gotReq, gotDoc)
	}
}

func TestHandleMessageClassifiesFailures(t *testing.T) {
	missing := runnerFunc(func(context.Context, string) error {
		return fmt.Errorf("load document: %w", documents.ErrNotFound)
	})
	err := HandleMessage(context.Background(), missing, queue.Message{DocumentID: "gone"})
	var procErr ErrProcess
	if !errors.As(err, &procErr) {
		t.Fatalf("expected ErrProcess, got %T", err)
	}
	if procErr.Retryable() {
		t.Fatalf("deleted document should not be retried")
	}

	flaky := runnerFunc(func(context.Context, string) error { return errors.New("db timeout") })
	err = HandleMessage(context.Background(), flaky, queue.Message{DocumentID: "doc-1"})
	if !errors.As(err, &procErr) || !procErr.Retryable() {
		t.Fatalf("expected retryable ErrProcess, got %v", err)
	}
}
