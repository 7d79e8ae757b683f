package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"legaldoc-backend/internal/documents"
)

type scriptedRunner map[string]error

func (r scriptedRunner) Run(ctx context.Context, documentID string) error {
	return r[documentID]
}

func TestProcessRecordsReportsOnlyRetryableFailures(t *testing.T) {
	runner := scriptedRunner{
		"doc-ok":   nil,
		"doc-down": errors.New("db unavailable"),
		"doc-gone": fmt.Errorf("load document doc-gone: %w", documents.ErrNotFound),
	}
	records := []events.SQSMessage{
		{MessageId: "m1", Body: `{"documentId":"doc-ok","requestId":"r1","version":1}`},
		{MessageId: "m2", Body: `{"documentId":"doc-down","version":1}`},
		{MessageId: "m3", Body: `{"documentId":"doc-gone","version":1}`},
		{MessageId: "m4", Body: `not json`},
		{MessageId: "m5", Body: `{"requestId":"r5"}`},
	}

	resp := processRecords(context.Background(), runner, records)

	if len(resp.BatchItemFailures) != 1 {
		t.Fatalf("expected one failure, got %+v", resp.BatchItemFailures)
	}
	if resp.BatchItemFailures[0].ItemIdentifier != "m2" {
		t.Fatalf("expected m2 to be retried, got %s", resp.BatchItemFailures[0].ItemIdentifier)
	}
}
