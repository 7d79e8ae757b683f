package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"legaldoc-backend/internal/bootstrap"
	"legaldoc-backend/internal/queue"
	"legaldoc-backend/internal/shared/config"
	"legaldoc-backend/internal/shared/storage/db"
	"legaldoc-backend/internal/shared/telemetry"
	"legaldoc-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

type noopQueue struct{}

func (noopQueue) Send(ctx context.Context, msg queue.Message) error {
	return errors.New("worker does not enqueue")
}

func initApp() {
	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}
	if err := telemetry.Init(cfg.Env, cfg.LogLevel); err != nil {
		log.Printf("init logger: %v", err)
	}
	cfg.Enrichment.Dispatch = "sqs"
	pool := db.DefaultLambdaOptions()
	built, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{Queue: noopQueue{}, DBPool: &pool})
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processRecords(ctx, app.Orchestrator, event.Records), nil
}

// processRecords reports only retryable failures; malformed messages and
// deleted documents are dropped so they do not loop through redelivery.
func processRecords(ctx context.Context, runner workerproc.Runner, records []events.SQSMessage) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range records {
		msg, meta, err := workerproc.ParseMessage(record.Body)
		if err != nil {
			telemetry.Error("lambda.enrichment.unparseable", map[string]any{
				"sqs_message_id": record.MessageId,
				"body_len":       meta.BodyLen,
				"error":          err.Error(),
			})
			continue
		}
		if err := workerproc.HandleMessage(ctx, runner, msg); err != nil {
			fields := map[string]any{
				"sqs_message_id": record.MessageId,
				"document_id":    msg.DocumentID,
				"request_id":     msg.RequestID,
				"error":          err.Error(),
			}
			var procErr workerproc.ErrProcess
			if errors.As(err, &procErr) && !procErr.Retryable() {
				telemetry.Warn("lambda.enrichment.document_gone", fields)
				continue
			}
			telemetry.Error("lambda.enrichment.failed", fields)
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
