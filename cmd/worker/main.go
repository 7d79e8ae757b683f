package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"legaldoc-backend/internal/bootstrap"
	"legaldoc-backend/internal/queue"
	"legaldoc-backend/internal/shared/config"
	"legaldoc-backend/internal/shared/metrics"
	"legaldoc-backend/internal/shared/storage/db"
	"legaldoc-backend/internal/shared/telemetry"
	"legaldoc-backend/internal/workerproc"
)

const (
	defaultVisibilitySeconds  = 1200
	defaultShutdownTimeoutSec = 30
	retryBaseSeconds          = 30
	// SQS caps visibility at 12 hours.
	maxVisibilitySeconds = 12 * 60 * 60
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := telemetry.Init(cfg.Env, cfg.LogLevel); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer telemetry.Sync()

	queueURL := strings.TrimSpace(cfg.SQSQueueURL)
	if queueURL == "" {
		log.Fatal("SQS_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := queue.LoadAWSConfig(ctx, cfg.AWSRegion)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	// Runs happen here, so the in-process executor stays off.
	cfg.Enrichment.Dispatch = "sqs"
	pool := db.DefaultWorkerOptions()
	app, err := bootstrap.Build(ctx, cfg, bootstrap.Options{Queue: noopQueue{}, DBPool: &pool})
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Shutdown(context.Background())

	c := &consumer{
		client:     sqs.NewFromConfig(awsCfg),
		queueURL:   queueURL,
		runner:     app.Orchestrator,
		visibility: int32(envInt("WORKER_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)),
	}
	c.run(ctx, max(1, cfg.Enrichment.Workers))

	shutdownTimeout := time.Duration(envInt("WORKER_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second
	telemetry.Info("worker.shutdown_requested", map[string]any{"timeout": shutdownTimeout.String()})
	if !c.drain(shutdownTimeout) {
		telemetry.Warn("worker.shutdown_timeout", map[string]any{"timeout": shutdownTimeout.String()})
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

type noopQueue struct{}

func (noopQueue) Send(context.Context, queue.Message) error {
	return errors.New("worker does not enqueue")
}

// consumer long-polls the enrichment queue and runs each message through the
// orchestrator. A message is deleted once it needs no further delivery.
type consumer struct {
	client     sqsAPI
	queueURL   string
	runner     workerproc.Runner
	visibility int32

	wg sync.WaitGroup
}

// run polls until ctx is cancelled, keeping at most n messages in flight.
func (c *consumer) run(ctx context.Context, n int) {
	sem := make(chan struct{}, n)
	telemetry.Info("worker.started", map[string]any{
		"queue":       c.queueURL,
		"concurrency": n,
		"visibility":  c.visibility,
	})

	for ctx.Err() == nil {
		resp, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   c.visibility,
			MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
				sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
			},
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err.Error()})
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				return
			case sem <- struct{}{}:
			}
			metrics.IncWorkerJobsReceived()
			c.wg.Add(1)
			go func(m sqstypes.Message) {
				defer c.wg.Done()
				defer func() { <-sem }()
				c.handle(ctx, m)
			}(msg)
		}
	}
}

// drain waits for in-flight messages, reporting false on timeout.
func (c *consumer) drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (c *consumer) handle(ctx context.Context, msg sqstypes.Message) {
	decoded, meta, err := workerproc.ParseMessage(aws.ToString(msg.Body))
	if err != nil {
		fields := logFields(msg, queue.Message{})
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		event := "worker.enrichment.decode_failed"
		var missing workerproc.ErrMissingDocumentID
		switch {
		case errors.As(err, &missing):
			event = "worker.enrichment.missing_id"
			if missing.RequestID != "" {
				fields["request_id"] = missing.RequestID
			}
		case errors.As(err, new(workerproc.ErrEmptyBody)):
			event = "worker.enrichment.empty_body"
		default:
			fields["error"] = err.Error()
		}
		telemetry.Error(event, fields)
		if c.delete(ctx, msg, fields) {
			metrics.IncWorkerJobsDeletedUnrecoverable()
		}
		return
	}

	fields := logFields(msg, decoded)
	telemetry.Info("worker.enrichment.received", fields)

	err = workerproc.HandleMessage(ctx, c.runner, decoded)
	var procErr workerproc.ErrProcess
	switch {
	case err == nil:
		if c.delete(ctx, msg, fields) {
			telemetry.Info("worker.enrichment.completed", fields)
			metrics.IncWorkerJobsCompleted()
		}
	case errors.As(err, &procErr) && !procErr.Retryable():
		fields["error"] = err.Error()
		telemetry.Warn("worker.enrichment.document_gone", fields)
		if c.delete(ctx, msg, fields) {
			metrics.IncWorkerJobsDeletedUnrecoverable()
		}
	default:
		fields["error"] = err.Error()
		telemetry.Error("worker.enrichment.failed", fields)
		metrics.IncWorkerJobsFailed()
		c.retryLater(ctx, msg, fields)
	}
}

func (c *consumer) delete(ctx context.Context, msg sqstypes.Message, fields map[string]any) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		telemetry.Error("worker.enrichment.delete_failed", withError(fields, "missing receipt handle"))
		return false
	}
	if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		telemetry.Error("worker.enrichment.delete_failed", withError(fields, err.Error()))
		return false
	}
	return true
}

// retryLater shortens the message's remaining visibility so a failed run is
// redelivered after a backoff instead of the full visibility timeout.
func (c *consumer) retryLater(ctx context.Context, msg sqstypes.Message, fields map[string]any) {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		return
	}
	delay := retryDelay(receiveCount(msg))
	if _, err := c.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(c.queueURL),
		ReceiptHandle:     aws.String(receipt),
		VisibilityTimeout: delay,
	}); err != nil {
		telemetry.Warn("worker.enrichment.backoff_failed", withError(fields, err.Error()))
	}
}

// retryDelay doubles from retryBaseSeconds per delivery.
func retryDelay(receives int) int32 {
	delay := retryBaseSeconds
	for i := 1; i < receives && delay < maxVisibilitySeconds; i++ {
		delay *= 2
	}
	return int32(min(delay, maxVisibilitySeconds))
}

func logFields(msg sqstypes.Message, m queue.Message) map[string]any {
	fields := map[string]any{
		"document_id":    m.DocumentID,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(m.RequestID) != "" {
		fields["request_id"] = m.RequestID
	}
	return fields
}

func withError(fields map[string]any, msg string) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = msg
	return out
}

func receiveCount(msg sqstypes.Message) int {
	raw := msg.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
