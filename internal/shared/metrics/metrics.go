package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	documentsUploadedTotal atomic.Uint64
	jobsDispatchedTotal    atomic.Uint64
	jobsDroppedTotal       atomic.Uint64

	workerReceivedTotal      atomic.Uint64
	workerCompletedTotal     atomic.Uint64
	workerFailedTotal        atomic.Uint64
	workerUnrecoverableTotal atomic.Uint64

	stageStarted   = newCounterVec()
	stageCompleted = newCounterVec()
	stageFailed    = newCounterVec()

	stageDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncDocumentsUploaded counts an accepted upload.
func IncDocumentsUploaded() {
	documentsUploadedTotal.Add(1)
}

// IncJobsDispatched counts an enrichment run handed to a background executor.
func IncJobsDispatched() {
	jobsDispatchedTotal.Add(1)
}

// IncJobsDropped counts an enrichment run that could not be queued.
func IncJobsDropped() {
	jobsDroppedTotal.Add(1)
}

// IncWorkerJobsReceived counts a queue message picked up by the worker.
func IncWorkerJobsReceived() {
	workerReceivedTotal.Add(1)
}

// IncWorkerJobsCompleted counts a queue message processed and deleted.
func IncWorkerJobsCompleted() {
	workerCompletedTotal.Add(1)
}

// IncWorkerJobsFailed counts a run left on the queue for redelivery.
func IncWorkerJobsFailed() {
	workerFailedTotal.Add(1)
}

// IncWorkerJobsDeletedUnrecoverable counts a message deleted without a successful run.
func IncWorkerJobsDeletedUnrecoverable() {
	workerUnrecoverableTotal.Add(1)
}

// IncStageStarted increments the started counter for an enrichment stage.
func IncStageStarted(stage string) {
	stageStarted.Inc(stage)
}

// IncStageCompleted increments the completed counter for an enrichment stage.
func IncStageCompleted(stage string) {
	stageCompleted.Inc(stage)
}

// IncStageFailed increments the failed counter for an enrichment stage.
func IncStageFailed(stage string) {
	stageFailed.Inc(stage)
}

// ObserveStageDurationMs records a stage duration in milliseconds.
func ObserveStageDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	stageDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "documents_uploaded_total", "Total documents accepted for upload", documentsUploadedTotal.Load())
	writeCounter(&buf, "enrichment_jobs_dispatched_total", "Total enrichment runs dispatched", jobsDispatchedTotal.Load())
	writeCounter(&buf, "enrichment_jobs_dropped_total", "Total enrichment runs rejected by a full or closed queue", jobsDroppedTotal.Load())
	writeCounter(&buf, "worker_jobs_received_total", "Total queue messages received by the worker", workerReceivedTotal.Load())
	writeCounter(&buf, "worker_jobs_completed_total", "Total queue messages processed successfully", workerCompletedTotal.Load())
	writeCounter(&buf, "worker_jobs_failed_total", "Total queue messages left for redelivery", workerFailedTotal.Load())
	writeCounter(&buf, "worker_jobs_deleted_unrecoverable_total", "Total queue messages deleted without a successful run", workerUnrecoverableTotal.Load())
	writeCounterVec(&buf, "enrichment_stage_started_total", "Total enrichment stages started", "stage", stageStarted.Snapshot())
	writeCounterVec(&buf, "enrichment_stage_completed_total", "Total enrichment stages completed", "stage", stageCompleted.Snapshot())
	writeCounterVec(&buf, "enrichment_stage_failed_total", "Total enrichment stages failed", "stage", stageFailed.Snapshot())
	writeHistogram(&buf, "enrichment_stage_duration_ms", "Enrichment stage duration in milliseconds", stageDuration.Snapshot())
	return buf.String()
}

type counterVec struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newCounterVec() *counterVec {
	return &counterVec{values: make(map[string]uint64)}
}

func (v *counterVec) Inc(label string) {
	v.mu.Lock()
	v.values[label]++
	v.mu.Unlock()
}

func (v *counterVec) Snapshot() map[string]uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string]uint64, len(v.values))
	for k, val := range v.values {
		out[k] = val
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe records value in the first bucket that holds it; Render accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeCounterVec(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
