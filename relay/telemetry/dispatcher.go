// Package telemetry implements the asynchronous usage-record dispatcher:
// a process-wide FIFO queue drained by a background flusher that publishes
// each record to the message bus independently, best-effort.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Laisky/zap"
	"github.com/google/uuid"

	"github.com/nexusgate/nexusgate/common/config"
	"github.com/nexusgate/nexusgate/common/logger"
	"github.com/nexusgate/nexusgate/common/metrics"
)

// Record is the usage record published to the message bus, one per
// successfully relayed request.
type Record struct {
	Id               string `json:"id"`
	AccountId        string `json:"account_id"`
	RegionName       string `json:"region_name"`
	RegionId         string `json:"region_id"`
	ActiveModel      string `json:"active_model"`
	AppKey           string `json:"app_key"`
	StartTime        int64  `json:"start_time"`
	EndTime          int64  `json:"end_time"`
	TotalTokens      int64  `json:"total_tokens"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	EmitTime         int64  `json:"emit_time"`
}

// Dispatcher owns the bus producer; enqueuers never touch it directly. The
// queue is a mutex-guarded deque, not a channel: producers hold the lock
// only for the push.
type Dispatcher struct {
	mu     sync.Mutex
	queue  []Record
	client *http.Client
	busURL string
	topic  string
}

// New builds a Dispatcher using the package-level gateway configuration.
func New() *Dispatcher {
	return &Dispatcher{
		client: &http.Client{Timeout: config.TelemetryPublishTimeout()},
		busURL: config.MessageBusURL,
		topic:  config.MessageBusTopic,
	}
}

// Enqueue appends record to the queue. It is non-blocking and O(1): the
// lock is only ever held for a slice append, never across I/O.
func (d *Dispatcher) Enqueue(r Record) {
	if r.Id == "" {
		r.Id = uuid.Must(uuid.NewV7()).String()
	}
	d.mu.Lock()
	d.queue = append(d.queue, r)
	d.mu.Unlock()
}

func (d *Dispatcher) drainAll() []Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	batch := d.queue
	d.queue = nil
	return batch
}

// Run wakes every TelemetryFlushIntervalSec, drains the queue, and publishes
// each record independently. On ctx cancellation it drains once more before
// returning, so records enqueued right before shutdown still get published.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(config.TelemetryFlushIntervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.flush(ctx, d.drainAll())
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), config.TelemetryDrainTimeout())
			d.flush(drainCtx, d.drainAll())
			cancel()
			return
		}
	}
}

func (d *Dispatcher) flush(ctx context.Context, batch []Record) {
	for _, record := range batch {
		if err := d.publish(ctx, record); err != nil {
			metrics.TelemetryDropped.WithLabelValues("publish_failed").Inc()
			logger.Logger.Warn("dropped usage record", zap.String("id", record.Id), zap.Error(err))
		}
	}
}

func (d *Dispatcher) publish(parent context.Context, record Record) error {
	if d.busURL == "" {
		metrics.TelemetryDropped.WithLabelValues("no_bus_configured").Inc()
		return nil
	}

	ctx, cancel := context.WithTimeout(parent, config.TelemetryPublishTimeout())
	defer cancel()

	body, err := json.Marshal(struct {
		Topic  string `json:"topic"`
		Record Record `json:"record"`
	}{Topic: d.topic, Record: record})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.busURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &busStatusError{status: resp.StatusCode}
	}
	return nil
}

type busStatusError struct{ status int }

func (e *busStatusError) Error() string {
	return "message bus returned status " + strconv.Itoa(e.status)
}
