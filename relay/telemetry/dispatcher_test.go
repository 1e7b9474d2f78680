package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestEnqueueAssignsIDWhenMissing(t *testing.T) {
	d := &Dispatcher{}
	d.Enqueue(Record{AccountId: "acct-1"})

	batch := d.drainAll()
	if len(batch) != 1 {
		t.Fatalf("len(batch) = %d, want 1", len(batch))
	}
	if batch[0].Id == "" {
		t.Error("Enqueue should assign an id when the record doesn't carry one")
	}
}

func TestEnqueueKeepsExplicitID(t *testing.T) {
	d := &Dispatcher{}
	d.Enqueue(Record{Id: "explicit-id"})

	batch := d.drainAll()
	if batch[0].Id != "explicit-id" {
		t.Errorf("Id = %q, want explicit-id", batch[0].Id)
	}
}

func TestDrainAllEmptiesTheQueue(t *testing.T) {
	d := &Dispatcher{}
	d.Enqueue(Record{AccountId: "a"})
	d.Enqueue(Record{AccountId: "b"})

	first := d.drainAll()
	if len(first) != 2 {
		t.Fatalf("len(first) = %d, want 2", len(first))
	}
	second := d.drainAll()
	if len(second) != 0 {
		t.Fatalf("len(second) = %d, want 0 after draining", len(second))
	}
}

func TestPublishPostsOneRecordPerCall(t *testing.T) {
	var received int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Topic  string `json:"topic"`
			Record Record `json:"record"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode published body: %v", err)
		}
		if payload.Topic != "nexusgate.usage" {
			t.Errorf("topic = %q, want nexusgate.usage", payload.Topic)
		}
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := &Dispatcher{client: http.DefaultClient, busURL: server.URL, topic: "nexusgate.usage"}
	if err := d.publish(context.Background(), Record{Id: "r1", AccountId: "acct-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if atomic.LoadInt32(&received) != 1 {
		t.Errorf("received %d requests, want 1", received)
	}
}

func TestPublishNoBusConfiguredIsANoOp(t *testing.T) {
	d := &Dispatcher{}
	if err := d.publish(context.Background(), Record{Id: "r1"}); err != nil {
		t.Fatalf("publish with no bus configured should succeed silently: %v", err)
	}
}

func TestPublishNonSuccessStatusIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d := &Dispatcher{client: http.DefaultClient, busURL: server.URL, topic: "t"}
	if err := d.publish(context.Background(), Record{Id: "r1"}); err == nil {
		t.Fatal("expected an error for a non-2xx bus response")
	}
}

func TestRunDrainsOnceMoreAfterCancellation(t *testing.T) {
	var received int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := &Dispatcher{client: http.DefaultClient, busURL: server.URL, topic: "t"}
	d.Enqueue(Record{AccountId: "acct-1"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	// Cancel immediately: Run's ticker won't have fired yet, so the only
	// chance for the enqueued record to be published is the shutdown drain.
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	if atomic.LoadInt32(&received) != 1 {
		t.Errorf("received %d publishes, want 1 (the shutdown drain)", received)
	}
}
