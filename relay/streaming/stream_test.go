package streaming

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPumpExtractsTerminalUsage(t *testing.T) {
	upstream := strings.Join([]string{
		`data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"u","choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
		`data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"u","choices":[{"index":0,"delta":{"content":"hi"}}]}`,
		`data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"u","choices":[{"index":0,"finish_reason":"stop"}]}`,
		`data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"u","choices":[],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`,
		"",
	}, "\n\n")

	rec := httptest.NewRecorder()
	usage := Pump(context.Background(), rec, io.NopCloser(strings.NewReader(upstream)), "gpt-4")

	if usage == nil || usage.TotalTokens != 3 {
		t.Fatalf("usage = %+v, want TotalTokens=3", usage)
	}
	if !strings.Contains(rec.Body.String(), "[DONE]") {
		t.Error("expected a terminal [DONE] frame to be written")
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", got)
	}
}

func TestPumpNoUsageFrameStillTerminates(t *testing.T) {
	upstream := `data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"u","choices":[{"index":0,"delta":{"content":"hi"}}]}` + "\n\n"

	rec := httptest.NewRecorder()
	usage := Pump(context.Background(), rec, io.NopCloser(strings.NewReader(upstream)), "gpt-4")

	if usage != nil {
		t.Errorf("expected nil usage when upstream never sends a usage frame, got %+v", usage)
	}
	if !strings.Contains(rec.Body.String(), "[DONE]") {
		t.Error("expected Pump to still write a terminal [DONE] frame")
	}
}

func TestPumpAbortsOnClientDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	upstream := `data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"u","choices":[{"index":0,"delta":{"content":"hi"}}]}` + "\n\n"
	rec := httptest.NewRecorder()

	usage := Pump(ctx, rec, io.NopCloser(strings.NewReader(upstream)), "gpt-4")
	if usage != nil {
		t.Errorf("expected nil usage on client disconnect, got %+v", usage)
	}
}

func TestPumpRewritesModelOnEmittedChunks(t *testing.T) {
	upstream := `data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"upstream-internal-name","choices":[{"index":0,"delta":{"role":"assistant"}}]}` + "\n\n" +
		"data: [DONE]\n\n"

	rec := httptest.NewRecorder()
	Pump(context.Background(), rec, io.NopCloser(strings.NewReader(upstream)), "gpt-4")

	if strings.Contains(rec.Body.String(), "upstream-internal-name") {
		t.Error("the upstream's internal model name should never leak into the client-facing stream")
	}
	if !strings.Contains(rec.Body.String(), `"model":"gpt-4"`) {
		t.Errorf("expected emitted frames to carry the rewritten model, got %s", rec.Body.String())
	}
}
