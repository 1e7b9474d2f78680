package streaming

import (
	"fmt"
	"net/http"
)

// SetEventStreamHeaders marks the response as an SSE stream.
func SetEventStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// writeSSEData writes one `data: <payload>\n\n` frame and flushes it
// immediately, so the client sees chunks as they arrive rather than once
// gin's own buffering decides to flush.
func writeSSEData(w http.ResponseWriter, payload string) {
	fmt.Fprintf(w, "data: %s\n\n", payload)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

const doneLiteral = "[DONE]"
