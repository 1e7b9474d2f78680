package streaming

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/Laisky/zap"

	"github.com/nexusgate/nexusgate/common/logger"
)

const (
	dataPrefix      = "data: "
	scannerBufStart = 4096
	scannerBufMax   = 1024 * 1024
)

// Pump reads SSE chunks from upstream, classifies and normalizes each
// frame, and writes the client-facing SSE stream to w. ctx is the request
// context: cancellation (client disconnect) aborts the upstream read
// without being treated as an error. It returns the usage extracted from
// the terminal usage frame, or nil if the stream ended without one; the
// caller records telemetry only when usage is present.
func Pump(ctx context.Context, w http.ResponseWriter, upstream io.ReadCloser, activeModel string) *Usage {
	defer upstream.Close()

	SetEventStreamHeaders(w)

	scanner := bufio.NewScanner(upstream)
	scanner.Buffer(make([]byte, scannerBufStart), scannerBufMax)

	var usage *Usage
	doneWritten := false

	for scanner.Scan() {
		if ctx.Err() != nil {
			// Client disconnected; abort silently.
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if payload == "" {
			continue
		}
		if payload == doneLiteral {
			writeSSEData(w, doneLiteral)
			doneWritten = true
			break
		}

		var frame Frame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			logger.Logger.Warn("failed to parse upstream stream frame", zap.Error(err))
			writeSSEData(w, `{"error":{"message":"failed to parse upstream frame","type":"UPSTREAM_DECODE"}}`)
			continue
		}

		frame.Model = activeModel

		switch classify(&frame) {
		case frameRole:
			emitRoleChunk(w, &frame)
		case frameUsage:
			usage = frame.Usage
			emitUsageChunk(w, &frame)
			writeSSEData(w, doneLiteral)
			doneWritten = true
		case frameStop:
			emitStopChunk(w, &frame)
		default:
			emitNormalChunk(w, &frame)
		}

		if usage != nil {
			break
		}
	}

	if ctx.Err() != nil {
		return nil
	}

	if !doneWritten {
		// Upstream closed mid-stream: the client still needs a terminator,
		// but no usage means no telemetry.
		writeSSEData(w, doneLiteral)
	}

	return usage
}

type frameKind int

const (
	frameNormal frameKind = iota
	frameRole
	frameUsage
	frameStop
)

func classify(f *Frame) frameKind {
	if f.Usage != nil && len(f.Choices) == 0 {
		return frameUsage
	}
	if len(f.Choices) == 0 {
		return frameNormal
	}
	choice := f.Choices[0]
	if choice.Delta != nil && choice.Delta.Role != "" {
		return frameRole
	}
	if choice.FinishReason != nil && *choice.FinishReason == "stop" {
		return frameStop
	}
	return frameNormal
}

func baseChoice(f *Frame) Choice {
	if len(f.Choices) == 0 {
		return Choice{Index: 0}
	}
	return f.Choices[0]
}

func emitRoleChunk(w http.ResponseWriter, f *Frame) {
	c := baseChoice(f)
	out := Frame{
		Id: f.Id, Object: f.Object, Created: f.Created, Model: f.Model,
		Choices: []Choice{{
			Index:    c.Index,
			LogProbs: c.LogProbs,
			Delta:    &Delta{Role: c.Delta.Role, Content: strPtr("")},
		}},
	}
	write(w, out)
}

func emitStopChunk(w http.ResponseWriter, f *Frame) {
	c := baseChoice(f)
	out := Frame{
		Id: f.Id, Object: f.Object, Created: f.Created, Model: f.Model,
		Choices: []Choice{{
			Index:        c.Index,
			LogProbs:     c.LogProbs,
			Delta:        &Delta{Content: strPtr("")},
			FinishReason: strPtr("stop"),
		}},
	}
	write(w, out)
}

func emitUsageChunk(w http.ResponseWriter, f *Frame) {
	out := Frame{Id: f.Id, Object: f.Object, Created: f.Created, Model: f.Model, Choices: []Choice{}, Usage: f.Usage}
	write(w, out)
}

func emitNormalChunk(w http.ResponseWriter, f *Frame) {
	c := baseChoice(f)
	delta := &Delta{}
	if c.Delta != nil {
		delta.Content = c.Delta.Content
	}
	out := Frame{
		Id: f.Id, Object: f.Object, Created: f.Created, Model: f.Model,
		Choices: []Choice{{
			Index:        c.Index,
			LogProbs:     c.LogProbs,
			Delta:        delta,
			FinishReason: c.FinishReason,
		}},
	}
	write(w, out)
}

func write(w http.ResponseWriter, f Frame) {
	b, err := json.Marshal(f)
	if err != nil {
		logger.Logger.Error("failed to encode outbound stream chunk", zap.Error(err))
		return
	}
	writeSSEData(w, string(b))
}
