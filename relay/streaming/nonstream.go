package streaming

import (
	"encoding/json"
	"strings"

	"github.com/nexusgate/nexusgate/gatewayerr"
)

// DecodeNonStream handles a non-stream upstream response: unwrap a possibly
// double-encoded body, parse it, rewrite model to activeModel, and
// re-serialize. It returns the rewritten body and the usage it carried.
//
// Only choices[0] is returned; multi-choice responses (n>1) are collapsed,
// matching the gateway's long-standing client-visible behavior.
func DecodeNonStream(body []byte, activeModel string) ([]byte, *Usage, error) {
	body = unwrapDoubleEncoded(body)

	var frame Frame
	if err := json.Unmarshal(body, &frame); err != nil {
		return nil, nil, gatewayerr.Wrap(gatewayerr.UpstreamDecode, "decode upstream completion body", err)
	}

	frame.Model = activeModel
	if len(frame.Choices) > 1 {
		frame.Choices = frame.Choices[:1]
	}

	rewritten, err := json.Marshal(frame)
	if err != nil {
		return nil, nil, gatewayerr.Wrap(gatewayerr.UpstreamDecode, "re-encode completion body", err)
	}

	return rewritten, frame.Usage, nil
}

// unwrapDoubleEncoded strips one layer of surrounding quotes and JSON string
// escaping when the upstream has double-encoded its JSON body as a string.
func unwrapDoubleEncoded(body []byte) []byte {
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) < 2 || trimmed[0] != '"' || trimmed[len(trimmed)-1] != '"' {
		return body
	}

	var inner string
	if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
		return body
	}
	return []byte(inner)
}
