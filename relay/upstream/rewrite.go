package upstream

import (
	"encoding/json"

	"github.com/nexusgate/nexusgate/gatewayerr"
)

// RewriteRequestBody replaces the client's "model" field with
// upstreamModelName and, when isStream is true, injects
// stream_options.include_usage so the upstream emits a trailing usage frame.
// Every other field the client sent passes through unchanged.
func RewriteRequestBody(body []byte, upstreamModelName string, isStream bool) ([]byte, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.BadRequestMissingModel, "decode request body", err)
	}

	obj["model"] = upstreamModelName

	if isStream {
		streamOptions, _ := obj["stream_options"].(map[string]any)
		if streamOptions == nil {
			streamOptions = map[string]any{}
		}
		streamOptions["include_usage"] = "True"
		obj["stream_options"] = streamOptions
	}

	rewritten, err := json.Marshal(obj)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.BadRequestMissingModel, "encode rewritten request body", err)
	}
	return rewritten, nil
}
