// Package upstream implements the outbound HTTP client: it POSTs the
// rewritten request to the resolved backend and hands the response off to
// the streaming transformer.
package upstream

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/nexusgate/nexusgate/common/config"
	"github.com/nexusgate/nexusgate/common/metrics"
	"github.com/nexusgate/nexusgate/gatewayerr"
)

// Optional fields (temperature, top_p, n, stop, max_tokens,
// presence_penalty, frequency_penalty, logit_bias, user, file_id, messages,
// stream) are forwarded verbatim when present in the client's JSON body:
// RewriteRequestBody operates on the decoded JSON object as a whole, so any
// field the client sent is forwarded and any field it omitted stays absent.

// Client issues the upstream POST with a hard per-request timeout (default
// 300s) and a shorter connect timeout (default 10s).
type Client struct {
	http *http.Client
}

// New builds an upstream Client using the package-level gateway configuration.
func New() *Client {
	dialer := &net.Dialer{Timeout: config.UpstreamConnectTimeout()}
	return &Client{
		http: &http.Client{
			Timeout: config.UpstreamTimeout(),
			Transport: &http.Transport{
				DialContext: dialer.DialContext,
			},
		},
	}
}

// Do issues the POST to url with body and returns the raw *http.Response for
// the caller to stream or fully read. The caller owns closing resp.Body.
func (c *Client) Do(ctx context.Context, url string, body []byte) (*http.Response, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		metrics.UpstreamLatencySeconds.WithLabelValues("build_error").Observe(time.Since(start).Seconds())
		return nil, gatewayerr.Wrap(gatewayerr.UpstreamTransport, "build upstream request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamLatencySeconds.WithLabelValues("transport_error").Observe(time.Since(start).Seconds())
		return nil, gatewayerr.Wrap(gatewayerr.UpstreamTransport, "upstream request failed", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		metrics.UpstreamLatencySeconds.WithLabelValues("upstream_status").Observe(time.Since(start).Seconds())
		return nil, gatewayerr.New(gatewayerr.UpstreamStatus, upstreamStatusMessage(resp.StatusCode))
	}

	metrics.UpstreamLatencySeconds.WithLabelValues("success").Observe(time.Since(start).Seconds())
	return resp, nil
}

func upstreamStatusMessage(status int) string {
	return errors.Errorf("upstream returned status %d", status).Error()
}
