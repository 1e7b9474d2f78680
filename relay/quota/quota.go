// Package quota implements the coil-backed admission and consumption
// pipeline: a pre-request throttle check and a post-response token
// consume call.
package quota

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/Laisky/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nexusgate/nexusgate/common/config"
	"github.com/nexusgate/nexusgate/common/logger"
	"github.com/nexusgate/nexusgate/common/metrics"
	"github.com/nexusgate/nexusgate/gatewayerr"
	"github.com/nexusgate/nexusgate/model"
	"github.com/nexusgate/nexusgate/relay/meta"
)

// Coil is an HTTP client for the external token-bucket service.
type Coil struct {
	BaseURL string
	Client  *http.Client
}

// New builds a Coil client using the package-level gateway configuration.
func New() *Coil {
	return &Coil{
		BaseURL: config.CoilIP,
		Client:  &http.Client{Timeout: config.CoilTimeout()},
	}
}

type coilRequest struct {
	User          string `json:"user"`
	Item          string `json:"item"`
	RequestAmount string `json:"request_amount"`
	Limit         int64  `json:"limit"`
}

type coilThrottleResponse struct {
	Throttled bool  `json:"throttled"`
	BackoffNs int64 `json:"backoff_ns"`
}

type coilConsumeResponse struct {
	Status string `json:"status"`
}

// Admit runs the two parallel admission checks (requests-per-minute and
// tokens-per-minute) and returns a THROTTLED_RPM/THROTTLED_TPM gatewayerr if
// either bucket is exhausted. Transport failures fail open so user traffic
// never stalls on a coil outage.
func (q *Coil) Admit(ctx context.Context, m *meta.Meta, limits *model.ModelLimits) error {
	if !config.CoilEnabled {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var rpmThrottled, tpmThrottled bool

	g.Go(func() error {
		throttled, err := q.call(gctx, "/query_and_consume", coilRequest{
			User:          m.FingerprintUser(),
			Item:          m.ActiveModel,
			RequestAmount: "1",
			Limit:         limits.MaxRequestsPerMin,
		})
		if err != nil {
			logger.Logger.Warn("coil rpm admission check failed open", zap.Error(err))
			return nil
		}
		mu.Lock()
		rpmThrottled = throttled
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		throttled, err := q.call(gctx, "/throttled", coilRequest{
			User:          m.TokensFingerprintUser(),
			Item:          m.ActiveModel,
			RequestAmount: strconv.Itoa(config.CoilTokenReserve),
			Limit:         limits.MaxTokensPerMin,
		})
		if err != nil {
			logger.Logger.Warn("coil tpm admission check failed open", zap.Error(err))
			return nil
		}
		mu.Lock()
		tpmThrottled = throttled
		mu.Unlock()
		return nil
	})

	_ = g.Wait() // calls never return an error themselves; failures are logged and fail-open

	if rpmThrottled {
		metrics.ThrottledRequests.WithLabelValues("rpm").Inc()
		return gatewayerr.New(gatewayerr.ThrottledRPM, "request-rate quota exceeded")
	}
	if tpmThrottled {
		metrics.ThrottledRequests.WithLabelValues("tpm").Inc()
		return gatewayerr.New(gatewayerr.ThrottledTPM, "token-rate quota exceeded")
	}
	return nil
}

// Consume reports final token usage to the tokens bucket after the response
// body (or the terminal usage frame) is fully decoded. Transport errors are
// logged and treated as success (telemetry already records the true usage).
func (q *Coil) Consume(ctx context.Context, m *meta.Meta, totalTokens int64) error {
	if !config.CoilEnabled {
		return nil
	}

	reqBody, err := json.Marshal(coilRequest{
		User:          m.TokensFingerprintUser(),
		Item:          m.ActiveModel,
		RequestAmount: strconv.FormatInt(totalTokens, 10),
	})
	if err != nil {
		return gatewayerr.Wrap(gatewayerr.InternalCoil, "marshal consume request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, q.BaseURL+"/consume", bytes.NewReader(reqBody))
	if err != nil {
		return gatewayerr.Wrap(gatewayerr.InternalCoil, "build consume request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := q.Client.Do(httpReq)
	if err != nil {
		logger.Logger.Warn("coil consume call failed, treating as success", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	var parsed coilConsumeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		logger.Logger.Warn("coil consume response decode failed, treating as success", zap.Error(err))
		return nil
	}
	if parsed.Status != "success" {
		return gatewayerr.New(gatewayerr.InternalCoil, "coil consume call did not report success")
	}
	return nil
}

// call issues one admission POST and reports whether the caller is throttled.
// An empty JSON object response ({}) means "not throttled".
func (q *Coil) call(ctx context.Context, path string, body coilRequest) (bool, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return false, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, q.BaseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := q.Client.Do(httpReq)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var parsed coilThrottleResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, err
	}
	return parsed.Throttled, nil
}
