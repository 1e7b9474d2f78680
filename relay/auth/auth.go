// Package auth implements the two-tier authentication pipeline: local
// key validation against the credential store, and remote apiInfo checks
// backed by the auth cache.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/Laisky/zap"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"

	"github.com/nexusgate/nexusgate/common/config"
	"github.com/nexusgate/nexusgate/common/logger"
	"github.com/nexusgate/nexusgate/common/metrics"
	"github.com/nexusgate/nexusgate/gatewayerr"
	"github.com/nexusgate/nexusgate/model"
)

// Result is the outcome of a successful Authenticate call: the bound
// account_id and the re-readable request body.
type Result struct {
	AccountId   string
	AppKey      string
	ActiveModel string
	Body        []byte
}

// Pipeline runs local and/or remote authentication depending on configuration.
type Pipeline struct {
	DB        *gorm.DB
	Cache     *model.AuthCache
	Client    *http.Client
	RemoteURL string
}

// New builds a Pipeline using the package-level gateway configuration.
func New(db *gorm.DB, cache *model.AuthCache) *Pipeline {
	return &Pipeline{
		DB:        db,
		Cache:     cache,
		RemoteURL: strings.TrimRight(config.AuthRemoteServer, "/"),
		Client:    &http.Client{Timeout: config.AuthRemoteTimeout()},
	}
}

type remoteCheckRequest struct {
	APIKey        string `json:"apiKey"`
	AppKey        string `json:"appKey"`
	ModelName     string `json:"modelName"`
	CloudRegionID string `json:"cloudRegionId"`
}

type remoteCheckResponse struct {
	AccountId string `json:"accountId"`
	IsValid   bool   `json:"isValid"`
}

// Authenticate reads r's body once, validates it under the configured auth
// modes, and returns the bound account_id plus the body bytes for replay by
// the quota and upstream layers. Local mode runs first when both are
// enabled; remote mode is what ultimately produces account_id when it is
// on. When both modes are off, the pipeline is a pass-through:
// neither the Authorization header nor the body's model field is required
// here, and account_id defaults to the raw (possibly empty) user_key.
func (p *Pipeline) Authenticate(ctx context.Context, r *http.Request) (*Result, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, config.MaxBodyBytes))
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.InternalAuthStore, "read request body", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	authEnabled := config.LocalAuthEnabled || config.RemoteAuthEnabled

	userKey := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if authEnabled && (userKey == "" || userKey == r.Header.Get("Authorization")) {
		return nil, gatewayerr.New(gatewayerr.UnauthMissingKey, "missing Authorization header")
	}

	activeModel := gjson.GetBytes(body, "model").String()
	if authEnabled && activeModel == "" {
		return nil, gatewayerr.New(gatewayerr.BadRequestMissingModel, "request body is missing model")
	}
	appKey := r.Header.Get("appKey")

	accountId := userKey

	if config.LocalAuthEnabled {
		known, err := model.IsKeyKnown(p.DB, userKey)
		if err != nil {
			return nil, gatewayerr.Wrap(gatewayerr.InternalAuthStore, "check user key", err)
		}
		if !known {
			return nil, gatewayerr.New(gatewayerr.ForbiddenInvalidKey, "unknown API key")
		}

		paired, err := model.IsKeyModelPairKnown(p.DB, userKey, activeModel)
		if err != nil {
			return nil, gatewayerr.Wrap(gatewayerr.InternalAuthStore, "check user key/model pair", err)
		}
		if !paired {
			return nil, gatewayerr.New(gatewayerr.ForbiddenKeyModelMismatch, "API key is not authorized for model "+activeModel)
		}
	}

	if config.RemoteAuthEnabled {
		resolved, err := p.authenticateRemote(ctx, userKey, appKey, activeModel)
		if err != nil {
			return nil, err
		}
		accountId = resolved
	}

	return &Result{AccountId: accountId, AppKey: appKey, ActiveModel: activeModel, Body: body}, nil
}

// authenticateRemote consults the cache, short-circuiting the remote call on
// a hit, and falls back to POST {auth_remote_server}/v1/apiInfo/check.
func (p *Pipeline) authenticateRemote(ctx context.Context, userKey, appKey, activeModel string) (string, error) {
	cacheKey := userKey + "|" + appKey + "|" + activeModel

	if accountId, ok := p.Cache.Check(model.NamespaceModel, cacheKey); ok {
		metrics.AuthCacheLookups.WithLabelValues(model.NamespaceModel, "hit").Inc()
		return accountId, nil
	}
	metrics.AuthCacheLookups.WithLabelValues(model.NamespaceModel, "miss").Inc()

	reqBody, err := json.Marshal(remoteCheckRequest{
		APIKey:        userKey,
		AppKey:        appKey,
		ModelName:     activeModel,
		CloudRegionID: config.GatewayRegionID,
	})
	if err != nil {
		return "", gatewayerr.Wrap(gatewayerr.InternalAuthStore, "marshal remote auth check", err)
	}

	ctx, cancel := context.WithTimeout(ctx, config.AuthRemoteTimeout())
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.RemoteURL+"/v1/apiInfo/check", bytes.NewReader(reqBody))
	if err != nil {
		return "", gatewayerr.Wrap(gatewayerr.InternalAuthStore, "build remote auth request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return "", gatewayerr.Wrap(gatewayerr.ForbiddenRemoteReject, "remote auth check unreachable", err)
	}
	defer resp.Body.Close()

	var parsed remoteCheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", gatewayerr.Wrap(gatewayerr.ForbiddenRemoteReject, "decode remote auth response", err)
	}

	if parsed.AccountId == "" || !parsed.IsValid {
		return "", gatewayerr.New(gatewayerr.ForbiddenRemoteReject, "remote auth check rejected the request")
	}

	p.Cache.Set(model.NamespaceModel, cacheKey, parsed.AccountId, config.AuthCacheTime())
	logger.Logger.Debug("remote auth check succeeded",
		zap.String("active_model", activeModel), zap.Duration("ttl", config.AuthCacheTime()))

	return parsed.AccountId, nil
}
