package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nexusgate/nexusgate/common/config"
	"github.com/nexusgate/nexusgate/gatewayerr"
	"github.com/nexusgate/nexusgate/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open in-memory sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.UserKey{}, &model.UserKeyModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newRequest(t *testing.T, authHeader string, body map[string]any) *http.Request {
	t.Helper()
	buf := &bytes.Buffer{}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		buf.Write(raw)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", io.NopCloser(buf))
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	return req
}

func TestAuthenticateMissingAuthorizationHeader(t *testing.T) {
	restore := setConfig(t, true, false, "")
	defer restore()

	p := New(newTestDB(t), disabledCache(t))
	req := newRequest(t, "", map[string]any{"model": "gpt-4"})

	_, err := p.Authenticate(req.Context(), req)
	assertKind(t, err, gatewayerr.UnauthMissingKey)
}

func TestAuthenticateMissingModel(t *testing.T) {
	restore := setConfig(t, true, false, "")
	defer restore()

	p := New(newTestDB(t), disabledCache(t))
	req := newRequest(t, "Bearer sk-test", map[string]any{})

	_, err := p.Authenticate(req.Context(), req)
	assertKind(t, err, gatewayerr.BadRequestMissingModel)
}

// With both auth modes off, neither the Authorization header nor the
// body's model field is required, and account_id defaults to the raw
// (possibly empty) user_key.
func TestAuthenticatePassThroughWhenAuthDisabled(t *testing.T) {
	restore := setConfig(t, false, false, "")
	defer restore()

	p := New(newTestDB(t), disabledCache(t))
	req := newRequest(t, "", map[string]any{})

	result, err := p.Authenticate(req.Context(), req)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result.AccountId != "" {
		t.Errorf("AccountId = %q, want empty string (no Authorization header, auth disabled)", result.AccountId)
	}
	if result.ActiveModel != "" {
		t.Errorf("ActiveModel = %q, want empty string (no model in body)", result.ActiveModel)
	}
}

func TestAuthenticateLocalModeUnknownKey(t *testing.T) {
	restore := setConfig(t, true, false, "")
	defer restore()

	p := New(newTestDB(t), disabledCache(t))
	req := newRequest(t, "Bearer sk-unknown", map[string]any{"model": "gpt-4"})

	_, err := p.Authenticate(req.Context(), req)
	assertKind(t, err, gatewayerr.ForbiddenInvalidKey)
}

func TestAuthenticateLocalModeKeyModelMismatch(t *testing.T) {
	restore := setConfig(t, true, false, "")
	defer restore()

	db := newTestDB(t)
	if err := db.Create(&model.UserKey{UserKey: "sk-known"}).Error; err != nil {
		t.Fatalf("seed user key: %v", err)
	}

	p := New(db, disabledCache(t))
	req := newRequest(t, "Bearer sk-known", map[string]any{"model": "gpt-4"})

	_, err := p.Authenticate(req.Context(), req)
	assertKind(t, err, gatewayerr.ForbiddenKeyModelMismatch)
}

func TestAuthenticateLocalModeSucceeds(t *testing.T) {
	restore := setConfig(t, true, false, "")
	defer restore()

	db := newTestDB(t)
	if err := db.Create(&model.UserKey{UserKey: "sk-known"}).Error; err != nil {
		t.Fatalf("seed user key: %v", err)
	}
	if err := db.Create(&model.UserKeyModel{UserKey: "sk-known", ActiveModel: "gpt-4"}).Error; err != nil {
		t.Fatalf("seed user key model: %v", err)
	}

	p := New(db, disabledCache(t))
	req := newRequest(t, "Bearer sk-known", map[string]any{"model": "gpt-4"})

	result, err := p.Authenticate(req.Context(), req)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result.AccountId != "sk-known" {
		t.Errorf("AccountId = %q, want sk-known (local mode binds account_id to the key)", result.AccountId)
	}
	if result.ActiveModel != "gpt-4" {
		t.Errorf("ActiveModel = %q, want gpt-4", result.ActiveModel)
	}
}

func TestAuthenticateRemoteModeSuccessPopulatesCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accountId":"acct-remote","isValid":true}`))
	}))
	defer server.Close()

	restore := setConfig(t, false, true, server.URL)
	defer restore()

	cache, err := model.NewAuthCache(100)
	if err != nil {
		t.Fatalf("NewAuthCache: %v", err)
	}

	p := New(newTestDB(t), cache)
	req := newRequest(t, "Bearer sk-remote", map[string]any{"model": "gpt-4"})

	result, err := p.Authenticate(req.Context(), req)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result.AccountId != "acct-remote" {
		t.Errorf("AccountId = %q, want acct-remote", result.AccountId)
	}

	if _, ok := cache.Check(model.NamespaceModel, "sk-remote||gpt-4"); !ok {
		t.Error("successful remote auth should populate the model-namespace cache")
	}
}

func TestAuthenticateRemoteModeRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accountId":"","isValid":false}`))
	}))
	defer server.Close()

	restore := setConfig(t, false, true, server.URL)
	defer restore()

	p := New(newTestDB(t), disabledCache(t))
	req := newRequest(t, "Bearer sk-rejected", map[string]any{"model": "gpt-4"})

	_, err := p.Authenticate(req.Context(), req)
	assertKind(t, err, gatewayerr.ForbiddenRemoteReject)
}

func disabledCache(t *testing.T) *model.AuthCache {
	t.Helper()
	c, err := model.NewAuthCache(0)
	if err != nil {
		t.Fatalf("NewAuthCache(0): %v", err)
	}
	return c
}

func assertKind(t *testing.T, err error, want gatewayerr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error of kind %s, got nil", want)
	}
	gwErr, ok := err.(*gatewayerr.Error)
	if !ok {
		t.Fatalf("expected *gatewayerr.Error, got %T: %v", err, err)
	}
	if gwErr.Kind != want {
		t.Errorf("kind = %s, want %s", gwErr.Kind, want)
	}
}

// setConfig swaps the auth-mode globals for the duration of one test and
// returns a func restoring the previous values.
func setConfig(t *testing.T, local, remote bool, remoteURL string) func() {
	t.Helper()
	prevLocal, prevRemote, prevURL := config.LocalAuthEnabled, config.RemoteAuthEnabled, config.AuthRemoteServer
	config.LocalAuthEnabled, config.RemoteAuthEnabled, config.AuthRemoteServer = local, remote, remoteURL
	return func() {
		config.LocalAuthEnabled, config.RemoteAuthEnabled, config.AuthRemoteServer = prevLocal, prevRemote, prevURL
	}
}
